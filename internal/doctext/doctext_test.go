package doctext

import (
	"errors"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		mediaType string
		want      Kind
	}{
		{"application/pdf", KindPDF},
		{"application/msword", KindWordLegacy},
		{"application/vnd.openxmlformats-officedocument.wordprocessingml.document", KindWordOOXML},
		{"application/vnd.ms-excel", KindExcelLegacy},
		{"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", KindExcelOOXML},
		{"text/plain", KindText},
		{"text/csv; charset=utf-8", KindText},
		{"application/json", KindText},
		{"APPLICATION/PDF", KindPDF},
		{"image/png", KindUnsupported},
		{"application/zip", KindUnsupported},
		{"", KindUnsupported},
	}
	for _, tc := range cases {
		if got := KindOf(tc.mediaType); got != tc.want {
			t.Errorf("KindOf(%q) = %v, want %v", tc.mediaType, got, tc.want)
		}
	}
}

func TestExtract_UnsupportedMediaType(t *testing.T) {
	_, err := Extract([]byte{0x89, 0x50}, "image/png", "logo.png")
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestExtract_DecodeFailureCarriesFilename(t *testing.T) {
	garbage := []byte("definitely not a pdf")
	_, err := Extract(garbage, "application/pdf", "offer.pdf")
	if err == nil {
		t.Fatal("expected decode error")
	}
	var xerr *ExtractionError
	if !errors.As(err, &xerr) {
		t.Fatalf("expected *ExtractionError, got %T: %v", err, err)
	}
	if xerr.Filename != "offer.pdf" {
		t.Fatalf("expected filename in error, got %q", xerr.Filename)
	}
}

func TestExtract_GarbageOfficeDocumentsFail(t *testing.T) {
	garbage := []byte("not an office document either")
	for _, mt := range []string{
		"application/msword",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"application/vnd.ms-excel",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	} {
		_, err := Extract(garbage, mt, "broken.bin")
		var xerr *ExtractionError
		if !errors.As(err, &xerr) {
			t.Errorf("media type %s: expected *ExtractionError, got %v", mt, err)
		}
	}
}

func TestExtract_XLSXAllSheetsWithHeaders(t *testing.T) {
	f := excelize.NewFile()
	if err := f.SetCellValue("Sheet1", "A1", "Product"); err != nil {
		t.Fatal(err)
	}
	if err := f.SetCellValue("Sheet1", "B1", "Price"); err != nil {
		t.Fatal(err)
	}
	if err := f.SetCellValue("Sheet1", "A2", "Pork loin"); err != nil {
		t.Fatal(err)
	}
	if err := f.SetCellValue("Sheet1", "B2", "2.10"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.NewSheet("Terms"); err != nil {
		t.Fatal(err)
	}
	if err := f.SetCellValue("Terms", "A1", "FOB Rotterdam"); err != nil {
		t.Fatal(err)
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatal(err)
	}

	text, err := Extract(buf.Bytes(),
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "offer.xlsx")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(text, "Sheet: Sheet1") || !strings.Contains(text, "Sheet: Terms") {
		t.Fatalf("expected sheet headers for every sheet, got %q", text)
	}
	if !strings.Contains(text, "Product\tPrice") {
		t.Fatalf("expected tab-joined row, got %q", text)
	}
	if !strings.Contains(text, "Pork loin\t2.10") {
		t.Fatalf("expected data row, got %q", text)
	}
	if strings.Index(text, "Sheet: Sheet1") > strings.Index(text, "Sheet: Terms") {
		t.Fatalf("expected sheets in document order, got %q", text)
	}
	if !strings.Contains(text, "FOB Rotterdam") {
		t.Fatalf("expected second sheet content, got %q", text)
	}
}

func TestExtract_TextAttachmentCharset(t *testing.T) {
	latin1 := []byte{'c', 'a', 'f', 0xe9} // "café" in ISO-8859-1
	text, err := Extract(latin1, "text/plain; charset=iso-8859-1", "note.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "café" {
		t.Fatalf("expected decoded latin-1 text, got %q", text)
	}
}

func TestExtract_TextAttachmentDefaultsToUTF8(t *testing.T) {
	text, err := Extract([]byte("plain body"), "text/plain", "note.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "plain body" {
		t.Fatalf("got %q", text)
	}
}
