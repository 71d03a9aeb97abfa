package doctext

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

// xlsxText renders every sheet of an OOXML workbook in document order: a
// sheet-name header line, then one line per row with cells tab-joined,
// sheets separated by a blank line.
func xlsxText(data []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	var b strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		fmt.Fprintf(&b, "Sheet: %s\n", sheet)
		for _, row := range rows {
			b.WriteString(strings.Join(row, "\t"))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// legacyExcelText decodes a BIFF workbook. The decoder wants a file path, so
// the bytes are staged to a temp file that is removed on every exit path.
func legacyExcelText(data []byte, filename string) (string, error) {
	tmp, err := os.CreateTemp("", "mailflow-*"+sanitizeExt(filename, ".xls"))
	if err != nil {
		return "", fmt.Errorf("stage xls: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("stage xls: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("stage xls: %w", err)
	}

	wb, err := xls.Open(tmp.Name(), "utf-8")
	if err != nil {
		return "", fmt.Errorf("open xls: %w", err)
	}

	var b strings.Builder
	for i := 0; i < wb.NumSheets(); i++ {
		sheet := wb.GetSheet(i)
		if sheet == nil {
			continue
		}
		fmt.Fprintf(&b, "Sheet: %s\n", sheet.Name)
		for r := 0; r <= int(sheet.MaxRow); r++ {
			row := sheet.Row(r)
			if row == nil {
				continue
			}
			var cells []string
			for c := row.FirstCol(); c <= row.LastCol(); c++ {
				cells = append(cells, row.Col(c))
			}
			b.WriteString(strings.Join(cells, "\t"))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// sanitizeExt keeps the original extension for the staged file when it looks
// sane, so decoders that sniff by suffix still work.
func sanitizeExt(filename, fallback string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	if len(ext) < 2 || len(ext) > 6 {
		return fallback
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return fallback
		}
	}
	return ext
}
