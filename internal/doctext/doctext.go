// Package doctext extracts plain text from email attachments. Dispatch is by
// declared media type over a closed set of supported document kinds; anything
// else is rejected up front so callers can log and move on.
package doctext

import (
	"errors"
	"fmt"
	"mime"
	"strings"
)

// Kind enumerates the supported document formats.
type Kind int

const (
	KindUnsupported Kind = iota
	KindPDF
	KindWordLegacy
	KindWordOOXML
	KindExcelLegacy
	KindExcelOOXML
	KindText
)

// ErrUnsupportedFormat is returned when the declared media type maps to no
// known decoder. Image types land here too, but callers are expected to have
// excluded those already.
var ErrUnsupportedFormat = errors.New("unsupported media type")

// ExtractionError wraps a decoder failure with the attachment filename so the
// caller can attribute the failure in logs without aborting anything else.
type ExtractionError struct {
	Filename string
	Err      error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %q: %v", e.Filename, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// KindOf maps a declared media type to a document kind. Parameters such as
// charset are ignored for dispatch.
func KindOf(mediaType string) Kind {
	mt, _, err := mime.ParseMediaType(mediaType)
	if err != nil {
		mt = strings.ToLower(strings.TrimSpace(mediaType))
	}
	switch mt {
	case "application/pdf":
		return KindPDF
	case "application/msword":
		return KindWordLegacy
	case "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return KindWordOOXML
	case "application/vnd.ms-excel":
		return KindExcelLegacy
	case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return KindExcelOOXML
	case "application/json", "application/xml":
		return KindText
	}
	if strings.HasPrefix(mt, "text/") {
		return KindText
	}
	return KindUnsupported
}

// Extract decodes the attachment bytes according to the declared media type
// and returns the contained text. Unknown types yield ErrUnsupportedFormat;
// decoder failures are wrapped in an ExtractionError carrying the filename.
func Extract(data []byte, mediaType, filename string) (string, error) {
	var (
		text string
		err  error
	)
	switch KindOf(mediaType) {
	case KindPDF:
		text, err = pdfText(data)
	case KindWordLegacy:
		text, err = legacyWordText(data)
	case KindWordOOXML:
		text, err = docxText(data)
	case KindExcelLegacy:
		text, err = legacyExcelText(data, filename)
	case KindExcelOOXML:
		text, err = xlsxText(data)
	case KindText:
		text, err = plainText(data, mediaType)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, mediaType)
	}
	if err != nil {
		return "", &ExtractionError{Filename: filename, Err: err}
	}
	return text, nil
}
