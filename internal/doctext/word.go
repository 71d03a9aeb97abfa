package doctext

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode/utf16"

	docx "github.com/fumiama/go-docx"
	"github.com/richardlehane/mscfb"
)

// docxText extracts the paragraph and table text of an OOXML word document.
func docxText(data []byte) (string, error) {
	doc, err := docx.Parse(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("parse docx: %w", err)
	}
	var b strings.Builder
	for _, it := range doc.Document.Body.Items {
		switch it.(type) {
		case *docx.Paragraph, *docx.Table:
			fmt.Fprintln(&b, it)
		}
	}
	return strings.TrimSpace(b.String()), nil
}

// legacyWordText pulls text out of a pre-OOXML .doc compound file. The binary
// Word format is not fully decoded; the WordDocument stream is scanned for
// printable runs, which recovers the visible text of typical trade offers.
func legacyWordText(data []byte) (string, error) {
	rdr, err := mscfb.New(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("open compound file: %w", err)
	}
	for entry, err := rdr.Next(); err == nil; entry, err = rdr.Next() {
		if entry.Name != "WordDocument" {
			continue
		}
		stream, rerr := io.ReadAll(entry)
		if rerr != nil {
			return "", fmt.Errorf("read WordDocument stream: %w", rerr)
		}
		text := printableRuns(stream)
		if text == "" {
			return "", fmt.Errorf("no text recovered from WordDocument stream")
		}
		return text, nil
	}
	return "", fmt.Errorf("no WordDocument stream found")
}

const minRunLen = 6

// printableRuns collects runs of printable characters from a binary stream,
// decoding both single-byte and UTF-16LE encoded stretches.
func printableRuns(data []byte) string {
	var runs []string

	// Single-byte runs, ASCII only so the result stays valid UTF-8.
	var cur []byte
	flush := func() {
		if len(cur) >= minRunLen {
			runs = append(runs, string(cur))
		}
		cur = cur[:0]
	}
	for _, c := range data {
		if c < 0x80 && printableByte(c) {
			cur = append(cur, c)
			continue
		}
		flush()
	}
	flush()

	// UTF-16LE runs: printable low byte followed by a zero high byte.
	var cur16 []uint16
	flush16 := func() {
		if len(cur16) >= minRunLen {
			runs = append(runs, string(utf16.Decode(cur16)))
		}
		cur16 = cur16[:0]
	}
	for i := 0; i+1 < len(data); i += 2 {
		u := uint16(data[i]) | uint16(data[i+1])<<8
		if u < 256 && printableByte(byte(u)) {
			cur16 = append(cur16, u)
			continue
		}
		flush16()
	}
	flush16()

	return strings.TrimSpace(strings.Join(dedupeRuns(runs), "\n"))
}

func printableByte(c byte) bool {
	return c == '\t' || c == '\n' || c == '\r' || (c >= 0x20 && c < 0x7f) || c >= 0xa0
}

// dedupeRuns drops runs whose content already appeared, which collapses the
// double hit when the same text matches both scan passes.
func dedupeRuns(runs []string) []string {
	seen := make(map[string]struct{}, len(runs))
	out := runs[:0]
	for _, r := range runs {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}
