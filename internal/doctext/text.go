package doctext

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// plainText decodes a textual attachment honoring its declared charset
// parameter. Unknown or missing charsets fall back to treating the bytes as
// UTF-8, which covers the common case.
func plainText(data []byte, mediaType string) (string, error) {
	_, params, err := mime.ParseMediaType(mediaType)
	if err != nil {
		return string(data), nil
	}
	label := strings.TrimSpace(params["charset"])
	if label == "" || strings.EqualFold(label, "utf-8") {
		return string(data), nil
	}
	enc, err := htmlindex.Get(label)
	if err != nil {
		return string(data), nil
	}
	decoded, err := io.ReadAll(transform.NewReader(bytes.NewReader(data), enc.NewDecoder()))
	if err != nil {
		return "", fmt.Errorf("decode charset %q: %w", label, err)
	}
	return string(decoded), nil
}
