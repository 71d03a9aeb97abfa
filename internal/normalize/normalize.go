// Package normalize rewrites oracle output into canonical form. The walk is
// structure-preserving: keys, array lengths and nesting never change, only
// specific leaf strings are rewritten.
package normalize

import (
	"regexp"
	"strings"
)

// tradeTerms maps the spellings seen in trade emails to their canonical
// three-letter codes.
var tradeTerms = map[string]string{
	"ex.work":  "EXW",
	"ex work":  "EXW",
	"ex-work":  "EXW",
	"ex.works": "EXW",
	"ex works": "EXW",
	"ex-works": "EXW",
	"fob":      "FOB",
	"f.o.b":    "FOB",
	"f.o.b.":   "FOB",
	"cif":      "CIF",
	"c.i.f":    "CIF",
	"c.i.f.":   "CIF",
	"cfr":      "CFR",
	"c.f.r":    "CFR",
	"c.f.r.":   "CFR",
	"dap":      "DAP",
	"d.a.p":    "DAP",
	"d.a.p.":   "DAP",
	"ddp":      "DDP",
	"d.d.p":    "DDP",
	"d.d.p.":   "DDP",
}

var whitespaceRunRe = regexp.MustCompile(`\s+`)

// Value walks a decoded JSON value depth-first and applies the field rules.
// It never fails and never alters structure, so a record that cannot be
// improved comes back as it went in.
func Value(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = field(k, item)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = Value(item)
		}
		return out
	default:
		return v
	}
}

func field(key string, v any) any {
	s, ok := v.(string)
	if !ok {
		// The commodity field may be a list; collapse each entry in place.
		if items, isList := v.([]any); isList && key == "meat_type" {
			out := make([]any, len(items))
			for i, item := range items {
				if str, isStr := item.(string); isStr {
					out[i] = collapse(str)
				} else {
					out[i] = Value(item)
				}
			}
			return out
		}
		return Value(v)
	}
	lowerKey := strings.ToLower(key)
	lowerVal := strings.ToLower(s)
	switch {
	case strings.Contains(lowerKey, "incoterm"),
		strings.Contains(lowerKey, "terms"),
		strings.Contains(lowerVal, "ex."),
		strings.Contains(lowerVal, "fob"),
		strings.Contains(lowerVal, "cif"):
		return TradeTerm(s)
	case key == "meat_type":
		return collapse(s)
	default:
		return s
	}
}

// TradeTerm canonicalizes a shipping-term spelling. Unrecognized terms are
// upper-cased verbatim as a fallback.
func TradeTerm(term string) string {
	if code, ok := tradeTerms[strings.ToLower(strings.TrimSpace(term))]; ok {
		return code
	}
	return strings.ToUpper(term)
}

func collapse(s string) string {
	return strings.TrimSpace(whitespaceRunRe.ReplaceAllString(s, " "))
}
