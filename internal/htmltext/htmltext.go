// Package htmltext converts untrusted email markup into plain text suitable
// for language-model consumption. Markup noise (scripts, trackers, hidden
// elements) is dropped, tables are flattened into delimited rows, and block
// structure is preserved as paragraph breaks.
package htmltext

import (
	"bytes"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var (
	spaceRunRe    = regexp.MustCompile(`[ \t]+`)
	edgeSpaceRe   = regexp.MustCompile(`[ \t]*\n[ \t]*`)
	newlineRunRe  = regexp.MustCompile(`\n{3,}`)
	sentenceEndRe = regexp.MustCompile(`\.[ \t]+`)
)

// Normalize renders markup as clean plain text. Input that cannot be parsed
// is returned unchanged so downstream stages still see the content.
func Normalize(markup string) string {
	node, err := html.Parse(bytes.NewReader([]byte(markup)))
	if err != nil || node == nil {
		return markup
	}
	var b strings.Builder
	render(&b, node)
	return cleanWhitespace(b.String())
}

func render(b *strings.Builder, n *html.Node) {
	if n.Type == html.ElementNode {
		if isNoise(n) {
			return
		}
		switch strings.ToLower(n.Data) {
		case "table":
			renderTable(b, n)
			return
		case "br", "hr":
			b.WriteString("\n")
			return
		case "p", "div", "h1", "h2", "h3", "h4", "h5", "h6",
			"ul", "ol", "li", "blockquote", "pre", "address":
			b.WriteString("\n\n")
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				render(b, c)
			}
			b.WriteString("\n\n")
			return
		}
	}
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		render(b, c)
	}
}

// isNoise reports whether an element carries no semantic trading value:
// script/style/head machinery, embedded frames, tracking pixels, and
// elements hidden inline.
func isNoise(n *html.Node) bool {
	switch strings.ToLower(n.Data) {
	case "script", "style", "head", "link", "meta", "iframe", "noscript":
		return true
	case "img":
		return isTrackingImage(n)
	}
	for _, attr := range n.Attr {
		key := strings.ToLower(attr.Key)
		val := strings.ToLower(attr.Val)
		switch key {
		case "style":
			if strings.Contains(val, "display:none") || strings.Contains(val, "display: none") {
				return true
			}
		case "class":
			for _, token := range strings.Fields(val) {
				if token == "track" {
					return true
				}
			}
		case "id":
			if val == "track" {
				return true
			}
		}
	}
	return false
}

func isTrackingImage(n *html.Node) bool {
	for _, attr := range n.Attr {
		key := strings.ToLower(attr.Key)
		val := strings.ToLower(strings.TrimSpace(attr.Val))
		switch key {
		case "width", "height":
			if val == "1" || val == "1px" {
				return true
			}
		case "src":
			if strings.Contains(val, "track") || strings.Contains(val, "pixel") {
				return true
			}
		}
	}
	return false
}

// renderTable flattens a table into one line per row with cells joined by
// " | " so numeric and price tables survive the markup strip.
func renderTable(b *strings.Builder, table *html.Node) {
	var rows []string
	var walkRows func(*html.Node)
	walkRows = func(n *html.Node) {
		if n.Type == html.ElementNode && strings.EqualFold(n.Data, "tr") {
			var cells []string
			var walkCells func(*html.Node)
			walkCells = func(c *html.Node) {
				if c.Type == html.ElementNode && (strings.EqualFold(c.Data, "td") || strings.EqualFold(c.Data, "th")) {
					cells = append(cells, cellText(c))
					return
				}
				for cc := c.FirstChild; cc != nil; cc = cc.NextSibling {
					walkCells(cc)
				}
			}
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				walkCells(c)
			}
			rows = append(rows, strings.Join(cells, " | "))
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walkRows(c)
		}
	}
	walkRows(table)
	b.WriteString("\n")
	b.WriteString(strings.Join(rows, "\n"))
	b.WriteString("\n")
}

// cellText collects the inner text of a table cell with whitespace collapsed
// to single spaces.
func cellText(n *html.Node) string {
	var b strings.Builder
	var collect func(*html.Node)
	collect = func(c *html.Node) {
		if c.Type == html.ElementNode && isNoise(c) {
			return
		}
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
		for cc := c.FirstChild; cc != nil; cc = cc.NextSibling {
			collect(cc)
		}
	}
	collect(n)
	return strings.TrimSpace(spaceRunRe.ReplaceAllString(strings.ReplaceAll(b.String(), "\n", " "), " "))
}

func cleanWhitespace(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.ReplaceAll(text, " ", " ")
	text = spaceRunRe.ReplaceAllString(text, " ")
	text = edgeSpaceRe.ReplaceAllString(text, "\n")
	text = newlineRunRe.ReplaceAllString(text, "\n\n")
	text = strings.TrimSpace(text)

	// Fully flattened markup loses all paragraph boundaries; fall back to a
	// break after each sentence-ending period. Periods inside numbers stay
	// untouched so flattened price rows keep their shape.
	if !strings.Contains(text, "\n\n") {
		text = sentenceEndRe.ReplaceAllString(text, ".\n\n")
		text = newlineRunRe.ReplaceAllString(text, "\n\n")
		text = strings.TrimSpace(text)
	}
	return text
}
