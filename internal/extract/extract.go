// Package extract turns rendered HTML into a title and line-oriented text.
//
// Nothing is stripped before extraction: navigation, header, footer, script
// and style text all end up in the output, which keeps records comparable with
// earlier harvests.
package extract

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Page is the extracted content of one document.
type Page struct {
	Title     *string
	Text      string
	WordCount int
}

// Extract parses raw HTML and returns its title and cleaned text.
func Extract(raw string) (Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return Page{}, fmt.Errorf("parse html: %w", err)
	}
	text := Clean(textNodes(doc.Nodes))
	return Page{
		Title:     title(doc),
		Text:      text,
		WordCount: WordCount(text),
	}, nil
}

// title returns the first non-empty <title>, trimmed.
func title(doc *goquery.Document) *string {
	var found *string
	doc.Find("title").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if t := strings.TrimSpace(s.Text()); t != "" {
			found = &t
			return false
		}
		return true
	})
	return found
}

// textNodes joins every text node under roots in document order with "\n".
func textNodes(roots []*html.Node) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			parts = append(parts, n.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range roots {
		walk(n)
	}
	return strings.Join(parts, "\n")
}

// lineBreaks folds every line boundary Clean recognizes into "\n". The
// two-byte "\r\n" comes first so it collapses to a single break.
var lineBreaks = strings.NewReplacer(
	"\r\n", "\n",
	"\r", "\n",
	"\v", "\n",
	"\f", "\n",
	"\x1c", "\n",
	"\x1d", "\n",
	"\x1e", "\n",
	"\u0085", "\n",
	"\u2028", "\n",
	"\u2029", "\n",
)

// Clean trims every line and drops the empty ones. Carriage returns, form
// feeds, vertical tabs, the ASCII separators and the Unicode line and
// paragraph separators all end a line.
func Clean(text string) string {
	lines := strings.Split(lineBreaks.Replace(text), "\n")
	kept := lines[:0]
	for _, ln := range lines {
		if ln = strings.TrimSpace(ln); ln != "" {
			kept = append(kept, ln)
		}
	}
	return strings.Join(kept, "\n")
}

// WordCount counts whitespace-delimited tokens.
func WordCount(text string) int {
	return len(strings.Fields(text))
}
