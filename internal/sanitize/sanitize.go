// Package sanitize prepares page text for a language model prompt.
package sanitize

import (
	"html"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultMaxChars bounds the text sent to the model.
const DefaultMaxChars = 4000

var (
	controlChars = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)
	// ControlTokens matches chat-template markers such as <|channel|>.
	ControlTokens = regexp.MustCompile(`<\|[^>]*\|>`)
	codeFences    = regexp.MustCompile("(?s)```.*?```")
)

// Sanitize cleans text in a fixed order and truncates it to maxChars runes.
// A non-positive maxChars uses DefaultMaxChars.
func Sanitize(text string, maxChars int) string {
	if text == "" {
		return ""
	}
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	text = html.UnescapeString(text)
	text = controlChars.ReplaceAllString(text, "")
	text = ControlTokens.ReplaceAllString(text, "")
	text = codeFences.ReplaceAllString(text, "")
	text = collapseRepeats(text)
	text = strings.Join(strings.Fields(text), " ")
	return truncate(text, maxChars)
}

// collapseRepeats shortens runs of four or more of the same symbol to two.
// Letters, numbers, underscores and whitespace are never collapsed.
func collapseRepeats(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	runes := []rune(s)
	for i := 0; i < len(runes); {
		r := runes[i]
		j := i + 1
		for j < len(runes) && runes[j] == r {
			j++
		}
		n := j - i
		if n >= 4 && isSymbol(r) {
			n = 2
		}
		for k := 0; k < n; k++ {
			b.WriteRune(r)
		}
		i = j
	}
	return b.String()
}

func isSymbol(r rune) bool {
	return !(unicode.IsLetter(r) || unicode.IsNumber(r) || r == '_' || unicode.IsSpace(r))
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
