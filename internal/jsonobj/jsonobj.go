// Package jsonobj recovers a JSON object from noisy model output.
package jsonobj

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/JakeFAU/homepage-tone/internal/sanitize"
)

// Failure reasons reported by ParseError.
const (
	ReasonNoObjectStart = "no object start"
	ReasonUnbalanced    = "unbalanced braces"
	ReasonInvalidObject = "invalid object"
)

var fenceMarkers = regexp.MustCompile("(?im)^```(?:json)?|```$")

// ParseError reports why no object could be recovered.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("recover json object: %s: %v", e.Reason, e.Err)
	}
	return "recover json object: " + e.Reason
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Recover extracts the first JSON object from raw. Fence markers and
// <|...|> tokens are dropped first; if the remainder is not itself an object,
// the first '{' is matched to its closing brace by depth counting and that
// span is decoded. Braces inside string values are counted too.
func Recover(raw string) (map[string]any, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimSpace(fenceMarkers.ReplaceAllString(s, ""))
	s = sanitize.ControlTokens.ReplaceAllString(s, "")

	var direct any
	if err := json.Unmarshal([]byte(s), &direct); err == nil {
		if obj, ok := direct.(map[string]any); ok {
			return obj, nil
		}
	}

	start := strings.IndexByte(s, '{')
	if start < 0 {
		return nil, &ParseError{Reason: ReasonNoObjectStart}
	}
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				var obj map[string]any
				if err := json.Unmarshal([]byte(s[start:i+1]), &obj); err != nil {
					return nil, &ParseError{Reason: ReasonInvalidObject, Err: err}
				}
				return obj, nil
			}
		}
	}
	return nil, &ParseError{Reason: ReasonUnbalanced}
}
