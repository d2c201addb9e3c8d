// Package verdict normalizes a decoded model reply into a record.Verdict.
package verdict

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/JakeFAU/homepage-tone/internal/record"
)

// MaxRationale bounds the rationale kept from a parsed reply.
const MaxRationale = 400

// EmptyTextRationale explains verdicts for pages with no usable text.
const EmptyTextRationale = "empty text"

// ScorePolicy derives the stored score. modelScore is whatever the model
// reported, already coerced to a number (zero when missing or unreadable).
type ScorePolicy func(label record.Label, modelScore float64) float64

// LabelScore ignores the model's score: partisan is 1, everything else 0.
func LabelScore(label record.Label, _ float64) float64 {
	if label == record.LabelPartisan {
		return 1.0
	}
	return 0.0
}

// Normalizer turns decoded objects into verdicts.
type Normalizer struct {
	Score ScorePolicy
}

// Normalize applies LabelScore.
func Normalize(obj map[string]any) record.Verdict {
	return Normalizer{Score: LabelScore}.Normalize(obj)
}

// Normalize coerces the label, scores it through the policy and bounds the
// rationale.
func (n Normalizer) Normalize(obj map[string]any) record.Verdict {
	policy := n.Score
	if policy == nil {
		policy = LabelScore
	}
	label := Label(obj["label"])
	return record.Verdict{
		Label:     label,
		Score:     policy(label, number(obj["score"])),
		Rationale: truncate(stringify(obj["rationale"]), MaxRationale),
	}
}

// Label lower-cases v and maps anything but partisan or neutral to unknown.
func Label(v any) record.Label {
	switch l := record.Label(strings.ToLower(stringify(v))); l {
	case record.LabelPartisan, record.LabelNeutral:
		return l
	default:
		return record.LabelUnknown
	}
}

// FromParseFailure keeps the raw reply untruncated for later inspection.
func FromParseFailure(raw string) record.Verdict {
	return record.Verdict{Label: record.LabelUnknown, Score: 0, Rationale: raw}
}

// EmptyText is the verdict for pages whose sanitized text is empty.
func EmptyText() record.Verdict {
	return record.Verdict{Label: record.LabelUnknown, Score: 0, Rationale: EmptyTextRationale}
}

// FromError records a classification that failed outright.
func FromError(err error) record.Verdict {
	return record.Verdict{Label: record.LabelUnknown, Score: 0, Rationale: "error: " + err.Error()}
}

func number(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0
		}
		return f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0
		}
		return f
	case bool:
		if x {
			return 1
		}
		return 0
	default:
		return 0
	}
}

// stringify treats a JSON null like a missing field.
func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	}
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
