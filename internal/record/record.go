// Package record defines the JSONL records exchanged between the fetch and
// classify stages.
package record

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// Label is the normalized classification outcome.
type Label string

// Known labels.
const (
	LabelPartisan Label = "partisan"
	LabelNeutral  Label = "neutral"
	LabelUnknown  Label = "unknown"
)

// Extracted is one fetched page.
type Extracted struct {
	URL       string    `json:"url"`
	Title     *string   `json:"title"`
	Text      string    `json:"text"`
	WordCount int       `json:"word_count"`
	FetchedAt time.Time `json:"fetched_at"`
	Status    int       `json:"status"`
}

// Verdict is the normalized model classification of a page.
type Verdict struct {
	Label     Label   `json:"label"`
	Score     float64 `json:"score"`
	Rationale string  `json:"rationale"`
}

// MarshalJSON writes the score with at least one decimal place, so 0 and 1
// read back as floats ("score":0.0) in every JSON consumer.
func (v Verdict) MarshalJSON() ([]byte, error) {
	score := strconv.AppendFloat(nil, v.Score, 'f', -1, 64)
	if !bytes.ContainsAny(score, ".NI") {
		score = append(score, ".0"...)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	err := enc.Encode(struct {
		Label     Label           `json:"label"`
		Score     json.RawMessage `json:"score"`
		Rationale string          `json:"rationale"`
	}{Label: v.Label, Score: score, Rationale: v.Rationale})
	if err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Augmented is an Extracted record carrying its verdict.
type Augmented struct {
	Extracted
	Sentiment Verdict `json:"sentiment_llm"`
}
