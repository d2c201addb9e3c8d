package progress

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageRunStart      Stage = "RUN_START"
	StageRunDone       Stage = "RUN_DONE"
	StageFetchDone     Stage = "FETCH_DONE"
	StageFetchError    Stage = "FETCH_ERROR"
	StageClassifyDone  Stage = "CLASSIFY_DONE"
	StageClassifyError Stage = "CLASSIFY_ERROR"
)

// Command names the pipeline stage a run belongs to.
type Command string

// Known commands.
const (
	CommandFetch    Command = "fetch"
	CommandClassify Command = "classify"
)

// StatusClass is a coarse HTTP response grouping.
type StatusClass string

// Supported HTTP status classes tracked for fetch completions.
const (
	Status2xx   StatusClass = "2xx"
	Status3xx   StatusClass = "3xx"
	Status4xx   StatusClass = "4xx"
	Status5xx   StatusClass = "5xx"
	StatusOther StatusClass = "other"
)

// Event captures one step of a harvest run.
type Event struct {
	// RunID ties together every event of one command invocation.
	RunID uuid.UUID
	// TS is the UTC timestamp recorded by the emitter.
	TS      time.Time
	Stage   Stage
	Command Command
	// Site is the URL host, used as a low-cardinality metrics label.
	Site string
	URL  string
	// StatusClass groups the rendered page status for FETCH_DONE.
	StatusClass StatusClass
	// Words is the extracted word count for FETCH_DONE.
	Words int
	// Label is the verdict label for CLASSIFY_DONE.
	Label string
	// OK and Total summarize RUN_DONE.
	OK    int
	Total int
	Dur   time.Duration
	// Note carries error text for *_ERROR stages.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == uuid.Nil {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunDone:
		if e.Command == "" {
			return errors.New("run events require command")
		}
	case StageFetchDone:
		if e.Site == "" {
			return errors.New("fetch done requires site")
		}
		if e.StatusClass == "" {
			return errors.New("fetch done requires status class")
		}
	case StageFetchError, StageClassifyError:
		if e.URL == "" {
			return fmt.Errorf("%s requires url", e.Stage)
		}
	case StageClassifyDone:
		if e.Label == "" {
			return errors.New("classify done requires label")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// ClassifyStatus groups HTTP status codes for fetch events.
func ClassifyStatus(code int) StatusClass {
	switch {
	case code >= 200 && code < 300:
		return Status2xx
	case code >= 300 && code < 400:
		return Status3xx
	case code >= 400 && code < 500:
		return Status4xx
	case code >= 500 && code < 600:
		return Status5xx
	default:
		return StatusOther
	}
}

// SiteOf returns the lower-cased host of rawURL, or "unknown".
func SiteOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}
