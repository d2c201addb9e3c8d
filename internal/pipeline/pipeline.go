// Package pipeline runs the two sequential harvest stages: fetch renders URLs
// into Extracted records, classify augments those records with verdicts.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	idgen "github.com/JakeFAU/homepage-tone/internal/id/uuid"
	"github.com/JakeFAU/homepage-tone/internal/progress"
)

// RecordWriter persists one record per call.
type RecordWriter interface {
	Write(v any) error
}

// Clock abstracts time for the batch loops.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

// Summary reports the outcome of a run.
type Summary struct {
	RunID   uuid.UUID
	OK      int
	Total   int
	Elapsed time.Duration
}

// String renders the closing line printed by the CLI.
func (s Summary) String() string {
	return fmt.Sprintf("%d/%d succeeded", s.OK, s.Total)
}

// Deps carries the collaborators shared by both stages. Zero fields get
// harmless defaults.
type Deps struct {
	Clock   Clock
	Emitter progress.Emitter
	IDs     idgen.Generator
	Logger  *zap.Logger
	// Stdout receives one human-readable line per item.
	Stdout io.Writer
}

func (d Deps) withDefaults(clock Clock) Deps {
	if d.Clock == nil {
		d.Clock = clock
	}
	if d.Emitter == nil {
		d.Emitter = progress.Discard
	}
	if d.IDs == nil {
		d.IDs = idgen.V7{}
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Stdout == nil {
		d.Stdout = io.Discard
	}
	return d
}

func (d Deps) startRun(cmd progress.Command, total int) (uuid.UUID, time.Time, error) {
	runID, err := d.IDs.NewRunID()
	if err != nil {
		return uuid.Nil, time.Time{}, fmt.Errorf("new run id: %w", err)
	}
	start := d.Clock.Now()
	d.Emitter.Emit(progress.Event{
		RunID:   runID,
		TS:      start,
		Stage:   progress.StageRunStart,
		Command: cmd,
		Total:   total,
	})
	return runID, start, nil
}

func (d Deps) finishRun(cmd progress.Command, sum *Summary, start time.Time) {
	end := d.Clock.Now()
	sum.Elapsed = end.Sub(start)
	d.Emitter.Emit(progress.Event{
		RunID:   sum.RunID,
		TS:      end,
		Stage:   progress.StageRunDone,
		Command: cmd,
		OK:      sum.OK,
		Total:   sum.Total,
		Dur:     sum.Elapsed,
	})
}
