package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/homepage-tone/internal/clock/system"
	"github.com/JakeFAU/homepage-tone/internal/progress"
	"github.com/JakeFAU/homepage-tone/internal/record"
	"github.com/JakeFAU/homepage-tone/internal/sanitize"
	"github.com/JakeFAU/homepage-tone/internal/verdict"
)

// Verdicter classifies sanitized page text.
type Verdicter interface {
	Classify(ctx context.Context, text string) (record.Verdict, error)
}

// RecordReader yields Extracted records until io.EOF.
type RecordReader interface {
	Next() (record.Extracted, error)
}

// ClassifyConfig tunes the classify loop.
type ClassifyConfig struct {
	// MaxChars bounds the sanitized text sent to the model.
	MaxChars int
	// ContinueOnError records an unknown verdict for records whose
	// classification or decoding fails instead of stopping the run.
	ContinueOnError bool
}

// Classifier augments Extracted records with verdicts.
type Classifier struct {
	model Verdicter
	cfg   ClassifyConfig
	deps  Deps
}

// NewClassifier wires a classify loop.
func NewClassifier(model Verdicter, cfg ClassifyConfig, deps Deps) (*Classifier, error) {
	if model == nil {
		return nil, errors.New("pipeline: classifier is required")
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = sanitize.DefaultMaxChars
	}
	deps = deps.withDefaults(system.Clock{})
	deps.Logger = deps.Logger.Named("classify")
	return &Classifier{model: model, cfg: cfg, deps: deps}, nil
}

// Run reads every record from in and writes its augmented form to out. Total
// counts records read; OK counts records whose verdict came from the model or
// from the empty-text rule.
func (c *Classifier) Run(ctx context.Context, in RecordReader, out RecordWriter) (Summary, error) {
	runID, start, err := c.deps.startRun(progress.CommandClassify, 0)
	if err != nil {
		return Summary{}, err
	}
	sum := Summary{RunID: runID}
	defer c.deps.finishRun(progress.CommandClassify, &sum, start)

	for {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		rec, err := in.Next()
		if errors.Is(err, io.EOF) {
			return sum, nil
		}
		var lineErr *record.LineError
		if errors.As(err, &lineErr) && c.cfg.ContinueOnError {
			sum.Total++
			c.deps.Logger.Error("skipping undecodable record", zap.Int("line", lineErr.Line), zap.Error(err))
			continue
		}
		if err != nil {
			return sum, err
		}
		sum.Total++

		v, ok, err := c.classifyOne(ctx, runID, rec)
		if err != nil {
			return sum, err
		}
		if ok {
			sum.OK++
		}
		if err := out.Write(record.Augmented{Extracted: rec, Sentiment: v}); err != nil {
			return sum, fmt.Errorf("write record for %s: %w", rec.URL, err)
		}
		fmt.Fprintf(c.deps.Stdout, "[%d] done %s %s %.1f\n", sum.Total, rec.URL, v.Label, v.Score)
	}
}

// classifyOne returns the verdict for rec and whether it counts as a success.
// An error is returned only when the run must stop.
func (c *Classifier) classifyOne(ctx context.Context, runID uuid.UUID, rec record.Extracted) (record.Verdict, bool, error) {
	text := sanitize.Sanitize(rec.Text, c.cfg.MaxChars)
	if strings.TrimSpace(text) == "" {
		v := verdict.EmptyText()
		c.emitDone(runID, rec.URL, v, 0)
		return v, true, nil
	}

	started := c.deps.Clock.Now()
	v, err := c.model.Classify(ctx, text)
	if err == nil {
		c.emitDone(runID, rec.URL, v, c.deps.Clock.Now().Sub(started))
		return v, true, nil
	}
	if ctx.Err() != nil || !c.cfg.ContinueOnError {
		return record.Verdict{}, false, fmt.Errorf("classify %s: %w", rec.URL, err)
	}

	c.deps.Logger.Error("classification failed, recording unknown verdict",
		zap.String("url", rec.URL),
		zap.Error(err),
	)
	c.deps.Emitter.Emit(progress.Event{
		RunID: runID,
		TS:    c.deps.Clock.Now(),
		Stage: progress.StageClassifyError,
		Site:  progress.SiteOf(rec.URL),
		URL:   rec.URL,
		Note:  err.Error(),
	})
	return verdict.FromError(err), false, nil
}

func (c *Classifier) emitDone(runID uuid.UUID, rawURL string, v record.Verdict, dur time.Duration) {
	c.deps.Emitter.Emit(progress.Event{
		RunID: runID,
		TS:    c.deps.Clock.Now(),
		Stage: progress.StageClassifyDone,
		Site:  progress.SiteOf(rawURL),
		URL:   rawURL,
		Label: string(v.Label),
		Dur:   dur,
	})
}
