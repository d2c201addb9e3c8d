package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/homepage-tone/internal/clock/system"
	"github.com/JakeFAU/homepage-tone/internal/extract"
	"github.com/JakeFAU/homepage-tone/internal/progress"
	"github.com/JakeFAU/homepage-tone/internal/record"
	"github.com/JakeFAU/homepage-tone/internal/render"
)

// Renderer produces a rendered snapshot of a URL.
type Renderer interface {
	Render(ctx context.Context, rawURL string) (render.Result, error)
}

// FetchFailure is a URL that produced no record.
type FetchFailure struct {
	URL string
	Err error
}

func (f *FetchFailure) Error() string {
	return fmt.Sprintf("fetch %s: %v", f.URL, f.Err)
}

func (f *FetchFailure) Unwrap() error {
	return f.Err
}

// FetchConfig tunes the fetch loop.
type FetchConfig struct {
	// Sleep is the pause after every URL, successful or not.
	Sleep time.Duration
}

// Fetcher renders URLs one at a time and appends an Extracted record for each
// one that renders.
type Fetcher struct {
	renderer Renderer
	out      RecordWriter
	cfg      FetchConfig
	deps     Deps
}

// NewFetcher wires a fetch loop.
func NewFetcher(renderer Renderer, out RecordWriter, cfg FetchConfig, deps Deps) (*Fetcher, error) {
	if renderer == nil {
		return nil, errors.New("pipeline: renderer is required")
	}
	if out == nil {
		return nil, errors.New("pipeline: record writer is required")
	}
	if cfg.Sleep < 0 {
		return nil, fmt.Errorf("pipeline: sleep must be >= 0, got %s", cfg.Sleep)
	}
	deps = deps.withDefaults(system.Clock{})
	deps.Logger = deps.Logger.Named("fetch")
	return &Fetcher{renderer: renderer, out: out, cfg: cfg, deps: deps}, nil
}

// Run processes urls in order. Per-URL failures are logged and skipped; the
// returned error is set only for write failures or cancellation, in which case
// the Summary covers the URLs handled so far.
func (f *Fetcher) Run(ctx context.Context, urls []string) (Summary, error) {
	runID, start, err := f.deps.startRun(progress.CommandFetch, len(urls))
	if err != nil {
		return Summary{}, err
	}
	sum := Summary{RunID: runID, Total: len(urls)}
	defer f.deps.finishRun(progress.CommandFetch, &sum, start)

	for i, rawURL := range urls {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		rec, err := f.fetchOne(ctx, runID, rawURL)
		switch {
		case err == nil:
			if werr := f.out.Write(rec); werr != nil {
				return sum, fmt.Errorf("write record for %s: %w", rawURL, werr)
			}
			sum.OK++
			fmt.Fprintf(f.deps.Stdout, "[%d/%d] OK %s -> %d words\n", i+1, len(urls), rawURL, rec.WordCount)
		case ctx.Err() != nil:
			return sum, ctx.Err()
		default:
			f.deps.Logger.Error("fetch failed",
				zap.Int("index", i+1),
				zap.Int("total", len(urls)),
				zap.String("url", rawURL),
				zap.Error(err),
			)
			f.deps.Emitter.Emit(progress.Event{
				RunID: runID,
				TS:    f.deps.Clock.Now(),
				Stage: progress.StageFetchError,
				Site:  progress.SiteOf(rawURL),
				URL:   rawURL,
				Note:  err.Error(),
			})
		}

		if err := f.deps.Clock.Sleep(ctx, f.cfg.Sleep); err != nil {
			return sum, err
		}
	}
	return sum, nil
}

func (f *Fetcher) fetchOne(ctx context.Context, runID uuid.UUID, rawURL string) (record.Extracted, error) {
	started := f.deps.Clock.Now()
	res, err := f.renderer.Render(ctx, rawURL)
	if err != nil {
		return record.Extracted{}, &FetchFailure{URL: rawURL, Err: err}
	}
	page, err := extract.Extract(res.HTML)
	if err != nil {
		return record.Extracted{}, &FetchFailure{URL: rawURL, Err: err}
	}
	now := f.deps.Clock.Now()
	rec := record.Extracted{
		URL:       rawURL,
		Title:     page.Title,
		Text:      page.Text,
		WordCount: page.WordCount,
		FetchedAt: now.UTC(),
		Status:    res.Status,
	}
	f.deps.Emitter.Emit(progress.Event{
		RunID:       runID,
		TS:          now,
		Stage:       progress.StageFetchDone,
		Site:        progress.SiteOf(rawURL),
		URL:         rawURL,
		StatusClass: progress.ClassifyStatus(res.Status),
		Words:       page.WordCount,
		Dur:         now.Sub(started),
	})
	return rec, nil
}
