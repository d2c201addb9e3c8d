package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JakeFAU/homepage-tone/internal/progress"
)

var testRunID = uuid.MustParse("01890a5d-ac96-774b-bcce-b302099a8057")

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	step   time.Duration
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{
		now:  time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		step: 10 * time.Millisecond,
	}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	c.mu.Unlock()
	return ctx.Err()
}

func (c *fakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []progress.Event
}

func (r *recordingEmitter) Emit(evt progress.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recordingEmitter) Events() []progress.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]progress.Event(nil), r.events...)
}

func (r *recordingEmitter) Stages() []progress.Stage {
	var out []progress.Stage
	for _, e := range r.Events() {
		out = append(out, e.Stage)
	}
	return out
}

type memWriter struct {
	records []any
	failAt  int
}

func (m *memWriter) Write(v any) error {
	if m.failAt > 0 && len(m.records)+1 == m.failAt {
		return errors.New("disk full")
	}
	m.records = append(m.records, v)
	return nil
}
