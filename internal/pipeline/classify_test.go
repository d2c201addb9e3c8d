package pipeline

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	idgen "github.com/JakeFAU/homepage-tone/internal/id/uuid"
	"github.com/JakeFAU/homepage-tone/internal/progress"
	"github.com/JakeFAU/homepage-tone/internal/record"
	"github.com/JakeFAU/homepage-tone/internal/verdict"
)

type stubVerdicter struct {
	mu    sync.Mutex
	texts []string
	fn    func(text string) (record.Verdict, error)
}

func (s *stubVerdicter) Classify(_ context.Context, text string) (record.Verdict, error) {
	s.mu.Lock()
	s.texts = append(s.texts, text)
	s.mu.Unlock()
	return s.fn(text)
}

func (s *stubVerdicter) Texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.texts...)
}

func newTestClassifier(t *testing.T, model Verdicter, cfg ClassifyConfig) (*Classifier, *recordingEmitter, *bytes.Buffer) {
	t.Helper()
	em := &recordingEmitter{}
	var stdout bytes.Buffer
	c, err := NewClassifier(model, cfg, Deps{
		Clock:   newFakeClock(),
		Emitter: em,
		IDs:     idgen.Fixed(testRunID),
		Stdout:  &stdout,
	})
	require.NoError(t, err)
	return c, em, &stdout
}

const classifyInput = `{"url":"https://a.example/","title":"A","text":"Vote for &amp; support   our candidate","word_count":5,"fetched_at":"2024-05-01T12:00:00Z","status":200}

{"url":"https://b.example/","title":null,"text":"  <|im_start|>  ","word_count":1,"fetched_at":"2024-05-01T12:00:01Z","status":200}
{"url":"https://c.example/","title":"C","text":"Office hours are 9 to 5","word_count":6,"fetched_at":"2024-05-01T12:00:02Z","status":200}
`

func TestClassifierRun(t *testing.T) {
	t.Parallel()

	model := &stubVerdicter{fn: func(text string) (record.Verdict, error) {
		if strings.Contains(text, "candidate") {
			return record.Verdict{Label: record.LabelPartisan, Score: 1, Rationale: "urges a vote"}, nil
		}
		return record.Verdict{Label: record.LabelNeutral, Score: 0, Rationale: "service info"}, nil
	}}
	c, em, stdout := newTestClassifier(t, model, ClassifyConfig{MaxChars: 100})
	out := &memWriter{}

	sum, err := c.Run(context.Background(), record.NewReader(strings.NewReader(classifyInput)), out)
	require.NoError(t, err)
	assert.Equal(t, 3, sum.OK)
	assert.Equal(t, 3, sum.Total)

	assert.Equal(t, []string{"Vote for & support our candidate", "Office hours are 9 to 5"}, model.Texts(),
		"sanitized text is sent and empty text skips the model")

	require.Len(t, out.records, 3)
	a := out.records[0].(record.Augmented)
	assert.Equal(t, "https://a.example/", a.URL)
	assert.Equal(t, "Vote for &amp; support   our candidate", a.Text, "stored text is untouched")
	assert.Equal(t, record.LabelPartisan, a.Sentiment.Label)

	b := out.records[1].(record.Augmented)
	assert.Equal(t, verdict.EmptyText(), b.Sentiment)
	assert.Nil(t, b.Title)

	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	assert.Equal(t, []string{
		"[1] done https://a.example/ partisan 1.0",
		"[2] done https://b.example/ unknown 0.0",
		"[3] done https://c.example/ neutral 0.0",
	}, lines)

	assert.Equal(t, []progress.Stage{
		progress.StageRunStart,
		progress.StageClassifyDone,
		progress.StageClassifyDone,
		progress.StageClassifyDone,
		progress.StageRunDone,
	}, em.Stages())
	for _, evt := range em.Events() {
		assert.NoError(t, evt.Validate(), "event %s", evt.Stage)
	}
}

func TestClassifierRunFailFast(t *testing.T) {
	t.Parallel()

	model := &stubVerdicter{fn: func(string) (record.Verdict, error) {
		return record.Verdict{}, errors.New("connection refused")
	}}
	c, _, _ := newTestClassifier(t, model, ClassifyConfig{})
	out := &memWriter{}

	sum, err := c.Run(context.Background(), record.NewReader(strings.NewReader(classifyInput)), out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "classify https://a.example/")
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, 0, sum.OK)
	assert.Equal(t, 1, sum.Total)
	assert.Empty(t, out.records)
}

func TestClassifierRunContinueOnError(t *testing.T) {
	t.Parallel()

	model := &stubVerdicter{fn: func(text string) (record.Verdict, error) {
		if strings.Contains(text, "candidate") {
			return record.Verdict{}, errors.New("status 500")
		}
		return record.Verdict{Label: record.LabelNeutral}, nil
	}}
	c, em, _ := newTestClassifier(t, model, ClassifyConfig{ContinueOnError: true})
	out := &memWriter{}

	input := classifyInput + "{not json}\n"
	sum, err := c.Run(context.Background(), record.NewReader(strings.NewReader(input)), out)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.OK)
	assert.Equal(t, 4, sum.Total, "undecodable lines count toward the total")

	require.Len(t, out.records, 3)
	a := out.records[0].(record.Augmented)
	assert.Equal(t, record.LabelUnknown, a.Sentiment.Label)
	assert.Equal(t, "error: status 500", a.Sentiment.Rationale)

	assert.Contains(t, em.Stages(), progress.StageClassifyError)
}

func TestClassifierRunBadLineFailFast(t *testing.T) {
	t.Parallel()

	model := &stubVerdicter{fn: func(string) (record.Verdict, error) {
		return record.Verdict{Label: record.LabelNeutral}, nil
	}}
	c, _, _ := newTestClassifier(t, model, ClassifyConfig{})

	_, err := c.Run(context.Background(), record.NewReader(strings.NewReader("{oops\n")), &memWriter{})
	var lineErr *record.LineError
	require.ErrorAs(t, err, &lineErr)
	assert.Equal(t, 1, lineErr.Line)
}

func TestClassifierRunCanceledIgnoresContinueOnError(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	model := &stubVerdicter{fn: func(string) (record.Verdict, error) {
		cancel()
		return record.Verdict{}, context.Canceled
	}}
	c, _, _ := newTestClassifier(t, model, ClassifyConfig{ContinueOnError: true})
	out := &memWriter{}

	_, err := c.Run(ctx, record.NewReader(strings.NewReader(classifyInput)), out)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, out.records)
}

func TestClassifierRunWriteError(t *testing.T) {
	t.Parallel()

	model := &stubVerdicter{fn: func(string) (record.Verdict, error) {
		return record.Verdict{Label: record.LabelNeutral}, nil
	}}
	c, _, _ := newTestClassifier(t, model, ClassifyConfig{ContinueOnError: true})

	_, err := c.Run(context.Background(), record.NewReader(strings.NewReader(classifyInput)), &memWriter{failAt: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestNewClassifierRequiresModel(t *testing.T) {
	t.Parallel()

	_, err := NewClassifier(nil, ClassifyConfig{}, Deps{})
	assert.Error(t, err)
}
