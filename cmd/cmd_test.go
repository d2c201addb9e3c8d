package cmd

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/homepage-tone/internal/config"
	"github.com/JakeFAU/homepage-tone/internal/pipeline"
	"github.com/JakeFAU/homepage-tone/internal/record"
	"github.com/JakeFAU/homepage-tone/internal/render"
)

type fakeApp struct {
	cfg      config.Config
	renderer pipeline.Renderer
	model    pipeline.Verdicter
	closed   int
}

func (f *fakeApp) Close(context.Context) error { f.closed++; return nil }
func (f *fakeApp) GetConfig() config.Config    { return f.cfg }
func (f *fakeApp) GetLogger() *zap.Logger      { return zap.NewNop() }

func (f *fakeApp) PipelineDeps(stdout io.Writer) pipeline.Deps {
	return pipeline.Deps{Stdout: stdout}
}

func (f *fakeApp) NewRenderer() (pipeline.Renderer, error) {
	if f.renderer == nil {
		return nil, errors.New("no renderer")
	}
	return f.renderer, nil
}

func (f *fakeApp) NewVerdicter() (pipeline.Verdicter, error) {
	if f.model == nil {
		return nil, errors.New("no model")
	}
	return f.model, nil
}

type constVerdicter record.Verdict

func (v constVerdicter) Classify(context.Context, string) (record.Verdict, error) {
	return record.Verdict(v), nil
}

func newFakeApp(t *testing.T) *fakeApp {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	dir := t.TempDir()
	cfg.Fetch.Out = filepath.Join(dir, "homepages.jsonl")
	cfg.Fetch.Sleep = 0
	cfg.Classifier.In = cfg.Fetch.Out
	cfg.Classifier.Out = filepath.Join(dir, "with_sentiment.jsonl")

	fake := render.NewFake(map[string]render.FakePage{
		"https://a.example/": {HTML: "<title>A</title><p>one two</p>"},
	})
	r, err := render.New(fake, render.Config{Settle: 0}, nil)
	require.NoError(t, err)
	return &fakeApp{
		cfg:      cfg,
		renderer: r,
		model:    constVerdicter{Label: record.LabelNeutral, Rationale: "informational"},
	}
}

func execute(t *testing.T, a *fakeApp, stdin string, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	factory := func(string) (App, error) { return a, nil }
	code := run(context.Background(), factory, args, strings.NewReader(stdin), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func TestFetchThenClassify(t *testing.T) {
	t.Parallel()

	a := newFakeApp(t)
	urlList := filepath.Join(t.TempDir(), "urls.txt")
	require.NoError(t, os.WriteFile(urlList, []byte("# sites\nhttps://a.example/\n\nhttps://a.example/\n"), 0o600))

	code, stdout, stderr := execute(t, a, "", "fetch", urlList)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "[1/1] OK https://a.example/ -> 3 words")
	assert.Contains(t, stdout, "Done. 1/1 succeeded. Output -> "+a.cfg.Fetch.Out)
	assert.Len(t, readLines(t, a.cfg.Fetch.Out), 1)

	code, stdout, stderr = execute(t, a, "", "classify")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "[1] done https://a.example/ neutral 0.0")
	assert.Contains(t, stdout, "Done. 1/1 succeeded. Output -> "+a.cfg.Classifier.Out)

	lines := readLines(t, a.cfg.Classifier.Out)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], `"sentiment_llm":{"label":"neutral","score":0.0,"rationale":"informational"}`)
	assert.Equal(t, 2, a.closed)
}

func TestFetchAppendsAndClassifyTruncates(t *testing.T) {
	t.Parallel()

	a := newFakeApp(t)
	for range 2 {
		code, _, stderr := execute(t, a, "https://a.example/\n", "fetch")
		require.Equal(t, 0, code, stderr)
	}
	assert.Len(t, readLines(t, a.cfg.Fetch.Out), 2)

	for range 2 {
		code, _, stderr := execute(t, a, "", "classify")
		require.Equal(t, 0, code, stderr)
	}
	assert.Len(t, readLines(t, a.cfg.Classifier.Out), 2)
}

func TestFetchFlagsOverrideConfig(t *testing.T) {
	t.Parallel()

	a := newFakeApp(t)
	out := filepath.Join(t.TempDir(), "custom.jsonl")
	code, stdout, stderr := execute(t, a, "https://a.example/\n", "fetch", "--out", out, "--sleep", "0")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "Output -> "+out)
	assert.Len(t, readLines(t, out), 1)
	assert.NoFileExists(t, a.cfg.Fetch.Out)
}

func TestFetchNoURLsExitsTwo(t *testing.T) {
	t.Parallel()

	a := newFakeApp(t)
	code, _, stderr := execute(t, a, "\n# nothing here\n", "fetch")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "no URLs provided")
	assert.Equal(t, 1, a.closed)
}

func TestFetchRejectsNegativeSleep(t *testing.T) {
	t.Parallel()

	code, _, stderr := execute(t, newFakeApp(t), "https://a.example/\n", "fetch", "--sleep", "-1")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "--sleep")
}

func TestClassifyMissingInput(t *testing.T) {
	t.Parallel()

	a := newFakeApp(t)
	code, _, stderr := execute(t, a, "", "classify", "--in", filepath.Join(t.TempDir(), "missing.jsonl"))
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "open input")
}

func TestClassifyRejectsZeroMaxChars(t *testing.T) {
	t.Parallel()

	code, _, stderr := execute(t, newFakeApp(t), "", "classify", "--max-chars", "0")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "--max-chars")
}

func TestAppFactoryFailure(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	factory := func(string) (App, error) { return nil, errors.New("bad config") }
	code := run(context.Background(), factory, []string{"fetch"}, strings.NewReader(""), &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "failed to initialize application services: bad config")
}

func TestNewAppLoadsConfig(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("renderer:\n  engine: static\nlogging:\n  development: false\n  level: error\n"), 0o600))

	a, err := newApp(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })
	assert.Equal(t, "static", a.GetConfig().Renderer.Engine)

	_, err = newApp(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestExitErrorUnwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("boom")
	err := error(&ExitError{Code: 2, Err: cause})
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "boom", err.Error())
}
