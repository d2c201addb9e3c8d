package record

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Mode selects how Create treats an existing file.
type Mode int

const (
	// Append adds records after existing content.
	Append Mode = iota
	// Truncate discards existing content.
	Truncate
)

// Writer writes one JSON object per line. It is not safe for concurrent use.
type Writer struct {
	path string
	f    *os.File
	buf  *bufio.Writer
	enc  *json.Encoder
}

// Create opens path for writing, creating parent directories as needed.
func Create(path string, mode Mode) (*Writer, error) {
	if path == "" {
		return nil, errors.New("record: output path is required")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create output dir: %w", err)
		}
	}
	flags := os.O_CREATE | os.O_WRONLY
	switch mode {
	case Append:
		flags |= os.O_APPEND
	case Truncate:
		flags |= os.O_TRUNC
	default:
		return nil, fmt.Errorf("record: unknown mode %d", mode)
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open output %s: %w", path, err)
	}
	buf := bufio.NewWriter(f)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	return &Writer{path: path, f: f, buf: buf, enc: enc}, nil
}

// Path returns the file being written.
func (w *Writer) Path() string {
	return w.path
}

// Write encodes v as a single line and flushes it, so a crash loses at most
// the record in flight.
func (w *Writer) Write(v any) error {
	if err := w.enc.Encode(v); err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	if err := w.buf.Flush(); err != nil {
		return fmt.Errorf("flush record: %w", err)
	}
	return nil
}

// Close flushes and closes the file.
func (w *Writer) Close() error {
	return errors.Join(w.buf.Flush(), w.f.Close())
}

// maxLine bounds a single JSONL record; rendered homepages can be large.
const maxLine = 64 << 20

// Reader decodes Extracted records line by line.
type Reader struct {
	sc   *bufio.Scanner
	line int
}

// NewReader wraps r.
func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	return &Reader{sc: sc}
}

// Next returns the next record. It returns io.EOF after the last one. Blank
// lines are skipped.
func (r *Reader) Next() (Extracted, error) {
	for r.sc.Scan() {
		r.line++
		raw := r.sc.Bytes()
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}
		var rec Extracted
		if err := json.Unmarshal(raw, &rec); err != nil {
			return Extracted{}, &LineError{Line: r.line, Err: err}
		}
		return rec, nil
	}
	if err := r.sc.Err(); err != nil {
		return Extracted{}, fmt.Errorf("read records: %w", err)
	}
	return Extracted{}, io.EOF
}

// Line returns the number of the line last read.
func (r *Reader) Line() int {
	return r.line
}

// LineError reports a record that could not be decoded.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("decode record on line %d: %v", e.Line, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}
