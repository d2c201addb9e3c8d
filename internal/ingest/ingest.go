// Package ingest reads the list of URLs a fetch run works through.
package ingest

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrNoInput is returned when the source yields no usable URLs.
var ErrNoInput = errors.New("no URLs provided")

// Read returns the unique URLs in r in order of first appearance. Lines are
// trimmed; blank lines and lines starting with '#' are skipped. URLs are
// compared verbatim, so case, scheme and trailing slashes all count.
func Read(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	seen := make(map[string]struct{})
	var urls []string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read url list: %w", err)
	}
	if len(urls) == 0 {
		return nil, ErrNoInput
	}
	return urls, nil
}

// ReadFile opens path and delegates to Read.
func ReadFile(path string) ([]string, error) {
	// #nosec G304 -- the url list path is operator supplied.
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open url list %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck // read-only handle
	return Read(f)
}
