// Package urllist reads newline-separated URL lists.
package urllist

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Stdin is the path that selects standard input.
const Stdin = "-"

// maxLineBytes bounds a single input line.
const maxLineBytes = 1 << 20

// Read returns the non-blank lines of r, trimmed of surrounding whitespace.
// Order and duplicates are preserved.
func Read(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var urls []string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan url list: %w", err)
	}
	return urls, nil
}

// ReadFile reads the list at path, or standard input when path is "-".
func ReadFile(path string) ([]string, error) {
	if path == Stdin {
		return Read(os.Stdin)
	}
	// #nosec G304 -- the input path is chosen by the operator.
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open url list: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only handle

	urls, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return urls, nil
}
