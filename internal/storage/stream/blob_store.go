// Package stream provides a BlobStore that writes every object to one io.Writer.
package stream

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// BlobStore copies objects to an underlying writer such as os.Stdout.
type BlobStore struct {
	mu   sync.Mutex
	w    io.Writer
	name string
}

// New wraps w. name appears in the returned URIs.
func New(w io.Writer, name string) *BlobStore {
	return &BlobStore{w: w, name: name}
}

// PutObject copies r to the writer followed by a newline and returns a
// stream:// URI. The object path is informational only.
func (s *BlobStore) PutObject(_ context.Context, _ string, _ string, r io.Reader) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := io.Copy(s.w, r); err != nil {
		return "", fmt.Errorf("copy to %s: %w", s.name, err)
	}
	if _, err := io.WriteString(s.w, "\n"); err != nil {
		return "", fmt.Errorf("copy to %s: %w", s.name, err)
	}
	return fmt.Sprintf("stream://%s", s.name), nil
}
