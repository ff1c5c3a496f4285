// Package storage resolves report destinations to blob stores.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	gcsclient "cloud.google.com/go/storage"

	"github.com/JakeFAU/urlprobe/internal/storage/gcs"
	"github.com/JakeFAU/urlprobe/internal/storage/local"
	"github.com/JakeFAU/urlprobe/internal/storage/stream"
)

// StdoutDestination selects the stream store writing to standard output.
const StdoutDestination = "-"

// BlobStore persists a named object and returns a URI describing where it went.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}

// Closer releases resources held by a store opened with Open.
type Closer func() error

func nopCloser() error { return nil }

// Open picks a blob store for dest and returns it with the object name to
// write. dest is "-", a gs://bucket/object URI, or a local file path.
func Open(ctx context.Context, dest string) (BlobStore, string, Closer, error) {
	dest = strings.TrimSpace(dest)
	switch {
	case dest == "":
		return nil, "", nil, fmt.Errorf("destination is required")
	case dest == StdoutDestination:
		return stream.New(os.Stdout, "stdout"), "stdout", nopCloser, nil
	case strings.HasPrefix(dest, "gs://"):
		bucket, object, err := ParseGCSURI(dest)
		if err != nil {
			return nil, "", nil, err
		}
		client, err := gcsclient.NewClient(ctx)
		if err != nil {
			return nil, "", nil, fmt.Errorf("create storage client: %w", err)
		}
		store, err := gcs.New(client, gcs.Config{Bucket: bucket})
		if err != nil {
			_ = client.Close()
			return nil, "", nil, fmt.Errorf("create gcs store: %w", err)
		}
		return store, object, client.Close, nil
	default:
		store, err := local.New(local.Config{BaseDir: filepath.Dir(dest)})
		if err != nil {
			return nil, "", nil, fmt.Errorf("create local store: %w", err)
		}
		return store, filepath.Base(dest), nopCloser, nil
	}
}

// ParseGCSURI splits gs://bucket/object into its parts.
func ParseGCSURI(uri string) (bucket, object string, err error) {
	rest, ok := strings.CutPrefix(uri, "gs://")
	if !ok {
		return "", "", fmt.Errorf("not a gs:// uri: %q", uri)
	}
	bucket, object, _ = strings.Cut(rest, "/")
	object = strings.TrimLeft(object, "/")
	if bucket == "" || object == "" {
		return "", "", fmt.Errorf("gs uri %q must name a bucket and an object", uri)
	}
	return bucket, object, nil
}
