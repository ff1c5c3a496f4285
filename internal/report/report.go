// Package report encodes probe results and hands them to a blob store.
package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/JakeFAU/urlprobe/internal/probe"
	"github.com/JakeFAU/urlprobe/internal/storage"
)

// ContentType is the MIME type of an encoded report.
const ContentType = "application/json"

// Encode renders results as a JSON array. A nil or empty slice encodes as [].
func Encode(results []probe.Result, pretty bool) ([]byte, error) {
	if results == nil {
		results = []probe.Result{}
	}
	var (
		data []byte
		err  error
	)
	if pretty {
		data, err = json.MarshalIndent(results, "", "  ")
	} else {
		data, err = json.Marshal(results)
	}
	if err != nil {
		return nil, fmt.Errorf("encode results: %w", err)
	}
	return data, nil
}

// Write encodes results and stores them as object, returning the store's URI.
func Write(ctx context.Context, store storage.BlobStore, object string, results []probe.Result, pretty bool) (string, error) {
	data, err := Encode(results, pretty)
	if err != nil {
		return "", err
	}
	uri, err := store.PutObject(ctx, object, ContentType, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("write report %s: %w", object, err)
	}
	return uri, nil
}
