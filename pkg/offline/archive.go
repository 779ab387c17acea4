package offline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"flexilims/internal/blob"
	"flexilims/pkg/domain"
)

const archiveContentType = "application/json"

// Archive writes an immutable JSON copy of the document to the archive
// store under key and returns the stored object's metadata. Archives are
// create-only; reusing a key fails.
func Archive(ctx context.Context, store blob.Store, doc domain.Document, key string) (blob.Info, error) {
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return blob.Info{}, fmt.Errorf("encode document: %w", err)
	}
	return store.Put(ctx, key, bytes.NewReader(raw), blob.PutOptions{
		ContentType: archiveContentType,
	})
}

// ArchiveKey builds a timestamped archive key under the given prefix, for
// callers that archive on a schedule.
func ArchiveKey(prefix string, at time.Time) string {
	if prefix == "" {
		prefix = "flexilims"
	}
	return fmt.Sprintf("%s/%s.json", prefix, at.UTC().Format("20060102T150405Z"))
}

// LoadArchive reads a previously archived document back from the store.
func LoadArchive(ctx context.Context, store blob.Store, key string) (domain.Document, error) {
	_, body, err := store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer func() { _ = body.Close() }()
	doc := domain.Document{}
	if err := json.NewDecoder(body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode archive %s: %w", key, err)
	}
	return doc, nil
}
