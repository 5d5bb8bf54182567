package datalayer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
)

// PoolSnapshot saves the last imported candidate pool so the bot can still
// start when the feed is unreachable.
type PoolSnapshot struct {
	storage BlobStorage
}

func NewPoolSnapshot(storage BlobStorage) *PoolSnapshot {
	return &PoolSnapshot{storage: storage}
}

func (p *PoolSnapshot) key(name string) string {
	return "pools/" + name + ".json"
}

func (p *PoolSnapshot) Save(ctx context.Context, name string, urls []string) error {
	b, err := json.Marshal(urls)
	if err != nil {
		return err
	}
	return p.storage.Put(ctx, p.key(name), bytes.NewReader(b), PutOptions{
		Size:        int64(len(b)),
		ContentType: "application/json",
	})
}

// Load returns the saved pool. A missing snapshot is ErrBlobNotFound.
func (p *PoolSnapshot) Load(ctx context.Context, name string) ([]string, error) {
	r, err := p.storage.Get(ctx, p.key(name))
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var urls []string
	if err := json.NewDecoder(r).Decode(&urls); err != nil {
		return nil, fmt.Errorf("failed to decode pool snapshot %q: %w", name, err)
	}
	return urls, nil
}
