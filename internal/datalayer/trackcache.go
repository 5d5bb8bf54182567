package datalayer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"mime"
	"path/filepath"
	"strings"

	"github.com/glizzus/dank-ditties/internal/resolver"
)

// BlobTrackCache keeps resolved tracks in blob storage so a URL is only
// downloaded once.
type BlobTrackCache struct {
	storage BlobStorage
	prefix  string
}

func NewBlobTrackCache(storage BlobStorage) *BlobTrackCache {
	return &BlobTrackCache{storage: storage, prefix: "tracks"}
}

var _ resolver.Cache = (*BlobTrackCache)(nil)

// Key is the object key of the track resolved from url.
func (c *BlobTrackCache) Key(url string) string {
	sum := sha256.Sum256([]byte(url))
	return c.prefix + "/" + hex.EncodeToString(sum[:])
}

func (c *BlobTrackCache) Load(ctx context.Context, url, dst string) (bool, error) {
	err := c.storage.FGet(ctx, c.Key(url), dst)
	if errors.Is(err, ErrBlobNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (c *BlobTrackCache) Store(ctx context.Context, url, src string) error {
	return c.storage.FPut(ctx, c.Key(url), src, PutOptions{
		ContentType: audioContentType(filepath.Ext(src)),
	})
}

var audioContentTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".ogg":  "audio/ogg",
	".opus": "audio/ogg",
	".wav":  "audio/wav",
	".webm": "audio/webm",
}

func audioContentType(ext string) string {
	if t, ok := audioContentTypes[strings.ToLower(ext)]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}
