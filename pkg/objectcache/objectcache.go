// Package objectcache content-addresses generated media by SHA-256 and
// stores it in a blob backend, deduplicating repeat uploads via the
// upload_cache DB table. Grounded on r2_cache.py/cache.py, with two
// concrete backends lifted from the teacher's own dependency set: Azure
// Blob (github.com/Azure/azure-sdk-for-go/sdk/storage/azblob, the
// teacher's own primary transfer target) and an S3-compatible backend
// (github.com/minio/minio-go/v7, the teacher's own secondary transfer
// target, used here for Cloudflare R2 per r2_cache.py's choice of an
// S3-compatible API).
package objectcache

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"

	"github.com/yallapapi/genforge/internal/db"
)

// Backend is the narrow interface both concrete stores satisfy.
type Backend interface {
	Name() string
	Put(ctx context.Context, key string, data io.Reader, size int64) (url string, err error)
}

// Cache resolves a content hash to a cached URL, uploading through the
// configured Backend on a miss and recording the result in UploadCache.
type Cache struct {
	backend Backend
	repo    *db.UploadCacheRepo
}

func New(backend Backend, repo *db.UploadCacheRepo) *Cache {
	return &Cache{backend: backend, repo: repo}
}

// Hash computes the SHA-256 content hash used as the dedup key, mirroring
// r2_cache.py's hash-before-upload check.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// GetOrPut returns the cached URL for data's content hash if one exists;
// otherwise it uploads through the backend and records the new entry.
func (c *Cache) GetOrPut(ctx context.Context, key string, data []byte) (string, error) {
	hash := Hash(data)

	if cached, ok, err := c.repo.Lookup(ctx, hash); err != nil {
		return "", err
	} else if ok {
		return cached.URL, nil
	}

	url, err := c.backend.Put(ctx, key, bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	if err := c.repo.Insert(ctx, db.UploadCache{
		Hash:      hash,
		Backend:   c.backend.Name(),
		URL:       url,
		SizeBytes: int64(len(data)),
	}); err != nil {
		return "", err
	}

	return url, nil
}
