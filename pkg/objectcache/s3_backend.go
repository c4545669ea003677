package objectcache

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
)

// S3Backend uploads through minio-go, the teacher's own S3-compatible
// client, used here against an S3-compatible endpoint such as Cloudflare
// R2, mirroring r2_cache.py's own choice of an S3-compatible API over a
// cloud-specific SDK.
type S3Backend struct {
	client   *minio.Client
	bucket   string
	publicURLBase string
}

func NewS3Backend(client *minio.Client, bucket, publicURLBase string) *S3Backend {
	return &S3Backend{client: client, bucket: bucket, publicURLBase: publicURLBase}
}

func (b *S3Backend) Name() string { return "s3" }

func (b *S3Backend) Put(ctx context.Context, key string, data io.Reader, size int64) (string, error) {
	_, err := b.client.PutObject(ctx, b.bucket, key, data, size, minio.PutObjectOptions{})
	if err != nil {
		return "", fmt.Errorf("objectcache: s3 upload: %w", err)
	}
	return fmt.Sprintf("%s/%s/%s", b.publicURLBase, b.bucket, key), nil
}
