package objectcache

import (
	"context"
	"fmt"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
)

// AzureBlobBackend uploads through the teacher's own azblob client
// rather than introducing a new storage SDK for the same concern.
type AzureBlobBackend struct {
	client    *azblob.Client
	container string
}

func NewAzureBlobBackend(client *azblob.Client, container string) *AzureBlobBackend {
	return &AzureBlobBackend{client: client, container: container}
}

func (b *AzureBlobBackend) Name() string { return "azblob" }

func (b *AzureBlobBackend) Put(ctx context.Context, key string, data io.Reader, size int64) (string, error) {
	_, err := b.client.UploadStream(ctx, b.container, key, data, nil)
	if err != nil {
		return "", fmt.Errorf("objectcache: azblob upload: %w", err)
	}
	return fmt.Sprintf("%s/%s/%s", b.client.URL(), b.container, key), nil
}
