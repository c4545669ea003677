package main

import (
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/yallapapi/genforge/internal/config"
)

func newAzblobClient(cfg config.Config) (*azblob.Client, error) {
	return azblob.NewClientWithNoCredential(cfg.AzureBlobAccountURL, nil)
}

func newMinioClient(cfg config.Config) (*minio.Client, error) {
	return minio.New(cfg.S3Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		Secure: true,
	})
}
