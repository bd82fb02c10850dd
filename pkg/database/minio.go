package database

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"topli_chat/pkg/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// MinIOClient definition minio client
type MinIOClient struct {
	Client     *minio.Client
	BucketName string
	PublicURL  string
}

// NewMinIOConnection create a new minio connection have retry
func NewMinIOConnection(d MinIOConnection) (*MinIOClient, error) {
	var mc *MinIOClient
	err := d.Retry.Do("minio", func() error {
		var err error
		mc, err = NewMinioClient(d.Endpoint, d.User, d.Password, d.BucketName, d.UseSSL)
		return err
	})
	if err != nil {
		return nil, err
	}

	if d.PublicURL != "" {
		mc.PublicURL = strings.TrimRight(d.PublicURL, "/")
	}
	logger.Log.Info("minIO connected", zap.String("endpoint", d.Endpoint), zap.String("public_url", mc.PublicURL))
	return mc, nil
}

// NewMinioClient create a new minio
func NewMinioClient(endpoint, accessKey, secretKey, bucketName string, useSSL bool) (*MinIOClient, error) {
	minioClient, err := minio.New(endpoint,
		&minio.Options{
			Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
			Secure: useSSL,
		})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}

	ctx := context.Background()
	exists, err := minioClient.BucketExists(ctx, bucketName)
	if err != nil {
		return nil, fmt.Errorf("check bucket [%s]: %w", bucketName, err)
	}

	if !exists {
		if err = minioClient.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("make bucket [%s]: %w", bucketName, err)
		}
		logger.Log.Info("bucket created", zap.String("bucket", bucketName))
	}

	scheme := "http"
	if useSSL {
		scheme = "https"
	}

	return &MinIOClient{
		Client:     minioClient,
		BucketName: bucketName,
		PublicURL:  fmt.Sprintf("%s://%s", scheme, endpoint),
	}, nil
}

// PutObject upload size bytes from r under objectName, return the public url
func (m *MinIOClient) PutObject(ctx context.Context, objectName string, r io.Reader, size int64, contentType string) (string, error) {
	_, err := m.Client.PutObject(ctx, m.BucketName, objectName, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", objectName, err)
	}
	return m.ObjectURL(objectName), nil
}

// RemoveObject delete objectName from the bucket
func (m *MinIOClient) RemoveObject(ctx context.Context, objectName string) error {
	return m.Client.RemoveObject(ctx, m.BucketName, objectName, minio.RemoveObjectOptions{})
}

// ObjectURL public url of objectName: <public>/<bucket>/<object>
func (m *MinIOClient) ObjectURL(objectName string) string {
	return fmt.Sprintf("%s/%s/%s", m.PublicURL, m.BucketName, objectName)
}

// ObjectName reverse of ObjectURL
func (m *MinIOClient) ObjectName(fileURL string) (string, error) {
	u, err := url.Parse(fileURL)
	if err != nil {
		return "", err
	}
	prefix := "/" + m.BucketName + "/"
	if !strings.HasPrefix(u.Path, prefix) {
		return "", fmt.Errorf("url %s is not in bucket %s", fileURL, m.BucketName)
	}
	return strings.TrimPrefix(u.Path, prefix), nil
}

