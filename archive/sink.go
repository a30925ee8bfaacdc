package archive

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	kerrors "github.com/bob-anderson-ok/kilonovagen/internal/errors"
)

// Sink receives finished partition files and reports where each one was stored.
type Sink interface {
	Put(ctx context.Context, localPath string) (string, error)
}

// ObjectStoreConfig locates an S3 compatible bucket.
type ObjectStoreConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	Region    string
	UseSSL    bool
}

// Validate reports a configuration error when a required field is missing.
func (c ObjectStoreConfig) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return kerrors.Configuration("object_store.endpoint is required")
	}
	if strings.TrimSpace(c.Bucket) == "" {
		return kerrors.Configuration("object_store.bucket is required")
	}
	if c.AccessKey == "" || c.SecretKey == "" {
		return kerrors.Configuration("object_store access and secret keys are required")
	}
	return nil
}

// ObjectStoreSink uploads partition files to a bucket under an optional key prefix.
type ObjectStoreSink struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewObjectStoreSink connects to the store and creates the bucket if it is missing.
func NewObjectStoreSink(ctx context.Context, cfg ObjectStoreConfig) (*ObjectStoreSink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.UseSSL,
		Region:    cfg.Region,
		Transport: newTransport(),
	})
	if err != nil {
		return nil, kerrors.WithCode(kerrors.CodeConfiguration, err, "creating object store client")
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, kerrors.WithCode(kerrors.CodeIO, err, fmt.Sprintf("checking bucket %s", cfg.Bucket))
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, kerrors.WithCode(kerrors.CodeIO, err, fmt.Sprintf("creating bucket %s", cfg.Bucket))
		}
	}

	return &ObjectStoreSink{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

// Key returns the object key a local file is stored under.
func (s *ObjectStoreSink) Key(localPath string) string {
	return objectKey(s.prefix, localPath)
}

func objectKey(prefix, localPath string) string {
	name := filepath.Base(localPath)
	if prefix == "" {
		return name
	}
	return path.Join(strings.Trim(prefix, "/"), name)
}

// Put uploads the file at localPath and returns its object key.
func (s *ObjectStoreSink) Put(ctx context.Context, localPath string) (string, error) {
	key := s.Key(localPath)
	contentType := "application/x-ndjson"
	if compressed(localPath) {
		contentType = "application/zstd"
	}
	_, err := s.client.FPutObject(ctx, s.bucket, key, localPath, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", kerrors.WithCode(kerrors.CodeIO, err, fmt.Sprintf("uploading %s to %s", localPath, s.bucket))
	}
	return key, nil
}

func newTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
