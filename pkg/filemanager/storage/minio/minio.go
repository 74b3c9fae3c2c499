package minio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/tendant/filemanager/pkg/filemanager"
)

// Config options for the MinIO backend
type Config struct {
	Endpoint        string // "host:port" or "http(s)://host:port"
	Bucket          string
	Region          string
	AccessKeyID     string
	SecretAccessKey string

	// UseSSL forces TLS when Endpoint carries no scheme
	UseSSL bool

	// CreateBucketIfNotExist creates the bucket on startup; otherwise a
	// missing bucket is an error
	CreateBucketIfNotExist bool
}

// Backend is a MinIO implementation of filemanager.ObjectStore
type Backend struct {
	client *minio.Client
	bucket string
}

// normaliseEndpoint accepts either "minio:9000" or "http://minio:9000"
func normaliseEndpoint(raw string, useSSL bool) (endpoint string, secure bool, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false, fmt.Errorf("empty endpoint")
	}

	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", false, err
		}
		if u.Host == "" {
			return "", false, fmt.Errorf("invalid endpoint %q", raw)
		}
		if u.Path != "" && u.Path != "/" {
			return "", false, fmt.Errorf("endpoint must not contain a path")
		}
		return u.Host, u.Scheme == "https", nil
	}

	return raw, useSSL, nil
}

// New creates a MinIO backend and checks the bucket
func New(ctx context.Context, config Config) (*Backend, error) {
	if config.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}
	if config.AccessKeyID == "" || config.SecretAccessKey == "" {
		return nil, errors.New("access key and secret key are required")
	}

	endpoint, secure, err := normaliseEndpoint(config.Endpoint, config.UseSSL)
	if err != nil {
		return nil, err
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKeyID, config.SecretAccessKey, ""),
		Secure: secure,
		Region: config.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	b := &Backend{client: client, bucket: config.Bucket}
	if err := b.ensureBucket(ctx, config); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Backend) ensureBucket(ctx context.Context, config Config) error {
	exists, err := b.client.BucketExists(ctx, b.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if exists {
		return nil
	}
	if !config.CreateBucketIfNotExist {
		return fmt.Errorf("minio bucket does not exist: %s", b.bucket)
	}

	if err := b.client.MakeBucket(ctx, b.bucket, minio.MakeBucketOptions{Region: config.Region}); err != nil {
		exists, errExists := b.client.BucketExists(ctx, b.bucket)
		if errExists == nil && exists {
			return nil
		}
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

func isNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchKey", "NoSuchBucket", "NotFound":
		return true
	}
	return resp.StatusCode == http.StatusNotFound
}

func (b *Backend) wrap(op, key string, err error) error {
	if isNotFound(err) {
		return fmt.Errorf("minio %s %s: %w", op, key, filemanager.ErrObjectNotFound)
	}
	return fmt.Errorf("minio %s %s: %w", op, key, err)
}

func (b *Backend) Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	_, err := b.client.PutObject(ctx, b.bucket, key, reader, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("failed to upload to minio: %w", err)
	}
	return nil
}

// Get streams an object. GetObject is lazy, so Stat surfaces missing keys
// before the reader is handed out.
func (b *Backend) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := b.client.GetObject(ctx, b.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, b.wrap("get", key, err)
	}
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, b.wrap("get", key, err)
	}
	return obj, nil
}

func (b *Backend) Head(ctx context.Context, key string) (*filemanager.ObjectInfo, error) {
	stat, err := b.client.StatObject(ctx, b.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return nil, b.wrap("head", key, err)
	}
	info := infoOf(stat)
	return &info, nil
}

func (b *Backend) Delete(ctx context.Context, key string) error {
	if err := b.client.RemoveObject(ctx, b.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return b.wrap("delete", key, err)
	}
	return nil
}

func (b *Backend) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	u, err := b.client.PresignedGetObject(ctx, b.bucket, key, ttl, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned download URL: %w", err)
	}
	return u.String(), nil
}

func (b *Backend) List(ctx context.Context, prefix string) ([]filemanager.ObjectInfo, error) {
	var infos []filemanager.ObjectInfo
	for obj := range b.client.ListObjects(ctx, b.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list minio objects: %w", obj.Err)
		}
		infos = append(infos, infoOf(obj))
	}
	return infos, nil
}

// Ping checks the bucket is reachable
func (b *Backend) Ping(ctx context.Context) error {
	_, err := b.client.BucketExists(ctx, b.bucket)
	return err
}

func infoOf(obj minio.ObjectInfo) filemanager.ObjectInfo {
	return filemanager.ObjectInfo{
		Key:         obj.Key,
		Size:        obj.Size,
		ContentType: obj.ContentType,
		UpdatedAt:   obj.LastModified,
		ETag:        strings.Trim(obj.ETag, "\""),
	}
}
