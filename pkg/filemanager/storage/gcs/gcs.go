package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/tendant/filemanager/pkg/filemanager"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// Config options for the Google Cloud Storage backend
type Config struct {
	Bucket string

	// CredentialsFile is a service account key file. Application default
	// credentials are used when empty.
	CredentialsFile string

	// SignerEmail and SignerPrivateKey sign URLs locally. Literal \n
	// sequences in the key are turned into newlines. When empty the client
	// signs through the IAM API.
	SignerEmail      string
	SignerPrivateKey string

	// ClientOptions are appended to the options derived from the fields above
	ClientOptions []option.ClientOption
}

// Backend is a GCS implementation of filemanager.ObjectStore
type Backend struct {
	client      *storage.Client
	bucket      *storage.BucketHandle
	bucketName  string
	signerEmail string
	signerKey   []byte
}

// New creates a new GCS backend
func New(ctx context.Context, config Config) (*Backend, error) {
	if config.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}

	var opts []option.ClientOption
	if config.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(config.CredentialsFile))
	}
	opts = append(opts, config.ClientOptions...)

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gcs client: %w", err)
	}

	b := &Backend{
		client:      client,
		bucket:      client.Bucket(config.Bucket),
		bucketName:  config.Bucket,
		signerEmail: config.SignerEmail,
	}
	if config.SignerPrivateKey != "" {
		b.signerKey = []byte(strings.ReplaceAll(config.SignerPrivateKey, `\n`, "\n"))
	}
	return b, nil
}

// Close releases the underlying client
func (b *Backend) Close() error {
	return b.client.Close()
}

func (b *Backend) wrap(op, key string, err error) error {
	if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
		return fmt.Errorf("gcs %s %s: %w", op, key, filemanager.ErrObjectNotFound)
	}
	return fmt.Errorf("gcs %s %s: %w", op, key, err)
}

func (b *Backend) Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	// Cancelling the writer's context before Close aborts the upload, so a
	// failed read never commits a partial object.
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := b.bucket.Object(key).NewWriter(wctx)
	w.ContentType = contentType

	if _, err := io.Copy(w, reader); err != nil {
		cancel()
		w.Close()
		return fmt.Errorf("failed to upload to gcs: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to upload to gcs: %w", err)
	}
	return nil
}

func (b *Backend) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	r, err := b.bucket.Object(key).NewReader(ctx)
	if err != nil {
		return nil, b.wrap("get", key, err)
	}
	return r, nil
}

func (b *Backend) Head(ctx context.Context, key string) (*filemanager.ObjectInfo, error) {
	attrs, err := b.bucket.Object(key).Attrs(ctx)
	if err != nil {
		return nil, b.wrap("head", key, err)
	}
	info := infoOf(attrs)
	return &info, nil
}

func (b *Backend) Delete(ctx context.Context, key string) error {
	if err := b.bucket.Object(key).Delete(ctx); err != nil {
		return b.wrap("delete", key, err)
	}
	return nil
}

// PresignGet returns a V4 signed URL
func (b *Backend) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	opts := &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  "GET",
		Expires: time.Now().Add(ttl),
	}
	if b.signerEmail != "" && len(b.signerKey) > 0 {
		opts.GoogleAccessID = b.signerEmail
		opts.PrivateKey = b.signerKey
	}

	url, err := b.bucket.SignedURL(key, opts)
	if err != nil {
		return "", fmt.Errorf("failed to generate signed download URL: %w", err)
	}
	return url, nil
}

func (b *Backend) List(ctx context.Context, prefix string) ([]filemanager.ObjectInfo, error) {
	it := b.bucket.Objects(ctx, &storage.Query{Prefix: prefix})

	var infos []filemanager.ObjectInfo
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list gcs objects: %w", err)
		}
		infos = append(infos, infoOf(attrs))
	}
	return infos, nil
}

func infoOf(attrs *storage.ObjectAttrs) filemanager.ObjectInfo {
	return filemanager.ObjectInfo{
		Key:         attrs.Name,
		Size:        attrs.Size,
		ContentType: attrs.ContentType,
		UpdatedAt:   attrs.Updated,
		ETag:        attrs.Etag,
	}
}
