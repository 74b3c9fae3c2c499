package memory

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tendant/filemanager/pkg/filemanager"
)

type object struct {
	data        []byte
	contentType string
	updatedAt   time.Time
}

// Backend is an in-memory implementation of the filemanager.ObjectStore interface
type Backend struct {
	mu      sync.RWMutex
	bucket  string
	objects map[string]object
	now     func() time.Time
}

// New creates a new in-memory storage backend. The bucket name only
// appears in presigned URLs.
func New(bucket string) *Backend {
	if bucket == "" {
		bucket = "memory"
	}
	return &Backend{
		bucket:  bucket,
		objects: make(map[string]object),
		now:     time.Now,
	}
}

// Put stores content under key
func (b *Backend) Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("failed to read object %s: %w", key, err)
	}
	if size >= 0 && int64(len(data)) != size {
		return fmt.Errorf("object %s: expected %d bytes, got %d", key, size, len(data))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.objects[key] = object{data: data, contentType: contentType, updatedAt: b.now().UTC()}
	return nil
}

// Get returns the content stored under key
func (b *Backend) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	obj, exists := b.objects[key]
	if !exists {
		return nil, fmt.Errorf("%s: %w", key, filemanager.ErrObjectNotFound)
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

// Head returns metadata for the object stored under key
func (b *Backend) Head(ctx context.Context, key string) (*filemanager.ObjectInfo, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	obj, exists := b.objects[key]
	if !exists {
		return nil, fmt.Errorf("%s: %w", key, filemanager.ErrObjectNotFound)
	}
	info := infoOf(key, obj)
	return &info, nil
}

// Delete removes the object stored under key
func (b *Backend) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.objects[key]; !exists {
		return fmt.Errorf("%s: %w", key, filemanager.ErrObjectNotFound)
	}
	delete(b.objects, key)
	return nil
}

// PresignGet returns a memory:// URL carrying the expiry time. The URL is
// not served by anything; it exists so records always carry a link.
func (b *Backend) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	u := url.URL{
		Scheme:   "memory",
		Host:     b.bucket,
		Path:     "/" + key,
		RawQuery: url.Values{"expires": {b.now().Add(ttl).UTC().Format(time.RFC3339)}}.Encode(),
	}
	return u.String(), nil
}

// List returns every object whose key starts with prefix, ordered by key
func (b *Backend) List(ctx context.Context, prefix string) ([]filemanager.ObjectInfo, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var result []filemanager.ObjectInfo
	for key, obj := range b.objects {
		if strings.HasPrefix(key, prefix) {
			result = append(result, infoOf(key, obj))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Key < result[j].Key
	})
	return result, nil
}

// Len returns the number of stored objects
func (b *Backend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.objects)
}

func infoOf(key string, obj object) filemanager.ObjectInfo {
	sum := md5.Sum(obj.data)
	return filemanager.ObjectInfo{
		Key:         key,
		Size:        int64(len(obj.data)),
		ContentType: obj.contentType,
		UpdatedAt:   obj.updatedAt,
		ETag:        hex.EncodeToString(sum[:]),
	}
}
