package memory_test

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/filemanager/pkg/filemanager"
	memorystorage "github.com/tendant/filemanager/pkg/filemanager/storage/memory"
)

func TestMemoryBackend(t *testing.T) {
	backend := memorystorage.New("exams")
	ctx := context.Background()
	testKey := "1/a.pdf"
	testData := "dummy pdf content"

	t.Run("Put", func(t *testing.T) {
		err := backend.Put(ctx, testKey, strings.NewReader(testData), int64(len(testData)), filemanager.PDFContentType)
		assert.NoError(t, err)
	})

	t.Run("Put_SizeMismatch", func(t *testing.T) {
		err := backend.Put(ctx, "1/short.pdf", strings.NewReader("abc"), 10, filemanager.PDFContentType)
		assert.Error(t, err)
	})

	t.Run("Head", func(t *testing.T) {
		info, err := backend.Head(ctx, testKey)
		require.NoError(t, err)
		assert.Equal(t, testKey, info.Key)
		assert.Equal(t, int64(len(testData)), info.Size)
		assert.Equal(t, filemanager.PDFContentType, info.ContentType)
		assert.NotEmpty(t, info.ETag)
	})

	t.Run("Get", func(t *testing.T) {
		reader, err := backend.Get(ctx, testKey)
		require.NoError(t, err)
		defer reader.Close()

		data, err := io.ReadAll(reader)
		require.NoError(t, err)
		assert.Equal(t, testData, string(data))
	})

	t.Run("PresignGet", func(t *testing.T) {
		raw, err := backend.PresignGet(ctx, testKey, time.Hour)
		require.NoError(t, err)

		u, err := url.Parse(raw)
		require.NoError(t, err)
		assert.Equal(t, "memory", u.Scheme)
		assert.Equal(t, "exams", u.Host)
		assert.Equal(t, "/1/a.pdf", u.Path)
		assert.NotEmpty(t, u.Query().Get("expires"))
	})

	t.Run("List", func(t *testing.T) {
		require.NoError(t, backend.Put(ctx, "2/b.pdf", strings.NewReader("x"), 1, ""))

		all, err := backend.List(ctx, "")
		require.NoError(t, err)
		assert.Len(t, all, 2)

		owner1, err := backend.List(ctx, "1/")
		require.NoError(t, err)
		require.Len(t, owner1, 1)
		assert.Equal(t, testKey, owner1[0].Key)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, backend.Delete(ctx, testKey))

		_, err := backend.Head(ctx, testKey)
		assert.ErrorIs(t, err, filemanager.ErrObjectNotFound)
	})

	t.Run("ErrorCases", func(t *testing.T) {
		missing := "9/missing.pdf"

		_, err := backend.Head(ctx, missing)
		assert.ErrorIs(t, err, filemanager.ErrObjectNotFound)

		_, err = backend.Get(ctx, missing)
		assert.ErrorIs(t, err, filemanager.ErrObjectNotFound)

		err = backend.Delete(ctx, missing)
		assert.ErrorIs(t, err, filemanager.ErrObjectNotFound)
	})
}

func TestMemoryBackendConcurrency(t *testing.T) {
	backend := memorystorage.New("")
	ctx := context.Background()

	const numGoroutines = 10
	var wg sync.WaitGroup
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("%d/file.pdf", i)
			data := fmt.Sprintf("content %d", i)
			assert.NoError(t, backend.Put(ctx, key, strings.NewReader(data), int64(len(data)), ""))
			_, err := backend.Head(ctx, key)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, numGoroutines, backend.Len())
}
