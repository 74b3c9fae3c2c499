package memory_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/filemanager/pkg/filemanager"
	"github.com/tendant/filemanager/pkg/filemanager/repo/memory"
)

func newUser(t *testing.T, repo *memory.Repository, email string) *filemanager.User {
	t.Helper()
	user := &filemanager.User{
		FullName:      "Test User",
		Email:         email,
		PasswordHash:  "hash",
		BirthDate:     time.Date(1990, 1, 2, 0, 0, 0, 0, time.UTC),
		BiologicalSex: filemanager.SexFemale,
	}
	require.NoError(t, repo.CreateUser(context.Background(), user))
	return user
}

func TestMemoryRepository_UserOperations(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()

	t.Run("CreateUser", func(t *testing.T) {
		user := newUser(t, repo, "ana@example.com")
		assert.Equal(t, int64(1), user.ID)
		assert.False(t, user.CreatedAt.IsZero())
	})

	t.Run("CreateUser_DuplicateEmail", func(t *testing.T) {
		err := repo.CreateUser(ctx, &filemanager.User{Email: "ANA@example.com"})
		assert.Error(t, err)
	})

	t.Run("GetUser", func(t *testing.T) {
		user, err := repo.GetUser(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, "ana@example.com", user.Email)
	})

	t.Run("GetUser_NotFound", func(t *testing.T) {
		user, err := repo.GetUser(ctx, 99)
		assert.Nil(t, user)
		assert.ErrorIs(t, err, filemanager.ErrUserNotFound)
		assert.ErrorIs(t, err, filemanager.ErrNotFound)
	})
}

func TestMemoryRepository_RecordOperations(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()
	owner := newUser(t, repo, "owner@example.com")
	other := newUser(t, repo, "other@example.com")

	record := &filemanager.Record{
		OwnerID:     owner.ID,
		Name:        "a.pdf",
		URL:         "memory://bucket/1/a.pdf",
		SubmittedAt: time.Now().UTC(),
	}

	t.Run("CreateRecord", func(t *testing.T) {
		require.NoError(t, repo.CreateRecord(ctx, record))
		assert.NotZero(t, record.ID)
	})

	t.Run("CreateRecord_DuplicateName", func(t *testing.T) {
		dup := &filemanager.Record{OwnerID: owner.ID, Name: "a.pdf"}
		err := repo.CreateRecord(ctx, dup)
		assert.ErrorIs(t, err, filemanager.ErrDuplicateName)
	})

	t.Run("CreateRecord_SameNameOtherOwner", func(t *testing.T) {
		r := &filemanager.Record{OwnerID: other.ID, Name: "a.pdf"}
		assert.NoError(t, repo.CreateRecord(ctx, r))
	})

	t.Run("CreateRecord_UnknownOwner", func(t *testing.T) {
		err := repo.CreateRecord(ctx, &filemanager.Record{OwnerID: 404, Name: "x.pdf"})
		assert.ErrorIs(t, err, filemanager.ErrUserNotFound)
	})

	t.Run("GetRecord", func(t *testing.T) {
		got, err := repo.GetRecord(ctx, owner.ID, record.ID)
		require.NoError(t, err)
		assert.Equal(t, record.Name, got.Name)
		assert.Equal(t, record.URL, got.URL)
	})

	t.Run("GetRecord_WrongOwner", func(t *testing.T) {
		_, err := repo.GetRecord(ctx, other.ID, record.ID)
		assert.ErrorIs(t, err, filemanager.ErrRecordNotFound)
	})

	t.Run("FindRecordByName", func(t *testing.T) {
		got, err := repo.FindRecordByName(ctx, owner.ID, "a.pdf")
		require.NoError(t, err)
		assert.Equal(t, record.ID, got.ID)

		_, err = repo.FindRecordByName(ctx, owner.ID, "b.pdf")
		assert.ErrorIs(t, err, filemanager.ErrRecordNotFound)
	})

	t.Run("ListRecords", func(t *testing.T) {
		require.NoError(t, repo.CreateRecord(ctx, &filemanager.Record{OwnerID: owner.ID, Name: "b.pdf"}))

		records, err := repo.ListRecords(ctx, owner.ID)
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, "a.pdf", records[0].Name)
		assert.Equal(t, "b.pdf", records[1].Name)

		all, err := repo.ListAllRecords(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})

	t.Run("ListRecords_Empty", func(t *testing.T) {
		records, err := repo.ListRecords(ctx, 12345)
		require.NoError(t, err)
		assert.NotNil(t, records)
		assert.Empty(t, records)
	})

	t.Run("DeleteRecord", func(t *testing.T) {
		assert.ErrorIs(t, repo.DeleteRecord(ctx, other.ID, record.ID), filemanager.ErrRecordNotFound)

		require.NoError(t, repo.DeleteRecord(ctx, owner.ID, record.ID))
		_, err := repo.GetRecord(ctx, owner.ID, record.ID)
		assert.ErrorIs(t, err, filemanager.ErrRecordNotFound)

		// The name is free again
		assert.NoError(t, repo.CreateRecord(ctx, &filemanager.Record{OwnerID: owner.ID, Name: "a.pdf"}))
	})

	t.Run("ReturnedRecordsAreCopies", func(t *testing.T) {
		got, err := repo.FindRecordByName(ctx, owner.ID, "b.pdf")
		require.NoError(t, err)
		got.Name = "mutated.pdf"

		again, err := repo.FindRecordByName(ctx, owner.ID, "b.pdf")
		require.NoError(t, err)
		assert.Equal(t, "b.pdf", again.Name)
	})
}

func TestMemoryRepository_ConcurrentCreateSameName(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()
	owner := newUser(t, repo, "race@example.com")

	const numGoroutines = 10
	var wg sync.WaitGroup
	errs := make(chan error, numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- repo.CreateRecord(ctx, &filemanager.Record{OwnerID: owner.ID, Name: "same.pdf"})
		}()
	}
	wg.Wait()
	close(errs)

	var created, duplicates int
	for err := range errs {
		if err == nil {
			created++
			continue
		}
		require.ErrorIs(t, err, filemanager.ErrDuplicateName, fmt.Sprintf("unexpected error: %v", err))
		duplicates++
	}
	assert.Equal(t, 1, created)
	assert.Equal(t, numGoroutines-1, duplicates)
}
