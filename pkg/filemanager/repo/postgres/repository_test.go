package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/filemanager/pkg/filemanager"
)

// fakeRow returns a fixed error or copies values into the scan targets
type fakeRow struct {
	values []interface{}
	err    error
}

func (r fakeRow) Scan(dest ...interface{}) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *int64:
			*p = r.values[i].(int64)
		case *string:
			*p = r.values[i].(string)
		case *time.Time:
			*p = r.values[i].(time.Time)
		}
	}
	return nil
}

// fakeDB answers every QueryRow with row and every Exec with tag/execErr
type fakeDB struct {
	row     pgx.Row
	tag     pgconn.CommandTag
	execErr error
	queries []string
}

func (db *fakeDB) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	db.queries = append(db.queries, sql)
	return db.tag, db.execErr
}

func (db *fakeDB) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	db.queries = append(db.queries, sql)
	return nil, errors.New("not supported")
}

func (db *fakeDB) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	db.queries = append(db.queries, sql)
	return db.row
}

func TestHandlePostgresError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
	}{
		{"unique violation", &pgconn.PgError{Code: "23505", ConstraintName: "tests_user_id_test_name_key"}, filemanager.ErrDuplicateName},
		{"foreign key violation", &pgconn.PgError{Code: "23503", ConstraintName: "tests_user_id_fkey"}, filemanager.ErrUserNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := handlePostgresError("create record", tt.err)
			assert.ErrorIs(t, err, tt.target)
			assert.Contains(t, err.Error(), "create record")
		})
	}

	t.Run("other codes carry the message", func(t *testing.T) {
		err := handlePostgresError("get user", &pgconn.PgError{Code: "57014", Message: "canceling statement"})
		assert.EqualError(t, err, "database error in get user: canceling statement (code: 57014)")
	})

	t.Run("non postgres errors are wrapped", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := handlePostgresError("ping", cause)
		assert.ErrorIs(t, err, cause)
		assert.Equal(t, filemanager.KindStorageError, filemanager.KindOf(err))
	})
}

func TestRepository_NotFound(t *testing.T) {
	ctx := context.Background()
	repo := New(&fakeDB{row: fakeRow{err: pgx.ErrNoRows}, tag: pgconn.NewCommandTag("DELETE 0")})

	_, err := repo.GetUser(ctx, 1)
	assert.ErrorIs(t, err, filemanager.ErrUserNotFound)

	_, err = repo.GetRecord(ctx, 1, 2)
	assert.ErrorIs(t, err, filemanager.ErrRecordNotFound)

	_, err = repo.FindRecordByName(ctx, 1, "a.pdf")
	assert.ErrorIs(t, err, filemanager.ErrRecordNotFound)

	err = repo.DeleteRecord(ctx, 1, 2)
	assert.ErrorIs(t, err, filemanager.ErrRecordNotFound)
}

func TestRepository_CreateRecordDuplicate(t *testing.T) {
	repo := New(&fakeDB{row: fakeRow{err: &pgconn.PgError{Code: "23505"}}})

	err := repo.CreateRecord(context.Background(), &filemanager.Record{OwnerID: 1, Name: "a.pdf"})
	assert.ErrorIs(t, err, filemanager.ErrDuplicateName)
	assert.Equal(t, filemanager.KindDuplicateName, filemanager.KindOf(err))
}

func TestRepository_GetRecord(t *testing.T) {
	submitted := time.Date(2024, 2, 3, 4, 5, 6, 0, time.FixedZone("X", 3600))
	db := &fakeDB{row: fakeRow{values: []interface{}{int64(9), int64(1), "a.pdf", "https://example/a.pdf", submitted}}}
	repo := New(db)

	record, err := repo.GetRecord(context.Background(), 1, 9)
	require.NoError(t, err)
	assert.Equal(t, int64(9), record.ID)
	assert.Equal(t, int64(1), record.OwnerID)
	assert.Equal(t, "a.pdf", record.Name)
	assert.Equal(t, time.UTC, record.SubmittedAt.Location())
	assert.True(t, submitted.Equal(record.SubmittedAt))
	assert.Contains(t, db.queries[0], "user_id = $2")
}

func TestRepository_DeleteRecord(t *testing.T) {
	db := &fakeDB{tag: pgconn.NewCommandTag("DELETE 1")}
	require.NoError(t, New(db).DeleteRecord(context.Background(), 1, 2))
}

func TestEnsureSchema(t *testing.T) {
	db := &fakeDB{}
	require.NoError(t, EnsureSchema(context.Background(), db))
	require.Len(t, db.queries, 1)
	assert.Contains(t, db.queries[0], "UNIQUE (user_id, test_name)")

	db.execErr = errors.New("permission denied")
	assert.ErrorContains(t, EnsureSchema(context.Background(), db), "permission denied")
}
