package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/filemanager/pkg/filemanager"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements filemanager.Repository using PostgreSQL
type Repository struct {
	db   DBTX
	ping func(context.Context) error
}

// New creates a new PostgreSQL repository
func New(db DBTX) *Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool, ping: pool.Ping}
}

// handlePostgresError maps constraint violations to the filemanager sentinels
func handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%s: %s: %w", operation, pgErr.ConstraintName, filemanager.ErrDuplicateName)
		case "23503": // foreign_key_violation
			return fmt.Errorf("%s: %s: %w", operation, pgErr.ConstraintName, filemanager.ErrUserNotFound)
		case "23502": // not_null_violation
			return fmt.Errorf("%s: required field %s is missing", operation, pgErr.ColumnName)
		case "23514": // check_violation
			return fmt.Errorf("%s: check %s failed", operation, pgErr.ConstraintName)
		case "42P01": // undefined_table
			return fmt.Errorf("%s: table does not exist - run the schema bootstrap", operation)
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

// User operations

func (r *Repository) CreateUser(ctx context.Context, user *filemanager.User) error {
	query := `
		INSERT INTO users (full_name, email, password, birth_date, biological_sex)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, creation_date`

	err := r.db.QueryRow(ctx, query,
		user.FullName, user.Email, user.PasswordHash, user.BirthDate, user.BiologicalSex,
	).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		return handlePostgresError("create user", err)
	}
	return nil
}

func (r *Repository) GetUser(ctx context.Context, id int64) (*filemanager.User, error) {
	query := `
		SELECT id, full_name, email, password, birth_date, biological_sex, creation_date
		FROM users WHERE id = $1`

	var user filemanager.User
	err := r.db.QueryRow(ctx, query, id).Scan(
		&user.ID, &user.FullName, &user.Email, &user.PasswordHash,
		&user.BirthDate, &user.BiologicalSex, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, filemanager.ErrUserNotFound
		}
		return nil, handlePostgresError("get user", err)
	}
	return &user, nil
}

// Record operations

func (r *Repository) CreateRecord(ctx context.Context, record *filemanager.Record) error {
	query := `
		INSERT INTO tests (user_id, test_name, url, submission_date)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	err := r.db.QueryRow(ctx, query,
		record.OwnerID, record.Name, record.URL, record.SubmittedAt,
	).Scan(&record.ID)
	if err != nil {
		return handlePostgresError("create record", err)
	}
	return nil
}

const recordColumns = `id, user_id, test_name, url, submission_date`

func (r *Repository) GetRecord(ctx context.Context, ownerID, id int64) (*filemanager.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM tests WHERE id = $1 AND user_id = $2`
	return r.getRecord(ctx, "get record", query, id, ownerID)
}

func (r *Repository) FindRecordByName(ctx context.Context, ownerID int64, name string) (*filemanager.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM tests WHERE user_id = $1 AND test_name = $2`
	return r.getRecord(ctx, "find record", query, ownerID, name)
}

func (r *Repository) getRecord(ctx context.Context, operation, query string, args ...interface{}) (*filemanager.Record, error) {
	record, err := scanRecord(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, filemanager.ErrRecordNotFound
		}
		return nil, handlePostgresError(operation, err)
	}
	return record, nil
}

func (r *Repository) ListRecords(ctx context.Context, ownerID int64) ([]*filemanager.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM tests WHERE user_id = $1 ORDER BY id`
	return r.listRecords(ctx, "list records", query, ownerID)
}

func (r *Repository) ListAllRecords(ctx context.Context) ([]*filemanager.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM tests ORDER BY id`
	return r.listRecords(ctx, "list all records", query)
}

func (r *Repository) listRecords(ctx context.Context, operation, query string, args ...interface{}) ([]*filemanager.Record, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, handlePostgresError(operation, err)
	}
	defer rows.Close()

	records := []*filemanager.Record{}
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, handlePostgresError(operation, err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, handlePostgresError(operation, err)
	}
	return records, nil
}

func (r *Repository) DeleteRecord(ctx context.Context, ownerID, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM tests WHERE id = $1 AND user_id = $2`, id, ownerID)
	if err != nil {
		return handlePostgresError("delete record", err)
	}
	if tag.RowsAffected() == 0 {
		return filemanager.ErrRecordNotFound
	}
	return nil
}

// Ping verifies the database is reachable
func (r *Repository) Ping(ctx context.Context) error {
	if r.ping != nil {
		return r.ping(ctx)
	}
	var one int
	return r.db.QueryRow(ctx, `SELECT 1`).Scan(&one)
}

func scanRecord(row pgx.Row) (*filemanager.Record, error) {
	var record filemanager.Record
	err := row.Scan(&record.ID, &record.OwnerID, &record.Name, &record.URL, &record.SubmittedAt)
	if err != nil {
		return nil, err
	}
	record.SubmittedAt = record.SubmittedAt.UTC()
	return &record, nil
}
