package filemanager

import (
	"context"
	"io"
	"time"
)

// ObjectStore defines the interface for object storage backends.
// Missing keys are reported with an error wrapping ErrObjectNotFound.
type ObjectStore interface {
	// Put writes content under key, replacing any existing object
	Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error

	// Get streams the content stored under key
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Head returns metadata for the object stored under key
	Head(ctx context.Context, key string) (*ObjectInfo, error)

	// Delete removes the object stored under key
	Delete(ctx context.Context, key string) error

	// PresignGet returns a time-limited URL granting read access to key
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)

	// List returns every object whose key starts with prefix
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
}

// Repository defines the interface for user and record persistence.
// Unknown users and records are reported with ErrUserNotFound and
// ErrRecordNotFound; a second record with the same (owner, name) is
// rejected with an error wrapping ErrDuplicateName.
type Repository interface {
	// User operations
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, id int64) (*User, error)

	// Record operations
	CreateRecord(ctx context.Context, record *Record) error
	GetRecord(ctx context.Context, ownerID, id int64) (*Record, error)
	FindRecordByName(ctx context.Context, ownerID int64, name string) (*Record, error)
	ListRecords(ctx context.Context, ownerID int64) ([]*Record, error)
	ListAllRecords(ctx context.Context) ([]*Record, error)
	DeleteRecord(ctx context.Context, ownerID, id int64) error

	// Ping verifies the repository is reachable
	Ping(ctx context.Context) error
}

// Hooks receives notifications about completed operations.
type Hooks interface {
	// FileUploaded is fired after the record of an uploaded file is stored
	FileUploaded(ctx context.Context, record *Record, size int64)

	// FileRejected is fired when a file of an upload batch fails
	FileRejected(ctx context.Context, ownerID int64, name string, kind Kind)

	// RecordDeleted is fired after a record and its object are deleted
	RecordDeleted(ctx context.Context, record *Record)

	// DeleteFailed is fired when a delete stops before removing the record
	DeleteFailed(ctx context.Context, ownerID int64, kind Kind)
}
