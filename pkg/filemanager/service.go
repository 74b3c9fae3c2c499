package filemanager

import (
	"context"
	"io"
)

// Service coordinates the metadata and object stores for exam documents.
type Service interface {
	// Upload stores every file of the batch independently. The returned
	// error is only set when the batch could not be processed at all,
	// e.g. because the owner does not exist.
	Upload(ctx context.Context, ownerID int64, files []UploadFile) (*UploadResult, error)

	// Delete removes a record and its object. The record is only removed
	// after the object was deleted.
	Delete(ctx context.Context, ownerID int64, ref RecordRef) (*Record, error)

	// List returns the records of an existing owner ordered by id.
	List(ctx context.Context, ownerID int64) ([]*Record, error)

	// DownloadURL presigns a fresh URL for a record's object.
	DownloadURL(ctx context.Context, ownerID, id int64) (string, *Record, error)

	// Download streams a record's object. The caller must close the reader.
	Download(ctx context.Context, ownerID, id int64) (io.ReadCloser, *Record, error)

	// GetUser returns the user with the given id.
	GetUser(ctx context.Context, id int64) (*User, error)

	// Ping verifies the metadata store is reachable.
	Ping(ctx context.Context) error
}
