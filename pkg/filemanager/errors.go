package filemanager

import (
	"errors"
	"fmt"
)

// Kind classifies why an operation on a file or record failed.
type Kind string

const (
	KindUnsupportedType Kind = "unsupported_type"
	KindDuplicateName   Kind = "duplicate_name"
	KindTooLarge        Kind = "too_large"
	KindNotFound        Kind = "not_found"
	KindObjectMissing   Kind = "object_missing"
	KindStorageError    Kind = "storage_error"
)

// Error types
var (
	// ErrUnsupportedType indicates the file is not a PDF document
	ErrUnsupportedType = errors.New("unsupported document type")

	// ErrDuplicateName indicates the owner already has a record with that name
	ErrDuplicateName = errors.New("duplicate record name")

	// ErrTooLarge indicates the file exceeds the size ceiling
	ErrTooLarge = errors.New("file too large")

	// ErrNotFound indicates the owner or record does not exist
	ErrNotFound = errors.New("not found")

	// ErrObjectMissing indicates the record exists but its object does not
	ErrObjectMissing = errors.New("object missing from object store")

	// ErrStorage indicates a metadata or object backend failure
	ErrStorage = errors.New("storage backend failure")

	// ErrUserNotFound is returned by repositories for unknown users
	ErrUserNotFound = fmt.Errorf("user %w", ErrNotFound)

	// ErrRecordNotFound is returned by repositories for unknown records
	ErrRecordNotFound = fmt.Errorf("record %w", ErrNotFound)

	// ErrObjectNotFound is returned by object stores for unknown keys
	ErrObjectNotFound = errors.New("object not found")
)

var kindErrors = map[Kind]error{
	KindUnsupportedType: ErrUnsupportedType,
	KindDuplicateName:   ErrDuplicateName,
	KindTooLarge:        ErrTooLarge,
	KindNotFound:        ErrNotFound,
	KindObjectMissing:   ErrObjectMissing,
	KindStorageError:    ErrStorage,
}

// FileError represents a failed operation on one file or record.
// Detail is a message suitable for API clients.
type FileError struct {
	Kind    Kind
	OwnerID int64
	Name    string
	Op      string
	Detail  string
	Err     error
}

func (e *FileError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("%s failed for owner %d: %v", e.Op, e.OwnerID, e.Err)
	}
	return fmt.Sprintf("%s failed for file %q of owner %d: %v", e.Op, e.Name, e.OwnerID, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match the sentinel of the error's kind even when Err
// is a raw backend error.
func (e *FileError) Is(target error) bool {
	return kindErrors[e.Kind] == target
}

// KindOf maps err to its Kind. Errors that carry no kind are storage errors.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var fe *FileError
	if errors.As(err, &fe) && fe.Kind != "" {
		return fe.Kind
	}
	for _, kind := range []Kind{KindObjectMissing, KindUnsupportedType, KindDuplicateName, KindTooLarge, KindNotFound} {
		if errors.Is(err, kindErrors[kind]) {
			return kind
		}
	}
	return KindStorageError
}

// DetailOf returns the client-facing message carried by err, or fallback.
func DetailOf(err error, fallback string) string {
	var fe *FileError
	if errors.As(err, &fe) && fe.Detail != "" {
		return fe.Detail
	}
	return fallback
}

func newFileError(kind Kind, op string, ownerID int64, name, detail string, err error) *FileError {
	if err == nil {
		err = kindErrors[kind]
	}
	return &FileError{Kind: kind, OwnerID: ownerID, Name: name, Op: op, Detail: detail, Err: err}
}
