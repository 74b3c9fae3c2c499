package filemanager

import (
	"bytes"
	"io"
	"time"
)

// User owns zero or more Records.
type User struct {
	ID            int64     `json:"id"`
	FullName      string    `json:"full_name"`
	Email         string    `json:"email"`
	PasswordHash  string    `json:"-"`
	BirthDate     time.Time `json:"birth_date"`
	BiologicalSex string    `json:"biological_sex"`
	CreatedAt     time.Time `json:"creation_date"`
}

// Biological sex values accepted by the users table.
const (
	SexMale   = "M"
	SexFemale = "F"
)

// Record describes one stored exam document.
//
// URL is a presigned link captured at upload time. It expires, so callers
// that need access to the document should ask for a fresh URL instead of
// relying on it.
type Record struct {
	ID          int64     `json:"id"`
	OwnerID     int64     `json:"user_id"`
	Name        string    `json:"test_name"`
	URL         string    `json:"url"`
	SubmittedAt time.Time `json:"submission_date"`
}

// UploadFile is one named entry of an upload batch.
// Open is called at most once, after the name checks pass.
type UploadFile struct {
	Name string
	Open func() (io.ReadCloser, error)
}

// BytesFile returns an UploadFile backed by an in-memory buffer.
func BytesFile(name string, data []byte) UploadFile {
	return UploadFile{
		Name: name,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// FileResult is the outcome of a single file in an upload batch.
// Kind is empty and Record is set when the file was stored.
type FileResult struct {
	FileName string  `json:"file_name"`
	Kind     Kind    `json:"error,omitempty"`
	Message  string  `json:"message"`
	Record   *Record `json:"-"`
}

// OK reports whether the file was stored.
func (r FileResult) OK() bool {
	return r.Kind == ""
}

// UploadResult aggregates the outcome of an upload batch.
type UploadResult struct {
	OwnerID int64
	Status  BatchStatus
	Files   []FileResult
}

// Records returns the records created by the batch, in input order.
func (r *UploadResult) Records() []*Record {
	records := make([]*Record, 0, len(r.Files))
	for _, f := range r.Files {
		if f.Record != nil {
			records = append(records, f.Record)
		}
	}
	return records
}

// RecordRef identifies a Record of a known owner either by id or by
// display name.
type RecordRef struct {
	ID   int64
	Name string
}

// ByID references a record by its store-assigned id.
func ByID(id int64) RecordRef {
	return RecordRef{ID: id}
}

// ByName references a record by its display name.
func ByName(name string) RecordRef {
	return RecordRef{Name: name}
}

func (r RecordRef) byName() bool {
	return r.Name != ""
}

// ObjectInfo describes an object held by an ObjectStore.
type ObjectInfo struct {
	Key         string
	Size        int64
	ContentType string
	UpdatedAt   time.Time
	ETag        string
}
