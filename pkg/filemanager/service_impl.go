package filemanager

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/tendant/filemanager/pkg/filemanager/objectkey"
)

const (
	// DefaultMaxFileSize is the per-file upload ceiling (200 MiB).
	DefaultMaxFileSize int64 = 200 << 20

	// DefaultPresignTTL is the lifetime of presigned URLs.
	DefaultPresignTTL = time.Hour
)

// Messages returned to API clients.
const (
	MsgUploaded        = "The file '%s' has been successfully uploaded for user '%d'"
	MsgBatchUploaded   = "File(s) uploaded successfully!"
	MsgNotPDF          = "The file '%s' is not a PDF, only PDF files are allowed"
	MsgDuplicate       = "A test with the name '%s' already exists for user '%d'"
	MsgTooLarge        = "The file '%s' exceeds the size limit of '%s'"
	MsgBatchTooLarge   = "The file '%s' exceeds the remaining batch size limit of '%s'"
	MsgUploadFailed    = "Error while uploading the file '%s' to object storage for user '%d'"
	MsgRecordFailed    = "Error while saving the record of the file '%s' for user '%d'"
	MsgDeleted         = "The file '%s' for user '%d' has been successfully deleted"
	MsgFileNotFound    = "File not found"
	MsgObjectMissing   = "The file '%s' for user '%d' does not exist in object storage"
	MsgDeleteFailed    = "Error while deleting the file '%s' for user '%d' in object storage"
	MsgRecordDelete    = "The file '%s' for user '%d' was removed from object storage but its record could not be deleted"
	MsgDownloadFailed  = "Error while reading the file '%s' for user '%d' from object storage"
	MsgUserNotFound    = "User with ID %d not found"
	MsgListed          = "The following tests found for user with ID %d"
	MsgMetadataFailure = "Error while reading the records of user '%d'"
)

// service implements the Service interface
type service struct {
	repository   Repository
	objects      ObjectStore
	hooks        Hooks
	logger       *slog.Logger
	maxFileSize  int64
	maxBatchSize int64
	presignTTL   time.Duration
	now          func() time.Time
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithRepository sets the metadata store
func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repository = repo
	}
}

// WithObjectStore sets the object store
func WithObjectStore(store ObjectStore) Option {
	return func(s *service) {
		s.objects = store
	}
}

// WithHooks sets the hooks notified about completed operations
func WithHooks(hooks Hooks) Option {
	return func(s *service) {
		s.hooks = hooks
	}
}

// WithLogger sets the logger used for failed operations
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// WithMaxFileSize sets the per-file ceiling in bytes
func WithMaxFileSize(n int64) Option {
	return func(s *service) {
		s.maxFileSize = n
	}
}

// WithMaxBatchSize sets the ceiling for the sum of all stored files of one
// upload batch. Zero disables the check.
func WithMaxBatchSize(n int64) Option {
	return func(s *service) {
		s.maxBatchSize = n
	}
}

// WithPresignTTL sets the lifetime of generated URLs
func WithPresignTTL(ttl time.Duration) Option {
	return func(s *service) {
		s.presignTTL = ttl
	}
}

// WithClock overrides the source of submission timestamps
func WithClock(now func() time.Time) Option {
	return func(s *service) {
		s.now = now
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		hooks:       NewNoopHooks(),
		maxFileSize: DefaultMaxFileSize,
		presignTTL:  DefaultPresignTTL,
		now:         time.Now,
	}

	for _, option := range options {
		option(s)
	}

	if s.repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if s.objects == nil {
		return nil, fmt.Errorf("object store is required")
	}
	if s.maxFileSize <= 0 {
		return nil, fmt.Errorf("max file size must be positive, got %d", s.maxFileSize)
	}
	if s.maxBatchSize < 0 {
		return nil, fmt.Errorf("max batch size must not be negative, got %d", s.maxBatchSize)
	}
	if s.presignTTL <= 0 {
		return nil, fmt.Errorf("presign ttl must be positive, got %s", s.presignTTL)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	return s, nil
}

// Upload operations

func (s *service) Upload(ctx context.Context, ownerID int64, files []UploadFile) (*UploadResult, error) {
	if err := s.requireUser(ctx, "upload", ownerID); err != nil {
		return nil, err
	}

	result := &UploadResult{
		OwnerID: ownerID,
		Status:  StatusOK,
		Files:   make([]FileResult, 0, len(files)),
	}

	var batchBytes int64
	for _, file := range files {
		fr := s.uploadFile(ctx, ownerID, file, &batchBytes)
		result.Status = result.Status.Escalate(fr.Kind)
		result.Files = append(result.Files, fr)
	}

	return result, nil
}

func (s *service) uploadFile(ctx context.Context, ownerID int64, file UploadFile, batchBytes *int64) FileResult {
	name := file.Name

	if !IsPDF(name) {
		return s.reject(ctx, ownerID, name, KindUnsupportedType, fmt.Sprintf(MsgNotPDF, name), nil)
	}

	existing, err := s.repository.FindRecordByName(ctx, ownerID, name)
	switch {
	case err == nil && existing != nil:
		return s.reject(ctx, ownerID, name, KindDuplicateName, fmt.Sprintf(MsgDuplicate, name, ownerID), nil)
	case err != nil && !errors.Is(err, ErrRecordNotFound):
		return s.reject(ctx, ownerID, name, KindStorageError, fmt.Sprintf(MsgRecordFailed, name, ownerID), err)
	}

	data, err := s.readFile(file)
	if err != nil {
		if errors.Is(err, ErrTooLarge) {
			msg := fmt.Sprintf(MsgTooLarge, name, humanize.IBytes(uint64(s.maxFileSize)))
			return s.reject(ctx, ownerID, name, KindTooLarge, msg, nil)
		}
		return s.reject(ctx, ownerID, name, KindStorageError, fmt.Sprintf(MsgUploadFailed, name, ownerID), err)
	}

	size := int64(len(data))
	if s.maxBatchSize > 0 && *batchBytes+size > s.maxBatchSize {
		remaining := s.maxBatchSize - *batchBytes
		msg := fmt.Sprintf(MsgBatchTooLarge, name, humanize.IBytes(uint64(remaining)))
		return s.reject(ctx, ownerID, name, KindTooLarge, msg, nil)
	}
	*batchBytes += size

	key := objectkey.Build(ownerID, name)
	if err := s.objects.Put(ctx, key, bytes.NewReader(data), size, PDFContentType); err != nil {
		return s.reject(ctx, ownerID, name, KindStorageError, fmt.Sprintf(MsgUploadFailed, name, ownerID), err)
	}

	url, err := s.objects.PresignGet(ctx, key, s.presignTTL)
	if err != nil {
		return s.reject(ctx, ownerID, name, KindStorageError, fmt.Sprintf(MsgUploadFailed, name, ownerID), err)
	}

	record := &Record{
		OwnerID:     ownerID,
		Name:        name,
		URL:         url,
		SubmittedAt: s.now().UTC(),
	}
	if err := s.repository.CreateRecord(ctx, record); err != nil {
		// The object stays in place in both cases; a concurrent upload of
		// the same name owns the key.
		if errors.Is(err, ErrDuplicateName) {
			return s.reject(ctx, ownerID, name, KindDuplicateName, fmt.Sprintf(MsgDuplicate, name, ownerID), nil)
		}
		return s.reject(ctx, ownerID, name, KindStorageError, fmt.Sprintf(MsgRecordFailed, name, ownerID), err)
	}

	s.hooks.FileUploaded(ctx, record, size)
	s.logger.InfoContext(ctx, "File uploaded", "owner_id", ownerID, "file", name, "record_id", record.ID, "size", size)

	return FileResult{
		FileName: name,
		Message:  fmt.Sprintf(MsgUploaded, name, ownerID),
		Record:   record,
	}
}

// readFile reads at most maxFileSize+1 bytes so an oversized file is
// detected without buffering all of it.
func (s *service) readFile(file UploadFile) ([]byte, error) {
	if file.Open == nil {
		return nil, fmt.Errorf("file %q has no content", file.Name)
	}
	rc, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open file %q: %w", file.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, s.maxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read file %q: %w", file.Name, err)
	}
	if int64(len(data)) > s.maxFileSize {
		return nil, ErrTooLarge
	}
	return data, nil
}

func (s *service) reject(ctx context.Context, ownerID int64, name string, kind Kind, msg string, err error) FileResult {
	if kind == KindStorageError {
		s.logger.ErrorContext(ctx, "File upload failed", "owner_id", ownerID, "file", name, "error", err)
	} else {
		s.logger.WarnContext(ctx, "File rejected", "owner_id", ownerID, "file", name, "kind", kind)
	}
	s.hooks.FileRejected(ctx, ownerID, name, kind)

	return FileResult{
		FileName: name,
		Kind:     kind,
		Message:  msg,
	}
}

// Delete operations

func (s *service) Delete(ctx context.Context, ownerID int64, ref RecordRef) (*Record, error) {
	record, err := s.resolve(ctx, "delete", ownerID, ref)
	if err != nil {
		return nil, s.deleteFailed(ctx, err)
	}

	key := objectkey.Build(ownerID, record.Name)

	if _, err := s.objects.Head(ctx, key); err != nil {
		return nil, s.deleteFailed(ctx, s.objectError("delete", record, err, MsgDeleteFailed))
	}

	if err := s.objects.Delete(ctx, key); err != nil {
		return nil, s.deleteFailed(ctx, s.objectError("delete", record, err, MsgDeleteFailed))
	}

	if err := s.repository.DeleteRecord(ctx, ownerID, record.ID); err != nil {
		s.logger.ErrorContext(ctx, "Object deleted but record was kept",
			"owner_id", ownerID, "record_id", record.ID, "key", key, "error", err)
		detail := fmt.Sprintf(MsgRecordDelete, record.Name, ownerID)
		return nil, s.deleteFailed(ctx, newFileError(KindStorageError, "delete", ownerID, record.Name, detail, err))
	}

	s.hooks.RecordDeleted(ctx, record)
	s.logger.InfoContext(ctx, "File deleted", "owner_id", ownerID, "record_id", record.ID, "file", record.Name)

	return record, nil
}

func (s *service) deleteFailed(ctx context.Context, err error) error {
	var fe *FileError
	if errors.As(err, &fe) {
		if fe.Kind == KindStorageError {
			s.logger.ErrorContext(ctx, "File delete failed", "owner_id", fe.OwnerID, "file", fe.Name, "error", fe.Err)
		}
		s.hooks.DeleteFailed(ctx, fe.OwnerID, fe.Kind)
	}
	return err
}

// Query operations

func (s *service) List(ctx context.Context, ownerID int64) ([]*Record, error) {
	if err := s.requireUser(ctx, "list", ownerID); err != nil {
		return nil, err
	}

	records, err := s.repository.ListRecords(ctx, ownerID)
	if err != nil {
		return nil, newFileError(KindStorageError, "list", ownerID, "", fmt.Sprintf(MsgMetadataFailure, ownerID), err)
	}
	if records == nil {
		records = []*Record{}
	}
	return records, nil
}

func (s *service) GetUser(ctx context.Context, id int64) (*User, error) {
	return s.repository.GetUser(ctx, id)
}

func (s *service) Ping(ctx context.Context) error {
	return s.repository.Ping(ctx)
}

// Download operations

func (s *service) DownloadURL(ctx context.Context, ownerID, id int64) (string, *Record, error) {
	record, err := s.resolve(ctx, "download_url", ownerID, ByID(id))
	if err != nil {
		return "", nil, err
	}

	key := objectkey.Build(ownerID, record.Name)
	if _, err := s.objects.Head(ctx, key); err != nil {
		return "", nil, s.objectError("download_url", record, err, MsgDownloadFailed)
	}

	url, err := s.objects.PresignGet(ctx, key, s.presignTTL)
	if err != nil {
		return "", nil, s.objectError("download_url", record, err, MsgDownloadFailed)
	}
	return url, record, nil
}

func (s *service) Download(ctx context.Context, ownerID, id int64) (io.ReadCloser, *Record, error) {
	record, err := s.resolve(ctx, "download", ownerID, ByID(id))
	if err != nil {
		return nil, nil, err
	}

	rc, err := s.objects.Get(ctx, objectkey.Build(ownerID, record.Name))
	if err != nil {
		return nil, nil, s.objectError("download", record, err, MsgDownloadFailed)
	}
	return rc, record, nil
}

// Helpers

func (s *service) requireUser(ctx context.Context, op string, ownerID int64) error {
	if _, err := s.repository.GetUser(ctx, ownerID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return newFileError(KindNotFound, op, ownerID, "", fmt.Sprintf(MsgUserNotFound, ownerID), err)
		}
		return newFileError(KindStorageError, op, ownerID, "", fmt.Sprintf(MsgMetadataFailure, ownerID), err)
	}
	return nil
}

func (s *service) resolve(ctx context.Context, op string, ownerID int64, ref RecordRef) (*Record, error) {
	var (
		record *Record
		err    error
	)
	if ref.byName() {
		record, err = s.repository.FindRecordByName(ctx, ownerID, ref.Name)
	} else {
		record, err = s.repository.GetRecord(ctx, ownerID, ref.ID)
	}
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, newFileError(KindNotFound, op, ownerID, ref.Name, MsgFileNotFound, err)
		}
		return nil, newFileError(KindStorageError, op, ownerID, ref.Name, fmt.Sprintf(MsgMetadataFailure, ownerID), err)
	}
	return record, nil
}

// objectError classifies an object store failure on an existing record.
func (s *service) objectError(op string, record *Record, err error, failureMsg string) error {
	if errors.Is(err, ErrObjectNotFound) {
		detail := fmt.Sprintf(MsgObjectMissing, record.Name, record.OwnerID)
		return newFileError(KindObjectMissing, op, record.OwnerID, record.Name, detail, err)
	}
	detail := fmt.Sprintf(failureMsg, record.Name, record.OwnerID)
	return newFileError(KindStorageError, op, record.OwnerID, record.Name, detail, err)
}
