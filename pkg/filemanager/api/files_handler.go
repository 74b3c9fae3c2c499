package api

import (
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/tendant/filemanager/pkg/filemanager"
)

// DefaultMultipartMemory is the part of a multipart form kept in memory;
// the rest spills to temporary files.
const DefaultMultipartMemory int64 = 32 << 20

// FilesHandler serves the upload, delete, list and download endpoints
type FilesHandler struct {
	service         filemanager.Service
	logger          *slog.Logger
	multipartMemory int64
}

func NewFilesHandler(service filemanager.Service, logger *slog.Logger, multipartMemory int64) *FilesHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if multipartMemory <= 0 {
		multipartMemory = DefaultMultipartMemory
	}
	return &FilesHandler{
		service:         service,
		logger:          logger,
		multipartMemory: multipartMemory,
	}
}

// Routes returns the router for the /file endpoints
func (h *FilesHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/upload/{owner_id}", h.Upload)
	r.Delete("/delete/{owner_id}/{record_id}", h.DeleteByID)
	r.Delete("/delete/{owner_id}/by-name/{name}", h.DeleteByName)
	r.Get("/tests/{owner_id}", h.ListTests)
	r.Get("/download/{owner_id}/{record_id}", h.Download)
	r.Get("/download/{owner_id}/{record_id}/url", h.DownloadURL)
	return r
}

func parseID(r *http.Request, param string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func (h *FilesHandler) ownerID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, ok := parseID(r, "owner_id")
	if !ok {
		h.log(r).WarnContext(r.Context(), "Invalid owner ID", "owner_id", chi.URLParam(r, "owner_id"))
		writeMessage(w, r, http.StatusBadRequest, MsgInvalidOwnerID)
	}
	return id, ok
}

func (h *FilesHandler) recordID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, ok := parseID(r, "record_id")
	if !ok {
		h.log(r).WarnContext(r.Context(), "Invalid record ID", "record_id", chi.URLParam(r, "record_id"))
		writeMessage(w, r, http.StatusBadRequest, MsgInvalidRecordID)
	}
	return id, ok
}

// Upload stores every part of the repeatable "files" field
func (h *FilesHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.ownerID(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(h.multipartMemory); err != nil {
		h.log(r).WarnContext(r.Context(), "Failed to parse multipart form", "owner_id", ownerID, "error", err)
		writeMessage(w, r, http.StatusBadRequest, MsgInvalidForm)
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		writeMessage(w, r, http.StatusBadRequest, MsgNoFiles)
		return
	}

	files := make([]filemanager.UploadFile, 0, len(headers))
	for _, fh := range headers {
		files = append(files, filemanager.UploadFile{
			Name: fh.Filename,
			Open: func() (io.ReadCloser, error) { return fh.Open() },
		})
	}

	result, err := h.service.Upload(r.Context(), ownerID, files)
	if err != nil {
		h.log(r).WarnContext(r.Context(), "Upload rejected", "owner_id", ownerID, "error", err)
		writeError(w, r, err)
		return
	}

	status := result.Status.HTTPStatus()
	message := filemanager.MsgBatchUploaded
	if result.Status != filemanager.StatusOK {
		message = MsgBatchIncomplete
	}

	render.Status(r, status)
	render.JSON(w, r, UploadResponse{
		Status:  status,
		Message: message,
		Results: result.Files,
		Data:    result.Records(),
	})
}

// DeleteByID removes a record and its object
func (h *FilesHandler) DeleteByID(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.ownerID(w, r)
	if !ok {
		return
	}
	recordID, ok := h.recordID(w, r)
	if !ok {
		return
	}
	h.delete(w, r, ownerID, filemanager.ByID(recordID))
}

// DeleteByName removes a record identified by its display name
func (h *FilesHandler) DeleteByName(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.ownerID(w, r)
	if !ok {
		return
	}
	name := chi.URLParam(r, "name")
	if name == "" {
		writeMessage(w, r, http.StatusNotFound, filemanager.MsgFileNotFound)
		return
	}
	h.delete(w, r, ownerID, filemanager.ByName(name))
}

func (h *FilesHandler) delete(w http.ResponseWriter, r *http.Request, ownerID int64, ref filemanager.RecordRef) {
	record, err := h.service.Delete(r.Context(), ownerID, ref)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, r, http.StatusOK, fmt.Sprintf(filemanager.MsgDeleted, record.Name, ownerID))
}

// ListTests returns every record of a user
func (h *FilesHandler) ListTests(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.ownerID(w, r)
	if !ok {
		return
	}

	records, err := h.service.List(r.Context(), ownerID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.JSON(w, r, ListResponse{
		Status:  http.StatusOK,
		Message: fmt.Sprintf(filemanager.MsgListed, ownerID),
		Data:    records,
	})
}

// Download streams the stored document
func (h *FilesHandler) Download(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.ownerID(w, r)
	if !ok {
		return
	}
	recordID, ok := h.recordID(w, r)
	if !ok {
		return
	}

	rc, record, err := h.service.Download(r.Context(), ownerID, recordID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", filemanager.PDFContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": record.Name}))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		h.log(r).ErrorContext(r.Context(), "Failed to stream file", "owner_id", ownerID, "record_id", recordID, "error", err)
	}
}

// DownloadURL returns a freshly presigned URL for the stored document
func (h *FilesHandler) DownloadURL(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.ownerID(w, r)
	if !ok {
		return
	}
	recordID, ok := h.recordID(w, r)
	if !ok {
		return
	}

	url, record, err := h.service.DownloadURL(r.Context(), ownerID, recordID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.JSON(w, r, DownloadURLResponse{
		Status:  http.StatusOK,
		Message: fmt.Sprintf(MsgDownloadURL, record.Name, ownerID),
		Data:    DownloadURLData{URL: url, RecordID: record.ID, Name: record.Name},
	})
}

// log returns the handler logger tagged with the request id
func (h *FilesHandler) log(r *http.Request) *slog.Logger {
	return h.logger.With("request_id", RequestID(r.Context()))
}
