package api

import (
	"net/http"

	"github.com/go-chi/render"
	"github.com/tendant/filemanager/pkg/filemanager"
)

// Messages returned by the HTTP layer
const (
	MsgWelcome         = "Welcome to the file manager API"
	MsgBatchIncomplete = "One or more files could not be uploaded"
	MsgDownloadURL     = "Download URL for the file '%s' of user '%d'"
	MsgInvalidOwnerID  = "Invalid user ID"
	MsgInvalidRecordID = "Invalid file ID"
	MsgInvalidForm     = "Invalid multipart form"
	MsgNoFiles         = "No files provided"
	MsgInternalError   = "An internal server error occurred"
)

// MessageResponse is the body of delete and error responses
type MessageResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// UploadResponse reports one result per file plus the created records
type UploadResponse struct {
	Status  int                      `json:"status"`
	Message string                   `json:"message"`
	Results []filemanager.FileResult `json:"results"`
	Data    []*filemanager.Record    `json:"data"`
}

// ListResponse carries the records of one user
type ListResponse struct {
	Status  int                   `json:"status"`
	Message string                `json:"message"`
	Data    []*filemanager.Record `json:"data"`
}

// DownloadURLResponse carries a freshly presigned URL
type DownloadURLResponse struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    DownloadURLData `json:"data"`
}

type DownloadURLData struct {
	URL      string `json:"url"`
	RecordID int64  `json:"id"`
	Name     string `json:"test_name"`
}

func writeMessage(w http.ResponseWriter, r *http.Request, status int, message string) {
	render.Status(r, status)
	render.JSON(w, r, MessageResponse{Status: status, Message: message})
}

// writeError maps a service error to its status code and client message
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := filemanager.KindOf(err)
	writeMessage(w, r, kind.HTTPStatus(), filemanager.DetailOf(err, MsgInternalError))
}
