package filemanager

import "net/http"

// BatchStatus is the overall outcome of an upload batch. It only ever
// moves forward: StatusOK, then StatusClientError, then StatusServerError.
type BatchStatus int

const (
	StatusOK BatchStatus = iota
	StatusClientError
	StatusServerError
)

// Escalate returns the status after observing a file that failed with kind.
// A storage error moves any status to StatusServerError; any other failure
// moves StatusOK to StatusClientError and leaves worse statuses alone.
func (s BatchStatus) Escalate(kind Kind) BatchStatus {
	switch kind {
	case "":
		return s
	case KindStorageError:
		return StatusServerError
	default:
		if s == StatusOK {
			return StatusClientError
		}
		return s
	}
}

// HTTPStatus maps the batch status to the response code of an upload.
func (s BatchStatus) HTTPStatus() int {
	switch s {
	case StatusClientError:
		return http.StatusBadRequest
	case StatusServerError:
		return http.StatusInternalServerError
	default:
		return http.StatusOK
	}
}

func (s BatchStatus) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusClientError:
		return "client_error"
	case StatusServerError:
		return "server_error"
	default:
		return "unknown"
	}
}

// HTTPStatus maps an error kind to the response code of a single-item
// operation.
func (k Kind) HTTPStatus() int {
	switch k {
	case "":
		return http.StatusOK
	case KindUnsupportedType, KindDuplicateName, KindTooLarge:
		return http.StatusBadRequest
	case KindNotFound, KindObjectMissing:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
