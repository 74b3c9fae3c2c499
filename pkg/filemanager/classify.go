package filemanager

import (
	"mime"
	"path/filepath"
	"strings"
)

// PDFContentType is the only content type accepted for upload.
const PDFContentType = "application/pdf"

// ContentTypeOf guesses the content type of a file from its name.
// The file content is not inspected.
func ContentTypeOf(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return ""
	}
	contentType := mime.TypeByExtension(ext)
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	return strings.TrimSpace(contentType)
}

// IsPDF reports whether name classifies as a PDF document.
func IsPDF(name string) bool {
	return ContentTypeOf(name) == PDFContentType
}
