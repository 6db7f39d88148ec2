package domain

import (
	"mime"
	"path/filepath"
	"strings"
	"time"
)

const (
	PDFMimeType = "application/pdf"

	// DefaultMaxUploadBytes is the 10 MiB size guidance shown to users.
	DefaultMaxUploadBytes int64 = 10 << 20
)

// pdfMagic is the header every PDF file starts with.
var pdfMagic = []byte("%PDF-")

// UploadedDocument identifies the file a user selected for one analysis cycle.
type UploadedDocument struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	MimeType   string    `json:"mime_type"`
	SizeBytes  int64     `json:"size_bytes"`
	StorageKey string    `json:"storage_key"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// IsPDFMediaType reports whether the declared media type, or the file
// extension for generic binary uploads, identifies a PDF.
func IsPDFMediaType(mimeType, filename string) bool {
	mediaType, _, err := mime.ParseMediaType(strings.TrimSpace(mimeType))
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(mimeType))
	}
	switch mediaType {
	case PDFMimeType:
		return true
	case "", "application/octet-stream":
		return strings.EqualFold(filepath.Ext(filename), ".pdf")
	default:
		return false
	}
}

// HasPDFMagic reports whether head starts with the PDF header.
func HasPDFMagic(head []byte) bool {
	if len(head) < len(pdfMagic) {
		return false
	}
	return string(head[:len(pdfMagic)]) == string(pdfMagic)
}

// PDFMagicLen is the number of leading bytes HasPDFMagic inspects.
func PDFMagicLen() int {
	return len(pdfMagic)
}
