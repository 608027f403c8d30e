package domain

import "time"

// DocumentKind is the declared source format of an uploaded file.
type DocumentKind string

const (
	DocumentKindText DocumentKind = "txt"
	DocumentKindXLSX DocumentKind = "xlsx"
	DocumentKindPPTX DocumentKind = "pptx"
)

// Document is the metadata row for an uploaded source file. The bytes live
// in the filesystem store under StorageKey; extracted text is ephemeral and
// never persisted.
type Document struct {
	ID         string
	UserID     string
	Filename   string
	Kind       DocumentKind
	SizeBytes  int64
	StorageKey string
	CreatedAt  time.Time
}
