package storage

import "errors"

// Common storage errors
var (
	// ErrDocumentNotFound indicates that workspace document does not exist yet
	ErrDocumentNotFound = errors.New("document not found")

	// ErrVersionConflict indicates that stored version differs from the expected one
	ErrVersionConflict = errors.New("document version conflict")

	// ErrInvalidVersion indicates that new document version is not expected+1
	ErrInvalidVersion = errors.New("invalid document version")
)
