package storage

import (
	"context"

	"github.com/iudanet/worksync/internal/models"
)

// DocumentStorage defines interface for workspace document persistence
type DocumentStorage interface {
	// GetDocument retrieves the current document of a workspace
	// Returns ErrDocumentNotFound if document doesn't exist
	GetDocument(ctx context.Context, key string) (*models.WorkspaceDocument, error)

	// PutDocument atomically replaces the document if the stored version equals
	// expectedVersion (0 means "document must not exist").
	// Returns ErrInvalidVersion if doc.Version != expectedVersion+1
	// Returns ErrVersionConflict if the stored version differs
	PutDocument(ctx context.Context, key string, doc *models.WorkspaceDocument, expectedVersion int64) error
}
