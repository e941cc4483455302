package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/worksync/internal/models"
	"github.com/iudanet/worksync/internal/server/storage"
)

// GetDocument retrieves the current document of a workspace
// Returns ErrDocumentNotFound if document doesn't exist
func (s *Storage) GetDocument(ctx context.Context, key string) (*models.WorkspaceDocument, error) {
	var data []byte

	err := s.db.QueryRowContext(ctx, `SELECT data FROM documents WHERE key = ?`, key).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	doc := &models.WorkspaceDocument{}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document: %w", err)
	}

	return doc, nil
}

// PutDocument atomically replaces the document (compare-and-swap по версии)
func (s *Storage) PutDocument(ctx context.Context, key string, doc *models.WorkspaceDocument, expectedVersion int64) error {
	if doc == nil || doc.Version != expectedVersion+1 {
		return storage.ErrInvalidVersion
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var current int64
	err = tx.QueryRowContext(ctx, `SELECT version FROM documents WHERE key = ?`, key).Scan(&current)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to read document version: %w", err)
	}

	if current != expectedVersion {
		return fmt.Errorf("%w: stored %d, expected %d", storage.ErrVersionConflict, current, expectedVersion)
	}

	now := time.Now().Unix()

	if expectedVersion == 0 {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO documents (key, version, last_writer_id, last_updated, data, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, key, doc.Version, doc.LastWriterID, doc.LastUpdated, data, now, now)
	} else {
		_, err = tx.ExecContext(ctx, `
			UPDATE documents
			SET version = ?, last_writer_id = ?, last_updated = ?, data = ?, updated_at = ?
			WHERE key = ? AND version = ?
		`, doc.Version, doc.LastWriterID, doc.LastUpdated, data, now, key, expectedVersion)
	}
	if err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
