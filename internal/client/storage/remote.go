package storage

import (
	"context"

	"github.com/iudanet/worksync/internal/models"
)

// MaxTransactAttempts ограничивает число повторов чтения внутри одной
// транзакции при конкурентной записи другим устройством.
const MaxTransactAttempts = 5

// TransactFunc получает текущее состояние документа (nil, если документа еще нет)
// и возвращает документ для записи. Функция может быть вызвана несколько раз,
// поэтому не должна иметь побочных эффектов.
type TransactFunc func(current *models.WorkspaceDocument) (*models.WorkspaceDocument, error)

// SnapshotHandler получает полный снимок документа при каждом его изменении.
type SnapshotHandler func(doc *models.WorkspaceDocument)

//go:generate moq -out remotestore_mock.go . RemoteStore

// RemoteStore defines the transactional primitives over one named remote document
type RemoteStore interface {
	// Read returns the current document.
	// Returns nil, nil if the document has never been written.
	Read(ctx context.Context, key string) (*models.WorkspaceDocument, error)

	// Transact atomically reads the document, applies fn and writes the result.
	// Implementations must guarantee that no concurrent write is lost: if the
	// document changed between read and write, fn is re-run on the fresh state.
	// Returns the document that was written.
	Transact(ctx context.Context, key string, fn TransactFunc) (*models.WorkspaceDocument, error)

	// Subscribe delivers the current document and then every subsequent change.
	// The returned function stops the subscription.
	Subscribe(ctx context.Context, key string, handler SnapshotHandler) (func(), error)
}
