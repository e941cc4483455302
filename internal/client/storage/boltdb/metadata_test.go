package boltdb

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"

	"github.com/iudanet/worksync/internal/client/storage"
)

// createTestMetadataStorage создает временное BoltDB хранилище и инициализирует buckets
func createTestMetadataStorage(t *testing.T) (*Storage, func()) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "metadata_test.db")

	ctx := context.Background()
	store, err := New(ctx, dbPath)
	require.NoError(t, err)
	require.NotNil(t, store)

	cleanup := func() {
		require.NoError(t, store.Close())
		require.NoError(t, os.RemoveAll(tmpDir))
	}

	return store, cleanup
}

func TestSaveAndGetLastSyncTimestamp(t *testing.T) {
	ctx := context.Background()
	store, cleanup := createTestMetadataStorage(t)
	defer cleanup()

	// Изначально, если timestamp не сохранён, ожидаем 0
	ts, err := store.GetLastSyncTimestamp(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), ts)

	// Сохраняем timestamp
	var expectedTS int64 = 1234567890
	err = store.SaveLastSyncTimestamp(ctx, expectedTS)
	require.NoError(t, err)

	// Получаем и проверяем
	gotTS, err := store.GetLastSyncTimestamp(ctx)
	require.NoError(t, err)
	assert.Equal(t, expectedTS, gotTS)
}

func TestSaveAndGetDeviceID(t *testing.T) {
	ctx := context.Background()
	store, cleanup := createTestMetadataStorage(t)
	defer cleanup()

	// Идентификатор еще не сгенерирован
	id, err := store.GetDeviceID(ctx)
	require.NoError(t, err)
	assert.Empty(t, id)

	require.NoError(t, store.SaveDeviceID(ctx, "device-1"))

	id, err = store.GetDeviceID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "device-1", id)

	// Пустой идентификатор не сохраняется
	err = store.SaveDeviceID(ctx, "")
	assert.Error(t, err)
}

func TestMetadata_ClosedDB(t *testing.T) {
	ctx := context.Background()
	store, _ := createTestMetadataStorage(t)
	require.NoError(t, store.Close())

	_, err := store.GetDeviceID(ctx)
	assert.ErrorIs(t, err, storage.ErrStorageClosed)

	err = store.SaveLastSyncTimestamp(ctx, 1)
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
}

// Без bucket meta все операции с метаданными возвращают ошибку
func TestMetadata_BucketMissing(t *testing.T) {
	tests := []struct {
		name string
		call func(ctx context.Context, s *Storage) error
	}{
		{"get last sync", func(ctx context.Context, s *Storage) error {
			_, err := s.GetLastSyncTimestamp(ctx)
			return err
		}},
		{"save last sync", func(ctx context.Context, s *Storage) error {
			return s.SaveLastSyncTimestamp(ctx, 42)
		}},
		{"get device id", func(ctx context.Context, s *Storage) error {
			_, err := s.GetDeviceID(ctx)
			return err
		}},
		{"save device id", func(ctx context.Context, s *Storage) error {
			return s.SaveDeviceID(ctx, "device-1")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, cleanup := createTestMetadataStorage(t)
			defer cleanup()

			require.NoError(t, store.db.Update(func(tx *bbolt.Tx) error {
				return tx.DeleteBucket(bucketMetadata)
			}))

			err := tt.call(context.Background(), store)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "metadata bucket not found")
		})
	}
}
