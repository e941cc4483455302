package boltdb

import (
	"context"
	"encoding/binary"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/worksync/internal/client/storage"
)

const (
	keyLastSyncTimestamp = "last_sync_timestamp"
	keyDeviceID          = "device_id"
	keyCacheSalt         = "cache_salt"
	keyCacheKeyCheck     = "cache_key_check"
)

// GetDeviceID returns the stable identifier of this device.
// Returns an empty string if it has not been generated yet
func (s *Storage) GetDeviceID(ctx context.Context) (string, error) {
	value, err := s.getMeta(keyDeviceID)
	if err != nil {
		return "", fmt.Errorf("failed to get device id: %w", err)
	}
	return string(value), nil
}

// SaveDeviceID persists the identifier of this device
func (s *Storage) SaveDeviceID(ctx context.Context, deviceID string) error {
	if deviceID == "" {
		return fmt.Errorf("device id cannot be empty")
	}
	if err := s.putMeta(keyDeviceID, []byte(deviceID)); err != nil {
		return fmt.Errorf("failed to save device id: %w", err)
	}
	return nil
}

// SaveLastSyncTimestamp saves the timestamp of the last successful sync
func (s *Storage) SaveLastSyncTimestamp(ctx context.Context, timestamp int64) error {
	// Конвертируем int64 в bytes
	timestampBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(timestampBytes, uint64(timestamp))

	if err := s.putMeta(keyLastSyncTimestamp, timestampBytes); err != nil {
		return fmt.Errorf("failed to save last sync timestamp: %w", err)
	}
	return nil
}

// GetLastSyncTimestamp retrieves the timestamp of the last successful sync
// Returns 0 if no sync has been performed yet
func (s *Storage) GetLastSyncTimestamp(ctx context.Context) (int64, error) {
	timestampBytes, err := s.getMeta(keyLastSyncTimestamp)
	if err != nil {
		return 0, fmt.Errorf("failed to get last sync timestamp: %w", err)
	}

	// Если timestamp не найден, возвращаем 0 (первая синхронизация)
	if len(timestampBytes) != 8 {
		return 0, nil
	}

	return int64(binary.BigEndian.Uint64(timestampBytes)), nil
}

// getMeta возвращает копию значения или nil, если ключа нет
func (s *Storage) getMeta(key string) ([]byte, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var value []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketMetadata)
		if bucket == nil {
			return fmt.Errorf("metadata bucket not found")
		}

		if data := bucket.Get([]byte(key)); data != nil {
			value = append([]byte(nil), data...)
		}
		return nil
	})

	return value, err
}

func (s *Storage) putMeta(key string, value []byte) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketMetadata)
		if bucket == nil {
			return fmt.Errorf("metadata bucket not found")
		}

		return bucket.Put([]byte(key), value)
	})
}
