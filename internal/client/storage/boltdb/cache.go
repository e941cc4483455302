package boltdb

import (
	"context"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/worksync/internal/client/storage"
)

// Get returns the value stored under key.
// Returns storage.ErrNotFound if the key doesn't exist
func (s *Storage) Get(ctx context.Context, key string) ([]byte, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var value []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketCache)
		if bucket == nil {
			return fmt.Errorf("cache bucket not found")
		}

		data := bucket.Get([]byte(key))
		if data == nil {
			return storage.ErrNotFound
		}

		// Слайс из bbolt действителен только внутри транзакции
		value = append([]byte(nil), data...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.sealer == nil {
		return value, nil
	}

	plaintext, err := s.sealer.Open(value, []byte(key))
	if err != nil {
		return nil, fmt.Errorf("failed to open cached value %q: %w", key, err)
	}

	return plaintext, nil
}

// Set stores value under key, replacing any previous value
func (s *Storage) Set(ctx context.Context, key string, value []byte) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}
	if key == "" {
		return fmt.Errorf("cache key cannot be empty")
	}

	data := value
	if s.sealer != nil {
		sealed, err := s.sealer.Seal(value, []byte(key))
		if err != nil {
			return fmt.Errorf("failed to seal cached value: %w", err)
		}
		data = sealed
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketCache)
		if bucket == nil {
			return fmt.Errorf("cache bucket not found")
		}

		if err := bucket.Put([]byte(key), data); err != nil {
			return fmt.Errorf("failed to save value: %w", err)
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("transaction failed: %w", err)
	}

	return nil
}
