package storage

import "context"

//go:generate moq -out cachestorage_mock.go . CacheStorage

// CacheStorage defines the local durable key/value cache on the device.
// Значения непрозрачны для хранилища: сериализация остается на вызывающей стороне.
type CacheStorage interface {
	// Get returns the value stored under key.
	// Returns ErrNotFound if the key doesn't exist
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, replacing any previous value
	Set(ctx context.Context, key string, value []byte) error
}
