package storage

import "context"

//go:generate moq -out metadatastorage_mock.go . MetadataStorage

// MetadataStorage defines interface for storing client metadata
type MetadataStorage interface {
	// GetDeviceID returns the stable identifier of this device.
	// Returns an empty string if it has not been generated yet
	GetDeviceID(ctx context.Context) (string, error)

	// SaveDeviceID persists the identifier of this device
	SaveDeviceID(ctx context.Context, deviceID string) error

	// SaveLastSyncTimestamp saves the timestamp of the last successful sync
	SaveLastSyncTimestamp(ctx context.Context, timestamp int64) error

	// GetLastSyncTimestamp retrieves the timestamp of the last successful sync
	// Returns 0 if no sync has been performed yet
	GetLastSyncTimestamp(ctx context.Context) (int64, error)
}
