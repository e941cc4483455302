package sync

import (
	"context"
	"io"
	"log/slog"
	gosync "sync"

	"github.com/iudanet/worksync/internal/client/storage"
	"github.com/iudanet/worksync/internal/fingerprint"
)

// t0 - стартовое время ручных часов в тестах (epoch ms)
const t0 = int64(1_700_000_000_000)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newCacheMock возвращает CacheStorageMock поверх map
func newCacheMock() *storage.CacheStorageMock {
	var mu gosync.Mutex
	data := make(map[string][]byte)

	return &storage.CacheStorageMock{
		GetFunc: func(ctx context.Context, key string) ([]byte, error) {
			mu.Lock()
			defer mu.Unlock()
			value, ok := data[key]
			if !ok {
				return nil, storage.ErrNotFound
			}
			return append([]byte(nil), value...), nil
		},
		SetFunc: func(ctx context.Context, key string, value []byte) error {
			mu.Lock()
			defer mu.Unlock()
			data[key] = append([]byte(nil), value...)
			return nil
		},
	}
}

func fingerprintOf(s string) fingerprint.Fingerprint {
	return fingerprint.Fingerprint(s)
}
