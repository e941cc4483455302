package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/iudanet/worksync/internal/client/storage"
	"github.com/iudanet/worksync/internal/fingerprint"
	"github.com/iudanet/worksync/internal/models"
	"github.com/iudanet/worksync/internal/validation"
)

// Replica - локальная копия данных рабочего пространства и состояние
// защиты от петли синхронизации. Сохраняется в локальный кеш целиком,
// поэтому неподтвержденное изменение переживает перезапуск.
type Replica struct {
	LastAppliedFingerprint fingerprint.Fingerprint `json:"lastAppliedFingerprint"`
	Collections            models.Collections      `json:"collections"`
	PendingWriteAt         int64                   `json:"pendingWriteAt"`      // PendingWriteAt время последнего неподтвержденного изменения, 0 - нет
	SuppressUntil          int64                   `json:"suppressUntil"`       // SuppressUntil до этого момента исходящие коммиты откладываются
	LastAppliedRemoteAt    int64                   `json:"lastAppliedRemoteAt"` // LastAppliedRemoteAt lastUpdated последнего примененного снимка
	Version                int64                   `json:"version"`             // Version последняя известная версия удаленного документа
	Dirty                  bool                    `json:"dirty"`               // Dirty локальные данные содержат то, чего нет в удаленном документе
}

// replicaKey возвращает ключ реплики в локальном кеше
func replicaKey(workspace string) string {
	return "replica/" + workspace
}

// replicaStore сохраняет реплику в storage.CacheStorage в виде JSON
type replicaStore struct {
	cache  storage.CacheStorage
	logger *slog.Logger
	key    string
}

func newReplicaStore(cache storage.CacheStorage, workspace string, logger *slog.Logger) *replicaStore {
	return &replicaStore{cache: cache, key: replicaKey(workspace), logger: logger}
}

// load читает реплику. Отсутствующая или нечитаемая реплика заменяется пустой:
// удаленный документ все равно восстановит данные при подключении.
func (s *replicaStore) load(ctx context.Context) (Replica, error) {
	data, err := s.cache.Get(ctx, s.key)
	if errors.Is(err, storage.ErrNotFound) {
		s.logger.Info("No cached replica, starting empty", "key", s.key)
		return Replica{}, nil
	}
	if err != nil {
		return Replica{}, fmt.Errorf("failed to read cached replica: %w", err)
	}

	var r Replica
	if err := json.Unmarshal(data, &r); err != nil {
		s.logger.Warn("Cached replica is corrupted, starting empty", "key", s.key, "error", err)
		return Replica{}, nil
	}

	var dropped int
	r.Collections, dropped = validation.SanitizeCollections(s.logger, r.Collections)
	if dropped > 0 {
		// Отпечаток больше не соответствует данным
		r.LastAppliedFingerprint = ""
	}

	return r, nil
}

func (s *replicaStore) save(ctx context.Context, r Replica) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal replica: %w", err)
	}

	if err := s.cache.Set(ctx, s.key, data); err != nil {
		return fmt.Errorf("failed to save replica: %w", err)
	}

	return nil
}
