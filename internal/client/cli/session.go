package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iudanet/worksync/internal/client/api"
	"github.com/iudanet/worksync/internal/client/storage"
	"github.com/iudanet/worksync/internal/client/storage/boltdb"
	"github.com/iudanet/worksync/internal/client/storage/redisdoc"
	"github.com/iudanet/worksync/internal/client/sync"
	"github.com/iudanet/worksync/internal/clock"
	"github.com/iudanet/worksync/internal/config"
)

// RemoteFactory открывает удаленное хранилище по конфигурации клиента.
// Возвращаемая функция освобождает соединение.
type RemoteFactory func(cfg config.ClientConfig, logger *slog.Logger) (storage.RemoteStore, func() error, error)

// OpenRemote выбирает транспорт по схеме URL: http(s) - сервер worksync,
// redis/rediss - документ в Redis.
//
// Соединение с Redis не проверяется заранее: недоступность хранилища
// отражается в статусе движка, а изменения остаются в локальном кеше.
func OpenRemote(cfg config.ClientConfig, logger *slog.Logger) (storage.RemoteStore, func() error, error) {
	u, err := url.Parse(cfg.Remote)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid remote URL: %w", err)
	}

	switch u.Scheme {
	case "http", "https":
		client := api.NewClient(cfg.Remote, api.WithToken(cfg.Token), api.WithLogger(logger))
		return client, func() error { return nil }, nil
	case "redis", "rediss":
		opts, err := redis.ParseURL(cfg.Remote)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid redis URL: %w", err)
		}
		store := redisdoc.NewWithClient(redis.NewClient(opts), logger)
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported remote scheme %q: use http, https, redis or rediss", u.Scheme)
	}
}

// session - открытый локальный кеш и запущенный движок синхронизации
type session struct {
	engine      *sync.Engine
	store       *boltdb.Storage
	closeRemote func() error
	deviceID    string
}

// openSession открывает кеш, при необходимости включает шифрование,
// создает движок и запускает его.
func (a *App) openSession(ctx context.Context) (*session, error) {
	store, err := boltdb.New(ctx, a.cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open local cache: %w", err)
	}

	s := &session{store: store}
	if err := a.startSession(ctx, s); err != nil {
		_ = s.close()
		return nil, err
	}

	return s, nil
}

func (a *App) startSession(ctx context.Context, s *session) error {
	// Кеш, зашифрованный ранее, открывается только с паролем, даже без --encrypt
	configured, err := s.store.EncryptionConfigured(ctx)
	if err != nil {
		return err
	}
	if a.cfg.Encrypt || configured {
		passphrase, err := a.readPassphrase()
		if err != nil {
			return err
		}
		if err := s.store.EnableEncryption(ctx, passphrase, a.cfg.Workspace, a.kdf); err != nil {
			return err
		}
	}

	s.deviceID, err = ensureDeviceID(ctx, s.store)
	if err != nil {
		return err
	}

	remote, closeRemote, err := a.openRemote(a.cfg, a.logger)
	if err != nil {
		return err
	}
	s.closeRemote = closeRemote

	syncCfg := sync.DefaultConfig()
	syncCfg.Workspace = a.cfg.Workspace
	syncCfg.DeviceID = s.deviceID
	syncCfg.DebounceWindow = a.cfg.Debounce
	syncCfg.SuppressionMargin = a.cfg.SuppressionMargin

	s.engine, err = sync.NewEngine(syncCfg, remote, s.store, sync.WithLogger(a.logger))
	if err != nil {
		return err
	}

	return s.engine.Start(ctx)
}

// ensureDeviceID возвращает сохраненный идентификатор устройства или создает новый
func ensureDeviceID(ctx context.Context, meta storage.MetadataStorage) (string, error) {
	id, err := meta.GetDeviceID(ctx)
	if err != nil {
		return "", err
	}
	if id != "" {
		return id, nil
	}

	id = clock.NewDeviceID()
	if err := meta.SaveDeviceID(ctx, id); err != nil {
		return "", err
	}
	return id, nil
}

// close останавливает движок (реплика сохраняется в кеш) и закрывает соединения
func (s *session) close() error {
	var errs []error
	if s.engine != nil {
		errs = append(errs, s.engine.Close())
	}
	if s.closeRemote != nil {
		errs = append(errs, s.closeRemote())
	}
	errs = append(errs, s.store.Close())
	return errors.Join(errs...)
}

// withSession открывает сессию, выполняет fn и всегда закрывает сессию
func (a *App) withSession(ctx context.Context, fn func(s *session) error) (err error) {
	s, err := a.openSession(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := s.close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close session: %w", closeErr)
		}
	}()

	return fn(s)
}

// mutate проверяет результат локального изменения, печатает done и сразу
// отправляет изменение, не дожидаясь debounce
func (a *App) mutate(ctx context.Context, s *session, outcome sync.Outcome, done string) error {
	if outcome.Err != nil {
		return outcome.Err
	}
	if !outcome.Changed {
		a.io.Println("No changes.")
		return nil
	}
	a.io.Println(done)
	return a.commit(ctx, s, false)
}

// commit отправляет неподтвержденные изменения. force коммитит даже
// если движок не видит локальных изменений.
func (a *App) commit(ctx context.Context, s *session, force bool) error {
	st := s.engine.Status()
	if !force && st.PendingWriteAt == 0 && !st.Dirty {
		return nil
	}

	result := s.engine.Flush(ctx)
	switch {
	case result.OK():
		if err := s.store.SaveLastSyncTimestamp(ctx, time.Now().UnixMilli()); err != nil {
			a.logger.Warn("Failed to save last sync timestamp", "error", err)
		}
		if result.Skipped {
			a.io.Println("Already in sync.")
			return nil
		}
		version := int64(0)
		if result.Document != nil {
			version = result.Document.Version
		}
		a.io.Printf("Synced workspace %q (version %d).\n", a.cfg.Workspace, version)
		return nil
	case result.Status == sync.StatusUnavailable:
		a.io.Println("Remote store is unavailable; changes are saved locally and will be sent on the next run.")
		return nil
	default:
		return fmt.Errorf("failed to sync (%s): %w", result.Status, result.Err)
	}
}
