// Package redisdoc реализует storage.RemoteStore поверх Redis.
//
// Документ хранится как JSON под ключом worksync:doc:<workspace>. Транзакция
// использует WATCH/MULTI/EXEC: если документ изменился между чтением и
// записью, EXEC не выполняется и цикл повторяется на свежем состоянии.
// Каждая запись публикуется в канал worksync:doc:<workspace>:updates.
package redisdoc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iudanet/worksync/internal/client/storage"
	"github.com/iudanet/worksync/internal/models"
	"github.com/iudanet/worksync/internal/validation"
)

// DefaultPrefix - префикс ключей документов
const DefaultPrefix = "worksync:doc:"

// Store implements storage.RemoteStore using Redis
type Store struct {
	client *redis.Client
	logger *slog.Logger
	prefix string
}

var _ storage.RemoteStore = (*Store)(nil)

// New creates a Redis-backed store from a redis:// URL
func New(redisURL string, logger *slog.Logger) (*Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", classify(err))
	}

	return NewWithClient(client, logger), nil
}

// NewWithClient creates a store from an existing Redis client
func NewWithClient(client *redis.Client, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		client: client,
		logger: logger,
		prefix: DefaultPrefix,
	}
}

// key generates the Redis key for a workspace document
func (s *Store) key(workspace string) string {
	return s.prefix + workspace
}

// channel generates the pub/sub channel for a workspace document
func (s *Store) channel(workspace string) string {
	return s.key(workspace) + ":updates"
}

// Read returns the current document, or nil if it does not exist
func (s *Store) Read(ctx context.Context, workspace string) (*models.WorkspaceDocument, error) {
	raw, err := s.client.Get(ctx, s.key(workspace)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read document %s: %w", workspace, classify(err))
	}

	return s.decode(workspace, raw)
}

// Transact atomically reads, transforms and writes the document
func (s *Store) Transact(ctx context.Context, workspace string, fn storage.TransactFunc) (*models.WorkspaceDocument, error) {
	docKey := s.key(workspace)
	channel := s.channel(workspace)

	for attempt := 1; attempt <= storage.MaxTransactAttempts; attempt++ {
		var written *models.WorkspaceDocument
		var fnErr error

		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			var current *models.WorkspaceDocument

			raw, err := tx.Get(ctx, docKey).Bytes()
			switch {
			case errors.Is(err, redis.Nil):
			case err != nil:
				return err
			default:
				current, err = s.decode(workspace, raw)
				if err != nil {
					return err
				}
			}

			next, err := fn(current)
			if err != nil {
				fnErr = err
				return err
			}

			payload, err := json.Marshal(next)
			if err != nil {
				fnErr = fmt.Errorf("marshal document: %w", err)
				return fnErr
			}

			// Выполняется только если docKey не менялся после WATCH
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, docKey, payload, 0)
				pipe.Publish(ctx, channel, payload)
				return nil
			})
			if err != nil {
				return err
			}

			written = next
			return nil
		}, docKey)

		switch {
		case err == nil:
			return written, nil
		case errors.Is(err, redis.TxFailedErr):
			s.logger.Debug("Document changed concurrently, retrying",
				"workspace", workspace, "attempt", attempt)
			continue
		case fnErr != nil:
			return nil, fnErr
		case errors.Is(err, storage.ErrMalformedDocument):
			return nil, err
		default:
			return nil, fmt.Errorf("transact %s: %w", workspace, classify(err))
		}
	}

	return nil, fmt.Errorf("transact %s: gave up after %d attempts: %w",
		workspace, storage.MaxTransactAttempts, storage.ErrVersionConflict)
}

// Subscribe delivers the current document and every published update.
// Подписка оформляется до чтения текущего документа, поэтому запись,
// сделанная между ними, не теряется (в худшем случае приходит дважды).
func (s *Store) Subscribe(ctx context.Context, workspace string, handler storage.SnapshotHandler) (func(), error) {
	pubsub := s.client.Subscribe(ctx, s.channel(workspace))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", workspace, classify(err))
	}

	current, err := s.Read(ctx, workspace)
	if err != nil {
		_ = pubsub.Close()
		return nil, err
	}
	if current != nil {
		handler(current)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range pubsub.Channel() {
			doc, err := s.decode(workspace, []byte(msg.Payload))
			if err != nil {
				s.logger.Error("Ignoring malformed update", "workspace", workspace, "error", err)
				continue
			}
			handler(doc)
		}
	}()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			if err := pubsub.Close(); err != nil {
				s.logger.Warn("Failed to close subscription", "workspace", workspace, "error", err)
			}
			<-done
		})
	}

	go func() {
		select {
		case <-ctx.Done():
			stop()
		case <-done:
		}
	}()

	return stop, nil
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

// Ping checks if Redis is reachable
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return classify(err)
	}
	return nil
}

func (s *Store) decode(workspace string, raw []byte) (*models.WorkspaceDocument, error) {
	doc, dropped, err := validation.DecodeDocument(s.logger, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrMalformedDocument, err)
	}
	if dropped > 0 {
		s.logger.Warn("Remote document contained invalid items", "workspace", workspace, "dropped", dropped)
	}
	return doc, nil
}

// classify переводит ошибку Redis в ошибку хранилища. Ошибки ACL и
// аутентификации означают отказ в доступе, остальное - недоступность.
func classify(err error) error {
	msg := err.Error()
	for _, prefix := range []string{"NOAUTH", "NOPERM", "WRONGPASS"} {
		if strings.Contains(msg, prefix) {
			return fmt.Errorf("%w: %w", storage.ErrPermissionDenied, err)
		}
	}
	return fmt.Errorf("%w: %w", storage.ErrUnavailable, err)
}
