package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/iudanet/worksync/internal/client/storage"
	"github.com/iudanet/worksync/internal/clock"
	"github.com/iudanet/worksync/internal/merge"
	"github.com/iudanet/worksync/internal/models"
	"github.com/iudanet/worksync/internal/validation"
)

// Status классифицирует результат обращения к удаленному хранилищу.
type Status int

const (
	// StatusOK - операция выполнена
	StatusOK Status = iota
	// StatusPermissionDenied - доступ к документу запрещен, требуется действие пользователя
	StatusPermissionDenied
	// StatusUnavailable - временная недоступность, кеш остается источником данных
	StatusUnavailable
	// StatusMalformed - удаленный документ невозможно интерпретировать
	StatusMalformed
	// StatusFailed - прочие ошибки, включая перехваченные паники
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusPermissionDenied:
		return "permission-denied"
	case StatusUnavailable:
		return "unavailable"
	case StatusMalformed:
		return "malformed"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Classify maps an error from a RemoteStore onto a Status.
func Classify(err error) Status {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, storage.ErrPermissionDenied):
		return StatusPermissionDenied
	case errors.Is(err, storage.ErrMalformedDocument), errors.Is(err, validation.ErrMalformedDocument):
		return StatusMalformed
	case errors.Is(err, storage.ErrUnavailable),
		errors.Is(err, storage.ErrVersionConflict),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return StatusUnavailable
	default:
		return StatusFailed
	}
}

// CommitResult описывает результат одного цикла коммита.
type CommitResult struct {
	Err      error                     // Err исходная ошибка, nil при успехе
	Document *models.WorkspaceDocument // Document записанный документ при успехе
	Merge    merge.Stats               // Merge статистика слияния последней попытки
	Status   Status                    // Status классификация результата
	Dropped  int                       // Dropped число отброшенных невалидных локальных элементов
	Created  bool                      // Created документ создан этой записью
	Skipped  bool                      // Skipped коммит не понадобился
}

// OK reports whether the commit succeeded or was not needed.
func (r CommitResult) OK() bool {
	return r.Status == StatusOK
}

// Coordinator выполняет атомарный цикл "прочитать - слить - записать" над
// удаленным документом.
type Coordinator struct {
	remote   storage.RemoteStore
	merger   *merge.Merger
	clock    clock.Clock
	logger   *slog.Logger
	key      string
	deviceID string
}

// NewCoordinator creates a coordinator for one remote document.
func NewCoordinator(remote storage.RemoteStore, merger *merge.Merger, clk clock.Clock, logger *slog.Logger, key, deviceID string) *Coordinator {
	return &Coordinator{
		remote:   remote,
		merger:   merger,
		clock:    clk,
		logger:   logger,
		key:      key,
		deviceID: deviceID,
	}
}

// Commit сливает локальные коллекции с текущим удаленным документом и
// записывает результат с версией +1. Если документа еще нет, он создается с
// версией 1. Ошибки и паники не выходят наружу: они отражены в Status.
func (c *Coordinator) Commit(ctx context.Context, local models.Collections) (result CommitResult) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Recovered panic during commit", "workspace", c.key, "panic", r)
			result = CommitResult{Status: StatusFailed, Err: fmt.Errorf("panic during commit: %v", r)}
		}
	}()

	outgoing, dropped := validation.SanitizeCollections(c.logger, local)
	result.Dropped = dropped

	doc, err := c.remote.Transact(ctx, c.key, func(current *models.WorkspaceDocument) (*models.WorkspaceDocument, error) {
		next := &models.WorkspaceDocument{
			LastWriterID: c.deviceID,
			LastUpdated:  c.clock.Now(),
		}

		if current == nil {
			next.Collections = outgoing.Clone()
			next.Version = 1
			result.Created = true
			result.Merge = merge.Stats{}
			return next, nil
		}

		existing, _ := validation.SanitizeCollections(c.logger, current.Collections)
		next.Collections, result.Merge = c.merger.Collections(existing, outgoing)
		next.Version = current.Version + 1
		result.Created = false

		return next, nil
	})

	result.Status = Classify(err)
	if err != nil {
		result.Err = err
		c.logFailure(result)
		return result
	}

	result.Document = doc
	c.logger.Info("Committed workspace document",
		"workspace", c.key,
		"version", doc.Version,
		"created", result.Created,
		"inserted", result.Merge.Inserted,
		"replaced", result.Merge.Replaced,
		"kept", result.Merge.Kept)

	return result
}

func (c *Coordinator) logFailure(result CommitResult) {
	switch result.Status {
	case StatusPermissionDenied:
		c.logger.Error("Commit rejected: permission denied", "workspace", c.key, "error", result.Err)
	case StatusMalformed:
		c.logger.Error("Commit failed: remote document is malformed", "workspace", c.key, "error", result.Err)
	case StatusUnavailable:
		c.logger.Warn("Commit failed: remote unavailable", "workspace", c.key, "error", result.Err)
	default:
		c.logger.Warn("Commit failed", "workspace", c.key, "error", result.Err)
	}
}
