package sync

import (
	"fmt"
	"time"

	"github.com/iudanet/worksync/internal/validation"
)

const (
	// DefaultDebounceWindow - окно debounce между последним локальным изменением и коммитом
	DefaultDebounceWindow = 1500 * time.Millisecond
	// DefaultSuppressionMargin - запас поверх debounce, в течение которого после
	// применения удаленного снимка исходящие коммиты откладываются
	DefaultSuppressionMargin = 1000 * time.Millisecond
	// DefaultCommitTimeout ограничивает одну удаленную транзакцию
	DefaultCommitTimeout = 10 * time.Second
)

// Config содержит настройки движка синхронизации.
type Config struct {
	Workspace         string        // Workspace ключ удаленного документа
	DeviceID          string        // DeviceID идентификатор этого устройства
	DebounceWindow    time.Duration // DebounceWindow окно объединения локальных изменений
	SuppressionMargin time.Duration // SuppressionMargin запас окна подавления эха
	CommitTimeout     time.Duration // CommitTimeout таймаут одной транзакции
}

// DefaultConfig returns a Config with default timings.
// Workspace and DeviceID must still be set by the caller.
func DefaultConfig() Config {
	return Config{
		DebounceWindow:    DefaultDebounceWindow,
		SuppressionMargin: DefaultSuppressionMargin,
		CommitTimeout:     DefaultCommitTimeout,
	}
}

// SuppressionWindow returns debounce + margin.
func (c Config) SuppressionWindow() time.Duration {
	return c.DebounceWindow + c.SuppressionMargin
}

// Validate checks that the config is usable.
func (c Config) Validate() error {
	if err := validation.ValidateWorkspaceKey(c.Workspace); err != nil {
		return err
	}
	if c.DeviceID == "" {
		return fmt.Errorf("device id cannot be empty")
	}
	if c.DebounceWindow <= 0 {
		return fmt.Errorf("debounce window must be positive, got %s", c.DebounceWindow)
	}
	if c.SuppressionMargin < 0 {
		return fmt.Errorf("suppression margin cannot be negative, got %s", c.SuppressionMargin)
	}
	if c.CommitTimeout <= 0 {
		return fmt.Errorf("commit timeout must be positive, got %s", c.CommitTimeout)
	}
	return nil
}
