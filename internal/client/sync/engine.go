// Package sync синхронизирует локальную реплику рабочего пространства с
// единственным общим удаленным документом.
//
// Engine связывает отпечатки содержимого, LWW-слияние, debounce коммитов и
// защиту от петли синхронизации. Все точки входа (локальные мутации,
// срабатывание таймера, входящие снимки) сериализуются одним мьютексом;
// удаленная транзакция выполняется вне него над снимком состояния.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	gosync "sync"

	"github.com/iudanet/worksync/internal/client/storage"
	"github.com/iudanet/worksync/internal/clock"
	"github.com/iudanet/worksync/internal/fingerprint"
	"github.com/iudanet/worksync/internal/merge"
	"github.com/iudanet/worksync/internal/models"
	"github.com/iudanet/worksync/internal/validation"
)

var (
	// ErrEngineClosed is returned by operations on a closed engine
	ErrEngineClosed = errors.New("sync engine is closed")

	// ErrAlreadyStarted is returned when Start is called twice
	ErrAlreadyStarted = errors.New("sync engine already started")

	// ErrItemNotFound is returned by Delete when the key does not exist
	ErrItemNotFound = errors.New("item not found")
)

// ChangeSource указывает происхождение изменения локальных данных.
type ChangeSource string

const (
	// SourceLocal - изменение сделано на этом устройстве
	SourceLocal ChangeSource = "local"
	// SourceRemote - применен удаленный снимок
	SourceRemote ChangeSource = "remote"
)

// ChangeFunc получает копию коллекций после изменения.
type ChangeFunc func(source ChangeSource, cols models.Collections)

// Outcome - результат локальной мутации.
type Outcome struct {
	Err       error // Err ошибка валидации или закрытый движок
	Changed   bool  // Changed содержимое изменилось относительно базового отпечатка
	Scheduled bool  // Scheduled запланирован коммит
}

// SyncStatus - снимок состояния движка для отображения пользователю.
type SyncStatus struct {
	Fingerprint         fingerprint.Fingerprint
	LastError           string
	Workspace           string
	DeviceID            string
	State               GuardState
	Health              Status
	Version             int64
	PendingWriteAt      int64
	SuppressUntil       int64
	LastAppliedRemoteAt int64
	LastCommitAt        int64
	CommitScheduledAt   int64
	Counts              [4]int
	Dirty               bool
	Subscribed          bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces the system clock.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// Engine синхронизирует одну локальную реплику с одним удаленным документом.
type Engine struct {
	remote      storage.RemoteStore
	clock       clock.Clock
	ctx         context.Context
	replicas    *replicaStore
	merger      *merge.Merger
	guard       *LoopGuard
	scheduler   *Scheduler
	coordinator *Coordinator
	revisions   *clock.RevisionClock
	logger      *slog.Logger
	lastErr     error
	cancel      context.CancelFunc
	unsubscribe func()
	listeners   []ChangeFunc
	replica     Replica
	cfg         Config
	lastCommit  int64
	applySeq    uint64
	health      Status
	mu          gosync.Mutex
	commitMu    gosync.Mutex // commitMu сериализует коммиты; порядок захвата: commitMu, затем mu
	started     bool
	closed      bool
}

// NewEngine creates an engine. Call Start to load the cache and connect.
func NewEngine(cfg Config, remote storage.RemoteStore, cache storage.CacheStorage, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid sync config: %w", err)
	}

	e := &Engine{
		cfg:    cfg,
		remote: remote,
		clock:  clock.System(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.logger = e.logger.With("workspace", cfg.Workspace, "device_id", cfg.DeviceID)
	e.ctx, e.cancel = context.WithCancel(context.Background())
	e.replicas = newReplicaStore(cache, cfg.Workspace, e.logger)
	e.merger = merge.New(e.logger)
	e.revisions = clock.NewRevisionClock(e.clock)
	e.guard = NewLoopGuard(cfg.DeviceID, cfg.SuppressionWindow(), &e.replica)
	e.scheduler = NewScheduler(e.clock, cfg.DebounceWindow, e.onTimer)
	e.coordinator = NewCoordinator(remote, e.merger, e.clock, e.logger, cfg.Workspace, cfg.DeviceID)

	return e, nil
}

// Start загружает реплику из локального кеша, сверяет ее с удаленным
// документом и подписывается на изменения.
//
// Недоступность удаленного хранилища не является ошибкой Start: движок
// продолжает работать с кешем, а причина отражается в Status().
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrEngineClosed
	}
	if e.started {
		e.mu.Unlock()
		return ErrAlreadyStarted
	}
	e.started = true

	replica, err := e.replicas.load(ctx)
	if err != nil {
		e.logger.Warn("Failed to load cached replica, starting empty", "error", err)
	}
	e.replica = replica
	for _, rev := range maxRevisions(replica.Collections) {
		e.revisions.Observe(rev)
	}

	// Неподтвержденное изменение с прошлого запуска или данные, которых нет
	// в удаленном документе, требуют коммита
	if e.replica.PendingWriteAt > 0 || e.replica.Dirty {
		e.scheduler.Arm(e.cfg.DebounceWindow)
	}
	e.logger.Info("Loaded local replica",
		"version", e.replica.Version,
		"pending_write_at", e.replica.PendingWriteAt,
		"sizes", e.replica.Collections.Sizes())
	e.mu.Unlock()

	doc, err := e.remote.Read(ctx, e.cfg.Workspace)
	if err != nil {
		e.recordRemoteError("Failed to read remote document", err)
	} else {
		e.reconcileInitial(doc)
	}

	unsubscribe, err := e.remote.Subscribe(e.ctx, e.cfg.Workspace, e.HandleSnapshot)
	if err != nil {
		e.recordRemoteError("Failed to subscribe to remote document", err)
		return nil
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		unsubscribe()
		return nil
	}
	e.unsubscribe = unsubscribe
	e.mu.Unlock()

	e.logger.Info("Subscribed to remote document")

	return nil
}

// reconcileInitial обрабатывает документ, прочитанный при старте
func (e *Engine) reconcileInitial(doc *models.WorkspaceDocument) {
	if doc != nil {
		e.HandleSnapshot(doc)
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.health = StatusOK
	e.lastErr = nil

	// Документа еще нет: первый коммит создаст его из локальных данных
	if !isEmpty(e.replica.Collections) {
		e.replica.Dirty = true
		e.scheduler.Arm(e.cfg.DebounceWindow)
		e.persistLocked()
	}
}

// HandleSnapshot применяет входящий снимок удаленного документа.
// Вызывается подпиской; экспортирован для транспортов без собственной подписки.
func (e *Engine) HandleSnapshot(doc *models.WorkspaceDocument) {
	if doc == nil {
		return
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}

	ok, reason := e.guard.ShouldApply(doc)
	if !ok {
		e.logger.Debug("Ignoring remote snapshot",
			"reason", string(reason),
			"version", doc.Version,
			"last_updated", doc.LastUpdated,
			"last_writer_id", doc.LastWriterID)
		e.mu.Unlock()
		return
	}

	changed, cols := e.applyRemoteLocked(doc)
	listeners := e.listeners
	e.mu.Unlock()

	if changed {
		notify(listeners, SourceRemote, cols)
	}
}

// applyRemoteLocked сливает снимок в реплику (снимок - incoming). Паника при
// применении сбрасывает защиту в idle, чтобы движок не застрял в подавлении.
func (e *Engine) applyRemoteLocked(doc *models.WorkspaceDocument) (changed bool, cols models.Collections) {
	defer func() {
		if r := recover(); r != nil {
			e.guard.Reset()
			e.health = StatusFailed
			e.lastErr = fmt.Errorf("panic while applying remote snapshot: %v", r)
			e.logger.Error("Recovered panic while applying remote snapshot", "panic", r, "version", doc.Version)
			changed = false
		}
	}()

	remote, dropped := validation.SanitizeCollections(e.logger, doc.Collections)
	merged, stats := e.merger.Collections(e.replica.Collections, remote)
	for _, rev := range maxRevisions(remote) {
		e.revisions.Observe(rev)
	}

	before := fingerprint.Compute(e.replica.Collections)
	applied := fingerprint.Compute(merged)
	now := e.clock.Now()

	e.replica.Collections = merged
	e.guard.RecordApplied(doc, applied, now)
	e.applySeq++
	e.health = StatusOK
	e.lastErr = nil

	// Локально есть то, чего нет в удаленном документе: вернуть это после окна подавления
	if applied != fingerprint.Compute(remote) {
		e.replica.Dirty = true
		e.scheduler.ArmAt(e.guard.SuppressUntil())
	}

	e.logger.Info("Applied remote snapshot",
		"version", doc.Version,
		"last_writer_id", doc.LastWriterID,
		"own_echo", e.guard.IsOwnEcho(doc),
		"inserted", stats.Inserted,
		"replaced", stats.Replaced,
		"kept", stats.Kept,
		"dropped", dropped,
		"reconcile_back", e.replica.Dirty)

	e.persistLocked()

	return before != applied, merged.Clone()
}

// PutTask inserts or replaces a task.
func (e *Engine) PutTask(task models.Task) Outcome {
	if err := task.Validate(); err != nil {
		return Outcome{Err: err}
	}
	return e.Mutate(func(c *models.Collections) error {
		c.Tasks = upsert(c.Tasks, task)
		return nil
	})
}

// PutReminder inserts or replaces a reminder.
func (e *Engine) PutReminder(reminder models.Reminder) Outcome {
	if err := reminder.Validate(); err != nil {
		return Outcome{Err: err}
	}
	return e.Mutate(func(c *models.Collections) error {
		c.Reminders = upsert(c.Reminders, reminder)
		return nil
	})
}

// PutGoal inserts or replaces a goal.
func (e *Engine) PutGoal(goal models.Goal) Outcome {
	if err := goal.Validate(); err != nil {
		return Outcome{Err: err}
	}
	return e.Mutate(func(c *models.Collections) error {
		c.Goals = upsert(c.Goals, goal)
		return nil
	})
}

// PutCompletion inserts or replaces a goal completion for (goalId, date).
func (e *Engine) PutCompletion(completion models.GoalCompletion) Outcome {
	if err := validation.ValidateItem(completion); err != nil {
		return Outcome{Err: err}
	}
	return e.Mutate(func(c *models.Collections) error {
		c.GoalCompletions = upsert(c.GoalCompletions, completion)
		return nil
	})
}

// Delete removes an item locally.
//
// Удаление не распространяется как отдельное событие: элемент просто
// отсутствует в следующем снимке, а слияние считает отсутствие "нет мнения".
// Устройство, у которого элемент еще есть, вернет его при следующем коммите.
func (e *Engine) Delete(name models.CollectionName, key string) Outcome {
	return e.Mutate(func(c *models.Collections) error {
		if !c.Remove(name, key) {
			return fmt.Errorf("%w: %s/%s", ErrItemNotFound, name, key)
		}
		return nil
	})
}

// Mutate применяет произвольное изменение к копии коллекций.
//
// Элементы, чье каноническое содержимое изменилось или которые появились
// впервые, получают новый revisedAt. Если fn вернула ошибку или результат
// содержит невалидные элементы, мутация отбрасывается целиком.
func (e *Engine) Mutate(fn func(c *models.Collections) error) (outcome Outcome) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return Outcome{Err: ErrEngineClosed}
	}

	before := e.replica.Collections
	after := before.Clone()

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic in mutation: %v", r)
			}
		}()
		return fn(&after)
	}()
	if err != nil {
		e.mu.Unlock()
		return Outcome{Err: err}
	}

	if _, dropped := validation.SanitizeCollections(e.logger, after); dropped > 0 {
		e.mu.Unlock()
		return Outcome{Err: fmt.Errorf("%w: mutation contains %d invalid items", validation.ErrInvalidItem, dropped)}
	}

	after.Tasks = stampChanged(before.Tasks, after.Tasks, models.Task.WithRevision, e.revisions)
	after.Reminders = stampChanged(before.Reminders, after.Reminders, models.Reminder.WithRevision, e.revisions)
	after.Goals = stampChanged(before.Goals, after.Goals, models.Goal.WithRevision, e.revisions)
	after.GoalCompletions = stampChanged(before.GoalCompletions, after.GoalCompletions, models.GoalCompletion.WithRevision, e.revisions)

	changed := fingerprint.Compute(before) != fingerprint.Compute(after)
	e.replica.Collections = after

	current := fingerprint.Compute(after)
	scheduled := e.scheduler.OnLocalChange(current, e.guard)
	if scheduled {
		e.logger.Debug("Local change scheduled for commit",
			"pending_write_at", e.replica.PendingWriteAt,
			"commit_at", e.scheduler.Deadline())
	}

	e.persistLocked()
	listeners := e.listeners
	cols := after.Clone()
	e.mu.Unlock()

	if changed {
		notify(listeners, SourceLocal, cols)
	}

	return Outcome{Changed: changed, Scheduled: scheduled}
}

// onTimer срабатывает по истечении окна debounce
func (e *Engine) onTimer(generation uint64) {
	e.mu.Lock()
	if e.closed || !e.scheduler.Fired(generation) {
		e.mu.Unlock()
		return
	}

	now := e.clock.Now()
	if !e.guard.AllowCommit(now) {
		// Коммит не отбрасывается, а откладывается до конца окна подавления
		e.scheduler.ArmAt(e.guard.SuppressUntil())
		e.logger.Debug("Commit deferred by suppression window", "suppress_until", e.guard.SuppressUntil())
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	e.commit(false)
}

// Flush немедленно коммитит локальные изменения, не дожидаясь debounce и
// окна подавления. Возвращает Skipped, если коммитить нечего.
func (e *Engine) Flush(ctx context.Context) CommitResult {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return CommitResult{Status: StatusFailed, Err: ErrEngineClosed}
	}
	e.scheduler.Stop()
	e.mu.Unlock()

	return e.commitWithContext(ctx, true)
}

func (e *Engine) commit(force bool) CommitResult {
	ctx, cancel := context.WithTimeout(e.ctx, e.cfg.CommitTimeout)
	defer cancel()
	return e.commitWithContext(ctx, force)
}

// commitWithContext выполняет один цикл коммита. force означает явный запрос
// пользователя: коммит выполняется и при наличии лишь неподтвержденной записи.
func (e *Engine) commitWithContext(ctx context.Context, force bool) CommitResult {
	e.commitMu.Lock()
	defer e.commitMu.Unlock()

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return CommitResult{Status: StatusFailed, Err: ErrEngineClosed}
	}

	snapshot := e.replica.Collections.Clone()
	snapshotFP := fingerprint.Compute(snapshot)
	unchanged := snapshotFP == e.guard.Baseline() && !e.replica.Dirty
	if unchanged && !(force && e.replica.PendingWriteAt > 0) {
		if e.replica.PendingWriteAt > 0 {
			// Изменение было отменено до коммита: подтверждать нечего
			e.guard.ClearPending()
			e.persistLocked()
		}
		e.mu.Unlock()
		e.logger.Debug("Nothing to commit")
		return CommitResult{Status: StatusOK, Skipped: true}
	}

	applySeq := e.applySeq
	e.replica.Dirty = false
	e.mu.Unlock()

	result := e.coordinator.Commit(ctx, snapshot)

	e.mu.Lock()
	defer e.mu.Unlock()

	e.health = result.Status
	e.lastErr = result.Err

	switch result.Status {
	case StatusOK:
		e.lastCommit = e.clock.Now()
		if result.Document != nil {
			e.guard.RecordCommitted(result.Document)
		}
		// Если за время транзакции снимков не применялось, базой становится
		// закоммиченное содержимое
		if e.applySeq == applySeq {
			e.guard.SetBaseline(snapshotFP)
		}
	case StatusMalformed:
		e.guard.ClearPending()
		e.replica.Dirty = true
	default:
		// Изменение остается неподтвержденным до следующего цикла
		e.replica.Dirty = true
	}

	e.persistLocked()

	return result
}

// Snapshot returns a copy of the local collections.
func (e *Engine) Snapshot() models.Collections {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.replica.Collections.Clone()
}

// Status returns the current engine state.
func (e *Engine) Status() SyncStatus {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := SyncStatus{
		Workspace:           e.cfg.Workspace,
		DeviceID:            e.cfg.DeviceID,
		State:               e.guard.State(e.clock.Now()),
		Health:              e.health,
		Fingerprint:         fingerprint.Compute(e.replica.Collections),
		Version:             e.replica.Version,
		PendingWriteAt:      e.replica.PendingWriteAt,
		SuppressUntil:       e.replica.SuppressUntil,
		LastAppliedRemoteAt: e.replica.LastAppliedRemoteAt,
		LastCommitAt:        e.lastCommit,
		CommitScheduledAt:   e.scheduler.Deadline(),
		Counts:              e.replica.Collections.Sizes(),
		Dirty:               e.replica.Dirty,
		Subscribed:          e.unsubscribe != nil,
	}
	if e.lastErr != nil {
		st.LastError = e.lastErr.Error()
	}

	return st
}

// OnChange registers a listener for local content changes.
// Listeners are called without the engine lock held.
func (e *Engine) OnChange(fn ChangeFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, fn)
}

// Close stops the subscription and timers and waits for an in-flight commit.
// Незакоммиченные изменения остаются в кеше и будут отправлены при следующем запуске.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.scheduler.Stop()
	unsubscribe := e.unsubscribe
	e.unsubscribe = nil
	e.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}

	// Транзакция в полете не прерывается
	e.commitMu.Lock()
	e.commitMu.Unlock()
	e.cancel()

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.replicas.save(context.Background(), e.replica); err != nil {
		return fmt.Errorf("failed to persist replica on close: %w", err)
	}

	return nil
}

func (e *Engine) recordRemoteError(msg string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.health = Classify(err)
	e.lastErr = err

	if e.health == StatusPermissionDenied {
		e.logger.Error(msg, "status", e.health.String(), "error", err)
		return
	}
	e.logger.Warn(msg, "status", e.health.String(), "error", err)
}

// persistLocked сохраняет реплику; ошибка кеша не прерывает синхронизацию
func (e *Engine) persistLocked() {
	if err := e.replicas.save(e.ctx, e.replica); err != nil {
		e.logger.Warn("Failed to persist replica", "error", err)
	}
}

func notify(listeners []ChangeFunc, source ChangeSource, cols models.Collections) {
	for _, fn := range listeners {
		fn(source, cols)
	}
}

func isEmpty(c models.Collections) bool {
	return c.Sizes() == [4]int{}
}

// maxRevisions возвращает максимальный revisedAt каждой коллекции
func maxRevisions(c models.Collections) [4]int64 {
	return [4]int64{maxRevision(c.Tasks), maxRevision(c.Reminders), maxRevision(c.Goals), maxRevision(c.GoalCompletions)}
}

func maxRevision[T models.Item](items []T) int64 {
	var highest int64
	for _, item := range items {
		if item.Revision() > highest {
			highest = item.Revision()
		}
	}
	return highest
}

// upsert заменяет элемент с тем же ключом или добавляет новый
func upsert[T models.Item](items []T, item T) []T {
	key := item.ItemKey()
	for i := range items {
		if items[i].ItemKey() == key {
			items[i] = item
			return items
		}
	}
	return append(items, item)
}

// stampChanged выставляет новый revisedAt элементам, которые появились или
// изменили каноническое содержимое
func stampChanged[T models.Item](before, after []T, withRevision func(T, int64) T, revisions *clock.RevisionClock) []T {
	previous := make(map[string]T, len(before))
	for _, item := range before {
		previous[item.ItemKey()] = item
	}

	for i, item := range after {
		if prev, ok := previous[item.ItemKey()]; ok && prev.Canonical() == item.Canonical() {
			// Содержимое не изменилось: ревизия тоже не меняется
			after[i] = withRevision(item, prev.Revision())
			continue
		}
		after[i] = withRevision(item, revisions.Tick())
	}

	return after
}
