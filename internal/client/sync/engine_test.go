package sync

import (
	"context"
	"fmt"
	gosync "sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/worksync/internal/client/storage"
	"github.com/iudanet/worksync/internal/fingerprint"
	"github.com/iudanet/worksync/internal/models"
	"github.com/iudanet/worksync/internal/testutil"
	"github.com/iudanet/worksync/internal/validation"
)

// newTestEngine создает и запускает движок на ручных часах
func newTestEngine(t *testing.T, clk *testutil.ManualClock, remote storage.RemoteStore, deviceID string, cache storage.CacheStorage) *Engine {
	t.Helper()

	cfg := DefaultConfig()
	cfg.Workspace = testKey
	cfg.DeviceID = deviceID

	e, err := NewEngine(cfg, remote, cache, WithClock(clk), WithLogger(discardLogger()))
	require.NoError(t, err)
	require.NoError(t, e.Start(context.Background()))
	t.Cleanup(func() { _ = e.Close() })

	return e
}

func TestNewEngine_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Workspace = "bad key!"
	cfg.DeviceID = "dev-a"

	_, err := NewEngine(cfg, testutil.NewMemoryRemote(), newCacheMock())
	assert.Error(t, err)
}

func TestEngine_BurstCollapsesIntoOneCommit(t *testing.T) {
	clk := testutil.NewManualClock(t0)
	remote := testutil.NewMemoryRemote()
	e := newTestEngine(t, clk, remote, "dev-a", newCacheMock())

	require.NoError(t, e.PutTask(models.Task{ID: "t1", Description: "draft"}).Err)
	clk.Advance(500 * time.Millisecond)
	require.NoError(t, e.PutTask(models.Task{ID: "t2", Description: "second"}).Err)
	clk.Advance(500 * time.Millisecond)
	out := e.PutTask(models.Task{ID: "t1", Description: "final"})
	require.NoError(t, out.Err)
	assert.True(t, out.Changed)
	assert.True(t, out.Scheduled)

	clk.Advance(1499 * time.Millisecond)
	assert.Equal(t, 0, remote.Writes())

	clk.Advance(time.Millisecond)
	assert.Equal(t, 1, remote.Writes())

	doc := remote.Document(testKey)
	require.NotNil(t, doc)
	assert.Equal(t, int64(1), doc.Version)
	assert.Equal(t, t0+2500, doc.LastUpdated)
	require.Len(t, doc.Tasks, 2)
	assert.Equal(t, "final", doc.Tasks[0].Description)

	// Эхо собственной записи подтверждает изменение и не вызывает второй коммит
	st := e.Status()
	assert.Equal(t, int64(0), st.PendingWriteAt)
	assert.Equal(t, int64(1), st.Version)
	assert.Equal(t, StatusOK, st.Health)
	assert.True(t, st.Subscribed)

	clk.Advance(10 * time.Second)
	assert.Equal(t, 1, remote.Writes())
	assert.Equal(t, StateIdle, e.Status().State)
}

func TestEngine_StampsRevisions(t *testing.T) {
	clk := testutil.NewManualClock(t0)
	e := newTestEngine(t, clk, testutil.NewMemoryRemote(), "dev-a", newCacheMock())

	require.NoError(t, e.PutTask(models.Task{ID: "t1", Description: "a"}).Err)
	require.NoError(t, e.PutTask(models.Task{ID: "t2", Description: "b"}).Err)

	snap := e.Snapshot()
	require.Len(t, snap.Tasks, 2)
	assert.Equal(t, t0, snap.Tasks[0].RevisedAt)
	assert.Equal(t, t0+1, snap.Tasks[1].RevisedAt, "same millisecond gets a strictly newer revision")

	// Повторное сохранение без изменений не трогает ревизию
	out := e.PutTask(models.Task{ID: "t1", Description: "a", RevisedAt: 5})
	require.NoError(t, out.Err)
	assert.False(t, out.Changed)
	assert.Equal(t, t0, e.Snapshot().Tasks[0].RevisedAt)

	clk.Advance(time.Second)
	require.NoError(t, e.PutTask(models.Task{ID: "t1", Description: "edited"}).Err)
	assert.Equal(t, t0+1000, e.Snapshot().Tasks[0].RevisedAt)
}

func TestEngine_LoopSuppressionBetweenDevices(t *testing.T) {
	clk := testutil.NewManualClock(t0)
	remote := testutil.NewMemoryRemote()
	a := newTestEngine(t, clk, remote, "dev-a", newCacheMock())
	b := newTestEngine(t, clk, remote, "dev-b", newCacheMock())

	var remoteChanges atomic.Int32
	b.OnChange(func(source ChangeSource, cols models.Collections) {
		if source == SourceRemote {
			remoteChanges.Add(1)
		}
	})

	require.NoError(t, a.PutTask(models.Task{ID: "t1", Description: "from a"}).Err)
	clk.Advance(1500 * time.Millisecond)
	require.Equal(t, 1, remote.Writes())

	// B применил снимок и не отправляет его обратно
	assert.Equal(t, int32(1), remoteChanges.Load())
	snap := b.Snapshot()
	require.Len(t, snap.Tasks, 1)
	assert.Equal(t, "from a", snap.Tasks[0].Description)

	st := b.Status()
	assert.Equal(t, int64(0), st.PendingWriteAt)
	assert.Equal(t, int64(0), st.CommitScheduledAt)
	assert.Equal(t, int64(1), st.Version)
	assert.Equal(t, StateSuppressingRemoteEcho, st.State)
	assert.Equal(t, t0+4000, st.SuppressUntil)

	clk.Advance(10 * time.Second)
	assert.Equal(t, 1, remote.Writes())
	assert.Equal(t, a.Status().Fingerprint, b.Status().Fingerprint)
}

func TestEngine_CommitDeferredBySuppressionWindow(t *testing.T) {
	clk := testutil.NewManualClock(t0)
	remote := testutil.NewMemoryRemote()
	a := newTestEngine(t, clk, remote, "dev-a", newCacheMock())
	b := newTestEngine(t, clk, remote, "dev-b", newCacheMock())

	require.NoError(t, a.PutTask(models.Task{ID: "t1", Description: "from a"}).Err)
	clk.Advance(1500 * time.Millisecond)
	require.Equal(t, 1, remote.Writes())

	// Правка B сразу после применения снимка: окно подавления до t0+4000
	require.NoError(t, b.PutTask(models.Task{ID: "t2", Description: "from b"}).Err)
	assert.Equal(t, t0+3000, b.Status().CommitScheduledAt)

	clk.Advance(1500 * time.Millisecond)
	assert.Equal(t, 1, remote.Writes(), "commit must wait for the suppression window")
	assert.Equal(t, t0+4000, b.Status().CommitScheduledAt, "commit is deferred, not dropped")

	clk.Advance(999 * time.Millisecond)
	assert.Equal(t, 1, remote.Writes())

	clk.Advance(time.Millisecond)
	require.Equal(t, 2, remote.Writes())

	doc := remote.Document(testKey)
	assert.Equal(t, int64(2), doc.Version)
	assert.Equal(t, "dev-b", doc.LastWriterID)
	require.Len(t, doc.Tasks, 2)

	// A применяет снимок B и тоже молчит
	clk.Advance(10 * time.Second)
	assert.Equal(t, 2, remote.Writes())
	assert.Len(t, a.Snapshot().Tasks, 2)
	assert.Equal(t, int64(0), b.Status().PendingWriteAt)
}

func TestEngine_IdenticalRemoteContentSchedulesNothing(t *testing.T) {
	clk := testutil.NewManualClock(t0)
	remote := testutil.NewMemoryRemote()
	e := newTestEngine(t, clk, remote, "dev-a", newCacheMock())

	require.NoError(t, e.PutTask(models.Task{ID: "t1", Description: "same"}).Err)
	clk.Advance(1500 * time.Millisecond)
	require.Equal(t, 1, remote.Writes())
	f1 := e.Status().Fingerprint

	clk.Advance(5 * time.Second)
	now := clk.Now()
	remote.Put(testKey, &models.WorkspaceDocument{
		Collections:  models.Collections{Tasks: []models.Task{{ID: "t1", Description: "same", RevisedAt: now}}},
		LastWriterID: "dev-b",
		LastUpdated:  now,
		Version:      2,
	})

	st := e.Status()
	assert.Equal(t, f1, st.Fingerprint)
	assert.Equal(t, int64(0), st.PendingWriteAt)
	assert.Equal(t, int64(0), st.CommitScheduledAt)
	assert.Equal(t, int64(2), st.Version)
	assert.Equal(t, now, e.Snapshot().Tasks[0].RevisedAt)

	// Повторное сохранение того же содержимого (например, UI) не планирует коммит
	out := e.PutTask(models.Task{ID: "t1", Description: "same"})
	require.NoError(t, out.Err)
	assert.False(t, out.Changed)
	assert.False(t, out.Scheduled)
	assert.Equal(t, int64(0), e.Status().PendingWriteAt)

	clk.Advance(10 * time.Second)
	assert.Equal(t, 1, remote.Writes())
}

func TestEngine_PendingChangeMatchedByRemoteIsNotCommitted(t *testing.T) {
	clk := testutil.NewManualClock(t0)
	remote := testutil.NewMemoryRemote()
	e := newTestEngine(t, clk, remote, "dev-a", newCacheMock())

	require.NoError(t, e.PutTask(models.Task{ID: "t1", Description: "same"}).Err)
	require.Equal(t, t0, e.Status().PendingWriteAt)

	clk.Advance(100 * time.Millisecond)
	remote.Put(testKey, &models.WorkspaceDocument{
		Collections:  models.Collections{Tasks: []models.Task{{ID: "t1", Description: "same", RevisedAt: t0 + 100}}},
		LastWriterID: "dev-b",
		LastUpdated:  t0 + 100,
		Version:      1,
	})

	clk.Advance(10 * time.Second)
	assert.Equal(t, 0, remote.Writes())

	st := e.Status()
	assert.Equal(t, int64(0), st.PendingWriteAt)
	assert.False(t, st.Dirty)
	assert.Equal(t, int64(1), st.Version)
}

func TestEngine_VersionMonotonicityUnderConcurrentCommits(t *testing.T) {
	const devices = 8

	clk := testutil.NewManualClock(t0)
	remote := testutil.NewMemoryRemote()

	engines := make([]*Engine, devices)
	for i := range engines {
		engines[i] = newTestEngine(t, clk, remote, fmt.Sprintf("dev-%d", i), newCacheMock())
		require.NoError(t, engines[i].PutTask(models.Task{ID: fmt.Sprintf("t%d", i)}).Err)
	}

	results := make([]CommitResult, devices)
	var wg gosync.WaitGroup
	for i, e := range engines {
		wg.Add(1)
		go func(i int, e *Engine) {
			defer wg.Done()
			results[i] = e.Flush(context.Background())
		}(i, e)
	}
	wg.Wait()

	for i, result := range results {
		require.True(t, result.OK(), "device %d: %v", i, result.Err)
		assert.False(t, result.Skipped, "device %d", i)
	}

	doc := remote.Document(testKey)
	require.NotNil(t, doc)
	assert.Equal(t, int64(devices), doc.Version)
	assert.Equal(t, devices, remote.Writes())
	assert.Len(t, doc.Tasks, devices)
}

func TestEngine_ReconcileBackAfterRemoteSnapshot(t *testing.T) {
	clk := testutil.NewManualClock(t0)
	remote := testutil.NewMemoryRemote()
	e := newTestEngine(t, clk, remote, "dev-a", newCacheMock())

	require.NoError(t, e.PutTask(models.Task{ID: "t2", Description: "local"}).Err)
	clk.Advance(100 * time.Millisecond)

	remote.Put(testKey, &models.WorkspaceDocument{
		Collections:  models.Collections{Tasks: []models.Task{{ID: "t1", Description: "remote", RevisedAt: t0 + 50}}},
		LastWriterID: "dev-b",
		LastUpdated:  t0 + 100,
		Version:      1,
	})

	st := e.Status()
	assert.True(t, st.Dirty)
	assert.Equal(t, t0+2600, st.CommitScheduledAt)
	assert.Len(t, e.Snapshot().Tasks, 2)

	clk.Advance(2499 * time.Millisecond)
	assert.Equal(t, 0, remote.Writes())

	clk.Advance(time.Millisecond)
	require.Equal(t, 1, remote.Writes())

	doc := remote.Document(testKey)
	assert.Equal(t, int64(2), doc.Version)
	require.Len(t, doc.Tasks, 2)
	assert.Equal(t, "remote", doc.Tasks[0].Description)
	assert.Equal(t, "local", doc.Tasks[1].Description)

	st = e.Status()
	assert.False(t, st.Dirty)
	assert.Equal(t, int64(0), st.PendingWriteAt)
}

func TestEngine_RejectsStaleAndOlderSnapshots(t *testing.T) {
	clk := testutil.NewManualClock(t0)
	remote := testutil.NewMemoryRemote()
	e := newTestEngine(t, clk, remote, "dev-a", newCacheMock())

	remote.Put(testKey, &models.WorkspaceDocument{
		Collections:  models.Collections{Tasks: []models.Task{{ID: "t1", RevisedAt: 10}}},
		LastWriterID: "dev-b",
		LastUpdated:  t0 + 2000,
		Version:      2,
	})
	require.Len(t, e.Snapshot().Tasks, 1)

	// Запоздавший снимок другого устройства
	remote.Publish(testKey, &models.WorkspaceDocument{
		Collections:  models.Collections{Tasks: []models.Task{{ID: "t9", RevisedAt: 10}}},
		LastWriterID: "dev-c",
		LastUpdated:  t0 + 1000,
		Version:      1,
	})
	assert.Len(t, e.Snapshot().Tasks, 1)

	// Снимок старее неподтвержденной локальной правки
	clk.Advance(5 * time.Second)
	require.NoError(t, e.PutTask(models.Task{ID: "t2"}).Err)
	remote.Publish(testKey, &models.WorkspaceDocument{
		Collections:  models.Collections{Tasks: []models.Task{{ID: "t8", RevisedAt: 10}}},
		LastWriterID: "dev-b",
		LastUpdated:  t0 + 3000,
		Version:      3,
	})

	snap := e.Snapshot()
	require.Len(t, snap.Tasks, 2)
	assert.Equal(t, "t1", snap.Tasks[0].ID)
	assert.Equal(t, "t2", snap.Tasks[1].ID)
	assert.Equal(t, int64(2), e.Status().Version)
}

func TestEngine_RedeliveredOwnWriteDoesNotRecommit(t *testing.T) {
	clk := testutil.NewManualClock(t0)
	remote := testutil.NewMemoryRemote()
	e := newTestEngine(t, clk, remote, "dev-a", newCacheMock())

	require.NoError(t, e.PutTask(models.Task{ID: "t1", Description: "draft"}).Err)
	clk.Advance(1500 * time.Millisecond)
	require.Equal(t, 1, remote.Writes())
	first := remote.Document(testKey)

	require.NoError(t, e.PutTask(models.Task{ID: "t1", Description: "final"}).Err)
	clk.Advance(10 * time.Second)
	require.Equal(t, 2, remote.Writes())

	// Повторная доставка первой собственной записи после второй
	remote.Publish(testKey, first)
	clk.Advance(10 * time.Second)

	assert.Equal(t, 2, remote.Writes())
	st := e.Status()
	assert.Equal(t, int64(2), st.Version)
	assert.False(t, st.Dirty)
	assert.Equal(t, int64(0), st.PendingWriteAt)

	snap := e.Snapshot()
	require.Len(t, snap.Tasks, 1)
	assert.Equal(t, "final", snap.Tasks[0].Description)
	assert.Equal(t, int64(2), remote.Document(testKey).Version)
}

func TestEngine_PanicDuringApplyResetsGuard(t *testing.T) {
	clk := testutil.NewManualClock(t0)
	remote := testutil.NewMemoryRemote()

	var explode atomic.Bool
	cache := newCacheMock()
	set := cache.SetFunc
	cache.SetFunc = func(ctx context.Context, key string, value []byte) error {
		if explode.Load() {
			panic("cache is broken")
		}
		return set(ctx, key, value)
	}

	e := newTestEngine(t, clk, remote, "dev-a", cache)
	require.NoError(t, e.PutTask(models.Task{ID: "t1"}).Err)
	require.Equal(t, StatePendingLocalWrite, e.Status().State)

	explode.Store(true)
	require.NotPanics(t, func() {
		remote.Put(testKey, &models.WorkspaceDocument{
			Collections:  models.Collections{Tasks: []models.Task{{ID: "t2", RevisedAt: 1}}},
			LastWriterID: "dev-b",
			LastUpdated:  t0 + 10,
			Version:      1,
		})
	})
	explode.Store(false)

	st := e.Status()
	assert.Equal(t, StateIdle, st.State)
	assert.Equal(t, StatusFailed, st.Health)
	assert.Contains(t, st.LastError, "cache is broken")
	assert.Equal(t, int64(0), st.SuppressUntil)
}

func TestEngine_PermissionDeniedKeepsLocalState(t *testing.T) {
	clk := testutil.NewManualClock(t0)
	remote := testutil.NewMemoryRemote()
	e := newTestEngine(t, clk, remote, "dev-a", newCacheMock())

	require.NoError(t, e.PutTask(models.Task{ID: "t1", Description: "secret"}).Err)
	remote.FailNext(fmt.Errorf("%w: rules rejected write", storage.ErrPermissionDenied))

	clk.Advance(1500 * time.Millisecond)
	assert.Equal(t, 0, remote.Writes())

	st := e.Status()
	assert.Equal(t, StatusPermissionDenied, st.Health)
	assert.Contains(t, st.LastError, "rules rejected write")
	assert.Equal(t, t0, st.PendingWriteAt)
	assert.True(t, st.Dirty)
	assert.Len(t, e.Snapshot().Tasks, 1)

	// Явная синхронизация после исправления доступа
	result := e.Flush(context.Background())
	require.True(t, result.OK(), "unexpected error: %v", result.Err)
	assert.Equal(t, 1, remote.Writes())
	assert.Equal(t, StatusOK, e.Status().Health)
}

func TestEngine_UnavailableKeepsLocalState(t *testing.T) {
	clk := testutil.NewManualClock(t0)
	remote := testutil.NewMemoryRemote()
	e := newTestEngine(t, clk, remote, "dev-a", newCacheMock())

	require.NoError(t, e.PutTask(models.Task{ID: "t1", Description: "offline"}).Err)
	remote.FailNext(storage.ErrUnavailable)

	clk.Advance(1500 * time.Millisecond)
	assert.Equal(t, 0, remote.Writes())

	st := e.Status()
	assert.Equal(t, StatusUnavailable, st.Health)
	assert.Equal(t, t0, st.PendingWriteAt)
	assert.True(t, st.Dirty)
	assert.Len(t, e.Snapshot().Tasks, 1)

	// Связь восстановлена
	result := e.Flush(context.Background())
	require.True(t, result.OK(), "unexpected error: %v", result.Err)
	assert.Equal(t, 1, remote.Writes())

	st = e.Status()
	assert.Equal(t, StatusOK, st.Health)
	assert.False(t, st.Dirty)
	assert.Equal(t, int64(0), st.PendingWriteAt)
}

func TestEngine_MalformedCommitClearsPending(t *testing.T) {
	clk := testutil.NewManualClock(t0)
	remote := testutil.NewMemoryRemote()
	e := newTestEngine(t, clk, remote, "dev-a", newCacheMock())

	require.NoError(t, e.PutTask(models.Task{ID: "t1"}).Err)
	remote.FailNext(storage.ErrMalformedDocument)

	clk.Advance(1500 * time.Millisecond)

	st := e.Status()
	assert.Equal(t, StatusMalformed, st.Health)
	assert.Equal(t, int64(0), st.PendingWriteAt)
	assert.True(t, st.Dirty)
}

func TestEngine_StartsOfflineFromCache(t *testing.T) {
	clk := testutil.NewManualClock(t0)
	remote := testutil.NewMemoryRemote()
	remote.FailNext(storage.ErrUnavailable, storage.ErrUnavailable)

	e := newTestEngine(t, clk, remote, "dev-a", newCacheMock())

	st := e.Status()
	assert.Equal(t, StatusUnavailable, st.Health)
	assert.False(t, st.Subscribed)

	out := e.PutTask(models.Task{ID: "t1"})
	require.NoError(t, out.Err)
	assert.True(t, out.Scheduled)
	assert.Len(t, e.Snapshot().Tasks, 1)
}

func TestEngine_RestartRecommitsPendingChange(t *testing.T) {
	clk := testutil.NewManualClock(t0)
	remote := testutil.NewMemoryRemote()
	cache := newCacheMock()

	first := newTestEngine(t, clk, remote, "dev-a", cache)
	require.NoError(t, first.PutTask(models.Task{ID: "t1", Description: "offline edit"}).Err)
	require.NoError(t, first.Close())
	assert.Equal(t, 0, remote.Writes())

	second := newTestEngine(t, clk, remote, "dev-a", cache)
	st := second.Status()
	assert.Equal(t, t0, st.PendingWriteAt)
	assert.NotZero(t, st.CommitScheduledAt)
	require.Len(t, second.Snapshot().Tasks, 1)

	clk.Advance(1500 * time.Millisecond)
	require.Equal(t, 1, remote.Writes())
	assert.Equal(t, "offline edit", remote.Document(testKey).Tasks[0].Description)
}

func TestEngine_FlushSkipsWhenNothingChanged(t *testing.T) {
	clk := testutil.NewManualClock(t0)
	remote := testutil.NewMemoryRemote()
	e := newTestEngine(t, clk, remote, "dev-a", newCacheMock())

	require.NoError(t, e.PutTask(models.Task{ID: "t1"}).Err)
	result := e.Flush(context.Background())
	require.True(t, result.OK())
	assert.False(t, result.Skipped)
	assert.True(t, result.Created)

	result = e.Flush(context.Background())
	assert.True(t, result.OK())
	assert.True(t, result.Skipped)
	assert.Equal(t, 1, remote.Writes())
	assert.Equal(t, 0, clk.PendingTimers())
}

func TestEngine_DeleteAndMutateValidation(t *testing.T) {
	clk := testutil.NewManualClock(t0)
	e := newTestEngine(t, clk, testutil.NewMemoryRemote(), "dev-a", newCacheMock())

	require.NoError(t, e.PutGoal(models.Goal{ID: "g1", Title: "run"}).Err)
	require.NoError(t, e.PutCompletion(models.GoalCompletion{GoalID: "g1", Date: "2024-01-01", Completed: true}).Err)
	require.NoError(t, e.PutReminder(models.Reminder{ID: "r1", Message: "go"}).Err)

	out := e.Delete(models.CollectionReminders, "r1")
	require.NoError(t, out.Err)
	assert.True(t, out.Changed)

	out = e.Delete(models.CollectionTasks, "missing")
	assert.ErrorIs(t, out.Err, ErrItemNotFound)

	out = e.PutCompletion(models.GoalCompletion{GoalID: "g1", Date: "01/02/2024"})
	assert.ErrorIs(t, out.Err, validation.ErrInvalidItem)

	out = e.PutTask(models.Task{ID: " "})
	assert.ErrorIs(t, out.Err, models.ErrMissingKey)

	before := e.Snapshot()
	out = e.Mutate(func(c *models.Collections) error {
		c.Goals[0].Title = "changed"
		c.Tasks = append(c.Tasks, models.Task{})
		return nil
	})
	assert.ErrorIs(t, out.Err, validation.ErrInvalidItem)
	assert.Equal(t, before, e.Snapshot(), "rejected mutation must not leak")

	out = e.Mutate(func(c *models.Collections) error {
		panic("bad callback")
	})
	assert.ErrorContains(t, out.Err, "bad callback")
	assert.Equal(t, before, e.Snapshot())

	sizes := e.Status().Counts
	assert.Equal(t, [4]int{0, 0, 1, 1}, sizes)
}

func TestEngine_Lifecycle(t *testing.T) {
	clk := testutil.NewManualClock(t0)
	remote := testutil.NewMemoryRemote()
	e := newTestEngine(t, clk, remote, "dev-a", newCacheMock())

	assert.ErrorIs(t, e.Start(context.Background()), ErrAlreadyStarted)
	assert.Equal(t, 1, remote.Subscribers(testKey))

	require.NoError(t, e.PutTask(models.Task{ID: "t1"}).Err)
	require.NoError(t, e.Close())
	require.NoError(t, e.Close())

	assert.Equal(t, 0, remote.Subscribers(testKey))
	assert.Equal(t, 0, clk.PendingTimers())
	assert.ErrorIs(t, e.PutTask(models.Task{ID: "t2"}).Err, ErrEngineClosed)
	assert.ErrorIs(t, e.Flush(context.Background()).Err, ErrEngineClosed)
	assert.ErrorIs(t, e.Start(context.Background()), ErrEngineClosed)
}

func TestEngine_OnChangeSources(t *testing.T) {
	clk := testutil.NewManualClock(t0)
	remote := testutil.NewMemoryRemote()
	e := newTestEngine(t, clk, remote, "dev-a", newCacheMock())

	var mu gosync.Mutex
	var sources []ChangeSource
	e.OnChange(func(source ChangeSource, cols models.Collections) {
		mu.Lock()
		defer mu.Unlock()
		sources = append(sources, source)
	})

	require.NoError(t, e.PutTask(models.Task{ID: "t1"}).Err)
	remote.Put(testKey, &models.WorkspaceDocument{
		Collections:  models.Collections{Tasks: []models.Task{{ID: "t2", RevisedAt: 1}}},
		LastWriterID: "dev-b",
		LastUpdated:  t0,
		Version:      1,
	})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []ChangeSource{SourceLocal, SourceRemote}, sources)
}

func TestEngine_StatusFingerprintMatchesSnapshot(t *testing.T) {
	clk := testutil.NewManualClock(t0)
	e := newTestEngine(t, clk, testutil.NewMemoryRemote(), "dev-a", newCacheMock())

	require.NoError(t, e.PutTask(models.Task{ID: "t1", Description: "x"}).Err)
	assert.Equal(t, fingerprint.Compute(e.Snapshot()), e.Status().Fingerprint)
}
