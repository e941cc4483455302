package redisdoc

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/worksync/internal/client/storage"
	"github.com/iudanet/worksync/internal/models"
)

const workspace = "home"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupTestRedis(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store, err := New("redis://"+mr.Addr(), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

// bump возвращает TransactFunc, добавляющую задачу id к текущему документу.
func bump(id string) storage.TransactFunc {
	return func(current *models.WorkspaceDocument) (*models.WorkspaceDocument, error) {
		next := &models.WorkspaceDocument{Version: 1, LastWriterID: "dev-a"}
		if current != nil {
			next = current.Clone()
			next.Version = current.Version + 1
		}
		next.Tasks = append(next.Tasks, models.Task{ID: id, Description: id, RevisedAt: next.Version})
		return next, nil
	}
}

func TestNew(t *testing.T) {
	store, _ := setupTestRedis(t)
	require.NoError(t, store.Ping(context.Background()))
}

func TestNew_InvalidURL(t *testing.T) {
	_, err := New("not-a-url://", testLogger())
	require.Error(t, err)
}

func TestNew_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := New("redis://"+addr, testLogger())
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrUnavailable)
}

func TestStore_ReadMissing(t *testing.T) {
	store, _ := setupTestRedis(t)

	doc, err := store.Read(context.Background(), workspace)
	require.NoError(t, err)
	assert.Nil(t, doc)
}

func TestStore_TransactCreatesAndUpdates(t *testing.T) {
	store, mr := setupTestRedis(t)
	ctx := context.Background()

	doc, err := store.Transact(ctx, workspace, bump("t1"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), doc.Version)

	doc, err = store.Transact(ctx, workspace, bump("t2"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), doc.Version)

	stored, err := store.Read(ctx, workspace)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, int64(2), stored.Version)
	assert.Len(t, stored.Tasks, 2)

	assert.True(t, mr.Exists(DefaultPrefix+workspace))
}

func TestStore_TransactRetriesOnConcurrentWrite(t *testing.T) {
	store, mr := setupTestRedis(t)
	ctx := context.Background()

	_, err := store.Transact(ctx, workspace, bump("t1"))
	require.NoError(t, err)

	other := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer other.Close()

	calls := 0
	doc, err := store.Transact(ctx, workspace, func(current *models.WorkspaceDocument) (*models.WorkspaceDocument, error) {
		calls++
		if calls == 1 {
			// Другое устройство успевает записать между WATCH и EXEC
			concurrent, err := bump("other")(current.Clone())
			require.NoError(t, err)
			payload, err := json.Marshal(concurrent)
			require.NoError(t, err)
			require.NoError(t, other.Set(ctx, DefaultPrefix+workspace, payload, 0).Err())
		}
		return bump("mine")(current)
	})
	require.NoError(t, err)

	assert.Equal(t, 2, calls)
	assert.Equal(t, int64(3), doc.Version)

	ids := make([]string, 0, len(doc.Tasks))
	for _, task := range doc.Tasks {
		ids = append(ids, task.ID)
	}
	assert.ElementsMatch(t, []string{"t1", "other", "mine"}, ids)
}

func TestStore_TransactFnErrorAbortsWrite(t *testing.T) {
	store, _ := setupTestRedis(t)
	ctx := context.Background()

	boom := errors.New("boom")
	_, err := store.Transact(ctx, workspace, func(*models.WorkspaceDocument) (*models.WorkspaceDocument, error) {
		return nil, boom
	})
	require.ErrorIs(t, err, boom)

	doc, err := store.Read(ctx, workspace)
	require.NoError(t, err)
	assert.Nil(t, doc)
}

func TestStore_MalformedDocument(t *testing.T) {
	store, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, mr.Set(DefaultPrefix+workspace, "[1,2,3]"))

	_, err := store.Read(ctx, workspace)
	require.ErrorIs(t, err, storage.ErrMalformedDocument)

	called := false
	_, err = store.Transact(ctx, workspace, func(current *models.WorkspaceDocument) (*models.WorkspaceDocument, error) {
		called = true
		return current, nil
	})
	require.ErrorIs(t, err, storage.ErrMalformedDocument)
	assert.False(t, called)
}

func TestStore_PermissionDenied(t *testing.T) {
	mr := miniredis.RunT(t)
	mr.RequireAuth("secret")

	store := NewWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), testLogger())
	defer store.Close()

	_, err := store.Read(context.Background(), workspace)
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrPermissionDenied)
}

func TestStore_Unavailable(t *testing.T) {
	store, mr := setupTestRedis(t)
	mr.Close()

	_, err := store.Read(context.Background(), workspace)
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrUnavailable)

	_, err = store.Transact(context.Background(), workspace, bump("t1"))
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrUnavailable)
}

func TestStore_Subscribe(t *testing.T) {
	store, mr := setupTestRedis(t)
	ctx := context.Background()

	_, err := store.Transact(ctx, workspace, bump("t1"))
	require.NoError(t, err)

	received := make(chan *models.WorkspaceDocument, 10)
	stop, err := store.Subscribe(ctx, workspace, func(doc *models.WorkspaceDocument) {
		received <- doc
	})
	require.NoError(t, err)
	defer stop()

	select {
	case doc := <-received:
		assert.Equal(t, int64(1), doc.Version, "current document is delivered first")
	case <-time.After(2 * time.Second):
		t.Fatal("initial snapshot not delivered")
	}

	writer, err := New("redis://"+mr.Addr(), testLogger())
	require.NoError(t, err)
	defer writer.Close()

	_, err = writer.Transact(ctx, workspace, bump("t2"))
	require.NoError(t, err)

	select {
	case doc := <-received:
		assert.Equal(t, int64(2), doc.Version)
		assert.Len(t, doc.Tasks, 2)
	case <-time.After(2 * time.Second):
		t.Fatal("update not delivered")
	}
}

func TestStore_SubscribeSkipsMalformedMessages(t *testing.T) {
	store, mr := setupTestRedis(t)
	ctx := context.Background()

	received := make(chan *models.WorkspaceDocument, 10)
	stop, err := store.Subscribe(ctx, workspace, func(doc *models.WorkspaceDocument) {
		received <- doc
	})
	require.NoError(t, err)
	defer stop()

	mr.Publish(DefaultPrefix+workspace+":updates", "garbage")
	_, err = store.Transact(ctx, workspace, bump("t1"))
	require.NoError(t, err)

	select {
	case doc := <-received:
		assert.Equal(t, int64(1), doc.Version)
	case <-time.After(2 * time.Second):
		t.Fatal("update not delivered")
	}
}

func TestStore_SubscribeStopsOnContextCancel(t *testing.T) {
	store, mr := setupTestRedis(t)

	ctx, cancel := context.WithCancel(context.Background())
	_, err := store.Subscribe(ctx, workspace, func(*models.WorkspaceDocument) {})
	require.NoError(t, err)

	cancel()

	assert.Eventually(t, func() bool {
		return len(mr.PubSubChannels("")) == 0
	}, 2*time.Second, 10*time.Millisecond)
}
