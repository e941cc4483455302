package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/iudanet/worksync/internal/client/storage"
	"github.com/iudanet/worksync/internal/models"
)

// MemoryRemote is an in-process storage.RemoteStore.
//
// Transact holds the store lock for the whole read-fn-write cycle, so
// concurrent transactions are fully serialized. Subscribers are notified
// synchronously after the lock is released, in subscription order.
type MemoryRemote struct {
	docs     map[string]*models.WorkspaceDocument
	subs     map[string][]*subscription
	failNext []error
	writes   int
	nextID   int
	mu       sync.Mutex
	paused   bool
	queued   []queuedSnapshot
}

type subscription struct {
	handler storage.SnapshotHandler
	id      int
}

type queuedSnapshot struct {
	doc *models.WorkspaceDocument
	key string
}

var _ storage.RemoteStore = (*MemoryRemote)(nil)

// NewMemoryRemote creates an empty remote.
func NewMemoryRemote() *MemoryRemote {
	return &MemoryRemote{
		docs: make(map[string]*models.WorkspaceDocument),
		subs: make(map[string][]*subscription),
	}
}

// FailNext makes the next Read or Transact calls fail with errs, one per call.
func (m *MemoryRemote) FailNext(errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = append(m.failNext, errs...)
}

// Writes returns the number of successful transactional writes.
func (m *MemoryRemote) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// Document returns a copy of the stored document, or nil.
func (m *MemoryRemote) Document(key string) *models.WorkspaceDocument {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.docs[key].Clone()
}

// Put stores doc as-is, as if another device wrote it, and notifies subscribers.
func (m *MemoryRemote) Put(key string, doc *models.WorkspaceDocument) {
	m.mu.Lock()
	m.docs[key] = doc.Clone()
	subs := m.snapshotSubs(key)
	m.mu.Unlock()

	m.deliver(key, subs, doc)
}

// Publish delivers doc to subscribers without storing it.
// Моделирует запоздавший или повторно доставленный снимок.
func (m *MemoryRemote) Publish(key string, doc *models.WorkspaceDocument) {
	m.mu.Lock()
	subs := m.snapshotSubs(key)
	m.mu.Unlock()

	m.deliver(key, subs, doc)
}

// PauseDelivery queues notifications until ResumeDelivery.
func (m *MemoryRemote) PauseDelivery() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paused = true
}

// ResumeDelivery delivers queued notifications in order.
func (m *MemoryRemote) ResumeDelivery() {
	m.mu.Lock()
	m.paused = false
	queued := m.queued
	m.queued = nil
	m.mu.Unlock()

	for _, q := range queued {
		m.mu.Lock()
		subs := m.snapshotSubs(q.key)
		m.mu.Unlock()
		m.deliver(q.key, subs, q.doc)
	}
}

// Read returns a copy of the stored document.
func (m *MemoryRemote) Read(ctx context.Context, key string) (*models.WorkspaceDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.popFailure(); err != nil {
		return nil, err
	}

	return m.docs[key].Clone(), nil
}

// Transact applies fn atomically.
func (m *MemoryRemote) Transact(ctx context.Context, key string, fn storage.TransactFunc) (*models.WorkspaceDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrUnavailable, err)
	}

	m.mu.Lock()
	if err := m.popFailure(); err != nil {
		m.mu.Unlock()
		return nil, err
	}

	current := m.docs[key].Clone()
	next, err := fn(current)
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}

	expected := int64(1)
	if current != nil {
		expected = current.Version + 1
	}
	if next == nil || next.Version != expected {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: version must be %d", storage.ErrMalformedDocument, expected)
	}

	m.docs[key] = next.Clone()
	m.writes++
	subs := m.snapshotSubs(key)
	m.mu.Unlock()

	m.deliver(key, subs, next)

	return next.Clone(), nil
}

// Subscribe delivers the current document, if any, and every later write.
func (m *MemoryRemote) Subscribe(ctx context.Context, key string, handler storage.SnapshotHandler) (func(), error) {
	m.mu.Lock()
	if err := m.popFailure(); err != nil {
		m.mu.Unlock()
		return nil, err
	}

	m.nextID++
	sub := &subscription{id: m.nextID, handler: handler}
	m.subs[key] = append(m.subs[key], sub)
	current := m.docs[key].Clone()
	m.mu.Unlock()

	if current != nil {
		handler(current)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			subs := m.subs[key]
			for i, s := range subs {
				if s.id == sub.id {
					m.subs[key] = append(subs[:i:i], subs[i+1:]...)
					break
				}
			}
		})
	}, nil
}

// Subscribers returns the number of active subscriptions for key.
func (m *MemoryRemote) Subscribers(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs[key])
}

func (m *MemoryRemote) popFailure() error {
	if len(m.failNext) == 0 {
		return nil
	}
	err := m.failNext[0]
	m.failNext = m.failNext[1:]
	return err
}

func (m *MemoryRemote) snapshotSubs(key string) []*subscription {
	return append([]*subscription(nil), m.subs[key]...)
}

func (m *MemoryRemote) deliver(key string, subs []*subscription, doc *models.WorkspaceDocument) {
	m.mu.Lock()
	if m.paused {
		m.queued = append(m.queued, queuedSnapshot{key: key, doc: doc.Clone()})
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	for _, s := range subs {
		s.handler(doc.Clone())
	}
}
