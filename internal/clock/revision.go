package clock

import (
	"sync"

	"github.com/google/uuid"
)

// RevisionClock выдает значения revisedAt для локальных изменений.
//
// Обычно это просто текущее время, но значение никогда не повторяется и не
// уменьшается: две правки в одну миллисекунду или после перевода системных
// часов назад получают строго возрастающие ревизии. Observe учитывает
// ревизии, пришедшие с других устройств, как в часах Лампорта: правка,
// сделанная после получения удаленного изменения, всегда окажется новее него.
type RevisionClock struct {
	wall Clock
	last int64 // последняя выданная или наблюдаемая ревизия
	mu   sync.Mutex
}

// NewRevisionClock creates a RevisionClock on top of wall.
func NewRevisionClock(wall Clock) *RevisionClock {
	return &RevisionClock{wall: wall}
}

// Tick returns the revision for a new local change.
// counter = max(now, last+1)
func (rc *RevisionClock) Tick() int64 {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	next := rc.wall.Now()
	if next <= rc.last {
		next = rc.last + 1
	}
	rc.last = next

	return next
}

// Observe records a revision seen in a remote snapshot.
func (rc *RevisionClock) Observe(revision int64) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if revision > rc.last {
		rc.last = revision
	}
}

// Last returns the most recent issued or observed revision.
func (rc *RevisionClock) Last() int64 {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	return rc.last
}

// NewDeviceID генерирует уникальный идентификатор устройства (UUID).
func NewDeviceID() string {
	return uuid.New().String()
}
