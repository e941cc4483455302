// Package merge реализует поэлементное слияние коллекций по правилу
// Last-Write-Wins (LWW) на основе revisedAt.
//
// Удаления не отслеживаются (нет tombstone): отсутствие элемента во входящем
// наборе означает "нет мнения", а не "удалить". Поэтому элемент, удаленный на
// одном устройстве, может вернуться, если другое устройство позже пришлет
// более старый полный снимок, в котором он еще есть.
package merge

import (
	"log/slog"
	"sort"

	"github.com/iudanet/worksync/internal/models"
)

// Stats содержит статистику слияния одной коллекции.
type Stats struct {
	Inserted   int // Inserted новые ключи из incoming
	Replaced   int // Replaced ключи, где incoming победил
	Kept       int // Kept ключи, где existing оказался новее
	Dropped    int // Dropped элементы без валидного ключа
	Collisions int // Collisions повторяющиеся ключи внутри одного входа
}

// Add accumulates other into s.
func (s *Stats) Add(other Stats) {
	s.Inserted += other.Inserted
	s.Replaced += other.Replaced
	s.Kept += other.Kept
	s.Dropped += other.Dropped
	s.Collisions += other.Collisions
}

// Merger сливает коллекции и логирует отброшенные элементы.
type Merger struct {
	logger *slog.Logger
}

// New creates a Merger. A nil logger falls back to slog.Default().
func New(logger *slog.Logger) *Merger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Merger{logger: logger}
}

// Collections сливает каждую из четырех коллекций независимо.
// incoming побеждает при равных revisedAt.
func (m *Merger) Collections(existing, incoming models.Collections) (models.Collections, Stats) {
	var total Stats
	var out models.Collections
	var st Stats

	out.Tasks, st = Items(m.logger, models.CollectionTasks, existing.Tasks, incoming.Tasks)
	total.Add(st)
	out.Reminders, st = Items(m.logger, models.CollectionReminders, existing.Reminders, incoming.Reminders)
	total.Add(st)
	out.Goals, st = Items(m.logger, models.CollectionGoals, existing.Goals, incoming.Goals)
	total.Add(st)
	out.GoalCompletions, st = Items(m.logger, models.CollectionGoalCompletions, existing.GoalCompletions, incoming.GoalCompletions)
	total.Add(st)

	return out, total
}

// Items сливает две версии одной коллекции.
//
// Правила:
//   - ключ отсутствует в existing - элемент вставляется;
//   - incoming.Revision() >= existing.Revision() - incoming заменяет existing;
//   - иначе остается existing.
//
// revisedAt == 0 считается самой старой ревизией. Элементы без ключа логируются
// и исключаются. Повтор ключа внутри existing или incoming разрешается в пользу
// последнего обработанного элемента этой стороны, без сравнения ревизий.
// Результат отсортирован по ключу.
func Items[T models.Item](logger *slog.Logger, name models.CollectionName, existing, incoming []T) ([]T, Stats) {
	var st Stats
	index := make(map[string]T, len(existing)+len(incoming))

	for _, item := range existing {
		key := item.ItemKey()
		if key == "" {
			st.Dropped++
			logger.Warn("Dropping item without key", "collection", name, "side", "existing")
			continue
		}
		if _, dup := index[key]; dup {
			st.Collisions++
			logger.Warn("Duplicate key in collection, last one wins",
				"collection", name, "key", key, "side", "existing")
		}
		index[key] = item
	}

	latest := make(map[string]T, len(incoming))
	order := make([]string, 0, len(incoming))
	for _, item := range incoming {
		key := item.ItemKey()
		if key == "" {
			st.Dropped++
			logger.Warn("Dropping item without key", "collection", name, "side", "incoming")
			continue
		}
		if _, dup := latest[key]; dup {
			st.Collisions++
			logger.Warn("Duplicate key in collection, last one wins",
				"collection", name, "key", key, "side", "incoming")
		} else {
			order = append(order, key)
		}
		latest[key] = item
	}

	for _, key := range order {
		item := latest[key]
		current, exists := index[key]
		switch {
		case !exists:
			index[key] = item
			st.Inserted++
		case item.Revision() >= current.Revision():
			index[key] = item
			st.Replaced++
		default:
			st.Kept++
		}
	}

	keys := make([]string, 0, len(index))
	for key := range index {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := make([]T, 0, len(keys))
	for _, key := range keys {
		out = append(out, index[key])
	}

	return out, st
}
