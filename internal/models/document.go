package models

import "fmt"

// CollectionName идентифицирует одну из четырех коллекций документа.
type CollectionName string

// Имена коллекций совпадают с именами полей в удаленном документе.
const (
	CollectionTasks           CollectionName = "tasks"
	CollectionReminders       CollectionName = "reminders"
	CollectionGoals           CollectionName = "goals"
	CollectionGoalCompletions CollectionName = "goalCompletions"
)

// AllCollections lists the collections in their canonical order.
var AllCollections = []CollectionName{
	CollectionTasks,
	CollectionReminders,
	CollectionGoals,
	CollectionGoalCompletions,
}

// ParseCollectionName converts user input into a CollectionName.
func ParseCollectionName(s string) (CollectionName, error) {
	switch s {
	case "tasks", "task":
		return CollectionTasks, nil
	case "reminders", "reminder":
		return CollectionReminders, nil
	case "goals", "goal":
		return CollectionGoals, nil
	case "goalCompletions", "completions", "completion":
		return CollectionGoalCompletions, nil
	default:
		return "", fmt.Errorf("unknown collection: %q", s)
	}
}

// Collections содержит четыре коллекции рабочего пространства.
// Порядок элементов внутри коллекции не имеет значения.
type Collections struct {
	Tasks           []Task           `json:"tasks"`
	Reminders       []Reminder       `json:"reminders"`
	Goals           []Goal           `json:"goals"`
	GoalCompletions []GoalCompletion `json:"goalCompletions"`
}

// Sizes returns the item count of every collection in canonical order.
func (c Collections) Sizes() [4]int {
	return [4]int{len(c.Tasks), len(c.Reminders), len(c.Goals), len(c.GoalCompletions)}
}

// Clone создает копию коллекций. Элементы - значения, поэтому
// копирования слайсов достаточно для независимости от оригинала.
func (c Collections) Clone() Collections {
	return Collections{
		Tasks:           append([]Task(nil), c.Tasks...),
		Reminders:       append([]Reminder(nil), c.Reminders...),
		Goals:           append([]Goal(nil), c.Goals...),
		GoalCompletions: append([]GoalCompletion(nil), c.GoalCompletions...),
	}
}

// Remove deletes the item with the given key from a collection.
// Returns false if nothing was removed.
func (c *Collections) Remove(name CollectionName, key string) bool {
	switch name {
	case CollectionTasks:
		return removeByKey(&c.Tasks, key)
	case CollectionReminders:
		return removeByKey(&c.Reminders, key)
	case CollectionGoals:
		return removeByKey(&c.Goals, key)
	case CollectionGoalCompletions:
		return removeByKey(&c.GoalCompletions, key)
	}
	return false
}

func removeByKey[T Item](items *[]T, key string) bool {
	kept := make([]T, 0, len(*items))
	removed := false
	for _, item := range *items {
		if item.ItemKey() == key {
			removed = true
			continue
		}
		kept = append(kept, item)
	}
	*items = kept
	return removed
}

// WorkspaceDocument представляет единственный общий удаленный документ.
// Version увеличивается ровно на 1 при каждой успешной транзакционной записи.
type WorkspaceDocument struct {
	Collections
	LastWriterID string `json:"lastWriterId"` // LastWriterID идентификатор устройства, сделавшего запись
	LastUpdated  int64  `json:"lastUpdated"`  // LastUpdated время записи (epoch ms)
	Version      int64  `json:"version"`      // Version монотонно растущая версия документа
}

// Clone создает глубокую копию документа.
func (d *WorkspaceDocument) Clone() *WorkspaceDocument {
	if d == nil {
		return nil
	}
	return &WorkspaceDocument{
		Collections:  d.Collections.Clone(),
		LastWriterID: d.LastWriterID,
		LastUpdated:  d.LastUpdated,
		Version:      d.Version,
	}
}
