package models

import (
	"errors"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Item представляет доменную запись, участвующую в синхронизации.
// RevisedAt используется только для разрешения конфликтов и никогда
// не показывается пользователю.
type Item interface {
	// ItemKey возвращает уникальный ключ записи внутри коллекции.
	// Пустая строка означает, что у записи нет валидного ключа.
	ItemKey() string

	// Revision возвращает revisedAt (epoch ms). 0 = самая старая ревизия.
	Revision() int64

	// Canonical возвращает каноническую сериализацию всех полей, кроме revisedAt.
	Canonical() string

	// Validate проверяет минимально допустимую форму записи.
	Validate() error
}

// ErrMissingKey indicates that an item has no usable key field.
var ErrMissingKey = errors.New("item key is missing")

// Task представляет задачу.
type Task struct {
	ID          string `json:"id"`          // ID уникальный идентификатор задачи
	Description string `json:"description"` // Description текст задачи
	Notes       string `json:"notes"`       // Notes дополнительные заметки
	DueAt       int64  `json:"dueAt"`       // DueAt срок (epoch ms), 0 если не задан
	RevisedAt   int64  `json:"revisedAt"`   // RevisedAt время последней ревизии (epoch ms)
	Completed   bool   `json:"completed"`   // Completed флаг выполнения
}

// ItemKey returns the task ID.
func (t Task) ItemKey() string { return strings.TrimSpace(t.ID) }

// Revision returns revisedAt.
func (t Task) Revision() int64 { return t.RevisedAt }

// WithRevision returns a copy with RevisedAt set to rev.
func (t Task) WithRevision(rev int64) Task {
	t.RevisedAt = rev
	return t
}

// Canonical serializes every field except RevisedAt in declaration order.
func (t Task) Canonical() string {
	var w CanonicalWriter
	w.String("id", t.ID)
	w.String("description", t.Description)
	w.String("notes", t.Notes)
	w.Int("dueAt", t.DueAt)
	w.Bool("completed", t.Completed)
	return w.Result()
}

// Validate checks that the task has an ID.
func (t Task) Validate() error {
	if t.ItemKey() == "" {
		return ErrMissingKey
	}
	return nil
}

// Reminder представляет напоминание. TaskID - мягкая ссылка на задачу
// (только lookup, задача не принадлежит напоминанию).
type Reminder struct {
	ID        string `json:"id"`        // ID уникальный идентификатор напоминания
	TaskID    string `json:"taskId"`    // TaskID ключ задачи, на которую ссылается напоминание
	Message   string `json:"message"`   // Message текст напоминания
	RemindAt  int64  `json:"remindAt"`  // RemindAt момент срабатывания (epoch ms)
	RevisedAt int64  `json:"revisedAt"` // RevisedAt время последней ревизии (epoch ms)
	Dismissed bool   `json:"dismissed"` // Dismissed флаг закрытого напоминания
}

// ItemKey returns the reminder ID.
func (r Reminder) ItemKey() string { return strings.TrimSpace(r.ID) }

// Revision returns revisedAt.
func (r Reminder) Revision() int64 { return r.RevisedAt }

// WithRevision returns a copy with RevisedAt set to rev.
func (r Reminder) WithRevision(rev int64) Reminder {
	r.RevisedAt = rev
	return r
}

// Canonical serializes every field except RevisedAt in declaration order.
func (r Reminder) Canonical() string {
	var w CanonicalWriter
	w.String("id", r.ID)
	w.String("taskId", r.TaskID)
	w.String("message", r.Message)
	w.Int("remindAt", r.RemindAt)
	w.Bool("dismissed", r.Dismissed)
	return w.Result()
}

// Validate checks that the reminder has an ID.
func (r Reminder) Validate() error {
	if r.ItemKey() == "" {
		return ErrMissingKey
	}
	return nil
}

// Goal представляет цель пользователя.
type Goal struct {
	ID        string `json:"id"`        // ID уникальный идентификатор цели
	Title     string `json:"title"`     // Title название цели
	Cadence   string `json:"cadence"`   // Cadence периодичность: "daily", "weekly"
	Target    int64  `json:"target"`    // Target целевое количество выполнений за период
	RevisedAt int64  `json:"revisedAt"` // RevisedAt время последней ревизии (epoch ms)
	Archived  bool   `json:"archived"`  // Archived флаг архивной цели
}

// ItemKey returns the goal ID.
func (g Goal) ItemKey() string { return strings.TrimSpace(g.ID) }

// Revision returns revisedAt.
func (g Goal) Revision() int64 { return g.RevisedAt }

// WithRevision returns a copy with RevisedAt set to rev.
func (g Goal) WithRevision(rev int64) Goal {
	g.RevisedAt = rev
	return g
}

// Canonical serializes every field except RevisedAt in declaration order.
func (g Goal) Canonical() string {
	var w CanonicalWriter
	w.String("id", g.ID)
	w.String("title", g.Title)
	w.String("cadence", g.Cadence)
	w.Int("target", g.Target)
	w.Bool("archived", g.Archived)
	return w.Result()
}

// Validate checks that the goal has an ID.
func (g Goal) Validate() error {
	if g.ItemKey() == "" {
		return ErrMissingKey
	}
	return nil
}

// GoalCompletion представляет отметку о выполнении цели за конкретную дату.
// Ключ составной: (GoalID, Date).
type GoalCompletion struct {
	GoalID    string `json:"goalId"`    // GoalID ключ цели
	Date      string `json:"date"`      // Date дата в формате YYYY-MM-DD
	Note      string `json:"note"`      // Note комментарий к отметке
	RevisedAt int64  `json:"revisedAt"` // RevisedAt время последней ревизии (epoch ms)
	Completed bool   `json:"completed"` // Completed выполнена ли цель в этот день
}

// completionKeySep separates the two parts of a completion key.
const completionKeySep = "\x1f"

// CompletionKey builds the composite key used for goal completions.
func CompletionKey(goalID, date string) string {
	return goalID + completionKeySep + date
}

// ItemKey returns the composite (goalId, date) key, or "" when either part is missing.
func (c GoalCompletion) ItemKey() string {
	goalID := strings.TrimSpace(c.GoalID)
	date := strings.TrimSpace(c.Date)
	if goalID == "" || date == "" {
		return ""
	}
	return CompletionKey(goalID, date)
}

// Revision returns revisedAt.
func (c GoalCompletion) Revision() int64 { return c.RevisedAt }

// WithRevision returns a copy with RevisedAt set to rev.
func (c GoalCompletion) WithRevision(rev int64) GoalCompletion {
	c.RevisedAt = rev
	return c
}

// Canonical serializes every field except RevisedAt in declaration order.
func (c GoalCompletion) Canonical() string {
	var w CanonicalWriter
	w.String("goalId", c.GoalID)
	w.String("date", c.Date)
	w.String("note", c.Note)
	w.Bool("completed", c.Completed)
	return w.Result()
}

// Validate checks that both key parts are present.
func (c GoalCompletion) Validate() error {
	if c.ItemKey() == "" {
		return ErrMissingKey
	}
	return nil
}

// CanonicalWriter строит каноническое представление записи.
// Строки нормализуются в NFC и экранируются, числа пишутся в десятичном виде,
// поэтому результат не зависит от платформы и порядка обхода map.
type CanonicalWriter struct {
	b strings.Builder
}

// String appends a string field.
func (w *CanonicalWriter) String(name, value string) {
	w.field(name)
	w.b.WriteString(strconv.Quote(norm.NFC.String(value)))
}

// Int appends an integer (or epoch ms temporal) field.
func (w *CanonicalWriter) Int(name string, value int64) {
	w.field(name)
	w.b.WriteString(strconv.FormatInt(value, 10))
}

// Bool appends a boolean field.
func (w *CanonicalWriter) Bool(name string, value bool) {
	w.field(name)
	w.b.WriteString(strconv.FormatBool(value))
}

// Result returns the accumulated canonical string.
func (w *CanonicalWriter) Result() string {
	return w.b.String()
}

func (w *CanonicalWriter) field(name string) {
	if w.b.Len() > 0 {
		w.b.WriteByte(',')
	}
	w.b.WriteString(name)
	w.b.WriteByte('=')
}
