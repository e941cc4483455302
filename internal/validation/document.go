// Package validation содержит проверки входных данных: ключей рабочих
// пространств, паролей и содержимого документов, пришедших из удаленного
// хранилища или из локального кеша.
package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/iudanet/worksync/internal/models"
)

var (
	// ErrInvalidItem indicates that an item failed shape validation.
	ErrInvalidItem = errors.New("invalid item")

	// ErrMalformedDocument indicates that a document cannot be interpreted at all.
	ErrMalformedDocument = errors.New("malformed document")
)

// DatePattern - формат даты выполнения цели (YYYY-MM-DD).
var DatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// ValidateItem проверяет минимальную форму элемента.
func ValidateItem(item models.Item) error {
	if err := item.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidItem, err)
	}

	if item.Revision() < 0 {
		return fmt.Errorf("%w: negative revisedAt %d", ErrInvalidItem, item.Revision())
	}

	if c, ok := item.(models.GoalCompletion); ok && !DatePattern.MatchString(c.Date) {
		return fmt.Errorf("%w: completion date %q is not YYYY-MM-DD", ErrInvalidItem, c.Date)
	}

	return nil
}

// SanitizeCollections возвращает копию коллекций без невалидных элементов.
// Каждый отброшенный элемент логируется. Второе значение - число отброшенных элементов.
func SanitizeCollections(logger *slog.Logger, cols models.Collections) (models.Collections, int) {
	var out models.Collections
	dropped := 0
	var n int

	out.Tasks, n = sanitize(logger, models.CollectionTasks, cols.Tasks)
	dropped += n
	out.Reminders, n = sanitize(logger, models.CollectionReminders, cols.Reminders)
	dropped += n
	out.Goals, n = sanitize(logger, models.CollectionGoals, cols.Goals)
	dropped += n
	out.GoalCompletions, n = sanitize(logger, models.CollectionGoalCompletions, cols.GoalCompletions)
	dropped += n

	return out, dropped
}

func sanitize[T models.Item](logger *slog.Logger, name models.CollectionName, items []T) ([]T, int) {
	out := make([]T, 0, len(items))
	dropped := 0
	for i, item := range items {
		if err := ValidateItem(item); err != nil {
			dropped++
			logger.Warn("Dropping invalid item", "collection", name, "index", i, "error", err)
			continue
		}
		out = append(out, item)
	}
	return out, dropped
}

// DecodeDocument разбирает JSON документа рабочего пространства.
//
// Разбор устойчив к частично поврежденным данным: коллекция, не являющаяся
// массивом, считается пустой, а элементы, которые не удалось разобрать или
// провалившие ValidateItem, отбрасываются с предупреждением. Ошибка
// ErrMalformedDocument возвращается только если корень не является объектом
// или повреждены служебные поля (version, lastUpdated, lastWriterId).
func DecodeDocument(logger *slog.Logger, data []byte) (*models.WorkspaceDocument, int, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrMalformedDocument, err)
	}
	if fields == nil {
		return nil, 0, fmt.Errorf("%w: document is null", ErrMalformedDocument)
	}

	doc := &models.WorkspaceDocument{}
	if err := decodeMeta(fields, "version", &doc.Version); err != nil {
		return nil, 0, err
	}
	if err := decodeMeta(fields, "lastUpdated", &doc.LastUpdated); err != nil {
		return nil, 0, err
	}
	if err := decodeMeta(fields, "lastWriterId", &doc.LastWriterID); err != nil {
		return nil, 0, err
	}
	if doc.Version < 0 {
		return nil, 0, fmt.Errorf("%w: negative version %d", ErrMalformedDocument, doc.Version)
	}

	dropped := 0
	var n int
	doc.Tasks, n = decodeCollection[models.Task](logger, models.CollectionTasks, fields)
	dropped += n
	doc.Reminders, n = decodeCollection[models.Reminder](logger, models.CollectionReminders, fields)
	dropped += n
	doc.Goals, n = decodeCollection[models.Goal](logger, models.CollectionGoals, fields)
	dropped += n
	doc.GoalCompletions, n = decodeCollection[models.GoalCompletion](logger, models.CollectionGoalCompletions, fields)
	dropped += n

	return doc, dropped, nil
}

func decodeMeta(fields map[string]json.RawMessage, name string, dst any) error {
	raw, ok := fields[name]
	if !ok || isNull(raw) {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: field %s: %w", ErrMalformedDocument, name, err)
	}
	return nil
}

func decodeCollection[T models.Item](logger *slog.Logger, name models.CollectionName, fields map[string]json.RawMessage) ([]T, int) {
	raw, ok := fields[string(name)]
	if !ok || isNull(raw) {
		return []T{}, 0
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		logger.Warn("Collection is not an array, treating as empty", "collection", name, "error", err)
		return []T{}, 1
	}

	out := make([]T, 0, len(elems))
	dropped := 0
	for i, elem := range elems {
		var item T
		if err := json.Unmarshal(elem, &item); err != nil {
			dropped++
			logger.Warn("Dropping undecodable item", "collection", name, "index", i, "error", err)
			continue
		}
		if err := ValidateItem(item); err != nil {
			dropped++
			logger.Warn("Dropping invalid item", "collection", name, "index", i, "error", err)
			continue
		}
		out = append(out, item)
	}

	return out, dropped
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}
