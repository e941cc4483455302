// Package fingerprint вычисляет отпечаток наблюдаемого содержимого коллекций.
//
// Два набора коллекций с одинаковым содержимым (без учета revisedAt и порядка
// элементов) дают одинаковый отпечаток. Любое добавление, удаление или изменение
// поля элемента меняет отпечаток с подавляющей вероятностью. Это не
// криптографическая гарантия: используется FNV-1a 64.
package fingerprint

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strconv"
	"strings"

	"github.com/iudanet/worksync/internal/models"
)

// Fingerprint - короткое непрозрачное значение (16 hex символов).
// Нулевое значение означает "отпечаток еще не вычислялся".
type Fingerprint string

// Empty reports whether no fingerprint has been recorded.
func (f Fingerprint) Empty() bool {
	return f == ""
}

// Compute returns the fingerprint of the given collections.
func Compute(cols models.Collections) Fingerprint {
	h := fnv.New64a()
	// hash.Hash.Write никогда не возвращает ошибку
	_, _ = h.Write([]byte(Canonical(cols)))
	return Fingerprint(fmt.Sprintf("%016x", h.Sum64()))
}

// Canonical возвращает строку, по которой считается отпечаток.
//
// Формат:
//
//	<tasks>,<reminders>,<goals>,<goalCompletions>
//	#tasks
//	<отсортированные канонические элементы, по одному на строку>
//	#reminders
//	...
//
// Канонические строки элементов экранированы, поэтому не содержат переводов строк.
func Canonical(cols models.Collections) string {
	var b strings.Builder

	// Префикс с размерами коллекций
	sizes := cols.Sizes()
	for i, n := range sizes {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(n))
	}

	writeCollection(&b, models.CollectionTasks, canonicalItems(cols.Tasks))
	writeCollection(&b, models.CollectionReminders, canonicalItems(cols.Reminders))
	writeCollection(&b, models.CollectionGoals, canonicalItems(cols.Goals))
	writeCollection(&b, models.CollectionGoalCompletions, canonicalItems(cols.GoalCompletions))

	return b.String()
}

func writeCollection(b *strings.Builder, name models.CollectionName, items []string) {
	b.WriteString("\n#")
	b.WriteString(string(name))
	for _, item := range items {
		b.WriteByte('\n')
		b.WriteString(item)
	}
}

// canonicalItems сериализует элементы и сортирует их лексикографически,
// чтобы результат не зависел от порядка вставки.
func canonicalItems[T models.Item](items []T) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.Canonical())
	}
	sort.Strings(out)
	return out
}
