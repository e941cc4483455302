package cli

import (
	"fmt"
	"strings"
	"time"
)

// shortIDLen - сколько символов ID показывать в списках
const shortIDLen = 8

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
}

// parseTime разбирает момент времени в локальной зоне и возвращает epoch ms
func parseTime(value string) (int64, error) {
	value = strings.TrimSpace(value)
	for _, layout := range timeLayouts {
		t, err := time.ParseInLocation(layout, value, time.Local)
		if err == nil {
			return t.UnixMilli(), nil
		}
	}
	return 0, fmt.Errorf("invalid time %q: use YYYY-MM-DD, YYYY-MM-DD HH:MM or RFC3339", value)
}

// formatMillis форматирует epoch ms; 0 означает "не задано"
func formatMillis(ms int64) string {
	if ms == 0 {
		return "-"
	}
	return time.UnixMilli(ms).Local().Format("2006-01-02 15:04")
}

func shortID(id string) string {
	if len(id) <= shortIDLen {
		return id
	}
	return id[:shortIDLen]
}

// resolveID находит ключ по точному совпадению или по однозначному префиксу
func resolveID(keys []string, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("id cannot be empty")
	}

	var matches []string
	for _, key := range keys {
		if key == ref {
			return key, nil
		}
		if strings.HasPrefix(key, ref) {
			matches = append(matches, key)
		}
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("no item matches %q", ref)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("%q is ambiguous: matches %d items", ref, len(matches))
	}
}

func checkbox(done bool) string {
	if done {
		return "[x]"
	}
	return "[ ]"
}
