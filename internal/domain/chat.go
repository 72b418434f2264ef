package domain

import (
	"strconv"
	"strings"
)

// SplitChatList разбивает ввод "100, @alice,,-1001" на непустые идентификаторы
func SplitChatList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

// ParseNumericChatID возвращает id, если идентификатор числовой.
// Допускается ведущий "-" (id групп и каналов в TDLib отрицательные).
func ParseNumericChatID(s string) (int64, bool) {
	digits := strings.TrimPrefix(s, "-")
	if !isDigits(digits) {
		return 0, false
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// NormalizeHandle убирает "@" в начале username
func NormalizeHandle(s string) string {
	return strings.TrimPrefix(strings.TrimSpace(s), "@")
}
