package domain

import (
	"fmt"
	"strings"
)

// Session описывает одну TDLib-сессию аккаунта
type Session struct {
	Name  string // имя каталога сессии: "15550000001"
	Phone string // "+15550000001"
}

// Identity — результат GetMe для авторизованного аккаунта
type Identity struct {
	ID       int64
	Username string
}

// DisplayName возвращает username, иначе "User_<id>"
func (i Identity) DisplayName() string {
	if i.Username != "" {
		return i.Username
	}
	return fmt.Sprintf("User_%d", i.ID)
}

// UnknownUsername пишется в запись, если GetMe не удался
const UnknownUsername = "Unknown"

// ValidatePhone проверяет формат "+<digits>"
func ValidatePhone(phone string) error {
	if !strings.HasPrefix(phone, "+") || !isDigits(phone[1:]) {
		return fmt.Errorf("%w: %q", ErrInvalidPhone, phone)
	}
	return nil
}

// SessionName строит имя сессии из номера: без "+" и пробелов
func SessionName(phone string) string {
	r := strings.NewReplacer("+", "", " ", "")
	return r.Replace(strings.TrimSpace(phone))
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
