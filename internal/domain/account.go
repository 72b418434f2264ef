package domain

import "slices"

// Account — запись в users.json: сессия аккаунта и его правила пересылки
type Account struct {
	Phone            string  `json:"phone"`
	Session          string  `json:"session"`
	Username         string  `json:"username"`
	SourceChats      []int64 `json:"source_chats"`
	DestinationChats []int64 `json:"destination_chats"`
}

// Active: аккаунт участвует в пересылке только при непустых списках
func (a Account) Active() bool {
	return len(a.SourceChats) > 0 && len(a.DestinationChats) > 0
}

// IsSource проверяет, отслеживается ли чат
func (a Account) IsSource(chatID int64) bool {
	return slices.Contains(a.SourceChats, chatID)
}

// Normalized заменяет nil-списки пустыми, чтобы в файле было [] а не null
func (a Account) Normalized() Account {
	if a.SourceChats == nil {
		a.SourceChats = []int64{}
	}
	if a.DestinationChats == nil {
		a.DestinationChats = []int64{}
	}
	return a
}

// FindAccount ищет запись по номеру телефона
func FindAccount(accounts []Account, phone string) (int, bool) {
	for i := range accounts {
		if accounts[i].Phone == phone {
			return i, true
		}
	}
	return -1, false
}

// ForwardCounts — счётчики пересылок в один чат назначения
type ForwardCounts struct {
	Forwarded uint64
	Failed    uint64
}
