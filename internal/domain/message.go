package domain

// Message описывает входящее сообщение из Telegram
type Message struct {
	ChatID     int64
	ID         int64
	Text       string
	IsOutgoing bool
}
