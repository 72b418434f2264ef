package ports

import (
	"context"

	"github.com/larriantoniy/tg_forward_bot/internal/domain"
)

// TelegramClient определяет интерфейс для работы с Telegram
// Реализуется конкретными адаптерами (TDLib, Bot API и т.д.).
type TelegramClient interface {
	// Me возвращает авторизованный аккаунт
	Me(ctx context.Context) (domain.Identity, error)
	// ResolveChat ищет публичный чат по username и возвращает его id
	ResolveChat(ctx context.Context, username string) (int64, error)
	// Listen возвращает канал новых сообщений из чатов, для которых accept вернул true.
	// Канал закрывается при отключении клиента или отмене ctx. Медленный читатель канала
	// не должен тормозить приём обновлений клиентом.
	Listen(ctx context.Context, accept func(chatID int64) bool) (<-chan domain.Message, error)
	// ForwardMessage пересылает сообщение в чат dstChatID
	ForwardMessage(ctx context.Context, msg domain.Message, dstChatID int64) error
	Close()
}

// ClientFactory открывает соединение для сессии. Для новой сессии проводит интерактивный логин.
type ClientFactory interface {
	Open(ctx context.Context, s domain.Session) (TelegramClient, error)
}

// Prompter задаёт вопрос пользователю в консоли (код подтверждения, пароль 2FA и т.п.)
type Prompter interface {
	Ask(prompt string) (string, error)
}

