package ports

import (
	"context"

	"github.com/larriantoniy/tg_forward_bot/internal/domain"
)

type AccountRepo interface {
	// Load возвращает все записи в порядке файла
	Load(ctx context.Context) ([]domain.Account, error)
	// Save перезаписывает хранилище целиком
	Save(ctx context.Context, accounts []domain.Account) error
	// Update выполняет load → fn → save под одной блокировкой
	Update(ctx context.Context, fn func([]domain.Account) ([]domain.Account, error)) error
}

// StoreWatcher реализуется хранилищами, которые умеют сообщать об изменении файла
type StoreWatcher interface {
	Watch(ctx context.Context, onChange func()) error
}
