package ports

import (
	"context"

	"github.com/larriantoniy/tg_forward_bot/internal/domain"
)

// ForwardStats считает успешные и неудачные пересылки по аккаунту и чату назначения
type ForwardStats interface {
	Record(ctx context.Context, phone string, dstChatID int64, ok bool) error
	Totals(ctx context.Context, phone string) (map[int64]domain.ForwardCounts, error)
	Close() error
}
