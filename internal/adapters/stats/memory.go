package stats

import (
	"context"
	"sync"

	"github.com/larriantoniy/tg_forward_bot/internal/domain"
)

// Memory держит счётчики в процессе; теряются при выходе
type Memory struct {
	mu     sync.Mutex
	totals map[string]map[int64]domain.ForwardCounts
}

func NewMemory() *Memory {
	return &Memory{totals: make(map[string]map[int64]domain.ForwardCounts)}
}

func (m *Memory) Record(_ context.Context, phone string, dstChatID int64, ok bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	byChat, exists := m.totals[phone]
	if !exists {
		byChat = make(map[int64]domain.ForwardCounts)
		m.totals[phone] = byChat
	}
	c := byChat[dstChatID]
	if ok {
		c.Forwarded++
	} else {
		c.Failed++
	}
	byChat[dstChatID] = c
	return nil
}

func (m *Memory) Totals(_ context.Context, phone string) (map[int64]domain.ForwardCounts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[int64]domain.ForwardCounts, len(m.totals[phone]))
	for chatID, c := range m.totals[phone] {
		out[chatID] = c
	}
	return out, nil
}

func (m *Memory) Close() error { return nil }
