// Package inbox развязывает приёмник обновлений TDLib и обработчик пересылки.
// Приёмник кладёт сообщения в очередь и никогда не ждёт обработчика: пока тот спит
// между отправками, обновления клиента продолжают вычитываться.
package inbox

import (
	"context"
	"log/slog"
	"sync"

	"github.com/larriantoniy/tg_forward_bot/internal/domain"
)

// DefaultLimit: сколько сообщений одного аккаунта может ждать пересылки
const DefaultLimit = 10000

// Inbox: очередь сообщений одного аккаунта. Push не блокируется; при переполнении
// новое сообщение отбрасывается с предупреждением в лог.
type Inbox struct {
	mu      sync.Mutex
	items   []domain.Message
	limit   int
	closed  bool
	dropped uint64
	notify  chan struct{}
	log     *slog.Logger
}

func New(limit int, log *slog.Logger) *Inbox {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Inbox{
		limit:  limit,
		notify: make(chan struct{}, 1),
		log:    log,
	}
}

// Push ставит сообщение в очередь. false, если очередь закрыта или переполнена.
func (b *Inbox) Push(m domain.Message) bool {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return false
	}
	if len(b.items) >= b.limit {
		b.dropped++
		dropped := b.dropped
		b.mu.Unlock()
		b.log.Warn("inbox overflow, message dropped",
			"chat_id", m.ChatID, "message_id", m.ID, "limit", b.limit, "dropped_total", dropped)
		return false
	}
	b.items = append(b.items, m)
	b.mu.Unlock()

	b.wake()
	return true
}

// Close: новых сообщений не будет. Уже поставленные ещё будут выданы.
func (b *Inbox) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.wake()
}

func (b *Inbox) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

func (b *Inbox) wake() {
	select {
	case b.notify <- struct{}{}:
	default:
	}
}

// Messages запускает выдачу очереди в канал. Канал закрывается после Close и выдачи
// остатка, либо сразу при отмене ctx.
func (b *Inbox) Messages(ctx context.Context) <-chan domain.Message {
	out := make(chan domain.Message)
	go func() {
		defer close(out)
		for {
			m, ok, closed := b.next()
			if !ok {
				if closed {
					return
				}
				select {
				case <-ctx.Done():
					return
				case <-b.notify:
				}
				continue
			}

			select {
			case out <- m:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func (b *Inbox) next() (m domain.Message, ok, closed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.items) == 0 {
		return domain.Message{}, false, b.closed
	}
	m = b.items[0]
	b.items[0] = domain.Message{}
	b.items = b.items[1:]
	return m, true, false
}

// Decision говорит Drain, что делать с очередным обновлением
type Decision int

const (
	Skip Decision = iota
	Accept
	Stop
)

// Drain вычитывает updates, пока канал открыт и ctx не отменён. decode превращает
// обновление в сообщение; принятые сообщения уходят в очередь без ожидания потребителя.
// По выходе очередь закрывается.
func Drain[U any](ctx context.Context, updates <-chan U, b *Inbox, decode func(U) (domain.Message, Decision)) {
	defer b.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case upd, ok := <-updates:
			if !ok {
				return
			}
			m, d := decode(upd)
			switch d {
			case Accept:
				b.Push(m)
			case Stop:
				return
			}
		}
	}
}
