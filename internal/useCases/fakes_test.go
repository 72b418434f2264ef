package useCases

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/larriantoniy/tg_forward_bot/internal/adapters/inbox"
	"github.com/larriantoniy/tg_forward_bot/internal/adapters/storage"
	"github.com/larriantoniy/tg_forward_bot/internal/domain"
	"github.com/larriantoniy/tg_forward_bot/internal/ports"
)

var errResolve = errors.New("USERNAME_NOT_OCCUPIED")

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// logBuffer собирает JSON-записи slog из нескольких горутин
type logBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *logBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

// records возвращает записи с данным msg
func (b *logBuffer) records(t *testing.T, msg string) []map[string]any {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []map[string]any
	for _, line := range bytes.Split(b.buf.Bytes(), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var rec map[string]any
		if err := json.Unmarshal(line, &rec); err != nil {
			t.Fatalf("bad log line %q: %v", line, err)
		}
		if rec["msg"] == msg {
			out = append(out, rec)
		}
	}
	return out
}

func captureLogger() (*slog.Logger, *logBuffer) {
	b := &logBuffer{}
	return slog.New(slog.NewJSONHandler(b, &slog.HandlerOptions{Level: slog.LevelDebug})), b
}

func newTestRepo(t *testing.T) *storage.JSONAccountRepo {
	t.Helper()
	return storage.NewJSONAccountRepo(filepath.Join(t.TempDir(), "users.json"), testLogger())
}

type forwardCall struct {
	MessageID int64
	To        int64
}

type fakeClient struct {
	me      domain.Identity
	meErr   error
	handles map[string]int64

	mu          sync.Mutex
	resolved    []string
	forwards    []forwardCall
	failTo      map[int64]bool
	closed      bool
	msgs        chan domain.Message
	listening   chan struct{}
	listenOnce  sync.Once
	forwardedCh chan forwardCall
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		handles:     make(map[string]int64),
		failTo:      make(map[int64]bool),
		msgs:        make(chan domain.Message),
		listening:   make(chan struct{}),
		forwardedCh: make(chan forwardCall, 100),
	}
}

func (c *fakeClient) Me(ctx context.Context) (domain.Identity, error) {
	return c.me, c.meErr
}

func (c *fakeClient) ResolveChat(ctx context.Context, username string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resolved = append(c.resolved, username)
	id, ok := c.handles[username]
	if !ok {
		return 0, errResolve
	}
	return id, nil
}

// Listen вычитывает c.msgs так же, как TDLib-адаптер: через inbox и с фильтром accept.
// Канал закрывается, когда тест закроет c.msgs или отменит ctx.
func (c *fakeClient) Listen(ctx context.Context, accept func(chatID int64) bool) (<-chan domain.Message, error) {
	box := inbox.New(inbox.DefaultLimit, testLogger())
	out := box.Messages(ctx)
	go func() {
		c.listenOnce.Do(func() { close(c.listening) })
		inbox.Drain[domain.Message](ctx, c.msgs, box, func(m domain.Message) (domain.Message, inbox.Decision) {
			if !accept(m.ChatID) {
				return domain.Message{}, inbox.Skip
			}
			return m, inbox.Accept
		})
	}()
	return out, nil
}

func (c *fakeClient) ForwardMessage(ctx context.Context, msg domain.Message, dst int64) error {
	c.mu.Lock()
	call := forwardCall{MessageID: msg.ID, To: dst}
	c.forwards = append(c.forwards, call)
	fail := c.failTo[dst]
	c.mu.Unlock()
	c.forwardedCh <- call
	if fail {
		return errors.New("CHAT_WRITE_FORBIDDEN")
	}
	return nil
}

func (c *fakeClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeClient) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeClient) resolvedHandles() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.resolved...)
}

func (c *fakeClient) forwardCalls() []forwardCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]forwardCall(nil), c.forwards...)
}

type fakeFactory struct {
	mu      sync.Mutex
	clients map[string]*fakeClient
	openErr map[string]error
	opened  []domain.Session
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{
		clients: make(map[string]*fakeClient),
		openErr: make(map[string]error),
	}
}

func (f *fakeFactory) client(session string) *fakeClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.clients[session]
	if !ok {
		c = newFakeClient()
		f.clients[session] = c
	}
	return c
}

func (f *fakeFactory) Open(ctx context.Context, s domain.Session) (ports.TelegramClient, error) {
	f.mu.Lock()
	f.opened = append(f.opened, s)
	err := f.openErr[s.Name]
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.client(s.Name), nil
}

func (f *fakeFactory) openedSessions() []domain.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Session(nil), f.opened...)
}
