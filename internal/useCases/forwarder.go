package useCases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/larriantoniy/tg_forward_bot/internal/domain"
	"github.com/larriantoniy/tg_forward_bot/internal/ports"
)

var ErrNoConnections = errors.New("no account could be connected")

type ForwarderOptions struct {
	MinDelay time.Duration
	MaxDelay time.Duration
	// Reload включает перечитывание правил при изменении файла хранилища
	Reload bool
}

// Forwarder пересылает новые сообщения из source_chats в destination_chats по всем активным аккаунтам
type Forwarder struct {
	repo    ports.AccountRepo
	factory ports.ClientFactory
	stats   ports.ForwardStats
	log     *slog.Logger
	opts    ForwarderOptions
}

func NewForwarder(
	repo ports.AccountRepo,
	factory ports.ClientFactory,
	stats ports.ForwardStats,
	log *slog.Logger,
	opts ForwarderOptions,
) *Forwarder {
	return &Forwarder{repo: repo, factory: factory, stats: stats, log: log, opts: opts}
}

// accountSession хранит состояние одного подключённого аккаунта. Передаётся в обработчик явно.
type accountSession struct {
	rules  atomic.Pointer[domain.Account]
	client ports.TelegramClient
	log    *slog.Logger
}

func newAccountSession(acc domain.Account, cli ports.TelegramClient, log *slog.Logger) *accountSession {
	s := &accountSession{client: cli, log: log}
	s.rules.Store(&acc)
	return s
}

// Run подключает все активные аккаунты и пересылает сообщения, пока все соединения
// не отключатся или не будет отменён ctx. После этого управление возвращается вызывающему.
func (f *Forwarder) Run(ctx context.Context) error {
	log := f.log.With("run_id", uuid.NewString())

	accounts, err := f.repo.Load(ctx)
	if err != nil {
		return fmt.Errorf("load accounts: %w", err)
	}
	if len(accounts) == 0 {
		return domain.ErrNoAccounts
	}

	active := make([]domain.Account, 0, len(accounts))
	for _, acc := range accounts {
		if !acc.Active() {
			log.Warn("forwarding setup missing, skipping account", "phone", acc.Phone)
			continue
		}
		active = append(active, acc)
	}
	if len(active) == 0 {
		return domain.ErrNoActiveAccounts
	}

	sessions := make([]*accountSession, 0, len(active))
	defer func() {
		for _, s := range sessions {
			s.client.Close()
		}
	}()

	for _, acc := range active {
		cli, err := f.factory.Open(ctx, domain.Session{Name: acc.Session, Phone: acc.Phone})
		if err != nil {
			log.Error("open session failed, skipping account", "phone", acc.Phone, "error", err)
			continue
		}
		sessions = append(sessions, newAccountSession(acc, cli, log.With("phone", acc.Phone, "session", acc.Session)))
	}
	if len(sessions) == 0 {
		return ErrNoConnections
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	watchDone := f.watchStore(runCtx, log, sessions)

	log.Info("bot is now live", "accounts", len(sessions))

	var wg sync.WaitGroup
	for _, s := range sessions {
		wg.Add(1)
		go func(s *accountSession) {
			defer wg.Done()
			f.serve(runCtx, s)
		}(s)
	}
	wg.Wait()

	cancel()
	<-watchDone

	f.logSummary(context.WithoutCancel(ctx), log, sessions)
	log.Info("all connections closed, forwarding stopped")
	return nil
}

// serve: connected-idle → relaying → connected-idle, пока канал сообщений открыт
func (f *Forwarder) serve(ctx context.Context, s *accountSession) {
	// фильтр читает текущие правила, поэтому перезагрузка сразу меняет набор источников
	msgs, err := s.client.Listen(ctx, func(chatID int64) bool {
		return s.rules.Load().IsSource(chatID)
	})
	if err != nil {
		s.log.Error("listen failed", "error", err)
		return
	}
	initial := s.rules.Load()
	s.log.Info("listening", "source_chats", initial.SourceChats, "destination_chats", initial.DestinationChats)

	for msg := range msgs {
		// правила могли смениться, пока сообщение ждало в очереди
		rules := s.rules.Load()
		if !rules.IsSource(msg.ChatID) {
			continue
		}
		f.relay(ctx, s, *rules, msg)
	}
	s.log.Info("disconnected")
}

// relay пересылает сообщение во все чаты назначения по очереди. Ошибка по одному чату
// не мешает остальным; после каждой попытки делаем случайную паузу.
func (f *Forwarder) relay(ctx context.Context, s *accountSession, rules domain.Account, msg domain.Message) {
	log := s.log.With("relay_id", uuid.NewString(), "chat_id", msg.ChatID, "message_id", msg.ID)
	log.Info("new message", "username", rules.Username)

	for _, dst := range rules.DestinationChats {
		log.Debug("forwarding message", "to", dst)
		err := s.client.ForwardMessage(ctx, msg, dst)
		if err != nil {
			log.Warn("error forwarding message", "to", dst, "error", err)
		} else {
			log.Info("message forwarded", "to", dst)
		}
		if serr := f.stats.Record(ctx, rules.Phone, dst, err == nil); serr != nil {
			log.Warn("stats record failed", "error", serr)
		}

		if err := randomDelay(ctx, f.opts.MinDelay, f.opts.MaxDelay); err != nil {
			log.Info("relay interrupted", "error", err)
			return
		}
	}
}

func (f *Forwarder) watchStore(ctx context.Context, log *slog.Logger, sessions []*accountSession) <-chan struct{} {
	done := make(chan struct{})
	w, ok := f.repo.(ports.StoreWatcher)
	if !f.opts.Reload || !ok {
		close(done)
		return done
	}

	go func() {
		defer close(done)
		err := w.Watch(ctx, func() {
			f.reloadRules(ctx, log, sessions)
		})
		if err != nil {
			log.Warn("store watcher stopped", "error", err)
		}
	}()
	return done
}

// reloadRules подменяет правила уже запущенных аккаунтов. Новые аккаунты не подключаются.
func (f *Forwarder) reloadRules(ctx context.Context, log *slog.Logger, sessions []*accountSession) {
	accounts, err := f.repo.Load(ctx)
	if err != nil {
		log.Warn("reload forwarding rules failed", "error", err)
		return
	}
	for _, s := range sessions {
		current := s.rules.Load()
		i, ok := domain.FindAccount(accounts, current.Phone)
		if !ok {
			s.log.Warn("account disappeared from store, keeping previous rules")
			continue
		}
		acc := accounts[i]
		s.rules.Store(&acc)
		if !acc.Active() {
			s.log.Warn("forwarding rules cleared, account is idle")
			continue
		}
		s.log.Info("forwarding rules reloaded",
			"source_chats", acc.SourceChats,
			"destination_chats", acc.DestinationChats,
		)
	}
}

func (f *Forwarder) logSummary(ctx context.Context, log *slog.Logger, sessions []*accountSession) {
	for _, s := range sessions {
		phone := s.rules.Load().Phone
		totals, err := f.stats.Totals(ctx, phone)
		if err != nil {
			log.Warn("read stats failed", "phone", phone, "error", err)
			continue
		}
		for dst, c := range totals {
			log.Info("forwarding summary", "phone", phone, "to", dst, "forwarded", c.Forwarded, "failed", c.Failed)
		}
	}
}
