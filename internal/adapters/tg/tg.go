package tg

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/zelenin/go-tdlib/client"

	"github.com/larriantoniy/tg_forward_bot/internal/adapters/inbox"
	"github.com/larriantoniy/tg_forward_bot/internal/adapters/netcheck"
	"github.com/larriantoniy/tg_forward_bot/internal/config"
	"github.com/larriantoniy/tg_forward_bot/internal/domain"
	"github.com/larriantoniy/tg_forward_bot/internal/ports"
)

var ErrRateLimited = errors.New("tdlib: too many requests")

// Factory открывает TDLib-клиентов для сессий из <sessions_dir>/<session>.
// Код подтверждения и пароль 2FA спрашиваются через prompter.
type Factory struct {
	cfg      *config.AppConfig
	prompter ports.Prompter
	logger   *slog.Logger
}

func NewFactory(cfg *config.AppConfig, prompter ports.Prompter, logger *slog.Logger) *Factory {
	return &Factory{cfg: cfg, prompter: prompter, logger: logger}
}

// Open поднимает TDLib и дожидается авторизации. Для новой сессии это интерактивный логин:
// номер подставляется сам, код и пароль вводит пользователь.
func (f *Factory) Open(ctx context.Context, s domain.Session) (ports.TelegramClient, error) {
	log := f.logger.With("session", s.Name, "phone", s.Phone)

	dbDir, filesDir, err := sessionDirs(f.cfg.SessionsDir, s.Name)
	if err != nil {
		return nil, err
	}

	if _, err := client.SetLogVerbosityLevel(&client.SetLogVerbosityLevelRequest{
		NewVerbosityLevel: 1,
	}); err != nil {
		log.Error("TDLib SetLogVerbosityLevel", "error", err)
	}

	netcheck.Run(log, f.cfg.Proxy)

	var opts []client.Option
	if opt, ok := proxyOption(f.cfg.Proxy); ok {
		opts = append(opts, opt)
	}

	authorizer := client.ClientAuthorizer(tdParams(f.cfg, dbDir, filesDir))
	go func() {
		for {
			state, ok := <-authorizer.State
			if !ok {
				return
			}
			switch state.AuthorizationStateType() {
			case client.TypeAuthorizationStateWaitPhoneNumber:
				authorizer.PhoneNumber <- s.Phone
			case client.TypeAuthorizationStateWaitCode:
				authorizer.Code <- f.ask(log, fmt.Sprintf("🔑 Enter the code Telegram sent to %s: ", s.Phone))
			case client.TypeAuthorizationStateWaitPassword:
				authorizer.Password <- f.ask(log, fmt.Sprintf("🔒 Enter 2FA password for %s: ", s.Phone))
			case client.TypeAuthorizationStateReady:
				return
			}
		}
	}()

	tdCli, err := client.NewClient(authorizer, opts...)
	if err != nil {
		log.Error("TDLib NewClient error", "error", err)
		return nil, fmt.Errorf("tdlib login: %w", err)
	}

	log.Info("TDLib client authorized")
	return &TelegramClient{client: tdCli, logger: log}, nil
}

// ask возвращает пустую строку при ошибке ввода: TDLib отклонит её и NewClient вернёт ошибку
func (f *Factory) ask(log *slog.Logger, prompt string) string {
	answer, err := f.prompter.Ask(prompt)
	if err != nil {
		log.Error("read auth input", "error", err)
		return ""
	}
	return strings.TrimSpace(answer)
}

// TelegramClient реализует ports.TelegramClient через go-tdlib
type TelegramClient struct {
	client    *client.Client
	logger    *slog.Logger
	closeOnce sync.Once
}

func (t *TelegramClient) Me(ctx context.Context) (domain.Identity, error) {
	me, err := t.client.GetMe()
	if err != nil {
		return domain.Identity{}, fmt.Errorf("GetMe: %w", err)
	}
	id := domain.Identity{ID: me.Id}
	if me.Usernames != nil && len(me.Usernames.ActiveUsernames) > 0 {
		id.Username = me.Usernames.ActiveUsernames[0]
	}
	return id, nil
}

func (t *TelegramClient) ResolveChat(ctx context.Context, username string) (int64, error) {
	chat, err := t.client.SearchPublicChat(&client.SearchPublicChatRequest{
		Username: domain.NormalizeHandle(username),
	})
	if err != nil {
		t.logger.Debug("SearchPublicChat failed", "username", username, "error", err)
		return 0, fmt.Errorf("resolve %q: %w", username, err)
	}
	return chat.Id, nil
}

// Listen возвращает канал новых сообщений из чатов, прошедших accept. Обновления TDLib
// вычитываются без ожидания читателя: сообщения копятся в inbox аккаунта.
// Канал закрывается, когда TDLib закрыт/разлогинен или отменён ctx.
func (t *TelegramClient) Listen(ctx context.Context, accept func(chatID int64) bool) (<-chan domain.Message, error) {
	box := inbox.New(inbox.DefaultLimit, t.logger)
	out := box.Messages(ctx)

	listener := t.client.GetListener()
	go func() {
		defer listener.Close()
		inbox.Drain[client.Type](ctx, listener.Updates, box, func(update client.Type) (domain.Message, inbox.Decision) {
			switch upd := update.(type) {
			case *client.UpdateNewMessage:
				if upd.Message == nil || !accept(upd.Message.ChatId) {
					return domain.Message{}, inbox.Skip
				}
				return toDomainMessage(upd.Message), inbox.Accept
			case *client.UpdateAuthorizationState:
				if isDisconnected(upd.AuthorizationState) {
					t.logger.Warn("TDLib disconnected", "state", upd.AuthorizationState.AuthorizationStateType())
					return domain.Message{}, inbox.Stop
				}
			}
			return domain.Message{}, inbox.Skip
		})
		t.logger.Info("TDLib listener stopped")
	}()

	return out, nil
}

func (t *TelegramClient) ForwardMessage(ctx context.Context, msg domain.Message, dstChatID int64) error {
	_, err := t.client.ForwardMessages(&client.ForwardMessagesRequest{
		ChatId:        dstChatID,
		FromChatId:    msg.ChatID,
		MessageIds:    []int64{msg.ID},
		Options:       &client.MessageSendOptions{},
		SendCopy:      false,
		RemoveCaption: false,
	})
	if err != nil {
		if isTooManyRequests(err) {
			return fmt.Errorf("%w: %v", ErrRateLimited, err)
		}
		return fmt.Errorf("ForwardMessages to %d: %w", dstChatID, err)
	}
	return nil
}

func (t *TelegramClient) Close() {
	t.closeOnce.Do(func() {
		t.client.Close()
		t.logger.Info("TDLib client closed")
	})
}

func toDomainMessage(m *client.Message) domain.Message {
	return domain.Message{
		ChatID:     m.ChatId,
		ID:         m.Id,
		Text:       messageText(m.Content),
		IsOutgoing: m.IsOutgoing,
	}
}

func messageText(content client.MessageContent) string {
	var text *client.FormattedText
	switch c := content.(type) {
	case *client.MessageText:
		text = c.Text
	case *client.MessagePhoto:
		text = c.Caption
	case *client.MessageVideo:
		text = c.Caption
	case *client.MessageDocument:
		text = c.Caption
	case *client.MessageAudio:
		text = c.Caption
	}
	if text == nil {
		return ""
	}
	return text.Text
}

func isDisconnected(state client.AuthorizationState) bool {
	switch state.AuthorizationStateType() {
	case client.TypeAuthorizationStateClosing,
		client.TypeAuthorizationStateClosed,
		client.TypeAuthorizationStateLoggingOut:
		return true
	}
	return false
}

func isTooManyRequests(err error) bool {
	// TDLib оборачивается в client.Error
	var tdErr *client.Error
	if errors.As(err, &tdErr) {
		// обычно Code == 429, но подстрахуемся по тексту
		if tdErr.Code == 429 {
			return true
		}
		if strings.Contains(strings.ToLower(tdErr.Message), "too many requests") {
			return true
		}
	}
	return false
}
