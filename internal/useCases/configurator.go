package useCases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/larriantoniy/tg_forward_bot/internal/domain"
	"github.com/larriantoniy/tg_forward_bot/internal/ports"
)

var errZeroChatID = errors.New("chat id 0 is not valid")

// ResolveFailure — идентификатор, который не удалось превратить в id чата
type ResolveFailure struct {
	Input string
	Err   error
}

type ConfigureResult struct {
	Account  domain.Account
	Failures []ResolveFailure
}

// Configurator записывает правила пересылки (источники → получатели) в существующую запись
type Configurator struct {
	repo    ports.AccountRepo
	factory ports.ClientFactory
	log     *slog.Logger
}

func NewConfigurator(repo ports.AccountRepo, factory ports.ClientFactory, log *slog.Logger) *Configurator {
	return &Configurator{repo: repo, factory: factory, log: log}
}

// CheckAccounts возвращает ErrNoAccounts, если хранилище пустое
func (c *Configurator) CheckAccounts(ctx context.Context) error {
	accounts, err := c.repo.Load(ctx)
	if err != nil {
		return fmt.Errorf("load accounts: %w", err)
	}
	if len(accounts) == 0 {
		return domain.ErrNoAccounts
	}
	return nil
}

func (c *Configurator) Find(ctx context.Context, phone string) (domain.Account, error) {
	accounts, err := c.repo.Load(ctx)
	if err != nil {
		return domain.Account{}, fmt.Errorf("load accounts: %w", err)
	}
	if len(accounts) == 0 {
		return domain.Account{}, domain.ErrNoAccounts
	}
	i, ok := domain.FindAccount(accounts, phone)
	if !ok {
		return domain.Account{}, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, phone)
	}
	return accounts[i], nil
}

// Configure резолвит оба списка и заменяет ими списки записи (без слияния со старыми).
// Нерезолвнутые идентификаторы выкидываются и возвращаются в Failures.
func (c *Configurator) Configure(ctx context.Context, phone, sources, destinations string) (ConfigureResult, error) {
	acc, err := c.Find(ctx, phone)
	if err != nil {
		return ConfigureResult{}, err
	}
	log := c.log.With("phone", acc.Phone, "session", acc.Session)

	cli, err := c.factory.Open(ctx, domain.Session{Name: acc.Session, Phone: acc.Phone})
	if err != nil {
		log.Error("open session failed", "error", err)
		return ConfigureResult{}, fmt.Errorf("open session %s: %w", acc.Session, err)
	}
	defer cli.Close()

	var failures []ResolveFailure
	srcIDs, srcFailures := c.resolveAll(ctx, log, cli, domain.SplitChatList(sources))
	failures = append(failures, srcFailures...)
	dstIDs, dstFailures := c.resolveAll(ctx, log, cli, domain.SplitChatList(destinations))
	failures = append(failures, dstFailures...)

	var updated domain.Account
	err = c.repo.Update(ctx, func(accounts []domain.Account) ([]domain.Account, error) {
		i, ok := domain.FindAccount(accounts, acc.Phone)
		if !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, acc.Phone)
		}
		accounts[i].SourceChats = srcIDs
		accounts[i].DestinationChats = dstIDs
		updated = accounts[i]
		return accounts, nil
	})
	if err != nil {
		return ConfigureResult{}, err
	}

	log.Info("forwarding rules updated",
		"source_chats", srcIDs,
		"destination_chats", dstIDs,
		"dropped", len(failures),
	)
	return ConfigureResult{Account: updated, Failures: failures}, nil
}

// resolveAll сохраняет относительный порядок; ошибки не прерывают обработку остальных
func (c *Configurator) resolveAll(ctx context.Context, log *slog.Logger, cli ports.TelegramClient, inputs []string) ([]int64, []ResolveFailure) {
	ids := make([]int64, 0, len(inputs))
	var failures []ResolveFailure
	for _, in := range inputs {
		id, err := resolveChatID(ctx, cli, in)
		if err != nil {
			log.Warn("error fetching chat id", "input", in, "error", err)
			failures = append(failures, ResolveFailure{Input: in, Err: err})
			continue
		}
		ids = append(ids, id)
	}
	return ids, failures
}

// resolveChatID: числовой ввод берётся как есть, остальное ищется как username
func resolveChatID(ctx context.Context, cli ports.TelegramClient, in string) (int64, error) {
	id, numeric := domain.ParseNumericChatID(in)
	if !numeric {
		var err error
		id, err = cli.ResolveChat(ctx, domain.NormalizeHandle(in))
		if err != nil {
			return 0, err
		}
	}
	if id == 0 {
		return 0, errZeroChatID
	}
	return id, nil
}
