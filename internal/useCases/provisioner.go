package useCases

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/larriantoniy/tg_forward_bot/internal/domain"
	"github.com/larriantoniy/tg_forward_bot/internal/ports"
)

// Provisioner логинит новый номер и добавляет его запись в хранилище
type Provisioner struct {
	repo    ports.AccountRepo
	factory ports.ClientFactory
	log     *slog.Logger
}

func NewProvisioner(repo ports.AccountRepo, factory ports.ClientFactory, log *slog.Logger) *Provisioner {
	return &Provisioner{repo: repo, factory: factory, log: log}
}

func (p *Provisioner) Provision(ctx context.Context, rawPhone string) (domain.Account, error) {
	phone := strings.TrimSpace(rawPhone)
	if err := domain.ValidatePhone(phone); err != nil {
		return domain.Account{}, err
	}
	session := domain.Session{Name: domain.SessionName(phone), Phone: phone}
	log := p.log.With("phone", phone, "session", session.Name)

	accounts, err := p.repo.Load(ctx)
	if err != nil {
		return domain.Account{}, fmt.Errorf("load accounts: %w", err)
	}
	if _, exists := domain.FindAccount(accounts, phone); exists {
		return domain.Account{}, fmt.Errorf("%w: %s", domain.ErrAlreadyProvisioned, phone)
	}

	cli, err := p.factory.Open(ctx, session)
	if err != nil {
		log.Error("session login failed", "error", err)
		return domain.Account{}, fmt.Errorf("create session %s: %w", session.Name, err)
	}
	defer cli.Close()

	username := domain.UnknownUsername
	if me, err := cli.Me(ctx); err != nil {
		log.Warn("identity lookup failed", "error", err)
	} else {
		username = me.DisplayName()
	}

	acc := domain.Account{
		Phone:            phone,
		Session:          session.Name,
		Username:         username,
		SourceChats:      []int64{},
		DestinationChats: []int64{},
	}

	err = p.repo.Update(ctx, func(accounts []domain.Account) ([]domain.Account, error) {
		if _, exists := domain.FindAccount(accounts, phone); exists {
			return nil, fmt.Errorf("%w: %s", domain.ErrAlreadyProvisioned, phone)
		}
		return append(accounts, acc), nil
	})
	if err != nil {
		return domain.Account{}, err
	}

	log.Info("session created", "username", username)
	return acc, nil
}
