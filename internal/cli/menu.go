package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/larriantoniy/tg_forward_bot/internal/domain"
	"github.com/larriantoniy/tg_forward_bot/internal/useCases"
)

type Provisioner interface {
	Provision(ctx context.Context, phone string) (domain.Account, error)
}

type Configurator interface {
	CheckAccounts(ctx context.Context) error
	Find(ctx context.Context, phone string) (domain.Account, error)
	Configure(ctx context.Context, phone, sources, destinations string) (useCases.ConfigureResult, error)
}

type Forwarder interface {
	Run(ctx context.Context) error
}

type Menu struct {
	console      *Console
	provisioner  Provisioner
	configurator Configurator
	forwarder    Forwarder
	log          *slog.Logger

	// runContext ограничивает пересылку: Ctrl+C возвращает в меню, а не завершает процесс
	runContext func(ctx context.Context) (context.Context, context.CancelFunc)
}

func NewMenu(console *Console, p Provisioner, c Configurator, f Forwarder, log *slog.Logger) *Menu {
	return &Menu{
		console:      console,
		provisioner:  p,
		configurator: c,
		forwarder:    f,
		log:          log,
		runContext: func(ctx context.Context) (context.Context, context.CancelFunc) {
			return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		},
	}
}

// Run крутит меню до выбора "4" или конца ввода
func (m *Menu) Run(ctx context.Context) error {
	for {
		m.printOptions()

		choice, err := m.console.Ask("➡️ Choose an option (1/2/3/4): ")
		if err != nil {
			m.log.Debug("menu input closed", "error", err)
			m.console.Println("\n👋 Exiting bot.")
			return nil
		}

		switch choice {
		case "1":
			m.createSession(ctx)
		case "2":
			m.setupForwarding(ctx)
		case "3":
			m.startForwarding(ctx)
		case "4":
			m.console.Println("👋 Exiting bot.")
			return nil
		default:
			m.console.Println("❌ Invalid input! Choose 1, 2, 3, or 4.")
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (m *Menu) printOptions() {
	m.console.Println("\n🔹 Telegram Forwarding Bot 🔹")
	m.console.Println()
	m.console.Println("1️⃣ Create new Telegram session")
	m.console.Println("2️⃣ Set up message forwarding")
	m.console.Println("3️⃣ Start bot")
	m.console.Println("4️⃣ Exit")
}

func (m *Menu) createSession(ctx context.Context) {
	phone, err := m.console.Ask("\n📞 Enter your Telegram number (e.g., +917878066868): ")
	if err != nil {
		return
	}

	acc, err := m.provisioner.Provision(ctx, phone)
	if err != nil {
		m.report(err)
		return
	}
	m.console.Printf("✅ Session created successfully! %s (%s)\n", acc.Username, acc.Phone)
}

func (m *Menu) setupForwarding(ctx context.Context) {
	if err := m.configurator.CheckAccounts(ctx); err != nil {
		m.report(err)
		return
	}

	phone, err := m.console.Ask("📞 Enter the phone number for setup: ")
	if err != nil {
		return
	}
	if _, err := m.configurator.Find(ctx, phone); err != nil {
		m.report(err)
		return
	}

	sources, err := m.console.Ask("📥 Enter source chat IDs/usernames (comma separated): ")
	if err != nil {
		return
	}
	destinations, err := m.console.Ask("📤 Enter destination chat IDs/usernames (comma separated): ")
	if err != nil {
		return
	}

	res, err := m.configurator.Configure(ctx, phone, sources, destinations)
	if err != nil {
		m.report(err)
		return
	}
	for _, f := range res.Failures {
		m.console.Printf("⚠️ Error fetching ID for '%s': %v\n", f.Input, f.Err)
	}
	m.console.Printf("✅ Forwarding setup complete! sources=%v destinations=%v\n",
		res.Account.SourceChats, res.Account.DestinationChats)
}

func (m *Menu) startForwarding(ctx context.Context) {
	runCtx, stop := m.runContext(ctx)
	defer stop()

	m.console.Println("🚀 Starting bot... press Ctrl+C to stop and return to the menu.")
	if err := m.forwarder.Run(runCtx); err != nil {
		m.report(err)
		return
	}
	m.console.Println("🔌 All connections closed.")
}

func (m *Menu) report(err error) {
	m.log.Debug("operation failed", "error", err)
	switch {
	case errors.Is(err, domain.ErrInvalidPhone):
		m.console.Println("❌ Invalid number format! Use +917878066868")
	case errors.Is(err, domain.ErrNoAccounts):
		m.console.Println("⚠️ No users found! Create a session first.")
	case errors.Is(err, domain.ErrAccountNotFound):
		m.console.Println("❌ This number is not logged in! Create a session first.")
	case errors.Is(err, domain.ErrAlreadyProvisioned):
		m.console.Println("⚠️ This number already has a session.")
	case errors.Is(err, domain.ErrNoActiveAccounts):
		m.console.Println("⚠️ Forwarding setup missing for every account! Use option 2 first.")
	default:
		m.console.Println("❌ Error: " + strings.TrimSpace(fmt.Sprint(err)))
	}
}
