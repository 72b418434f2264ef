package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/larriantoniy/tg_forward_bot/internal/adapters/stats"
	"github.com/larriantoniy/tg_forward_bot/internal/adapters/storage"
	"github.com/larriantoniy/tg_forward_bot/internal/adapters/tg"
	"github.com/larriantoniy/tg_forward_bot/internal/cli"
	"github.com/larriantoniy/tg_forward_bot/internal/config"
	"github.com/larriantoniy/tg_forward_bot/internal/useCases"
)

func main() {
	var configPath string

	root := &cobra.Command{
		Use:           "forwarder",
		Short:         "Telegram multi-account message forwarder",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPath)
		},
	}
	root.Flags().StringVarP(&configPath, "config", "c", "", "path to YAML config (defaults to $CONFIG_PATH)")

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Env)

	repo := storage.NewJSONAccountRepo(cfg.UsersFile, logger)

	st, err := stats.New(cfg.Stats, logger)
	if err != nil {
		return fmt.Errorf("stats: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error("stats close failed", "error", err)
		}
	}()

	// консоль общая: меню и запросы кода/пароля при логине TDLib
	console := cli.NewConsole(os.Stdin, os.Stdout)
	factory := tg.NewFactory(cfg, console, logger)

	provisioner := useCases.NewProvisioner(repo, factory, logger)
	configurator := useCases.NewConfigurator(repo, factory, logger)
	forwarder := useCases.NewForwarder(repo, factory, st, logger, useCases.ForwarderOptions{
		MinDelay: cfg.Forward.MinDelay,
		MaxDelay: cfg.Forward.MaxDelay,
		Reload:   cfg.Forward.Reload,
	})

	logger.Info("starting", "env", cfg.Env, "users_file", cfg.UsersFile, "stats", cfg.Stats.Backend)

	menu := cli.NewMenu(console, provisioner, configurator, forwarder, logger)
	if err := menu.Run(ctx); err != nil {
		return err
	}

	logger.Info("exit")
	return nil
}

// логи пишем в stderr, stdout занят меню
func setupLogger(env string) *slog.Logger {
	var logger *slog.Logger

	switch env {
	case config.EnvDev:
		logger = slog.New(
			slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case config.EnvProd:
		logger = slog.New(
			slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		logger = slog.New(
			slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}

	return logger
}
