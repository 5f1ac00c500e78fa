package main

import (
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vadimtrunov/MovieSearch/internal/config"
	"github.com/vadimtrunov/MovieSearch/internal/frontend/telegram"
	"github.com/vadimtrunov/MovieSearch/internal/search"
)

// newBotCmd returns the "bot" subcommand for running the Telegram bot.
func newBotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bot",
		Short: "Start the Telegram bot",
		Long:  "Start the MovieSearch Telegram bot: send a title to search, use the buttons to page and open details.",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runBot()
		},
	}
}

func runBot() error {
	cfg, err := loadValidConfig(configPath)
	if err != nil {
		return err
	}

	if cfg.Telegram == nil {
		return errors.New(
			"telegram configuration is required: set telegram.bot_token in config or MOVIESEARCH_TELEGRAM_BOT_TOKEN env var",
		)
	}

	logger := setupCLILogger(cfg)

	bot, err := initTelegramBot(cfg, logger)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("telegram bot starting")
	return bot.Start(ctx)
}

// initTelegramBot creates a bot whose chats share one TMDb client.
func initTelegramBot(cfg *config.Config, logger *slog.Logger) (*telegram.Bot, error) {
	client := newTMDbClient(cfg, logger)
	factory := func(n search.Notifier) *search.Session {
		return search.NewSession(client, sessionOptions(cfg, n, logger))
	}

	return telegram.New(
		cfg.Telegram.BotToken,
		cfg.Telegram.AllowedUserIDs,
		factory,
		logger,
	)
}
