// Package telegram is the Telegram frontend: a chat-driven search session
// with inline keyboards for paging and movie details.
package telegram

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/vadimtrunov/MovieSearch/internal/search"
)

// sender is the part of the Bot API used to talk to chats.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Bot is the Telegram frontend for movie search.
type Bot struct {
	api        *tgbotapi.BotAPI // nil in tests; only used for polling
	out        sender
	sessions   *sessionManager
	newSession SessionFactory
	logger     *slog.Logger
}

// New creates a new Telegram Bot.
func New(token string, allowedUserIDs []int64, factory SessionFactory, logger *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	b := newBot(api, allowedUserIDs, factory, logger)
	b.api = api
	return b, nil
}

func newBot(out sender, allowedUserIDs []int64, factory SessionFactory, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bot{
		out:        out,
		sessions:   newSessionManager(allowedUserIDs),
		newSession: factory,
		logger:     logger,
	}
}

// Start starts the long-polling loop. It blocks until ctx is canceled.
func (b *Bot) Start(ctx context.Context) error {
	if b.api == nil {
		return fmt.Errorf("telegram bot is not connected")
	}
	b.logger.Info("telegram bot started",
		slog.String("username", b.api.Self.UserName),
	)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.logger.Info("telegram bot stopped")
			return nil

		case update, ok := <-updates:
			if !ok {
				return nil
			}
			go b.handleUpdate(ctx, update)
		}
	}
}

// handleUpdate dispatches an incoming Telegram update.
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	}
}

// session returns the chat's search session, creating it on first use.
func (b *Bot) session(chatID int64) *chatSession {
	return b.sessions.getOrCreate(chatID, func() *search.Session {
		return b.newSession(search.NotifierFunc(func(q string) {
			b.logger.Debug("empty search result", slog.Int64("chat_id", chatID), slog.String("query", q))
			b.sendText(chatID, search.EmptyResultMessage)
		}))
	})
}
