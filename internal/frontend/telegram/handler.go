package telegram

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/vadimtrunov/MovieSearch/internal/metadata/tmdb"
	"github.com/vadimtrunov/MovieSearch/internal/search"
)

const (
	unauthorizedMsg = "Sorry, you are not authorized to use this bot."
	welcomeMsg      = "Send me a movie title and I will search TMDb for it."
	resetMsg        = "Search reset. Send a title to start over."
)

// handleMessage treats any non-command text as a new search.
func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	userID := msg.From.ID
	chatID := msg.Chat.ID

	b.logger.Debug("received message",
		slog.Int64("user_id", userID),
	)

	if !b.sessions.isAllowed(userID) {
		b.sendText(chatID, unauthorizedMsg)
		return
	}

	text := strings.TrimSpace(msg.Text)
	switch text {
	case "":
		return
	case "/start":
		b.sendText(chatID, welcomeMsg)
		return
	case "/reset":
		b.sessions.reset(chatID)
		b.sendText(chatID, resetMsg)
		return
	}

	cs := b.session(chatID)
	cs.mu.Lock()
	req := cs.s.SubmitQuery(text)
	cs.mu.Unlock()

	b.settle(ctx, chatID, cs, req, 0)
}

// handleCallback processes inline keyboard callback queries.
func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if cq.Message == nil || cq.From == nil {
		return
	}
	userID := cq.From.ID
	chatID := cq.Message.Chat.ID

	b.logger.Debug("received callback",
		slog.Int64("user_id", userID),
		slog.String("data", cq.Data),
	)

	// Acknowledge the callback immediately.
	if _, err := b.out.Request(tgbotapi.NewCallback(cq.ID, "")); err != nil {
		b.logger.Debug("callback ack failed", slog.String("error", err.Error()))
	}

	if !b.sessions.isAllowed(userID) {
		return
	}

	cs := b.session(chatID)
	switch data := cq.Data; {
	case strings.HasPrefix(data, callbackPage):
		n, err := strconv.Atoi(strings.TrimPrefix(data, callbackPage))
		if err != nil {
			return
		}
		cs.mu.Lock()
		req := cs.s.ChangePage(n)
		cs.mu.Unlock()
		if req != nil {
			b.settle(ctx, chatID, cs, req, cq.Message.MessageID)
		}

	case strings.HasPrefix(data, callbackSelect):
		id, err := strconv.Atoi(strings.TrimPrefix(data, callbackSelect))
		if err != nil {
			return
		}
		b.selectMovie(chatID, cs, id)

	case data == callbackClose:
		cs.mu.Lock()
		cs.s.Close()
		cs.mu.Unlock()
		if _, err := b.out.Request(tgbotapi.NewDeleteMessage(chatID, cq.Message.MessageID)); err != nil {
			b.logger.Debug("failed to delete detail card", slog.String("error", err.Error()))
		}
	}
}

// settle runs req (if any) outside the chat lock, commits the result and
// renders the session. editID is the results message to update, 0 to
// send a new one.
func (b *Bot) settle(ctx context.Context, chatID int64, cs *chatSession, req *search.Request, editID int) {
	if req != nil {
		b.sendTyping(chatID)
		res := req.Run(ctx)

		cs.mu.Lock()
		committed := cs.s.Resolve(res)
		cs.mu.Unlock()
		if !committed {
			// A newer request owns the chat; it renders when it completes.
			return
		}
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()
	b.render(chatID, cs, editID)
}

// render shows the session's view. The caller holds cs.mu.
func (b *Bot) render(chatID int64, cs *chatSession, editID int) {
	v := cs.s.View()
	switch {
	case v.ShowError:
		b.sendText(chatID, search.UserMessage(v.ErrKind))
		return
	case !v.ShowGrid:
		// Idle, or an empty result already announced by the notifier.
		return
	}

	text := formatResults(v)
	kb := resultsKeyboard(v)

	if editID != 0 {
		edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, editID, text, kb)
		edit.ParseMode = tgbotapi.ModeMarkdownV2
		_, err := b.out.Send(edit)
		switch {
		case err == nil:
			cs.resultsMsgID = editID
			return
		case strings.Contains(err.Error(), "message is not modified"):
			return
		}
		b.logger.Warn("failed to edit results, sending new message", slog.String("error", err.Error()))
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	msg.ReplyMarkup = kb
	sent, err := b.out.Send(msg)
	if err != nil {
		b.logger.Error("failed to send results",
			slog.Int64("chat_id", chatID),
			slog.String("error", err.Error()),
		)
		return
	}
	cs.resultsMsgID = sent.MessageID
}

// selectMovie opens the detail card of a movie on the displayed page.
func (b *Bot) selectMovie(chatID int64, cs *chatSession, id int) {
	cs.mu.Lock()
	var (
		movie tmdb.Movie
		found bool
	)
	for _, m := range cs.s.View().Items {
		if m.ID == id {
			movie, found = m, true
			break
		}
	}
	if found {
		cs.s.Select(movie)
	}
	cs.mu.Unlock()

	if !found {
		b.logger.Debug("selected movie is no longer displayed", slog.Int("tmdb_id", id))
		return
	}
	b.sendDetails(chatID, movie)
}

// sendDetails sends the detail card: a poster with caption when one
// exists, plain text otherwise.
func (b *Bot) sendDetails(chatID int64, m tmdb.Movie) {
	text := formatDetails(m)
	kb := closeKeyboard()

	if url := tmdb.PosterURL(m.PosterPath, "w500"); url != "" {
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(url))
		photo.Caption = text
		photo.ParseMode = tgbotapi.ModeMarkdownV2
		photo.ReplyMarkup = kb
		_, err := b.out.Send(photo)
		if err == nil {
			return
		}
		b.logger.Debug("failed to send poster, falling back to text",
			slog.String("url", url),
			slog.String("error", err.Error()),
		)
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	msg.ReplyMarkup = kb
	if _, err := b.out.Send(msg); err != nil {
		b.logger.Error("failed to send movie details",
			slog.Int64("chat_id", chatID),
			slog.String("error", err.Error()),
		)
	}
}

// sendText sends a plain text message (no parse mode).
func (b *Bot) sendText(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.out.Send(msg); err != nil {
		b.logger.Error("failed to send message",
			slog.Int64("chat_id", chatID),
			slog.String("error", err.Error()),
		)
	}
}

func (b *Bot) sendTyping(chatID int64) {
	typing := tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)
	b.out.Request(typing) //nolint:errcheck // best-effort typing indicator
}
