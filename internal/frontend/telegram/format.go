package telegram

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/vadimtrunov/MovieSearch/internal/metadata/tmdb"
	"github.com/vadimtrunov/MovieSearch/internal/search"
)

const (
	callbackSelect = "sel:"  // sel:<tmdb id>
	callbackPage   = "page:" // page:<n>
	callbackClose  = "close"
	callbackNoop   = "noop"

	maxButtonLabel = 30 // max characters in inline keyboard button label
	maxOverview    = 700
)

// mdV2Replacer escapes special characters for Telegram MarkdownV2.
var mdV2Replacer = strings.NewReplacer(
	`\`, `\\`,
	"_", "\\_",
	"*", "\\*",
	"[", "\\[",
	"]", "\\]",
	"(", "\\(",
	")", "\\)",
	"~", "\\~",
	"`", "\\`",
	">", "\\>",
	"#", "\\#",
	"+", "\\+",
	"-", "\\-",
	"=", "\\=",
	"|", "\\|",
	"{", "\\{",
	"}", "\\}",
	".", "\\.",
	"!", "\\!",
)

// EscapeMdV2 escapes a string for safe use in Telegram MarkdownV2.
func EscapeMdV2(s string) string {
	return mdV2Replacer.Replace(s)
}

// FormatBold returns MarkdownV2 bold text.
func FormatBold(s string) string {
	return "*" + EscapeMdV2(s) + "*"
}

// FormatItalic returns MarkdownV2 italic text.
func FormatItalic(s string) string {
	return "_" + EscapeMdV2(s) + "_"
}

// titleWithYear renders "Dune (2021)", or just the title when the year is unknown.
func titleWithYear(m tmdb.Movie) string {
	if y := m.Year(); y > 0 {
		return fmt.Sprintf("%s (%d)", m.Title, y)
	}
	return m.Title
}

// formatResults renders a results page as MarkdownV2.
func formatResults(v search.View) string {
	var sb strings.Builder
	sb.WriteString(FormatBold(fmt.Sprintf("Results for “%s”", v.Query)))
	if v.Pagination != nil {
		sb.WriteString(EscapeMdV2(fmt.Sprintf(" · page %d of %d", v.Pagination.Current, v.Pagination.Total)))
	}
	if v.Placeholder {
		sb.WriteString(" ")
		sb.WriteString(FormatItalic("(updating…)"))
	}
	sb.WriteString("\n\n")

	for i, m := range v.Items {
		line := fmt.Sprintf("%d. %s", i+1, titleWithYear(m))
		sb.WriteString(EscapeMdV2(line))
		if m.VoteAverage > 0 {
			sb.WriteString(EscapeMdV2(fmt.Sprintf(" ★ %.1f", m.VoteAverage)))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// formatDetails renders the detail card of a movie as MarkdownV2.
func formatDetails(m tmdb.Movie) string {
	var sb strings.Builder
	sb.WriteString(FormatBold(m.Title))
	sb.WriteString("\n")
	if m.ReleaseDate != "" {
		sb.WriteString(EscapeMdV2("Release date: " + m.ReleaseDate))
		sb.WriteString("\n")
	}
	sb.WriteString(EscapeMdV2(fmt.Sprintf("Rating: %.1f/10", m.VoteAverage)))
	if m.VoteCount > 0 {
		sb.WriteString(EscapeMdV2(fmt.Sprintf(" (%d votes)", m.VoteCount)))
	}
	if m.Overview != "" {
		sb.WriteString("\n\n")
		sb.WriteString(EscapeMdV2(truncate(m.Overview, maxOverview)))
	}
	return sb.String()
}

// resultsKeyboard has one selection button per movie followed by the page links.
func resultsKeyboard(v search.View) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(v.Items)+1)
	for i, m := range v.Items {
		label := truncate(fmt.Sprintf("%d. %s", i+1, titleWithYear(m)), maxButtonLabel)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, callbackSelect+strconv.Itoa(m.ID)),
		))
	}
	if len(v.PageLinks) > 0 {
		page := make([]tgbotapi.InlineKeyboardButton, 0, len(v.PageLinks))
		for _, l := range v.PageLinks {
			page = append(page, pageButton(l))
		}
		rows = append(rows, page)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func pageButton(l search.PageLink) tgbotapi.InlineKeyboardButton {
	switch {
	case l.Break:
		return tgbotapi.NewInlineKeyboardButtonData("…", callbackNoop)
	case l.Active:
		return tgbotapi.NewInlineKeyboardButtonData("· "+strconv.Itoa(l.Page)+" ·", callbackNoop)
	default:
		return tgbotapi.NewInlineKeyboardButtonData(strconv.Itoa(l.Page), callbackPage+strconv.Itoa(l.Page))
	}
}

func closeKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("✕ Close", callbackClose),
	))
}

// truncate shortens s to at most n runes, marking the cut with an ellipsis.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "…"
}
