// Package notify sends Telegram alerts for newly analyzed high-scoring
// articles.
package notify

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/TobiSchelling/ESGLens/internal/analysis"
)

// maxMessageLen stays under Telegram's 4096 character limit.
const maxMessageLen = 4000

// Sender delivers a Telegram message. *tgbotapi.BotAPI satisfies it.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier posts batch highlights to one chat.
type Notifier struct {
	sender   Sender
	chatID   int64
	minScore int
	logger   *slog.Logger
}

// New creates a notifier around an existing sender.
func New(sender Sender, chatID int64, minScore int, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{sender: sender, chatID: chatID, minScore: minScore, logger: logger.With("component", "notify")}
}

// NewTelegram connects to the Bot API with the given token.
func NewTelegram(token string, chatID int64, minScore int, logger *slog.Logger) (*Notifier, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram bot token not set")
	}
	if chatID == 0 {
		return nil, fmt.Errorf("telegram chat_id not set")
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("connecting to telegram: %w", err)
	}
	return New(api, chatID, minScore, logger), nil
}

// Highlights returns the records created in a batch that reach minScore.
func (n *Notifier) Highlights(report *analysis.BatchReport) []analysis.Record {
	var out []analysis.Record
	for _, r := range report.Created {
		if r.Score >= n.minScore {
			out = append(out, r)
		}
	}
	return out
}

// NotifyBatch sends one message listing the batch highlights. Nothing is
// sent when no record qualifies. Returns the number of records announced.
func (n *Notifier) NotifyBatch(ctx context.Context, report *analysis.BatchReport) (int, error) {
	highlights := n.Highlights(report)
	if len(highlights) == 0 {
		return 0, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	msg := tgbotapi.NewMessage(n.chatID, FormatMessage(report.Company.Name, report.Company.StockCode, highlights))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if _, err := n.sender.Send(msg); err != nil {
		return 0, fmt.Errorf("sending telegram message: %w", err)
	}
	n.logger.Info("sent alert", "stock_code", report.Company.StockCode, "articles", len(highlights))
	return len(highlights), nil
}

// FormatMessage renders highlights as Telegram HTML.
func FormatMessage(name, stockCode string, records []analysis.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s (%s)</b>: %d new ESG articles\n", html.EscapeString(name), stockCode, len(records))
	for i, r := range records {
		line := fmt.Sprintf("\n<b>%d</b> %s", r.Score, html.EscapeString(r.ArticleTitle))
		if r.Category != "" {
			line += fmt.Sprintf(" <i>%s</i>", html.EscapeString(r.Category))
		}
		if b.Len()+len(line) > maxMessageLen {
			fmt.Fprintf(&b, "\n… and %d more", len(records)-i)
			break
		}
		b.WriteString(line)
	}
	return b.String()
}
