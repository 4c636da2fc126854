package notify

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/Alias1177/SanityCheck/internal/model"
)

// maxMessageLength is the Telegram limit for one text message, in characters
const maxMessageLength = 4096

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram posts anomaly reports to a chat
type Telegram struct {
	bot    sender
	chatID int64
	logger zerolog.Logger
}

// NewTelegram connects to the bot API with token
func NewTelegram(token string, chatID int64, logger zerolog.Logger) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	logger.Debug().Str("bot", bot.Self.UserName).Msg("Authorized on Telegram")
	return newTelegram(bot, chatID, logger), nil
}

func newTelegram(bot sender, chatID int64, logger zerolog.Logger) *Telegram {
	return &Telegram{
		bot:    bot,
		chatID: chatID,
		logger: logger.With().Str("component", "telegram").Logger(),
	}
}

// SendReport posts the rendered report, split over several messages if needed
func (t *Telegram) SendReport(ctx context.Context, checkType string, report model.AnomalyReport) error {
	status := "normal"
	if report.AnomalyDetected {
		status = "ANOMALY"
	}
	text := fmt.Sprintf("Sanity check %s, epoch %d: %s\n%s", checkType, report.Epoch, status, report.Report)

	chunks := SplitMessage(text, maxMessageLength)
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := t.bot.Send(tgbotapi.NewMessage(t.chatID, chunk)); err != nil {
			return fmt.Errorf("send message %d/%d: %w", i+1, len(chunks), err)
		}
	}
	t.logger.Info().Int64("chat_id", t.chatID).Int("messages", len(chunks)).Msg("Report sent")
	return nil
}

// SplitMessage cuts text into chunks of at most limit characters, preferring
// line boundaries. Lines longer than limit are split hard.
func SplitMessage(text string, limit int) []string {
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder
	currentLen := 0
	flush := func() {
		if currentLen > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
			currentLen = 0
		}
	}

	for _, line := range strings.SplitAfter(text, "\n") {
		lineLen := utf8.RuneCountInString(line)
		if currentLen+lineLen > limit {
			flush()
		}
		for lineLen > limit {
			runes := []rune(line)
			chunks = append(chunks, string(runes[:limit]))
			line = string(runes[limit:])
			lineLen -= limit
		}
		current.WriteString(line)
		currentLen += lineLen
	}
	flush()
	return chunks
}
