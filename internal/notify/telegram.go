package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// TelegramNotifier delivers crew assignment alerts to linked Telegram chats.
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	logger *zerolog.Logger
}

// NewTelegramNotifier creates the notifier from a bot token.
func NewTelegramNotifier(token string, logger *zerolog.Logger) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &TelegramNotifier{bot: bot, logger: logger}, nil
}

// Send delivers the notification to the recipient's chat.
func (t *TelegramNotifier) Send(ctx context.Context, n Notification) error {
	if n.ChatID == 0 {
		return fmt.Errorf("notification %s has no chat id", n.Kind)
	}

	msg := tgbotapi.NewMessage(n.ChatID, formatMessage(n))
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}

	t.logger.Debug().
		Int64("chat_id", n.ChatID).
		Str("appointment", n.AppointmentID).
		Msg("telegram alert delivered")
	return nil
}

func formatMessage(n Notification) string {
	when := n.StartAt.Format("Mon 2 Jan 15:04")
	switch n.Kind {
	case KindAssignment:
		return fmt.Sprintf("You are assigned to %q on %s.", n.Title, when)
	case KindNewBooking:
		return fmt.Sprintf("New booking %q on %s.", n.Title, when)
	default:
		return fmt.Sprintf("%q on %s.", n.Title, when)
	}
}
