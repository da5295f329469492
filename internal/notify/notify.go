// Package notify delivers loyalty notifications to users. Delivery is
// best-effort: failures are logged and counted, never propagated, so a
// broken bot token can not block a points mutation.
package notify

import (
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"bonuspark/internal/logger"
	"bonuspark/internal/metrics"
	"bonuspark/internal/models"
)

// Notifier announces loyalty events to a user.
type Notifier interface {
	StatusUpgrade(user *models.User, message string)
}

// NopNotifier is used when no delivery channel is configured.
type NopNotifier struct{}

// StatusUpgrade does nothing.
func (NopNotifier) StatusUpgrade(*models.User, string) {}

// TelegramNotifier sends messages through a Telegram bot to users with a
// linked telegram id.
type TelegramNotifier struct {
	bot *tgbotapi.BotAPI
}

// NewTelegramNotifier creates a notifier for the given bot token.
func NewTelegramNotifier(token string) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return &TelegramNotifier{bot: bot}, nil
}

// StatusUpgrade sends the congratulatory message to the user's telegram chat.
// Users without a linked telegram id are skipped silently.
func (n *TelegramNotifier) StatusUpgrade(user *models.User, message string) {
	if user.TelegramID == nil {
		return
	}

	chatID, err := strconv.ParseInt(*user.TelegramID, 10, 64)
	if err != nil {
		logger.Get().Warnw("invalid telegram id on user",
			"user_id", user.ID,
			"telegram_id", *user.TelegramID,
		)
		return
	}

	msg := tgbotapi.NewMessage(chatID, message)
	if _, err := n.bot.Send(msg); err != nil {
		metrics.NotifyFailures.Inc()
		logger.Get().Errorw("failed to send status upgrade notification",
			"error", err,
			"user_id", user.ID,
		)
	}
}
