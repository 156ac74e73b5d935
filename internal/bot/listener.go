package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const pollTimeoutSeconds = 60

// PollUpdates long-polls getUpdates until ctx is done, then closes the channel
func PollUpdates(ctx context.Context, api *tgbotapi.BotAPI, logger *zap.Logger) tgbotapi.UpdatesChannel {
	// getUpdates is refused while a webhook is set
	if _, err := api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		logger.Warn("Failed to delete webhook", zap.Error(err))
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeoutSeconds

	updates := api.GetUpdatesChan(u)
	go func() {
		<-ctx.Done()
		api.StopReceivingUpdates()
	}()

	logger.Info("Starting bot in polling mode")
	return updates
}

// RegisterWebhook points Telegram at webhookURL
func RegisterWebhook(api API, webhookURL string, logger *zap.Logger) error {
	webhook, err := tgbotapi.NewWebhook(webhookURL)
	if err != nil {
		return fmt.Errorf("invalid webhook url: %w", err)
	}

	if _, err := api.Request(webhook); err != nil {
		return fmt.Errorf("failed to set webhook: %w", err)
	}

	logger.Info("Starting bot in webhook mode", zap.String("webhook_url", webhookURL))
	return nil
}
