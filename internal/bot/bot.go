package bot

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
	"github.com/xaenox/watchlater-bot/internal/metrics"
	"github.com/xaenox/watchlater-bot/internal/storage"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// API is the part of *tgbotapi.BotAPI the bot talks to
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type Options struct {
	// Owners are the usernames the bot introduces itself for in /start
	Owners []string
	// SendDelay is the pause between messages of a multi-item reply
	SendDelay time.Duration
}

type Bot struct {
	api       API
	self      tgbotapi.User
	storage   storage.Storage
	metrics   *metrics.Metrics
	logger    *zap.Logger
	owners    []string
	sendDelay time.Duration
}

func New(api API, self tgbotapi.User, store storage.Storage, m *metrics.Metrics, logger *zap.Logger, opts Options) *Bot {
	return &Bot{
		api:       api,
		self:      self,
		storage:   store,
		metrics:   m,
		logger:    logger,
		owners:    opts.Owners,
		sendDelay: opts.SendDelay,
	}
}

// SetCommands publishes the command list shown in Telegram clients
func (b *Bot) SetCommands() error {
	commands := make([]tgbotapi.BotCommand, 0, len(commandDescriptions))
	for _, c := range commandDescriptions {
		commands = append(commands, tgbotapi.BotCommand{Command: c.command, Description: c.description})
	}

	if _, err := b.api.Request(tgbotapi.NewSetMyCommands(commands...)); err != nil {
		return fmt.Errorf("failed to set bot commands: %w", err)
	}
	return nil
}

// Run handles updates until ctx is done or the channel is closed.
// Every update gets its own goroutine; Run waits for them before returning.
func (b *Bot) Run(ctx context.Context, updates tgbotapi.UpdatesChannel) error {
	var wg conc.WaitGroup
	defer wg.Wait()

	// in-flight updates are finished even when shutting down
	handlerCtx := context.WithoutCancel(ctx)

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("Stopping update dispatcher")
			return nil
		case update, ok := <-updates:
			if !ok {
				b.logger.Info("Updates channel closed")
				return nil
			}

			wg.Go(func() {
				var catcher panics.Catcher
				catcher.Try(func() { b.HandleUpdate(handlerCtx, update) })
				if recovered := catcher.Recovered(); recovered != nil {
					b.logger.Error("Update handler panicked",
						zap.Int("update_id", update.UpdateID),
						zap.String("panic", recovered.String()))
				}
			})
		}
	}
}

// HandleUpdate routes a single update to its handler and reports failures
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	logger := b.logger.With(
		zap.Int("update_id", update.UpdateID),
		zap.String("trace_id", uuid.NewString()),
	)

	var (
		handler string
		err     error
	)

	switch {
	case update.CallbackQuery != nil:
		b.metrics.Updates.WithLabelValues(metrics.KindCallback).Inc()
		handler = "callback"
		err = b.handleCallback(ctx, logger, update.CallbackQuery)
	case update.Message != nil && update.Message.From != nil && update.Message.IsCommand():
		b.metrics.Updates.WithLabelValues(metrics.KindCommand).Inc()
		handler = commandHandlerName(update.Message.Command())
		err = b.handleCommand(ctx, logger, update.Message)
	case update.Message != nil && update.Message.From != nil && update.Message.Text != "":
		b.metrics.Updates.WithLabelValues(metrics.KindText).Inc()
		handler = "add_entry"
		err = b.addEntry(ctx, logger, update.Message)
	default:
		b.metrics.Updates.WithLabelValues(metrics.KindIgnored).Inc()
		logger.Debug("Ignoring update")
		return
	}

	if err == nil {
		return
	}

	b.metrics.HandlerErrors.WithLabelValues(handler).Inc()
	logger.Error("Failed to handle update",
		zap.String("handler", handler),
		zap.Error(err))

	if chatID, ok := chatOf(update); ok {
		b.sendErrorMessage(chatID, "Something went wrong, please try again later.")
	}
}

func chatOf(update tgbotapi.Update) (int64, bool) {
	switch {
	case update.Message != nil && update.Message.Chat != nil:
		return update.Message.Chat.ID, true
	case update.CallbackQuery != nil && update.CallbackQuery.Message != nil && update.CallbackQuery.Message.Chat != nil:
		return update.CallbackQuery.Message.Chat.ID, true
	default:
		return 0, false
	}
}

// commandHandlerName keeps the metric label set bounded
func commandHandlerName(command string) string {
	for _, c := range commandDescriptions {
		if c.command == command {
			return "/" + command
		}
	}
	return "unknown_command"
}

// waitBetweenSends returns a limiter letting one message through every sendDelay
func (b *Bot) waitBetweenSends() *rate.Limiter {
	if b.sendDelay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(b.sendDelay), 1)
}

func (b *Bot) send(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send message to chat %d: %w", chatID, err)
	}
	return nil
}

func (b *Bot) sendErrorMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, "⚠️ "+text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send error message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

func (b *Bot) sendTyping(chatID int64) error {
	if _, err := b.api.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
		return fmt.Errorf("failed to send chat action: %w", err)
	}
	return nil
}
