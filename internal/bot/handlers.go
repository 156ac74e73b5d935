package bot

import (
	"context"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/xaenox/watchlater-bot/internal/models"
	"github.com/xaenox/watchlater-bot/internal/storage"
	"github.com/xaenox/watchlater-bot/pkg/markdown"
	"go.uber.org/zap"
)

// authorName is the username, or the numeric ID for users without one
func authorName(user *tgbotapi.User) string {
	if user.UserName != "" {
		return user.UserName
	}
	return strconv.FormatInt(user.ID, 10)
}

// MessageKey builds the storage key for a message. Message IDs are only unique within a chat.
func MessageKey(message *tgbotapi.Message) models.Key {
	return models.Key(fmt.Sprintf("%d:%d", message.Chat.ID, message.MessageID))
}

func (b *Bot) handleCommand(ctx context.Context, logger *zap.Logger, message *tgbotapi.Message) error {
	chatID := message.Chat.ID
	author := authorName(message.From)

	logger.Info("Got command",
		zap.String("command", message.Command()),
		zap.String("author", author),
		zap.Int64("chat_id", chatID))

	switch message.Command() {
	case "start":
		if err := b.send(chatID, b.startText(author)); err != nil {
			return fmt.Errorf("failed to send welcome message in /start handler: %w", err)
		}
	case "all_my":
		items, err := b.storage.GetUserItems(ctx, author)
		if err != nil {
			return fmt.Errorf("failed to get user items in /all_my handler: %w", err)
		}
		if err := b.sendItems(ctx, chatID, items); err != nil {
			return fmt.Errorf("/all_my handler: %w", err)
		}
	case "random":
		if err := b.sendTyping(chatID); err != nil {
			return fmt.Errorf("/random handler: %w", err)
		}

		entry, err := b.storage.GetRandom(ctx)
		if err != nil {
			return fmt.Errorf("failed to get random item in /random handler: %w", err)
		}
		if entry == nil {
			if err := b.send(chatID, markdown.Escape(textNoEntries)); err != nil {
				return fmt.Errorf("failed to send message about empty queue in /random handler: %w", err)
			}
			return nil
		}
		if err := b.sendItem(chatID, entry.Key, entry.Item); err != nil {
			return fmt.Errorf("failed to send item in /random handler: %w", err)
		}
	case "unread":
		items, err := b.storage.GetAll(ctx)
		if err != nil {
			return fmt.Errorf("failed to get unread items in /unread handler: %w", err)
		}
		if err := b.sendItems(ctx, chatID, items); err != nil {
			return fmt.Errorf("/unread handler: %w", err)
		}
	default:
		if err := b.send(chatID, markdown.Escape(textUnknown)); err != nil {
			return fmt.Errorf("failed to answer unknown command: %w", err)
		}
	}

	return nil
}

// sendItems sends items one by one with a fixed pause after each of them
func (b *Bot) sendItems(ctx context.Context, chatID int64, items map[models.Key]models.Item) error {
	if len(items) == 0 {
		if err := b.send(chatID, markdown.Escape(textNoEntries)); err != nil {
			return fmt.Errorf("failed to send message about empty queue: %w", err)
		}
		return nil
	}

	limiter := b.waitBetweenSends()
	for _, key := range storage.SortedKeys(items) {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
		if err := b.sendTyping(chatID); err != nil {
			return err
		}
		if err := b.sendItem(chatID, key, items[key]); err != nil {
			return fmt.Errorf("failed to send item %s: %w", key, err)
		}
	}

	if err := limiter.Wait(ctx); err != nil {
		return err
	}
	if err := b.send(chatID, markdown.Escape(textThatsAll)); err != nil {
		return fmt.Errorf("failed to send finalizing message: %w", err)
	}
	return nil
}

// sendItem sends the item with a "mark as read" button under it
func (b *Bot) sendItem(chatID int64, key models.Key, item models.Item) error {
	button, err := MarkAsReadCallback(key).Button(markAsReadButton)
	if err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(chatID, itemText(item))
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(button))

	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send item message: %w", err)
	}
	return nil
}

func (b *Bot) handleCallback(ctx context.Context, logger *zap.Logger, query *tgbotapi.CallbackQuery) error {
	err := b.processCallback(ctx, logger, query)

	// the button keeps spinning in the client until the query is answered
	if _, answerErr := b.api.Request(tgbotapi.NewCallback(query.ID, "")); answerErr != nil && err == nil {
		err = fmt.Errorf("failed to set callback answered in TG API: %w", answerErr)
	}

	return err
}

func (b *Bot) processCallback(ctx context.Context, logger *zap.Logger, query *tgbotapi.CallbackQuery) error {
	callback, err := ParseCallback(query.Data)
	if err != nil {
		logger.Warn("Ignoring callback", zap.Error(err))
		return nil
	}

	if query.Message == nil || query.Message.Chat == nil {
		return fmt.Errorf("no chat in callback query %s", query.ID)
	}
	chatID := query.Message.Chat.ID

	switch callback.Kind {
	case CallbackMarkAsRead:
		if err := b.storage.MarkAsRead(ctx, callback.Key); err != nil {
			return fmt.Errorf("marking %s as read failed: %w", callback.Key, err)
		}
		b.metrics.ItemsMarkedRead.Inc()

		logger.Info("Item marked as read",
			zap.String("key", callback.Key.String()),
			zap.Int64("chat_id", chatID))

		if err := b.send(chatID, markdown.Escape(textMarkedRead)); err != nil {
			return fmt.Errorf("failed to notify user that the item is read: %w", err)
		}

		b.removeKeyboard(logger, chatID, query.Message.MessageID)
	}

	return nil
}

// removeKeyboard hides the button of an item that has been read. Failures are only logged.
func (b *Bot) removeKeyboard(logger *zap.Logger, chatID int64, messageID int) {
	edit := tgbotapi.NewEditMessageReplyMarkup(chatID, messageID, tgbotapi.InlineKeyboardMarkup{
		InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{},
	})
	if _, err := b.api.Request(edit); err != nil {
		logger.Warn("Failed to remove inline keyboard",
			zap.Error(err),
			zap.Int64("chat_id", chatID),
			zap.Int("message_id", messageID))
	}
}

func (b *Bot) addEntry(ctx context.Context, logger *zap.Logger, message *tgbotapi.Message) error {
	// replies to someone else's messages are conversation, not submissions
	if reply := message.ReplyToMessage; reply != nil && reply.From != nil && reply.From.ID != b.self.ID {
		logger.Info("User is replying to someone else's message, ignoring",
			zap.Int64("chat_id", message.Chat.ID))
		return nil
	}

	key := MessageKey(message)
	item := models.NewItem(authorName(message.From), message.Text)

	if err := b.storage.Set(ctx, key, item); err != nil {
		return fmt.Errorf("failed to save new item from user: %w", err)
	}
	b.metrics.ItemsSaved.Inc()

	logger.Info("Item saved",
		zap.String("key", key.String()),
		zap.String("author", item.Author),
		zap.Int64("user_id", message.From.ID))

	msg := tgbotapi.NewMessage(message.Chat.ID, markdown.Escape(textSaved))
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	msg.ReplyToMessageID = message.MessageID
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send confirmation message: %w", err)
	}

	return nil
}
