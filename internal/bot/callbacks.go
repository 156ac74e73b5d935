package bot

import (
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/xaenox/watchlater-bot/internal/models"
)

// Telegram rejects callback data longer than this
const maxCallbackDataLen = 64

type CallbackKind string

const CallbackMarkAsRead CallbackKind = "mark-as-read"

var ErrUnknownCallback = errors.New("unknown callback")

// Callback is the action encoded into an inline button
type Callback struct {
	Kind CallbackKind
	Key  models.Key
}

func MarkAsReadCallback(key models.Key) Callback {
	return Callback{Kind: CallbackMarkAsRead, Key: key}
}

// Encode produces the "<kind>:<key>" payload sent to Telegram
func (c Callback) Encode() (string, error) {
	payload := string(c.Kind) + ":" + string(c.Key)
	if len(payload) > maxCallbackDataLen {
		return "", fmt.Errorf("callback data is too long for Telegram API (%d bytes): %s", len(payload), payload)
	}
	return payload, nil
}

// Button wraps the callback into an inline keyboard button
func (c Callback) Button(text string) (tgbotapi.InlineKeyboardButton, error) {
	payload, err := c.Encode()
	if err != nil {
		return tgbotapi.InlineKeyboardButton{}, err
	}
	return tgbotapi.NewInlineKeyboardButtonData(text, payload), nil
}

// ParseCallback decodes a payload produced by Encode
func ParseCallback(payload string) (Callback, error) {
	kind, data, found := strings.Cut(payload, ":")
	if !found {
		return Callback{}, fmt.Errorf("%w: %q", ErrUnknownCallback, payload)
	}

	switch CallbackKind(kind) {
	case CallbackMarkAsRead:
		return MarkAsReadCallback(models.Key(data)), nil
	default:
		return Callback{}, fmt.Errorf("%w: %q", ErrUnknownCallback, payload)
	}
}
