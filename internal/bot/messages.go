package bot

import (
	"fmt"
	"slices"
	"strings"

	"github.com/xaenox/watchlater-bot/internal/models"
	"github.com/xaenox/watchlater-bot/pkg/markdown"
)

const (
	textSaved      = "Saved! 🎉"
	textNoEntries  = "You have no entries yet"
	textThatsAll   = "That's all!"
	textMarkedRead = "Great! I hope you liked it 😊"
	textUnknown    = "Unknown command. Use /start to see what I can do."

	markAsReadButton = "Mark as read ✅"
)

var commandDescriptions = []struct {
	command     string
	description string
}{
	{"start", "Start the bot"},
	{"all_my", "Get all items created by current user"},
	{"random", "Get random item from collection"},
	{"unread", "Get all unread items"},
}

// itemText renders an item the way it is shown in chats
func itemText(item models.Item) string {
	return markdown.Escape(fmt.Sprintf("suggested by @%s:\n\n%s", item.Author, item.Content))
}

func (b *Bot) startText(author string) string {
	var who, whose string

	switch {
	case slices.Contains(b.owners, author):
		others := slices.DeleteFunc(slices.Clone(b.owners), func(owner string) bool { return owner == author })
		who, whose = "you", "your"
		if len(others) > 0 {
			who = "you and " + mentionList(others)
		}
	case len(b.owners) > 0:
		who, whose = mentionList(b.owners), "their"
	default:
		who, whose = "you", "your"
	}

	return markdown.Escape(fmt.Sprintf(
		"Hello, @%s! I'm a bot for %s to keep %s watch list.\n\nJust send me anything and I'll add it to the list!",
		author, who, whose))
}

// mentionList formats users as "@a", "@a and @b" or "@a, @b and @c"
func mentionList(users []string) string {
	mentions := make([]string, len(users))
	for i, user := range users {
		mentions[i] = "@" + user
	}

	if len(mentions) == 1 {
		return mentions[0]
	}
	return strings.Join(mentions[:len(mentions)-1], ", ") + " and " + mentions[len(mentions)-1]
}
