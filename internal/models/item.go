package models

import "time"

// Key identifies a stored item. It is derived from the Telegram message the item came from.
type Key string

func (k Key) String() string {
	return string(k)
}

// Item represents something a user asked to watch (or read) later
type Item struct {
	Author  string     `json:"author"`
	Content string     `json:"content"`
	ReadAt  *time.Time `json:"read_at"`
}

// NewItem creates an unread item
func NewItem(author, content string) Item {
	return Item{
		Author:  author,
		Content: content,
	}
}

func (i Item) IsRead() bool {
	return i.ReadAt != nil
}

// MarkRead stamps the item as read at the given time, in UTC
func (i *Item) MarkRead(at time.Time) {
	at = at.UTC()
	i.ReadAt = &at
}
