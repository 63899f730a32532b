// Package notification defines the chat connector port used to announce
// reminders, alerts and feed changes, and to collect reactions to them.
package notification

import (
	"context"
	"time"
)

// Reaction emojis used by interactive messages.
const (
	EmojiCheck      = "✅"
	EmojiAlarmClock = "⏰"
	EmojiDetective  = "🕵️"
)

// Reply prefixes.
const (
	EmojiInfo    = "ℹ️"
	EmojiWarning = "⚠️"
	EmojiCross   = "❌"
)

// MessageHandle identifies a sent message so it can be edited or reacted to.
type MessageHandle struct {
	ChannelID string
	MessageID string
}

// IsZero reports whether the handle is empty.
func (h MessageHandle) IsZero() bool {
	return h.ChannelID == "" && h.MessageID == ""
}

// Reaction is a user's reaction to a message.
type Reaction struct {
	Message MessageHandle
	Emoji   string
	UserID  string
	At      time.Time
}

// Connector is the chat platform as seen by the engine.
type Connector interface {
	// SendMessage posts text to a channel.
	SendMessage(ctx context.Context, channelID, text string) (MessageHandle, error)

	// EditMessage replaces the text of a sent message. Reactions offered on
	// the message are kept.
	EditMessage(ctx context.Context, msg MessageHandle, text string) error

	// AddReactions offers reactions on a message.
	AddReactions(ctx context.Context, msg MessageHandle, emojis ...string) error

	// ClearReactions removes every offered reaction.
	ClearReactions(ctx context.Context, msg MessageHandle) error

	// ResolveRoleMention returns the mention text for a group role.
	ResolveRoleMention(ctx context.Context, role string) (string, error)

	// MentionUser returns the mention text for a user.
	MentionUser(userID string) string

	// SetPresence updates the bot's status line.
	SetPresence(ctx context.Context, text string) error
}

// ReactionSource receives reactions from the platform.
type ReactionSource interface {
	Deliver(r Reaction) bool
}
