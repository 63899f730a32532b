// Package notificationtest provides an in-memory chat connector for tests.
package notificationtest

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/class-bell/class-bell/internal/domain/notification"
)

// Message is a message as currently shown in the fake chat.
type Message struct {
	Handle    notification.MessageHandle
	ReplyTo   notification.MessageHandle
	Text      string
	Edits     []string
	Reactions []string
	Cleared   bool
}

// Connector records everything sent through it.
type Connector struct {
	mu       sync.Mutex
	seq      int
	messages []*Message
	presence []string

	// Roles maps role names to mentions. Unknown roles fail.
	Roles map[string]string

	// SendErr, when set, fails every SendMessage.
	SendErr error
}

var _ notification.Connector = (*Connector)(nil)

// New returns an empty Connector.
func New() *Connector {
	return &Connector{Roles: map[string]string{}}
}

func (c *Connector) SendMessage(_ context.Context, channelID, text string) (notification.MessageHandle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.SendErr != nil {
		return notification.MessageHandle{}, c.SendErr
	}
	c.seq++
	h := notification.MessageHandle{ChannelID: channelID, MessageID: strconv.Itoa(c.seq)}
	c.messages = append(c.messages, &Message{Handle: h, Text: text})
	return h, nil
}

// Reply sends text to the channel of msg, remembering what it answers.
func (c *Connector) Reply(ctx context.Context, msg notification.MessageHandle, text string) (notification.MessageHandle, error) {
	h, err := c.SendMessage(ctx, msg.ChannelID, text)
	if err != nil {
		return h, err
	}
	c.mu.Lock()
	c.messages[len(c.messages)-1].ReplyTo = msg
	c.mu.Unlock()
	return h, nil
}

func (c *Connector) EditMessage(_ context.Context, msg notification.MessageHandle, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, err := c.find(msg)
	if err != nil {
		return err
	}
	m.Text = text
	m.Edits = append(m.Edits, text)
	return nil
}

func (c *Connector) AddReactions(_ context.Context, msg notification.MessageHandle, emojis ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, err := c.find(msg)
	if err != nil {
		return err
	}
	m.Reactions = append(m.Reactions, emojis...)
	return nil
}

func (c *Connector) ClearReactions(_ context.Context, msg notification.MessageHandle) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, err := c.find(msg)
	if err != nil {
		return err
	}
	m.Reactions = nil
	m.Cleared = true
	return nil
}

func (c *Connector) ResolveRoleMention(_ context.Context, role string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	mention, ok := c.Roles[role]
	if !ok {
		return "", fmt.Errorf("unknown role %q", role)
	}
	return mention, nil
}

func (c *Connector) MentionUser(userID string) string {
	return "@" + userID
}

func (c *Connector) SetPresence(_ context.Context, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.presence = append(c.presence, text)
	return nil
}

// Messages returns copies of every sent message in send order.
func (c *Connector) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.messages))
	for i, m := range c.messages {
		out[i] = *m
	}
	return out
}

// InChannel returns the messages sent to channelID.
func (c *Connector) InChannel(channelID string) []Message {
	var out []Message
	for _, m := range c.Messages() {
		if m.Handle.ChannelID == channelID {
			out = append(out, m)
		}
	}
	return out
}

// Presence returns every status line set so far.
func (c *Connector) Presence() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.presence...)
}

func (c *Connector) find(h notification.MessageHandle) (*Message, error) {
	for _, m := range c.messages {
		if m.Handle == h {
			return m, nil
		}
	}
	return nil, fmt.Errorf("message %s/%s not found", h.ChannelID, h.MessageID)
}
