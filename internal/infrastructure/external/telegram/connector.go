package telegram

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/class-bell/class-bell/internal/domain/notification"
	"github.com/class-bell/class-bell/internal/domain/shared"
	"github.com/class-bell/class-bell/pkg/timeutil"
)

const parseModeHTML = "HTML"

// expiredReactionReply answers a button press nobody is waiting for.
const expiredReactionReply = "Ta wiadomość nie czeka już na reakcję."

// Connector implements notification.Connector on top of the Bot API.
// Reactions are offered as inline keyboard buttons whose callback data is the
// emoji; presence is the bot's short description.
type Connector struct {
	client    *Client
	roles     map[string]string
	reactions notification.ReactionSource
	clock     timeutil.Clock
	logger    *zap.Logger

	mu        sync.Mutex
	keyboards map[notification.MessageHandle][]string
	names     map[string]string
}

// NewConnector creates a Connector. Roles maps group names to the text used
// to mention their members.
func NewConnector(client *Client, roles map[string]string, reactions notification.ReactionSource, clock timeutil.Clock, logger *zap.Logger) *Connector {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Connector{
		client:    client,
		roles:     roles,
		reactions: reactions,
		clock:     clock,
		logger:    logger.Named("telegram_connector"),
		keyboards: make(map[notification.MessageHandle][]string),
		names:     make(map[string]string),
	}
}

var _ notification.Connector = (*Connector)(nil)

// SendMessage posts text to a chat.
func (c *Connector) SendMessage(ctx context.Context, channelID, text string) (notification.MessageHandle, error) {
	chatID, err := parseID(channelID)
	if err != nil {
		return notification.MessageHandle{}, err
	}
	msg, err := c.client.SendMessage(ctx, SendMessageParams{
		ChatID:    chatID,
		Text:      RenderHTML(text, c.name),
		ParseMode: parseModeHTML,
	})
	if err != nil {
		return notification.MessageHandle{}, err
	}
	return HandleOf(msg), nil
}

// Reply answers a message in its chat.
func (c *Connector) Reply(ctx context.Context, to notification.MessageHandle, text string) (notification.MessageHandle, error) {
	chatID, messageID, err := parseHandle(to)
	if err != nil {
		return notification.MessageHandle{}, err
	}
	msg, err := c.client.SendMessage(ctx, SendMessageParams{
		ChatID:           chatID,
		Text:             RenderHTML(text, c.name),
		ParseMode:        parseModeHTML,
		ReplyToMessageID: messageID,
	})
	if err != nil {
		return notification.MessageHandle{}, err
	}
	return HandleOf(msg), nil
}

// EditMessage replaces the text and keeps the offered buttons.
func (c *Connector) EditMessage(ctx context.Context, h notification.MessageHandle, text string) error {
	chatID, messageID, err := parseHandle(h)
	if err != nil {
		return err
	}
	c.mu.Lock()
	keyboard := keyboardOf(c.keyboards[h])
	c.mu.Unlock()

	err = c.client.EditMessageText(ctx, chatID, messageID, RenderHTML(text, c.name), parseModeHTML, keyboard)
	if IsNotModified(err) {
		return nil
	}
	return err
}

// AddReactions offers emojis as buttons under the message.
func (c *Connector) AddReactions(ctx context.Context, h notification.MessageHandle, emojis ...string) error {
	chatID, messageID, err := parseHandle(h)
	if err != nil {
		return err
	}
	c.mu.Lock()
	offered := append(append([]string(nil), c.keyboards[h]...), emojis...)
	c.keyboards[h] = offered
	c.mu.Unlock()

	return c.client.EditMessageKeyboard(ctx, chatID, messageID, keyboardOf(offered))
}

// ClearReactions removes every button from the message.
func (c *Connector) ClearReactions(ctx context.Context, h notification.MessageHandle) error {
	chatID, messageID, err := parseHandle(h)
	if err != nil {
		return err
	}
	c.mu.Lock()
	delete(c.keyboards, h)
	c.mu.Unlock()

	err = c.client.EditMessageKeyboard(ctx, chatID, messageID, &InlineKeyboardMarkup{InlineKeyboard: [][]InlineKeyboardButton{}})
	if IsNotModified(err) {
		return nil
	}
	return err
}

// ResolveRoleMention returns the configured mention text of a group.
func (c *Connector) ResolveRoleMention(_ context.Context, role string) (string, error) {
	m, ok := c.roles[role]
	if !ok || m == "" {
		return "", shared.NewDomainError("notification", "ResolveRoleMention", shared.ErrNotFound, fmt.Sprintf("no mention configured for role %q", role))
	}
	return m, nil
}

// MentionUser returns the mention token of a user; it is rendered as a link
// when the message is sent.
func (c *Connector) MentionUser(userID string) string {
	return "<@" + userID + ">"
}

// SetPresence updates the bot's short description.
func (c *Connector) SetPresence(ctx context.Context, text string) error {
	return c.client.SetMyShortDescription(ctx, text)
}

// IsAdmin reports whether the user administers the chat.
func (c *Connector) IsAdmin(ctx context.Context, channelID, userID string) (bool, error) {
	chatID, err := parseID(channelID)
	if err != nil {
		return false, err
	}
	uid, err := parseID(userID)
	if err != nil {
		return false, err
	}
	member, err := c.client.GetChatMember(ctx, chatID, uid)
	if err != nil {
		return false, err
	}
	return member.IsAdmin(), nil
}

// Remember records a user's display name for mentions.
func (c *Connector) Remember(u *User) {
	if u == nil {
		return
	}
	name := u.FirstName
	if u.Username != "" {
		name = "@" + u.Username
	}
	c.mu.Lock()
	c.names[strconv.FormatInt(u.ID, 10)] = name
	c.mu.Unlock()
}

// HandleCallback turns a button press into a reaction.
func (c *Connector) HandleCallback(ctx context.Context, q *CallbackQuery) error {
	if q.Message == nil || q.From == nil {
		return c.client.AnswerCallbackQuery(ctx, q.ID, expiredReactionReply)
	}
	c.Remember(q.From)

	delivered := c.reactions.Deliver(notification.Reaction{
		Message: HandleOf(q.Message),
		Emoji:   q.Data,
		UserID:  strconv.FormatInt(q.From.ID, 10),
		At:      c.clock.Now(),
	})

	reply := ""
	if !delivered {
		reply = expiredReactionReply
		c.logger.Debug("reaction not awaited",
			zap.String("emoji", q.Data),
			zap.Int64("message_id", q.Message.MessageID),
		)
	}
	return c.client.AnswerCallbackQuery(ctx, q.ID, reply)
}

func (c *Connector) name(userID string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.names[userID]
}

func keyboardOf(emojis []string) *InlineKeyboardMarkup {
	if len(emojis) == 0 {
		return nil
	}
	row := make([]InlineKeyboardButton, len(emojis))
	for i, e := range emojis {
		row[i] = InlineKeyboardButton{Text: e, CallbackData: e}
	}
	return &InlineKeyboardMarkup{InlineKeyboard: [][]InlineKeyboardButton{row}}
}

// HandleOf returns the handle of a Telegram message.
func HandleOf(m *Message) notification.MessageHandle {
	var chatID int64
	if m.Chat != nil {
		chatID = m.Chat.ID
	}
	return notification.MessageHandle{
		ChannelID: strconv.FormatInt(chatID, 10),
		MessageID: strconv.FormatInt(m.MessageID, 10),
	}
}

func parseHandle(h notification.MessageHandle) (chatID, messageID int64, err error) {
	if chatID, err = parseID(h.ChannelID); err != nil {
		return 0, 0, err
	}
	if messageID, err = parseID(h.MessageID); err != nil {
		return 0, 0, err
	}
	return chatID, messageID, nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, shared.WrapError("notification", "ParseID", shared.ErrInvalidID, fmt.Sprintf("invalid telegram id %q", s), err)
	}
	return id, nil
}
