package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/class-bell/class-bell/internal/infrastructure/external/telegram"
)

// ══════════════════════════════════════════════════════════════════════════════
// BOT
// ══════════════════════════════════════════════════════════════════════════════

// BotConfig contains configuration for the Telegram bot.
type BotConfig struct {
	// AllowedChats limits commands to these chat ids. Empty allows every chat.
	AllowedChats []string

	// Logger for structured logging.
	Logger *zap.Logger
}

// Bot receives updates and hands them to the router and the connector.
type Bot struct {
	config    BotConfig
	client    *telegram.Client
	connector *telegram.Connector
	router    *Router
	logger    *zap.Logger
	allowed   map[string]bool

	mu      sync.Mutex
	running bool

	updatesHandled atomic.Int64
	updatesFailed  atomic.Int64
}

// NewBot creates the bot.
func NewBot(config BotConfig, client *telegram.Client, connector *telegram.Connector, router *Router) *Bot {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	allowed := make(map[string]bool, len(config.AllowedChats))
	for _, id := range config.AllowedChats {
		allowed[id] = true
	}
	return &Bot{
		config:    config,
		client:    client,
		connector: connector,
		router:    router,
		logger:    config.Logger.Named("bot"),
		allowed:   allowed,
	}
}

// Run verifies the token and receives updates until ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return errors.New("bot is already running")
	}
	b.running = true
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		b.running = false
		b.mu.Unlock()
	}()

	me, err := b.client.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("verify bot token: %w", err)
	}
	b.logger.Info("bot verified", zap.Int64("id", me.ID), zap.String("username", me.Username))

	err = b.client.StartPolling(ctx, b.HandleUpdate)
	b.router.Wait()
	return err
}

// HandleUpdate processes a single Telegram update.
func (b *Bot) HandleUpdate(ctx context.Context, update *telegram.Update) error {
	var err error
	switch {
	case update.CallbackQuery != nil:
		err = b.connector.HandleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		err = b.handleMessage(ctx, update.Message)
	default:
		return nil
	}

	if err != nil {
		b.updatesFailed.Add(1)
		return err
	}
	b.updatesHandled.Add(1)
	return nil
}

func (b *Bot) handleMessage(ctx context.Context, msg *telegram.Message) error {
	if msg.From == nil || msg.From.IsBot || msg.Chat == nil {
		return nil
	}
	name, args, ok := ParseCommand(msg.Text)
	if !ok {
		return nil
	}

	chatID := strconv.FormatInt(msg.Chat.ID, 10)
	if len(b.allowed) > 0 && !b.allowed[chatID] {
		b.logger.Debug("command from unknown chat ignored", zap.String("chat_id", chatID))
		return nil
	}
	b.connector.Remember(msg.From)

	return b.router.Dispatch(ctx, Request{
		Command: name,
		Args:    args,
		UserID:  strconv.FormatInt(msg.From.ID, 10),
		ChatID:  chatID,
		Message: telegram.HandleOf(msg),
	})
}

// Stats returns how many updates were handled and how many failed.
func (b *Bot) Stats() (handled, failed int64) {
	return b.updatesHandled.Load(), b.updatesFailed.Load()
}
