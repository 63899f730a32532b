// Package telegram is the chat command surface of the bot: it parses commands
// from Telegram messages, runs them and turns their outcome into replies.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/class-bell/class-bell/internal/domain/notification"
	"github.com/class-bell/class-bell/internal/domain/shared"
	"github.com/class-bell/class-bell/internal/interface/telegram/middleware"
)

// ══════════════════════════════════════════════════════════════════════════════
// ROUTER CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// RouterConfig contains configuration for the router.
type RouterConfig struct {
	// LogChannel receives operator escalations.
	LogChannel string

	// OperatorID is mentioned in escalations.
	OperatorID string

	// Limiter throttles commands per user. Optional.
	Limiter *middleware.RateLimiter

	// Recorder observes every command run. Optional.
	Recorder CommandRecorder

	// Logger for structured logging.
	Logger *zap.Logger
}

// CommandRecorder observes command runs.
type CommandRecorder interface {
	ObserveCommand(command string, err error, took time.Duration)
}

// Chat is what the router needs from the connector.
type Chat interface {
	notification.Connector
	Reply(ctx context.Context, to notification.MessageHandle, text string) (notification.MessageHandle, error)
}

// ══════════════════════════════════════════════════════════════════════════════
// COMMANDS
// ══════════════════════════════════════════════════════════════════════════════

// Request is one command invocation.
type Request struct {
	// Command is the name or alias that was typed, lower case.
	Command string

	// Args is the text after the command.
	Args string

	UserID  string
	ChatID  string
	Message notification.MessageHandle
}

// Fields splits Args on whitespace.
func (r Request) Fields() []string {
	return strings.Fields(r.Args)
}

// Response is a command's reply.
type Response struct {
	Text string

	// FollowUp runs after the reply was sent, in its own goroutine.
	FollowUp func(ctx context.Context, reply notification.MessageHandle)
}

// Reply is a plain text response.
func Reply(text string) *Response {
	return &Response{Text: text}
}

// HandlerFunc runs a command.
type HandlerFunc func(ctx context.Context, req Request) (*Response, error)

// Command is a chat command.
type Command struct {
	Name        string
	Aliases     []string
	Usage       string
	Description string
	Handle      HandlerFunc
}

// ══════════════════════════════════════════════════════════════════════════════
// ROUTER
// ══════════════════════════════════════════════════════════════════════════════

// Router is the dispatch boundary for chat commands. No command error goes
// past it: expected failures become a reply, unexpected ones also mention the
// operator in the log channel.
type Router struct {
	config RouterConfig
	chat   Chat
	logger *zap.Logger

	mu       sync.RWMutex
	commands map[string]*Command
	names    []string

	followUps sync.WaitGroup
}

// NewRouter creates a new router.
func NewRouter(config RouterConfig, chat Chat) *Router {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	return &Router{
		config:   config,
		chat:     chat,
		logger:   config.Logger.Named("router"),
		commands: make(map[string]*Command),
	}
}

// Register adds a command under its name and aliases.
func (r *Router) Register(cmd Command) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := &cmd
	r.commands[cmd.Name] = c
	for _, a := range cmd.Aliases {
		r.commands[a] = c
	}
	r.names = append(r.names, cmd.Name)
	sort.Strings(r.names)
}

// Commands returns the registered commands sorted by name.
func (r *Router) Commands() []Command {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Command, 0, len(r.names))
	for _, n := range r.names {
		out = append(out, *r.commands[n])
	}
	return out
}

// ParseCommand splits "/zad@class_bell_bot 31.12.2024 ..." into the command
// name and its arguments. ok is false for text that is not a command.
func ParseCommand(text string) (name, args string, ok bool) {
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	head, rest, _ := strings.Cut(text[1:], " ")
	head, _, _ = strings.Cut(head, "@")
	if head == "" {
		return "", "", false
	}
	return strings.ToLower(head), strings.TrimSpace(rest), true
}

// Dispatch runs the command named in req. Unknown commands are ignored. The
// returned error only reports a reply that could not be sent.
func (r *Router) Dispatch(ctx context.Context, req Request) error {
	r.mu.RLock()
	cmd, ok := r.commands[req.Command]
	r.mu.RUnlock()
	if !ok {
		return nil
	}

	log := r.logger.With(
		zap.String("command", cmd.Name),
		zap.String("user_id", req.UserID),
		zap.String("chat_id", req.ChatID),
	)

	if r.config.Limiter != nil {
		if allowed, wait := r.config.Limiter.Allow(req.UserID); !allowed {
			log.Info("command rate limited", zap.Duration("retry_after", wait))
			_, err := r.chat.Reply(ctx, req.Message, middleware.LimitedReply(wait))
			return err
		}
	}

	log.Info("command received", zap.String("args", req.Args))
	started := time.Now()
	resp, err := middleware.Recover(func() (*Response, error) { return cmd.Handle(ctx, req) })
	if r.config.Recorder != nil {
		r.config.Recorder.ObserveCommand(cmd.Name, err, time.Since(started))
	}
	if err != nil {
		return r.fail(ctx, log, cmd, req, err)
	}
	if resp == nil || resp.Text == "" {
		return nil
	}

	sent, err := r.chat.Reply(ctx, req.Message, resp.Text)
	if err != nil {
		log.Error("failed to send reply", zap.Error(err))
		return err
	}

	if resp.FollowUp != nil {
		r.followUps.Add(1)
		go func() {
			defer r.followUps.Done()
			resp.FollowUp(context.WithoutCancel(ctx), sent)
		}()
	}
	return nil
}

// Wait blocks until every follow-up has returned.
func (r *Router) Wait() {
	r.followUps.Wait()
}

// fail replies to a failed command and escalates unexpected errors.
func (r *Router) fail(ctx context.Context, log *zap.Logger, cmd *Command, req Request, err error) error {
	text, expected := UserMessage(err)
	if expected {
		log.Info("command rejected", zap.Error(err))
	} else {
		log.Error("command failed", zap.Error(err))
		r.escalate(ctx, cmd, req, err)
		text = fmt.Sprintf("%s Wystąpił błąd podczas wykonywania komendy `/%s`. Operator został powiadomiony.",
			notification.EmojiWarning, cmd.Name)
	}

	_, sendErr := r.chat.Reply(ctx, req.Message, text)
	return sendErr
}

func (r *Router) escalate(ctx context.Context, cmd *Command, req Request, err error) {
	if r.config.LogChannel == "" {
		return
	}
	text := fmt.Sprintf("%s %s Błąd komendy `/%s %s` od %s: %v",
		notification.EmojiWarning, r.chat.MentionUser(r.config.OperatorID), cmd.Name, req.Args, r.chat.MentionUser(req.UserID), err)
	if _, sendErr := r.chat.SendMessage(context.WithoutCancel(ctx), r.config.LogChannel, text); sendErr != nil {
		r.logger.Error("failed to escalate command error", zap.Error(sendErr))
	}
}

// UserMessage turns a command error into reply text. expected is false for
// errors the user cannot fix, which must also reach the operator.
func UserMessage(err error) (text string, expected bool) {
	var rl *shared.RateLimitedError
	if errors.As(err, &rl) {
		return fmt.Sprintf("⏳ Serwis jest chwilowo zajęty. Spróbuj ponownie za %d s.", max(1, int(math.Ceil(rl.Wait.Seconds())))), true
	}

	var de *shared.DomainError
	if !errors.As(err, &de) {
		return "", false
	}
	switch {
	case shared.IsNotFound(err):
		return notification.EmojiCross + " " + de.Message, true
	case shared.IsForbidden(err), shared.IsAlreadyExists(err), shared.IsValidation(err):
		return notification.EmojiWarning + " " + de.Message, true
	}
	return "", false
}
