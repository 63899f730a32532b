package telegram

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/class-bell/class-bell/internal/domain/notification"
	"github.com/class-bell/class-bell/internal/domain/notification/notificationtest"
	"github.com/class-bell/class-bell/internal/domain/shared"
	"github.com/class-bell/class-bell/internal/interface/telegram/middleware"
	"github.com/class-bell/class-bell/pkg/timeutil"
)

var classChat = notification.MessageHandle{ChannelID: "class", MessageID: "100"}

type observed struct {
	command string
	failed  bool
}

type fakeRecorder struct {
	mu  sync.Mutex
	got []observed
}

func (r *fakeRecorder) ObserveCommand(command string, err error, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, observed{command, err != nil})
}

func request(name, args string) Request {
	return Request{Command: name, Args: args, UserID: "7", ChatID: "class", Message: classChat}
}

func newTestRouter(cfg RouterConfig, handle HandlerFunc) (*Router, *notificationtest.Connector) {
	chat := notificationtest.New()
	r := NewRouter(cfg, chat)
	r.Register(Command{Name: "echo", Aliases: []string{"e"}, Usage: "/echo", Handle: handle})
	return r, chat
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		text, name, args string
		ok               bool
	}{
		{"/zad 31.12.2024 grupa_1 Zrób", "zad", "31.12.2024 grupa_1 Zrób", true},
		{"/NB@class_bell_bot", "nb", "", true},
		{"/cena  Glove Case ", "cena", "Glove Case", true},
		{"zad 31.12.2024", "", "", false},
		{"/", "", "", false},
		{"/@bot", "", "", false},
	}
	for _, tt := range tests {
		name, args, ok := ParseCommand(tt.text)
		assert.Equal(t, tt.ok, ok, tt.text)
		assert.Equal(t, tt.name, name, tt.text)
		assert.Equal(t, tt.args, args, tt.text)
	}
}

func TestRouter_RepliesThroughAlias(t *testing.T) {
	rec := &fakeRecorder{}
	r, chat := newTestRouter(RouterConfig{Recorder: rec}, func(_ context.Context, req Request) (*Response, error) {
		return Reply("echo: " + req.Args), nil
	})

	require.NoError(t, r.Dispatch(context.Background(), request("e", "hej")))

	msgs := chat.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "echo: hej", msgs[0].Text)
	assert.Equal(t, classChat, msgs[0].ReplyTo)
	assert.Equal(t, []observed{{"echo", false}}, rec.got)
}

func TestRouter_IgnoresUnknownCommands(t *testing.T) {
	r, chat := newTestRouter(RouterConfig{}, func(context.Context, Request) (*Response, error) {
		t.Fatal("handler must not run")
		return nil, nil
	})

	require.NoError(t, r.Dispatch(context.Background(), request("nope", "")))
	assert.Empty(t, chat.Messages())
}

func TestRouter_ExpectedErrorsBecomeReplies(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"not found", shared.NewDomainError("homework", "Delete", shared.ErrNotFound, "Nie ma takiego zadania."), "❌ Nie ma takiego zadania."},
		{"forbidden", shared.NewDomainError("market", "Untrack", shared.ErrForbidden, "Nie wolno."), "⚠️ Nie wolno."},
		{"validation", shared.NewDomainError("homework", "Parse", shared.ErrValidation, "Zły format."), "⚠️ Zły format."},
		{"rate limited", &shared.RateLimitedError{Wait: 1500 * time.Millisecond}, "⏳ Serwis jest chwilowo zajęty. Spróbuj ponownie za 2 s."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, chat := newTestRouter(RouterConfig{LogChannel: "log", OperatorID: "1"}, func(context.Context, Request) (*Response, error) {
				return nil, tt.err
			})

			require.NoError(t, r.Dispatch(context.Background(), request("echo", "")))

			msgs := chat.InChannel("class")
			require.Len(t, msgs, 1)
			assert.Equal(t, tt.want, msgs[0].Text)
			assert.Empty(t, chat.InChannel("log"))
		})
	}
}

func TestRouter_EscalatesUnexpectedErrors(t *testing.T) {
	rec := &fakeRecorder{}
	r, chat := newTestRouter(RouterConfig{LogChannel: "log", OperatorID: "1", Recorder: rec}, func(context.Context, Request) (*Response, error) {
		return nil, errors.New("state store unavailable")
	})

	require.NoError(t, r.Dispatch(context.Background(), request("echo", "abc")))

	replies := chat.InChannel("class")
	require.Len(t, replies, 1)
	assert.Equal(t, "⚠️ Wystąpił błąd podczas wykonywania komendy `/echo`. Operator został powiadomiony.", replies[0].Text)

	logs := chat.InChannel("log")
	require.Len(t, logs, 1)
	assert.Equal(t, "⚠️ @1 Błąd komendy `/echo abc` od @7: state store unavailable", logs[0].Text)
	assert.Equal(t, []observed{{"echo", true}}, rec.got)
}

func TestRouter_RecoversPanics(t *testing.T) {
	r, chat := newTestRouter(RouterConfig{LogChannel: "log"}, func(context.Context, Request) (*Response, error) {
		panic("nil map")
	})

	require.NoError(t, r.Dispatch(context.Background(), request("echo", "")))
	assert.Len(t, chat.InChannel("class"), 1)
	require.Len(t, chat.InChannel("log"), 1)
	assert.Contains(t, chat.InChannel("log")[0].Text, "nil map")
}

func TestRouter_RateLimitsPerUser(t *testing.T) {
	clock := timeutil.NewFakeClock(time.Date(2024, 12, 30, 12, 0, 0, 0, time.UTC))
	limiter := middleware.NewRateLimiter(middleware.RateLimitConfig{RequestsPerMinute: 1, BurstSize: 1}, clock)
	runs := 0
	r, chat := newTestRouter(RouterConfig{Limiter: limiter}, func(context.Context, Request) (*Response, error) {
		runs++
		return Reply("ok"), nil
	})
	ctx := context.Background()

	require.NoError(t, r.Dispatch(ctx, request("echo", "")))
	require.NoError(t, r.Dispatch(ctx, request("echo", "")))

	other := request("echo", "")
	other.UserID = "8"
	require.NoError(t, r.Dispatch(ctx, other))

	assert.Equal(t, 2, runs)
	msgs := chat.Messages()
	require.Len(t, msgs, 3)
	assert.Contains(t, msgs[1].Text, "Za dużo komend")

	clock.Advance(time.Minute + time.Second)
	require.NoError(t, r.Dispatch(ctx, request("echo", "")))
	assert.Equal(t, 3, runs)
}

func TestRouter_FollowUpRunsAfterReply(t *testing.T) {
	got := make(chan notification.MessageHandle, 1)
	r, chat := newTestRouter(RouterConfig{}, func(context.Context, Request) (*Response, error) {
		return &Response{
			Text: "lista",
			FollowUp: func(_ context.Context, reply notification.MessageHandle) {
				got <- reply
			},
		}, nil
	})

	require.NoError(t, r.Dispatch(context.Background(), request("echo", "")))
	r.Wait()

	assert.Equal(t, chat.Messages()[0].Handle, <-got)
}

func TestRouter_ReportsFailedReply(t *testing.T) {
	r, chat := newTestRouter(RouterConfig{}, func(context.Context, Request) (*Response, error) {
		return Reply("ok"), nil
	})
	chat.SendErr = errors.New("chat down")

	assert.Error(t, r.Dispatch(context.Background(), request("echo", "")))
}

func TestHelpText(t *testing.T) {
	r, _ := newTestRouter(RouterConfig{}, nil)
	r.Register(Command{Name: "abc", Usage: "/abc x", Description: "Robi abc."})

	text := HelpText(r.Commands())
	assert.Equal(t, "ℹ️ **Dostępne komendy:**\n`/abc x`\nRobi abc.\n`/echo`\n", text)
}
