package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/class-bell/class-bell/internal/domain/notification"
	"github.com/class-bell/class-bell/internal/domain/shared"
	"github.com/class-bell/class-bell/pkg/timeutil"
)

type call struct {
	Method string
	Body   map[string]any
}

// botAPI is a minimal Bot API that records calls and answers from a table.
type botAPI struct {
	mu      sync.Mutex
	calls   []call
	answers map[string]string
}

func newBotAPI(t *testing.T) (*botAPI, *Client) {
	t.Helper()
	api := &botAPI{answers: map[string]string{
		"sendMessage": `{"ok":true,"result":{"message_id":7,"chat":{"id":-100}}}`,
	}}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	cfg := DefaultClientConfig("secret")
	cfg.BaseURL = srv.URL
	return api, NewClient(cfg)
}

func (a *botAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)

	a.mu.Lock()
	a.calls = append(a.calls, call{Method: method, Body: body})
	answer, ok := a.answers[method]
	a.mu.Unlock()

	if !ok {
		answer = `{"ok":true,"result":true}`
	}
	_, _ = w.Write([]byte(answer))
}

func (a *botAPI) last() call {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls[len(a.calls)-1]
}

func (a *botAPI) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.calls)
}

type deliveries struct {
	got    []notification.Reaction
	accept bool
}

func (d *deliveries) Deliver(r notification.Reaction) bool {
	d.got = append(d.got, r)
	return d.accept
}

func newConnector(t *testing.T) (*botAPI, *Connector, *deliveries) {
	api, client := newBotAPI(t)
	d := &deliveries{accept: true}
	clock := timeutil.NewFakeClock(time.Date(2024, 12, 30, 17, 0, 0, 0, time.UTC))
	return api, NewConnector(client, map[string]string{"grupa_1": "@grupa1"}, d, clock, nil), d
}

func TestRenderHTML(t *testing.T) {
	names := func(id string) string {
		if id == "42" {
			return "@ola"
		}
		return ""
	}
	got := RenderHTML("**Jutro** __31.12__ ~~x~~ *y* `a<b>` <@42> <@7> 1 < 2", names)
	assert.Equal(t,
		`<b>Jutro</b> <u>31.12</u> <s>x</s> <i>y</i> <code>a&lt;b&gt;</code> `+
			`<a href="tg://user?id=42">@ola</a> <a href="tg://user?id=7">7</a> 1 &lt; 2`,
		got)
}

func TestConnector_SendAndReactions(t *testing.T) {
	api, c, _ := newConnector(t)
	ctx := context.Background()

	h, err := c.SendMessage(ctx, "-100", "**Na jutro** zadanie")
	require.NoError(t, err)
	assert.Equal(t, notification.MessageHandle{ChannelID: "-100", MessageID: "7"}, h)
	sent := api.last()
	assert.Equal(t, "sendMessage", sent.Method)
	assert.Equal(t, "<b>Na jutro</b> zadanie", sent.Body["text"])
	assert.Equal(t, "HTML", sent.Body["parse_mode"])

	require.NoError(t, c.AddReactions(ctx, h, notification.EmojiCheck, notification.EmojiAlarmClock))
	kb := api.last()
	assert.Equal(t, "editMessageReplyMarkup", kb.Method)
	buttons := kb.Body["reply_markup"].(map[string]any)["inline_keyboard"].([]any)[0].([]any)
	assert.Len(t, buttons, 2)

	require.NoError(t, c.EditMessage(ctx, h, "done"))
	edit := api.last()
	assert.Equal(t, "editMessageText", edit.Method)
	assert.NotNil(t, edit.Body["reply_markup"], "buttons survive an edit")

	require.NoError(t, c.ClearReactions(ctx, h))
	cleared := api.last()
	assert.Equal(t, []any{}, cleared.Body["reply_markup"].(map[string]any)["inline_keyboard"])

	require.NoError(t, c.EditMessage(ctx, h, "again"))
	assert.Nil(t, api.last().Body["reply_markup"])
}

func TestConnector_InvalidChannel(t *testing.T) {
	api, c, _ := newConnector(t)
	_, err := c.SendMessage(context.Background(), "general", "x")
	assert.ErrorIs(t, err, shared.ErrInvalidID)
	assert.Zero(t, api.count())
}

func TestConnector_Mentions(t *testing.T) {
	_, c, _ := newConnector(t)

	m, err := c.ResolveRoleMention(context.Background(), "grupa_1")
	require.NoError(t, err)
	assert.Equal(t, "@grupa1", m)

	_, err = c.ResolveRoleMention(context.Background(), "grupa_2")
	assert.True(t, shared.IsNotFound(err))

	assert.Equal(t, "<@42>", c.MentionUser("42"))
}

func TestConnector_HandleCallback(t *testing.T) {
	api, c, d := newConnector(t)
	q := &CallbackQuery{
		ID:      "cb1",
		From:    &User{ID: 42, FirstName: "Ola"},
		Message: &Message{MessageID: 7, Chat: &Chat{ID: -100}},
		Data:    notification.EmojiCheck,
	}

	require.NoError(t, c.HandleCallback(context.Background(), q))
	require.Len(t, d.got, 1)
	assert.Equal(t, notification.Reaction{
		Message: notification.MessageHandle{ChannelID: "-100", MessageID: "7"},
		Emoji:   notification.EmojiCheck,
		UserID:  "42",
		At:      time.Date(2024, 12, 30, 17, 0, 0, 0, time.UTC),
	}, d.got[0])
	assert.Equal(t, "answerCallbackQuery", api.last().Method)
	assert.Nil(t, api.last().Body["text"])
	assert.Equal(t, "Ola", c.name("42"))

	d.accept = false
	require.NoError(t, c.HandleCallback(context.Background(), q))
	assert.Equal(t, expiredReactionReply, api.last().Body["text"])
}

func TestClient_ClientErrorsAreNotRetried(t *testing.T) {
	api, client := newBotAPI(t)
	api.answers["sendMessage"] = `{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`

	_, err := client.SendMessage(context.Background(), SendMessageParams{ChatID: 1, Text: "x"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 400, apiErr.Code)
	assert.True(t, shared.IsExternalService(err))
	assert.False(t, shared.IsRateLimited(err))
	assert.Equal(t, 1, api.count())
}

func TestClient_NotModifiedEditIsIgnored(t *testing.T) {
	api, c, _ := newConnector(t)
	api.answers["editMessageText"] = `{"ok":false,"error_code":400,"description":"Bad Request: message is not modified"}`
	assert.NoError(t, c.EditMessage(context.Background(), notification.MessageHandle{ChannelID: "1", MessageID: "2"}, "x"))
}

func TestClient_PollingDeliversUpdatesInOrder(t *testing.T) {
	api, client := newBotAPI(t)
	api.answers["getUpdates"] = `{"ok":true,"result":[` +
		`{"update_id":10,"message":{"message_id":1,"chat":{"id":5},"text":"!zadania"}},` +
		`{"update_id":11,"callback_query":{"id":"q","data":"✅"}}]}`

	ctx, cancel := context.WithCancel(context.Background())
	var ids []int64
	err := client.StartPolling(ctx, func(_ context.Context, u *Update) error {
		ids = append(ids, u.UpdateID)
		if len(ids) == 2 {
			cancel()
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 11}, ids)
	assert.Equal(t, int64(12), client.updateOffset)
}
