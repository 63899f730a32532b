package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/class-bell/class-bell/internal/application/state"
	"github.com/class-bell/class-bell/internal/domain/homework"
	"github.com/class-bell/class-bell/internal/domain/notification"
	"github.com/class-bell/class-bell/internal/domain/timetable"
	"github.com/class-bell/class-bell/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIST HOMEWORK QUERY
// ══════════════════════════════════════════════════════════════════════════════

// EmptyHomeworkReply is shown when there is no homework at all.
const EmptyHomeworkReply = notification.EmojiInfo + " Nie ma jeszcze żadnych zadań. Możesz je tworzyć za pomocą komendy `/zadanie`."

// Mentioner renders chat mentions.
type Mentioner interface {
	ResolveRoleMention(ctx context.Context, role string) (string, error)
	MentionUser(userID string) string
}

// ListHomeworkQuery lists every homework event.
type ListHomeworkQuery struct {
	// ShowIDs adds each event's id label.
	ShowIDs bool
}

// ListHomeworkResult contains the rendered list.
type ListHomeworkResult struct {
	Events []homework.Event
	Reply  string
}

// ListHomeworkHandler handles ListHomeworkQuery.
type ListHomeworkHandler struct {
	state            *state.State
	mentions         Mentioner
	broadcastMention string
}

// NewListHomeworkHandler creates a new ListHomeworkHandler.
func NewListHomeworkHandler(st *state.State, mentions Mentioner, broadcastMention string) *ListHomeworkHandler {
	return &ListHomeworkHandler{state: st, mentions: mentions, broadcastMention: broadcastMention}
}

// Handle executes the query.
func (h *ListHomeworkHandler) Handle(ctx context.Context, q ListHomeworkQuery) (*ListHomeworkResult, error) {
	var events []homework.Event
	h.state.View(func(tx *state.Tx) { events = tx.Ledger.Events() })

	if len(events) == 0 {
		return &ListHomeworkResult{Reply: EmptyHomeworkReply}, nil
	}

	loc := h.state.Location()
	var b strings.Builder
	fmt.Fprintf(&b, "*Zadania*\nLista zadań (%d) jest następująca:\n", len(events))

	for _, e := range events {
		deadline := timeutil.FormatDate(e.Deadline, loc)
		switch {
		case !e.ReminderActive:
			fmt.Fprintf(&b, "\n~~%s~~ ☑️\n", deadline)
		case e.HasCustomReminder(loc):
			fmt.Fprintf(&b, "\n**%s** %s %02d:00\n", deadline, notification.EmojiAlarmClock, e.ReminderTime.In(loc).Hour())
		default:
			fmt.Fprintf(&b, "\n**%s**\n", deadline)
		}
		fmt.Fprintf(&b, "**%s**\nZadanie dla %s (stworzone przez %s)",
			e.Title, h.groupMention(ctx, e.Group), h.mentions.MentionUser(e.AuthorID))
		if q.ShowIDs {
			fmt.Fprintf(&b, "\n*ID: %s*", e.IDLabel())
		}
		b.WriteString("\n")
	}
	b.WriteString("\nUżyj komendy /zadania, aby pokazać tą wiadomość.")

	return &ListHomeworkResult{Events: events, Reply: b.String()}, nil
}

func (h *ListHomeworkHandler) groupMention(ctx context.Context, g timetable.GroupTag) string {
	if g.IsEveryone() {
		return h.broadcastMention
	}
	if m, err := h.mentions.ResolveRoleMention(ctx, string(g)); err == nil {
		return m
	}
	return string(g)
}
