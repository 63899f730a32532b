// Package command contains the write operations triggered by chat commands.
package command

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/class-bell/class-bell/internal/application/state"
	"github.com/class-bell/class-bell/internal/domain/homework"
	"github.com/class-bell/class-bell/internal/domain/notification"
	"github.com/class-bell/class-bell/internal/domain/shared"
	"github.com/class-bell/class-bell/internal/domain/timetable"
	"github.com/class-bell/class-bell/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// CREATE HOMEWORK COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// CreateHomeworkCommand creates a homework event with a reminder on the day
// before the deadline.
type CreateHomeworkCommand struct {
	// Title is the assignment text.
	Title string

	// Group is who the assignment is for.
	Group timetable.GroupTag

	// AuthorID is the chat user creating it.
	AuthorID string

	// Deadline is the due day as typed, "DD.MM.YYYY".
	Deadline string

	// Reminder overrides the default 17:00 reminder on the day before.
	Reminder *time.Time
}

// Validate validates the command.
func (c CreateHomeworkCommand) Validate() error {
	if strings.TrimSpace(c.Title) == "" {
		return shared.WrapError("homework", "Create", shared.ErrEmptyValue,
			"Należy podać treść zadania.", shared.ErrEventTitleEmpty)
	}
	if !c.Group.Valid() {
		return shared.WrapError("homework", "Create", shared.ErrInvalidInput,
			"Trzecim argumentem komendy musi być oznaczenie grupy, dla której jest zadanie.", shared.ErrUnknownGroup)
	}
	if c.AuthorID == "" {
		return shared.NewDomainError("homework", "Create", shared.ErrInvalidInput, "author is required")
	}
	return nil
}

// CreateHomeworkResult contains the created event.
type CreateHomeworkResult struct {
	Event homework.Event
	Reply string
}

// CreateHomeworkHandler handles CreateHomeworkCommand.
type CreateHomeworkHandler struct {
	state *state.State
}

// NewCreateHomeworkHandler creates a new CreateHomeworkHandler.
func NewCreateHomeworkHandler(st *state.State) *CreateHomeworkHandler {
	return &CreateHomeworkHandler{state: st}
}

// Handle executes the command. An identical event is rejected with
// shared.ErrAlreadyExists.
func (h *CreateHomeworkHandler) Handle(ctx context.Context, cmd CreateHomeworkCommand) (*CreateHomeworkResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	loc := h.state.Location()
	deadline, err := timeutil.ParseDate(cmd.Deadline, loc)
	if err != nil {
		return nil, shared.WrapError("homework", "Create", shared.ErrInvalidFormat,
			"Drugim argumentem komendy musi być data o formacie: `DD.MM.YYYY`.", err)
	}

	event, err := homework.NewEvent(cmd.Title, cmd.Group, cmd.AuthorID, deadline, cmd.Reminder, loc)
	if err != nil {
		return nil, err
	}

	err = h.state.Mutate(ctx, func(tx *state.Tx) error {
		if tx.Ledger.Contains(event) {
			return shared.WrapError("homework", "Create", shared.ErrAlreadyExists,
				"Takie zadanie już istnieje.", shared.ErrEventAlreadyExists)
		}
		event = tx.Ledger.Insert(event)
		return nil
	})
	if err != nil {
		return nil, err
	}

	group := ""
	if suffix := cmd.Group.Suffix(); suffix != "" {
		group = suffix + " "
	}
	reminder := event.ReminderTime.In(loc)
	when := "na dzień przed o **17:00.**"
	if event.HasCustomReminder(loc) || !timeutil.IsSameDay(reminder, timeutil.AddDays(event.Deadline, -1), loc) {
		when = fmt.Sprintf("na **%s:00.**", timeutil.FormatDateHour(reminder, loc))
	}

	return &CreateHomeworkResult{
		Event: event,
		Reply: fmt.Sprintf("%s Stworzono zadanie na __%s__ z tytułem: `%s` %sz powiadomieniem %s",
			notification.EmojiCheck, timeutil.FormatDate(event.Deadline, loc), event.Title, group, when),
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DELETE HOMEWORK COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// DeleteHomeworkCommand deletes a homework event.
type DeleteHomeworkCommand struct {
	// ID is "event-id-N" or "N".
	ID string
}

// DeleteHomeworkResult contains the deleted event.
type DeleteHomeworkResult struct {
	Event homework.Event
	Reply string
}

// DeleteHomeworkHandler handles DeleteHomeworkCommand.
type DeleteHomeworkHandler struct {
	state *state.State
}

// NewDeleteHomeworkHandler creates a new DeleteHomeworkHandler.
func NewDeleteHomeworkHandler(st *state.State) *DeleteHomeworkHandler {
	return &DeleteHomeworkHandler{state: st}
}

// Handle executes the command.
func (h *DeleteHomeworkHandler) Handle(ctx context.Context, cmd DeleteHomeworkCommand) (*DeleteHomeworkResult, error) {
	notFound := func(err error) error {
		label := strings.TrimPrefix(strings.TrimSpace(cmd.ID), "event-id-")
		return shared.WrapError("homework", "Delete", shared.ErrNotFound,
			fmt.Sprintf("Nie znaleziono zadania z ID: `event-id-%s`. Wpisz `/zadania`, aby otrzymać listę zadań oraz ich numery ID.", label), err)
	}

	id, err := homework.ParseIDLabel(cmd.ID)
	if err != nil {
		return nil, notFound(err)
	}

	var deleted homework.Event
	err = h.state.Mutate(ctx, func(tx *state.Tx) error {
		var err error
		deleted, err = tx.Ledger.Delete(id)
		return err
	})
	if errors.Is(err, shared.ErrNotFound) {
		return nil, notFound(err)
	}
	if err != nil {
		return nil, err
	}

	return &DeleteHomeworkResult{
		Event: deleted,
		Reply: fmt.Sprintf("%s Usunięto zadanie z treścią: `%s`", notification.EmojiCheck, deleted.Title),
	}, nil
}
