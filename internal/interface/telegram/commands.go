package telegram

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/class-bell/class-bell/internal/application/command"
	"github.com/class-bell/class-bell/internal/application/query"
	"github.com/class-bell/class-bell/internal/domain/market"
	"github.com/class-bell/class-bell/internal/domain/notification"
	"github.com/class-bell/class-bell/internal/domain/shared"
	"github.com/class-bell/class-bell/internal/domain/timetable"
	"github.com/class-bell/class-bell/internal/infrastructure/messaging"
	"github.com/class-bell/class-bell/pkg/timeutil"
)

// DefaultRevealTimeout is how long a homework list offers to show event ids.
const DefaultRevealTimeout = 10 * time.Second

// AdminChecker tells chat administrators apart.
type AdminChecker interface {
	IsAdmin(ctx context.Context, channelID, userID string) (bool, error)
}

// Handlers are the application use cases behind the commands.
type Handlers struct {
	CreateHomework *command.CreateHomeworkHandler
	DeleteHomework *command.DeleteHomeworkHandler
	ListHomework   *query.ListHomeworkHandler
	NextBreak      *query.NextBreakHandler
	NextLesson     *query.NextLessonHandler
	LessonPlan     *query.LessonPlanHandler
	LuckyNumbers   *query.LuckyNumbersHandler
	Substitutions  *query.SubstitutionsHandler
	MarketPrice    *query.MarketPriceHandler
	TrackItem      *command.TrackItemHandler
	UntrackItem    *command.UntrackItemHandler
}

// CommandDeps wires the command set.
type CommandDeps struct {
	Handlers

	Chat      Chat
	Reactions *messaging.ReactionHub
	Admins    AdminChecker
	Members   Memberships

	// GroupAliases maps what users type for a group (its mention text, for
	// example) to the group.
	GroupAliases map[string]timetable.GroupTag

	Clock timeutil.Clock

	// Location is where typed hours are read. Defaults to Warsaw.
	Location      *time.Location
	RevealTimeout time.Duration
	Logger        *zap.Logger
}

// RegisterCommands registers every chat command on r.
func RegisterCommands(r *Router, deps CommandDeps) {
	if deps.Clock == nil {
		deps.Clock = timeutil.RealClock{}
	}
	if deps.Location == nil {
		deps.Location = timeutil.WarsawTZ
	}
	if deps.RevealTimeout <= 0 {
		deps.RevealTimeout = DefaultRevealTimeout
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	c := &commands{deps: deps, logger: deps.Logger.Named("commands")}

	r.Register(Command{
		Name:        "zadanie",
		Aliases:     []string{"zad"},
		Usage:       "/zad DD.MM.YYYY grupa treść | /zad del ID",
		Description: "Tworzy zadanie z powiadomieniem na dzień przed albo usuwa zadanie o podanym ID. Bez argumentów pokazuje listę zadań.",
		Handle:      c.homework,
	})
	r.Register(Command{
		Name:        "zadania",
		Usage:       "/zadania",
		Description: "Pokazuje wszystkie zadania domowe. Reakcja 🕵️ pokazuje ich numery ID.",
		Handle:      c.listHomework,
	})
	r.Register(Command{
		Name:        "nb",
		Aliases:     []string{"przerwa"},
		Usage:       "/nb [godzina] [minuta]",
		Description: "Pokazuje, kiedy jest następna przerwa, teraz albo o podanej godzinie.",
		Handle:      c.nextBreak,
	})
	r.Register(Command{
		Name:        "nl",
		Aliases:     []string{"lekcja"},
		Usage:       "/nl [godzina] [minuta]",
		Description: "Pokazuje, jaka jest następna lekcja, teraz albo o podanej godzinie.",
		Handle:      c.nextLesson,
	})
	r.Register(Command{
		Name:        "plan",
		Usage:       "/plan [dzień tygodnia]",
		Description: "Pokazuje plan lekcji na dziś albo na podany dzień (1-5 lub nazwa dnia).",
		Handle:      c.lessonPlan,
	})
	r.Register(Command{
		Name:        "numerki",
		Aliases:     []string{"nr"},
		Usage:       "/numerki",
		Description: "Pokazuje szczęśliwe numerki na dziś.",
		Handle:      c.luckyNumbers,
	})
	r.Register(Command{
		Name:        "zastepstwa",
		Aliases:     []string{"zast"},
		Usage:       "/zastepstwa",
		Description: "Pokazuje zastępstwa dla klasy.",
		Handle:      c.substitutions,
	})
	r.Register(Command{
		Name:        "cena",
		Usage:       "/cena nazwa przedmiotu",
		Description: "Pokazuje aktualną cenę przedmiotu na rynku Steam.",
		Handle:      c.price,
	})
	r.Register(Command{
		Name:        "sledz",
		Usage:       "/sledz nazwa przedmiotu min=1 max=3",
		Description: "Powiadamia, gdy cena przedmiotu wyjdzie poza podany przedział.",
		Handle:      c.track,
	})
	r.Register(Command{
		Name:        "odsledz",
		Usage:       "/odsledz nazwa przedmiotu",
		Description: "Kończy śledzenie ceny przedmiotu.",
		Handle:      c.untrack,
	})
	r.Register(Command{
		Name:        "pomoc",
		Aliases:     []string{"help", "start"},
		Usage:       "/pomoc",
		Description: "Pokazuje tę wiadomość.",
		Handle: func(context.Context, Request) (*Response, error) {
			return Reply(HelpText(r.Commands())), nil
		},
	})
}

// HelpText lists the commands.
func HelpText(cmds []Command) string {
	var b strings.Builder
	b.WriteString(notification.EmojiInfo + " **Dostępne komendy:**")
	for _, c := range cmds {
		fmt.Fprintf(&b, "\n`%s`\n%s", c.Usage, c.Description)
	}
	return b.String()
}

type commands struct {
	deps   CommandDeps
	logger *zap.Logger
}

// ══════════════════════════════════════════════════════════════════════════════
// HOMEWORK
// ══════════════════════════════════════════════════════════════════════════════

var errHomeworkUsage = shared.NewDomainError("homework", "Parse", shared.ErrValidation,
	"Należy napisać po komendzie `/zad` termin oddania zadania, oznaczenie grupy, dla której jest zadanie oraz jego treść, lub 'del' i ID zadania, którego się chce usunąć.")

func (c *commands) homework(ctx context.Context, req Request) (*Response, error) {
	fields := req.Fields()
	if len(fields) == 0 {
		return c.listHomework(ctx, req)
	}
	if fields[0] == "del" {
		if len(fields) != 2 {
			return nil, errHomeworkUsage
		}
		res, err := c.deps.DeleteHomework.Handle(ctx, command.DeleteHomeworkCommand{ID: fields[1]})
		if err != nil {
			return nil, err
		}
		return Reply(res.Reply), nil
	}
	if len(fields) < 3 {
		return nil, errHomeworkUsage
	}

	group, err := c.group(fields[1])
	if err != nil {
		return nil, err
	}
	res, err := c.deps.CreateHomework.Handle(ctx, command.CreateHomeworkCommand{
		Title:    strings.Join(fields[2:], " "),
		Group:    group,
		AuthorID: req.UserID,
		Deadline: fields[0],
	})
	if err != nil {
		return nil, err
	}
	return Reply(res.Reply), nil
}

func (c *commands) group(s string) (timetable.GroupTag, error) {
	switch strings.ToLower(s) {
	case "@everyone", "wszyscy", "0":
		return timetable.GroupEveryone, nil
	}
	if g, ok := c.deps.GroupAliases[s]; ok {
		return g, nil
	}
	g, err := timetable.ParseGroupTag(strings.ToLower(s))
	if err != nil {
		return "", shared.WrapError("homework", "Parse", shared.ErrInvalidInput,
			"Trzecim argumentem komendy musi być oznaczenie grupy, dla której jest zadanie.", err)
	}
	return g, nil
}

func (c *commands) listHomework(ctx context.Context, _ Request) (*Response, error) {
	res, err := c.deps.ListHomework.Handle(ctx, query.ListHomeworkQuery{})
	if err != nil {
		return nil, err
	}
	resp := Reply(res.Reply)
	if len(res.Events) > 0 && c.deps.Reactions != nil {
		resp.FollowUp = c.revealIDs
	}
	return resp, nil
}

// revealIDs offers 🕵️ under a homework list; pressing it in time edits the
// list to show event ids. Either way the reaction is removed afterwards.
func (c *commands) revealIDs(ctx context.Context, list notification.MessageHandle) {
	chat := c.deps.Chat
	if err := chat.AddReactions(ctx, list, notification.EmojiDetective); err != nil {
		c.logger.Warn("failed to offer id reveal", zap.Error(err))
		return
	}

	wait := c.deps.Reactions.Await(list, func(r notification.Reaction) bool {
		return r.Emoji == notification.EmojiDetective
	}, c.deps.RevealTimeout)
	_, err := wait.Result(ctx)

	if err == nil {
		res, qerr := c.deps.ListHomework.Handle(ctx, query.ListHomeworkQuery{ShowIDs: true})
		if qerr != nil {
			c.logger.Error("failed to list homework ids", zap.Error(qerr))
		} else if eerr := chat.EditMessage(ctx, list, res.Reply); eerr != nil {
			c.logger.Warn("failed to reveal homework ids", zap.Error(eerr))
		}
	} else if !errors.Is(err, messaging.ErrAwaitTimeout) {
		c.logger.Debug("id reveal abandoned", zap.Error(err))
	}

	if err := chat.ClearReactions(ctx, list); err != nil {
		c.logger.Warn("failed to clear id reveal", zap.Error(err))
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// TIMETABLE AND FEEDS
// ══════════════════════════════════════════════════════════════════════════════

func (c *commands) nextBreak(ctx context.Context, req Request) (*Response, error) {
	at, err := c.at(req, "nb")
	if err != nil {
		return nil, err
	}
	res, err := c.deps.NextBreak.Handle(ctx, query.NextBreakQuery{
		At:          at,
		Memberships: c.deps.Members.Groups(req.UserID),
	})
	if err != nil {
		return nil, err
	}
	return Reply(res.Reply), nil
}

func (c *commands) nextLesson(ctx context.Context, req Request) (*Response, error) {
	at, err := c.at(req, "nl")
	if err != nil {
		return nil, err
	}
	res, err := c.deps.NextLesson.Handle(ctx, query.NextLessonQuery{
		At:          at,
		Memberships: c.deps.Members.Groups(req.UserID),
	})
	if err != nil {
		return nil, err
	}
	return Reply(res.Reply), nil
}

func (c *commands) lessonPlan(ctx context.Context, req Request) (*Response, error) {
	res, err := c.deps.LessonPlan.Handle(ctx, query.LessonPlanQuery{
		At:  c.deps.Clock.Now(),
		Day: req.Args,
	})
	if err != nil {
		return nil, err
	}
	return Reply(res.Reply), nil
}

// at reads an optional "godzina [minuta]" argument as that time today. With no
// arguments it is the current time.
func (c *commands) at(req Request, name string) (time.Time, error) {
	now := c.deps.Clock.Now().In(c.deps.Location)
	fields := req.Fields()
	if len(fields) == 0 {
		return now, nil
	}

	usage := func(arg string) error {
		return shared.NewDomainError("timetable", "ParseTime", shared.ErrValidation, fmt.Sprintf(
			"`%s` nie jest godziną. Należy napisać po komendzie `/%s` godzinę i ewentualnie minutę oddzieloną spacją, lub zostawić parametry komendy puste.",
			arg, name))
	}
	if len(fields) > 2 {
		return time.Time{}, usage(req.Args)
	}
	hour, err := strconv.Atoi(fields[0])
	if err != nil || hour < 0 || hour > 23 {
		return time.Time{}, usage(fields[0])
	}
	minute := 0
	if len(fields) == 2 {
		minute, err = strconv.Atoi(fields[1])
		if err != nil || minute < 0 || minute > 59 {
			return time.Time{}, usage(fields[1])
		}
	}
	return time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, c.deps.Location), nil
}

func (c *commands) luckyNumbers(ctx context.Context, _ Request) (*Response, error) {
	text, err := c.deps.LuckyNumbers.Handle(ctx)
	if err != nil {
		return nil, err
	}
	return Reply(text), nil
}

func (c *commands) substitutions(ctx context.Context, _ Request) (*Response, error) {
	text, err := c.deps.Substitutions.Handle(ctx)
	if err != nil {
		return nil, err
	}
	return Reply(text), nil
}

// ══════════════════════════════════════════════════════════════════════════════
// MARKET
// ══════════════════════════════════════════════════════════════════════════════

var (
	trackArgs = regexp.MustCompile(`^(.+?)\s+min=(\S+)\s+max=(\S+)$`)

	errTrackUsage = shared.NewDomainError("market", "Parse", shared.ErrValidation,
		"Należy wpisać po nazwie przedmiotu cenę minimalną oraz cenę maksymalną, np. `/sledz Operation Broken Fang Case min=1 max=3`.")
	errItemNameMissing = shared.NewDomainError("market", "Parse", shared.ErrValidation,
		"Należy podać nazwę przedmiotu.")
)

func (c *commands) price(ctx context.Context, req Request) (*Response, error) {
	if req.Args == "" {
		return nil, errItemNameMissing
	}
	text, err := c.deps.MarketPrice.Handle(ctx, req.Args)
	if err != nil {
		return nil, err
	}
	return Reply(text), nil
}

func (c *commands) track(ctx context.Context, req Request) (*Response, error) {
	m := trackArgs.FindStringSubmatch(req.Args)
	if m == nil {
		return nil, errTrackUsage
	}
	minPrice, err := market.ParseAmount(m[2])
	if err != nil {
		return nil, errTrackUsage
	}
	maxPrice, err := market.ParseAmount(m[3])
	if err != nil {
		return nil, errTrackUsage
	}

	res, err := c.deps.TrackItem.Handle(ctx, command.TrackItemCommand{
		Name:     m[1],
		MinPrice: minPrice,
		MaxPrice: maxPrice,
		AuthorID: req.UserID,
	})
	if err != nil {
		return nil, err
	}
	return Reply(res.Reply), nil
}

func (c *commands) untrack(ctx context.Context, req Request) (*Response, error) {
	if req.Args == "" {
		return nil, errItemNameMissing
	}
	isAdmin := false
	if c.deps.Admins != nil {
		admin, err := c.deps.Admins.IsAdmin(ctx, req.ChatID, req.UserID)
		if err != nil {
			c.logger.Warn("admin check failed", zap.Error(err))
		} else {
			isAdmin = admin
		}
	}

	res, err := c.deps.UntrackItem.Handle(ctx, command.UntrackItemCommand{
		Name:        req.Args,
		RequesterID: req.UserID,
		IsAdmin:     isAdmin,
	})
	if err != nil {
		return nil, err
	}
	return Reply(res.Reply), nil
}
