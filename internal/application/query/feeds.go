package query

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/class-bell/class-bell/internal/application/feeds"
	"github.com/class-bell/class-bell/internal/domain/feed"
	"github.com/class-bell/class-bell/internal/domain/market"
	"github.com/class-bell/class-bell/internal/domain/notification"
)

// ══════════════════════════════════════════════════════════════════════════════
// FEED QUERIES
// ══════════════════════════════════════════════════════════════════════════════

// FeedReader serves the cached school feeds.
type FeedReader interface {
	LuckyNumbers(ctx context.Context) (feed.LuckyNumbers, error)
	Substitutions(ctx context.Context) (feed.Substitutions, error)
}

// PriceSource quotes a marketplace item in minor units.
type PriceSource interface {
	Price(ctx context.Context, item string) (int, error)
}

// staleNote is appended when a feed could not be refreshed.
const staleNote = "\n_(nie udało się pobrać aktualnych danych, pokazuję ostatnie znane)_"

// LuckyNumbersHandler renders the current lucky numbers with the matching
// class members.
type LuckyNumbersHandler struct {
	feeds   FeedReader
	members Mentioner
	roster  []string // user id per register number, starting at 1
}

// NewLuckyNumbersHandler creates a new LuckyNumbersHandler.
func NewLuckyNumbersHandler(feeds FeedReader, members Mentioner, roster []string) *LuckyNumbersHandler {
	return &LuckyNumbersHandler{feeds: feeds, members: members, roster: roster}
}

// Handle renders the lucky numbers. A stale draw is still shown, with a note.
func (h *LuckyNumbersHandler) Handle(ctx context.Context) (string, error) {
	data, err := h.feeds.LuckyNumbers(ctx)
	var stale *feeds.StaleError
	if err != nil && !errors.As(err, &stale) {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "*Szczęśliwe numerki* na %s:\n", strings.ReplaceAll(data.Date, "/", "."))
	for _, n := range data.Numbers {
		if n >= 1 && n <= len(h.roster) && h.roster[n-1] != "" {
			fmt.Fprintf(&b, "\n**%d**: %s", n, h.members.MentionUser(h.roster[n-1]))
		} else {
			fmt.Fprintf(&b, "\n**%d**: _Nie ma numerku %d w naszej klasie._", n, n)
		}
	}

	excluded := "-"
	if len(data.ExcludedClasses) > 0 {
		excluded = strings.Join(data.ExcludedClasses, ", ")
	}
	fmt.Fprintf(&b, "\n\nWykluczone klasy: %s", excluded)
	if stale != nil {
		b.WriteString(staleNote)
	}
	return b.String(), nil
}

// SubstitutionsHandler renders the substitutions for the class.
type SubstitutionsHandler struct {
	feeds FeedReader
	class string
}

// NewSubstitutionsHandler creates a new SubstitutionsHandler.
func NewSubstitutionsHandler(feeds FeedReader, class string) *SubstitutionsHandler {
	return &SubstitutionsHandler{feeds: feeds, class: class}
}

// Handle renders the summary. A stale page is still shown, with a note.
func (h *SubstitutionsHandler) Handle(ctx context.Context) (string, error) {
	data, err := h.feeds.Substitutions(ctx)
	var stale *feeds.StaleError
	if err != nil && !errors.As(err, &stale) {
		return "", err
	}
	reply := data.Summary(h.class)
	if stale != nil {
		reply += staleNote
	}
	return reply, nil
}

// MarketPriceHandler quotes a marketplace item.
type MarketPriceHandler struct {
	prices PriceSource
}

// NewMarketPriceHandler creates a new MarketPriceHandler.
func NewMarketPriceHandler(prices PriceSource) *MarketPriceHandler {
	return &MarketPriceHandler{prices: prices}
}

// Handle quotes item.
func (h *MarketPriceHandler) Handle(ctx context.Context, item string) (string, error) {
	price, err := h.prices.Price(ctx, item)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s Aktualna cena dla *%s* to `%s`.", notification.EmojiInfo, item, market.FormatPrice(price)), nil
}

// ParseRoster splits a comma-separated list of user ids ordered by register
// number. Blank entries are kept so later numbers stay aligned.
func ParseRoster(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}
