package command

import (
	"context"
	"fmt"

	"github.com/class-bell/class-bell/internal/application/state"
	"github.com/class-bell/class-bell/internal/domain/market"
	"github.com/class-bell/class-bell/internal/domain/notification"
	"github.com/class-bell/class-bell/internal/domain/shared"
)

// PriceSource quotes a marketplace item in minor units.
type PriceSource interface {
	Price(ctx context.Context, item string) (int, error)
}

// ══════════════════════════════════════════════════════════════════════════════
// TRACK ITEM COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// TrackItemCommand starts watching an item's price.
type TrackItemCommand struct {
	Name     string
	MinPrice int // minor units
	MaxPrice int // minor units
	AuthorID string
}

// TrackItemResult contains the tracked item and its current price.
type TrackItemResult struct {
	Item         market.TrackedItem
	CurrentPrice int
	Reply        string
}

// TrackItemHandler handles TrackItemCommand.
type TrackItemHandler struct {
	state     *state.State
	prices    PriceSource
	connector notification.Connector
}

// NewTrackItemHandler creates a new TrackItemHandler.
func NewTrackItemHandler(st *state.State, prices PriceSource, connector notification.Connector) *TrackItemHandler {
	return &TrackItemHandler{state: st, prices: prices, connector: connector}
}

// Handle executes the command. The item is quoted first, so names the
// marketplace does not know are never tracked.
func (h *TrackItemHandler) Handle(ctx context.Context, cmd TrackItemCommand) (*TrackItemResult, error) {
	item, err := market.NewTrackedItem(cmd.Name, cmd.MinPrice, cmd.MaxPrice, cmd.AuthorID)
	if err != nil {
		return nil, shared.WrapError("market", "Track", shared.ErrValidation,
			"Należy wpisać po nazwie przedmiotu cenę minimalną oraz cenę maksymalną, np. `/sledz Operation Broken Fang Case min=1 max=3`.", err)
	}

	price, err := h.prices.Price(ctx, item.Name)
	if err != nil {
		return nil, err
	}

	err = h.state.Mutate(ctx, func(tx *state.Tx) error {
		if existing, ok := tx.Items.Find(item.Name); ok {
			owner := "Ciebie"
			if existing.AuthorID != cmd.AuthorID {
				owner = "użytkownika " + h.connector.MentionUser(existing.AuthorID)
			}
			return shared.WrapError("market", "Track", shared.ErrAlreadyExists,
				fmt.Sprintf("Przedmiot *%s* jest już śledzony przez %s.", existing.Name, owner), shared.ErrItemAlreadyExists)
		}
		return tx.Items.Track(item)
	})
	if err != nil {
		return nil, err
	}

	return &TrackItemResult{
		Item:         item,
		CurrentPrice: price,
		Reply: fmt.Sprintf("%s Stworzono zlecenie śledzenia przedmiotu *%s* w przedziale `%s - %s`.\nAktualna cena to `%s`.",
			notification.EmojiCheck, item.Name, market.FormatPrice(item.MinPrice), market.FormatPrice(item.MaxPrice), market.FormatPrice(price)),
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// UNTRACK ITEM COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// UntrackItemCommand stops watching an item.
type UntrackItemCommand struct {
	Name        string
	RequesterID string
	IsAdmin     bool
}

// UntrackItemResult contains the removed item.
type UntrackItemResult struct {
	Item  market.TrackedItem
	Reply string
}

// UntrackItemHandler handles UntrackItemCommand.
type UntrackItemHandler struct {
	state *state.State
}

// NewUntrackItemHandler creates a new UntrackItemHandler.
func NewUntrackItemHandler(st *state.State) *UntrackItemHandler {
	return &UntrackItemHandler{state: st}
}

// Handle executes the command. Only the item's author or an administrator
// may untrack it.
func (h *UntrackItemHandler) Handle(ctx context.Context, cmd UntrackItemCommand) (*UntrackItemResult, error) {
	var removed market.TrackedItem
	err := h.state.Mutate(ctx, func(tx *state.Tx) error {
		var err error
		removed, err = tx.Items.Untrack(cmd.Name, cmd.RequesterID, cmd.IsAdmin)
		switch {
		case shared.IsNotFound(err):
			return shared.WrapError("market", "Untrack", shared.ErrNotFound,
				fmt.Sprintf("Przedmiot *%s* nie jest aktualnie śledzony.", cmd.Name), err)
		case shared.IsForbidden(err):
			return shared.WrapError("market", "Untrack", shared.ErrForbidden,
				"Nie jesteś osobą, która zażyczyła śledzenia tego przedmiotu.", err)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	return &UntrackItemResult{
		Item:  removed,
		Reply: fmt.Sprintf("%s Zaprzestano śledzenie przedmiotu *%s*.", notification.EmojiCheck, removed.Name),
	}, nil
}
