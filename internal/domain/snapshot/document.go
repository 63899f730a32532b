// Package snapshot defines the whole-document state the engine persists and
// the port used to load and save it.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/class-bell/class-bell/internal/domain/feed"
	"github.com/class-bell/class-bell/internal/domain/homework"
	"github.com/class-bell/class-bell/internal/domain/market"
	"github.com/class-bell/class-bell/internal/domain/shared"
)

// Document is everything that survives a restart. It is always written
// whole; there are no partial updates.
type Document struct {
	HomeworkEvents map[string]homework.Record `json:"homework_events"`
	TrackedItems   []market.TrackedItem       `json:"tracked_items"`
	LuckyNumbers   feed.LuckyNumbers          `json:"lucky_numbers"`
	NextEventID    int                        `json:"next_event_id"`
}

// Empty returns the document of a fresh installation.
func Empty() Document {
	return Document{
		HomeworkEvents: map[string]homework.Record{},
		TrackedItems:   []market.TrackedItem{},
	}
}

// Store loads and saves the document. Load returns Empty when nothing was
// saved yet. Both calls must be safe to repeat.
type Store interface {
	Load(ctx context.Context) (Document, error)
	Save(ctx context.Context, doc Document) error
}

// Marshal encodes the document.
func (d Document) Marshal() ([]byte, error) {
	return json.Marshal(d.normalized())
}

// Unmarshal decodes a document, filling in missing collections.
func Unmarshal(data []byte) (Document, error) {
	var d Document
	if err := json.Unmarshal(data, &d); err != nil {
		return Document{}, shared.WrapError("snapshot", "Unmarshal", shared.ErrInvalidFormat, "invalid state document", err)
	}
	return d.normalized(), nil
}

// Events decodes the homework records in id order. Records that cannot be
// decoded are skipped and reported.
func (d Document) Events(loc *time.Location) ([]homework.Event, []error) {
	var (
		events []homework.Event
		errs   []error
	)
	for label, rec := range d.HomeworkEvents {
		id, err := homework.ParseIDLabel(label)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", label, err))
			continue
		}
		e, err := homework.FromRecord(id, rec, loc)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", label, err))
			continue
		}
		events = append(events, e)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].ID < events[j].ID })
	return events, errs
}

func (d Document) normalized() Document {
	if d.HomeworkEvents == nil {
		d.HomeworkEvents = map[string]homework.Record{}
	}
	if d.TrackedItems == nil {
		d.TrackedItems = []market.TrackedItem{}
	}
	return d
}
