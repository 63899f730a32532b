// Package market holds marketplace items tracked for price alerts.
package market

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/class-bell/class-bell/internal/domain/shared"
)

// TrackedItem is a marketplace item watched against a price band.
// Prices are in minor units (grosze).
type TrackedItem struct {
	Name     string `json:"name"`
	MinPrice int    `json:"min_price"`
	MaxPrice int    `json:"max_price"`
	AuthorID string `json:"author_id"`
}

// NewTrackedItem validates and builds an item.
func NewTrackedItem(name string, minPrice, maxPrice int, authorID string) (TrackedItem, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return TrackedItem{}, shared.NewDomainError("market", "Validate", shared.ErrEmptyValue, "item name cannot be empty")
	}
	if minPrice < 0 || minPrice >= maxPrice {
		return TrackedItem{}, shared.ErrInvalidPriceBand
	}
	return TrackedItem{Name: name, MinPrice: minPrice, MaxPrice: maxPrice, AuthorID: authorID}, nil
}

// InBand reports whether price lies strictly between the bounds.
func (i TrackedItem) InBand(price int) bool {
	return i.MinPrice < price && price < i.MaxPrice
}

// ParsePrice strips everything but digits from a formatted price such as
// "12,34zł" and returns minor units.
func ParsePrice(s string) (int, error) {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return 0, shared.NewDomainError("market", "ParsePrice", shared.ErrInvalidFormat, fmt.Sprintf("no digits in price %q", s))
	}
	var price int
	if _, err := fmt.Sscan(b.String(), &price); err != nil {
		return 0, shared.WrapError("market", "ParsePrice", shared.ErrInvalidFormat, "price overflow", err)
	}
	return price, nil
}

// ParseAmount reads a user-typed amount in złoty, "3", "1.5" or "1,25", into
// minor units.
func ParseAmount(s string) (int, error) {
	whole, frac, _ := strings.Cut(strings.ReplaceAll(strings.TrimSpace(s), ",", "."), ".")
	if whole == "" || len(frac) > 2 || !isDigits(whole) || !isDigits(frac) {
		return 0, shared.NewDomainError("market", "ParseAmount", shared.ErrInvalidFormat, fmt.Sprintf("invalid amount %q", s))
	}
	frac += strings.Repeat("0", 2-len(frac))

	var zloty, grosze int
	if _, err := fmt.Sscan(whole, &zloty); err != nil {
		return 0, shared.WrapError("market", "ParseAmount", shared.ErrInvalidFormat, "amount overflow", err)
	}
	if _, err := fmt.Sscan(frac, &grosze); err != nil {
		return 0, shared.WrapError("market", "ParseAmount", shared.ErrInvalidFormat, "invalid amount", err)
	}
	return zloty*100 + grosze, nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// FormatPrice renders minor units as "12,34 zł".
func FormatPrice(minor int) string {
	return fmt.Sprintf("%d,%02d zł", minor/100, minor%100)
}

// ══════════════════════════════════════════════════════════════════════════════
// COLLECTION
// ══════════════════════════════════════════════════════════════════════════════

// Items is the set of tracked items. Lookup is by case-insensitive name.
// Not safe for concurrent use.
type Items struct {
	items []TrackedItem
}

// NewItems creates a collection from persisted items, dropping exact
// duplicates.
func NewItems(items []TrackedItem) *Items {
	c := &Items{}
	for _, it := range items {
		if !c.containsExact(it) {
			c.items = append(c.items, it)
		}
	}
	return c
}

// All returns a copy of the items in tracking order.
func (c *Items) All() []TrackedItem {
	return append([]TrackedItem(nil), c.items...)
}

// Len returns the number of items.
func (c *Items) Len() int {
	return len(c.items)
}

// Find looks an item up by name, ignoring case.
func (c *Items) Find(name string) (TrackedItem, bool) {
	if i := c.index(name); i >= 0 {
		return c.items[i], true
	}
	return TrackedItem{}, false
}

// Track adds item. A second item with the same name is rejected.
func (c *Items) Track(item TrackedItem) error {
	if c.index(item.Name) >= 0 {
		return shared.ErrItemAlreadyExists
	}
	c.items = append(c.items, item)
	return nil
}

// Untrack removes the named item. Only its author or an administrator may.
func (c *Items) Untrack(name, requesterID string, isAdmin bool) (TrackedItem, error) {
	i := c.index(name)
	if i < 0 {
		return TrackedItem{}, shared.ErrItemNotFound
	}
	item := c.items[i]
	if !isAdmin && item.AuthorID != requesterID {
		return TrackedItem{}, shared.ErrUntrackForbidden
	}
	c.items = append(c.items[:i], c.items[i+1:]...)
	return item, nil
}

// Remove drops an item after an alert. It matches by full equality so an item
// re-tracked with another band while a poll was running survives.
func (c *Items) Remove(item TrackedItem) bool {
	for i, it := range c.items {
		if it == item {
			c.items = append(c.items[:i], c.items[i+1:]...)
			return true
		}
	}
	return false
}

func (c *Items) index(name string) int {
	for i, it := range c.items {
		if strings.EqualFold(it.Name, name) {
			return i
		}
	}
	return -1
}

func (c *Items) containsExact(item TrackedItem) bool {
	for _, it := range c.items {
		if it == item {
			return true
		}
	}
	return false
}
