package query

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/class-bell/class-bell/internal/application/feeds"
	"github.com/class-bell/class-bell/internal/domain/feed"
	"github.com/class-bell/class-bell/internal/domain/notification/notificationtest"
)

type feedStub struct {
	lucky feed.LuckyNumbers
	subs  feed.Substitutions
	err   error
}

func (f feedStub) LuckyNumbers(context.Context) (feed.LuckyNumbers, error) {
	return f.lucky, f.err
}

func (f feedStub) Substitutions(context.Context) (feed.Substitutions, error) {
	return f.subs, f.err
}

func TestLuckyNumbers(t *testing.T) {
	stub := feedStub{lucky: feed.LuckyNumbers{Date: "30/12/2024", Numbers: []int{2, 31}, ExcludedClasses: []string{"IA"}}}
	h := NewLuckyNumbersHandler(stub, notificationtest.New(), ParseRoster("11, 22, 33"))

	reply, err := h.Handle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "*Szczęśliwe numerki* na 30.12.2024:\n\n**2**: @22\n**31**: _Nie ma numerku 31 w naszej klasie._\n\nWykluczone klasy: IA", reply)
}

func TestLuckyNumbers_StaleAndFailed(t *testing.T) {
	stale := feedStub{
		lucky: feed.LuckyNumbers{Date: "30/12/2024", Numbers: []int{1}},
		err:   &feeds.StaleError{FetchedAt: time.Now(), Err: errors.New("down")},
	}
	reply, err := NewLuckyNumbersHandler(stale, notificationtest.New(), nil).Handle(context.Background())
	require.NoError(t, err)
	assert.Contains(t, reply, "Wykluczone klasy: -")
	assert.Contains(t, reply, staleNote)

	_, err = NewLuckyNumbersHandler(feedStub{err: errors.New("down")}, notificationtest.New(), nil).Handle(context.Background())
	assert.Error(t, err)
}

func TestSubstitutions(t *testing.T) {
	stub := feedStub{subs: feed.Substitutions{
		Date: "2024-12-30",
		Lessons: map[int]map[string][]feed.Substitution{
			3: {"IIDp": {{Details: "fizyka odwołana"}}},
		},
	}}
	reply, err := NewSubstitutionsHandler(stub, "IID").Handle(context.Background())
	require.NoError(t, err)
	assert.Contains(t, reply, "3. lekcja: fizyka odwołana")
}

type priceStub int

func (p priceStub) Price(context.Context, string) (int, error) { return int(p), nil }

func TestMarketPrice(t *testing.T) {
	reply, err := NewMarketPriceHandler(priceStub(1234)).Handle(context.Background(), "Glove Case")
	require.NoError(t, err)
	assert.Equal(t, "ℹ️ Aktualna cena dla *Glove Case* to `12,34 zł`.", reply)
}

func TestParseRoster(t *testing.T) {
	assert.Nil(t, ParseRoster(" "))
	assert.Equal(t, []string{"1", "", "3"}, ParseRoster("1,,3"))
}
