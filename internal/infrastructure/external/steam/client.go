// Package steam reads item prices from the Steam Community Market.
package steam

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/class-bell/class-bell/internal/domain/market"
	"github.com/class-bell/class-bell/internal/domain/shared"
	"github.com/class-bell/class-bell/internal/infrastructure/external/web"
)

// DefaultBaseURL is the market price-overview endpoint.
const DefaultBaseURL = "https://steamcommunity.com/market/priceoverview/"

// FeedName labels requests in logs and metrics.
const FeedName = "market"

// Defaults select Counter-Strike items priced in złoty.
const (
	DefaultAppID    = 730
	DefaultCurrency = 6
)

// JSONFetcher downloads and decodes a JSON document.
type JSONFetcher interface {
	FetchJSON(ctx context.Context, url string, dst any, opts ...web.Option) error
}

type priceOverview struct {
	Success     bool   `json:"success"`
	LowestPrice string `json:"lowest_price"`
	MedianPrice string `json:"median_price"`
	Volume      string `json:"volume"`
}

// Client queries item prices.
type Client struct {
	fetcher  JSONFetcher
	baseURL  string
	appID    int
	currency int
}

// NewClient creates a Client. Zero values select the defaults.
func NewClient(fetcher JSONFetcher, baseURL string, appID, currency int) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if appID == 0 {
		appID = DefaultAppID
	}
	if currency == 0 {
		currency = DefaultCurrency
	}
	return &Client{fetcher: fetcher, baseURL: baseURL, appID: appID, currency: currency}
}

// Price returns the lowest listed price of item in minor units. Market
// requests respect the shared cooldown.
func (c *Client) Price(ctx context.Context, item string) (int, error) {
	q := url.Values{}
	q.Set("appid", strconv.Itoa(c.appID))
	q.Set("currency", strconv.Itoa(c.currency))
	q.Set("market_hash_name", item)

	var out priceOverview
	if err := c.fetcher.FetchJSON(ctx, c.baseURL+"?"+q.Encode(), &out, web.ForFeed(FeedName)); err != nil {
		return 0, err
	}
	if !out.Success || out.LowestPrice == "" {
		return 0, shared.NewDomainError("steam", "Price", shared.ErrNotFound,
			fmt.Sprintf("Nie znaleziono ceny przedmiotu *%s*. Sprawdź, czy nazwa jest poprawna.", item))
	}
	return market.ParsePrice(out.LowestPrice)
}
