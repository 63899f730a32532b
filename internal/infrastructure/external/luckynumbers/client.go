// Package luckynumbers reads the student council's lucky-numbers feed.
package luckynumbers

import (
	"context"
	"fmt"

	"github.com/class-bell/class-bell/internal/domain/feed"
	"github.com/class-bell/class-bell/internal/domain/shared"
	"github.com/class-bell/class-bell/internal/infrastructure/external/web"
	"github.com/class-bell/class-bell/pkg/timeutil"
)

// DefaultURL is the public lucky-numbers endpoint.
const DefaultURL = "https://europe-west1-lucky-numbers-suilo.cloudfunctions.net/app/api/luckyNumbers"

// FeedName labels requests in logs and metrics.
const FeedName = "lucky_numbers"

// JSONFetcher downloads and decodes a JSON document.
type JSONFetcher interface {
	FetchJSON(ctx context.Context, url string, dst any, opts ...web.Option) error
}

// Client fetches the current draw.
type Client struct {
	fetcher JSONFetcher
	url     string
}

// NewClient creates a Client. An empty url selects DefaultURL.
func NewClient(fetcher JSONFetcher, url string) *Client {
	if url == "" {
		url = DefaultURL
	}
	return &Client{fetcher: fetcher, url: url}
}

// Fetch downloads the current draw. The feed is allowed to answer with an
// empty date between draws; any other date must be dd/mm/YYYY.
func (c *Client) Fetch(ctx context.Context, bypassCooldown bool) (feed.LuckyNumbers, error) {
	opts := []web.Option{web.ForFeed(FeedName)}
	if bypassCooldown {
		opts = append(opts, web.BypassCooldown())
	}

	var out feed.LuckyNumbers
	if err := c.fetcher.FetchJSON(ctx, c.url, &out, opts...); err != nil {
		return feed.LuckyNumbers{}, err
	}
	if out.Date != "" {
		if _, err := out.ParsedDate(timeutil.WarsawTZ); err != nil {
			return feed.LuckyNumbers{}, shared.WrapError("luckynumbers", "Fetch", shared.ErrInvalidFormat,
				fmt.Sprintf("unexpected date %q", out.Date), err)
		}
	}
	return out, nil
}
