package substitutions

import (
	"context"

	"github.com/class-bell/class-bell/internal/domain/feed"
	"github.com/class-bell/class-bell/internal/infrastructure/external/web"
)

// DefaultURL is the substitutions post of the school website.
const DefaultURL = "http://www.lo1.gliwice.pl/zastepstwa-2/"

// FeedName labels requests in logs and metrics.
const FeedName = "substitutions"

// TextFetcher downloads a page as text.
type TextFetcher interface {
	FetchText(ctx context.Context, url string, opts ...web.Option) (string, error)
}

// Client downloads and parses the substitutions page.
type Client struct {
	fetcher TextFetcher
	url     string
}

// NewClient creates a Client. An empty url selects DefaultURL.
func NewClient(fetcher TextFetcher, url string) *Client {
	if url == "" {
		url = DefaultURL
	}
	return &Client{fetcher: fetcher, url: url}
}

// Fetch downloads the page. Only transport and status problems are errors;
// layout problems are reported in the returned document's Error field.
func (c *Client) Fetch(ctx context.Context, bypassCooldown bool) (feed.Substitutions, error) {
	opts := []web.Option{web.ForFeed(FeedName)}
	if bypassCooldown {
		opts = append(opts, web.BypassCooldown())
	}

	html, err := c.fetcher.FetchText(ctx, c.url, opts...)
	if err != nil {
		return feed.Substitutions{}, err
	}
	return Parse(html), nil
}
