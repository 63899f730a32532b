package steam

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/class-bell/class-bell/internal/domain/shared"
	"github.com/class-bell/class-bell/internal/infrastructure/external/web"
)

func TestClient_Price(t *testing.T) {
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		if r.URL.Query().Get("market_hash_name") == "Missing" {
			_, _ = w.Write([]byte(`{"success":false}`))
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"lowest_price":"1 234,56zł","volume":"12"}`))
	}))
	defer srv.Close()

	c := NewClient(web.NewFetcher(web.DefaultConfig(), nil, nil, nil, nil), srv.URL, 0, 0)

	price, err := c.Price(context.Background(), "Operation Breakout Weapon Case")
	require.NoError(t, err)
	assert.Equal(t, 123456, price)
	assert.Contains(t, query, "appid=730")
	assert.Contains(t, query, "currency=6")
	assert.Contains(t, query, "market_hash_name=Operation+Breakout+Weapon+Case")

	c = NewClient(web.NewFetcher(web.DefaultConfig(), nil, nil, nil, nil), srv.URL, 0, 0)
	_, err = c.Price(context.Background(), "Missing")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
