package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kjannette/gold-monitor-backend/internal/httputil"
)

// paxgID is CoinGecko's id for PAX Gold, a token backed one-to-one by a
// troy ounce of London Good Delivery gold.
const paxgID = "pax-gold"

type CoinGeckoClient struct {
	url        string
	httpClient *http.Client
	retry      httputil.RetryConfig
}

// NewCoinGeckoClient quotes gold through the PAXG spot price. Like the
// metals client it makes a single attempt per fetch.
func NewCoinGeckoClient(url string, timeout time.Duration) *CoinGeckoClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &CoinGeckoClient{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		retry:      httputil.SingleAttempt,
	}
}

func (c *CoinGeckoClient) Name() string { return "coingecko-paxg" }

func (c *CoinGeckoClient) URL() string { return c.url }

func (c *CoinGeckoClient) FetchQuote(ctx context.Context) (*Quote, error) {
	resp, err := httputil.Do(ctx, c.httpClient, c.retry, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("coingecko fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("coingecko returned status %d", resp.StatusCode)
	}

	var data map[string]struct {
		USD       float64  `json:"usd"`
		Change24h *float64 `json:"usd_24h_change"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxQuoteBody)).Decode(&data); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	coin, ok := data[paxgID]
	if !ok {
		return nil, ErrEmptyResult
	}
	if coin.USD <= 0 {
		return nil, fmt.Errorf("%w: invalid price %f", ErrNoPrice, coin.USD)
	}

	q := &Quote{Price: coin.USD, Currency: "USD", Rule: paxgID + ".usd"}
	if pct := coin.Change24h; pct != nil && *pct > -100 {
		q.ChangePercent = *pct
		q.Change = coin.USD - coin.USD/(1+*pct/100)
	}
	return q, nil
}
