package external

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kjannette/gold-monitor-backend/internal/httputil"
)

const maxQuoteBody = 1 << 20

var (
	ErrNoPrice     = errors.New("no numeric price field in upstream response")
	ErrEmptyResult = errors.New("upstream returned an empty result")
)

// Quote is the subset of an upstream response the sampler needs.
type Quote struct {
	Price         float64
	Change        float64
	ChangePercent float64
	Currency      string
	Rule          string // extraction rule that matched
}

// quotePayload keeps each top-level field undecoded so one rule's
// unexpected shape does not hide a later rule's match.
type quotePayload map[string]json.RawMessage

type quoteItem struct {
	XauPrice *float64 `json:"xauPrice"`
	ChgXau   *float64 `json:"chgXau"`
	PcXau    *float64 `json:"pcXau"`
	Curr     string   `json:"curr"`
}

type extractionRule struct {
	name    string
	extract func(p quotePayload) (Quote, bool)
}

// extractionRules are evaluated in order; the first positive numeric
// match wins. A field that fails to decode is skipped.
var extractionRules = []extractionRule{
	{"price", func(p quotePayload) (Quote, bool) { return scalarQuote(p["price"]) }},
	{"gold", func(p quotePayload) (Quote, bool) { return scalarQuote(p["gold"]) }},
	{"value", func(p quotePayload) (Quote, bool) { return scalarQuote(p["value"]) }},
	{"items.xauPrice", func(p quotePayload) (Quote, bool) {
		raw, ok := p["items"]
		if !ok {
			return Quote{}, false
		}
		var items []quoteItem
		if err := json.Unmarshal(raw, &items); err != nil || len(items) == 0 {
			return Quote{}, false
		}
		it := items[0]
		if it.XauPrice == nil || *it.XauPrice <= 0 {
			return Quote{}, false
		}
		q := Quote{Price: *it.XauPrice, Currency: "USD"}
		if it.ChgXau != nil {
			q.Change = *it.ChgXau
		}
		if it.PcXau != nil {
			q.ChangePercent = *it.PcXau
		}
		if it.Curr != "" {
			q.Currency = it.Curr
		}
		return q, true
	}},
}

func scalarQuote(raw json.RawMessage) (Quote, bool) {
	if raw == nil {
		return Quote{}, false
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil || v <= 0 {
		return Quote{}, false
	}
	return Quote{Price: v, Currency: "USD"}, true
}

// ExtractQuote decodes an upstream body, either an object or an array
// whose first element is the object, and applies the extraction rules.
func ExtractQuote(body []byte) (*Quote, error) {
	body = bytes.TrimSpace(body)

	var p quotePayload
	if len(body) > 0 && body[0] == '[' {
		var list []quotePayload
		if err := json.Unmarshal(body, &list); err != nil {
			return nil, fmt.Errorf("decode: %w", err)
		}
		if len(list) == 0 {
			return nil, ErrEmptyResult
		}
		p = list[0]
	} else if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	for _, rule := range extractionRules {
		if q, ok := rule.extract(p); ok {
			q.Rule = rule.name
			return &q, nil
		}
	}
	return nil, ErrNoPrice
}

type MetalsClient struct {
	url        string
	httpClient *http.Client
	retry      httputil.RetryConfig
}

// NewMetalsClient returns a client that makes exactly one bounded attempt
// per fetch; the caller owns the fallback.
func NewMetalsClient(url string, timeout time.Duration) *MetalsClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &MetalsClient{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		retry:      httputil.SingleAttempt,
	}
}

func (c *MetalsClient) Name() string { return "metals-api" }

func (c *MetalsClient) URL() string { return c.url }

func (c *MetalsClient) FetchQuote(ctx context.Context) (*Quote, error) {
	resp, err := httputil.Do(ctx, c.httpClient, c.retry, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("metals fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("metals returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxQuoteBody))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return ExtractQuote(body)
}
