package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kjannette/gold-monitor-backend/internal/httputil"
	"github.com/kjannette/gold-monitor-backend/internal/models"
)

// APIClient reads the service's /gold routes, used to seed a Store before
// the feed delivers its first frame.
type APIClient struct {
	baseURL    string
	httpClient *http.Client
	retry      httputil.RetryConfig
}

func NewAPIClient(baseURL string) *APIClient {
	return &APIClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		retry:      httputil.DefaultRetry,
	}
}

type goldEnvelope struct {
	Success bool                    `json:"success"`
	Message string                  `json:"message"`
	Data    models.PriceObservation `json:"data"`
}

// Current fetches GET /gold/current.
func (c *APIClient) Current(ctx context.Context) (models.PriceObservation, error) {
	return c.call(ctx, http.MethodGet, "/gold/current")
}

// Refresh asks the scheduler for an immediate sample via POST /gold/refresh.
func (c *APIClient) Refresh(ctx context.Context) (models.PriceObservation, error) {
	return c.call(ctx, http.MethodPost, "/gold/refresh")
}

func (c *APIClient) call(ctx context.Context, method, path string) (models.PriceObservation, error) {
	resp, err := httputil.Do(ctx, c.httpClient, c.retry, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	})
	if err != nil {
		return models.PriceObservation{}, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return models.PriceObservation{}, fmt.Errorf("%s %s: HTTP %d: %s", method, path, resp.StatusCode, body)
	}

	var env goldEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return models.PriceObservation{}, fmt.Errorf("decode %s: %w", path, err)
	}
	if !env.Success {
		return models.PriceObservation{}, fmt.Errorf("%s %s: %s", method, path, env.Message)
	}
	return env.Data, nil
}

// Seed fetches the current price into store, recording any failure as
// the store error.
func Seed(ctx context.Context, c *APIClient, store *Store) error {
	return seed(ctx, store, c.Current)
}

// SeedFresh is Seed through POST /gold/refresh, so the service samples
// before answering.
func SeedFresh(ctx context.Context, c *APIClient, store *Store) error {
	return seed(ctx, store, c.Refresh)
}

func seed(ctx context.Context, store *Store, fetch func(context.Context) (models.PriceObservation, error)) error {
	obs, err := fetch(ctx)
	if err != nil {
		store.SetError(err)
		return err
	}
	store.Update(obs)
	return nil
}
