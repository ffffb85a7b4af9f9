package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kjannette/gold-monitor-backend/internal/external"
	"github.com/kjannette/gold-monitor-backend/internal/market"
	"github.com/kjannette/gold-monitor-backend/internal/metrics"
	"github.com/kjannette/gold-monitor-backend/internal/models"
)

type emptySeries struct{}

func (emptySeries) Generate(int) models.Series                   { return models.Series{} }
func (emptySeries) HistoryOverlay(float64) []models.HistoryPoint { return nil }

type panickingLive struct{}

func (panickingLive) Event(string) models.LiveEvent { panic("generator exploded") }

type stubScheduler struct {
	fetched int
	running bool
	latest  *models.PriceObservation
}

func (s *stubScheduler) FetchNow(context.Context) models.PriceObservation {
	s.fetched++
	obs := models.PriceObservation{ID: "manual", Price: 2011, Source: models.SourceFallback}
	s.latest = &obs
	return obs
}

func (s *stubScheduler) Latest() (models.PriceObservation, bool) {
	if s.latest == nil {
		return models.PriceObservation{}, false
	}
	return *s.latest, true
}
func (s *stubScheduler) Running() bool           { return s.running }
func (s *stubScheduler) Interval() time.Duration { return 30 * time.Second }

type harness struct {
	handler http.Handler
	sched   *stubScheduler
}

func newHarness(t *testing.T, upstream string, series SeriesGenerator, live LiveGenerator) *harness {
	t.Helper()
	log, _ := test.NewNullLogger()

	var fetcher market.QuoteFetcher
	if upstream != "" {
		fetcher = external.NewMetalsClient(upstream, 200*time.Millisecond)
	}
	sampler := market.NewSampler(fetcher, market.WithSamplerLogger(log))
	if series == nil {
		series = market.NewGenerator()
	}
	if live == nil {
		live = market.NewLiveGenerator("test-node", nil, nil)
	}

	sched := &stubScheduler{running: true}
	srv := NewServer(Options{CORSAllowOrigin: "*", UpstreamURL: upstream},
		NewAssembler(sampler, series, live), sampler, sched, metrics.New(), log)
	return &harness{handler: srv.Handler(), sched: sched}
}

func (h *harness) do(t *testing.T, method, target string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rr := httptest.NewRecorder()
	h.handler.ServeHTTP(rr, httptest.NewRequest(method, target, nil))
	var body map[string]any
	if rr.Body.Len() > 0 && strings.HasPrefix(rr.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	}
	return rr, body
}

func TestOptionsAnyPath(t *testing.T) {
	h := newHarness(t, "", nil, nil)
	for _, p := range []string{"/gold-price", "/market-data", "/websocket", "/gold/refresh", "/nope"} {
		rr, _ := h.do(t, http.MethodOptions, p)
		assert.Equal(t, http.StatusOK, rr.Code, p)
		assert.Zero(t, rr.Body.Len(), p)
		assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
	}
}

func TestGoldPrice_UpstreamDownUsesFallback(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer upstream.Close()

	h := newHarness(t, upstream.URL, nil, nil)
	for _, method := range []string{http.MethodGet, http.MethodPost} {
		rr, body := h.do(t, method, "/gold-price")
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, true, body["success"])

		data := body["data"].(map[string]any)
		current := data["current"].(map[string]any)
		price := current["price"].(float64)
		assert.GreaterOrEqual(t, price, 2000.0)
		assert.Less(t, price, 2100.0)
		assert.Equal(t, models.SourceFallback, current["source"])
		assert.Len(t, data["historical"], 24)

		meta := data["metadata"].(map[string]any)
		assert.Equal(t, "USD", meta["currency"])
		assert.Equal(t, "oz", meta["unit"])
		assert.Equal(t, models.SourceFallback, meta["source"])
		assert.NotEmpty(t, meta["lastUpdated"])
	}
}

func TestGoldPrice_UpstreamQuote(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"gold": 2345.67}]`))
	}))
	defer upstream.Close()

	h := newHarness(t, upstream.URL, nil, nil)
	_, body := h.do(t, http.MethodGet, "/gold-price")
	current := body["data"].(map[string]any)["current"].(map[string]any)
	assert.Equal(t, 2345.67, current["price"])
	assert.Equal(t, models.SourceUpstream, current["source"])
}

func TestMarketData_Windows(t *testing.T) {
	h := newHarness(t, "", nil, nil)

	cases := []struct {
		query     string
		timeframe string
		points    int
	}{
		{"?timeframe=7d", "7d", 168},
		{"?timeframe=1h", "1h", 1},
		{"?timeframe=30d", "30d", 720},
		{"", "24h", 24},
		{"?timeframe=bogus", "bogus", 24},
	}
	for _, tc := range cases {
		rr, body := h.do(t, http.MethodGet, "/market-data"+tc.query)
		require.Equal(t, http.StatusOK, rr.Code, tc.query)

		data := body["data"].(map[string]any)
		assert.Equal(t, tc.timeframe, data["timeframe"])
		assert.Len(t, data["marketData"], tc.points)
		assert.Equal(t, float64(tc.points), data["metadata"].(map[string]any)["dataPoints"])

		stats := data["statistics"].(map[string]any)
		for _, key := range []string{"high24h", "low24h", "volume24h", "avgPrice", "priceChange", "priceChangePercent"} {
			assert.Contains(t, stats, key)
		}
		assert.LessOrEqual(t, stats["low24h"].(float64), stats["avgPrice"].(float64))
		assert.LessOrEqual(t, stats["avgPrice"].(float64), stats["high24h"].(float64))
	}
}

func TestMarketData_EmptySeriesIs500(t *testing.T) {
	h := newHarness(t, "", emptySeries{}, nil)

	rr, body := h.do(t, http.MethodGet, "/market-data?timeframe=24h")
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "MARKET_DATA_FAILED", body["code"])
	assert.Equal(t, "Failed to fetch market data", body["error"])
	assert.Contains(t, body["message"], market.ErrEmptySeries.Error())
}

func TestWebsocket_PanicIs500(t *testing.T) {
	h := newHarness(t, "", nil, panickingLive{})

	rr, body := h.do(t, http.MethodGet, "/websocket?type=price")
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Failed to generate realtime data", body["error"])
	assert.NotEmpty(t, body["message"])
}

func TestWebsocket_Kinds(t *testing.T) {
	h := newHarness(t, "", nil, nil)

	_, body := h.do(t, http.MethodGet, "/websocket?type=heartbeat")
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "heartbeat", body["type"])
	data := body["data"].(map[string]any)
	assert.Equal(t, "connected", data["status"])
	assert.Equal(t, "test-node", data["server"])
	meta := body["metadata"].(map[string]any)
	assert.Equal(t, "websocket-simulation", meta["endpoint"])
	assert.NotEmpty(t, meta["note"])

	for _, q := range []string{"", "?type=price", "?type=whatever"} {
		_, body := h.do(t, http.MethodPost, "/websocket"+q)
		assert.Equal(t, "price_update", body["type"], q)
		assert.NotContains(t, body, "eventType")
	}

	_, body = h.do(t, http.MethodGet, "/websocket?type=event")
	assert.Equal(t, "market_event", body["type"])
	assert.NotEmpty(t, body["eventType"])
}

func TestGoldRoutes(t *testing.T) {
	h := newHarness(t, "", nil, nil)

	rr, body := h.do(t, http.MethodGet, "/gold/current")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, true, body["success"])
	assert.IsType(t, float64(0), body["timestamp"])

	_, body = h.do(t, http.MethodGet, "/gold/status")
	assert.NotContains(t, body, "lastPrice")

	rr, body = h.do(t, http.MethodPost, "/gold/refresh")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 1, h.sched.fetched)
	assert.Equal(t, "manual", body["data"].(map[string]any)["id"])

	rr, _ = h.do(t, http.MethodGet, "/gold/refresh")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)

	_, body = h.do(t, http.MethodGet, "/gold/status")
	assert.Equal(t, "Gold Price Monitor", body["service"])
	assert.Equal(t, "30 seconds", body["updateInterval"])
	assert.Contains(t, body, "marketOpen")
	assert.Equal(t, 2011.0, body["lastPrice"].(map[string]any)["price"])

	_, body = h.do(t, http.MethodGet, "/gold/health")
	assert.Equal(t, "UP", body["status"])
}

func TestHealthAndMetrics(t *testing.T) {
	h := newHarness(t, "", nil, nil)

	_, body := h.do(t, http.MethodGet, "/health")
	assert.Equal(t, "ok", body["status"])
	services := body["services"].(map[string]any)
	assert.Equal(t, "demo", services["upstream"])
	assert.Equal(t, "running", services["scheduler"])

	h.do(t, http.MethodGet, "/gold-price")
	rr, _ := h.do(t, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `endpoint="GET /gold-price"`)
}
