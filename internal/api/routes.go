package api

import (
	"fmt"
	"net/http"

	"github.com/kjannette/gold-monitor-backend/internal/market"
	"github.com/kjannette/gold-monitor-backend/internal/models"
)

// safely runs one assembly pipeline, turning a panic into an error so the
// caller can answer with the endpoint's own envelope.
func safely[T any](fn func() (T, error)) (out T, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic during assembly: %v", rec)
		}
	}()
	return fn()
}

func (s *Server) handleGoldPrice(w http.ResponseWriter, r *http.Request) {
	data, err := safely(func() (*GoldPriceData, error) {
		return s.assembler.CurrentPrice(r.Context())
	})
	if err != nil {
		s.log.WithError(err).Error("gold price assembly failed")
		writeError(w, http.StatusInternalServerError, "GOLD_PRICE_FAILED", "Failed to fetch gold price data", err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: data})
}

func (s *Server) handleMarketData(w http.ResponseWriter, r *http.Request) {
	label := r.URL.Query().Get("timeframe")
	data, err := safely(func() (*MarketData, error) {
		return s.assembler.MarketData(label)
	})
	if err != nil {
		s.log.WithError(err).WithField("timeframe", label).Error("market data assembly failed")
		writeError(w, http.StatusInternalServerError, "MARKET_DATA_FAILED", "Failed to fetch market data", err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: data})
}

func (s *Server) handleLiveEvent(w http.ResponseWriter, r *http.Request) {
	kind := r.URL.Query().Get("type")
	if kind == "" {
		kind = market.KindPrice
	}
	frame, err := safely(func() (*LiveFrame, error) {
		return s.assembler.LiveEvent(kind)
	})
	if err != nil {
		s.log.WithError(err).WithField("type", kind).Error("live event generation failed")
		writeError(w, http.StatusInternalServerError, "REALTIME_FAILED", "Failed to generate realtime data", err)
		return
	}
	writeJSON(w, http.StatusOK, frame)
}

func (s *Server) handleCurrent(w http.ResponseWriter, r *http.Request) {
	obs := s.sampler.Sample(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"data":      obs,
		"timestamp": s.now().UnixMilli(),
	})
}

// handleRefresh samples through the scheduler so subscribers see the
// observation; without a scheduler it falls back to a plain sample.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var (
		data any
		err  error
	)
	if s.scheduler != nil {
		data, err = safely(func() (any, error) { return s.scheduler.FetchNow(r.Context()), nil })
	} else {
		data = s.sampler.Sample(r.Context())
	}
	if err != nil {
		s.log.WithError(err).Error("manual refresh failed")
		writeError(w, http.StatusInternalServerError, "REFRESH_FAILED", "Failed to refresh gold price", err)
		return
	}
	s.log.Info("Manual price refresh completed")
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"message":   "Price refreshed",
		"data":      data,
		"timestamp": s.now().UnixMilli(),
	})
}

type statusResponse struct {
	Service        string `json:"service"`
	Version        string `json:"version"`
	Status         string `json:"status"`
	MarketOpen     bool   `json:"marketOpen"`
	UpdateInterval string `json:"updateInterval"`
	// Last scheduled or manual observation; absent before the first one.
	LastPrice *models.PriceObservation `json:"lastPrice,omitempty"`
	Timestamp int64                    `json:"timestamp"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	resp := statusResponse{
		Service:        serviceName,
		Version:        serviceVersion,
		Status:         "running",
		MarketOpen:     market.IsMarketOpen(now),
		UpdateInterval: "disabled",
		Timestamp:      now.UnixMilli(),
	}
	if s.scheduler != nil {
		resp.UpdateInterval = fmt.Sprintf("%d seconds", int(s.scheduler.Interval().Seconds()))
		if obs, ok := s.scheduler.Latest(); ok {
			resp.LastPrice = &obs
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
