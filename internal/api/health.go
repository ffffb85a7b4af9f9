package api

import (
	"net/http"
	"time"
)

type healthResponse struct {
	Status    string         `json:"status"`
	Timestamp string         `json:"timestamp"`
	Services  healthServices `json:"services"`
}

type healthServices struct {
	Upstream  string `json:"upstream"`
	Scheduler string `json:"scheduler"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	upstream := "configured"
	if s.upstream == "" {
		upstream = "demo"
	}
	scheduler := "disabled"
	if s.scheduler != nil {
		scheduler = "stopped"
		if s.scheduler.Running() {
			scheduler = "running"
		}
	}

	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Timestamp: s.now().UTC().Format(time.RFC3339),
		Services:  healthServices{Upstream: upstream, Scheduler: scheduler},
	})
}

func (s *Server) handleGoldHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "UP",
		"service": serviceName,
	})
}
