package processor

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"soundwatch/internal/handlers"
	"soundwatch/internal/middleware"
)

// router wires the HTTP API
func (p *Processor) router() http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.Recovery, middleware.Logging)

	r.HandleFunc("/health", p.healthHandler).Methods(http.MethodGet)
	r.HandleFunc("/stats", p.statsHandler).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	handlers.NewSessionHandler(p).Register(r)
	handlers.NewSamplesHandler(handlers.SamplesConfig{
		Sink:        p,
		MaxBodySize: p.cfg.Server.MaxBodySize,
	}).Register(r)

	return r
}

// healthHandler handles health check requests
func (p *Processor) healthHandler(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"session":   nil,
	}
	if st, err := p.CurrentSession(); err == nil {
		body["session"] = st.State
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(body)
}

// statsHandler returns current statistics
func (p *Processor) statsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(p.Stats())
}
