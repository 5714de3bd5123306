// Package api exposes the HTTP and WebSocket surface: login, alert query
// and acknowledge, threshold config, the live alert stream, health and
// metrics.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"alertd/internal/auth"
	"alertd/internal/config"
	"alertd/internal/hub"
	"alertd/internal/logger"
	"alertd/internal/middleware"
	"alertd/internal/pipeline"
	"alertd/internal/store"
)

// Server carries the handler dependencies.
type Server struct {
	alerts  *pipeline.Alerts
	configs *pipeline.Configs
	hub     *hub.Hub
	tokens  *auth.Tokens
	cfg     config.AuthConfig
	log     zerolog.Logger
}

// New wires the API server.
func New(alerts *pipeline.Alerts, configs *pipeline.Configs, h *hub.Hub, tokens *auth.Tokens, cfg config.AuthConfig) *Server {
	return &Server{
		alerts:  alerts,
		configs: configs,
		hub:     h,
		tokens:  tokens,
		cfg:     cfg,
		log:     logger.WithComponent("api"),
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	open := func(h http.Handler) http.Handler {
		return middleware.Chain(h, middleware.Recovery, middleware.Logging)
	}
	protected := func(h http.Handler) http.Handler {
		return middleware.Chain(h, middleware.Recovery, middleware.Logging, middleware.Auth(s.tokens))
	}

	mux.Handle("POST /auth/login", open(http.HandlerFunc(s.handleLogin)))
	mux.Handle("GET /alerts", protected(http.HandlerFunc(s.handleQuery)))
	mux.Handle("POST /alerts/{id}/ack", protected(http.HandlerFunc(s.handleAcknowledge)))
	mux.Handle("GET /config", protected(http.HandlerFunc(s.handleConfigGet)))
	mux.Handle("PUT /config", protected(http.HandlerFunc(s.handleConfigUpdate)))
	mux.Handle("GET /ws/alerts", middleware.Chain(
		http.HandlerFunc(s.handleStream), middleware.Recovery, middleware.Auth(s.tokens)))
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	return mux
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password required")
		return
	}
	if req.Username != s.cfg.DemoUser || req.Password != s.cfg.DemoPassword {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	token, err := s.tokens.Issue(req.Username)
	if err != nil {
		s.log.Error().Err(err).Msg("token issue failed")
		writeError(w, http.StatusInternalServerError, "token issue failed")
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: token})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := parseTimeParam(q.Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid from timestamp")
		return
	}
	to, err := parseTimeParam(q.Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid to timestamp")
		return
	}

	alerts, err := s.alerts.Query(r.Context(), q.Get("status"), from, to)
	if err != nil {
		s.log.Error().Err(err).Msg("query failed")
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	writeJSON(w, http.StatusOK, alerts)
}

func (s *Server) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	alert, err := s.alerts.Acknowledge(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "alert not found")
		return
	}
	if err != nil {
		s.log.Error().Err(err).Str("alert_id", id).Msg("acknowledge failed")
		writeError(w, http.StatusInternalServerError, "acknowledge failed")
		return
	}
	writeJSON(w, http.StatusOK, alert)
}

func (s *Server) handleConfigGet(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.configs.Get(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("config read failed")
		writeError(w, http.StatusInternalServerError, "config read failed")
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

type configUpdateRequest struct {
	TempMax     float64 `json:"tempMax"`
	HumidityMax float64 `json:"humidityMax"`
}

func (s *Server) handleConfigUpdate(w http.ResponseWriter, r *http.Request) {
	var req configUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updated, err := s.configs.Update(r.Context(), req.TempMax, req.HumidityMax)
	var verr *pipeline.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"message": verr.Error(),
			"field":   verr.Field,
			"min":     verr.Min,
			"max":     verr.Max,
		})
		return
	}
	if err != nil {
		s.log.Error().Err(err).Msg("config update failed")
		writeError(w, http.StatusInternalServerError, "config update failed")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","subscribers":%d,"timestamp":%q}`,
		s.hub.Len(), time.Now().UTC().Format(time.RFC3339))
}

func parseTimeParam(v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, err
	}
	t = t.UTC()
	return &t, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}
