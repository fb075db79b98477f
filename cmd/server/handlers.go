package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"medbook/internal/booking"
	"medbook/internal/catalog"
	"medbook/internal/observability"
	"medbook/internal/pricing"
	"medbook/internal/realtime"
)

const maxRequestBody = 64 << 10

type serverDeps struct {
	bookings *booking.Service
	pricing  *pricing.Engine
	hub      *realtime.Hub
	metrics  *observability.Metrics
	limiter  rateLimiter
	logger   *slog.Logger
}

func newMux(deps serverDeps) *http.ServeMux {
	mux := http.NewServeMux()

	mux.Handle("POST /bookings", rateLimitMiddleware(deps.limiter, http.HandlerFunc(deps.handleInitiate)))
	mux.HandleFunc("GET /bookings/{id}", deps.handleStatus)
	mux.HandleFunc("GET /bookings/{id}/events", deps.handleEvents)
	mux.HandleFunc("GET /services", deps.handleServices)
	mux.HandleFunc("GET /quota", deps.handleQuota)
	mux.Handle("GET /metrics", observability.Handler(deps.metrics))
	mux.HandleFunc("GET /healthz", handleHealth)
	if deps.hub != nil {
		mux.HandleFunc("GET /ws", deps.handleWebsocket)
	}

	return mux
}

// handleInitiate starts a saga and returns the pending state immediately;
// the caller polls GET /bookings/{id} for the terminal outcome.
func (d serverDeps) handleInitiate(w http.ResponseWriter, r *http.Request) {
	var req booking.Request
	body := io.LimitReader(r.Body, maxRequestBody)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	state := d.bookings.Initiate(r.Context(), req)
	writeJSON(w, http.StatusAccepted, state)
}

func (d serverDeps) handleStatus(w http.ResponseWriter, r *http.Request) {
	state, ok := d.bookings.Status(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "booking not found")
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (d serverDeps) handleEvents(w http.ResponseWriter, r *http.Request) {
	requestID := r.PathValue("id")
	if _, ok := d.bookings.Status(requestID); !ok {
		writeError(w, http.StatusNotFound, "booking not found")
		return
	}
	writeJSON(w, http.StatusOK, d.bookings.History(requestID))
}

func (d serverDeps) handleServices(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("gender")
	if raw == "" {
		writeJSON(w, http.StatusOK, catalog.All())
		return
	}
	gender := catalog.Gender(raw)
	if !gender.Valid() {
		writeError(w, http.StatusBadRequest, "unknown gender")
		return
	}
	writeJSON(w, http.StatusOK, catalog.ServicesFor(gender))
}

func (d serverDeps) handleQuota(w http.ResponseWriter, r *http.Request) {
	status, err := d.pricing.QuotaStatus(r.Context())
	if err != nil {
		d.logger.Error("quota status failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "quota backend unavailable")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWebsocket attaches the client to the realtime hub. The read loop
// exists only to notice the peer going away.
func (d serverDeps) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		d.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	d.hub.Register <- conn

	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				d.hub.Unregister <- conn
				return
			}
		}
	}()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
