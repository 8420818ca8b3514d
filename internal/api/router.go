// Package api - Router setup
package api

import (
	"net/http"

	"github.com/alexbotov/cascade/internal/metrics"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRouter creates and configures the HTTP router
func (h *Handler) SetupRouter() *mux.Router {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(NotFoundHandler)

	// Apply global middleware
	r.Use(RecoveryMiddleware(h.log))
	r.Use(metrics.Middleware)
	r.Use(CORSMiddleware)
	r.Use(LoggingMiddleware(h.log))

	// Public routes
	r.HandleFunc("/", h.ServerInfo).Methods("GET")
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// API v1 routes
	api := r.PathPrefix("/api/v1").Subrouter()

	// Auth routes (public)
	auth := api.PathPrefix("/auth").Subrouter()
	auth.HandleFunc("/register", h.Register).Methods("POST")
	auth.HandleFunc("/login", h.Login).Methods("POST")

	// Operator routes (GLI-19 §2.4), only with a configured key
	if h.operator != nil && h.opKey != "" {
		op := api.PathPrefix("/operator").Subrouter()
		op.Use(h.OperatorMiddleware)
		op.HandleFunc("/status", h.SystemStatus).Methods("GET")
		op.HandleFunc("/gaming", h.SetGaming).Methods("PUT")
		op.HandleFunc("/games/{id}", h.SetGameEnabled).Methods("PUT")
		op.HandleFunc("/players/{id}", h.SetPlayerStatus).Methods("PUT")
	}

	// Protected routes
	protected := api.PathPrefix("").Subrouter()
	protected.Use(h.AuthMiddleware)

	// Auth (protected)
	protected.HandleFunc("/auth/logout", h.Logout).Methods("POST")
	protected.HandleFunc("/auth/session", h.GetSession).Methods("GET")

	// Wallet
	protected.HandleFunc("/wallet/balance", h.GetBalance).Methods("GET")
	protected.HandleFunc("/wallet/deposit", h.Deposit).Methods("POST")
	protected.HandleFunc("/wallet/transactions", h.GetTransactions).Methods("GET")

	// Responsible gaming (GLI-19 §2.5.5)
	protected.HandleFunc("/limits", h.GetLimits).Methods("GET")
	protected.HandleFunc("/limits", h.SetLimit).Methods("PUT")
	protected.HandleFunc("/limits/self-exclude", h.SelfExclude).Methods("POST")

	// Games
	protected.HandleFunc("/games", h.GetGames).Methods("GET")
	protected.HandleFunc("/games/{id}", h.GetGame).Methods("GET")
	protected.HandleFunc("/games/{id}/spin", h.Spin).Methods("POST")
	protected.HandleFunc("/games/{id}/buy", h.Buy).Methods("POST")

	// Rounds (GLI-19 §4.14)
	protected.HandleFunc("/rounds", h.ListRounds).Methods("GET")
	protected.HandleFunc("/rounds/{id}", h.GetRound).Methods("GET")
	protected.HandleFunc("/rounds/{id}/verify", h.VerifyRound).Methods("GET")

	// WebSocket stream of the player's rounds
	protected.HandleFunc("/ws", h.HandleWebSocket).Methods("GET")

	return r
}

// NotFoundHandler handles 404 errors
func NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	respondError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
}
