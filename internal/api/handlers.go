// Package api provides HTTP API handlers for the RGS
// Exposes the player-facing REST and WebSocket API
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/alexbotov/cascade/internal/auth"
	"github.com/alexbotov/cascade/internal/control"
	"github.com/alexbotov/cascade/internal/domain"
	"github.com/alexbotov/cascade/internal/game"
	"github.com/alexbotov/cascade/internal/limits"
	"github.com/alexbotov/cascade/internal/rng"
	"github.com/alexbotov/cascade/internal/slot"
	"github.com/alexbotov/cascade/internal/wallet"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Authenticator is the account surface the API exposes
type Authenticator interface {
	Register(ctx context.Context, req *auth.RegisterRequest, ip string) (*domain.Player, error)
	Login(ctx context.Context, req *auth.LoginRequest, ip, userAgent string) (*auth.LoginResponse, error)
	ValidateToken(ctx context.Context, token string) (*domain.Session, *domain.Player, error)
	Logout(ctx context.Context, sessionID string) error
}

// Cashier moves money in and out of a locally held wallet.
// It is nil when the operator holds the funds.
type Cashier interface {
	Deposit(ctx context.Context, playerID string, amount domain.Money, reference string) (*domain.Transaction, error)
	GetTransactions(ctx context.Context, playerID string, limit int) ([]*domain.Transaction, error)
}

// LimitManager manages responsible gaming limits (GLI-19 §2.5.5)
type LimitManager interface {
	GetLimits(ctx context.Context, playerID string) ([]*limits.Limit, error)
	SetLimit(ctx context.Context, playerID string, kind limits.Kind, period limits.Period, amount domain.Money) (*limits.Limit, error)
	SelfExclude(ctx context.Context, playerID, reason string, duration *time.Duration) (*limits.SelfExclusion, error)
	CheckDeposit(ctx context.Context, playerID string, amount domain.Money) error
}

// StatusReporter reports the gaming control state
type StatusReporter interface {
	GetSystemStatus() *domain.GamingSystemStatus
}

// Handler contains all HTTP handlers
type Handler struct {
	auth      Authenticator
	funds     game.Wallet
	cashier   Cashier
	limits    LimitManager
	game      *game.Engine
	rng       *rng.Service
	status    StatusReporter
	operator  Operator
	opKey     string
	validator *Validator
	hub       *Hub
	log       *zap.Logger
	currency  string
}

// Options configures a Handler
type Options struct {
	Auth     Authenticator
	Funds    game.Wallet
	Cashier  Cashier
	Limits   LimitManager
	Engine   *game.Engine
	RNG      *rng.Service
	Status   StatusReporter
	Logger   *zap.Logger
	Currency string

	// Operator and OperatorKey enable the operator routes; both must be set
	Operator    Operator
	OperatorKey string
}

// New creates a new API handler and subscribes its websocket hub to the engine
func New(opts Options) *Handler {
	log := opts.Logger.Named("api")
	h := &Handler{
		auth:      opts.Auth,
		funds:     opts.Funds,
		cashier:   opts.Cashier,
		limits:    opts.Limits,
		game:      opts.Engine,
		rng:       opts.RNG,
		status:    opts.Status,
		operator:  opts.Operator,
		opKey:     opts.OperatorKey,
		validator: NewValidator(),
		hub:       NewHub(log),
		log:       log,
		currency:  opts.Currency,
	}
	h.game.AddObserver(h.hub)
	return h
}

// Hub returns the websocket hub
func (h *Handler) Hub() *Hub {
	return h.hub
}

// Response helpers

type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
}

type APIError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(APIResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
	})
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondAPIError(w, status, &APIError{Code: code, Message: message})
}

func respondAPIError(w http.ResponseWriter, status int, apiErr *APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(APIResponse{
		Success: false,
		Error:   apiErr,
	})
}

// decodeAndValidate reads a JSON body into dst and runs its validate tags
func (h *Handler) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return false
	}
	if err := h.validator.ValidateStruct(dst); err != nil {
		respondAPIError(w, http.StatusBadRequest, &APIError{
			Code:    "VALIDATION_ERROR",
			Message: "Request validation failed",
			Fields:  FormatValidationError(err),
		})
		return false
	}
	return true
}

// getClientIP extracts client IP from request
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		return strings.TrimSpace(ips[0])
	}
	if xrip := r.Header.Get("X-Real-IP"); xrip != "" {
		return xrip
	}
	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}

// queryLimit reads ?limit=, falling back to def and capping at max
func queryLimit(r *http.Request, def, max int) int {
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= max {
			return n
		}
	}
	return def
}

// === Health & Info ===

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	// GLI-19 §3.3.3
	rngHealth, err := h.rng.HealthCheck()
	status := "healthy"
	if err != nil || !rngHealth.Healthy {
		status = "degraded"
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":        status,
		"rng_status":    rngHealth,
		"gaming_status": h.status.GetSystemStatus(),
	})
}

// ServerInfo handles GET /
func (h *Handler) ServerInfo(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"name":        "Cascade RGS",
		"version":     "1.0.0",
		"description": "Cascading cluster-pay slot server - GLI-19 Compliant",
		"games":       len(h.game.GetGames()),
	})
}

// === Authentication ===

// Register handles POST /api/v1/auth/register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	player, err := h.auth.Register(r.Context(), &req, getClientIP(r))
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUserExists):
			respondError(w, http.StatusConflict, "USER_EXISTS", "Username or email already exists")
		case errors.Is(err, auth.ErrInvalidRegistration):
			respondError(w, http.StatusBadRequest, "REGISTRATION_FAILED", err.Error())
		default:
			h.log.Error("registration failed", zap.Error(err))
			respondError(w, http.StatusInternalServerError, "REGISTRATION_FAILED", "Registration failed")
		}
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"player_id": player.ID,
		"username":  player.Username,
		"message":   "Registration successful",
	})
}

// Login handles POST /api/v1/auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.auth.Login(r.Context(), &req, getClientIP(r), r.UserAgent())
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			respondError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid username or password")
		case errors.Is(err, auth.ErrAccountLocked):
			respondError(w, http.StatusForbidden, "ACCOUNT_LOCKED", "Account is temporarily locked")
		case errors.Is(err, auth.ErrAccountNotActive):
			respondError(w, http.StatusForbidden, "ACCOUNT_INACTIVE", "Account is not active")
		default:
			h.log.Error("login failed", zap.Error(err))
			respondError(w, http.StatusInternalServerError, "LOGIN_FAILED", "Login failed")
		}
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"token":      result.Token,
		"session_id": result.Session.ID,
		"player": map[string]interface{}{
			"id":       result.Player.ID,
			"username": result.Player.Username,
			"email":    result.Player.Email,
		},
		"expires_at": result.Session.ExpiresAt,
	})
}

// Logout handles POST /api/v1/auth/logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())

	if err := h.auth.Logout(r.Context(), session.ID); err != nil {
		respondError(w, http.StatusInternalServerError, "LOGOUT_FAILED", "Logout failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "Logged out successfully",
	})
}

// GetSession handles GET /api/v1/auth/session
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())
	player := playerFrom(r.Context())

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"session_id": session.ID,
		"player": map[string]interface{}{
			"id":       player.ID,
			"username": player.Username,
			"email":    player.Email,
			"status":   player.Status,
		},
		"created_at":       session.CreatedAt,
		"last_activity_at": session.LastActivityAt,
		"expires_at":       session.ExpiresAt,
	})
}

// === Wallet ===

// GetBalance handles GET /api/v1/wallet/balance
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	player := playerFrom(r.Context())

	balance, err := h.funds.Balance(r.Context(), player.ID)
	if err != nil {
		h.log.Error("balance lookup failed", zap.String("player_id", player.ID), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "BALANCE_ERROR", "Failed to get balance")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"available": balance.Float64(),
		"currency":  balance.Currency,
	})
}

// DepositRequest is the body of POST /api/v1/wallet/deposit
type DepositRequest struct {
	Amount    float64 `json:"amount" validate:"gt=0"`
	Reference string  `json:"reference" validate:"max=255"`
}

// Deposit handles POST /api/v1/wallet/deposit
func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	if h.cashier == nil {
		respondError(w, http.StatusNotImplemented, "NOT_SUPPORTED", "Deposits are handled by the operator wallet")
		return
	}
	player := playerFrom(r.Context())

	var req DepositRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	amount := domain.NewMoney(req.Amount, h.currency)
	if !amount.IsPositive() {
		respondError(w, http.StatusBadRequest, "INVALID_AMOUNT", "Amount must be positive")
		return
	}

	if h.limits != nil {
		if err := h.limits.CheckDeposit(r.Context(), player.ID, amount); err != nil {
			status, apiErr := limitError(err)
			respondAPIError(w, status, apiErr)
			return
		}
	}

	tx, err := h.cashier.Deposit(r.Context(), player.ID, amount, req.Reference)
	if err != nil {
		switch {
		case errors.Is(err, wallet.ErrInvalidAmount), errors.Is(err, wallet.ErrCurrencyMismatch):
			respondError(w, http.StatusBadRequest, "INVALID_AMOUNT", err.Error())
		default:
			h.log.Error("deposit failed", zap.String("player_id", player.ID), zap.Error(err))
			respondError(w, http.StatusInternalServerError, "DEPOSIT_FAILED", "Deposit failed")
		}
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"transaction_id": tx.ID,
		"amount":         tx.Amount.Float64(),
		"balance_after":  tx.BalanceAfter.Float64(),
		"status":         tx.Status,
	})
}

// GetTransactions handles GET /api/v1/wallet/transactions
func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	if h.cashier == nil {
		respondError(w, http.StatusNotImplemented, "NOT_SUPPORTED", "Transactions are held by the operator wallet")
		return
	}
	player := playerFrom(r.Context())

	transactions, err := h.cashier.GetTransactions(r.Context(), player.ID, queryLimit(r, 50, 100))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "TRANSACTIONS_ERROR", "Failed to get transactions")
		return
	}

	txList := make([]map[string]interface{}, len(transactions))
	for i, tx := range transactions {
		txList[i] = map[string]interface{}{
			"id":             tx.ID,
			"type":           tx.Type,
			"amount":         tx.Amount.Float64(),
			"balance_before": tx.BalanceBefore.Float64(),
			"balance_after":  tx.BalanceAfter.Float64(),
			"status":         tx.Status,
			"reference":      tx.Reference,
			"description":    tx.Description,
			"created_at":     tx.CreatedAt,
		}
	}

	respondJSON(w, http.StatusOK, txList)
}

// === Games ===

func gameView(g *domain.Game) map[string]interface{} {
	return map[string]interface{}{
		"id":          g.ID,
		"name":        g.Name,
		"type":        g.Type,
		"strategy":    g.Strategy,
		"multipliers": g.Multipliers,
		"rows":        g.Rows,
		"cols":        g.Cols,
		"min_bet":     g.MinBet.Float64(),
		"max_bet":     g.MaxBet.Float64(),
		"ante_cost":   g.AnteCost,
		"buy_cost":    g.BuyCost,
		"enabled":     g.Enabled,
	}
}

// GetGames handles GET /api/v1/games
func (h *Handler) GetGames(w http.ResponseWriter, r *http.Request) {
	games := h.game.GetGames()

	gameList := make([]map[string]interface{}, len(games))
	for i, g := range games {
		gameList[i] = gameView(g)
	}

	respondJSON(w, http.StatusOK, gameList)
}

// GetGame handles GET /api/v1/games/{id}
func (h *Handler) GetGame(w http.ResponseWriter, r *http.Request) {
	g, err := h.game.GetGame(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusNotFound, "GAME_NOT_FOUND", "Game not found")
		return
	}

	respondJSON(w, http.StatusOK, gameView(g))
}

// SpinRequest is the body of a spin or bonus buy
type SpinRequest struct {
	Stake      float64 `json:"stake" validate:"required"`
	Ante       bool    `json:"ante"`
	Buy        bool    `json:"buy"`
	ClientSeed string  `json:"client_seed" validate:"omitempty,max=64,printascii"`
	Nonce      uint64  `json:"nonce"`
}

func (req *SpinRequest) engineRequest(playerID, gameID string) *game.SpinRequest {
	return &game.SpinRequest{
		PlayerID:   playerID,
		GameID:     gameID,
		Stake:      decimal.NewFromFloat(req.Stake),
		Ante:       req.Ante,
		Buy:        req.Buy,
		ClientSeed: req.ClientSeed,
		Nonce:      req.Nonce,
	}
}

// Spin handles POST /api/v1/games/{id}/spin
func (h *Handler) Spin(w http.ResponseWriter, r *http.Request) {
	h.play(w, r, false)
}

// Buy handles POST /api/v1/games/{id}/buy
func (h *Handler) Buy(w http.ResponseWriter, r *http.Request) {
	h.play(w, r, true)
}

func (h *Handler) play(w http.ResponseWriter, r *http.Request, buy bool) {
	player := playerFrom(r.Context())

	var req SpinRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	engineReq := req.engineRequest(player.ID, mux.Vars(r)["id"])

	var (
		result *game.RoundResult
		err    error
	)
	if buy {
		result, err = h.game.Buy(r.Context(), engineReq)
	} else {
		result, err = h.game.Spin(r.Context(), engineReq)
	}
	if err != nil {
		status, apiErr := roundError(err)
		if status == http.StatusInternalServerError {
			h.log.Error("round failed",
				zap.String("player_id", player.ID),
				zap.String("game_id", engineReq.GameID),
				zap.Error(err))
		}
		respondAPIError(w, status, apiErr)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// roundError maps an engine error to a status and error body
func roundError(err error) (int, *APIError) {
	switch {
	case errors.Is(err, game.ErrEngineBusy):
		return http.StatusConflict, &APIError{Code: "ROUND_IN_PROGRESS", Message: "A round is already in progress"}
	case errors.Is(err, wallet.ErrInsufficientFunds):
		return http.StatusBadRequest, &APIError{Code: "INSUFFICIENT_BALANCE", Message: "Insufficient balance"}
	case errors.Is(err, game.ErrInvalidStake):
		return http.StatusBadRequest, &APIError{Code: "INVALID_STAKE", Message: "Stake must be positive"}
	case errors.Is(err, game.ErrStakeOutOfRange):
		return http.StatusBadRequest, &APIError{Code: "STAKE_OUT_OF_RANGE", Message: err.Error()}
	case errors.Is(err, slot.ErrConflictingOptions):
		return http.StatusBadRequest, &APIError{Code: "CONFLICTING_OPTIONS", Message: "Ante and bonus buy cannot be combined"}
	case errors.Is(err, game.ErrGameNotFound):
		return http.StatusNotFound, &APIError{Code: "GAME_NOT_FOUND", Message: "Game not found"}
	case errors.Is(err, control.ErrGamingDisabled):
		return http.StatusServiceUnavailable, &APIError{Code: "GAMING_DISABLED", Message: "Gaming is currently disabled"}
	case errors.Is(err, control.ErrGameDisabled):
		return http.StatusForbidden, &APIError{Code: "GAME_DISABLED", Message: "Game is currently disabled"}
	case errors.Is(err, control.ErrPlayerDisabled), errors.Is(err, control.ErrPlayerNotFound):
		return http.StatusForbidden, &APIError{Code: "PLAYER_DISABLED", Message: "Player account is disabled"}
	case errors.Is(err, limits.ErrPlayerExcluded), errors.Is(err, limits.ErrWagerLimitExceeded), errors.Is(err, limits.ErrLossLimitExceeded):
		return limitError(err)
	case errors.Is(err, slot.ErrCascadeNonTermination):
		return http.StatusInternalServerError, &APIError{Code: "GAME_FAULT", Message: "Round could not be resolved; no funds were taken"}
	default:
		return http.StatusInternalServerError, &APIError{Code: "GAME_ERROR", Message: "Round failed"}
	}
}

// === Rounds ===

// ListRounds handles GET /api/v1/rounds
func (h *Handler) ListRounds(w http.ResponseWriter, r *http.Request) {
	player := playerFrom(r.Context())

	rounds, err := h.game.History(r.Context(), player.ID, queryLimit(r, 10, 50))
	if err != nil {
		h.log.Error("round history failed", zap.String("player_id", player.ID), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "HISTORY_ERROR", "Failed to get round history")
		return
	}

	list := make([]map[string]interface{}, len(rounds))
	for i, round := range rounds {
		list[i] = map[string]interface{}{
			"round_id":        round.ID,
			"game_id":         round.GameID,
			"entry":           round.Entry,
			"stake":           round.Stake.Float64(),
			"cost":            round.Cost.Float64(),
			"payout":          round.Payout.Float64(),
			"triggered_bonus": round.TriggeredBonus,
			"free_spins":      round.FreeSpins,
			"cascades":        round.Cascades,
			"status":          round.Status,
			"balance_before":  round.BalanceBefore.Float64(),
			"balance_after":   round.BalanceAfter.Float64(),
			"started_at":      round.StartedAt,
			"settled_at":      round.SettledAt,
		}
	}

	respondJSON(w, http.StatusOK, list)
}

// GetRound handles GET /api/v1/rounds/{id}
func (h *Handler) GetRound(w http.ResponseWriter, r *http.Request) {
	player := playerFrom(r.Context())

	round, err := h.game.GetRound(r.Context(), player.ID, mux.Vars(r)["id"])
	if err != nil {
		if errors.Is(err, game.ErrRoundNotFound) {
			respondError(w, http.StatusNotFound, "ROUND_NOT_FOUND", "Round not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "ROUND_ERROR", "Failed to get round")
		return
	}

	// the server seed is only revealed once the round is over
	if round.Status == domain.RoundStatusOpen {
		round.ServerSeed = ""
	}

	respondJSON(w, http.StatusOK, round)
}

// VerifyRound handles GET /api/v1/rounds/{id}/verify
func (h *Handler) VerifyRound(w http.ResponseWriter, r *http.Request) {
	player := playerFrom(r.Context())
	roundID := mux.Vars(r)["id"]

	round, err := h.game.GetRound(r.Context(), player.ID, roundID)
	if err != nil {
		if errors.Is(err, game.ErrRoundNotFound) {
			respondError(w, http.StatusNotFound, "ROUND_NOT_FOUND", "Round not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "ROUND_ERROR", "Failed to get round")
		return
	}
	if round.Status == domain.RoundStatusOpen {
		respondError(w, http.StatusConflict, "ROUND_OPEN", "Round has not been settled")
		return
	}

	verification, err := h.game.Replay(r.Context(), roundID)
	if err != nil {
		h.log.Error("round replay failed", zap.String("round_id", roundID), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "VERIFY_FAILED", "Failed to replay round")
		return
	}

	respondJSON(w, http.StatusOK, verification)
}
