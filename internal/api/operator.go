package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/alexbotov/cascade/internal/control"
	"github.com/alexbotov/cascade/internal/domain"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Operator headers. The key authenticates the caller, the name is recorded
// as the person authorizing the change.
const (
	OperatorKeyHeader  = "X-Operator-Key"
	OperatorNameHeader = "X-Operator-Name"
)

// Operator flips the gaming switches (GLI-19 §2.4)
type Operator interface {
	StatusReporter
	SetGaming(ctx context.Context, enabled bool, reason, authorizedBy string) error
	SetGame(ctx context.Context, gameID string, enabled bool, reason, authorizedBy string) error
	SetPlayerStatus(ctx context.Context, playerID string, status domain.PlayerStatus, reason, authorizedBy string) error
}

// SwitchRequest turns gaming or a single game on or off
type SwitchRequest struct {
	Enabled *bool  `json:"enabled" validate:"required"`
	Reason  string `json:"reason" validate:"max=500"`
}

// PlayerStatusRequest moves a player account to a new status
type PlayerStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active suspended closed"`
	Reason string `json:"reason" validate:"max=500"`
}

type operatorCtxKey struct{}

func operatorFrom(ctx context.Context) string {
	name, _ := ctx.Value(operatorCtxKey{}).(string)
	return name
}

// OperatorMiddleware admits requests carrying the configured operator key
func (h *Handler) OperatorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(OperatorKeyHeader)
		if subtle.ConstantTimeCompare([]byte(key), []byte(h.opKey)) != 1 {
			h.log.Warn("operator request rejected",
				zap.String("path", r.URL.Path),
				zap.String("remote_addr", r.RemoteAddr))
			respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid operator key")
			return
		}

		name := r.Header.Get(OperatorNameHeader)
		if name == "" {
			respondError(w, http.StatusBadRequest, "OPERATOR_REQUIRED", OperatorNameHeader+" header is required")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), operatorCtxKey{}, name)))
	})
}

func operatorError(err error) (int, *APIError) {
	switch {
	case errors.Is(err, control.ErrReasonRequired):
		return http.StatusBadRequest, &APIError{Code: "REASON_REQUIRED", Message: "A reason is required to disable"}
	case errors.Is(err, control.ErrInvalidStatus):
		return http.StatusBadRequest, &APIError{Code: "INVALID_STATUS", Message: err.Error()}
	case errors.Is(err, control.ErrPlayerNotFound):
		return http.StatusNotFound, &APIError{Code: "PLAYER_NOT_FOUND", Message: "Player not found"}
	default:
		return http.StatusInternalServerError, &APIError{Code: "CONTROL_ERROR", Message: "Failed to apply change"}
	}
}

func (h *Handler) respondOperatorError(w http.ResponseWriter, r *http.Request, err error) {
	status, apiErr := operatorError(err)
	if status == http.StatusInternalServerError {
		h.log.Error("operator change failed",
			zap.String("path", r.URL.Path),
			zap.String("operator", operatorFrom(r.Context())),
			zap.Error(err))
	}
	respondAPIError(w, status, apiErr)
}

// SystemStatus handles GET /api/v1/operator/status
func (h *Handler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.operator.GetSystemStatus())
}

// SetGaming handles PUT /api/v1/operator/gaming
func (h *Handler) SetGaming(w http.ResponseWriter, r *http.Request) {
	var req SwitchRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.operator.SetGaming(r.Context(), *req.Enabled, req.Reason, operatorFrom(r.Context())); err != nil {
		h.respondOperatorError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, h.operator.GetSystemStatus())
}

// SetGameEnabled handles PUT /api/v1/operator/games/{id}
func (h *Handler) SetGameEnabled(w http.ResponseWriter, r *http.Request) {
	gameID := mux.Vars(r)["id"]
	if _, err := h.game.GetGame(gameID); err != nil {
		respondError(w, http.StatusNotFound, "GAME_NOT_FOUND", "Game not found")
		return
	}

	var req SwitchRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.operator.SetGame(r.Context(), gameID, *req.Enabled, req.Reason, operatorFrom(r.Context())); err != nil {
		h.respondOperatorError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, h.operator.GetSystemStatus())
}

// SetPlayerStatus handles PUT /api/v1/operator/players/{id}
func (h *Handler) SetPlayerStatus(w http.ResponseWriter, r *http.Request) {
	playerID := mux.Vars(r)["id"]

	var req PlayerStatusRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	status := domain.PlayerStatus(req.Status)
	if err := h.operator.SetPlayerStatus(r.Context(), playerID, status, req.Reason, operatorFrom(r.Context())); err != nil {
		h.respondOperatorError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"player_id": playerID,
		"status":    status,
	})
}
