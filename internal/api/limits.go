package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/alexbotov/cascade/internal/domain"
	"github.com/alexbotov/cascade/internal/limits"
	"go.uber.org/zap"
)

// SetLimitRequest changes one limit; a zero amount removes it
type SetLimitRequest struct {
	Kind   string  `json:"kind" validate:"required,oneof=deposit wager loss"`
	Period string  `json:"period" validate:"required,oneof=daily weekly monthly"`
	Amount float64 `json:"amount" validate:"gte=0"`
}

// SelfExcludeRequest asks for a self-exclusion; zero days is permanent
type SelfExcludeRequest struct {
	Reason string `json:"reason" validate:"max=500"`
	Days   int    `json:"days" validate:"gte=0,lte=3650"`
}

func limitError(err error) (int, *APIError) {
	switch {
	case errors.Is(err, limits.ErrPlayerExcluded):
		return http.StatusForbidden, &APIError{Code: "PLAYER_EXCLUDED", Message: "Player is self-excluded"}
	case errors.Is(err, limits.ErrDepositLimit),
		errors.Is(err, limits.ErrWagerLimitExceeded),
		errors.Is(err, limits.ErrLossLimitExceeded):
		return http.StatusForbidden, &APIError{Code: "LIMIT_EXCEEDED", Message: err.Error()}
	case errors.Is(err, limits.ErrInvalidLimit), errors.Is(err, limits.ErrInvalidPeriod):
		return http.StatusBadRequest, &APIError{Code: "INVALID_LIMIT", Message: err.Error()}
	default:
		return http.StatusInternalServerError, &APIError{Code: "LIMITS_ERROR", Message: "Failed to process limits"}
	}
}

func (h *Handler) limitsAvailable(w http.ResponseWriter) bool {
	if h.limits == nil {
		respondError(w, http.StatusNotImplemented, "NOT_SUPPORTED", "Player limits are managed by the operator")
		return false
	}
	return true
}

// GetLimits handles GET /api/v1/limits
func (h *Handler) GetLimits(w http.ResponseWriter, r *http.Request) {
	if !h.limitsAvailable(w) {
		return
	}
	player := playerFrom(r.Context())

	list, err := h.limits.GetLimits(r.Context(), player.ID)
	if err != nil {
		h.log.Error("get limits failed", zap.String("player_id", player.ID), zap.Error(err))
		status, apiErr := limitError(err)
		respondAPIError(w, status, apiErr)
		return
	}
	if list == nil {
		list = []*limits.Limit{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"limits":            list,
		"cooling_off_hours": limits.CoolingOffPeriod.Hours(),
	})
}

// SetLimit handles PUT /api/v1/limits
func (h *Handler) SetLimit(w http.ResponseWriter, r *http.Request) {
	if !h.limitsAvailable(w) {
		return
	}
	player := playerFrom(r.Context())

	var req SetLimitRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	limit, err := h.limits.SetLimit(r.Context(), player.ID, limits.Kind(req.Kind), limits.Period(req.Period),
		domain.NewMoney(req.Amount, h.currency))
	if err != nil {
		status, apiErr := limitError(err)
		if status == http.StatusInternalServerError {
			h.log.Error("set limit failed", zap.String("player_id", player.ID), zap.Error(err))
		}
		respondAPIError(w, status, apiErr)
		return
	}

	respondJSON(w, http.StatusOK, limit)
}

// SelfExclude handles POST /api/v1/limits/self-exclude
func (h *Handler) SelfExclude(w http.ResponseWriter, r *http.Request) {
	if !h.limitsAvailable(w) {
		return
	}
	player := playerFrom(r.Context())

	var req SelfExcludeRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	var duration *time.Duration
	if req.Days > 0 {
		d := time.Duration(req.Days) * 24 * time.Hour
		duration = &d
	}

	exclusion, err := h.limits.SelfExclude(r.Context(), player.ID, req.Reason, duration)
	if err != nil {
		status, apiErr := limitError(err)
		if status == http.StatusInternalServerError {
			h.log.Error("self-exclusion failed", zap.String("player_id", player.ID), zap.Error(err))
		}
		respondAPIError(w, status, apiErr)
		return
	}

	respondJSON(w, http.StatusCreated, exclusion)
}
