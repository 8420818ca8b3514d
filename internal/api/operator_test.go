package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alexbotov/cascade/internal/control"
	"github.com/alexbotov/cascade/internal/domain"
	"github.com/alexbotov/cascade/internal/game"
	"github.com/alexbotov/cascade/internal/rng"
	"github.com/alexbotov/cascade/internal/slot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testOperatorKey = "op-secret"

// memOperator keeps the gaming switches in memory and doubles as the
// engine's gate
type memOperator struct {
	mu      sync.Mutex
	off     bool
	reason  string
	by      string
	games   map[string]bool
	players map[string]domain.PlayerStatus
	fail    error
}

func newMemOperator() *memOperator {
	return &memOperator{
		games: map[string]bool{},
		players: map[string]domain.PlayerStatus{
			"player-1": domain.PlayerStatusActive,
			"player-2": domain.PlayerStatusActive,
		},
	}
}

func (o *memOperator) GetSystemStatus() *domain.GamingSystemStatus {
	o.mu.Lock()
	defer o.mu.Unlock()
	games := []string{}
	for id := range o.games {
		games = append(games, id)
	}
	sort.Strings(games)
	return &domain.GamingSystemStatus{
		GamingEnabled:   !o.off,
		DisabledBy:      o.by,
		DisabledReason:  o.reason,
		DisabledGames:   games,
		LastStateChange: time.Now().UTC(),
	}
}

func (o *memOperator) SetGaming(ctx context.Context, enabled bool, reason, authorizedBy string) error {
	if o.fail != nil {
		return o.fail
	}
	if !enabled && reason == "" {
		return control.ErrReasonRequired
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.off = !enabled
	o.reason, o.by = reason, authorizedBy
	if enabled {
		o.reason, o.by = "", ""
	}
	return nil
}

func (o *memOperator) SetGame(ctx context.Context, gameID string, enabled bool, reason, authorizedBy string) error {
	if !enabled && reason == "" {
		return control.ErrReasonRequired
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if enabled {
		delete(o.games, gameID)
	} else {
		o.games[gameID] = true
	}
	return nil
}

func (o *memOperator) SetPlayerStatus(ctx context.Context, playerID string, status domain.PlayerStatus, reason, authorizedBy string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.players[playerID]; !ok {
		return control.ErrPlayerNotFound
	}
	if status != domain.PlayerStatusActive && reason == "" {
		return control.ErrReasonRequired
	}
	o.players[playerID] = status
	return nil
}

func (o *memOperator) CheckAccess(ctx context.Context, playerID, gameID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	switch {
	case o.off:
		return control.ErrGamingDisabled
	case o.games[gameID]:
		return control.ErrGameDisabled
	case o.players[playerID] != domain.PlayerStatusActive:
		return control.ErrPlayerDisabled
	}
	return nil
}

func (o *memOperator) IsGameEnabled(gameID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return !o.games[gameID]
}

func newOperatorServer(t *testing.T, op *memOperator, key string) *testServer {
	t.Helper()

	w := newMemWallet(100000)
	store := newMemStore()
	rngSvc := rng.New()
	engine := game.New(slot.DefaultCatalog(), w, store, op, nopAuditor{}, rngSvc, zap.NewNop(), game.Config{
		Currency:          "USD",
		LargeWinThreshold: domain.NewMoney(100, "USD"),
	})

	h := New(Options{
		Auth:        fakeAuth{},
		Funds:       w,
		Engine:      engine,
		RNG:         rngSvc,
		Status:      op,
		Logger:      zap.NewNop(),
		Currency:    "USD",
		Operator:    op,
		OperatorKey: key,
	})
	return &testServer{handler: h, router: h.SetupRouter(), wallet: w, store: store}
}

func (s *testServer) operatorDo(t *testing.T, method, path, key, name string, body interface{}) (int, envelope) {
	t.Helper()

	raw := []byte(nil)
	if body != nil {
		var err error
		raw, err = json.Marshal(body)
		require.NoError(t, err)
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set(OperatorKeyHeader, key)
	}
	if name != "" {
		req.Header.Set(OperatorNameHeader, name)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), "body: %s", rec.Body.String())
	return rec.Code, env
}

func switchTo(enabled bool, reason string) SwitchRequest {
	return SwitchRequest{Enabled: &enabled, Reason: reason}
}

func TestOperatorAuth(t *testing.T) {
	t.Run("NoKeyConfigured", func(t *testing.T) {
		s := newOperatorServer(t, newMemOperator(), "")
		status, env := s.operatorDo(t, "GET", "/api/v1/operator/status", "", "ops", nil)
		assert.Equal(t, http.StatusNotFound, status, "Expected operator routes unregistered")
		assert.Equal(t, "NOT_FOUND", env.Error.Code)
	})

	s := newOperatorServer(t, newMemOperator(), testOperatorKey)

	t.Run("MissingKey", func(t *testing.T) {
		status, env := s.operatorDo(t, "GET", "/api/v1/operator/status", "", "ops", nil)
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, "UNAUTHORIZED", env.Error.Code)
	})

	t.Run("WrongKey", func(t *testing.T) {
		status, _ := s.operatorDo(t, "GET", "/api/v1/operator/status", "op-secreT", "ops", nil)
		assert.Equal(t, http.StatusUnauthorized, status)
	})

	t.Run("PlayerTokenIsNotEnough", func(t *testing.T) {
		status, _ := s.do(t, "GET", "/api/v1/operator/status", tokenPlayer1, nil)
		assert.Equal(t, http.StatusUnauthorized, status)
	})

	t.Run("NameRequired", func(t *testing.T) {
		status, env := s.operatorDo(t, "GET", "/api/v1/operator/status", testOperatorKey, "", nil)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "OPERATOR_REQUIRED", env.Error.Code)
	})

	t.Run("Status", func(t *testing.T) {
		status, env := s.operatorDo(t, "GET", "/api/v1/operator/status", testOperatorKey, "ops", nil)
		require.Equal(t, http.StatusOK, status)
		var st domain.GamingSystemStatus
		require.NoError(t, json.Unmarshal(env.Data, &st))
		assert.True(t, st.GamingEnabled)
		assert.Empty(t, st.DisabledGames)
	})
}

func TestOperatorSwitches(t *testing.T) {
	op := newMemOperator()
	s := newOperatorServer(t, op, testOperatorKey)

	t.Run("EnabledRequired", func(t *testing.T) {
		status, env := s.operatorDo(t, "PUT", "/api/v1/operator/gaming", testOperatorKey, "ops", map[string]string{"reason": "x"})
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
		assert.Contains(t, env.Error.Fields, "enabled")
	})

	t.Run("DisableWithoutReason", func(t *testing.T) {
		status, env := s.operatorDo(t, "PUT", "/api/v1/operator/gaming", testOperatorKey, "ops", switchTo(false, ""))
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "REASON_REQUIRED", env.Error.Code)
	})

	t.Run("DisableGamingBlocksSpins", func(t *testing.T) {
		status, env := s.operatorDo(t, "PUT", "/api/v1/operator/gaming", testOperatorKey, "ops", switchTo(false, "Maintenance"))
		require.Equal(t, http.StatusOK, status)
		var st domain.GamingSystemStatus
		require.NoError(t, json.Unmarshal(env.Data, &st))
		assert.False(t, st.GamingEnabled)
		assert.Equal(t, "ops", st.DisabledBy, "Expected the operator name recorded")

		status, env = s.do(t, "POST", "/api/v1/games/candy-connect/spin", tokenPlayer1, SpinRequest{Stake: 1})
		assert.Equal(t, http.StatusServiceUnavailable, status)
		assert.Equal(t, "GAMING_DISABLED", env.Error.Code)
		assert.Equal(t, 0, s.wallet.debits)

		status, _ = s.operatorDo(t, "PUT", "/api/v1/operator/gaming", testOperatorKey, "ops", switchTo(true, ""))
		require.Equal(t, http.StatusOK, status)
	})

	t.Run("DisableOneGame", func(t *testing.T) {
		status, env := s.operatorDo(t, "PUT", "/api/v1/operator/games/candy-connect", testOperatorKey, "ops", switchTo(false, "Bug fix"))
		require.Equal(t, http.StatusOK, status)
		var st domain.GamingSystemStatus
		require.NoError(t, json.Unmarshal(env.Data, &st))
		assert.Equal(t, []string{"candy-connect"}, st.DisabledGames)

		status, env = s.do(t, "POST", "/api/v1/games/candy-connect/spin", tokenPlayer1, SpinRequest{Stake: 1})
		assert.Equal(t, http.StatusForbidden, status)
		assert.Equal(t, "GAME_DISABLED", env.Error.Code)

		status, _ = s.do(t, "POST", "/api/v1/games/crystal-cluster/spin", tokenPlayer1, SpinRequest{Stake: 1})
		assert.Equal(t, http.StatusOK, status, "Expected other games unaffected")

		status, _ = s.operatorDo(t, "PUT", "/api/v1/operator/games/candy-connect", testOperatorKey, "ops", switchTo(true, ""))
		require.Equal(t, http.StatusOK, status)
		assert.True(t, op.IsGameEnabled("candy-connect"))
	})

	t.Run("UnknownGame", func(t *testing.T) {
		status, env := s.operatorDo(t, "PUT", "/api/v1/operator/games/nope", testOperatorKey, "ops", switchTo(false, "x"))
		assert.Equal(t, http.StatusNotFound, status)
		assert.Equal(t, "GAME_NOT_FOUND", env.Error.Code)
	})

	t.Run("StoreFailure", func(t *testing.T) {
		op.fail = errors.New("system_state unavailable")
		defer func() { op.fail = nil }()

		status, env := s.operatorDo(t, "PUT", "/api/v1/operator/gaming", testOperatorKey, "ops", switchTo(false, "x"))
		assert.Equal(t, http.StatusInternalServerError, status)
		assert.Equal(t, "CONTROL_ERROR", env.Error.Code)
		assert.True(t, op.GetSystemStatus().GamingEnabled)
	})
}

func TestOperatorPlayerStatus(t *testing.T) {
	s := newOperatorServer(t, newMemOperator(), testOperatorKey)

	t.Run("InvalidStatus", func(t *testing.T) {
		status, env := s.operatorDo(t, "PUT", "/api/v1/operator/players/player-1", testOperatorKey, "ops",
			PlayerStatusRequest{Status: "banned", Reason: "x"})
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
		assert.Contains(t, env.Error.Fields, "status")
	})

	t.Run("UnknownPlayer", func(t *testing.T) {
		status, env := s.operatorDo(t, "PUT", "/api/v1/operator/players/ghost", testOperatorKey, "ops",
			PlayerStatusRequest{Status: "suspended", Reason: "x"})
		assert.Equal(t, http.StatusNotFound, status)
		assert.Equal(t, "PLAYER_NOT_FOUND", env.Error.Code)
	})

	t.Run("SuspendBlocksSpins", func(t *testing.T) {
		status, env := s.operatorDo(t, "PUT", "/api/v1/operator/players/player-2", testOperatorKey, "ops",
			PlayerStatusRequest{Status: "suspended", Reason: "Chargeback"})
		require.Equal(t, http.StatusOK, status)
		var data struct {
			PlayerID string              `json:"player_id"`
			Status   domain.PlayerStatus `json:"status"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &data))
		assert.Equal(t, "player-2", data.PlayerID)
		assert.Equal(t, domain.PlayerStatusSuspended, data.Status)

		status, env = s.do(t, "POST", "/api/v1/games/candy-connect/spin", tokenPlayer2, SpinRequest{Stake: 1})
		assert.Equal(t, http.StatusForbidden, status)
		assert.Equal(t, "PLAYER_DISABLED", env.Error.Code)

		status, _ = s.do(t, "POST", "/api/v1/games/candy-connect/spin", tokenPlayer1, SpinRequest{Stake: 1})
		assert.Equal(t, http.StatusOK, status)
	})

	t.Run("Reactivate", func(t *testing.T) {
		status, _ := s.operatorDo(t, "PUT", "/api/v1/operator/players/player-2", testOperatorKey, "ops",
			PlayerStatusRequest{Status: "active"})
		require.Equal(t, http.StatusOK, status)

		status, _ = s.do(t, "POST", "/api/v1/games/candy-connect/spin", tokenPlayer2, SpinRequest{Stake: 1})
		assert.Equal(t, http.StatusOK, status)
	})
}

func TestOperatorError(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{control.ErrReasonRequired, http.StatusBadRequest, "REASON_REQUIRED"},
		{control.ErrInvalidStatus, http.StatusBadRequest, "INVALID_STATUS"},
		{control.ErrPlayerNotFound, http.StatusNotFound, "PLAYER_NOT_FOUND"},
		{errors.New("db down"), http.StatusInternalServerError, "CONTROL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			status, apiErr := operatorError(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, apiErr.Code)
		})
	}
}
