// Package control holds the operator switches that gate play
// Compliant with GLI-19 §2.4: Gaming Management
//
// Three switches exist: the whole system, a single game and a single
// player account. Every change is persisted before it takes effect in
// memory and is written to the audit trail.
package control

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/alexbotov/cascade/internal/audit"
	"github.com/alexbotov/cascade/internal/domain"
	"go.uber.org/zap"
)

var (
	ErrGamingDisabled = errors.New("gaming is currently disabled")
	ErrGameDisabled   = errors.New("game is currently disabled")
	ErrPlayerDisabled = errors.New("player account is disabled")
	ErrPlayerNotFound = errors.New("player not found")
	ErrInvalidStatus  = errors.New("invalid player status")
	ErrReasonRequired = errors.New("a reason is required to disable")
)

const (
	keyGamingEnabled = "gaming_enabled"
	keyGamingReason  = "gaming_disabled_reason"
)

// Service tracks which parts of the system may take rounds
type Service struct {
	db    *sql.DB
	audit *audit.Service
	log   *zap.Logger

	mu              sync.RWMutex
	gamingEnabled   bool
	disabledGames   map[string]bool
	disabledAt      *time.Time
	disabledBy      string
	disabledReason  string
	lastStateChange time.Time
}

// New creates a control service with everything enabled; call LoadState
// to restore persisted switches
func New(db *sql.DB, auditSvc *audit.Service, log *zap.Logger) *Service {
	return &Service{
		db:              db,
		audit:           auditSvc,
		log:             log.Named("control"),
		gamingEnabled:   true,
		disabledGames:   make(map[string]bool),
		lastStateChange: time.Now().UTC(),
	}
}

// SetGaming turns all play on or off
// GLI-19 §2.4.1 - Ability to disable on demand
func (s *Service) SetGaming(ctx context.Context, enabled bool, reason, authorizedBy string) error {
	if !enabled && reason == "" {
		return ErrReasonRequired
	}
	if enabled {
		reason = ""
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for key, value := range map[string]string{
		keyGamingEnabled: fmt.Sprintf("%t", enabled),
		keyGamingReason:  reason,
	} {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO system_state (key, value, updated_at, updated_by)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (key) DO UPDATE SET value = $2, updated_at = $3, updated_by = $4
		`, key, value, now, authorizedBy)
		if err != nil {
			return fmt.Errorf("failed to persist gaming state: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit gaming state: %w", err)
	}

	s.gamingEnabled = enabled
	s.lastStateChange = now
	if enabled {
		s.disabledAt, s.disabledBy, s.disabledReason = nil, "", ""
		s.log.Info("gaming enabled", zap.String("by", authorizedBy))
		s.audit.Log(ctx, audit.EventGamingEnabled, domain.SeverityInfo,
			"All gaming enabled",
			map[string]interface{}{"authorized_by": authorizedBy},
			audit.WithComponent("control"))
		return nil
	}

	s.disabledAt, s.disabledBy, s.disabledReason = &now, authorizedBy, reason
	s.log.Warn("gaming disabled", zap.String("reason", reason), zap.String("by", authorizedBy))
	// GLI-19 §2.8.8 significant event
	s.audit.Log(ctx, audit.EventGamingDisabled, domain.SeverityCritical,
		fmt.Sprintf("All gaming disabled: %s", reason),
		map[string]interface{}{
			"authorized_by": authorizedBy,
			"reason":        reason,
		},
		audit.WithComponent("control"))
	return nil
}

// SetGame turns a single game on or off. Spins and buys of a disabled
// game are refused; rounds already in flight finish normally.
func (s *Service) SetGame(ctx context.Context, gameID string, enabled bool, reason, authorizedBy string) error {
	if !enabled && reason == "" {
		return ErrReasonRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	var err error
	if enabled {
		_, err = s.db.ExecContext(ctx, `DELETE FROM disabled_games WHERE game_id = $1`, gameID)
	} else {
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO disabled_games (game_id, reason, disabled_at, disabled_by)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (game_id) DO UPDATE SET reason = $2, disabled_at = $3, disabled_by = $4
		`, gameID, reason, now, authorizedBy)
	}
	if err != nil {
		return fmt.Errorf("failed to persist game state: %w", err)
	}

	s.lastStateChange = now
	data := map[string]interface{}{
		"game_id":       gameID,
		"authorized_by": authorizedBy,
	}
	if enabled {
		delete(s.disabledGames, gameID)
		s.log.Info("game enabled", zap.String("game_id", gameID), zap.String("by", authorizedBy))
		s.audit.Log(ctx, audit.EventGameEnabled, domain.SeverityInfo,
			fmt.Sprintf("Game enabled: %s", gameID), data, audit.WithComponent("control"))
		return nil
	}

	s.disabledGames[gameID] = true
	data["reason"] = reason
	s.log.Warn("game disabled", zap.String("game_id", gameID), zap.String("reason", reason))
	s.audit.Log(ctx, audit.EventGameDisabled, domain.SeverityWarning,
		fmt.Sprintf("Game disabled: %s - %s", gameID, reason), data, audit.WithComponent("control"))
	return nil
}

// SetPlayerStatus moves a player account between active, suspended and
// closed. Leaving active expires the player's sessions.
// GLI-19 §2.4 - Ability to disable player accounts
func (s *Service) SetPlayerStatus(ctx context.Context, playerID string, status domain.PlayerStatus, reason, authorizedBy string) error {
	switch status {
	case domain.PlayerStatusActive:
	case domain.PlayerStatusSuspended, domain.PlayerStatusClosed:
		if reason == "" {
			return ErrReasonRequired
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var previous domain.PlayerStatus
	err = tx.QueryRowContext(ctx, `SELECT status FROM players WHERE id = $1 FOR UPDATE`, playerID).Scan(&previous)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrPlayerNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load player: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE players SET status = $1, updated_at = $2 WHERE id = $3
	`, status, time.Now().UTC(), playerID); err != nil {
		return fmt.Errorf("failed to update player status: %w", err)
	}

	if status != domain.PlayerStatusActive {
		if _, err := tx.ExecContext(ctx, `
			UPDATE sessions SET status = $1 WHERE player_id = $2 AND status = $3
		`, domain.SessionStatusExpired, playerID, domain.SessionStatusActive); err != nil {
			return fmt.Errorf("failed to terminate sessions: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit player status: %w", err)
	}

	severity := domain.SeverityWarning
	if status == domain.PlayerStatusActive {
		severity = domain.SeverityInfo
	}
	s.log.Info("player status changed",
		zap.String("player_id", playerID),
		zap.String("from", string(previous)),
		zap.String("to", string(status)))
	// GLI-19 §2.8.8
	s.audit.Log(ctx, audit.EventAccountStatusChange, severity,
		fmt.Sprintf("Player account %s -> %s", previous, status),
		map[string]interface{}{
			"player_id":     playerID,
			"from":          previous,
			"to":            status,
			"reason":        reason,
			"authorized_by": authorizedBy,
		},
		audit.WithPlayer(playerID), audit.WithComponent("control"))

	return nil
}

// IsGamingEnabled reports the system-wide switch
func (s *Service) IsGamingEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gamingEnabled
}

// IsGameEnabled reports the switch for one game
func (s *Service) IsGameEnabled(gameID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.disabledGames[gameID]
}

// GetSystemStatus returns a snapshot of every switch
func (s *Service) GetSystemStatus() *domain.GamingSystemStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	games := make([]string, 0, len(s.disabledGames))
	for id := range s.disabledGames {
		games = append(games, id)
	}
	sort.Strings(games)

	return &domain.GamingSystemStatus{
		GamingEnabled:   s.gamingEnabled,
		DisabledAt:      s.disabledAt,
		DisabledBy:      s.disabledBy,
		DisabledReason:  s.disabledReason,
		DisabledGames:   games,
		LastStateChange: s.lastStateChange,
	}
}

// CheckAccess gates a round: system first, then the game, then the player
// GLI-19 §2.4, §2.5.5
func (s *Service) CheckAccess(ctx context.Context, playerID, gameID string) error {
	if !s.IsGamingEnabled() {
		return ErrGamingDisabled
	}
	if !s.IsGameEnabled(gameID) {
		return ErrGameDisabled
	}

	var status domain.PlayerStatus
	err := s.db.QueryRowContext(ctx, `SELECT status FROM players WHERE id = $1`, playerID).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrPlayerNotFound
		}
		return fmt.Errorf("failed to check player status: %w", err)
	}
	if status != domain.PlayerStatusActive {
		return ErrPlayerDisabled
	}
	return nil
}

// LoadState restores persisted switches on startup
func (s *Service) LoadState(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT key, value, updated_at, updated_by FROM system_state WHERE key IN ($1, $2)
	`, keyGamingEnabled, keyGamingReason)
	if err != nil {
		return fmt.Errorf("failed to load system state: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, value, by string
		var at time.Time
		if err := rows.Scan(&key, &value, &at, &by); err != nil {
			return fmt.Errorf("failed to scan system state: %w", err)
		}
		switch key {
		case keyGamingEnabled:
			s.gamingEnabled = value != "false"
			at = at.UTC()
			s.lastStateChange = at
			if !s.gamingEnabled {
				s.disabledAt, s.disabledBy = &at, by
			}
		case keyGamingReason:
			s.disabledReason = value
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if s.gamingEnabled {
		s.disabledReason = ""
	}

	games, err := s.db.QueryContext(ctx, `SELECT game_id FROM disabled_games`)
	if err != nil {
		return fmt.Errorf("failed to load disabled games: %w", err)
	}
	defer games.Close()

	for games.Next() {
		var gameID string
		if err := games.Scan(&gameID); err != nil {
			return fmt.Errorf("failed to scan disabled game: %w", err)
		}
		s.disabledGames[gameID] = true
	}
	return games.Err()
}
