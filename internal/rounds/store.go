// Package rounds persists settled and in-flight game rounds
// Compliant with GLI-19 §2.8.2: Game Play Information, §4.14: Game Recall
package rounds

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/alexbotov/cascade/internal/domain"
)

var ErrRoundNotFound = errors.New("round not found")

// Store reads and writes the rounds table
type Store struct {
	db *sql.DB
}

// New creates a round store
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create records a round once its stake is debited (GLI-19 §4.3.3)
func (s *Store) Create(ctx context.Context, r *domain.Round) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rounds (id, player_id, game_id, entry, stake, cost, payout, currency,
			triggered_bonus, free_spins, cascades, capped,
			server_seed, server_seed_hash, client_seed, nonce, trace,
			status, balance_before, balance_after, started_at, settled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
	`, r.ID, r.PlayerID, r.GameID, r.Entry, r.Stake.Amount, r.Cost.Amount, r.Payout.Amount, r.Cost.Currency,
		r.TriggeredBonus, r.FreeSpins, r.Cascades, r.Capped,
		r.ServerSeed, r.ServerSeedHash, r.ClientSeed, int64(r.Nonce), nullTrace(r.Trace),
		r.Status, r.BalanceBefore.Amount, r.BalanceAfter.Amount, r.StartedAt, r.SettledAt)
	if err != nil {
		return fmt.Errorf("failed to create round: %w", err)
	}
	return nil
}

// Complete stores the settlement outcome of a round
func (s *Store) Complete(ctx context.Context, r *domain.Round) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE rounds SET payout = $1, status = $2, balance_after = $3, settled_at = $4
		WHERE id = $5
	`, r.Payout.Amount, r.Status, r.BalanceAfter.Amount, r.SettledAt, r.ID)
	if err != nil {
		return fmt.Errorf("failed to complete round: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrRoundNotFound
	}
	return nil
}

const roundColumns = `id, player_id, game_id, entry, stake, cost, payout, currency,
	triggered_bonus, free_spins, cascades, capped,
	server_seed, server_seed_hash, client_seed, nonce, trace,
	status, balance_before, balance_after, started_at, settled_at`

// Get returns one round with its trace
func (s *Store) Get(ctx context.Context, roundID string) (*domain.Round, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+roundColumns+` FROM rounds WHERE id = $1`, roundID)
	r, err := scanRound(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoundNotFound
		}
		return nil, fmt.Errorf("failed to get round: %w", err)
	}
	return r, nil
}

// List returns a player's most recent rounds without their traces (GLI-19 §4.14)
func (s *Store) List(ctx context.Context, playerID string, limit int) ([]*domain.Round, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+roundColumns+` FROM rounds
		WHERE player_id = $1 ORDER BY started_at DESC LIMIT $2
	`, playerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query rounds: %w", err)
	}
	defer rows.Close()

	var history []*domain.Round
	for rows.Next() {
		r, err := scanRound(rows)
		if err != nil {
			return nil, err
		}
		r.Trace = nil
		history = append(history, r)
	}
	return history, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRound(row scanner) (*domain.Round, error) {
	var r domain.Round
	var stake, cost, payout, balBefore, balAfter, nonce int64
	var currency string
	var trace []byte
	var settledAt sql.NullTime

	err := row.Scan(&r.ID, &r.PlayerID, &r.GameID, &r.Entry, &stake, &cost, &payout, &currency,
		&r.TriggeredBonus, &r.FreeSpins, &r.Cascades, &r.Capped,
		&r.ServerSeed, &r.ServerSeedHash, &r.ClientSeed, &nonce, &trace,
		&r.Status, &balBefore, &balAfter, &r.StartedAt, &settledAt)
	if err != nil {
		return nil, err
	}

	r.Stake = domain.Money{Amount: stake, Currency: currency}
	r.Cost = domain.Money{Amount: cost, Currency: currency}
	r.Payout = domain.Money{Amount: payout, Currency: currency}
	r.BalanceBefore = domain.Money{Amount: balBefore, Currency: currency}
	r.BalanceAfter = domain.Money{Amount: balAfter, Currency: currency}
	r.Nonce = uint64(nonce)
	if len(trace) > 0 {
		r.Trace = trace
	}
	if settledAt.Valid {
		r.SettledAt = &settledAt.Time
	}
	return &r, nil
}

func nullTrace(trace []byte) interface{} {
	if len(trace) == 0 {
		return nil
	}
	return string(trace)
}
