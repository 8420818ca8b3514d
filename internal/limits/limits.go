// Package limits provides player limit management
// Compliant with GLI-19 §2.5.5: Limitations and Exclusions
//
// Key Requirements:
//   - Players can set deposit, wager and loss limits per period
//   - Limit decreases take effect immediately
//   - Limit increases and removals wait out a 24-hour cooling-off period
//   - Self-excluded players cannot start rounds or deposit
package limits

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/alexbotov/cascade/internal/audit"
	"github.com/alexbotov/cascade/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrInvalidLimit       = errors.New("invalid limit value")
	ErrInvalidPeriod      = errors.New("invalid limit period")
	ErrPlayerExcluded     = errors.New("player is self-excluded")
	ErrDepositLimit       = errors.New("deposit limit exceeded")
	ErrWagerLimitExceeded = errors.New("wager limit exceeded")
	ErrLossLimitExceeded  = errors.New("loss limit exceeded")
)

// CoolingOffPeriod is the required waiting period for limit increases
// GLI-19 §2.5.5.b - Limit increases require waiting period
const CoolingOffPeriod = 24 * time.Hour

// Kind names what a limit caps
type Kind string

const (
	KindDeposit Kind = "deposit"
	KindWager   Kind = "wager"
	KindLoss    Kind = "loss"
)

// Period is the rolling window a limit applies to
type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
)

// Window returns the rolling duration of the period
func (p Period) Window() time.Duration {
	switch p {
	case PeriodWeekly:
		return 7 * 24 * time.Hour
	case PeriodMonthly:
		return 30 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// valid reports whether p is allowed for k; monthly only exists for deposits
func valid(k Kind, p Period) bool {
	switch k {
	case KindDeposit:
		return p == PeriodDaily || p == PeriodWeekly || p == PeriodMonthly
	case KindWager, KindLoss:
		return p == PeriodDaily || p == PeriodWeekly
	}
	return false
}

// Limit is one cap on a player's activity. Amount is nil when no cap is in
// force; Pending holds a loosening that becomes active at PendingAt.
type Limit struct {
	Kind      Kind          `json:"kind"`
	Period    Period        `json:"period"`
	Amount    *domain.Money `json:"amount"`
	Pending   *domain.Money `json:"pending,omitempty"`
	PendingAt *time.Time    `json:"pending_at,omitempty"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// SelfExclusion records a player's request to be kept from gaming
type SelfExclusion struct {
	ID        string     `json:"id"`
	PlayerID  string     `json:"player_id"`
	Reason    string     `json:"reason"`
	StartedAt time.Time  `json:"started_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Service provides player limit management
type Service struct {
	db       *sql.DB
	audit    *audit.Service
	log      *zap.Logger
	currency string
	now      func() time.Time
}

// New creates a new limits service
func New(db *sql.DB, auditSvc *audit.Service, log *zap.Logger, currency string) *Service {
	return &Service{
		db:       db,
		audit:    auditSvc,
		log:      log.Named("limits"),
		currency: currency,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// GetLimits returns a player's limits, promoting pending changes whose
// cooling-off has elapsed (GLI-19 §2.5.5)
func (s *Service) GetLimits(ctx context.Context, playerID string) ([]*Limit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, period, amount, pending_amount, pending_at, updated_at
		FROM player_limits WHERE player_id = $1 ORDER BY kind, period
	`, playerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get limits: %w", err)
	}
	defer rows.Close()

	var limits []*Limit
	for rows.Next() {
		var l Limit
		var amount, pending sql.NullInt64
		var pendingAt sql.NullTime
		if err := rows.Scan(&l.Kind, &l.Period, &amount, &pending, &pendingAt, &l.UpdatedAt); err != nil {
			return nil, err
		}
		l.Amount = s.money(amount)
		if pendingAt.Valid {
			l.Pending = s.money(pending)
			l.PendingAt = &pendingAt.Time
		}
		limits = append(limits, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	now := s.now()
	for _, l := range limits {
		if l.PendingAt != nil && !l.PendingAt.After(now) {
			if err := s.promote(ctx, playerID, l, now); err != nil {
				return nil, err
			}
		}
	}

	return limits, nil
}

func (s *Service) money(v sql.NullInt64) *domain.Money {
	if !v.Valid {
		return nil
	}
	return &domain.Money{Amount: v.Int64, Currency: s.currency}
}

// promote applies a pending change whose cooling-off is over
func (s *Service) promote(ctx context.Context, playerID string, l *Limit, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE player_limits SET amount = pending_amount, pending_amount = NULL, pending_at = NULL, updated_at = $1
		WHERE player_id = $2 AND kind = $3 AND period = $4
	`, now, playerID, l.Kind, l.Period)
	if err != nil {
		return fmt.Errorf("failed to apply pending limit: %w", err)
	}
	l.Amount, l.Pending, l.PendingAt, l.UpdatedAt = l.Pending, nil, nil, now
	return nil
}

// SetLimit changes one limit. A zero amount removes it. Tightening applies
// immediately; loosening or removal waits CoolingOffPeriod
// (GLI-19 §2.5.5.a, §2.5.5.b).
func (s *Service) SetLimit(ctx context.Context, playerID string, kind Kind, period Period, amount domain.Money) (*Limit, error) {
	if amount.Amount < 0 {
		return nil, ErrInvalidLimit
	}
	if !valid(kind, period) {
		return nil, fmt.Errorf("%w: %s %s", ErrInvalidPeriod, period, kind)
	}

	current, err := s.find(ctx, playerID, kind, period)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var active *domain.Money
	if current != nil {
		active = current.Amount
	}

	var newAmount *domain.Money
	if amount.Amount > 0 {
		newAmount = &domain.Money{Amount: amount.Amount, Currency: s.currency}
	}

	immediate := newAmount != nil && (active == nil || newAmount.Amount <= active.Amount)
	if newAmount == nil && active == nil {
		immediate = true
	}

	limit := &Limit{Kind: kind, Period: period, UpdatedAt: now}
	if immediate {
		limit.Amount = newAmount
	} else {
		pendingAt := now.Add(CoolingOffPeriod)
		limit.Amount = active
		limit.Pending = newAmount
		limit.PendingAt = &pendingAt
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO player_limits (player_id, kind, period, amount, pending_amount, pending_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (player_id, kind, period) DO UPDATE
		SET amount = EXCLUDED.amount, pending_amount = EXCLUDED.pending_amount,
		    pending_at = EXCLUDED.pending_at, updated_at = EXCLUDED.updated_at
	`, playerID, kind, period, cents(limit.Amount), cents(limit.Pending), limit.PendingAt, now)
	if err != nil {
		return nil, fmt.Errorf("failed to store limit: %w", err)
	}

	s.audit.Log(ctx, audit.EventLimitChange, domain.SeverityInfo,
		fmt.Sprintf("%s %s limit set to %s", period, kind, amount),
		map[string]interface{}{
			"kind":       kind,
			"period":     period,
			"amount":     amount.Float64(),
			"immediate":  immediate,
			"pending_at": limit.PendingAt,
		},
		audit.WithPlayer(playerID))

	return limit, nil
}

func cents(m *domain.Money) interface{} {
	if m == nil {
		return nil
	}
	return m.Amount
}

func (s *Service) find(ctx context.Context, playerID string, kind Kind, period Period) (*Limit, error) {
	limits, err := s.GetLimits(ctx, playerID)
	if err != nil {
		return nil, err
	}
	for _, l := range limits {
		if l.Kind == kind && l.Period == period {
			return l, nil
		}
	}
	return nil, nil
}

// SelfExclude keeps a player from gaming, permanently when duration is nil
// GLI-19 §2.5.5.c - Self-exclusion must be supported
func (s *Service) SelfExclude(ctx context.Context, playerID, reason string, duration *time.Duration) (*SelfExclusion, error) {
	now := s.now()
	exclusion := &SelfExclusion{
		ID:        uuid.New().String(),
		PlayerID:  playerID,
		Reason:    reason,
		StartedAt: now,
	}
	if duration != nil {
		if *duration <= 0 {
			return nil, ErrInvalidLimit
		}
		expiresAt := now.Add(*duration)
		exclusion.ExpiresAt = &expiresAt
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO self_exclusions (id, player_id, reason, started_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
	`, exclusion.ID, exclusion.PlayerID, exclusion.Reason, exclusion.StartedAt, exclusion.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create self-exclusion: %w", err)
	}

	// GLI-19 §2.8.8 significant event
	s.audit.Log(ctx, audit.EventSelfExclusion, domain.SeverityCritical,
		fmt.Sprintf("Player self-excluded: %s", reason),
		map[string]interface{}{
			"exclusion_id": exclusion.ID,
			"expires_at":   exclusion.ExpiresAt,
			"permanent":    exclusion.ExpiresAt == nil,
		},
		audit.WithPlayer(playerID))

	return exclusion, nil
}

// IsExcluded checks if a player is currently self-excluded
func (s *Service) IsExcluded(ctx context.Context, playerID string) (bool, error) {
	var excluded bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM self_exclusions
		WHERE player_id = $1 AND (expires_at IS NULL OR expires_at > $2))
	`, playerID, s.now()).Scan(&excluded)
	if err != nil {
		return false, fmt.Errorf("failed to check self-exclusion: %w", err)
	}
	return excluded, nil
}

// CheckRound verifies a round costing cost fits within the player's wager and
// loss limits. The loss check assumes the round returns nothing.
func (s *Service) CheckRound(ctx context.Context, playerID string, cost domain.Money) error {
	if err := s.checkExcluded(ctx, playerID); err != nil {
		return err
	}

	limits, err := s.GetLimits(ctx, playerID)
	if err != nil {
		return err
	}

	now := s.now()
	for _, l := range limits {
		if l.Amount == nil {
			continue
		}
		from := now.Add(-l.Period.Window())

		switch l.Kind {
		case KindWager:
			wagered, err := s.wagered(ctx, playerID, from)
			if err != nil {
				return err
			}
			if wagered+cost.Amount > l.Amount.Amount {
				return fmt.Errorf("%w: %s limit %s", ErrWagerLimitExceeded, l.Period, l.Amount)
			}
		case KindLoss:
			lost, err := s.netLoss(ctx, playerID, from)
			if err != nil {
				return err
			}
			if lost+cost.Amount > l.Amount.Amount {
				return fmt.Errorf("%w: %s limit %s", ErrLossLimitExceeded, l.Period, l.Amount)
			}
		}
	}

	return nil
}

// CheckDeposit verifies a deposit fits within the player's deposit limits
func (s *Service) CheckDeposit(ctx context.Context, playerID string, amount domain.Money) error {
	if err := s.checkExcluded(ctx, playerID); err != nil {
		return err
	}

	limits, err := s.GetLimits(ctx, playerID)
	if err != nil {
		return err
	}

	now := s.now()
	for _, l := range limits {
		if l.Kind != KindDeposit || l.Amount == nil {
			continue
		}
		deposited, err := s.deposited(ctx, playerID, now.Add(-l.Period.Window()))
		if err != nil {
			return err
		}
		if deposited+amount.Amount > l.Amount.Amount {
			return fmt.Errorf("%w: %s limit %s", ErrDepositLimit, l.Period, l.Amount)
		}
	}

	return nil
}

func (s *Service) checkExcluded(ctx context.Context, playerID string) error {
	excluded, err := s.IsExcluded(ctx, playerID)
	if err != nil {
		return err
	}
	if excluded {
		return ErrPlayerExcluded
	}
	return nil
}

// wagered sums round costs since from; rounds are recorded in both wallet modes
func (s *Service) wagered(ctx context.Context, playerID string, from time.Time) (int64, error) {
	var total int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(cost), 0) FROM rounds WHERE player_id = $1 AND started_at >= $2
	`, playerID, from).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum wagers: %w", err)
	}
	return total, nil
}

// netLoss is cost minus payout over rounds since from, floored at zero
func (s *Service) netLoss(ctx context.Context, playerID string, from time.Time) (int64, error) {
	var total int64
	err := s.db.QueryRowContext(ctx, `
		SELECT GREATEST(COALESCE(SUM(cost - payout), 0), 0) FROM rounds WHERE player_id = $1 AND started_at >= $2
	`, playerID, from).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum losses: %w", err)
	}
	return total, nil
}

func (s *Service) deposited(ctx context.Context, playerID string, from time.Time) (int64, error) {
	var total int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM transactions
		WHERE player_id = $1 AND type = $2 AND status = $3 AND created_at >= $4
	`, playerID, domain.TxTypeDeposit, domain.TxStatusCompleted, from).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum deposits: %w", err)
	}
	return total, nil
}
