package api

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alexbotov/cascade/internal/audit"
	"github.com/alexbotov/cascade/internal/auth"
	"github.com/alexbotov/cascade/internal/domain"
	"github.com/alexbotov/cascade/internal/game"
	"github.com/alexbotov/cascade/internal/limits"
	"github.com/alexbotov/cascade/internal/wallet"
	"github.com/google/uuid"
)

const (
	tokenPlayer1 = "token-player-1"
	tokenPlayer2 = "token-player-2"
)

// fakeAuth knows two fixed tokens
type fakeAuth struct{}

func (fakeAuth) Register(ctx context.Context, req *auth.RegisterRequest, ip string) (*domain.Player, error) {
	if req.Username == "taken" {
		return nil, auth.ErrUserExists
	}
	return &domain.Player{ID: uuid.New().String(), Username: req.Username, Email: req.Email, Status: domain.PlayerStatusActive}, nil
}

func (fakeAuth) Login(ctx context.Context, req *auth.LoginRequest, ip, userAgent string) (*auth.LoginResponse, error) {
	if req.Password != "password123" {
		return nil, auth.ErrInvalidCredentials
	}
	return &auth.LoginResponse{
		Player:  &domain.Player{ID: "player-1", Username: req.Username},
		Session: &domain.Session{ID: "session-1", ExpiresAt: time.Now().Add(time.Hour)},
		Token:   tokenPlayer1,
	}, nil
}

func (fakeAuth) ValidateToken(ctx context.Context, token string) (*domain.Session, *domain.Player, error) {
	switch token {
	case tokenPlayer1:
		return &domain.Session{ID: "session-1"}, &domain.Player{ID: "player-1", Username: "one"}, nil
	case tokenPlayer2:
		return &domain.Session{ID: "session-2"}, &domain.Player{ID: "player-2", Username: "two"}, nil
	case "expired":
		return nil, nil, auth.ErrSessionExpired
	}
	return nil, nil, auth.ErrSessionNotFound
}

func (fakeAuth) Logout(ctx context.Context, sessionID string) error {
	return nil
}

// memWallet keeps balances in cents per player
type memWallet struct {
	mu       sync.Mutex
	balances map[string]int64
	debits   int
}

func newMemWallet(cents int64) *memWallet {
	return &memWallet{balances: map[string]int64{"player-1": cents, "player-2": cents}}
}

func (w *memWallet) Balance(ctx context.Context, playerID string) (domain.Money, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	b, ok := w.balances[playerID]
	if !ok {
		return domain.Money{}, wallet.ErrPlayerNotFound
	}
	return domain.Money{Amount: b, Currency: "USD"}, nil
}

func (w *memWallet) Debit(ctx context.Context, playerID string, amount domain.Money, roundID string) (*domain.Transaction, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.balances[playerID] < amount.Amount {
		return nil, wallet.ErrInsufficientFunds
	}
	w.balances[playerID] -= amount.Amount
	w.debits++
	return w.tx(playerID, domain.TxTypeWager, amount), nil
}

func (w *memWallet) Credit(ctx context.Context, playerID string, amount, denominator domain.Money, roundID string) (*domain.Transaction, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.balances[playerID] += amount.Amount
	return w.tx(playerID, domain.TxTypeWin, amount), nil
}

func (w *memWallet) RecordLoss(ctx context.Context, playerID string, amount domain.Money, roundID string) (*domain.Transaction, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.tx(playerID, domain.TxTypeLoss, amount), nil
}

func (w *memWallet) tx(playerID string, t domain.TransactionType, amount domain.Money) *domain.Transaction {
	return &domain.Transaction{
		ID:           uuid.New().String(),
		PlayerID:     playerID,
		Type:         t,
		Amount:       amount,
		BalanceAfter: domain.Money{Amount: w.balances[playerID], Currency: "USD"},
		Status:       domain.TxStatusCompleted,
		CreatedAt:    time.Now(),
	}
}

// memCashier records deposits into a memWallet
type memCashier struct {
	w *memWallet
}

func (c memCashier) Deposit(ctx context.Context, playerID string, amount domain.Money, reference string) (*domain.Transaction, error) {
	c.w.mu.Lock()
	defer c.w.mu.Unlock()
	c.w.balances[playerID] += amount.Amount
	return c.w.tx(playerID, domain.TxTypeDeposit, amount), nil
}

func (c memCashier) GetTransactions(ctx context.Context, playerID string, limit int) ([]*domain.Transaction, error) {
	return nil, nil
}

// memStore keeps rounds in memory, newest last
type memStore struct {
	mu     sync.Mutex
	rounds map[string]*domain.Round
	order  []string
}

func newMemStore() *memStore {
	return &memStore{rounds: make(map[string]*domain.Round)}
}

func (s *memStore) Create(ctx context.Context, r *domain.Round) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	s.rounds[r.ID] = &cp
	s.order = append(s.order, r.ID)
	return nil
}

func (s *memStore) Complete(ctx context.Context, r *domain.Round) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rounds[r.ID]; !ok {
		return game.ErrRoundNotFound
	}
	cp := *r
	s.rounds[r.ID] = &cp
	return nil
}

func (s *memStore) Get(ctx context.Context, roundID string) (*domain.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rounds[roundID]
	if !ok {
		return nil, game.ErrRoundNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *memStore) List(ctx context.Context, playerID string, limit int) ([]*domain.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Round
	for i := len(s.order) - 1; i >= 0 && len(out) < limit; i-- {
		if r := s.rounds[s.order[i]]; r.PlayerID == playerID {
			cp := *r
			cp.Trace = nil
			out = append(out, &cp)
		}
	}
	return out, nil
}

// openGate admits every player
type openGate struct {
	err error
}

func (g openGate) CheckAccess(ctx context.Context, playerID, gameID string) error {
	return g.err
}

func (g openGate) IsGameEnabled(gameID string) bool {
	return true
}

type nopAuditor struct{}

func (nopAuditor) Log(ctx context.Context, eventType string, severity domain.EventSeverity, description string, data interface{}, opts ...audit.EventOption) error {
	return nil
}

// memLimits applies limits immediately and treats each as a per-call cap
type memLimits struct {
	mu       sync.Mutex
	limits   map[string][]*limits.Limit
	excluded map[string]bool
}

func newMemLimits() *memLimits {
	return &memLimits{limits: make(map[string][]*limits.Limit), excluded: make(map[string]bool)}
}

func (m *memLimits) GetLimits(ctx context.Context, playerID string) ([]*limits.Limit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.limits[playerID], nil
}

func (m *memLimits) SetLimit(ctx context.Context, playerID string, kind limits.Kind, period limits.Period, amount domain.Money) (*limits.Limit, error) {
	if kind == limits.KindWager && period == limits.PeriodMonthly {
		return nil, fmt.Errorf("%w: %s %s", limits.ErrInvalidPeriod, period, kind)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	l := &limits.Limit{Kind: kind, Period: period, Amount: &amount, UpdatedAt: time.Now()}
	m.limits[playerID] = append(m.limits[playerID], l)
	return l, nil
}

func (m *memLimits) SelfExclude(ctx context.Context, playerID, reason string, duration *time.Duration) (*limits.SelfExclusion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.excluded[playerID] = true
	e := &limits.SelfExclusion{ID: uuid.New().String(), PlayerID: playerID, Reason: reason, StartedAt: time.Now()}
	if duration != nil {
		expires := e.StartedAt.Add(*duration)
		e.ExpiresAt = &expires
	}
	return e, nil
}

func (m *memLimits) check(playerID string, kind limits.Kind, amount domain.Money, exceeded error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.excluded[playerID] {
		return limits.ErrPlayerExcluded
	}
	for _, l := range m.limits[playerID] {
		if l.Kind == kind && amount.Amount > l.Amount.Amount {
			return fmt.Errorf("%w: %s limit %s", exceeded, l.Period, l.Amount)
		}
	}
	return nil
}

func (m *memLimits) CheckRound(ctx context.Context, playerID string, cost domain.Money) error {
	return m.check(playerID, limits.KindWager, cost, limits.ErrWagerLimitExceeded)
}

func (m *memLimits) CheckDeposit(ctx context.Context, playerID string, amount domain.Money) error {
	return m.check(playerID, limits.KindDeposit, amount, limits.ErrDepositLimit)
}
