package game

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/alexbotov/cascade/internal/audit"
	"github.com/alexbotov/cascade/internal/domain"
	"github.com/alexbotov/cascade/internal/wallet"
	"github.com/google/uuid"
)

// fakeWallet is an in-memory ledger that records every call
type fakeWallet struct {
	mu      sync.Mutex
	balance int64
	debits  []domain.Money
	credits []domain.Money
	losses  []domain.Money
	denoms  []domain.Money

	creditErr error
	lossErr   error
	// debitGate, when set, blocks Debit until it is closed
	debitGate chan struct{}
	debitSeen chan struct{}
}

func newFakeWallet(balance float64) *fakeWallet {
	return &fakeWallet{balance: domain.NewMoney(balance, "USD").Amount}
}

func (w *fakeWallet) Balance(ctx context.Context, playerID string) (domain.Money, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return domain.Money{Amount: w.balance, Currency: "USD"}, nil
}

func (w *fakeWallet) Debit(ctx context.Context, playerID string, amount domain.Money, roundID string) (*domain.Transaction, error) {
	if w.debitSeen != nil {
		w.debitSeen <- struct{}{}
	}
	if w.debitGate != nil {
		<-w.debitGate
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if amount.Amount > w.balance {
		return nil, wallet.ErrInsufficientFunds
	}
	before := w.balance
	w.balance -= amount.Amount
	w.debits = append(w.debits, amount)
	return w.tx(domain.TxTypeWager, amount, before), nil
}

func (w *fakeWallet) Credit(ctx context.Context, playerID string, amount, denominator domain.Money, roundID string) (*domain.Transaction, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.creditErr != nil {
		return nil, w.creditErr
	}
	before := w.balance
	w.balance += amount.Amount
	w.credits = append(w.credits, amount)
	w.denoms = append(w.denoms, denominator)
	return w.tx(domain.TxTypeWin, amount, before), nil
}

func (w *fakeWallet) RecordLoss(ctx context.Context, playerID string, amount domain.Money, roundID string) (*domain.Transaction, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.lossErr != nil {
		return nil, w.lossErr
	}
	w.losses = append(w.losses, amount)
	return w.tx(domain.TxTypeLoss, amount, w.balance), nil
}

func (w *fakeWallet) tx(t domain.TransactionType, amount domain.Money, before int64) *domain.Transaction {
	return &domain.Transaction{
		ID:            uuid.New().String(),
		Type:          t,
		Amount:        amount,
		BalanceBefore: domain.Money{Amount: before, Currency: "USD"},
		BalanceAfter:  domain.Money{Amount: w.balance, Currency: "USD"},
		Status:        domain.TxStatusCompleted,
		CreatedAt:     time.Now(),
	}
}

func (w *fakeWallet) counts() (int, int, int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.debits), len(w.credits), len(w.losses)
}

// fakeStore keeps rounds in memory
type fakeStore struct {
	mu        sync.Mutex
	rounds    map[string]*domain.Round
	order     []string
	created   int
	completed int
	gets      int
	// createFails is the number of Create calls that fail before one succeeds
	createFails int
}

func newFakeStore() *fakeStore {
	return &fakeStore{rounds: make(map[string]*domain.Round)}
}

func (s *fakeStore) Create(ctx context.Context, r *domain.Round) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createFails > 0 {
		s.createFails--
		return errors.New("rounds table unavailable")
	}
	cp := *r
	s.rounds[r.ID] = &cp
	s.order = append(s.order, r.ID)
	s.created++
	return nil
}

func (s *fakeStore) Complete(ctx context.Context, r *domain.Round) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rounds[r.ID]; !ok {
		return ErrRoundNotFound
	}
	cp := *r
	s.rounds[r.ID] = &cp
	s.completed++
	return nil
}

func (s *fakeStore) Get(ctx context.Context, roundID string) (*domain.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	r, ok := s.rounds[roundID]
	if !ok {
		return nil, ErrRoundNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *fakeStore) List(ctx context.Context, playerID string, limit int) ([]*domain.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Round
	for i := len(s.order) - 1; i >= 0 && len(out) < limit; i-- {
		if r := s.rounds[s.order[i]]; r.PlayerID == playerID {
			out = append(out, r)
		}
	}
	return out, nil
}

// fakeGate allows everything unless err is set
type fakeGate struct {
	err      error
	disabled map[string]bool
}

func (g *fakeGate) CheckAccess(ctx context.Context, playerID, gameID string) error {
	return g.err
}

func (g *fakeGate) IsGameEnabled(gameID string) bool {
	return !g.disabled[gameID]
}

// fakeAuditor collects event types
type fakeAuditor struct {
	mu     sync.Mutex
	events []string
}

func (a *fakeAuditor) Log(ctx context.Context, eventType string, severity domain.EventSeverity, description string, data interface{}, opts ...audit.EventOption) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, eventType)
	return nil
}

func (a *fakeAuditor) count(eventType string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, e := range a.events {
		if e == eventType {
			n++
		}
	}
	return n
}

// counterSeeds hands out predictable seeds so rounds are reproducible
type counterSeeds struct {
	mu sync.Mutex
	n  int
}

func (c *counterSeeds) GenerateSeed(n int) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	return fmt.Sprintf("seed-%d-%d", n, c.n), nil
}
