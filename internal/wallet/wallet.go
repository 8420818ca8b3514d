// Package wallet provides balance and transaction management
// Compliant with GLI-19 §2.5.6: Financial Transactions, §2.5.7: Transaction Log
package wallet

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
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrPlayerNotFound    = errors.New("player not found")
	ErrCurrencyMismatch  = errors.New("currency mismatch")
)

// Service provides wallet functionality over the balances and transactions tables
type Service struct {
	db       *sql.DB
	audit    *audit.Service
	log      *zap.Logger
	currency string
}

// New creates a new wallet service
func New(db *sql.DB, auditSvc *audit.Service, log *zap.Logger, currency string) *Service {
	return &Service{
		db:       db,
		audit:    auditSvc,
		log:      log.Named("wallet"),
		currency: currency,
	}
}

// GetBalance retrieves the current balance for a player (GLI-19 §2.5.7)
func (s *Service) GetBalance(ctx context.Context, playerID string) (*domain.Balance, error) {
	var amount int64
	var currency string
	var updatedAt time.Time

	err := s.db.QueryRowContext(ctx, `
		SELECT amount, currency, updated_at FROM balances WHERE player_id = $1
	`, playerID).Scan(&amount, &currency, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPlayerNotFound
		}
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}

	return &domain.Balance{
		PlayerID:  playerID,
		Available: domain.Money{Amount: amount, Currency: currency},
		Currency:  currency,
		UpdatedAt: updatedAt,
	}, nil
}

// Balance returns the available funds of a player
func (s *Service) Balance(ctx context.Context, playerID string) (domain.Money, error) {
	balance, err := s.GetBalance(ctx, playerID)
	if err != nil {
		return domain.Money{}, err
	}
	return balance.Available, nil
}

// Deposit adds funds to a player's account (GLI-19 §2.5.6)
func (s *Service) Deposit(ctx context.Context, playerID string, amount domain.Money, reference string) (*domain.Transaction, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	tx, err := s.apply(ctx, playerID, entry{
		txType:      domain.TxTypeDeposit,
		amount:      amount,
		delta:       amount.Amount,
		reference:   reference,
		description: "Deposit",
	})
	if err != nil {
		return nil, err
	}

	s.audit.Log(ctx, audit.EventDeposit, domain.SeverityInfo,
		fmt.Sprintf("Deposit of %s", amount),
		map[string]interface{}{
			"transaction_id": tx.ID,
			"amount":         amount.Float64(),
			"currency":       amount.Currency,
		},
		audit.WithPlayer(playerID))

	return tx, nil
}

// Debit takes a round's cost from the player's balance (GLI-19 §4.3.3).
// The balance never goes negative.
func (s *Service) Debit(ctx context.Context, playerID string, amount domain.Money, roundID string) (*domain.Transaction, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	return s.apply(ctx, playerID, entry{
		txType:      domain.TxTypeWager,
		amount:      amount,
		delta:       -amount.Amount,
		reference:   roundID,
		description: fmt.Sprintf("Wager on round %s", roundID),
	})
}

// Credit pays a round's aggregate win. denominator is the amount the round
// charged, recorded so the win multiple can be attributed.
func (s *Service) Credit(ctx context.Context, playerID string, amount, denominator domain.Money, roundID string) (*domain.Transaction, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	description := fmt.Sprintf("Win on round %s", roundID)
	if denominator.IsPositive() {
		multiple := amount.Decimal().Div(denominator.Decimal()).StringFixed(2)
		description = fmt.Sprintf("Win on round %s (%sx of %s)", roundID, multiple, denominator)
	}

	return s.apply(ctx, playerID, entry{
		txType:      domain.TxTypeWin,
		amount:      amount,
		delta:       amount.Amount,
		reference:   roundID,
		description: description,
	})
}

// RecordLoss writes a ledger entry for a round's net loss. It does not move
// the balance; the cost was already taken by Debit.
func (s *Service) RecordLoss(ctx context.Context, playerID string, amount domain.Money, roundID string) (*domain.Transaction, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	return s.apply(ctx, playerID, entry{
		txType:      domain.TxTypeLoss,
		amount:      amount,
		reference:   roundID,
		description: fmt.Sprintf("Loss on round %s", roundID),
	})
}

type entry struct {
	txType      domain.TransactionType
	amount      domain.Money
	delta       int64
	reference   string
	description string
}

// apply locks the balance row, applies delta and records the transaction atomically
func (s *Service) apply(ctx context.Context, playerID string, e entry) (*domain.Transaction, error) {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	var current int64
	var currency string
	err = dbTx.QueryRowContext(ctx, `
		SELECT amount, currency FROM balances WHERE player_id = $1 FOR UPDATE
	`, playerID).Scan(&current, &currency)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPlayerNotFound
		}
		return nil, fmt.Errorf("failed to lock balance: %w", err)
	}

	if e.amount.Currency == "" {
		e.amount.Currency = s.currency
	}
	if e.amount.Currency != currency {
		return nil, fmt.Errorf("%w: %s against %s balance", ErrCurrencyMismatch, e.amount.Currency, currency)
	}

	// GLI-19 §2.5.6 - no negative balance
	if current+e.delta < 0 {
		return nil, ErrInsufficientFunds
	}

	now := time.Now().UTC()
	tx := &domain.Transaction{
		ID:            uuid.New().String(),
		PlayerID:      playerID,
		Type:          e.txType,
		Amount:        domain.Money{Amount: e.amount.Amount, Currency: currency},
		BalanceBefore: domain.Money{Amount: current, Currency: currency},
		BalanceAfter:  domain.Money{Amount: current + e.delta, Currency: currency},
		Status:        domain.TxStatusCompleted,
		Reference:     e.reference,
		Description:   e.description,
		CreatedAt:     now,
		CompletedAt:   &now,
	}

	if e.delta != 0 {
		_, err = dbTx.ExecContext(ctx, `
			UPDATE balances SET amount = $1, updated_at = $2 WHERE player_id = $3
		`, tx.BalanceAfter.Amount, now, playerID)
		if err != nil {
			return nil, fmt.Errorf("failed to update balance: %w", err)
		}
	}

	_, err = dbTx.ExecContext(ctx, `
		INSERT INTO transactions (id, player_id, type, amount, currency, balance_before, balance_after, status, reference, description, created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, tx.ID, tx.PlayerID, tx.Type, tx.Amount.Amount, tx.Amount.Currency,
		tx.BalanceBefore.Amount, tx.BalanceAfter.Amount, tx.Status, tx.Reference, tx.Description, tx.CreatedAt, tx.CompletedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to record transaction: %w", err)
	}

	if err := dbTx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.log.Debug("transaction applied",
		zap.String("player_id", playerID),
		zap.String("type", string(tx.Type)),
		zap.Int64("amount", tx.Amount.Amount),
		zap.Int64("balance_after", tx.BalanceAfter.Amount),
		zap.String("reference", tx.Reference))

	return tx, nil
}

// GetTransactions retrieves transaction history for a player (GLI-19 §2.5.7)
func (s *Service) GetTransactions(ctx context.Context, playerID string, limit int) ([]*domain.Transaction, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, player_id, type, amount, currency, balance_before, balance_after, status, reference, description, created_at, completed_at
		FROM transactions WHERE player_id = $1 ORDER BY created_at DESC LIMIT $2
	`, playerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var transactions []*domain.Transaction
	for rows.Next() {
		var tx domain.Transaction
		var amount, balBefore, balAfter int64
		var currency string
		var reference, description sql.NullString
		var completedAt sql.NullTime

		err := rows.Scan(&tx.ID, &tx.PlayerID, &tx.Type, &amount, &currency,
			&balBefore, &balAfter, &tx.Status, &reference, &description,
			&tx.CreatedAt, &completedAt)
		if err != nil {
			return nil, err
		}

		tx.Amount = domain.Money{Amount: amount, Currency: currency}
		tx.BalanceBefore = domain.Money{Amount: balBefore, Currency: currency}
		tx.BalanceAfter = domain.Money{Amount: balAfter, Currency: currency}
		tx.Reference = reference.String
		tx.Description = description.String
		if completedAt.Valid {
			tx.CompletedAt = &completedAt.Time
		}

		transactions = append(transactions, &tx)
	}

	return transactions, rows.Err()
}
