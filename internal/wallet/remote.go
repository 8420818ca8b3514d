package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alexbotov/cascade/internal/domain"
	"github.com/alexbotov/cascade/pkg/walletapi"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Remote settles rounds against an operator's seamless wallet. Transaction
// ids are derived from the round id so operator-side retries stay idempotent.
type Remote struct {
	client   *walletapi.Client
	log      *zap.Logger
	currency string
}

// NewRemote creates a wallet backed by the operator API
func NewRemote(client *walletapi.Client, log *zap.Logger, currency string) *Remote {
	return &Remote{client: client, log: log.Named("remote-wallet"), currency: currency}
}

// Balance returns the operator-reported balance
func (r *Remote) Balance(ctx context.Context, playerID string) (domain.Money, error) {
	result, err := r.client.GetBalance(ctx, playerID)
	if err != nil {
		return domain.Money{}, mapRemoteError(err)
	}
	currency := result.Currency
	if currency == "" {
		currency = r.currency
	}
	return parseAmount(result.Balance, currency)
}

// Debit takes a round's cost
func (r *Remote) Debit(ctx context.Context, playerID string, amount domain.Money, roundID string) (*domain.Transaction, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	result, err := r.client.Debit(ctx, &walletapi.DebitRequest{
		PlayerID:      playerID,
		RoundID:       roundID,
		TransactionID: roundID + "-debit",
		Amount:        formatAmount(amount),
		Currency:      amount.Currency,
	})
	if err != nil {
		return nil, mapRemoteError(err)
	}
	return r.transaction(playerID, domain.TxTypeWager, amount, -amount.Amount, roundID, result)
}

// Credit pays a round's aggregate win
func (r *Remote) Credit(ctx context.Context, playerID string, amount, denominator domain.Money, roundID string) (*domain.Transaction, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	result, err := r.client.Credit(ctx, &walletapi.CreditRequest{
		PlayerID:      playerID,
		RoundID:       roundID,
		TransactionID: roundID + "-credit",
		Amount:        formatAmount(amount),
		Denominator:   formatAmount(denominator),
		Currency:      amount.Currency,
	})
	if err != nil {
		return nil, mapRemoteError(err)
	}
	return r.transaction(playerID, domain.TxTypeWin, amount, amount.Amount, roundID, result)
}

// RecordLoss reports a round's net loss
func (r *Remote) RecordLoss(ctx context.Context, playerID string, amount domain.Money, roundID string) (*domain.Transaction, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	result, err := r.client.Loss(ctx, &walletapi.LossRequest{
		PlayerID:      playerID,
		RoundID:       roundID,
		TransactionID: roundID + "-loss",
		Amount:        formatAmount(amount),
		Currency:      amount.Currency,
	})
	if err != nil {
		return nil, mapRemoteError(err)
	}
	return r.transaction(playerID, domain.TxTypeLoss, amount, 0, roundID, result)
}

func (r *Remote) transaction(playerID string, txType domain.TransactionType, amount domain.Money, delta int64, roundID string, result *walletapi.TransactionResult) (*domain.Transaction, error) {
	after, err := parseAmount(result.Balance, amount.Currency)
	if err != nil {
		return nil, err
	}
	before := domain.Money{Amount: after.Amount - delta, Currency: amount.Currency}
	if result.BalanceBefore != "" {
		if before, err = parseAmount(result.BalanceBefore, amount.Currency); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	r.log.Debug("remote transaction applied",
		zap.String("player_id", playerID),
		zap.String("type", string(txType)),
		zap.String("round_id", roundID),
		zap.String("transaction_id", result.TransactionID))

	return &domain.Transaction{
		ID:            result.TransactionID,
		PlayerID:      playerID,
		Type:          txType,
		Amount:        amount,
		BalanceBefore: before,
		BalanceAfter:  after,
		Status:        domain.TxStatusCompleted,
		Reference:     roundID,
		CreatedAt:     now,
		CompletedAt:   &now,
	}, nil
}

func formatAmount(m domain.Money) string {
	return m.Decimal().StringFixed(domain.MoneyPlaces)
}

func parseAmount(s, currency string) (domain.Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return domain.Money{}, fmt.Errorf("invalid amount %q from wallet: %w", s, err)
	}
	return domain.MoneyFromDecimal(d, currency), nil
}

func mapRemoteError(err error) error {
	var apiErr *walletapi.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case walletapi.ErrInsufficientBalance:
			return fmt.Errorf("%w: %s", ErrInsufficientFunds, apiErr.Message)
		case walletapi.ErrPlayerNotFound:
			return fmt.Errorf("%w: %s", ErrPlayerNotFound, apiErr.Message)
		case walletapi.ErrInvalidAmount:
			return fmt.Errorf("%w: %s", ErrInvalidAmount, apiErr.Message)
		}
	}
	return fmt.Errorf("remote wallet: %w", err)
}
