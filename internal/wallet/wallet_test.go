package wallet

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/alexbotov/cascade/internal/audit"
	"github.com/alexbotov/cascade/internal/database"
	"github.com/alexbotov/cascade/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func setupTestWallet(t *testing.T) (*Service, string, func()) {
	t.Helper()

	dsn := os.Getenv(database.TestDSNEnv)
	if dsn == "" {
		t.Skipf("%s not set", database.TestDSNEnv)
	}

	db, err := database.New("postgres", dsn)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}

	// Ensure schema exists (idempotent)
	if err := db.Migrate(); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}

	// Clean data for fresh test state
	if err := db.CleanData(); err != nil {
		t.Fatalf("Failed to clean data: %v", err)
	}

	svc := New(db.DB, audit.New(db.DB, zap.NewNop()), zap.NewNop(), "USD")

	playerID := uuid.New().String()
	if err := db.CreatePlayer(playerID, "testplayer", 0, "USD"); err != nil {
		t.Fatalf("Failed to create test player: %v", err)
	}

	return svc, playerID, func() {
		db.CleanData()
		db.Close()
	}
}

func TestGetBalance(t *testing.T) {
	svc, playerID, cleanup := setupTestWallet(t)
	defer cleanup()

	ctx := context.Background()

	t.Run("InitialBalance", func(t *testing.T) {
		balance, err := svc.GetBalance(ctx, playerID)
		if err != nil {
			t.Fatalf("Failed to get balance: %v", err)
		}

		if balance.Available.Amount != 0 {
			t.Errorf("Expected initial balance 0, got %d", balance.Available.Amount)
		}
	})

	t.Run("UnknownPlayer", func(t *testing.T) {
		_, err := svc.Balance(ctx, uuid.New().String())
		if !errors.Is(err, ErrPlayerNotFound) {
			t.Errorf("Expected ErrPlayerNotFound, got %v", err)
		}
	})
}

func TestDeposit(t *testing.T) {
	svc, playerID, cleanup := setupTestWallet(t)
	defer cleanup()

	ctx := context.Background()

	t.Run("SuccessfulDeposit", func(t *testing.T) {
		result, err := svc.Deposit(ctx, playerID, domain.NewMoney(100.00, "USD"), "test-deposit")
		if err != nil {
			t.Fatalf("Deposit failed: %v", err)
		}

		if result.BalanceAfter.Amount != 10000 { // 100.00 * 100 cents
			t.Errorf("Expected balance 10000 cents, got %d", result.BalanceAfter.Amount)
		}

		if result.ID == "" {
			t.Error("Expected transaction ID")
		}
	})

	t.Run("MultipleDeposits", func(t *testing.T) {
		svc.Deposit(ctx, playerID, domain.NewMoney(50.00, "USD"), "deposit-2")
		result, _ := svc.Deposit(ctx, playerID, domain.NewMoney(25.00, "USD"), "deposit-3")

		// Should be 100 + 50 + 25 = 175
		if result.BalanceAfter.Float64() != 175.00 {
			t.Errorf("Expected balance 175.00, got %f", result.BalanceAfter.Float64())
		}
	})

	t.Run("ZeroAmount", func(t *testing.T) {
		_, err := svc.Deposit(ctx, playerID, domain.NewMoney(0, "USD"), "zero")
		if !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("Expected ErrInvalidAmount, got %v", err)
		}
	})

	t.Run("WrongCurrency", func(t *testing.T) {
		_, err := svc.Deposit(ctx, playerID, domain.NewMoney(10, "EUR"), "eur")
		if !errors.Is(err, ErrCurrencyMismatch) {
			t.Errorf("Expected ErrCurrencyMismatch, got %v", err)
		}
	})

	t.Run("InvalidPlayer", func(t *testing.T) {
		_, err := svc.Deposit(ctx, uuid.New().String(), domain.NewMoney(100, "USD"), "invalid")
		if err == nil {
			t.Error("Expected error for invalid player")
		}
	})
}

func TestRoundLedger(t *testing.T) {
	svc, playerID, cleanup := setupTestWallet(t)
	defer cleanup()

	ctx := context.Background()
	svc.Deposit(ctx, playerID, domain.NewMoney(100.00, "USD"), "initial")

	t.Run("Debit", func(t *testing.T) {
		result, err := svc.Debit(ctx, playerID, domain.NewMoney(10.00, "USD"), "round-1")
		if err != nil {
			t.Fatalf("Debit failed: %v", err)
		}
		if result.BalanceAfter.Float64() != 90.00 {
			t.Errorf("Expected balance 90.00, got %f", result.BalanceAfter.Float64())
		}
		if result.Type != domain.TxTypeWager {
			t.Errorf("Expected wager transaction, got %s", result.Type)
		}
	})

	t.Run("DebitInsufficientFunds", func(t *testing.T) {
		_, err := svc.Debit(ctx, playerID, domain.NewMoney(1000.00, "USD"), "round-2")
		if !errors.Is(err, ErrInsufficientFunds) {
			t.Errorf("Expected ErrInsufficientFunds, got %v", err)
		}
		balance, _ := svc.Balance(ctx, playerID)
		if balance.Amount != 9000 {
			t.Errorf("Rejected debit changed the balance to %d", balance.Amount)
		}
	})

	t.Run("Credit", func(t *testing.T) {
		result, err := svc.Credit(ctx, playerID, domain.NewMoney(50.00, "USD"), domain.NewMoney(10.00, "USD"), "round-1")
		if err != nil {
			t.Fatalf("Credit failed: %v", err)
		}
		// 100 - 10 + 50 = 140
		if result.BalanceAfter.Float64() != 140.00 {
			t.Errorf("Expected balance 140.00, got %f", result.BalanceAfter.Float64())
		}
		if !strings.Contains(result.Description, "5.00x") {
			t.Errorf("Expected win multiple in description, got %q", result.Description)
		}
	})

	t.Run("RecordLossKeepsBalance", func(t *testing.T) {
		result, err := svc.RecordLoss(ctx, playerID, domain.NewMoney(7.50, "USD"), "round-3")
		if err != nil {
			t.Fatalf("RecordLoss failed: %v", err)
		}
		if result.BalanceBefore.Amount != result.BalanceAfter.Amount {
			t.Errorf("Loss entry moved the balance: %d -> %d", result.BalanceBefore.Amount, result.BalanceAfter.Amount)
		}
		if result.Amount.Amount != 750 {
			t.Errorf("Expected loss amount 750, got %d", result.Amount.Amount)
		}
	})

	t.Run("ZeroCreditRejected", func(t *testing.T) {
		_, err := svc.Credit(ctx, playerID, domain.Money{Currency: "USD"}, domain.NewMoney(1, "USD"), "round-4")
		if !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("Expected ErrInvalidAmount, got %v", err)
		}
	})
}

func TestGetTransactions(t *testing.T) {
	svc, playerID, cleanup := setupTestWallet(t)
	defer cleanup()

	ctx := context.Background()

	svc.Deposit(ctx, playerID, domain.NewMoney(100.00, "USD"), "deposit-1")
	svc.Deposit(ctx, playerID, domain.NewMoney(50.00, "USD"), "deposit-2")
	svc.Debit(ctx, playerID, domain.NewMoney(25.00, "USD"), "round-1")

	t.Run("GetAllTransactions", func(t *testing.T) {
		txs, err := svc.GetTransactions(ctx, playerID, 100)
		if err != nil {
			t.Fatalf("Failed to get transactions: %v", err)
		}

		if len(txs) != 3 {
			t.Errorf("Expected 3 transactions, got %d", len(txs))
		}
	})

	t.Run("LimitedTransactions", func(t *testing.T) {
		txs, err := svc.GetTransactions(ctx, playerID, 2)
		if err != nil {
			t.Fatalf("Failed to get transactions: %v", err)
		}

		if len(txs) != 2 {
			t.Errorf("Expected 2 transactions, got %d", len(txs))
		}
	})
}

func TestSequentialDebits(t *testing.T) {
	svc, playerID, cleanup := setupTestWallet(t)
	defer cleanup()

	ctx := context.Background()
	svc.Deposit(ctx, playerID, domain.NewMoney(500.00, "USD"), "initial")

	for i := 0; i < 5; i++ {
		if _, err := svc.Debit(ctx, playerID, domain.NewMoney(100.00, "USD"), uuid.New().String()); err != nil {
			t.Fatalf("Debit %d failed: %v", i+1, err)
		}
	}

	balance, err := svc.GetBalance(ctx, playerID)
	if err != nil {
		t.Fatalf("Failed to get balance: %v", err)
	}
	if balance.Available.Amount != 0 {
		t.Errorf("Expected final balance 0, got %d", balance.Available.Amount)
	}

	if _, err := svc.Debit(ctx, playerID, domain.NewMoney(1.00, "USD"), "overdraft"); !errors.Is(err, ErrInsufficientFunds) {
		t.Errorf("Expected ErrInsufficientFunds, got %v", err)
	}
}
