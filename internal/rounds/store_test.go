package rounds

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/alexbotov/cascade/internal/database"
	"github.com/alexbotov/cascade/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) (*Store, string, func()) {
	t.Helper()

	dsn := os.Getenv(database.TestDSNEnv)
	if dsn == "" {
		t.Skipf("%s not set", database.TestDSNEnv)
	}

	db, err := database.New("postgres", dsn)
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	require.NoError(t, db.CleanData())

	playerID := uuid.New().String()
	require.NoError(t, db.CreatePlayer(playerID, "roundplayer", 10000, "USD"))

	return New(db.DB), playerID, func() {
		db.CleanData()
		db.Close()
	}
}

func openRound(playerID string, started time.Time) *domain.Round {
	return &domain.Round{
		ID:             uuid.New().String(),
		PlayerID:       playerID,
		GameID:         "candy-connect",
		Entry:          "base",
		Stake:          domain.Money{Amount: 100, Currency: "USD"},
		Cost:           domain.Money{Amount: 100, Currency: "USD"},
		Payout:         domain.Money{Currency: "USD"},
		ServerSeed:     "server",
		ServerSeedHash: "hash",
		ClientSeed:     "client",
		Nonce:          7,
		Trace:          json.RawMessage(`{"spins":[]}`),
		Status:         domain.RoundStatusOpen,
		BalanceBefore:  domain.Money{Amount: 10000, Currency: "USD"},
		BalanceAfter:   domain.Money{Amount: 9900, Currency: "USD"},
		StartedAt:      started,
	}
}

func TestCreateAndComplete(t *testing.T) {
	store, playerID, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	round := openRound(playerID, time.Now().UTC())
	require.NoError(t, store.Create(ctx, round))

	t.Run("GetOpen", func(t *testing.T) {
		got, err := store.Get(ctx, round.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.RoundStatusOpen, got.Status)
		assert.Equal(t, uint64(7), got.Nonce)
		assert.Nil(t, got.SettledAt)
		assert.JSONEq(t, `{"spins":[]}`, string(got.Trace))
	})

	t.Run("Complete", func(t *testing.T) {
		now := time.Now().UTC()
		round.Payout = domain.Money{Amount: 450, Currency: "USD"}
		round.BalanceAfter = domain.Money{Amount: 10350, Currency: "USD"}
		round.Status = domain.RoundStatusSettled
		round.SettledAt = &now
		require.NoError(t, store.Complete(ctx, round))

		got, err := store.Get(ctx, round.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(450), got.Payout.Amount)
		assert.Equal(t, int64(10350), got.BalanceAfter.Amount)
		assert.Equal(t, domain.RoundStatusSettled, got.Status)
		assert.NotNil(t, got.SettledAt)
	})

	t.Run("CompleteUnknown", func(t *testing.T) {
		err := store.Complete(ctx, openRound(playerID, time.Now().UTC()))
		assert.True(t, errors.Is(err, ErrRoundNotFound), "Expected ErrRoundNotFound, got %v", err)
	})

	t.Run("GetUnknown", func(t *testing.T) {
		_, err := store.Get(ctx, uuid.New().String())
		assert.True(t, errors.Is(err, ErrRoundNotFound), "Expected ErrRoundNotFound, got %v", err)
	})
}

func TestList(t *testing.T) {
	store, playerID, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)
	var ids []string
	for i := 0; i < 3; i++ {
		r := openRound(playerID, base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, store.Create(ctx, r))
		ids = append(ids, r.ID)
	}

	history, err := store.List(ctx, playerID, 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, ids[2], history[0].ID)
	assert.Equal(t, ids[1], history[1].ID)
	assert.Nil(t, history[0].Trace)
}
