package game

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/alexbotov/cascade/internal/domain"
	"github.com/alexbotov/cascade/internal/rng"
	"github.com/alexbotov/cascade/internal/slot"
)

// Verification is the outcome of re-simulating a stored round from its seeds
type Verification struct {
	RoundID        string       `json:"round_id"`
	GameID         string       `json:"game_id"`
	ServerSeed     string       `json:"server_seed"`
	ServerSeedHash string       `json:"server_seed_hash"`
	ClientSeed     string       `json:"client_seed"`
	Nonce          uint64       `json:"nonce"`
	HashValid      bool         `json:"hash_valid"`
	Recorded       domain.Money `json:"recorded_payout"`
	Replayed       domain.Money `json:"replayed_payout"`
	PayoutMatch    bool         `json:"payout_match"`
	CascadesMatch  bool         `json:"cascades_match"`
	TraceMatch     bool         `json:"trace_match"`
	Verified       bool         `json:"verified"`
}

// Replay re-simulates a round from its stored seeds and reports whether the
// recorded outcome is reproduced exactly
func (e *Engine) Replay(ctx context.Context, roundID string) (*Verification, error) {
	if v, ok := e.checked.Get(roundID); ok {
		return v, nil
	}

	round, err := e.store.Get(ctx, roundID)
	if err != nil {
		return nil, err
	}

	g, ok := e.catalog.Get(round.GameID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrGameNotFound, round.GameID)
	}

	opts := slot.OptionsFor(slot.Entry(round.Entry))
	trace, err := g.Simulate(rng.NewSeeded(round.ServerSeed, round.ClientSeed, round.Nonce), round.Stake.Decimal(), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to replay round: %w", err)
	}

	replayed := domain.MoneyFromDecimal(trace.Payout, round.Payout.Currency)
	v := &Verification{
		RoundID:        round.ID,
		GameID:         round.GameID,
		ServerSeed:     round.ServerSeed,
		ServerSeedHash: round.ServerSeedHash,
		ClientSeed:     round.ClientSeed,
		Nonce:          round.Nonce,
		HashValid:      rng.HashSeed(round.ServerSeed) == round.ServerSeedHash,
		Recorded:       round.Payout,
		Replayed:       replayed,
		PayoutMatch:    replayed.Amount == round.Payout.Amount,
		CascadesMatch:  trace.Cascades == round.Cascades,
	}

	replayedJSON, err := json.Marshal(trace)
	if err != nil {
		return nil, fmt.Errorf("failed to encode replayed trace: %w", err)
	}
	v.TraceMatch = sameJSON(round.Trace, replayedJSON)
	v.Verified = v.HashValid && v.PayoutMatch && v.CascadesMatch && v.TraceMatch

	if round.Status == domain.RoundStatusSettled {
		e.checked.Set(v)
	}

	return v, nil
}

// sameJSON compares documents structurally; stored JSONB does not keep key
// order or whitespace
func sameJSON(a, b []byte) bool {
	var x, y interface{}
	if json.Unmarshal(a, &x) != nil || json.Unmarshal(b, &y) != nil {
		return false
	}
	return reflect.DeepEqual(x, y)
}
