// Package game runs paid cascade rounds: it guards, charges, simulates,
// settles and records them.
// Compliant with GLI-19 Chapter 4: Game Requirements
package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/alexbotov/cascade/internal/audit"
	"github.com/alexbotov/cascade/internal/domain"
	"github.com/alexbotov/cascade/internal/metrics"
	"github.com/alexbotov/cascade/internal/rng"
	"github.com/alexbotov/cascade/internal/rounds"
	"github.com/alexbotov/cascade/internal/slot"
	"github.com/alexbotov/cascade/internal/wallet"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrGameNotFound    = errors.New("game not found")
	ErrInvalidStake    = errors.New("invalid stake")
	ErrStakeOutOfRange = errors.New("stake outside the game's limits")
	ErrRoundNotFound   = rounds.ErrRoundNotFound
)

// serverSeedBytes is the entropy drawn for each round's server seed
const serverSeedBytes = 32

// Wallet moves a player's funds for a round
type Wallet interface {
	Balance(ctx context.Context, playerID string) (domain.Money, error)
	Debit(ctx context.Context, playerID string, amount domain.Money, roundID string) (*domain.Transaction, error)
	Credit(ctx context.Context, playerID string, amount, denominator domain.Money, roundID string) (*domain.Transaction, error)
	RecordLoss(ctx context.Context, playerID string, amount domain.Money, roundID string) (*domain.Transaction, error)
}

// RoundStore persists round records (GLI-19 §4.14)
type RoundStore interface {
	Create(ctx context.Context, r *domain.Round) error
	Complete(ctx context.Context, r *domain.Round) error
	Get(ctx context.Context, roundID string) (*domain.Round, error)
	List(ctx context.Context, playerID string, limit int) ([]*domain.Round, error)
}

// Gate decides whether a player may play a game (GLI-19 §2.4)
type Gate interface {
	CheckAccess(ctx context.Context, playerID, gameID string) error
	IsGameEnabled(gameID string) bool
}

// Auditor records significant events (GLI-19 §2.8.8)
type Auditor interface {
	Log(ctx context.Context, eventType string, severity domain.EventSeverity, description string, data interface{}, opts ...audit.EventOption) error
}

// SeedSource draws server seeds
type SeedSource interface {
	GenerateSeed(n int) (string, error)
}

// Limiter enforces responsible gaming limits before a round is paid for (GLI-19 §2.5.5)
type Limiter interface {
	CheckRound(ctx context.Context, playerID string, cost domain.Money) error
}

// Config holds engine settings
type Config struct {
	Currency string
	// LargeWinThreshold is the payout at or above which a round is audited as a large win
	LargeWinThreshold domain.Money
	// Limits is optional; nil means no player limits apply
	Limits Limiter
}

// Engine plays rounds of the catalog's games
type Engine struct {
	catalog *slot.Catalog
	wallet  Wallet
	store   RoundStore
	gate    Gate
	audit   Auditor
	seeds   SeedSource
	log     *zap.Logger
	config  Config
	guard   *roundGuard
	checked *verificationCache

	mu        sync.RWMutex
	observers []Observer
}

// New creates a game engine
func New(catalog *slot.Catalog, w Wallet, store RoundStore, gate Gate, auditor Auditor, seeds SeedSource, log *zap.Logger, cfg Config) *Engine {
	return &Engine{
		catalog: catalog,
		wallet:  w,
		store:   store,
		gate:    gate,
		audit:   auditor,
		seeds:   seeds,
		log:     log.Named("engine"),
		config:  cfg,
		guard:   newRoundGuard(),
		checked: newVerificationCache(verificationCacheSize, verificationCacheTTL),
	}
}

// AddObserver registers o for every round's events
func (e *Engine) AddObserver(o Observer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observers = append(e.observers, o)
}

// GetGames returns the catalog as listings
func (e *Engine) GetGames() []*domain.Game {
	games := make([]*domain.Game, 0)
	for _, g := range e.catalog.List() {
		games = append(games, e.listing(g))
	}
	return games
}

// GetGame returns one listing
func (e *Engine) GetGame(gameID string) (*domain.Game, error) {
	g, ok := e.catalog.Get(gameID)
	if !ok {
		return nil, ErrGameNotFound
	}
	return e.listing(g), nil
}

func (e *Engine) listing(g *slot.Game) *domain.Game {
	def := g.Definition()
	return &domain.Game{
		ID:          def.ID,
		Name:        def.Name,
		Type:        "cascade",
		Strategy:    string(def.Strategy),
		Multipliers: string(def.Multipliers),
		Rows:        def.Rows,
		Cols:        def.Cols,
		MinBet:      domain.NewMoney(def.MinStake, e.config.Currency),
		MaxBet:      domain.NewMoney(def.MaxStake, e.config.Currency),
		AnteCost:    decimal.NewFromFloat(def.AnteCost).String(),
		BuyCost:     decimal.NewFromFloat(def.BuyCost).String(),
		Enabled:     e.gate.IsGameEnabled(def.ID),
	}
}

// SpinRequest is one paid round request
type SpinRequest struct {
	PlayerID string
	GameID   string
	Stake    decimal.Decimal
	Ante     bool
	Buy      bool
	// ClientSeed and Nonce feed the provably-fair stream; an empty seed is generated
	ClientSeed string
	Nonce      uint64
}

// RoundResult is what a settled round reports to the player
type RoundResult struct {
	RoundID        string             `json:"round_id"`
	GameID         string             `json:"game_id"`
	Entry          slot.Entry         `json:"entry"`
	Stake          domain.Money       `json:"stake"`
	Cost           domain.Money       `json:"cost"`
	Payout         domain.Money       `json:"payout"`
	Net            domain.Money       `json:"net"`
	Win            bool               `json:"win"`
	TriggeredBonus bool               `json:"triggered_bonus"`
	FreeSpins      int                `json:"free_spins"`
	Cascades       int                `json:"cascades"`
	Capped         bool               `json:"capped"`
	Balance        domain.Money       `json:"balance"`
	Status         domain.RoundStatus `json:"status"`
	ServerSeedHash string             `json:"server_seed_hash"`
	ClientSeed     string             `json:"client_seed"`
	Nonce          uint64             `json:"nonce"`
	Trace          *slot.RoundTrace   `json:"trace"`
}

// Spin plays one round: exactly one debit of its cost, then exactly one
// aggregate settlement covering the base spin and any free spins
// (GLI-19 §4.3.3).
func (e *Engine) Spin(ctx context.Context, req *SpinRequest) (*RoundResult, error) {
	release, err := e.guard.acquire(req.PlayerID)
	if err != nil {
		e.reject("busy")
		return nil, err
	}
	defer release()

	if err := e.gate.CheckAccess(ctx, req.PlayerID, req.GameID); err != nil {
		e.reject("access")
		return nil, err
	}

	g, ok := e.catalog.Get(req.GameID)
	if !ok {
		e.reject("game")
		return nil, ErrGameNotFound
	}
	def := g.Definition()

	opts := slot.Options{Ante: req.Ante, Buy: req.Buy}
	if opts.Ante && opts.Buy {
		e.reject("options")
		return nil, slot.ErrConflictingOptions
	}

	// money is normalised before it reaches the wallet
	stake := domain.Normalize(req.Stake)
	if !stake.IsPositive() {
		e.reject("stake")
		return nil, ErrInvalidStake
	}
	if stake.LessThan(domain.NormalizeFloat(def.MinStake)) || stake.GreaterThan(domain.NormalizeFloat(def.MaxStake)) {
		e.reject("stake")
		return nil, fmt.Errorf("%w: %s not in %.2f-%.2f", ErrStakeOutOfRange, stake.StringFixed(domain.MoneyPlaces), def.MinStake, def.MaxStake)
	}

	stakeMoney := domain.MoneyFromDecimal(stake, e.config.Currency)
	cost := domain.MoneyFromDecimal(g.Cost(stake, opts), e.config.Currency)

	if e.config.Limits != nil {
		if err := e.config.Limits.CheckRound(ctx, req.PlayerID, cost); err != nil {
			e.reject("limit")
			return nil, err
		}
	}

	balance, err := e.wallet.Balance(ctx, req.PlayerID)
	if err != nil {
		return nil, fmt.Errorf("failed to read balance: %w", err)
	}
	if balance.Amount < cost.Amount {
		e.reject("funds")
		return nil, fmt.Errorf("%w: %w", ErrInvalidStake, wallet.ErrInsufficientFunds)
	}

	serverSeed, err := e.seeds.GenerateSeed(serverSeedBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to draw server seed: %w", err)
	}
	clientSeed := req.ClientSeed
	if clientSeed == "" {
		if clientSeed, err = e.seeds.GenerateSeed(serverSeedBytes / 2); err != nil {
			return nil, fmt.Errorf("failed to draw client seed: %w", err)
		}
	}

	roundID := uuid.New().String()

	// the whole outcome is decided before any money moves
	trace, err := g.Simulate(rng.NewSeeded(serverSeed, clientSeed, req.Nonce), stake, opts)
	if err != nil {
		if errors.Is(err, slot.ErrCascadeNonTermination) {
			e.reject("non_termination")
			e.log.Error("cascade did not terminate",
				zap.String("game_id", def.ID),
				zap.String("player_id", req.PlayerID),
				zap.String("client_seed", clientSeed),
				zap.Error(err))
			e.audit.Log(ctx, audit.EventCascadeRunaway, domain.SeverityCritical,
				fmt.Sprintf("Cascade did not terminate on %s", def.ID),
				map[string]interface{}{
					"game_id":          def.ID,
					"server_seed_hash": rng.HashSeed(serverSeed),
					"client_seed":      clientSeed,
					"nonce":            req.Nonce,
				},
				audit.WithPlayer(req.PlayerID), audit.WithComponent("game-engine"))
			return nil, err
		}
		return nil, fmt.Errorf("failed to simulate round: %w", err)
	}

	plan := Settle(stakeMoney, cost, trace.Payout)

	debit, err := e.wallet.Debit(ctx, req.PlayerID, cost, roundID)
	if err != nil {
		if errors.Is(err, wallet.ErrInsufficientFunds) {
			e.reject("funds")
			return nil, fmt.Errorf("%w: %w", ErrInvalidStake, err)
		}
		return nil, fmt.Errorf("failed to debit stake: %w", err)
	}

	// no cancellation after the debit: settlement always runs to completion
	sctx := context.WithoutCancel(ctx)

	traceJSON, err := json.Marshal(trace)
	if err != nil {
		e.log.Error("failed to encode round trace", zap.String("round_id", roundID), zap.Error(err))
	}

	round := &domain.Round{
		ID:             roundID,
		PlayerID:       req.PlayerID,
		GameID:         def.ID,
		Entry:          string(trace.Entry),
		Stake:          stakeMoney,
		Cost:           cost,
		Payout:         domain.Money{Currency: cost.Currency},
		TriggeredBonus: trace.TriggeredBonus,
		FreeSpins:      trace.FreeSpins,
		Cascades:       trace.Cascades,
		Capped:         trace.Capped,
		ServerSeed:     serverSeed,
		ServerSeedHash: rng.HashSeed(serverSeed),
		ClientSeed:     clientSeed,
		Nonce:          req.Nonce,
		Trace:          traceJSON,
		Status:         domain.RoundStatusOpen,
		BalanceBefore:  debit.BalanceBefore,
		BalanceAfter:   debit.BalanceAfter,
		StartedAt:      time.Now().UTC(),
	}
	recorded := true
	if err := e.store.Create(sctx, round); err != nil {
		recorded = false
		e.recordFailed(sctx, round, "create", err)
	}

	for _, ev := range traceEvents(roundID, req.PlayerID, trace) {
		e.publish(ev)
	}

	round.Payout = plan.Payout
	round.BalanceAfter, round.Status = e.settle(sctx, round, plan)
	settledAt := time.Now().UTC()
	round.SettledAt = &settledAt
	if recorded {
		if err := e.store.Complete(sctx, round); err != nil {
			e.recordFailed(sctx, round, "complete", err)
		}
	} else if err := e.store.Create(sctx, round); err != nil {
		// funds moved with no round on file
		e.recordFailed(sctx, round, "recover", err)
		round.Status = domain.RoundStatusFailed
	}

	e.auditRound(sctx, round, plan)
	e.observe(def.ID, trace, plan)

	result := &RoundResult{
		RoundID:        roundID,
		GameID:         def.ID,
		Entry:          trace.Entry,
		Stake:          plan.Stake,
		Cost:           plan.Cost,
		Payout:         plan.Payout,
		Net:            plan.Net(),
		Win:            plan.Win,
		TriggeredBonus: trace.TriggeredBonus,
		FreeSpins:      trace.FreeSpins,
		Cascades:       trace.Cascades,
		Capped:         trace.Capped,
		Balance:        round.BalanceAfter,
		Status:         round.Status,
		ServerSeedHash: round.ServerSeedHash,
		ClientSeed:     clientSeed,
		Nonce:          req.Nonce,
		Trace:          trace,
	}

	e.publish(Event{
		Type:     EventRoundSettled,
		RoundID:  roundID,
		PlayerID: req.PlayerID,
		GameID:   def.ID,
		Result:   result,
	})

	e.log.Info("round settled",
		zap.String("round_id", roundID),
		zap.String("player_id", req.PlayerID),
		zap.String("game_id", def.ID),
		zap.String("entry", string(trace.Entry)),
		zap.Int64("cost", cost.Amount),
		zap.Int64("payout", plan.Payout.Amount),
		zap.Int("cascades", trace.Cascades),
		zap.Int("free_spins", trace.FreeSpins),
		zap.String("status", string(round.Status)))

	return result, nil
}

// Buy purchases entry straight into free spins
func (e *Engine) Buy(ctx context.Context, req *SpinRequest) (*RoundResult, error) {
	r := *req
	r.Buy = true
	r.Ante = false
	return e.Spin(ctx, &r)
}

// settle applies the plan: one credit of the aggregate payout and one loss
// entry. A failed leg leaves the round in settlement_failed for an operator.
func (e *Engine) settle(ctx context.Context, round *domain.Round, plan Settlement) (domain.Money, domain.RoundStatus) {
	balance := round.BalanceAfter
	status := domain.RoundStatusSettled

	fail := func(leg string, err error) {
		status = domain.RoundStatusFailed
		metrics.SettlementFailures.WithLabelValues(round.GameID).Inc()
		e.log.Error("settlement failed",
			zap.String("round_id", round.ID),
			zap.String("player_id", round.PlayerID),
			zap.String("leg", leg),
			zap.Error(err))
		e.audit.Log(ctx, audit.EventSettlementFailed, domain.SeverityCritical,
			fmt.Sprintf("Settlement %s failed for round %s", leg, round.ID),
			map[string]interface{}{
				"round_id": round.ID,
				"leg":      leg,
				"payout":   plan.Payout.Float64(),
				"error":    err.Error(),
			},
			audit.WithPlayer(round.PlayerID), audit.WithComponent("game-engine"))
	}

	if plan.Credit.IsPositive() {
		tx, err := e.wallet.Credit(ctx, round.PlayerID, plan.Credit, plan.Cost, round.ID)
		if err != nil {
			fail("credit", err)
		} else {
			balance = tx.BalanceAfter
		}
	}

	if plan.Loss.IsPositive() {
		if _, err := e.wallet.RecordLoss(ctx, round.PlayerID, plan.Loss, round.ID); err != nil {
			fail("loss", err)
		}
	}

	return balance, status
}

// recordFailed escalates a round record that could not be written after the
// debit (GLI-19 §4.14)
func (e *Engine) recordFailed(ctx context.Context, round *domain.Round, stage string, err error) {
	metrics.SettlementFailures.WithLabelValues(round.GameID).Inc()
	e.log.Error("round record failed",
		zap.String("round_id", round.ID),
		zap.String("player_id", round.PlayerID),
		zap.String("stage", stage),
		zap.Error(err))
	e.audit.Log(ctx, audit.EventRoundRecordFailed, domain.SeverityCritical,
		fmt.Sprintf("Round record %s failed for round %s", stage, round.ID),
		map[string]interface{}{
			"round_id": round.ID,
			"stage":    stage,
			"cost":     round.Cost.Float64(),
			"status":   round.Status,
			"error":    err.Error(),
		},
		audit.WithPlayer(round.PlayerID), audit.WithComponent("game-engine"))
}

// auditRound writes the round's significant events (GLI-19 §2.8.8)
func (e *Engine) auditRound(ctx context.Context, round *domain.Round, plan Settlement) {
	data := map[string]interface{}{
		"round_id": round.ID,
		"game_id":  round.GameID,
		"entry":    round.Entry,
		"cost":     plan.Cost.Float64(),
		"payout":   plan.Payout.Float64(),
		"status":   round.Status,
	}
	player := audit.WithPlayer(round.PlayerID)
	component := audit.WithComponent("game-engine")

	e.audit.Log(ctx, audit.EventRoundSettled, domain.SeverityInfo,
		fmt.Sprintf("Round settled: paid %s for %s", plan.Payout, plan.Cost),
		data, player, component)

	if round.TriggeredBonus {
		e.audit.Log(ctx, audit.EventBonusTriggered, domain.SeverityInfo,
			fmt.Sprintf("Free spins played: %d", round.FreeSpins),
			data, player, component)
	}
	if round.Capped {
		e.audit.Log(ctx, audit.EventMaxWinReached, domain.SeverityWarning,
			fmt.Sprintf("Max win reached: %s", plan.Payout),
			data, player, component)
	}
	if threshold := e.config.LargeWinThreshold; threshold.IsPositive() && plan.Payout.Amount >= threshold.Amount {
		e.audit.Log(ctx, audit.EventLargeWin, domain.SeverityInfo,
			fmt.Sprintf("Large win: %.2f %s", plan.Payout.Float64(), plan.Payout.Currency),
			data, player, component)
	}
}

// observe records round metrics
func (e *Engine) observe(gameID string, trace *slot.RoundTrace, plan Settlement) {
	metrics.RoundsTotal.WithLabelValues(gameID, string(trace.Entry)).Inc()
	for _, s := range trace.Spins {
		metrics.CascadesPerSpin.WithLabelValues(gameID, string(s.Mode)).Observe(float64(len(s.Steps)))
	}
	if trace.FreeSpins > 0 {
		metrics.FreeSpinsPlayed.WithLabelValues(gameID).Add(float64(trace.FreeSpins))
	}
	if plan.Cost.IsPositive() {
		ratio := plan.Payout.Decimal().Div(plan.Cost.Decimal()).InexactFloat64()
		metrics.RoundPayoutRatio.WithLabelValues(gameID).Observe(ratio)
	}
}

func (e *Engine) reject(reason string) {
	metrics.RoundsRejected.WithLabelValues(reason).Inc()
}

// History returns a player's recent rounds (GLI-19 §4.14)
func (e *Engine) History(ctx context.Context, playerID string, limit int) ([]*domain.Round, error) {
	return e.store.List(ctx, playerID, limit)
}

// GetRound returns one of the player's rounds with its trace
func (e *Engine) GetRound(ctx context.Context, playerID, roundID string) (*domain.Round, error) {
	round, err := e.store.Get(ctx, roundID)
	if err != nil {
		return nil, err
	}
	if round.PlayerID != playerID {
		return nil, ErrRoundNotFound
	}
	return round, nil
}
