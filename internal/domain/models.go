// Package domain contains core domain models for the cascade RGS
// Based on GLI-19 Standards for Interactive Gaming Systems V3.0
//
// Key GLI-19 References:
//   - §2.5: Player Account Management
//   - §2.5.6/§2.5.7: Financial Transactions
//   - §4.3.3: Game Cycle Requirements
//   - §4.14: Game Recall
package domain

import (
	"encoding/json"
	"time"
)

// PlayerStatus represents the status of a player account (GLI-19 §2.5)
type PlayerStatus string

const (
	PlayerStatusPending   PlayerStatus = "pending"
	PlayerStatusActive    PlayerStatus = "active"
	PlayerStatusSuspended PlayerStatus = "suspended"
	PlayerStatusClosed    PlayerStatus = "closed"
)

// Player represents a registered player (GLI-19 §2.5.2)
type Player struct {
	ID               string       `json:"id" db:"id"`
	Username         string       `json:"username" db:"username"`
	Email            string       `json:"email" db:"email"`
	PasswordHash     string       `json:"-" db:"password_hash"`
	Status           PlayerStatus `json:"status" db:"status"`
	RegistrationDate time.Time    `json:"registration_date" db:"registration_date"`
	LastLoginAt      *time.Time   `json:"last_login_at" db:"last_login_at"`
	CreatedAt        time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at" db:"updated_at"`
}

// SessionStatus represents session state (GLI-19 §2.5.3)
type SessionStatus string

const (
	SessionStatusActive    SessionStatus = "active"
	SessionStatusExpired   SessionStatus = "expired"
	SessionStatusLoggedOut SessionStatus = "logged_out"
)

// Session represents a player session (GLI-19 §2.5.3, §2.5.4)
type Session struct {
	ID             string        `json:"id" db:"id"`
	PlayerID       string        `json:"player_id" db:"player_id"`
	Token          string        `json:"-" db:"token"`
	IPAddress      string        `json:"ip_address" db:"ip_address"`
	UserAgent      string        `json:"user_agent" db:"user_agent"`
	CreatedAt      time.Time     `json:"created_at" db:"created_at"`
	LastActivityAt time.Time     `json:"last_activity_at" db:"last_activity_at"`
	ExpiresAt      time.Time     `json:"expires_at" db:"expires_at"`
	Status         SessionStatus `json:"status" db:"status"`
}

// TransactionType represents transaction types
// GLI-19 §2.5.6 - Financial Transactions: All financial transactions must be logged
type TransactionType string

const (
	TxTypeDeposit TransactionType = "deposit"
	TxTypeWager   TransactionType = "wager"
	TxTypeWin     TransactionType = "win"
	// TxTypeLoss records a round's net loss without moving the balance
	TxTypeLoss TransactionType = "loss"
)

// TransactionStatus represents transaction state
type TransactionStatus string

const (
	TxStatusPending   TransactionStatus = "pending"
	TxStatusCompleted TransactionStatus = "completed"
	TxStatusFailed    TransactionStatus = "failed"
)

// Transaction represents a financial transaction (GLI-19 §2.5.6, §2.5.7)
type Transaction struct {
	ID            string            `json:"id" db:"id"`
	PlayerID      string            `json:"player_id" db:"player_id"`
	Type          TransactionType   `json:"type" db:"type"`
	Amount        Money             `json:"amount" db:"amount"`
	BalanceBefore Money             `json:"balance_before" db:"balance_before"`
	BalanceAfter  Money             `json:"balance_after" db:"balance_after"`
	Status        TransactionStatus `json:"status" db:"status"`
	Reference     string            `json:"reference" db:"reference"`
	Description   string            `json:"description" db:"description"`
	CreatedAt     time.Time         `json:"created_at" db:"created_at"`
	CompletedAt   *time.Time        `json:"completed_at" db:"completed_at"`
}

// RoundStatus represents game round state (GLI-19 §4.3.3)
type RoundStatus string

const (
	// RoundStatusOpen means the stake is debited and settlement is pending
	RoundStatusOpen    RoundStatus = "open"
	RoundStatusSettled RoundStatus = "settled"
	RoundStatusFailed  RoundStatus = "settlement_failed"
)

// Round is one paid game round: a base spin plus any free-spin sequence it
// triggered, settled once (GLI-19 §4.3.3)
type Round struct {
	ID             string          `json:"id" db:"id"`
	PlayerID       string          `json:"player_id" db:"player_id"`
	GameID         string          `json:"game_id" db:"game_id"`
	Entry          string          `json:"entry" db:"entry"`
	Stake          Money           `json:"stake" db:"stake"`
	Cost           Money           `json:"cost" db:"cost"`
	Payout         Money           `json:"payout" db:"payout"`
	TriggeredBonus bool            `json:"triggered_bonus" db:"triggered_bonus"`
	FreeSpins      int             `json:"free_spins" db:"free_spins"`
	Cascades       int             `json:"cascades" db:"cascades"`
	Capped         bool            `json:"capped" db:"capped"`
	ServerSeed     string          `json:"server_seed" db:"server_seed"`
	ServerSeedHash string          `json:"server_seed_hash" db:"server_seed_hash"`
	ClientSeed     string          `json:"client_seed" db:"client_seed"`
	Nonce          uint64          `json:"nonce" db:"nonce"`
	Trace          json.RawMessage `json:"trace,omitempty" db:"trace"`
	Status         RoundStatus     `json:"status" db:"status"`
	BalanceBefore  Money           `json:"balance_before" db:"balance_before"`
	BalanceAfter   Money           `json:"balance_after" db:"balance_after"`
	StartedAt      time.Time       `json:"started_at" db:"started_at"`
	SettledAt      *time.Time      `json:"settled_at,omitempty" db:"settled_at"`
}

// Game represents a game listing
type Game struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	Strategy    string `json:"strategy"`
	Multipliers string `json:"multipliers"`
	Rows        int    `json:"rows"`
	Cols        int    `json:"cols"`
	MinBet      Money  `json:"min_bet"`
	MaxBet      Money  `json:"max_bet"`
	AnteCost    string `json:"ante_cost"`
	BuyCost     string `json:"buy_cost"`
	Enabled     bool   `json:"enabled"`
}

// EventSeverity represents audit event severity
type EventSeverity string

const (
	SeverityInfo     EventSeverity = "info"
	SeverityWarning  EventSeverity = "warning"
	SeverityError    EventSeverity = "error"
	SeverityCritical EventSeverity = "critical"
)

// AuditEvent represents a significant event
// GLI-19 §2.8.8 - Significant Event Information: System must log all significant events
// including program errors, large wins, and configuration changes
type AuditEvent struct {
	ID          string          `json:"id" db:"id"`
	Type        string          `json:"type" db:"type"`
	Severity    EventSeverity   `json:"severity" db:"severity"`
	Timestamp   time.Time       `json:"timestamp" db:"timestamp"`
	PlayerID    *string         `json:"player_id,omitempty" db:"player_id"`
	SessionID   *string         `json:"session_id,omitempty" db:"session_id"`
	Description string          `json:"description" db:"description"`
	Data        json.RawMessage `json:"data,omitempty" db:"data"`
	IPAddress   string          `json:"ip_address" db:"ip_address"`
	Component   string          `json:"component" db:"component"`
}

// Balance represents player balance (GLI-19 §2.5.7)
type Balance struct {
	PlayerID  string    `json:"player_id"`
	Available Money     `json:"available"`
	Currency  string    `json:"currency"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GamingSystemStatus represents the overall gaming system state
// GLI-19 §2.4 - Gaming Management: Operator must be able to disable gaming on demand
type GamingSystemStatus struct {
	GamingEnabled   bool       `json:"gaming_enabled"`
	DisabledAt      *time.Time `json:"disabled_at,omitempty"`
	DisabledBy      string     `json:"disabled_by,omitempty"`
	DisabledReason  string     `json:"disabled_reason,omitempty"`
	DisabledGames   []string   `json:"disabled_games"`
	LastStateChange time.Time  `json:"last_state_change"`
}
