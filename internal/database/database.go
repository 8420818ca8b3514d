// Package database provides database access for the RGS
package database

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// TestDSNEnv names the variable database-backed tests read their DSN from
const TestDSNEnv = "RGS_TEST_DSN"

// DB wraps the SQL database connection
type DB struct {
	*sql.DB
}

// New creates a new database connection
func New(driver, dsn string) (*DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: db}, nil
}

// Migrate creates all required tables
// Based on GLI-19 §2.8 Information to be Maintained
func (db *DB) Migrate() error {
	schema := `
	-- Players table (GLI-19 §2.5, §2.8.5)
	CREATE TABLE IF NOT EXISTS players (
		id UUID PRIMARY KEY,
		username VARCHAR(255) UNIQUE NOT NULL,
		email VARCHAR(255) UNIQUE NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		status VARCHAR(50) NOT NULL DEFAULT 'active',
		registration_date TIMESTAMP NOT NULL,
		last_login_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	-- Sessions table (GLI-19 §2.5.3)
	CREATE TABLE IF NOT EXISTS sessions (
		id UUID PRIMARY KEY,
		player_id UUID NOT NULL REFERENCES players(id),
		token TEXT NOT NULL,
		ip_address VARCHAR(45) NOT NULL,
		user_agent TEXT,
		created_at TIMESTAMP NOT NULL,
		last_activity_at TIMESTAMP NOT NULL,
		expires_at TIMESTAMP NOT NULL,
		status VARCHAR(50) NOT NULL DEFAULT 'active'
	);

	-- Balances table (GLI-19 §2.5.7)
	CREATE TABLE IF NOT EXISTS balances (
		player_id UUID PRIMARY KEY REFERENCES players(id),
		amount BIGINT NOT NULL DEFAULT 0 CHECK (amount >= 0),
		currency VARCHAR(3) NOT NULL DEFAULT 'USD',
		updated_at TIMESTAMP NOT NULL
	);

	-- Transactions table (GLI-19 §2.5.6, §2.5.7, §2.8.5)
	CREATE TABLE IF NOT EXISTS transactions (
		id UUID PRIMARY KEY,
		player_id UUID NOT NULL REFERENCES players(id),
		type VARCHAR(50) NOT NULL,
		amount BIGINT NOT NULL,
		currency VARCHAR(3) NOT NULL,
		balance_before BIGINT NOT NULL,
		balance_after BIGINT NOT NULL,
		status VARCHAR(50) NOT NULL,
		reference VARCHAR(255),
		description TEXT,
		created_at TIMESTAMP NOT NULL,
		completed_at TIMESTAMP
	);

	-- Rounds table (GLI-19 §4.3.3, §4.14)
	CREATE TABLE IF NOT EXISTS rounds (
		id UUID PRIMARY KEY,
		player_id UUID NOT NULL REFERENCES players(id),
		game_id VARCHAR(255) NOT NULL,
		entry VARCHAR(20) NOT NULL,
		stake BIGINT NOT NULL,
		cost BIGINT NOT NULL,
		payout BIGINT NOT NULL DEFAULT 0,
		currency VARCHAR(3) NOT NULL,
		triggered_bonus BOOLEAN NOT NULL DEFAULT FALSE,
		free_spins INTEGER NOT NULL DEFAULT 0,
		cascades INTEGER NOT NULL DEFAULT 0,
		capped BOOLEAN NOT NULL DEFAULT FALSE,
		server_seed VARCHAR(128) NOT NULL,
		server_seed_hash VARCHAR(64) NOT NULL,
		client_seed VARCHAR(128) NOT NULL,
		nonce BIGINT NOT NULL,
		trace JSONB,
		status VARCHAR(50) NOT NULL,
		balance_before BIGINT NOT NULL,
		balance_after BIGINT NOT NULL,
		started_at TIMESTAMP NOT NULL,
		settled_at TIMESTAMP
	);

	-- Player limits (GLI-19 §2.5.5)
	CREATE TABLE IF NOT EXISTS player_limits (
		player_id UUID NOT NULL REFERENCES players(id),
		kind VARCHAR(20) NOT NULL,
		period VARCHAR(20) NOT NULL,
		amount BIGINT,
		pending_amount BIGINT,
		pending_at TIMESTAMP,
		updated_at TIMESTAMP NOT NULL,
		PRIMARY KEY (player_id, kind, period)
	);

	-- Self exclusions (GLI-19 §2.5.5.c)
	CREATE TABLE IF NOT EXISTS self_exclusions (
		id UUID PRIMARY KEY,
		player_id UUID NOT NULL REFERENCES players(id),
		reason TEXT,
		started_at TIMESTAMP NOT NULL,
		expires_at TIMESTAMP
	);

	-- Audit Events table (GLI-19 §2.8.8)
	CREATE TABLE IF NOT EXISTS audit_events (
		id UUID PRIMARY KEY,
		type VARCHAR(100) NOT NULL,
		severity VARCHAR(20) NOT NULL,
		timestamp TIMESTAMP NOT NULL,
		player_id UUID,
		session_id UUID,
		description TEXT NOT NULL,
		data JSONB,
		ip_address VARCHAR(45),
		component VARCHAR(100) NOT NULL
	);

	-- Failed Login Attempts table (GLI-19 §2.8.8)
	CREATE TABLE IF NOT EXISTS failed_logins (
		id UUID PRIMARY KEY,
		username VARCHAR(255) NOT NULL,
		ip_address VARCHAR(45) NOT NULL,
		attempted_at TIMESTAMP NOT NULL
	);

	-- Gaming control state (GLI-19 §2.4)
	CREATE TABLE IF NOT EXISTS system_state (
		key VARCHAR(100) PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		updated_by VARCHAR(255) NOT NULL
	);

	CREATE TABLE IF NOT EXISTS disabled_games (
		game_id VARCHAR(255) PRIMARY KEY,
		reason TEXT,
		disabled_at TIMESTAMP NOT NULL,
		disabled_by VARCHAR(255) NOT NULL
	);

	-- Indexes for performance
	CREATE INDEX IF NOT EXISTS idx_sessions_player ON sessions(player_id);
	CREATE INDEX IF NOT EXISTS idx_transactions_player ON transactions(player_id);
	CREATE INDEX IF NOT EXISTS idx_transactions_created ON transactions(created_at);
	CREATE INDEX IF NOT EXISTS idx_rounds_player ON rounds(player_id, started_at);
	CREATE INDEX IF NOT EXISTS idx_audit_events_timestamp ON audit_events(timestamp);
	CREATE INDEX IF NOT EXISTS idx_audit_events_player ON audit_events(player_id);
	CREATE INDEX IF NOT EXISTS idx_failed_logins_username ON failed_logins(username, attempted_at);
	CREATE INDEX IF NOT EXISTS idx_self_exclusions_player ON self_exclusions(player_id);
	`

	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// CleanData truncates all tables without dropping them (for testing)
func (db *DB) CleanData() error {
	_, err := db.Exec(`
		TRUNCATE TABLE disabled_games, system_state, failed_logins, audit_events, self_exclusions,
		               player_limits, rounds, transactions, balances, sessions, players CASCADE;
	`)
	return err
}

// CreatePlayer inserts an active player with an opening balance (for testing
// and operator seeding)
func (db *DB) CreatePlayer(id, username string, balance int64, currency string) error {
	_, err := db.Exec(`
		INSERT INTO players (id, username, email, password_hash, status, registration_date, created_at, updated_at)
		VALUES ($1, $2, $3, 'seeded', 'active', NOW(), NOW(), NOW())
	`, id, username, username+"@example.com")
	if err != nil {
		return fmt.Errorf("failed to create player: %w", err)
	}
	_, err = db.Exec(`
		INSERT INTO balances (player_id, amount, currency, updated_at) VALUES ($1, $2, $3, NOW())
	`, id, balance, currency)
	if err != nil {
		return fmt.Errorf("failed to create balance: %w", err)
	}
	return nil
}
