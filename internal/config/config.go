// Package config provides configuration management for the RGS
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Wallet modes
const (
	WalletModeLocal  = "local"
	WalletModeRemote = "remote"
)

// Config holds all configuration for the RGS
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Game     GameConfig
	Wallet   WalletConfig
	Operator OperatorConfig
	Log      LogConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver string
	DSN    string
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret         string
	TokenExpiry       time.Duration
	SessionTimeout    time.Duration
	MaxFailedAttempts int
	LockoutDuration   time.Duration
}

// GameConfig holds game-related configuration
type GameConfig struct {
	DefaultCurrency string
	// GamesFile optionally replaces the built-in catalog with a YAML file
	GamesFile string
	// LargeWinThreshold is the payout in major units above which a round is
	// audited as a large win (GLI-19 §2.8.8)
	LargeWinThreshold float64
}

// WalletConfig selects the wallet backing the engine
type WalletConfig struct {
	Mode      string
	BaseURL   string
	APIKey    string
	APISecret string
	Timeout   time.Duration
	Retries   int
}

// OperatorConfig guards the operator control routes.
// An empty key leaves the routes unregistered.
type OperatorConfig struct {
	APIKey string
}

// LogConfig holds logger settings
type LogConfig struct {
	Level       string
	Format      string
	Environment string
}

// Load reads an optional .env file and then the environment, with defaults
func Load() *Config {
	// a missing .env is normal outside development
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port:         getEnv("RGS_PORT", "8080"),
			ReadTimeout:  getDuration("RGS_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getDuration("RGS_WRITE_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Driver: getEnv("RGS_DB_DRIVER", "postgres"),
			DSN:    getEnv("RGS_DB_DSN", "host=localhost dbname=rgs sslmode=disable"),
		},
		Auth: AuthConfig{
			JWTSecret:         getEnv("RGS_JWT_SECRET", "rgs-dev-secret-change-in-production"),
			TokenExpiry:       getDuration("RGS_TOKEN_EXPIRY", 24*time.Hour),
			SessionTimeout:    getDuration("RGS_SESSION_TIMEOUT", 30*time.Minute),
			MaxFailedAttempts: getInt("RGS_MAX_FAILED_ATTEMPTS", 3),
			LockoutDuration:   getDuration("RGS_LOCKOUT_DURATION", 30*time.Minute),
		},
		Game: GameConfig{
			DefaultCurrency:   getEnv("RGS_CURRENCY", "USD"),
			GamesFile:         getEnv("RGS_GAMES_FILE", ""),
			LargeWinThreshold: getFloat("RGS_LARGE_WIN_THRESHOLD", 10000),
		},
		Wallet: WalletConfig{
			Mode:      getEnv("RGS_WALLET_MODE", WalletModeLocal),
			BaseURL:   getEnv("RGS_WALLET_URL", ""),
			APIKey:    getEnv("RGS_WALLET_API_KEY", ""),
			APISecret: getEnv("RGS_WALLET_API_SECRET", ""),
			Timeout:   getDuration("RGS_WALLET_TIMEOUT", 10*time.Second),
			Retries:   getInt("RGS_WALLET_RETRIES", 3),
		},
		Operator: OperatorConfig{
			APIKey: getEnv("RGS_OPERATOR_KEY", ""),
		},
		Log: LogConfig{
			Level:       getEnv("RGS_LOG_LEVEL", "info"),
			Format:      getEnv("RGS_LOG_FORMAT", "json"),
			Environment: getEnv("RGS_ENV", "dev"),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return defaultValue
}

func getFloat(key string, defaultValue float64) float64 {
	if f, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return f
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return defaultValue
}
