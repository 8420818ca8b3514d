package walletapi

import "time"

// Error codes returned by the wallet API
const (
	ErrUnexpectedError          = "UNEXPECTED_ERROR"
	ErrNotAuthorized            = "NOT_AUTHORIZED"
	ErrPlayerNotFound           = "PLAYER_NOT_FOUND"
	ErrInsufficientBalance      = "INSUFFICIENT_BALANCE"
	ErrTransactionAlreadyExists = "TRANSACTION_ALREADY_EXISTS"
	ErrInvalidAmount            = "INVALID_AMOUNT"
)

// APIError represents an error response from the API
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

func (e *APIError) Error() string {
	return e.Message
}

// Response wraps the API response with either result or error
type Response[T any] struct {
	Result *T        `json:"result,omitempty"`
	Error  *APIError `json:"error,omitempty"`
}

func (r *Response[T]) unwrap() (*T, error) {
	if r.Error != nil {
		return nil, r.Error
	}
	if r.Result == nil {
		return nil, ErrEmptyResponse
	}
	return r.Result, nil
}

// BalanceRequest is the request body for /balance
type BalanceRequest struct {
	PlayerID string `json:"playerId"`
}

// BalanceResult is the result of a balance query
type BalanceResult struct {
	Balance  string `json:"balance"`
	Currency string `json:"currency"`
}

// DebitRequest is the request body for /debit, sent once per round
type DebitRequest struct {
	PlayerID      string `json:"playerId"`
	RoundID       string `json:"roundId"`
	TransactionID string `json:"transactionId"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
}

// CreditRequest is the request body for /credit, the aggregate win of a round.
// Denominator is the amount the round charged.
type CreditRequest struct {
	PlayerID      string `json:"playerId"`
	RoundID       string `json:"roundId"`
	TransactionID string `json:"transactionId"`
	Amount        string `json:"amount"`
	Denominator   string `json:"denominator"`
	Currency      string `json:"currency"`
}

// LossRequest is the request body for /loss
type LossRequest struct {
	PlayerID      string `json:"playerId"`
	RoundID       string `json:"roundId"`
	TransactionID string `json:"transactionId"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
}

// TransactionResult is the result of /debit, /credit and /loss
type TransactionResult struct {
	TransactionID string `json:"transactionId"`
	Balance       string `json:"balance"`
	BalanceBefore string `json:"balanceBefore,omitempty"`
}

// ClientConfig holds the configuration for the wallet client
type ClientConfig struct {
	BaseURL    string
	APIKey     string
	APISecret  string
	Timeout    time.Duration
	RetryCount int
}

// DefaultConfig returns a default client configuration
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		Timeout:    30 * time.Second,
		RetryCount: 3,
	}
}
