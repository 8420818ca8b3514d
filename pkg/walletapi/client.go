package walletapi

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrEmptyResponse is returned when the wallet answers with neither result nor error
var ErrEmptyResponse = errors.New("wallet response has no result")

// Client is a seamless wallet API client
type Client struct {
	config     *ClientConfig
	httpClient *http.Client
}

// NewClient creates a new wallet API client
func NewClient(config *ClientConfig) *Client {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// NewClientWithHTTPClient creates a new wallet API client with a custom HTTP client
func NewClientWithHTTPClient(config *ClientConfig, httpClient *http.Client) *Client {
	return &Client{
		config:     config,
		httpClient: httpClient,
	}
}

// Sign computes the HMAC-SHA256 signature of a request body
func Sign(secret string, body []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// VerifySignature checks an x-api-hmac header value in constant time
func VerifySignature(secret string, body []byte, signature string) bool {
	expected, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(body)
	return hmac.Equal(h.Sum(nil), expected)
}

// doRequest performs a signed POST, retrying transport failures and 5xx responses
func (c *Client) doRequest(ctx context.Context, endpoint string, reqBody interface{}, result interface{}) error {
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	signature := Sign(c.config.APISecret, bodyBytes)

	retryCount := c.config.RetryCount
	if retryCount <= 0 {
		retryCount = 1
	}

	var lastErr error
	for i := 0; i < retryCount; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+endpoint, bytes.NewReader(bodyBytes))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-api-key", c.config.APIKey)
		req.Header.Set("x-api-hmac", signature)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response: %w", err)
			continue
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			lastErr = fmt.Errorf("wallet returned %d", resp.StatusCode)
			continue
		}

		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to parse response (status %d): %w", resp.StatusCode, err)
		}
		return nil
	}

	return fmt.Errorf("request failed after %d attempts: %w", retryCount, lastErr)
}

// GetBalance retrieves the player's current balance
func (c *Client) GetBalance(ctx context.Context, playerID string) (*BalanceResult, error) {
	var resp Response[BalanceResult]
	if err := c.doRequest(ctx, "/balance", &BalanceRequest{PlayerID: playerID}, &resp); err != nil {
		return nil, err
	}

	return resp.unwrap()
}

// Debit deducts the amount a round charges
func (c *Client) Debit(ctx context.Context, req *DebitRequest) (*TransactionResult, error) {
	var resp Response[TransactionResult]
	if err := c.doRequest(ctx, "/debit", req, &resp); err != nil {
		return nil, err
	}

	return resp.unwrap()
}

// Credit pays a round's aggregate win
func (c *Client) Credit(ctx context.Context, req *CreditRequest) (*TransactionResult, error) {
	var resp Response[TransactionResult]
	if err := c.doRequest(ctx, "/credit", req, &resp); err != nil {
		return nil, err
	}

	return resp.unwrap()
}

// Loss records a round's net loss
func (c *Client) Loss(ctx context.Context, req *LossRequest) (*TransactionResult, error) {
	var resp Response[TransactionResult]
	if err := c.doRequest(ctx, "/loss", req, &resp); err != nil {
		return nil, err
	}

	return resp.unwrap()
}
