// Package walletapi provides a client for an operator's seamless wallet API.
//
// The remote gaming server never holds player funds in this mode: every
// round is one /debit of the amount charged, then either one /credit of the
// aggregate win or one /loss entry, each carrying the round id.
//
// # Authentication
//
// All API requests are authenticated using:
//   - API Key: Sent in the x-api-key header
//   - HMAC Signature: SHA256 hash of the request body, sent in x-api-hmac header
//
// # Basic Usage
//
//	client := walletapi.NewClient(&walletapi.ClientConfig{
//	    BaseURL:   "https://wallet.operator.example",
//	    APIKey:    "your-api-key",
//	    APISecret: "your-api-secret",
//	})
//
//	result, err := client.Debit(ctx, &walletapi.DebitRequest{
//	    PlayerID: playerID,
//	    RoundID:  roundID,
//	    Amount:   "10.00",
//	    Currency: "USD",
//	})
//
// # Error Handling
//
// API errors are returned as *APIError with a Code field indicating the error type:
//
//	var apiErr *walletapi.APIError
//	if errors.As(err, &apiErr) && apiErr.Code == walletapi.ErrInsufficientBalance {
//	    // Handle insufficient funds
//	}
package walletapi
