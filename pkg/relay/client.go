package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/safekit/safed/pkg/ethtypes"
)

// Client talks to the transaction relay over HTTP/JSON.
type Client struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

// NewClient builds a relay client for the given base URL.
func NewClient(baseURL string, timeout time.Duration, log zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		log:     log.With().Str("component", "relay").Logger(),
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("relay: encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("relay: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrNetwork, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		taxonomy := ErrClient
		if resp.StatusCode >= 500 {
			taxonomy = ErrServer
		}
		c.log.Warn().Int("status", resp.StatusCode).Str("path", path).Msg("relay request failed")
		return fmt.Errorf("%w: %s %s: status %d: %s", taxonomy, method, path, resp.StatusCode, payload)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response of %s: %v", ErrClient, path, err)
	}
	return nil
}

// CreateSafeCreationTransaction requests a creation quote.
func (c *Client) CreateSafeCreationTransaction(ctx context.Context, req SafeCreationRequest) (*SafeCreationResponse, error) {
	var out SafeCreationResponse
	if err := c.do(ctx, http.MethodPost, "/api/v2/safes/", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// StartSafeCreation notifies the relay that the safe is funded and the
// creation transaction may be broadcast. Repeating the call for a funded
// safe is accepted by the relay.
func (c *Client) StartSafeCreation(ctx context.Context, safe ethtypes.Address) error {
	path := fmt.Sprintf("/api/v2/safes/%s/funded/", safe)
	return c.do(ctx, http.MethodPut, path, nil, nil)
}

// SafeCreationTransactionHash polls for the hash of the broadcast creation
// transaction. Returns "" while the relay has not submitted it yet.
func (c *Client) SafeCreationTransactionHash(ctx context.Context, safe ethtypes.Address) (ethtypes.TransactionHash, error) {
	var out struct {
		TxHash string `json:"txHash"`
	}
	path := fmt.Sprintf("/api/v2/safes/%s/funded/", safe)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return "", err
	}
	return ethtypes.TransactionHash(out.TxHash), nil
}

// EstimateTransaction requests a gas quote for one wallet transaction.
func (c *Client) EstimateTransaction(ctx context.Context, req EstimationRequest) (*Estimation, error) {
	var out Estimation
	path := fmt.Sprintf("/api/v2/safes/%s/transactions/estimate/", req.SafeAddress)
	if err := c.do(ctx, http.MethodPost, path, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SubmitTransaction asks the relay to broadcast a signed transaction.
func (c *Client) SubmitTransaction(ctx context.Context, req SubmissionRequest) (*SubmissionResponse, error) {
	var out SubmissionResponse
	path := fmt.Sprintf("/api/v1/safes/%s/transactions/", req.SafeAddress)
	if err := c.do(ctx, http.MethodPost, path, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
