package node

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/rs/zerolog"

	"github.com/safekit/safed/pkg/ethtypes"
	"github.com/safekit/safed/pkg/relay"
)

// Client is a JSON-RPC 2.0 client for a standard Ethereum node.
type Client struct {
	url  string
	http *http.Client
	log  zerolog.Logger
}

// NewClient builds a node client for the given RPC URL.
func NewClient(url string, timeout time.Duration, log zerolog.Logger) *Client {
	return &Client{
		url:  url,
		http: &http.Client{Timeout: timeout},
		log:  log.With().Str("component", "node").Logger(),
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// call performs one JSON-RPC round trip. A null result leaves out at its
// zero value without error; several eth_ methods use null for "not found".
func (c *Client) call(ctx context.Context, method string, params []any, out any) error {
	encoded, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("node: encode %s: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("node: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", relay.ErrNetwork, method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		taxonomy := relay.ErrClient
		if resp.StatusCode >= 500 {
			taxonomy = relay.ErrServer
		}
		return fmt.Errorf("%w: %s: status %d: %s", taxonomy, method, resp.StatusCode, payload)
	}

	var envelope rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("%w: decode %s response: %v", relay.ErrClient, method, err)
	}
	if envelope.Error != nil {
		return fmt.Errorf("%w: %s: rpc error %d: %s", relay.ErrClient, method, envelope.Error.Code, envelope.Error.Message)
	}
	if out == nil || string(envelope.Result) == "null" || len(envelope.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return fmt.Errorf("%w: decode %s result: %v", relay.ErrClient, method, err)
	}
	return nil
}

// Balance reads the ether balance at the latest block. Transient node
// failures are retried a few times before surfacing.
func (c *Client) Balance(ctx context.Context, address ethtypes.Address) (*big.Int, error) {
	var balance *big.Int
	err := retry.Do(
		func() error {
			var quantity string
			if err := c.call(ctx, "eth_getBalance", []any{address.String(), "latest"}, &quantity); err != nil {
				return err
			}
			parsed, err := parseQuantity(quantity)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			balance = parsed
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(200*time.Millisecond),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}
	return balance, nil
}

// Call executes a read-only contract call at the latest block.
func (c *Client) Call(ctx context.Context, to ethtypes.Address, data []byte) ([]byte, error) {
	params := []any{
		map[string]string{"to": to.String(), "data": "0x" + hex.EncodeToString(data)},
		"latest",
	}
	var result string
	if err := c.call(ctx, "eth_call", params, &result); err != nil {
		return nil, err
	}
	return parseData(result)
}

type rpcReceipt struct {
	TransactionHash string `json:"transactionHash"`
	Status          string `json:"status"`
	BlockHash       string `json:"blockHash"`
}

// TransactionReceipt looks up the receipt of a mined transaction. Returns
// (nil, nil) while the transaction is still pending.
func (c *Client) TransactionReceipt(ctx context.Context, hash ethtypes.TransactionHash) (*ethtypes.Receipt, error) {
	var raw *rpcReceipt
	if err := c.call(ctx, "eth_getTransactionReceipt", []any{hash.String()}, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	status := ethtypes.ReceiptFailed
	if parsed, err := parseQuantity(raw.Status); err == nil && parsed.Sign() != 0 {
		status = ethtypes.ReceiptSuccess
	}
	return &ethtypes.Receipt{
		Hash:      ethtypes.TransactionHash(raw.TransactionHash),
		Status:    status,
		BlockHash: raw.BlockHash,
	}, nil
}

type rpcBlock struct {
	Hash      string `json:"hash"`
	Timestamp string `json:"timestamp"`
}

// BlockByHash reads a block header, primarily for its timestamp.
func (c *Client) BlockByHash(ctx context.Context, hash string) (*ethtypes.Block, error) {
	var raw *rpcBlock
	if err := c.call(ctx, "eth_getBlockByHash", []any{hash, false}, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, fmt.Errorf("node: block %s not found", hash)
	}
	timestamp, err := parseQuantity(raw.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("node: block %s: %w", hash, err)
	}
	return &ethtypes.Block{
		Hash:      raw.Hash,
		Timestamp: time.Unix(timestamp.Int64(), 0).UTC(),
	}, nil
}

// parseQuantity decodes a 0x-prefixed hex quantity ("0x0", "0x4b7").
func parseQuantity(s string) (*big.Int, error) {
	trimmed := strings.TrimPrefix(s, "0x")
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	value, ok := new(big.Int).SetString(trimmed, 16)
	if !ok {
		return nil, fmt.Errorf("node: malformed quantity %q", s)
	}
	return value, nil
}

// parseData decodes 0x-prefixed hex data; "0x" decodes to nil.
func parseData(s string) ([]byte, error) {
	trimmed := strings.TrimPrefix(s, "0x")
	if trimmed == "" {
		return nil, nil
	}
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("node: malformed data %q: %w", s, err)
	}
	return decoded, nil
}
