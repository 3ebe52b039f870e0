// Package tokensync keeps the local curated token list in step with the
// remote token registry while preserving the user's whitelist, blacklist
// and ordering choices.
package tokensync

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/safekit/safed/pkg/ethtypes"
	"github.com/safekit/safed/pkg/relay"
)

// RemoteToken is one entry of the remote registry: token metadata plus
// whether the relay accepts it as a fee payment token.
type RemoteToken struct {
	Token ethtypes.Token
	Gas   bool
}

// Source fetches the remote token registry.
type Source interface {
	Tokens(ctx context.Context) ([]RemoteToken, error)
}

// HTTPSource reads the registry from the relay's token endpoint.
type HTTPSource struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

func NewHTTPSource(baseURL string, timeout time.Duration, log zerolog.Logger) *HTTPSource {
	return &HTTPSource{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		log:     log.With().Str("component", "tokensync").Logger(),
	}
}

type tokenPage struct {
	Results []struct {
		ethtypes.Token
		Gas bool `json:"gas"`
	} `json:"results"`
}

// Tokens fetches all registered tokens. Errors follow the relay taxonomy
// so the polling loop can tell transient failures apart.
func (s *HTTPSource) Tokens(ctx context.Context) ([]RemoteToken, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/api/v1/tokens/", nil)
	if err != nil {
		return nil, fmt.Errorf("tokensync: build request: %w", err)
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch tokens: %v", relay.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		taxonomy := relay.ErrClient
		if resp.StatusCode >= 500 {
			taxonomy = relay.ErrServer
		}
		return nil, fmt.Errorf("%w: fetch tokens: status %d: %s", taxonomy, resp.StatusCode, payload)
	}

	var page tokenPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("%w: decode token list: %v", relay.ErrClient, err)
	}
	out := make([]RemoteToken, 0, len(page.Results))
	for _, r := range page.Results {
		out = append(out, RemoteToken{Token: r.Token, Gas: r.Gas})
	}
	return out, nil
}
