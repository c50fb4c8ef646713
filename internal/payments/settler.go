package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"staybook/internal/shared/config"

	"github.com/google/uuid"
)

var (
	ErrDeclined  = errors.New("payment declined")
	ErrTransport = errors.New("payment provider unreachable")
)

// Settler charges a guest's payment token and returns the provider's settlement id
type Settler interface {
	Settle(ctx context.Context, token string, amount float64) (string, error)
}

// NewSettler builds the configured payment collaborator
func NewSettler(cfg config.PaymentConfig) Settler {
	if cfg.Provider == "http" && cfg.URL != "" {
		return NewHTTPSettler(cfg, nil)
	}
	return NewSandboxSettler()
}

// Sandbox tokens with special behaviour. Any other non-empty token settles.
const (
	TokenDecline = "tok_decline"
	TokenTimeout = "tok_timeout"
	TokenFlaky   = "tok_flaky"
)

// SandboxSettler is the development payment provider
type SandboxSettler struct {
	mu    sync.Mutex
	flaky map[string]bool
}

func NewSandboxSettler() *SandboxSettler {
	return &SandboxSettler{flaky: make(map[string]bool)}
}

func (s *SandboxSettler) Settle(ctx context.Context, token string, amount float64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if amount <= 0 {
		return "", fmt.Errorf("%w: amount must be positive", ErrDeclined)
	}

	switch {
	case token == "":
		return "", fmt.Errorf("%w: missing payment token", ErrDeclined)
	case strings.HasPrefix(token, TokenDecline):
		return "", fmt.Errorf("%w: card declined", ErrDeclined)
	case strings.HasPrefix(token, TokenTimeout):
		<-ctx.Done()
		return "", ctx.Err()
	case strings.HasPrefix(token, TokenFlaky):
		s.mu.Lock()
		seen := s.flaky[token]
		s.flaky[token] = true
		s.mu.Unlock()
		if !seen {
			return "", fmt.Errorf("%w: connection reset", ErrTransport)
		}
	}

	return generateSettlementID(), nil
}

// generateSettlementID generates a sandbox settlement id
func generateSettlementID() string {
	timestamp := time.Now().Unix()
	short := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	return fmt.Sprintf("STL_%d_%s", timestamp, strings.ToUpper(short))
}

// HTTPSettler posts charges to an external provider
type HTTPSettler struct {
	url      string
	apiKey   string
	currency string
	client   *http.Client
}

type settleRequest struct {
	Token    string  `json:"token"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

type settleResponse struct {
	SettlementID string `json:"settlement_id"`
	Message      string `json:"message,omitempty"`
}

// NewHTTPSettler creates a provider client. Timeouts come from the caller's context.
func NewHTTPSettler(cfg config.PaymentConfig, client *http.Client) *HTTPSettler {
	if client == nil {
		client = &http.Client{}
	}
	currency := cfg.Currency
	if currency == "" {
		currency = "USD"
	}
	return &HTTPSettler{
		url:      cfg.URL,
		apiKey:   cfg.APIKey,
		currency: currency,
		client:   client,
	}
}

func (s *HTTPSettler) Settle(ctx context.Context, token string, amount float64) (string, error) {
	body, err := json.Marshal(settleRequest{Token: token, Amount: amount, Currency: s.currency})
	if err != nil {
		return "", fmt.Errorf("failed to encode settlement request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build settlement request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	var out settleResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&out)

	switch {
	case resp.StatusCode == http.StatusPaymentRequired:
		return "", fmt.Errorf("%w: %s", ErrDeclined, out.Message)
	case resp.StatusCode >= 500:
		return "", fmt.Errorf("%w: provider returned %d", ErrTransport, resp.StatusCode)
	case resp.StatusCode >= 400:
		return "", fmt.Errorf("%w: provider rejected request with %d", ErrDeclined, resp.StatusCode)
	}

	if decodeErr != nil || out.SettlementID == "" {
		return "", fmt.Errorf("%w: malformed provider response", ErrTransport)
	}
	return out.SettlementID, nil
}
