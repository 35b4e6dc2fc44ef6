package paygate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// ErrGatewayUnavailable indicates a transient failure talking to the payment
// gateway (network, auth, 5xx). Verification may be retried; the order stays
// pending and the user is never re-charged.
var ErrGatewayUnavailable = errors.New("payment gateway unavailable")

const (
	tokenCacheKey = "paygate:access_token"
	statusDone    = "COMPLETED"
)

// Config holds payment gateway configuration
type Config struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
}

// Client talks to the external payment gateway. Credentials are server-held;
// client-supplied tokens are never accepted.
type Client struct {
	httpClient *http.Client
	config     Config
	redis      *redis.Client

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// VerificationResult is the outcome of independently checking a gateway
// transaction against the gateway's own records.
type VerificationResult struct {
	Verified bool   `json:"verified"`
	Reason   string `json:"reason,omitempty"`
	TxnID    string `json:"txn_id"`
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
}

// GatewayOrder mirrors the gateway's order resource
type GatewayOrder struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	PurchaseUnits []struct {
		Amount struct {
			CurrencyCode string `json:"currency_code"`
			Value        string `json:"value"`
		} `json:"amount"`
	} `json:"purchase_units"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// NewClient creates a gateway client. The Redis client is optional; when nil
// the OAuth token is cached in memory only.
func NewClient(cfg Config, rdb *redis.Client) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		config:     cfg,
		redis:      rdb,
	}
}

// Verify fetches the transaction from the gateway and checks that it actually
// completed for the expected amount and currency. Client-supplied amounts are
// never trusted; the comparison runs against the gateway's record.
func (c *Client) Verify(ctx context.Context, txnID string, expectedAmount float64, expectedCurrency string) (*VerificationResult, error) {
	if strings.TrimSpace(txnID) == "" {
		return &VerificationResult{Verified: false, Reason: "empty transaction id", TxnID: txnID}, nil
	}

	gwOrder, err := c.GetOrder(ctx, txnID)
	if err != nil {
		return nil, err
	}

	result := &VerificationResult{
		TxnID:  txnID,
		Status: gwOrder.Status,
	}
	if len(gwOrder.PurchaseUnits) == 0 {
		result.Reason = "gateway order has no purchase units"
		return result, nil
	}
	result.Amount = gwOrder.PurchaseUnits[0].Amount.Value
	result.Currency = gwOrder.PurchaseUnits[0].Amount.CurrencyCode

	if gwOrder.Status != statusDone {
		result.Reason = fmt.Sprintf("transaction status is %q, want %q", gwOrder.Status, statusDone)
		return result, nil
	}
	if !strings.EqualFold(result.Currency, expectedCurrency) {
		result.Reason = fmt.Sprintf("currency mismatch: gateway %q, expected %q", result.Currency, expectedCurrency)
		return result, nil
	}

	actual, err := ParseAmount(result.Amount)
	if err != nil {
		result.Reason = fmt.Sprintf("gateway returned unparsable amount %q", result.Amount)
		return result, nil
	}
	expected, err := ParseAmount(fmt.Sprintf("%.2f", expectedAmount))
	if err != nil {
		return nil, fmt.Errorf("invalid expected amount: %w", err)
	}
	if !AmountsMatch(expected, actual) {
		result.Reason = fmt.Sprintf("amount mismatch: gateway %s, expected %s", result.Amount, FormatAmount(expected))
		return result, nil
	}

	result.Verified = true
	return result, nil
}

// GetOrder fetches an order by id from the gateway
func (c *Client) GetOrder(ctx context.Context, id string) (*GatewayOrder, error) {
	body, status, err := c.doAuthorized(ctx, http.MethodGet, "/v2/checkout/orders/"+url.PathEscape(id))
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, fmt.Errorf("%w: transaction %s not found on gateway", ErrGatewayUnavailable, id)
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("%w: gateway returned status %d", ErrGatewayUnavailable, status)
	}

	var out GatewayOrder
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("%w: unparsable gateway response", ErrGatewayUnavailable)
	}
	return &out, nil
}

func (c *Client) doAuthorized(ctx context.Context, method, path string) ([]byte, int, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, 0, err
	}

	body, status, err := c.do(ctx, method, path, token)
	if err != nil {
		return nil, 0, err
	}
	if status == http.StatusUnauthorized {
		// Token revoked upstream; refresh once and retry
		c.invalidateToken(ctx)
		token, err = c.accessToken(ctx)
		if err != nil {
			return nil, 0, err
		}
		return c.do(ctx, method, path, token)
	}
	return body, status, nil
}

func (c *Client) do(ctx context.Context, method, path, token string) ([]byte, int, error) {
	base := strings.TrimRight(c.config.BaseURL, "/")
	req, err := http.NewRequestWithContext(ctx, method, base+path, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	return body, resp.StatusCode, nil
}

// accessToken returns a cached OAuth token or exchanges credentials for a new
// one (client_credentials grant).
func (c *Client) accessToken(ctx context.Context) (string, error) {
	if c.redis != nil {
		if token, err := c.redis.Get(ctx, tokenCacheKey).Result(); err == nil && token != "" {
			return token, nil
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && time.Now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	base := strings.TrimRight(c.config.BaseURL, "/")
	form := strings.NewReader("grant_type=client_credentials")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/v1/oauth2/token", form)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	req.SetBasicAuth(c.config.ClientID, c.config.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: credential exchange returned status %d", ErrGatewayUnavailable, resp.StatusCode)
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil || tok.AccessToken == "" {
		return "", fmt.Errorf("%w: unparsable token response", ErrGatewayUnavailable)
	}

	ttl := time.Duration(tok.ExpiresIn) * time.Second
	if ttl > time.Minute {
		ttl -= time.Minute // refresh ahead of expiry
	}
	c.token = tok.AccessToken
	c.tokenExpiry = time.Now().Add(ttl)

	if c.redis != nil {
		if err := c.redis.Set(ctx, tokenCacheKey, tok.AccessToken, ttl).Err(); err != nil {
			log.Warn().Err(err).Msg("Failed to cache gateway token in Redis")
		}
	}
	return c.token, nil
}

func (c *Client) invalidateToken(ctx context.Context) {
	c.mu.Lock()
	c.token = ""
	c.tokenExpiry = time.Time{}
	c.mu.Unlock()
	if c.redis != nil {
		c.redis.Del(ctx, tokenCacheKey)
	}
}
