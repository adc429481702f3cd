package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/pquerna/otp/totp"

	"scalping-systemv1/internal/model"
)

// RESTConfig holds credentials and endpoints for the REST gateway.
type RESTConfig struct {
	BaseURL    string
	APIKey     string
	ClientCode string
	Password   string
	// TOTPSecret generates the rolling login code for session auth.
	TOTPSecret string
	Timeout    time.Duration
}

// RESTGateway talks to the brokerage order API over HTTPS. A session token is
// established lazily with a TOTP login and refreshed on 401.
type RESTGateway struct {
	cfg    RESTConfig
	client *http.Client

	mu        sync.Mutex
	authToken string
}

// NewRESTGateway creates a REST gateway. No network calls happen until the
// first order.
func NewRESTGateway(cfg RESTConfig) *RESTGateway {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 7 * time.Second
	}
	return &RESTGateway{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

// login establishes a session using the client code, password, and a fresh
// TOTP code.
func (g *RESTGateway) login(ctx context.Context) error {
	code, err := totp.GenerateCode(g.cfg.TOTPSecret, time.Now())
	if err != nil {
		return fmt.Errorf("broker: totp: %w", err)
	}

	var resp struct {
		Data struct {
			AuthToken string `json:"auth_token"`
		} `json:"data"`
	}
	err = g.post(ctx, "/session/login", map[string]string{
		"client_code": g.cfg.ClientCode,
		"password":    g.cfg.Password,
		"totp":        code,
	}, &resp, "")
	if err != nil {
		return fmt.Errorf("broker: login: %w", err)
	}
	if resp.Data.AuthToken == "" {
		return fmt.Errorf("broker: login: empty auth token")
	}

	g.mu.Lock()
	g.authToken = resp.Data.AuthToken
	g.mu.Unlock()
	log.Printf("[broker] session established for %s", g.cfg.ClientCode)
	return nil
}

func (g *RESTGateway) token(ctx context.Context) (string, error) {
	g.mu.Lock()
	tok := g.authToken
	g.mu.Unlock()
	if tok != "" {
		return tok, nil
	}
	if err := g.login(ctx); err != nil {
		return "", err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.authToken, nil
}

func (g *RESTGateway) SubmitMarketOrder(ctx context.Context, symbol string, qty int64, side model.Side) (string, error) {
	tok, err := g.token(ctx)
	if err != nil {
		return "", err
	}

	var resp struct {
		Data struct {
			OrderID string `json:"order_id"`
		} `json:"data"`
	}
	err = g.post(ctx, "/orders", map[string]any{
		"symbol":     symbol,
		"qty":        qty,
		"side":       string(side),
		"order_type": "MARKET",
		"product":    "INTRADAY",
	}, &resp, tok)
	if err != nil {
		return "", fmt.Errorf("broker: submit %s %s: %w", side, symbol, err)
	}
	if resp.Data.OrderID == "" {
		return "", fmt.Errorf("broker: submit %s %s: no order id in response", side, symbol)
	}
	return resp.Data.OrderID, nil
}

func (g *RESTGateway) GetOrderFill(ctx context.Context, orderID string) (float64, bool, error) {
	tok, err := g.token(ctx)
	if err != nil {
		return 0, false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.cfg.BaseURL+"/orders/"+orderID, nil)
	if err != nil {
		return 0, false, fmt.Errorf("broker: order status request: %w", err)
	}
	g.setHeaders(req, tok)

	httpResp, err := g.client.Do(req)
	if err != nil {
		return 0, false, fmt.Errorf("broker: order status: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode == http.StatusUnauthorized {
		g.mu.Lock()
		g.authToken = "" // force re-login on next call
		g.mu.Unlock()
		return 0, false, fmt.Errorf("broker: order status: session expired")
	}
	if httpResp.StatusCode != http.StatusOK {
		return 0, false, fmt.Errorf("broker: order status: unexpected status %d", httpResp.StatusCode)
	}

	var resp struct {
		Data struct {
			Status   string  `json:"status"` // OPEN, COMPLETE, REJECTED
			AvgPrice float64 `json:"avg_price"`
		} `json:"data"`
	}
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return 0, false, fmt.Errorf("broker: order status decode: %w", err)
	}

	switch strings.ToUpper(resp.Data.Status) {
	case "COMPLETE":
		return resp.Data.AvgPrice, true, nil
	case "REJECTED", "CANCELLED":
		return 0, false, ErrRejected
	default:
		return 0, false, nil // still pending
	}
}

func (g *RESTGateway) post(ctx context.Context, path string, payload any, out any, tok string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	g.setHeaders(req, tok)

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, snippet)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (g *RESTGateway) setHeaders(req *http.Request, tok string) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", g.cfg.APIKey)
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
}
