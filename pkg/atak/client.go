// Package atak is a client for the Atak ERP customer REST API.
package atak

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/onboard-cli/internal/resilience"
)

const provider = "atak"

// invalidTokenSignatures mark a response whose bearer token was rejected.
// The ERP sometimes reports this with HTTP 200.
var invalidTokenSignatures = []string{
	"token inválido",
	"token invalido",
	"utilizado em outro terminal",
	"invalid token",
}

// Client defines the Atak customer operations.
type Client interface {
	Login(ctx context.Context) error
	FindCustomers(ctx context.Context, cnpj, kind string) ([]Customer, error)
	GetCustomer(ctx context.Context, id string) (*Customer, error)
	CreateCustomer(ctx context.Context, c Customer) (*Customer, error)
	UpdateCustomer(ctx context.Context, id string, c Customer) (*Customer, error)
}

// Credentials authenticate against POST /auth/token.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"`
}

type listResponse struct {
	Data []Customer `json:"data"`
}

// ClientOption configures the Atak client.
type ClientOption func(*httpClient)

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithToken seeds the client with a pre-issued token.
func WithToken(token string) ClientOption {
	return func(c *httpClient) {
		c.token = token
	}
}

// WithRateLimit overrides the default rate limit (5 req/s).
func WithRateLimit(rps float64) ClientOption {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		} else {
			c.limiter = nil
		}
	}
}

type httpClient struct {
	baseURL string
	creds   Credentials
	http    *http.Client
	limiter *rate.Limiter

	mu    sync.Mutex
	token string
}

// NewClient creates a new Atak client. The first call logs in lazily unless a
// token was supplied with WithToken.
func NewClient(baseURL string, creds Credentials, opts ...ClientOption) Client {
	c := &httpClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		creds:   creds,
		http:    &http.Client{Timeout: 60 * time.Second},
		limiter: rate.NewLimiter(5, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// wait blocks until the rate limiter allows one event, or ctx is cancelled.
func (c *httpClient) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

func (c *httpClient) currentToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

func (c *httpClient) Login(ctx context.Context) error {
	if err := c.wait(ctx); err != nil {
		return eris.Wrap(err, "atak: rate limit")
	}
	buf, err := json.Marshal(c.creds)
	if err != nil {
		return eris.Wrap(err, "atak: marshal credentials")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/token", bytes.NewReader(buf))
	if err != nil {
		return eris.Wrap(err, "atak: create login request")
	}
	req.Header.Set("Content-Type", "application/json")

	status, data, err := c.send(req)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		e := resilience.FromHTTPStatus(provider, status, data, nil)
		if status == http.StatusBadRequest {
			e = resilience.NewAuthError(provider, eris.New(strings.TrimSpace(string(data))))
		}
		return eris.Wrap(e, "atak: login")
	}

	var tok tokenResponse
	if err := json.Unmarshal(data, &tok); err != nil || tok.Token == "" {
		return resilience.NewAuthError(provider, eris.Errorf("atak: login returned no token: %s", strings.TrimSpace(string(data))))
	}

	c.mu.Lock()
	c.token = tok.Token
	c.mu.Unlock()
	zap.L().Debug("atak: logged in", zap.Int("expires_in", tok.ExpiresIn))
	return nil
}

func (c *httpClient) FindCustomers(ctx context.Context, cnpj, kind string) ([]Customer, error) {
	q := url.Values{}
	q.Set("cnpj", cnpj)
	q.Set("tipo", kind)

	var out listResponse
	if err := c.call(ctx, http.MethodGet, "/clientes?"+q.Encode(), nil, &out); err != nil {
		if resilience.KindOf(err) == resilience.KindNotFound {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "atak: find customers cnpj=%s tipo=%s", cnpj, kind)
	}
	return out.Data, nil
}

func (c *httpClient) GetCustomer(ctx context.Context, id string) (*Customer, error) {
	var out Customer
	if err := c.call(ctx, http.MethodGet, "/clientes/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, eris.Wrapf(err, "atak: get customer %s", id)
	}
	return &out, nil
}

func (c *httpClient) CreateCustomer(ctx context.Context, cust Customer) (*Customer, error) {
	var out Customer
	if err := c.call(ctx, http.MethodPost, "/clientes", cust, &out); err != nil {
		return nil, eris.Wrapf(err, "atak: create customer %s", cust.CNPJ)
	}
	return &out, nil
}

func (c *httpClient) UpdateCustomer(ctx context.Context, id string, cust Customer) (*Customer, error) {
	var out Customer
	if err := c.call(ctx, http.MethodPut, "/clientes/"+url.PathEscape(id), cust, &out); err != nil {
		return nil, eris.Wrapf(err, "atak: update customer %s", id)
	}
	return &out, nil
}

// call performs an authenticated request. An invalid-token response triggers
// one re-login and exactly one retry of the same request.
func (c *httpClient) call(ctx context.Context, method, path string, body, out any) error {
	if c.currentToken() == "" {
		if err := c.Login(ctx); err != nil {
			return err
		}
	}

	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return eris.Wrap(err, "atak: marshal request")
		}
	}

	status, data, err := c.authed(ctx, method, path, payload)
	if err != nil {
		return err
	}
	if tokenRejected(status, data) {
		zap.L().Info("atak: token rejected, logging in again", zap.String("path", path))
		if err := c.Login(ctx); err != nil {
			return err
		}
		status, data, err = c.authed(ctx, method, path, payload)
		if err != nil {
			return err
		}
		if tokenRejected(status, data) {
			return resilience.NewAuthError(provider, eris.New(strings.TrimSpace(string(data))))
		}
	}

	if status < 200 || status >= 300 {
		return resilience.FromHTTPStatus(provider, status, data, nil)
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return resilience.NewValidationError(provider, false, eris.Wrap(err, "atak: decode response"))
	}
	return nil
}

func (c *httpClient) authed(ctx context.Context, method, path string, payload []byte) (int, []byte, error) {
	if err := c.wait(ctx); err != nil {
		return 0, nil, eris.Wrap(err, "atak: rate limit")
	}
	var rdr io.Reader
	if payload != nil {
		rdr = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return 0, nil, eris.Wrap(err, "atak: create request")
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.currentToken())
	return c.send(req)
}

func (c *httpClient) send(req *http.Request) (int, []byte, error) {
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, resilience.NewTransportError(provider, 0, eris.Wrap(err, fmt.Sprintf("atak: %s %s", req.Method, req.URL.Path)))
	}
	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, resilience.NewTransportError(provider, resp.StatusCode, eris.Wrap(err, "atak: read response body"))
	}
	return resp.StatusCode, data, nil
}

func tokenRejected(status int, body []byte) bool {
	if status == http.StatusUnauthorized {
		return true
	}
	lower := strings.ToLower(string(body))
	for _, sig := range invalidTokenSignatures {
		if strings.Contains(lower, sig) {
			return true
		}
	}
	return false
}
