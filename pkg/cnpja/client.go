// Package cnpja is a client for the CNPJA company-registry API.
package cnpja

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/onboard-cli/internal/resilience"
)

const (
	defaultBaseURL = "https://api.cnpja.com"
	provider       = "cnpja"
)

// Client defines the CNPJA operations used by the pipeline.
type Client interface {
	// Office fetches a company by CNPJ. The raw response body is returned
	// alongside the decoded value.
	Office(ctx context.Context, cnpj string, opts OfficeOptions) (*Office, []byte, error)
}

// OfficeOptions selects optional datasets on GET /office/{cnpj}.
type OfficeOptions struct {
	// Registrations lists states for state tax registrations ("BR" = all).
	Registrations string
	Suframa       bool
}

// Option configures the httpClient.
type Option func(*httpClient)

// WithBaseURL overrides the default base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a new CNPJA client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Office(ctx context.Context, cnpj string, opts OfficeOptions) (*Office, []byte, error) {
	q := url.Values{}
	if opts.Registrations != "" {
		q.Set("registrations", opts.Registrations)
	}
	if opts.Suframa {
		q.Set("suframa", "true")
	}
	path := "/office/" + url.PathEscape(cnpj)
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, nil, eris.Wrap(err, "cnpja: create request")
	}
	// CNPJA expects the bare key, no scheme.
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, resilience.NewTransportError(provider, 0, eris.Wrap(err, "cnpja: execute request"))
	}
	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, resilience.NewTransportError(provider, resp.StatusCode, eris.Wrap(err, "cnpja: read response body"))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, data, resilience.FromHTTPStatus(provider, resp.StatusCode, data, resp.Header)
	}

	var office Office
	if err := json.Unmarshal(data, &office); err != nil {
		return nil, data, resilience.NewValidationError(provider, false, eris.Wrap(err, fmt.Sprintf("cnpja: decode office %s", cnpj)))
	}
	return &office, data, nil
}
