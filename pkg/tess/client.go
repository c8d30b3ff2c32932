// Package tess is a client for the TESS AI agent platform: file upload,
// processing and agent execution.
package tess

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/onboard-cli/internal/resilience"
)

const (
	defaultBaseURL = "https://tess.pareto.io/api"
	provider       = "tess"
)

// File status values reported by GET /files/{id}.
const (
	FileStatusWaiting    = "waiting"
	FileStatusProcessing = "processing"
	FileStatusCompleted  = "completed"
	FileStatusFailed     = "failed"
)

// Client defines the TESS API operations.
type Client interface {
	UploadFile(ctx context.Context, path string) (*File, error)
	ProcessFile(ctx context.Context, id int64) (*File, error)
	GetFile(ctx context.Context, id int64) (*File, error)
	ExecuteAgent(ctx context.Context, agentID string, req ExecuteRequest) (*ExecuteResponse, error)
}

// File is an uploaded file.
type File struct {
	ID      int64   `json:"id"`
	Name    string  `json:"filename"`
	Status  string  `json:"status"`
	Credits float64 `json:"credits,omitempty"`
}

// ExecuteRequest is the body for POST /agents/{id}/execute.
type ExecuteRequest struct {
	Prompt        string  `json:"message"`
	Model         string  `json:"model,omitempty"`
	Temperature   string  `json:"temperature,omitempty"`
	FileIDs       []int64 `json:"file_ids"`
	WaitExecution bool    `json:"wait_execution"`
}

// ExecuteResponse is the response of an agent execution.
type ExecuteResponse struct {
	Template  string          `json:"template"`
	Responses []AgentResponse `json:"responses"`
}

// AgentResponse is one execution result.
type AgentResponse struct {
	ID      int64            `json:"id"`
	Status  string           `json:"status"`
	Output  string           `json:"output"`
	Credits float64          `json:"credits"`
	Answers []map[string]any `json:"answers"`
}

// First returns the first response or nil.
func (r *ExecuteResponse) First() *AgentResponse {
	if r == nil || len(r.Responses) == 0 {
		return nil
	}
	return &r.Responses[0]
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

// NewClient creates a new TESS client. Agent executions wait for completion,
// so the default timeout is generous.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 120 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) UploadFile(ctx context.Context, path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "tess: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, eris.Wrap(err, "tess: create form file")
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, eris.Wrap(err, "tess: copy file")
	}
	if err := mw.Close(); err != nil {
		return nil, eris.Wrap(err, "tess: close multipart writer")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/files", &body)
	if err != nil {
		return nil, eris.Wrap(err, "tess: create request")
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out File
	if err := c.do(req, &out); err != nil {
		return nil, eris.Wrap(err, "tess: upload file")
	}
	return &out, nil
}

func (c *httpClient) ProcessFile(ctx context.Context, id int64) (*File, error) {
	var out File
	if err := c.post(ctx, fmt.Sprintf("/files/%d/process", id), struct{}{}, &out); err != nil {
		return nil, eris.Wrapf(err, "tess: process file %d", id)
	}
	return &out, nil
}

func (c *httpClient) GetFile(ctx context.Context, id int64) (*File, error) {
	var out File
	if err := c.get(ctx, fmt.Sprintf("/files/%d", id), &out); err != nil {
		return nil, eris.Wrapf(err, "tess: get file %d", id)
	}
	return &out, nil
}

func (c *httpClient) ExecuteAgent(ctx context.Context, agentID string, req ExecuteRequest) (*ExecuteResponse, error) {
	var out ExecuteResponse
	if err := c.post(ctx, fmt.Sprintf("/agents/%s/execute", agentID), req, &out); err != nil {
		return nil, eris.Wrapf(err, "tess: execute agent %s", agentID)
	}
	return &out, nil
}

func (c *httpClient) post(ctx context.Context, path string, body any, out any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return eris.Wrap(err, "marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

func (c *httpClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	return c.do(req, out)
}

func (c *httpClient) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return resilience.NewTransportError(provider, 0, eris.Wrap(err, "execute request"))
	}
	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resilience.NewTransportError(provider, resp.StatusCode, eris.Wrap(err, "read response body"))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resilience.FromHTTPStatus(provider, resp.StatusCode, data, resp.Header)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return resilience.NewValidationError(provider, false, eris.Wrap(err, "decode response"))
	}
	return nil
}
