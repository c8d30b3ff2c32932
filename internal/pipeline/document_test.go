package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/onboard-cli/internal/config"
	"github.com/sells-group/onboard-cli/internal/model"
	"github.com/sells-group/onboard-cli/internal/resilience"
	"github.com/sells-group/onboard-cli/pkg/tess"
)

const structuredOutput = "Segue o relatório:\n```json\n" +
	`{"cnpj": "11.222.333/0001-81", "razao_social": "ACME LTDA", "capital_social": 150000.5}` +
	"\n```"

func newTestExtractor(t *testing.T, tc tess.Client, rounds int) (*TessExtractor, string) {
	t.Helper()
	dir := t.TempDir()
	e := NewTessExtractor(tc,
		config.TessConfig{AgentID: "agent-1", Model: "tess-5", Temperature: "0.1", OutputDir: dir},
		config.PipelineConfig{MaxAttempts: 3, RetryDelaySecs: 1, ExtractionAttempts: rounds},
	)
	e.now = func() time.Time { return testNow }
	e.policy.Sleep = func(context.Context, time.Duration) error { return nil }
	return e, dir
}

func expectUpload(tc *mockTessClient, path string) {
	tc.On("UploadFile", mock.Anything, path).Return(&tess.File{ID: 42}, nil)
	tc.On("ProcessFile", mock.Anything, int64(42)).Return(&tess.File{ID: 42, Status: "processing"}, nil)
	tc.On("GetFile", mock.Anything, int64(42)).Return(&tess.File{ID: 42, Status: tess.FileStatusCompleted, Credits: 0.5}, nil)
}

func agentOutput(out string, credits float64) *tess.ExecuteResponse {
	return &tess.ExecuteResponse{Responses: []tess.AgentResponse{{ID: 1, Status: "succeeded", Output: out, Credits: credits}}}
}

func TestTessExtractor_Extract_Structured(t *testing.T) {
	tc := &mockTessClient{}
	expectUpload(tc, "/tmp/a.pdf")
	tc.On("ExecuteAgent", mock.Anything, "agent-1", mock.MatchedBy(func(req tess.ExecuteRequest) bool {
		return req.Model == "tess-5" && req.Temperature == "0.1" && req.WaitExecution &&
			len(req.FileIDs) == 1 && req.FileIDs[0] == 42 && req.Prompt == tess.DefaultPrompt
	})).Return(agentOutput(structuredOutput, 2), nil)

	e, dir := newTestExtractor(t, tc, 2)
	res := e.Extract(context.Background(), model.Document{CNPJ: testCNPJ, FilePath: "/tmp/a.pdf", FileName: "a.pdf"})

	require.True(t, res.Success, res.Error)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, "ACME LTDA", res.Data.Extraction.RazaoSocial.String())
	assert.Equal(t, "150000.5", res.Data.Extraction.CapitalSocial.String())
	assert.Equal(t, "2.5", res.Data.Credits.String())
	assert.Equal(t, structuredOutput, res.Data.RawText)

	want := filepath.Join(dir, testCNPJ+"_20250401T133000Z.txt")
	assert.Equal(t, want, res.Data.SidecarPath)
	body, err := os.ReadFile(want)
	require.NoError(t, err)
	assert.Equal(t, structuredOutput, string(body))
}

func TestTessExtractor_Extract_ResendThenSuccess(t *testing.T) {
	tc := &mockTessClient{}
	expectUpload(tc, "/tmp/a.pdf")
	tc.On("ExecuteAgent", mock.Anything, "agent-1", mock.Anything).
		Return(agentOutput("Não consegui ler o arquivo, por favor envie novamente o PDF.", 1), nil).Once()
	tc.On("ExecuteAgent", mock.Anything, "agent-1", mock.Anything).
		Return(agentOutput(structuredOutput, 2), nil).Once()

	e, _ := newTestExtractor(t, tc, 2)
	res := e.Extract(context.Background(), model.Document{CNPJ: testCNPJ, FilePath: "/tmp/a.pdf"})

	require.True(t, res.Success, res.Error)
	assert.Equal(t, 2, res.Attempts)
	tc.AssertNumberOfCalls(t, "UploadFile", 2)
	tc.AssertNumberOfCalls(t, "ExecuteAgent", 2)
}

func TestTessExtractor_Extract_ResendExhausted(t *testing.T) {
	tc := &mockTessClient{}
	expectUpload(tc, "/tmp/a.pdf")
	tc.On("ExecuteAgent", mock.Anything, "agent-1", mock.Anything).
		Return(agentOutput("Please resend the PDF, the file is corrupted.", 1), nil)

	e, dir := newTestExtractor(t, tc, 2)
	res := e.Extract(context.Background(), model.Document{CNPJ: testCNPJ, FilePath: "/tmp/a.pdf"})

	assert.False(t, res.Success)
	assert.Equal(t, string(resilience.KindValidation), res.ErrorKind)
	assert.Contains(t, res.Error, "Please resend the PDF")
	assert.Equal(t, 2, res.Attempts)
	tc.AssertNumberOfCalls(t, "ExecuteAgent", 2)

	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestTessExtractor_Extract_ShortOutputNotRetried(t *testing.T) {
	tc := &mockTessClient{}
	expectUpload(tc, "/tmp/a.pdf")
	tc.On("ExecuteAgent", mock.Anything, "agent-1", mock.Anything).Return(agentOutput("ok", 0), nil)

	e, _ := newTestExtractor(t, tc, 3)
	res := e.Extract(context.Background(), model.Document{CNPJ: testCNPJ, FilePath: "/tmp/a.pdf"})

	assert.False(t, res.Success)
	assert.Equal(t, "validation", res.ErrorKind)
	tc.AssertNumberOfCalls(t, "ExecuteAgent", 1)
}

func TestTessExtractor_Extract_TransportRetried(t *testing.T) {
	tc := &mockTessClient{}
	expectUpload(tc, "/tmp/a.pdf")
	tc.On("ExecuteAgent", mock.Anything, "agent-1", mock.Anything).
		Return(nil, resilience.NewTransportError("tess", 502, errors.New("bad gateway"))).Once()
	tc.On("ExecuteAgent", mock.Anything, "agent-1", mock.Anything).
		Return(agentOutput(structuredOutput, 1), nil).Once()

	e, _ := newTestExtractor(t, tc, 1)
	res := e.Extract(context.Background(), model.Document{CNPJ: testCNPJ, FilePath: "/tmp/a.pdf"})

	require.True(t, res.Success, res.Error)
	assert.Equal(t, 2, res.Attempts)
}

func TestTessExtractor_Extract_UploadAuthFailure(t *testing.T) {
	tc := &mockTessClient{}
	tc.On("UploadFile", mock.Anything, "/tmp/a.pdf").Return(nil, resilience.NewAuthError("tess", errors.New("invalid api key")))

	e, _ := newTestExtractor(t, tc, 2)
	res := e.Extract(context.Background(), model.Document{CNPJ: testCNPJ, FilePath: "/tmp/a.pdf"})

	assert.False(t, res.Success)
	assert.Equal(t, "auth", res.ErrorKind)
	assert.Equal(t, 1, res.Attempts)
	tc.AssertNotCalled(t, "ExecuteAgent", mock.Anything, mock.Anything, mock.Anything)
}
