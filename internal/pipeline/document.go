package pipeline

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sells-group/onboard-cli/internal/config"
	"github.com/sells-group/onboard-cli/internal/extract"
	"github.com/sells-group/onboard-cli/internal/model"
	"github.com/sells-group/onboard-cli/internal/resilience"
	"github.com/sells-group/onboard-cli/pkg/tess"
)

// DocumentOutput is what the document-extraction stage hands to the merge.
type DocumentOutput struct {
	Extraction  *model.Extraction
	RawText     string
	Credits     decimal.Decimal
	SidecarPath string
}

// DocumentExtractor turns a registry PDF into structured data.
type DocumentExtractor interface {
	Extract(ctx context.Context, doc model.Document) model.StageResult[*DocumentOutput]
}

// TessExtractor runs the TESS agent over a registry PDF. An output asking
// for the file again is retried up to rounds times with a fresh upload.
type TessExtractor struct {
	client tess.Client
	cfg    config.TessConfig
	policy resilience.Policy
	rounds int
	now    func() time.Time
}

// NewTessExtractor creates a TessExtractor from the tess and pipeline config.
func NewTessExtractor(client tess.Client, cfg config.TessConfig, pcfg config.PipelineConfig) *TessExtractor {
	policy := resilience.DefaultPolicy("tess", "extract")
	policy.MaxAttempts = pcfg.MaxAttempts
	policy.BaseDelay = time.Duration(pcfg.RetryDelaySecs) * time.Second
	policy.Breaker = resilience.NewBreaker(pcfg.BreakerThreshold, time.Duration(pcfg.BreakerCooldownSecs)*time.Second)

	rounds := pcfg.ExtractionAttempts
	if rounds <= 0 {
		rounds = 1
	}
	return &TessExtractor{
		client: client,
		cfg:    cfg,
		policy: policy,
		rounds: rounds,
		now:    time.Now,
	}
}

// Extract uploads doc, runs the agent, writes the raw output sidecar and
// parses it. Output with no usable JSON still succeeds with empty fields.
func (e *TessExtractor) Extract(ctx context.Context, doc model.Document) model.StageResult[*DocumentOutput] {
	log := zap.L().With(zap.String("cnpj", doc.CNPJ), zap.String("file", doc.FileName))

	req := tess.ExtractRequest{
		AgentID:     e.cfg.AgentID,
		Prompt:      e.cfg.Prompt,
		Model:       e.cfg.Model,
		Temperature: e.cfg.Temperature,
		FilePath:    doc.FilePath,
		PollOptions: e.pollOptions(),
	}

	var (
		res      model.StageResult[*tess.ExtractResult]
		lastErr  error
		attempts int
	)
	for round := 1; round <= e.rounds; round++ {
		res = resilience.Call(ctx, e.policy, func(ctx context.Context) (*tess.ExtractResult, error) {
			out, err := tess.Extract(ctx, e.client, req)
			lastErr = err
			return out, err
		})
		attempts += res.Attempts
		if res.Success || !resilience.IsResend(lastErr) {
			break
		}
		log.Warn("pipeline: extraction asked for the document again",
			zap.Int("round", round),
			zap.Int("max_rounds", e.rounds),
		)
	}

	if !res.Success {
		out := model.Failed[*DocumentOutput](res.Error, res.ErrorKind)
		out.Attempts = attempts
		return out
	}

	sidecar, err := tess.WriteSidecar(e.cfg.OutputDir, doc.CNPJ, res.Data.Output, e.now())
	if err != nil {
		// The text still reaches consulta_empresa; the sidecar is an audit copy.
		log.Warn("pipeline: failed to write extraction sidecar", zap.Error(err))
	}

	ext := extract.Parse(res.Data.Output)
	log.Info("pipeline: document parsed",
		zap.String("method", ext.Method),
		zap.Bool("empty", ext.IsEmpty()),
		zap.Float64("credits", res.Data.Credits),
	)

	out := model.Succeeded(&DocumentOutput{
		Extraction:  ext,
		RawText:     res.Data.Output,
		Credits:     decimal.NewFromFloat(res.Data.Credits),
		SidecarPath: sidecar,
	})
	out.Attempts = attempts
	return out
}

func (e *TessExtractor) pollOptions() []tess.PollOption {
	var opts []tess.PollOption
	if e.cfg.PollIntervalSecs > 0 {
		opts = append(opts, tess.WithPollInterval(time.Duration(e.cfg.PollIntervalSecs)*time.Second))
	}
	if e.cfg.PollTimeoutSecs > 0 {
		opts = append(opts, tess.WithPollTimeout(time.Duration(e.cfg.PollTimeoutSecs)*time.Second))
	}
	return opts
}
