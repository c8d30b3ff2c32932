package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/onboard-cli/internal/model"
)

// Runner processes one CNPJ. *Orchestrator implements it.
type Runner interface {
	Run(ctx context.Context, cnpj string, opts RunOptions) (*Result, error)
}

// BatchItem is the outcome of one CNPJ in a batch.
type BatchItem struct {
	CNPJ   string  `json:"cnpj"`
	Result *Result `json:"result,omitempty"`
	Error  string  `json:"error,omitempty"`
}

// Succeeded reports whether the item ran to completion or was served from
// cache.
func (i BatchItem) Succeeded() bool {
	return i.Error == "" && i.Result != nil && i.Result.Success
}

// BatchSummary aggregates a batch run.
type BatchSummary struct {
	Total     int         `json:"total"`
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
	Cached    int         `json:"cached"`
	Skipped   int         `json:"skipped"`
	Items     []BatchItem `json:"items"`
	ElapsedMs int64       `json:"elapsed_ms"`
}

// BatchRunner feeds CNPJs to a Runner one at a time with a fixed pause
// between them.
type BatchRunner struct {
	runner  Runner
	limiter *rate.Limiter
	log     *zap.Logger
}

// NewBatchRunner creates a BatchRunner that waits delay between items.
func NewBatchRunner(r Runner, delay time.Duration, log *zap.Logger) *BatchRunner {
	if log == nil {
		log = zap.L()
	}
	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}
	return &BatchRunner{
		runner:  r,
		limiter: rate.NewLimiter(limit, 1),
		log:     log,
	}
}

// Run processes cnpjs in order. Per-item failures never stop the batch; only
// a cancelled context does, in which case the partial summary is returned
// with the context error. Repeated identifiers are processed once.
func (b *BatchRunner) Run(ctx context.Context, cnpjs []string, opts RunOptions) (*BatchSummary, error) {
	start := time.Now()
	summary := &BatchSummary{Total: len(cnpjs)}
	seen := make(map[string]bool, len(cnpjs))

	b.log.Info("pipeline: batch starting", zap.Int("total", len(cnpjs)))

	for i, raw := range cnpjs {
		key := model.NormalizeCNPJ(raw)
		if key != "" && seen[key] {
			summary.Skipped++
			b.log.Info("pipeline: duplicate cnpj skipped", zap.String("cnpj", key))
			continue
		}
		seen[key] = true

		if err := b.limiter.Wait(ctx); err != nil {
			summary.ElapsedMs = time.Since(start).Milliseconds()
			return summary, err
		}

		log := b.log.With(zap.String("cnpj", raw), zap.Int("index", i+1), zap.Int("total", len(cnpjs)))
		item := BatchItem{CNPJ: raw}

		res, err := b.runner.Run(ctx, raw, opts)
		item.Result = res
		switch {
		case err != nil:
			item.Error = err.Error()
			log.Error("pipeline: batch item failed", zap.Error(err))
		case res != nil && !res.Success:
			item.Error = res.Error
			log.Warn("pipeline: batch item did not complete",
				zap.String("state", string(res.State)),
				zap.String("error", res.Error),
			)
		default:
			log.Info("pipeline: batch item done", zap.Bool("from_cache", res != nil && res.FromCache))
		}
		if res != nil {
			item.CNPJ = res.CNPJ
		}

		if item.Succeeded() {
			summary.Succeeded++
			if res.FromCache {
				summary.Cached++
			}
		} else {
			summary.Failed++
		}
		summary.Items = append(summary.Items, item)

		if ctx.Err() != nil {
			summary.ElapsedMs = time.Since(start).Milliseconds()
			return summary, ctx.Err()
		}
	}

	summary.ElapsedMs = time.Since(start).Milliseconds()
	b.log.Info("pipeline: batch complete",
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Int("cached", summary.Cached),
		zap.Int("skipped", summary.Skipped),
		zap.Int64("elapsed_ms", summary.ElapsedMs),
	)
	return summary, nil
}
