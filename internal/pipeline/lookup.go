package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/onboard-cli/internal/config"
	"github.com/sells-group/onboard-cli/internal/model"
	"github.com/sells-group/onboard-cli/internal/resilience"
	"github.com/sells-group/onboard-cli/pkg/cnpja"
)

// LookupOutput is the company-lookup view passed to the merge.
type LookupOutput struct {
	Projection *cnpja.Projection
	RawJSON    string
	// Lookups counts the office calls issued, Suframa whether one of them
	// was the SUFRAMA follow-up.
	Lookups     int
	Suframa     bool
	SidecarPath string
}

// CompanyLookup fetches registry data for a CNPJ.
type CompanyLookup interface {
	Lookup(ctx context.Context, cnpj string) model.StageResult[*LookupOutput]
}

// CNPJALookup queries CNPJA and, for companies in the free-trade zone, asks
// again with the SUFRAMA dataset.
type CNPJALookup struct {
	client cnpja.Client
	cfg    config.CNPJAConfig
	policy resilience.Policy
	now    func() time.Time
}

// NewCNPJALookup creates a CNPJALookup.
func NewCNPJALookup(client cnpja.Client, cfg config.CNPJAConfig, pcfg config.PipelineConfig) *CNPJALookup {
	policy := resilience.DefaultPolicy("cnpja", "office")
	policy.MaxAttempts = pcfg.MaxAttempts
	policy.BaseDelay = time.Duration(pcfg.RetryDelaySecs) * time.Second
	policy.Breaker = resilience.NewBreaker(pcfg.BreakerThreshold, time.Duration(pcfg.BreakerCooldownSecs)*time.Second)
	return &CNPJALookup{
		client: client,
		cfg:    cfg,
		policy: policy,
		now:    time.Now,
	}
}

type officeResponse struct {
	office *cnpja.Office
	raw    []byte
}

// Lookup returns the flattened office. A failed SUFRAMA follow-up keeps the
// first response.
func (l *CNPJALookup) Lookup(ctx context.Context, cnpj string) model.StageResult[*LookupOutput] {
	log := zap.L().With(zap.String("cnpj", cnpj))

	first := l.office(ctx, cnpj, cnpja.OfficeOptions{Registrations: "BR"})
	if !first.Success {
		out := model.Failed[*LookupOutput](first.Error, first.ErrorKind)
		out.Attempts = first.Attempts
		return out
	}

	resp := first.Data
	attempts := first.Attempts
	lookups := 1
	suframa := false

	addr := resp.office.Address
	if cnpja.SuframaEligible(addr.State, addr.City) {
		second := l.office(ctx, cnpj, cnpja.OfficeOptions{Registrations: "BR", Suframa: true})
		attempts += second.Attempts
		lookups++
		suframa = true
		if second.Success {
			resp = second.Data
		} else {
			log.Warn("pipeline: suframa lookup failed, keeping base lookup",
				zap.String("state", addr.State),
				zap.String("error", second.Error),
			)
		}
	}

	sidecar, err := cnpja.WriteSidecar(l.cfg.OutputDir, cnpj, resp.raw, l.now())
	if err != nil {
		log.Warn("pipeline: failed to write lookup sidecar", zap.Error(err))
	}

	out := model.Succeeded(&LookupOutput{
		Projection:  resp.office.Extract(),
		RawJSON:     string(resp.raw),
		Lookups:     lookups,
		Suframa:     suframa,
		SidecarPath: sidecar,
	})
	out.Attempts = attempts
	return out
}

func (l *CNPJALookup) office(ctx context.Context, cnpj string, opts cnpja.OfficeOptions) model.StageResult[officeResponse] {
	return resilience.Call(ctx, l.policy, func(ctx context.Context) (officeResponse, error) {
		office, raw, err := l.client.Office(ctx, cnpj, opts)
		if err != nil {
			return officeResponse{}, err
		}
		return officeResponse{office: office, raw: raw}, nil
	})
}
