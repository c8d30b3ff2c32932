// Package pipeline runs the onboarding stages for one CNPJ at a time:
// registry query, document extraction, company lookup, persistence and ERP
// registration.
package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/onboard-cli/internal/config"
	"github.com/sells-group/onboard-cli/internal/cost"
	"github.com/sells-group/onboard-cli/internal/model"
	"github.com/sells-group/onboard-cli/internal/reconcile"
	"github.com/sells-group/onboard-cli/internal/resilience"
	"github.com/sells-group/onboard-cli/internal/store"
	"github.com/sells-group/onboard-cli/pkg/cnpja"
)

// ErrBusy is returned when Run is called while the orchestrator is already
// processing a CNPJ.
var ErrBusy = errors.New("pipeline: already processing")

// NoteFromCache marks a result served from the registry-query cache.
const NoteFromCache = "consulta recente encontrada no cache; pipeline não executado"

// NoteCachedFailure marks a cached consulta that failed. Use --force to retry
// before the entry expires.
const NoteCachedFailure = "consulta recente com falha encontrada no cache; use --force para reprocessar"

// Stage names as they appear in StageReports and logs.
const (
	StageRegistry = "registry_query"
	StageDocument = "document_extraction"
	StageLookup   = "company_lookup"
	StagePersist  = "persist"
	StageERP      = "erp_registration"
)

// RegistryQuerier downloads the bureau report for a CNPJ.
type RegistryQuerier interface {
	Query(ctx context.Context, cnpj string) (*model.Document, error)
}

// Registrar registers a consolidated company in the ERP.
type Registrar interface {
	Register(ctx context.Context, rec model.ConsolidatedRecord) (model.ERPRegistration, error)
}

// RunOptions tune a single Run.
type RunOptions struct {
	// Force ignores a live cache entry.
	Force bool
	// SkipERP stops after persistence.
	SkipERP bool
}

// Result is the outcome of one Run.
type Result struct {
	CNPJ         string                    `json:"cnpj"`
	Success      bool                      `json:"success"`
	FromCache    bool                      `json:"from_cache,omitempty"`
	Note         string                    `json:"note,omitempty"`
	State        model.PipelineState       `json:"state"`
	Error        string                    `json:"error,omitempty"`
	ErrorKind    string                    `json:"error_kind,omitempty"`
	Stages       []model.StageReport       `json:"stages,omitempty"`
	Document     *model.Document           `json:"document,omitempty"`
	Record       *model.ConsolidatedRecord `json:"record,omitempty"`
	Saved        *store.SaveResult         `json:"saved,omitempty"`
	Registration *model.ERPRegistration    `json:"registration,omitempty"`
	Billing      cost.Breakdown            `json:"billing"`
	StartedAt    time.Time                 `json:"started_at"`
	ElapsedMs    int64                     `json:"elapsed_ms"`
}

// Orchestrator drives one CNPJ through every stage. It is not safe for
// concurrent use; a second Run while one is in flight gets ErrBusy.
type Orchestrator struct {
	cfg       *config.Config
	registry  RegistryQuerier
	documents DocumentExtractor
	lookup    CompanyLookup
	store     store.Store
	cache     store.CacheStore
	registrar Registrar
	costCalc  *cost.Calculator
	log       *zap.Logger
	now       func() time.Time

	processing atomic.Bool
	state      atomic.Value
}

// New creates an Orchestrator. registrar may be nil, in which case the ERP
// stage is always skipped.
func New(
	cfg *config.Config,
	registry RegistryQuerier,
	documents DocumentExtractor,
	lookup CompanyLookup,
	st store.Store,
	cache store.CacheStore,
	registrar Registrar,
	log *zap.Logger,
) *Orchestrator {
	if log == nil {
		log = zap.L()
	}
	o := &Orchestrator{
		cfg:       cfg,
		registry:  registry,
		documents: documents,
		lookup:    lookup,
		store:     st,
		cache:     cache,
		registrar: registrar,
		costCalc: cost.NewCalculator(cost.Rates{
			SPCUnits:     cfg.Billing.SPCUnits,
			CNPJAUnits:   cfg.Billing.CNPJAUnits,
			SuframaUnits: cfg.Billing.SuframaUnits,
		}),
		log: log,
		now: time.Now,
	}
	o.state.Store(model.StateIdle)
	return o
}

// State returns the current pipeline state.
func (o *Orchestrator) State() model.PipelineState {
	return o.state.Load().(model.PipelineState)
}

// Busy reports whether a Run is in flight.
func (o *Orchestrator) Busy() bool {
	return o.processing.Load()
}

// Run processes one CNPJ. Stage failures are reported in the Result; the
// returned error is reserved for ErrBusy, an unusable CNPJ and persistence
// failures.
func (o *Orchestrator) Run(ctx context.Context, rawCNPJ string, opts RunOptions) (*Result, error) {
	if !o.processing.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer o.processing.Store(false)

	cnpj, err := model.ParseCNPJ(rawCNPJ)
	if err != nil {
		return nil, resilience.NewValidationError("pipeline", false, err)
	}

	log := o.log.With(zap.String("cnpj", cnpj))
	start := o.now()
	result := &Result{CNPJ: cnpj, StartedAt: start.UTC()}
	o.setState(result, model.StateIdle)

	finish := func() *Result {
		result.ElapsedMs = o.now().Sub(start).Milliseconds()
		return result
	}

	if !opts.Force {
		if entry := o.cachedEntry(ctx, cnpj, log); entry != nil {
			log.Info("pipeline: cache hit, skipping",
				zap.Time("consulted_at", entry.ConsultedAt),
				zap.Time("expires_at", entry.ExpiresAt),
			)
			result.FromCache = true
			result.Note = NoteFromCache
			if entry.FilePath != "" {
				result.Document = &model.Document{CNPJ: cnpj, FilePath: entry.FilePath, FileName: entry.FileName}
			}
			if !entry.Success {
				result.Error = entry.Error
				if result.Error == "" {
					result.Error = "pipeline: cached consulta failed"
				}
				result.Note = NoteCachedFailure
				o.setState(result, model.StateFailed)
				return finish(), nil
			}
			result.Success = true
			o.setState(result, model.StateCompleted)
			return finish(), nil
		}
	}

	log.Info("pipeline: starting")
	usage := cost.Usage{}

	trackStage := func(name string, fn func() (int, map[string]any, error)) error {
		begin := o.now()
		attempts, meta, fnErr := fn()
		report := model.StageReport{
			Name:     name,
			Duration: o.now().Sub(begin).Milliseconds(),
			Attempts: attempts,
			Metadata: meta,
		}
		if fnErr != nil {
			report.Status = model.StageStatusFailed
			report.Error = fnErr.Error()
			log.Error("pipeline: stage failed",
				zap.String("stage", name),
				zap.Int64("duration_ms", report.Duration),
				zap.Int("attempts", attempts),
				zap.Error(fnErr),
			)
		} else {
			report.Status = model.StageStatusComplete
			log.Info("pipeline: stage complete",
				zap.String("stage", name),
				zap.Int64("duration_ms", report.Duration),
			)
		}
		result.Stages = append(result.Stages, report)
		return fnErr
	}

	fail := func(kind, msg string) *Result {
		result.Success = false
		result.Error = msg
		result.ErrorKind = kind
		result.Billing = o.costCalc.Compute(usage)
		o.setState(result, model.StateFailed)
		o.writeCache(ctx, cnpj, result, log)
		return finish()
	}

	// Registry query, single attempt.
	o.setState(result, model.StateConsultingRegistry)
	var (
		doc    *model.Document
		regRes model.StageResult[*model.Document]
	)
	_ = trackStage(StageRegistry, func() (int, map[string]any, error) {
		regRes = resilience.Call(ctx, resilience.Policy{Service: "spc", Operation: "query", MaxAttempts: 1, Logger: log},
			func(ctx context.Context) (*model.Document, error) {
				return o.registry.Query(ctx, cnpj)
			})
		usage.SPCQueried = true
		if !regRes.Success {
			return regRes.Attempts, nil, eris.New(regRes.Error)
		}
		doc = regRes.Data
		return regRes.Attempts, map[string]any{
			"file_name":        doc.FileName,
			"strategy":         doc.Strategy,
			"invalid_document": doc.InvalidDocument,
		}, nil
	})
	if !regRes.Success {
		return fail(regRes.ErrorKind, regRes.Error), nil
	}
	result.Document = doc
	o.writeCache(ctx, cnpj, result, log)

	// Document extraction.
	o.setState(result, model.StateProcessingDocument)
	var docRes model.StageResult[*DocumentOutput]
	_ = trackStage(StageDocument, func() (int, map[string]any, error) {
		docRes = o.documents.Extract(ctx, *doc)
		if !docRes.Success {
			return docRes.Attempts, nil, eris.New(docRes.Error)
		}
		return docRes.Attempts, map[string]any{
			"method":  docRes.Data.Extraction.Method,
			"credits": docRes.Data.Credits.String(),
			"empty":   docRes.Data.Extraction.IsEmpty(),
		}, nil
	})
	if !docRes.Success {
		return fail(docRes.ErrorKind, docRes.Error), nil
	}
	usage.TessCredits = docRes.Data.Credits

	// Company lookup; a failure leaves the merge with the document alone.
	o.setState(result, model.StateLookingUpCompany)
	var (
		lookup *LookupOutput
		lkRes  model.StageResult[*LookupOutput]
	)
	_ = trackStage(StageLookup, func() (int, map[string]any, error) {
		lkRes = o.lookup.Lookup(ctx, cnpj)
		if !lkRes.Success {
			return lkRes.Attempts, nil, eris.New(lkRes.Error)
		}
		lookup = lkRes.Data
		return lkRes.Attempts, map[string]any{
			"lookups": lookup.Lookups,
			"suframa": lookup.Suframa,
		}, nil
	})
	if lookup != nil {
		usage.CNPJALookups = lookup.Lookups
		usage.SuframaLookup = lookup.Suframa
	} else {
		log.Warn("pipeline: continuing without company lookup", zap.String("error", lkRes.Error))
	}

	record := reconcile.Merge(docRes.Data.Extraction, lookupProjection(lookup), cnpj)
	record.RawDocumentText = docRes.Data.RawText
	if lookup != nil {
		record.RawLookupJSON = lookup.RawJSON
	}
	result.Record = &record

	// Persist.
	o.setState(result, model.StatePersisting)
	var saved *store.SaveResult
	persistErr := trackStage(StagePersist, func() (int, map[string]any, error) {
		var err error
		saved, err = o.store.SaveConsulta(ctx, store.SaveInput{
			Record:      record,
			Operator:    o.cfg.Pipeline.Operator,
			Product:     o.cfg.Pipeline.Product,
			TessText:    docRes.Data.RawText,
			CNPJAJSON:   record.RawLookupJSON,
			Credits:     docRes.Data.Credits,
			ConsultedAt: start.UTC(),
		})
		if err != nil {
			return 1, nil, err
		}
		return 1, map[string]any{
			"empresa_id":      saved.EmpresaID,
			"consulta_id":     saved.ConsultaID,
			"empresa_created": saved.EmpresaCreated,
		}, nil
	})
	if persistErr != nil {
		fail(string(resilience.KindOf(persistErr)), persistErr.Error())
		return result, persistErr
	}
	result.Saved = saved

	// ERP registration; failures are recorded and the run still succeeds.
	if opts.SkipERP || o.registrar == nil {
		result.Stages = append(result.Stages, model.StageReport{Name: StageERP, Status: model.StageStatusSkipped})
		reg := model.ERPRegistration{Status: model.RegistrationSkipped}
		result.Registration = &reg
		o.recordRegistration(ctx, cnpj, reg, log)
	} else {
		o.setState(result, model.StateRegisteringERP)
		var reg model.ERPRegistration
		_ = trackStage(StageERP, func() (int, map[string]any, error) {
			var err error
			reg, err = o.registrar.Register(ctx, record)
			return 1, map[string]any{
				"status":      string(reg.Status),
				"customer_id": reg.CustomerID,
				"kind":        reg.Kind,
			}, err
		})
		result.Registration = &reg
		o.recordRegistration(ctx, cnpj, reg, log)
	}

	result.Success = true
	result.Billing = o.costCalc.Compute(usage)
	o.setState(result, model.StateCompleted)
	o.writeCache(ctx, cnpj, result, log)

	finish()
	log.Info("pipeline: complete",
		zap.Int64("elapsed_ms", result.ElapsedMs),
		zap.Int64("empresa_id", saved.EmpresaID),
		zap.String("billing_total", result.Billing.Total.String()),
	)
	return result, nil
}

func lookupProjection(l *LookupOutput) *cnpja.Projection {
	if l == nil {
		return nil
	}
	return l.Projection
}

func (o *Orchestrator) setState(r *Result, s model.PipelineState) {
	o.state.Store(s)
	r.State = s
}

func (o *Orchestrator) cachedEntry(ctx context.Context, cnpj string, log *zap.Logger) *model.CacheEntry {
	if o.cache == nil {
		return nil
	}
	entry, err := o.cache.Get(ctx, cnpj)
	if err != nil {
		log.Warn("pipeline: cache read failed, ignoring", zap.Error(err))
		return nil
	}
	if entry == nil || entry.Expired(o.now()) {
		return nil
	}
	return entry
}

func (o *Orchestrator) writeCache(ctx context.Context, cnpj string, r *Result, log *zap.Logger) {
	if o.cache == nil {
		return
	}
	now := o.now().UTC()
	entry := model.CacheEntry{
		CNPJ:        cnpj,
		Success:     r.Error == "",
		ConsultedAt: now,
		ExpiresAt:   now.Add(o.cfg.Cache.TTL()),
		Error:       r.Error,
	}
	if r.Document != nil {
		entry.FileName = r.Document.FileName
		entry.FilePath = r.Document.FilePath
	}
	if err := o.cache.Put(ctx, entry); err != nil {
		log.Warn("pipeline: cache write failed", zap.Error(err))
	}
}

func (o *Orchestrator) recordRegistration(ctx context.Context, cnpj string, reg model.ERPRegistration, log *zap.Logger) {
	if err := o.store.UpdateRegistration(ctx, cnpj, reg); err != nil {
		log.Warn("pipeline: failed to record erp outcome",
			zap.String("status", string(reg.Status)),
			zap.Error(err),
		)
	}
}
