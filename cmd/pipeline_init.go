package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/onboard-cli/internal/erp"
	"github.com/sells-group/onboard-cli/internal/pipeline"
	"github.com/sells-group/onboard-cli/internal/resilience"
	"github.com/sells-group/onboard-cli/internal/spc"
	"github.com/sells-group/onboard-cli/internal/store"
	"github.com/sells-group/onboard-cli/pkg/atak"
	"github.com/sells-group/onboard-cli/pkg/cnpja"
	"github.com/sells-group/onboard-cli/pkg/tess"
)

// pipelineEnv holds the store, cache and orchestrator shared by the run,
// batch and serve commands.
type pipelineEnv struct {
	Store        store.Store
	Cache        store.CacheStore
	Orchestrator *pipeline.Orchestrator
}

// Close releases the database pool and the cache.
func (pe *pipelineEnv) Close() {
	if pe.Cache != nil {
		_ = pe.Cache.Close()
	}
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initPipeline validates the config for mode, opens the store and cache,
// builds every client and wires the Orchestrator. Callers should defer
// env.Close().
func initPipeline(ctx context.Context, mode string) (*pipelineEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	cache, err := initCache(ctx)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	registrar, err := initRegistrar()
	if err != nil {
		_ = cache.Close()
		_ = st.Close()
		return nil, err
	}

	tessClient := tess.NewClient(cfg.Tess.APIKey, tess.WithBaseURL(cfg.Tess.BaseURL))
	cnpjaClient := cnpja.NewClient(cfg.CNPJA.APIKey, cnpja.WithBaseURL(cfg.CNPJA.BaseURL))

	var reg pipeline.Registrar
	if registrar != nil {
		reg = registrar
	}

	o := pipeline.New(cfg,
		spc.NewSession(cfg.SPC, zap.L()),
		pipeline.NewTessExtractor(tessClient, cfg.Tess, cfg.Pipeline),
		pipeline.NewCNPJALookup(cnpjaClient, cfg.CNPJA, cfg.Pipeline),
		st,
		cache,
		reg,
		zap.L(),
	)

	zap.L().Info("pipeline ready",
		zap.String("database", cfg.Database.Driver),
		zap.String("cache", cfg.Cache.Backend),
		zap.Bool("erp", registrar != nil),
	)

	return &pipelineEnv{Store: st, Cache: cache, Orchestrator: o}, nil
}

func initStore(ctx context.Context) (*store.SQLStore, error) {
	st, err := store.Open(ctx, store.DBConfig(cfg.Database))
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	return st, nil
}

func initCache(ctx context.Context) (store.CacheStore, error) {
	c, err := store.NewCache(ctx, store.CacheOptions{
		Backend:       cfg.Cache.Backend,
		Path:          cfg.Cache.Path,
		RedisAddr:     cfg.Cache.RedisAddr,
		RedisPassword: cfg.Cache.RedisPassword,
		RedisDB:       cfg.Cache.RedisDB,
	})
	if err != nil {
		return nil, eris.Wrap(err, "open cache")
	}
	return c, nil
}

// initRegistrar returns nil when ERP registration is disabled.
func initRegistrar() (*erp.Registrar, error) {
	if !cfg.Atak.Enabled {
		zap.L().Info("atak disabled, erp registration will be skipped")
		return nil, nil
	}

	table, err := erp.DefaultMunicipalTable()
	if err != nil {
		return nil, eris.Wrap(err, "load municipal table")
	}

	var opts []atak.ClientOption
	if cfg.Atak.Token != "" {
		opts = append(opts, atak.WithToken(cfg.Atak.Token))
	}
	if cfg.Atak.RateLimit > 0 {
		opts = append(opts, atak.WithRateLimit(cfg.Atak.RateLimit))
	}
	client := atak.NewClient(cfg.Atak.BaseURL, atak.Credentials{
		Username: cfg.Atak.Username,
		Password: cfg.Atak.Password,
	}, opts...)

	retry := resilience.DefaultPolicy("atak", "")
	retry.MaxAttempts = cfg.Pipeline.MaxAttempts
	retry.BaseDelay = time.Duration(cfg.Pipeline.RetryDelaySecs) * time.Second
	retry.Breaker = resilience.NewBreaker(cfg.Pipeline.BreakerThreshold, time.Duration(cfg.Pipeline.BreakerCooldownSecs)*time.Second)

	return erp.NewRegistrar(client, erp.Options{
		CustomerKinds: cfg.Atak.CustomerKinds,
		Defaults: erp.Defaults{
			BranchCode:  cfg.Atak.BranchCode,
			WalletCode:  cfg.Atak.WalletCode,
			PricingCode: cfg.Atak.PricingCode,
		},
		UpdateExisting: cfg.Atak.UpdateExisting,
		Retry:          retry,
	}, table, zap.L()), nil
}

func batchDelay() time.Duration {
	return time.Duration(cfg.Batch.DelaySecs) * time.Second
}
