package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	SPC      SPCConfig      `yaml:"spc" mapstructure:"spc"`
	Input    InputConfig    `yaml:"input" mapstructure:"input"`
	Cache    CacheConfig    `yaml:"cache" mapstructure:"cache"`
	Tess     TessConfig     `yaml:"tess" mapstructure:"tess"`
	CNPJA    CNPJAConfig    `yaml:"cnpja" mapstructure:"cnpja"`
	Database DatabaseConfig `yaml:"database" mapstructure:"database"`
	Atak     AtakConfig     `yaml:"atak" mapstructure:"atak"`
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
	Batch    BatchConfig    `yaml:"batch" mapstructure:"batch"`
	Billing  BillingConfig  `yaml:"billing" mapstructure:"billing"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// SPCConfig configures the credit-bureau portal session.
type SPCConfig struct {
	BaseURL        string `yaml:"base_url" mapstructure:"base_url"`
	Username       string `yaml:"username" mapstructure:"username"`
	Password       string `yaml:"password" mapstructure:"password"`
	SecretPhrase   string `yaml:"secret_phrase" mapstructure:"secret_phrase"`
	Product        string `yaml:"product" mapstructure:"product"`
	DownloadDir    string `yaml:"download_dir" mapstructure:"download_dir"`
	Headless       bool   `yaml:"headless" mapstructure:"headless"`
	TimeoutMs      int    `yaml:"timeout_ms" mapstructure:"timeout_ms"`
	ResultWaitSecs int    `yaml:"result_wait_secs" mapstructure:"result_wait_secs"`
	Debug          bool   `yaml:"debug" mapstructure:"debug"`
	RemoteURL      string `yaml:"remote_url" mapstructure:"remote_url"`
}

// Timeout returns the browser timeout as a duration.
func (c SPCConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// InputConfig holds the default identifiers to process.
type InputConfig struct {
	CNPJ      string `yaml:"cnpj" mapstructure:"cnpj"`
	ExcelPath string `yaml:"excel_path" mapstructure:"excel_path"`
	Sheet     string `yaml:"sheet" mapstructure:"sheet"`
	Column    string `yaml:"column" mapstructure:"column"`
}

// CacheConfig configures the registry-query cache.
type CacheConfig struct {
	Backend       string `yaml:"backend" mapstructure:"backend"`
	Path          string `yaml:"path" mapstructure:"path"`
	TTLHours      int    `yaml:"ttl_hours" mapstructure:"ttl_hours"`
	RedisAddr     string `yaml:"redis_addr" mapstructure:"redis_addr"`
	RedisPassword string `yaml:"redis_password" mapstructure:"redis_password"`
	RedisDB       int    `yaml:"redis_db" mapstructure:"redis_db"`
}

// TTL returns the entry lifetime.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLHours) * time.Hour
}

// TessConfig holds document-extraction agent settings.
type TessConfig struct {
	APIKey           string `yaml:"api_key" mapstructure:"api_key"`
	BaseURL          string `yaml:"base_url" mapstructure:"base_url"`
	AgentID          string `yaml:"agent_id" mapstructure:"agent_id"`
	Model            string `yaml:"model" mapstructure:"model"`
	Temperature      string `yaml:"temperature" mapstructure:"temperature"`
	Prompt           string `yaml:"prompt" mapstructure:"prompt"`
	OutputDir        string `yaml:"output_dir" mapstructure:"output_dir"`
	PollIntervalSecs int    `yaml:"poll_interval_secs" mapstructure:"poll_interval_secs"`
	PollTimeoutSecs  int    `yaml:"poll_timeout_secs" mapstructure:"poll_timeout_secs"`
}

// CNPJAConfig holds company-registry API settings.
type CNPJAConfig struct {
	APIKey    string `yaml:"api_key" mapstructure:"api_key"`
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
	OutputDir string `yaml:"output_dir" mapstructure:"output_dir"`
}

// DatabaseConfig configures the relational store. Driver is one of
// sqlserver, postgres or sqlite.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver" mapstructure:"driver"`
	Server                 string `yaml:"server" mapstructure:"server"`
	Port                   int    `yaml:"port" mapstructure:"port"`
	Name                   string `yaml:"name" mapstructure:"name"`
	User                   string `yaml:"user" mapstructure:"user"`
	Password               string `yaml:"password" mapstructure:"password"`
	Encrypt                bool   `yaml:"encrypt" mapstructure:"encrypt"`
	TrustServerCertificate bool   `yaml:"trust_server_certificate" mapstructure:"trust_server_certificate"`
	Path                   string `yaml:"path" mapstructure:"path"`
	MaxOpenConns           int    `yaml:"max_open_conns" mapstructure:"max_open_conns"`
}

// AtakConfig holds ERP credentials and customer defaults.
type AtakConfig struct {
	Enabled        bool     `yaml:"enabled" mapstructure:"enabled"`
	BaseURL        string   `yaml:"base_url" mapstructure:"base_url"`
	Username       string   `yaml:"username" mapstructure:"username"`
	Password       string   `yaml:"password" mapstructure:"password"`
	Token          string   `yaml:"token" mapstructure:"token"`
	BranchCode     string   `yaml:"branch_code" mapstructure:"branch_code"`
	WalletCode     string   `yaml:"wallet_code" mapstructure:"wallet_code"`
	PricingCode    string   `yaml:"pricing_code" mapstructure:"pricing_code"`
	CustomerKinds  []string `yaml:"customer_kinds" mapstructure:"customer_kinds"`
	UpdateExisting bool     `yaml:"update_existing" mapstructure:"update_existing"`
	RateLimit      float64  `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// PipelineConfig configures per-stage retry behavior and audit fields.
type PipelineConfig struct {
	MaxAttempts        int    `yaml:"max_attempts" mapstructure:"max_attempts"`
	RetryDelaySecs     int    `yaml:"retry_delay_secs" mapstructure:"retry_delay_secs"`
	ExtractionAttempts int    `yaml:"extraction_attempts" mapstructure:"extraction_attempts"`
	Operator           string `yaml:"operator" mapstructure:"operator"`
	Product            string `yaml:"product" mapstructure:"product"`

	// BreakerThreshold consecutive transport failures of one service make
	// later calls fail fast for BreakerCooldownSecs. 0 disables it.
	BreakerThreshold    int `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerCooldownSecs int `yaml:"breaker_cooldown_secs" mapstructure:"breaker_cooldown_secs"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	DelaySecs int `yaml:"delay_secs" mapstructure:"delay_secs"`
}

// BillingConfig holds the unit costs charged per stage.
type BillingConfig struct {
	SPCUnits     float64 `yaml:"spc_units" mapstructure:"spc_units"`
	CNPJAUnits   float64 `yaml:"cnpja_units" mapstructure:"cnpja_units"`
	SuframaUnits float64 `yaml:"suframa_units" mapstructure:"suframa_units"`
}

// ServerConfig configures the webhook server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging. File, when set, receives an append-only
// NDJSON copy of every entry.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
	File   string `yaml:"file" mapstructure:"file"`
}

// Load reads configuration from .env, file and environment.
func Load() (*Config, error) {
	// .env is optional; real environment variables take precedence.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ONBOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	// Env values arrive comma-separated, possibly with padding.
	var kinds []string
	for _, k := range cfg.Atak.CustomerKinds {
		kinds = append(kinds, splitList(k)...)
	}
	cfg.Atak.CustomerKinds = kinds

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("spc.base_url", "https://servicos.spc.org.br/spc/controleacesso/autenticacao/entry.action")
	v.SetDefault("spc.product", "SPC Mix Mais")
	v.SetDefault("spc.download_dir", "downloads")
	v.SetDefault("spc.headless", true)
	v.SetDefault("spc.timeout_ms", 120000)
	v.SetDefault("spc.result_wait_secs", 30)
	v.SetDefault("input.column", "A")
	v.SetDefault("cache.backend", "file")
	v.SetDefault("cache.path", "cache/consultas.json")
	v.SetDefault("cache.ttl_hours", 24)
	v.SetDefault("cache.redis_addr", "localhost:6379")
	v.SetDefault("tess.base_url", "https://tess.pareto.io/api")
	v.SetDefault("tess.model", "tess-5")
	v.SetDefault("tess.temperature", "0")
	v.SetDefault("tess.output_dir", "output/tess")
	v.SetDefault("tess.poll_interval_secs", 2)
	v.SetDefault("tess.poll_timeout_secs", 300)
	v.SetDefault("cnpja.base_url", "https://api.cnpja.com")
	v.SetDefault("cnpja.output_dir", "output/cnpja")
	v.SetDefault("database.driver", "sqlserver")
	v.SetDefault("database.port", 1433)
	v.SetDefault("database.trust_server_certificate", true)
	v.SetDefault("database.path", "onboard.db")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("atak.customer_kinds", []string{"01", "02", "03"})
	v.SetDefault("atak.rate_limit", 5)
	v.SetDefault("pipeline.max_attempts", 3)
	v.SetDefault("pipeline.retry_delay_secs", 2)
	v.SetDefault("pipeline.extraction_attempts", 2)
	v.SetDefault("pipeline.breaker_threshold", 5)
	v.SetDefault("pipeline.breaker_cooldown_secs", 60)
	v.SetDefault("pipeline.operator", "onboard-cli")
	v.SetDefault("batch.delay_secs", 3)
	v.SetDefault("billing.spc_units", 1)
	v.SetDefault("billing.cnpja_units", 1)
	v.SetDefault("billing.suframa_units", 1)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)

	// Keys without a real default still need registering so AutomaticEnv
	// picks them up during Unmarshal.
	for _, key := range []string{
		"spc.username", "spc.password", "spc.secret_phrase", "spc.remote_url",
		"input.cnpj", "input.excel_path", "input.sheet",
		"cache.redis_password",
		"tess.api_key", "tess.agent_id", "tess.prompt",
		"cnpja.api_key",
		"database.server", "database.name", "database.user", "database.password",
		"atak.base_url", "atak.username", "atak.password", "atak.token",
		"atak.branch_code", "atak.wallet_code", "atak.pricing_code",
		"pipeline.product",
		"log.file",
	} {
		v.SetDefault(key, "")
	}
	v.SetDefault("spc.debug", false)
	v.SetDefault("atak.enabled", false)
	v.SetDefault("atak.update_existing", false)
	v.SetDefault("database.encrypt", false)
	v.SetDefault("cache.redis_db", 0)
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks the settings a command mode needs. Modes: run, batch,
// serve, migrate, cache.
func (c *Config) Validate(mode string) error {
	var errs []string
	required := func(val, name string) {
		if strings.TrimSpace(val) == "" {
			errs = append(errs, name+" is required")
		}
	}

	checkDatabase := func() {
		switch strings.ToLower(c.Database.Driver) {
		case "sqlite":
			required(c.Database.Path, "database.path")
		case "sqlserver", "mssql", "postgres", "postgresql", "pgx":
			required(c.Database.Server, "database.server")
			required(c.Database.Name, "database.name")
			required(c.Database.User, "database.user")
		default:
			errs = append(errs, fmt.Sprintf("database.driver %q is not supported", c.Database.Driver))
		}
		if c.Database.MaxOpenConns < 0 {
			errs = append(errs, "database.max_open_conns must be >= 0")
		}
	}

	checkCache := func() {
		switch c.Cache.Backend {
		case "", "file":
			required(c.Cache.Path, "cache.path")
		case "redis":
			required(c.Cache.RedisAddr, "cache.redis_addr")
		default:
			errs = append(errs, fmt.Sprintf("cache.backend %q is not supported", c.Cache.Backend))
		}
	}

	checkPipeline := func() {
		required(c.SPC.BaseURL, "spc.base_url")
		required(c.SPC.Username, "spc.username")
		required(c.SPC.Password, "spc.password")
		required(c.SPC.Product, "spc.product")
		required(c.Tess.APIKey, "tess.api_key")
		required(c.Tess.AgentID, "tess.agent_id")
		required(c.CNPJA.APIKey, "cnpja.api_key")
		if c.Atak.Enabled {
			required(c.Atak.BaseURL, "atak.base_url")
			if c.Atak.Token == "" {
				required(c.Atak.Username, "atak.username")
				required(c.Atak.Password, "atak.password")
			}
			if len(c.Atak.CustomerKinds) == 0 {
				errs = append(errs, "atak.customer_kinds must not be empty")
			}
		}
		if c.SPC.TimeoutMs <= 0 {
			errs = append(errs, "spc.timeout_ms must be > 0")
		}
		if c.Pipeline.MaxAttempts < 1 {
			errs = append(errs, "pipeline.max_attempts must be >= 1")
		}
		if c.Pipeline.ExtractionAttempts < 1 {
			errs = append(errs, "pipeline.extraction_attempts must be >= 1")
		}
		if c.Pipeline.BreakerThreshold < 0 {
			errs = append(errs, "pipeline.breaker_threshold must be >= 0")
		}
		if c.Batch.DelaySecs < 0 {
			errs = append(errs, "batch.delay_secs must be >= 0")
		}
		if c.Cache.TTLHours <= 0 {
			errs = append(errs, "cache.ttl_hours must be > 0")
		}
		checkCache()
		checkDatabase()
	}

	switch mode {
	case "run", "batch":
		checkPipeline()
	case "serve":
		checkPipeline()
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be > 0 and <= 65535")
		}
	case "migrate":
		checkDatabase()
	case "cache":
		checkCache()
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger. When cfg.File is set every
// entry is also appended to that file as NDJSON.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}

	if cfg.File != "" {
		fileCore, err := newFileCore(cfg.File, zapCfg.Level)
		if err != nil {
			return err
		}
		logger = logger.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
			return zapcore.NewTee(core, fileCore)
		}))
	}

	zap.ReplaceGlobals(logger)

	return nil
}

func newFileCore(path string, level zap.AtomicLevel) (zapcore.Core, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, eris.Wrapf(err, "config: create log dir %s", dir)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, eris.Wrapf(err, "config: open log file %s", path)
	}
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	return zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(f), level), nil
}
