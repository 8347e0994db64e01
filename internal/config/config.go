// Package config loads mission-cli settings from config.yaml and MISSION_*
// environment variables.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Perplexity PerplexityConfig `yaml:"perplexity" mapstructure:"perplexity"`
	Mission    MissionConfig    `yaml:"mission" mapstructure:"mission"`
	Retry      RetryConfig      `yaml:"retry" mapstructure:"retry"`
	Notion     NotionConfig     `yaml:"notion" mapstructure:"notion"`
	Salesforce SalesforceConfig `yaml:"salesforce" mapstructure:"salesforce"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	// Driver is sqlite, postgres or memory.
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
}

// AnthropicConfig holds Claude settings for company scoring and contact ranking.
type AnthropicConfig struct {
	Key            string `yaml:"key" mapstructure:"key"`
	BaseURL        string `yaml:"base_url" mapstructure:"base_url"`
	ScoringModel   string `yaml:"scoring_model" mapstructure:"scoring_model"`
	RankingModel   string `yaml:"ranking_model" mapstructure:"ranking_model"`
	StructureModel string `yaml:"structure_model" mapstructure:"structure_model"`
	MaxTokens      int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// PerplexityConfig holds web research settings for discovery and people search.
type PerplexityConfig struct {
	Key           string `yaml:"key" mapstructure:"key"`
	BaseURL       string `yaml:"base_url" mapstructure:"base_url"`
	Model         string `yaml:"model" mapstructure:"model"`
	RecencyFilter string `yaml:"recency_filter" mapstructure:"recency_filter"`
	TimeoutSecs   int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// MissionConfig tunes the phases.
type MissionConfig struct {
	MaxCompanies     int `yaml:"max_companies" mapstructure:"max_companies"`
	SampleSize       int `yaml:"sample_size" mapstructure:"sample_size"`
	QualifyThreshold int `yaml:"qualify_threshold" mapstructure:"qualify_threshold"`
	CompanyBatchSize int `yaml:"company_batch_size" mapstructure:"company_batch_size"`
	PeopleBatchSize  int `yaml:"people_batch_size" mapstructure:"people_batch_size"`
	PeoplePerCompany int `yaml:"people_per_company" mapstructure:"people_per_company"`
	RankBatchSize    int `yaml:"rank_batch_size" mapstructure:"rank_batch_size"`
	// Concurrency caps in-flight collaborator batches; 0 is unbounded.
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
	// RateLimit caps batch dispatch per second; 0 disables it.
	RateLimit  float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	RateBurst  int     `yaml:"rate_burst" mapstructure:"rate_burst"`
	TopReasons int     `yaml:"top_reasons" mapstructure:"top_reasons"`
}

// RetryConfig is the per-call retry policy for collaborators.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	// BreakerThreshold is the number of consecutive collaborator failures
	// that stops further calls for BreakerCooldownSecs. Zero disables it.
	BreakerThreshold    int `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerCooldownSecs int `yaml:"breaker_cooldown_secs" mapstructure:"breaker_cooldown_secs"`
}

// NotionConfig holds the export database for ranked contacts.
type NotionConfig struct {
	Token     string  `yaml:"token" mapstructure:"token"`
	LeadDB    string  `yaml:"lead_db" mapstructure:"lead_db"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// SalesforceConfig holds JWT auth settings for the Lead export.
type SalesforceConfig struct {
	ClientID   string  `yaml:"client_id" mapstructure:"client_id"`
	Username   string  `yaml:"username" mapstructure:"username"`
	KeyPath    string  `yaml:"key_path" mapstructure:"key_path"`
	LoginURL   string  `yaml:"login_url" mapstructure:"login_url"`
	LeadSource string  `yaml:"lead_source" mapstructure:"lead_source"`
	RateLimit  float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("MISSION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Keys with no real default still need one so AutomaticEnv binds them on Unmarshal.
	for _, key := range []string{
		"anthropic.key", "anthropic.base_url", "perplexity.key", "perplexity.recency_filter",
		"notion.token", "notion.lead_db", "salesforce.client_id", "salesforce.username", "salesforce.key_path",
	} {
		v.SetDefault(key, "")
	}
	v.SetDefault("salesforce.rate_limit", 0)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "mission.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("anthropic.scoring_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.ranking_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.structure_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("perplexity.model", "sonar-pro")
	v.SetDefault("perplexity.timeout_secs", 120)
	v.SetDefault("mission.max_companies", 50)
	v.SetDefault("mission.sample_size", 10)
	v.SetDefault("mission.qualify_threshold", 60)
	v.SetDefault("mission.company_batch_size", 25)
	v.SetDefault("mission.people_batch_size", 1)
	v.SetDefault("mission.people_per_company", 3)
	v.SetDefault("mission.rank_batch_size", 25)
	v.SetDefault("mission.concurrency", 0)
	v.SetDefault("mission.rate_limit", 0)
	v.SetDefault("mission.rate_burst", 1)
	v.SetDefault("mission.top_reasons", 5)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 500)
	v.SetDefault("retry.max_backoff_ms", 30000)
	v.SetDefault("retry.breaker_threshold", 5)
	v.SetDefault("retry.breaker_cooldown_secs", 30)
	v.SetDefault("notion.rate_limit", 3)
	v.SetDefault("salesforce.login_url", "https://login.salesforce.com")
	v.SetDefault("salesforce.lead_source", "Lead Mission")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	return &cfg, nil
}

// Validate checks the settings a command mode needs. Modes: mission (run
// phases), serve (HTTP API), notion and salesforce (exports).
func (c *Config) Validate(mode string) error {
	var problems []string
	need := func(ok bool, msg string) {
		if !ok {
			problems = append(problems, msg)
		}
	}

	switch c.Store.Driver {
	case "sqlite", "postgres":
		need(c.Store.DatabaseURL != "", "store.database_url is required")
	case "memory":
	default:
		problems = append(problems, "store.driver must be sqlite, postgres or memory")
	}

	m := c.Mission
	need(m.QualifyThreshold == 0 || (m.QualifyThreshold >= 60 && m.QualifyThreshold <= 100), "mission.qualify_threshold must be between 60 and 100")
	need(m.CompanyBatchSize >= 0 && m.PeopleBatchSize >= 0 && m.RankBatchSize >= 0, "mission batch sizes must be >= 0")
	need(m.Concurrency >= 0 && m.Concurrency <= 50, "mission.concurrency must be between 0 and 50")
	need(m.RateLimit >= 0, "mission.rate_limit must be >= 0")
	need(c.Retry.BreakerThreshold >= 0 && c.Retry.BreakerCooldownSecs >= 0, "retry breaker settings must be >= 0")

	switch mode {
	case "mission":
		need(c.Anthropic.Key != "", "anthropic.key is required")
		need(c.Perplexity.Key != "", "perplexity.key is required")
	case "serve":
		need(c.Anthropic.Key != "", "anthropic.key is required")
		need(c.Perplexity.Key != "", "perplexity.key is required")
		need(c.Server.Port > 0, "server.port must be > 0")
	case "notion":
		need(c.Notion.Token != "", "notion.token is required")
		need(c.Notion.LeadDB != "", "notion.lead_db is required")
	case "salesforce":
		need(c.Salesforce.ClientID != "", "salesforce.client_id is required")
		need(c.Salesforce.Username != "", "salesforce.username is required")
		need(c.Salesforce.KeyPath != "", "salesforce.key_path is required")
	case "local":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
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
	zap.ReplaceGlobals(logger)
	return nil
}
