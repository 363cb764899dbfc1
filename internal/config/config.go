package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration. It is read once at process
// start and treated as immutable for the lifetime of a run.
type Config struct {
	PubMed    PubMedConfig    `yaml:"pubmed" mapstructure:"pubmed"`
	Exa       ExaConfig       `yaml:"exa" mapstructure:"exa"`
	Tavily    TavilyConfig    `yaml:"tavily" mapstructure:"tavily"`
	NewsAPI   NewsAPIConfig   `yaml:"newsapi" mapstructure:"newsapi"`
	OpenAI    OpenAIConfig    `yaml:"openai" mapstructure:"openai"`
	Search    SearchConfig    `yaml:"search" mapstructure:"search"`
	Dedup     DedupConfig     `yaml:"dedup" mapstructure:"dedup"`
	Dates     DatesConfig     `yaml:"dates" mapstructure:"dates"`
	Relevance RelevanceConfig `yaml:"relevance" mapstructure:"relevance"`
	Metadata  MetadataConfig  `yaml:"metadata" mapstructure:"metadata"`
	Session   SessionConfig   `yaml:"session" mapstructure:"session"`
	Retry     RetryConfig     `yaml:"retry" mapstructure:"retry"`
	Circuit   CircuitConfig   `yaml:"circuit" mapstructure:"circuit"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// RetryConfig tunes the retry policy shared by all outbound API clients.
type RetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
	JitterFraction   float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
}

// CircuitConfig tunes the per-provider circuit breakers.
type CircuitConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// PubMedConfig configures the Entrez client. No API key is required; NCBI asks
// for a contact email and caps unauthenticated callers at 3 requests/second.
type PubMedConfig struct {
	Email          string  `yaml:"email" mapstructure:"email"`
	BaseURL        string  `yaml:"base_url" mapstructure:"base_url"`
	MaxResults     int     `yaml:"max_results" mapstructure:"max_results"`
	RequestsPerSec float64 `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
}

// ExaConfig holds Exa API settings.
type ExaConfig struct {
	Key        string `yaml:"key" mapstructure:"key"`
	BaseURL    string `yaml:"base_url" mapstructure:"base_url"`
	MaxResults int    `yaml:"max_results" mapstructure:"max_results"`
}

// TavilyConfig holds Tavily API settings.
type TavilyConfig struct {
	Key        string `yaml:"key" mapstructure:"key"`
	BaseURL    string `yaml:"base_url" mapstructure:"base_url"`
	MaxResults int    `yaml:"max_results" mapstructure:"max_results"`
}

// NewsAPIConfig holds NewsAPI settings. MaxHistoryDays clamps the requested
// window to the plan's historical reach.
type NewsAPIConfig struct {
	Key            string `yaml:"key" mapstructure:"key"`
	BaseURL        string `yaml:"base_url" mapstructure:"base_url"`
	MaxResults     int    `yaml:"max_results" mapstructure:"max_results"`
	MaxHistoryDays int    `yaml:"max_history_days" mapstructure:"max_history_days"`
}

// OpenAIConfig holds chat-completion API settings for both model tiers.
type OpenAIConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	MainModel   string `yaml:"main_model" mapstructure:"main_model"`
	DateModel   string `yaml:"date_model" mapstructure:"date_model"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// SearchConfig configures the strategy dispatcher.
type SearchConfig struct {
	ProviderTimeoutSecs   int    `yaml:"provider_timeout_secs" mapstructure:"provider_timeout_secs"`
	DomainsFile           string `yaml:"domains_file" mapstructure:"domains_file"`
	NewsAPIExpandedAlways bool   `yaml:"newsapi_expanded_always" mapstructure:"newsapi_expanded_always"`
}

// DedupConfig configures near-duplicate grouping.
type DedupConfig struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold" mapstructure:"similarity_threshold"`
}

// DatesConfig configures the three-tier date resolver.
type DatesConfig struct {
	Concurrency      int `yaml:"concurrency" mapstructure:"concurrency"`
	ModelTimeoutSecs int `yaml:"model_timeout_secs" mapstructure:"model_timeout_secs"`
}

// RelevanceConfig configures the relevance analyzer and filter.
type RelevanceConfig struct {
	MinScore         int `yaml:"min_score" mapstructure:"min_score"`
	Concurrency      int `yaml:"concurrency" mapstructure:"concurrency"`
	CallDelayMs      int `yaml:"call_delay_ms" mapstructure:"call_delay_ms"`
	ModelTimeoutSecs int `yaml:"model_timeout_secs" mapstructure:"model_timeout_secs"`
}

// MetadataConfig configures the append-only run-record log.
type MetadataConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// SessionConfig configures the in-process result cache.
type SessionConfig struct {
	MaxEntries int `yaml:"max_entries" mapstructure:"max_entries"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PHARMA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("pubmed.base_url", "https://eutils.ncbi.nlm.nih.gov/entrez/eutils")
	v.SetDefault("pubmed.max_results", 50)
	v.SetDefault("pubmed.requests_per_sec", 3)
	v.SetDefault("exa.base_url", "https://api.exa.ai")
	v.SetDefault("exa.max_results", 25)
	v.SetDefault("tavily.base_url", "https://api.tavily.com")
	v.SetDefault("tavily.max_results", 20)
	v.SetDefault("newsapi.base_url", "https://newsapi.org/v2")
	v.SetDefault("newsapi.max_results", 100)
	v.SetDefault("newsapi.max_history_days", 30)
	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("openai.main_model", "gpt-4o")
	v.SetDefault("openai.date_model", "gpt-4o-mini")
	v.SetDefault("openai.timeout_secs", 30)
	v.SetDefault("search.provider_timeout_secs", 30)
	v.SetDefault("search.newsapi_expanded_always", true)
	v.SetDefault("dedup.similarity_threshold", 0.75)
	v.SetDefault("dates.concurrency", 8)
	v.SetDefault("dates.model_timeout_secs", 10)
	// The threshold drifted between 40 and 50 historically; 40 is the
	// documented default and deployments override it from config.
	v.SetDefault("relevance.min_score", 40)
	v.SetDefault("relevance.concurrency", 5)
	v.SetDefault("relevance.call_delay_ms", 200)
	v.SetDefault("relevance.model_timeout_secs", 30)
	v.SetDefault("metadata.path", "alert_metadata.csv")
	v.SetDefault("session.max_entries", 100)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 500)
	v.SetDefault("retry.max_backoff_ms", 10000)
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("retry.jitter_fraction", 0.2)
	v.SetDefault("circuit.failure_threshold", 5)
	v.SetDefault("circuit.reset_timeout_secs", 60)

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

	return &cfg, nil
}

// Validate checks that every enabled provider has the credentials it needs.
// Missing credentials are fatal before any provider call is made.
func (c *Config) Validate(providers []string) error {
	var missing []string
	for _, p := range providers {
		switch p {
		case "pubmed":
			if c.PubMed.Email == "" {
				missing = append(missing, "pubmed.email")
			}
		case "exa":
			if c.Exa.Key == "" {
				missing = append(missing, "exa.key")
			}
		case "tavily":
			if c.Tavily.Key == "" {
				missing = append(missing, "tavily.key")
			}
		case "newsapi":
			if c.NewsAPI.Key == "" {
				missing = append(missing, "newsapi.key")
			}
		}
	}
	if c.OpenAI.Key == "" {
		missing = append(missing, "openai.key")
	}
	if len(missing) > 0 {
		return eris.Errorf("config: missing required settings: %s", strings.Join(missing, ", "))
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
