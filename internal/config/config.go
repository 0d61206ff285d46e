package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/KaramelBytes/insightloom/internal/ai"
	"github.com/KaramelBytes/insightloom/internal/insights"
	"github.com/KaramelBytes/insightloom/internal/logging"
	"github.com/KaramelBytes/insightloom/internal/retry"
	"github.com/KaramelBytes/insightloom/internal/sampling"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix namespaces environment overrides, e.g. INSIGHTLOOM_MODEL.
const EnvPrefix = "INSIGHTLOOM"

// Global configuration structure.
type Global struct {
	// Inference
	Provider       string  `mapstructure:"provider" yaml:"provider"`
	Model          string  `mapstructure:"model" yaml:"model"`
	APIKey         string  `mapstructure:"api_key" yaml:"api_key"`
	BaseURL        string  `mapstructure:"base_url" yaml:"base_url,omitempty"`
	Temperature    float64 `mapstructure:"temperature" yaml:"temperature"`
	HTTPTimeoutSec int     `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`
	OllamaHost     string  `mapstructure:"ollama_host" yaml:"ollama_host"`
	// CatalogFile is an optional JSON model catalog merged over the built-in one.
	CatalogFile string `mapstructure:"catalog_file" yaml:"catalog_file,omitempty"`

	// Sampling
	RowCap         int                    `mapstructure:"row_cap" yaml:"row_cap"`
	SampleSeed     int64                  `mapstructure:"sample_seed" yaml:"sample_seed"` // 0 = unseeded
	RelevanceRules []sampling.KeywordRule `mapstructure:"relevance_rules" yaml:"relevance_rules,omitempty"`

	// Synthesis
	ChunkTokenBudget    int `mapstructure:"chunk_token_budget" yaml:"chunk_token_budget"`
	ChunkConcurrency    int `mapstructure:"chunk_concurrency" yaml:"chunk_concurrency"`
	ClassifyMaxTokens   int `mapstructure:"classify_max_tokens" yaml:"classify_max_tokens"`
	ChunkMaxTokens      int `mapstructure:"chunk_max_tokens" yaml:"chunk_max_tokens"`
	MergeMaxTokens      int `mapstructure:"merge_max_tokens" yaml:"merge_max_tokens"`
	DescriptionMaxChars int `mapstructure:"description_max_chars" yaml:"description_max_chars"`

	// Retry. RetryMaxAttempts counts retries after the first attempt.
	RetryMaxAttempts int `mapstructure:"retry_max_attempts" yaml:"retry_max_attempts"`
	RetryBaseDelayMs int `mapstructure:"retry_base_delay_ms" yaml:"retry_base_delay_ms"`
	RetryMaxDelayMs  int `mapstructure:"retry_max_delay_ms" yaml:"retry_max_delay_ms"`
	CallTimeoutSec   int `mapstructure:"call_timeout_sec" yaml:"call_timeout_sec"`

	// Logging
	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`
}

var defaults = map[string]any{
	"provider":              ai.ProviderTogether,
	"model":                 "mistralai/Mixtral-8x7B-Instruct-v0.1",
	"api_key":               "",
	"base_url":              "",
	"temperature":           0.2,
	"http_timeout_sec":      60,
	"ollama_host":           ai.DefaultOllamaHost,
	"catalog_file":          "",
	"row_cap":               sampling.DefaultMaxRows,
	"sample_seed":           0,
	"chunk_token_budget":    8000,
	"chunk_concurrency":     1,
	"classify_max_tokens":   50,
	"chunk_max_tokens":      300,
	"merge_max_tokens":      400,
	"description_max_chars": insights.DefaultDescriptionChars,
	"retry_max_attempts":    2,
	"retry_base_delay_ms":   1000,
	"retry_max_delay_ms":    8000,
	"call_timeout_sec":      0,
	"log_level":             "info",
	"log_format":            "console",
}

// Keys lists every settable configuration key in display order.
var Keys = []string{
	"provider", "model", "api_key", "base_url", "temperature", "http_timeout_sec", "ollama_host", "catalog_file",
	"row_cap", "sample_seed",
	"chunk_token_budget", "chunk_concurrency", "classify_max_tokens", "chunk_max_tokens", "merge_max_tokens", "description_max_chars",
	"retry_max_attempts", "retry_base_delay_ms", "retry_max_delay_ms", "call_timeout_sec",
	"log_level", "log_format",
}

// DefaultPath returns ~/.insightloom/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".insightloom", "config.yaml"), nil
}

// Save writes the given configuration to cfgFile, or to DefaultPath when empty,
// creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: env > config file > defaults. Flag overrides are applied by the caller.
// A missing file is not an error.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		path, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(filepath.Dir(path))
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	return &c, nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Global) Validate() error {
	if _, ok := ai.GetRuntime(c.Provider, ai.RuntimeConfig{}); !ok {
		return fmt.Errorf("unknown provider %q (use one of %s)", c.Provider, strings.Join(ai.Providers(), ", "))
	}
	if c.Model == "" {
		return errors.New("model must be set")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be within [0, 2], got %v", c.Temperature)
	}
	for name, n := range map[string]int{
		"row_cap":               c.RowCap,
		"chunk_token_budget":    c.ChunkTokenBudget,
		"chunk_concurrency":     c.ChunkConcurrency,
		"classify_max_tokens":   c.ClassifyMaxTokens,
		"chunk_max_tokens":      c.ChunkMaxTokens,
		"merge_max_tokens":      c.MergeMaxTokens,
		"description_max_chars": c.DescriptionMaxChars,
		"retry_max_attempts":    c.RetryMaxAttempts,
		"retry_base_delay_ms":   c.RetryBaseDelayMs,
		"retry_max_delay_ms":    c.RetryMaxDelayMs,
		"call_timeout_sec":      c.CallTimeoutSec,
		"http_timeout_sec":      c.HTTPTimeoutSec,
	} {
		if n < 0 {
			return fmt.Errorf("%s must not be negative, got %d", name, n)
		}
	}
	for i, r := range c.RelevanceRules {
		if len(r.Keywords) == 0 || r.Multiplier <= 0 {
			return fmt.Errorf("relevance_rules[%d]: needs keywords and a positive multiplier", i)
		}
	}
	return nil
}

// apiKeyEnv maps providers to their conventional key variables.
var apiKeyEnv = map[string]string{
	ai.ProviderTogether:   "TOGETHER_API_KEY",
	ai.ProviderOpenAI:     "OPENAI_API_KEY",
	ai.ProviderOpenRouter: "OPENROUTER_API_KEY",
	ai.ProviderAnthropic:  "ANTHROPIC_API_KEY",
}

// ResolveAPIKey returns the configured key, falling back to the provider's
// conventional environment variable.
func (c *Global) ResolveAPIKey() string {
	if c.APIKey != "" {
		return c.APIKey
	}
	if name, ok := apiKeyEnv[c.Provider]; ok {
		return os.Getenv(name)
	}
	return ""
}

// RuntimeConfig converts to the runtime factory settings.
func (c *Global) RuntimeConfig() ai.RuntimeConfig {
	return ai.RuntimeConfig{
		HTTPTimeout: time.Duration(c.HTTPTimeoutSec) * time.Second,
		APIKey:      c.ResolveAPIKey(),
		BaseURL:     c.BaseURL,
		Host:        c.OllamaHost,
	}
}

// RetryOptions converts to the inference retry settings.
func (c *Global) RetryOptions() ai.RetryOptions {
	return ai.RetryOptions{
		Retry: &retry.Config{
			MaxRetries:   c.RetryMaxAttempts,
			InitialDelay: time.Duration(c.RetryBaseDelayMs) * time.Millisecond,
			MaxDelay:     time.Duration(c.RetryMaxDelayMs) * time.Millisecond,
			Multiplier:   2.0,
		},
		CallTimeout: time.Duration(c.CallTimeoutSec) * time.Second,
	}
}

// SamplerOptions converts to sampler settings. A zero seed leaves sampling unseeded.
func (c *Global) SamplerOptions() sampling.Options {
	w := sampling.DefaultWeights()
	if len(c.RelevanceRules) > 0 {
		w.Rules = c.RelevanceRules
	}
	opts := sampling.Options{MaxRows: c.RowCap, Weights: w}
	if c.SampleSeed != 0 {
		seed := c.SampleSeed
		opts.Seed = &seed
	}
	return opts
}

// PipelineConfig converts to the insights pipeline settings.
func (c *Global) PipelineConfig() insights.Config {
	cfg := insights.DefaultConfig()
	cfg.Sampler = c.SamplerOptions()
	cfg.ClassifyMaxTokens = c.ClassifyMaxTokens
	cfg.DescriptionMaxChars = c.DescriptionMaxChars
	cfg.Synthesizer.ChunkTokenBudget = ai.FitChunkBudget(c.Model, c.ChunkTokenBudget, c.ChunkMaxTokens)
	cfg.Synthesizer.ChunkMaxTokens = c.ChunkMaxTokens
	cfg.Synthesizer.MergeMaxTokens = c.MergeMaxTokens
	cfg.Synthesizer.Concurrency = c.ChunkConcurrency
	return cfg
}

// LoggingConfig converts to logger settings.
func (c *Global) LoggingConfig(debug bool) logging.Config {
	lc := logging.Config{Level: c.LogLevel, Encoding: c.LogFormat}
	if debug {
		lc.Level = "debug"
		lc.Development = true
	}
	return lc
}

// Get returns the display value of key. API keys are not masked here.
func (c *Global) Get(key string) (string, error) {
	switch key {
	case "provider":
		return c.Provider, nil
	case "model":
		return c.Model, nil
	case "api_key":
		return c.APIKey, nil
	case "base_url":
		return c.BaseURL, nil
	case "temperature":
		return strconv.FormatFloat(c.Temperature, 'f', -1, 64), nil
	case "ollama_host":
		return c.OllamaHost, nil
	case "catalog_file":
		return c.CatalogFile, nil
	case "sample_seed":
		return strconv.FormatInt(c.SampleSeed, 10), nil
	case "log_level":
		return c.LogLevel, nil
	case "log_format":
		return c.LogFormat, nil
	}
	if p := c.intField(key); p != nil {
		return strconv.Itoa(*p), nil
	}
	return "", fmt.Errorf("unknown key: %s", key)
}

// Set parses val into key. The result is not validated; call Validate.
func (c *Global) Set(key, val string) error {
	switch key {
	case "provider":
		c.Provider = strings.ToLower(strings.TrimSpace(val))
	case "model":
		c.Model = val
	case "api_key":
		c.APIKey = val
	case "base_url":
		c.BaseURL = val
	case "temperature":
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("invalid float for temperature: %w", err)
		}
		c.Temperature = f
	case "ollama_host":
		c.OllamaHost = val
	case "catalog_file":
		c.CatalogFile = val
	case "sample_seed":
		n, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid int for sample_seed: %w", err)
		}
		c.SampleSeed = n
	case "log_level":
		c.LogLevel = strings.ToLower(val)
	case "log_format":
		if val != "console" && val != "json" {
			return fmt.Errorf("invalid log_format: %s (use console or json)", val)
		}
		c.LogFormat = val
	default:
		p := c.intField(key)
		if p == nil {
			return fmt.Errorf("unknown key: %s", key)
		}
		n, err := strconv.Atoi(val)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid int for %s: %v", key, val)
		}
		*p = n
	}
	return nil
}

func (c *Global) intField(key string) *int {
	switch key {
	case "http_timeout_sec":
		return &c.HTTPTimeoutSec
	case "row_cap":
		return &c.RowCap
	case "chunk_token_budget":
		return &c.ChunkTokenBudget
	case "chunk_concurrency":
		return &c.ChunkConcurrency
	case "classify_max_tokens":
		return &c.ClassifyMaxTokens
	case "chunk_max_tokens":
		return &c.ChunkMaxTokens
	case "merge_max_tokens":
		return &c.MergeMaxTokens
	case "description_max_chars":
		return &c.DescriptionMaxChars
	case "retry_max_attempts":
		return &c.RetryMaxAttempts
	case "retry_base_delay_ms":
		return &c.RetryBaseDelayMs
	case "retry_max_delay_ms":
		return &c.RetryMaxDelayMs
	case "call_timeout_sec":
		return &c.CallTimeoutSec
	}
	return nil
}
