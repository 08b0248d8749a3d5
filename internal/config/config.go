// Package config loads HDRP configuration from an optional YAML file and
// applies environment variable overrides on top of built-in defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the pipeline.
type Config struct {
	Search SearchConfig `yaml:"search"`
	NLI    NLIConfig    `yaml:"nli"`
	LLM    LLMConfig    `yaml:"llm"`
	Run    RunConfig    `yaml:"run"`
}

// SearchConfig configures the web search provider.
type SearchConfig struct {
	Provider       string `yaml:"provider"` // simulated, google, tavily
	APIKey         string `yaml:"api_key"`
	GoogleCX       string `yaml:"google_cx"` // Custom Search engine id
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxResults     int    `yaml:"max_results"`
}

// NLIConfig configures the entailment service client and verification
// thresholds.
type NLIConfig struct {
	Endpoint       string `yaml:"endpoint"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	DefaultVariant string `yaml:"default_variant"`

	// Verification thresholds. Zero values are replaced by defaults.
	GroundingEntailment  float64 `yaml:"grounding_entailment"`
	ContradictionCeiling float64 `yaml:"contradiction_ceiling"`
	RelevanceEntailment  float64 `yaml:"relevance_entailment"`
	RelevanceOverlap     float64 `yaml:"relevance_overlap"`
	LexicalOverlap       float64 `yaml:"lexical_overlap"`
	LexicalFallback      *bool   `yaml:"lexical_fallback"`
}

// LLMConfig configures the planner's language model backend.
type LLMConfig struct {
	Provider       string `yaml:"provider"` // openai, gemini
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// RunConfig configures execution limits and output locations.
type RunConfig struct {
	DeadlineSeconds int    `yaml:"deadline_seconds"`
	WorkerPoolSize  int    `yaml:"worker_pool_size"`
	MaxDepth        int    `yaml:"max_depth"`
	ArtifactsDir    string `yaml:"artifacts_dir"`
	LogsDir         string `yaml:"logs_dir"`
}

// Default returns the built-in configuration.
func Default() *Config {
	lexical := true
	return &Config{
		Search: SearchConfig{
			Provider:       "simulated",
			TimeoutSeconds: 30,
			MaxResults:     10,
		},
		NLI: NLIConfig{
			Endpoint:             "http://localhost:8000",
			TimeoutSeconds:       10,
			GroundingEntailment:  0.65,
			ContradictionCeiling: 0.35,
			RelevanceEntailment:  0.45,
			RelevanceOverlap:     0.6,
			LexicalOverlap:       0.5,
			LexicalFallback:      &lexical,
		},
		LLM: LLMConfig{
			Provider:       "openai",
			Model:          "gpt-4o-mini",
			BaseURL:        "https://api.openai.com/v1",
			TimeoutSeconds: 60,
		},
		Run: RunConfig{
			DeadlineSeconds: 300,
			WorkerPoolSize:  4,
			MaxDepth:        3,
			ArtifactsDir:    "artifacts",
			LogsDir:         "logs",
		},
	}
}

// Load reads YAML from path (if path is non-empty and the file exists),
// merges it over defaults, then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()
	cfg.fillZeroes()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SEARCH_PROVIDER"); v != "" {
		c.Search.Provider = v
	}
	if v := os.Getenv("SEARCH_API_KEY"); v != "" {
		c.Search.APIKey = v
	}
	if v := os.Getenv("GOOGLE_SEARCH_CX"); v != "" {
		c.Search.GoogleCX = v
	}
	if v := os.Getenv("NLI_ENDPOINT"); v != "" {
		c.NLI.Endpoint = v
	}
	if n, ok := envInt("NLI_TIMEOUT_SECONDS"); ok {
		c.NLI.TimeoutSeconds = n
	}
	if v := os.Getenv("NLI_VARIANT_DEFAULT"); v != "" {
		c.NLI.DefaultVariant = v
	}
	if n, ok := envInt("RUN_DEADLINE_SECONDS"); ok {
		c.Run.DeadlineSeconds = n
	}
	if n, ok := envInt("WORKER_POOL_SIZE"); ok {
		c.Run.WorkerPoolSize = n
	}
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" && c.LLM.Provider == "gemini" && c.LLM.APIKey == "" {
		c.LLM.APIKey = v
	}
}

// fillZeroes restores defaults for fields a partial YAML file zeroed out.
func (c *Config) fillZeroes() {
	d := Default()
	if c.Search.Provider == "" {
		c.Search.Provider = d.Search.Provider
	}
	if c.Search.TimeoutSeconds <= 0 {
		c.Search.TimeoutSeconds = d.Search.TimeoutSeconds
	}
	if c.Search.MaxResults <= 0 {
		c.Search.MaxResults = d.Search.MaxResults
	}
	if c.NLI.Endpoint == "" {
		c.NLI.Endpoint = d.NLI.Endpoint
	}
	if c.NLI.TimeoutSeconds <= 0 {
		c.NLI.TimeoutSeconds = d.NLI.TimeoutSeconds
	}
	if c.NLI.GroundingEntailment <= 0 {
		c.NLI.GroundingEntailment = d.NLI.GroundingEntailment
	}
	if c.NLI.ContradictionCeiling <= 0 {
		c.NLI.ContradictionCeiling = d.NLI.ContradictionCeiling
	}
	if c.NLI.RelevanceEntailment <= 0 {
		c.NLI.RelevanceEntailment = d.NLI.RelevanceEntailment
	}
	if c.NLI.RelevanceOverlap <= 0 {
		c.NLI.RelevanceOverlap = d.NLI.RelevanceOverlap
	}
	if c.NLI.LexicalOverlap <= 0 {
		c.NLI.LexicalOverlap = d.NLI.LexicalOverlap
	}
	if c.NLI.LexicalFallback == nil {
		c.NLI.LexicalFallback = d.NLI.LexicalFallback
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = d.LLM.Provider
	}
	if c.LLM.Model == "" {
		c.LLM.Model = d.LLM.Model
	}
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = d.LLM.BaseURL
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = d.LLM.TimeoutSeconds
	}
	if c.Run.DeadlineSeconds <= 0 {
		c.Run.DeadlineSeconds = d.Run.DeadlineSeconds
	}
	if c.Run.WorkerPoolSize <= 0 {
		c.Run.WorkerPoolSize = d.Run.WorkerPoolSize
	}
	if c.Run.MaxDepth <= 0 {
		c.Run.MaxDepth = d.Run.MaxDepth
	}
	if c.Run.ArtifactsDir == "" {
		c.Run.ArtifactsDir = d.Run.ArtifactsDir
	}
	if c.Run.LogsDir == "" {
		c.Run.LogsDir = d.Run.LogsDir
	}
}

func (c *Config) validate() error {
	switch c.Search.Provider {
	case "simulated", "google", "tavily":
	default:
		return fmt.Errorf("unknown search provider %q", c.Search.Provider)
	}
	switch c.LLM.Provider {
	case "openai", "gemini":
	default:
		return fmt.Errorf("unknown llm provider %q", c.LLM.Provider)
	}
	return nil
}

// RunDeadline returns the configured run deadline as a duration.
func (c *Config) RunDeadline() time.Duration {
	return time.Duration(c.Run.DeadlineSeconds) * time.Second
}

// NLITimeout returns the per-call NLI timeout.
func (c *Config) NLITimeout() time.Duration {
	return time.Duration(c.NLI.TimeoutSeconds) * time.Second
}

// SearchTimeout returns the per-call search timeout.
func (c *Config) SearchTimeout() time.Duration {
	return time.Duration(c.Search.TimeoutSeconds) * time.Second
}

// LLMTimeout returns the per-call LLM timeout.
func (c *Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLM.TimeoutSeconds) * time.Second
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
