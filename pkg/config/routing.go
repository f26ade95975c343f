package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Backend types understood by the adapter builder.
const (
	BackendSimulated = "simulated"
	BackendOpenAI    = "openai"
	BackendAnthropic = "anthropic"
	BackendGoogle    = "google"
	BackendDeepSeek  = "deepseek"
	BackendOllama    = "ollama"
)

// Sink drivers.
const (
	SinkSQLite = "sqlite"
	SinkRedis  = "redis"
	SinkMemory = "memory"
)

// MaxFallbackHops bounds fallback.max_hops regardless of configuration.
const MaxFallbackHops = 2

// RoutingConfig holds the routing configuration.
type RoutingConfig struct {
	Classifier ClassifierConfig  `yaml:"classifier"`
	Tiers      map[string]string `yaml:"tiers"`
	Backends   []BackendConfig   `yaml:"backends"`
	Fallback   FallbackConfig    `yaml:"fallback,omitempty"`
	Sink       SinkConfig        `yaml:"sink,omitempty"`
	Server     ServerConfig      `yaml:"server,omitempty"`
}

// ClassifierConfig selects and tunes the difficulty classifier.
type ClassifierConfig struct {
	Strategy string `yaml:"strategy"`
	// Backend names the registered backend the adaptive strategy consults.
	Backend        string   `yaml:"backend,omitempty"`
	MaxTokens      int      `yaml:"max_tokens,omitempty"`
	ComplexLength  int      `yaml:"complex_length,omitempty"`
	ModerateLength int      `yaml:"moderate_length,omitempty"`
	Keywords       []string `yaml:"keywords,omitempty"`
}

// BackendConfig declares one generation backend.
type BackendConfig struct {
	Name string `yaml:"name"`
	// Type may be omitted when Model is listed under a provider in models.yaml.
	Type    string       `yaml:"type,omitempty"`
	Model   string       `yaml:"model,omitempty"`
	BaseURL string       `yaml:"base_url,omitempty"`
	Pricing ModelPricing `yaml:"pricing,omitempty"`
	// Simulated configures a simulated backend, or the stand-in used when a
	// provider backend has no credential.
	Simulated *SimulatedConfig `yaml:"simulated,omitempty"`
}

// ModelPricing defines per-1k token pricing.
type ModelPricing struct {
	PromptPer1K     float64 `yaml:"prompt_per_1k,omitempty"`
	CompletionPer1K float64 `yaml:"completion_per_1k,omitempty"`
}

// SimulatedConfig describes a deterministic local backend.
type SimulatedConfig struct {
	Label        string        `yaml:"label,omitempty"`
	Latency      time.Duration `yaml:"latency,omitempty"`
	BaseTokens   int           `yaml:"base_tokens,omitempty"`
	CostPerToken float64       `yaml:"cost_per_token,omitempty"`
}

// FallbackConfig enables the upward tier cascade on generation failure.
type FallbackConfig struct {
	Enabled bool `yaml:"enabled,omitempty"`
	MaxHops int  `yaml:"max_hops,omitempty"`
}

// SinkConfig selects where decision records go.
type SinkConfig struct {
	Driver          string        `yaml:"driver,omitempty"`
	Mirrors         []string      `yaml:"mirrors,omitempty"`
	Path            string        `yaml:"path,omitempty"`
	RedisAddr       string        `yaml:"redis_addr,omitempty"`
	RedisStream     string        `yaml:"redis_stream,omitempty"`
	RedisMaxLen     int64         `yaml:"redis_max_len,omitempty"`
	RetentionDays   int           `yaml:"retention_days,omitempty"`
	CleanupSchedule string        `yaml:"cleanup_schedule,omitempty"`
	AppendTimeout   time.Duration `yaml:"append_timeout,omitempty"`
}

// ServerConfig configures the HTTP transport.
type ServerConfig struct {
	Listen    string  `yaml:"listen,omitempty"`
	RateLimit float64 `yaml:"rate_limit,omitempty"`
	Burst     int     `yaml:"burst,omitempty"`
}

// LoadRoutingConfig reads routing configuration from a YAML file.
func LoadRoutingConfig(path string) (*RoutingConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg RoutingConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyRoutingDefaults(&cfg)
	return &cfg, nil
}

// DefaultRoutingConfig returns the three-tier setup used when no routing
// file exists. Provider backends fall back to simulated stand-ins until
// their keys are configured.
func DefaultRoutingConfig() *RoutingConfig {
	cfg := &RoutingConfig{
		Classifier: ClassifierConfig{
			Strategy: "rule",
			Backend:  "gemini-flash",
		},
		Tiers: map[string]string{
			"simple":   "phi-3-mini",
			"moderate": "gemini-flash",
			"complex":  "gpt-4o",
		},
		Backends: []BackendConfig{
			{
				Name: "phi-3-mini",
				Type: BackendSimulated,
				Simulated: &SimulatedConfig{
					Label:        "Phi-3",
					Latency:      100 * time.Millisecond,
					BaseTokens:   20,
					CostPerToken: 0.000002,
				},
			},
			{
				Name: "llama-3",
				Type: BackendSimulated,
				Simulated: &SimulatedConfig{
					Label:        "Llama-3",
					Latency:      300 * time.Millisecond,
					BaseTokens:   50,
					CostPerToken: 0.000005,
				},
			},
			{
				Name:    "gemini-flash",
				Type:    BackendGoogle,
				Pricing: ModelPricing{PromptPer1K: 0.0005, CompletionPer1K: 0.0005},
				Simulated: &SimulatedConfig{
					Label:        "Llama-3 (Simulated)",
					Latency:      300 * time.Millisecond,
					BaseTokens:   50,
					CostPerToken: 0.000005,
				},
			},
			{
				Name:    "gpt-4o",
				Type:    BackendOpenAI,
				Model:   "gpt-4o",
				Pricing: ModelPricing{PromptPer1K: 0.0025, CompletionPer1K: 0.01},
				Simulated: &SimulatedConfig{
					Label:        "GPT-4o (Simulated)",
					Latency:      800 * time.Millisecond,
					BaseTokens:   100,
					CostPerToken: 0.00003,
				},
			},
		},
	}

	applyRoutingDefaults(cfg)
	return cfg
}

func applyRoutingDefaults(cfg *RoutingConfig) {
	if cfg == nil {
		return
	}
	if cfg.Classifier.Strategy == "" {
		cfg.Classifier.Strategy = "rule"
	}
	if cfg.Classifier.MaxTokens == 0 {
		cfg.Classifier.MaxTokens = 128
	}
	if cfg.Classifier.ComplexLength == 0 {
		cfg.Classifier.ComplexLength = 500
	}
	if cfg.Classifier.ModerateLength == 0 {
		cfg.Classifier.ModerateLength = 100
	}
	if cfg.Fallback.MaxHops <= 0 {
		cfg.Fallback.MaxHops = 1
	}
	if cfg.Fallback.MaxHops > MaxFallbackHops {
		cfg.Fallback.MaxHops = MaxFallbackHops
	}
	if cfg.Sink.Driver == "" {
		cfg.Sink.Driver = SinkSQLite
	}
	if cfg.Sink.Path == "" {
		cfg.Sink.Path = "tierroute.db"
	}
	if cfg.Sink.RedisStream == "" {
		cfg.Sink.RedisStream = "tierroute:decisions"
	}
	if cfg.Sink.RedisMaxLen == 0 {
		cfg.Sink.RedisMaxLen = 10000
	}
	if cfg.Sink.RetentionDays == 0 {
		cfg.Sink.RetentionDays = 30
	}
	if cfg.Sink.CleanupSchedule == "" {
		cfg.Sink.CleanupSchedule = "@hourly"
	}
	if cfg.Sink.AppendTimeout == 0 {
		cfg.Sink.AppendTimeout = 2 * time.Second
	}
	if cfg.Server.Listen == "" {
		cfg.Server.Listen = ":8000"
	}
	if cfg.Server.RateLimit == 0 {
		cfg.Server.RateLimit = 20
	}
	if cfg.Server.Burst == 0 {
		cfg.Server.Burst = 40
	}
}

// Backend returns the backend declared under name.
func (c *RoutingConfig) Backend(name string) (BackendConfig, bool) {
	if c == nil {
		return BackendConfig{}, false
	}
	for _, b := range c.Backends {
		if b.Name == name {
			return b, true
		}
	}
	return BackendConfig{}, false
}

// Validate checks the structure of the routing config. Tier names and
// backend availability are checked when the router is built.
func (c *RoutingConfig) Validate() error {
	if c == nil {
		return errors.New("routing config is nil")
	}

	var errs []error
	seen := make(map[string]bool, len(c.Backends))
	for i, b := range c.Backends {
		if b.Name == "" {
			errs = append(errs, fmt.Errorf("backends[%d]: name is required", i))
			continue
		}
		if seen[b.Name] {
			errs = append(errs, fmt.Errorf("backend %q declared twice", b.Name))
		}
		seen[b.Name] = true
		if b.Type == "" {
			if b.Model == "" {
				errs = append(errs, fmt.Errorf("backend %q: type or model is required", b.Name))
			}
		} else if !knownBackendType(b.Type) {
			errs = append(errs, fmt.Errorf("backend %q: unknown type %q", b.Name, b.Type))
		}
	}

	if _, ok := c.Tiers["complex"]; !ok {
		errs = append(errs, errors.New("tiers: a complex backend is required"))
	}

	for _, driver := range append([]string{c.Sink.Driver}, c.Sink.Mirrors...) {
		switch driver {
		case SinkSQLite, SinkRedis, SinkMemory:
		default:
			errs = append(errs, fmt.Errorf("sink: unknown driver %q", driver))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid routing config: %w", errors.Join(errs...))
	}
	return nil
}

func knownBackendType(t string) bool {
	switch t {
	case BackendSimulated, BackendOpenAI, BackendAnthropic, BackendGoogle, BackendDeepSeek, BackendOllama:
		return true
	}
	return false
}
