package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kelseyhightower/envconfig"

	"github.com/zen-systems/tierroute/pkg/logx"
)

// EnvPrefix namespaces tierroute settings in the environment.
const EnvPrefix = "TIERROUTE"

// Config holds the application configuration.
type Config struct {
	Settings    Settings
	Credentials Credentials
	Routing     *RoutingConfig
	// RoutingPath is the file Routing was read from; empty when defaults are used.
	RoutingPath string
	ConfigDir   string
}

// Settings are process-level overrides read from TIERROUTE_* variables.
type Settings struct {
	ClassifierStrategy string `split_words:"true"`
	RoutingFile        string `split_words:"true"`
	DBPath             string `envconfig:"DB_PATH"`
	Listen             string
	// Log reads TIERROUTE_LOG_DEBUG and TIERROUTE_LOG_PRETTY.
	Log logx.Config
}

// Credentials holds per-provider API keys. Each key may be set with or
// without the TIERROUTE_ prefix.
type Credentials struct {
	OpenAI    string `envconfig:"OPENAI_API_KEY" json:"OPENAI_API_KEY,omitempty"`
	Anthropic string `envconfig:"ANTHROPIC_API_KEY" json:"ANTHROPIC_API_KEY,omitempty"`
	Google    string `envconfig:"GOOGLE_API_KEY" json:"GOOGLE_API_KEY,omitempty"`
	DeepSeek  string `envconfig:"DEEPSEEK_API_KEY" json:"DEEPSEEK_API_KEY,omitempty"`
}

// LoadOptions selects explicit files instead of the discovered defaults.
type LoadOptions struct {
	EnvFile     string
	RoutingFile string
}

// Load reads the .env file, environment variables, and the routing file.
// Environment variables take precedence over file configuration.
func Load(opts LoadOptions) (*Config, error) {
	if opts.EnvFile != "" {
		if err := exportEnvironment(opts.EnvFile); err != nil {
			return nil, fmt.Errorf("failed to load env file: %w", err)
		}
	} else if err := exportEnvironmentIfExists(".env"); err != nil {
		return nil, fmt.Errorf("failed to load default env file: %w", err)
	}

	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	cfg := &Config{ConfigDir: configDir}
	if err := envconfig.Process(EnvPrefix, &cfg.Settings); err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}
	if err := envconfig.Process(EnvPrefix, &cfg.Credentials); err != nil {
		return nil, fmt.Errorf("failed to read credentials: %w", err)
	}

	routingPath := firstNonEmpty(opts.RoutingFile, cfg.Settings.RoutingFile)
	if routingPath == "" {
		candidate := filepath.Join(configDir, "routing.yaml")
		if _, err := os.Stat(candidate); err == nil {
			routingPath = candidate
		}
	}

	if routingPath != "" {
		routing, err := LoadRoutingConfig(routingPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load routing config from %s: %w", routingPath, err)
		}
		cfg.Routing = routing
		cfg.RoutingPath = routingPath
	} else {
		cfg.Routing = DefaultRoutingConfig()
	}

	cfg.ApplySettings(cfg.Routing)
	if err := cfg.Routing.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplySettings copies environment overrides onto a routing config.
// It is also used after a hot reload so overrides survive file edits.
func (c *Config) ApplySettings(routing *RoutingConfig) {
	if c == nil || routing == nil {
		return
	}
	if c.Settings.ClassifierStrategy != "" {
		routing.Classifier.Strategy = c.Settings.ClassifierStrategy
	}
	if c.Settings.DBPath != "" {
		routing.Sink.Path = c.Settings.DBPath
	}
	if c.Settings.Listen != "" {
		routing.Server.Listen = c.Settings.Listen
	}
}

// Key returns the API key for a provider type.
func (c Credentials) Key(provider string) string {
	switch provider {
	case BackendAnthropic:
		return c.Anthropic
	case BackendOpenAI:
		return c.OpenAI
	case BackendGoogle:
		return c.Google
	case BackendDeepSeek:
		return c.DeepSeek
	default:
		return ""
	}
}

// Has returns true if the API key for the given provider is configured.
func (c Credentials) Has(provider string) bool {
	return c.Key(provider) != ""
}

// Merge returns c with every non-empty key of update applied.
func (c Credentials) Merge(update Credentials) Credentials {
	if v := strings.TrimSpace(update.OpenAI); v != "" {
		c.OpenAI = v
	}
	if v := strings.TrimSpace(update.Anthropic); v != "" {
		c.Anthropic = v
	}
	if v := strings.TrimSpace(update.Google); v != "" {
		c.Google = v
	}
	if v := strings.TrimSpace(update.DeepSeek); v != "" {
		c.DeepSeek = v
	}
	return c
}

// Configured lists the providers that have a key, sorted.
func (c Credentials) Configured() []string {
	var out []string
	for _, p := range []string{BackendAnthropic, BackendDeepSeek, BackendGoogle, BackendOpenAI} {
		if c.Has(p) {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

// IsZero reports whether no key is set.
func (c Credentials) IsZero() bool {
	return c == Credentials{}
}

var errNoHome = errors.New("home directory unavailable")

func getConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "", fmt.Errorf("%w: %v", errNoHome, err)
	}
	configDir := filepath.Join(home, ".tierroute")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", err
	}
	return configDir, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
