package adapter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/zen-systems/tierroute/pkg/config"
)

// ErrMissingCredential marks a provider backend skipped for lack of a key.
var ErrMissingCredential = errors.New("missing credential")

// HealthChecker is implemented by backends that can probe their server.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Build constructs the backend described by bc. A backend without a type
// takes the provider that serves its model. A provider backend without a
// credential becomes its simulated stand-in when one is configured.
func Build(ctx context.Context, bc config.BackendConfig, creds config.Credentials, aliases *config.ModelAliases) (Backend, error) {
	bc.Type = aliases.BackendType(bc)
	if bc.Type == "" {
		return nil, fmt.Errorf("backend %q: no provider serves model %q", bc.Name, bc.Model)
	}

	model := bc.Model
	if model != "" {
		model = aliases.Resolve(model)
	}
	pricing := Pricing(bc.Pricing)

	switch bc.Type {
	case config.BackendSimulated:
		return NewSimulatedBackend(bc.Name, simulatedConfig(bc.Simulated, model)), nil
	case config.BackendOllama:
		return NewOllamaBackend(bc.Name, OllamaConfig{URL: bc.BaseURL, Model: model, Pricing: pricing})
	}

	key := creds.Key(bc.Type)
	if key == "" {
		if bc.Simulated != nil {
			return NewSimulatedBackend(bc.Name, simulatedConfig(bc.Simulated, "")), nil
		}
		return nil, fmt.Errorf("%w: %s backend %q", ErrMissingCredential, bc.Type, bc.Name)
	}

	switch bc.Type {
	case config.BackendOpenAI:
		return NewOpenAIBackend(bc.Name, OpenAIConfig{APIKey: key, Model: model, BaseURL: bc.BaseURL, Pricing: pricing})
	case config.BackendAnthropic:
		return NewAnthropicBackend(bc.Name, AnthropicConfig{APIKey: key, Model: model, BaseURL: bc.BaseURL, Pricing: pricing})
	case config.BackendGoogle:
		return NewGoogleBackend(ctx, bc.Name, GoogleConfig{APIKey: key, Model: model, BaseURL: bc.BaseURL, Pricing: pricing})
	case config.BackendDeepSeek:
		return NewDeepSeekBackend(bc.Name, DeepSeekConfig{APIKey: key, Model: model, BaseURL: bc.BaseURL, Pricing: pricing})
	default:
		return nil, fmt.Errorf("backend %q: unknown type %q", bc.Name, bc.Type)
	}
}

// RegisterAll builds every configured backend and registers it under its
// name. Backends that cannot be built are unregistered and reported in the
// joined error; the rest stay usable.
func RegisterAll(ctx context.Context, reg *Registry, backends []config.BackendConfig, creds config.Credentials, aliases *config.ModelAliases, logger zerolog.Logger) ([]string, error) {
	var registered []string
	var errs []error
	for _, bc := range backends {
		b, err := Build(ctx, bc, creds, aliases)
		if err != nil {
			reg.Unregister(bc.Name)
			logger.Warn().Err(err).Str("backend", bc.Name).Msg("backend not registered")
			errs = append(errs, err)
			continue
		}
		reg.Register(bc.Name, Instance(b))
		registered = append(registered, bc.Name)
		logger.Debug().Str("backend", bc.Name).Str("type", aliases.BackendType(bc)).Msg("backend registered")
	}
	return registered, errors.Join(errs...)
}

func simulatedConfig(sc *config.SimulatedConfig, model string) SimulatedConfig {
	if sc == nil {
		return SimulatedConfig{Latency: 100 * time.Millisecond, BaseTokens: 20, Model: model}
	}
	return SimulatedConfig{
		Label:        sc.Label,
		Latency:      sc.Latency,
		BaseTokens:   sc.BaseTokens,
		CostPerToken: sc.CostPerToken,
		Model:        model,
	}
}
