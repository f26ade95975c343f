package config

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"
)

// ModelAliases maps short model names to canonical ones and lists the
// models each provider type serves.
type ModelAliases struct {
	Aliases   map[string]string   `yaml:"aliases"`
	Providers map[string][]string `yaml:"providers"`
}

// UserAliasesPath is ~/.tierroute/models.yaml, or "" without a home dir.
func UserAliasesPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".tierroute", "models.yaml")
}

// LoadAliases reads a models.yaml file over the built-in table. Aliases in
// the file replace built-in ones of the same name; a provider listed in the
// file replaces that provider's built-in model list.
func LoadAliases(path string) (*ModelAliases, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file ModelAliases
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	merged := DefaultAliases()
	maps.Copy(merged.Aliases, file.Aliases)
	maps.Copy(merged.Providers, file.Providers)
	return merged, nil
}

// FindAliases loads the first of paths that exists. Empty paths are
// skipped. With no file it returns the built-in table.
func FindAliases(paths ...string) (*ModelAliases, error) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			continue
		}
		return LoadAliases(p)
	}
	return DefaultAliases(), nil
}

// Resolve returns the canonical model for an alias, or the input itself.
func (a *ModelAliases) Resolve(modelOrAlias string) string {
	if a == nil {
		return modelOrAlias
	}
	if canonical, ok := a.Aliases[modelOrAlias]; ok {
		return canonical
	}
	return modelOrAlias
}

// ProviderFor returns the provider type whose list holds model after alias
// resolution. Providers are searched in name order; "" means none.
func (a *ModelAliases) ProviderFor(model string) string {
	if a == nil || model == "" {
		return ""
	}
	model = a.Resolve(model)
	for _, provider := range slices.Sorted(maps.Keys(a.Providers)) {
		if slices.Contains(a.Providers[provider], model) {
			return provider
		}
	}
	return ""
}

// BackendType is bc.Type, or the provider that serves bc.Model when the
// type is left out.
func (a *ModelAliases) BackendType(bc BackendConfig) string {
	if bc.Type != "" {
		return bc.Type
	}
	return a.ProviderFor(bc.Model)
}

// AliasesFor lists the aliases that resolve to model, sorted.
func (a *ModelAliases) AliasesFor(model string) []string {
	if a == nil {
		return nil
	}
	var names []string
	for alias, target := range a.Aliases {
		if target == model {
			names = append(names, alias)
		}
	}
	slices.Sort(names)
	return names
}

// CheckBackend reports whether bc names a model its provider serves.
// Simulated and ollama backends, and google backends that discover their
// model, always pass.
func (a *ModelAliases) CheckBackend(bc BackendConfig) error {
	typ := a.BackendType(bc)
	switch typ {
	case "":
		return fmt.Errorf("backend %q: no provider serves model %q", bc.Name, bc.Model)
	case BackendSimulated, BackendOllama:
		return nil
	}
	if bc.Model == "" {
		if typ == BackendGoogle {
			return nil
		}
		return fmt.Errorf("backend %q: model is required", bc.Name)
	}
	if a == nil {
		return nil
	}

	models, ok := a.Providers[typ]
	if !ok {
		return fmt.Errorf("backend %q: unknown provider %q", bc.Name, typ)
	}
	if model := a.Resolve(bc.Model); !slices.Contains(models, model) {
		return fmt.Errorf("backend %q: model %q not in %s provider list", bc.Name, model, typ)
	}
	return nil
}

// ValidateRoutingConfig checks every backend of cfg with CheckBackend.
func (a *ModelAliases) ValidateRoutingConfig(cfg *RoutingConfig) []error {
	if cfg == nil {
		return nil
	}
	var errs []error
	for _, b := range cfg.Backends {
		if err := a.CheckBackend(b); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// DefaultAliases returns the built-in alias table.
func DefaultAliases() *ModelAliases {
	return &ModelAliases{
		Aliases: map[string]string{
			"fast":     "gpt-4o-mini",
			"flagship": "gpt-4o",
			"quality":  "claude-sonnet-4-20250514",
			"haiku":    "claude-3-5-haiku-latest",
			"flash":    "gemini-2.5-flash",
			"pro":      "gemini-2.5-pro",
			"cheap":    "deepseek-chat",
			"reason":   "deepseek-reasoner",
		},
		Providers: map[string][]string{
			BackendAnthropic: {"claude-sonnet-4-20250514", "claude-3-5-haiku-latest"},
			BackendOpenAI:    {"gpt-4o", "gpt-4o-mini", "gpt-3.5-turbo"},
			BackendGoogle:    {"gemini-2.5-flash", "gemini-2.0-flash", "gemini-2.5-pro"},
			BackendDeepSeek:  {"deepseek-chat", "deepseek-reasoner"},
		},
	}
}
