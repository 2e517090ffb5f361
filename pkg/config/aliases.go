package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// ModelAliases manages model alias resolution and validation.
type ModelAliases struct {
	Aliases   map[string]string   `yaml:"aliases"`
	Providers map[string][]string `yaml:"providers"`
}

// LoadAliases reads model aliases from a YAML file.
func LoadAliases(path string) (*ModelAliases, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var aliases ModelAliases
	if err := yaml.Unmarshal(data, &aliases); err != nil {
		return nil, err
	}

	if aliases.Aliases == nil {
		aliases.Aliases = make(map[string]string)
	}
	if aliases.Providers == nil {
		aliases.Providers = make(map[string][]string)
	}

	return &aliases, nil
}

// LoadAliasesWithFallback loads models.yaml from the config directory,
// falling back to the built-in aliases when none is present.
func LoadAliasesWithFallback(configDir string) (*ModelAliases, error) {
	if configDir != "" {
		userPath := filepath.Join(configDir, "models.yaml")
		if _, err := os.Stat(userPath); err == nil {
			return LoadAliases(userPath)
		}
	}
	return DefaultAliases(), nil
}

// Resolve returns the canonical model name for an alias.
// If the input is not an alias, it returns the input unchanged.
func (a *ModelAliases) Resolve(modelOrAlias string) string {
	if a == nil || a.Aliases == nil {
		return modelOrAlias
	}
	if canonical, ok := a.Aliases[modelOrAlias]; ok {
		return canonical
	}
	return modelOrAlias
}

// ValidateModel checks if a model exists in the provider's list.
func (a *ModelAliases) ValidateModel(provider, model string) error {
	if a == nil || a.Providers == nil {
		return nil
	}
	if provider == "mock" {
		return nil
	}

	models, ok := a.Providers[provider]
	if !ok {
		return fmt.Errorf("unknown provider %q", provider)
	}
	for _, m := range models {
		if m == model {
			return nil
		}
	}
	return fmt.Errorf("model %q not in %s provider list", model, provider)
}

// ListAliases returns a copy of the aliases map.
func (a *ModelAliases) ListAliases() map[string]string {
	if a == nil || a.Aliases == nil {
		return make(map[string]string)
	}
	result := make(map[string]string, len(a.Aliases))
	for k, v := range a.Aliases {
		result[k] = v
	}
	return result
}

// ListProviders returns a sorted list of provider names.
func (a *ModelAliases) ListProviders() []string {
	if a == nil || a.Providers == nil {
		return nil
	}
	providers := make([]string, 0, len(a.Providers))
	for p := range a.Providers {
		providers = append(providers, p)
	}
	sort.Strings(providers)
	return providers
}

// GetProviderModels returns the models for a given provider.
func (a *ModelAliases) GetProviderModels(provider string) []string {
	if a == nil || a.Providers == nil {
		return nil
	}
	return a.Providers[provider]
}

// GetProviderForModel returns the provider name for a canonical model.
func (a *ModelAliases) GetProviderForModel(model string) string {
	if a == nil || a.Providers == nil {
		return ""
	}
	for _, provider := range a.ListProviders() {
		for _, m := range a.Providers[provider] {
			if m == model {
				return provider
			}
		}
	}
	return ""
}

// ResolveConfig rewrites cfg.Model through the aliases and rejects a model
// that is listed under a different provider.
func (a *ModelAliases) ResolveConfig(cfg *Config) error {
	if a == nil || cfg == nil {
		return nil
	}
	cfg.Model = a.Resolve(cfg.Model)
	if owner := a.GetProviderForModel(cfg.Model); owner != "" && owner != cfg.Provider && cfg.Provider != "mock" {
		return fmt.Errorf("%w: model %q belongs to provider %s, not %s", ErrInvalidConfig, cfg.Model, owner, cfg.Provider)
	}
	return nil
}

// DefaultAliases returns the built-in model aliases.
func DefaultAliases() *ModelAliases {
	return &ModelAliases{
		Aliases: map[string]string{
			// OpenAI
			"gpt4": "gpt-4-turbo-preview",
			"fast": "gpt-4o-mini",
			"omni": "gpt-4o",
			// Anthropic
			"quality": "claude-sonnet-4-20250514",
			"deep":    "claude-opus-4-20250514",
			// Google
			"gemini":   "gemini-2.0-flash",
			"research": "gemini-2.5-pro",
			// DeepSeek
			"cheap":  "deepseek-chat",
			"reason": "deepseek-reasoner",
		},
		Providers: map[string][]string{
			"anthropic": {"claude-sonnet-4-20250514", "claude-opus-4-20250514"},
			"openai":    {"gpt-4-turbo-preview", "gpt-4o", "gpt-4o-mini"},
			"google":    {"gemini-2.0-flash", "gemini-2.5-pro"},
			"deepseek":  {"deepseek-chat", "deepseek-reasoner"},
		},
	}
}
