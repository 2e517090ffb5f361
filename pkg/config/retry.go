package config

import "fmt"

// RetryConfig defines retry and backoff behavior for completion calls.
type RetryConfig struct {
	MaxRetries    int `yaml:"max_retries,omitempty"`
	BaseBackoffMs int `yaml:"base_backoff_ms,omitempty"`
	MaxBackoffMs  int `yaml:"max_backoff_ms,omitempty"`
}

// FileRetryConfig is the retry section of the config file. Pointers keep an
// explicit zero, such as max_retries: 0, distinct from an absent key.
type FileRetryConfig struct {
	MaxRetries    *int `yaml:"max_retries,omitempty"`
	BaseBackoffMs *int `yaml:"base_backoff_ms,omitempty"`
	MaxBackoffMs  *int `yaml:"max_backoff_ms,omitempty"`
}

// PricingConfig maps adapter -> model -> pricing.
type PricingConfig map[string]map[string]ModelPricing

// ModelPricing defines per-1k token pricing.
type ModelPricing struct {
	PromptPer1K     float64 `yaml:"prompt_per_1k,omitempty"`
	CompletionPer1K float64 `yaml:"completion_per_1k,omitempty"`
}

// DefaultRetryConfig returns two retries with 200ms..2s backoff.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxRetries: 2, BaseBackoffMs: 200, MaxBackoffMs: 2000}
}

// Lookup returns the pricing entry for adapter/model, falling back to the
// adapter's "default" entry.
func (p PricingConfig) Lookup(adapterName, model string) (ModelPricing, bool) {
	if p == nil {
		return ModelPricing{}, false
	}
	if adapterPricing, ok := p[adapterName]; ok {
		if entry, ok := adapterPricing[model]; ok {
			return entry, true
		}
		if entry, ok := adapterPricing["default"]; ok {
			return entry, true
		}
	}
	return ModelPricing{}, false
}

func mergeRetry(base RetryConfig, override FileRetryConfig) RetryConfig {
	if override.MaxRetries != nil {
		base.MaxRetries = *override.MaxRetries
	}
	if override.BaseBackoffMs != nil {
		base.BaseBackoffMs = *override.BaseBackoffMs
	}
	if override.MaxBackoffMs != nil {
		base.MaxBackoffMs = *override.MaxBackoffMs
	}
	if base.MaxBackoffMs < base.BaseBackoffMs {
		base.MaxBackoffMs = base.BaseBackoffMs
	}
	return base
}

func (r RetryConfig) validate() error {
	if r.MaxRetries < 0 {
		return fmt.Errorf("%w: max retries must not be negative", ErrInvalidConfig)
	}
	if r.BaseBackoffMs < 0 || r.MaxBackoffMs < 0 {
		return fmt.Errorf("%w: backoff must not be negative", ErrInvalidConfig)
	}
	return nil
}
