package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestResolve(t *testing.T) {
	aliases := &ModelAliases{
		Aliases: map[string]string{
			"fast":    "gpt-4o-mini",
			"quality": "claude-sonnet-4-20250514",
		},
	}

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "resolve known alias",
			input:    "fast",
			expected: "gpt-4o-mini",
		},
		{
			name:     "resolve another alias",
			input:    "quality",
			expected: "claude-sonnet-4-20250514",
		},
		{
			name:     "unknown alias returns input unchanged",
			input:    "unknown-model",
			expected: "unknown-model",
		},
		{
			name:     "canonical model returns unchanged",
			input:    "gpt-4o-mini",
			expected: "gpt-4o-mini",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := aliases.Resolve(tt.input)
			if result != tt.expected {
				t.Errorf("Resolve(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestResolve_NilAliases(t *testing.T) {
	var aliases *ModelAliases
	result := aliases.Resolve("fast")
	if result != "fast" {
		t.Errorf("Resolve on nil should return input, got %q", result)
	}
}

func TestValidateModel(t *testing.T) {
	aliases := &ModelAliases{
		Providers: map[string][]string{
			"openai":    {"gpt-4o", "gpt-4o-mini"},
			"anthropic": {"claude-sonnet-4-20250514"},
		},
	}

	tests := []struct {
		name      string
		provider  string
		model     string
		wantError bool
	}{
		{"valid model for provider", "openai", "gpt-4o", false},
		{"another valid model", "anthropic", "claude-sonnet-4-20250514", false},
		{"invalid model for provider", "openai", "claude-sonnet-4-20250514", true},
		{"unknown provider", "unknown", "some-model", true},
		{"mock accepts anything", "mock", "whatever", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := aliases.ValidateModel(tt.provider, tt.model)
			if (err != nil) != tt.wantError {
				t.Errorf("ValidateModel(%q, %q) error = %v, wantError %v",
					tt.provider, tt.model, err, tt.wantError)
			}
		})
	}
}

func TestGetProviderForModel(t *testing.T) {
	aliases := DefaultAliases()

	tests := []struct {
		model    string
		expected string
	}{
		{"gpt-4-turbo-preview", "openai"},
		{"claude-sonnet-4-20250514", "anthropic"},
		{"deepseek-chat", "deepseek"},
		{"unknown-model", ""},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			result := aliases.GetProviderForModel(tt.model)
			if result != tt.expected {
				t.Errorf("GetProviderForModel(%q) = %q, want %q", tt.model, result, tt.expected)
			}
		})
	}
}

func TestLoadAliases(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "models.yaml")

	content := `aliases:
  fast: gpt-4o-mini
  quality: claude-sonnet-4-20250514

providers:
  openai:
    - gpt-4o-mini
  anthropic:
    - claude-sonnet-4-20250514
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	aliases, err := LoadAliases(configPath)
	if err != nil {
		t.Fatalf("LoadAliases() error = %v", err)
	}

	if aliases.Resolve("fast") != "gpt-4o-mini" {
		t.Error("alias 'fast' should resolve to 'gpt-4o-mini'")
	}
	if aliases.GetProviderForModel("gpt-4o-mini") != "openai" {
		t.Error("gpt-4o-mini should be in openai provider")
	}
}

func TestLoadAliases_FileNotFound(t *testing.T) {
	_, err := LoadAliases("/nonexistent/path/models.yaml")
	if err == nil {
		t.Error("LoadAliases should error for nonexistent file")
	}
}

func TestLoadAliasesWithFallback(t *testing.T) {
	dir := t.TempDir()
	content := `aliases:
  test-alias: test-model
`
	if err := os.WriteFile(filepath.Join(dir, "models.yaml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	aliases, err := LoadAliasesWithFallback(dir)
	if err != nil {
		t.Fatalf("LoadAliasesWithFallback() error = %v", err)
	}
	if aliases.Resolve("test-alias") != "test-model" {
		t.Error("user models.yaml should be loaded")
	}
}

func TestLoadAliasesWithFallback_NoFile(t *testing.T) {
	aliases, err := LoadAliasesWithFallback(t.TempDir())
	if err != nil {
		t.Fatalf("LoadAliasesWithFallback() should not error, got %v", err)
	}
	if aliases.Resolve("gpt4") != "gpt-4-turbo-preview" {
		t.Error("built-in aliases should be used when no file exists")
	}
}

func TestListAliasesReturnsCopy(t *testing.T) {
	aliases := &ModelAliases{
		Aliases: map[string]string{
			"fast":    "gpt-4o-mini",
			"quality": "claude-sonnet-4-20250514",
		},
	}

	list := aliases.ListAliases()
	if len(list) != 2 {
		t.Errorf("expected 2 aliases, got %d", len(list))
	}

	list["new"] = "value"
	if aliases.Aliases["new"] == "value" {
		t.Error("ListAliases should return a copy, not the original")
	}
}

func TestResolveConfig(t *testing.T) {
	aliases := DefaultAliases()

	cfg := Default()
	cfg.Model = "omni"
	if err := aliases.ResolveConfig(cfg); err != nil {
		t.Fatalf("ResolveConfig: %v", err)
	}
	if cfg.Model != "gpt-4o" {
		t.Fatalf("expected gpt-4o, got %q", cfg.Model)
	}

	cfg = Default()
	cfg.Model = "quality"
	err := aliases.ResolveConfig(cfg)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected provider mismatch error, got %v", err)
	}

	cfg = Default()
	cfg.Provider = "mock"
	cfg.Model = "quality"
	if err := aliases.ResolveConfig(cfg); err != nil {
		t.Fatalf("mock provider should accept any model: %v", err)
	}
}
