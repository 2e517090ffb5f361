package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var (
	// ErrMissingCredential is returned when the selected provider has no usable API key.
	ErrMissingCredential = errors.New("missing API credential")
	// ErrInvalidConfig is returned for out-of-range or unknown settings.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Context modes control how earlier stage outputs are embedded in later prompts.
const (
	ContextFull      = "full"
	ContextTruncated = "truncated"
)

const (
	DefaultProvider     = "openai"
	DefaultModel        = "gpt-4-turbo-preview"
	DefaultTemperature  = 0.7
	DefaultMaxTokens    = 2000
	DefaultTimeout      = 120 * time.Second
	DefaultContextLimit = 300
	DefaultProfile      = "detailed"
	DefaultTopic        = "AI-powered interview platforms"
)

// Config holds the application configuration. It is built once and passed
// explicitly to the pipeline runner and the report writer.
type Config struct {
	Provider     string
	Model        string
	BaseURL      string
	Temperature  float64
	MaxTokens    int
	Timeout      time.Duration
	Retry        RetryConfig
	Pricing      PricingConfig
	MaxBudgetUSD float64
	OutputDir    string
	Context      ContextConfig
	Profile      string
	Topic        string
	Verbose      bool

	OpenAIAPIKey    string
	AnthropicAPIKey string
	GoogleAPIKey    string
	DeepSeekAPIKey  string

	// OpenAIBaseURL comes from OPENAI_API_BASE and only applies to openai.
	OpenAIBaseURL string

	ConfigDir string
}

// ContextConfig selects the context policy for prompt assembly.
type ContextConfig struct {
	Mode  string `yaml:"mode,omitempty"`
	Limit int    `yaml:"limit,omitempty"`
}

// FileConfig represents the structure of ~/.planwright/config.yaml.
// Credentials are never read from the file.
type FileConfig struct {
	Provider       string          `yaml:"provider,omitempty"`
	Model          string          `yaml:"model,omitempty"`
	BaseURL        string          `yaml:"base_url,omitempty"`
	Temperature    *float64        `yaml:"temperature,omitempty"`
	MaxTokens      int             `yaml:"max_tokens,omitempty"`
	TimeoutSeconds int             `yaml:"timeout_seconds,omitempty"`
	OutputDir      string          `yaml:"output_dir,omitempty"`
	Profile        string          `yaml:"profile,omitempty"`
	Topic          string          `yaml:"topic,omitempty"`
	Context        ContextConfig   `yaml:"context,omitempty"`
	Retry          FileRetryConfig `yaml:"retry,omitempty"`
	Pricing        PricingConfig   `yaml:"pricing,omitempty"`
	MaxBudgetUSD   float64         `yaml:"max_budget_usd,omitempty"`
}

// Default returns the built-in configuration without consulting the environment.
func Default() *Config {
	return &Config{
		Provider:    DefaultProvider,
		Model:       DefaultModel,
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
		Timeout:     DefaultTimeout,
		Retry:       DefaultRetryConfig(),
		OutputDir:   ".",
		Context:     ContextConfig{Mode: ContextFull, Limit: DefaultContextLimit},
		Profile:     DefaultProfile,
		Topic:       DefaultTopic,
	}
}

// Load reads configuration from ~/.planwright/config.yaml, a .env file in
// the working directory and environment variables. Environment variables
// take precedence over file configuration.
func Load() (*Config, error) {
	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}
	return load(configDir, filepath.Join(configDir, "config.yaml"), false)
}

// LoadFile loads configuration using an explicit YAML file, which must exist.
func LoadFile(path string) (*Config, error) {
	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}
	return load(configDir, path, true)
}

func load(configDir, path string, required bool) (*Config, error) {
	// .env never overrides variables already present in the environment.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()
	cfg.ConfigDir = configDir

	fileConfig, err := loadFileConfig(path, required)
	if err != nil {
		return nil, err
	}
	cfg.applyFile(fileConfig)

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFileConfig reads the config file, returning empty config if it is
// optional and not found.
func loadFileConfig(path string, required bool) (*FileConfig, error) {
	fc := &FileConfig{}

	data, err := os.ReadFile(path)
	if err != nil {
		if !required && errors.Is(err, os.ErrNotExist) {
			return fc, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, fc); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return fc, nil
}

func (c *Config) applyFile(fc *FileConfig) {
	setString(&c.Provider, fc.Provider)
	setString(&c.Model, fc.Model)
	setString(&c.BaseURL, fc.BaseURL)
	setString(&c.OutputDir, fc.OutputDir)
	setString(&c.Profile, fc.Profile)
	setString(&c.Topic, fc.Topic)
	setString(&c.Context.Mode, fc.Context.Mode)
	if fc.Temperature != nil {
		c.Temperature = *fc.Temperature
	}
	if fc.MaxTokens != 0 {
		c.MaxTokens = fc.MaxTokens
	}
	if fc.TimeoutSeconds != 0 {
		c.Timeout = time.Duration(fc.TimeoutSeconds) * time.Second
	}
	if fc.Context.Limit != 0 {
		c.Context.Limit = fc.Context.Limit
	}
	c.Retry = mergeRetry(c.Retry, fc.Retry)
	if fc.Pricing != nil {
		c.Pricing = fc.Pricing
	}
	if fc.MaxBudgetUSD != 0 {
		c.MaxBudgetUSD = fc.MaxBudgetUSD
	}
}

func (c *Config) applyEnv() error {
	c.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	c.AnthropicAPIKey = os.Getenv("ANTHROPIC_API_KEY")
	c.GoogleAPIKey = os.Getenv("GOOGLE_API_KEY")
	c.DeepSeekAPIKey = os.Getenv("DEEPSEEK_API_KEY")

	setString(&c.Provider, os.Getenv("PLANWRIGHT_PROVIDER"))
	setString(&c.Model, firstEnv("PLANWRIGHT_MODEL", "OPENAI_MODEL"))
	setString(&c.BaseURL, os.Getenv("PLANWRIGHT_BASE_URL"))
	c.OpenAIBaseURL = os.Getenv("OPENAI_API_BASE")
	setString(&c.OutputDir, os.Getenv("PLANWRIGHT_OUTPUT_DIR"))
	setString(&c.Profile, os.Getenv("PLANWRIGHT_PROFILE"))
	setString(&c.Topic, os.Getenv("PLANWRIGHT_TOPIC"))
	setString(&c.Context.Mode, os.Getenv("PLANWRIGHT_CONTEXT_MODE"))

	if err := envFloat("AGENT_TEMPERATURE", &c.Temperature); err != nil {
		return err
	}
	if err := envInt("AGENT_MAX_TOKENS", &c.MaxTokens); err != nil {
		return err
	}
	if err := envInt("PLANWRIGHT_CONTEXT_LIMIT", &c.Context.Limit); err != nil {
		return err
	}
	if err := envInt("PLANWRIGHT_MAX_RETRIES", &c.Retry.MaxRetries); err != nil {
		return err
	}
	timeoutSeconds := 0
	if err := envInt("AGENT_TIMEOUT", &timeoutSeconds); err != nil {
		return err
	}
	if timeoutSeconds != 0 {
		c.Timeout = time.Duration(timeoutSeconds) * time.Second
	}
	if v := os.Getenv("VERBOSE"); v != "" {
		verbose, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: VERBOSE=%q: %v", ErrInvalidConfig, v, err)
		}
		c.Verbose = verbose
	}
	return nil
}

// APIKey returns the credential for the selected provider.
func (c *Config) APIKey() string {
	switch c.Provider {
	case "openai":
		return c.OpenAIAPIKey
	case "anthropic":
		return c.AnthropicAPIKey
	case "google":
		return c.GoogleAPIKey
	case "deepseek":
		return c.DeepSeekAPIKey
	default:
		return ""
	}
}

// HasAdapter returns true if the API key for the given adapter is configured.
func (c *Config) HasAdapter(name string) bool {
	switch name {
	case "anthropic":
		return usableKey(c.AnthropicAPIKey)
	case "openai":
		return usableKey(c.OpenAIAPIKey)
	case "google":
		return usableKey(c.GoogleAPIKey)
	case "deepseek":
		return usableKey(c.DeepSeekAPIKey)
	case "mock":
		return true
	default:
		return false
	}
}

// Validate checks the configuration once before any stage runs.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: config is nil", ErrInvalidConfig)
	}
	switch c.Provider {
	case "openai", "anthropic", "google", "deepseek", "mock":
	default:
		return fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, c.Provider)
	}
	if !c.HasAdapter(c.Provider) {
		return fmt.Errorf("%w: set %s for provider %s", ErrMissingCredential, keyEnvVar(c.Provider), c.Provider)
	}
	if c.Model == "" {
		return fmt.Errorf("%w: model is required", ErrInvalidConfig)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("%w: temperature %.2f outside [0, 2]", ErrInvalidConfig, c.Temperature)
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("%w: max tokens must be positive", ErrInvalidConfig)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: timeout must not be negative", ErrInvalidConfig)
	}
	switch c.Context.Mode {
	case ContextFull:
	case ContextTruncated:
		if c.Context.Limit <= 0 {
			return fmt.Errorf("%w: context limit must be positive in truncated mode", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown context mode %q", ErrInvalidConfig, c.Context.Mode)
	}
	if err := c.Retry.validate(); err != nil {
		return err
	}
	if c.OutputDir == "" {
		return fmt.Errorf("%w: output directory is required", ErrInvalidConfig)
	}
	return nil
}

// BaseURLFor returns the endpoint override for a provider. base_url and
// PLANWRIGHT_BASE_URL apply to any provider; OPENAI_API_BASE only to openai.
func (c *Config) BaseURLFor(provider string) string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	if provider == "openai" {
		return c.OpenAIBaseURL
	}
	return ""
}

// Summary renders the configuration for humans, without credentials.
func (c *Config) Summary() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Configuration Summary:\n")
	fmt.Fprintf(&sb, "- Provider: %s\n", c.Provider)
	fmt.Fprintf(&sb, "- Model: %s\n", c.Model)
	fmt.Fprintf(&sb, "- API Key: %s\n", redact(c.APIKey()))
	fmt.Fprintf(&sb, "- Temperature: %.2f\n", c.Temperature)
	fmt.Fprintf(&sb, "- Max Tokens: %d\n", c.MaxTokens)
	fmt.Fprintf(&sb, "- Timeout: %s\n", c.Timeout)
	fmt.Fprintf(&sb, "- Max Retries: %d\n", c.Retry.MaxRetries)
	if base := c.BaseURLFor(c.Provider); base != "" {
		fmt.Fprintf(&sb, "- API Base: %s\n", base)
	}
	fmt.Fprintf(&sb, "- Context: %s", c.Context.Mode)
	if c.Context.Mode == ContextTruncated {
		fmt.Fprintf(&sb, " (%d chars)", c.Context.Limit)
	}
	fmt.Fprintf(&sb, "\n- Profile: %s\n", c.Profile)
	fmt.Fprintf(&sb, "- Topic: %s\n", c.Topic)
	fmt.Fprintf(&sb, "- Output Directory: %s\n", c.OutputDir)
	fmt.Fprintf(&sb, "- Verbose Mode: %t\n", c.Verbose)
	return sb.String()
}

var placeholderKeys = map[string]struct{}{
	"sk-test":                  {},
	"sk-...":                   {},
	"your-api-key-here":        {},
	"your_api_key_here":        {},
	"your_openai_api_key_here": {},
	"your-openai-api-key":      {},
	"changeme":                 {},
	"replace-me":               {},
}

func usableKey(key string) bool {
	key = strings.TrimSpace(key)
	if key == "" {
		return false
	}
	lower := strings.ToLower(key)
	if _, ok := placeholderKeys[lower]; ok {
		return false
	}
	return !strings.HasPrefix(lower, "your")
}

func keyEnvVar(provider string) string {
	switch provider {
	case "anthropic":
		return "ANTHROPIC_API_KEY"
	case "google":
		return "GOOGLE_API_KEY"
	case "deepseek":
		return "DEEPSEEK_API_KEY"
	default:
		return "OPENAI_API_KEY"
	}
}

func redact(key string) string {
	if key == "" {
		return "(not set)"
	}
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func firstEnv(names ...string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

func envInt(name string, dst *int) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%w: %s=%q: %v", ErrInvalidConfig, name, v, err)
	}
	*dst = n
	return nil
}

func envFloat(name string, dst *float64) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("%w: %s=%q: %v", ErrInvalidConfig, name, v, err)
	}
	*dst = f
	return nil
}

func getConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".planwright"), nil
}
