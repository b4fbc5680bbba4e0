package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type LookupFunc func(string) (string, bool)

type Profile string

const (
	ProfileDev  Profile = "dev"
	ProfileTest Profile = "test"
	ProfileProd Profile = "prod"
)

const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverDuckDB   = "duckdb"
)

const (
	FormatTuple = "tuple"
	FormatTable = "table"
	FormatJSON  = "json"
)

type Config struct {
	Profile       Profile
	Service       ServiceConfig
	Database      DatabaseConfig
	Prompt        PromptConfig
	AI            AIConfig
	Output        OutputConfig
	Observability ObservabilityConfig
}

type ServiceConfig struct {
	Name string
}

type DatabaseConfig struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

type PromptConfig struct {
	Path string
}

type AIConfig struct {
	Provider    string
	BaseURL     string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

type OutputConfig struct {
	Format string
}

type ObservabilityConfig struct {
	LogLevel    slog.Level
	LogJSON     bool
	MetricsFile string
}

func LoadFromEnv() (Config, error) {
	return Load(os.LookupEnv)
}

func Load(lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	profile := ProfileDev
	if raw, ok := lookup("SQLASK_PROFILE"); ok {
		profile = Profile(strings.ToLower(strings.TrimSpace(raw)))
	}
	if !isValidProfile(profile) {
		return Config{}, fmt.Errorf("invalid SQLASK_PROFILE: %q", profile)
	}

	cfg := defaultsForProfile(profile)

	if err := applyString(lookup, "SQLASK_SERVICE_NAME", &cfg.Service.Name); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLASK_DB_DRIVER", &cfg.Database.Driver); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLASK_DB_DSN", &cfg.Database.DSN); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "SQLASK_DB_MAX_OPEN_CONNS", &cfg.Database.MaxOpenConns); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "SQLASK_DB_CONN_MAX_LIFETIME", &cfg.Database.ConnMaxLifetime); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLASK_PROMPT_PATH", &cfg.Prompt.Path); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLASK_AI_PROVIDER", &cfg.AI.Provider); err != nil {
		return Config{}, err
	}
	cfg.AI.Provider = strings.ToLower(cfg.AI.Provider)
	if !isValidProvider(cfg.AI.Provider) {
		return Config{}, fmt.Errorf("invalid SQLASK_AI_PROVIDER: %q", cfg.AI.Provider)
	}
	applyProviderDefaults(&cfg.AI)
	if err := applyString(lookup, "SQLASK_AI_BASE_URL", &cfg.AI.BaseURL); err != nil {
		return Config{}, err
	}
	if err := applyFirstString(lookup, credentialKeys(cfg.AI.Provider), &cfg.AI.APIKey); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLASK_AI_MODEL", &cfg.AI.Model); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "SQLASK_AI_MAX_TOKENS", &cfg.AI.MaxTokens); err != nil {
		return Config{}, err
	}
	if err := applyFloat(lookup, "SQLASK_AI_TEMPERATURE", &cfg.AI.Temperature); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "SQLASK_AI_TIMEOUT", &cfg.AI.Timeout); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLASK_OUTPUT_FORMAT", &cfg.Output.Format); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "SQLASK_LOG_JSON", &cfg.Observability.LogJSON); err != nil {
		return Config{}, err
	}
	if err := applyLogLevel(lookup, "SQLASK_LOG_LEVEL", &cfg.Observability.LogLevel); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLASK_METRICS_FILE", &cfg.Observability.MetricsFile); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the fields that can also be overridden by command-line flags.
func (c Config) Validate() error {
	if c.Service.Name == "" {
		return fmt.Errorf("service name is required")
	}
	if !isValidDriver(c.Database.Driver) {
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database dsn is required")
	}
	if c.Prompt.Path == "" {
		return fmt.Errorf("prompt path is required")
	}
	if !isValidProvider(c.AI.Provider) {
		return fmt.Errorf("unsupported ai provider %q", c.AI.Provider)
	}
	if c.AI.MaxTokens <= 0 {
		return fmt.Errorf("ai max tokens must be positive, got %d", c.AI.MaxTokens)
	}
	if !isValidFormat(c.Output.Format) {
		return fmt.Errorf("unsupported output format %q", c.Output.Format)
	}
	return nil
}

func defaultsForProfile(profile Profile) Config {
	cfg := Config{
		Profile: profile,
		Service: ServiceConfig{Name: "sqlask"},
		Database: DatabaseConfig{
			Driver:       DriverSQLite,
			DSN:          "nba.sqlite",
			MaxOpenConns: 1,
		},
		Prompt: PromptConfig{
			Path: "prompts/solution_prompt.json",
		},
		AI: AIConfig{
			Provider:    ProviderAnthropic,
			MaxTokens:   1024,
			Temperature: 0.7,
			Timeout:     60 * time.Second,
		},
		Output: OutputConfig{
			Format: FormatTuple,
		},
		Observability: ObservabilityConfig{
			LogLevel: slog.LevelWarn,
			LogJSON:  false,
		},
	}

	switch profile {
	case ProfileTest:
		cfg.Observability.LogLevel = slog.LevelError
	case ProfileProd:
		cfg.Observability.LogLevel = slog.LevelInfo
		cfg.Observability.LogJSON = true
	}

	return cfg
}

// applyProviderDefaults fills in the base URL and model for the selected
// provider. Explicit SQLASK_AI_* values are applied afterwards and win.
func applyProviderDefaults(ai *AIConfig) {
	switch ai.Provider {
	case ProviderOpenAI:
		ai.BaseURL = "https://api.openai.com"
		ai.Model = "gpt-4o-mini"
	default:
		ai.BaseURL = "https://api.anthropic.com/v1"
		ai.Model = "claude-3-7-sonnet-20250219"
	}
}

func credentialKeys(provider string) []string {
	switch provider {
	case ProviderOpenAI:
		return []string{"SQLASK_AI_API_KEY", "OPENAI_API_KEY"}
	default:
		return []string{"SQLASK_AI_API_KEY", "CLAUDE_API_KEY", "ANTHROPIC_API_KEY"}
	}
}

func isValidProfile(profile Profile) bool {
	switch profile {
	case ProfileDev, ProfileTest, ProfileProd:
		return true
	default:
		return false
	}
}

func isValidProvider(provider string) bool {
	switch provider {
	case ProviderAnthropic, ProviderOpenAI:
		return true
	default:
		return false
	}
}

func isValidDriver(driver string) bool {
	switch driver {
	case DriverSQLite, DriverPostgres, DriverDuckDB:
		return true
	default:
		return false
	}
}

func isValidFormat(format string) bool {
	switch format {
	case FormatTuple, FormatTable, FormatJSON:
		return true
	default:
		return false
	}
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

// applyFirstString takes the first non-empty value among keys.
func applyFirstString(lookup LookupFunc, keys []string, dst *string) error {
	for _, key := range keys {
		raw, ok := lookup(key)
		if !ok || strings.TrimSpace(raw) == "" {
			continue
		}
		*dst = strings.TrimSpace(raw)
		return nil
	}
	return nil
}

func applyDuration(lookup LookupFunc, key string, dst *time.Duration) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyFloat(lookup LookupFunc, key string, dst *float64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyLogLevel(lookup LookupFunc, key string, dst *slog.Level) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	level, err := ParseLogLevel(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = level
	return nil
}

// ParseLogLevel accepts debug, info, warn/warning and error.
func ParseLogLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", raw)
	}
}
