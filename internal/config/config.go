package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config represents the application configuration
type Config struct {
	Index     IndexConfig     `json:"index"`
	LLM       LLMConfig       `json:"llm"`
	Embedding EmbeddingConfig `json:"embedding"`
	Workflow  WorkflowConfig  `json:"workflow"`
	Logging   LoggingConfig   `json:"logging"`
}

// IndexConfig configures the embedded store backing the schema index and
// the registration catalog
type IndexConfig struct {
	Path            string `json:"path"              env:"INDEX_PATH"              envDefault:"~/.config/ragsql/index.db"`
	MaxConnections  int    `json:"max_connections"   env:"INDEX_MAX_CONNECTIONS"   envDefault:"10"`
	MaxIdleConns    int    `json:"max_idle_conns"    env:"INDEX_MAX_IDLE_CONNS"    envDefault:"5"`
	QueryTimeout    string `json:"query_timeout"     env:"INDEX_QUERY_TIMEOUT"     envDefault:"30s"`
	TopK            int    `json:"top_k"             env:"INDEX_TOP_K"             envDefault:"3"`
}

// LLMConfig configures the language model provider used for SQL generation
// and response synthesis
type LLMConfig struct {
	Provider       string `json:"provider"        env:"LLM_PROVIDER"        envDefault:"openai"`
	Model          string `json:"model"           env:"LLM_MODEL"           envDefault:"gpt-4o"`
	APIKey         string `json:"-"               env:"LLM_API_KEY"`
	BaseURL        string `json:"base_url"        env:"LLM_BASE_URL"`
	RequestTimeout string `json:"request_timeout" env:"LLM_REQUEST_TIMEOUT" envDefault:"25s"`
}

// EmbeddingConfig configures the embedding provider used by the schema index
type EmbeddingConfig struct {
	Provider   string `json:"provider"   env:"EMBEDDING_PROVIDER"   envDefault:"local"`
	Model      string `json:"model"      env:"EMBEDDING_MODEL"      envDefault:"text-embedding-3-small"`
	APIKey     string `json:"-"          env:"EMBEDDING_API_KEY"`
	BaseURL    string `json:"base_url"   env:"EMBEDDING_BASE_URL"`
	Dimensions int    `json:"dimensions" env:"EMBEDDING_DIMENSIONS" envDefault:"256"`
}

// WorkflowConfig bounds a single question-answer run
type WorkflowConfig struct {
	RunTimeout string `json:"run_timeout" env:"WORKFLOW_RUN_TIMEOUT" envDefault:"30s"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level     string `json:"level"      env:"LOG_LEVEL"      envDefault:"info"`                          // debug, info, warn, error
	Format    string `json:"format"     env:"LOG_FORMAT"     envDefault:"text"`                          // text, json
	Output    string `json:"output"     env:"LOG_OUTPUT"     envDefault:"stderr"`                        // stdout, stderr, file
	File      string `json:"file"       env:"LOG_FILE"       envDefault:"~/.config/ragsql/logs/app.log"` // log file path when output is file
	AddSource bool   `json:"add_source" env:"LOG_ADD_SOURCE" envDefault:"false"`                         // add source file and line info to logs
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig() (*Config, error) {
	return LoadConfigWithOverrides(nil)
}

// LoadConfigWithOverrides loads configuration with optional command-line flag
// overrides. Precedence, lowest to highest: built-in defaults, config file,
// RAGSQL_* environment variables, flags.
func LoadConfigWithOverrides(flagOverrides map[string]interface{}) (*Config, error) {
	// Pure defaults, parsed against an empty environment
	defaults := &Config{}
	if err := env.ParseWithOptions(defaults, env.Options{
		Prefix:      "RAGSQL_",
		Environment: map[string]string{},
	}); err != nil {
		return nil, fmt.Errorf("failed to parse config defaults: %w", err)
	}

	// Defaults plus whatever RAGSQL_* variables are actually set
	fromEnv := &Config{}
	if err := env.ParseWithOptions(fromEnv, env.Options{
		Prefix: "RAGSQL_",
	}); err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	config := &Config{}
	*config = *defaults

	// File values override defaults
	configPath := getConfigPath()
	if _, err := os.Stat(configPath); err == nil {
		if err := loadConfigFromFile(config, configPath); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	// Explicitly set environment variables override the file
	overlayEnv(config, defaults, fromEnv)

	// Apply command-line flag overrides
	if flagOverrides != nil {
		if err := applyFlagOverrides(config, flagOverrides); err != nil {
			return nil, fmt.Errorf("failed to apply flag overrides: %w", err)
		}
	}

	// Validate configuration
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// loadConfigFromFile loads configuration from a JSON file
func loadConfigFromFile(config *Config, configPath string) error {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse JSON into a temporary struct to merge with defaults
	var fileConfig Config
	if err := json.Unmarshal(data, &fileConfig); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	// Merge file config with defaults
	mergeConfigs(config, &fileConfig)

	return nil
}

// applyFlagOverrides applies command-line flag overrides to configuration
func applyFlagOverrides(config *Config, overrides map[string]interface{}) error {
	for key, value := range overrides {
		switch key {
		case "index-path":
			if str, ok := value.(string); ok && str != "" {
				config.Index.Path = str
			}
		case "log-level":
			if str, ok := value.(string); ok && str != "" {
				config.Logging.Level = str
			}
		case "llm-provider":
			if str, ok := value.(string); ok && str != "" {
				config.LLM.Provider = str
			}
		case "llm-model":
			if str, ok := value.(string); ok && str != "" {
				config.LLM.Model = str
			}
		}
	}

	return nil
}

// overlayEnv copies into target every field where the environment parse
// produced a value different from the pure default, which is exactly the
// set of fields a RAGSQL_* variable was set for.
func overlayEnv(target, defaults, fromEnv *Config) {
	var walk func(t, d, e reflect.Value)
	walk = func(t, d, e reflect.Value) {
		if t.Kind() == reflect.Struct {
			for i := range t.NumField() {
				walk(t.Field(i), d.Field(i), e.Field(i))
			}

			return
		}

		if !e.Equal(d) {
			t.Set(e)
		}
	}

	walk(reflect.ValueOf(target).Elem(), reflect.ValueOf(defaults).Elem(), reflect.ValueOf(fromEnv).Elem())
}

// mergeConfigs merges source configuration into target configuration
func mergeConfigs(target, source *Config) {
	var mergeValues func(t, s reflect.Value)
	mergeValues = func(t, s reflect.Value) {
		if t.Kind() != s.Kind() {
			return
		}

		if t.Kind() == reflect.Struct {
			for i := range s.NumField() {
				mergeValues(t.Field(i), s.Field(i))
			}
		} else if s.Kind() == reflect.Bool {
			t.Set(s)
		} else if !s.IsZero() {
			t.Set(s)
		}
	}

	mergeValues(reflect.ValueOf(target).Elem(), reflect.ValueOf(source).Elem())
}

// validateConfig validates the configuration for common errors
func validateConfig(config *Config) error {
	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf(
			"invalid log level: %s (must be debug, info, warn, or error)",
			config.Logging.Level,
		)
	}

	// Validate log format
	validLogFormats := map[string]bool{
		"text": true, "json": true,
	}
	if !validLogFormats[strings.ToLower(config.Logging.Format)] {
		return fmt.Errorf("invalid log format: %s (must be text or json)", config.Logging.Format)
	}

	// Validate log output
	validLogOutputs := map[string]bool{
		"stdout": true, "stderr": true, "file": true,
	}
	if !validLogOutputs[strings.ToLower(config.Logging.Output)] {
		return fmt.Errorf(
			"invalid log output: %s (must be stdout, stderr, or file)",
			config.Logging.Output,
		)
	}

	// Validate timeout durations
	if _, err := time.ParseDuration(config.Index.QueryTimeout); err != nil {
		return fmt.Errorf("invalid index query timeout: %s", config.Index.QueryTimeout)
	}

	if _, err := time.ParseDuration(config.LLM.RequestTimeout); err != nil {
		return fmt.Errorf("invalid LLM request timeout: %s", config.LLM.RequestTimeout)
	}

	if _, err := time.ParseDuration(config.Workflow.RunTimeout); err != nil {
		return fmt.Errorf("invalid workflow run timeout: %s", config.Workflow.RunTimeout)
	}

	// Validate numeric values
	if config.Index.MaxConnections <= 0 {
		return fmt.Errorf(
			"index max connections must be positive: %d",
			config.Index.MaxConnections,
		)
	}

	if config.Index.TopK <= 0 {
		return fmt.Errorf("index top-k must be positive: %d", config.Index.TopK)
	}

	if config.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding dimensions must be positive: %d", config.Embedding.Dimensions)
	}

	return nil
}

// SaveConfig saves configuration to file
func SaveConfig(config *Config) error {
	configPath := getConfigPath()

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Marshal to JSON
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// getConfigPath returns the path to the configuration file
func getConfigPath() string {
	// Check for custom config path from environment
	if configPath := os.Getenv("RAGSQL_CONFIG"); configPath != "" {
		return expandPath(configPath)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}

	return filepath.Join(homeDir, ".config", "ragsql", "config.json")
}

// expandPath expands ~ to home directory in file paths
func expandPath(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	if path == "~" {
		return homeDir
	}

	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir, path[2:])
	}

	return path
}

// ExpandAllPaths expands all paths in the configuration
func (c *Config) ExpandAllPaths() {
	c.Index.Path = expandPath(c.Index.Path)
	c.Logging.File = expandPath(c.Logging.File)
}

// GetConfigDir returns the configuration directory
func GetConfigDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".config/ragsql"
	}

	return filepath.Join(homeDir, ".config", "ragsql")
}

// GetLogDir returns the log directory
func GetLogDir() string {
	return filepath.Join(GetConfigDir(), "logs")
}

// EnsureDirectories creates necessary directories for the configuration
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		filepath.Dir(c.Index.Path),
		filepath.Dir(c.Logging.File),
	}

	for _, dir := range dirs {
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", dir, err)
			}
		}
	}

	return nil
}

// QueryTimeoutDuration returns the parsed index query timeout
func (c *IndexConfig) QueryTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.QueryTimeout)
	if err != nil {
		return 30 * time.Second
	}

	return d
}

// RequestTimeoutDuration returns the parsed LLM request timeout
func (c *LLMConfig) RequestTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.RequestTimeout)
	if err != nil {
		return 25 * time.Second
	}

	return d
}

// RunTimeoutDuration returns the parsed whole-run workflow timeout
func (c *WorkflowConfig) RunTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.RunTimeout)
	if err != nil {
		return 30 * time.Second
	}

	return d
}
