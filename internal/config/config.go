package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"tabular-anonymizer/internal/engine"
)

// saltEnvVar overrides the configured salt when set. The salt itself is
// never written back to disk by Save.
const saltEnvVar = "ANONYMIZER_SALT"

// Config represents the application configuration
type Config struct {
	// Application settings
	App AppConfig `yaml:"app"`

	// Anonymization engine configuration
	Anonymization engine.Config `yaml:"anonymization"`

	// Batch processing settings
	Batch BatchConfig `yaml:"batch"`

	// API server settings
	API APIConfig `yaml:"api"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging"`
}

// AppConfig holds general application settings
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"` // development, production
	DataDir     string `yaml:"data_dir"`
	OutputDir   string `yaml:"output_dir"`
}

// BatchConfig holds settings for multi-file batch runs
type BatchConfig struct {
	Workers       int    `yaml:"workers"`
	ReportDir     string `yaml:"report_dir"`
	KeepArtifacts bool   `yaml:"keep_artifacts"`
}

// APIConfig holds the HTTP server settings
type APIConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	APIKey      string `yaml:"api_key"`
	EnableCORS  bool   `yaml:"enable_cors"`
	MaxBodySize int64  `yaml:"max_body_size"` // bytes
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level"`  // debug, info, warn, error
	Output   string `yaml:"output"` // stdout, file, both
	Filename string `yaml:"filename"`
}

// Default returns a default configuration. The salt is intentionally left
// empty: it must come from the config file or the environment.
func Default() *Config {
	return &Config{
		App: AppConfig{
			Name:        "Tabular Anonymizer",
			Version:     "1.0.0",
			Environment: "development",
			DataDir:     "./data",
			OutputDir:   "./output",
		},
		Anonymization: engine.Config{
			Level:            "low",
			DiagnosisAllowed: false,
			TokenLength:      12,
		},
		Batch: BatchConfig{
			Workers:       4,
			ReportDir:     "./output",
			KeepArtifacts: true,
		},
		API: APIConfig{
			Host:        "0.0.0.0",
			Port:        8080,
			EnableCORS:  true,
			MaxBodySize: 32 << 20,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Output:   "stdout",
			Filename: "anonymizer.log",
		},
	}
}

// Load loads configuration from a YAML file
func Load(filename string) (*Config, error) {
	// Start with defaults
	config := Default()

	// Check if file exists
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		// File doesn't exist, create it with defaults
		if err := config.Save(filename); err != nil {
			return nil, fmt.Errorf("failed to create default config file: %w", err)
		}
		config.applyEnv()
		return config, nil
	}

	// Read the file
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyEnv()

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// applyEnv lets the environment override the secret salt so it never has
// to live in a checked-in config file.
func (c *Config) applyEnv() {
	if salt := os.Getenv(saltEnvVar); salt != "" {
		c.Anonymization.Salt = salt
	}
}

// Save saves the configuration to a YAML file. The salt is stripped before
// writing so the secret never lands on disk through this path.
func (c *Config) Save(filename string) error {
	copied := *c
	copied.Anonymization.Salt = ""

	data, err := yaml.Marshal(&copied)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration values. The salt is checked again
// by the engine constructor; requiring it here surfaces the problem before
// any file is opened.
func (c *Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Anonymization.Level)) {
	case "", "low", "high":
	default:
		return fmt.Errorf("anonymization level must be low or high")
	}

	if strings.TrimSpace(c.Anonymization.Salt) == "" {
		return fmt.Errorf("anonymization salt must be set (config file or %s)", saltEnvVar)
	}

	// Zero means the engine default.
	if c.Anonymization.TokenLength < 0 || c.Anonymization.TokenLength > 64 {
		return fmt.Errorf("token_length must be between 0 and 64")
	}

	if c.Batch.Workers < 1 {
		return fmt.Errorf("batch workers must be at least 1")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		return fmt.Errorf("api port must be between 1 and 65535")
	}

	if c.API.MaxBodySize <= 0 {
		return fmt.Errorf("max_body_size must be positive")
	}

	// Validate log level
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("log level must be one of: debug, info, warn, error")
	}

	// Validate log output
	validOutputs := map[string]bool{"stdout": true, "file": true, "both": true}
	if !validOutputs[c.Logging.Output] {
		return fmt.Errorf("log output must be one of: stdout, file, both")
	}

	return nil
}

// GetEngineConfig returns the anonymization engine configuration
func (c *Config) GetEngineConfig() engine.Config {
	return c.Anonymization
}

// CreateDirectories creates necessary directories based on configuration
func (c *Config) CreateDirectories() error {
	dirs := []string{c.App.DataDir, c.App.OutputDir, c.Batch.ReportDir}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// GetLogFilePath returns the full path to the log file
func (c *Config) GetLogFilePath() string {
	if c.App.DataDir != "" {
		return filepath.Join(c.App.DataDir, c.Logging.Filename)
	}
	return c.Logging.Filename
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// String returns a string representation of the config (excluding sensitive data)
func (c *Config) String() string {
	return fmt.Sprintf("Tabular Anonymizer Config (Version: %s, Environment: %s, Level: %s, Diagnosis Allowed: %t)",
		c.App.Version, c.App.Environment, c.Anonymization.Level, c.Anonymization.DiagnosisAllowed)
}
