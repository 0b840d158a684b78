package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	REPL    REPLConfig    `json:"repl" yaml:"repl"`
	Engine  EngineConfig  `json:"engine" yaml:"engine"`
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// REPLConfig contains shell configuration
type REPLConfig struct {
	Prompt      string `json:"prompt" yaml:"prompt"`
	HistoryFile string `json:"history_file" yaml:"history_file"`
	ShowWelcome bool   `json:"show_welcome" yaml:"show_welcome"`
}

// EngineConfig contains evaluation configuration
type EngineConfig struct {
	MaxErrors int  `json:"max_errors" yaml:"max_errors"`
	MaxDepth  int  `json:"max_depth" yaml:"max_depth"`
	Trace     bool `json:"trace" yaml:"trace"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level string `json:"level" yaml:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		REPL: REPLConfig{
			Prompt:      "fhirpath> ",
			HistoryFile: filepath.Join(os.TempDir(), "fhirpath_history"),
			ShowWelcome: true,
		},
		Engine: EngineConfig{
			MaxErrors: 50,
			MaxDepth:  512,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfig loads configuration from a file, falling back to defaults
// when no path is given or the file does not exist
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()
	if path == "" {
		return config, nil
	}
	path = expandHome(path)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return nil, fmt.Errorf("failed to read config file: %v", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %v", err)
		}
	default:
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %v", err)
		}
	}
	return config, nil
}

// expandHome expands a leading ~ in a path
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
