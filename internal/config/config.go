package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
)

const (
	defaultConfigPath  = "~/.config/segtile/config.json"
	defaultParallel    = 4
	defaultMaxAttempts = 5
)

// Config holds user-editable settings for the extraction pipeline.
type Config struct {
	Processing Processing `json:"processing"`
	Logging    Logging    `json:"logging"`
	Paths      Paths      `json:"paths"`
	Raster     Raster     `json:"raster"`
}

// Processing captures execution preferences. ParallelWindows only controls
// fan-out across independent windows; a single window is always extracted
// sequentially.
type Processing struct {
	ParallelWindows int    `json:"parallel_windows"`
	TempDir         string `json:"temp_dir"`
}

// Logging controls logging verbosity and destinations.
type Logging struct {
	Level      string `json:"level"`       // debug, info, warn, error
	Format     string `json:"format"`      // text, json
	FileOutput bool   `json:"file_output"` // Enable file logging
	LogDir     string `json:"log_dir"`     // Directory for log files
}

// Paths configures default input/output locations.
type Paths struct {
	SpoolDir     string `json:"spool_dir"`
	OutputDir    string `json:"output_dir"`
	DatabasePath string `json:"database_path"`
}

// Raster configures the raster source driver.
type Raster struct {
	// MaxAttempts is the total tile-read attempt budget, including the
	// first attempt.
	MaxAttempts int    `json:"max_attempts"`
	TempDir     string `json:"temp_dir"`
}

// Load reads configuration from disk, falling back to sensible defaults.
func Load() (*Config, error) {
	cfg := defaultConfig()

	configPath := os.Getenv("SEGTILE_CONFIG")
	if configPath == "" {
		configPath = defaultConfigPath
	}

	expanded, err := expandUser(configPath)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(expanded)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	if err := dec.Decode(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Processing: Processing{
			ParallelWindows: defaultParallel,
			TempDir:         os.TempDir(),
		},
		Logging: Logging{
			Level:      "info",
			Format:     "text",
			FileOutput: false,
			LogDir:     "./logs",
		},
		Paths: Paths{
			SpoolDir:     "./spool",
			OutputDir:    "./output",
			DatabasePath: filepath.Join(os.TempDir(), "segtile.db"),
		},
		Raster: Raster{
			MaxAttempts: defaultMaxAttempts,
		},
	}
}

func expandUser(path string) (string, error) {
	if path == "" || path[0] != '~' {
		return path, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	if path == "~" {
		return home, nil
	}

	return filepath.Join(home, path[2:]), nil
}
