package main

import (
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Config represents the tunectl configuration file
// (~/.config/tunectl/config.yaml). Fields are pointers where a zero value
// must be distinguishable from "not set".
type Config struct {
	ResultsFile string `yaml:"results_file"`

	NumericsCheck      *bool    `yaml:"numerics_check"`
	RotatingBufferSize *int64   `yaml:"rotating_buffer_size"`
	MaxWarmupMs        *float64 `yaml:"max_warmup_ms"`
	MaxWarmupIters     *int64   `yaml:"max_warmup_iters"`
	MaxTuningMs        *float64 `yaml:"max_tuning_ms"`
	MaxTuningIters     *int64   `yaml:"max_tuning_iters"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	ServerAddress string `yaml:"server_address"`
}

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "tunectl", "config.yaml")
}

// loadConfig reads the config file if present. A missing file is not an
// error; a malformed one is.
func loadConfig() (Config, error) {
	var cfg Config
	path := configPath()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyTuningConfig layers config file defaults under any flags the user did
// not set explicitly.
func applyTuningConfig(c *cli.Command, cfg Config) {
	if cfg.ResultsFile != "" && !c.IsSet("results-file") {
		resultsFile = cfg.ResultsFile
	}
	if cfg.NumericsCheck != nil && !c.IsSet("numerics-check") {
		numericsCheck = *cfg.NumericsCheck
	}
	if cfg.RotatingBufferSize != nil && !c.IsSet("rotating-buffer-size") {
		rotatingBufferSize = *cfg.RotatingBufferSize
	}
	if cfg.MaxWarmupMs != nil && !c.IsSet("max-warmup-ms") {
		maxWarmupMs = *cfg.MaxWarmupMs
	}
	if cfg.MaxWarmupIters != nil && !c.IsSet("max-warmup-iters") {
		maxWarmupIters = *cfg.MaxWarmupIters
	}
	if cfg.MaxTuningMs != nil && !c.IsSet("max-tuning-ms") {
		maxTuningMs = *cfg.MaxTuningMs
	}
	if cfg.MaxTuningIters != nil && !c.IsSet("max-tuning-iters") {
		maxTuningIters = *cfg.MaxTuningIters
	}
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		logFormat = cfg.LogFormat
	}
}
