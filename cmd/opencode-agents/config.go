package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// cliConfig holds the CLI's runtime settings, loaded from defaults, an
// optional config file and OCBA_-prefixed environment variables, in
// ascending precedence.
type cliConfig struct {
	ResultsDir       string        `mapstructure:"results_dir"`
	TaskTimeout      time.Duration `mapstructure:"task_timeout"`
	SummarizeTimeout time.Duration `mapstructure:"summarize_timeout"`
	LogLevel         string        `mapstructure:"log_level"`
	LogFormat        string        `mapstructure:"log_format"`
}

func loadConfig() (*cliConfig, error) {
	v := viper.New()

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}
	baseDir := filepath.Join(home, ".opencode-agents")

	v.SetDefault("results_dir", filepath.Join(baseDir, "results"))
	v.SetDefault("task_timeout", 5*time.Minute)
	v.SetDefault("summarize_timeout", 10*time.Second)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(baseDir)
	}

	v.SetEnvPrefix("OCBA")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && cfgFile != "" {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Missing config file is fine; defaults and env apply.
	}

	var cfg cliConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}
