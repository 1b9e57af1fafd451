// Package config loads the user-level stagehand configuration: settings
// that apply across projects, like the publish target and the history
// database location. Project-level build settings live in the project's
// stagehand.json descriptor and are handled by the buildfile package.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

var (
	configDir  string
	configErr  error
	configOnce sync.Once
)

// Config holds the user-level stagehand settings.
// Environment variables (STAGEHAND_*) take precedence over the file.
type Config struct {
	// HistoryDBPath overrides the default history database location.
	HistoryDBPath string `json:"history_db_path,omitempty"`

	// S3 publish target.
	S3Endpoint  string `json:"s3_endpoint,omitempty"`
	S3Bucket    string `json:"s3_bucket,omitempty"`
	S3AccessKey string `json:"s3_access_key,omitempty"`
	S3SecretKey string `json:"s3_secret_key,omitempty"`
	S3Region    string `json:"s3_region,omitempty"`
}

// Dir returns the stagehand configuration directory, creating it on
// first use. Both the path and any resolution error are cached, so a
// failed first call keeps failing instead of returning an empty path
// with a nil error.
func Dir() (string, error) {
	configOnce.Do(func() {
		configDir, configErr = resolveDir()
	})
	return configDir, configErr
}

// resolveDir locates and creates the per-user configuration directory.
func resolveDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(base, "stagehand")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return dir, nil
}

// Load reads the user configuration, applying environment variable
// overrides. A missing config file is not an error; it yields defaults.
func Load() (*Config, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}

	cfg := &Config{S3Region: "us-east-1"}

	path := filepath.Join(dir, "config.json")
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
		if cfg.S3Region == "" {
			cfg.S3Region = "us-east-1"
		}
	}

	// Environment variables override the config file, so CI can publish
	// without writing credentials to disk.
	if v := os.Getenv("STAGEHAND_HISTORY_DB"); v != "" {
		cfg.HistoryDBPath = v
	}
	if v := os.Getenv("STAGEHAND_S3_ENDPOINT"); v != "" {
		cfg.S3Endpoint = v
	}
	if v := os.Getenv("STAGEHAND_S3_BUCKET"); v != "" {
		cfg.S3Bucket = v
	}
	if v := os.Getenv("STAGEHAND_S3_ACCESS_KEY"); v != "" {
		cfg.S3AccessKey = v
	}
	if v := os.Getenv("STAGEHAND_S3_SECRET_KEY"); v != "" {
		cfg.S3SecretKey = v
	}
	if v := os.Getenv("STAGEHAND_S3_REGION"); v != "" {
		cfg.S3Region = v
	}

	return cfg, nil
}

// Save writes the user configuration. Credentials may be present, so the
// file is written with owner-only permissions.
func Save(cfg *Config) error {
	dir, err := Dir()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(dir, "config.json"), data, 0o600)
}
