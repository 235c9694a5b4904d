package storefront

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/storefront/internal/validate"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables read by LoadConfig. They win over the YAML file.
const (
	EnvBaseURL         = "STOREFRONT_BASE_URL"
	EnvTimeout         = "STOREFRONT_TIMEOUT"
	EnvStore           = "STOREFRONT_STORE"
	EnvRedisAddr       = "STOREFRONT_REDIS_ADDR"
	EnvStorePath       = "STOREFRONT_STORE_PATH"
	EnvStorePassphrase = "STOREFRONT_STORE_PASSPHRASE"
	EnvLogLevel        = "STOREFRONT_LOG_LEVEL"
	EnvLogFormat       = "STOREFRONT_LOG_FORMAT"
	EnvMetrics         = "STOREFRONT_METRICS"
)

// LoadConfig builds a Config from DefaultConfig, the YAML file at path and
// STOREFRONT_* environment variables, in that order. envFiles are loaded
// into the environment first; missing ones are skipped. An empty path skips
// the YAML step.
func LoadConfig(path string, envFiles ...string) (Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load env file %s: %w", f, err)
		}
	}

	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := decodeYAML(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}

	if err := validate.Validator().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decodeYAML(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvBaseURL); ok && v != "" {
		cfg.API.BaseURL = v
	}
	if v, ok := lookup(EnvTimeout); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTimeout, err)
		}
		cfg.API.Timeout = d
	}
	if v, ok := lookup(EnvStore); ok && v != "" {
		cfg.Store.Backend = StoreBackend(strings.ToLower(v))
	}
	if v, ok := lookup(EnvRedisAddr); ok && v != "" {
		cfg.Store.RedisAddr = v
	}
	if v, ok := lookup(EnvStorePath); ok && v != "" {
		cfg.Store.FilePath = v
	}
	if v, ok := lookup(EnvStorePassphrase); ok {
		cfg.Store.FilePassphrase = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v, ok := lookup(EnvLogFormat); ok && v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v, ok := lookup(EnvMetrics); ok && v != "" {
		on, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMetrics, err)
		}
		cfg.Metrics.Enabled = on
	}
	return nil
}
