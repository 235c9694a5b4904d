package storefront

import (
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/MrEthical07/storefront/address"
)

// Config is the complete client configuration. Start from DefaultConfig or
// LoadConfig and adjust before passing it to the Builder.
type Config struct {
	API      APIConfig      `yaml:"api"`
	Session  SessionConfig  `yaml:"session"`
	Store    StoreConfig    `yaml:"store"`
	Debounce DebounceConfig `yaml:"debounce"`
	Address  AddressConfig  `yaml:"address"`
	OTP      OTPConfig      `yaml:"otp"`
	Events   EventsConfig   `yaml:"events"`
	Notify   NotifyConfig   `yaml:"notify"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Logging  LoggingConfig  `yaml:"logging"`
}

/*
====================================
API CONFIG
====================================
*/

// APIConfig points the client at the storefront REST API.
type APIConfig struct {
	BaseURL      string        `yaml:"base_url" validate:"required,url"`
	Timeout      time.Duration `yaml:"timeout" validate:"gt=0"`
	UserAgent    string        `yaml:"user_agent"`
	MaxBodyBytes int64         `yaml:"max_body_bytes" validate:"gte=0"`
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig tunes the token lifecycle.
type SessionConfig struct {
	// RefreshMargin is how long before expiry the proactive refresh fires.
	RefreshMargin  time.Duration `yaml:"refresh_margin" validate:"gt=0"`
	RefreshTimeout time.Duration `yaml:"refresh_timeout" validate:"gt=0"`
	// RestoreOnBuild adopts a session persisted by an earlier run.
	RestoreOnBuild bool `yaml:"restore_on_build"`
}

/*
====================================
STORE CONFIG
====================================
*/

// StoreBackend selects where client state is persisted.
type StoreBackend string

const (
	StoreMemory StoreBackend = "memory"
	StoreRedis  StoreBackend = "redis"
	StoreFile   StoreBackend = "file"
)

// StoreConfig selects and configures the persisted-state backend.
type StoreConfig struct {
	Backend StoreBackend `yaml:"backend" validate:"oneof=memory redis file"`
	// Codec is "json" (default) or "msgpack" for structured entries.
	Codec       string `yaml:"codec" validate:"oneof=json msgpack"`
	RedisAddr   string `yaml:"redis_addr"`
	RedisPrefix string `yaml:"redis_prefix"`
	FilePath    string `yaml:"file_path"`
	// FilePassphrase enables encryption of the file store. Leave empty for
	// a plain file.
	FilePassphrase string `yaml:"file_passphrase"`
}

/*
====================================
DEBOUNCE CONFIG
====================================
*/

// DebounceConfig sets the quiet periods of the debounced lookups.
type DebounceConfig struct {
	SearchQuiet  time.Duration `yaml:"search_quiet" validate:"gt=0"`
	PincodeQuiet time.Duration `yaml:"pincode_quiet" validate:"gt=0"`
}

/*
====================================
ADDRESS CONFIG
====================================
*/

// AddressConfig bounds the saved-address book. MaxSaved may lower the cap
// below five but never raise it.
type AddressConfig struct {
	MaxSaved int `yaml:"max_saved" validate:"gt=0,lte=5"`
}

/*
====================================
OTP CONFIG
====================================
*/

// OTPConfig controls phone OTP requests.
type OTPConfig struct {
	ResendCooldown time.Duration `yaml:"resend_cooldown" validate:"gte=0"`
	CountryCode    string        `yaml:"country_code" validate:"required,startswith=+"`
}

/*
====================================
EVENTS CONFIG
====================================
*/

// EventsConfig controls the async copy of events to the configured sink.
// Subscribers on the bus are always called synchronously.
type EventsConfig struct {
	Async      bool `yaml:"async"`
	BufferSize int  `yaml:"buffer_size" validate:"gte=0"`
	DropIfFull bool `yaml:"drop_if_full"`
}

/*
====================================
NOTIFY CONFIG
====================================
*/

type NotifyConfig struct {
	// Log writes notices to the client logger when no Notifier is set.
	Log bool `yaml:"log"`
}

/*
====================================
METRICS CONFIG
====================================
*/

type MetricsConfig struct {
	Enabled                 bool `yaml:"enabled"`
	EnableLatencyHistograms bool `yaml:"latency_histograms"`
}

/*
====================================
LOGGING CONFIG
====================================
*/

// LoggingConfig configures the zap logger built when none is supplied.
type LoggingConfig struct {
	// Level is debug, info, warn, error or off.
	Level string `yaml:"level" validate:"oneof=debug info warn error off"`
	// Format is json or console.
	Format  string `yaml:"format" validate:"oneof=json console"`
	Service string `yaml:"service"`
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the storefront defaults against a local API.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			BaseURL:      "http://localhost:8080",
			Timeout:      15 * time.Second,
			UserAgent:    "storefront-go",
			MaxBodyBytes: 10 << 20,
		},
		Session: SessionConfig{
			RefreshMargin:  60 * time.Second,
			RefreshTimeout: 15 * time.Second,
			RestoreOnBuild: true,
		},
		Store: StoreConfig{
			Backend:     StoreMemory,
			Codec:       "json",
			RedisPrefix: "sf",
		},
		Debounce: DebounceConfig{
			SearchQuiet:  300 * time.Millisecond,
			PincodeQuiet: 500 * time.Millisecond,
		},
		Address: AddressConfig{
			MaxSaved: 5,
		},
		OTP: OTPConfig{
			ResendCooldown: 60 * time.Second,
			CountryCode:    "+91",
		},
		Events: EventsConfig{
			Async:      false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
		Logging: LoggingConfig{
			Level:   "off",
			Format:  "json",
			Service: "storefront",
		},
	}
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks cross-field rules that struct tags cannot express.
func (c *Config) Validate() error {
	// API
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Host == "" {
		return errors.New("API BaseURL must be an absolute URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("API BaseURL must use http or https")
	}
	if c.API.Timeout <= 0 {
		return errors.New("API Timeout must be > 0")
	}
	if c.API.MaxBodyBytes < 0 {
		return errors.New("API MaxBodyBytes must be >= 0")
	}

	// Session
	if c.Session.RefreshMargin <= 0 {
		return errors.New("Session RefreshMargin must be > 0")
	}
	if c.Session.RefreshTimeout <= 0 {
		return errors.New("Session RefreshTimeout must be > 0")
	}

	// Store
	switch c.Store.Backend {
	case StoreMemory:
	case StoreRedis:
	case StoreFile:
		if strings.TrimSpace(c.Store.FilePath) == "" {
			return errors.New("Store FilePath is required for the file backend")
		}
	default:
		return errors.New("Store Backend must be 'memory', 'redis', or 'file'")
	}
	if c.Store.Codec != "json" && c.Store.Codec != "msgpack" {
		return errors.New("Store Codec must be 'json' or 'msgpack'")
	}

	// Debounce
	if c.Debounce.SearchQuiet <= 0 || c.Debounce.PincodeQuiet <= 0 {
		return errors.New("Debounce quiet periods must be > 0")
	}

	if c.Address.MaxSaved <= 0 || c.Address.MaxSaved > address.DefaultCapacity {
		return errors.New("Address MaxSaved must be between 1 and 5")
	}

	// OTP
	if c.OTP.ResendCooldown < 0 {
		return errors.New("OTP ResendCooldown must be >= 0")
	}
	if !strings.HasPrefix(c.OTP.CountryCode, "+") {
		return errors.New("OTP CountryCode must start with '+'")
	}

	if c.Events.Async && c.Events.BufferSize <= 0 {
		return errors.New("Events BufferSize must be > 0 when async events are enabled")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error", "off":
	default:
		return errors.New("Logging Level must be debug, info, warn, error, or off")
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return errors.New("Logging Format must be 'json' or 'console'")
	}

	return nil
}

/*
====================================
LINT
====================================
*/

// LintWarning is a legal but risky setting.
type LintWarning struct {
	Code    string
	Message string
}

type LintWarnings []LintWarning

// Codes returns the warning codes in order.
func (ws LintWarnings) Codes() []string {
	out := make([]string, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.Code)
	}
	return out
}

// Lint reports settings that validate but are likely mistakes.
func (c *Config) Lint() LintWarnings {
	var ws LintWarnings
	add := func(code, msg string) {
		ws = append(ws, LintWarning{Code: code, Message: msg})
	}

	if u, err := url.Parse(c.API.BaseURL); err == nil && u.Scheme == "http" && !isLoopback(u.Hostname()) {
		add("insecure_base_url", "API BaseURL uses plain http to a non-local host; tokens travel unencrypted")
	}
	if c.API.Timeout > time.Minute {
		add("timeout_long", "API Timeout above 1m leaves users waiting on dead connections")
	}
	if c.Session.RefreshMargin < 10*time.Second {
		add("refresh_margin_small", "Session RefreshMargin under 10s risks sending tokens that expire in flight")
	}
	if c.Session.RefreshTimeout > c.API.Timeout {
		add("refresh_timeout_exceeds_api_timeout", "Session RefreshTimeout is longer than the request timeout")
	}
	if c.Store.Backend == StoreFile && c.Store.FilePassphrase == "" {
		add("file_store_unencrypted", "file store keeps tokens in plain text without FilePassphrase")
	}
	if c.Store.Backend == StoreRedis && c.Store.RedisAddr == "" {
		add("redis_addr_missing", "redis backend without RedisAddr needs a client passed to WithRedis")
	}
	if c.OTP.ResendCooldown == 0 {
		add("otp_cooldown_disabled", "OTP ResendCooldown of 0 allows unlimited OTP requests")
	}
	if c.Debounce.SearchQuiet < 100*time.Millisecond {
		add("search_quiet_short", "Debounce SearchQuiet under 100ms issues a request for most keystrokes")
	}
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		add("latency_without_metrics", "latency histograms have no effect while metrics are disabled")
	}

	return ws
}

func isLoopback(host string) bool {
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}
