package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/1broseidon/replybot/internal/runtimepath"
)

// ErrMissingCredential is returned when no oracle API key is configured.
// The loop must not start in this state.
var ErrMissingCredential = errors.New("GOOGLE_API_KEY is not set (environment or .env file)")

const (
	DefaultWindowTitle       = "WhatsApp"
	DefaultScanInterval      = 20 * time.Second
	DefaultCooldown          = 300 * time.Second
	DefaultMaxRepliesPerHour = 10
	DefaultRateWindow        = time.Hour
	DefaultLedgerRetention   = 24 * time.Hour
	DefaultFocusSettle       = time.Second
	DefaultOracleTimeout     = 60 * time.Second
	DefaultModel             = "gemini-2.5-flash"
	DefaultTemperature       = 0.7

	DefaultKeystrokeInterval = 50 * time.Millisecond
	DefaultClickSettle       = 300 * time.Millisecond
	DefaultSubmitSettle      = 500 * time.Millisecond
)

// DefaultPersonality is the persona prepended to the analysis prompt.
const DefaultPersonality = `You are a friendly, witty friend who gives clever automated replies.
Keep responses SHORT (1-2 sentences max), casual, and sometimes sarcastic.
Use emojis occasionally but don't overdo it.`

// Point locates a click target inside a window's bounding box.
// X and Y are fractions of the width and height; the offsets are added in
// pixels afterwards.
type Point struct {
	X       float64 `yaml:"x"`
	Y       float64 `yaml:"y"`
	OffsetX int     `yaml:"offset_x,omitempty"`
	OffsetY int     `yaml:"offset_y,omitempty"`
}

// InjectionConfig tunes the simulated click/typing sequence.
type InjectionConfig struct {
	ChatPoint         Point         `yaml:"chat_point"`
	InputPoint        Point         `yaml:"input_point"`
	KeystrokeInterval time.Duration `yaml:"keystroke_interval"`
	ClickSettle       time.Duration `yaml:"click_settle"`
	SubmitSettle      time.Duration `yaml:"submit_settle"`
}

// DebugConfig controls the optional frame archive.
type DebugConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

// Config is the effective configuration used by the reply loop.
type Config struct {
	WindowTitle       string          `yaml:"window_title"`
	ScanInterval      time.Duration   `yaml:"scan_interval"`
	Cooldown          time.Duration   `yaml:"cooldown"`
	MaxRepliesPerHour int             `yaml:"max_replies_per_hour"`
	RateWindow        time.Duration   `yaml:"rate_window"`
	LedgerRetention   time.Duration   `yaml:"ledger_retention"`
	FocusSettle       time.Duration   `yaml:"focus_settle"`
	OracleTimeout     time.Duration   `yaml:"oracle_timeout"`
	Model             string          `yaml:"model"`
	Temperature       float64         `yaml:"temperature"`
	Personality       string          `yaml:"personality"`
	Display           string          `yaml:"display,omitempty"`
	PauseHotkey       string          `yaml:"pause_hotkey,omitempty"`
	LogLevel          string          `yaml:"log_level"`
	LogFormat         string          `yaml:"log_format"`
	Debug             DebugConfig     `yaml:"debug"`
	Injection         InjectionConfig `yaml:"injection"`

	// APIKey is only ever read from the environment.
	APIKey string `yaml:"-"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		WindowTitle:       DefaultWindowTitle,
		ScanInterval:      DefaultScanInterval,
		Cooldown:          DefaultCooldown,
		MaxRepliesPerHour: DefaultMaxRepliesPerHour,
		RateWindow:        DefaultRateWindow,
		LedgerRetention:   DefaultLedgerRetention,
		FocusSettle:       DefaultFocusSettle,
		OracleTimeout:     DefaultOracleTimeout,
		Model:             DefaultModel,
		Temperature:       DefaultTemperature,
		Personality:       DefaultPersonality,
		LogLevel:          "info",
		LogFormat:         "console",
		Debug: DebugConfig{
			Enabled: false,
			Dir:     defaultDebugDir(),
		},
		Injection: InjectionConfig{
			ChatPoint:         Point{X: 0.65, Y: 0.5},
			InputPoint:        Point{X: 0.65, Y: 1.0, OffsetY: -80},
			KeystrokeInterval: DefaultKeystrokeInterval,
			ClickSettle:       DefaultClickSettle,
			SubmitSettle:      DefaultSubmitSettle,
		},
	}
}

func defaultDebugDir() string {
	dir, err := runtimepath.DataDir()
	if err != nil {
		return "debug"
	}
	return filepath.Join(dir, "debug")
}

// RequireCredential returns ErrMissingCredential when no API key is set.
func (c *Config) RequireCredential() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return ErrMissingCredential
	}
	return nil
}

// MaskedAPIKey returns the key with only its ends visible.
func (c *Config) MaskedAPIKey() string {
	key := strings.TrimSpace(c.APIKey)
	if key == "" {
		return ""
	}
	if len(key) <= 14 {
		return strings.Repeat("*", len(key))
	}
	return key[:10] + "..." + key[len(key)-4:]
}

// Validate checks the effective configuration. It does not require the
// credential; callers that start the loop use RequireCredential.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.WindowTitle) == "" {
		return &ValidationError{Path: "window_title", Err: fmt.Errorf("window_title is required")}
	}
	durations := []struct {
		path string
		val  time.Duration
	}{
		{"scan_interval", c.ScanInterval},
		{"cooldown", c.Cooldown},
		{"rate_window", c.RateWindow},
		{"ledger_retention", c.LedgerRetention},
		{"oracle_timeout", c.OracleTimeout},
		{"injection.keystroke_interval", c.Injection.KeystrokeInterval},
	}
	for _, d := range durations {
		if d.val <= 0 {
			return &ValidationError{Path: d.path, Err: fmt.Errorf("%s must be > 0", d.path)}
		}
	}
	if c.FocusSettle < 0 {
		return &ValidationError{Path: "focus_settle", Err: fmt.Errorf("focus_settle must be >= 0")}
	}
	if c.Injection.ClickSettle < 0 || c.Injection.SubmitSettle < 0 {
		return &ValidationError{Path: "injection", Err: fmt.Errorf("injection settle delays must be >= 0")}
	}
	if c.MaxRepliesPerHour < 1 {
		return &ValidationError{Path: "max_replies_per_hour", Err: fmt.Errorf("max_replies_per_hour must be >= 1")}
	}
	if strings.TrimSpace(c.Model) == "" {
		return &ValidationError{Path: "model", Err: fmt.Errorf("model is required")}
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return &ValidationError{Path: "temperature", Err: fmt.Errorf("temperature must be between 0 and 2")}
	}
	if err := validatePoint("injection.chat_point", c.Injection.ChatPoint); err != nil {
		return err
	}
	if err := validatePoint("injection.input_point", c.Injection.InputPoint); err != nil {
		return err
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "warning", "error":
	default:
		return &ValidationError{Path: "log_level", Err: fmt.Errorf("log_level must be one of: debug, info, warning, error")}
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		return &ValidationError{Path: "log_format", Err: fmt.Errorf("log_format must be one of: console, json")}
	}
	if c.Debug.Enabled && strings.TrimSpace(c.Debug.Dir) == "" {
		return &ValidationError{Path: "debug.dir", Err: fmt.Errorf("debug.dir is required when debug is enabled")}
	}
	return nil
}

func validatePoint(path string, p Point) error {
	if p.X < 0 || p.X > 1 {
		return &ValidationError{Path: path + ".x", Err: fmt.Errorf("x must be between 0 and 1")}
	}
	if p.Y < 0 || p.Y > 1 {
		return &ValidationError{Path: path + ".y", Err: fmt.Errorf("y must be between 0 and 1")}
	}
	return nil
}

// Marshal renders the effective config as YAML (credential omitted).
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(toRaw(c))
}

// ValidationError points at the config path (and file position, when known)
// that failed validation.
type ValidationError struct {
	Path   string
	Source Source
	Err    error
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Source.Kind == SourceFile && e.Source.File != "" && e.Source.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s: %v", e.Source.File, e.Source.Line, e.Source.Column, e.Path, e.Err)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %v", e.Path, e.Err)
	}
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
