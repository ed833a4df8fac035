package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration supports either a Go duration string or bare seconds:
//
//	scan_interval: 20s
//	cooldown: 300
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be a scalar")
	}
	parsed, err := ParseDuration(value.Value)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// ParseDuration parses "1m30s" style strings; a bare integer means seconds.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("duration is empty")
	}
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return d, nil
}

type RawPoint struct {
	X       *float64 `yaml:"x,omitempty"`
	Y       *float64 `yaml:"y,omitempty"`
	OffsetX *int     `yaml:"offset_x,omitempty"`
	OffsetY *int     `yaml:"offset_y,omitempty"`
}

type RawInjectionConfig struct {
	ChatPoint         *RawPoint `yaml:"chat_point,omitempty"`
	InputPoint        *RawPoint `yaml:"input_point,omitempty"`
	KeystrokeInterval *Duration `yaml:"keystroke_interval,omitempty"`
	ClickSettle       *Duration `yaml:"click_settle,omitempty"`
	SubmitSettle      *Duration `yaml:"submit_settle,omitempty"`
}

type RawDebugConfig struct {
	Enabled *bool   `yaml:"enabled,omitempty"`
	Dir     *string `yaml:"dir,omitempty"`
}

// RawConfig mirrors the YAML file. Nil fields keep their defaults.
type RawConfig struct {
	WindowTitle       *string             `yaml:"window_title,omitempty"`
	ScanInterval      *Duration           `yaml:"scan_interval,omitempty"`
	Cooldown          *Duration           `yaml:"cooldown,omitempty"`
	MaxRepliesPerHour *int                `yaml:"max_replies_per_hour,omitempty"`
	RateWindow        *Duration           `yaml:"rate_window,omitempty"`
	LedgerRetention   *Duration           `yaml:"ledger_retention,omitempty"`
	FocusSettle       *Duration           `yaml:"focus_settle,omitempty"`
	OracleTimeout     *Duration           `yaml:"oracle_timeout,omitempty"`
	Model             *string             `yaml:"model,omitempty"`
	Temperature       *float64            `yaml:"temperature,omitempty"`
	Personality       *string             `yaml:"personality,omitempty"`
	Display           *string             `yaml:"display,omitempty"`
	PauseHotkey       *string             `yaml:"pause_hotkey,omitempty"`
	LogLevel          *string             `yaml:"log_level,omitempty"`
	LogFormat         *string             `yaml:"log_format,omitempty"`
	Debug             *RawDebugConfig     `yaml:"debug,omitempty"`
	Injection         *RawInjectionConfig `yaml:"injection,omitempty"`
}

// BuildEffectiveConfig applies raw over DefaultConfig.
func BuildEffectiveConfig(raw RawConfig) (*Config, error) {
	cfg := DefaultConfig()

	if raw.WindowTitle != nil {
		cfg.WindowTitle = *raw.WindowTitle
	}
	setDuration(&cfg.ScanInterval, raw.ScanInterval)
	setDuration(&cfg.Cooldown, raw.Cooldown)
	if raw.MaxRepliesPerHour != nil {
		cfg.MaxRepliesPerHour = *raw.MaxRepliesPerHour
	}
	setDuration(&cfg.RateWindow, raw.RateWindow)
	setDuration(&cfg.LedgerRetention, raw.LedgerRetention)
	setDuration(&cfg.FocusSettle, raw.FocusSettle)
	setDuration(&cfg.OracleTimeout, raw.OracleTimeout)
	if raw.Model != nil {
		cfg.Model = strings.TrimPrefix(strings.TrimSpace(*raw.Model), "models/")
	}
	if raw.Temperature != nil {
		cfg.Temperature = *raw.Temperature
	}
	if raw.Personality != nil {
		cfg.Personality = strings.TrimSpace(*raw.Personality)
	}
	if raw.Display != nil {
		cfg.Display = *raw.Display
	}
	if raw.PauseHotkey != nil {
		cfg.PauseHotkey = *raw.PauseHotkey
	}
	if raw.LogLevel != nil {
		cfg.LogLevel = strings.ToLower(*raw.LogLevel)
	}
	if raw.LogFormat != nil {
		cfg.LogFormat = strings.ToLower(*raw.LogFormat)
	}
	if raw.Debug != nil {
		if raw.Debug.Enabled != nil {
			cfg.Debug.Enabled = *raw.Debug.Enabled
		}
		if raw.Debug.Dir != nil {
			dir, err := expandHome(*raw.Debug.Dir)
			if err != nil {
				return nil, &ValidationError{Path: "debug.dir", Err: err}
			}
			cfg.Debug.Dir = dir
		}
	}
	if inj := raw.Injection; inj != nil {
		mergePoint(&cfg.Injection.ChatPoint, inj.ChatPoint)
		mergePoint(&cfg.Injection.InputPoint, inj.InputPoint)
		setDuration(&cfg.Injection.KeystrokeInterval, inj.KeystrokeInterval)
		setDuration(&cfg.Injection.ClickSettle, inj.ClickSettle)
		setDuration(&cfg.Injection.SubmitSettle, inj.SubmitSettle)
	}

	return cfg, nil
}

func setDuration(dst *time.Duration, src *Duration) {
	if src != nil {
		*dst = time.Duration(*src)
	}
}

func mergePoint(dst *Point, src *RawPoint) {
	if src == nil {
		return
	}
	if src.X != nil {
		dst.X = *src.X
	}
	if src.Y != nil {
		dst.Y = *src.Y
	}
	if src.OffsetX != nil {
		dst.OffsetX = *src.OffsetX
	}
	if src.OffsetY != nil {
		dst.OffsetY = *src.OffsetY
	}
}

func toRaw(c *Config) RawConfig {
	d := func(v time.Duration) *Duration {
		out := Duration(v)
		return &out
	}
	p := func(pt Point) *RawPoint {
		return &RawPoint{X: &pt.X, Y: &pt.Y, OffsetX: &pt.OffsetX, OffsetY: &pt.OffsetY}
	}
	raw := RawConfig{
		WindowTitle:       &c.WindowTitle,
		ScanInterval:      d(c.ScanInterval),
		Cooldown:          d(c.Cooldown),
		MaxRepliesPerHour: &c.MaxRepliesPerHour,
		RateWindow:        d(c.RateWindow),
		LedgerRetention:   d(c.LedgerRetention),
		FocusSettle:       d(c.FocusSettle),
		OracleTimeout:     d(c.OracleTimeout),
		Model:             &c.Model,
		Temperature:       &c.Temperature,
		Personality:       &c.Personality,
		LogLevel:          &c.LogLevel,
		LogFormat:         &c.LogFormat,
		Debug:             &RawDebugConfig{Enabled: &c.Debug.Enabled, Dir: &c.Debug.Dir},
		Injection: &RawInjectionConfig{
			ChatPoint:         p(c.Injection.ChatPoint),
			InputPoint:        p(c.Injection.InputPoint),
			KeystrokeInterval: d(c.Injection.KeystrokeInterval),
			ClickSettle:       d(c.Injection.ClickSettle),
			SubmitSettle:      d(c.Injection.SubmitSettle),
		},
	}
	if c.Display != "" {
		raw.Display = &c.Display
	}
	if c.PauseHotkey != "" {
		raw.PauseHotkey = &c.PauseHotkey
	}
	return raw
}
