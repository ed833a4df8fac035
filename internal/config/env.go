package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Getenv looks up an environment variable.
type Getenv func(key string) (string, bool)

const (
	EnvAPIKey            = "GOOGLE_API_KEY"
	EnvAPIKeyFallback    = "GEMINI_API_KEY"
	EnvWindowTitle       = "REPLYBOT_WINDOW_TITLE"
	EnvScanInterval      = "REPLYBOT_SCAN_INTERVAL"
	EnvCooldown          = "REPLYBOT_COOLDOWN"
	EnvMaxRepliesPerHour = "REPLYBOT_MAX_REPLIES_PER_HOUR"
)

// ProcessEnv returns a lookup over the process environment, falling back to
// KEY=VALUE pairs from dotenvPath. Process variables always win.
func ProcessEnv(dotenvPath string) (Getenv, error) {
	dotenv, err := ReadDotEnv(dotenvPath)
	if err != nil {
		return nil, err
	}
	return func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}, nil
}

// MapEnv adapts a map for tests and callers with a fixed environment.
func MapEnv(m map[string]string) Getenv {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

// ReadDotEnv parses a .env file. A missing file yields an empty map.
func ReadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return map[string]string{}, nil
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	vars, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return vars, nil
}

func applyEnv(cfg *Config, env Getenv, sources map[string]Source) error {
	if env == nil {
		return nil
	}
	lookup := func(key string) (string, bool) {
		v, ok := env(key)
		if !ok || strings.TrimSpace(v) == "" {
			return "", false
		}
		return strings.TrimSpace(v), true
	}

	if v, ok := lookup(EnvAPIKey); ok && v != "your_api_key_here" {
		cfg.APIKey = v
	} else if v, ok := lookup(EnvAPIKeyFallback); ok {
		cfg.APIKey = v
	}
	if v, ok := lookup(EnvWindowTitle); ok {
		cfg.WindowTitle = v
		sources["window_title"] = Source{Kind: SourceEnv, Name: EnvWindowTitle}
	}
	if v, ok := lookup(EnvScanInterval); ok {
		d, err := ParseDuration(v)
		if err != nil {
			return &ValidationError{Path: "scan_interval", Source: Source{Kind: SourceEnv, Name: EnvScanInterval}, Err: err}
		}
		cfg.ScanInterval = d
		sources["scan_interval"] = Source{Kind: SourceEnv, Name: EnvScanInterval}
	}
	if v, ok := lookup(EnvCooldown); ok {
		d, err := ParseDuration(v)
		if err != nil {
			return &ValidationError{Path: "cooldown", Source: Source{Kind: SourceEnv, Name: EnvCooldown}, Err: err}
		}
		cfg.Cooldown = d
		sources["cooldown"] = Source{Kind: SourceEnv, Name: EnvCooldown}
	}
	if v, ok := lookup(EnvMaxRepliesPerHour); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return &ValidationError{Path: "max_replies_per_hour", Source: Source{Kind: SourceEnv, Name: EnvMaxRepliesPerHour}, Err: fmt.Errorf("invalid integer %q", v)}
		}
		cfg.MaxRepliesPerHour = n
		sources["max_replies_per_hour"] = Source{Kind: SourceEnv, Name: EnvMaxRepliesPerHour}
	}
	return nil
}
