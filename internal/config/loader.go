package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type SourceKind string

const (
	SourceDefault SourceKind = "default"
	SourceFile    SourceKind = "file"
	SourceEnv     SourceKind = "env"
)

type Source struct {
	Kind   SourceKind
	Name   string // env var name, or "defaults"
	File   string
	Line   int
	Column int
}

type LoadResult struct {
	Config  *Config
	Sources map[string]Source // YAML path -> last writer
	File    string            // loaded file, empty when none existed
}

func DefaultConfigPath() (string, error) {
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, "replybot", "config.yaml"), nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "replybot", "config.yaml"), nil
}

// Load reads the configuration the reply loop starts from: path (or the
// standard location when empty) plus the environment. Unlike LoadFromPath it
// fails with ErrMissingCredential when no API key is set.
func Load(path string) (*LoadResult, error) {
	if path == "" {
		var err error
		if path, err = DefaultConfigPath(); err != nil {
			return nil, err
		}
	}
	res, err := LoadFromPath(path)
	if err != nil {
		return nil, err
	}
	if err := res.Config.RequireCredential(); err != nil {
		return nil, err
	}
	return res, nil
}

// LoadFromPath loads path (a missing file means defaults), then the
// environment (.env in the working directory included).
func LoadFromPath(path string) (*LoadResult, error) {
	env, err := ProcessEnv(".env")
	if err != nil {
		return nil, err
	}
	return LoadFromPathWithEnv(path, env)
}

// LoadFromPathWithEnv is LoadFromPath with an explicit environment lookup.
func LoadFromPathWithEnv(path string, env Getenv) (*LoadResult, error) {
	raw := RawConfig{}
	sources := map[string]Source{}
	file := ""

	if path != "" {
		exists, err := pathExists(path)
		if err != nil {
			return nil, err
		}
		if exists {
			canon, err := canonicalPath(path)
			if err != nil {
				return nil, err
			}
			data, err := os.ReadFile(canon)
			if err != nil {
				return nil, fmt.Errorf("%s: failed to read: %w", canon, err)
			}
			var doc yaml.Node
			if err := yaml.Unmarshal(data, &doc); err != nil {
				return nil, fmt.Errorf("%s: failed to parse yaml: %w", canon, err)
			}
			if err := decodeStrictYAML(data, &raw); err != nil {
				return nil, fmt.Errorf("%s: %w", canon, err)
			}
			sources = collectSources(&doc, canon)
			file = canon
		}
	}

	cfg, err := BuildEffectiveConfig(raw)
	if err != nil {
		return nil, attachSourceContext(err, sources)
	}
	if err := applyEnv(cfg, env, sources); err != nil {
		return nil, err
	}
	// Entries must outlive the cooldown they enforce.
	if cfg.LedgerRetention < cfg.Cooldown {
		cfg.LedgerRetention = cfg.Cooldown
	}
	if err := cfg.Validate(); err != nil {
		return nil, attachSourceContext(err, sources)
	}

	return &LoadResult{
		Config:  cfg,
		Sources: sources,
		File:    file,
	}, nil
}

func decodeStrictYAML(data []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		if err == io.EOF {
			return nil
		}
		return err
	}
	return nil
}

func canonicalPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %q: %w", path, err)
	}
	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		// Best-effort; still use abs.
		return abs, nil
	}
	return real, nil
}

func expandHome(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
	}
	return path, nil
}

func pathExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func collectSources(doc *yaml.Node, file string) map[string]Source {
	out := make(map[string]Source)
	if doc == nil {
		return out
	}
	node := doc
	if node.Kind == yaml.DocumentNode && len(node.Content) > 0 {
		node = node.Content[0]
	}
	collectSourcesRec(node, file, "", out)
	return out
}

func collectSourcesRec(node *yaml.Node, file string, prefix string, out map[string]Source) {
	if node == nil || node.Kind != yaml.MappingNode {
		return
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode := node.Content[i]
		valNode := node.Content[i+1]
		path := keyNode.Value
		if prefix != "" {
			path = prefix + "." + keyNode.Value
		}
		out[path] = Source{
			Kind:   SourceFile,
			File:   file,
			Line:   valNode.Line,
			Column: valNode.Column,
		}
		collectSourcesRec(valNode, file, path, out)
	}
}

func attachSourceContext(err error, sources map[string]Source) error {
	verr, ok := err.(*ValidationError)
	if !ok || verr == nil {
		return err
	}
	if verr.Path == "" {
		return err
	}
	if src, ok := sources[verr.Path]; ok {
		verr.Source = src
	}
	return verr
}
