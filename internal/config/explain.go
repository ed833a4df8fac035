package config

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Explain returns the effective value at a dotted YAML path (for example
// "cooldown" or "injection.input_point.offset_y") and where it came from.
func Explain(res *LoadResult, path string) (any, Source, error) {
	if res == nil || res.Config == nil {
		return nil, Source{}, fmt.Errorf("no config loaded")
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, Source{}, fmt.Errorf("path is empty")
	}

	value, err := lookupValue(res.Config, path)
	if err != nil {
		return nil, Source{}, err
	}

	if src, ok := res.Sources[path]; ok {
		return value, src, nil
	}
	return value, Source{Kind: SourceDefault, Name: "defaults"}, nil
}

func lookupValue(cfg *Config, path string) (any, error) {
	data, err := cfg.Marshal()
	if err != nil {
		return nil, err
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, err
	}

	var cur any = tree
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("unknown path: %s", path)
		}
		cur, ok = m[part]
		if !ok {
			return nil, fmt.Errorf("unknown path: %s", path)
		}
	}
	return cur, nil
}
