package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	json5 "github.com/yosuke-furukawa/json5/encoding/json5"
	"gopkg.in/yaml.v3"
)

// includeKey is the directive that splices other config files into this
// one; the bare "include" spelling is accepted as an alias.
const includeKey = "$include"

// LoadRaw reads the config file at path into one merged raw map:
// includes are resolved depth-first (included files lose to the
// including file on key conflicts), environment variables are expanded,
// and include cycles are an error rather than a hang.
func LoadRaw(path string) (map[string]any, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("config path is required")
	}
	return loadMerged(path, map[string]bool{})
}

func loadMerged(path string, visiting map[string]bool) (map[string]any, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if visiting[abs] {
		return nil, fmt.Errorf("config include cycle detected at %s", abs)
	}
	visiting[abs] = true
	defer delete(visiting, abs)

	raw, err := readConfigFile(abs)
	if err != nil {
		return nil, err
	}
	includes, err := takeIncludes(raw)
	if err != nil {
		return nil, err
	}

	merged := map[string]any{}
	baseDir := filepath.Dir(abs)
	for _, include := range includes {
		include = strings.TrimSpace(include)
		if include == "" {
			continue
		}
		if !filepath.IsAbs(include) {
			include = filepath.Join(baseDir, include)
		}
		includedRaw, err := loadMerged(include, visiting)
		if err != nil {
			return nil, err
		}
		merged = mergeMaps(merged, includedRaw)
	}
	return mergeMaps(merged, raw), nil
}

// readConfigFile loads and parses one file, selecting the decoder by
// extension: .json/.json5 go through the JSON5 decoder, everything else
// is YAML. Environment variables expand before parsing so a $VAR can
// appear anywhere in the document; "$include" itself is left as written.
func readConfigFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	expanded := []byte(os.Expand(string(data), func(key string) string {
		if key == "include" {
			return includeKey
		}
		return os.Getenv(key)
	}))

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".json5":
		var raw map[string]any
		if err := json5.Unmarshal(expanded, &raw); err != nil {
			return nil, err
		}
		if raw == nil {
			raw = map[string]any{}
		}
		return raw, nil
	default:
		return decodeSingleYAML(expanded)
	}
}

// decodeSingleYAML decodes exactly one YAML document into a raw map.
func decodeSingleYAML(data []byte) (map[string]any, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(data))

	var raw map[string]any
	if err := decoder.Decode(&raw); err != nil {
		return nil, err
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("failed to parse config: expected single document")
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}

// takeIncludes removes and returns the include directive's paths.
func takeIncludes(raw map[string]any) ([]string, error) {
	if raw == nil {
		return nil, nil
	}
	var value any
	for _, key := range []string{includeKey, "include"} {
		if v, ok := raw[key]; ok {
			value = v
			delete(raw, key)
			break
		}
	}

	switch typed := value.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{typed}, nil
	case []string:
		return typed, nil
	case []any:
		paths := make([]string, 0, len(typed))
		for _, entry := range typed {
			s, ok := entry.(string)
			if !ok {
				return nil, fmt.Errorf("include entries must be strings")
			}
			paths = append(paths, s)
		}
		return paths, nil
	default:
		return nil, fmt.Errorf("include must be a string or list of strings")
	}
}

// mergeMaps overlays src onto dst, recursing into maps so nested
// sections merge key-by-key instead of replacing wholesale.
func mergeMaps(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = map[string]any{}
	}
	for key, value := range src {
		srcMap, srcIsMap := value.(map[string]any)
		dstMap, dstIsMap := dst[key].(map[string]any)
		if srcIsMap && dstIsMap {
			dst[key] = mergeMaps(dstMap, srcMap)
			continue
		}
		dst[key] = value
	}
	return dst
}

// decodeRawConfig decodes the merged raw map into a Config, rejecting
// unknown fields so typos fail loudly instead of being ignored.
func decodeRawConfig(raw map[string]any) (*Config, error) {
	payload, err := yaml.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize config: %w", err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(payload))
	decoder.KnownFields(true)
	var cfg Config
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("failed to parse config: expected single document")
	}
	return &cfg, nil
}
