package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// readFile loads a flat YAML mapping of configuration keys.
// Keys may be written as the environment variable ("BOOKMARKS_CLIENT_ID")
// or in short form ("client_id", "redis-pool-size"), which gets the
// BOOKMARKS_ prefix. Lists are joined with commas.
//
//	client_id: abc
//	redirect_url: http://localhost:8080/login/callback
//	allowed_cidrs: [10.0.0.0/8, 127.0.0.1/32]
func readFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return parseFile(data)
}

func parseFile(data []byte) (map[string]string, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse yaml: %w", err)
	}

	values := make(map[string]string, len(raw))
	for k, v := range raw {
		if v == nil {
			continue
		}
		key := normalizeKey(k)
		switch val := v.(type) {
		case []any:
			parts := make([]string, 0, len(val))
			for _, item := range val {
				parts = append(parts, fmt.Sprint(item))
			}
			values[key] = strings.Join(parts, ",")
		case map[string]any:
			return nil, fmt.Errorf("key %q: nested mappings are not supported", k)
		default:
			values[key] = fmt.Sprint(val)
		}
	}
	return values, nil
}

func normalizeKey(k string) string {
	k = strings.ToUpper(strings.TrimSpace(k))
	k = strings.ReplaceAll(k, "-", "_")
	if strings.HasPrefix(k, envPrefix) {
		return k
	}
	return envPrefix + k
}
