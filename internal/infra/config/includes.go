package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const maxIncludeDepth = 8

// mergeIncludes overlays every file named by cfg.Includes onto cfg. Entries
// are resolved against dir and may be glob patterns; a pattern matching
// nothing is skipped, a literal path that does not exist is an error.
func mergeIncludes(cfg *Config, dir string, seen map[string]bool, depth int) error {
	if depth >= maxIncludeDepth {
		return fmt.Errorf("config includes: nested deeper than %d", maxIncludeDepth)
	}

	patterns := cfg.Includes
	cfg.Includes = nil

	for _, pattern := range patterns {
		files, err := expandInclude(dir, pattern)
		if err != nil {
			return err
		}
		for _, f := range files {
			if seen[f] {
				return fmt.Errorf("config includes: %s is included twice (cycle?)", f)
			}
			seen[f] = true
			if err := overlayFile(cfg, f, seen, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}

func expandInclude(dir, pattern string) ([]string, error) {
	full := pattern
	if !filepath.IsAbs(full) {
		full = filepath.Join(dir, full)
	}
	full = filepath.Clean(full)

	if rel, err := filepath.Rel(dir, full); err == nil && strings.HasPrefix(rel, "..") {
		return nil, fmt.Errorf("config includes: %q leaves the config directory", pattern)
	}

	if !strings.ContainsAny(full, "*?[") {
		return []string{full}, nil
	}
	matches, err := filepath.Glob(full)
	if err != nil {
		return nil, fmt.Errorf("config includes: bad pattern %q: %w", pattern, err)
	}
	return matches, nil
}

func overlayFile(cfg *Config, path string, seen map[string]bool, depth int) error {
	if err := validatePermissions(path); err != nil {
		return fmt.Errorf("config includes: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config includes: %w", err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config includes: parse %s: %w", path, err)
	}
	if len(cfg.Includes) > 0 {
		return mergeIncludes(cfg, filepath.Dir(path), seen, depth)
	}
	return nil
}
