package credpool

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Source yields the configured list of credential secrets.
type Source interface {
	Keys(ctx context.Context) ([]string, error)
}

// StaticSource is a fixed list, typically parsed from an env var.
type StaticSource []string

// Keys implements Source.
func (s StaticSource) Keys(context.Context) ([]string, error) {
	return append([]string(nil), s...), nil
}

// FileSource reads secrets from a YAML file of the form:
//
//	keys:
//	  - gsk_...
//	  - gsk_...
//
// The file is re-read on every call so rotations apply on the next sync.
type FileSource struct {
	Path string
}

type keysFile struct {
	Keys []string `yaml:"keys"`
}

// Keys implements Source.
func (f FileSource) Keys(context.Context) ([]string, error) {
	raw, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("credpool: read %s: %w", f.Path, err)
	}
	var kf keysFile
	if err := yaml.Unmarshal(raw, &kf); err != nil {
		return nil, fmt.Errorf("credpool: parse %s: %w", f.Path, err)
	}
	out := make([]string, 0, len(kf.Keys))
	for _, k := range kf.Keys {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	return out, nil
}

// MultiSource concatenates sources in order, dropping duplicates. Any
// failing source fails the whole read so a sync never deactivates keys
// because a file was temporarily unreadable.
type MultiSource []Source

// Keys implements Source.
func (m MultiSource) Keys(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	for _, s := range m {
		keys, err := s.Keys(ctx)
		if err != nil {
			return nil, err
		}
		for _, k := range keys {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, k)
		}
	}
	return out, nil
}
