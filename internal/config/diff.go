package config

import (
	"fmt"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Change is one leaf value that differs between two configurations.
type Change struct {
	Path string
	Old  string
	New  string
	// Live reports whether a running daemon picks the change up on reload.
	Live bool
}

// Section returns the top-level key the change belongs to.
func (c Change) Section() string {
	section, _, _ := strings.Cut(c.Path, ".")
	return section
}

// liveKeys are applied by a daemon reload; everything else needs a restart.
var liveKeys = []string{"window.title", "window.frame_insets"}

// AppliesLive reports whether the key at path takes effect on reload.
func AppliesLive(path string) bool {
	for _, k := range liveKeys {
		if path == k || strings.HasPrefix(path, k+".") {
			return true
		}
	}
	return false
}

// Diff lists the leaf values that differ from prev to next, in the order
// they appear in the rendered config. Lists compare as a whole.
func Diff(prev, next *Config) ([]Change, error) {
	before, err := flatten(prev)
	if err != nil {
		return nil, err
	}
	after, err := flatten(next)
	if err != nil {
		return nil, err
	}

	var changes []Change
	seen := make(map[string]bool, len(after.keys))
	for _, key := range after.keys {
		seen[key] = true
		if old, ok := before.values[key]; ok && old == after.values[key] {
			continue
		}
		changes = append(changes, Change{Path: key, Old: before.values[key], New: after.values[key], Live: AppliesLive(key)})
	}
	for _, key := range before.keys {
		if !seen[key] {
			changes = append(changes, Change{Path: key, Old: before.values[key], Live: AppliesLive(key)})
		}
	}
	return changes, nil
}

// Clone returns a deep copy of c.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	out := *c
	out.Outputs = slices.Clone(c.Outputs)
	out.Renderer.Overlays = slices.Clone(c.Renderer.Overlays)
	return &out
}

type flatConfig struct {
	keys   []string
	values map[string]string
}

func flatten(c *Config) (flatConfig, error) {
	fc := flatConfig{values: make(map[string]string)}
	if c == nil {
		return fc, nil
	}
	var doc yaml.Node
	if err := doc.Encode(c); err != nil {
		return fc, fmt.Errorf("failed to encode config: %w", err)
	}
	if err := fc.walk(&doc, ""); err != nil {
		return fc, err
	}
	return fc, nil
}

func (fc *flatConfig) walk(node *yaml.Node, prefix string) error {
	switch node.Kind {
	case yaml.DocumentNode:
		for _, n := range node.Content {
			if err := fc.walk(n, prefix); err != nil {
				return err
			}
		}
		return nil
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			path := node.Content[i].Value
			if prefix != "" {
				path = prefix + "." + path
			}
			if err := fc.walk(node.Content[i+1], path); err != nil {
				return err
			}
		}
		return nil
	case yaml.SequenceNode:
		node.Style = yaml.FlowStyle
		data, err := yaml.Marshal(node)
		if err != nil {
			return fmt.Errorf("failed to render %s: %w", prefix, err)
		}
		// Long flow lists wrap; keep the value on one line.
		fc.add(prefix, strings.Join(strings.Fields(string(data)), " "))
		return nil
	default:
		fc.add(prefix, node.Value)
		return nil
	}
}

func (fc *flatConfig) add(key, value string) {
	fc.keys = append(fc.keys, key)
	fc.values[key] = value
}
