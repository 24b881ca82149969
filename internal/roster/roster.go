// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package roster reads the list of subject names to harvest.
package roster

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v3"
)

// rosterFile is the YAML document form: a mapping with a subjects key.
type rosterFile struct {
	Subjects []string `yaml:"subjects"`
}

// Load reads subject names from path. Files ending in .yaml or .yml hold
// either a top-level list or a mapping with a subjects key; any other file
// holds one name per line, with blank lines and # comments ignored. Names are
// trimmed but otherwise kept as written.
func Load(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading roster: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		names, err := parseYAML(data)
		if err != nil {
			return nil, fmt.Errorf("parsing roster %s: %w", path, err)
		}
		return names, nil
	default:
		return parseLines(data)
	}
}

func parseYAML(data []byte) ([]string, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, err
	}
	if len(node.Content) == 0 {
		return nil, nil
	}

	var raw []string
	switch doc := node.Content[0]; doc.Kind {
	case yaml.SequenceNode:
		if err := doc.Decode(&raw); err != nil {
			return nil, err
		}
	case yaml.MappingNode:
		var rf rosterFile
		if err := doc.Decode(&rf); err != nil {
			return nil, err
		}
		raw = rf.Subjects
	default:
		return nil, fmt.Errorf("expected a list of names or a subjects key")
	}
	return clean(raw), nil
}

func parseLines(data []byte) ([]string, error) {
	var names []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		names = append(names, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading roster: %w", err)
	}
	return names, nil
}

func clean(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, n := range raw {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// Collect gathers subjects from command-line arguments, then the roster
// file (if any), then the configured list, in that order. Duplicates are
// left in place; the harvest deduplicates.
func Collect(args []string, file string, configured []string) ([]string, error) {
	names := clean(args)
	if file != "" {
		fromFile, err := Load(file)
		if err != nil {
			return nil, err
		}
		names = append(names, fromFile...)
	}
	names = append(names, clean(configured)...)
	return names, nil
}
