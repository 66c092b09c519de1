// Package config loads the QA configuration document and the runtime
// settings of qacheck.
//
// The QA document declares pattern groups and steps:
//
//	patterns:
//	  profiles: resources/**/*.xml
//	  python: ["**/*.py", "scripts/*"]
//	steps:
//	  validate:
//	    patterns: profiles
//	    profile: nl-core
//	  lint:
//	    patterns: [python]
//	    script: pylint
//
// Declaration order is significant (earlier groups claim contested files
// first), so the document is walked as a yaml.Node rather than decoded into
// Go maps.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// PatternGroup is a named set of glob expressions.
type PatternGroup struct {
	Name  string
	Globs []string
}

// Step maps pattern groups to exactly one validation action.
type Step struct {
	Name string

	// Patterns lists the names of the pattern groups whose resolved files are
	// the input of this step.
	Patterns []string

	// Profile selects a validator invocation. Mutually exclusive with Script.
	Profile string

	// Script is a shell command line; resolved files are appended to it.
	Script string
}

// IsValidator reports whether the step runs the structured validator.
func (s Step) IsValidator() bool { return s.Profile != "" }

// Config is the parsed QA document.
type Config struct {
	Patterns []PatternGroup
	Steps    []Step
}

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Load reads and validates the QA document at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes and validates a QA document.
func Parse(data []byte) (*Config, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	cfg := &Config{Patterns: doc.Patterns, Steps: doc.Steps}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that names are unique, that globs stay inside the project
// root, that every step has exactly one action and that steps only reference
// declared pattern groups.
func (c *Config) Validate() error {
	groups := make(map[string]bool, len(c.Patterns))
	for _, g := range c.Patterns {
		if g.Name == "" {
			return fmt.Errorf("%w: pattern group with empty name", ErrInvalidConfig)
		}
		if groups[g.Name] {
			return fmt.Errorf("%w: pattern group %q declared twice", ErrInvalidConfig, g.Name)
		}
		groups[g.Name] = true
		for _, glob := range g.Globs {
			if err := checkGlob(glob); err != nil {
				return fmt.Errorf("%w: pattern group %q: %v", ErrInvalidConfig, g.Name, err)
			}
		}
	}

	steps := make(map[string]bool, len(c.Steps))
	for _, s := range c.Steps {
		if s.Name == "" {
			return fmt.Errorf("%w: step with empty name", ErrInvalidConfig)
		}
		if steps[s.Name] {
			return fmt.Errorf("%w: step %q declared twice", ErrInvalidConfig, s.Name)
		}
		steps[s.Name] = true

		switch {
		case s.Profile != "" && s.Script != "":
			return fmt.Errorf("%w: step %q sets both profile and script", ErrInvalidConfig, s.Name)
		case s.Profile == "" && s.Script == "":
			return fmt.Errorf("%w: step %q needs a profile or a script", ErrInvalidConfig, s.Name)
		}
		for _, p := range s.Patterns {
			if !groups[p] {
				return fmt.Errorf("%w: step %q references unknown pattern group %q", ErrInvalidConfig, s.Name, p)
			}
		}
	}
	return nil
}

// checkGlob rejects globs that could only match outside the project root.
func checkGlob(glob string) error {
	if glob == "" {
		return errors.New("empty glob")
	}
	if strings.HasPrefix(glob, "/") || filepath.IsAbs(glob) {
		return fmt.Errorf("glob %q is absolute; globs are relative to the project root", glob)
	}
	for _, seg := range strings.Split(filepath.ToSlash(glob), "/") {
		if seg == ".." {
			return fmt.Errorf("glob %q leaves the project root", glob)
		}
	}
	return nil
}

// Step returns the step with the given name.
func (c *Config) Step(name string) (Step, bool) {
	for _, s := range c.Steps {
		if s.Name == name {
			return s, true
		}
	}
	return Step{}, false
}

// StepNames returns all step names in declaration order.
func (c *Config) StepNames() []string {
	names := make([]string, 0, len(c.Steps))
	for _, s := range c.Steps {
		names = append(names, s.Name)
	}
	return names
}

// ---------------------------------------------------------------------------
// YAML decoding
// ---------------------------------------------------------------------------

type document struct {
	Patterns patternList `yaml:"patterns"`
	Steps    stepList    `yaml:"steps"`
}

// stringList accepts either a single string or a list of strings.
type stringList []string

func (l *stringList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		if value.Tag == "!!null" {
			*l = nil
			return nil
		}
		*l = stringList{value.Value}
		return nil
	case yaml.SequenceNode:
		items := make([]string, 0, len(value.Content))
		for _, item := range value.Content {
			if item.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: expected a string", item.Line)
			}
			items = append(items, item.Value)
		}
		*l = items
		return nil
	default:
		return fmt.Errorf("line %d: expected a string or a list of strings", value.Line)
	}
}

type patternList []PatternGroup

func (p *patternList) UnmarshalYAML(value *yaml.Node) error {
	return eachPair(value, func(key string, node *yaml.Node) error {
		var globs stringList
		if err := node.Decode(&globs); err != nil {
			return fmt.Errorf("pattern group %q: %w", key, err)
		}
		*p = append(*p, PatternGroup{Name: key, Globs: globs})
		return nil
	})
}

type stepNode struct {
	Patterns stringList `yaml:"patterns"`
	Profile  string     `yaml:"profile"`
	Script   string     `yaml:"script"`
}

type stepList []Step

func (s *stepList) UnmarshalYAML(value *yaml.Node) error {
	return eachPair(value, func(key string, node *yaml.Node) error {
		var raw stepNode
		if err := node.Decode(&raw); err != nil {
			return fmt.Errorf("step %q: %w", key, err)
		}
		*s = append(*s, Step{
			Name:     key,
			Patterns: raw.Patterns,
			Profile:  raw.Profile,
			Script:   raw.Script,
		})
		return nil
	})
}

// eachPair walks a mapping node in document order. A null node is treated
// as an empty mapping.
func eachPair(value *yaml.Node, fn func(key string, node *yaml.Node) error) error {
	if value.Kind == yaml.ScalarNode && value.Tag == "!!null" {
		return nil
	}
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping", value.Line)
	}
	for i := 0; i+1 < len(value.Content); i += 2 {
		if err := fn(value.Content[i].Value, value.Content[i+1]); err != nil {
			return err
		}
	}
	return nil
}
