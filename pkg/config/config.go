// Package config loads the YAML document that describes a Service: its
// pipelines, connections and lookups, each naming a registered stage type
// plus a bag of options. It follows the same default-merge convention as
// `original_source/bspump`'s `asab.ConfigObject` (a stage's declared
// Defaults, overridden key-by-key by whatever the document supplies)
// instead of unmarshalling straight into typed per-connector structs, so
// adding a connector never requires touching this package.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// StageConfig is the generic shape every concrete Source, Processor, Sink,
// Connection or Lookup constructor receives: an id, a registered type name,
// and free-form options. Options are strings because YAML documents and
// environment-driven overrides are both naturally string-shaped; a
// constructor that needs a number or duration parses it itself, the same
// way `original_source/bspump` constructors call `self.Config["count"]`
// and convert it.
type StageConfig struct {
	Id      string            `yaml:"id"`
	Type    string            `yaml:"type"`
	Options map[string]string `yaml:"options,omitempty"`
}

// Merge returns defaults overridden key-by-key by override, the Go
// realization of asab.ConfigObject's `Config = dict(Defaults);
// Config.update(provided)`.
func Merge(defaults, override map[string]string) map[string]string {
	out := make(map[string]string, len(defaults)+len(override))
	for k, v := range defaults {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}

// PipelineConfig describes one pipeline: its sources and its processor
// chain in build order (Build splits the chain into depth-levels itself
// whenever it walks a Generator, so the document lists stages flat).
type PipelineConfig struct {
	Id         string        `yaml:"id"`
	Sources    []StageConfig `yaml:"sources"`
	Processors []StageConfig `yaml:"processors"`
}

// ServiceConfig is the root document: every pipeline, connection and
// lookup a Service should be populated with.
type ServiceConfig struct {
	Pipelines   []PipelineConfig `yaml:"pipelines"`
	Connections []StageConfig    `yaml:"connections"`
	Lookups     []StageConfig    `yaml:"lookups"`
}

// Load reads and parses a ServiceConfig from path.
func Load(path string) (*ServiceConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals a ServiceConfig document and validates it.
func Parse(data []byte) (*ServiceConfig, error) {
	var c ServiceConfig
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks structural requirements Build-time registry lookups
// can't catch earlier: every pipeline needs an id and at least one source
// and one processor (the last of which must end up being a Sink, but that
// is only knowable once the registry resolves the type name, so it is left
// to pipeline.Build).
func (c *ServiceConfig) Validate() error {
	seen := make(map[string]bool, len(c.Pipelines))
	for _, p := range c.Pipelines {
		if p.Id == "" {
			return fmt.Errorf("config: pipeline missing id")
		}
		if seen[p.Id] {
			return fmt.Errorf("config: duplicate pipeline id %q", p.Id)
		}
		seen[p.Id] = true
		if len(p.Sources) == 0 {
			return fmt.Errorf("config: pipeline %q has no sources", p.Id)
		}
		if len(p.Processors) == 0 {
			return fmt.Errorf("config: pipeline %q has no processors", p.Id)
		}
	}
	return nil
}
