// Copyright 2019 Gareth Watts
// Licensed under an MIT license
// See the LICENSE file for details

package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/gwatts/dynashift/dynashift"
	yaml "gopkg.in/yaml.v3"
)

// endpointConfig describes one side of a migration.
type endpointConfig struct {
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
}

type mappingConfig struct {
	Source      string `yaml:"source"`
	Destination string `yaml:"destination"`
}

// runConfig defines a complete migration run: the two endpoints and
// the table mappings to copy between them.
type runConfig struct {
	Source endpointConfig  `yaml:"source"`
	Target endpointConfig  `yaml:"target"`
	Tables []mappingConfig `yaml:"tables"`
}

// loadRunConfig reads and validates a YAML run definition.  Validation
// failures name the missing key so a bad file is rejected before any
// client is constructed.
func loadRunConfig(path string) (*runConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg runConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

func (c *runConfig) validate() error {
	switch {
	case c.Source.Endpoint == "":
		return errors.New(`missing required key "source.endpoint"`)
	case c.Source.Region == "":
		return errors.New(`missing required key "source.region"`)
	case c.Target.Endpoint == "":
		return errors.New(`missing required key "target.endpoint"`)
	case len(c.Tables) == 0:
		return errors.New(`missing required section "tables"`)
	}
	for i, m := range c.Tables {
		if m.Source == "" || m.Destination == "" {
			return fmt.Errorf("table mapping %d must set both source and destination", i)
		}
	}
	return nil
}

func (c *runConfig) mappings() []dynashift.TableMapping {
	out := make([]dynashift.TableMapping, 0, len(c.Tables))
	for _, m := range c.Tables {
		out = append(out, dynashift.TableMapping{Source: m.Source, Target: m.Destination})
	}
	return out
}
