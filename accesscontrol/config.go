// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package accesscontrol

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the on-disk shape of the policy file (spec.md §6.1):
// the default-policy fallback and an ordered rule chain.
type Config struct {
	AccessPolicy Policy `yaml:"access-policy"`
	Rules        []Rule `yaml:"rules"`
}

// LoadConfig parses a policy file from path. Loading the file itself is
// the caller's concern in the general case (spec.md §1's non-goals);
// this helper exists because every caller in this repository — the
// demo CLI's validate, check and serve commands — needs the same
// parse-then-validate step.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: unable to read policy file %q: %v", ErrInvalidConfig, path, err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes raw YAML policy-file bytes into a Config.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if cfg.AccessPolicy == "" {
		cfg.AccessPolicy = Disabled
	}
	return &cfg, nil
}

// Initialize compiles every rule's Rego program, failing fast if any
// source cannot be fetched or fails to compile (spec.md §3's
// Controller lifecycle).
func (c *Config) Initialize(ctx context.Context) error {
	for i := range c.Rules {
		if c.Rules[i].RegoExpression == nil {
			continue
		}
		if err := c.Rules[i].RegoExpression.Initialize(ctx); err != nil {
			return fmt.Errorf("rule #%d: %w", i+1, err)
		}
	}
	return nil
}
