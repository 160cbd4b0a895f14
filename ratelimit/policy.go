// Copyright 2026 MarketLens
// SPDX-License-Identifier: Apache-2.0

package ratelimit

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Rule is the throttle budget for one endpoint: maxAttempts per window.
type Rule struct {
	MaxAttempts   int64 `yaml:"max_attempts" json:"max_attempts"`
	WindowSeconds int   `yaml:"window_seconds" json:"window_seconds"`
}

// Window returns the rule's window as a duration
func (r Rule) Window() time.Duration {
	return time.Duration(r.WindowSeconds) * time.Second
}

// Policy maps endpoint names to throttle rules, with a default applied to
// endpoints that have no explicit rule.
type Policy struct {
	Default   Rule            `yaml:"default" json:"default"`
	Endpoints map[string]Rule `yaml:"endpoints" json:"endpoints"`
}

// DefaultPolicy returns the policy used when no config file is supplied:
// 60 attempts per minute for every endpoint.
func DefaultPolicy() *Policy {
	return &Policy{
		Default: Rule{MaxAttempts: 60, WindowSeconds: 60},
	}
}

// LoadPolicy reads and validates a YAML throttle policy file:
//
//	default:
//	  max_attempts: 60
//	  window_seconds: 60
//	endpoints:
//	  analysis.create:
//	    max_attempts: 10
//	    window_seconds: 300
func LoadPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}

	var policy Policy
	if err := yaml.Unmarshal(data, &policy); err != nil {
		return nil, fmt.Errorf("failed to parse policy file: %w", err)
	}

	if err := policy.Validate(); err != nil {
		return nil, err
	}

	return &policy, nil
}

// Validate checks that every rule has a positive budget and window
func (p *Policy) Validate() error {
	if err := validateRule("default", p.Default); err != nil {
		return err
	}
	for endpoint, rule := range p.Endpoints {
		if err := validateRule(endpoint, rule); err != nil {
			return err
		}
	}
	return nil
}

// RuleFor returns the rule for an endpoint, falling back to the default
func (p *Policy) RuleFor(endpoint string) Rule {
	if rule, ok := p.Endpoints[endpoint]; ok {
		return rule
	}
	return p.Default
}

func validateRule(endpoint string, rule Rule) error {
	if rule.MaxAttempts <= 0 {
		return fmt.Errorf("policy rule %q: max_attempts must be greater than 0", endpoint)
	}
	if rule.WindowSeconds <= 0 {
		return fmt.Errorf("policy rule %q: window_seconds must be greater than 0", endpoint)
	}
	return nil
}
