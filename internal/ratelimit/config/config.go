// Package config loads the rate limit policy table.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"grievance/internal/ratelimit/models"
)

//go:embed policies.yaml
var defaultPolicies []byte

// Policies maps a policy name to its definition.
type Policies map[string]models.Policy

// Default returns the embedded policy table.
func Default() (Policies, error) {
	return Parse(defaultPolicies)
}

// Load reads path when set and falls back to the embedded table otherwise.
// Policies in the file replace embedded ones of the same name.
func Load(path string) (Policies, error) {
	policies, err := Default()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return policies, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rate limit policies: %w", err)
	}
	overrides, err := Parse(data)
	if err != nil {
		return nil, err
	}
	for name, p := range overrides {
		policies[name] = p
	}
	return policies, nil
}

// Parse decodes a YAML policy document and validates every policy.
func Parse(data []byte) (Policies, error) {
	var raw map[string][]models.Limit
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse rate limit policies: %w", err)
	}
	out := make(Policies, len(raw))
	for name, limits := range raw {
		p := models.Policy{Name: name, Limits: limits}
		if err := p.Validate(); err != nil {
			return nil, err
		}
		out[name] = p
	}
	return out, nil
}

// Names returns the policy names in lexical order.
func (p Policies) Names() []string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
