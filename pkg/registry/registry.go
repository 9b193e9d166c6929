// pkg/registry/registry.go
package registry

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

var validTiers = map[string]bool{"high": true, "medium": true, "low": true}

var validKinds = map[string]bool{"": true, "web_search": true, "search_index": true, "knowledge_base": true}

// LoadRegistry reads and validates a YAML source registry.
func LoadRegistry(path string) (*SourceRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes a registry document. Unknown keys are rejected.
func Parse(data []byte) (*SourceRegistry, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var reg SourceRegistry
	if err := dec.Decode(&reg); err != nil {
		return nil, fmt.Errorf("decode registry: %w", err)
	}
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	return &reg, nil
}

// Validate checks tiers and kinds, and that every region default names a
// source registered in that region.
func (r *SourceRegistry) Validate() error {
	for i, s := range r.Sources {
		if strings.TrimSpace(s.Name) == "" {
			return fmt.Errorf("sources[%d]: name is required", i)
		}
		if s.BaseURL == "" {
			return fmt.Errorf("source %q: base_url is required", s.Name)
		}
		if !validTiers[s.Tier] {
			return fmt.Errorf("source %q: invalid tier %q", s.Name, s.Tier)
		}
		if !validKinds[s.Kind] {
			return fmt.Errorf("source %q: invalid kind %q", s.Name, s.Kind)
		}
		if s.Region == "" {
			return fmt.Errorf("source %q: region is required", s.Name)
		}
	}

	seen := make(map[string]bool, len(r.Regions))
	for _, region := range r.Regions {
		code := strings.ToUpper(region.Code)
		if seen[code] {
			return fmt.Errorf("region %q declared twice", region.Code)
		}
		seen[code] = true

		if region.DefaultSource == "" {
			continue
		}
		if _, ok := r.Find(region.Code, region.DefaultSource); !ok {
			return fmt.Errorf("region %q: default source %q is not registered in it", region.Code, region.DefaultSource)
		}
	}
	return nil
}

// Find returns the source called name in region.
func (r *SourceRegistry) Find(region, name string) (SourceEntry, bool) {
	for _, s := range r.Sources {
		if s.Name == name && strings.EqualFold(s.Region, region) {
			return s, true
		}
	}
	return SourceEntry{}, false
}
