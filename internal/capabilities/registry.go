// Package capabilities maps upstream server families to their discovery
// strategy and fallback limits. Profiles ship as embedded YAML so adding a
// family is a config edit, not a code change.
package capabilities

import (
	"embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed config/*.yaml
var configFiles embed.FS

// Registry holds the provider profiles loaded from the embedded config.
type Registry struct {
	profiles []ProviderProfile
	mu       sync.RWMutex
}

// NewRegistry loads the embedded provider profiles.
func NewRegistry() (*Registry, error) {
	data, err := configFiles.ReadFile("config/providers.yaml")
	if err != nil {
		return nil, fmt.Errorf("failed to read provider profiles: %w", err)
	}

	var profiles Profiles
	if err := yaml.Unmarshal(data, &profiles); err != nil {
		return nil, fmt.Errorf("failed to unmarshal provider profiles: %w", err)
	}
	if len(profiles.Providers) == 0 {
		return nil, fmt.Errorf("provider profile config is empty")
	}

	return &Registry{profiles: profiles.Providers}, nil
}

// Get returns the profile with the given ID.
func (r *Registry) Get(id string) (*ProviderProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := range r.profiles {
		if r.profiles[i].ID == id {
			return &r.profiles[i], nil
		}
	}
	return nil, fmt.Errorf("unknown provider profile: %s", id)
}

// Detect picks the profile for a connection URL by hint substring, in
// declaration order. With no hint match it falls back to the catch-all
// profile (the one declaring no hints), or the last profile.
func (r *Registry) Detect(baseURL string) *ProviderProfile {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lowered := strings.ToLower(baseURL)
	var fallback *ProviderProfile
	for i := range r.profiles {
		p := &r.profiles[i]
		if len(p.BaseURLHints) == 0 && fallback == nil {
			fallback = p
		}
		for _, hint := range p.BaseURLHints {
			if strings.Contains(lowered, hint) {
				return p
			}
		}
	}
	if fallback != nil {
		return fallback
	}
	return &r.profiles[len(r.profiles)-1]
}

// List returns all profiles in declaration order.
func (r *Registry) List() []ProviderProfile {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.profiles
}
