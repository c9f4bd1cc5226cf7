package capabilities

import "gopkg.in/yaml.v3"

// ProbeKind names the context-size discovery strategy for a provider family.
type ProbeKind string

const (
	// ProbeProps reads llama.cpp's GET /props endpoint.
	ProbeProps ProbeKind = "props"
	// ProbeShow reads Ollama's POST /api/show endpoint.
	ProbeShow ProbeKind = "show"
	// ProbeModels reads the OpenAI-style GET /models listing.
	ProbeModels ProbeKind = "models"
)

// ProviderProfile describes one upstream server family: how to discover its
// loaded model, and what to assume when discovery fails.
type ProviderProfile struct {
	// ID is the profile key (set during YAML unmarshaling).
	ID string `yaml:"-" json:"id"`

	DisplayName string    `yaml:"display_name" json:"display_name"`
	Probe       ProbeKind `yaml:"probe" json:"probe"`

	// DefaultContextWindow is used when no probe can resolve the real size.
	DefaultContextWindow int `yaml:"default_context_window" json:"default_context_window"`

	// ReasoningTags is true for families whose models emit thinking deltas
	// that the stream parser wraps in think tags.
	ReasoningTags bool `yaml:"reasoning_tags" json:"reasoning_tags"`

	// BaseURLHints are substrings that identify this family from a
	// connection URL. An empty list marks the catch-all profile.
	BaseURLHints []string `yaml:"base_url_hints" json:"-"`
}

// Profiles holds every provider profile in declaration order, so URL
// detection tries specific families before the catch-all.
type Profiles struct {
	Providers []ProviderProfile `yaml:"-" json:"providers"`
}

// UnmarshalYAML preserves the providers' order from the YAML file.
func (p *Profiles) UnmarshalYAML(node *yaml.Node) error {
	type providersOnly struct {
		Providers map[string]ProviderProfile `yaml:"providers"`
	}
	var raw providersOnly
	if err := node.Decode(&raw); err != nil {
		return err
	}

	for i := 0; i < len(node.Content); i += 2 {
		if node.Content[i].Value != "providers" {
			continue
		}
		providersNode := node.Content[i+1]
		// providersNode.Content alternates: key, value, key, value...
		for j := 0; j < len(providersNode.Content); j += 2 {
			id := providersNode.Content[j].Value
			if profile, ok := raw.Providers[id]; ok {
				profile.ID = id
				p.Providers = append(p.Providers, profile)
			}
		}
		break
	}

	return nil
}
