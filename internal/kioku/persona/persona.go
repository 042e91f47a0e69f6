// Package persona loads the agent's identity and tone from a YAML file.
package persona

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Persona describes who the agent represents in chat.
type Persona struct {
	// Name is the person the agent speaks as. Used in the system prompt and
	// to detect when a message addresses the agent by name.
	Name string `yaml:"name"`

	// DisplayName is the agent's chat display name. Defaults to Name.
	DisplayName string `yaml:"displayName,omitempty"`

	// Qualities are short traits woven into the system prompt.
	Qualities []string `yaml:"qualities,omitempty"`

	// Temperature controls reply randomness. Valid range: 0.0–2.0. Nil means
	// the provider default.
	Temperature *float64 `yaml:"temperature,omitempty"`

	// ReplyMaxTokens caps reply length. Zero means 400.
	ReplyMaxTokens int `yaml:"replyMaxTokens,omitempty"`
}

// Default is used when no persona file is configured.
func Default() *Persona {
	return &Persona{
		Name:           "Kioku",
		DisplayName:    "Kioku",
		Qualities:      []string{"friendly", "curious", "remembers what people tell it", "concise"},
		ReplyMaxTokens: 400,
	}
}

// Parse decodes a persona YAML document and validates it.
func Parse(data []byte) (*Persona, error) {
	var p Persona
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("persona parse: %w", err)
	}
	if err := Validate(&p); err != nil {
		return nil, fmt.Errorf("persona: %w", err)
	}
	if p.DisplayName == "" {
		p.DisplayName = p.Name
	}
	if p.ReplyMaxTokens == 0 {
		p.ReplyMaxTokens = 400
	}
	return &p, nil
}

// Load reads and parses the persona at path. An empty path yields Default.
func Load(path string) (*Persona, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("persona: read %s: %w", path, err)
	}
	return Parse(data)
}

// Validate checks a Persona for structural correctness.
func Validate(p *Persona) error {
	if p == nil {
		return fmt.Errorf("persona must not be nil")
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("name must not be empty")
	}
	if strings.ContainsAny(p.Name, "\n\r") {
		return fmt.Errorf("name must be a single line")
	}
	for i, q := range p.Qualities {
		if strings.TrimSpace(q) == "" {
			return fmt.Errorf("qualities[%d] must not be empty", i)
		}
	}
	if p.Temperature != nil && (*p.Temperature < 0 || *p.Temperature > 2) {
		return fmt.Errorf("temperature must be within 0.0–2.0, got %v", *p.Temperature)
	}
	if p.ReplyMaxTokens < 0 {
		return fmt.Errorf("replyMaxTokens must not be negative")
	}
	return nil
}

// QualityList renders the qualities as a comma-separated list.
func (p *Persona) QualityList() string {
	return strings.Join(p.Qualities, ", ")
}

// TemperatureOr returns the configured temperature or def.
func (p *Persona) TemperatureOr(def float64) float64 {
	if p.Temperature == nil {
		return def
	}
	return *p.Temperature
}
