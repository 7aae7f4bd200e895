// Package persona renders a companion's configuration into the
// system instruction that conditions every model invocation. The
// pipeline only reads persona configuration; it is owned and
// mutated by the companion-management layer.
package persona

import "github.com/sentientlabs/companion-sdk/core"

// Traits are the four character scales, each 1..5.
type Traits struct {
	Humor         int `json:"humor"`
	Empathy       int `json:"empathy"`
	Assertiveness int `json:"assertiveness"`
	Sarcasm       int `json:"sarcasm"`
}

// Moderation holds the five content-sensitivity scales, each 1..5.
// Higher values make the companion stricter about that category.
type Moderation struct {
	Hate       int `json:"hate"`
	Harassment int `json:"harassment"`
	Violence   int `json:"violence"`
	SelfHarm   int `json:"self_harm"`
	Sexual     int `json:"sexual"`
}

// Config is a read-only snapshot of one companion's character.
type Config struct {
	Name             string     `json:"name"`
	Identity         string     `json:"identity"`
	Appearance       string     `json:"appearance"`
	InteractionStyle string     `json:"interaction_style"`
	Traits           Traits     `json:"traits"`
	Moderation       Moderation `json:"moderation"`
}

// Validate checks every scale is within 1..5.
func (c *Config) Validate() error {
	scales := []struct {
		name  string
		value int
	}{
		{"humor", c.Traits.Humor},
		{"empathy", c.Traits.Empathy},
		{"assertiveness", c.Traits.Assertiveness},
		{"sarcasm", c.Traits.Sarcasm},
		{"hate moderation", c.Moderation.Hate},
		{"harassment moderation", c.Moderation.Harassment},
		{"violence moderation", c.Moderation.Violence},
		{"self-harm moderation", c.Moderation.SelfHarm},
		{"sexual moderation", c.Moderation.Sexual},
	}
	for _, s := range scales {
		if s.value < 1 || s.value > 5 {
			return &core.ValidationError{Field: s.name, Reason: "scale must be within 1..5"}
		}
	}
	return nil
}

// DefaultTraits returns the neutral midpoint used when a companion
// has no explicit configuration.
func DefaultTraits() Traits {
	return Traits{Humor: 3, Empathy: 3, Assertiveness: 3, Sarcasm: 3}
}

// DefaultModeration returns the neutral midpoint moderation scales.
func DefaultModeration() Moderation {
	return Moderation{Hate: 3, Harassment: 3, Violence: 3, SelfHarm: 3, Sexual: 3}
}
