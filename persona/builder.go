package persona

import (
	"fmt"
	"strings"
)

// escalationThreshold is the trait level at which the companion is
// told to acknowledge its own repetition instead of just avoiding it.
const escalationThreshold = 4

// PromptBuilder renders a Config into a system instruction. Build is
// a pure function: identical configs always produce byte-identical
// output, which is what makes prompt caching sound.
type PromptBuilder struct{}

// Build assembles the persona instruction: identity, appearance, and
// interaction style (empty fragments omitted), the four trait
// scales, and the anti-repetition clause, escalated to a playful
// call-out when humor or sarcasm is high. High moderation scales add
// a strictness clause for the corresponding categories.
func (PromptBuilder) Build(cfg Config) string {
	var b strings.Builder

	identity := cfg.Identity
	if identity == "" {
		identity = "an AI character"
	}
	fmt.Fprintf(&b, "You are %s.", identity)

	if cfg.Appearance != "" {
		fmt.Fprintf(&b, " Appearance: %s.", cfg.Appearance)
	}

	style := cfg.InteractionStyle
	if style == "" {
		style = "friendly"
	}
	fmt.Fprintf(&b, " Style: %s.", style)

	t := cfg.Traits
	fmt.Fprintf(&b, " Traits - Humor: %d/5, Empathy: %d/5, Assertiveness: %d/5, Sarcasm: %d/5.",
		t.Humor, t.Empathy, t.Assertiveness, t.Sarcasm)

	b.WriteString(" Avoid repeating yourself verbatim.")
	if t.Humor >= escalationThreshold || t.Sarcasm >= escalationThreshold {
		b.WriteString(" If you notice yourself repeating, call out the repetition playfully.")
	}

	if strict := strictCategories(cfg.Moderation); len(strict) > 0 {
		fmt.Fprintf(&b, " Be especially strict about %s content: decline and redirect when a message crosses that line.",
			strings.Join(strict, ", "))
	}

	return b.String()
}

// strictCategories lists moderation categories at or above the
// escalation threshold, in a fixed order so output stays stable.
func strictCategories(m Moderation) []string {
	var strict []string
	for _, c := range []struct {
		name  string
		value int
	}{
		{"hateful", m.Hate},
		{"harassing", m.Harassment},
		{"violent", m.Violence},
		{"self-harm", m.SelfHarm},
		{"sexual", m.Sexual},
	} {
		if c.value >= escalationThreshold {
			strict = append(strict, c.name)
		}
	}
	return strict
}
