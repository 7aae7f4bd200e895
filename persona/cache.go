package persona

import (
	"fmt"
	"hash/fnv"

	"github.com/dgraph-io/ristretto"
)

// CachedBuilder wraps PromptBuilder with a ristretto cache. Build's
// output is stable for identical input, so a hit is always safe to
// serve. Useful when the same companion config is rendered on every
// turn of a busy conversation.
type CachedBuilder struct {
	builder PromptBuilder
	cache   *ristretto.Cache
}

// NewCachedBuilder creates a builder with a small admission-managed
// cache sized for prompt strings.
func NewCachedBuilder() (*CachedBuilder, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10_000,
		MaxCost:     1 << 20, // total cached prompt bytes
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create prompt cache: %w", err)
	}
	return &CachedBuilder{cache: cache}, nil
}

// Build returns the rendered prompt, from cache when possible.
func (cb *CachedBuilder) Build(cfg Config) string {
	key := configKey(cfg)
	if v, ok := cb.cache.Get(key); ok {
		if prompt, ok := v.(string); ok {
			return prompt
		}
	}

	prompt := cb.builder.Build(cfg)
	cb.cache.Set(key, prompt, int64(len(prompt)))
	return prompt
}

// configKey hashes every field that influences Build output.
func configKey(cfg Config) uint64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s\x00%s\x00%s\x00%s\x00%d%d%d%d\x00%d%d%d%d%d",
		cfg.Name, cfg.Identity, cfg.Appearance, cfg.InteractionStyle,
		cfg.Traits.Humor, cfg.Traits.Empathy, cfg.Traits.Assertiveness, cfg.Traits.Sarcasm,
		cfg.Moderation.Hate, cfg.Moderation.Harassment, cfg.Moderation.Violence,
		cfg.Moderation.SelfHarm, cfg.Moderation.Sexual)
	return h.Sum64()
}
