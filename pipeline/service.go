package pipeline

import (
	"context"
	"fmt"
	"log"

	"github.com/sentientlabs/companion-sdk/core"
	"github.com/sentientlabs/companion-sdk/memory"
	"github.com/sentientlabs/companion-sdk/persona"
)

// PersonaProvider is the companion-management collaborator. It
// returns a *core.NotFoundError for unknown companions; the service
// never mutates what it returns.
type PersonaProvider interface {
	Persona(ctx context.Context, companionID string) (persona.Config, error)
}

// ManagerFactory builds the per-key memory manager. The factory is
// expected to hand every call the same shared backends so that
// conversation state is durable across requests and processes.
type ManagerFactory func(key memory.ConversationKey) *memory.Manager

// Service is the caller-facing operation surface consumed by the
// transport layer. Every operation is scoped by a ConversationKey.
type Service struct {
	engine   *Engine
	personas PersonaProvider
	managers ManagerFactory
}

// NewService wires the conversation operations.
func NewService(engine *Engine, personas PersonaProvider, managers ManagerFactory) *Service {
	return &Service{
		engine:   engine,
		personas: personas,
		managers: managers,
	}
}

// SendResult is the reply to one SendMessage call.
type SendResult struct {
	Text      string `json:"text"`
	ElapsedMs int64  `json:"elapsed_ms"`
}

// SendMessage validates the utterance, runs the response pipeline,
// and records the exchange. The user turn and assistant turn are
// appended in that order, only after the pipeline finalized a real
// (non-fallback) response. A reply that was never produced is never
// recorded. A persistence failure after the response exists is
// returned alongside the result rather than rolling it back.
func (s *Service) SendMessage(ctx context.Context, key memory.ConversationKey, utterance string) (*SendResult, error) {
	if err := core.ValidateContent(utterance); err != nil {
		return nil, err
	}

	cfg, err := s.personas.Persona(ctx, key.CompanionID())
	if err != nil {
		return nil, fmt.Errorf("resolve companion: %w", err)
	}

	mem := s.managers(key)
	result := s.engine.Respond(ctx, cfg, mem, utterance)

	reply := &SendResult{Text: result.Text, ElapsedMs: result.ElapsedMs}
	if result.Degraded {
		// The model never produced this text; don't record it.
		log.Printf("[PIPELINE] Degraded response for %s, skipping persistence", key)
		return reply, nil
	}

	if _, err := mem.Append(ctx, core.RoleUser, utterance); err != nil {
		return reply, fmt.Errorf("persist user turn: %w", err)
	}
	if _, err := mem.Append(ctx, core.RoleAssistant, result.Text); err != nil {
		return reply, fmt.Errorf("persist assistant turn: %w", err)
	}
	return reply, nil
}

// GetHistory returns a page of turns plus the total count.
func (s *Service) GetHistory(ctx context.Context, key memory.ConversationKey, limit, offset int) ([]core.Turn, int, error) {
	return s.managers(key).History(ctx, limit, offset)
}

// ClearHistory erases the conversation. Storage failures propagate;
// there is no safe fallback for a clear.
func (s *Service) ClearHistory(ctx context.Context, key memory.ConversationKey) error {
	return s.managers(key).ClearAll(ctx)
}

// GetStatistics reports the conversation's memory statistics.
func (s *Service) GetStatistics(ctx context.Context, key memory.ConversationKey) (memory.Stats, error) {
	return s.managers(key).Statistics(ctx)
}

// Search performs semantic recall over the conversation's past
// turns.
func (s *Service) Search(ctx context.Context, key memory.ConversationKey, query string, k int) ([]string, error) {
	if err := core.ValidateContent(query); err != nil {
		return nil, err
	}
	return s.managers(key).Search(ctx, query, k)
}

// StaticPersonas is a map-backed PersonaProvider for tests, local
// development, and file-driven deployments.
type StaticPersonas map[string]persona.Config

// Persona looks up a companion config by id.
func (p StaticPersonas) Persona(ctx context.Context, companionID string) (persona.Config, error) {
	cfg, ok := p[companionID]
	if !ok {
		return persona.Config{}, &core.NotFoundError{Kind: "companion", ID: companionID}
	}
	return cfg, nil
}
