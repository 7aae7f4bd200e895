// Package pipeline turns a raw user utterance into a
// persona-conditioned model response. The pipeline is a strictly
// sequential four-state machine (recall, build prompt, invoke,
// finalize) with failures absorbed at each boundary so a user
// conversation turn never aborts.
package pipeline

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/sentientlabs/companion-sdk/core"
	"github.com/sentientlabs/companion-sdk/memory"
	"github.com/sentientlabs/companion-sdk/persona"
)

// Fallback is the fixed reply returned when the language model
// fails. The user always sees an answer; retrying is left to the
// caller.
const Fallback = "I'm having trouble processing that. Please try again."

// Message roles for the model invocation. Turn roles reuse the core
// values; system is pipeline-only.
const (
	RoleSystem    = "system"
	RoleUser      = string(core.RoleUser)
	RoleAssistant = string(core.RoleAssistant)
)

// Message is one entry in the ordered sequence handed to the
// language model: exactly one system message, the historical turns
// in order, then the new user utterance.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// LanguageModel is the external completion collaborator. Transport
// and quota failures surface as *core.ProviderError; the pipeline
// never retries them.
type LanguageModel interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// PromptBuilder renders a persona config into the system
// instruction. Both persona.PromptBuilder and persona.CachedBuilder
// satisfy it.
type PromptBuilder interface {
	Build(cfg persona.Config) string
}

// state enumerates the pipeline's sequential states. There is no
// branching and no retry within a single invocation.
type state int

const (
	stateRecall state = iota
	stateBuildPrompt
	stateInvoke
	stateFinalize
)

// Engine runs the response state machine. It holds no per-request
// state and is safe for concurrent use.
type Engine struct {
	model        LanguageModel
	builder      PromptBuilder
	historyLimit int
}

// Option configures the engine.
type Option func(*Engine)

// WithHistoryLimit overrides how many recent turns are recalled into
// the prompt. Default: 10.
func WithHistoryLimit(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.historyLimit = n
		}
	}
}

// WithPromptBuilder replaces the default persona.PromptBuilder, for
// example with a persona.CachedBuilder.
func WithPromptBuilder(b PromptBuilder) Option {
	return func(e *Engine) {
		e.builder = b
	}
}

// NewEngine creates an engine for the given language model.
func NewEngine(model LanguageModel, opts ...Option) *Engine {
	e := &Engine{
		model:        model,
		builder:      persona.PromptBuilder{},
		historyLimit: 10,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// TurnResult is the outcome of one pipeline run.
type TurnResult struct {
	// Text is the finalized response, possibly the Fallback.
	Text string

	// ElapsedMs is wall-clock time for the whole run.
	ElapsedMs int64

	// Degraded reports that Text is the fallback because the model
	// invocation failed. A degraded response must not be persisted
	// as a real assistant turn.
	Degraded bool
}

// Respond drives the state machine once. Memory failures during
// recall degrade to an empty history; model failures degrade to the
// fallback text. Respond itself never writes history; persistence
// is the caller's post-transition step, which keeps cancellation
// before Invoke side-effect-free.
func (e *Engine) Respond(ctx context.Context, cfg persona.Config, mem *memory.Manager, utterance string) *TurnResult {
	start := time.Now()

	var (
		history  []core.Turn
		messages []Message
		text     string
		degraded bool
	)

	for st := stateRecall; ; {
		switch st {
		case stateRecall:
			recalled, err := mem.RecentHistory(ctx, e.historyLimit)
			if err != nil {
				log.Printf("[PIPELINE] History recall failed for %s, continuing without: %v", mem.Key(), err)
				recalled = nil
			}
			history = recalled
			st = stateBuildPrompt

		case stateBuildPrompt:
			messages = Assemble(e.builder.Build(cfg), history, utterance)
			st = stateInvoke

		case stateInvoke:
			completion, err := e.model.Complete(ctx, messages)
			if err != nil {
				log.Printf("[PIPELINE] Model invocation failed for %s: %v", mem.Key(), err)
				text = Fallback
				degraded = true
			} else {
				text = completion
			}
			st = stateFinalize

		case stateFinalize:
			return &TurnResult{
				Text:      strings.TrimSpace(text),
				ElapsedMs: time.Since(start).Milliseconds(),
				Degraded:  degraded,
			}
		}
	}
}

// Assemble builds the exact message sequence the model expects: the
// system instruction, the recalled turns oldest first, then the new
// utterance.
func Assemble(system string, history []core.Turn, utterance string) []Message {
	messages := make([]Message, 0, len(history)+2)
	messages = append(messages, Message{Role: RoleSystem, Content: system})
	for _, turn := range history {
		messages = append(messages, Message{Role: string(turn.Role), Content: turn.Content})
	}
	messages = append(messages, Message{Role: RoleUser, Content: utterance})
	return messages
}
