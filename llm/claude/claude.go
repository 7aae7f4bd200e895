// Package claude adapts the Anthropic Messages API to the
// pipeline's LanguageModel contract.
package claude

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/sentientlabs/companion-sdk/core"
	"github.com/sentientlabs/companion-sdk/memory"
	"github.com/sentientlabs/companion-sdk/pipeline"
)

// Config configures the model client.
type Config struct {
	// APIKey is the Anthropic API key.
	APIKey string

	// Model is the model name. Default: memory.DefaultModel.
	Model string

	// MaxTokens caps response length. Default: 1024.
	MaxTokens int64
}

// Model invokes Claude with the pipeline's assembled message
// sequence. It performs no retries; transport and quota failures
// surface as *core.ProviderError and the pipeline degrades to its
// fallback reply.
type Model struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// New creates a Claude-backed language model.
func New(cfg Config) *Model {
	model := cfg.Model
	if model == "" {
		model = memory.DefaultModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1024
	}
	return &Model{
		client:    anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:     model,
		maxTokens: maxTokens,
	}
}

// Complete sends the ordered messages and returns the text reply.
// The first message must be the system instruction; the rest
// alternate user and assistant turns.
func (m *Model) Complete(ctx context.Context, messages []pipeline.Message) (string, error) {
	var system string
	params := make([]anthropic.MessageParam, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case pipeline.RoleSystem:
			system = msg.Content
		case pipeline.RoleUser:
			params = append(params, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		case pipeline.RoleAssistant:
			params = append(params, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			return "", &core.ValidationError{Field: "role", Reason: "unrecognized message role " + msg.Role}
		}
	}

	req := anthropic.MessageNewParams{
		Model:     anthropic.Model(m.model),
		MaxTokens: m.maxTokens,
		Messages:  params,
	}
	if system != "" {
		req.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := m.client.Messages.New(ctx, req)
	if err != nil {
		return "", &core.ProviderError{Op: "messages.new", Err: err}
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	if text == "" {
		return "", &core.ProviderError{Op: "messages.new", Err: fmt.Errorf("response contained no text")}
	}
	return text, nil
}
