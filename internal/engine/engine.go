// Package engine wraps text generation behind a small client interface so
// the retrieval and chat layers never touch the model runtime directly.
package engine

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/caduceus-ai/caduceus/internal/config"
	"github.com/caduceus-ai/caduceus/internal/log"
)

// Request carries one generation call. The prompt is fully composed by the
// caller; the engine adds nothing to it.
type Request struct {
	Prompt        string
	Temperature   float32
	MaxTokens     int
	StopSequences []string
}

// Completion is the result of a generation call.
type Completion struct {
	Text             string
	FinishReason     string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Client generates a completion for a composed prompt.
type Client interface {
	Complete(ctx context.Context, req Request) (*Completion, error)
}

// GenkitClient runs generation through an initialized Genkit instance.
type GenkitClient struct {
	g      *genkit.Genkit
	model  string
	logger log.Logger
}

// NewGenkitClient builds a client bound to the configured provider and model.
// The model name is qualified with the provider prefix Genkit expects, for
// example "googleai/gemini-2.5-flash".
func NewGenkitClient(g *genkit.Genkit, cfg *config.Config, logger log.Logger) (*GenkitClient, error) {
	model, err := QualifiedModelName(cfg.Provider, cfg.ModelName)
	if err != nil {
		return nil, err
	}
	return &GenkitClient{g: g, model: model, logger: logger}, nil
}

// QualifiedModelName maps a provider and bare model name to the
// provider-prefixed form used for model lookup.
func QualifiedModelName(provider, model string) (string, error) {
	switch provider {
	case config.ProviderGemini:
		return "googleai/" + model, nil
	case config.ProviderOllama:
		return "ollama/" + model, nil
	default:
		return "", fmt.Errorf("qualify model name: %w: %s", config.ErrInvalidProvider, provider)
	}
}

// Complete sends the prompt to the model and returns the completion text
// together with usage accounting when the provider reports it.
func (c *GenkitClient) Complete(ctx context.Context, req Request) (*Completion, error) {
	opts := []ai.GenerateOption{
		ai.WithModelName(c.model),
		ai.WithPrompt(req.Prompt),
		ai.WithConfig(&ai.GenerationCommonConfig{
			Temperature:     float64(req.Temperature),
			MaxOutputTokens: req.MaxTokens,
			StopSequences:   req.StopSequences,
		}),
	}

	resp, err := genkit.Generate(ctx, c.g, opts...)
	if err != nil {
		return nil, fmt.Errorf("generate completion: %w", err)
	}

	out := &Completion{
		Text:         resp.Text(),
		FinishReason: string(resp.FinishReason),
	}
	if resp.Usage != nil {
		out.PromptTokens = resp.Usage.InputTokens
		out.CompletionTokens = resp.Usage.OutputTokens
		out.TotalTokens = resp.Usage.TotalTokens
	}

	c.logger.Debug("completion finished",
		"model", c.model,
		"finish_reason", out.FinishReason,
		"total_tokens", out.TotalTokens)

	return out, nil
}
