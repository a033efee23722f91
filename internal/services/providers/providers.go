// Package providers issues the actual upstream LLM calls. Each provider kind
// has its own SDK surface; clients are cached per config hash behind
// singleflight so concurrent requests share one client.
package providers

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"github.com/praxislearn/curricula/internal/models"
	"github.com/praxislearn/curricula/internal/services/prompts"
	"github.com/praxislearn/curricula/internal/services/registry"

	fiberlog "github.com/gofiber/fiber/v2/log"
)

const defaultMaxTokens = 2048

// Invoker dispatches one generation call to a provider descriptor.
type Invoker struct {
	openai    *openAIInvoker
	gemini    *geminiInvoker
	anthropic *anthropicInvoker
}

// NewInvoker creates the provider call layer.
func NewInvoker() *Invoker {
	return &Invoker{
		openai:    newOpenAIInvoker(),
		gemini:    newGeminiInvoker(),
		anthropic: newAnthropicInvoker(),
	}
}

// Invoke calls the provider and returns the generation. Errors are wrapped as
// provider errors so the orchestrator can keep failing over.
func (inv *Invoker) Invoke(ctx context.Context, desc registry.Descriptor, prompt prompts.Prompt, requestID string) (*models.Generation, error) {
	if desc.TimeoutMs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(desc.TimeoutMs)*time.Millisecond)
		defer cancel()
	}

	start := time.Now()
	fiberlog.Infof("[%s] invoking %s/%s", requestID, desc.Name, desc.Model)

	var (
		gen *models.Generation
		err error
	)
	switch desc.Kind {
	case models.ProviderKindOpenAI:
		gen, err = inv.openai.generate(ctx, desc, prompt)
	case models.ProviderKindGemini:
		gen, err = inv.gemini.generate(ctx, desc, prompt)
	case models.ProviderKindAnthropic:
		gen, err = inv.anthropic.generate(ctx, desc, prompt)
	default:
		return nil, models.NewInternalError(fmt.Sprintf("unknown provider kind %q", desc.Kind), nil)
	}

	duration := time.Since(start)
	if err != nil {
		fiberlog.Warnf("[%s] %s/%s failed after %v: %v", requestID, desc.Name, desc.Model, duration, err)
		return nil, err
	}
	if gen.Text == "" {
		fiberlog.Warnf("[%s] %s/%s returned an empty completion after %v", requestID, desc.Name, desc.Model, duration)
		return nil, models.NewProviderError(desc.Name, "empty completion", nil)
	}

	gen.Latency = duration
	fiberlog.Infof("[%s] %s/%s completed in %v (prompt=%d, completion=%d tokens)",
		requestID, desc.Name, desc.Model, duration, gen.Usage.PromptTokens, gen.Usage.CompletionTokens)
	return gen, nil
}

// configHash keys the client cache on the connection-relevant parts of the
// descriptor, hashing the API key instead of embedding it.
func configHash(desc registry.Descriptor) (string, error) {
	type hashable struct {
		Name       string
		BaseURL    string
		TimeoutMs  int
		Headers    map[string]string
		APIKeyHash string
	}

	apiKeyHash := sha256.Sum256([]byte(desc.APIKey))
	data, err := json.Marshal(hashable{
		Name:       desc.Name,
		BaseURL:    desc.BaseURL,
		TimeoutMs:  desc.TimeoutMs,
		Headers:    desc.Headers,
		APIKeyHash: fmt.Sprintf("%x", apiKeyHash[:8]),
	})
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(data)
	return fmt.Sprintf("%x", sum[:16]), nil
}

func maxTokens(desc registry.Descriptor) int {
	if desc.MaxTokens > 0 {
		return desc.MaxTokens
	}
	return defaultMaxTokens
}
