package providers

import (
	"context"
	"net/http"
	"time"

	"github.com/praxislearn/curricula/internal/models"
	"github.com/praxislearn/curricula/internal/services/prompts"
	"github.com/praxislearn/curricula/internal/services/registry"
	"github.com/praxislearn/curricula/internal/utils/clientcache"

	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/openai/openai-go/v2"
	openaiOption "github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"
)

// openAIInvoker serves every OpenAI-compatible provider: Groq, DeepSeek,
// Cerebras, SambaNova, OpenRouter, Hyperbolic. They differ only by base URL,
// credential, and model id.
type openAIInvoker struct {
	clientCache *clientcache.Cache[*openai.Client]
}

func newOpenAIInvoker() *openAIInvoker {
	return &openAIInvoker{
		clientCache: clientcache.NewCache[*openai.Client](),
	}
}

func (oi *openAIInvoker) client(desc registry.Descriptor) (*openai.Client, error) {
	hash, err := configHash(desc)
	if err != nil {
		fiberlog.Warnf("failed to hash config for %s, building uncached client: %v", desc.Name, err)
		return oi.buildClient(desc)
	}

	return oi.clientCache.GetOrCreate(hash, func() (*openai.Client, error) {
		fiberlog.Debugf("creating OpenAI-compatible client for %s (config hash: %s)", desc.Name, hash[:8])
		return oi.buildClient(desc)
	})
}

func (oi *openAIInvoker) buildClient(desc registry.Descriptor) (*openai.Client, error) {
	if desc.APIKey == "" {
		return nil, models.NewProviderError(desc.Name, "API key not configured", nil)
	}

	opts := []openaiOption.RequestOption{
		openaiOption.WithAPIKey(desc.APIKey),
	}
	if desc.BaseURL != "" {
		opts = append(opts, openaiOption.WithBaseURL(desc.BaseURL))
	}
	for key, value := range desc.Headers {
		opts = append(opts, openaiOption.WithHeader(key, value))
	}
	if desc.TimeoutMs > 0 {
		opts = append(opts, openaiOption.WithHTTPClient(&http.Client{
			Timeout: time.Duration(desc.TimeoutMs) * time.Millisecond,
		}))
	}

	client := openai.NewClient(opts...)
	return &client, nil
}

func (oi *openAIInvoker) generate(ctx context.Context, desc registry.Descriptor, prompt prompts.Prompt) (*models.Generation, error) {
	client, err := oi.client(desc)
	if err != nil {
		return nil, err
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(prompt.History)+2)
	messages = append(messages, openai.SystemMessage(prompt.System))
	for _, turn := range prompt.History {
		if turn.Role == "assistant" {
			messages = append(messages, openai.AssistantMessage(turn.Content))
		} else {
			messages = append(messages, openai.UserMessage(turn.Content))
		}
	}
	messages = append(messages, openai.UserMessage(prompt.User))

	resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:               shared.ChatModel(desc.Model),
		Messages:            messages,
		MaxCompletionTokens: openai.Int(int64(maxTokens(desc))),
	})
	if err != nil {
		return nil, models.NewProviderError(desc.Name, "chat completion failed", err)
	}
	if len(resp.Choices) == 0 {
		return nil, models.NewProviderError(desc.Name, "no choices returned", nil)
	}

	return &models.Generation{
		Text: resp.Choices[0].Message.Content,
		Usage: models.TokenUsage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
		},
	}, nil
}
