package providers

import (
	"context"
	"strings"

	"github.com/praxislearn/curricula/internal/models"
	"github.com/praxislearn/curricula/internal/services/prompts"
	"github.com/praxislearn/curricula/internal/services/registry"
	"github.com/praxislearn/curricula/internal/utils/clientcache"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicOption "github.com/anthropics/anthropic-sdk-go/option"
	fiberlog "github.com/gofiber/fiber/v2/log"
)

type anthropicInvoker struct {
	clientCache *clientcache.Cache[*anthropic.Client]
}

func newAnthropicInvoker() *anthropicInvoker {
	return &anthropicInvoker{
		clientCache: clientcache.NewCache[*anthropic.Client](),
	}
}

func (ai *anthropicInvoker) client(desc registry.Descriptor) (*anthropic.Client, error) {
	hash, err := configHash(desc)
	if err != nil {
		fiberlog.Warnf("failed to hash config for %s, building uncached client: %v", desc.Name, err)
		return ai.buildClient(desc)
	}

	return ai.clientCache.GetOrCreate(hash, func() (*anthropic.Client, error) {
		fiberlog.Debugf("creating Anthropic client (config hash: %s)", hash[:8])
		return ai.buildClient(desc)
	})
}

func (ai *anthropicInvoker) buildClient(desc registry.Descriptor) (*anthropic.Client, error) {
	if desc.APIKey == "" {
		return nil, models.NewProviderError(desc.Name, "API key not configured", nil)
	}

	opts := []anthropicOption.RequestOption{
		anthropicOption.WithAPIKey(desc.APIKey),
	}
	if desc.BaseURL != "" {
		opts = append(opts, anthropicOption.WithBaseURL(desc.BaseURL))
	}
	for key, value := range desc.Headers {
		opts = append(opts, anthropicOption.WithHeader(key, value))
	}

	client := anthropic.NewClient(opts...)
	return &client, nil
}

func (ai *anthropicInvoker) generate(ctx context.Context, desc registry.Descriptor, prompt prompts.Prompt) (*models.Generation, error) {
	client, err := ai.client(desc)
	if err != nil {
		return nil, err
	}

	messages := make([]anthropic.MessageParam, 0, len(prompt.History)+1)
	for _, turn := range prompt.History {
		if turn.Role == "assistant" {
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(turn.Content)))
		} else {
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(turn.Content)))
		}
	}
	messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(prompt.User)))

	message, err := client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(desc.Model),
		MaxTokens: int64(maxTokens(desc)),
		System:    []anthropic.TextBlockParam{{Text: prompt.System}},
		Messages:  messages,
	})
	if err != nil {
		return nil, models.NewProviderError(desc.Name, "message request failed", err)
	}

	var sb strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}

	return &models.Generation{
		Text: sb.String(),
		Usage: models.TokenUsage{
			PromptTokens:     int(message.Usage.InputTokens),
			CompletionTokens: int(message.Usage.OutputTokens),
		},
	}, nil
}
