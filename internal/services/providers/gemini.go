package providers

import (
	"context"

	"github.com/praxislearn/curricula/internal/models"
	"github.com/praxislearn/curricula/internal/services/prompts"
	"github.com/praxislearn/curricula/internal/services/registry"
	"github.com/praxislearn/curricula/internal/utils/clientcache"

	fiberlog "github.com/gofiber/fiber/v2/log"
	"google.golang.org/genai"
)

type geminiInvoker struct {
	clientCache *clientcache.Cache[*genai.Client]
}

func newGeminiInvoker() *geminiInvoker {
	return &geminiInvoker{
		clientCache: clientcache.NewCache[*genai.Client](),
	}
}

func (gi *geminiInvoker) client(ctx context.Context, desc registry.Descriptor) (*genai.Client, error) {
	hash, err := configHash(desc)
	if err != nil {
		fiberlog.Warnf("failed to hash config for %s, building uncached client: %v", desc.Name, err)
		return gi.buildClient(ctx, desc)
	}

	return gi.clientCache.GetOrCreate(hash, func() (*genai.Client, error) {
		fiberlog.Debugf("creating Gemini client (config hash: %s)", hash[:8])
		return gi.buildClient(ctx, desc)
	})
}

func (gi *geminiInvoker) buildClient(ctx context.Context, desc registry.Descriptor) (*genai.Client, error) {
	if desc.APIKey == "" {
		return nil, models.NewProviderError(desc.Name, "API key not configured", nil)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  desc.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, models.NewProviderError(desc.Name, "failed to create client", err)
	}
	return client, nil
}

func (gi *geminiInvoker) generate(ctx context.Context, desc registry.Descriptor, prompt prompts.Prompt) (*models.Generation, error) {
	client, err := gi.client(ctx, desc)
	if err != nil {
		return nil, err
	}

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: prompt.System}},
		},
		MaxOutputTokens: int32(maxTokens(desc)),
	}

	// Gemini takes the conversation as alternating content blocks.
	contents := make([]*genai.Content, 0, len(prompt.History)+1)
	for _, turn := range prompt.History {
		role := genai.RoleUser
		if turn.Role == "assistant" {
			role = genai.RoleModel
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: turn.Content}},
		})
	}
	contents = append(contents, &genai.Content{
		Role:  genai.RoleUser,
		Parts: []*genai.Part{{Text: prompt.User}},
	})

	resp, err := client.Models.GenerateContent(ctx, desc.Model, contents, cfg)
	if err != nil {
		return nil, models.NewProviderError(desc.Name, "generate request failed", err)
	}

	gen := &models.Generation{Text: resp.Text()}
	if resp.UsageMetadata != nil {
		gen.Usage = models.TokenUsage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		}
	}
	return gen, nil
}
