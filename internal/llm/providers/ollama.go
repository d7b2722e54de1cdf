// File path: internal/llm/providers/ollama.go
package providers

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/nlzhang/sitechat/internal/common"
)

// OllamaProvider serves chat and embeddings from a local Ollama instance.
type OllamaProvider struct {
	llm   *ollama.LLM
	model string
}

func NewOllamaProvider(serverURL, model string) (*OllamaProvider, error) {
	if model == "" {
		model = "qwen2.5"
	}
	opts := []ollama.Option{ollama.WithModel(model)}
	if serverURL != "" {
		opts = append(opts, ollama.WithServerURL(serverURL))
	}
	llm, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("init ollama: %w", err)
	}
	logger := common.Logger()
	logger.Info("llm: ollama provider configured", "model", model, "server", serverURL)
	return &OllamaProvider{llm: llm, model: model}, nil
}

func (o *OllamaProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	content := make([]llms.MessageContent, 0, len(messages))
	for _, msg := range messages {
		role := llms.ChatMessageTypeHuman
		switch msg.Role {
		case "system":
			role = llms.ChatMessageTypeSystem
		case "assistant":
			role = llms.ChatMessageTypeAI
		}
		content = append(content, llms.TextParts(role, msg.Content))
	}
	resp, err := o.llm.GenerateContent(ctx, content)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}
	return resp.Choices[0].Content, nil
}

func (o *OllamaProvider) Embed(ctx context.Context, input []string) ([][]float32, error) {
	if len(input) == 0 {
		return nil, nil
	}
	return o.llm.CreateEmbedding(ctx, input)
}

func (o *OllamaProvider) Name() string {
	return "ollama"
}
