// File path: internal/llm/llm.go
package llm

import (
	"os"
	"strings"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/nlzhang/sitechat/internal/common"
	"github.com/nlzhang/sitechat/internal/llm/providers"
)

type Message = providers.Message

type Provider = providers.Provider

// NewProvider selects the embedding/chat provider from the environment:
// OpenAI when OPENAI_API_KEY is set, Ollama when OLLAMA_HOST is set, and the
// local stub otherwise.
func NewProvider() Provider {
	logger := common.Logger()
	if apiKey := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); apiKey != "" {
		opts := []option.RequestOption{option.WithAPIKey(apiKey)}
		if timeoutStr := strings.TrimSpace(os.Getenv("OPENAI_HTTP_TIMEOUT")); timeoutStr != "" {
			timeout, err := time.ParseDuration(timeoutStr)
			if err != nil {
				logger.Warn("llm: invalid OPENAI_HTTP_TIMEOUT, using default", "value", timeoutStr, "error", err)
			} else {
				opts = append(opts, option.WithRequestTimeout(timeout))
			}
		}
		if endpoint := strings.TrimSpace(os.Getenv("OPENAI_ENDPOINT")); endpoint != "" {
			logger.Info("llm: configuring OpenAI client with custom endpoint", "endpoint", endpoint)
			opts = append(opts, option.WithBaseURL(endpoint))
		}
		client := openai.NewClient(opts...)
		logger.Info("llm: OpenAI provider selected")
		return providers.NewOpenAIProvider(client)
	}
	if host := strings.TrimSpace(os.Getenv("OLLAMA_HOST")); host != "" {
		provider, err := providers.NewOllamaProvider(host, strings.TrimSpace(os.Getenv("OLLAMA_MODEL")))
		if err != nil {
			logger.Warn("llm: ollama initialization failed; falling back to local provider", "error", err)
		} else {
			logger.Info("llm: ollama provider selected")
			return provider
		}
	}
	logger.Warn("llm: no provider configured; falling back to local provider")
	return providers.NewLocalProvider()
}
