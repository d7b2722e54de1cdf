// File path: internal/agent/graph.go
package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langgraphgo/graph"

	"github.com/nlzhang/sitechat/internal/common"
	"github.com/nlzhang/sitechat/internal/content"
	"github.com/nlzhang/sitechat/internal/llm/providers"
	"github.com/nlzhang/sitechat/internal/retriever"
)

const (
	nodeRetrieve = "retrieve"
	nodeGenerate = "generate"

	defaultTopK = 5
)

// Runner executes the retrieve-then-generate flow as a compiled message
// graph. One Runner serves all requests; per-run state stays inside Run.
type Runner struct {
	provider providers.Provider
	engine   *retriever.Engine
}

func NewRunner(provider providers.Provider, engine *retriever.Engine) (*Runner, error) {
	if provider == nil {
		return nil, fmt.Errorf("agent: provider required")
	}
	return &Runner{provider: provider, engine: engine}, nil
}

type RunOptions struct {
	Language string `json:"language,omitempty"`
	TopK     int    `json:"top_k,omitempty"`
}

type RunResult struct {
	Answer       string             `json:"answer"`
	Sources      []retriever.Source `json:"sources"`
	FallbackUsed bool               `json:"fallback_used"`
	Provider     string             `json:"provider"`
}

// Run answers a single goal. The retrieve node grounds the conversation with
// indexed site content; the generate node produces the final reply.
func (r *Runner) Run(ctx context.Context, goal string, opts *RunOptions) (RunResult, error) {
	goal = strings.TrimSpace(goal)
	if goal == "" {
		return RunResult{}, fmt.Errorf("agent: goal required")
	}
	language := content.LanguageChinese
	topK := defaultTopK
	if opts != nil {
		if lang := strings.TrimSpace(opts.Language); lang == content.LanguageEnglish {
			language = content.LanguageEnglish
		}
		if opts.TopK > 0 {
			topK = opts.TopK
		}
	}

	result := RunResult{Provider: r.provider.Name()}
	logger := common.Logger()

	g := graph.NewMessageGraph()
	g.AddNode(nodeRetrieve, func(ctx context.Context, state []llms.MessageContent) ([]llms.MessageContent, error) {
		if r.engine == nil {
			return state, nil
		}
		vectors, err := r.provider.Embed(ctx, []string{goal})
		if err != nil || len(vectors) == 0 {
			logger.Warn("agent: goal embedding failed", "error", err)
			return state, nil
		}
		retrieved, err := r.engine.Retrieve(ctx, vectors[0], topK, language)
		if err != nil {
			logger.Warn("agent: retrieval failed", "error", err)
			return state, nil
		}
		result.Sources = retrieved.Sources
		result.FallbackUsed = retrieved.FallbackUsed
		if retrieved.Context == "" {
			return state, nil
		}
		grounding := llms.TextParts(llms.ChatMessageTypeSystem, "Site content relevant to the question:\n\n"+retrieved.Context)
		return append([]llms.MessageContent{grounding}, state...), nil
	})
	g.AddNode(nodeGenerate, func(ctx context.Context, state []llms.MessageContent) ([]llms.MessageContent, error) {
		answer, err := r.provider.Chat(ctx, toProviderMessages(state))
		if err != nil {
			return nil, fmt.Errorf("agent: generation failed: %w", err)
		}
		return append(state, llms.TextParts(llms.ChatMessageTypeAI, answer)), nil
	})
	g.AddEdge(nodeRetrieve, nodeGenerate)
	g.AddEdge(nodeGenerate, graph.END)
	g.SetEntryPoint(nodeRetrieve)

	runnable, err := g.Compile()
	if err != nil {
		return RunResult{}, fmt.Errorf("agent: compile graph: %w", err)
	}
	initial := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt(language)),
		llms.TextParts(llms.ChatMessageTypeHuman, goal),
	}
	final, err := runnable.Invoke(ctx, initial)
	if err != nil {
		return RunResult{}, err
	}
	result.Answer = lastAssistantText(final)
	return result, nil
}

func systemPrompt(language string) string {
	if language == content.LanguageEnglish {
		return "You are the assistant for this site. Answer in English, using only the provided site content. Say so when the content does not cover the question."
	}
	return "你是本站的智能助手。请使用提供的站点内容，用中文回答问题。若内容未涉及该问题，请直接说明。"
}

func toProviderMessages(state []llms.MessageContent) []providers.Message {
	messages := make([]providers.Message, 0, len(state))
	for _, msg := range state {
		text := messageText(msg)
		if text == "" {
			continue
		}
		messages = append(messages, providers.Message{Role: roleName(msg.Role), Content: text})
	}
	return messages
}

func messageText(msg llms.MessageContent) string {
	var parts []string
	for _, part := range msg.Parts {
		if text, ok := part.(llms.TextContent); ok {
			parts = append(parts, text.Text)
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

func roleName(role llms.ChatMessageType) string {
	switch role {
	case llms.ChatMessageTypeSystem:
		return "system"
	case llms.ChatMessageTypeAI:
		return "assistant"
	default:
		return "user"
	}
}

func lastAssistantText(state []llms.MessageContent) string {
	for i := len(state) - 1; i >= 0; i-- {
		if state[i].Role == llms.ChatMessageTypeAI {
			return messageText(state[i])
		}
	}
	return ""
}
