// File path: internal/api/chat_handler.go
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/nlzhang/sitechat/internal/common"
	"github.com/nlzhang/sitechat/internal/content"
	"github.com/nlzhang/sitechat/internal/llm/providers"
	"github.com/nlzhang/sitechat/internal/retriever"
)

const (
	systemPromptChinese = "你是本站的智能助手。请根据提供的站点内容用中文回答问题，" +
		"回答应简洁准确。若站点内容未涉及用户的问题，请如实说明，不要编造。"
	systemPromptEnglish = "You are the assistant for this site. Answer in English using only the " +
		"provided site content, concisely and accurately. If the content does not cover the " +
		"question, say so instead of guessing."
)

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	logger := common.Logger()
	ctx := r.Context()
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("api: chat decode failed", "error", err)
		writeError(w, http.StatusBadRequest, err)
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("message required"))
		return
	}
	language := normalizeLanguage(req.Language)
	logger.Info("api: chat request received", "message_length", len(req.Message), "language", language)

	result, err := s.retrieve(ctx, req.Message, req.TopK, language)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}

	messages := []providers.Message{{Role: "system", Content: chatSystemPrompt(language)}}
	if result.Context != "" {
		messages = append(messages, providers.Message{
			Role:    "system",
			Content: "Site content:\n\n" + result.Context,
		})
	}
	for _, turn := range req.History {
		role := strings.TrimSpace(turn.Role)
		text := strings.TrimSpace(turn.Content)
		if text == "" || (role != "user" && role != "assistant") {
			continue
		}
		messages = append(messages, providers.Message{Role: role, Content: text})
	}
	messages = append(messages, providers.Message{Role: "user", Content: req.Message})

	answer, err := s.provider.Chat(ctx, messages)
	if err != nil {
		logger.Error("api: chat completion failed", "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	logger.Info("api: chat completion succeeded", "provider", s.provider.Name(), "sources", len(result.Sources), "fallback", result.FallbackUsed)
	writeJSON(w, http.StatusOK, chatResponse{
		Answer:   answer,
		Sources:  result.Sources,
		Fallback: result.FallbackUsed,
		Provider: s.provider.Name(),
	})
}

// retrieve embeds the query and runs the retrieval engine. A fallback-query
// failure is surfaced; an embedding failure is too, since without a vector
// there is nothing to search with.
func (s *Server) retrieve(ctx context.Context, query string, topK int, language string) (retriever.Result, error) {
	logger := common.Logger()
	vectors, err := s.provider.Embed(ctx, []string{query})
	if err != nil {
		return retriever.Result{}, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) == 0 {
		return retriever.Result{}, fmt.Errorf("embed query: provider returned no vector")
	}
	result, err := s.engine.Retrieve(ctx, vectors[0], topK, language)
	if err != nil {
		if errors.Is(err, retriever.ErrFallbackQuery) {
			logger.Error("api: retrieval failed", "error", err)
		}
		return retriever.Result{}, err
	}
	return result, nil
}

func chatSystemPrompt(language string) string {
	if language == content.LanguageEnglish {
		return systemPromptEnglish
	}
	return systemPromptChinese
}

func normalizeLanguage(language string) string {
	if strings.TrimSpace(strings.ToLower(language)) == content.LanguageEnglish {
		return content.LanguageEnglish
	}
	return content.LanguageChinese
}
