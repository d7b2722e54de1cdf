// File path: internal/api/types.go
package api

import (
	"github.com/nlzhang/sitechat/internal/agent"
	"github.com/nlzhang/sitechat/internal/retriever"
)

type chatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Message  string     `json:"message"`
	History  []chatTurn `json:"history,omitempty"`
	Language string     `json:"language,omitempty"`
	TopK     int        `json:"top_k,omitempty"`
}

type chatResponse struct {
	Answer   string             `json:"answer"`
	Sources  []retriever.Source `json:"sources"`
	Fallback bool               `json:"fallback"`
	Provider string             `json:"provider"`
}

type searchResponse struct {
	Query    string             `json:"query"`
	Language string             `json:"language"`
	Context  string             `json:"context"`
	Sources  []retriever.Source `json:"sources"`
	Fallback bool               `json:"fallback"`
}

type agentRequest struct {
	Goal    string            `json:"goal"`
	Options *agent.RunOptions `json:"options,omitempty"`
}
