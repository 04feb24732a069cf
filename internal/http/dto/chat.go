package dto

import (
	"lumen.app/companion/internal/brain"
	"lumen.app/companion/internal/service"
)

type ChatRequest struct {
	Prompt    string `json:"prompt" binding:"required,max=8000"`
	Backend   string `json:"backend,omitempty" binding:"max=128"`
	SessionID int64  `json:"session_id,omitempty,string"`
	Style     string `json:"style,omitempty"`
	Surface   string `json:"surface,omitempty" binding:"omitempty,oneof=chat room"`
}

// ChatResponse is shared by both modes. Humanized and initial responses are
// only set in discussion mode. Duration is in milliseconds.
type ChatResponse struct {
	Success           bool              `json:"success"`
	Response          string            `json:"response,omitempty"`
	HumanizedResponse string            `json:"humanized_response,omitempty"`
	InitialResponses  map[string]string `json:"initial_responses,omitempty"`
	Order             []string          `json:"order,omitempty"`
	Style             brain.Style       `json:"style,omitempty"`
	SessionID         int64             `json:"session_id,omitempty,string"`
	Duration          int64             `json:"duration"`
	Error             string            `json:"error,omitempty"`
}

func ToChatResponse(r *service.ChatResult) *ChatResponse {
	return &ChatResponse{
		Success:           true,
		Response:          r.Response,
		HumanizedResponse: r.HumanizedResponse,
		InitialResponses:  r.InitialResponses,
		Order:             r.Order,
		Style:             r.Style,
		SessionID:         r.SessionID,
		Duration:          r.Duration.Milliseconds(),
	}
}

type BackendsResponse struct {
	Backends []string `json:"backends"`
	Profiles []string `json:"profiles"`
}
