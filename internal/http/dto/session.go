package dto

import (
	"time"

	"lumen.app/companion/internal/model"
)

type SetStyleRequest struct {
	Style string `json:"style" binding:"required"`
}

type TurnResponse struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Backend   string    `json:"backend,omitempty"`
	Humanized string    `json:"humanized,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type ChatSessionResponse struct {
	ID        int64          `json:"id,string"`
	Title     string         `json:"title"`
	Style     string         `json:"style,omitempty"`
	Turns     []TurnResponse `json:"turns,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// ToChatSessionResponse omits turns unless withTurns is set, for listings.
func ToChatSessionResponse(s *model.ChatSession, withTurns bool) *ChatSessionResponse {
	resp := &ChatSessionResponse{
		ID:        s.ID,
		Title:     s.Title,
		Style:     s.Style,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
	if withTurns {
		resp.Turns = make([]TurnResponse, 0, len(s.Turns))
		for _, t := range s.Turns {
			resp.Turns = append(resp.Turns, TurnResponse(t))
		}
	}
	return resp
}
