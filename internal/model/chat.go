package model

import "time"

// Conversation roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatSession is one conversation with the companion. Turns are kept in
// chronological order.
type ChatSession struct {
	ID        int64            `json:"id"`
	UserID    int64            `json:"user_id"`
	Title     string           `json:"title"`
	Style     string           `json:"style,omitempty"` // explicit style choice, empty until the user picks one
	Turns     []ChatTurnRecord `json:"turns"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

type ChatTurnRecord struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Backend   string    `json:"backend,omitempty"`   // "all" for discussion mode
	Humanized string    `json:"humanized,omitempty"` // discussion mode only
	CreatedAt time.Time `json:"created_at"`
}

// LastAssistantTurn returns the most recent assistant content, or "".
func (s *ChatSession) LastAssistantTurn() string {
	for i := len(s.Turns) - 1; i >= 0; i-- {
		if s.Turns[i].Role == RoleAssistant {
			return s.Turns[i].Content
		}
	}
	return ""
}
