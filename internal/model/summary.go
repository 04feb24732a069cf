package model

import "time"

// DateLayout is the key format for per-day documents.
const DateLayout = "2006-01-02"

// Summary condenses one day of chat sessions.
type Summary struct {
	Date       string    `json:"date"`
	UserID     int64     `json:"user_id"`
	Text       string    `json:"text"`
	SessionIDs []int64   `json:"session_ids"`
	CreatedAt  time.Time `json:"created_at"`
}
