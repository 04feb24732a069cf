package model

import "time"

// Memory is a manga-journal entry generated from a day of conversations.
type Memory struct {
	ID        int64     `json:"id"`
	Date      string    `json:"date"`
	UserID    int64     `json:"user_id"`
	Title     string    `json:"title"`
	Entry     string    `json:"entry"`
	Mood      string    `json:"mood"`
	Panels    []Panel   `json:"panels"`
	CreatedAt time.Time `json:"created_at"`
}

// Panel is one illustrated frame of a memory. ImageURL is empty when the
// image could not be generated.
type Panel struct {
	Index       int    `json:"index"`
	Caption     string `json:"caption"`
	ImagePrompt string `json:"image_prompt"`
	ImageURL    string `json:"image_url,omitempty"`
}
