package dto

import (
	"strconv"
	"time"

	"lumen.app/companion/internal/model"
)

// DateRequest names a day in YYYY-MM-DD form.
type DateRequest struct {
	Date string `json:"date" binding:"required,datetime=2006-01-02"`
}

type SummaryResponse struct {
	Date       string    `json:"date"`
	Text       string    `json:"text"`
	SessionIDs []string  `json:"session_ids"`
	CreatedAt  time.Time `json:"created_at"`
}

func ToSummaryResponse(s *model.Summary) *SummaryResponse {
	ids := make([]string, 0, len(s.SessionIDs))
	for _, id := range s.SessionIDs {
		ids = append(ids, strconv.FormatInt(id, 10))
	}
	return &SummaryResponse{
		Date:       s.Date,
		Text:       s.Text,
		SessionIDs: ids,
		CreatedAt:  s.CreatedAt,
	}
}

type PanelResponse struct {
	Index    int    `json:"index"`
	Caption  string `json:"caption"`
	ImageURL string `json:"image_url,omitempty"`
}

type MemoryResponse struct {
	ID        int64           `json:"id,string"`
	Date      string          `json:"date"`
	Title     string          `json:"title"`
	Entry     string          `json:"entry"`
	Mood      string          `json:"mood"`
	Panels    []PanelResponse `json:"panels"`
	CreatedAt time.Time       `json:"created_at"`
}

func ToMemoryResponse(m *model.Memory) *MemoryResponse {
	panels := make([]PanelResponse, 0, len(m.Panels))
	for _, p := range m.Panels {
		panels = append(panels, PanelResponse{Index: p.Index, Caption: p.Caption, ImageURL: p.ImageURL})
	}
	return &MemoryResponse{
		ID:        m.ID,
		Date:      m.Date,
		Title:     m.Title,
		Entry:     m.Entry,
		Mood:      m.Mood,
		Panels:    panels,
		CreatedAt: m.CreatedAt,
	}
}

type MemoryQueuedResponse struct {
	Date   string `json:"date"`
	Status string `json:"status"`
}
