package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"lumen.app/companion/common/llm"
	"lumen.app/companion/internal/brain"
	"lumen.app/companion/internal/model"
	"lumen.app/companion/internal/store"
)

// maxTranscriptRunes keeps the summary prompt within a small model's context.
// The oldest text is dropped first.
const maxTranscriptRunes = 12000

const summarySystemPrompt = "You keep a gentle diary for the user. Summarize the day's conversations in " +
	"one short paragraph written to the user in second person. Mention what they asked about and how " +
	"they seemed to feel. Do not mention that you are an AI or name any model."

type SummaryService interface {
	Summarize(ctx context.Context, userID int64, date string) (*model.Summary, error)
	Get(ctx context.Context, userID int64, date string) (*model.Summary, error)
}

type summaryService struct {
	pipeline  *brain.Pipeline
	chats     store.ChatSessionStore
	summaries store.SummaryStore
	now       func() time.Time
}

// NewSummaryService summarizes with the synthesis chain of pipeline's profile.
func NewSummaryService(pipeline *brain.Pipeline, chats store.ChatSessionStore, summaries store.SummaryStore) SummaryService {
	return &summaryService{
		pipeline:  pipeline,
		chats:     chats,
		summaries: summaries,
		now:       time.Now,
	}
}

func (s *summaryService) Summarize(ctx context.Context, userID int64, date string) (*model.Summary, error) {
	day, err := parseDate(date)
	if err != nil {
		return nil, err
	}

	sessions, err := s.chats.ListByDay(ctx, userID, day)
	if err != nil {
		return nil, fmt.Errorf("listing chat sessions: %w", err)
	}
	transcript, ids := buildTranscript(sessions)
	if transcript == "" {
		return nil, ErrNoConversations
	}

	profile := s.pipeline.Profile()
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: summarySystemPrompt},
		{Role: llm.RoleUser, Content: "Conversations from " + date + ":\n\n" + transcript},
	}
	text, ok := s.pipeline.Complete(ctx, profile.Synthesis, messages, profile.MaxWords)
	if !ok {
		return nil, ErrSummaryUnavailable
	}

	summary := &model.Summary{
		Date:       date,
		UserID:     userID,
		Text:       text,
		SessionIDs: ids,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.summaries.Save(ctx, summary); err != nil {
		return nil, fmt.Errorf("saving summary: %w", err)
	}

	slog.InfoContext(ctx, "summary saved",
		"date", date,
		"sessions", len(ids),
		"words", brain.WordCount(text))
	return summary, nil
}

func (s *summaryService) Get(ctx context.Context, userID int64, date string) (*model.Summary, error) {
	if _, err := parseDate(date); err != nil {
		return nil, err
	}
	summary, err := s.summaries.Get(ctx, userID, date)
	if err != nil {
		return nil, fmt.Errorf("getting summary: %w", err)
	}
	return summary, nil
}

// buildTranscript renders the sessions that have turns, oldest first, and
// returns the ids it used.
func buildTranscript(sessions []model.ChatSession) (string, []int64) {
	var b strings.Builder
	var ids []int64
	for _, session := range sessions {
		if len(session.Turns) == 0 {
			continue
		}
		ids = append(ids, session.ID)
		if session.Title != "" {
			fmt.Fprintf(&b, "## %s\n", session.Title)
		}
		for _, t := range session.Turns {
			speaker := "User"
			if t.Role == model.RoleAssistant {
				speaker = "Companion"
			}
			fmt.Fprintf(&b, "%s: %s\n", speaker, strings.TrimSpace(t.Content))
		}
		b.WriteString("\n")
	}

	runes := []rune(strings.TrimSpace(b.String()))
	if len(runes) > maxTranscriptRunes {
		runes = runes[len(runes)-maxTranscriptRunes:]
	}
	return string(runes), ids
}

func parseDate(raw string) (time.Time, error) {
	day, err := time.Parse(model.DateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, raw)
	}
	return day, nil
}
