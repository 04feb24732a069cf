package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"lumen.app/companion/internal/model"
)

type chatSessionStore struct {
	docs DocumentStore
	now  func() time.Time
}

func newChatSessionStore(docs DocumentStore) ChatSessionStore {
	return &chatSessionStore{docs: docs, now: time.Now}
}

func chatSessionKey(userID, id int64) Key {
	return Key{Collection: CollectionChatSessions, DocKey: strconv.FormatInt(id, 10), UserID: userID}
}

func (s *chatSessionStore) Create(ctx context.Context, session *model.ChatSession) error {
	if session.ID == 0 {
		return fmt.Errorf("chat session id is required")
	}
	now := s.now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now
	if session.Turns == nil {
		session.Turns = []model.ChatTurnRecord{}
	}

	_, err := s.docs.InsertOne(ctx, chatSessionKey(session.UserID, session.ID), session)
	return err
}

func (s *chatSessionStore) Get(ctx context.Context, userID, id int64) (*model.ChatSession, error) {
	var session model.ChatSession
	if err := s.docs.FindOne(ctx, chatSessionKey(userID, id), &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *chatSessionStore) AppendTurns(ctx context.Context, userID, id int64, turns ...model.ChatTurnRecord) error {
	op := AppendOp{
		Field: "turns",
		Items: turns,
		Set:   map[string]any{"updated_at": s.now().UTC()},
	}
	if title := titleFrom(turns); title != "" {
		op.SetIfEmpty = map[string]any{"title": title}
	}

	matched, err := s.docs.AppendOne(ctx, chatSessionKey(userID, id), op)
	if err != nil {
		return err
	}
	if matched == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *chatSessionStore) SetStyle(ctx context.Context, userID, id int64, style string) error {
	matched, err := s.docs.UpdateOne(ctx, chatSessionKey(userID, id), map[string]any{
		"style":      style,
		"updated_at": s.now().UTC(),
	})
	if err != nil {
		return err
	}
	if matched == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *chatSessionStore) ListRecent(ctx context.Context, userID int64, limit int) ([]model.ChatSession, error) {
	docs, err := s.docs.Find(ctx, Query{
		Collection: CollectionChatSessions,
		UserID:     userID,
		Limit:      limit,
	})
	if err != nil {
		return nil, err
	}
	return decodeAll[model.ChatSession](docs)
}

// ListByDay returns the sessions started on day (UTC), oldest first.
func (s *chatSessionStore) ListByDay(ctx context.Context, userID int64, day time.Time) ([]model.ChatSession, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	docs, err := s.docs.Find(ctx, Query{
		Collection:    CollectionChatSessions,
		UserID:        userID,
		CreatedAfter:  start,
		CreatedBefore: start.Add(24 * time.Hour),
		Ascending:     true,
	})
	if err != nil {
		return nil, err
	}
	return decodeAll[model.ChatSession](docs)
}

const maxTitleRunes = 60

// titleFrom derives a session title from the first user turn.
func titleFrom(turns []model.ChatTurnRecord) string {
	for _, t := range turns {
		if t.Role != model.RoleUser {
			continue
		}
		r := []rune(t.Content)
		if len(r) > maxTitleRunes {
			return string(r[:maxTitleRunes]) + "..."
		}
		return string(r)
	}
	return ""
}
