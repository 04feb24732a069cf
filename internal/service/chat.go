package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"lumen.app/companion/common/id"
	"lumen.app/companion/common/llm"
	"lumen.app/companion/common/logger"
	"lumen.app/companion/internal/brain"
	"lumen.app/companion/internal/model"
	"lumen.app/companion/internal/store"
)

// BackendAll selects discussion mode.
const BackendAll = "all"

// Surface is the page a chat request comes from. Each surface runs its own
// pipeline profile.
type Surface string

const (
	SurfaceChat Surface = "chat"
	SurfaceRoom Surface = "room"
)

// Chat modes.
const (
	ModeDiscussion = "discussion"
	ModeSingle     = "single"
)

// maxHistoryTurns bounds the history forwarded in single-backend mode.
const maxHistoryTurns = 20

type ChatRequest struct {
	UserID    int64
	SessionID int64 // 0 runs the prompt without a conversation
	Prompt    string
	Backend   string // BackendAll or a backend id, BackendAll when empty
	Style     string // explicit choice, optional
	Surface   Surface
}

type ChatResult struct {
	Mode              string
	SessionID         int64
	Backend           string
	Style             brain.Style
	Response          string
	HumanizedResponse string            // discussion mode only
	InitialResponses  map[string]string // discussion mode only
	Order             []string
	Degraded          brain.Degradation
	Duration          time.Duration
}

type ChatService interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResult, error)
	CreateSession(ctx context.Context, userID int64) (*model.ChatSession, error)
	GetSession(ctx context.Context, userID, sessionID int64) (*model.ChatSession, error)
	ListSessions(ctx context.Context, userID int64, limit int) ([]model.ChatSession, error)
	SetStyle(ctx context.Context, userID, sessionID int64, raw string) (brain.Style, error)
}

type chatService struct {
	pipelines map[Surface]*brain.Pipeline
	backends  map[string]bool
	chats     store.ChatSessionStore
	styles    store.StyleStore
	now       func() time.Time
}

// NewChatService serves chat requests. backends lists the ids accepted in
// single-backend mode.
func NewChatService(
	pipelines map[Surface]*brain.Pipeline,
	backends []string,
	chats store.ChatSessionStore,
	styles store.StyleStore,
) ChatService {
	known := make(map[string]bool, len(backends))
	for _, b := range backends {
		known[b] = true
	}
	return &chatService{
		pipelines: pipelines,
		backends:  known,
		chats:     chats,
		styles:    styles,
		now:       time.Now,
	}
}

func (s *chatService) Chat(ctx context.Context, req ChatRequest) (*ChatResult, error) {
	start := s.now()

	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, brain.ErrEmptyPrompt
	}

	surface := req.Surface
	if surface == "" {
		surface = SurfaceChat
	}
	pipeline, ok := s.pipelines[surface]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSurface, surface)
	}

	backend := req.Backend
	if backend == "" {
		backend = BackendAll
	}
	if backend != BackendAll && !s.backends[backend] {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}

	var explicit brain.Style
	if req.Style != "" {
		st, ok := brain.ParseStyle(req.Style)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrInvalidStyle, req.Style)
		}
		explicit = st
	}

	var session *model.ChatSession
	if req.SessionID != 0 {
		ctx = logger.WithLogFields(ctx, logger.LogFields{SessionID: logger.Ptr(req.SessionID)})
		found, err := s.chats.Get(ctx, req.UserID, req.SessionID)
		if err != nil {
			return nil, fmt.Errorf("getting chat session: %w", err)
		}
		session = found
	}

	style := s.resolveStyle(ctx, session, explicit)
	if explicit.Valid() && session != nil && string(explicit) != session.Style {
		s.persistStyle(ctx, session, explicit)
	}

	result := &ChatResult{
		SessionID: req.SessionID,
		Backend:   backend,
		Style:     style,
	}

	if backend == BackendAll {
		res, err := pipeline.Discuss(ctx, brain.DiscussRequest{Prompt: prompt, Style: style})
		if err != nil {
			return nil, err
		}
		result.Mode = ModeDiscussion
		result.Response = res.SynthesizedAnswer
		result.HumanizedResponse = res.HumanizedAnswer
		result.InitialResponses = res.InitialResponses
		result.Order = res.Order
		result.Degraded = res.Degraded
		if res.Degraded.Synthesis || res.Degraded.Humanize {
			slog.WarnContext(ctx, "discussion degraded",
				"synthesis", res.Degraded.Synthesis,
				"humanize", res.Degraded.Humanize)
		}
	} else {
		text, err := pipeline.Single(ctx, brain.SingleRequest{
			Backend: backend,
			Prompt:  prompt,
			History: history(session),
			Style:   style,
		})
		if err != nil {
			return nil, err
		}
		result.Mode = ModeSingle
		result.Response = text
	}
	result.Duration = s.now().Sub(start)

	if session != nil {
		s.recordTurns(ctx, req.UserID, session.ID, prompt, result)
	}

	return result, nil
}

// resolveStyle prefers the request, then the stored explicit choice, and
// only infers a style when the conversation never had one.
func (s *chatService) resolveStyle(ctx context.Context, session *model.ChatSession, explicit brain.Style) brain.Style {
	if explicit.Valid() || session == nil {
		return brain.ResolveStyle(explicit, "")
	}

	if s.styles != nil {
		raw, err := s.styles.Get(ctx, session.ID)
		switch {
		case err == nil:
			if st, ok := brain.ParseStyle(raw); ok {
				return st
			}
		case !errors.Is(err, store.ErrNotFound):
			slog.WarnContext(ctx, "failed to read style choice", "error", err)
		}
	}

	if st, ok := brain.ParseStyle(session.Style); ok {
		return st
	}
	return brain.InferStyle(session.LastAssistantTurn())
}

func (s *chatService) persistStyle(ctx context.Context, session *model.ChatSession, style brain.Style) {
	if err := s.chats.SetStyle(ctx, session.UserID, session.ID, string(style)); err != nil {
		slog.WarnContext(ctx, "failed to store style on chat session", "error", err)
	}
	if s.styles != nil {
		if err := s.styles.Set(ctx, session.ID, string(style)); err != nil {
			slog.WarnContext(ctx, "failed to cache style choice", "error", err)
		}
	}
}

// recordTurns appends the exchange to the conversation. The answer has
// already been produced, so a failed write is logged rather than returned.
func (s *chatService) recordTurns(ctx context.Context, userID, sessionID int64, prompt string, result *ChatResult) {
	now := s.now().UTC()
	err := s.chats.AppendTurns(ctx, userID, sessionID,
		model.ChatTurnRecord{Role: model.RoleUser, Content: prompt, CreatedAt: now},
		model.ChatTurnRecord{
			Role:      model.RoleAssistant,
			Content:   result.Response,
			Backend:   result.Backend,
			Humanized: result.HumanizedResponse,
			CreatedAt: now,
		},
	)
	if err != nil {
		slog.ErrorContext(ctx, "failed to record chat turns", "error", err)
	}
}

func history(session *model.ChatSession) []llm.Message {
	if session == nil {
		return nil
	}
	turns := session.Turns
	if len(turns) > maxHistoryTurns {
		turns = turns[len(turns)-maxHistoryTurns:]
	}
	msgs := make([]llm.Message, 0, len(turns))
	for _, t := range turns {
		role := llm.RoleUser
		if t.Role == model.RoleAssistant {
			role = llm.RoleAssistant
		}
		msgs = append(msgs, llm.Message{Role: role, Content: t.Content})
	}
	return msgs
}

func (s *chatService) CreateSession(ctx context.Context, userID int64) (*model.ChatSession, error) {
	now := s.now().UTC()
	session := &model.ChatSession{
		ID:        id.New(),
		UserID:    userID,
		Turns:     []model.ChatTurnRecord{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.chats.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("creating chat session: %w", err)
	}
	slog.InfoContext(ctx, "chat session created", "session_id", session.ID)
	return session, nil
}

func (s *chatService) GetSession(ctx context.Context, userID, sessionID int64) (*model.ChatSession, error) {
	session, err := s.chats.Get(ctx, userID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("getting chat session: %w", err)
	}
	return session, nil
}

func (s *chatService) ListSessions(ctx context.Context, userID int64, limit int) ([]model.ChatSession, error) {
	sessions, err := s.chats.ListRecent(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing chat sessions: %w", err)
	}
	return sessions, nil
}

// SetStyle records an explicit style choice. It wins over inference for the
// rest of the conversation.
func (s *chatService) SetStyle(ctx context.Context, userID, sessionID int64, raw string) (brain.Style, error) {
	style, ok := brain.ParseStyle(raw)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidStyle, raw)
	}
	if err := s.chats.SetStyle(ctx, userID, sessionID, string(style)); err != nil {
		return "", fmt.Errorf("storing style: %w", err)
	}
	if s.styles != nil {
		if err := s.styles.Set(ctx, sessionID, string(style)); err != nil {
			return "", fmt.Errorf("caching style: %w", err)
		}
	}
	slog.InfoContext(ctx, "style chosen", "session_id", sessionID, "style", style)
	return style, nil
}
