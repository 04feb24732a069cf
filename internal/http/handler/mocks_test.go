package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"

	"github.com/gin-gonic/gin"

	"lumen.app/companion/internal/brain"
	"lumen.app/companion/internal/http/middleware"
	"lumen.app/companion/internal/model"
	"lumen.app/companion/internal/queue"
	"lumen.app/companion/internal/service"
	"lumen.app/companion/internal/store"
)

var testUser = &model.User{ID: 42, Name: "Mina", Email: "mina@example.com"}

// newRouter returns an engine whose requests carry testUser, as they would
// behind RequireSession.
func newRouter() *gin.Engine {
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Request = c.Request.WithContext(middleware.WithUser(c.Request.Context(), testUser))
		c.Next()
	})
	return router
}

func doJSON(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		_ = json.NewEncoder(&buf).Encode(b)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(w *httptest.ResponseRecorder) map[string]any {
	var resp map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return resp
}

type mockAuthService struct {
	urlFn      func(state string) (string, error)
	callbackFn func(ctx context.Context, code string) (*model.User, *model.Session, error)
	validateFn func(ctx context.Context, sessionID int64) (*model.User, error)
	loggedOut  []int64
}

func (m *mockAuthService) GetAuthorizationURL(state string) (string, error) {
	if m.urlFn != nil {
		return m.urlFn(state)
	}
	return "https://auth.example.com/authorize?state=" + state, nil
}

func (m *mockAuthService) HandleCallback(ctx context.Context, code string) (*model.User, *model.Session, error) {
	if m.callbackFn != nil {
		return m.callbackFn(ctx, code)
	}
	return nil, nil, service.ErrInvalidCode
}

func (m *mockAuthService) ValidateSession(ctx context.Context, sessionID int64) (*model.User, error) {
	if m.validateFn != nil {
		return m.validateFn(ctx, sessionID)
	}
	return nil, service.ErrSessionExpired
}

func (m *mockAuthService) Logout(_ context.Context, sessionID int64) error {
	m.loggedOut = append(m.loggedOut, sessionID)
	return nil
}

type mockChatService struct {
	chatFn        func(ctx context.Context, req service.ChatRequest) (*service.ChatResult, error)
	createFn      func(ctx context.Context, userID int64) (*model.ChatSession, error)
	getFn         func(ctx context.Context, userID, sessionID int64) (*model.ChatSession, error)
	listFn        func(ctx context.Context, userID int64, limit int) ([]model.ChatSession, error)
	setStyleFn    func(ctx context.Context, userID, sessionID int64, raw string) (brain.Style, error)
	lastChatReq   service.ChatRequest
	lastListLimit int
}

func (m *mockChatService) Chat(ctx context.Context, req service.ChatRequest) (*service.ChatResult, error) {
	m.lastChatReq = req
	if m.chatFn != nil {
		return m.chatFn(ctx, req)
	}
	return &service.ChatResult{}, nil
}

func (m *mockChatService) CreateSession(ctx context.Context, userID int64) (*model.ChatSession, error) {
	if m.createFn != nil {
		return m.createFn(ctx, userID)
	}
	return &model.ChatSession{ID: 1, UserID: userID}, nil
}

func (m *mockChatService) GetSession(ctx context.Context, userID, sessionID int64) (*model.ChatSession, error) {
	if m.getFn != nil {
		return m.getFn(ctx, userID, sessionID)
	}
	return nil, store.ErrNotFound
}

func (m *mockChatService) ListSessions(ctx context.Context, userID int64, limit int) ([]model.ChatSession, error) {
	m.lastListLimit = limit
	if m.listFn != nil {
		return m.listFn(ctx, userID, limit)
	}
	return nil, nil
}

func (m *mockChatService) SetStyle(ctx context.Context, userID, sessionID int64, raw string) (brain.Style, error) {
	if m.setStyleFn != nil {
		return m.setStyleFn(ctx, userID, sessionID, raw)
	}
	return brain.StyleRational, nil
}

type mockSummaryService struct {
	summarizeFn func(ctx context.Context, userID int64, date string) (*model.Summary, error)
	getFn       func(ctx context.Context, userID int64, date string) (*model.Summary, error)
}

func (m *mockSummaryService) Summarize(ctx context.Context, userID int64, date string) (*model.Summary, error) {
	return m.summarizeFn(ctx, userID, date)
}

func (m *mockSummaryService) Get(ctx context.Context, userID int64, date string) (*model.Summary, error) {
	if m.getFn != nil {
		return m.getFn(ctx, userID, date)
	}
	return nil, store.ErrNotFound
}

type mockMemoryService struct {
	enqueueFn func(ctx context.Context, userID int64, date string) error
	getFn     func(ctx context.Context, userID int64, date string) (*model.Memory, error)
	listFn    func(ctx context.Context, userID int64, limit int) ([]model.Memory, error)
}

func (m *mockMemoryService) Enqueue(ctx context.Context, userID int64, date string) error {
	if m.enqueueFn != nil {
		return m.enqueueFn(ctx, userID, date)
	}
	return nil
}

func (m *mockMemoryService) Get(ctx context.Context, userID int64, date string) (*model.Memory, error) {
	if m.getFn != nil {
		return m.getFn(ctx, userID, date)
	}
	return nil, store.ErrNotFound
}

func (m *mockMemoryService) List(ctx context.Context, userID int64, limit int) ([]model.Memory, error) {
	if m.listFn != nil {
		return m.listFn(ctx, userID, limit)
	}
	return nil, nil
}

func (m *mockMemoryService) Generate(context.Context, queue.MemoryJob) error {
	return nil
}

