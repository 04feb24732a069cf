package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"lumen.app/companion/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// Document collections.
const (
	CollectionChatSessions = "chat_sessions"
	CollectionSummaries    = "summaries"
	CollectionMemories     = "memories"
)

// Key addresses one document. DocKey is a chat session id or a date.
type Key struct {
	Collection string
	DocKey     string
	UserID     int64
}

// Query filters a collection for one user. Zero values mean "no filter".
type Query struct {
	Collection    string
	UserID        int64
	KeyPrefix     string
	CreatedAfter  time.Time // inclusive
	CreatedBefore time.Time // exclusive
	Limit         int
	Ascending     bool // default is most recently updated first
}

// AppendOp appends Items to the top-level array Field. Set is merged into
// the document; SetIfEmpty only fills fields that are missing or "".
type AppendOp struct {
	Field      string
	Items      any
	Set        map[string]any
	SetIfEmpty map[string]any
}

// DocumentStore keeps JSON documents keyed by (collection, key, user).
type DocumentStore interface {
	// FindOne decodes the document into out, or returns ErrNotFound.
	FindOne(ctx context.Context, key Key, out any) error
	// InsertOne stores doc under key and returns its id. An existing document
	// under the same key is replaced and keeps its id.
	InsertOne(ctx context.Context, key Key, doc any) (int64, error)
	// UpdateOne merges patch into the top level of the document and returns
	// the number of matched documents.
	UpdateOne(ctx context.Context, key Key, patch map[string]any) (int64, error)
	// AppendOne applies op as a single statement, so concurrent appends to
	// the same document never drop items. It returns the number of matched
	// documents.
	AppendOne(ctx context.Context, key Key, op AppendOp) (int64, error)
	Find(ctx context.Context, q Query) ([]json.RawMessage, error)
}

// UserStore defines the contract for user data access
type UserStore interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	// Upsert creates the user or refreshes name, avatar and subject of the
	// user with the same email. user is updated with the stored row.
	Upsert(ctx context.Context, user *model.User) error
}

// SessionStore defines the contract for login session data access
type SessionStore interface {
	Create(ctx context.Context, session *model.Session) error
	GetValid(ctx context.Context, id int64) (*model.Session, error)
	Delete(ctx context.Context, id int64) error
	DeleteExpired(ctx context.Context) (int64, error)
}

type ChatSessionStore interface {
	Create(ctx context.Context, session *model.ChatSession) error
	Get(ctx context.Context, userID, id int64) (*model.ChatSession, error)
	AppendTurns(ctx context.Context, userID, id int64, turns ...model.ChatTurnRecord) error
	SetStyle(ctx context.Context, userID, id int64, style string) error
	ListRecent(ctx context.Context, userID int64, limit int) ([]model.ChatSession, error)
	ListByDay(ctx context.Context, userID int64, day time.Time) ([]model.ChatSession, error)
}

type SummaryStore interface {
	Get(ctx context.Context, userID int64, date string) (*model.Summary, error)
	Save(ctx context.Context, summary *model.Summary) error
}

type MemoryStore interface {
	Get(ctx context.Context, userID int64, date string) (*model.Memory, error)
	Save(ctx context.Context, memory *model.Memory) error
	List(ctx context.Context, userID int64, limit int) ([]model.Memory, error)
}

// StyleStore keeps the explicit style choice of a chat session.
type StyleStore interface {
	// Get returns ErrNotFound when no explicit choice was made.
	Get(ctx context.Context, sessionID int64) (string, error)
	Set(ctx context.Context, sessionID int64, style string) error
}
