package store

import (
	"github.com/redis/go-redis/v9"

	"lumen.app/companion/common/id"
	"lumen.app/companion/core/db"
)

type Stores struct {
	q     db.Querier
	redis *redis.Client
	docs  DocumentStore
}

// NewStores wires every store over one querier. redisClient may be nil for
// processes that never touch style choices.
func NewStores(q db.Querier, redisClient *redis.Client) *Stores {
	return &Stores{
		q:     q,
		redis: redisClient,
		docs:  newDocumentStore(q, id.New),
	}
}

func (s *Stores) Documents() DocumentStore {
	return s.docs
}

func (s *Stores) Users() UserStore {
	return newUserStore(s.q)
}

func (s *Stores) Sessions() SessionStore {
	return newSessionStore(s.q)
}

func (s *Stores) ChatSessions() ChatSessionStore {
	return newChatSessionStore(s.docs)
}

func (s *Stores) Summaries() SummaryStore {
	return newSummaryStore(s.docs)
}

func (s *Stores) Memories() MemoryStore {
	return newMemoryStore(s.docs)
}

func (s *Stores) Styles() StyleStore {
	return newRedisStyleStore(s.redis)
}
