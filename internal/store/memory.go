package store

import (
	"context"
	"time"

	"lumen.app/companion/internal/model"
)

type memoryStore struct {
	docs DocumentStore
}

func newMemoryStore(docs DocumentStore) MemoryStore {
	return &memoryStore{docs: docs}
}

func (s *memoryStore) Get(ctx context.Context, userID int64, date string) (*model.Memory, error) {
	var memory model.Memory
	if err := s.docs.FindOne(ctx, Key{Collection: CollectionMemories, DocKey: date, UserID: userID}, &memory); err != nil {
		return nil, err
	}
	return &memory, nil
}

// Save stores the memory for its day and sets memory.ID to the document id.
func (s *memoryStore) Save(ctx context.Context, memory *model.Memory) error {
	if memory.CreatedAt.IsZero() {
		memory.CreatedAt = time.Now().UTC()
	}
	key := Key{Collection: CollectionMemories, DocKey: memory.Date, UserID: memory.UserID}
	id, err := s.docs.InsertOne(ctx, key, memory)
	if err != nil {
		return err
	}
	if memory.ID != id {
		memory.ID = id
		if _, err := s.docs.UpdateOne(ctx, key, map[string]any{"id": id}); err != nil {
			return err
		}
	}
	return nil
}

func (s *memoryStore) List(ctx context.Context, userID int64, limit int) ([]model.Memory, error) {
	docs, err := s.docs.Find(ctx, Query{Collection: CollectionMemories, UserID: userID, Limit: limit})
	if err != nil {
		return nil, err
	}
	return decodeAll[model.Memory](docs)
}
