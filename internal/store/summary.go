package store

import (
	"context"
	"time"

	"lumen.app/companion/internal/model"
)

type summaryStore struct {
	docs DocumentStore
}

func newSummaryStore(docs DocumentStore) SummaryStore {
	return &summaryStore{docs: docs}
}

func (s *summaryStore) Get(ctx context.Context, userID int64, date string) (*model.Summary, error) {
	var summary model.Summary
	if err := s.docs.FindOne(ctx, Key{Collection: CollectionSummaries, DocKey: date, UserID: userID}, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// Save replaces any summary already stored for the same day.
func (s *summaryStore) Save(ctx context.Context, summary *model.Summary) error {
	if summary.CreatedAt.IsZero() {
		summary.CreatedAt = time.Now().UTC()
	}
	_, err := s.docs.InsertOne(ctx, Key{Collection: CollectionSummaries, DocKey: summary.Date, UserID: summary.UserID}, summary)
	return err
}
