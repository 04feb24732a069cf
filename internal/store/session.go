package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"lumen.app/companion/core/db"
	"lumen.app/companion/internal/model"
)

type sessionStore struct {
	q db.Querier
}

func newSessionStore(q db.Querier) SessionStore {
	return &sessionStore{q: q}
}

func (s *sessionStore) Create(ctx context.Context, session *model.Session) error {
	return s.q.QueryRow(ctx, `
		INSERT INTO sessions (id, user_id, expires_at)
		VALUES ($1, $2, $3)
		RETURNING created_at`,
		session.ID, session.UserID, session.ExpiresAt,
	).Scan(&session.CreatedAt)
}

// GetValid returns the session only if it has not expired.
func (s *sessionStore) GetValid(ctx context.Context, id int64) (*model.Session, error) {
	var session model.Session
	err := s.q.QueryRow(ctx, `
		SELECT id, user_id, expires_at, created_at FROM sessions
		WHERE id = $1 AND expires_at > now()`, id,
	).Scan(&session.ID, &session.UserID, &session.ExpiresAt, &session.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &session, nil
}

func (s *sessionStore) Delete(ctx context.Context, id int64) error {
	_, err := s.q.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return err
}

func (s *sessionStore) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := s.q.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= now()`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
