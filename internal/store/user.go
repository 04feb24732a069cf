package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"lumen.app/companion/core/db"
	"lumen.app/companion/internal/model"
)

const userColumns = `id, name, email, avatar_url, COALESCE(provider_subject, ''), created_at, updated_at`

type userStore struct {
	q db.Querier
}

func newUserStore(q db.Querier) UserStore {
	return &userStore{q: q}
}

func (s *userStore) GetByID(ctx context.Context, id int64) (*model.User, error) {
	return scanUser(s.q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (s *userStore) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return scanUser(s.q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

func (s *userStore) Upsert(ctx context.Context, user *model.User) error {
	row, err := scanUser(s.q.QueryRow(ctx, `
		INSERT INTO users (id, name, email, avatar_url, provider_subject)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''))
		ON CONFLICT (email) DO UPDATE SET
			name = EXCLUDED.name,
			avatar_url = EXCLUDED.avatar_url,
			provider_subject = COALESCE(EXCLUDED.provider_subject, users.provider_subject),
			updated_at = now()
		RETURNING `+userColumns,
		user.ID, user.Name, user.Email, user.AvatarURL, user.ProviderSubject,
	))
	if err != nil {
		return err
	}
	*user = *row
	return nil
}

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.AvatarURL, &u.ProviderSubject, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}
