package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"lumen.app/companion/core/db"
)

type documentStore struct {
	q     db.Querier
	newID func() int64
}

func newDocumentStore(q db.Querier, newID func() int64) DocumentStore {
	return &documentStore{q: q, newID: newID}
}

func (s *documentStore) FindOne(ctx context.Context, key Key, out any) error {
	var body []byte
	err := s.q.QueryRow(ctx,
		`SELECT body FROM documents WHERE collection = $1 AND doc_key = $2 AND user_id = $3`,
		key.Collection, key.DocKey, key.UserID,
	).Scan(&body)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("finding %s/%s: %w", key.Collection, key.DocKey, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding %s/%s: %w", key.Collection, key.DocKey, err)
	}
	return nil
}

func (s *documentStore) InsertOne(ctx context.Context, key Key, doc any) (int64, error) {
	body, err := json.Marshal(doc)
	if err != nil {
		return 0, fmt.Errorf("encoding %s document: %w", key.Collection, err)
	}

	var id int64
	err = s.q.QueryRow(ctx, `
		INSERT INTO documents (collection, doc_key, user_id, id, body)
		VALUES ($1, $2, $3, $4, $5::jsonb)
		ON CONFLICT (collection, doc_key, user_id)
		DO UPDATE SET body = EXCLUDED.body, updated_at = now()
		RETURNING id`,
		key.Collection, key.DocKey, key.UserID, s.newID(), string(body),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("inserting %s/%s: %w", key.Collection, key.DocKey, err)
	}
	return id, nil
}

func (s *documentStore) UpdateOne(ctx context.Context, key Key, patch map[string]any) (int64, error) {
	body, err := json.Marshal(patch)
	if err != nil {
		return 0, fmt.Errorf("encoding %s patch: %w", key.Collection, err)
	}

	tag, err := s.q.Exec(ctx, `
		UPDATE documents SET body = body || $4::jsonb, updated_at = now()
		WHERE collection = $1 AND doc_key = $2 AND user_id = $3`,
		key.Collection, key.DocKey, key.UserID, string(body),
	)
	if err != nil {
		return 0, fmt.Errorf("updating %s/%s: %w", key.Collection, key.DocKey, err)
	}
	return tag.RowsAffected(), nil
}

func (s *documentStore) AppendOne(ctx context.Context, key Key, op AppendOp) (int64, error) {
	sql, args, err := buildAppendQuery(key, op)
	if err != nil {
		return 0, err
	}
	tag, err := s.q.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("appending to %s/%s: %w", key.Collection, key.DocKey, err)
	}
	return tag.RowsAffected(), nil
}

// The row lock taken by UPDATE serializes concurrent appends; a waiting
// statement re-reads body after the first one commits.
const appendQuery = `UPDATE documents SET body = jsonb_set(
		body || $5::jsonb || COALESCE(
			(SELECT jsonb_object_agg(d.key, d.value) FROM jsonb_each($6::jsonb) d
			 WHERE COALESCE(body->>d.key, '') = ''),
			'{}'::jsonb),
		ARRAY[$4::text],
		COALESCE(body->$4::text, '[]'::jsonb) || $7::jsonb),
	updated_at = now()
	WHERE collection = $1 AND doc_key = $2 AND user_id = $3`

func buildAppendQuery(key Key, op AppendOp) (string, []any, error) {
	if op.Field == "" {
		return "", nil, fmt.Errorf("append field is required")
	}
	set, err := encodeObject(op.Set)
	if err != nil {
		return "", nil, fmt.Errorf("encoding %s patch: %w", key.Collection, err)
	}
	ifEmpty, err := encodeObject(op.SetIfEmpty)
	if err != nil {
		return "", nil, fmt.Errorf("encoding %s defaults: %w", key.Collection, err)
	}
	items, err := json.Marshal(op.Items)
	if err != nil {
		return "", nil, fmt.Errorf("encoding %s items: %w", key.Collection, err)
	}
	if string(items) == "null" {
		items = []byte("[]")
	}
	return appendQuery, []any{key.Collection, key.DocKey, key.UserID, op.Field, set, ifEmpty, string(items)}, nil
}

func encodeObject(m map[string]any) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	body, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (s *documentStore) Find(ctx context.Context, q Query) ([]json.RawMessage, error) {
	sql, args := buildFindQuery(q)
	rows, err := s.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", q.Collection, err)
	}

	docs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (json.RawMessage, error) {
		var body []byte
		if err := row.Scan(&body); err != nil {
			return nil, err
		}
		return json.RawMessage(body), nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading %s rows: %w", q.Collection, err)
	}
	return docs, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func buildFindQuery(q Query) (string, []any) {
	var sb strings.Builder
	args := []any{q.Collection, q.UserID}
	sb.WriteString("SELECT body FROM documents WHERE collection = $1 AND user_id = $2")

	if q.KeyPrefix != "" {
		args = append(args, likeEscaper.Replace(q.KeyPrefix)+"%")
		fmt.Fprintf(&sb, " AND doc_key LIKE $%d", len(args))
	}
	if !q.CreatedAfter.IsZero() {
		args = append(args, q.CreatedAfter)
		fmt.Fprintf(&sb, " AND created_at >= $%d", len(args))
	}
	if !q.CreatedBefore.IsZero() {
		args = append(args, q.CreatedBefore)
		fmt.Fprintf(&sb, " AND created_at < $%d", len(args))
	}

	if q.Ascending {
		sb.WriteString(" ORDER BY updated_at ASC")
	} else {
		sb.WriteString(" ORDER BY updated_at DESC")
	}

	if q.Limit > 0 {
		args = append(args, q.Limit)
		fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	}
	return sb.String(), args
}

// decodeAll unmarshals raw documents into a typed slice.
func decodeAll[T any](docs []json.RawMessage) ([]T, error) {
	out := make([]T, 0, len(docs))
	for _, raw := range docs {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decoding document: %w", err)
		}
		out = append(out, v)
	}
	return out, nil
}
