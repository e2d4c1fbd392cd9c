package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

var userColumns = []string{"id", "email", "name", "picture_url", "provider", "created_at", "updated_at"}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type PGRepo struct {
	DB *sql.DB
}

func (r *PGRepo) Upsert(ctx context.Context, user User, at time.Time) (User, error) {
	query, args, err := psql.Insert("users").
		Columns(userColumns...).
		Values(user.ID, user.Email, user.Name, user.PictureURL, user.Provider, at, at).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
  email = EXCLUDED.email,
  name = EXCLUDED.name,
  picture_url = EXCLUDED.picture_url,
  provider = EXCLUDED.provider,
  updated_at = EXCLUDED.updated_at
RETURNING id, email, name, picture_url, provider, created_at, updated_at`).
		ToSql()
	if err != nil {
		return User{}, err
	}
	out, err := scanUser(r.DB.QueryRowContext(ctx, query, args...))
	if err != nil {
		return User{}, fmt.Errorf("upsert user: %w", err)
	}
	return out, nil
}

func (r *PGRepo) GetByID(ctx context.Context, userID string) (User, error) {
	query, args, err := psql.Select(userColumns...).From("users").Where(sq.Eq{"id": userID}).Limit(1).ToSql()
	if err != nil {
		return User{}, err
	}
	user, err := scanUser(r.DB.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return user, err
}

func scanUser(row *sql.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PictureURL, &u.Provider, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

var _ Repo = (*PGRepo)(nil)
