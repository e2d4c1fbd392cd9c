package users

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("user not found")

// Repo persists users. Upsert keeps the original CreatedAt of an existing row.
type Repo interface {
	Upsert(ctx context.Context, user User, at time.Time) (User, error)
	GetByID(ctx context.Context, userID string) (User, error)
}
