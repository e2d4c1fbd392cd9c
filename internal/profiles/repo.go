package profiles

import "context"

// Repo defines persistence operations for profiles.
type Repo interface {
	Create(ctx context.Context, p Profile) error
	GetByID(ctx context.Context, id string) (Profile, error)
	ListByUser(ctx context.Context, userID string) ([]Profile, error)
}
