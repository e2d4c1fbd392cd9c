package resumes

import (
	"context"
	"sort"
	"sync"
	"time"

	"resume-builder/resume/model"
)

// MemoryRepo is an in-memory implementation of Repo.
type MemoryRepo struct {
	mu   sync.RWMutex
	data map[string]Resume
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{data: make(map[string]Resume)}
}

func (r *MemoryRepo) Create(ctx context.Context, res Resume) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.data[res.ID]; exists {
		return ErrInvalidInput
	}
	r.data[res.ID] = res
	return nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, id string) (Resume, error) {
	if err := ctx.Err(); err != nil {
		return Resume{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.data[id]
	if !ok {
		return Resume{}, ErrNotFound
	}
	return res, nil
}

// List returns matching resumes, newest first.
func (r *MemoryRepo) List(ctx context.Context, f ListFilter) ([]Resume, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := make([]Resume, 0)
	for _, res := range r.data {
		if f.UserID != "" && res.UserID != f.UserID {
			continue
		}
		if f.ProfileID != "" && res.ProfileID != f.ProfileID {
			continue
		}
		out = append(out, res)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *MemoryRepo) AttachContent(ctx context.Context, id string, c model.Content, at time.Time) (Resume, error) {
	return r.mutate(ctx, id, func(res *Resume) error {
		if res.Status != StatusPending {
			return ErrNotPending
		}
		res.Content = c
		res.Status = StatusGenerated
		res.GenerationError = ""
		res.UpdatedAt = at
		return nil
	})
}

func (r *MemoryRepo) MarkFailed(ctx context.Context, id, reason string, at time.Time) (Resume, error) {
	return r.mutate(ctx, id, func(res *Resume) error {
		if res.Status != StatusPending {
			return ErrNotPending
		}
		res.Status = StatusFailed
		res.GenerationError = reason
		res.UpdatedAt = at
		return nil
	})
}

func (r *MemoryRepo) UpdateContent(ctx context.Context, id string, p ContentPatch, at time.Time) (Resume, error) {
	return r.mutate(ctx, id, func(res *Resume) error {
		res.Content = p.Apply(res.Content)
		res.UpdatedAt = at
		return nil
	})
}

func (r *MemoryRepo) SetPreviewImage(ctx context.Context, id, url string, at time.Time) (Resume, error) {
	return r.mutate(ctx, id, func(res *Resume) error {
		res.PreviewImageURL = url
		res.UpdatedAt = at
		return nil
	})
}

func (r *MemoryRepo) mutate(ctx context.Context, id string, fn func(*Resume) error) (Resume, error) {
	if err := ctx.Err(); err != nil {
		return Resume{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.data[id]
	if !ok {
		return Resume{}, ErrNotFound
	}
	if err := fn(&res); err != nil {
		return Resume{}, err
	}
	r.data[id] = res
	return res, nil
}

var _ Repo = (*MemoryRepo)(nil)
