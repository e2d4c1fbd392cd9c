package resumes

import (
	"context"
	"time"

	"resume-builder/resume/model"
)

// Repo defines persistence operations for resumes.
type Repo interface {
	Create(ctx context.Context, r Resume) error
	GetByID(ctx context.Context, id string) (Resume, error)
	List(ctx context.Context, f ListFilter) ([]Resume, error)
	// AttachContent stores generated content. It only succeeds while the
	// resume is pending and returns ErrNotPending otherwise.
	AttachContent(ctx context.Context, id string, c model.Content, at time.Time) (Resume, error)
	// MarkFailed records a generation failure on a pending resume.
	MarkFailed(ctx context.Context, id, reason string, at time.Time) (Resume, error)
	UpdateContent(ctx context.Context, id string, p ContentPatch, at time.Time) (Resume, error)
	SetPreviewImage(ctx context.Context, id, url string, at time.Time) (Resume, error)
}
