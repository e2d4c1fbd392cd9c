package resumes

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"resume-builder/resume/model"
)

var resumeColumns = []string{
	"id", "user_id", "profile_id", "jd_job_title", "employer", "jd_post_details",
	"status", "generation_error",
	"personal_details", "jobs", "education", "skills", "tools", "languages",
	"preview_image_url", "created_at", "updated_at",
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts a new resume row.
func (r *PGRepo) Create(ctx context.Context, res Resume) error {
	query, args, err := psql.Insert("resumes").
		Columns("id", "user_id", "profile_id", "jd_job_title", "employer", "jd_post_details", "status", "created_at", "updated_at").
		Values(res.ID, res.UserID, res.ProfileID, res.JobTitle, res.Employer, res.JobDetails, string(res.Status), res.CreatedAt, res.UpdatedAt).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := r.DB.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert resume: %w", err)
	}
	return nil
}

// GetByID returns a resume by id.
func (r *PGRepo) GetByID(ctx context.Context, id string) (Resume, error) {
	query, args, err := psql.Select(resumeColumns...).From("resumes").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return Resume{}, err
	}
	res, err := scanResume(r.DB.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return Resume{}, ErrNotFound
	}
	return res, err
}

// List returns matching resumes, newest first.
func (r *PGRepo) List(ctx context.Context, f ListFilter) ([]Resume, error) {
	q := psql.Select(resumeColumns...).From("resumes")
	if f.UserID != "" {
		q = q.Where(sq.Eq{"user_id": f.UserID})
	}
	if f.ProfileID != "" {
		q = q.Where(sq.Eq{"profile_id": f.ProfileID})
	}
	q = q.OrderBy("created_at DESC", "id DESC")
	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit))
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list resumes: %w", err)
	}
	defer rows.Close()

	out := make([]Resume, 0)
	for rows.Next() {
		res, err := scanResume(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// AttachContent stores generated content on a pending resume.
func (r *PGRepo) AttachContent(ctx context.Context, id string, c model.Content, at time.Time) (Resume, error) {
	set, err := contentColumns(c)
	if err != nil {
		return Resume{}, err
	}
	set["status"] = string(StatusGenerated)
	set["generation_error"] = ""
	set["updated_at"] = at
	return r.updatePending(ctx, id, set)
}

// MarkFailed records a generation failure on a pending resume.
func (r *PGRepo) MarkFailed(ctx context.Context, id, reason string, at time.Time) (Resume, error) {
	return r.updatePending(ctx, id, map[string]any{
		"status":           string(StatusFailed),
		"generation_error": reason,
		"updated_at":       at,
	})
}

// UpdateContent replaces only the sections present in p.
func (r *PGRepo) UpdateContent(ctx context.Context, id string, p ContentPatch, at time.Time) (Resume, error) {
	cols, err := p.columns()
	if err != nil {
		return Resume{}, err
	}
	set := make(map[string]any, len(cols)+1)
	for col, v := range cols {
		set[col] = jsonb(v)
	}
	set["updated_at"] = at
	return r.update(ctx, sq.Eq{"id": id}, set)
}

// SetPreviewImage stores the preview URL.
func (r *PGRepo) SetPreviewImage(ctx context.Context, id, url string, at time.Time) (Resume, error) {
	return r.update(ctx, sq.Eq{"id": id}, map[string]any{
		"preview_image_url": url,
		"updated_at":        at,
	})
}

// updatePending applies set only while the row is pending. When nothing
// matched it tells a missing row apart from a state conflict.
func (r *PGRepo) updatePending(ctx context.Context, id string, set map[string]any) (Resume, error) {
	res, err := r.update(ctx, sq.Eq{"id": id, "status": string(StatusPending)}, set)
	if !errors.Is(err, ErrNotFound) {
		return res, err
	}
	if _, getErr := r.GetByID(ctx, id); getErr != nil {
		return Resume{}, getErr
	}
	return Resume{}, ErrNotPending
}

func (r *PGRepo) update(ctx context.Context, where sq.Eq, set map[string]any) (Resume, error) {
	query, args, err := psql.Update("resumes").
		SetMap(set).
		Where(where).
		Suffix("RETURNING " + strings.Join(resumeColumns, ", ")).
		ToSql()
	if err != nil {
		return Resume{}, err
	}
	res, err := scanResume(r.DB.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return Resume{}, ErrNotFound
	}
	if err != nil {
		return Resume{}, fmt.Errorf("update resume: %w", err)
	}
	return res, nil
}

func contentColumns(c model.Content) (map[string]any, error) {
	set := make(map[string]any, 6)
	for col, v := range map[string]any{
		"personal_details": c.PersonalDetails,
		"jobs":             c.Jobs,
		"education":        c.Education,
		"skills":           c.Skills,
		"tools":            c.Tools,
		"languages":        c.Languages,
	} {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", col, err)
		}
		set[col] = jsonb(b)
	}
	return set, nil
}

// jsonb maps a JSON null to SQL NULL and passes other documents as text.
func jsonb(b []byte) any {
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	return string(b)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanResume(s rowScanner) (Resume, error) {
	var (
		res                                     Resume
		status                                  string
		personal, jobs, edu, skills, tools, lng []byte
	)
	err := s.Scan(
		&res.ID, &res.UserID, &res.ProfileID, &res.JobTitle, &res.Employer, &res.JobDetails,
		&status, &res.GenerationError,
		&personal, &jobs, &edu, &skills, &tools, &lng,
		&res.PreviewImageURL, &res.CreatedAt, &res.UpdatedAt,
	)
	if err != nil {
		return Resume{}, err
	}
	res.Status = Status(status)

	for _, f := range []struct {
		col  string
		raw  []byte
		dest any
	}{
		{"personal_details", personal, &res.PersonalDetails},
		{"jobs", jobs, &res.Jobs},
		{"education", edu, &res.Education},
		{"skills", skills, &res.Skills},
		{"tools", tools, &res.Tools},
		{"languages", lng, &res.Languages},
	} {
		if len(f.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(f.raw, f.dest); err != nil {
			return Resume{}, fmt.Errorf("decode %s: %w", f.col, err)
		}
	}
	return res, nil
}

var _ Repo = (*PGRepo)(nil)
