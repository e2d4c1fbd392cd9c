package resumes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"resume-builder/internal/generation"
	"resume-builder/internal/profiles"
	"resume-builder/internal/shared/events"
	"resume-builder/internal/shared/metrics"
	"resume-builder/internal/shared/storage/cache"
	"resume-builder/internal/shared/storage/object"
	"resume-builder/internal/shared/telemetry"
	"resume-builder/resume/model"
	"resume-builder/resume/render"
)

const (
	defaultCacheTTL          = time.Minute
	defaultGenerationTimeout = 90 * time.Second
	defaultPreviewMaxBytes   = 5 << 20
	defaultPreviewMaxWidth   = 1200
	defaultPreviewMaxPixels  = 25_000_000
	maxStoredErrorLen        = 500
	cleanupTimeout           = 5 * time.Second
)

// ProfileSource resolves profiles visible to a user.
type ProfileSource interface {
	Get(ctx context.Context, userID, id string) (profiles.Profile, error)
}

// PDFExporter prints rendered HTML to PDF.
type PDFExporter interface {
	Export(ctx context.Context, html []byte) ([]byte, error)
}

// PreviewLimits bounds accepted preview images. MaxPixels caps width*height
// before the image is decoded.
type PreviewLimits struct {
	MaxBytes  int
	MaxWidth  int
	MaxPixels int
}

// Service runs the resume workflows. Each request is a sequential chain and
// the service keeps no per-request state.
type Service struct {
	Repo      Repo
	Profiles  ProfileSource
	Generator generation.Generator
	Store     object.Store
	Cache     cache.Cache
	Events    events.Publisher
	PDF       PDFExporter

	CacheTTL          time.Duration
	GenerationTimeout time.Duration
	Preview           PreviewLimits

	Now   func() time.Time
	NewID func() string

	// writes counts confirmed writes. A read-through fill is skipped when a
	// write landed while the read was in flight.
	writes atomic.Uint64
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

func (s *Service) cache() cache.Cache {
	if s.Cache == nil {
		return cache.Noop{}
	}
	return s.Cache
}

// Create validates the job description, loads the profile, inserts a pending
// resume, generates content and attaches it. A generation failure leaves the
// row in place with status failed and is returned as *GenerationError.
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (CreateResult, error) {
	in.trim()
	if err := model.ValidateStruct(in); err != nil {
		return CreateResult{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	profile, err := s.Profiles.Get(ctx, userID, in.ProfileID)
	if err != nil {
		if errors.Is(err, profiles.ErrNotFound) {
			return CreateResult{}, ErrProfileNotFound
		}
		return CreateResult{}, fmt.Errorf("load profile: %w", err)
	}

	now := s.now()
	res := Resume{
		ID:         s.newID(),
		UserID:     userID,
		ProfileID:  profile.ID,
		JobTitle:   in.JobTitle,
		Employer:   in.Employer,
		JobDetails: in.JobDetails,
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.Repo.Create(ctx, res); err != nil {
		return CreateResult{}, fmt.Errorf("insert resume: %w", err)
	}
	s.afterWrite(ctx, res, events.ResumeCreated)

	fields := map[string]any{"resume_id": res.ID, "profile_id": profile.ID, "user_id": userID}
	telemetry.Info("resume.generation.start", fields)
	metrics.IncGenerationStarted()

	started := time.Now()
	content, genErr := s.generate(ctx, generation.Request{
		JobTitle:   in.JobTitle,
		Employer:   in.Employer,
		JobDetails: in.JobDetails,
		Profile:    profile,
	})
	fields["duration_ms"] = time.Since(started).Milliseconds()
	metrics.ObserveGenerationDurationMs(float64(time.Since(started).Milliseconds()))

	if genErr != nil {
		metrics.IncGenerationFailed()
		fields["error"] = genErr
		telemetry.Error("resume.generation.failed", fields)
		s.markFailed(ctx, res.ID, genErr)
		return CreateResult{}, &GenerationError{ResumeID: res.ID, Err: genErr}
	}

	content.EnsureIDs()
	updated, err := s.Repo.AttachContent(ctx, res.ID, content, s.now())
	if err != nil {
		metrics.IncGenerationFailed()
		fields["error"] = err
		telemetry.Error("resume.generation.failed", fields)
		s.markFailed(ctx, res.ID, fmt.Errorf("store generated content: %w", err))
		return CreateResult{}, fmt.Errorf("attach content: %w", err)
	}
	s.afterWrite(ctx, updated, events.ResumeGenerated)
	metrics.IncGenerationCompleted()
	telemetry.Info("resume.generation.done", fields)

	return CreateResult{ID: updated.ID, Data: WithProfile{Resume: updated, Profile: profile}}, nil
}

func (s *Service) generate(ctx context.Context, req generation.Request) (model.Content, error) {
	if s.Generator == nil {
		return model.Content{}, generation.ErrNotConfigured
	}
	timeout := s.GenerationTimeout
	if timeout <= 0 {
		timeout = defaultGenerationTimeout
	}
	genCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return s.Generator.Generate(genCtx, req)
}

// markFailed records the failure even when the request context is done, so
// the row never stays pending after the caller saw an error.
func (s *Service) markFailed(ctx context.Context, id string, cause error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	reason := truncateUTF8(cause.Error(), maxStoredErrorLen)
	failed, err := s.Repo.MarkFailed(ctx, id, reason, s.now())
	if err != nil {
		telemetry.Error("resume.mark_failed.error", map[string]any{"resume_id": id, "error": err})
		return
	}
	s.afterWrite(ctx, failed, events.ResumeGenerationFailed)
}

// truncateUTF8 returns valid UTF-8 of at most n bytes, never splitting a rune.
func truncateUTF8(s string, n int) string {
	s = strings.ToValidUTF8(s, "\uFFFD")
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// Get returns a resume owned by userID. Missing and foreign resumes are both
// ErrNotFound.
func (s *Service) Get(ctx context.Context, userID, id string) (Resume, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Resume{}, ErrNotFound
	}

	var res Resume
	if s.readCache(ctx, resumeKey(id), &res) {
		return owned(res, userID)
	}
	seen := s.writes.Load()
	res, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return Resume{}, err
	}
	s.fillCache(ctx, seen, resumeKey(id), res)
	return owned(res, userID)
}

func owned(res Resume, userID string) (Resume, error) {
	if res.UserID != userID {
		return Resume{}, ErrNotFound
	}
	return res, nil
}

// List returns the caller's resumes, newest first, optionally narrowed to
// one of their profiles.
func (s *Service) List(ctx context.Context, userID, profileID string) ([]Resume, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrInvalidInput
	}
	profileID = strings.TrimSpace(profileID)
	key := userListKey(userID)
	if profileID != "" {
		if _, err := s.Profiles.Get(ctx, userID, profileID); err != nil {
			if errors.Is(err, profiles.ErrNotFound) {
				return nil, ErrProfileNotFound
			}
			return nil, err
		}
		key = profileListKey(profileID)
	}

	var out []Resume
	if s.readCache(ctx, key, &out) {
		return out, nil
	}
	seen := s.writes.Load()
	out, err := s.Repo.List(ctx, ListFilter{UserID: userID, ProfileID: profileID})
	if err != nil {
		return nil, err
	}
	s.fillCache(ctx, seen, key, out)
	return out, nil
}

// Update replaces the sections present in patch.
func (s *Service) Update(ctx context.Context, userID, id string, patch ContentPatch) (Resume, error) {
	if patch.IsEmpty() {
		return Resume{}, fmt.Errorf("%w: no sections provided", ErrInvalidInput)
	}
	if err := patch.Validate(); err != nil {
		return Resume{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if _, err := s.ownedFromRepo(ctx, userID, id); err != nil {
		return Resume{}, err
	}

	if patch.Jobs != nil || patch.Education != nil || patch.Skills != nil || patch.Tools != nil || patch.Languages != nil {
		c := patch.Apply(model.Content{})
		c.EnsureIDs()
		patch = withIDs(patch, c)
	}
	updated, err := s.Repo.UpdateContent(ctx, id, patch, s.now())
	if err != nil {
		return Resume{}, err
	}
	s.afterWrite(ctx, updated, events.ResumeUpdated)
	return updated, nil
}

func withIDs(p ContentPatch, c model.Content) ContentPatch {
	if p.Jobs != nil {
		p.Jobs = &c.Jobs
	}
	if p.Education != nil {
		p.Education = &c.Education
	}
	if p.Skills != nil {
		p.Skills = &c.Skills
	}
	if p.Tools != nil {
		p.Tools = &c.Tools
	}
	if p.Languages != nil {
		p.Languages = &c.Languages
	}
	return p
}

// UploadPreview stores a normalized preview image and records its URL. The
// resume is left untouched when the upload fails.
func (s *Service) UploadPreview(ctx context.Context, userID, id string, img ImagePayload) (Resume, error) {
	limits := s.previewLimits()
	data, err := img.Decode(limits.MaxBytes, limits.MaxPixels)
	if err != nil {
		return Resume{}, err
	}
	if _, err := s.ownedFromRepo(ctx, userID, id); err != nil {
		return Resume{}, err
	}
	png, err := normalizePreview(data, limits.MaxWidth)
	if err != nil {
		return Resume{}, err
	}
	if s.Store == nil {
		return Resume{}, fmt.Errorf("%w: no object store configured", ErrUploadFailed)
	}

	key := fmt.Sprintf("previews/%s/%s.png", id, uuid.NewString())
	obj, err := s.Store.Put(ctx, key, "image/png", bytes.NewReader(png), int64(len(png)))
	if err != nil {
		metrics.IncPreviewUploadFailed()
		telemetry.Error("resume.preview.upload_failed", map[string]any{"resume_id": id, "error": err})
		return Resume{}, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	updated, err := s.Repo.SetPreviewImage(ctx, id, obj.URL, s.now())
	if err != nil {
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
		defer cancel()
		if delErr := s.Store.Delete(cleanupCtx, obj.Key); delErr != nil {
			telemetry.Warn("resume.preview.cleanup_failed", map[string]any{"resume_id": id, "key": obj.Key, "error": delErr})
		}
		return Resume{}, err
	}
	metrics.IncPreviewUploaded()
	s.afterWrite(ctx, updated, events.ResumePreviewUpdated)
	return updated, nil
}

func (s *Service) previewLimits() PreviewLimits {
	l := s.Preview
	if l.MaxBytes <= 0 {
		l.MaxBytes = defaultPreviewMaxBytes
	}
	if l.MaxWidth <= 0 {
		l.MaxWidth = defaultPreviewMaxWidth
	}
	if l.MaxPixels <= 0 {
		l.MaxPixels = defaultPreviewMaxPixels
	}
	return l
}

// RenderDocument renders a resume as html, docx or pdf.
func (s *Service) RenderDocument(ctx context.Context, userID, id, format string) (Document, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = "html"
	}
	if format != "html" && format != "docx" && format != "pdf" {
		return Document{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if format == "pdf" && s.PDF == nil {
		return Document{}, fmt.Errorf("%w: pdf export is not configured", ErrUnsupportedFormat)
	}

	res, err := s.Get(ctx, userID, id)
	if err != nil {
		return Document{}, err
	}
	layout := render.Layout(res.Content)
	name := fileStem(res)

	switch format {
	case "docx":
		data, err := render.DOCX(layout)
		if err != nil {
			return Document{}, err
		}
		return Document{
			FileName:    name + ".docx",
			ContentType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
			Data:        data,
		}, nil
	default:
		html, err := render.HTML(layout)
		if err != nil {
			return Document{}, err
		}
		if format == "html" {
			return Document{FileName: name + ".html", ContentType: "text/html; charset=utf-8", Data: html}, nil
		}
		pdf, err := s.PDF.Export(ctx, html)
		if err != nil {
			return Document{}, fmt.Errorf("export pdf: %w", err)
		}
		return Document{FileName: name + ".pdf", ContentType: "application/pdf", Data: pdf}, nil
	}
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

func fileStem(res Resume) string {
	stem := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(res.JobTitle+" "+res.Employer), "-"), "-")
	if stem == "" {
		return "resume-" + res.ID
	}
	if len(stem) > 80 {
		stem = strings.TrimRight(stem[:80], "-")
	}
	return stem
}

func (s *Service) ownedFromRepo(ctx context.Context, userID, id string) (Resume, error) {
	res, err := s.Repo.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return Resume{}, err
	}
	return owned(res, userID)
}

// afterWrite drops every cached read the confirmed write affected, then
// announces it. Both are best effort.
func (s *Service) afterWrite(ctx context.Context, res Resume, eventType string) {
	s.writes.Add(1)
	if err := s.cache().Delete(ctx, affectedKeys(res)...); err != nil {
		telemetry.Warn("resume.cache.invalidate_failed", map[string]any{"resume_id": res.ID, "error": err})
	}
	if s.Events == nil {
		return
	}
	ev := events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		ResumeID:  res.ID,
		ProfileID: res.ProfileID,
		At:        s.now(),
	}
	if err := s.Events.Publish(ctx, ev); err != nil {
		telemetry.Warn("resume.event.publish_failed", map[string]any{"resume_id": res.ID, "type": eventType, "error": err})
	}
}

func (s *Service) readCache(ctx context.Context, key string, dest any) bool {
	raw, err := s.cache().Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			telemetry.Warn("resume.cache.read_failed", map[string]any{"key": key, "error": err})
		}
		metrics.IncCacheMiss()
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		metrics.IncCacheMiss()
		return false
	}
	metrics.IncCacheHit()
	return true
}

// fillCache stores a repository read unless a write was confirmed after seen
// was taken; the value may predate that write's invalidation.
func (s *Service) fillCache(ctx context.Context, seen uint64, key string, v any) {
	if s.writes.Load() != seen {
		return
	}
	s.writeCache(ctx, key, v)
}

func (s *Service) writeCache(ctx context.Context, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	ttl := s.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	if err := s.cache().Set(ctx, key, raw, ttl); err != nil {
		telemetry.Warn("resume.cache.write_failed", map[string]any{"key": key, "error": err})
	}
}
