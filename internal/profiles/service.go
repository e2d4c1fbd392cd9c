package profiles

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"resume-builder/internal/extract"
	"resume-builder/internal/shared/storage/object"
	"resume-builder/internal/shared/telemetry"
	"resume-builder/internal/shared/util"
	"resume-builder/resume/model"
)

// Service contains business logic for profiles.
type Service struct {
	Repo Repo
	// Store keeps the original file of imported profiles. Optional.
	Store object.Store
	Now   func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Get returns a profile owned by userID. Profiles of other users are
// reported as not found.
func (s *Service) Get(ctx context.Context, userID, id string) (Profile, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Profile{}, ErrNotFound
	}
	p, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return Profile{}, err
	}
	if userID != "" && p.UserID != userID {
		return Profile{}, ErrNotFound
	}
	return p, nil
}

// ListForUser returns the caller's profiles, newest first.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]Profile, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrInvalidInput
	}
	return s.Repo.ListByUser(ctx, userID)
}

// Create validates and stores a new profile.
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (Profile, error) {
	if strings.TrimSpace(userID) == "" {
		return Profile{}, ErrInvalidInput
	}
	in.trim()
	if err := model.ValidateStruct(in); err != nil {
		return Profile{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	now := s.now()
	p := Profile{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      in.Name,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Email:     in.Email,
		Phone:     in.Phone,
		Country:   in.Country,
		City:      in.City,
		Summary:   in.Summary,
		Details:   in.Details,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Repo.Create(ctx, p); err != nil {
		return Profile{}, err
	}
	telemetry.Info("profile.created", map[string]any{"profile_id": p.ID, "user_id": userID})
	return p, nil
}

// Import creates a profile whose source text is extracted from an uploaded
// PDF, DOCX or text file. The original file is kept in object storage when a
// store is configured.
func (s *Service) Import(ctx context.Context, userID, name, fileName, mimeType string, data []byte) (Profile, error) {
	if strings.TrimSpace(userID) == "" {
		return Profile{}, ErrInvalidInput
	}
	cleanName, err := util.SanitizeFileName(fileName)
	if err != nil {
		return Profile{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	text, err := extract.Text(ctx, data, mimeType, cleanName)
	if err != nil {
		if errors.Is(err, extract.ErrUnsupported) {
			return Profile{}, fmt.Errorf("%w: %v", ErrUnsupported, err)
		}
		return Profile{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = strings.TrimSuffix(cleanName, filepath.Ext(cleanName))
	}

	now := s.now()
	p := Profile{
		ID:         uuid.NewString(),
		UserID:     userID,
		Name:       name,
		SourceText: text,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if s.Store != nil {
		key := fmt.Sprintf("imports/%s/%s_%s", util.OwnerKey(userID), p.ID, cleanName)
		contentType := extract.NormalizeMimeType(mimeType, cleanName, data)
		if _, err := s.Store.Put(ctx, key, contentType, bytes.NewReader(data), int64(len(data))); err != nil {
			// The profile is still usable without the original file.
			telemetry.Warn("profile.import.store_failed", map[string]any{"profile_id": p.ID, "error": err})
		}
	}

	if err := s.Repo.Create(ctx, p); err != nil {
		return Profile{}, err
	}
	telemetry.Info("profile.imported", map[string]any{
		"profile_id": p.ID,
		"user_id":    userID,
		"chars":      len(text),
	})
	return p, nil
}
