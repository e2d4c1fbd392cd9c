// Package generation produces structured resume content from a job
// description and a profile.
package generation

import (
	"context"
	"errors"

	"resume-builder/internal/profiles"
	"resume-builder/resume/model"
)

var (
	// ErrNotConfigured is returned when no provider is wired.
	ErrNotConfigured = errors.New("generation provider not configured")
	// ErrInvalidOutput is returned when the provider answered with content
	// that does not match the resume content shape.
	ErrInvalidOutput = errors.New("generation output invalid")
)

// Request is the input of a single generation call.
type Request struct {
	JobTitle   string
	Employer   string
	JobDetails string
	Profile    profiles.Profile
}

// Generator turns a job description and a profile into resume content.
// Implementations may be slow; callers bound them with a context deadline.
type Generator interface {
	Generate(ctx context.Context, req Request) (model.Content, error)
}

// Unconfigured fails every call with ErrNotConfigured.
type Unconfigured struct{}

func (Unconfigured) Generate(ctx context.Context, _ Request) (model.Content, error) {
	if err := ctx.Err(); err != nil {
		return model.Content{}, err
	}
	return model.Content{}, ErrNotConfigured
}

var _ Generator = Unconfigured{}
