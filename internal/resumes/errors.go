package resumes

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrNotFound          = errors.New("resume not found")
	ErrProfileNotFound   = errors.New("profile not found")
	ErrNotPending        = errors.New("resume is not pending")
	ErrGenerationFailed  = errors.New("resume generation failed")
	ErrUploadFailed      = errors.New("preview upload failed")
	ErrInvalidImage      = errors.New("invalid image")
	ErrUnsupportedFormat = errors.New("unsupported document format")
)

// GenerationError reports a failed generation. The resume row created before
// generation is kept with status failed and can be fetched by ResumeID.
type GenerationError struct {
	ResumeID string
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generate resume %s: %v", e.ResumeID, e.Err)
}

func (e *GenerationError) Unwrap() []error {
	return []error{ErrGenerationFailed, e.Err}
}
