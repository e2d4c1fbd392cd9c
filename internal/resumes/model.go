package resumes

import (
	"encoding/json"
	"strings"
	"time"

	"resume-builder/internal/profiles"
	"resume-builder/resume/model"
)

// Status tracks where a resume is in the creation workflow.
type Status string

const (
	StatusPending   Status = "pending"
	StatusGenerated Status = "generated"
	StatusFailed    Status = "failed"
)

// Resume is one generated document. Content is attached once by generation
// and afterwards only changed through explicit edits.
type Resume struct {
	ID              string `json:"id"`
	UserID          string `json:"userId"`
	ProfileID       string `json:"profileId"`
	JobTitle        string `json:"jd_job_title"`
	Employer        string `json:"employer"`
	JobDetails      string `json:"jd_post_details"`
	Status          Status `json:"status"`
	GenerationError string `json:"generationError,omitempty"`
	model.Content
	PreviewImageURL string    `json:"previewImageUrl"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// WithProfile is a resume merged with the profile it was generated from.
type WithProfile struct {
	Resume
	Profile profiles.Profile `json:"profile"`
}

// CreateResult is the response of the creation workflow.
type CreateResult struct {
	ID   string      `json:"id"`
	Data WithProfile `json:"data"`
}

// CreateInput is the job description a resume is generated for.
type CreateInput struct {
	ProfileID  string `json:"profileId" validate:"required"`
	JobTitle   string `json:"jd_job_title" validate:"required,min=3,max=200"`
	Employer   string `json:"employer" validate:"required,min=3,max=200"`
	JobDetails string `json:"jd_post_details" validate:"required,min=3,max=20000"`
}

func (in *CreateInput) trim() {
	in.ProfileID = strings.TrimSpace(in.ProfileID)
	in.JobTitle = strings.TrimSpace(in.JobTitle)
	in.Employer = strings.TrimSpace(in.Employer)
	in.JobDetails = strings.TrimSpace(in.JobDetails)
}

// ListFilter scopes a listing. UserID is always set; ProfileID narrows it.
type ListFilter struct {
	UserID    string
	ProfileID string
	Limit     int
}

// ContentPatch is an explicit edit. Only sections present in the request
// are replaced; a present but empty list clears the section.
type ContentPatch struct {
	PersonalDetails *model.PersonalDetails `json:"personal_details"`
	Jobs            *[]model.Job           `json:"jobs"`
	Education       *[]model.Education     `json:"education"`
	Skills          *[]model.Skill         `json:"skills"`
	Tools           *[]model.Tool          `json:"tools"`
	Languages       *[]model.Language      `json:"languages"`
}

// IsEmpty reports whether no section is present.
func (p ContentPatch) IsEmpty() bool {
	return p.PersonalDetails == nil && p.Jobs == nil && p.Education == nil &&
		p.Skills == nil && p.Tools == nil && p.Languages == nil
}

// Apply returns c with the present sections replaced.
func (p ContentPatch) Apply(c model.Content) model.Content {
	if p.PersonalDetails != nil {
		pd := *p.PersonalDetails
		c.PersonalDetails = &pd
	}
	if p.Jobs != nil {
		c.Jobs = append([]model.Job{}, (*p.Jobs)...)
	}
	if p.Education != nil {
		c.Education = append([]model.Education{}, (*p.Education)...)
	}
	if p.Skills != nil {
		c.Skills = append([]model.Skill{}, (*p.Skills)...)
	}
	if p.Tools != nil {
		c.Tools = append([]model.Tool{}, (*p.Tools)...)
	}
	if p.Languages != nil {
		c.Languages = append([]model.Language{}, (*p.Languages)...)
	}
	return c
}

// Validate applies the edit rules to the present sections.
func (p ContentPatch) Validate() error {
	return p.Apply(model.Content{}).Validate()
}

// columns maps the present sections to their storage column and JSON value.
func (p ContentPatch) columns() (map[string][]byte, error) {
	out := make(map[string][]byte)
	add := func(col string, present bool, v any) error {
		if !present {
			return nil
		}
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		out[col] = b
		return nil
	}
	applied := p.Apply(model.Content{})
	for _, c := range []struct {
		col     string
		present bool
		v       any
	}{
		{"personal_details", p.PersonalDetails != nil, applied.PersonalDetails},
		{"jobs", p.Jobs != nil, applied.Jobs},
		{"education", p.Education != nil, applied.Education},
		{"skills", p.Skills != nil, applied.Skills},
		{"tools", p.Tools != nil, applied.Tools},
		{"languages", p.Languages != nil, applied.Languages},
	} {
		if err := add(c.col, c.present, c.v); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Document is a rendered resume ready for download.
type Document struct {
	FileName    string
	ContentType string
	Data        []byte
}
