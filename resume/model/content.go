// Package model defines the structured resume content shared by generation,
// storage and rendering.
package model

import (
	"strings"

	"github.com/google/uuid"
)

// Content is the structured body of a resume. Every section is optional.
type Content struct {
	PersonalDetails *PersonalDetails `json:"personal_details"`
	Jobs            []Job            `json:"jobs" validate:"omitempty,dive"`
	Education       []Education      `json:"education" validate:"omitempty,dive"`
	Skills          []Skill          `json:"skills" validate:"omitempty,dive"`
	Tools           []Tool           `json:"tools" validate:"omitempty,dive"`
	Languages       []Language       `json:"languages" validate:"omitempty,dive"`
}

// PersonalDetails is the header and contact block.
type PersonalDetails struct {
	ResumeJobTitle string `json:"resume_job_title" validate:"omitempty,min=3"`
	FirstName      string `json:"fname" validate:"omitempty,min=3"`
	LastName       string `json:"lname" validate:"omitempty,min=1"`
	Email          string `json:"email" validate:"omitempty,email"`
	Phone          string `json:"phone"`
	Country        string `json:"country"`
	City           string `json:"city"`
	Summary        string `json:"summary" validate:"omitempty,min=3"`
}

// Job is a work experience entry.
type Job struct {
	ID          string `json:"id,omitempty"`
	JobTitle    string `json:"job_title" validate:"required,min=3"`
	Employer    string `json:"employer" validate:"required,min=3"`
	Description string `json:"description"`
	StartDate   string `json:"start_date" validate:"omitempty,ymd"`
	EndDate     string `json:"end_date" validate:"omitempty,ymd"`
	Country     string `json:"country"`
	City        string `json:"city"`
}

// Education is a school entry.
type Education struct {
	ID          string `json:"id,omitempty"`
	School      string `json:"school" validate:"required,min=3"`
	Degree      string `json:"degree" validate:"omitempty,min=3"`
	Field       string `json:"field" validate:"omitempty,min=3"`
	Description string `json:"description"`
	StartDate   string `json:"start_date" validate:"omitempty,ymd"`
	EndDate     string `json:"end_date" validate:"omitempty,ymd"`
	Country     string `json:"country"`
	City        string `json:"city"`
}

// Skill is a named skill with an optional proficiency.
type Skill struct {
	ID               string `json:"id,omitempty"`
	Name             string `json:"skill_name" validate:"required"`
	ProficiencyLevel string `json:"proficiency_level"`
}

// Tool is a named tool with an optional proficiency.
type Tool struct {
	ID               string `json:"id,omitempty"`
	Name             string `json:"tool_name" validate:"required"`
	ProficiencyLevel string `json:"proficiency_level"`
}

// Language is a spoken language with an optional proficiency.
type Language struct {
	ID               string `json:"id,omitempty"`
	Name             string `json:"lang_name" validate:"required"`
	ProficiencyLevel string `json:"proficiency_level"`
}

// IsEmpty reports whether no section carries data.
func (c Content) IsEmpty() bool {
	return c.PersonalDetails.IsEmpty() &&
		len(c.Jobs) == 0 &&
		len(c.Education) == 0 &&
		len(c.Skills) == 0 &&
		len(c.Tools) == 0 &&
		len(c.Languages) == 0
}

// IsEmpty reports whether every field is blank. A nil receiver is empty.
func (p *PersonalDetails) IsEmpty() bool {
	if p == nil {
		return true
	}
	return strings.TrimSpace(p.ResumeJobTitle+p.FirstName+p.LastName+p.Email+p.Phone+p.Country+p.City+p.Summary) == ""
}

// FullName joins first and last name.
func (p *PersonalDetails) FullName() string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(strings.TrimSpace(p.FirstName) + " " + strings.TrimSpace(p.LastName))
}

// Location renders "city, country" with whichever parts are present.
func Location(city, country string) string {
	city, country = strings.TrimSpace(city), strings.TrimSpace(country)
	switch {
	case city != "" && country != "":
		return city + ", " + country
	case city != "":
		return city
	default:
		return country
	}
}

// HasSummary reports whether a non-blank summary is present.
func (c Content) HasSummary() bool {
	return c.PersonalDetails != nil && strings.TrimSpace(c.PersonalDetails.Summary) != ""
}

// EnsureIDs assigns ids to list entries that lack one.
func (c *Content) EnsureIDs() {
	for i := range c.Jobs {
		if c.Jobs[i].ID == "" {
			c.Jobs[i].ID = uuid.NewString()
		}
	}
	for i := range c.Education {
		if c.Education[i].ID == "" {
			c.Education[i].ID = uuid.NewString()
		}
	}
	for i := range c.Skills {
		if c.Skills[i].ID == "" {
			c.Skills[i].ID = uuid.NewString()
		}
	}
	for i := range c.Tools {
		if c.Tools[i].ID == "" {
			c.Tools[i].ID = uuid.NewString()
		}
	}
	for i := range c.Languages {
		if c.Languages[i].ID == "" {
			c.Languages[i].ID = uuid.NewString()
		}
	}
}
