package profiles

import (
	"encoding/json"
	"strings"
	"time"
)

// Profile is the user-owned identity and background consumed by generation.
type Profile struct {
	ID         string          `json:"id"`
	UserID     string          `json:"userId"`
	Name       string          `json:"name"`
	FirstName  string          `json:"firstName"`
	LastName   string          `json:"lastName"`
	Email      string          `json:"email"`
	Phone      string          `json:"phone"`
	Country    string          `json:"country"`
	City       string          `json:"city"`
	Summary    string          `json:"summary"`
	Details    json.RawMessage `json:"details,omitempty"`
	SourceText string          `json:"sourceText,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// DisplayName returns the profile label, falling back to the person's name.
func (p Profile) DisplayName() string {
	if name := strings.TrimSpace(p.Name); name != "" {
		return name
	}
	return strings.TrimSpace(strings.TrimSpace(p.FirstName) + " " + strings.TrimSpace(p.LastName))
}

// CreateInput is the accepted shape for a new profile.
type CreateInput struct {
	Name      string          `json:"name" validate:"required,min=2,max=120"`
	FirstName string          `json:"firstName" validate:"omitempty,max=80"`
	LastName  string          `json:"lastName" validate:"omitempty,max=80"`
	Email     string          `json:"email" validate:"omitempty,email"`
	Phone     string          `json:"phone" validate:"omitempty,max=40"`
	Country   string          `json:"country" validate:"omitempty,max=80"`
	City      string          `json:"city" validate:"omitempty,max=80"`
	Summary   string          `json:"summary" validate:"omitempty,max=4000"`
	Details   json.RawMessage `json:"details"`
}

func (in *CreateInput) trim() {
	in.Name = strings.TrimSpace(in.Name)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = strings.TrimSpace(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Country = strings.TrimSpace(in.Country)
	in.City = strings.TrimSpace(in.City)
	in.Summary = strings.TrimSpace(in.Summary)
}
