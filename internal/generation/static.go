package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"resume-builder/resume/model"
)

// StaticGenerator builds content from the profile alone, without calling a
// provider. Sections found in the profile's details JSON are carried over.
type StaticGenerator struct{}

func (StaticGenerator) Generate(ctx context.Context, req Request) (model.Content, error) {
	if err := ctx.Err(); err != nil {
		return model.Content{}, err
	}
	p := req.Profile

	var content model.Content
	if len(p.Details) > 0 {
		// Details are free-form; only the parts shaped like content are used.
		_ = json.Unmarshal(p.Details, &content)
	}

	pd := model.PersonalDetails{}
	if content.PersonalDetails != nil {
		pd = *content.PersonalDetails
	}
	pd.ResumeJobTitle = strings.TrimSpace(req.JobTitle)
	fillBlank(&pd.FirstName, p.FirstName)
	fillBlank(&pd.LastName, p.LastName)
	fillBlank(&pd.Email, p.Email)
	fillBlank(&pd.Phone, p.Phone)
	fillBlank(&pd.Country, p.Country)
	fillBlank(&pd.City, p.City)
	fillBlank(&pd.Summary, p.Summary)
	if strings.TrimSpace(pd.Summary) == "" {
		pd.Summary = fmt.Sprintf("%s candidate applying to %s.", strings.TrimSpace(req.JobTitle), strings.TrimSpace(req.Employer))
	}
	content.PersonalDetails = &pd
	content.EnsureIDs()
	return content, nil
}

func fillBlank(dst *string, v string) {
	if strings.TrimSpace(*dst) == "" {
		*dst = strings.TrimSpace(v)
	}
}

var _ Generator = StaticGenerator{}
