// Package cvgen is the boundary to the CV drafting capability.
//
// A Generator turns a job posting and what an applicant tells about
// themselves into a CV tailored to that job: a structured record plus a
// plain-text rendition. The applicant reviews the draft and submits it like
// any other CV; nothing here is stored.
package cvgen

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/moverq1337/hireboard/internal/apperrors"
	"github.com/moverq1337/hireboard/internal/models"
)

const DefaultTimeout = 60 * time.Second

// UserInfo is the free-form input of the applicant.
type UserInfo struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	Experience     string `json:"experience"`
	Education      string `json:"education"`
	Skills         string `json:"skills"`
	AdditionalInfo string `json:"additionalInfo"`
}

// Normalize trims every field.
func (u UserInfo) Normalize() UserInfo {
	return UserInfo{
		Name:           strings.TrimSpace(u.Name),
		Email:          strings.TrimSpace(u.Email),
		Phone:          strings.TrimSpace(u.Phone),
		Experience:     strings.TrimSpace(u.Experience),
		Education:      strings.TrimSpace(u.Education),
		Skills:         strings.TrimSpace(u.Skills),
		AdditionalInfo: strings.TrimSpace(u.AdditionalInfo),
	}
}

// Validate requires a name and a well-formed email.
func (u UserInfo) Validate() error {
	if u.Name == "" {
		return apperrors.Validation("name", "is required")
	}
	if u.Email == "" {
		return apperrors.Validation("email", "is required")
	}
	if _, err := mail.ParseAddress(u.Email); err != nil {
		return apperrors.Validation("email", "must be an email address")
	}
	return nil
}

type Request struct {
	JobTitle        string
	JobDescription  string
	JobRequirements string
	User            UserInfo
}

// Result is a drafted CV. Text may be empty when the generator only returned
// the structured record.
type Result struct {
	CV   models.StructuredCV `json:"cvData"`
	Text string              `json:"cvText"`
}

type Generator interface {
	Generate(ctx context.Context, req Request) (Result, error)
}

// Func adapts a plain function to Generator.
type Func func(ctx context.Context, req Request) (Result, error)

func (f Func) Generate(ctx context.Context, req Request) (Result, error) {
	return f(ctx, req)
}
