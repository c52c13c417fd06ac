package models

import (
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobOpen   JobStatus = "open"
	JobClosed JobStatus = "closed"
	JobPaused JobStatus = "paused"
)

// Categories accepted for a job posting.
var Categories = []string{
	"Technology", "Marketing", "Finance", "Healthcare", "Education",
	"Design", "Engineering", "Sales", "HR", "Other",
}

type Status string

const (
	StatusPending     Status = "pending"
	StatusReviewed    Status = "reviewed"
	StatusShortlisted Status = "shortlisted"
	StatusRejected    Status = "rejected"
	StatusHired       Status = "hired"
)

// Statuses lists every application status in display order.
var Statuses = []Status{StatusPending, StatusReviewed, StatusShortlisted, StatusRejected, StatusHired}

type Role string

const (
	RoleEmployer  Role = "employer"
	RoleApplicant Role = "applicant"
)

// Actor is the authenticated identity handed over by the auth gateway.
type Actor struct {
	ID   uuid.UUID
	Role Role
}

type JobPosting struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	EmployerID     uuid.UUID `gorm:"type:uuid;index;not null" json:"employer_id"`
	Title          string    `gorm:"type:varchar(255);not null" json:"title"`
	Company        string    `gorm:"type:varchar(255)" json:"company"`
	Description    string    `gorm:"type:text" json:"description"`
	Requirements   string    `gorm:"type:text" json:"requirements"`
	Category       string    `gorm:"type:varchar(64)" json:"category"`
	Location       string    `gorm:"type:varchar(255);default:Remote" json:"location"`
	Salary         string    `gorm:"type:varchar(255)" json:"salary,omitempty"`
	Status         JobStatus `gorm:"type:varchar(16);not null;default:open" json:"status"`
	ApplicantCount int       `gorm:"not null;default:0" json:"applicant_count"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type Experience struct {
	Company     string `json:"company"`
	Role        string `json:"role"`
	Duration    string `json:"duration"`
	Description string `json:"description"`
}

type Education struct {
	Institution string `json:"institution"`
	Degree      string `json:"degree"`
	Year        string `json:"year"`
}

// StructuredCV is the AI-generated CV record; stored as JSON next to the application.
type StructuredCV struct {
	Name       string       `json:"name,omitempty"`
	Email      string       `json:"email,omitempty"`
	Phone      string       `json:"phone,omitempty"`
	Summary    string       `json:"summary,omitempty"`
	Experience []Experience `json:"experience,omitempty"`
	Education  []Education  `json:"education,omitempty"`
	Skills     []string     `json:"skills,omitempty"`
}

func (cv StructuredCV) IsZero() bool {
	return cv.Name == "" && cv.Email == "" && cv.Phone == "" && cv.Summary == "" &&
		len(cv.Experience) == 0 && len(cv.Education) == 0 && len(cv.Skills) == 0
}

type Application struct {
	ID          uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	JobID       uuid.UUID    `gorm:"type:uuid;not null;uniqueIndex:idx_application_job_applicant,priority:1;index" json:"job_id"`
	ApplicantID uuid.UUID    `gorm:"type:uuid;not null;uniqueIndex:idx_application_job_applicant,priority:2;index" json:"applicant_id"`
	CoverLetter string       `gorm:"type:text" json:"cover_letter,omitempty"`
	CVText      string       `gorm:"type:text" json:"cv_text,omitempty"`
	CVData      StructuredCV `gorm:"type:text;serializer:json" json:"cv_data"`
	CVPath      string       `gorm:"type:varchar(512)" json:"cv_path,omitempty"`
	Score       int          `gorm:"not null;default:0" json:"score"`
	Analysis    string       `gorm:"type:text" json:"analysis"`
	Rank        *int         `json:"rank"`
	Status      Status       `gorm:"type:varchar(16);not null;default:pending" json:"status"`
	AppliedAt   time.Time    `gorm:"not null;index" json:"applied_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

type EntityType string

const (
	EntityJob         EntityType = "job"
	EntityApplication EntityType = "application"
	EntityUser        EntityType = "user"
)

// Activity is one append-only audit record.
type Activity struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ActorID    uuid.UUID  `gorm:"type:uuid;index" json:"actor_id"`
	EntityID   uuid.UUID  `gorm:"type:uuid" json:"entity_id"`
	EntityType EntityType `gorm:"type:varchar(16)" json:"entity_type"`
	Action     string     `gorm:"type:text;not null" json:"action"`
	Details    string     `gorm:"type:text" json:"details,omitempty"`
	Timestamp  time.Time  `gorm:"index" json:"timestamp"`
}
