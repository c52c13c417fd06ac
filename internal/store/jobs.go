package store

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/moverq1337/hireboard/internal/apperrors"
	"github.com/moverq1337/hireboard/internal/models"
)

// ParseJobStatus normalizes raw to one of open, closed, paused.
func ParseJobStatus(raw string) (models.JobStatus, error) {
	st := models.JobStatus(strings.ToLower(strings.TrimSpace(raw)))
	switch st {
	case models.JobOpen, models.JobClosed, models.JobPaused:
		return st, nil
	}
	return "", apperrors.Validation("status", "must be one of open, closed, paused")
}

func normalizeCategory(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "Other", nil
	}
	for _, c := range models.Categories {
		if strings.EqualFold(c, raw) {
			return c, nil
		}
	}
	return "", apperrors.Validation("category", "unknown category "+raw)
}

// CreateJob validates and inserts job, filling ID, defaults and timestamps.
func (s *Store) CreateJob(ctx context.Context, job *models.JobPosting) error {
	job.Title = strings.TrimSpace(job.Title)
	if job.Title == "" {
		return apperrors.Validation("title", "is required")
	}
	if job.EmployerID == uuid.Nil {
		return apperrors.Validation("employer_id", "is required")
	}
	category, err := normalizeCategory(job.Category)
	if err != nil {
		return err
	}
	job.Category = category
	if job.Status == "" {
		job.Status = models.JobOpen
	} else if job.Status, err = ParseJobStatus(string(job.Status)); err != nil {
		return err
	}
	if strings.TrimSpace(job.Location) == "" {
		job.Location = "Remote"
	}

	job.ID = uuid.New()
	job.ApplicantCount = 0
	job.CreatedAt = s.now()
	job.UpdatedAt = job.CreatedAt

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(job).Error; err != nil {
			return apperrors.Wrap(err, "insert job")
		}
		return s.appendActivity(tx, job.EmployerID, job.ID, models.EntityJob, "Posted job "+job.Title, job.Company)
	})
}

func (s *Store) GetJob(ctx context.Context, id uuid.UUID) (*models.JobPosting, error) {
	var job models.JobPosting
	err := s.db.WithContext(ctx).First(&job, "id = ?", id).Error
	if apperrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("job")
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "get job")
	}
	return &job, nil
}

// JobsByIDs returns the jobs with the given IDs keyed by ID. Missing IDs are skipped.
func (s *Store) JobsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.JobPosting, error) {
	out := make(map[uuid.UUID]models.JobPosting, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var jobs []models.JobPosting
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&jobs).Error; err != nil {
		return nil, apperrors.Wrap(err, "load jobs")
	}
	for _, j := range jobs {
		out[j.ID] = j
	}
	return out, nil
}

func (s *Store) ListJobsByEmployer(ctx context.Context, employerID uuid.UUID) ([]models.JobPosting, error) {
	var jobs []models.JobPosting
	err := s.db.WithContext(ctx).
		Where("employer_id = ?", employerID).
		Order("created_at DESC").
		Find(&jobs).Error
	if err != nil {
		return nil, apperrors.Wrap(err, "list jobs")
	}
	return jobs, nil
}

// SetJobStatus opens, pauses or closes a job. Only open jobs accept applications.
func (s *Store) SetJobStatus(ctx context.Context, actorID, jobID uuid.UUID, raw string) (*models.JobPosting, error) {
	st, err := ParseJobStatus(raw)
	if err != nil {
		return nil, err
	}

	var job models.JobPosting
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.JobPosting{}).Where("id = ?", jobID).
			Updates(map[string]any{"status": st, "updated_at": s.now()})
		if res.Error != nil {
			return apperrors.Wrap(res.Error, "update job status")
		}
		if res.RowsAffected == 0 {
			return apperrors.NotFound("job")
		}
		if err := tx.First(&job, "id = ?", jobID).Error; err != nil {
			return apperrors.Wrap(err, "reload job")
		}
		return s.appendActivity(tx, actorID, jobID, models.EntityJob, "Set job "+job.Title+" to "+string(st), "")
	})
	if err != nil {
		return nil, err
	}
	return &job, nil
}
