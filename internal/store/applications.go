package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/moverq1337/hireboard/internal/apperrors"
	"github.com/moverq1337/hireboard/internal/models"
	"github.com/moverq1337/hireboard/internal/status"
)

func adjustApplicantCount(tx *gorm.DB, jobID uuid.UUID, delta int) error {
	q := tx.Model(&models.JobPosting{}).Where("id = ?", jobID)
	if delta < 0 {
		q = q.Where("applicant_count >= ?", -delta)
	}
	if err := q.UpdateColumn("applicant_count", gorm.Expr("applicant_count + ?", delta)).Error; err != nil {
		return apperrors.Wrap(err, "update applicant count")
	}
	return nil
}

// Create stores a new application and reranks its job. The application gets
// a fresh ID, pending status and AppliedAt from the store clock; any rank the
// caller set is ignored. The stored record, rank included, is returned.
func (s *Store) Create(ctx context.Context, app *models.Application) (*models.Application, error) {
	if app.JobID == uuid.Nil {
		return nil, apperrors.Validation("job_id", "is required")
	}
	if app.ApplicantID == uuid.Nil {
		return nil, apperrors.Validation("applicant_id", "is required")
	}
	if app.Score < 0 || app.Score > 100 {
		return nil, apperrors.Validation("score", "must be between 0 and 100")
	}

	app.ID = uuid.New()
	app.Status = status.Initial()
	app.Rank = nil
	app.AppliedAt = s.now().Truncate(time.Microsecond)
	app.UpdatedAt = app.AppliedAt

	ranks, err := s.engine.WithJob(ctx, app.JobID, func(tx *gorm.DB, job *models.JobPosting) error {
		if job.Status != models.JobOpen {
			return apperrors.WithDetailf(apperrors.ErrJobNotAccepting, "job %s is %s", job.ID, job.Status)
		}

		var existing int64
		err := tx.Model(&models.Application{}).
			Where("job_id = ? AND applicant_id = ?", app.JobID, app.ApplicantID).
			Count(&existing).Error
		if err != nil {
			return apperrors.Wrap(err, "check existing application")
		}
		if existing > 0 {
			return apperrors.WithStack(apperrors.ErrDuplicateApplication)
		}

		if err := tx.Create(app).Error; err != nil {
			if apperrors.Is(err, gorm.ErrDuplicatedKey) {
				return apperrors.Mark(apperrors.Wrap(err, "insert application"), apperrors.ErrDuplicateApplication)
			}
			return apperrors.Wrap(err, "insert application")
		}

		if err := adjustApplicantCount(tx, job.ID, 1); err != nil {
			return err
		}
		return s.appendActivity(tx, app.ApplicantID, app.ID, models.EntityApplication, "Applied to "+job.Title, job.Company)
	})
	if err != nil {
		return nil, err
	}

	if rank, ok := ranks.ByID[app.ID]; ok {
		app.Rank = &rank
	}

	s.log.WithFields(logrus.Fields{
		"application_id": app.ID,
		"job_id":         app.JobID,
		"score":          app.Score,
		"rank":           app.Rank,
	}).Info("application created")

	return app, nil
}

func (s *Store) Get(ctx context.Context, id uuid.UUID) (*models.Application, error) {
	var app models.Application
	err := s.db.WithContext(ctx).First(&app, "id = ?", id).Error
	if apperrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("application")
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "get application")
	}
	return &app, nil
}

// HasApplied reports whether applicantID already applied to jobID. Create
// re-checks under the job lock; this only lets callers fail early.
func (s *Store) HasApplied(ctx context.Context, jobID, applicantID uuid.UUID) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Application{}).
		Where("job_id = ? AND applicant_id = ?", jobID, applicantID).
		Count(&n).Error
	if err != nil {
		return false, apperrors.Wrap(err, "check existing application")
	}
	return n > 0, nil
}

// ListByJob returns the applications of jobID in rank order.
func (s *Store) ListByJob(ctx context.Context, jobID uuid.UUID) ([]models.Application, error) {
	var apps []models.Application
	err := s.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "rank"}}).
		Order("applied_at ASC").
		Find(&apps).Error
	if err != nil {
		return nil, apperrors.Wrap(err, "list applications by job")
	}
	return apps, nil
}

// ListByApplicant returns the applications of applicantID, newest first.
func (s *Store) ListByApplicant(ctx context.Context, applicantID uuid.UUID) ([]models.Application, error) {
	var apps []models.Application
	err := s.db.WithContext(ctx).
		Where("applicant_id = ?", applicantID).
		Order("applied_at DESC").
		Find(&apps).Error
	if err != nil {
		return nil, apperrors.Wrap(err, "list applications by applicant")
	}
	return apps, nil
}

// UpdateStatus moves an application to a new review status. Ranks do not
// depend on status, so no rerank happens.
func (s *Store) UpdateStatus(ctx context.Context, actorID, id uuid.UUID, raw string) (*models.Application, error) {
	var app models.Application
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).First(&app, "id = ?", id).Error
		if apperrors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NotFound("application")
		}
		if err != nil {
			return apperrors.Wrap(err, "load application")
		}

		next, err := status.Transition(app.Status, raw)
		if err != nil {
			return err
		}

		now := s.now()
		err = tx.Model(&models.Application{}).Where("id = ?", id).
			Updates(map[string]any{"status": next, "updated_at": now}).Error
		if err != nil {
			return apperrors.Wrap(err, "update application status")
		}
		previous := app.Status
		app.Status = next
		app.UpdatedAt = now

		return s.appendActivity(tx, actorID, app.ID, models.EntityApplication,
			"Changed application status to "+string(next), "from "+string(previous))
	})
	if err != nil {
		return nil, err
	}
	return &app, nil
}

// Delete removes an application, decrements the job's applicant count and
// reranks the remaining applicants. The stored CV file is removed after the
// transaction commits; a failed removal is only logged.
func (s *Store) Delete(ctx context.Context, actorID, id uuid.UUID) (*models.Application, error) {
	app, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	_, err = s.engine.WithJob(ctx, app.JobID, func(tx *gorm.DB, job *models.JobPosting) error {
		res := tx.Where("id = ?", id).Delete(&models.Application{})
		if res.Error != nil {
			return apperrors.Wrap(res.Error, "delete application")
		}
		if res.RowsAffected == 0 {
			return apperrors.NotFound("application")
		}
		if err := adjustApplicantCount(tx, job.ID, -1); err != nil {
			return err
		}

		action := "Removed application from " + job.Title
		if actorID == app.ApplicantID {
			action = "Withdrew application for " + job.Title
		}
		return s.appendActivity(tx, actorID, app.ID, models.EntityApplication, action, "")
	})
	if err != nil {
		return nil, err
	}

	s.removeFile(ctx, app)
	return app, nil
}

func (s *Store) removeFile(ctx context.Context, app *models.Application) {
	if app.CVPath == "" || s.files == nil {
		return
	}
	if err := s.files.Remove(ctx, app.CVPath); err != nil {
		s.log.WithFields(logrus.Fields{
			"application_id": app.ID,
			"cv_path":        app.CVPath,
		}).WithError(err).Warn("failed to remove cv file")
	}
}
