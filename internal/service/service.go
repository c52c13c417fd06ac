// Package service is the submission pipeline and the permission rules around it.
//
// Submit runs extraction, file storage and scoring before touching the job's
// lock, then hands the finished record to the store, which inserts it and
// reranks the job in one transaction.
package service

import (
	"context"
	"io"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/moverq1337/hireboard/internal/apperrors"
	"github.com/moverq1337/hireboard/internal/cvgen"
	"github.com/moverq1337/hireboard/internal/extractor"
	"github.com/moverq1337/hireboard/internal/filestore"
	"github.com/moverq1337/hireboard/internal/models"
	"github.com/moverq1337/hireboard/internal/scoring"
	"github.com/moverq1337/hireboard/internal/store"
)

type Service struct {
	store     *store.Store
	extractor *extractor.Extractor
	scorer    *scoring.Adapter
	files     filestore.Store
	cvGen     cvgen.Generator
	cvTimeout time.Duration
	log       logrus.FieldLogger
}

type Option func(*Service)

// WithCVGenerator enables GenerateCV. A zero timeout means cvgen.DefaultTimeout.
func WithCVGenerator(g cvgen.Generator, timeout time.Duration) Option {
	return func(s *Service) {
		s.cvGen = g
		if timeout > 0 {
			s.cvTimeout = timeout
		}
	}
}

func New(st *store.Store, ex *extractor.Extractor, scorer *scoring.Adapter, files filestore.Store, log logrus.FieldLogger, opts ...Option) *Service {
	s := &Service{store: st, extractor: ex, scorer: scorer, files: files, cvTimeout: cvgen.DefaultTimeout, log: log}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type SubmitInput struct {
	JobID       uuid.UUID
	File        *extractor.File
	Structured  *models.StructuredCV
	CVText      string
	CoverLetter string
}

// MyApplication is an applicant's view of one application with its job.
type MyApplication struct {
	models.Application
	Job *models.JobPosting `json:"job,omitempty"`
}

// CVKind tells which source a CV document was served from.
type CVKind string

const (
	CVFile       CVKind = "file"
	CVStructured CVKind = "ai"
	CVText       CVKind = "text"
)

// CVDocument is a stored CV. Exactly one of File, Structured or Text is the
// payload, as named by Kind. Callers must close File.
type CVDocument struct {
	Kind       CVKind
	File       io.ReadCloser
	FileName   string
	MediaType  string
	Structured *models.StructuredCV
	Text       string
}

func requireRole(actor models.Actor, role models.Role) error {
	if actor.ID == uuid.Nil {
		return apperrors.Forbidden("an authenticated actor is required")
	}
	if actor.Role != role {
		return apperrors.Forbidden("only " + string(role) + "s can do this")
	}
	return nil
}

// ownedJob loads jobID and checks actor is its employer.
func (s *Service) ownedJob(ctx context.Context, actor models.Actor, jobID uuid.UUID) (*models.JobPosting, error) {
	if err := requireRole(actor, models.RoleEmployer); err != nil {
		return nil, err
	}
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.EmployerID != actor.ID {
		return nil, apperrors.Forbidden("job belongs to another employer")
	}
	return job, nil
}

// Submit applies actor to a job with the given CV.
func (s *Service) Submit(ctx context.Context, actor models.Actor, in SubmitInput) (*models.Application, error) {
	if err := requireRole(actor, models.RoleApplicant); err != nil {
		return nil, err
	}

	job, err := s.store.GetJob(ctx, in.JobID)
	if err != nil {
		return nil, err
	}
	if job.Status != models.JobOpen {
		return nil, apperrors.WithDetailf(apperrors.ErrJobNotAccepting, "job %s is %s", job.ID, job.Status)
	}
	applied, err := s.store.HasApplied(ctx, job.ID, actor.ID)
	if err != nil {
		return nil, err
	}
	if applied {
		return nil, apperrors.WithStack(apperrors.ErrDuplicateApplication)
	}

	cv, err := s.extractor.Extract(ctx, extractor.Input{File: in.File, Structured: in.Structured, Text: in.CVText})
	if err != nil {
		return nil, err
	}

	var key string
	if in.File != nil {
		key, err = s.files.Save(ctx, in.File.Name, in.File.Data)
		if err != nil {
			return nil, apperrors.Wrap(err, "store cv file")
		}
	}

	outcome := s.scorer.Evaluate(ctx, scoring.Request{
		CVText:          cv.Text,
		JobDescription:  job.Description,
		JobRequirements: job.Requirements,
		JobTitle:        job.Title,
	})

	// Create fails only before its transaction commits, so the file is never
	// referenced by a stored application when it is removed here.
	app, err := s.store.Create(ctx, &models.Application{
		JobID:       job.ID,
		ApplicantID: actor.ID,
		CoverLetter: in.CoverLetter,
		CVText:      cv.Text,
		CVData:      cv.Structured,
		CVPath:      key,
		Score:       outcome.Score,
		Analysis:    scoring.FormatAnalysis(outcome.Result),
	})
	if err != nil {
		if key != "" {
			if rmErr := s.files.Remove(ctx, key); rmErr != nil {
				s.log.WithField("cv_path", key).WithError(rmErr).Warn("failed to clean up cv file")
			}
		}
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"application_id":    app.ID,
		"job_id":            job.ID,
		"score":             app.Score,
		"scoring_fallback":  outcome.Fallback,
		"extraction_failed": cv.Degraded,
	}).Info("application submitted")

	return app, nil
}

// GenerateCV drafts a CV tailored to jobID from what the applicant provided.
// The draft is returned, not stored; the applicant submits it separately.
func (s *Service) GenerateCV(ctx context.Context, actor models.Actor, jobID uuid.UUID, info cvgen.UserInfo) (*cvgen.Result, error) {
	if err := requireRole(actor, models.RoleApplicant); err != nil {
		return nil, err
	}
	info = info.Normalize()
	if err := info.Validate(); err != nil {
		return nil, err
	}
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if s.cvGen == nil {
		return nil, apperrors.Mark(apperrors.New("cv generation is not configured"), apperrors.ErrCVGenerationFailed)
	}

	log := s.log.WithFields(logrus.Fields{"job_id": job.ID, "actor_id": actor.ID})

	genCtx, cancel := context.WithTimeout(ctx, s.cvTimeout)
	defer cancel()

	start := time.Now()
	res, err := s.cvGen.Generate(genCtx, cvgen.Request{
		JobTitle:        job.Title,
		JobDescription:  job.Description,
		JobRequirements: job.Requirements,
		User:            info,
	})
	if err != nil {
		log.WithError(err).Warn("cv generation failed")
		return nil, apperrors.Mark(apperrors.New("failed to generate cv"), apperrors.ErrCVGenerationFailed)
	}
	if res.Text == "" {
		res.Text = extractor.Render(res.CV)
	}
	if res.Text == "" {
		log.Warn("cv generator returned an empty draft")
		return nil, apperrors.Mark(apperrors.New("failed to generate cv"), apperrors.ErrCVGenerationFailed)
	}

	log.WithField("took", time.Since(start).String()).Info("cv generated")
	return &res, nil
}

// UpdateStatus lets the job's employer move an application through review.
func (s *Service) UpdateStatus(ctx context.Context, actor models.Actor, id uuid.UUID, raw string) (*models.Application, error) {
	if err := requireRole(actor, models.RoleEmployer); err != nil {
		return nil, err
	}
	app, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.ownedJob(ctx, actor, app.JobID); err != nil {
		return nil, err
	}
	return s.store.UpdateStatus(ctx, actor.ID, id, raw)
}

// Delete withdraws (applicant) or removes (job's employer) an application.
func (s *Service) Delete(ctx context.Context, actor models.Actor, id uuid.UUID) error {
	if actor.ID == uuid.Nil {
		return apperrors.Forbidden("an authenticated actor is required")
	}
	app, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}

	switch actor.Role {
	case models.RoleApplicant:
		if app.ApplicantID != actor.ID {
			return apperrors.Forbidden("application belongs to another applicant")
		}
	case models.RoleEmployer:
		if _, err := s.ownedJob(ctx, actor, app.JobID); err != nil {
			return err
		}
	default:
		return apperrors.Forbidden("unknown role")
	}

	_, err = s.store.Delete(ctx, actor.ID, id)
	return err
}

// ListApplicants returns a job's applications in rank order to its employer.
func (s *Service) ListApplicants(ctx context.Context, actor models.Actor, jobID uuid.UUID) ([]models.Application, error) {
	if _, err := s.ownedJob(ctx, actor, jobID); err != nil {
		return nil, err
	}
	return s.store.ListByJob(ctx, jobID)
}

// MyApplications returns the actor's applications, newest first, with their jobs.
func (s *Service) MyApplications(ctx context.Context, actor models.Actor) ([]MyApplication, error) {
	if err := requireRole(actor, models.RoleApplicant); err != nil {
		return nil, err
	}
	apps, err := s.store.ListByApplicant(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(apps))
	for _, a := range apps {
		ids = append(ids, a.JobID)
	}
	jobs, err := s.store.JobsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]MyApplication, 0, len(apps))
	for _, a := range apps {
		item := MyApplication{Application: a}
		if job, ok := jobs[a.JobID]; ok {
			item.Job = &job
		}
		out = append(out, item)
	}
	return out, nil
}

// CV returns the stored CV of an application to the job's employer. The
// uploaded file wins, then the structured record, then the plain text.
func (s *Service) CV(ctx context.Context, actor models.Actor, id uuid.UUID) (*CVDocument, error) {
	if err := requireRole(actor, models.RoleEmployer); err != nil {
		return nil, err
	}
	app, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.ownedJob(ctx, actor, app.JobID); err != nil {
		return nil, err
	}

	if app.CVPath != "" {
		f, err := s.files.Open(ctx, app.CVPath)
		switch {
		case err == nil:
			return &CVDocument{
				Kind:      CVFile,
				File:      f,
				FileName:  "cv" + filepath.Ext(app.CVPath),
				MediaType: extractor.MediaTypeByName(app.CVPath),
			}, nil
		case apperrors.Is(err, apperrors.ErrNotFound):
			s.log.WithFields(logrus.Fields{
				"application_id": app.ID,
				"cv_path":        app.CVPath,
			}).Warn("cv file is missing, falling back to stored text")
		default:
			return nil, err
		}
	}

	if !app.CVData.IsZero() {
		cv := app.CVData
		return &CVDocument{Kind: CVStructured, Structured: &cv, Text: app.CVText}, nil
	}
	if app.CVText != "" {
		return &CVDocument{Kind: CVText, Text: app.CVText}, nil
	}
	return nil, apperrors.NotFound("cv")
}

// CreateJob publishes a job for the acting employer.
func (s *Service) CreateJob(ctx context.Context, actor models.Actor, job *models.JobPosting) error {
	if err := requireRole(actor, models.RoleEmployer); err != nil {
		return err
	}
	job.EmployerID = actor.ID
	return s.store.CreateJob(ctx, job)
}

// SetJobStatus opens, pauses or closes one of the actor's jobs.
func (s *Service) SetJobStatus(ctx context.Context, actor models.Actor, jobID uuid.UUID, raw string) (*models.JobPosting, error) {
	if _, err := s.ownedJob(ctx, actor, jobID); err != nil {
		return nil, err
	}
	return s.store.SetJobStatus(ctx, actor.ID, jobID, raw)
}

// Rerank recomputes the ranks of one job. Used by the CLI after manual fixes.
func (s *Service) Rerank(ctx context.Context, jobID uuid.UUID) error {
	if _, err := s.store.GetJob(ctx, jobID); err != nil {
		return err
	}
	return s.store.Rerank(ctx, jobID)
}
