package service

import (
	"context"
	"errors"
	"io"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/moverq1337/hireboard/internal/apperrors"
	"github.com/moverq1337/hireboard/internal/cvgen"
	"github.com/moverq1337/hireboard/internal/db/dbtest"
	"github.com/moverq1337/hireboard/internal/extractor"
	"github.com/moverq1337/hireboard/internal/filestore"
	"github.com/moverq1337/hireboard/internal/models"
	"github.com/moverq1337/hireboard/internal/ranking"
	"github.com/moverq1337/hireboard/internal/scoring"
	"github.com/moverq1337/hireboard/internal/store"
)

type env struct {
	svc      *Service
	store    *store.Store
	conn     *gorm.DB
	files    *filestore.Local
	employer models.Actor
	job      *models.JobPosting
	calls    *atomic.Int32
}

// scoreFromText reads "score=NN" out of the CV text.
func scoreFromText(_ context.Context, req scoring.Request) (scoring.Result, error) {
	for _, field := range strings.Fields(req.CVText) {
		if v, ok := strings.CutPrefix(field, "score="); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return scoring.Result{}, err
			}
			return scoring.Result{Score: n, Analysis: "Scored.", Strengths: []string{"Go"}, Gaps: []string{"Rust"}}, nil
		}
	}
	return scoring.Result{}, errors.New("no score in cv")
}

func newEnv(t *testing.T, scorer scoring.Func) *env {
	t.Helper()
	conn := dbtest.Open(t)
	log, _ := test.NewNullLogger()
	clock := dbtest.NewClock()
	files := filestore.NewMemory()

	var calls atomic.Int32
	counted := scoring.Func(func(ctx context.Context, req scoring.Request) (scoring.Result, error) {
		calls.Add(1)
		return scorer(ctx, req)
	})

	st := store.New(conn, ranking.NewEngine(conn, log), log, store.WithClock(clock.Now), store.WithFiles(files))
	svc := New(st, extractor.New(log), scoring.NewAdapter(counted, time.Second, log), files, log)

	e := &env{
		svc:      svc,
		store:    st,
		conn:     conn,
		files:    files,
		employer: models.Actor{ID: uuid.New(), Role: models.RoleEmployer},
		calls:    &calls,
	}
	e.job = &models.JobPosting{Title: "Go Engineer", Description: "APIs", Requirements: "Go", Category: "Engineering"}
	require.NoError(t, svc.CreateJob(context.Background(), e.employer, e.job))
	return e
}

func applicant() models.Actor {
	return models.Actor{ID: uuid.New(), Role: models.RoleApplicant}
}

func (e *env) submitText(t *testing.T, actor models.Actor, text string) *models.Application {
	t.Helper()
	app, err := e.svc.Submit(context.Background(), actor, SubmitInput{JobID: e.job.ID, CVText: text})
	require.NoError(t, err)
	return app
}

func (e *env) applicationCount(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.conn.Model(&models.Application{}).Count(&n).Error)
	return n
}

func TestSubmitScenario(t *testing.T) {
	e := newEnv(t, scoreFromText)
	ctx := context.Background()

	a := e.submitText(t, applicant(), "score=90")
	b := e.submitText(t, applicant(), "score=70")
	c := e.submitText(t, applicant(), "score=70")

	assert.Equal(t, "Scored. Strengths: Go. Areas to improve: Rust.", a.Analysis)

	list, err := e.svc.ListApplicants(ctx, e.employer, e.job.ID)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []uuid.UUID{a.ID, b.ID, c.ID}, []uuid.UUID{list[0].ID, list[1].ID, list[2].ID})

	require.NoError(t, e.svc.Delete(ctx, e.employer, a.ID))

	list, err = e.svc.ListApplicants(ctx, e.employer, e.job.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, b.ID, list[0].ID)
	assert.Equal(t, 1, *list[0].Rank)
	assert.Equal(t, c.ID, list[1].ID)
	assert.Equal(t, 2, *list[1].Rank)

	job, err := e.store.GetJob(ctx, e.job.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, job.ApplicantCount)
}

func TestSubmitScorerFailureStillStores(t *testing.T) {
	e := newEnv(t, scoreFromText)

	app := e.submitText(t, applicant(), "a CV without any score marker")

	assert.Equal(t, 0, app.Score)
	assert.True(t, strings.HasPrefix(app.Analysis, scoring.UnavailablePrefix))
	require.NotNil(t, app.Rank)
	assert.Equal(t, 1, *app.Rank)
}

func TestSubmitEmptyCVSkipsScorer(t *testing.T) {
	e := newEnv(t, scoreFromText)

	app := e.submitText(t, applicant(), "   ")

	assert.Equal(t, int32(0), e.calls.Load())
	assert.Equal(t, 0, app.Score)
	assert.Equal(t, scoring.NoCVAnalysis, app.Analysis)
}

func TestSubmitFileIsStoredAndServed(t *testing.T) {
	e := newEnv(t, scoreFromText)
	ctx := context.Background()

	app, err := e.svc.Submit(ctx, applicant(), SubmitInput{
		JobID:       e.job.ID,
		CoverLetter: "Hello",
		File:        &extractor.File{Name: "cv.txt", MediaType: "text/plain", Data: []byte("Jane score=81")},
	})
	require.NoError(t, err)
	assert.Equal(t, 81, app.Score)
	assert.Equal(t, "Jane score=81", app.CVText)
	assert.Equal(t, "Hello", app.CoverLetter)
	require.NotEmpty(t, app.CVPath)

	doc, err := e.svc.CV(ctx, e.employer, app.ID)
	require.NoError(t, err)
	assert.Equal(t, CVFile, doc.Kind)
	assert.Equal(t, extractor.MediaText, doc.MediaType)
	body, err := io.ReadAll(doc.File)
	require.NoError(t, err)
	require.NoError(t, doc.File.Close())
	assert.Equal(t, "Jane score=81", string(body))

	require.NoError(t, e.svc.Delete(ctx, e.employer, app.ID))
	_, err = e.files.Open(ctx, app.CVPath)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestSubmitUnsupportedFileStoresNothing(t *testing.T) {
	e := newEnv(t, scoreFromText)

	_, err := e.svc.Submit(context.Background(), applicant(), SubmitInput{
		JobID: e.job.ID,
		File:  &extractor.File{Name: "cv.png", MediaType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}},
	})

	assert.Equal(t, apperrors.KindUnsupportedMedia, apperrors.Kind(err))
	assert.Equal(t, int64(0), e.applicationCount(t))
	assert.Equal(t, int32(0), e.calls.Load())
}

func TestSubmitStructuredCV(t *testing.T) {
	e := newEnv(t, scoreFromText)
	ctx := context.Background()

	app, err := e.svc.Submit(ctx, applicant(), SubmitInput{
		JobID:      e.job.ID,
		Structured: &models.StructuredCV{Name: "Jane", Summary: "score=64", Skills: []string{"Go"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 64, app.Score)
	assert.Equal(t, "Jane", app.CVData.Name)

	doc, err := e.svc.CV(ctx, e.employer, app.ID)
	require.NoError(t, err)
	assert.Equal(t, CVStructured, doc.Kind)
	assert.Equal(t, []string{"Go"}, doc.Structured.Skills)
	assert.Equal(t, "Jane\nSummary: score=64\nSkills: Go", doc.Text)
}

func TestSubmitRejections(t *testing.T) {
	e := newEnv(t, scoreFromText)
	ctx := context.Background()
	actor := applicant()
	e.submitText(t, actor, "score=50")

	_, err := e.svc.Submit(ctx, actor, SubmitInput{JobID: e.job.ID, CVText: "score=99"})
	assert.Equal(t, apperrors.KindDuplicate, apperrors.Kind(err))

	_, err = e.svc.Submit(ctx, e.employer, SubmitInput{JobID: e.job.ID, CVText: "score=99"})
	assert.Equal(t, apperrors.KindAuthorization, apperrors.Kind(err))

	_, err = e.svc.Submit(ctx, applicant(), SubmitInput{JobID: uuid.New(), CVText: "score=99"})
	assert.Equal(t, apperrors.KindNotFound, apperrors.Kind(err))

	_, err = e.svc.SetJobStatus(ctx, e.employer, e.job.ID, "closed")
	require.NoError(t, err)
	_, err = e.svc.Submit(ctx, applicant(), SubmitInput{JobID: e.job.ID, CVText: "score=99"})
	assert.Equal(t, apperrors.KindJobNotAccepting, apperrors.Kind(err))

	assert.Equal(t, int64(1), e.applicationCount(t))
	assert.Equal(t, int32(1), e.calls.Load())
}

func TestUpdateStatusPermissions(t *testing.T) {
	e := newEnv(t, scoreFromText)
	ctx := context.Background()
	actor := applicant()
	app := e.submitText(t, actor, "score=40")

	_, err := e.svc.UpdateStatus(ctx, actor, app.ID, "hired")
	assert.Equal(t, apperrors.KindAuthorization, apperrors.Kind(err))

	stranger := models.Actor{ID: uuid.New(), Role: models.RoleEmployer}
	_, err = e.svc.UpdateStatus(ctx, stranger, app.ID, "hired")
	assert.Equal(t, apperrors.KindAuthorization, apperrors.Kind(err))

	updated, err := e.svc.UpdateStatus(ctx, e.employer, app.ID, "Reviewed")
	require.NoError(t, err)
	assert.Equal(t, models.StatusReviewed, updated.Status)

	_, err = e.svc.UpdateStatus(ctx, e.employer, app.ID, "pending")
	assert.Equal(t, apperrors.KindValidation, apperrors.Kind(err))
}

func TestDeletePermissions(t *testing.T) {
	e := newEnv(t, scoreFromText)
	ctx := context.Background()
	owner := applicant()
	app := e.submitText(t, owner, "score=40")

	err := e.svc.Delete(ctx, applicant(), app.ID)
	assert.Equal(t, apperrors.KindAuthorization, apperrors.Kind(err))

	err = e.svc.Delete(ctx, models.Actor{ID: uuid.New(), Role: models.RoleEmployer}, app.ID)
	assert.Equal(t, apperrors.KindAuthorization, apperrors.Kind(err))

	require.NoError(t, e.svc.Delete(ctx, owner, app.ID))
	assert.Equal(t, int64(0), e.applicationCount(t))

	err = e.svc.Delete(ctx, owner, app.ID)
	assert.Equal(t, apperrors.KindNotFound, apperrors.Kind(err))
}

func TestListApplicantsOnlyForOwner(t *testing.T) {
	e := newEnv(t, scoreFromText)
	ctx := context.Background()

	_, err := e.svc.ListApplicants(ctx, models.Actor{ID: uuid.New(), Role: models.RoleEmployer}, e.job.ID)
	assert.Equal(t, apperrors.KindAuthorization, apperrors.Kind(err))

	_, err = e.svc.ListApplicants(ctx, applicant(), e.job.ID)
	assert.Equal(t, apperrors.KindAuthorization, apperrors.Kind(err))

	list, err := e.svc.ListApplicants(ctx, e.employer, e.job.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestMyApplicationsIncludesJob(t *testing.T) {
	e := newEnv(t, scoreFromText)
	ctx := context.Background()
	actor := applicant()
	app := e.submitText(t, actor, "score=77")

	mine, err := e.svc.MyApplications(ctx, actor)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, app.ID, mine[0].ID)
	require.NotNil(t, mine[0].Job)
	assert.Equal(t, "Go Engineer", mine[0].Job.Title)

	_, err = e.svc.MyApplications(ctx, e.employer)
	assert.Equal(t, apperrors.KindAuthorization, apperrors.Kind(err))
}

func TestCVFallbacks(t *testing.T) {
	e := newEnv(t, scoreFromText)
	ctx := context.Background()

	withText := e.submitText(t, applicant(), "plain score=10")
	doc, err := e.svc.CV(ctx, e.employer, withText.ID)
	require.NoError(t, err)
	assert.Equal(t, CVText, doc.Kind)
	assert.Equal(t, "plain score=10", doc.Text)

	// file vanished from storage: fall back to the extracted text
	app, err := e.svc.Submit(ctx, applicant(), SubmitInput{
		JobID: e.job.ID,
		File:  &extractor.File{Name: "cv.txt", Data: []byte("file score=20")},
	})
	require.NoError(t, err)
	require.NoError(t, e.files.Remove(ctx, app.CVPath))
	doc, err = e.svc.CV(ctx, e.employer, app.ID)
	require.NoError(t, err)
	assert.Equal(t, CVText, doc.Kind)
	assert.Equal(t, "file score=20", doc.Text)

	empty := e.submitText(t, applicant(), "")
	_, err = e.svc.CV(ctx, e.employer, empty.ID)
	assert.Equal(t, apperrors.KindNotFound, apperrors.Kind(err))

	_, err = e.svc.CV(ctx, applicant(), empty.ID)
	assert.Equal(t, apperrors.KindAuthorization, apperrors.Kind(err))
}

func TestRerankUnknownJob(t *testing.T) {
	e := newEnv(t, scoreFromText)
	err := e.svc.Rerank(context.Background(), uuid.New())
	assert.Equal(t, apperrors.KindNotFound, apperrors.Kind(err))
	assert.NoError(t, e.svc.Rerank(context.Background(), e.job.ID))
}

// savedKeys records the keys handed out by the wrapped file store.
type savedKeys struct {
	filestore.Store
	keys []string
}

func (s *savedKeys) Save(ctx context.Context, name string, data []byte) (string, error) {
	key, err := s.Store.Save(ctx, name, data)
	if err == nil {
		s.keys = append(s.keys, key)
	}
	return key, err
}

func TestSubmitRemovesFileWhenInsertFails(t *testing.T) {
	var e *env
	// the job closes while the CV is being scored, so the insert is refused
	e = newEnv(t, func(ctx context.Context, req scoring.Request) (scoring.Result, error) {
		if _, err := e.store.SetJobStatus(ctx, e.employer.ID, e.job.ID, "closed"); err != nil {
			return scoring.Result{}, err
		}
		return scoreFromText(ctx, req)
	})
	ctx := context.Background()
	rec := &savedKeys{Store: e.files}
	e.svc.files = rec

	_, err := e.svc.Submit(ctx, applicant(), SubmitInput{
		JobID: e.job.ID,
		File:  &extractor.File{Name: "cv.txt", Data: []byte("score=30")},
	})
	assert.Equal(t, apperrors.KindJobNotAccepting, apperrors.Kind(err))
	assert.Equal(t, int64(0), e.applicationCount(t))

	require.Len(t, rec.keys, 1)
	_, err = e.files.Open(ctx, rec.keys[0])
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestSubmitKeepsFileOfStoredApplication(t *testing.T) {
	e := newEnv(t, scoreFromText)
	ctx := context.Background()
	rec := &savedKeys{Store: e.files}
	e.svc.files = rec

	app, err := e.svc.Submit(ctx, applicant(), SubmitInput{
		JobID: e.job.ID,
		File:  &extractor.File{Name: "cv.txt", Data: []byte("score=30")},
	})
	require.NoError(t, err)
	require.NotNil(t, app.Rank)
	assert.Equal(t, 1, *app.Rank)
	require.Equal(t, []string{app.CVPath}, rec.keys)

	f, err := e.files.Open(ctx, app.CVPath)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func jobSeeker() cvgen.UserInfo {
	return cvgen.UserInfo{Name: "Jane Doe", Email: "jane@example.com", Skills: "Go, SQL"}
}

func TestGenerateCV(t *testing.T) {
	e := newEnv(t, scoreFromText)
	ctx := context.Background()

	var got cvgen.Request
	WithCVGenerator(cvgen.Func(func(_ context.Context, req cvgen.Request) (cvgen.Result, error) {
		got = req
		return cvgen.Result{CV: models.StructuredCV{Name: req.User.Name, Skills: []string{"Go"}}}, nil
	}), time.Second)(e.svc)

	info := jobSeeker()
	info.Name = "  Jane Doe "
	res, err := e.svc.GenerateCV(ctx, applicant(), e.job.ID, info)
	require.NoError(t, err)

	assert.Equal(t, "Go Engineer", got.JobTitle)
	assert.Equal(t, "APIs", got.JobDescription)
	assert.Equal(t, "Go", got.JobRequirements)
	assert.Equal(t, "Jane Doe", got.User.Name)

	assert.Equal(t, "Jane Doe", res.CV.Name)
	// text is rendered from the record when the generator leaves it out
	assert.Equal(t, "Jane Doe\nSkills: Go", res.Text)
	assert.Equal(t, int64(0), e.applicationCount(t))
}

func TestGenerateCVRejections(t *testing.T) {
	e := newEnv(t, scoreFromText)
	ctx := context.Background()

	_, err := e.svc.GenerateCV(ctx, applicant(), e.job.ID, jobSeeker())
	assert.Equal(t, apperrors.KindCVGeneration, apperrors.Kind(err), "no generator configured")

	var calls int
	WithCVGenerator(cvgen.Func(func(context.Context, cvgen.Request) (cvgen.Result, error) {
		calls++
		return cvgen.Result{}, errors.New("quota exceeded")
	}), time.Second)(e.svc)

	_, err = e.svc.GenerateCV(ctx, e.employer, e.job.ID, jobSeeker())
	assert.Equal(t, apperrors.KindAuthorization, apperrors.Kind(err))

	_, err = e.svc.GenerateCV(ctx, applicant(), e.job.ID, cvgen.UserInfo{Name: "Jane"})
	assert.Equal(t, apperrors.KindValidation, apperrors.Kind(err))

	_, err = e.svc.GenerateCV(ctx, applicant(), uuid.New(), jobSeeker())
	assert.Equal(t, apperrors.KindNotFound, apperrors.Kind(err))
	assert.Zero(t, calls)

	_, err = e.svc.GenerateCV(ctx, applicant(), e.job.ID, jobSeeker())
	require.Error(t, err)
	assert.Equal(t, apperrors.KindCVGeneration, apperrors.Kind(err))
	assert.NotContains(t, err.Error(), "quota")
	assert.Equal(t, 1, calls)
}

func TestGenerateCVTimesOut(t *testing.T) {
	e := newEnv(t, scoreFromText)
	WithCVGenerator(cvgen.Func(func(ctx context.Context, _ cvgen.Request) (cvgen.Result, error) {
		<-ctx.Done()
		return cvgen.Result{}, ctx.Err()
	}), 20*time.Millisecond)(e.svc)

	start := time.Now()
	_, err := e.svc.GenerateCV(context.Background(), applicant(), e.job.ID, jobSeeker())
	assert.Equal(t, apperrors.KindCVGeneration, apperrors.Kind(err))
	assert.Less(t, time.Since(start), 5*time.Second)
}
