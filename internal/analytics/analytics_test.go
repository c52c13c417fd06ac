package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moverq1337/hireboard/internal/apperrors"
	"github.com/moverq1337/hireboard/internal/db/dbtest"
	"github.com/moverq1337/hireboard/internal/models"
	"github.com/moverq1337/hireboard/internal/ranking"
	"github.com/moverq1337/hireboard/internal/store"
)

var now = time.Date(2026, 3, 31, 15, 0, 0, 0, time.UTC)

type fixture struct {
	store *store.Store
	agg   *Aggregator
	clock *dbtest.Clock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := dbtest.Open(t)
	log, _ := test.NewNullLogger()
	clock := dbtest.NewClock()
	st := store.New(conn, ranking.NewEngine(conn, log), log, store.WithClock(clock.Now))
	return &fixture{
		store: st,
		agg:   New(conn, st, log, WithClock(func() time.Time { return now })),
		clock: clock,
	}
}

func (f *fixture) job(t *testing.T, employer uuid.UUID, title, category string) *models.JobPosting {
	t.Helper()
	job := &models.JobPosting{EmployerID: employer, Title: title, Category: category}
	require.NoError(t, f.store.CreateJob(context.Background(), job))
	return job
}

func (f *fixture) applyAt(t *testing.T, at time.Time, jobID, applicantID uuid.UUID, score int) *models.Application {
	t.Helper()
	f.clock.Set(at.Add(-time.Second))
	app, err := f.store.Create(context.Background(), &models.Application{JobID: jobID, ApplicantID: applicantID, Score: score})
	require.NoError(t, err)
	return app
}

func countsOf(items []Count) map[string]int64 {
	out := make(map[string]int64, len(items))
	for _, c := range items {
		out[c.Key] = c.Count
	}
	return out
}

func TestEmployerViewEmpty(t *testing.T) {
	f := newFixture(t)

	view, err := f.agg.Employer(context.Background(), uuid.New())
	require.NoError(t, err)

	assert.Zero(t, view.TotalJobs)
	assert.Zero(t, view.OpenJobs)
	assert.Zero(t, view.TotalApplications)
	assert.Zero(t, view.AvgScore)
	assert.Empty(t, view.CategoryBreakdown)
	assert.NotNil(t, view.CategoryBreakdown)
	assert.NotNil(t, view.RecentActivity)

	require.Len(t, view.StatusBreakdown, len(models.Statuses))
	for _, c := range view.StatusBreakdown {
		assert.Zero(t, c.Count)
	}

	require.Len(t, view.ApplicationsByDay, Days)
	assert.Equal(t, "2026-03-02", view.ApplicationsByDay[0].Date)
	assert.Equal(t, "2026-03-31", view.ApplicationsByDay[Days-1].Date)
	for _, d := range view.ApplicationsByDay {
		assert.Zero(t, d.Count)
	}
}

func TestEmployerView(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	employer := uuid.New()

	backend := f.job(t, employer, "Backend", "Technology")
	frontend := f.job(t, employer, "Frontend", "technology")
	designer := f.job(t, employer, "Designer", "Design")
	other := f.job(t, uuid.New(), "Not mine", "Sales")

	f.applyAt(t, time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC), backend.ID, uuid.New(), 90) // outside the window
	a := f.applyAt(t, time.Date(2026, 3, 30, 9, 0, 0, 0, time.UTC), backend.ID, uuid.New(), 70)
	f.applyAt(t, time.Date(2026, 3, 30, 18, 0, 0, 0, time.UTC), frontend.ID, uuid.New(), 66)
	f.applyAt(t, time.Date(2026, 3, 31, 8, 0, 0, 0, time.UTC), designer.ID, uuid.New(), 50)
	f.applyAt(t, time.Date(2026, 3, 31, 8, 0, 0, 0, time.UTC), other.ID, uuid.New(), 10)

	_, err := f.store.UpdateStatus(ctx, employer, a.ID, "shortlisted")
	require.NoError(t, err)
	_, err = f.store.SetJobStatus(ctx, employer, designer.ID, "closed")
	require.NoError(t, err)

	view, err := f.agg.Employer(ctx, employer)
	require.NoError(t, err)

	assert.Equal(t, int64(3), view.TotalJobs)
	assert.Equal(t, int64(2), view.OpenJobs)
	assert.Equal(t, int64(4), view.TotalApplications)
	assert.Equal(t, 69.0, view.AvgScore)

	assert.Equal(t, []Count{{Key: "Technology", Count: 2}, {Key: "Design", Count: 1}}, view.CategoryBreakdown)

	statuses := countsOf(view.StatusBreakdown)
	assert.Equal(t, int64(3), statuses["pending"])
	assert.Equal(t, int64(1), statuses["shortlisted"])
	assert.Equal(t, int64(0), statuses["hired"])

	days := map[string]int64{}
	var total int64
	for _, d := range view.ApplicationsByDay {
		days[d.Date] = d.Count
		total += d.Count
	}
	assert.Equal(t, int64(2), days["2026-03-30"])
	assert.Equal(t, int64(1), days["2026-03-31"])
	assert.Equal(t, int64(3), total)

	require.NotEmpty(t, view.RecentActivity)
	assert.LessOrEqual(t, len(view.RecentActivity), ActivityLimit)
	assert.Equal(t, "Set job Designer to closed", view.RecentActivity[0].Action)
}

func TestAvgScoreRoundsToOneDecimal(t *testing.T) {
	f := newFixture(t)
	employer := uuid.New()
	job := f.job(t, employer, "Backend", "")

	for _, score := range []int{90, 70, 66} {
		f.applyAt(t, now.Add(-time.Hour), job.ID, uuid.New(), score)
	}

	view, err := f.agg.Employer(context.Background(), employer)
	require.NoError(t, err)
	assert.Equal(t, 75.3, view.AvgScore)
}

func TestApplicantView(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	employer := uuid.New()
	applicant := uuid.New()

	scores := []int{40, 95, 60, 95, 10, 75}
	var apps []*models.Application
	for i, score := range scores {
		job := f.job(t, employer, "Job "+string(rune('A'+i)), "Finance")
		apps = append(apps, f.applyAt(t, now.Add(time.Duration(i-10)*time.Hour), job.ID, applicant, score))
	}
	_, err := f.store.UpdateStatus(ctx, employer, apps[0].ID, "rejected")
	require.NoError(t, err)

	view, err := f.agg.Applicant(ctx, applicant)
	require.NoError(t, err)

	assert.Equal(t, int64(6), view.TotalApplications)
	assert.Equal(t, 62.5, view.AvgScore)

	statuses := countsOf(view.StatusBreakdown)
	assert.Equal(t, int64(5), statuses["pending"])
	assert.Equal(t, int64(1), statuses["rejected"])

	require.Len(t, view.TopScored, TopScoredLimit)
	got := make([]int, 0, len(view.TopScored))
	for _, s := range view.TopScored {
		got = append(got, s.Score)
	}
	assert.Equal(t, []int{95, 95, 75, 60, 40}, got)
	assert.Equal(t, apps[1].ID, view.TopScored[0].ApplicationID)
	assert.Equal(t, "Job B", view.TopScored[0].JobTitle)
	assert.Equal(t, "Finance", view.TopScored[0].JobCategory)
	require.NotNil(t, view.TopScored[0].Rank)
	assert.Equal(t, 1, *view.TopScored[0].Rank)

	assert.Len(t, view.RecentActivity, 6)
	assert.Equal(t, "Applied to Job F", view.RecentActivity[0].Action)
}

func TestApplicantViewEmpty(t *testing.T) {
	f := newFixture(t)

	view, err := f.agg.Applicant(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Zero(t, view.TotalApplications)
	assert.Zero(t, view.AvgScore)
	assert.NotNil(t, view.TopScored)
	assert.Empty(t, view.TopScored)
	assert.Len(t, view.StatusBreakdown, len(models.Statuses))
}

func TestForPicksViewByRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	v, err := f.agg.For(ctx, models.Actor{ID: uuid.New(), Role: models.RoleEmployer})
	require.NoError(t, err)
	assert.IsType(t, &EmployerView{}, v)

	v, err = f.agg.For(ctx, models.Actor{ID: uuid.New(), Role: models.RoleApplicant})
	require.NoError(t, err)
	assert.IsType(t, &ApplicantView{}, v)

	_, err = f.agg.For(ctx, models.Actor{ID: uuid.New(), Role: "admin"})
	assert.True(t, apperrors.Is(err, apperrors.ErrAuthorization))
}
