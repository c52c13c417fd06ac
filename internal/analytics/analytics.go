// Package analytics derives read-only dashboards from jobs and applications.
package analytics

import (
	"context"
	"database/sql"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/moverq1337/hireboard/internal/apperrors"
	"github.com/moverq1337/hireboard/internal/models"
)

const (
	// Days is the length of the daily application series.
	Days           = 30
	TopScoredLimit = 5
	ActivityLimit  = 10
	dateLayout     = "2006-01-02"
)

type ActivitySource interface {
	RecentActivity(ctx context.Context, actorID uuid.UUID, limit int) ([]models.Activity, error)
}

type Count struct {
	Key   string `gorm:"column:bucket" json:"key"`
	Count int64  `json:"count"`
}

type DayCount struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

type ScoredApplication struct {
	ApplicationID uuid.UUID     `json:"application_id"`
	JobID         uuid.UUID     `json:"job_id"`
	JobTitle      string        `json:"job_title"`
	JobCategory   string        `json:"job_category"`
	Score         int           `json:"score"`
	Rank          *int          `json:"rank"`
	Status        models.Status `json:"status"`
	AppliedAt     time.Time     `json:"applied_at"`
}

type EmployerView struct {
	TotalJobs         int64             `json:"total_jobs"`
	OpenJobs          int64             `json:"open_jobs"`
	TotalApplications int64             `json:"total_applications"`
	StatusBreakdown   []Count           `json:"status_breakdown"`
	CategoryBreakdown []Count           `json:"category_breakdown"`
	ApplicationsByDay []DayCount        `json:"applications_by_day"`
	AvgScore          float64           `json:"avg_score"`
	RecentActivity    []models.Activity `json:"recent_activity"`
}

type ApplicantView struct {
	TotalApplications int64               `json:"total_applications"`
	StatusBreakdown   []Count             `json:"status_breakdown"`
	AvgScore          float64             `json:"avg_score"`
	TopScored         []ScoredApplication `json:"top_scored"`
	RecentActivity    []models.Activity   `json:"recent_activity"`
}

type Aggregator struct {
	db       *gorm.DB
	activity ActivitySource
	now      func() time.Time
	log      logrus.FieldLogger
}

type Option func(*Aggregator)

func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

func New(db *gorm.DB, activity ActivitySource, log logrus.FieldLogger, opts ...Option) *Aggregator {
	a := &Aggregator{
		db:       db,
		activity: activity,
		now:      func() time.Time { return time.Now().UTC() },
		log:      log,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// For returns the view that matches the actor's role.
func (a *Aggregator) For(ctx context.Context, actor models.Actor) (any, error) {
	start := time.Now()
	var (
		view any
		err  error
	)
	switch actor.Role {
	case models.RoleEmployer:
		view, err = a.Employer(ctx, actor.ID)
	case models.RoleApplicant:
		view, err = a.Applicant(ctx, actor.ID)
	default:
		return nil, apperrors.Forbidden("unknown role")
	}
	if err != nil {
		return nil, err
	}
	a.log.WithFields(logrus.Fields{
		"actor_id": actor.ID,
		"role":     actor.Role,
		"took":     time.Since(start).String(),
	}).Debug("analytics view built")
	return view, nil
}

func (a *Aggregator) Employer(ctx context.Context, employerID uuid.UUID) (*EmployerView, error) {
	db := a.db.WithContext(ctx)
	view := &EmployerView{}

	jobs := db.Model(&models.JobPosting{}).Where("employer_id = ?", employerID)
	if err := jobs.Session(&gorm.Session{}).Count(&view.TotalJobs).Error; err != nil {
		return nil, apperrors.Wrap(err, "count jobs")
	}
	if err := jobs.Session(&gorm.Session{}).Where("status = ?", models.JobOpen).Count(&view.OpenJobs).Error; err != nil {
		return nil, apperrors.Wrap(err, "count open jobs")
	}

	var categories []Count
	err := jobs.Session(&gorm.Session{}).
		Select("category AS bucket, COUNT(*) AS count").
		Group("category").
		Scan(&categories).Error
	if err != nil {
		return nil, apperrors.Wrap(err, "category breakdown")
	}
	sort.Slice(categories, func(i, j int) bool {
		if categories[i].Count != categories[j].Count {
			return categories[i].Count > categories[j].Count
		}
		return categories[i].Key < categories[j].Key
	})
	view.CategoryBreakdown = nonNil(categories)

	jobIDs := db.Model(&models.JobPosting{}).Select("id").Where("employer_id = ?", employerID)
	apps := func() *gorm.DB {
		return db.Model(&models.Application{}).Where("job_id IN (?)", jobIDs)
	}

	if err := apps().Count(&view.TotalApplications).Error; err != nil {
		return nil, apperrors.Wrap(err, "count applications")
	}
	if view.StatusBreakdown, err = statusBreakdown(apps()); err != nil {
		return nil, err
	}
	if view.AvgScore, err = avgScore(apps()); err != nil {
		return nil, err
	}
	if view.ApplicationsByDay, err = a.byDay(apps()); err != nil {
		return nil, err
	}
	if view.RecentActivity, err = a.recent(ctx, employerID); err != nil {
		return nil, err
	}
	return view, nil
}

func (a *Aggregator) Applicant(ctx context.Context, applicantID uuid.UUID) (*ApplicantView, error) {
	db := a.db.WithContext(ctx)
	view := &ApplicantView{}
	apps := func() *gorm.DB {
		return db.Model(&models.Application{}).Where("applicant_id = ?", applicantID)
	}

	var err error
	if err = apps().Count(&view.TotalApplications).Error; err != nil {
		return nil, apperrors.Wrap(err, "count applications")
	}
	if view.StatusBreakdown, err = statusBreakdown(apps()); err != nil {
		return nil, err
	}
	if view.AvgScore, err = avgScore(apps()); err != nil {
		return nil, err
	}

	var top []ScoredApplication
	err = db.Table("applications").
		Select("applications.id AS application_id, applications.job_id, job_postings.title AS job_title, "+
			"job_postings.category AS job_category, applications.score, applications.rank, "+
			"applications.status, applications.applied_at").
		Joins("LEFT JOIN job_postings ON job_postings.id = applications.job_id").
		Where("applications.applicant_id = ?", applicantID).
		Order("applications.score DESC").
		Order("applications.applied_at ASC").
		Limit(TopScoredLimit).
		Scan(&top).Error
	if err != nil {
		return nil, apperrors.Wrap(err, "top scored applications")
	}
	view.TopScored = nonNil(top)

	if view.RecentActivity, err = a.recent(ctx, applicantID); err != nil {
		return nil, err
	}
	return view, nil
}

func statusBreakdown(q *gorm.DB) ([]Count, error) {
	var rows []Count
	if err := q.Select("status AS bucket, COUNT(*) AS count").Group("status").Scan(&rows).Error; err != nil {
		return nil, apperrors.Wrap(err, "status breakdown")
	}
	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.Key] = r.Count
	}
	out := make([]Count, 0, len(models.Statuses))
	for _, st := range models.Statuses {
		out = append(out, Count{Key: string(st), Count: counts[string(st)]})
	}
	return out, nil
}

// avgScore is the mean score rounded to one decimal; zero when there are no rows.
func avgScore(q *gorm.DB) (float64, error) {
	var avg sql.NullFloat64
	if err := q.Select("AVG(score)").Scan(&avg).Error; err != nil {
		return 0, apperrors.Wrap(err, "average score")
	}
	if !avg.Valid || math.IsNaN(avg.Float64) {
		return 0, nil
	}
	return math.Round(avg.Float64*10) / 10, nil
}

// byDay counts applications per UTC day over the last Days days, oldest first,
// with zero entries for quiet days. Grouping happens in Go so the query stays
// the same on every dialect.
func (a *Aggregator) byDay(q *gorm.DB) ([]DayCount, error) {
	today := a.now().UTC().Truncate(24 * time.Hour)
	start := today.AddDate(0, 0, -(Days - 1))

	var stamps []time.Time
	if err := q.Where("applied_at >= ?", start).Pluck("applied_at", &stamps).Error; err != nil {
		return nil, apperrors.Wrap(err, "applications by day")
	}

	counts := make(map[string]int64, Days)
	for _, ts := range stamps {
		counts[ts.UTC().Format(dateLayout)]++
	}

	out := make([]DayCount, 0, Days)
	for d := 0; d < Days; d++ {
		key := start.AddDate(0, 0, d).Format(dateLayout)
		out = append(out, DayCount{Date: key, Count: counts[key]})
	}
	return out, nil
}

func (a *Aggregator) recent(ctx context.Context, actorID uuid.UUID) ([]models.Activity, error) {
	if a.activity == nil {
		return []models.Activity{}, nil
	}
	entries, err := a.activity.RecentActivity(ctx, actorID, ActivityLimit)
	if err != nil {
		return nil, err
	}
	return nonNil(entries), nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
