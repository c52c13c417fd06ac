// Package ranking keeps the applicant order of every job dense and stable.
//
// A rerank reads all applications of one job, sorts them by score (highest
// first, earlier submissions winning ties) and writes rank = position. It
// always runs inside a transaction while the job's lock is held, so readers
// never see a half-written order.
package ranking

import (
	"bytes"
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/moverq1337/hireboard/internal/apperrors"
	"github.com/moverq1337/hireboard/internal/models"
)

// Sort orders apps by score descending, then AppliedAt ascending, then ID.
func Sort(apps []models.Application) {
	sort.SliceStable(apps, func(i, j int) bool {
		a, b := apps[i], apps[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.AppliedAt.Equal(b.AppliedAt) {
			return a.AppliedAt.Before(b.AppliedAt)
		}
		return bytes.Compare(a.ID[:], b.ID[:]) < 0
	})
}

// LockJob reads the job row FOR UPDATE. Every rank-affecting unit of work
// takes it first, so instances sharing a database serialize on the row. SQLite
// has no row locks and the driver drops the clause; the per-job mutex covers
// that case.
func LockJob(tx *gorm.DB, jobID uuid.UUID) (*models.JobPosting, error) {
	var job models.JobPosting
	err := tx.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).First(&job, "id = ?", jobID).Error
	if apperrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("job")
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "lock job")
	}
	return &job, nil
}

// Ranks is the order a rerank left behind.
type Ranks struct {
	ByID    map[uuid.UUID]int
	Changed int
}

// RerankTx recomputes ranks for jobID using tx. Callers must hold the job's lock.
func RerankTx(tx *gorm.DB, jobID uuid.UUID) (Ranks, error) {
	var apps []models.Application
	err := tx.Model(&models.Application{}).
		Select("id", "score", "applied_at", "rank").
		Where("job_id = ?", jobID).
		Find(&apps).Error
	if err != nil {
		return Ranks{}, apperrors.Wrap(err, "load applications for rerank")
	}

	Sort(apps)
	out := Ranks{ByID: make(map[uuid.UUID]int, len(apps))}
	for pos, app := range apps {
		rank := pos + 1
		out.ByID[app.ID] = rank
		if app.Rank != nil && *app.Rank == rank {
			continue
		}
		res := tx.Model(&models.Application{}).Where("id = ?", app.ID).UpdateColumn("rank", rank)
		if res.Error != nil {
			return Ranks{}, apperrors.Wrapf(res.Error, "write rank %d", rank)
		}
		out.Changed++
	}
	return out, nil
}

// Engine runs reranks and other rank-affecting units of work under a per-job lock.
type Engine struct {
	db    *gorm.DB
	locks *KeyedMutex
	log   logrus.FieldLogger
}

func NewEngine(db *gorm.DB, log logrus.FieldLogger) *Engine {
	return &Engine{db: db, locks: NewKeyedMutex(), log: log}
}

// WithJob runs fn and a rerank of jobID in one transaction. The in-process
// job mutex is held throughout, and the job row is locked before fn runs; fn
// receives the locked row. If fn or the rerank fails nothing is committed.
func (e *Engine) WithJob(ctx context.Context, jobID uuid.UUID, fn func(tx *gorm.DB, job *models.JobPosting) error) (Ranks, error) {
	unlock, err := e.locks.Lock(ctx, jobID)
	if err != nil {
		return Ranks{}, apperrors.Wrap(err, "acquire job lock")
	}
	defer unlock()

	var ranks Ranks
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		job, err := LockJob(tx, jobID)
		if err != nil {
			return err
		}
		if fn != nil {
			if err := fn(tx, job); err != nil {
				return err
			}
		}
		ranks, err = RerankTx(tx, jobID)
		return err
	})
	if err != nil {
		return Ranks{}, err
	}

	e.log.WithFields(logrus.Fields{
		"job_id":  jobID,
		"changed": ranks.Changed,
	}).Debug("job reranked")
	return ranks, nil
}

// Rerank recomputes ranks for jobID.
func (e *Engine) Rerank(ctx context.Context, jobID uuid.UUID) error {
	_, err := e.WithJob(ctx, jobID, nil)
	return err
}
