// Package store persists jobs, applications and the activity log with gorm.
//
// Every write that changes the set of applications of a job (create, delete)
// runs through ranking.Engine.WithJob, so the applicant count, the activity
// entry and the new ranks commit together or not at all.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/moverq1337/hireboard/internal/apperrors"
	"github.com/moverq1337/hireboard/internal/filestore"
	"github.com/moverq1337/hireboard/internal/models"
	"github.com/moverq1337/hireboard/internal/ranking"
)

type Store struct {
	db     *gorm.DB
	engine *ranking.Engine
	files  filestore.Store
	now    func() time.Time
	log    logrus.FieldLogger
}

type Option func(*Store)

// WithClock replaces time.Now for every timestamp the store writes.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithFiles lets Delete remove the stored CV file after commit.
func WithFiles(files filestore.Store) Option {
	return func(s *Store) { s.files = files }
}

func New(db *gorm.DB, engine *ranking.Engine, log logrus.FieldLogger, opts ...Option) *Store {
	s := &Store{
		db:     db,
		engine: engine,
		now:    func() time.Time { return time.Now().UTC() },
		log:    log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) appendActivity(tx *gorm.DB, actorID, entityID uuid.UUID, entity models.EntityType, action, details string) error {
	entry := models.Activity{
		ID:         uuid.New(),
		ActorID:    actorID,
		EntityID:   entityID,
		EntityType: entity,
		Action:     action,
		Details:    details,
		Timestamp:  s.now(),
	}
	if err := tx.Create(&entry).Error; err != nil {
		return apperrors.Wrap(err, "append activity")
	}
	return nil
}

// RecentActivity returns the newest activity entries of actorID.
func (s *Store) RecentActivity(ctx context.Context, actorID uuid.UUID, limit int) ([]models.Activity, error) {
	if limit <= 0 {
		limit = 10
	}
	var out []models.Activity
	err := s.db.WithContext(ctx).
		Where("actor_id = ?", actorID).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "timestamp"}, Desc: true}).
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, apperrors.Wrap(err, "list activity")
	}
	return out, nil
}

// Rerank recomputes the ranks of jobID under its lock.
func (s *Store) Rerank(ctx context.Context, jobID uuid.UUID) error {
	return s.engine.Rerank(ctx, jobID)
}
