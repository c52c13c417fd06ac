package db

import (
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/moverq1337/hireboard/internal/apperrors"
	"github.com/moverq1337/hireboard/internal/models"
)

// Config returns the gorm settings shared by every dialect. Duplicate-key
// violations are translated to gorm.ErrDuplicatedKey so the store can map them.
func Config(log logrus.FieldLogger) *gorm.Config {
	cfg := &gorm.Config{TranslateError: true}
	if l, ok := log.(*logrus.Logger); ok {
		cfg.Logger = gormlogger.New(l, gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		})
	} else {
		cfg.Logger = gormlogger.Discard
	}
	return cfg
}

// Connect opens the Postgres database behind dsn.
func Connect(dsn string, log logrus.FieldLogger) (*gorm.DB, error) {
	if dsn == "" {
		return nil, apperrors.New("DB_URL is required")
	}

	conn, err := gorm.Open(postgres.Open(dsn), Config(log))
	if err != nil {
		return nil, apperrors.Wrap(err, "open postgres")
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, apperrors.Wrap(err, "postgres handle")
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return conn, nil
}

// Migrate brings the schema up to date with the models.
func Migrate(conn *gorm.DB) error {
	err := conn.AutoMigrate(
		&models.JobPosting{},
		&models.Application{},
		&models.Activity{},
	)
	if err != nil {
		return apperrors.Wrap(err, "auto migrate")
	}
	return nil
}
