package db

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/lifeos/memoryd/internal/domain"
	"github.com/lifeos/memoryd/internal/pkg/logger"
	"github.com/lifeos/memoryd/internal/utils"
)

// PostgresService owns the relational store connection. It is the one
// process-wide singleton the pipeline and query surface share.
type PostgresService struct {
	db  *gorm.DB
	log *logger.Logger
}

// NewPostgresService connects to the relational store. relationalURL is
// used directly as the connection DSN when set; an empty value falls back
// to discrete POSTGRES_* env vars for local development.
func NewPostgresService(baseLog *logger.Logger, relationalURL string) (*PostgresService, error) {
	serviceLog := baseLog.With("service", "PostgresService")

	dsn := relationalURL
	if dsn == "" {
		host := utils.GetEnv("POSTGRES_HOST", "localhost", baseLog)
		port := utils.GetEnv("POSTGRES_PORT", "5432", baseLog)
		user := utils.GetEnv("POSTGRES_USER", "postgres", baseLog)
		password := utils.GetEnv("POSTGRES_PASSWORD", "", baseLog)
		name := utils.GetEnv("POSTGRES_NAME", "memoryd", baseLog)

		dsn = fmt.Sprintf(
			"postgres://%s:%s@%s:%s/%s?sslmode=disable",
			user, password, host, port, name,
		)
	}

	// Ignore "record not found" spam: the query surface and the worker's
	// relational reads hit this constantly and it is not an error.
	gormLog := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             1 * time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	serviceLog.Info("Connecting to Postgres...")
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLog,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}

	if err := gdb.Exec(`CREATE EXTENSION IF NOT EXISTS "pgcrypto";`).Error; err != nil {
		return nil, fmt.Errorf("failed to enable pgcrypto extension: %w", err)
	}

	return &PostgresService{db: gdb, log: serviceLog}, nil
}

// AutoMigrateAll creates or updates the three tables the core owns. video_id
// is the GORM-default primary key on Video, so it carries a uniqueness index
// without a separate migration.
func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("Auto migrating postgres tables...")
	if err := s.db.AutoMigrate(
		&domain.User{},
		&domain.Video{},
		&domain.Highlight{},
	); err != nil {
		s.log.Error("Auto migration failed", "error", err)
		return err
	}
	return nil
}

func (s *PostgresService) DB() *gorm.DB {
	return s.db
}
