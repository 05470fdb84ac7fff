package db

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/yungbote/docflow-backend/internal/pkg/logger"
	"github.com/yungbote/docflow-backend/internal/utils"
)

type Service struct {
	db     *gorm.DB
	native bool
	log    *logger.Logger
}

// New opens the configured backend. DB_BACKEND=sqlite selects the
// embedded fallback (no native vector indexing); anything else is
// Postgres with the uuid-ossp and pgvector extensions.
func New(logg *logger.Logger) (*Service, error) {
	serviceLog := logg.With("service", "DBService")

	backend := strings.ToLower(utils.GetEnv("DB_BACKEND", "postgres", logg))
	gormLog := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             1 * time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	cfg := &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLog,
		TranslateError:                           true,
	}

	if backend == "sqlite" {
		path := utils.GetEnv("SQLITE_PATH", "docflow.db", logg)
		db, err := gorm.Open(sqlite.Open(path), cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite at %s: %w", path, err)
		}
		serviceLog.Warn("sqlite backend selected; vectors stored as text, no native vector indexing", "path", path)
		return &Service{db: db, native: false, log: serviceLog}, nil
	}

	host := utils.GetEnv("POSTGRES_HOST", "localhost", logg)
	port := utils.GetEnv("POSTGRES_PORT", "5432", logg)
	user := utils.GetEnv("POSTGRES_USER", "postgres", logg)
	password := utils.GetEnv("POSTGRES_PASSWORD", "", logg)
	name := utils.GetEnv("POSTGRES_NAME", "docflow", logg)

	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		user, password, host, port, name,
	)

	db, err := gorm.Open(postgres.Open(dsn), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}

	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`).Error; err != nil {
		return nil, fmt.Errorf("failed to enable uuid-ossp extension: %w", err)
	}
	native := true
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS vector;`).Error; err != nil {
		native = false
		serviceLog.Warn("pgvector extension unavailable; vectors stored without native indexing", "error", err)
	}

	return &Service{db: db, native: native, log: serviceLog}, nil
}

func (s *Service) DB() *gorm.DB { return s.db }

// NativeVectors reports whether the backend stores vectors as a native
// vector type.
func (s *Service) NativeVectors() bool { return s.native }

func (s *Service) AutoMigrateAll() error {
	return AutoMigrateAll(s.db)
}
