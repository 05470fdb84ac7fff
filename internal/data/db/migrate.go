package db

import (
	"gorm.io/gorm"

	types "github.com/yungbote/docflow-backend/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		// Pipeline state machine
		&types.DocumentState{},
		&types.Lease{},
		&types.TransitionRecord{},

		// Vector space
		&types.EmbeddingRecord{},
		&types.ConnectionEntry{},
	)
}
