package db

import (
	"gorm.io/gorm"

	domain "github.com/yungbote/neurobridge-competency/internal/domain/competency"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Course{},
		&domain.Document{},
		&domain.Competency{},
		&domain.CompetencyEdge{},
		&domain.Assignment{},
		&domain.SyncRun{},
	)
}
