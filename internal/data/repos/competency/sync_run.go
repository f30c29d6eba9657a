package competency

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	domain "github.com/yungbote/neurobridge-competency/internal/domain/competency"
	"github.com/yungbote/neurobridge-competency/internal/platform/dbctx"
	"github.com/yungbote/neurobridge-competency/internal/platform/logger"
)

type SyncRunRepo interface {
	Create(dbc dbctx.Context, row *domain.SyncRun) error
	ListByCourse(dbc dbctx.Context, courseID string, limit int) ([]*domain.SyncRun, error)
}

type syncRunRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSyncRunRepo(db *gorm.DB, baseLog *logger.Logger) SyncRunRepo {
	return &syncRunRepo{db: db, log: baseLog.With("repo", "SyncRunRepo")}
}

func (r *syncRunRepo) Create(dbc dbctx.Context, row *domain.SyncRun) error {
	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	if row.FirstErrors == nil {
		row.FirstErrors = []string{}
	}
	return dbc.DB(r.db).Create(row).Error
}

func (r *syncRunRepo) ListByCourse(dbc dbctx.Context, courseID string, limit int) ([]*domain.SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}
	var out []*domain.SyncRun
	if err := dbc.DB(r.db).
		Where("course_id = ?", courseID).
		Order("started_at DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
