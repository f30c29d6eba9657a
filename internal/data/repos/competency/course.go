package competency

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domain "github.com/yungbote/neurobridge-competency/internal/domain/competency"
	"github.com/yungbote/neurobridge-competency/internal/platform/dbctx"
	"github.com/yungbote/neurobridge-competency/internal/platform/logger"
)

type CourseRepo interface {
	Upsert(dbc dbctx.Context, row *domain.Course) error
	GetByID(dbc dbctx.Context, id string) (*domain.Course, error)
	List(dbc dbctx.Context) ([]*domain.Course, error)
}

type courseRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCourseRepo(db *gorm.DB, baseLog *logger.Logger) CourseRepo {
	return &courseRepo{db: db, log: baseLog.With("repo", "CourseRepo")}
}

func (r *courseRepo) Upsert(dbc dbctx.Context, row *domain.Course) error {
	if row == nil || row.ID == "" {
		return errors.New("course id required")
	}
	return dbc.DB(r.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"short_name", "full_name", "external_id", "updated_at"}),
		}).
		Create(row).Error
}

// GetByID returns (nil, nil) when the course does not exist.
func (r *courseRepo) GetByID(dbc dbctx.Context, id string) (*domain.Course, error) {
	var out domain.Course
	err := dbc.DB(r.db).Where("id = ?", id).Limit(1).Find(&out).Error
	if err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, nil
	}
	return &out, nil
}

func (r *courseRepo) List(dbc dbctx.Context) ([]*domain.Course, error) {
	var out []*domain.Course
	if err := dbc.DB(r.db).Order("id ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
