package competency

import (
	"errors"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domain "github.com/yungbote/neurobridge-competency/internal/domain/competency"
	"github.com/yungbote/neurobridge-competency/internal/platform/dbctx"
	"github.com/yungbote/neurobridge-competency/internal/platform/logger"
)

type AssignmentRepo interface {
	// Upsert writes the assignment's source fields. Match results are left
	// untouched; use SetMatch for those.
	Upsert(dbc dbctx.Context, row *domain.Assignment) error
	SetMatch(dbc dbctx.Context, id, displayTitle string, competencyIDs []string, reasoning string) error
	GetByID(dbc dbctx.Context, id string) (*domain.Assignment, error)
	ListByCourse(dbc dbctx.Context, courseID string) ([]*domain.Assignment, error)
}

type assignmentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAssignmentRepo(db *gorm.DB, baseLog *logger.Logger) AssignmentRepo {
	return &assignmentRepo{db: db, log: baseLog.With("repo", "AssignmentRepo")}
}

func (r *assignmentRepo) Upsert(dbc dbctx.Context, row *domain.Assignment) error {
	if row == nil || row.ID == "" || row.CourseID == "" {
		return errors.New("assignment id and course id required")
	}
	if row.LinkedCompetencyIDs == nil {
		row.LinkedCompetencyIDs = []string{}
	}
	return dbc.DB(r.db).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"course_id", "module_id", "title", "description", "rule_outcome", "updated_at",
			}),
		}).
		Create(row).Error
}

func (r *assignmentRepo) SetMatch(dbc dbctx.Context, id, displayTitle string, competencyIDs []string, reasoning string) error {
	if len(competencyIDs) > domain.MaxLinkedCompetencies {
		return errors.New("too many linked competencies")
	}
	if competencyIDs == nil {
		competencyIDs = []string{}
	}
	return dbc.DB(r.db).Model(&domain.Assignment{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"display_title":         displayTitle,
			"linked_competency_ids": datatypes.JSONSlice[string](competencyIDs),
			"reasoning":             reasoning,
		}).Error
}

// GetByID returns (nil, nil) when the assignment does not exist.
func (r *assignmentRepo) GetByID(dbc dbctx.Context, id string) (*domain.Assignment, error) {
	var out domain.Assignment
	if err := dbc.DB(r.db).Where("id = ?", id).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, nil
	}
	return &out, nil
}

func (r *assignmentRepo) ListByCourse(dbc dbctx.Context, courseID string) ([]*domain.Assignment, error) {
	var out []*domain.Assignment
	if err := dbc.DB(r.db).
		Where("course_id = ?", courseID).
		Order("module_id ASC, id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
