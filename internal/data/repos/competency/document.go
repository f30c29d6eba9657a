package competency

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domain "github.com/yungbote/neurobridge-competency/internal/domain/competency"
	"github.com/yungbote/neurobridge-competency/internal/platform/dbctx"
	"github.com/yungbote/neurobridge-competency/internal/platform/logger"
)

type DocumentRepo interface {
	Upsert(dbc dbctx.Context, row *domain.Document) error
	GetByID(dbc dbctx.Context, id string) (*domain.Document, error)
	ListByCourse(dbc dbctx.Context, courseID string) ([]*domain.Document, error)
	DeleteMissing(dbc dbctx.Context, courseID string, keepIDs []string) (int64, error)
}

type documentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDocumentRepo(db *gorm.DB, baseLog *logger.Logger) DocumentRepo {
	return &documentRepo{db: db, log: baseLog.With("repo", "DocumentRepo")}
}

func (r *documentRepo) Upsert(dbc dbctx.Context, row *domain.Document) error {
	if row == nil || row.ID == "" || row.CourseID == "" {
		return errors.New("document id and course id required")
	}
	return dbc.DB(r.db).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"course_id", "title", "content_ref", "content_hash", "ordinal", "topic_title", "updated_at",
			}),
		}).
		Create(row).Error
}

// GetByID returns (nil, nil) when the document does not exist.
func (r *documentRepo) GetByID(dbc dbctx.Context, id string) (*domain.Document, error) {
	var out domain.Document
	if err := dbc.DB(r.db).Where("id = ?", id).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, nil
	}
	return &out, nil
}

func (r *documentRepo) ListByCourse(dbc dbctx.Context, courseID string) ([]*domain.Document, error) {
	var out []*domain.Document
	if err := dbc.DB(r.db).
		Where("course_id = ?", courseID).
		Order("ordinal ASC, id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteMissing removes course documents whose id is not in keepIDs.
func (r *documentRepo) DeleteMissing(dbc dbctx.Context, courseID string, keepIDs []string) (int64, error) {
	q := dbc.DB(r.db).Where("course_id = ?", courseID)
	if len(keepIDs) > 0 {
		q = q.Where("id NOT IN ?", keepIDs)
	}
	res := q.Delete(&domain.Document{})
	return res.RowsAffected, res.Error
}
