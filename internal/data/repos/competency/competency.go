package competency

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	domain "github.com/yungbote/neurobridge-competency/internal/domain/competency"
	"github.com/yungbote/neurobridge-competency/internal/platform/dbctx"
	"github.com/yungbote/neurobridge-competency/internal/platform/logger"
)

type CompetencyRepo interface {
	// UpsertByName inserts row or merges it into the competency that already has
	// the same normalized name in the course. A merge raises the taxonomy level,
	// unions origin documents and adds support. The stored row is returned along
	// with whether it was created.
	UpsertByName(dbc dbctx.Context, row *domain.Competency) (*domain.Competency, bool, error)
	GetByIDs(dbc dbctx.Context, ids []string) ([]*domain.Competency, error)
	GetByNormalizedName(dbc dbctx.Context, courseID, normalized string) (*domain.Competency, error)
	ListByCourse(dbc dbctx.Context, courseID string) ([]*domain.Competency, error)
	ListByDocument(dbc dbctx.Context, courseID, documentID string) ([]*domain.Competency, error)
	SetExternalIDs(dbc dbctx.Context, courseID string, externalByID map[string]int64) (int, error)
}

type competencyRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCompetencyRepo(db *gorm.DB, baseLog *logger.Logger) CompetencyRepo {
	return &competencyRepo{db: db, log: baseLog.With("repo", "CompetencyRepo")}
}

func (r *competencyRepo) inTx(dbc dbctx.Context, fn func(tx *gorm.DB) error) error {
	if dbc.Tx != nil {
		return fn(dbc.DB(r.db))
	}
	return dbc.DB(r.db).Transaction(fn)
}

func (r *competencyRepo) UpsertByName(dbc dbctx.Context, row *domain.Competency) (*domain.Competency, bool, error) {
	if row == nil || row.CourseID == "" || row.NormalizedName == "" {
		return nil, false, errors.New("competency course id and normalized name required")
	}
	var (
		out     *domain.Competency
		created bool
	)
	err := r.inTx(dbc, func(tx *gorm.DB) error {
		var existing domain.Competency
		if err := tx.Where("course_id = ? AND normalized_name = ?", row.CourseID, row.NormalizedName).
			Limit(1).Find(&existing).Error; err != nil {
			return err
		}
		if existing.ID == "" {
			if row.ID == "" {
				row.ID = uuid.NewString()
			}
			if row.OriginDocumentIDs == nil {
				row.OriginDocumentIDs = []string{}
			}
			if err := tx.Create(row).Error; err != nil {
				return err
			}
			out, created = row, true
			return nil
		}

		existing.TaxonomyLevel = existing.TaxonomyLevel.Max(row.TaxonomyLevel)
		// Support counts documents; re-extracting a known origin adds nothing.
		if len(row.OriginDocumentIDs) == 0 || hasNewOrigin(&existing, row.OriginDocumentIDs) {
			existing.SupportCount += row.SupportCount
		}
		existing.OriginDocumentIDs = unionIDs(existing.OriginDocumentIDs, row.OriginDocumentIDs)
		if existing.Description == "" {
			existing.Description = row.Description
		}
		if err := tx.Model(&domain.Competency{}).
			Where("id = ?", existing.ID).
			Updates(map[string]interface{}{
				"taxonomy_level":      existing.TaxonomyLevel,
				"origin_document_ids": existing.OriginDocumentIDs,
				"support_count":       existing.SupportCount,
				"description":         existing.Description,
			}).Error; err != nil {
			return err
		}
		out = &existing
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, created, nil
}

func hasNewOrigin(c *domain.Competency, ids []string) bool {
	for _, id := range ids {
		if id != "" && !c.HasOrigin(id) {
			return true
		}
	}
	return false
}

func unionIDs(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, id := range list {
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func (r *competencyRepo) GetByIDs(dbc dbctx.Context, ids []string) ([]*domain.Competency, error) {
	var out []*domain.Competency
	if len(ids) == 0 {
		return out, nil
	}
	if err := dbc.DB(r.db).Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// GetByNormalizedName returns (nil, nil) when nothing matches.
func (r *competencyRepo) GetByNormalizedName(dbc dbctx.Context, courseID, normalized string) (*domain.Competency, error) {
	var out domain.Competency
	if err := dbc.DB(r.db).
		Where("course_id = ? AND normalized_name = ?", courseID, normalized).
		Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, nil
	}
	return &out, nil
}

func (r *competencyRepo) ListByCourse(dbc dbctx.Context, courseID string) ([]*domain.Competency, error) {
	var out []*domain.Competency
	if err := dbc.DB(r.db).
		Where("course_id = ?", courseID).
		Order("created_at ASC, normalized_name ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ListByDocument filters in Go: origin ids are a JSON column and the query has
// to work on both Postgres and SQLite.
func (r *competencyRepo) ListByDocument(dbc dbctx.Context, courseID, documentID string) ([]*domain.Competency, error) {
	all, err := r.ListByCourse(dbc, courseID)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Competency, 0, len(all))
	for _, c := range all {
		if c.HasOrigin(documentID) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *competencyRepo) SetExternalIDs(dbc dbctx.Context, courseID string, externalByID map[string]int64) (int, error) {
	if len(externalByID) == 0 {
		return 0, nil
	}
	updated := 0
	err := r.inTx(dbc, func(tx *gorm.DB) error {
		for id, ext := range externalByID {
			res := tx.Model(&domain.Competency{}).
				Where("id = ? AND course_id = ?", id, courseID).
				Update("external_id", ext)
			if res.Error != nil {
				return res.Error
			}
			updated += int(res.RowsAffected)
		}
		return nil
	})
	return updated, err
}
