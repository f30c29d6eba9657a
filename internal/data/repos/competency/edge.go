package competency

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	domain "github.com/yungbote/neurobridge-competency/internal/domain/competency"
	"github.com/yungbote/neurobridge-competency/internal/platform/dbctx"
	"github.com/yungbote/neurobridge-competency/internal/platform/logger"
)

type EdgeRepo interface {
	// ReplaceForCourse swaps the course's edge set of one node type for rows in
	// a single transaction: readers see either the old or the new snapshot.
	ReplaceForCourse(dbc dbctx.Context, courseID string, nodeType domain.NodeType, rows []*domain.CompetencyEdge) error
	ListByCourse(dbc dbctx.Context, courseID string, nodeType domain.NodeType) ([]*domain.CompetencyEdge, error)
	ListIncident(dbc dbctx.Context, nodeID string) ([]*domain.CompetencyEdge, error)
}

type edgeRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEdgeRepo(db *gorm.DB, baseLog *logger.Logger) EdgeRepo {
	return &edgeRepo{db: db, log: baseLog.With("repo", "EdgeRepo")}
}

func (r *edgeRepo) ReplaceForCourse(dbc dbctx.Context, courseID string, nodeType domain.NodeType, rows []*domain.CompetencyEdge) error {
	for _, e := range rows {
		if e == nil {
			return fmt.Errorf("nil edge")
		}
		if e.SourceID == e.TargetID {
			return fmt.Errorf("self-loop on %s", e.SourceID)
		}
		if e.Weight < 0 || e.Weight > 1 || e.Overlap < 0 || e.Overlap > 1 {
			return fmt.Errorf("edge %s->%s out of range: weight=%v overlap=%v", e.SourceID, e.TargetID, e.Weight, e.Overlap)
		}
		if !e.Kind.Valid() {
			return fmt.Errorf("edge %s->%s has invalid kind %q", e.SourceID, e.TargetID, e.Kind)
		}
		e.CourseID = courseID
		e.NodeType = nodeType
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
	}

	swap := func(tx *gorm.DB) error {
		if err := tx.Where("course_id = ? AND node_type = ?", courseID, nodeType).
			Delete(&domain.CompetencyEdge{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(rows, 200).Error
	}
	if dbc.Tx != nil {
		return swap(dbc.DB(r.db))
	}
	if err := dbc.DB(r.db).Transaction(swap); err != nil {
		return err
	}
	r.log.Debug("Edges replaced", "course_id", courseID, "node_type", nodeType, "count", len(rows))
	return nil
}

func (r *edgeRepo) ListByCourse(dbc dbctx.Context, courseID string, nodeType domain.NodeType) ([]*domain.CompetencyEdge, error) {
	var out []*domain.CompetencyEdge
	if err := dbc.DB(r.db).
		Where("course_id = ? AND node_type = ?", courseID, nodeType).
		Order("source_id ASC, target_id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *edgeRepo) ListIncident(dbc dbctx.Context, nodeID string) ([]*domain.CompetencyEdge, error) {
	var out []*domain.CompetencyEdge
	if err := dbc.DB(r.db).
		Where("source_id = ? OR target_id = ?", nodeID, nodeID).
		Order("kind ASC, weight DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
