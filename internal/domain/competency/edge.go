package competency

import "time"

type EdgeKind string

const (
	EdgeSimilar      EdgeKind = "similar"
	EdgePrerequisite EdgeKind = "prerequisite"
	EdgeBuildsUpon   EdgeKind = "builds_upon"
	EdgeIndependent  EdgeKind = "independent"
)

// Symmetric edges are stored once with the earlier node as source.
func (k EdgeKind) Symmetric() bool {
	return k == EdgeSimilar || k == EdgeIndependent
}

func (k EdgeKind) Valid() bool {
	switch k {
	case EdgeSimilar, EdgePrerequisite, EdgeBuildsUpon, EdgeIndependent:
		return true
	}
	return false
}

type NodeType string

const (
	NodeDocument   NodeType = "document"
	NodeCompetency NodeType = "competency"
)

// CompetencyEdge is a typed relation between two documents or two competencies.
// Weight and Overlap are always within [0,1].
type CompetencyEdge struct {
	ID                 string    `gorm:"primaryKey;size:64" json:"id"`
	CourseID           string    `gorm:"size:128;not null;index;uniqueIndex:idx_edge_pair,priority:1" json:"course_id"`
	NodeType           NodeType  `gorm:"column:node_type;size:32;not null;uniqueIndex:idx_edge_pair,priority:2" json:"node_type"`
	SourceID           string    `gorm:"column:source_id;size:128;not null;index;uniqueIndex:idx_edge_pair,priority:3" json:"source_id"`
	TargetID           string    `gorm:"column:target_id;size:128;not null;index;uniqueIndex:idx_edge_pair,priority:4" json:"target_id"`
	Kind               EdgeKind  `gorm:"column:kind;size:32;not null" json:"kind"`
	Weight             float64   `gorm:"not null" json:"weight"`
	Overlap            float64   `gorm:"not null" json:"overlap"`
	IsPrerequisite     bool      `gorm:"column:is_prerequisite" json:"is_prerequisite"`
	BuildsUpon         bool      `gorm:"column:builds_upon" json:"builds_upon"`
	DifficultyIncrease bool      `gorm:"column:difficulty_increase" json:"difficulty_increase"`
	Reason             string    `json:"reason,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

func (CompetencyEdge) TableName() string { return "competency_edge" }

// Touches reports whether the edge is incident to nodeID.
func (e *CompetencyEdge) Touches(nodeID string) bool {
	return e.SourceID == nodeID || e.TargetID == nodeID
}
