package competency

import (
	"time"

	"gorm.io/datatypes"
)

// Competency is a durable, course-scoped unit of knowledge. NormalizedName is
// unique per course.
type Competency struct {
	ID                string                     `gorm:"primaryKey;size:64" json:"id"`
	CourseID          string                     `gorm:"size:128;not null;uniqueIndex:idx_competency_course_name,priority:1" json:"course_id"`
	Name              string                     `gorm:"not null" json:"name"`
	NormalizedName    string                     `gorm:"column:normalized_name;not null;uniqueIndex:idx_competency_course_name,priority:2" json:"normalized_name"`
	Description       string                     `json:"description,omitempty"`
	TaxonomyLevel     TaxonomyLevel              `gorm:"column:taxonomy_level;not null" json:"taxonomy_level"`
	OriginDocumentIDs datatypes.JSONSlice[string] `gorm:"column:origin_document_ids" json:"origin_document_ids"`
	SupportCount      int                        `gorm:"column:support_count;not null;default:0" json:"support_count"`
	// ExternalID is the platform competency id recorded after a sync. It is
	// informational; sync state is always re-derived from the platform.
	ExternalID int64     `gorm:"column:external_id" json:"external_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (Competency) TableName() string { return "competency" }

// HasOrigin reports whether docID is among the origin documents.
func (c *Competency) HasOrigin(docID string) bool {
	for _, id := range c.OriginDocumentIDs {
		if id == docID {
			return true
		}
	}
	return false
}
