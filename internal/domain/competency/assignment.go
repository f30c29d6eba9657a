package competency

import (
	"time"

	"gorm.io/datatypes"
)

// MaxLinkedCompetencies bounds how many competencies one assignment may address.
const MaxLinkedCompetencies = 7

// Assignment is a graded platform activity. ModuleID is the platform's
// course-module id; zero means the activity is not on the platform yet.
type Assignment struct {
	ID                  string                     `gorm:"primaryKey;size:128" json:"id"`
	CourseID            string                     `gorm:"size:128;not null;index" json:"course_id"`
	ModuleID            int64                      `gorm:"column:module_id;index" json:"module_id"`
	Title               string                     `gorm:"not null" json:"title"`
	DisplayTitle        string                     `gorm:"column:display_title" json:"display_title,omitempty"`
	Description         string                     `json:"description,omitempty"`
	LinkedCompetencyIDs datatypes.JSONSlice[string] `gorm:"column:linked_competency_ids" json:"linked_competency_ids"`
	Reasoning           string                     `json:"reasoning,omitempty"`
	RuleOutcome         RuleOutcome                `gorm:"column:rule_outcome;not null" json:"rule_outcome"`
	CreatedAt           time.Time                  `json:"created_at"`
	UpdatedAt           time.Time                  `json:"updated_at"`
}

func (Assignment) TableName() string { return "assignment" }
