package competency

import (
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// RuleOutcome is the platform's effect of completing an activity on a linked
// competency. The numeric values are the platform's.
type RuleOutcome int

const (
	OutcomeNone      RuleOutcome = 0
	OutcomeEvidence  RuleOutcome = 1
	OutcomeRecommend RuleOutcome = 2
	OutcomeComplete  RuleOutcome = 3
)

func (o RuleOutcome) Valid() bool {
	return o >= OutcomeNone && o <= OutcomeComplete
}

func (o RuleOutcome) String() string {
	switch o {
	case OutcomeNone:
		return "none"
	case OutcomeEvidence:
		return "evidence"
	case OutcomeRecommend:
		return "recommend"
	case OutcomeComplete:
		return "complete"
	}
	return "invalid"
}

// SyncState is ordered: each state implies all earlier ones.
type SyncState int

const (
	StateUnsynced SyncState = iota
	StateFrameworkCreated
	StateCompetenciesUploaded
	StateModulesLinked
)

func (s SyncState) String() string {
	switch s {
	case StateUnsynced:
		return "UNSYNCED"
	case StateFrameworkCreated:
		return "FRAMEWORK_CREATED"
	case StateCompetenciesUploaded:
		return "COMPETENCIES_UPLOADED"
	case StateModulesLinked:
		return "MODULES_LINKED"
	}
	return "UNKNOWN"
}

func (s SyncState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *SyncState) UnmarshalText(b []byte) error {
	for v := StateUnsynced; v <= StateModulesLinked; v++ {
		if v.String() == string(b) {
			*s = v
			return nil
		}
	}
	return fmt.Errorf("unknown sync state %q", string(b))
}

// Framework mirrors the platform container for a course's competencies.
type Framework struct {
	ExternalID int64  `json:"external_id"`
	CourseID   string `json:"course_id"`
	IDNumber   string `json:"idnumber"`
	ShortName  string `json:"shortname"`
}

// ModuleCompetencyLink mirrors one activity-to-competency link on the platform.
type ModuleCompetencyLink struct {
	ModuleID     int64       `json:"module_id"`
	CompetencyID int64       `json:"competency_id"`
	RuleOutcome  RuleOutcome `json:"rule_outcome"`
}

// SyncRun is an audit record of one synchronizer run. It is never consulted to
// decide sync state.
type SyncRun struct {
	ID          string                     `gorm:"primaryKey;size:64" json:"id"`
	CourseID    string                     `gorm:"size:128;not null;index" json:"course_id"`
	FinalState  string                     `gorm:"column:final_state;size:32" json:"final_state"`
	Created     int                        `json:"created"`
	Updated     int                        `json:"updated"`
	Removed     int                        `json:"removed"`
	Unchanged   int                        `json:"unchanged"`
	Skipped     int                        `json:"skipped"`
	Failed      int                        `json:"failed"`
	FirstErrors datatypes.JSONSlice[string] `gorm:"column:first_errors" json:"first_errors,omitempty"`
	StartedAt   time.Time                  `gorm:"column:started_at;index" json:"started_at"`
	FinishedAt  time.Time                  `gorm:"column:finished_at" json:"finished_at"`
}

func (SyncRun) TableName() string { return "sync_run" }
