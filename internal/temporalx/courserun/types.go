package courserun

import (
	"github.com/yungbote/neurobridge-competency/internal/modules/competency"
	"github.com/yungbote/neurobridge-competency/internal/modules/competency/hierarchy"
)

const (
	WorkflowName    = "competency_course_run"
	ActivityAnalyze = "competency_analyze_course"
	ActivitySync    = "competency_sync_course"
)

type Input struct {
	Course competency.CourseInput `json:"course"`
	Force  bool                   `json:"force"`
	Sync   bool                   `json:"sync"`
}

type Output struct {
	Report *competency.Report `json:"report"`
	Sync   *hierarchy.Result  `json:"sync,omitempty"`
}

// WorkflowID keeps at most one run per course in flight.
func WorkflowID(courseID string) string { return "course-run:" + courseID }
