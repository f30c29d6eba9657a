package competency

import (
	"gorm.io/gorm"

	"github.com/yungbote/neurobridge-competency/internal/platform/logger"
)

// Repos groups every repository over one database handle.
type Repos struct {
	Courses      CourseRepo
	Documents    DocumentRepo
	Competencies CompetencyRepo
	Edges        EdgeRepo
	Assignments  AssignmentRepo
	SyncRuns     SyncRunRepo
}

func New(db *gorm.DB, log *logger.Logger) Repos {
	return Repos{
		Courses:      NewCourseRepo(db, log),
		Documents:    NewDocumentRepo(db, log),
		Competencies: NewCompetencyRepo(db, log),
		Edges:        NewEdgeRepo(db, log),
		Assignments:  NewAssignmentRepo(db, log),
		SyncRuns:     NewSyncRunRepo(db, log),
	}
}
