package hierarchy

import (
	"context"
	"fmt"

	domain "github.com/yungbote/neurobridge-competency/internal/domain/competency"
)

// Op names a platform operation.
type Op string

const (
	OpCreateFramework   Op = "create_framework"
	OpCreateCompetency  Op = "create_competency"
	OpAddToCourse       Op = "add_competency_to_course"
	OpAddToModule       Op = "add_competency_to_module"
	OpRemoveFromModule  Op = "remove_competency_from_module"
	OpSetModuleOutcome  Op = "set_module_competency_rule_outcome"
	OpUpdateSection     Op = "update_section_summary"
	OpListFrameworks    Op = "list_frameworks"
	OpListCompetencies  Op = "list_competencies"
	OpListCourseLinks   Op = "list_course_competencies"
	OpListModuleLinks   Op = "list_module_competencies"
	OpListSections      Op = "list_sections"
	OpFetchCapabilities Op = "fetch_capabilities"
)

// WriteOps are the operations gated by the management capability.
var WriteOps = []Op{OpCreateFramework, OpCreateCompetency, OpAddToCourse, OpAddToModule, OpRemoveFromModule, OpSetModuleOutcome, OpUpdateSection}

type FrameworkSpec struct {
	CourseID    string
	IDNumber    string
	ShortName   string
	Description string
}

type CompetencySpec struct {
	FrameworkID   int64
	IDNumber      string
	ShortName     string
	Description   string
	TaxonomyLevel domain.TaxonomyLevel
}

// RemoteCompetency is a competency as the platform stores it.
type RemoteCompetency struct {
	ID        int64
	IDNumber  string
	ShortName string
}

// RemoteAssignment is a graded activity listed by the platform.
type RemoteAssignment struct {
	ModuleID    int64
	Name        string
	Description string
}

// RemoteSection is one topic section of a platform course with the activities
// placed in it.
type RemoteSection struct {
	Number  int
	Name    string
	Summary string
	Modules []RemoteModule
}

type RemoteModule struct {
	ID      int64
	Name    string
	ModName string
	// Files are the filenames of the module's attached contents.
	Files []string
}

// SectionUpdate rewrites a section summary. An empty Name keeps the current one.
type SectionUpdate struct {
	Number  int
	Name    string
	Summary string
}

// Writer is every mutating platform operation.
type Writer interface {
	CreateFramework(ctx context.Context, spec FrameworkSpec) (int64, error)
	CreateCompetency(ctx context.Context, spec CompetencySpec) (int64, error)
	AddCompetencyToCourse(ctx context.Context, courseID, competencyID int64) error
	AddCompetencyToModule(ctx context.Context, moduleID, competencyID int64, outcome domain.RuleOutcome) error
	RemoveCompetencyFromModule(ctx context.Context, moduleID, competencyID int64) error
	SetModuleCompetencyRuleOutcome(ctx context.Context, moduleID, competencyID int64, outcome domain.RuleOutcome) error
	UpdateSection(ctx context.Context, courseID int64, upd SectionUpdate) error
}

// Platform is the external teaching platform: reads plus the writer.
type Platform interface {
	Writer
	// Capabilities reports which write operations the credentials may call.
	Capabilities(ctx context.Context) (map[Op]bool, error)
	// FindFramework returns (nil, nil) when no framework has idNumber.
	FindFramework(ctx context.Context, idNumber string) (*domain.Framework, error)
	ListFrameworkCompetencies(ctx context.Context, frameworkID int64) ([]RemoteCompetency, error)
	ListCourseCompetencies(ctx context.Context, courseID int64) ([]int64, error)
	ListModuleLinks(ctx context.Context, moduleID int64) ([]domain.ModuleCompetencyLink, error)
	ListAssignments(ctx context.Context, courseID int64) ([]RemoteAssignment, error)
	ListSections(ctx context.Context, courseID int64) ([]RemoteSection, error)
}

// GatedWriter refuses every write whose capability is missing, before the
// platform is contacted.
type GatedWriter struct {
	inner   Writer
	allowed map[Op]bool
}

func NewGatedWriter(inner Writer, allowed map[Op]bool) *GatedWriter {
	cp := make(map[Op]bool, len(allowed))
	for k, v := range allowed {
		cp[k] = v
	}
	return &GatedWriter{inner: inner, allowed: cp}
}

func (g *GatedWriter) check(op Op) error {
	if !g.allowed[op] {
		return fmt.Errorf("%w: missing capability for %s", ErrPermission, op)
	}
	return nil
}

func (g *GatedWriter) CreateFramework(ctx context.Context, spec FrameworkSpec) (int64, error) {
	if err := g.check(OpCreateFramework); err != nil {
		return 0, err
	}
	return g.inner.CreateFramework(ctx, spec)
}

func (g *GatedWriter) CreateCompetency(ctx context.Context, spec CompetencySpec) (int64, error) {
	if err := g.check(OpCreateCompetency); err != nil {
		return 0, err
	}
	return g.inner.CreateCompetency(ctx, spec)
}

func (g *GatedWriter) AddCompetencyToCourse(ctx context.Context, courseID, competencyID int64) error {
	if err := g.check(OpAddToCourse); err != nil {
		return err
	}
	return g.inner.AddCompetencyToCourse(ctx, courseID, competencyID)
}

func (g *GatedWriter) AddCompetencyToModule(ctx context.Context, moduleID, competencyID int64, outcome domain.RuleOutcome) error {
	if err := g.check(OpAddToModule); err != nil {
		return err
	}
	return g.inner.AddCompetencyToModule(ctx, moduleID, competencyID, outcome)
}

func (g *GatedWriter) RemoveCompetencyFromModule(ctx context.Context, moduleID, competencyID int64) error {
	if err := g.check(OpRemoveFromModule); err != nil {
		return err
	}
	return g.inner.RemoveCompetencyFromModule(ctx, moduleID, competencyID)
}

func (g *GatedWriter) SetModuleCompetencyRuleOutcome(ctx context.Context, moduleID, competencyID int64, outcome domain.RuleOutcome) error {
	if err := g.check(OpSetModuleOutcome); err != nil {
		return err
	}
	return g.inner.SetModuleCompetencyRuleOutcome(ctx, moduleID, competencyID, outcome)
}

func (g *GatedWriter) UpdateSection(ctx context.Context, courseID int64, upd SectionUpdate) error {
	if err := g.check(OpUpdateSection); err != nil {
		return err
	}
	return g.inner.UpdateSection(ctx, courseID, upd)
}
