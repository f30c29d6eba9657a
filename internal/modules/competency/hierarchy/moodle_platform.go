package hierarchy

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	domain "github.com/yungbote/neurobridge-competency/internal/domain/competency"
	"github.com/yungbote/neurobridge-competency/internal/platform/moodle"
)

// Moodle web service functions, by operation.
var moodleFunctions = map[Op]string{
	OpCreateFramework:  "core_competency_create_competency_framework",
	OpCreateCompetency: "core_competency_create_competency",
	OpAddToCourse:      "core_competency_add_competency_to_course",
	OpAddToModule:      "local_competency_linker_add_competency_to_module",
	OpRemoveFromModule: "local_competency_linker_remove_competency_from_module",
	OpSetModuleOutcome: "local_competency_linker_set_module_competency_ruleoutcome",
	OpUpdateSection:    "local_wsmanagesections_update_sections",
}

const (
	fnListFrameworks     = "core_competency_list_competency_frameworks"
	fnSearchCompetencies = "core_competency_search_competencies"
	fnListCourseComps    = "core_competency_list_course_competencies"
	fnListModuleComps    = "core_competency_list_course_module_competencies"
	fnGetAssignments     = "mod_assign_get_assignments"
	fnGetContents        = "core_course_get_contents"

	// defaultScaleID is the platform's stock competence scale.
	defaultScaleID     = 2
	defaultScaleConfig = `[{"scaleid":"2"},{"id":1,"scaledefault":0,"proficient":0},{"id":2,"scaledefault":1,"proficient":1}]`
	systemContextID    = 1
	maxShortNameRunes  = 100
)

// MoodleCaller is the REST client surface the binding needs.
type MoodleCaller interface {
	Call(ctx context.Context, function string, params moodle.Params, out any) error
	SiteInfo(ctx context.Context) (moodle.SiteInfo, error)
}

var _ MoodleCaller = (*moodle.Client)(nil)

// MoodlePlatform binds Platform to the Moodle REST web services.
type MoodlePlatform struct {
	client MoodleCaller
}

func NewMoodlePlatform(client MoodleCaller) *MoodlePlatform {
	return &MoodlePlatform{client: client}
}

var _ Platform = (*MoodlePlatform)(nil)

// mapErr attaches the generic classes to Moodle's typed errors.
func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, moodle.ErrPermission):
		return fmt.Errorf("%w: %w", ErrPermission, err)
	case errors.Is(err, moodle.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return err
}

func (m *MoodlePlatform) call(ctx context.Context, fn string, params moodle.Params, out any) error {
	return mapErr(m.client.Call(ctx, fn, params, out))
}

func (m *MoodlePlatform) Capabilities(ctx context.Context) (map[Op]bool, error) {
	info, err := m.client.SiteInfo(ctx)
	if err != nil {
		return nil, mapErr(err)
	}
	out := make(map[Op]bool, len(moodleFunctions))
	for op, fn := range moodleFunctions {
		out[op] = info.HasFunction(fn)
	}
	return out, nil
}

type moodleFramework struct {
	ID        int64  `json:"id"`
	ShortName string `json:"shortname"`
	IDNumber  string `json:"idnumber"`
}

func (m *MoodlePlatform) FindFramework(ctx context.Context, idNumber string) (*domain.Framework, error) {
	var list []moodleFramework
	err := m.call(ctx, fnListFrameworks, moodle.Params{
		"sort":        "shortname",
		"order":       "ASC",
		"skip":        0,
		"limit":       0,
		"context":     map[string]any{"contextid": systemContextID},
		"includes":    "children",
		"onlyvisible": false,
	}, &list)
	if err != nil {
		return nil, err
	}
	for _, f := range list {
		if f.IDNumber == idNumber {
			return &domain.Framework{ExternalID: f.ID, IDNumber: f.IDNumber, ShortName: f.ShortName}, nil
		}
	}
	return nil, nil
}

func (m *MoodlePlatform) CreateFramework(ctx context.Context, spec FrameworkSpec) (int64, error) {
	var out moodleFramework
	err := m.call(ctx, moodleFunctions[OpCreateFramework], moodle.Params{
		"competencyframework": map[string]any{
			"shortname":          truncate(spec.ShortName, maxShortNameRunes),
			"idnumber":           spec.IDNumber,
			"description":        spec.Description,
			"descriptionformat":  1,
			"visible":            1,
			"scaleid":            defaultScaleID,
			"scaleconfiguration": defaultScaleConfig,
			"contextid":          systemContextID,
		},
	}, &out)
	if err != nil {
		return 0, err
	}
	return out.ID, nil
}

type moodleCompetency struct {
	ID        int64  `json:"id"`
	ShortName string `json:"shortname"`
	IDNumber  string `json:"idnumber"`
}

func (m *MoodlePlatform) ListFrameworkCompetencies(ctx context.Context, frameworkID int64) ([]RemoteCompetency, error) {
	var list []moodleCompetency
	if err := m.call(ctx, fnSearchCompetencies, moodle.Params{
		"searchtext":            "",
		"competencyframeworkid": frameworkID,
	}, &list); err != nil {
		return nil, err
	}
	out := make([]RemoteCompetency, 0, len(list))
	for _, c := range list {
		out = append(out, RemoteCompetency{ID: c.ID, IDNumber: c.IDNumber, ShortName: c.ShortName})
	}
	return out, nil
}

func (m *MoodlePlatform) CreateCompetency(ctx context.Context, spec CompetencySpec) (int64, error) {
	var out moodleCompetency
	err := m.call(ctx, moodleFunctions[OpCreateCompetency], moodle.Params{
		"competency": map[string]any{
			"competencyframeworkid": spec.FrameworkID,
			"shortname":             truncate(spec.ShortName, maxShortNameRunes),
			"idnumber":              spec.IDNumber,
			"description":           spec.Description,
			"parentid":              0,
		},
	}, &out)
	if err != nil {
		return 0, err
	}
	return out.ID, nil
}

func (m *MoodlePlatform) ListCourseCompetencies(ctx context.Context, courseID int64) ([]int64, error) {
	var list []struct {
		Competency moodleCompetency `json:"competency"`
	}
	if err := m.call(ctx, fnListCourseComps, moodle.Params{"id": courseID}, &list); err != nil {
		return nil, err
	}
	out := make([]int64, 0, len(list))
	for _, c := range list {
		out = append(out, c.Competency.ID)
	}
	return out, nil
}

func (m *MoodlePlatform) AddCompetencyToCourse(ctx context.Context, courseID, competencyID int64) error {
	return m.call(ctx, moodleFunctions[OpAddToCourse], moodle.Params{
		"courseid":     courseID,
		"competencyid": competencyID,
	}, nil)
}

// flexInt accepts both numbers and numeric strings.
type flexInt int64

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' {
		s = s[1 : len(s)-1]
	}
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return err
	}
	*f = flexInt(n)
	return nil
}

func (m *MoodlePlatform) ListModuleLinks(ctx context.Context, moduleID int64) ([]domain.ModuleCompetencyLink, error) {
	var list []struct {
		Competency moodleCompetency `json:"competency"`
		Link       struct {
			CompetencyID flexInt `json:"competencyid"`
			RuleOutcome  flexInt `json:"ruleoutcome"`
		} `json:"coursemodulecompetency"`
	}
	if err := m.call(ctx, fnListModuleComps, moodle.Params{"cmid": moduleID}, &list); err != nil {
		return nil, err
	}
	out := make([]domain.ModuleCompetencyLink, 0, len(list))
	for _, l := range list {
		id := int64(l.Link.CompetencyID)
		if id == 0 {
			id = l.Competency.ID
		}
		out = append(out, domain.ModuleCompetencyLink{
			ModuleID:     moduleID,
			CompetencyID: id,
			RuleOutcome:  domain.RuleOutcome(l.Link.RuleOutcome),
		})
	}
	return out, nil
}

func (m *MoodlePlatform) linkParams(moduleID, competencyID int64) moodle.Params {
	return moodle.Params{"cmid": moduleID, "competencyid": competencyID}
}

func (m *MoodlePlatform) AddCompetencyToModule(ctx context.Context, moduleID, competencyID int64, outcome domain.RuleOutcome) error {
	p := m.linkParams(moduleID, competencyID)
	p["ruleoutcome"] = int(outcome)
	return m.call(ctx, moodleFunctions[OpAddToModule], p, nil)
}

func (m *MoodlePlatform) RemoveCompetencyFromModule(ctx context.Context, moduleID, competencyID int64) error {
	return m.call(ctx, moodleFunctions[OpRemoveFromModule], m.linkParams(moduleID, competencyID), nil)
}

func (m *MoodlePlatform) SetModuleCompetencyRuleOutcome(ctx context.Context, moduleID, competencyID int64, outcome domain.RuleOutcome) error {
	p := m.linkParams(moduleID, competencyID)
	p["ruleoutcome"] = int(outcome)
	return m.call(ctx, moodleFunctions[OpSetModuleOutcome], p, nil)
}

func (m *MoodlePlatform) ListAssignments(ctx context.Context, courseID int64) ([]RemoteAssignment, error) {
	var resp struct {
		Courses []struct {
			ID          int64 `json:"id"`
			Assignments []struct {
				CMID  int64  `json:"cmid"`
				Name  string `json:"name"`
				Intro string `json:"intro"`
			} `json:"assignments"`
		} `json:"courses"`
	}
	if err := m.call(ctx, fnGetAssignments, moodle.Params{"courseids": []int64{courseID}}, &resp); err != nil {
		return nil, err
	}
	var out []RemoteAssignment
	for _, c := range resp.Courses {
		for _, a := range c.Assignments {
			out = append(out, RemoteAssignment{ModuleID: a.CMID, Name: a.Name, Description: a.Intro})
		}
	}
	return out, nil
}

func (m *MoodlePlatform) ListSections(ctx context.Context, courseID int64) ([]RemoteSection, error) {
	var list []struct {
		Section int    `json:"section"`
		Name    string `json:"name"`
		Summary string `json:"summary"`
		Modules []struct {
			ID       int64  `json:"id"`
			Name     string `json:"name"`
			ModName  string `json:"modname"`
			Contents []struct {
				Filename string `json:"filename"`
			} `json:"contents"`
		} `json:"modules"`
	}
	if err := m.call(ctx, fnGetContents, moodle.Params{"courseid": courseID}, &list); err != nil {
		return nil, err
	}
	out := make([]RemoteSection, 0, len(list))
	for _, s := range list {
		sec := RemoteSection{Number: s.Section, Name: s.Name, Summary: s.Summary}
		for _, mod := range s.Modules {
			rm := RemoteModule{ID: mod.ID, Name: mod.Name, ModName: mod.ModName}
			for _, c := range mod.Contents {
				if c.Filename != "" {
					rm.Files = append(rm.Files, c.Filename)
				}
			}
			sec.Modules = append(sec.Modules, rm)
		}
		out = append(out, sec)
	}
	return out, nil
}

func (m *MoodlePlatform) UpdateSection(ctx context.Context, courseID int64, upd SectionUpdate) error {
	section := map[string]any{
		"section":       upd.Number,
		"summary":       upd.Summary,
		"summaryformat": 1,
	}
	if upd.Name != "" {
		section["name"] = upd.Name
	}
	return m.call(ctx, moodleFunctions[OpUpdateSection], moodle.Params{
		"courseid": courseID,
		"sections": []map[string]any{section},
	}, nil)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
