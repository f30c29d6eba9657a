package hierarchy

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	domain "github.com/yungbote/neurobridge-competency/internal/domain/competency"
	"github.com/yungbote/neurobridge-competency/internal/platform/logger"
	"github.com/yungbote/neurobridge-competency/internal/platform/moodle"
)

func newMoodlePlatform(t *testing.T, h func(fn string, r *http.Request) string) *MoodlePlatform {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		_, _ = w.Write([]byte(h(r.PostForm.Get("wsfunction"), r)))
	}))
	t.Cleanup(srv.Close)
	c, err := moodle.NewClient(logger.Nop(), moodle.Config{BaseURL: srv.URL, Token: "tok"})
	require.NoError(t, err)
	return NewMoodlePlatform(c)
}

func TestMoodlePlatformCreateFrameworkParams(t *testing.T) {
	p := newMoodlePlatform(t, func(fn string, r *http.Request) string {
		require.Equal(t, "core_competency_create_competency_framework", fn)
		require.Equal(t, "fw_gdp", r.PostForm.Get("competencyframework[idnumber]"))
		require.Equal(t, "2", r.PostForm.Get("competencyframework[scaleid]"))
		require.Equal(t, "1", r.PostForm.Get("competencyframework[contextid]"))
		require.NotEmpty(t, r.PostForm.Get("competencyframework[scaleconfiguration]"))
		return `{"id": 12, "shortname": "framework_gdp"}`
	})
	id, err := p.CreateFramework(context.Background(), FrameworkSpec{IDNumber: "fw_gdp", ShortName: "framework_gdp"})
	require.NoError(t, err)
	require.Equal(t, int64(12), id)
}

func TestMoodlePlatformFindFrameworkByIDNumber(t *testing.T) {
	p := newMoodlePlatform(t, func(fn string, r *http.Request) string {
		require.Equal(t, "core_competency_list_competency_frameworks", fn)
		return `[{"id":3,"shortname":"other","idnumber":"fw_other"},{"id":4,"shortname":"framework_gdp","idnumber":"fw_gdp"}]`
	})
	fw, err := p.FindFramework(context.Background(), "fw_gdp")
	require.NoError(t, err)
	require.Equal(t, int64(4), fw.ExternalID)

	fw, err = p.FindFramework(context.Background(), "fw_missing")
	require.NoError(t, err)
	require.Nil(t, fw)
}

func TestMoodlePlatformListModuleLinks(t *testing.T) {
	p := newMoodlePlatform(t, func(fn string, r *http.Request) string {
		require.Equal(t, "core_competency_list_course_module_competencies", fn)
		require.Equal(t, "55", r.PostForm.Get("cmid"))
		return `[{"competency":{"id":9},"coursemodulecompetency":{"competencyid":"9","ruleoutcome":"3"}},
			{"competency":{"id":10},"coursemodulecompetency":{"competencyid":10,"ruleoutcome":1}}]`
	})
	links, err := p.ListModuleLinks(context.Background(), 55)
	require.NoError(t, err)
	require.Equal(t, []domain.ModuleCompetencyLink{
		{ModuleID: 55, CompetencyID: 9, RuleOutcome: domain.OutcomeComplete},
		{ModuleID: 55, CompetencyID: 10, RuleOutcome: domain.OutcomeEvidence},
	}, links)
}

func TestMoodlePlatformMapsPermissionErrors(t *testing.T) {
	p := newMoodlePlatform(t, func(fn string, r *http.Request) string {
		return `{"exception":"required_capability_exception","errorcode":"nopermissions","message":"no"}`
	})
	err := p.AddCompetencyToModule(context.Background(), 55, 9, domain.OutcomeEvidence)
	require.ErrorIs(t, err, ErrPermission)
	require.Equal(t, SyncErrPermission, newSyncError(OpAddToModule, "x", err).Class)
}

func TestMoodlePlatformCapabilities(t *testing.T) {
	p := newMoodlePlatform(t, func(fn string, r *http.Request) string {
		return `{"functions":[{"name":"core_competency_create_competency_framework"},{"name":"local_competency_linker_add_competency_to_module"}]}`
	})
	caps, err := p.Capabilities(context.Background())
	require.NoError(t, err)
	require.True(t, caps[OpCreateFramework])
	require.True(t, caps[OpAddToModule])
	require.False(t, caps[OpSetModuleOutcome])
}

func TestMoodlePlatformListAssignments(t *testing.T) {
	p := newMoodlePlatform(t, func(fn string, r *http.Request) string {
		require.Equal(t, "mod_assign_get_assignments", fn)
		require.Equal(t, "7", r.PostForm.Get("courseids[0]"))
		return `{"courses":[{"id":7,"assignments":[{"id":1,"cmid":55,"name":"Sheet 1","intro":"<p>Loops</p>"}]}],"warnings":[]}`
	})
	list, err := p.ListAssignments(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, []RemoteAssignment{{ModuleID: 55, Name: "Sheet 1", Description: "<p>Loops</p>"}}, list)
}

func TestMoodlePlatformListSections(t *testing.T) {
	p := newMoodlePlatform(t, func(fn string, r *http.Request) string {
		require.Equal(t, "core_course_get_contents", fn)
		require.Equal(t, "7", r.PostForm.Get("courseid"))
		return `[{"id":1,"section":0,"name":"General","summary":"","modules":[]},
			{"id":2,"section":1,"name":"Topic 1","summary":"<p>x</p>","modules":[
				{"id":21,"name":"Slides","modname":"resource","contents":[{"type":"file","filename":"week1.pdf"},{"type":"url","filename":""}]}]}]`
	})
	sections, err := p.ListSections(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, []RemoteSection{
		{Number: 0, Name: "General"},
		{Number: 1, Name: "Topic 1", Summary: "<p>x</p>", Modules: []RemoteModule{
			{ID: 21, Name: "Slides", ModName: "resource", Files: []string{"week1.pdf"}},
		}},
	}, sections)
}

func TestMoodlePlatformUpdateSectionParams(t *testing.T) {
	var calls int
	p := newMoodlePlatform(t, func(fn string, r *http.Request) string {
		calls++
		require.Equal(t, "local_wsmanagesections_update_sections", fn)
		require.Equal(t, "7", r.PostForm.Get("courseid"))
		require.Equal(t, "3", r.PostForm.Get("sections[0][section]"))
		require.Equal(t, "1", r.PostForm.Get("sections[0][summaryformat]"))
		require.Equal(t, "<ul><li>Loops</li></ul>", r.PostForm.Get("sections[0][summary]"))
		if calls == 1 {
			require.Equal(t, "Week 3", r.PostForm.Get("sections[0][name]"))
		} else {
			_, ok := r.PostForm["sections[0][name]"]
			require.False(t, ok)
		}
		return `[]`
	})
	ctx := context.Background()
	require.NoError(t, p.UpdateSection(ctx, 7, SectionUpdate{Number: 3, Name: "Week 3", Summary: "<ul><li>Loops</li></ul>"}))
	require.NoError(t, p.UpdateSection(ctx, 7, SectionUpdate{Number: 3, Summary: "<ul><li>Loops</li></ul>"}))
	require.Equal(t, 2, calls)
}
