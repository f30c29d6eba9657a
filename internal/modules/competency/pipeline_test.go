package competency

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	repos "github.com/yungbote/neurobridge-competency/internal/data/repos/competency"
	"github.com/yungbote/neurobridge-competency/internal/data/repos/testutil"
	domain "github.com/yungbote/neurobridge-competency/internal/domain/competency"
	"github.com/yungbote/neurobridge-competency/internal/gateway"
	"github.com/yungbote/neurobridge-competency/internal/platform/dbctx"
)

type recordingGraph struct {
	mu           sync.Mutex
	upserts      int
	relations    [][]*domain.CompetencyEdge
	requirements int
}

func (g *recordingGraph) UpsertCourseCompetencies(context.Context, string, []*domain.Document, []*domain.Competency) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.upserts++
	return nil
}

func (g *recordingGraph) ReplaceDocumentRelations(_ context.Context, _ string, edges []*domain.CompetencyEdge) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.relations = append(g.relations, edges)
	return nil
}

func (g *recordingGraph) ReplaceAssignmentRequirements(context.Context, string, []*domain.Assignment) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requirements++
	return nil
}

// courseReasoner extracts the document title as its only competency, marks
// A->B as a prerequisite and links every assignment to all candidates.
func courseReasoner(failRelateWith string) *fakeReasoner {
	return &fakeReasoner{
		extract: func(req gateway.ExtractRequest) (gateway.ExtractResult, error) {
			return gateway.ExtractResult{Competencies: []string{req.DocumentTitle}, TopicTitle: "Topic " + req.DocumentTitle}, nil
		},
		relate: func(req gateway.RelateRequest) (gateway.RelateResult, error) {
			if failRelateWith != "" && (req.A.ID == failRelateWith || req.B.ID == failRelateWith) {
				return gateway.RelateResult{}, errFake
			}
			if req.A.ID == "A" && req.B.ID == "B" {
				return gateway.RelateResult{Similarity: 0.6, Prerequisite: true}, nil
			}
			return gateway.RelateResult{Similarity: 0.1}, nil
		},
		match: func(req gateway.MatchRequest) (gateway.MatchResult, error) {
			ids := []string{"ghost"}
			for _, c := range req.Candidates {
				ids = append(ids, c.ID)
			}
			return gateway.MatchResult{SelectedIDs: ids, Reasoning: "all of them"}, nil
		},
	}
}

func courseInput() CourseInput {
	return CourseInput{
		CourseID:   "gdp",
		ShortName:  "GDP",
		ExternalID: 7,
		Context:    "Intro programming",
		Documents: []DocumentInput{
			{ID: "A", Title: "Variables", ContentRef: "a.md", Ordinal: 1},
			{ID: "B", Title: "Control structures", ContentRef: "b.md", Ordinal: 2},
			{ID: "C", Title: "Functions", ContentRef: "c.md", Ordinal: 3},
		},
		Assignments: []AssignmentInput{
			{ID: "a1", ModuleID: 55, Title: "Sheet 1", Description: "Write loops", RuleOutcome: domain.OutcomeComplete},
		},
	}
}

func newTestPipeline(t *testing.T, rp repos.Repos, r Reasoner, loader TextLoader, graph GraphProjection, requireComplete bool) *Pipeline {
	t.Helper()
	p, err := NewPipeline(PipelineDeps{
		Log:      testutil.Logger(t),
		Repos:    rp,
		Reasoner: r,
		Loader:   loader,
		Graph:    graph,
	}, PipelineConfig{Concurrency: 3, RequireCompleteEdgeSnapshot: requireComplete})
	require.NoError(t, err)
	return p
}

func TestPipelineRunBuildsCourseGraph(t *testing.T) {
	ctx := context.Background()
	rp := repos.New(testutil.DB(t), testutil.Logger(t))
	r := courseReasoner("")
	graph := &recordingGraph{}
	loader := mapLoader{"a.md": "let x = 1", "b.md": "for i in range", "c.md": "def f(): pass"}
	p := newTestPipeline(t, rp, r, loader, graph, true)

	report, err := p.Run(ctx, courseInput(), RunOptions{})
	require.NoError(t, err)
	require.Equal(t, StageCounts{Succeeded: 3}, report.Get(StageExtract))
	require.Equal(t, StageCounts{Succeeded: 3}, report.Get(StageConsolidate))
	require.Equal(t, StageCounts{Succeeded: 3}, report.Get(StageRelate))
	require.Equal(t, StageCounts{Succeeded: 1}, report.Get(StageMatch))
	require.Len(t, report.Warnings, 1)
	require.Contains(t, report.Warnings[0], "ghost")
	require.Empty(t, report.Failures)

	course, err := rp.Courses.GetByID(dbctx.New(ctx), "gdp")
	require.NoError(t, err)
	require.Equal(t, int64(7), course.ExternalID)

	comps, err := rp.Competencies.ListByCourse(dbctx.New(ctx), "gdp")
	require.NoError(t, err)
	require.Len(t, comps, 3)

	doc, err := rp.Documents.GetByID(dbctx.New(ctx), "B")
	require.NoError(t, err)
	require.Equal(t, "Topic Control structures", doc.TopicTitle)
	require.Len(t, doc.ContentHash, 64)

	edges, err := rp.Edges.ListByCourse(dbctx.New(ctx), "gdp", domain.NodeDocument)
	require.NoError(t, err)
	require.Len(t, edges, 3)
	kinds := map[[2]string]domain.EdgeKind{}
	for _, e := range edges {
		kinds[[2]string{e.SourceID, e.TargetID}] = e.Kind
	}
	require.Equal(t, domain.EdgePrerequisite, kinds[[2]string{"A", "B"}])
	require.Equal(t, domain.EdgeIndependent, kinds[[2]string{"A", "C"}])
	require.Equal(t, domain.EdgeIndependent, kinds[[2]string{"B", "C"}])

	a, err := rp.Assignments.GetByID(dbctx.New(ctx), "a1")
	require.NoError(t, err)
	require.Len(t, a.LinkedCompetencyIDs, 3)
	require.NotContains(t, []string(a.LinkedCompetencyIDs), "ghost")
	require.Equal(t, "Sheet 1", a.DisplayTitle)
	require.Equal(t, domain.OutcomeComplete, a.RuleOutcome)

	require.Equal(t, 1, graph.upserts)
	require.Len(t, graph.relations, 1)
	require.Len(t, graph.relations[0], 3)
	require.Equal(t, 1, graph.requirements)
}

func TestPipelineSkipsUnchangedDocuments(t *testing.T) {
	ctx := context.Background()
	rp := repos.New(testutil.DB(t), testutil.Logger(t))
	r := courseReasoner("")
	loader := mapLoader{"a.md": "let x = 1", "b.md": "for i in range", "c.md": "def f(): pass"}
	p := newTestPipeline(t, rp, r, loader, nil, true)

	_, err := p.Run(ctx, courseInput(), RunOptions{})
	require.NoError(t, err)

	report, err := p.Run(ctx, courseInput(), RunOptions{})
	require.NoError(t, err)
	require.Equal(t, StageCounts{Skipped: 3}, report.Get(StageExtract))
	require.Equal(t, StageCounts{Skipped: 1}, report.Get(StageRelate))
	require.Equal(t, StageCounts{Skipped: 1}, report.Get(StageMatch))
	require.Equal(t, 3, r.Calls("extract"))
	require.Equal(t, 3, r.Calls("relate"))
	require.Equal(t, 1, r.Calls("match"))

	report, err = p.Run(ctx, courseInput(), RunOptions{Force: true})
	require.NoError(t, err)
	require.Equal(t, StageCounts{Succeeded: 3}, report.Get(StageExtract))
	require.Equal(t, 6, r.Calls("extract"))
	require.Equal(t, 6, r.Calls("relate"))

	comps, err := rp.Competencies.ListByCourse(dbctx.New(ctx), "gdp")
	require.NoError(t, err)
	require.Len(t, comps, 3)
}

func TestPipelineKeepsEdgeSnapshotWhenPairsFail(t *testing.T) {
	ctx := context.Background()
	rp := repos.New(testutil.DB(t), testutil.Logger(t))
	loader := mapLoader{"a.md": "let x = 1", "b.md": "for i in range", "c.md": "def f(): pass"}

	_, err := newTestPipeline(t, rp, courseReasoner(""), loader, nil, true).Run(ctx, courseInput(), RunOptions{})
	require.NoError(t, err)
	before, err := rp.Edges.ListByCourse(dbctx.New(ctx), "gdp", domain.NodeDocument)
	require.NoError(t, err)
	require.Len(t, before, 3)

	loader["c.md"] = "def g(): return 1"
	report, err := newTestPipeline(t, rp, courseReasoner("C"), loader, nil, true).Run(ctx, courseInput(), RunOptions{})
	require.NoError(t, err)
	require.Equal(t, StageCounts{Succeeded: 1, Failed: 2}, report.Get(StageRelate))
	require.Len(t, report.Failures, 2)

	after, err := rp.Edges.ListByCourse(dbctx.New(ctx), "gdp", domain.NodeDocument)
	require.NoError(t, err)
	require.Len(t, after, 3)
	ids := func(es []*domain.CompetencyEdge) []string {
		var out []string
		for _, e := range es {
			out = append(out, e.ID)
		}
		return out
	}
	require.ElementsMatch(t, ids(before), ids(after))

	loader["c.md"] = "def h(): return 2"
	_, err = newTestPipeline(t, rp, courseReasoner("C"), loader, nil, false).Run(ctx, courseInput(), RunOptions{})
	require.NoError(t, err)
	after, err = rp.Edges.ListByCourse(dbctx.New(ctx), "gdp", domain.NodeDocument)
	require.NoError(t, err)
	require.Len(t, after, 1)
	require.Equal(t, "A", after[0].SourceID)
	require.Equal(t, "B", after[0].TargetID)
}

func TestPipelineIsolatesDocumentFailures(t *testing.T) {
	ctx := context.Background()
	rp := repos.New(testutil.DB(t), testutil.Logger(t))
	loader := mapLoader{"a.md": "let x = 1", "c.md": "def f(): pass"}

	in := courseInput()
	in.Assignments[0].RuleOutcome = domain.RuleOutcome(9)
	report, err := newTestPipeline(t, rp, courseReasoner(""), loader, nil, true).Run(ctx, in, RunOptions{})
	require.NoError(t, err)
	require.Equal(t, StageCounts{Succeeded: 2, Failed: 1}, report.Get(StageExtract))
	require.Len(t, report.Failures, 1)
	require.Contains(t, report.Failures[0], "extract B")

	docs, err := rp.Documents.ListByCourse(dbctx.New(ctx), "gdp")
	require.NoError(t, err)
	require.Len(t, docs, 2)

	a, err := rp.Assignments.GetByID(dbctx.New(ctx), "a1")
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeEvidence, a.RuleOutcome)
}

func TestPipelineRemovesDroppedDocuments(t *testing.T) {
	ctx := context.Background()
	rp := repos.New(testutil.DB(t), testutil.Logger(t))
	loader := mapLoader{"a.md": "let x = 1", "b.md": "for i in range", "c.md": "def f(): pass"}
	p := newTestPipeline(t, rp, courseReasoner(""), loader, nil, true)

	_, err := p.Run(ctx, courseInput(), RunOptions{})
	require.NoError(t, err)

	in := courseInput()
	in.Documents = in.Documents[:2]
	report, err := p.Run(ctx, in, RunOptions{})
	require.NoError(t, err)
	require.Equal(t, StageCounts{Succeeded: 1}, report.Get(StageRelate))

	edges, err := rp.Edges.ListByCourse(dbctx.New(ctx), "gdp", domain.NodeDocument)
	require.NoError(t, err)
	require.Len(t, edges, 1)
}

func TestNewPipelineValidatesDeps(t *testing.T) {
	_, err := NewPipeline(PipelineDeps{Log: testutil.Logger(t)}, PipelineConfig{})
	require.Error(t, err)
}

func TestPipelineRunSeesCompetenciesWrittenByAnotherPipeline(t *testing.T) {
	ctx := context.Background()
	rp := repos.New(testutil.DB(t), testutil.Logger(t))
	loader := mapLoader{"a.md": "let x = 1", "b.md": "for i in range"}

	var (
		mu      sync.Mutex
		offered []string
	)
	r := courseReasoner("")
	r.match = func(req gateway.MatchRequest) (gateway.MatchResult, error) {
		mu.Lock()
		defer mu.Unlock()
		offered = offered[:0]
		var ids []string
		for _, c := range req.Candidates {
			offered = append(offered, c.Name)
			ids = append(ids, c.ID)
		}
		return gateway.MatchResult{SelectedIDs: ids}, nil
	}
	first := newTestPipeline(t, rp, r, loader, nil, true)
	second := newTestPipeline(t, rp, courseReasoner(""), loader, nil, true)

	in := courseInput()
	in.Documents = in.Documents[:1]
	in.Assignments = nil
	_, err := first.Run(ctx, in, RunOptions{})
	require.NoError(t, err)

	in = courseInput()
	in.Documents = in.Documents[:2]
	in.Assignments = nil
	_, err = second.Run(ctx, in, RunOptions{})
	require.NoError(t, err)

	// Both documents are unchanged for the first pipeline; only the new
	// assignment is matched.
	in = courseInput()
	in.Documents = in.Documents[:2]
	report, err := first.Run(ctx, in, RunOptions{})
	require.NoError(t, err)
	require.Equal(t, StageCounts{Skipped: 2}, report.Get(StageExtract))
	require.Equal(t, StageCounts{Succeeded: 1}, report.Get(StageMatch))
	require.ElementsMatch(t, []string{"Variables", "Control structures"}, offered)
}
