package competency

import (
	"context"
	"testing"

	"github.com/yungbote/neurobridge-competency/internal/data/repos/testutil"
	domain "github.com/yungbote/neurobridge-competency/internal/domain/competency"
	"github.com/yungbote/neurobridge-competency/internal/platform/dbctx"
)

func TestEdgeRepoReplaceForCourse(t *testing.T) {
	db := testutil.DB(t)
	dbc := dbctx.New(context.Background())
	repo := NewEdgeRepo(db, testutil.Logger(t))

	first := []*domain.CompetencyEdge{
		{SourceID: "d1", TargetID: "d2", Kind: domain.EdgePrerequisite, Weight: 0.7, Overlap: 0.4, IsPrerequisite: true},
		{SourceID: "d2", TargetID: "d3", Kind: domain.EdgeIndependent, Weight: 0.1},
	}
	if err := repo.ReplaceForCourse(dbc, "c1", domain.NodeDocument, first); err != nil {
		t.Fatalf("ReplaceForCourse(first): %v", err)
	}
	other := []*domain.CompetencyEdge{{SourceID: "x1", TargetID: "x2", Kind: domain.EdgeSimilar, Weight: 0.5}}
	if err := repo.ReplaceForCourse(dbc, "c2", domain.NodeDocument, other); err != nil {
		t.Fatalf("ReplaceForCourse(other course): %v", err)
	}

	second := []*domain.CompetencyEdge{
		{SourceID: "d1", TargetID: "d3", Kind: domain.EdgeSimilar, Weight: 0.4},
	}
	if err := repo.ReplaceForCourse(dbc, "c1", domain.NodeDocument, second); err != nil {
		t.Fatalf("ReplaceForCourse(second): %v", err)
	}

	rows, err := repo.ListByCourse(dbc, "c1", domain.NodeDocument)
	if err != nil || len(rows) != 1 || rows[0].TargetID != "d3" || rows[0].Kind != domain.EdgeSimilar {
		t.Fatalf("ListByCourse after replace: err=%v rows=%v", err, rows)
	}
	if rows, err := repo.ListByCourse(dbc, "c2", domain.NodeDocument); err != nil || len(rows) != 1 {
		t.Fatalf("other course must be untouched: err=%v len=%d", err, len(rows))
	}

	if rows, err := repo.ListIncident(dbc, "d3"); err != nil || len(rows) != 1 {
		t.Fatalf("ListIncident(d3): err=%v len=%d", err, len(rows))
	}
	if rows, err := repo.ListIncident(dbc, "d2"); err != nil || len(rows) != 0 {
		t.Fatalf("ListIncident(d2): err=%v len=%d", err, len(rows))
	}
}

func TestEdgeRepoRejectsInvalidEdgesWithoutTouchingSnapshot(t *testing.T) {
	db := testutil.DB(t)
	dbc := dbctx.New(context.Background())
	repo := NewEdgeRepo(db, testutil.Logger(t))

	if err := repo.ReplaceForCourse(dbc, "c1", domain.NodeDocument, []*domain.CompetencyEdge{
		{SourceID: "d1", TargetID: "d2", Kind: domain.EdgeSimilar, Weight: 0.5},
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	bad := [][]*domain.CompetencyEdge{
		{{SourceID: "d1", TargetID: "d1", Kind: domain.EdgeSimilar, Weight: 0.5}},
		{{SourceID: "d1", TargetID: "d2", Kind: domain.EdgeSimilar, Weight: 1.5}},
		{{SourceID: "d1", TargetID: "d2", Kind: "bogus", Weight: 0.5}},
	}
	for i, rows := range bad {
		if err := repo.ReplaceForCourse(dbc, "c1", domain.NodeDocument, rows); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
	rows, err := repo.ListByCourse(dbc, "c1", domain.NodeDocument)
	if err != nil || len(rows) != 1 {
		t.Fatalf("snapshot must survive rejected replace: err=%v len=%d", err, len(rows))
	}
}
