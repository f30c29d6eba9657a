package competency

import (
	"context"
	"testing"
	"time"

	"github.com/yungbote/neurobridge-competency/internal/data/repos/testutil"
	domain "github.com/yungbote/neurobridge-competency/internal/domain/competency"
	"github.com/yungbote/neurobridge-competency/internal/platform/dbctx"
)

func TestAssignmentRepo(t *testing.T) {
	db := testutil.DB(t)
	dbc := dbctx.New(context.Background())
	repo := NewAssignmentRepo(db, testutil.Logger(t))

	a := &domain.Assignment{ID: "a1", CourseID: "c1", ModuleID: 12, Title: "Sheet 1", Description: "loops", RuleOutcome: domain.OutcomeEvidence}
	if err := repo.Upsert(dbc, a); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := repo.SetMatch(dbc, "a1", "Loop practice", []string{"k1", "k2"}, "covers loops"); err != nil {
		t.Fatalf("SetMatch: %v", err)
	}

	// Re-upserting source fields keeps the match result.
	a2 := &domain.Assignment{ID: "a1", CourseID: "c1", ModuleID: 12, Title: "Sheet 1 (rev)", RuleOutcome: domain.OutcomeComplete}
	if err := repo.Upsert(dbc, a2); err != nil {
		t.Fatalf("Upsert(again): %v", err)
	}
	got, err := repo.GetByID(dbc, "a1")
	if err != nil || got == nil {
		t.Fatalf("GetByID: got=%v err=%v", got, err)
	}
	if got.Title != "Sheet 1 (rev)" || got.RuleOutcome != domain.OutcomeComplete {
		t.Fatalf("source fields not updated: %+v", got)
	}
	if got.DisplayTitle != "Loop practice" || len(got.LinkedCompetencyIDs) != 2 {
		t.Fatalf("match fields lost: %+v", got)
	}

	if err := repo.SetMatch(dbc, "a1", "", []string{"1", "2", "3", "4", "5", "6", "7", "8"}, ""); err == nil {
		t.Fatalf("expected error for more than %d links", domain.MaxLinkedCompetencies)
	}
	if rows, err := repo.ListByCourse(dbc, "c1"); err != nil || len(rows) != 1 {
		t.Fatalf("ListByCourse: err=%v len=%d", err, len(rows))
	}
	if got, err := repo.GetByID(dbc, "missing"); err != nil || got != nil {
		t.Fatalf("GetByID(missing): got=%v err=%v", got, err)
	}
}

func TestDocumentAndSyncRunRepos(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	dbc := dbctx.New(ctx)
	log := testutil.Logger(t)
	docs := NewDocumentRepo(db, log)
	runs := NewSyncRunRepo(db, log)

	testutil.SeedCourse(t, ctx, db, "c1", 5)
	for i, id := range []string{"d2", "d1", "d3"} {
		if err := docs.Upsert(dbc, &domain.Document{ID: id, CourseID: "c1", Title: id, Ordinal: map[string]int{"d1": 1, "d2": 2, "d3": 3}[id]}); err != nil {
			t.Fatalf("Upsert %d: %v", i, err)
		}
	}
	rows, err := docs.ListByCourse(dbc, "c1")
	if err != nil || len(rows) != 3 || rows[0].ID != "d1" || rows[2].ID != "d3" {
		t.Fatalf("ListByCourse ordering: err=%v rows=%v", err, rows)
	}
	n, err := docs.DeleteMissing(dbc, "c1", []string{"d1", "d2"})
	if err != nil || n != 1 {
		t.Fatalf("DeleteMissing: n=%d err=%v", n, err)
	}

	now := time.Now().UTC()
	for i := 0; i < 3; i++ {
		if err := runs.Create(dbc, &domain.SyncRun{CourseID: "c1", FinalState: "MODULES_LINKED", StartedAt: now.Add(time.Duration(i) * time.Minute)}); err != nil {
			t.Fatalf("Create run: %v", err)
		}
	}
	got, err := runs.ListByCourse(dbc, "c1", 2)
	if err != nil || len(got) != 2 || !got[0].StartedAt.After(got[1].StartedAt) {
		t.Fatalf("ListByCourse runs: err=%v got=%v", err, got)
	}
}
