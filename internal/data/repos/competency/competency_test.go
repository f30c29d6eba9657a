package competency

import (
	"context"
	"testing"

	"github.com/yungbote/neurobridge-competency/internal/data/repos/testutil"
	domain "github.com/yungbote/neurobridge-competency/internal/domain/competency"
	"github.com/yungbote/neurobridge-competency/internal/platform/dbctx"
)

func TestCompetencyRepoUpsertByName(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	dbc := dbctx.New(ctx)
	repo := NewCompetencyRepo(db, testutil.Logger(t))

	first, created, err := repo.UpsertByName(dbc, &domain.Competency{
		CourseID:          "c1",
		Name:              "Loops",
		NormalizedName:    "loops",
		TaxonomyLevel:     domain.LevelUnderstand,
		OriginDocumentIDs: []string{"d1"},
		SupportCount:      3,
	})
	if err != nil || !created {
		t.Fatalf("UpsertByName(create): created=%v err=%v", created, err)
	}
	if first.ID == "" {
		t.Fatalf("expected generated id")
	}

	merged, created, err := repo.UpsertByName(dbc, &domain.Competency{
		CourseID:          "c1",
		Name:              "LOOPS",
		NormalizedName:    "loops",
		TaxonomyLevel:     domain.LevelApply,
		OriginDocumentIDs: []string{"d2", "d1"},
		SupportCount:      2,
	})
	if err != nil || created {
		t.Fatalf("UpsertByName(merge): created=%v err=%v", created, err)
	}
	if merged.ID != first.ID {
		t.Fatalf("merge must keep id: %s != %s", merged.ID, first.ID)
	}

	// A lower level never lowers the stored one.
	if _, _, err := repo.UpsertByName(dbc, &domain.Competency{
		CourseID: "c1", Name: "loops", NormalizedName: "loops", TaxonomyLevel: domain.LevelRemember,
	}); err != nil {
		t.Fatalf("UpsertByName(lower): %v", err)
	}

	got, err := repo.GetByNormalizedName(dbc, "c1", "loops")
	if err != nil || got == nil {
		t.Fatalf("GetByNormalizedName: got=%v err=%v", got, err)
	}
	if got.Name != "Loops" {
		t.Fatalf("display name should stay first-seen, got %q", got.Name)
	}
	if got.TaxonomyLevel != domain.LevelApply {
		t.Fatalf("level: got %v want apply", got.TaxonomyLevel)
	}
	if len(got.OriginDocumentIDs) != 2 || got.OriginDocumentIDs[0] != "d1" || got.OriginDocumentIDs[1] != "d2" {
		t.Fatalf("origins: %v", got.OriginDocumentIDs)
	}
	if got.SupportCount != 5 {
		t.Fatalf("support: got %d want 5", got.SupportCount)
	}

	// Same name in a different course is a different competency.
	other, created, err := repo.UpsertByName(dbc, &domain.Competency{CourseID: "c2", Name: "Loops", NormalizedName: "loops", TaxonomyLevel: domain.LevelApply})
	if err != nil || !created || other.ID == first.ID {
		t.Fatalf("UpsertByName(other course): created=%v err=%v", created, err)
	}

	if rows, err := repo.ListByCourse(dbc, "c1"); err != nil || len(rows) != 1 {
		t.Fatalf("ListByCourse: err=%v len=%d", err, len(rows))
	}
	if rows, err := repo.ListByDocument(dbc, "c1", "d2"); err != nil || len(rows) != 1 {
		t.Fatalf("ListByDocument: err=%v len=%d", err, len(rows))
	}
	if rows, err := repo.ListByDocument(dbc, "c1", "d9"); err != nil || len(rows) != 0 {
		t.Fatalf("ListByDocument(missing): err=%v len=%d", err, len(rows))
	}

	n, err := repo.SetExternalIDs(dbc, "c1", map[string]int64{first.ID: 77, other.ID: 78})
	if err != nil || n != 1 {
		t.Fatalf("SetExternalIDs: n=%d err=%v", n, err)
	}
	rows, err := repo.GetByIDs(dbc, []string{first.ID})
	if err != nil || len(rows) != 1 || rows[0].ExternalID != 77 {
		t.Fatalf("GetByIDs: err=%v rows=%v", err, rows)
	}
}

func TestCompetencyRepoUpsertSameOriginKeepsSupport(t *testing.T) {
	db := testutil.DB(t)
	dbc := dbctx.New(context.Background())
	repo := NewCompetencyRepo(db, testutil.Logger(t))

	row := func() *domain.Competency {
		return &domain.Competency{
			CourseID:          "c1",
			Name:              "Recursion",
			NormalizedName:    "recursion",
			TaxonomyLevel:     domain.LevelApply,
			OriginDocumentIDs: []string{"d1"},
			SupportCount:      1,
		}
	}
	for i := 0; i < 3; i++ {
		if _, _, err := repo.UpsertByName(dbc, row()); err != nil {
			t.Fatalf("UpsertByName(run %d): %v", i, err)
		}
	}
	got, err := repo.GetByNormalizedName(dbc, "c1", "recursion")
	if err != nil || got == nil {
		t.Fatalf("GetByNormalizedName: got=%v err=%v", got, err)
	}
	if got.SupportCount != 1 {
		t.Fatalf("re-extracting d1 must not add support, got %d", got.SupportCount)
	}

	second := row()
	second.OriginDocumentIDs = []string{"d1", "d2"}
	if _, _, err := repo.UpsertByName(dbc, second); err != nil {
		t.Fatalf("UpsertByName(new origin): %v", err)
	}
	got, _ = repo.GetByNormalizedName(dbc, "c1", "recursion")
	if got.SupportCount != 2 || len(got.OriginDocumentIDs) != 2 {
		t.Fatalf("new origin: support=%d origins=%v", got.SupportCount, got.OriginDocumentIDs)
	}
}
