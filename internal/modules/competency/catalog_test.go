package competency

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	repos "github.com/yungbote/neurobridge-competency/internal/data/repos/competency"
	"github.com/yungbote/neurobridge-competency/internal/data/repos/testutil"
	domain "github.com/yungbote/neurobridge-competency/internal/domain/competency"
)

type fakeEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (f fakeEmbedder) Embed(_ context.Context, inputs []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(inputs))
	for i, in := range inputs {
		out[i] = f.vectors[in]
	}
	return out, nil
}

func newComp(name, docID string, level domain.TaxonomyLevel) *domain.Competency {
	return &domain.Competency{
		Name:              name,
		NormalizedName:    domain.NormalizeName(name),
		TaxonomyLevel:     level,
		SupportCount:      1,
		OriginDocumentIDs: []string{docID},
	}
}

func TestCatalogMergeUnionsOrigins(t *testing.T) {
	ctx := context.Background()
	db := testutil.DB(t)
	testutil.SeedCourse(t, ctx, db, "c1", 0)
	cat := NewCatalog(repos.New(db, testutil.Logger(t)).Competencies, testutil.Logger(t), nil, 0)

	_, created, err := cat.Merge(ctx, "c1", []*domain.Competency{newComp("Loops", "d1", domain.LevelUnderstand)})
	require.NoError(t, err)
	require.Equal(t, 1, created)

	stored, created, err := cat.Merge(ctx, "c1", []*domain.Competency{newComp("loops", "d2", domain.LevelApply)})
	require.NoError(t, err)
	require.Equal(t, 0, created)
	require.Len(t, stored, 1)
	require.Equal(t, "Loops", stored[0].Name)
	require.ElementsMatch(t, []string{"d1", "d2"}, []string(stored[0].OriginDocumentIDs))
	require.Equal(t, domain.LevelApply, stored[0].TaxonomyLevel)

	list, err := cat.Load(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, 2, list[0].SupportCount)

	// Load hands out copies
	list[0].Name = "changed"
	again, err := cat.Load(ctx, "c1")
	require.NoError(t, err)
	require.Equal(t, "Loops", again[0].Name)
}

func TestCatalogInvalidateRereadsStore(t *testing.T) {
	ctx := context.Background()
	db := testutil.DB(t)
	testutil.SeedCourse(t, ctx, db, "c1", 0)
	rp := repos.New(db, testutil.Logger(t))
	cat := NewCatalog(rp.Competencies, testutil.Logger(t), nil, 0)

	list, err := cat.Load(ctx, "c1")
	require.NoError(t, err)
	require.Empty(t, list)

	require.NoError(t, db.Create(&domain.Competency{ID: "x", CourseID: "c1", Name: "Arrays", NormalizedName: "arrays", TaxonomyLevel: domain.LevelApply}).Error)
	list, err = cat.Load(ctx, "c1")
	require.NoError(t, err)
	require.Empty(t, list)

	cat.Invalidate("c1")
	list, err = cat.Load(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestCatalogFoldsNearDuplicatesByEmbedding(t *testing.T) {
	ctx := context.Background()
	db := testutil.DB(t)
	testutil.SeedCourse(t, ctx, db, "c1", 0)
	emb := fakeEmbedder{vectors: map[string][]float32{
		"Loops":           {1, 0},
		"Loop constructs": {0.99, 0.05},
		"Recursion":       {0, 1},
	}}
	cat := NewCatalog(repos.New(db, testutil.Logger(t)).Competencies, testutil.Logger(t), emb, 0)

	_, _, err := cat.Merge(ctx, "c1", []*domain.Competency{newComp("Loops", "d1", domain.LevelApply)})
	require.NoError(t, err)

	stored, created, err := cat.Merge(ctx, "c1", []*domain.Competency{
		newComp("Loop constructs", "d2", domain.LevelApply),
		newComp("Recursion", "d2", domain.LevelApply),
	})
	require.NoError(t, err)
	require.Equal(t, 1, created)
	require.Equal(t, "Loops", stored[0].Name)
	require.ElementsMatch(t, []string{"d1", "d2"}, []string(stored[0].OriginDocumentIDs))
	require.Equal(t, "Recursion", stored[1].Name)

	list, err := cat.Load(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, list, 2)
}

func TestCatalogEmbeddingFailureKeepsExactMerge(t *testing.T) {
	ctx := context.Background()
	db := testutil.DB(t)
	testutil.SeedCourse(t, ctx, db, "c1", 0)
	cat := NewCatalog(repos.New(db, testutil.Logger(t)).Competencies, testutil.Logger(t), fakeEmbedder{err: errors.New("down")}, 0)

	_, created, err := cat.Merge(ctx, "c1", []*domain.Competency{
		newComp("Loops", "d1", domain.LevelApply),
		newComp("Loop constructs", "d1", domain.LevelApply),
	})
	require.NoError(t, err)
	require.Equal(t, 2, created)
}

func TestCosine(t *testing.T) {
	require.InDelta(t, 1.0, cosine([]float32{1, 2}, []float32{2, 4}), 1e-9)
	require.Equal(t, 0.0, cosine([]float32{1, 0}, []float32{0, 1}))
	require.Equal(t, 0.0, cosine([]float32{1}, []float32{1, 2}))
	require.Equal(t, 0.0, cosine(nil, nil))
}

func TestCatalogMergeSameDocumentTwiceKeepsSupport(t *testing.T) {
	ctx := context.Background()
	db := testutil.DB(t)
	testutil.SeedCourse(t, ctx, db, "c1", 0)
	cat := NewCatalog(repos.New(db, testutil.Logger(t)).Competencies, testutil.Logger(t), nil, 0)

	for i := 0; i < 2; i++ {
		_, _, err := cat.Merge(ctx, "c1", []*domain.Competency{newComp("Loops", "d1", domain.LevelApply)})
		require.NoError(t, err)
	}
	list, err := cat.Load(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, 1, list[0].SupportCount)
	require.Equal(t, []string{"d1"}, []string(list[0].OriginDocumentIDs))
}
