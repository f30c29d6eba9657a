package competency

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yungbote/neurobridge-competency/internal/data/repos/testutil"
	domain "github.com/yungbote/neurobridge-competency/internal/domain/competency"
	"github.com/yungbote/neurobridge-competency/internal/gateway"
)

var (
	variables = gateway.DocumentSummary{ID: "A", Title: "Variables", Ordinal: 1}
	control   = gateway.DocumentSummary{ID: "B", Title: "Control structures", Ordinal: 2}
)

func relateWith(res gateway.RelateResult) *fakeReasoner {
	return &fakeReasoner{relate: func(gateway.RelateRequest) (gateway.RelateResult, error) { return res, nil }}
}

func TestEvaluatePrerequisiteIsForwardOnly(t *testing.T) {
	r := relateWith(gateway.RelateResult{Similarity: 0.7, Overlap: 0.4, Prerequisite: true, RelationshipType: "prerequisite"})
	e := NewEvaluator(r, testutil.Logger(t))

	edge, err := e.Evaluate(context.Background(), variables, control)
	require.NoError(t, err)
	require.Equal(t, domain.EdgePrerequisite, edge.Kind)
	require.Equal(t, "A", edge.SourceID)
	require.Equal(t, "B", edge.TargetID)
	require.True(t, edge.IsPrerequisite)
	require.Equal(t, domain.NodeDocument, edge.NodeType)
	require.InDelta(t, 0.7, edge.Weight, 1e-9)

	_, err = e.Evaluate(context.Background(), control, variables)
	require.ErrorIs(t, err, ErrBackwardPair)
	var perr *PairError
	require.True(t, errors.As(err, &perr))
	require.Equal(t, 1, r.Calls("relate"))

	set := NewEdgeSet()
	require.NoError(t, set.Add(edge))
	reverse := *edge
	reverse.SourceID, reverse.TargetID = edge.TargetID, edge.SourceID
	require.Error(t, set.Add(&reverse))
	require.Equal(t, 1, set.Len())
}

func TestEvaluateKindPrecedence(t *testing.T) {
	cases := []struct {
		name string
		res  gateway.RelateResult
		want domain.EdgeKind
	}{
		{"builds upon", gateway.RelateResult{Similarity: 0.9, BuildsUpon: true}, domain.EdgeBuildsUpon},
		{"prerequisite wins", gateway.RelateResult{Prerequisite: true, BuildsUpon: true}, domain.EdgePrerequisite},
		{"similar at threshold", gateway.RelateResult{Similarity: SimilarityThreshold}, domain.EdgeSimilar},
		{"weak independent kept", gateway.RelateResult{Similarity: 0.1}, domain.EdgeIndependent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := NewEvaluator(relateWith(tc.res), testutil.Logger(t))
			edge, err := e.Evaluate(context.Background(), variables, control)
			require.NoError(t, err)
			require.Equal(t, tc.want, edge.Kind)
		})
	}
}

func TestEvaluateClampsScores(t *testing.T) {
	e := NewEvaluator(relateWith(gateway.RelateResult{Similarity: 1.4, Overlap: -0.2}), testutil.Logger(t))
	edge, err := e.Evaluate(context.Background(), variables, control)
	require.NoError(t, err)
	require.Equal(t, 1.0, edge.Weight)
	require.Equal(t, 0.0, edge.Overlap)
	require.Equal(t, domain.EdgeSimilar, edge.Kind)

	e = NewEvaluator(relateWith(gateway.RelateResult{Similarity: math.NaN()}), testutil.Logger(t))
	edge, err = e.Evaluate(context.Background(), variables, control)
	require.NoError(t, err)
	require.Equal(t, 0.0, edge.Weight)
	require.Equal(t, domain.EdgeIndependent, edge.Kind)
}

func TestEvaluateRejectsSameDocument(t *testing.T) {
	r := relateWith(gateway.RelateResult{})
	_, err := NewEvaluator(r, testutil.Logger(t)).Evaluate(context.Background(), variables, variables)
	require.ErrorIs(t, err, ErrBackwardPair)
	require.Equal(t, 0, r.Calls("relate"))
}

func TestEvaluateWrapsGatewayFailure(t *testing.T) {
	_, err := NewEvaluator(&fakeReasoner{}, testutil.Logger(t)).Evaluate(context.Background(), variables, control)
	require.ErrorIs(t, err, errFake)
	var perr *PairError
	require.True(t, errors.As(err, &perr))
	require.Equal(t, "A", perr.SourceID)
}

func TestForwardPairs(t *testing.T) {
	docs := []*domain.Document{
		{ID: "c", Ordinal: 3},
		{ID: "a", Ordinal: 1},
		{ID: "b1", Ordinal: 2},
		{ID: "b2", Ordinal: 2},
	}
	var got [][2]string
	for _, p := range ForwardPairs(docs) {
		got = append(got, [2]string{p[0].ID, p[1].ID})
	}
	require.Equal(t, [][2]string{
		{"a", "b1"}, {"a", "b2"}, {"a", "c"},
		{"b1", "c"}, {"b2", "c"},
	}, got)
}

func TestEdgeSetSimilarityIsSymmetric(t *testing.T) {
	set := NewEdgeSet()
	require.NoError(t, set.Add(&domain.CompetencyEdge{SourceID: "a", TargetID: "b", Kind: domain.EdgeSimilar, Weight: 0.6}))
	require.Error(t, set.Add(&domain.CompetencyEdge{SourceID: "c", TargetID: "c"}))

	ab, ok := set.Similarity("a", "b")
	require.True(t, ok)
	ba, ok := set.Similarity("b", "a")
	require.True(t, ok)
	require.Equal(t, ab, ba)
	require.Same(t, set.Between("a", "b"), set.Between("b", "a"))

	_, ok = set.Similarity("a", "z")
	require.False(t, ok)
}
