package competency

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yungbote/neurobridge-competency/internal/data/repos/testutil"
	domain "github.com/yungbote/neurobridge-competency/internal/domain/competency"
	"github.com/yungbote/neurobridge-competency/internal/gateway"
)

func comps(ids ...string) []*domain.Competency {
	out := make([]*domain.Competency, 0, len(ids))
	for _, id := range ids {
		out = append(out, &domain.Competency{ID: id, Name: "Competency " + id, TaxonomyLevel: domain.LevelApply})
	}
	return out
}

func TestMatchDropsUnknownIDs(t *testing.T) {
	r := &fakeReasoner{match: func(req gateway.MatchRequest) (gateway.MatchResult, error) {
		require.Len(t, req.Candidates, 3)
		require.Equal(t, "apply", req.Candidates[0].TaxonomyLevel)
		return gateway.MatchResult{SelectedIDs: []string{"C1", "C9"}, Title: "Loop drills", Reasoning: "loops"}, nil
	}}
	m := NewMatcher(r, testutil.Logger(t))

	res, err := m.Match(context.Background(), &domain.Assignment{ID: "a1", Title: "Sheet 1"}, comps("C1", "C2", "C3"))
	require.NoError(t, err)
	require.Equal(t, []string{"C1"}, res.SelectedIDs)
	require.Equal(t, []string{"C9"}, res.Dropped)
	require.Equal(t, "Loop drills", res.Title)

	w := res.Warning("a1")
	require.NotNil(t, w)
	require.Equal(t, []string{"C9"}, w.UnknownIDs)
	require.Contains(t, w.Error(), "C9")
}

func TestMatchStripsPrefixAndDedupes(t *testing.T) {
	r := &fakeReasoner{match: func(gateway.MatchRequest) (gateway.MatchResult, error) {
		return gateway.MatchResult{SelectedIDs: []string{"ID: C2", "C2", " ID:C1 "}}, nil
	}}
	res, err := NewMatcher(r, testutil.Logger(t)).Match(context.Background(), &domain.Assignment{ID: "a1", Title: "Sheet 1"}, comps("C1", "C2"))
	require.NoError(t, err)
	require.Equal(t, []string{"C2", "C1"}, res.SelectedIDs)
	require.Empty(t, res.Dropped)
	require.Nil(t, res.Warning("a1"))
	require.Equal(t, "Sheet 1", res.Title)
}

func TestMatchCapsLinkedCompetencies(t *testing.T) {
	var ids []string
	for i := 1; i <= 9; i++ {
		ids = append(ids, fmt.Sprintf("C%d", i))
	}
	r := &fakeReasoner{match: func(gateway.MatchRequest) (gateway.MatchResult, error) {
		return gateway.MatchResult{SelectedIDs: ids}, nil
	}}
	res, err := NewMatcher(r, testutil.Logger(t)).Match(context.Background(), &domain.Assignment{ID: "a1"}, comps(ids...))
	require.NoError(t, err)
	require.Len(t, res.SelectedIDs, domain.MaxLinkedCompetencies)
	require.Equal(t, ids[:domain.MaxLinkedCompetencies], res.SelectedIDs)
}

func TestMatchWithoutCompetenciesSkipsGateway(t *testing.T) {
	r := &fakeReasoner{}
	res, err := NewMatcher(r, testutil.Logger(t)).Match(context.Background(), &domain.Assignment{ID: "a1", Title: "Sheet 1"}, nil)
	require.NoError(t, err)
	require.Empty(t, res.SelectedIDs)
	require.Equal(t, "Sheet 1", res.Title)
	require.Equal(t, 0, r.Calls("match"))
}

func TestMatchReturnsGatewayError(t *testing.T) {
	_, err := NewMatcher(&fakeReasoner{}, testutil.Logger(t)).Match(context.Background(), &domain.Assignment{ID: "a1"}, comps("C1"))
	require.ErrorIs(t, err, errFake)
}
