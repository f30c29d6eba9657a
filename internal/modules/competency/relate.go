package competency

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"

	domain "github.com/yungbote/neurobridge-competency/internal/domain/competency"
	"github.com/yungbote/neurobridge-competency/internal/gateway"
	"github.com/yungbote/neurobridge-competency/internal/platform/logger"
)

// SimilarityThreshold is the score at which an unordered relation counts as
// similar rather than independent.
const SimilarityThreshold = 0.3

// Evaluator infers the typed relation between two documents of a course.
type Evaluator struct {
	reasoner Reasoner
	log      *logger.Logger
}

func NewEvaluator(reasoner Reasoner, log *logger.Logger) *Evaluator {
	return &Evaluator{reasoner: reasoner, log: log.With("service", "RelationshipEvaluator")}
}

// Evaluate scores a forward pair (a taught before b). Backward pairs fail with
// ErrBackwardPair without calling the reasoning service. Weak independent
// edges are returned too.
func (e *Evaluator) Evaluate(ctx context.Context, a, b gateway.DocumentSummary) (*domain.CompetencyEdge, error) {
	if a.ID == b.ID || a.Ordinal >= b.Ordinal {
		return nil, &PairError{SourceID: a.ID, TargetID: b.ID, Err: ErrBackwardPair}
	}
	res, err := e.reasoner.Relate(ctx, gateway.RelateRequest{A: a, B: b})
	if err != nil {
		return nil, &PairError{SourceID: a.ID, TargetID: b.ID, Err: err}
	}

	similarity := e.clamp("similarity", res.Similarity, a.ID, b.ID)
	overlap := e.clamp("overlap", res.Overlap, a.ID, b.ID)

	var kind domain.EdgeKind
	switch {
	case res.Prerequisite:
		kind = domain.EdgePrerequisite
	case res.BuildsUpon:
		kind = domain.EdgeBuildsUpon
	case similarity >= SimilarityThreshold:
		kind = domain.EdgeSimilar
	default:
		kind = domain.EdgeIndependent
	}
	if res.RelationshipType != "" && res.RelationshipType != string(kind) {
		e.log.Debug("Relationship type differs from flags", "source", a.ID, "target", b.ID, "reported", res.RelationshipType, "derived", string(kind))
	}

	return &domain.CompetencyEdge{
		ID:                 uuid.NewString(),
		NodeType:           domain.NodeDocument,
		SourceID:           a.ID,
		TargetID:           b.ID,
		Kind:               kind,
		Weight:             similarity,
		Overlap:            overlap,
		IsPrerequisite:     res.Prerequisite,
		BuildsUpon:         res.BuildsUpon,
		DifficultyIncrease: res.DifficultyIncrease,
		Reason:             res.Reason,
	}, nil
}

func (e *Evaluator) clamp(field string, v float64, source, target string) float64 {
	c := v
	switch {
	case math.IsNaN(v), v < 0:
		c = 0
	case v > 1:
		c = 1
	default:
		return v
	}
	e.log.Warn("Relation score out of range; clamped", "field", field, "value", v, "clamped", c, "source", source, "target", target)
	return c
}

// ForwardPairs lists every pair (a, b) with a.Ordinal < b.Ordinal. Documents
// sharing an ordinal are not paired.
func ForwardPairs(docs []*domain.Document) [][2]*domain.Document {
	sorted := make([]*domain.Document, 0, len(docs))
	for _, d := range docs {
		if d != nil {
			sorted = append(sorted, d)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Ordinal < sorted[j].Ordinal })

	var out [][2]*domain.Document
	for i := 0; i < len(sorted); i++ {
		for j := i + 1; j < len(sorted); j++ {
			if sorted[i].Ordinal < sorted[j].Ordinal {
				out = append(out, [2]*domain.Document{sorted[i], sorted[j]})
			}
		}
	}
	return out
}

type pairKey struct{ lo, hi string }

func keyOf(a, b string) pairKey {
	if a > b {
		a, b = b, a
	}
	return pairKey{a, b}
}

// EdgeSet holds at most one edge per unordered node pair, which keeps
// asymmetric kinds from appearing in both directions.
type EdgeSet struct {
	edges []*domain.CompetencyEdge
	byKey map[pairKey]*domain.CompetencyEdge
}

func NewEdgeSet() *EdgeSet {
	return &EdgeSet{byKey: map[pairKey]*domain.CompetencyEdge{}}
}

// Add rejects self loops and a second edge for a pair already present in
// either direction.
func (s *EdgeSet) Add(e *domain.CompetencyEdge) error {
	if e == nil {
		return fmt.Errorf("nil edge")
	}
	if e.SourceID == e.TargetID {
		return fmt.Errorf("self loop on %s", e.SourceID)
	}
	k := keyOf(e.SourceID, e.TargetID)
	if prev, ok := s.byKey[k]; ok {
		return fmt.Errorf("edge %s->%s already present as %s->%s (%s)", e.SourceID, e.TargetID, prev.SourceID, prev.TargetID, prev.Kind)
	}
	s.byKey[k] = e
	s.edges = append(s.edges, e)
	return nil
}

// Similarity returns the weight of the edge between a and b in either
// direction, and false when there is none.
func (s *EdgeSet) Similarity(a, b string) (float64, bool) {
	e, ok := s.byKey[keyOf(a, b)]
	if !ok {
		return 0, false
	}
	return e.Weight, true
}

// Between returns the edge stored for the unordered pair.
func (s *EdgeSet) Between(a, b string) *domain.CompetencyEdge {
	return s.byKey[keyOf(a, b)]
}

func (s *EdgeSet) Edges() []*domain.CompetencyEdge { return s.edges }

func (s *EdgeSet) Len() int { return len(s.edges) }
