package competency

import (
	"context"
	"strings"

	domain "github.com/yungbote/neurobridge-competency/internal/domain/competency"
	"github.com/yungbote/neurobridge-competency/internal/gateway"
	"github.com/yungbote/neurobridge-competency/internal/platform/logger"
)

type MatchResult struct {
	SelectedIDs []string
	Title       string
	Reasoning   string
	// Dropped are ids the reasoning service returned outside the candidate set.
	Dropped []string
}

// Warning returns the drop record, or nil when every id was known.
func (r MatchResult) Warning(assignmentID string) *MatchError {
	if len(r.Dropped) == 0 {
		return nil
	}
	return &MatchError{AssignmentID: assignmentID, UnknownIDs: r.Dropped}
}

// Matcher maps an assignment onto course competencies.
type Matcher struct {
	reasoner Reasoner
	log      *logger.Logger
}

func NewMatcher(reasoner Reasoner, log *logger.Logger) *Matcher {
	return &Matcher{reasoner: reasoner, log: log.With("service", "AssignmentMatcher")}
}

// Match selects at most MaxLinkedCompetencies ids from comps, in the order the
// reasoning service ranked them. Every returned id is a member of comps.
func (m *Matcher) Match(ctx context.Context, a *domain.Assignment, comps []*domain.Competency) (MatchResult, error) {
	title := ""
	if a != nil {
		title = a.Title
	}
	if len(comps) == 0 {
		return MatchResult{Title: title}, nil
	}

	known := make(map[string]bool, len(comps))
	cands := make([]gateway.MatchCandidate, 0, len(comps))
	for _, c := range comps {
		if c == nil || known[c.ID] {
			continue
		}
		known[c.ID] = true
		cands = append(cands, gateway.MatchCandidate{ID: c.ID, Name: c.Name, TaxonomyLevel: c.TaxonomyLevel.String()})
	}

	req := gateway.MatchRequest{AssignmentTitle: title, Candidates: cands}
	if a != nil {
		req.AssignmentText = a.Description
	}
	res, err := m.reasoner.Match(ctx, req)
	if err != nil {
		return MatchResult{}, err
	}

	out := MatchResult{Title: strings.TrimSpace(res.Title), Reasoning: res.Reasoning}
	if out.Title == "" {
		out.Title = title
	}
	seen := map[string]bool{}
	for _, raw := range res.SelectedIDs {
		id := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "ID:"))
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		if !known[id] {
			out.Dropped = append(out.Dropped, id)
			continue
		}
		if len(out.SelectedIDs) < domain.MaxLinkedCompetencies {
			out.SelectedIDs = append(out.SelectedIDs, id)
		}
	}
	if len(out.Dropped) > 0 {
		assignmentID := ""
		if a != nil {
			assignmentID = a.ID
		}
		m.log.Warn("Dropped unknown competency ids from match", "assignment_id", assignmentID, "dropped", out.Dropped)
	}
	return out, nil
}
