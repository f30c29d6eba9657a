package competency

import (
	"context"
	"sort"
	"strings"

	domain "github.com/yungbote/neurobridge-competency/internal/domain/competency"
	"github.com/yungbote/neurobridge-competency/internal/gateway"
	"github.com/yungbote/neurobridge-competency/internal/platform/logger"
)

const (
	// MaxCompetenciesPerDocument caps consolidation output.
	MaxCompetenciesPerDocument = 5
	minClusterSupport          = 2
	lexicalClusterThreshold    = 0.5
)

// Consolidator turns one document's raw candidates into at most five
// deduplicated competencies.
type Consolidator struct {
	reasoner Reasoner
	log      *logger.Logger
}

func NewConsolidator(reasoner Reasoner, log *logger.Logger) *Consolidator {
	return &Consolidator{reasoner: reasoner, log: log.With("service", "Consolidator")}
}

// variant is one distinct normalized candidate.
type variant struct {
	name    string
	norm    string
	support int
	tokens  map[string]bool
}

type group struct {
	name    string
	level   string
	members []int
	support int
}

// Consolidate returns between 1 and min(5, len(candidates)) competencies, or a
// *ConsolidationError when no usable candidate was given.
func (c *Consolidator) Consolidate(ctx context.Context, doc *domain.Document, candidates []domain.Candidate) ([]*domain.Competency, error) {
	docID := ""
	if doc != nil {
		docID = doc.ID
	}
	variants := dedupeCandidates(candidates)
	if len(variants) == 0 {
		return nil, &ConsolidationError{DocumentID: docID, Err: ErrNoCandidates}
	}

	var groups []*group
	if len(variants) == 1 {
		groups = []*group{{name: variants[0].name, members: []int{0}, support: variants[0].support}}
	} else {
		groups = c.cluster(ctx, doc, variants)
	}

	groups = pruneSingletons(groups, variants)
	groups = mergeByName(groups)
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].support > groups[j].support })
	if len(groups) > MaxCompetenciesPerDocument {
		groups = groups[:MaxCompetenciesPerDocument]
	}

	out := make([]*domain.Competency, 0, len(groups))
	for _, g := range groups {
		name := domain.DisplayName(g.name)
		comp := &domain.Competency{
			Name:           name,
			NormalizedName: domain.NormalizeName(name),
			TaxonomyLevel:  resolveLevel(g.level, name),
			SupportCount:   g.support,
			Description:    describeMembers(g, variants),
		}
		if doc != nil {
			comp.CourseID = doc.CourseID
			comp.OriginDocumentIDs = []string{doc.ID}
		}
		out = append(out, comp)
	}
	c.log.Debug("Candidates consolidated", "document_id", docID, "candidates", len(candidates), "competencies", len(out))
	return out, nil
}

// dedupeCandidates drops learner-action phrasings, so no later step (single
// variant, lexical group or unassigned cluster member) can surface one as a name.
func dedupeCandidates(candidates []domain.Candidate) []*variant {
	idx := map[string]int{}
	var out []*variant
	for _, cand := range candidates {
		name := domain.DisplayName(cand.Text)
		norm := strings.ToLower(name)
		if norm == "" || gateway.IsLearnerAction(name) {
			continue
		}
		if i, ok := idx[norm]; ok {
			out[i].support++
			continue
		}
		idx[norm] = len(out)
		out = append(out, &variant{name: name, norm: norm, support: 1, tokens: domain.Tokens(name)})
	}
	return out
}

// cluster asks the reasoning service to group variants and falls back to
// lexical clustering when the call fails.
func (c *Consolidator) cluster(ctx context.Context, doc *domain.Document, variants []*variant) []*group {
	names := make([]string, len(variants))
	for i, v := range variants {
		names[i] = v.name
	}
	title := ""
	if doc != nil {
		title = doc.Title
	}
	res, err := c.reasoner.Cluster(ctx, gateway.ClusterRequest{DocumentTitle: title, Candidates: names})
	if err != nil {
		c.log.Warn("Cluster call failed; using lexical clustering", "document_title", title, "error", err)
		return lexicalGroups(variants)
	}

	assigned := make([]bool, len(variants))
	var groups []*group
	for _, cl := range res.Clusters {
		g := &group{name: cl.Name, level: cl.TaxonomyLevel}
		for _, m := range cl.Members {
			if assigned[m] {
				continue
			}
			assigned[m] = true
			g.members = append(g.members, m)
			g.support += variants[m].support
		}
		if len(g.members) == 0 {
			continue
		}
		if domain.DisplayName(g.name) == "" {
			g.name = representative(g.members, variants)
		}
		groups = append(groups, g)
	}
	for i, v := range variants {
		if !assigned[i] {
			groups = append(groups, &group{name: v.name, members: []int{i}, support: v.support})
		}
	}
	return groups
}

// lexicalGroups greedily joins each variant to the first group whose seed
// shares enough content words with it.
func lexicalGroups(variants []*variant) []*group {
	var (
		groups []*group
		seeds  []map[string]bool
	)
	for i, v := range variants {
		joined := false
		for gi, seed := range seeds {
			if domain.Overlap(seed, v.tokens) >= lexicalClusterThreshold {
				groups[gi].members = append(groups[gi].members, i)
				groups[gi].support += v.support
				joined = true
				break
			}
		}
		if !joined {
			groups = append(groups, &group{members: []int{i}, support: v.support})
			seeds = append(seeds, v.tokens)
		}
	}
	for _, g := range groups {
		g.name = representative(g.members, variants)
	}
	return groups
}

// representative picks the most supported member name; ties go to the shorter
// name, then the earlier one.
func representative(members []int, variants []*variant) string {
	best := members[0]
	for _, m := range members[1:] {
		a, b := variants[m], variants[best]
		if a.support > b.support || (a.support == b.support && len([]rune(a.name)) < len([]rune(b.name))) {
			best = m
		}
	}
	return variants[best].name
}

// pruneSingletons keeps groups with enough support and folds the rest into the
// lexically nearest kept group. With no well-supported group every group stays.
func pruneSingletons(groups []*group, variants []*variant) []*group {
	var kept, weak []*group
	for _, g := range groups {
		if g.support >= minClusterSupport {
			kept = append(kept, g)
		} else {
			weak = append(weak, g)
		}
	}
	if len(kept) == 0 {
		return groups
	}
	keptTokens := make([]map[string]bool, len(kept))
	for i, g := range kept {
		keptTokens[i] = groupTokens(g, variants)
	}
	for _, w := range weak {
		wt := groupTokens(w, variants)
		best, bestScore := 0, -1.0
		for i, k := range kept {
			score := domain.Overlap(wt, keptTokens[i])
			switch {
			case score > bestScore:
				best, bestScore = i, score
			case score == bestScore && k.support > kept[best].support:
				best = i
			}
		}
		target := kept[best]
		target.members = append(target.members, w.members...)
		target.support += w.support
	}
	return kept
}

func groupTokens(g *group, variants []*variant) map[string]bool {
	out := domain.Tokens(g.name)
	for _, m := range g.members {
		for t := range variants[m].tokens {
			out[t] = true
		}
	}
	return out
}

func mergeByName(groups []*group) []*group {
	idx := map[string]*group{}
	out := make([]*group, 0, len(groups))
	for _, g := range groups {
		key := domain.NormalizeName(g.name)
		if prev, ok := idx[key]; ok {
			prev.members = append(prev.members, g.members...)
			prev.support += g.support
			if prev.level == "" {
				prev.level = g.level
			}
			continue
		}
		idx[key] = g
		out = append(out, g)
	}
	return out
}

func describeMembers(g *group, variants []*variant) string {
	if len(g.members) < 2 {
		return ""
	}
	names := make([]string, 0, len(g.members))
	for _, m := range g.members {
		names = append(names, variants[m].name)
	}
	return "Covers: " + strings.Join(names, "; ")
}
