package gateway

import (
	"fmt"
	"regexp"
	"strings"
)

type ExtractRequest struct {
	DocumentTitle string
	DocumentText  string
	CourseContext string
}

type ExtractResult struct {
	Competencies []string
	TopicTitle   string
	Reasoning    string
}

type ClusterRequest struct {
	DocumentTitle string
	Candidates    []string
}

type Cluster struct {
	Name string
	// Members index into ClusterRequest.Candidates.
	Members       []int
	TaxonomyLevel string
}

type ClusterResult struct {
	Clusters []Cluster
}

type DocumentSummary struct {
	ID           string
	Title        string
	Ordinal      int
	Competencies []string
	Excerpt      string
}

type RelateRequest struct {
	A, B DocumentSummary
}

// RelateResult carries the raw scores; range clamping is the caller's concern.
type RelateResult struct {
	Similarity         float64
	Prerequisite       bool
	Overlap            float64
	BuildsUpon         bool
	DifficultyIncrease bool
	RelationshipType   string
	Reason             string
}

type MatchCandidate struct {
	ID            string
	Name          string
	TaxonomyLevel string
}

type MatchRequest struct {
	AssignmentTitle string
	AssignmentText  string
	Candidates      []MatchCandidate
}

type MatchResult struct {
	SelectedIDs []string
	Title       string
	Reasoning   string
}

func stringField(obj map[string]any, key string, required bool) (string, error) {
	v, ok := obj[key]
	if !ok || v == nil {
		if required {
			return "", invalid(key, "missing")
		}
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", invalid(key, fmt.Sprintf("expected string, got %T", v))
	}
	return strings.TrimSpace(s), nil
}

func boolField(obj map[string]any, key string) (bool, error) {
	v, ok := obj[key]
	if !ok {
		return false, invalid(key, "missing")
	}
	b, ok := v.(bool)
	if !ok {
		return false, invalid(key, fmt.Sprintf("expected boolean, got %T", v))
	}
	return b, nil
}

func numberField(obj map[string]any, key string) (float64, error) {
	v, ok := obj[key]
	if !ok {
		return 0, invalid(key, "missing")
	}
	f, ok := v.(float64)
	if !ok {
		return 0, invalid(key, fmt.Sprintf("expected number, got %T", v))
	}
	return f, nil
}

func stringList(obj map[string]any, key string) ([]string, bool, error) {
	v, ok := obj[key]
	if !ok || v == nil {
		return nil, false, nil
	}
	arr, ok := v.([]any)
	if !ok {
		return nil, true, invalid(key, fmt.Sprintf("expected array, got %T", v))
	}
	out := make([]string, 0, len(arr))
	for i, item := range arr {
		s, ok := item.(string)
		if !ok {
			return nil, true, invalid(fmt.Sprintf("%s[%d]", key, i), fmt.Sprintf("expected string, got %T", item))
		}
		out = append(out, s)
	}
	return out, true, nil
}

// parseExtract accepts either "competencies" or "keywords". Blank and duplicate
// entries are dropped.
func parseExtract(obj map[string]any) (ExtractResult, error) {
	list, found, err := stringList(obj, "competencies")
	if err != nil {
		return ExtractResult{}, err
	}
	if !found {
		list, found, err = stringList(obj, "keywords")
		if err != nil {
			return ExtractResult{}, err
		}
	}
	if !found {
		return ExtractResult{}, invalid("competencies", "missing (neither competencies nor keywords present)")
	}
	seen := map[string]bool{}
	out := ExtractResult{Competencies: make([]string, 0, len(list))}
	for _, s := range list {
		s = strings.TrimSpace(s)
		key := strings.ToLower(s)
		if s == "" || seen[key] || IsLearnerAction(s) {
			continue
		}
		seen[key] = true
		out.Competencies = append(out.Competencies, s)
	}
	if out.TopicTitle, err = stringField(obj, "title", false); err != nil {
		return ExtractResult{}, err
	}
	if out.Reasoning, err = stringField(obj, "reasoning", false); err != nil {
		return ExtractResult{}, err
	}
	return out, nil
}

var learnerActionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(the\s+)?(students?|learners?|participants?)\s+(can|will|should|are able|is able|must)\b`),
	regexp.MustCompile(`(?i)^(die\s+)?(studierenden|lernenden|teilnehmenden|studenten)\s+(können|sind|sollen|werden)\b`),
	regexp.MustCompile(`(?i)\bbe able to\b`),
	regexp.MustCompile(`(?i)^(kann|können)\s`),
	regexp.MustCompile(`(?i)\bsind in der lage\b`),
}

// IsLearnerAction reports whether name describes what a learner does instead
// of what is taught.
func IsLearnerAction(name string) bool {
	s := strings.TrimSpace(name)
	for _, re := range learnerActionPatterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

func parseCluster(obj map[string]any, candidateCount int) (ClusterResult, error) {
	raw, ok := obj["clusters"]
	if !ok {
		return ClusterResult{}, invalid("clusters", "missing")
	}
	arr, ok := raw.([]any)
	if !ok {
		return ClusterResult{}, invalid("clusters", fmt.Sprintf("expected array, got %T", raw))
	}
	out := ClusterResult{Clusters: make([]Cluster, 0, len(arr))}
	for i, item := range arr {
		field := fmt.Sprintf("clusters[%d]", i)
		m, ok := item.(map[string]any)
		if !ok {
			return ClusterResult{}, invalid(field, "expected object")
		}
		name, err := stringField(m, "name", true)
		if err != nil {
			return ClusterResult{}, invalid(field, err.Error())
		}
		if name == "" {
			return ClusterResult{}, invalid(field+".name", "empty")
		}
		if IsLearnerAction(name) {
			return ClusterResult{}, invalid(field+".name", fmt.Sprintf("%q describes a learner action, not a taught topic", name))
		}
		level, err := stringField(m, "taxonomy_level", false)
		if err != nil {
			return ClusterResult{}, invalid(field, err.Error())
		}
		membersRaw, ok := m["members"].([]any)
		if !ok {
			return ClusterResult{}, invalid(field+".members", "expected array")
		}
		members := make([]int, 0, len(membersRaw))
		for _, mr := range membersRaw {
			f, ok := mr.(float64)
			if !ok || f != float64(int(f)) {
				return ClusterResult{}, invalid(field+".members", "expected integer indices")
			}
			idx := int(f)
			if idx < 0 || idx >= candidateCount {
				return ClusterResult{}, invalid(field+".members", fmt.Sprintf("index %d out of range", idx))
			}
			members = append(members, idx)
		}
		out.Clusters = append(out.Clusters, Cluster{Name: name, Members: members, TaxonomyLevel: level})
	}
	return out, nil
}

func parseRelate(obj map[string]any) (RelateResult, error) {
	var (
		out RelateResult
		err error
	)
	if out.Similarity, err = numberField(obj, "similarity"); err != nil {
		return RelateResult{}, err
	}
	if out.Overlap, err = numberField(obj, "overlap"); err != nil {
		return RelateResult{}, err
	}
	if out.Prerequisite, err = boolField(obj, "prerequisite"); err != nil {
		return RelateResult{}, err
	}
	if out.BuildsUpon, err = boolField(obj, "builds_upon"); err != nil {
		return RelateResult{}, err
	}
	if out.DifficultyIncrease, err = boolField(obj, "difficulty_increase"); err != nil {
		return RelateResult{}, err
	}
	if out.RelationshipType, err = stringField(obj, "relationship_type", false); err != nil {
		return RelateResult{}, err
	}
	switch out.RelationshipType {
	case "", "prerequisite", "similar", "builds_upon", "independent":
	default:
		return RelateResult{}, invalid("relationship_type", fmt.Sprintf("unknown value %q", out.RelationshipType))
	}
	if out.Reason, err = stringField(obj, "reason", false); err != nil {
		return RelateResult{}, err
	}
	return out, nil
}

func parseMatch(obj map[string]any) (MatchResult, error) {
	ids, found, err := stringList(obj, "selected_ids")
	if err != nil {
		return MatchResult{}, err
	}
	if !found {
		return MatchResult{}, invalid("selected_ids", "missing")
	}
	out := MatchResult{SelectedIDs: ids}
	if out.Title, err = stringField(obj, "title", false); err != nil {
		return MatchResult{}, err
	}
	if out.Reasoning, err = stringField(obj, "reasoning", false); err != nil {
		return MatchResult{}, err
	}
	return out, nil
}
