package competency

import (
	"strings"

	domain "github.com/yungbote/neurobridge-competency/internal/domain/competency"
)

// levelKeywords are matched as substrings in order; the first hit wins.
// Substrings catch German compounds such as "Listenanalyse".
var levelKeywords = []struct {
	level    domain.TaxonomyLevel
	keywords []string
}{
	{domain.LevelUnderstand, []string{"introduction", "basics", "fundamentals", "overview", "grundlagen", "einführung", "überblick"}},
	{domain.LevelApply, []string{"usage", "using", "application", "nutzung", "anwendung", "einsatz"}},
	{domain.LevelAnalyze, []string{"analysis", "comparison", "evaluation", "analyse", "bewertung", "vergleich"}},
	{domain.LevelCreate, []string{"design", "development", "entwicklung", "konzeption", "entwurf"}},
}

// HeuristicLevel guesses a taxonomy level from the competency name. Apply is
// the default.
func HeuristicLevel(name string) domain.TaxonomyLevel {
	lower := strings.ToLower(name)
	for _, lk := range levelKeywords {
		for _, kw := range lk.keywords {
			if strings.Contains(lower, kw) {
				return lk.level
			}
		}
	}
	return domain.LevelApply
}

// resolveLevel prefers a valid level reported by the reasoning service.
func resolveLevel(reported, name string) domain.TaxonomyLevel {
	if strings.TrimSpace(reported) != "" {
		if lvl, err := domain.ParseTaxonomyLevel(reported); err == nil && lvl.Valid() {
			return lvl
		}
	}
	return HeuristicLevel(name)
}
