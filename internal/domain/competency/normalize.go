package competency

import (
	"regexp"
	"strings"
	"unicode"
)

var listMarker = regexp.MustCompile(`^(\d+[.)]|[-*•])\s+`)

func trimDecoration(r rune) bool {
	return unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r)
}

// DisplayName collapses whitespace and strips list markers and surrounding
// punctuation while keeping the original casing.
func DisplayName(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	s = listMarker.ReplaceAllString(s, "")
	return strings.TrimFunc(s, trimDecoration)
}

// NormalizeName is the identity key of a competency within a course.
func NormalizeName(s string) string {
	return strings.ToLower(DisplayName(s))
}

var stopWords = map[string]bool{
	// en
	"a": true, "an": true, "and": true, "the": true, "of": true, "in": true, "on": true,
	"for": true, "to": true, "with": true, "by": true, "or": true, "from": true, "into": true,
	"using": true, "use": true, "basic": true, "basics": true, "introduction": true,
	// de
	"der": true, "die": true, "das": true, "und": true, "oder": true, "von": true, "mit": true,
	"im": true, "den": true, "des": true, "dem": true, "ein": true, "eine": true,
	"einer": true, "zur": true, "zum": true, "für": true, "bei": true, "auf": true,
	"grundlagen": true, "einführung": true,
}

// Tokens returns the lowercase content words of s.
func Tokens(s string) map[string]bool {
	out := map[string]bool{}
	for _, f := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len([]rune(f)) < 2 || stopWords[f] {
			continue
		}
		out[f] = true
	}
	return out
}

// Overlap is the overlap coefficient |a∩b| / min(|a|,|b|), zero when either
// set is empty.
func Overlap(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}
	shared := 0
	for t := range small {
		if large[t] {
			shared++
		}
	}
	return float64(shared) / float64(len(small))
}
