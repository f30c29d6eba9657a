package competency

import (
	"fmt"
	"strings"
)

// TaxonomyLevel is Bloom's revised taxonomy. Values are ordered; a higher level
// subsumes the lower ones.
type TaxonomyLevel int

const (
	LevelUnknown TaxonomyLevel = iota
	LevelRemember
	LevelUnderstand
	LevelApply
	LevelAnalyze
	LevelEvaluate
	LevelCreate
)

var levelNames = map[TaxonomyLevel]string{
	LevelRemember:   "remember",
	LevelUnderstand: "understand",
	LevelApply:      "apply",
	LevelAnalyze:    "analyze",
	LevelEvaluate:   "evaluate",
	LevelCreate:     "create",
}

// aliases accepted from the reasoning service, including the German terms used
// in German-language course material.
var levelAliases = map[string]TaxonomyLevel{
	"remember":    LevelRemember,
	"erinnern":    LevelRemember,
	"understand":  LevelUnderstand,
	"verstehen":   LevelUnderstand,
	"apply":       LevelApply,
	"anwenden":    LevelApply,
	"analyze":     LevelAnalyze,
	"analyse":     LevelAnalyze,
	"analysieren": LevelAnalyze,
	"evaluate":    LevelEvaluate,
	"bewerten":    LevelEvaluate,
	"create":      LevelCreate,
	"erschaffen":  LevelCreate,
	"erstellen":   LevelCreate,
}

func (l TaxonomyLevel) Valid() bool {
	return l >= LevelRemember && l <= LevelCreate
}

func (l TaxonomyLevel) String() string {
	if n, ok := levelNames[l]; ok {
		return n
	}
	return "unknown"
}

// Title is the capitalized name used in platform descriptions.
func (l TaxonomyLevel) Title() string {
	s := l.String()
	return strings.ToUpper(s[:1]) + s[1:]
}

// Max returns the higher of the two levels.
func (l TaxonomyLevel) Max(o TaxonomyLevel) TaxonomyLevel {
	if o > l {
		return o
	}
	return l
}

func ParseTaxonomyLevel(s string) (TaxonomyLevel, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if l, ok := levelAliases[key]; ok {
		return l, nil
	}
	return LevelUnknown, fmt.Errorf("unknown taxonomy level %q", s)
}

func (l TaxonomyLevel) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *TaxonomyLevel) UnmarshalText(b []byte) error {
	parsed, err := ParseTaxonomyLevel(string(b))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}
