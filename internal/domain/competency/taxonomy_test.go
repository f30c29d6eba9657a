package competency

import (
	"encoding/json"
	"testing"
)

func TestParseTaxonomyLevel(t *testing.T) {
	cases := map[string]TaxonomyLevel{
		"Apply":      LevelApply,
		" verstehen": LevelUnderstand,
		"ANALYSE":    LevelAnalyze,
		"create":     LevelCreate,
	}
	for in, want := range cases {
		got, err := ParseTaxonomyLevel(in)
		if err != nil {
			t.Fatalf("%q: unexpected error %v", in, err)
		}
		if got != want {
			t.Fatalf("%q: got %v want %v", in, got, want)
		}
	}
	if _, err := ParseTaxonomyLevel("memorize"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestTaxonomyLevelOrderAndJSON(t *testing.T) {
	if !(LevelRemember < LevelUnderstand && LevelEvaluate < LevelCreate) {
		t.Fatalf("levels must be ordered")
	}
	if LevelApply.Max(LevelAnalyze) != LevelAnalyze || LevelCreate.Max(LevelApply) != LevelCreate {
		t.Fatalf("Max should keep the higher level")
	}
	raw, err := json.Marshal(struct {
		L TaxonomyLevel `json:"l"`
	}{LevelEvaluate})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(raw) != `{"l":"evaluate"}` {
		t.Fatalf("unexpected json %s", raw)
	}
}

func TestSyncStateString(t *testing.T) {
	if StateModulesLinked.String() != "MODULES_LINKED" || StateUnsynced.String() != "UNSYNCED" {
		t.Fatalf("unexpected state names")
	}
	if !(StateUnsynced < StateFrameworkCreated && StateCompetenciesUploaded < StateModulesLinked) {
		t.Fatalf("states must be ordered")
	}
}
