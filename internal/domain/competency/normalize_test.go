package competency

import "testing"

func TestNormalizeName(t *testing.T) {
	cases := map[string]string{
		"  Loops ":                 "loops",
		"LOOPS.":                   "loops",
		"\"For-Schleifen\"":        "for-schleifen",
		"1. Variables   and types": "variables and types",
		"- Recursion;":             "recursion",
	}
	for in, want := range cases {
		if got := NormalizeName(in); got != want {
			t.Fatalf("NormalizeName(%q) = %q, want %q", in, got, want)
		}
	}
	if got := DisplayName("  while   Loops! "); got != "while Loops" {
		t.Fatalf("DisplayName: got %q", got)
	}
}

func TestTokensAndOverlap(t *testing.T) {
	a := Tokens("Introduction to for loops")
	if len(a) != 1 || !a["loops"] {
		t.Fatalf("Tokens: %v", a)
	}
	b := Tokens("While loops and do-while loops")
	if got := Overlap(a, b); got != 1 {
		t.Fatalf("Overlap: got %v want 1", got)
	}
	if got := Overlap(Tokens("Sorting algorithms"), Tokens("Graph traversal")); got != 0 {
		t.Fatalf("Overlap disjoint: got %v", got)
	}
	if got := Overlap(map[string]bool{}, b); got != 0 {
		t.Fatalf("Overlap empty: got %v", got)
	}
}
