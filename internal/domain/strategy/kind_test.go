package strategy

import "testing"

func TestIsValid(t *testing.T) {
	for _, k := range All {
		if !k.IsValid() {
			t.Errorf("%q.IsValid() = false, want true", k)
		}
	}

	invalid := []Kind{"", "bm25", "semantic", "VECTOR"}
	for _, k := range invalid {
		if k.IsValid() {
			t.Errorf("%q.IsValid() = true, want false", k)
		}
	}
}

func TestConstants(t *testing.T) {
	if Vector != "vector" {
		t.Errorf("Vector = %q", Vector)
	}
	if FullText != "fulltext" {
		t.Errorf("FullText = %q", FullText)
	}
	if Fuzzy != "fuzzy" {
		t.Errorf("Fuzzy = %q", Fuzzy)
	}
}
