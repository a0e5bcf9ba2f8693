package textutil

import (
	"math"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestCosineBounds(t *testing.T) {
	quote := "You have power over your mind, not outside events"
	if got := cosine(countTerms(quote), countTerms(quote)); math.Abs(got-1) > 1e-9 {
		t.Fatalf("identical text similarity = %v, want 1", got)
	}
	if got := cosine(countTerms(quote), countTerms("Luck is what happens when preparation meets opportunity")); got != 0 {
		t.Fatalf("disjoint text similarity = %v, want 0", got)
	}
	if got := cosine(termVector{}, countTerms(quote)); got != 0 {
		t.Fatalf("empty vector similarity = %v, want 0", got)
	}
}

func TestTermsDropsShortWordsAndFoldsAccents(t *testing.T) {
	if got := terms("a to be or"); len(got) != 0 {
		t.Fatalf("expected no terms, got %v", got)
	}
	if got := countTerms("Waste no more time arguing, arguing about what a good man should be"); len(got) != 9 {
		t.Fatalf("unexpected distinct term count %d", len(got))
	}
	if got := terms("Sénèque, CAFÉ"); strings.Join(got, " ") != "seneque cafe" {
		t.Fatalf("unexpected folded terms %v", got)
	}
}

func TestMostSimilarFindsRephrasedQuote(t *testing.T) {
	history := []string{
		"The impediment to action advances action. What stands in the way becomes the way.",
		"We suffer more often in imagination than in reality.",
		"No man is free who is not master of himself.",
	}
	score, idx := MostSimilar("We suffer more in imagination than in reality", history)
	if idx != 1 {
		t.Fatalf("expected match at index 1, got %d (score %.2f)", idx, score)
	}
	if score < 0.8 {
		t.Fatalf("expected high similarity, got %.2f", score)
	}

	score, _ = MostSimilar("Dwell on beauty of life and watch stars", history)
	if score > 0.3 {
		t.Fatalf("expected low similarity for fresh quote, got %.2f", score)
	}

	if score, idx := MostSimilar("anything", nil); score != 0 || idx != -1 {
		t.Fatalf("expected no match on empty history, got %.2f/%d", score, idx)
	}
}

func TestSanitizeToken(t *testing.T) {
	tests := map[string]string{
		"Marcus Aurelius":  "marcus_aurelius",
		"  Zeno of Citium": "zeno_of_citium",
		"dark / moody!!":   "dark_moody",
		"Épictète":         "epictete",
		"":                 "unknown",
		"???":              "unknown",
	}
	for in, want := range tests {
		if got := SanitizeToken(in); got != want {
			t.Errorf("SanitizeToken(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTruncateRunes(t *testing.T) {
	s := strings.Repeat("é", 10)
	got := TruncateRunes(s, 4)
	if !utf8.ValidString(got) || utf8.RuneCountInString(got) != 4 {
		t.Fatalf("unexpected truncation %q", got)
	}
	if TruncateRunes("short", 10) != "short" {
		t.Fatal("expected short string unchanged")
	}
}

func TestEscapeDrawtext(t *testing.T) {
	got := EscapeDrawtext("Don't: 100%")
	want := `Don\\\'t\\: 100\\%`
	if got != want {
		t.Fatalf("EscapeDrawtext = %q, want %q", got, want)
	}
}
