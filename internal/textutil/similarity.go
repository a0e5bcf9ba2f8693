package textutil

import (
	"math"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// minTermLen drops articles and other short words that carry no signal.
const minTermLen = 3

// foldAccents maps "Sénèque" to "Seneque" so spelling variants compare equal.
func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// terms lowercases and accent-folds text and returns its words of at least
// minTermLen letters or digits, in order.
func terms(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(foldAccents(text)), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	kept := words[:0]
	for _, w := range words {
		if len([]rune(w)) >= minTermLen {
			kept = append(kept, w)
		}
	}
	return kept
}

type termVector map[string]float64

func countTerms(text string) termVector {
	v := termVector{}
	for _, t := range terms(text) {
		v[t]++
	}
	return v
}

func (v termVector) weighted(idf map[string]float64) termVector {
	out := make(termVector, len(v))
	for t, n := range v {
		out[t] = n * idf[t]
	}
	return out
}

func (v termVector) norm() float64 {
	var sum float64
	for _, w := range v {
		sum += w * w
	}
	return math.Sqrt(sum)
}

func cosine(a, b termVector) float64 {
	na, nb := a.norm(), b.norm()
	if na == 0 || nb == 0 {
		return 0
	}
	var dot float64
	for t, w := range a {
		dot += w * b[t]
	}
	return dot / (na * nb)
}

// inverseDocFreq returns the smoothed weight log((N+1)/(1+df))+1 for every
// term seen in docs.
func inverseDocFreq(docs []termVector) map[string]float64 {
	df := map[string]int{}
	for _, d := range docs {
		for t := range d {
			df[t]++
		}
	}
	n := float64(len(docs))
	idf := make(map[string]float64, len(df))
	for t, count := range df {
		idf[t] = math.Log((n+1)/(1+float64(count))) + 1
	}
	return idf
}

// MostSimilar scores candidate against each of previous by TF-IDF cosine
// similarity and returns the best score with its index, or (0, -1) when
// nothing overlaps. Weighting by the whole history keeps words every quote
// shares, such as an author's name, from reading as a repeat.
func MostSimilar(candidate string, previous []string) (float64, int) {
	target := countTerms(candidate)
	if len(target) == 0 || len(previous) == 0 {
		return 0, -1
	}
	docs := make([]termVector, 0, len(previous)+1)
	for _, text := range previous {
		docs = append(docs, countTerms(text))
	}
	idf := inverseDocFreq(append(docs, target))
	target = target.weighted(idf)

	best, at := 0.0, -1
	for i, d := range docs {
		if score := cosine(target, d.weighted(idf)); score > best {
			best, at = score, i
		}
	}
	return best, at
}
