package scorer

import (
	"math"
	"strings"
	"unicode"
)

// stopWords are excluded from the term space before weighting. The corpus
// is Spanish, so the list covers Spanish articles, prepositions, and the
// most frequent function words, accented forms included.
var stopWords = map[string]struct{}{
	"el": {}, "la": {}, "los": {}, "las": {}, "un": {}, "una": {},
	"unos": {}, "unas": {}, "de": {}, "del": {}, "al": {}, "a": {},
	"en": {}, "y": {}, "e": {}, "o": {}, "u": {}, "que": {}, "qué": {},
	"se": {}, "su": {}, "sus": {}, "con": {}, "para": {}, "por": {},
	"no": {}, "ni": {}, "sí": {}, "es": {}, "son": {}, "ser": {},
	"está": {}, "están": {}, "como": {}, "cómo": {}, "más": {},
	"pero": {}, "le": {}, "les": {}, "lo": {}, "me": {}, "mi": {},
	"te": {}, "tu": {}, "nos": {}, "ya": {}, "este": {}, "esta": {},
	"estos": {}, "estas": {}, "ese": {}, "esa": {}, "esos": {},
	"esas": {}, "hay": {}, "ha": {}, "han": {}, "fue": {}, "muy": {},
	"sin": {}, "sobre": {}, "también": {}, "entre": {}, "cuando": {},
	"donde": {}, "desde": {}, "hasta": {}, "porque": {}, "todo": {},
	"toda": {}, "todos": {}, "todas": {}, "otro": {}, "otra": {},
}

// tokenize lowercases text and splits it on anything that is not a letter
// or digit, dropping stop words.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := fields[:0]
	for _, f := range fields {
		if _, stop := stopWords[f]; !stop {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// terms expands tokens into the unigram plus bigram term space.
func terms(tokens []string) []string {
	out := make([]string, 0, 2*len(tokens))
	out = append(out, tokens...)
	for i := 0; i+1 < len(tokens); i++ {
		out = append(out, tokens[i]+" "+tokens[i+1])
	}
	return out
}

// termFreq counts term occurrences.
func termFreq(ts []string) map[string]float64 {
	tf := make(map[string]float64, len(ts))
	for _, t := range ts {
		tf[t]++
	}
	return tf
}

// Similarity computes the TF-IDF cosine similarity between two texts over
// a unigram plus bigram term space. The result is in [0, 1]; empty or
// stop-word-only inputs score 0.
func Similarity(a, b string) float64 {
	tfA := termFreq(terms(tokenize(a)))
	tfB := termFreq(terms(tokenize(b)))
	if len(tfA) == 0 || len(tfB) == 0 {
		return 0
	}

	// smoothed idf over the two-document collection:
	// idf = ln((1+n)/(1+df)) + 1 with n = 2
	idf := func(term string) float64 {
		df := 0.0
		if _, ok := tfA[term]; ok {
			df++
		}
		if _, ok := tfB[term]; ok {
			df++
		}
		return math.Log(3.0/(1.0+df)) + 1.0
	}

	var dot, normA, normB float64
	for term, fa := range tfA {
		w := fa * idf(term)
		normA += w * w
		if fb, ok := tfB[term]; ok {
			dot += w * fb * idf(term)
		}
	}
	for term, fb := range tfB {
		w := fb * idf(term)
		normB += w * w
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	// clamp floating point spill
	return math.Max(0, math.Min(1, sim))
}
