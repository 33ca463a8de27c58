package scorer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimilarityIdenticalTexts(t *testing.T) {
	s := Similarity("Go is a compiled language", "Go is a compiled language")
	assert.InDelta(t, 1.0, s, 1e-9)
}

func TestSimilarityCaseInsensitive(t *testing.T) {
	s := Similarity("GO IS A COMPILED LANGUAGE", "go is a compiled language")
	assert.InDelta(t, 1.0, s, 1e-9)
}

func TestSimilarityDisjointTexts(t *testing.T) {
	s := Similarity("red apple orchard morning", "quantum entanglement physics experiment")
	assert.Zero(t, s)
}

func TestSimilarityPartialOverlap(t *testing.T) {
	s := Similarity(
		"go routines make concurrency simple",
		"go channels make concurrency safe",
	)
	assert.Greater(t, s, 0.0)
	assert.Less(t, s, 1.0)
}

func TestSimilarityRanksCloserTextHigher(t *testing.T) {
	reference := "the cache evicts the least recently used entry when full"
	near := "when full the cache evicts the least recently used entry"
	far := "rainbows appear after heavy summer rain"

	assert.Greater(t, Similarity(near, reference), Similarity(far, reference))
}

func TestSimilarityEmptyInputs(t *testing.T) {
	assert.Zero(t, Similarity("", "anything"))
	assert.Zero(t, Similarity("anything", ""))
	assert.Zero(t, Similarity("", ""))
}

func TestSimilarityStopWordsOnly(t *testing.T) {
	assert.Zero(t, Similarity("el de la y que", "contenido sustantivo real"))
}

func TestSimilarityIgnoresSpanishStopWords(t *testing.T) {
	// Function words, accented forms included, must not contribute to
	// the similarity between answers.
	withStops := Similarity(
		"la memoria caché guarda las respuestas generadas",
		"el que la memoria caché guarda más respuestas generadas también",
	)
	assert.InDelta(t, 1.0, withStops, 1e-9)
}

func TestSimilarityRange(t *testing.T) {
	pairs := [][2]string{
		{"a b c d", "c d e f"},
		{"one two three", "three two one"},
		{"hello world", "hello world hello world"},
	}
	for _, p := range pairs {
		s := Similarity(p[0], p[1])
		assert.GreaterOrEqual(t, s, 0.0)
		assert.LessOrEqual(t, s, 1.0)
	}
}

func TestTokenize(t *testing.T) {
	tokens := tokenize("El análisis de-datos genera, 2 resultados! por consulta")
	assert.Equal(t, []string{"análisis", "datos", "genera", "2", "resultados", "consulta"}, tokens)
}

func TestTerms(t *testing.T) {
	ts := terms([]string{"a1", "b2", "c3"})
	assert.Equal(t, []string{"a1", "b2", "c3", "a1 b2", "b2 c3"}, ts)
}
