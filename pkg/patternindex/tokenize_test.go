package patternindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize_LowercasesAndSplits(t *testing.T) {
	toks := tokenize("Fix Unused-Import in handler.go")
	_, hasFix := toks["fix"]
	_, hasUnused := toks["unused"]
	_, hasImport := toks["import"]
	_, hasHandler := toks["handler"]
	assert.True(t, hasFix)
	assert.True(t, hasUnused)
	assert.True(t, hasImport)
	assert.True(t, hasHandler)
}

func TestTokenize_DropsShortTokensAndStopwords(t *testing.T) {
	toks := tokenize("fix the or in a go file")
	_, hasThe := toks["the"]
	_, hasOr := toks["or"]
	_, hasIn := toks["in"]
	_, hasA := toks["a"]
	assert.False(t, hasThe)
	assert.False(t, hasOr)
	assert.False(t, hasIn)
	assert.False(t, hasA)
}

func TestTokenize_Empty(t *testing.T) {
	toks := tokenize("")
	assert.Empty(t, toks)
}

func TestJaccard_IdenticalSetsEqualOne(t *testing.T) {
	a := map[string]struct{}{"foo": {}, "bar": {}}
	assert.Equal(t, 1.0, jaccard(a, a))
}

func TestJaccard_DisjointSetsEqualZero(t *testing.T) {
	a := map[string]struct{}{"foo": {}}
	b := map[string]struct{}{"bar": {}}
	assert.Equal(t, 0.0, jaccard(a, b))
}

func TestJaccard_EmptyEitherSideEqualsZero(t *testing.T) {
	a := map[string]struct{}{"foo": {}}
	empty := map[string]struct{}{}
	assert.Equal(t, 0.0, jaccard(a, empty))
	assert.Equal(t, 0.0, jaccard(empty, empty))
}

func TestJaccard_PartialOverlap(t *testing.T) {
	a := map[string]struct{}{"foo": {}, "bar": {}}
	b := map[string]struct{}{"bar": {}, "baz": {}}
	// intersection=1 (bar), union=3 (foo,bar,baz)
	assert.InDelta(t, 1.0/3.0, jaccard(a, b), 1e-9)
}
