package domain

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makePairs(source string, n int) []PairRecord {
	out := make([]PairRecord, n)
	for i := range out {
		out[i] = pair(source, fmt.Sprintf("%s%02d", source, i), float64(i*1000))
	}
	return out
}

func keys(pairs []PairRecord) []string {
	ks := make([]string, len(pairs))
	for i, p := range pairs {
		ks[i] = p.Key()
	}
	return ks
}

func assertNoDuplicates(t *testing.T, pairs []PairRecord) {
	t.Helper()
	seen := map[string]bool{}
	for _, p := range pairs {
		require.False(t, seen[p.Key()], "duplicado: %s", p.Key())
		seen[p.Key()] = true
	}
}

func TestBound_MatchedOverfilled_FirstN(t *testing.T) {
	matched := makePairs("pump-fun", 20)
	out := Bound(matched, matched, 15, FirstN{}, "snap/new")

	require.Len(t, out, 15)
	assert.Equal(t, keys(matched[:15]), keys(out))
}

func TestBound_UnderfilledBackfillsFromPool(t *testing.T) {
	matched := makePairs("raydium", 3)
	pool := append(makePairs("pump-fun", 5), matched...)

	out := Bound(matched, pool, 6, FirstN{}, "snap/new")

	require.Len(t, out, 6)
	assertNoDuplicates(t, out)
	// matched va primero y completo
	assert.Equal(t, keys(matched), keys(out[:3]))
	assert.Equal(t, keys(pool[:3]), keys(out[3:]))
}

func TestBound_PoolExhaustedIsNotAnError(t *testing.T) {
	matched := makePairs("raydium", 2)
	pool := append(makePairs("pump-fun", 1), matched...)

	out := Bound(matched, pool, 10, FirstN{}, "snap/new")

	assert.Len(t, out, 3)
	assertNoDuplicates(t, out)
}

func TestBound_DuplicatesInInputAreDropped(t *testing.T) {
	p := pair("raydium", "DUP", 0)
	matched := []PairRecord{p, p, p}

	out := Bound(matched, matched, 5, FirstN{}, "snap/new")
	assert.Len(t, out, 1)
}

func TestBound_ZeroOrNegativeTarget(t *testing.T) {
	matched := makePairs("raydium", 3)
	assert.Empty(t, Bound(matched, matched, 0, FirstN{}, "snap/new"))
	assert.Empty(t, Bound(matched, matched, -1, nil, "snap/new"))
}

func TestBound_NilPickerDefaultsToFirstN(t *testing.T) {
	matched := makePairs("raydium", 4)
	out := Bound(matched, matched, 2, nil, "snap/new")
	assert.Equal(t, keys(matched[:2]), keys(out))
}

// La longitud es min(k, |pool único|) para cualquier picker.
func TestBound_LengthContractHoldsForEveryPicker(t *testing.T) {
	pool := append(makePairs("pump-fun", 7), makePairs("raydium", 4)...)
	matched := pool[7:]

	pickers := map[string]Picker{
		"first_n": FirstN{},
		"shuffle": NewSeededShuffle(42),
	}
	for name, picker := range pickers {
		for k := 0; k <= 15; k++ {
			out := Bound(matched, pool, k, picker, "snap/new")
			assert.Len(t, out, min(k, len(pool)), "%s k=%d", name, k)
			assertNoDuplicates(t, out)
		}
	}
}

func TestSeededShuffle_SameSeedSameResult(t *testing.T) {
	matched := makePairs("pump-fun", 30)

	a := Bound(matched, matched, 10, NewSeededShuffle(7), "snap/new")
	b := Bound(matched, matched, 10, NewSeededShuffle(7), "snap/new")
	assert.Equal(t, keys(a), keys(b))

	c := Bound(matched, matched, 10, NewSeededShuffle(8), "snap/new")
	assert.NotEqual(t, keys(a), keys(c))
}

func TestSeededShuffle_DoesNotMutateInput(t *testing.T) {
	matched := makePairs("pump-fun", 10)
	before := keys(matched)

	NewSeededShuffle(1).Pick(matched, 5, "snap/new")
	assert.Equal(t, before, keys(matched))
}

func TestSeededShuffle_SameKeySameResultAcrossCalls(t *testing.T) {
	matched := makePairs("pump-fun", 30)
	picker := NewSeededShuffle(42)

	a := Bound(matched, matched, 5, picker, "snap-1/new-pairs")
	b := Bound(matched, matched, 5, picker, "snap-1/new-pairs")
	assert.Equal(t, keys(a), keys(b))

	other := Bound(matched, matched, 5, picker, "snap-2/new-pairs")
	assert.NotEqual(t, keys(a), keys(other))
}
