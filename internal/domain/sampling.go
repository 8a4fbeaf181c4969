package domain

import (
	"hash/fnv"
	"math/rand/v2"
)

// Picker elige n elementos de una lista de candidatos ya deduplicados.
// Debe devolver exactamente min(n, len(candidates)) elementos, sin repetir índices.
// key identifica la muestra (snapshot + categoría): la misma key y los mismos
// candidatos dan siempre el mismo resultado.
type Picker interface {
	Pick(candidates []PairRecord, n int, key string) []PairRecord
}

// FirstN es el picker determinista: los primeros n en orden de llegada.
type FirstN struct{}

// Pick implementa Picker.
func (FirstN) Pick(candidates []PairRecord, n int, _ string) []PairRecord {
	if n > len(candidates) {
		n = len(candidates)
	}
	out := make([]PairRecord, n)
	copy(out, candidates[:n])
	return out
}

// SeededShuffle baraja con una fuente PCG nueva en cada llamada, sembrada con
// seed y key, y toma los primeros n. No guarda estado entre llamadas.
type SeededShuffle struct {
	seed uint64
}

// NewSeededShuffle crea un picker aleatorio determinista.
func NewSeededShuffle(seed uint64) *SeededShuffle {
	return &SeededShuffle{seed: seed}
}

// Pick implementa Picker. No modifica candidates.
func (s *SeededShuffle) Pick(candidates []PairRecord, n int, key string) []PairRecord {
	if n > len(candidates) {
		n = len(candidates)
	}
	idx := make([]int, len(candidates))
	for i := range idx {
		idx[i] = i
	}

	h := fnv.New64a()
	h.Write([]byte(key))
	rng := rand.New(rand.NewPCG(s.seed, h.Sum64()))
	rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })

	out := make([]PairRecord, n)
	for i := 0; i < n; i++ {
		out[i] = candidates[idx[i]]
	}
	return out
}

// Bound acota una categoría a targetSize elementos.
//
//   - len(matched) >= targetSize: subconjunto de matched elegido por picker.
//   - len(matched) <  targetSize: todo matched + relleno desde pool (sin repetir)
//     hasta targetSize o hasta agotar pool.
//
// Nunca devuelve duplicados (por Key) ni falla; categorías incompletas son válidas.
// key se pasa al picker; ver Picker.
func Bound(matched, pool []PairRecord, targetSize int, picker Picker, key string) []PairRecord {
	if targetSize <= 0 {
		return []PairRecord{}
	}
	if picker == nil {
		picker = FirstN{}
	}

	seen := make(map[string]struct{}, targetSize)
	unique := dedupe(matched, seen)
	if len(unique) >= targetSize {
		return picker.Pick(unique, targetSize, key)
	}

	// matched va completo; el relleno sale del resto del pool.
	backfill := dedupe(pool, seen)
	out := make([]PairRecord, 0, targetSize)
	out = append(out, unique...)
	out = append(out, picker.Pick(backfill, targetSize-len(unique), key+"/backfill")...)
	return out
}

// dedupe filtra pares ya vistos y registra los nuevos en seen.
func dedupe(pairs []PairRecord, seen map[string]struct{}) []PairRecord {
	out := make([]PairRecord, 0, len(pairs))
	for _, p := range pairs {
		k := p.Key()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, p)
	}
	return out
}
