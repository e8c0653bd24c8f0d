package utils

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// XavierLimit is the Glorot-uniform bound for a (rows x cols) tensor.
func XavierLimit(rows, cols int) float64 {
	return math.Sqrt(6.0 / float64(rows+cols))
}

// RandomArray returns rows*cols samples from U(-limit, limit) with
// limit = XavierLimit(rows, cols). A nil src falls back to the global generator.
func RandomArray(rows, cols int, src rand.Source) []float64 {
	limit := XavierLimit(rows, cols)
	dist := distuv.Uniform{
		Min: -limit,
		Max: limit,
		Src: src,
	}
	out := make([]float64, rows*cols)
	for i := range out {
		out[i] = dist.Rand()
	}
	return out
}

// IsFinite reports whether v is neither NaN nor ±Inf.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// AllFinite reports whether every entry of xs is finite.
func AllFinite(xs []float64) bool {
	for _, v := range xs {
		if !IsFinite(v) {
			return false
		}
	}
	return true
}

// DenseFinite reports whether every entry of m is finite.
func DenseFinite(m *mat.Dense) bool {
	r, _ := m.Dims()
	for i := 0; i < r; i++ {
		if !AllFinite(m.RawRowView(i)) {
			return false
		}
	}
	return true
}

// Uniform returns a length-n distribution with 1/n in every entry.
func Uniform(n int) []float64 {
	out := make([]float64, n)
	if n == 0 {
		return out
	}
	floats.AddConst(1.0/float64(n), out)
	return out
}

// Argmax returns the index of the largest entry, or -1 for an empty slice.
func Argmax(xs []float64) int {
	if len(xs) == 0 {
		return -1
	}
	return floats.MaxIdx(xs)
}

// OneHot returns a length-n vector with 1 at idx (all zeros when idx is out of range).
func OneHot(n, idx int) []float64 {
	v := make([]float64, n)
	if idx >= 0 && idx < n {
		v[idx] = 1.0
	}
	return v
}

// CrossEntropy returns -log(p[gold]) with a small floor to keep the loss finite.
func CrossEntropy(probs []float64, gold int) float64 {
	if gold < 0 || gold >= len(probs) {
		return math.Inf(1)
	}
	return -math.Log(probs[gold] + 1e-12)
}
