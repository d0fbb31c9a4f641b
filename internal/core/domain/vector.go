package domain

import "math"

// MetricCosine is the only distance metric used by vector indexes.
const MetricCosine = "cosine"

// ZeroVector returns a vector of the given dimension with all components zero.
// It marks text that was empty or could not be embedded.
func ZeroVector(dims int) []float32 {
	if dims < 0 {
		dims = 0
	}
	return make([]float32, dims)
}

// IsZeroVector reports whether every component of v is zero.
func IsZeroVector(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// CosineSimilarity returns the cosine of the angle between a and b.
// Vectors of different length, or with zero magnitude, score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
