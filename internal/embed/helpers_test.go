package embed

import "math"

// l2Norm reimplements vector length independently of the code under test.
func l2Norm(v []float32) float64 {
	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}
	return math.Sqrt(sumSquares)
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	na, nb := l2Norm(a), l2Norm(b)
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (na * nb)
}
