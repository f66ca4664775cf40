package analytics

import (
	"math"
	"sort"
)

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stdev is the sample standard deviation (n-1 denominator). Fewer than two
// samples yield 0.
func stdev(xs []float64) float64 {
	n := len(xs)
	if n < 2 {
		return 0
	}
	m := mean(xs)
	var ss float64
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(n-1))
}

func median(xs []float64) float64 {
	n := len(xs)
	if n == 0 {
		return 0
	}
	s := append([]float64(nil), xs...)
	sort.Float64s(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

// percentile computes the p-th percentile (0..100) with linear
// interpolation between closest ranks.
func percentile(xs []float64, p float64) float64 {
	n := len(xs)
	if n == 0 {
		return 0
	}
	s := append([]float64(nil), xs...)
	sort.Float64s(s)
	if n == 1 {
		return s[0]
	}
	rank := p / 100 * float64(n-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return s[lo]
	}
	frac := rank - float64(lo)
	return s[lo] + frac*(s[hi]-s[lo])
}

// sampleCov is the sample covariance (n-1 denominator) of two equal-length
// series.
func sampleCov(xs, ys []float64) float64 {
	n := len(xs)
	if n < 2 || n != len(ys) {
		return 0
	}
	mx, my := mean(xs), mean(ys)
	var sum float64
	for i := range xs {
		sum += (xs[i] - mx) * (ys[i] - my)
	}
	return sum / float64(n-1)
}

// skewness is the bias-adjusted Fisher-Pearson sample skewness. Fewer than
// three samples, or zero variance, yield 0.
func skewness(xs []float64) float64 {
	n := float64(len(xs))
	if n < 3 {
		return 0
	}
	s := stdev(xs)
	if s == 0 {
		return 0
	}
	m := mean(xs)
	var sum float64
	for _, x := range xs {
		z := (x - m) / s
		sum += z * z * z
	}
	return n / ((n - 1) * (n - 2)) * sum
}

// kurtosis is the bias-adjusted excess kurtosis. Fewer than four samples,
// or zero variance, yield 0.
func kurtosis(xs []float64) float64 {
	n := float64(len(xs))
	if n < 4 {
		return 0
	}
	s := stdev(xs)
	if s == 0 {
		return 0
	}
	m := mean(xs)
	var sum float64
	for _, x := range xs {
		z := (x - m) / s
		sum += z * z * z * z
	}
	adj := n * (n + 1) / ((n - 1) * (n - 2) * (n - 3))
	return adj*sum - 3*(n-1)*(n-1)/((n-2)*(n-3))
}
