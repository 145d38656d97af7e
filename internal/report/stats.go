package report

import "math"

// running accumulates a mean and population standard deviation in one pass
// using Welford's online algorithm.
type running struct {
	n    int
	mean float64
	m2   float64
}

func (r *running) add(v float64) {
	r.n++
	delta := v - r.mean
	r.mean += delta / float64(r.n)
	r.m2 += delta * (v - r.mean)
}

// Mean returns 0 when nothing was added
func (r *running) Mean() float64 {
	return r.mean
}

// StdDev returns 0 with fewer than 2 observations
func (r *running) StdDev() float64 {
	if r.n < 2 {
		return 0
	}
	return math.Sqrt(r.m2 / float64(r.n))
}

// percent returns part/total as a percentage, 0 when total is 0
func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}
