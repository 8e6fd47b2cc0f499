package cmd

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// quantitySummary holds descriptive statistics for one extracted quantity.
type quantitySummary struct {
	Count int
	Mean  float64
	Min   float64
	Max   float64
	P50   float64
	P90   float64
	P99   float64
}

// summarize computes descriptive statistics over the sampled values of one
// quantity. Returns the zero summary for an empty input.
func summarize(vals []float64) quantitySummary {
	if len(vals) == 0 {
		return quantitySummary{}
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	return quantitySummary{
		Count: len(sorted),
		Mean:  stat.Mean(sorted, nil),
		Min:   sorted[0],
		Max:   sorted[len(sorted)-1],
		P50:   stat.Quantile(0.50, stat.Empirical, sorted, nil),
		P90:   stat.Quantile(0.90, stat.Empirical, sorted, nil),
		P99:   stat.Quantile(0.99, stat.Empirical, sorted, nil),
	}
}
