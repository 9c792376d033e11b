package formulas

import "gonum.org/v1/gonum/stat"

// Baseline is a (mean, stdev, sample-size) triple over a lookback window,
// the shape stored for RVOL slot baselines and trade-count baselines.
type Baseline struct {
	Mean    float64
	StdDev  float64
	Samples int
}

// ComputeBaseline returns the mean and sample (n-1) stdev of samples using
// gonum/stat, matching how the nightly maintenance jobs build RVOL and
// trade-count baselines from the last K trading days.
func ComputeBaseline(samples []float64) Baseline {
	if len(samples) == 0 {
		return Baseline{}
	}
	mean := stat.Mean(samples, nil)
	var sd float64
	if len(samples) > 1 {
		sd = stat.StdDev(samples, nil)
	}
	return Baseline{Mean: mean, StdDev: sd, Samples: len(samples)}
}

// ZScore computes the trade-count anomaly Z-score per §4.3/§8:
//   - stdev > 0            -> (today - mean) / stdev
//   - stdev == 0, today > 2*mean -> forced 10 (strong anomaly signal, can't
//     be computed normally because the baseline never varies)
//   - stdev == 0, today <= 2*mean -> forced 0 (no meaningful deviation)
func ZScore(today float64, baseline Baseline) float64 {
	if baseline.StdDev > 0 {
		return (today - baseline.Mean) / baseline.StdDev
	}
	if today > 2*baseline.Mean {
		return 10
	}
	return 0
}
