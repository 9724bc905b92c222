package anomaly

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

func init() {
	RegisterDetector("zscore", &ZScoreDetector{})
	RegisterDetector("iqr", &IQRDetector{})
}

// ZScoreDetector flags changes more than Threshold standard deviations from
// the mean change
type ZScoreDetector struct{}

// Name returns the algorithm name
func (z *ZScoreDetector) Name() string {
	return "zscore"
}

// Detect finds anomalies using the Z-Score method
func (z *ZScoreDetector) Detect(changes []float64, config DetectorConfig) []Result {
	if len(changes) < 2 {
		return nil
	}
	mean, std := stat.MeanStdDev(changes, nil)
	if std == 0 || math.IsNaN(std) {
		return nil
	}

	var results []Result
	for i, c := range changes {
		score := math.Abs(c-mean) / std
		if score > config.Threshold {
			results = append(results, Result{Index: i, Score: score, Type: directional(c)})
		}
	}
	return results
}

// IQRDetector flags changes outside [Q1 - k*IQR, Q3 + k*IQR]. It is robust
// to the heavy tails typical of daily rate moves.
type IQRDetector struct{}

// Name returns the algorithm name
func (d *IQRDetector) Name() string {
	return "iqr"
}

// Detect finds anomalies using the IQR method
func (d *IQRDetector) Detect(changes []float64, config DetectorConfig) []Result {
	if len(changes) < 4 {
		return nil
	}
	q1, q3, iqr := CalculateIQR(changes)
	if iqr == 0 {
		return nil
	}

	lower := q1 - config.Threshold*iqr
	upper := q3 + config.Threshold*iqr

	var results []Result
	for i, c := range changes {
		switch {
		case c > upper:
			results = append(results, Result{Index: i, Score: (c - upper) / iqr, Type: AnomalyTypeSpike})
		case c < lower:
			results = append(results, Result{Index: i, Score: (lower - c) / iqr, Type: AnomalyTypeDrop})
		}
	}
	return results
}

// CalculateIQR returns Q1, Q3 and the interquartile range of values
func CalculateIQR(values []float64) (q1, q3, iqr float64) {
	if len(values) == 0 {
		return 0, 0, 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	q1 = stat.Quantile(0.25, stat.LinInterp, sorted, nil)
	q3 = stat.Quantile(0.75, stat.LinInterp, sorted, nil)
	return q1, q3, q3 - q1
}
