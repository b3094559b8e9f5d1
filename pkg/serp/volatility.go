package serp

import "sort"

const (
	// trendWindow is the number of comparisons averaged at each end of a series
	trendWindow = 3

	increasingFactor = 1.2
	decreasingFactor = 0.8
)

// AnalyzeVolatility compares every consecutive pair of snapshots in
// chronological order and summarizes the resulting volatility scores.
//
// Fewer than two snapshots is not an error: the report is all zeros with a
// stable trend and no comparisons, which callers use to detect "not enough data".
func AnalyzeVolatility(snapshots []Snapshot) VolatilityReport {
	if len(snapshots) < 2 {
		return VolatilityReport{
			Trend:       TrendStable,
			Comparisons: []ComparisonResult{},
		}
	}

	ordered := make([]Snapshot, len(snapshots))
	copy(ordered, snapshots)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CapturedAt.Before(ordered[j].CapturedAt)
	})

	comparisons := make([]ComparisonResult, 0, len(ordered)-1)
	scores := make([]float64, 0, len(ordered)-1)
	for i := 1; i < len(ordered); i++ {
		comparison := Compare(ordered[i-1], ordered[i])
		comparisons = append(comparisons, comparison)
		scores = append(scores, comparison.VolatilityScore)
	}

	report := VolatilityReport{
		AverageVolatility: mean(scores),
		MaxVolatility:     scores[0],
		MinVolatility:     scores[0],
		Trend:             classifyTrend(scores),
		Comparisons:       comparisons,
	}
	for _, score := range scores[1:] {
		if score > report.MaxVolatility {
			report.MaxVolatility = score
		}
		if score < report.MinVolatility {
			report.MinVolatility = score
		}
	}

	return report
}

// classifyTrend compares the average of the last few scores with the average
// of the first few. With fewer than 2*trendWindow scores the two windows overlap.
func classifyTrend(scores []float64) Trend {
	window := trendWindow
	if len(scores) < window {
		window = len(scores)
	}

	recentAvg := mean(scores[len(scores)-window:])
	earlyAvg := mean(scores[:window])

	switch {
	case recentAvg > earlyAvg*increasingFactor:
		return TrendIncreasing
	case recentAvg < earlyAvg*decreasingFactor:
		return TrendDecreasing
	default:
		return TrendStable
	}
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
