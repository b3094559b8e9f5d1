package serp

import "math"

// KeywordMetrics bundles the derived metrics for one ranked keyword
type KeywordMetrics struct {
	Position         Option[int]     `json:"position"`
	SearchVolume     Option[int]     `json:"searchVolume"`
	EstimatedCTR     Option[float64] `json:"estimatedCtr"`
	EstimatedTraffic Option[int]     `json:"estimatedTraffic"`
	VisibilityScore  Option[int]     `json:"visibilityScore"`
}

// DeriveMetrics computes CTR, traffic and visibility for a position and volume
func DeriveMetrics(position, searchVolume Option[int]) KeywordMetrics {
	ctr := EstimatedCTR(position)
	return KeywordMetrics{
		Position:         position,
		SearchVolume:     searchVolume,
		EstimatedCTR:     ctr,
		EstimatedTraffic: EstimatedTraffic(searchVolume, ctr),
		VisibilityScore:  VisibilityScore(position, searchVolume),
	}
}

// EstimatedCTR maps a rank position to an expected click-through rate using
// an empirical curve of aggregate Search Console behavior.
func EstimatedCTR(position Option[int]) Option[float64] {
	p, ok := position.Get()
	if !ok {
		return None[float64]()
	}
	pos := float64(p)

	switch {
	case p <= 1:
		return Some(0.316)
	case p == 2:
		return Some(0.244)
	case p == 3:
		return Some(0.186)
	case p <= 10:
		return Some(0.05 + (10-pos)*0.015)
	case p <= 20:
		return Some(0.02 + (20-pos)*0.002)
	case p <= 30:
		return Some(0.01 + (30-pos)*0.0005)
	case p <= 50:
		return Some(0.005 + (50-pos)*0.0001)
	case p <= 100:
		return Some(0.001 + (100-pos)*0.00001)
	default:
		return Some(0.001)
	}
}

// EstimatedTraffic is the rounded monthly visits expected from a keyword
func EstimatedTraffic(searchVolume Option[int], ctr Option[float64]) Option[int] {
	volume, okVolume := searchVolume.Get()
	rate, okRate := ctr.Get()
	if !okVolume || !okRate {
		return None[int]()
	}
	return Some(int(math.Round(float64(volume) * rate)))
}

// VisibilityScore scores a ranking from 0 to 100, damped by search volume so a
// top position on a keyword nobody searches for does not look highly visible.
func VisibilityScore(position, searchVolume Option[int]) Option[int] {
	p, okPosition := position.Get()
	volume, okVolume := searchVolume.Get()
	if !okPosition || !okVolume {
		return None[int]()
	}

	volumeWeight := math.Min(1, math.Log10(float64(volume)+1)/6)
	return Some(int(math.Round(positionScore(p) * volumeWeight)))
}

func positionScore(p int) float64 {
	pos := float64(p)

	switch {
	case p <= 1:
		return 100
	case p == 2:
		return 80
	case p == 3:
		return 65
	case p <= 10:
		return 30 + (10-pos)*5
	case p <= 20:
		return 10 + (20-pos)*2
	case p <= 30:
		return 5 + (30-pos)*0.5
	case p <= 50:
		return 1 + (50-pos)*0.2
	case p <= 100:
		return (100 - pos) * 0.02
	default:
		return 0
	}
}
