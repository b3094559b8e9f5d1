package serp

import "time"

// Direction describes how a domain moved between two snapshots
type Direction string

const (
	DirectionUp     Direction = "up"
	DirectionDown   Direction = "down"
	DirectionStable Direction = "stable"
)

// Trend is the coarse classification of volatility over a series
type Trend string

const (
	TrendIncreasing Trend = "increasing"
	TrendDecreasing Trend = "decreasing"
	TrendStable     Trend = "stable"
)

// SnapshotItem is a single organic result captured in a SERP snapshot
type SnapshotItem struct {
	Domain       string `json:"domain"`
	RankAbsolute int    `json:"rankAbsolute"`
	Title        string `json:"title"`
	URL          string `json:"url"`
}

// Snapshot is the organic state of a SERP for one keyword at one point in time.
// Items are kept in the order the data source returned them.
type Snapshot struct {
	Keyword    string         `json:"keyword,omitempty"`
	CapturedAt time.Time      `json:"capturedAt"`
	Items      []SnapshotItem `json:"items"`
}

// NewDomain is a domain present in the later snapshot only
type NewDomain struct {
	Domain   string `json:"domain"`
	Position int    `json:"position"`
	Title    string `json:"title"`
	URL      string `json:"url"`
}

// LostDomain is a domain present in the earlier snapshot only
type LostDomain struct {
	Domain           string `json:"domain"`
	PreviousPosition int    `json:"previousPosition"`
	Title            string `json:"title"`
	URL              string `json:"url"`
}

// PositionChange records the movement of a domain present in both snapshots.
// Delta is OldPosition - NewPosition, so a positive delta means the domain moved up.
type PositionChange struct {
	Domain      string    `json:"domain"`
	OldPosition int       `json:"oldPosition"`
	NewPosition int       `json:"newPosition"`
	Delta       int       `json:"delta"`
	Direction   Direction `json:"direction"`
}

// ComparisonResult is the outcome of diffing two snapshots
type ComparisonResult struct {
	FromTimestamp         time.Time        `json:"fromTimestamp"`
	ToTimestamp           time.Time        `json:"toTimestamp"`
	NewDomains            []NewDomain      `json:"newDomains"`
	LostDomains           []LostDomain     `json:"lostDomains"`
	PositionChanges       []PositionChange `json:"positionChanges"`
	VolatilityScore       float64          `json:"volatilityScore"`
	AveragePositionChange float64          `json:"averagePositionChange"`
	TotalChanges          int              `json:"totalChanges"`
}

// MovedOnly returns the position changes with a nonzero delta, keeping their order.
func (r *ComparisonResult) MovedOnly() []PositionChange {
	moved := make([]PositionChange, 0, len(r.PositionChanges))
	for _, change := range r.PositionChanges {
		if change.Delta != 0 {
			moved = append(moved, change)
		}
	}
	return moved
}

// VolatilityReport aggregates pairwise comparisons across a snapshot series
type VolatilityReport struct {
	AverageVolatility float64            `json:"averageVolatility"`
	MaxVolatility     float64            `json:"maxVolatility"`
	MinVolatility     float64            `json:"minVolatility"`
	Trend             Trend              `json:"trend"`
	Comparisons       []ComparisonResult `json:"comparisons"`
}
