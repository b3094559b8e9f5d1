package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"serp-go/pkg/serp"
)

// Usage: go run ./scripts/compare-snapshots.go old.json new.json [newer.json ...]
//
// Each file holds one snapshot as returned by the API. Two files print the
// comparison, more files also print the volatility report.
func main() {
	if len(os.Args) < 3 {
		fmt.Println("usage: compare-snapshots <snapshot.json> <snapshot.json> [snapshot.json ...]")
		os.Exit(1)
	}

	snapshots := make([]serp.Snapshot, 0, len(os.Args)-1)
	for _, path := range os.Args[1:] {
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Printf("❌ %v\n", err)
			os.Exit(1)
		}
		var snapshot serp.Snapshot
		if err := json.Unmarshal(data, &snapshot); err != nil {
			fmt.Printf("❌ %s: %v\n", path, err)
			os.Exit(1)
		}
		snapshots = append(snapshots, snapshot)
	}

	fmt.Println(strings.Repeat("=", 60))
	result := serp.Compare(snapshots[len(snapshots)-2], snapshots[len(snapshots)-1])
	fmt.Printf("%s -> %s\n", result.FromTimestamp.Format("2006-01-02 15:04"), result.ToTimestamp.Format("2006-01-02 15:04"))
	fmt.Printf("Volatility: %.3f  Total changes: %d  Avg move: %.2f\n", result.VolatilityScore, result.TotalChanges, result.AveragePositionChange)

	for _, d := range result.NewDomains {
		fmt.Printf("  + %-30s #%d\n", d.Domain, d.Position)
	}
	for _, d := range result.LostDomains {
		fmt.Printf("  - %-30s was #%d\n", d.Domain, d.PreviousPosition)
	}
	for _, c := range result.MovedOnly() {
		fmt.Printf("  %s %-30s %d -> %d\n", arrow(c.Direction), c.Domain, c.OldPosition, c.NewPosition)
	}

	if len(snapshots) > 2 {
		report := serp.AnalyzeVolatility(snapshots)
		fmt.Println(strings.Repeat("=", 60))
		fmt.Printf("Series of %d: avg %.3f  min %.3f  max %.3f  trend %s\n",
			len(snapshots), report.AverageVolatility, report.MinVolatility, report.MaxVolatility, report.Trend)
	}
}

func arrow(direction serp.Direction) string {
	switch direction {
	case serp.DirectionUp:
		return "↑"
	case serp.DirectionDown:
		return "↓"
	}
	return "="
}
