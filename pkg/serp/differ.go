package serp

import "sort"

// rankedEntry is the per-domain view of a snapshot used while diffing
type rankedEntry struct {
	position int
	title    string
	url      string
}

// domainIndex maps domains to their last-seen entry and remembers the order
// in which each domain first appeared.
type domainIndex struct {
	entries map[string]rankedEntry
	order   []string
}

func buildDomainIndex(items []SnapshotItem) domainIndex {
	idx := domainIndex{
		entries: make(map[string]rankedEntry, len(items)),
		order:   make([]string, 0, len(items)),
	}
	for _, item := range items {
		if _, seen := idx.entries[item.Domain]; !seen {
			idx.order = append(idx.order, item.Domain)
		}
		// Last write wins for domains owning several ranked pages.
		idx.entries[item.Domain] = rankedEntry{
			position: item.RankAbsolute,
			title:    item.Title,
			url:      item.URL,
		}
	}
	return idx
}

// Compare diffs two snapshots of the same SERP. a is the earlier capture and b
// the later one. Empty snapshots are valid and produce an empty result with a
// zero volatility score.
func Compare(a, b Snapshot) ComparisonResult {
	from := buildDomainIndex(a.Items)
	to := buildDomainIndex(b.Items)

	// Union in a fixed order: a's domains first, then domains only seen in b.
	allDomains := make([]string, 0, len(from.order)+len(to.order))
	allDomains = append(allDomains, from.order...)
	for _, domain := range to.order {
		if _, inFrom := from.entries[domain]; !inFrom {
			allDomains = append(allDomains, domain)
		}
	}

	result := ComparisonResult{
		FromTimestamp:   a.CapturedAt,
		ToTimestamp:     b.CapturedAt,
		NewDomains:      []NewDomain{},
		LostDomains:     []LostDomain{},
		PositionChanges: []PositionChange{},
	}

	var totalDelta int
	var changedDomains int

	for _, domain := range allDomains {
		oldEntry, inFrom := from.entries[domain]
		newEntry, inTo := to.entries[domain]

		switch {
		case inTo && !inFrom:
			result.NewDomains = append(result.NewDomains, NewDomain{
				Domain:   domain,
				Position: newEntry.position,
				Title:    newEntry.title,
				URL:      newEntry.url,
			})
		case inFrom && !inTo:
			result.LostDomains = append(result.LostDomains, LostDomain{
				Domain:           domain,
				PreviousPosition: oldEntry.position,
				Title:            oldEntry.title,
				URL:              oldEntry.url,
			})
		default:
			delta := oldEntry.position - newEntry.position
			if delta != 0 {
				totalDelta += absInt(delta)
				changedDomains++
			}
			result.PositionChanges = append(result.PositionChanges, PositionChange{
				Domain:      domain,
				OldPosition: oldEntry.position,
				NewPosition: newEntry.position,
				Delta:       delta,
				Direction:   directionOf(delta),
			})
		}
	}

	sort.SliceStable(result.PositionChanges, func(i, j int) bool {
		return absInt(result.PositionChanges[i].Delta) > absInt(result.PositionChanges[j].Delta)
	})

	churn := len(result.NewDomains) + len(result.LostDomains) + changedDomains
	if len(allDomains) > 0 {
		result.VolatilityScore = float64(churn) / float64(len(allDomains))
	}
	if changedDomains > 0 {
		result.AveragePositionChange = float64(totalDelta) / float64(changedDomains)
	}
	result.TotalChanges = churn

	return result
}

func directionOf(delta int) Direction {
	switch {
	case delta > 0:
		return DirectionUp
	case delta < 0:
		return DirectionDown
	default:
		return DirectionStable
	}
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
