package serp

import (
	"math/rand"
	"sort"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func snapshotAt(ts time.Time, items ...SnapshotItem) Snapshot {
	return Snapshot{CapturedAt: ts, Items: items}
}

func item(domain string, rank int) SnapshotItem {
	return SnapshotItem{
		Domain:       domain,
		RankAbsolute: rank,
		Title:        domain + " title",
		URL:          "https://" + domain + "/page",
	}
}

func domainsOfNew(list []NewDomain) []string {
	out := make([]string, 0, len(list))
	for _, d := range list {
		out = append(out, d.Domain)
	}
	sort.Strings(out)
	return out
}

func domainsOfLost(list []LostDomain) []string {
	out := make([]string, 0, len(list))
	for _, d := range list {
		out = append(out, d.Domain)
	}
	sort.Strings(out)
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestCompare_BasicChurn(t *testing.T) {
	t0 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(24 * time.Hour)

	a := snapshotAt(t0, item("x.com", 1), item("y.com", 2))
	b := snapshotAt(t1, item("y.com", 1), item("z.com", 2))

	result := Compare(a, b)

	if !result.FromTimestamp.Equal(t0) || !result.ToTimestamp.Equal(t1) {
		t.Errorf("Expected timestamps %v -> %v, got %v -> %v", t0, t1, result.FromTimestamp, result.ToTimestamp)
	}

	if len(result.NewDomains) != 1 || result.NewDomains[0].Domain != "z.com" || result.NewDomains[0].Position != 2 {
		t.Fatalf("Expected new domain z.com at 2, got %+v", result.NewDomains)
	}
	if result.NewDomains[0].URL != "https://z.com/page" || result.NewDomains[0].Title != "z.com title" {
		t.Errorf("Expected new domain to carry title and url, got %+v", result.NewDomains[0])
	}

	if len(result.LostDomains) != 1 || result.LostDomains[0].Domain != "x.com" || result.LostDomains[0].PreviousPosition != 1 {
		t.Fatalf("Expected lost domain x.com at 1, got %+v", result.LostDomains)
	}

	if len(result.PositionChanges) != 1 {
		t.Fatalf("Expected 1 position change, got %d", len(result.PositionChanges))
	}
	change := result.PositionChanges[0]
	if change.Domain != "y.com" || change.OldPosition != 2 || change.NewPosition != 1 || change.Delta != 1 || change.Direction != DirectionUp {
		t.Errorf("Unexpected position change: %+v", change)
	}

	if result.VolatilityScore != 1.0 {
		t.Errorf("Expected volatility 1.0, got %f", result.VolatilityScore)
	}
	if result.TotalChanges != 3 {
		t.Errorf("Expected 3 total changes, got %d", result.TotalChanges)
	}
	if result.AveragePositionChange != 1.0 {
		t.Errorf("Expected average position change 1.0, got %f", result.AveragePositionChange)
	}
}

func TestCompare_FullResult(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(7 * 24 * time.Hour)

	a := snapshotAt(t0, item("a.com", 1), item("b.com", 2), item("c.com", 3), item("d.com", 4))
	b := snapshotAt(t1, item("c.com", 1), item("a.com", 2), item("e.com", 3), item("b.com", 4))

	want := ComparisonResult{
		FromTimestamp: t0,
		ToTimestamp:   t1,
		NewDomains: []NewDomain{
			{Domain: "e.com", Position: 3, Title: "e.com title", URL: "https://e.com/page"},
		},
		LostDomains: []LostDomain{
			{Domain: "d.com", PreviousPosition: 4, Title: "d.com title", URL: "https://d.com/page"},
		},
		PositionChanges: []PositionChange{
			{Domain: "b.com", OldPosition: 2, NewPosition: 4, Delta: -2, Direction: DirectionDown},
			{Domain: "c.com", OldPosition: 3, NewPosition: 1, Delta: 2, Direction: DirectionUp},
			{Domain: "a.com", OldPosition: 1, NewPosition: 2, Delta: -1, Direction: DirectionDown},
		},
		VolatilityScore:       1,
		AveragePositionChange: 5.0 / 3.0,
		TotalChanges:          5,
	}

	if diff := cmp.Diff(want, Compare(a, b)); diff != "" {
		t.Errorf("Compare mismatch (-want +got):\n%s", diff)
	}
}

func TestCompare_SortsByAbsoluteDelta(t *testing.T) {
	now := time.Now()
	a := snapshotAt(now, item("c.com", 3), item("a.com", 5), item("b.com", 10))
	b := snapshotAt(now.Add(time.Hour), item("a.com", 1), item("c.com", 3), item("b.com", 9))

	result := Compare(a, b)

	expected := []string{"a.com", "b.com", "c.com"}
	if len(result.PositionChanges) != len(expected) {
		t.Fatalf("Expected %d changes, got %d", len(expected), len(result.PositionChanges))
	}
	for i, domain := range expected {
		if result.PositionChanges[i].Domain != domain {
			t.Errorf("Position %d: expected %s, got %s", i, domain, result.PositionChanges[i].Domain)
		}
	}

	if result.PositionChanges[2].Direction != DirectionStable || result.PositionChanges[2].Delta != 0 {
		t.Errorf("Expected unchanged domain to be stable, got %+v", result.PositionChanges[2])
	}

	// 2 of 3 domains moved, by 4 and 1
	if result.AveragePositionChange != 2.5 {
		t.Errorf("Expected average position change 2.5, got %f", result.AveragePositionChange)
	}
	if result.TotalChanges != 2 {
		t.Errorf("Expected 2 total changes, got %d", result.TotalChanges)
	}
	if got, want := result.VolatilityScore, 2.0/3.0; got != want {
		t.Errorf("Expected volatility %f, got %f", want, got)
	}

	moved := result.MovedOnly()
	if len(moved) != 2 || moved[0].Domain != "a.com" || moved[1].Domain != "b.com" {
		t.Errorf("Expected MovedOnly to drop the stable domain, got %+v", moved)
	}
}

func TestCompare_TiesKeepInputOrder(t *testing.T) {
	now := time.Now()
	// d.com and e.com both move by 2, f.com by 3
	a := snapshotAt(now, item("d.com", 2), item("e.com", 6), item("f.com", 8))
	b := snapshotAt(now, item("e.com", 4), item("d.com", 4), item("f.com", 5))

	result := Compare(a, b)

	expected := []struct {
		domain    string
		delta     int
		direction Direction
	}{
		{"f.com", 3, DirectionUp},
		{"d.com", -2, DirectionDown},
		{"e.com", 2, DirectionUp},
	}
	for i, exp := range expected {
		got := result.PositionChanges[i]
		if got.Domain != exp.domain || got.Delta != exp.delta || got.Direction != exp.direction {
			t.Errorf("Position %d: expected %+v, got %+v", i, exp, got)
		}
	}
}

func TestCompare_LastSeenRankWins(t *testing.T) {
	now := time.Now()
	a := snapshotAt(now, item("x.com", 1), item("y.com", 2), item("x.com", 5))
	b := snapshotAt(now, item("x.com", 5), item("y.com", 2))

	result := Compare(a, b)

	if result.VolatilityScore != 0 {
		t.Errorf("Expected no volatility when last-seen ranks match, got %f", result.VolatilityScore)
	}
	for _, change := range result.PositionChanges {
		if change.Domain == "x.com" && change.OldPosition != 5 {
			t.Errorf("Expected x.com old position 5 (last seen), got %d", change.OldPosition)
		}
	}
}

func TestCompare_EmptySnapshots(t *testing.T) {
	result := Compare(Snapshot{}, Snapshot{})

	if result.VolatilityScore != 0 || result.AveragePositionChange != 0 || result.TotalChanges != 0 {
		t.Errorf("Expected zeroed result, got %+v", result)
	}
	if result.NewDomains == nil || result.LostDomains == nil || result.PositionChanges == nil {
		t.Error("Expected empty, non-nil slices so the result encodes as [] rather than null")
	}
}

func TestCompare_OneSideEmpty(t *testing.T) {
	now := time.Now()
	s := snapshotAt(now, item("a.com", 1), item("b.com", 2))

	appeared := Compare(Snapshot{}, s)
	if len(appeared.NewDomains) != 2 || appeared.VolatilityScore != 1 {
		t.Errorf("Expected everything new with volatility 1, got %+v", appeared)
	}

	vanished := Compare(s, Snapshot{})
	if len(vanished.LostDomains) != 2 || vanished.VolatilityScore != 1 {
		t.Errorf("Expected everything lost with volatility 1, got %+v", vanished)
	}
}

func TestCompare_IdenticalSnapshots(t *testing.T) {
	now := time.Now()
	s := snapshotAt(now, item("a.com", 1), item("b.com", 2), item("c.com", 3), item("a.com", 7))

	result := Compare(s, s)

	if len(result.NewDomains) != 0 || len(result.LostDomains) != 0 {
		t.Errorf("Expected no churn, got new=%v lost=%v", result.NewDomains, result.LostDomains)
	}
	for _, change := range result.PositionChanges {
		if change.Delta != 0 || change.Direction != DirectionStable {
			t.Errorf("Expected stable change, got %+v", change)
		}
	}
	if result.VolatilityScore != 0 {
		t.Errorf("Expected volatility 0, got %f", result.VolatilityScore)
	}
}

func randomSnapshot(rng *rand.Rand, ts time.Time) Snapshot {
	domains := []string{"a.com", "b.com", "c.com", "d.com", "e.com", "f.com", "g.com", "h.com"}
	n := rng.Intn(len(domains) + 1)
	items := make([]SnapshotItem, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, item(domains[rng.Intn(len(domains))], rng.Intn(20)+1))
	}
	return snapshotAt(ts, items...)
}

func TestCompare_SymmetryAndBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	now := time.Now()

	for i := 0; i < 200; i++ {
		a := randomSnapshot(rng, now)
		b := randomSnapshot(rng, now.Add(time.Hour))

		forward := Compare(a, b)
		backward := Compare(b, a)

		if !equalStrings(domainsOfNew(forward.NewDomains), domainsOfLost(backward.LostDomains)) {
			t.Fatalf("Case %d: new(a,b)=%v but lost(b,a)=%v", i, forward.NewDomains, backward.LostDomains)
		}
		if !equalStrings(domainsOfLost(forward.LostDomains), domainsOfNew(backward.NewDomains)) {
			t.Fatalf("Case %d: lost(a,b)=%v but new(b,a)=%v", i, forward.LostDomains, backward.NewDomains)
		}

		for _, r := range []ComparisonResult{forward, backward} {
			if r.VolatilityScore < 0 || r.VolatilityScore > 1 {
				t.Fatalf("Case %d: volatility out of bounds: %f", i, r.VolatilityScore)
			}
			for j := 1; j < len(r.PositionChanges); j++ {
				if absInt(r.PositionChanges[j-1].Delta) < absInt(r.PositionChanges[j].Delta) {
					t.Fatalf("Case %d: position changes not sorted: %+v", i, r.PositionChanges)
				}
			}
		}
	}
}
