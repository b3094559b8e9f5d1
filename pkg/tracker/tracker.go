package tracker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"serp-go/pkg/api"
	"serp-go/pkg/history"
	"serp-go/pkg/logger"
	"serp-go/pkg/serp"
)

// ErrNoClient is returned by Track when no SERP data client is configured
var ErrNoClient = errors.New("no SERP data client configured")

// Config controls how keywords are fetched and tracked
type Config struct {
	Workers      int
	LocationCode int
	LanguageCode string
	Depth        int
	// HistoryLimit is the default number of snapshots fed to Volatility
	HistoryLimit int
	FetchVolume  bool
}

func DefaultConfig() Config {
	return Config{
		Workers:      4,
		LocationCode: 2840,
		LanguageCode: "en",
		Depth:        100,
		HistoryLimit: 30,
		FetchVolume:  true,
	}
}

// Result is the outcome of tracking one keyword
type Result struct {
	Keyword    string                 `json:"keyword"`
	Domain     string                 `json:"domain,omitempty"`
	CapturedAt time.Time              `json:"capturedAt"`
	SnapshotID string                 `json:"snapshotId,omitempty"`
	Comparison *serp.ComparisonResult `json:"comparison,omitempty"`
	Metrics    serp.KeywordMetrics    `json:"metrics"`
	Error      string                 `json:"error,omitempty"`
}

// Recorder receives the outcome of every tracked keyword
type Recorder interface {
	ObserveTrack(duration time.Duration, err error)
	ObserveComparison(result serp.ComparisonResult)
}

// Tracker fetches SERPs, keeps their history and compares each new snapshot
// against the previous one
type Tracker struct {
	client   api.Client
	history  history.Manager
	config   Config
	stats    *Stats
	recorder Recorder
	log      *logger.Logger
}

func New(client api.Client, historyManager history.Manager, config Config) *Tracker {
	if config.Workers <= 0 {
		config.Workers = DefaultConfig().Workers
	}
	if config.HistoryLimit <= 0 {
		config.HistoryLimit = DefaultConfig().HistoryLimit
	}

	return &Tracker{
		client:  client,
		history: historyManager,
		config:  config,
		stats:   NewStats(),
		log:     logger.GetLogger().WithField("component", "rank_tracker"),
	}
}

// CanFetch reports whether a SERP data client is configured. Without one
// only stored history can be analyzed.
func (t *Tracker) CanFetch() bool {
	return t.client != nil
}

// SetRecorder installs r to observe tracking outcomes. It must be called
// before tracking starts.
func (t *Tracker) SetRecorder(r Recorder) {
	t.recorder = r
}

// Stats returns a point-in-time copy of the tracking counters
func (t *Tracker) Stats() StatsSnapshot {
	snapshot := t.stats.Snapshot()
	if reporter, ok := t.client.(breakerReporter); ok {
		snapshot.BreakerState = reporter.BreakerState()
	}
	return snapshot
}

// breakerReporter is implemented by clients guarded by a circuit breaker
type breakerReporter interface {
	BreakerState() string
}

// Track fetches the current SERP for keyword, stores it and compares it with
// the previously stored one. targetDomain may be empty, in which case no
// position metrics are derived.
func (t *Tracker) Track(ctx context.Context, keyword, targetDomain string) (*Result, error) {
	volumes := t.lookupVolumes(ctx, []string{keyword})
	return t.track(ctx, keyword, targetDomain, volumes)
}

// TrackAll tracks keywords with at most config.Workers requests in flight.
// Results follow the input order with duplicates (after keyword
// normalization) removed; a failing keyword is reported in its Result and
// does not stop the others.
func (t *Tracker) TrackAll(ctx context.Context, keywords []string, targetDomain string) ([]Result, error) {
	unique := deduplicateKeywords(keywords)
	results := make([]Result, len(unique))
	if len(unique) == 0 {
		return results, nil
	}

	start := time.Now()
	volumes := t.lookupVolumes(ctx, unique)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.config.Workers)

	for i, keyword := range unique {
		i, keyword := i, keyword
		g.Go(func() error {
			result, err := t.track(gctx, keyword, targetDomain, volumes)
			if err != nil {
				results[i] = Result{Keyword: keyword, Domain: targetDomain, Error: err.Error()}
				return nil
			}
			results[i] = *result
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	failed := 0
	for _, result := range results {
		if result.Error != "" {
			failed++
		}
	}
	t.log.WithFields(map[string]interface{}{
		"keywords":    len(unique),
		"failed":      failed,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("Keyword tracking completed")

	return results, nil
}

// Volatility analyzes the stored history of keyword. limit <= 0 uses the
// configured history limit.
func (t *Tracker) Volatility(ctx context.Context, keyword string, limit int) (serp.VolatilityReport, error) {
	if limit <= 0 {
		limit = t.config.HistoryLimit
	}

	snapshots, err := t.history.Series(ctx, keyword, limit)
	if err != nil {
		return serp.VolatilityReport{}, fmt.Errorf("failed to load history for %q: %w", keyword, err)
	}
	return serp.AnalyzeVolatility(snapshots), nil
}

func (t *Tracker) track(ctx context.Context, keyword, targetDomain string, volumes map[string]serp.Option[int]) (*Result, error) {
	start := time.Now()
	t.stats.IncrementSubmitted()

	result, err := t.trackKeyword(ctx, keyword, targetDomain, volumes)
	duration := time.Since(start)
	t.stats.Record(duration, err)
	if t.recorder != nil {
		t.recorder.ObserveTrack(duration, err)
	}
	if err != nil {
		t.log.WithError(err).WithField("keyword", keyword).Warn("Failed to track keyword")
		return nil, err
	}
	return result, nil
}

func (t *Tracker) trackKeyword(ctx context.Context, keyword, targetDomain string, volumes map[string]serp.Option[int]) (*Result, error) {
	if t.client == nil {
		return nil, ErrNoClient
	}

	current, err := t.client.FetchSERP(ctx, api.SERPRequest{
		Keyword:      keyword,
		LocationCode: t.config.LocationCode,
		LanguageCode: t.config.LanguageCode,
		Depth:        t.config.Depth,
	})
	if err != nil {
		return nil, err
	}
	// history is keyed by the requested keyword, not the provider's echo
	current.Keyword = keyword

	previous, err := t.history.Latest(ctx, keyword)
	if err != nil && !errors.Is(err, history.ErrNoSnapshots) {
		return nil, fmt.Errorf("failed to load previous snapshot: %w", err)
	}

	metadata, err := t.history.SaveSnapshot(ctx, *current)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Keyword:    keyword,
		Domain:     targetDomain,
		CapturedAt: metadata.CapturedAt,
		SnapshotID: metadata.ID,
	}

	if previous != nil {
		comparison := serp.Compare(*previous, *current)
		result.Comparison = &comparison
		if t.recorder != nil {
			t.recorder.ObserveComparison(comparison)
		}
	}

	if targetDomain != "" {
		position := findPosition(*current, targetDomain)
		result.Metrics = serp.DeriveMetrics(position, volumes[history.KeywordKey(keyword)])
	}

	t.log.WithFields(map[string]interface{}{
		"keyword":  keyword,
		"items":    len(current.Items),
		"previous": previous != nil,
	}).Debug("Keyword tracked")

	return result, nil
}

// lookupVolumes fetches search volume keyed by history.KeywordKey. Volume is
// optional enrichment, so failures only cost the derived traffic metrics.
func (t *Tracker) lookupVolumes(ctx context.Context, keywords []string) map[string]serp.Option[int] {
	volumes := make(map[string]serp.Option[int], len(keywords))
	if !t.config.FetchVolume || t.client == nil {
		return volumes
	}

	for start := 0; start < len(keywords); start += maxVolumeBatch {
		end := min(start+maxVolumeBatch, len(keywords))

		batch, err := t.client.SearchVolume(ctx, api.VolumeRequest{
			Keywords:     keywords[start:end],
			LocationCode: t.config.LocationCode,
			LanguageCode: t.config.LanguageCode,
		})
		if err != nil {
			t.log.WithError(err).WithField("keywords", end-start).Warn("Search volume lookup failed")
			continue
		}

		for _, volume := range batch {
			volumes[history.KeywordKey(volume.Keyword)] = volume.SearchVolume
		}
	}
	return volumes
}

const maxVolumeBatch = 1000

// findPosition returns the best rank held by the registrable domain of target
func findPosition(snapshot serp.Snapshot, target string) serp.Option[int] {
	domain := serp.ExtractDomain(target)
	best := 0
	for _, item := range snapshot.Items {
		if item.Domain != domain {
			continue
		}
		if best == 0 || item.RankAbsolute < best {
			best = item.RankAbsolute
		}
	}
	if best == 0 {
		return serp.None[int]()
	}
	return serp.Some(best)
}

func deduplicateKeywords(keywords []string) []string {
	seen := make(map[string]bool, len(keywords))
	unique := make([]string, 0, len(keywords))
	for _, keyword := range keywords {
		key := history.KeywordKey(keyword)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, strings.TrimSpace(keyword))
	}
	return unique
}
