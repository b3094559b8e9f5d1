package service

import (
	"context"

	"serp-go/pkg/history"
	"serp-go/pkg/serp"
	"serp-go/pkg/tracker"
)

// TrackingService fetches and compares SERPs for keywords
type TrackingService interface {
	CanFetch() bool
	Track(ctx context.Context, keyword, domain string) (*tracker.Result, error)
	TrackAll(ctx context.Context, keywords []string, domain string) ([]tracker.Result, error)
	Volatility(ctx context.Context, keyword string, limit int) (serp.VolatilityReport, error)
	Stats() tracker.StatsSnapshot
}

// HistoryService exposes stored snapshot metadata
type HistoryService interface {
	Index(ctx context.Context, keyword string, limit int) ([]history.SnapshotMetadata, error)
}
