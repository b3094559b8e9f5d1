package tracker

import (
	"sync/atomic"
	"time"
)

// Stats tracks keyword tracking counters and durations
type Stats struct {
	submitted atomic.Uint64
	completed atomic.Uint64
	failed    atomic.Uint64

	totalDuration atomic.Uint64 // in nanoseconds
	minDuration   atomic.Uint64 // in nanoseconds
	maxDuration   atomic.Uint64 // in nanoseconds

	startTime time.Time
}

func NewStats() *Stats {
	return &Stats{startTime: time.Now()}
}

func (s *Stats) IncrementSubmitted() {
	s.submitted.Add(1)
}

// Record counts one finished keyword and its duration
func (s *Stats) Record(duration time.Duration, err error) {
	if err != nil {
		s.failed.Add(1)
	} else {
		s.completed.Add(1)
	}

	nanos := uint64(duration.Nanoseconds())
	s.totalDuration.Add(nanos)

	for {
		current := s.minDuration.Load()
		if current != 0 && nanos >= current {
			break
		}
		if s.minDuration.CompareAndSwap(current, nanos) {
			break
		}
	}

	for {
		current := s.maxDuration.Load()
		if nanos <= current {
			break
		}
		if s.maxDuration.CompareAndSwap(current, nanos) {
			break
		}
	}
}

func (s *Stats) Snapshot() StatsSnapshot {
	submitted := s.submitted.Load()
	completed := s.completed.Load()
	failed := s.failed.Load()

	var avgDuration time.Duration
	if finished := completed + failed; finished > 0 {
		avgDuration = time.Duration(s.totalDuration.Load() / finished)
	}

	var successRate float64
	if submitted > 0 {
		successRate = float64(completed) / float64(submitted)
	}

	return StatsSnapshot{
		KeywordsSubmitted: submitted,
		KeywordsTracked:   completed,
		KeywordsFailed:    failed,
		SuccessRate:       successRate,
		AverageDuration:   avgDuration,
		MinDuration:       time.Duration(s.minDuration.Load()),
		MaxDuration:       time.Duration(s.maxDuration.Load()),
		Uptime:            time.Since(s.startTime),
	}
}

// StatsSnapshot is a point-in-time copy of Stats
type StatsSnapshot struct {
	KeywordsSubmitted uint64        `json:"keywordsSubmitted"`
	KeywordsTracked   uint64        `json:"keywordsTracked"`
	KeywordsFailed    uint64        `json:"keywordsFailed"`
	SuccessRate       float64       `json:"successRate"`
	AverageDuration   time.Duration `json:"averageDuration"`
	MinDuration       time.Duration `json:"minDuration"`
	MaxDuration       time.Duration `json:"maxDuration"`
	Uptime            time.Duration `json:"uptime"`
	// BreakerState is the SERP client's circuit breaker state, empty when
	// the client has none
	BreakerState string `json:"breakerState,omitempty"`
}
