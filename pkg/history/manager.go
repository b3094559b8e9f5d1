package history

import (
	"context"
	"crypto/md5"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"

	"serp-go/pkg/logger"
	"serp-go/pkg/serp"
	"serp-go/pkg/storage"
)

// maxIndexSize bounds the per-keyword index; older entries fall off
const maxIndexSize = 100

// SnapshotManager implements Manager on top of a storage.Storage
type SnapshotManager struct {
	storage storage.Storage
	now     func() time.Time
	log     *logger.Logger

	// serializes index read-modify-write cycles
	mu sync.Mutex
}

// NewSnapshotManager creates a new snapshot history manager
func NewSnapshotManager(store storage.Storage) *SnapshotManager {
	return &SnapshotManager{
		storage: store,
		now:     time.Now,
		log:     logger.GetLogger().WithField("component", "snapshot_history"),
	}
}

// KeywordKey normalizes a keyword for use in storage keys, so "Running  Shoes"
// and "running shoes" share a history. A Caser is stateful, hence one per call.
func KeywordKey(keyword string) string {
	return strings.Join(strings.Fields(cases.Fold().String(keyword)), "_")
}

func (h *SnapshotManager) SaveSnapshot(ctx context.Context, snap serp.Snapshot) (*SnapshotMetadata, error) {
	keywordKey := KeywordKey(snap.Keyword)
	if keywordKey == "" {
		return nil, fmt.Errorf("snapshot keyword is required")
	}
	if snap.CapturedAt.IsZero() {
		snap.CapturedAt = h.now().UTC()
	}

	metadata := SnapshotMetadata{
		ID:         uuid.NewString(),
		Key:        fmt.Sprintf("serp:%s:%d", keywordKey, snap.CapturedAt.UnixNano()),
		Keyword:    snap.Keyword,
		CapturedAt: snap.CapturedAt,
		ItemCount:  len(snap.Items),
		Checksum:   calculateChecksum(snap.Items),
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.storage.Save(ctx, metadata.Key, snap); err != nil {
		return nil, fmt.Errorf("failed to save snapshot: %w", err)
	}

	if err := h.updateIndex(ctx, keywordKey, metadata); err != nil {
		return nil, fmt.Errorf("failed to update snapshot index: %w", err)
	}

	h.log.WithFields(map[string]interface{}{
		"keyword":    snap.Keyword,
		"item_count": metadata.ItemCount,
		"checksum":   metadata.Checksum,
	}).Debug("Snapshot saved")

	return &metadata, nil
}

func (h *SnapshotManager) Latest(ctx context.Context, keyword string) (*serp.Snapshot, error) {
	index, err := h.Index(ctx, keyword, 1)
	if err != nil {
		return nil, err
	}
	if len(index) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoSnapshots, keyword)
	}

	var snap serp.Snapshot
	if err := h.storage.Load(ctx, index[0].Key, &snap); err != nil {
		return nil, fmt.Errorf("failed to load snapshot data: %w", err)
	}
	return &snap, nil
}

// Index returns metadata newest first. A keyword without history yields an
// empty slice; limit <= 0 returns everything.
func (h *SnapshotManager) Index(ctx context.Context, keyword string, limit int) ([]SnapshotMetadata, error) {
	index, err := h.loadIndex(ctx, KeywordKey(keyword))
	if err != nil {
		return nil, err
	}

	sort.SliceStable(index, func(i, j int) bool {
		return index[i].CapturedAt.After(index[j].CapturedAt)
	})

	if limit > 0 && len(index) > limit {
		index = index[:limit]
	}
	return index, nil
}

// Series loads snapshots for the aggregator. Entries whose data has gone
// missing are skipped.
func (h *SnapshotManager) Series(ctx context.Context, keyword string, limit int) ([]serp.Snapshot, error) {
	index, err := h.Index(ctx, keyword, limit)
	if err != nil {
		return nil, err
	}

	snapshots := make([]serp.Snapshot, 0, len(index))
	for i := len(index) - 1; i >= 0; i-- {
		var snap serp.Snapshot
		if err := h.storage.Load(ctx, index[i].Key, &snap); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				h.log.WithField("key", index[i].Key).Warn("Indexed snapshot is missing")
				continue
			}
			return nil, fmt.Errorf("failed to load snapshot %s: %w", index[i].Key, err)
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots, nil
}

func (h *SnapshotManager) loadIndex(ctx context.Context, keywordKey string) ([]SnapshotMetadata, error) {
	var index []SnapshotMetadata
	if err := h.storage.Load(ctx, indexKey(keywordKey), &index); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return []SnapshotMetadata{}, nil
		}
		return nil, fmt.Errorf("failed to load snapshot index: %w", err)
	}
	return index, nil
}

func (h *SnapshotManager) updateIndex(ctx context.Context, keywordKey string, metadata SnapshotMetadata) error {
	index, err := h.loadIndex(ctx, keywordKey)
	if err != nil {
		return err
	}

	// a snapshot re-saved at the same instant replaces its entry
	filtered := index[:0]
	for _, entry := range index {
		if entry.Key != metadata.Key {
			filtered = append(filtered, entry)
		}
	}
	index = append(filtered, metadata)

	sort.SliceStable(index, func(i, j int) bool {
		return index[i].CapturedAt.Before(index[j].CapturedAt)
	})

	if len(index) > maxIndexSize {
		for _, dropped := range index[:len(index)-maxIndexSize] {
			if err := h.storage.Delete(ctx, dropped.Key); err != nil {
				h.log.WithError(err).WithField("key", dropped.Key).Warn("Failed to delete expired snapshot")
			}
		}
		index = index[len(index)-maxIndexSize:]
	}

	return h.storage.Save(ctx, indexKey(keywordKey), index)
}

func indexKey(keywordKey string) string {
	return "serp_index:" + keywordKey
}

// calculateChecksum fingerprints the ranking so identical SERPs can be spotted
// without loading them
func calculateChecksum(items []serp.SnapshotItem) string {
	pairs := make([]string, 0, len(items))
	for _, item := range items {
		pairs = append(pairs, fmt.Sprintf("%s:%d", item.Domain, item.RankAbsolute))
	}
	sort.Strings(pairs)

	hash := md5.Sum([]byte(strings.Join(pairs, ",")))
	return fmt.Sprintf("%x", hash)
}
