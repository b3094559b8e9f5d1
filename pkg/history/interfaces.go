package history

import (
	"context"
	"errors"
	"time"

	"serp-go/pkg/serp"
)

// ErrNoSnapshots is returned when a keyword has no stored snapshots
var ErrNoSnapshots = errors.New("no snapshots stored for keyword")

// Manager stores SERP snapshots per keyword
type Manager interface {
	// SaveSnapshot stores snap under its keyword and returns its metadata
	SaveSnapshot(ctx context.Context, snap serp.Snapshot) (*SnapshotMetadata, error)

	// Latest returns the most recent snapshot for keyword
	Latest(ctx context.Context, keyword string) (*serp.Snapshot, error)

	// Index returns snapshot metadata, newest first
	Index(ctx context.Context, keyword string, limit int) ([]SnapshotMetadata, error)

	// Series returns up to limit of the newest snapshots, oldest first
	Series(ctx context.Context, keyword string, limit int) ([]serp.Snapshot, error)
}

// SnapshotMetadata describes one stored snapshot
type SnapshotMetadata struct {
	ID         string    `json:"id"`
	Key        string    `json:"key"`
	Keyword    string    `json:"keyword"`
	CapturedAt time.Time `json:"capturedAt"`
	ItemCount  int       `json:"itemCount"`
	Checksum   string    `json:"checksum"`
}
