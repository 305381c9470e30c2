// Package cache provides the injected snapshot store that mirrors the active
// report list for display, plus per-viewer state (last-notification-read
// marks). The persistence mechanism is swappable: a Redis-backed store for
// deployments and an in-memory store for tests and single-node setups.
package cache

import (
	"context"
	"time"

	"barangay-portal/models"
)

// Snapshot is the denormalized copy of the active report list, newest first.
// Writers replace it wholesale; readers never see a partial update.
type Snapshot struct {
	Reports   []models.Report `json:"reports"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Store is the snapshot store contract. GetSnapshot returns (nil, nil) when
// no snapshot has been published yet; LastRead returns the zero time when the
// viewer has never marked notifications read.
type Store interface {
	GetSnapshot(ctx context.Context) (*Snapshot, error)
	SetSnapshot(ctx context.Context, snap *Snapshot) error
	LastRead(ctx context.Context, viewerID string) (time.Time, error)
	SetLastRead(ctx context.Context, viewerID string, t time.Time) error
	// Subscribe invokes fn for every snapshot publish until ctx is done.
	Subscribe(ctx context.Context, fn func(*Snapshot)) error
	Close() error
}
