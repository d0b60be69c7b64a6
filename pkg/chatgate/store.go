package chatgate

import (
	"context"
	"time"
)

// Store defines the interface for durable persistence of the snapshot.
// The encoding of the snapshot is owned by each store implementation and is
// not a compatibility surface.
type Store interface {
	// Load retrieves the last saved snapshot.
	// Returns nil, nil when no snapshot has been saved yet.
	Load(ctx context.Context) (*Snapshot, error)

	// Save persists the snapshot, replacing any previous one.
	Save(ctx context.Context, snap *Snapshot) error
}

// Snapshot is the durable subset of all per-user state: provider selections
// and usage counters. Session state is deliberately absent from this type;
// sessions hold live API handles that cannot survive a restart and are
// reconstructed on demand, losing conversational continuity.
type Snapshot struct {
	Users   map[UserID]UserRecord `json:"users"`
	SavedAt time.Time             `json:"saved_at"`
}

// UserRecord is the durable state for one user.
type UserRecord struct {
	// Selection is the user's active provider, empty if none
	Selection ProviderID `json:"selection,omitempty"`

	// Usage maps providers to this user's counters
	Usage map[ProviderID]UsageState `json:"usage,omitempty"`
}
