// Package memory provides an in-memory implementation of the chatgate.Store
// interface. This implementation is primarily intended for testing and
// development; a restart loses all durable state.
package memory

import (
	"context"
	"sync"

	"github.com/botfold/chatgate/pkg/chatgate"
)

// Store implements chatgate.Store by keeping the last snapshot in memory.
type Store struct {
	mu   sync.RWMutex
	snap *chatgate.Snapshot
}

// New creates a new in-memory store adapter.
func New() *Store {
	return &Store{}
}

// Load implements chatgate.Store.
func (s *Store) Load(ctx context.Context) (*chatgate.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.snap == nil {
		return nil, nil // Never saved is not an error
	}
	return copySnapshot(s.snap), nil
}

// Save implements chatgate.Store.
func (s *Store) Save(ctx context.Context, snap *chatgate.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Store a copy to prevent external mutations
	s.snap = copySnapshot(snap)
	return nil
}

// Clear removes the stored snapshot (useful for testing).
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = nil
}

func copySnapshot(snap *chatgate.Snapshot) *chatgate.Snapshot {
	cp := &chatgate.Snapshot{
		Users:   make(map[chatgate.UserID]chatgate.UserRecord, len(snap.Users)),
		SavedAt: snap.SavedAt,
	}
	for id, rec := range snap.Users {
		recCp := chatgate.UserRecord{Selection: rec.Selection}
		if len(rec.Usage) > 0 {
			recCp.Usage = make(map[chatgate.ProviderID]chatgate.UsageState, len(rec.Usage))
			for pid, u := range rec.Usage {
				recCp.Usage[pid] = u
			}
		}
		cp.Users[id] = recCp
	}
	return cp
}
