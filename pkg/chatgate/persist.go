package chatgate

import (
	"context"
	"fmt"
	"time"
)

// Snapshot copies the durable subset of all per-user state: selections and
// usage counters. Sessions never enter the copy; they hold live provider
// handles that cannot be serialized and are rebuilt on demand after restart.
// Each user's lock is held briefly while their record is copied, so a
// snapshot never observes a half-applied update.
func (m *Manager) Snapshot() *Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := &Snapshot{
		Users:   make(map[UserID]UserRecord, len(m.users)),
		SavedAt: m.now(),
	}
	for id, st := range m.users {
		st.mu.Lock()
		rec := UserRecord{Selection: st.selection}
		if len(st.usage) > 0 {
			rec.Usage = make(map[ProviderID]UsageState, len(st.usage))
			for pid, u := range st.usage {
				rec.Usage[pid] = *u
			}
		}
		st.mu.Unlock()

		if rec.Selection == "" && len(rec.Usage) == 0 {
			continue
		}
		snap.Users[id] = rec
	}
	return snap
}

// SaveSnapshot writes the current durable subset to the store.
func (m *Manager) SaveSnapshot(ctx context.Context) error {
	start := time.Now()
	snap := m.Snapshot()
	err := m.store.Save(ctx, snap)
	m.metrics.RecordSnapshot(len(snap.Users), time.Since(start), err)
	if err != nil {
		m.log.Error("snapshot save failed", Field{Key: "error", Value: err.Error()})
		return fmt.Errorf("save snapshot: %w", err)
	}
	m.log.Debug("snapshot saved", Field{Key: "users", Value: len(snap.Users)})
	return nil
}

// restore populates selections and usage counters from the store. Sessions
// start empty for every user regardless of prior state. A load failure is
// loud but not fatal: the manager continues with a fresh empty state.
func (m *Manager) restore(ctx context.Context) {
	snap, err := m.store.Load(ctx)
	if err != nil {
		m.log.Error("snapshot load failed, starting with empty state",
			Field{Key: "error", Value: err.Error()},
		)
		return
	}
	if snap == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for id, rec := range snap.Users {
		st := &userState{
			selection: rec.Selection,
			usage:     make(map[ProviderID]*UsageState, len(rec.Usage)),
			sessions:  make(map[ProviderID]*Session),
		}
		for pid, u := range rec.Usage {
			cp := u
			st.usage[pid] = &cp
		}
		m.users[id] = st
	}
	m.log.Info("state restored",
		Field{Key: "users", Value: len(snap.Users)},
		Field{Key: "saved_at", Value: snap.SavedAt},
	)
}
