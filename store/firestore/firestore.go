// Package firestore provides a Google Cloud Firestore implementation of the
// chatgate.Store interface. Each user record is one document; snapshot
// metadata lives in a fixed meta document.
package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/botfold/chatgate/pkg/chatgate"
)

// Config holds Firestore store configuration
type Config struct {
	// UsersCollection is the Firestore collection for user records
	// Default: "chatgate_users"
	UsersCollection string

	// MetaCollection is the Firestore collection for snapshot metadata
	// Default: "chatgate_meta"
	MetaCollection string
}

// Store implements chatgate.Store using Google Cloud Firestore
type Store struct {
	client          *firestore.Client
	usersCollection string
	metaCollection  string
}

// userDoc is the Firestore document shape for one user record.
type userDoc struct {
	Selection string                   `firestore:"selection"`
	Usage     map[string]usageDoc      `firestore:"usage"`
	UpdatedAt time.Time                `firestore:"updated_at"`
}

type usageDoc struct {
	Uses          int       `firestore:"uses"`
	Requests      int       `firestore:"requests"`
	Tokens        int       `firestore:"tokens"`
	CooldownUntil time.Time `firestore:"cooldown_until"`
}

type metaDoc struct {
	SavedAt time.Time `firestore:"saved_at"`
}

// New creates a new Firestore store adapter
func New(client *firestore.Client, config Config) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("firestore client is required")
	}
	if config.UsersCollection == "" {
		config.UsersCollection = "chatgate_users"
	}
	if config.MetaCollection == "" {
		config.MetaCollection = "chatgate_meta"
	}
	return &Store{
		client:          client,
		usersCollection: config.UsersCollection,
		metaCollection:  config.MetaCollection,
	}, nil
}

// Load implements chatgate.Store.
func (s *Store) Load(ctx context.Context) (*chatgate.Snapshot, error) {
	metaSnap, err := s.client.Collection(s.metaCollection).Doc("snapshot").Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, nil // Never saved is not an error
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot meta: %w", err)
	}

	var meta metaDoc
	if err := metaSnap.DataTo(&meta); err != nil {
		return nil, fmt.Errorf("decode snapshot meta: %w", err)
	}

	snap := &chatgate.Snapshot{
		Users:   make(map[chatgate.UserID]chatgate.UserRecord),
		SavedAt: meta.SavedAt,
	}

	iter := s.client.Collection(s.usersCollection).Documents(ctx)
	defer iter.Stop()
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterate users: %w", err)
		}

		var ud userDoc
		if err := doc.DataTo(&ud); err != nil {
			return nil, fmt.Errorf("decode user %s: %w", doc.Ref.ID, err)
		}

		rec := chatgate.UserRecord{Selection: chatgate.ProviderID(ud.Selection)}
		if len(ud.Usage) > 0 {
			rec.Usage = make(map[chatgate.ProviderID]chatgate.UsageState, len(ud.Usage))
			for pid, u := range ud.Usage {
				rec.Usage[chatgate.ProviderID(pid)] = chatgate.UsageState{
					Uses:          u.Uses,
					Requests:      u.Requests,
					Tokens:        u.Tokens,
					CooldownUntil: u.CooldownUntil,
				}
			}
		}
		snap.Users[chatgate.UserID(doc.Ref.ID)] = rec
	}

	return snap, nil
}

// Save implements chatgate.Store. Existing documents not present in the new
// snapshot are removed so the collection mirrors the durable subset exactly.
func (s *Store) Save(ctx context.Context, snap *chatgate.Snapshot) error {
	now := time.Now().UTC()
	bw := s.client.BulkWriter(ctx)

	// Collect existing doc IDs so stale users can be deleted.
	existing := make(map[string]bool)
	iter := s.client.Collection(s.usersCollection).Documents(ctx)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			iter.Stop()
			return fmt.Errorf("list existing users: %w", err)
		}
		existing[doc.Ref.ID] = true
	}
	iter.Stop()

	for userID, rec := range snap.Users {
		ud := userDoc{
			Selection: string(rec.Selection),
			UpdatedAt: now,
		}
		if len(rec.Usage) > 0 {
			ud.Usage = make(map[string]usageDoc, len(rec.Usage))
			for pid, u := range rec.Usage {
				ud.Usage[string(pid)] = usageDoc{
					Uses:          u.Uses,
					Requests:      u.Requests,
					Tokens:        u.Tokens,
					CooldownUntil: u.CooldownUntil,
				}
			}
		}
		ref := s.client.Collection(s.usersCollection).Doc(string(userID))
		if _, err := bw.Set(ref, ud); err != nil {
			return fmt.Errorf("queue user %s: %w", userID, err)
		}
		delete(existing, string(userID))
	}

	for staleID := range existing {
		ref := s.client.Collection(s.usersCollection).Doc(staleID)
		if _, err := bw.Delete(ref); err != nil {
			return fmt.Errorf("queue delete %s: %w", staleID, err)
		}
	}

	savedAt := snap.SavedAt
	if savedAt.IsZero() {
		savedAt = now
	}
	metaRef := s.client.Collection(s.metaCollection).Doc("snapshot")
	if _, err := bw.Set(metaRef, metaDoc{SavedAt: savedAt}); err != nil {
		return fmt.Errorf("queue snapshot meta: %w", err)
	}

	bw.End()
	return nil
}
