package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/botfold/chatgate/pkg/chatgate"
)

func testSnapshot() *chatgate.Snapshot {
	return &chatgate.Snapshot{
		Users: map[chatgate.UserID]chatgate.UserRecord{
			"alice": {
				Selection: chatgate.ProviderClaude,
				Usage: map[chatgate.ProviderID]chatgate.UsageState{
					chatgate.ProviderClaude: {Uses: 2},
				},
			},
			"bob": {
				Selection: chatgate.ProviderChatGPT,
				Usage: map[chatgate.ProviderID]chatgate.UsageState{
					chatgate.ProviderChatGPT: {
						Requests:      3,
						Tokens:        4500,
						CooldownUntil: time.Date(2025, 6, 1, 13, 0, 0, 0, time.UTC),
					},
				},
			},
		},
		SavedAt: time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC),
	}
}

func TestStore_LoadBeforeSave(t *testing.T) {
	s := New()
	snap, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, snap, "never-saved store should load nil")
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, testSnapshot()))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, testSnapshot(), got)
}

func TestStore_SaveCopiesInput(t *testing.T) {
	s := New()
	ctx := context.Background()

	snap := testSnapshot()
	require.NoError(t, s.Save(ctx, snap))

	// Mutating the caller's snapshot must not leak into the store.
	snap.Users["alice"] = chatgate.UserRecord{Selection: chatgate.ProviderGrok}

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, chatgate.ProviderClaude, got.Users["alice"].Selection)
}

func TestStore_SaveReplacesPrevious(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, testSnapshot()))
	require.NoError(t, s.Save(ctx, &chatgate.Snapshot{
		Users: map[chatgate.UserID]chatgate.UserRecord{
			"carol": {Selection: chatgate.ProviderGemini},
		},
	}))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, got.Users, 1)
	assert.Contains(t, got.Users, chatgate.UserID("carol"))
}

func TestStore_Clear(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, testSnapshot()))
	s.Clear()

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}
