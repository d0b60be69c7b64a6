package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/botfold/chatgate/pkg/chatgate"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "chatgate.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_EmptyPath(t *testing.T) {
	_, err := Open("")
	assert.Error(t, err)
}

func TestStore_LoadBeforeSave(t *testing.T) {
	s := openTestStore(t)
	snap, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	savedAt := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	in := &chatgate.Snapshot{
		Users: map[chatgate.UserID]chatgate.UserRecord{
			"alice": {
				Selection: chatgate.ProviderClaude,
				Usage: map[chatgate.ProviderID]chatgate.UsageState{
					chatgate.ProviderClaude: {Uses: 2},
					chatgate.ProviderChatGPT: {
						Requests:      3,
						Tokens:        4500,
						CooldownUntil: time.Date(2025, 6, 1, 13, 0, 0, 0, time.UTC),
					},
				},
			},
			"bob": {Selection: chatgate.ProviderGemini},
		},
		SavedAt: savedAt,
	}
	require.NoError(t, s.Save(ctx, in))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.SavedAt.Equal(savedAt), "SavedAt should round-trip")
	require.Len(t, got.Users, 2)

	alice := got.Users["alice"]
	assert.Equal(t, chatgate.ProviderClaude, alice.Selection)
	assert.Equal(t, 2, alice.Usage[chatgate.ProviderClaude].Uses)
	gpt := alice.Usage[chatgate.ProviderChatGPT]
	assert.Equal(t, 3, gpt.Requests)
	assert.Equal(t, 4500, gpt.Tokens)
	assert.True(t, gpt.CooldownUntil.Equal(time.Date(2025, 6, 1, 13, 0, 0, 0, time.UTC)))

	bob := got.Users["bob"]
	assert.Equal(t, chatgate.ProviderGemini, bob.Selection)
	assert.Empty(t, bob.Usage)
}

func TestStore_SaveReplacesPrevious(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, &chatgate.Snapshot{
		Users: map[chatgate.UserID]chatgate.UserRecord{
			"alice": {Selection: chatgate.ProviderClaude},
			"bob":   {Selection: chatgate.ProviderGemini},
		},
	}))
	require.NoError(t, s.Save(ctx, &chatgate.Snapshot{
		Users: map[chatgate.UserID]chatgate.UserRecord{
			"carol": {Selection: chatgate.ProviderGrok},
		},
	}))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, got.Users, 1)
	assert.Contains(t, got.Users, chatgate.UserID("carol"))
}

func TestStore_SaveEmptySnapshot(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, &chatgate.Snapshot{Users: map[chatgate.UserID]chatgate.UserRecord{}}))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, got, "an empty save still counts as a snapshot")
	assert.Empty(t, got.Users)
}

func TestStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chatgate.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, &chatgate.Snapshot{
		Users: map[chatgate.UserID]chatgate.UserRecord{
			"alice": {Selection: chatgate.ProviderDeepSeek},
		},
	}))
	require.NoError(t, s.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	got, err := s2.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, chatgate.ProviderDeepSeek, got.Users["alice"].Selection)
}
