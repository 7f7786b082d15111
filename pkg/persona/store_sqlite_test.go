package persona

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, logCap int) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	store, err := NewSQLiteStore(filepath.Join(dir, "state", "questmind.db"), logCap)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_ProfileRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, 0)

	_, found, err := store.GetProfile(ctx, "u1")
	require.NoError(t, err)
	require.False(t, found, "unseen user must not be found")

	profile := defaultUserProfile("u1")
	profile.Traits[TraitBold] = 3
	profile.Topics.Interests["space"] = 0.4
	require.NoError(t, store.UpsertProfile(ctx, profile))

	loaded, found, err := store.GetProfile(ctx, "u1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, 3, loaded.Traits[TraitBold])
	require.InDelta(t, 0.4, loaded.Topics.Interests["space"], 1e-9)
}

func TestSQLiteStore_InteractionLogTrimsToCap(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, 5)

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 8; i++ {
		err := store.AppendInteraction(ctx, Interaction{
			ID:          fmt.Sprintf("int-%d", i),
			UserID:      "u1",
			Timestamp:   base.Add(time.Duration(i) * time.Second),
			UserMessage: fmt.Sprintf("message %d", i),
		})
		require.NoError(t, err)
	}

	count, err := store.InteractionCount(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, 5, count)

	recent, err := store.RecentInteractions(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, recent, 5)
	require.Equal(t, "int-3", recent[0].ID, "oldest excess entries must be dropped")
	require.Equal(t, "int-7", recent[4].ID)
}

func TestSQLiteStore_RecentUnknownUserEmpty(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, 0)

	recent, err := store.RecentInteractions(ctx, "nobody", 10)
	require.NoError(t, err)
	require.Empty(t, recent)
}

func TestSQLiteStore_MetadataSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "state", "questmind.db")

	store, err := NewSQLiteStore(path, 0)
	require.NoError(t, err)

	err = store.AppendInteraction(ctx, Interaction{
		ID:          "int-1",
		UserID:      "u1",
		UserMessage: "tell me about stars",
		Metadata: InteractionMetadata{
			EmotionalState: &EmotionalState{Emotion: "curious", Confidence: 0.8},
			TopicsDetected: []string{"space"},
			SessionID:      "sess-1",
		},
	})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store2, err := NewSQLiteStore(path, 0)
	require.NoError(t, err)
	defer store2.Close()

	recent, err := store2.RecentInteractions(ctx, "u1", 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	require.NotNil(t, recent[0].Metadata.EmotionalState)
	require.Equal(t, "curious", recent[0].Metadata.EmotionalState.Emotion)
	require.Equal(t, []string{"space"}, recent[0].Metadata.TopicsDetected)
	require.Equal(t, "sess-1", recent[0].Metadata.SessionID)
}
