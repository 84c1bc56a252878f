package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitsched/schedule-crawler/internal/crawl"
)

func TestRecordStoreLatestIsIsolated(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewRecordStore()

	_, found, err := store.Latest(ctx)
	require.NoError(t, err)
	assert.False(t, found)

	rec := crawl.CrawlRecord{
		RunID:      "run-0001",
		CrawledAt:  time.Now(),
		TotalClubs: 1,
		Succeeded:  1,
		Clubs: map[string]crawl.ClubOutcome{
			"club": {Status: crawl.ClubSucceeded, ClassCount: 2},
		},
		Entries: []crawl.ScheduleEntry{{Club: "club", Time: "19:30", Name: "יוגה"}},
	}
	require.NoError(t, store.Append(ctx, rec))

	latest, found, err := store.Latest(ctx)
	require.NoError(t, err)
	require.True(t, found)

	// Mutating the returned copy must not leak back into the store.
	latest.Clubs["club"] = crawl.ClubOutcome{Status: crawl.ClubFailed}
	latest.Entries[0].Name = "changed"

	again, _, err := store.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, crawl.ClubSucceeded, again.Clubs["club"].Status)
	assert.Equal(t, "יוגה", again.Entries[0].Name)
}

func TestRecordStoreAll(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewRecordStore()

	require.NoError(t, store.Append(ctx, crawl.CrawlRecord{RunID: "run-0001"}))
	require.NoError(t, store.Append(ctx, crawl.CrawlRecord{RunID: "run-0002"}))

	all := store.All()
	require.Len(t, all, 2)
	assert.Equal(t, "run-0001", all[0].RunID)
	assert.Equal(t, "run-0002", all[1].RunID)
}

func TestStatusStoreRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewStatusStore()

	_, found, err := store.LoadRunStatus(ctx)
	require.NoError(t, err)
	assert.False(t, found)

	statuses := map[string]crawl.ClubOutcome{
		"a": {Status: crawl.ClubSucceeded, OpeningHours: map[string]string{"ראשון-חמישי": "6:00-23:00"}},
	}
	require.NoError(t, store.SaveRunStatus(ctx, statuses))

	// The store must hold its own copy.
	statuses["a"] = crawl.ClubOutcome{Status: crawl.ClubFailed}

	loaded, found, err := store.LoadRunStatus(ctx)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, crawl.ClubSucceeded, loaded["a"].Status)
	assert.Equal(t, map[string]string{"ראשון-חמישי": "6:00-23:00"}, loaded["a"].OpeningHours)
}

func TestArtifactStoreSaveAndGet(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewArtifactStore()

	ref, err := store.SavePNG(ctx, "error_click.png", []byte{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, "error_click.png", ref)
	assert.Equal(t, 1, store.Len())

	blob, ok := store.Get("error_click.png")
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3}, blob)

	_, ok = store.Get("missing.png")
	assert.False(t, ok)
}
