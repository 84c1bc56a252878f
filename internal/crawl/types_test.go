package crawl

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestScheduleEntryValid(t *testing.T) {
	t.Parallel()

	base := ScheduleEntry{Club: "alpha", Time: "08:00", Name: "yoga"}
	require.True(t, base.Valid())

	noTime := base
	noTime.Time = ""
	require.False(t, noTime.Valid())

	noName := base
	noName.Name = ""
	require.False(t, noName.Valid())

	// Instructor and duration are optional.
	bare := ScheduleEntry{Time: "19:30", Name: "pilates"}
	require.True(t, bare.Valid())
}

func TestCrawlRecordValidate(t *testing.T) {
	t.Parallel()

	good := CrawlRecord{
		RunID:      "run-1",
		CrawledAt:  time.Date(2025, 4, 27, 10, 0, 0, 0, time.UTC),
		TotalClubs: 3,
		Succeeded:  2,
		Failed:     1,
	}
	require.NoError(t, good.Validate())

	tests := []struct {
		name    string
		mutate  func(*CrawlRecord)
		wantErr string
	}{
		{
			name:    "missing run id",
			mutate:  func(r *CrawlRecord) { r.RunID = "" },
			wantErr: "run id",
		},
		{
			name:    "missing timestamp",
			mutate:  func(r *CrawlRecord) { r.CrawledAt = time.Time{} },
			wantErr: "timestamp",
		},
		{
			name:    "tally mismatch",
			mutate:  func(r *CrawlRecord) { r.Failed = 2 },
			wantErr: "tally mismatch",
		},
		{
			name: "no successes",
			mutate: func(r *CrawlRecord) {
				r.Succeeded = 0
				r.Failed = 3
			},
			wantErr: "at least one successful club",
		},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			rec := good
			tc.mutate(&rec)
			err := rec.Validate()
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestClubSourceConstructors(t *testing.T) {
	t.Parallel()

	require.Equal(t, SourceDiscovered, Discovered().Mode)
	require.Empty(t, Discovered().Clubs)

	clubs := []ClubTarget{{Name: "alpha", URL: "https://clubs.example/club/alpha"}}
	src := ExplicitList(clubs)
	require.Equal(t, SourceExplicit, src.Mode)
	require.Equal(t, clubs, src.Clubs)
}
