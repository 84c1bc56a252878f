package extract

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		club   string
		region string
	}{
		{"הולמס פלייס עזריאלי", "מרכז"},
		{"הולמס פלייס תל אביב", "מרכז"},
		{"הולמס פלייס רעננה", "שרון"},
		{"גו אקטיב כפר סבא", "שרון"},
		{"הולמס פלייס רחובות", "שפלה"},
		{"הולמס פלייס ראשון לציון", "מרכז"},
		{"הולמס פלייס ירושלים", "ירושלים והסביבה"},
		{"הולמס פלייס מבשרת ציון", "ירושלים והסביבה"},
		{"גו אקטיב באר שבע", "דרום"},
		{"הולמס פלייס גרנד קניון", "צפון"},
		{"הולמס פלייס קיסריה", "צפון"},
		{"מועדון חדש", UnknownRegion},
		{"", UnknownRegion},
	}
	for _, tc := range tests {
		require.Equal(t, tc.region, Region(tc.club), "region of %q", tc.club)
	}
}

func TestSortRegions(t *testing.T) {
	t.Parallel()

	regions := []string{"צפון", UnknownRegion, "מרכז", "דרום", "שרון", "ירושלים והסביבה", "שפלה"}
	SortRegions(regions)
	require.Equal(t, []string{"מרכז", "שרון", "שפלה", "ירושלים והסביבה", "דרום", "צפון", UnknownRegion}, regions)
}

func TestSortRegionsUnlistedLast(t *testing.T) {
	t.Parallel()

	regions := []string{"אחר", "מרכז"}
	SortRegions(regions)
	require.Equal(t, []string{"מרכז", "אחר"}, regions)
}
