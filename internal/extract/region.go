package extract

import (
	"sort"
	"strings"
)

// UnknownRegion is assigned to clubs matching no region keyword.
const UnknownRegion = "לא ידוע"

// regionTable maps city keywords inside a club name onto its region.
// Scanned in order so a name matching twice resolves the same way every
// run.
var regionTable = []struct {
	region   string
	keywords []string
}{
	{"צפון", []string{"קריון", "גרנד קניון", "חיפה", "קיסריה"}},
	{"שרון", []string{"רעננה", "כפר סבא", "נתניה", "הוד השרון"}},
	{"מרכז", []string{"תל אביב", "פתח תקווה", "רמת גן", "גבעתיים", "ראש העין", "עזריאלי", "דיזנגוף", "גבעת שמואל", "ראשון לציון"}},
	{"שפלה", []string{"נס ציונה", "רחובות"}},
	{"ירושלים והסביבה", []string{"ירושלים", "מבשרת ציון", "מודיעין"}},
	{"דרום", []string{"אשדוד", "באר שבע", "אשקלון"}},
}

// regionRank orders regions center-outward for display.
var regionRank = map[string]int{
	"מרכז":            1,
	"שרון":            2,
	"שפלה":            3,
	"ירושלים והסביבה": 4,
	"דרום":            5,
	"צפון":            6,
	UnknownRegion:     7,
}

// Region determines the geographic region of a club from its name.
func Region(clubName string) string {
	if clubName == "" {
		return UnknownRegion
	}
	for _, row := range regionTable {
		for _, kw := range row.keywords {
			if strings.Contains(clubName, kw) {
				return row.region
			}
		}
	}
	return UnknownRegion
}

// SortRegions orders region names center-outward, unknown last.
func SortRegions(regions []string) {
	sort.SliceStable(regions, func(i, j int) bool {
		return rankOf(regions[i]) < rankOf(regions[j])
	})
}

func rankOf(region string) int {
	if rank, ok := regionRank[region]; ok {
		return rank
	}
	return len(regionRank) + 1
}
