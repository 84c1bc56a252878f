package extract

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const scheduleHTML = `
<html><body>
<div id="pills-tab-studioContent">
  <div class="col-sm text-center">
    <div class="day sticky">ראשון 27/04/2025</div>
    <div class="time box-day">
      <span class="top-title-d"><i class="fas fa-chevron-left rotate"></i>19:30 | 45 דקות</span>
      <h5 class="bottom-details">יוגה ויניאסה</h5>
      <div class="bottom-details">
        <p>מדריך: דנה לוי</p>
        <p>סטודיו 1</p>
      </div>
    </div>
    <div class="time box-day">
      <span class="top-title-d">45 דקות</span>
      <h5 class="bottom-details">ללא שעה</h5>
    </div>
    <div class="time box-day">
      <span class="top-title-d">08:15 | 50 דקות</span>
      <h5 class="bottom-details"></h5>
    </div>
  </div>
  <div class="col-sm text-center">
    <div class="day sticky">שני 28/04/2025</div>
    <div class="time box-day">
      <span class="top-title-d">06:45 | 60 דקות</span>
      <h5 class="bottom-details">פילאטיס מכשירים</h5>
      <div class="bottom-details">
        <p>מדריכה: נועה כהן</p>
      </div>
    </div>
  </div>
</div>
</body></html>`

func TestSchedule(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 4, 27, 10, 0, 0, 0, time.UTC)
	days, err := testParser().Schedule(scheduleHTML, "הולמס פלייס עזריאלי", now)
	require.NoError(t, err)
	require.Len(t, days, 2)

	sunday := days[0]
	require.Equal(t, "ראשון", sunday.Label)
	require.Equal(t, "2025-04-27", sunday.Date)
	require.Len(t, sunday.Entries, 1)
	require.Equal(t, 2, sunday.Skipped, "items without a time or name are dropped")

	yoga := sunday.Entries[0]
	require.Equal(t, "הולמס פלייס עזריאלי", yoga.Club)
	require.Equal(t, "יוגה ויניאסה", yoga.Name)
	require.Equal(t, "19:30", yoga.Time)
	require.Equal(t, "45 דק'", yoga.Duration)
	require.Equal(t, "דנה לוי", yoga.Instructor)
	require.Equal(t, "סטודיו 1", yoga.Location)
	require.Equal(t, "2025-04-27", yoga.Date)
	require.Equal(t, "ראשון", yoga.DayLabel)
	require.Equal(t, now, yoga.ExtractedAt)

	monday := days[1]
	require.Equal(t, "שני", monday.Label)
	require.Len(t, monday.Entries, 1)
	pilates := monday.Entries[0]
	require.Equal(t, "פילאטיס מכשירים", pilates.Name)
	require.Equal(t, "06:45", pilates.Time)
	require.Equal(t, "60 דק'", pilates.Duration)
	require.Equal(t, "נועה כהן", pilates.Instructor, "feminine instructor prefix is stripped too")
	require.Empty(t, pilates.Location)
}

func TestScheduleLegacyMarkup(t *testing.T) {
	t.Parallel()

	legacy := `
<html><body>
<div class="schedule-wrap">
  <div class="col-sm text-center">
    <div class="day sticky">חמישי 01/05/2025</div>
    <div class="time box-day">
      <div class="title">07:00</div>
      <div class="sub-title">אימון פונקציונלי</div>
      <div class="trainer-name">מדריך: יוסי מזרחי</div>
      <div class="location">אולם ספינינג</div>
    </div>
  </div>
</div>
</body></html>`

	days, err := testParser().Schedule(legacy, "הולמס פלייס רעננה", time.Now())
	require.NoError(t, err)
	require.Len(t, days, 1)
	require.Len(t, days[0].Entries, 1)

	entry := days[0].Entries[0]
	require.Equal(t, "אימון פונקציונלי", entry.Name)
	require.Equal(t, "07:00", entry.Time)
	require.Equal(t, "יוסי מזרחי", entry.Instructor)
	require.Equal(t, "אולם ספינינג", entry.Location)
	require.Empty(t, entry.Duration)
}

func TestScheduleDayWithoutDateUsesWeekday(t *testing.T) {
	t.Parallel()

	page := `
<html><body>
<div id="pills-tab-studioContent">
  <div class="col-sm text-center">
    <div class="day sticky">שלישי</div>
    <div class="time box-day">
      <span class="top-title-d">18:00 | 55 דקות</span>
      <h5 class="bottom-details">עיצוב וחיטוב</h5>
    </div>
  </div>
</div>
</body></html>`

	days, err := testParser().Schedule(page, "הולמס פלייס חיפה", time.Now())
	require.NoError(t, err)
	require.Len(t, days, 1)
	require.Equal(t, "שלישי", days[0].Label)
	require.Equal(t, "Tuesday", days[0].Date)
	require.Len(t, days[0].Entries, 1)
}

func TestScheduleColumnWithoutHeaderIgnored(t *testing.T) {
	t.Parallel()

	page := `
<html><body>
<div id="pills-tab-studioContent">
  <div class="col-sm text-center">
    <div class="time box-day">
      <span class="top-title-d">18:00 | 55 דקות</span>
      <h5 class="bottom-details">ריקוד</h5>
    </div>
  </div>
</div>
</body></html>`

	days, err := testParser().Schedule(page, "הולמס פלייס נתניה", time.Now())
	require.NoError(t, err)
	require.Empty(t, days)
}

func TestScheduleContainerMissing(t *testing.T) {
	t.Parallel()

	_, err := testParser().Schedule("<html><body><p>שגיאה</p></body></html>", "הולמס פלייס חיפה", time.Now())
	require.Error(t, err)
	require.Contains(t, err.Error(), "schedule container")
}

func TestSplitTimeDuration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in       string
		time     string
		duration string
	}{
		{"19:30 | 45 דקות", "19:30", "45 דק'"},
		{"06:45|60", "06:45", "60 דק'"},
		{"19:30", "19:30", ""},
		{"45 דקות", "", ""},
		{"", "", ""},
	}
	for _, tc := range tests {
		gotTime, gotDuration := splitTimeDuration(tc.in)
		require.Equal(t, tc.time, gotTime, "time of %q", tc.in)
		require.Equal(t, tc.duration, gotDuration, "duration of %q", tc.in)
	}
}
