package extract

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fitsched/schedule-crawler/internal/crawl"
)

const footerHTML = `
<html><body>
<div class="footer-navigation">
  <div class="footer-h4-desktop">
    <h4>מועדונים</h4>
    <ul>
      <li><a href="/club/azrieli">הולמס פלייס עזריאלי</a></li>
      <li><a href="https://www.holmesplace.co.il/club/raanana">הולמס פלייס רעננה</a></li>
      <li><a href="/club/beer-sheva">גו אקטיב באר שבע</a></li>
      <li><a href="#">הולמס פלייס דיזנגוף</a></li>
      <li><a href="/about">אודות הרשת</a></li>
      <li><a href="/club/empty"></a></li>
    </ul>
  </div>
</div>
</body></html>`

func testParser() *Parser {
	return New(Config{ClubKeywords: []string{"הולמס פלייס", "גו אקטיב"}})
}

func TestClubLinks(t *testing.T) {
	t.Parallel()

	clubs, err := testParser().ClubLinks(footerHTML, "https://www.holmesplace.co.il/")
	require.NoError(t, err)
	require.Equal(t, []crawl.ClubTarget{
		{Name: "הולמס פלייס עזריאלי", URL: "https://www.holmesplace.co.il/club/azrieli"},
		{Name: "הולמס פלייס רעננה", URL: "https://www.holmesplace.co.il/club/raanana"},
		{Name: "גו אקטיב באר שבע", URL: "https://www.holmesplace.co.il/club/beer-sheva"},
	}, clubs)
}

func TestClubLinksWithoutKeywordsKeepsAll(t *testing.T) {
	t.Parallel()

	clubs, err := New(Config{}).ClubLinks(footerHTML, "https://www.holmesplace.co.il/")
	require.NoError(t, err)
	require.Len(t, clubs, 4)
	require.Equal(t, "אודות הרשת", clubs[3].Name)
}

func TestClubLinksEmptyFooter(t *testing.T) {
	t.Parallel()

	clubs, err := testParser().ClubLinks("<html><body></body></html>", "https://www.holmesplace.co.il/")
	require.NoError(t, err)
	require.Empty(t, clubs)
}

func TestScheduleLink(t *testing.T) {
	t.Parallel()

	page := `
<html><body>
<a class="btn-orange" href="/join">הצטרפו עכשיו</a>
<a class="btn-orange" href="/club/azrieli/schedule">למערכת השיעורים המלאה</a>
</body></html>`

	link, err := testParser().ScheduleLink(page, "https://www.holmesplace.co.il/club/azrieli")
	require.NoError(t, err)
	require.Equal(t, "https://www.holmesplace.co.il/club/azrieli/schedule", link)
}

func TestScheduleLinkAbsent(t *testing.T) {
	t.Parallel()

	page := `<html><body><a class="btn-orange" href="/join">הצטרפו עכשיו</a></body></html>`
	link, err := testParser().ScheduleLink(page, "https://www.holmesplace.co.il/club/azrieli")
	require.NoError(t, err)
	require.Empty(t, link)
}

func TestClubFacts(t *testing.T) {
	t.Parallel()

	page := `
<html><body>
<div class="club-details-info contact-info">
  <a href="https://waze.com/ul?q=azrieli"><i class="fas fa-map-marker-alt"></i> דרך מנחם בגין 132, תל אביב</a>
</div>
<div class="club-details-info">
  <h4>שעות פתיחה</h4>
  <p>ראשון-חמישי: 06:00-23:00</p>
  <p>שישי: 06:00-18:00</p>
  <p>שבת: 08:00-18:00</p>
</div>
</body></html>`

	facts := testParser().ClubFacts(page)
	require.Equal(t, "דרך מנחם בגין 132, תל אביב", facts.Address)
	require.Equal(t, map[string]string{
		"ראשון-חמישי": "06:00-23:00",
		"שישי":        "06:00-18:00",
		"שבת":         "08:00-18:00",
	}, facts.OpeningHours)
}

func TestClubFactsUnlabeledHoursLine(t *testing.T) {
	t.Parallel()

	page := `
<html><body>
<div class="club-details-info">
  <h3>שעות פתיחה</h3>
  <p>פתוח בכל ימות השבוע</p>
</div>
</body></html>`

	facts := testParser().ClubFacts(page)
	require.Equal(t, map[string]string{"info_0": "פתוח בכל ימות השבוע"}, facts.OpeningHours)
}

func TestClubFactsMissingSections(t *testing.T) {
	t.Parallel()

	facts := testParser().ClubFacts("<html><body><p>דף ריק</p></body></html>")
	require.Empty(t, facts.Address)
	require.Empty(t, facts.OpeningHours)
}

func TestCleanText(t *testing.T) {
	t.Parallel()

	require.Equal(t, "יוגה ויניאסה", cleanText("  יוגה \n\t ויניאסה  "))
	require.Equal(t, "19:30", cleanText("‫19:30‬"))
	require.Empty(t, cleanText("   \n "))
}
