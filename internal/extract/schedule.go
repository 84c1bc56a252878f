package extract

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/fitsched/schedule-crawler/internal/crawl"
)

const (
	// selScheduleContainer holds the rendered schedule. The id variant
	// is the current markup; schedule-wrap is the older layout.
	selScheduleContainer = "#pills-tab-studioContent"
	selScheduleFallback  = "div.schedule-wrap"

	// selDayColumn groups the class items of one day.
	selDayColumn = "div.col-sm.text-center"
	// selDayHeader is the sticky header naming the day.
	selDayHeader = "div.day.sticky"
	// selClassItem is a single class cell within a day column.
	selClassItem = "div.time.box-day"

	// Per-item selectors, current markup first, older layout second.
	selClassName         = "h5.bottom-details"
	selClassNameFallback = "div.sub-title"
	selTimeDuration      = "span.top-title-d"
	selTimeFallback      = "div.title"
	selDetailParagraphs  = "div.bottom-details p"
	selTrainerFallback   = "div.trainer-name"
	selLocationFallback  = "div.location"
)

// instructorPrefixRe strips the leading "מדריך:" / "מדריכה:" off an
// instructor line, and doubles as the detector for such lines.
var instructorPrefixRe = regexp.MustCompile(`^מדריכ[ה]?\s*:?\s*`)

// digitsRe pulls the minute count out of a duration fragment.
var digitsRe = regexp.MustCompile(`\d+`)

// Schedule parses a rendered schedule page into per-day groupings of
// normalized entries for club. Items missing a start time or a class
// name are counted as skipped rather than kept. An empty result is not
// an error; judging it is the caller's business.
func (p *Parser) Schedule(html, club string, now time.Time) ([]crawl.DaySchedule, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse schedule page: %w", err)
	}

	container := doc.Find(selScheduleContainer).First()
	if container.Length() == 0 {
		container = doc.Find(selScheduleFallback).First()
	}
	if container.Length() == 0 {
		return nil, fmt.Errorf("schedule container not found")
	}

	var days []crawl.DaySchedule
	container.Find(selDayColumn).Each(func(_ int, column *goquery.Selection) {
		header := column.Find(selDayHeader).First()
		if header.Length() == 0 {
			return
		}
		label, date := parseDayHeader(header.Text())

		day := crawl.DaySchedule{Label: label, Date: date}
		column.Find(selClassItem).Each(func(_ int, item *goquery.Selection) {
			entry := p.classEntry(item, club, label, date, now)
			if !entry.Valid() {
				day.Skipped++
				return
			}
			day.Entries = append(day.Entries, entry)
		})
		days = append(days, day)
	})
	return days, nil
}

func (p *Parser) classEntry(item *goquery.Selection, club, label, date string, now time.Time) crawl.ScheduleEntry {
	entry := crawl.ScheduleEntry{
		Club:        club,
		Date:        date,
		DayLabel:    label,
		ExtractedAt: now,
	}

	entry.Name = cleanText(item.Find(selClassName).First().Text())
	if entry.Name == "" {
		entry.Name = cleanText(item.Find(selClassNameFallback).First().Text())
	}

	entry.Time, entry.Duration = splitTimeDuration(item.Find(selTimeDuration).First().Text())
	if entry.Time == "" {
		entry.Time = timeOnly(item.Find(selTimeFallback).First().Text())
	}

	entry.Instructor, entry.Location = detailLines(item)
	return entry
}

// splitTimeDuration takes the "19:30 | 45 דקות" cell apart. The left
// side must carry a clock time; the right side reduces to its digits.
func splitTimeDuration(text string) (clockTime, duration string) {
	parts := strings.SplitN(text, "|", 2)
	clockTime = timeOnly(parts[0])
	if len(parts) > 1 {
		if digits := digitsRe.FindString(parts[1]); digits != "" {
			duration = digits + " דק'"
		}
	}
	return clockTime, duration
}

func timeOnly(text string) string {
	text = cleanText(text)
	if strings.Contains(text, ":") {
		return text
	}
	return ""
}

// detailLines reads the paragraphs under a class item. A line carrying
// the instructor prefix names the instructor; the first other line is
// the location. Older markup uses dedicated elements instead.
func detailLines(item *goquery.Selection) (instructor, location string) {
	item.Find(selDetailParagraphs).Each(func(_ int, para *goquery.Selection) {
		text := cleanText(para.Text())
		if text == "" {
			return
		}
		if instructorPrefixRe.MatchString(text) {
			if instructor == "" {
				instructor = cleanText(instructorPrefixRe.ReplaceAllString(text, ""))
			}
			return
		}
		if location == "" {
			location = text
		}
	})

	if instructor == "" {
		text := cleanText(item.Find(selTrainerFallback).First().Text())
		instructor = cleanText(instructorPrefixRe.ReplaceAllString(text, ""))
	}
	if location == "" {
		location = cleanText(item.Find(selLocationFallback).First().Text())
	}
	return instructor, location
}
