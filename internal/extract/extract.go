// Package extract turns rendered pages from the club chain's site into
// the engine's domain types. Selectors follow the site's current markup
// with fallbacks for the older layout still served on some club pages.
package extract

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"

	"github.com/fitsched/schedule-crawler/internal/crawl"
)

const (
	// selClubLinks lists the club pages inside the footer navigation.
	selClubLinks = "div.footer-navigation .footer-h4-desktop li a"
	// selScheduleLinks matches the orange call-to-action buttons on a
	// club page. The full-schedule one is told apart by its text.
	selScheduleLinks = "a.btn-orange"
	// selAddressIcon sits inside the waze link whose text is the address.
	selAddressIcon = "div.club-details-info.contact-info a[href*='waze.com'] i.fas.fa-map-marker-alt"
	// selInfoHeadings are the headings of the club details column.
	selInfoHeadings = "div.club-details-info h3, div.club-details-info h4"
)

// scheduleLinkText identifies the full-schedule button.
const scheduleLinkText = "למערכת השיעורים המלאה"

// openingHoursHeading marks the opening hours block on a club page.
const openingHoursHeading = "שעות פתיחה"

var spaceRe = regexp.MustCompile(`\s+`)

// Config parameterizes the parser.
type Config struct {
	// ClubKeywords keeps only footer links whose text contains one of
	// these. Empty means every link passes.
	ClubKeywords []string
}

// Parser implements the engine's HTML-to-data layer with goquery.
type Parser struct {
	keywords []string
}

// New constructs a Parser, dropping blank keywords.
func New(cfg Config) *Parser {
	keywords := make([]string, 0, len(cfg.ClubKeywords))
	for _, kw := range cfg.ClubKeywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		keywords = append(keywords, kw)
	}
	return &Parser{keywords: keywords}
}

// ClubLinks collects the club pages linked from the home page footer,
// resolved against baseURL and filtered by the configured keywords.
func (p *Parser) ClubLinks(html, baseURL string) ([]crawl.ClubTarget, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse home page: %w", err)
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	var clubs []crawl.ClubTarget
	doc.Find(selClubLinks).Each(func(_ int, link *goquery.Selection) {
		href, ok := link.Attr("href")
		name := cleanText(link.Text())
		if !ok || href == "" || href == "#" || name == "" {
			return
		}
		if !p.matchesKeywords(name) {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		clubs = append(clubs, crawl.ClubTarget{
			Name: name,
			URL:  base.ResolveReference(ref).String(),
		})
	})
	return clubs, nil
}

// ScheduleLink finds the full-schedule button on a club page and returns
// its target resolved against pageURL. Empty when the page has none,
// which means the schedule renders inline.
func (p *Parser) ScheduleLink(html, pageURL string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parse club page: %w", err)
	}

	var href string
	doc.Find(selScheduleLinks).EachWithBreak(func(_ int, link *goquery.Selection) bool {
		if !strings.Contains(link.Text(), scheduleLinkText) {
			return true
		}
		if h, ok := link.Attr("href"); ok && h != "" && h != "#" {
			href = h
			return false
		}
		return true
	})
	if href == "" {
		return "", nil
	}

	page, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("parse page url: %w", err)
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("parse schedule link: %w", err)
	}
	return page.ResolveReference(ref).String(), nil
}

// ClubFacts scrapes the address and opening hours off a club page.
// Both are best effort; a page without the details column yields zero
// facts.
func (p *Parser) ClubFacts(html string) crawl.ClubFacts {
	var facts crawl.ClubFacts
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return facts
	}

	// The address is the text of the waze link wrapping the map marker.
	if icon := doc.Find(selAddressIcon).First(); icon.Length() > 0 {
		facts.Address = cleanText(icon.Parent().Text())
	}

	heading := doc.Find(selInfoHeadings).FilterFunction(func(_ int, h *goquery.Selection) bool {
		return strings.Contains(h.Text(), openingHoursHeading)
	}).First()
	if heading.Length() == 0 {
		return facts
	}
	headingNode := heading.Get(0)
	heading.Parent().Children().Each(func(_ int, child *goquery.Selection) {
		if child.Get(0) == headingNode {
			return
		}
		line := cleanText(child.Text())
		if line == "" {
			return
		}
		if facts.OpeningHours == nil {
			facts.OpeningHours = make(map[string]string)
		}
		// Lines read "day: hours". Anything else is kept verbatim under
		// a positional key so no line is silently lost.
		if day, hours, ok := strings.Cut(line, ":"); ok {
			facts.OpeningHours[strings.TrimSpace(day)] = strings.TrimSpace(hours)
			return
		}
		facts.OpeningHours[fmt.Sprintf("info_%d", len(facts.OpeningHours))] = line
	})
	return facts
}

func (p *Parser) matchesKeywords(name string) bool {
	if len(p.keywords) == 0 {
		return true
	}
	for _, kw := range p.keywords {
		if strings.Contains(name, kw) {
			return true
		}
	}
	return false
}

// cleanText collapses runs of whitespace and drops unprintable runes,
// including the BiDi control characters the site sprinkles into Hebrew
// text.
func cleanText(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsPrint(r) || unicode.IsSpace(r) {
			return r
		}
		return -1
	}, s)
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}
