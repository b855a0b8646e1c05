package perdis

import (
	"bytes"
	"fmt"
	"perdisweb-backend/lib/htmlutil"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Both scrape entry points are pure functions of their HTML input so
// they can be pinned down with recorded fixture pages. All network
// traffic lives in Client.

// The dotted pattern tolerates a non-digit prefix because the portal
// renders date cells as "Sa 03.01.2026". Nothing may follow the year:
// a cell with trailing text (range banners, stray digits) is
// decorative, not a date.
var dottedDate = regexp.MustCompile(`^\D*(\d{1,2})\.(\d{1,2})\.(\d{4})$`)
var isoDate = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})$`)

// ParseDate canonicalizes a roster date cell to YYYY-MM-DD. German
// DD.MM.YYYY is tried first, then ISO. Anything else (decorative rows,
// footers) reports false.
func ParseDate(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if m := dottedDate.FindStringSubmatch(s); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		if !plausibleDayMonth(day, month) {
			return "", false
		}
		return fmt.Sprintf("%s-%02d-%02d", m[3], month, day), true
	}
	if m := isoDate.FindStringSubmatch(s); m != nil {
		day, _ := strconv.Atoi(m[3])
		month, _ := strconv.Atoi(m[2])
		if !plausibleDayMonth(day, month) {
			return "", false
		}
		return m[1] + "-" + m[2] + "-" + m[3], true
	}
	return "", false
}

func plausibleDayMonth(day, month int) bool {
	return day >= 1 && day <= 31 && month >= 1 && month <= 12
}

var clockTime = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)

// normalizeClock pads a cell like "6:30" to strict 24h "06:30".
// Cells that aren't a clock time degrade to the Unknown sentinel,
// never to a fabricated value.
func normalizeClock(s string) string {
	m := clockTime.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return Unknown
	}
	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	if hour > 23 || minute > 59 {
		return Unknown
	}
	return fmt.Sprintf("%02d:%02d", hour, minute)
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return Unknown
	}
	return strings.TrimSpace(s)
}

// ParseListing extracts the multi-day roster out of the listing page.
// A table row is data iff it has at least 5 cells, a non-empty first
// cell that is not the "Datum" header, and a parseable date. Fixed
// cell order is part of the reconstructed wire contract:
// [date, line, start, end, location]. Rows failing the date parse are
// decorative and silently dropped. Trip order within a day follows row
// encounter order.
func ParseListing(html []byte) (Roster, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, err
	}

	roster := Roster{}
	for _, cells := range htmlutil.TableRows(doc) {
		if len(cells) < 5 {
			continue
		}
		first := cells[0]
		if first == "" || strings.Contains(strings.ToLower(first), "datum") {
			continue
		}
		date, ok := ParseDate(first)
		if !ok {
			continue
		}

		roster[date] = append(roster[date], Trip{
			Line:     orUnknown(cells[1]),
			Start:    normalizeClock(cells[2]),
			End:      normalizeClock(cells[3]),
			Location: orUnknown(cells[4]),
		})
	}
	return roster, nil
}

var timeSpan = regexp.MustCompile(`(\d{1,2}:\d{2})\s*-\s*(\d{1,2}:\d{2})`)
var lineLabel = regexp.MustCompile(`(?i)linie\D{0,20}?(\d+)`)

// ParseShiftDetail extracts a single trip from the one-day detail
// page. The page shape varies between installations, so this matches
// patterns in the flattened text rather than table structure: the
// first "HH:MM - HH:MM" span and the first integer after the "Linie"
// label. A malformed page degrades to sentinels instead of failing the
// whole roster fetch.
func ParseShiftDetail(html []byte) (Trip, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return Trip{}, err
	}

	text := htmlutil.FlatText(doc)

	trip := Trip{Line: Unknown, Start: Unknown, End: Unknown, Location: Unknown}
	if m := timeSpan.FindStringSubmatch(text); m != nil {
		trip.Start = normalizeClock(m[1])
		trip.End = normalizeClock(m[2])
	}
	if m := lineLabel.FindStringSubmatch(text); m != nil {
		trip.Line = m[1]
	}
	return trip, nil
}

// Empty reports whether the detail scrape got nothing out of the page.
func (t Trip) Empty() bool {
	return t.Line == Unknown && t.Start == Unknown && t.End == Unknown && t.Location == Unknown
}
