package expiry

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

type patternKind int

const (
	numericDate patternKind = iota
	isoDate
	monthDayYear
	dayMonthYear
	compactDate
)

const monthNames = `(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)`

// datePatterns are tried in order against lowercase text. The numeric pattern must not
// start inside a longer run of digits, or it would match the tail of an ISO date.
var datePatterns = []struct {
	kind patternKind
	re   *regexp.Regexp
}{
	{numericDate, regexp.MustCompile(`(?:^|\D)(\d{1,2})[/-](\d{1,2})[/-](\d{2,4})`)},
	{isoDate, regexp.MustCompile(`(\d{4})[/-](\d{1,2})[/-](\d{1,2})`)},
	{monthDayYear, regexp.MustCompile(monthNames + `[a-z]*\s+(\d{1,2})[,\s]+(\d{4})`)},
	{dayMonthYear, regexp.MustCompile(`(\d{1,2})\s+` + monthNames + `[a-z]*[,\s]+(\d{4})`)},
	{compactDate, regexp.MustCompile(`(\d{2})` + monthNames + `(\d{2})`)},
}

var months = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March, "apr": time.April,
	"may": time.May, "jun": time.June, "jul": time.July, "aug": time.August,
	"sep": time.September, "oct": time.October, "nov": time.November, "dec": time.December,
}

var expiryKeywords = []string{"exp", "best", "use", "sell", "by"}

const keywordWindow = 20

// Candidate is a future date found in label text
type Candidate struct {
	Date time.Time
	Text string

	// NearKeyword is set when an expiry keyword appears close to the match.
	// It does not affect which candidate is chosen.
	NearKeyword bool
}

// FindExpirationDate returns the first valid future date in texts
func FindExpirationDate(texts []string) (time.Time, bool) {
	return FindExpirationDateAt(texts, time.Now())
}

// FindExpirationDateAt is FindExpirationDate with an explicit current time.
// Patterns are tried in order and each pattern's matches left to right; the first
// match that is a real calendar date after now wins.
func FindExpirationDateAt(texts []string, now time.Time) (time.Time, bool) {
	candidates := findCandidates(strings.Join(texts, " "), now, 1)
	if len(candidates) == 0 {
		return time.Time{}, false
	}
	return candidates[0].Date, true
}

// FindCandidates returns every valid future date in text, in the order they would be chosen
func FindCandidates(text string, now time.Time) []Candidate {
	return findCandidates(text, now, -1)
}

func findCandidates(text string, now time.Time, limit int) []Candidate {
	text = strings.ToLower(text)
	var candidates []Candidate

	for _, pattern := range datePatterns {
		for _, m := range pattern.re.FindAllStringSubmatchIndex(text, -1) {
			groups := []string{text[m[2]:m[3]], text[m[4]:m[5]], text[m[6]:m[7]]}

			date, ok := parseMatch(pattern.kind, groups, now.Location())
			if !ok || !date.After(now) {
				continue
			}

			// the match may include one leading non-digit; the first group starts the date
			candidates = append(candidates, Candidate{
				Date:        date,
				Text:        text[m[2]:m[1]],
				NearKeyword: nearKeyword(text, m[2]),
			})
			if limit > 0 && len(candidates) >= limit {
				return candidates
			}
		}
	}
	return candidates
}

func nearKeyword(text string, pos int) bool {
	window := text[max(pos-keywordWindow, 0):min(pos+keywordWindow, len(text))]
	for _, keyword := range expiryKeywords {
		if strings.Contains(window, keyword) {
			return true
		}
	}
	return false
}

func parseMatch(kind patternKind, groups []string, loc *time.Location) (time.Time, bool) {
	switch kind {
	case monthDayYear:
		day, _ := strconv.Atoi(groups[1])
		year, _ := strconv.Atoi(groups[2])
		return namedMonthDate(year, groups[0], day, loc)
	case dayMonthYear, compactDate:
		day, _ := strconv.Atoi(groups[0])
		year, _ := strconv.Atoi(groups[2])
		return namedMonthDate(year, groups[1], day, loc)
	default:
		a, _ := strconv.Atoi(groups[0])
		b, _ := strconv.Atoi(groups[1])
		c, _ := strconv.Atoi(groups[2])
		return numericMatchDate(a, b, c, loc)
	}
}

func namedMonthDate(year int, month string, day int, loc *time.Location) (time.Time, bool) {
	if year < 100 {
		year += 2000
	}
	return calendarDate(year, int(months[month[:3]]), day, loc)
}

// numericMatchDate reads three numbers as a date. A four-digit first value is a year
// (YYYY-MM-DD); otherwise the year is last and month-then-day is tried before day-then-month.
func numericMatchDate(a, b, c int, loc *time.Location) (time.Time, bool) {
	var year, month, day int
	switch {
	case a > 1000:
		year, month, day = a, b, c
	case c < 100:
		year, month, day = c+2000, a, b
	default:
		year, month, day = c, a, b
	}

	if !inRange(month, 12) || !inRange(day, 31) {
		if !inRange(day, 12) || !inRange(month, 31) {
			return time.Time{}, false
		}
		month, day = day, month
	}
	return calendarDate(year, month, day, loc)
}

func inRange(v, upper int) bool {
	return v >= 1 && v <= upper
}

// calendarDate rejects dates that time.Date would normalize, such as February 30
func calendarDate(year, month, day int, loc *time.Location) (time.Time, bool) {
	if !inRange(month, 12) {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
	if t.Day() != day || int(t.Month()) != month || t.Year() != year {
		return time.Time{}, false
	}
	return t, true
}
