package scraper

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

var reRelative = regexp.MustCompile(`(?i)^(\d+)\s*(m|min|mins|minutes?|мин\.?|минут[уы]?|h|hr|hours?|ч\.?|час(?:а|ов)?|d|days?|дн\.?|дн(?:я|ей)|день)(?:$|[\s.,])`)

var months = strings.NewReplacer(
	"января", "January", "февраля", "February", "марта", "March",
	"апреля", "April", "мая", "May", "июня", "June", "июля", "July",
	"августа", "August", "сентября", "September", "октября", "October",
	"ноября", "November", "декабря", "December",
)

// parsePublished understands absolute dates in most layouts plus the
// relative forms news cards use ("2h", "5 мин. назад", "3 дня назад").
// Clock-only labels ("14:05") are taken as today. Unknown text yields zero time.
func parsePublished(s string, now time.Time) time.Time {
	s = strings.TrimSpace(strings.ToLower(s))
	s = strings.TrimPrefix(s, "·")
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}

	if m := reRelative.FindStringSubmatch(s); m != nil {
		n, _ := strconv.Atoi(m[1])
		unit := m[2]
		switch {
		case strings.HasPrefix(unit, "m"), strings.HasPrefix(unit, "мин"):
			return now.Add(-time.Duration(n) * time.Minute)
		case strings.HasPrefix(unit, "h"), strings.HasPrefix(unit, "ч"):
			return now.Add(-time.Duration(n) * time.Hour)
		default:
			return now.AddDate(0, 0, -n)
		}
	}

	if strings.HasPrefix(s, "вчера") || strings.HasPrefix(s, "yesterday") {
		return now.AddDate(0, 0, -1)
	}

	if t, err := time.ParseInLocation("15:04", s, now.Location()); err == nil {
		return time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), 0, 0, now.Location())
	}

	s = months.Replace(s)
	if t, err := dateparse.ParseIn(s, now.Location()); err == nil {
		return t
	}
	return time.Time{}
}
