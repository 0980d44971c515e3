package news

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Mode selects which surfaces are queried and how their results are merged.
type Mode string

const (
	ModeRegional      Mode = "regional"
	ModeInternational Mode = "international"
	ModeFresh         Mode = "fresh"
	ModeQuick         Mode = "quick"
)

// Modes lists every supported mode in menu order.
var Modes = []Mode{ModeRegional, ModeInternational, ModeFresh, ModeQuick}

// ParseMode accepts a mode name in any case.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Modes {
		if m == known {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown mode %q", s)
}

// LanguageTag is the coarse regional/other split of a record's origin.
type LanguageTag string

const (
	TagRegional LanguageTag = "regional"
	TagOther    LanguageTag = "other"
)

// RawRecord is what an extractor emits for one result unit.
// Source may be empty; the filter backfills it from the URL host.
type RawRecord struct {
	Title     string
	URL       string
	Source    string
	Published time.Time
	Surface   string
}

// Record is a filtered, classified and scored candidate.
type Record struct {
	Title     string      `json:"title"`
	URL       string      `json:"url"`
	Source    string      `json:"source"`
	Published time.Time   `json:"published,omitempty"`
	Language  LanguageTag `json:"language"`
	Priority  bool        `json:"priority"`
	Score     float64     `json:"score"`
	Surface   string      `json:"surface,omitempty"`
}

// Raw converts the record back into extractor output so it can be filtered again.
func (r Record) Raw() RawRecord {
	return RawRecord{
		Title:     r.Title,
		URL:       r.URL,
		Source:    r.Source,
		Published: r.Published,
		Surface:   r.Surface,
	}
}

// RawRecords converts a filtered list back into raw input.
func RawRecords(records []Record) []RawRecord {
	out := make([]RawRecord, 0, len(records))
	for _, r := range records {
		out = append(out, r.Raw())
	}
	return out
}

// HostOf returns the lower-cased host of rawURL without a leading "www.".
func HostOf(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www.")
}

// redirectParams are query parameters aggregators use to wrap the target URL.
var redirectParams = []string{"uddg", "cl4url", "url", "u"}

// UnwrapRedirect extracts the target of an aggregator redirect link
// (e.g. //duckduckgo.com/l/?uddg=..., yandex cl4url=..., bing apiclick url=...).
// Links that are not redirects are returned unchanged.
func UnwrapRedirect(href string) string {
	href = strings.TrimSpace(href)
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	q := u.Query()
	for _, p := range redirectParams {
		v := q.Get(p)
		if v == "" {
			continue
		}
		if !strings.HasPrefix(v, "http") {
			// yandex sends cl4url without scheme
			if p == "cl4url" && strings.Contains(v, ".") {
				return "https://" + v
			}
			continue
		}
		return v
	}
	return href
}

// ResolveURL makes href absolute against base. Empty or unparsable links yield "".
func ResolveURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if ref.IsAbs() {
		return ref.String()
	}
	b, err := url.Parse(base)
	if err != nil || !b.IsAbs() {
		return ""
	}
	return b.ResolveReference(ref).String()
}
