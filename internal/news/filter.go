package news

import (
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

// Rules parameterize the filter. Lists come from the catalog, thresholds
// default to DefaultRules.
type Rules struct {
	SelfRefPatterns []string
	SurfaceHosts    []string
	RegionalDomains []string
	RegionalTLDs    []string
	PriorityDomains []string
	StopWords       []string
	HotKeywords     []string
	TopicalTerms    []string

	MinURLLength          int
	MinTitleRunes         int
	SameDomainSimilarity  float64
	CrossDomainSimilarity float64

	HotWeight     float64
	TopicalWeight float64
	PriorityBonus float64
	RecencyBonus  float64
	RecencyWindow time.Duration

	Caps             map[Mode]int
	PerLanguageCap   int
	ArticleOnlyModes []Mode
}

// DefaultRules returns thresholds and caps without any domain lists.
func DefaultRules() Rules {
	return Rules{
		RegionalTLDs:          []string{"ru", "su", "рф", "xn--p1ai"},
		MinURLLength:          20,
		MinTitleRunes:         15,
		SameDomainSimilarity:  0.8,
		CrossDomainSimilarity: 0.9,
		HotWeight:             2,
		TopicalWeight:         1,
		PriorityBonus:         5,
		RecencyBonus:          3,
		RecencyWindow:         24 * time.Hour,
		Caps: map[Mode]int{
			ModeRegional:      10,
			ModeInternational: 10,
			ModeQuick:         10,
			ModeFresh:         8,
		},
		PerLanguageCap:   5,
		ArticleOnlyModes: []Mode{ModeFresh},
	}
}

// Stats counts records dropped at each step.
type Stats struct {
	Input       int
	SelfRef     int
	BadURL      int
	WrongRegion int
	NotArticle  int
	ShortTitle  int
	Duplicate   int
	Truncated   int
	Output      int
}

// Filter is the pure normalizer applied to merged extractor output.
type Filter struct {
	rules    Rules
	stop     map[string]struct{}
	hosts    map[string]struct{}
	selfRef  []string
	articles map[Mode]bool
	now      func() time.Time
}

// Option customizes a Filter.
type Option func(*Filter)

// WithClock fixes the time used for the recency bonus.
func WithClock(now func() time.Time) Option {
	return func(f *Filter) { f.now = now }
}

func NewFilter(r Rules, opts ...Option) *Filter {
	f := &Filter{
		rules:    r,
		stop:     make(map[string]struct{}, len(r.StopWords)),
		hosts:    make(map[string]struct{}, len(r.SurfaceHosts)),
		articles: make(map[Mode]bool, len(r.ArticleOnlyModes)),
		now:      time.Now,
	}
	for _, w := range r.StopWords {
		f.stop[strings.ToLower(w)] = struct{}{}
	}
	for _, h := range r.SurfaceHosts {
		f.hosts[strings.TrimPrefix(strings.ToLower(h), "www.")] = struct{}{}
	}
	for _, p := range r.SelfRefPatterns {
		f.selfRef = append(f.selfRef, strings.ToLower(p))
	}
	for _, m := range r.ArticleOnlyModes {
		f.articles[m] = true
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Rules returns the rules the filter was built with.
func (f *Filter) Rules() Rules { return f.rules }

// Cap is the output bound for mode.
func (f *Filter) Cap(m Mode) int {
	if n, ok := f.rules.Caps[m]; ok && n > 0 {
		return n
	}
	return 10
}

// Apply runs the full normalization: self-reference, URL shape, region,
// title floor, dedup, ordering and truncation.
func (f *Filter) Apply(raw []RawRecord, query string, mode Mode) []Record {
	out, _ := f.ApplyWithStats(raw, query, mode)
	return out
}

type candidate struct {
	Record
	seq    int
	host   string
	tokens map[string]struct{}
}

func (f *Filter) ApplyWithStats(raw []RawRecord, query string, mode Mode) ([]Record, Stats) {
	st := Stats{Input: len(raw)}
	queryTokens := tokenSet(Tokens(query, f.stop))

	var accepted []*candidate
	seenURL := make(map[string]struct{}, len(raw))

	for i, r := range raw {
		link := strings.TrimSpace(r.URL)
		u, err := url.Parse(link)
		if err == nil && f.isSelfReference(u, link) {
			st.SelfRef++
			continue
		}
		if err != nil || !strings.HasPrefix(link, "http") || len(link) < f.rules.MinURLLength || u.Host == "" {
			st.BadURL++
			continue
		}

		title := CleanTitle(r.Title)
		host := HostOf(link)
		tag := f.Classify(host, title)
		if !modeAccepts(mode, tag) {
			st.WrongRegion++
			continue
		}
		if f.articles[mode] && !looksLikeArticle(u) {
			st.NotArticle++
			continue
		}

		tokens := Tokens(title, f.stop)
		if utf8.RuneCountInString(strings.Join(tokens, " ")) < f.rules.MinTitleRunes {
			st.ShortTitle++
			continue
		}

		key := canonicalURL(u)
		if _, dup := seenURL[key]; dup {
			st.Duplicate++
			continue
		}
		seenURL[key] = struct{}{}

		source := CleanTitle(r.Source)
		if source == "" {
			source = host
		}
		c := &candidate{
			Record: Record{
				Title:     title,
				URL:       link,
				Source:    source,
				Published: r.Published.UTC(),
				Language:  tag,
				Priority:  domainIn(host, f.rules.PriorityDomains),
				Surface:   r.Surface,
			},
			seq:    i,
			host:   host,
			tokens: tokenSet(tokens),
		}

		var conflicts []int
		priorityConflict := false
		for j, a := range accepted {
			if f.duplicates(c, a) {
				conflicts = append(conflicts, j)
				if a.Priority {
					priorityConflict = true
				}
			}
		}
		if len(conflicts) == 0 {
			accepted = append(accepted, c)
			continue
		}
		if !c.Priority || priorityConflict {
			st.Duplicate++
			continue
		}
		// priority record takes over its whole duplicate cluster
		st.Duplicate += len(conflicts)
		accepted = removeIndexes(accepted, conflicts)
		accepted = append(accepted, c)
	}

	for _, c := range accepted {
		c.Score = f.score(c, queryTokens, mode)
	}
	sort.SliceStable(accepted, func(i, j int) bool {
		a, b := accepted[i], accepted[j]
		if a.Priority != b.Priority {
			return a.Priority
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.seq < b.seq
	})

	out := f.truncate(accepted, mode)
	st.Truncated = len(accepted) - len(out)
	st.Output = len(out)
	return out, st
}

// Classify tags a record regional by allow-list first, then TLD, then script.
func (f *Filter) Classify(host, title string) LanguageTag {
	if domainIn(host, f.rules.RegionalDomains) {
		return TagRegional
	}
	for _, tld := range f.rules.RegionalTLDs {
		if strings.HasSuffix(host, "."+strings.ToLower(tld)) {
			return TagRegional
		}
	}
	if IsCyrillic(title) {
		return TagRegional
	}
	return TagOther
}

func modeAccepts(m Mode, tag LanguageTag) bool {
	switch m {
	case ModeInternational:
		return tag == TagOther
	case ModeRegional, ModeFresh:
		return tag == TagRegional
	default:
		return true
	}
}

var searchPathSegments = map[string]bool{"search": true, "yandsearch": true}

func (f *Filter) isSelfReference(u *url.URL, raw string) bool {
	lower := strings.ToLower(raw)
	for _, p := range f.selfRef {
		if p != "" && strings.Contains(lower, p) {
			return true
		}
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if _, ok := f.hosts[host]; ok {
		return true
	}
	q := u.Query()
	if q.Get("q") == "" && q.Get("text") == "" && q.Get("query") == "" {
		return false
	}
	for _, seg := range strings.Split(strings.ToLower(u.Path), "/") {
		if searchPathSegments[seg] {
			return true
		}
	}
	return false
}

var (
	reDateSegment = regexp.MustCompile(`(^|[^0-9])(19|20)\d{2}([-_/]?\d{2}){1,2}($|[^0-9])`)
	reNumericID   = regexp.MustCompile(`\d{5,}`)
)

// looksLikeArticle reports whether the path carries a date or a numeric id,
// which section and listing pages normally lack.
func looksLikeArticle(u *url.URL) bool {
	p := u.EscapedPath()
	return reDateSegment.MatchString(p) || reNumericID.MatchString(p)
}

func (f *Filter) duplicates(a, b *candidate) bool {
	sim := Jaccard(a.tokens, b.tokens)
	if sim >= f.rules.CrossDomainSimilarity {
		return true
	}
	return a.host == b.host && sim >= f.rules.SameDomainSimilarity
}

func (f *Filter) score(c *candidate, query map[string]struct{}, mode Mode) float64 {
	var s float64
	for t := range c.tokens {
		if _, ok := query[t]; ok {
			s++
		}
	}
	text := normalize(c.Title)
	s += f.rules.HotWeight * float64(countMatches(text, c.tokens, f.rules.HotKeywords))
	if c.Priority {
		s += f.rules.PriorityBonus
	}
	if mode == ModeFresh {
		s += f.rules.TopicalWeight * float64(countMatches(text, c.tokens, f.rules.TopicalTerms))
		if !c.Published.IsZero() && f.now().Sub(c.Published) <= f.rules.RecencyWindow {
			s += f.rules.RecencyBonus
		}
	}
	return s
}

func (f *Filter) truncate(sorted []*candidate, mode Mode) []Record {
	limit := f.Cap(mode)
	perTag := map[LanguageTag]int{}
	out := make([]Record, 0, min(limit, len(sorted)))
	for _, c := range sorted {
		if len(out) >= limit {
			break
		}
		if mode == ModeQuick && f.rules.PerLanguageCap > 0 {
			if perTag[c.Language] >= f.rules.PerLanguageCap {
				continue
			}
			perTag[c.Language]++
		}
		out = append(out, c.Record)
	}
	return out
}

// domainIn reports whether host equals or is a sub-domain of any entry.
func domainIn(host string, domains []string) bool {
	for _, d := range domains {
		d = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(d)), "www.")
		if d == "" {
			continue
		}
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

func canonicalURL(u *url.URL) string {
	c := *u
	c.Fragment = ""
	c.Scheme = strings.ToLower(c.Scheme)
	c.Host = strings.TrimPrefix(strings.ToLower(c.Host), "www.")
	c.Path = strings.TrimSuffix(c.Path, "/")
	c.RawPath = ""
	if c.Scheme == "http" {
		c.Scheme = "https"
	}
	return c.String()
}

func removeIndexes(list []*candidate, idx []int) []*candidate {
	drop := make(map[int]bool, len(idx))
	for _, i := range idx {
		drop[i] = true
	}
	out := list[:0]
	for i, c := range list {
		if !drop[i] {
			out = append(out, c)
		}
	}
	return out
}
