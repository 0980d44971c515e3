package config

import (
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/deusflow/sandboxbot/internal/news"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Surface describes one external search page or feed.
type Surface struct {
	Name           string `yaml:"name"`
	Group          string `yaml:"group"` // regional | international
	Kind           string `yaml:"kind"`  // extractor kind
	URL            string `yaml:"url"`   // template with {query}
	Base           string `yaml:"base"`
	AcceptLanguage string `yaml:"accept_language"`
	Disabled       bool   `yaml:"disabled"`
}

// Host returns the surface host without "www.".
func (s Surface) Host() string {
	return news.HostOf(strings.ReplaceAll(s.URL, "{query}", "x"))
}

// QueryURL fills the template with the escaped query.
func (s Surface) QueryURL(query string) string {
	return strings.ReplaceAll(s.URL, "{query}", url.QueryEscape(query))
}

type Limits struct {
	MinURLLength          int     `yaml:"min_url_length"`
	MinTitleRunes         int     `yaml:"min_title_runes"`
	SameDomainSimilarity  float64 `yaml:"same_domain_similarity"`
	CrossDomainSimilarity float64 `yaml:"cross_domain_similarity"`
	PerLanguageCap        int     `yaml:"per_language_cap"`
	FreshMinResults       int     `yaml:"fresh_min_results"`
	MaxQueryWords         int     `yaml:"max_query_words"`
}

// Catalog is the static domain knowledge of the bot: where to search and
// how to judge what comes back.
type Catalog struct {
	Surfaces            []Surface         `yaml:"surfaces"`
	RegionalDomains     []string          `yaml:"regional_domains"`
	RegionalTLDs        []string          `yaml:"regional_tlds"`
	PriorityDomains     []string          `yaml:"priority_domains"`
	SelfRefPatterns     []string          `yaml:"self_ref_patterns"`
	StopWords           []string          `yaml:"stop_words"`
	HotKeywords         []string          `yaml:"hot_keywords"`
	TopicalTerms        []string          `yaml:"topical_terms"`
	FreshQueries        []string          `yaml:"fresh_queries"`
	BackupQueries       []string          `yaml:"backup_queries"`
	RegionalSuffix      string            `yaml:"regional_suffix"`
	InternationalSuffix string            `yaml:"international_suffix"`
	InternationalHints  []string          `yaml:"international_hints"`
	Dictionary          map[string]string `yaml:"dictionary"`
	Caps                map[string]int    `yaml:"caps"`
	Limits              Limits            `yaml:"limits"`
}

// LoadCatalog reads the catalog from path, or the embedded default when path is empty.
func LoadCatalog(path string) (*Catalog, error) {
	data := defaultCatalog
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read catalog: %w", err)
		}
		data = b
	}
	return ParseCatalog(data)
}

func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) Validate() error {
	if len(c.Surfaces) == 0 {
		return fmt.Errorf("catalog: no surfaces")
	}
	seen := map[string]bool{}
	for _, s := range c.Surfaces {
		if s.Name == "" || s.Kind == "" {
			return fmt.Errorf("catalog: surface needs name and kind")
		}
		if seen[s.Name] {
			return fmt.Errorf("catalog: duplicate surface %q", s.Name)
		}
		seen[s.Name] = true
		if s.Group != "regional" && s.Group != "international" {
			return fmt.Errorf("catalog: surface %s has group %q, want regional or international", s.Name, s.Group)
		}
		if !strings.Contains(s.URL, "{query}") {
			return fmt.Errorf("catalog: surface %s url has no {query} placeholder", s.Name)
		}
	}
	for mode := range c.Caps {
		if _, err := news.ParseMode(mode); err != nil {
			return fmt.Errorf("catalog: caps: %w", err)
		}
	}
	return nil
}

// Enabled returns the surfaces of group that are not disabled.
func (c *Catalog) Enabled(group string) []Surface {
	var out []Surface
	for _, s := range c.Surfaces {
		if !s.Disabled && s.Group == group {
			out = append(out, s)
		}
	}
	return out
}

// Rules converts the catalog into filter rules on top of news.DefaultRules.
func (c *Catalog) Rules() news.Rules {
	r := news.DefaultRules()
	r.SelfRefPatterns = c.SelfRefPatterns
	r.RegionalDomains = c.RegionalDomains
	r.PriorityDomains = c.PriorityDomains
	r.StopWords = c.StopWords
	r.HotKeywords = c.HotKeywords
	r.TopicalTerms = c.TopicalTerms
	if len(c.RegionalTLDs) > 0 {
		r.RegionalTLDs = c.RegionalTLDs
	}
	for _, s := range c.Surfaces {
		if h := s.Host(); h != "" {
			r.SurfaceHosts = append(r.SurfaceHosts, h)
		}
	}

	l := c.Limits
	if l.MinURLLength > 0 {
		r.MinURLLength = l.MinURLLength
	}
	if l.MinTitleRunes > 0 {
		r.MinTitleRunes = l.MinTitleRunes
	}
	if l.SameDomainSimilarity > 0 {
		r.SameDomainSimilarity = l.SameDomainSimilarity
	}
	if l.CrossDomainSimilarity > 0 {
		r.CrossDomainSimilarity = l.CrossDomainSimilarity
	}
	if l.PerLanguageCap > 0 {
		r.PerLanguageCap = l.PerLanguageCap
	}
	for name, n := range c.Caps {
		if m, err := news.ParseMode(name); err == nil && n > 0 {
			r.Caps[m] = n
		}
	}
	return r
}

// FreshMinResults is the survivor count below which fresh mode runs backup queries.
func (c *Catalog) FreshMinResults() int {
	if c.Limits.FreshMinResults > 0 {
		return c.Limits.FreshMinResults
	}
	return 4
}

func (c *Catalog) MaxQueryWords() int {
	if c.Limits.MaxQueryWords > 0 {
		return c.Limits.MaxQueryWords
	}
	return 8
}
