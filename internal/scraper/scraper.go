// Package scraper turns search result pages into raw candidate records.
// Each extractor knows one surface's markup and nothing else: no dedup,
// no filtering, no scoring.
package scraper

import (
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/deusflow/sandboxbot/internal/news"
	"github.com/deusflow/sandboxbot/internal/rss"
)

// Extractor parses one surface's response body. An error means the whole
// document was unusable; units that cannot be parsed are skipped silently.
type Extractor interface {
	Extract(body, query string) ([]news.RawRecord, error)
}

// Kinds understood by New.
const (
	KindYandexNews = "yandex_news"
	KindBingNews   = "bing_news"
	KindGoogleNews = "google_news"
	KindDuckDuckGo = "duckduckgo"
	KindRSS        = "rss"
)

// New returns the extractor for kind, resolving relative links against base.
func New(kind, base string) (Extractor, error) {
	clock := time.Now
	switch kind {
	case KindYandexNews:
		return &YandexNews{Base: base, Now: clock}, nil
	case KindBingNews:
		return &BingNews{Base: base, Now: clock}, nil
	case KindGoogleNews:
		return &GoogleNews{Base: base}, nil
	case KindDuckDuckGo:
		return &DuckDuckGo{Base: base}, nil
	case KindRSS:
		return rss.NewFeed(base), nil
	default:
		return nil, fmt.Errorf("unknown extractor kind %q", kind)
	}
}

func parseDocument(body string) (*goquery.Document, error) {
	if strings.TrimSpace(body) == "" {
		return nil, fmt.Errorf("empty document")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("error parsing HTML: %w", err)
	}
	return doc, nil
}

func text(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}

// firstText returns the text of the first selector that yields something.
func firstText(s *goquery.Selection, selectors ...string) string {
	for _, sel := range selectors {
		if t := text(s.Find(sel).First()); t != "" {
			return t
		}
	}
	return ""
}

// firstLink returns the first selector match that carries an href.
func firstLink(s *goquery.Selection, selectors ...string) *goquery.Selection {
	for _, sel := range selectors {
		a := s.Find(sel).FilterFunction(func(_ int, a *goquery.Selection) bool {
			href, ok := a.Attr("href")
			return ok && strings.TrimSpace(href) != ""
		}).First()
		if a.Length() > 0 {
			return a
		}
	}
	return nil
}

// link resolves href against base and unwraps aggregator redirects.
func link(base, href string) string {
	abs := news.ResolveURL(base, news.UnwrapRedirect(href))
	if abs == "" {
		return ""
	}
	return news.UnwrapRedirect(abs)
}
