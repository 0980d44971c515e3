package scraper

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/deusflow/sandboxbot/internal/news"
)

// YandexNews parses yandex.ru/news/search result cards.
type YandexNews struct {
	Base string
	Now  func() time.Time
}

func (y *YandexNews) Extract(body, _ string) ([]news.RawRecord, error) {
	doc, err := parseDocument(body)
	if err != nil {
		return nil, err
	}
	now := clockOrNow(y.Now)

	var out []news.RawRecord
	doc.Find("article.mg-card, div.mg-card").Each(func(_ int, s *goquery.Selection) {
		a := firstLink(s, "a.mg-card__link", "h2 a", "a[href]")
		if a == nil {
			return
		}
		href, _ := a.Attr("href")
		title := firstText(s, ".mg-card__title", "h2")
		if title == "" {
			title = text(a)
		}
		u := link(y.Base, href)
		if title == "" || u == "" {
			return
		}
		out = append(out, news.RawRecord{
			Title:     title,
			URL:       u,
			Source:    firstText(s, ".mg-card-source__source a", ".mg-card-source__source"),
			Published: parsePublished(firstText(s, ".mg-card-source__time"), now),
		})
	})
	return out, nil
}

// BingNews parses bing.com/news/search cards. Older layouts use div.tile
// or bare article elements instead of div.news-card.
type BingNews struct {
	Base string
	Now  func() time.Time
}

func (b *BingNews) Extract(body, _ string) ([]news.RawRecord, error) {
	doc, err := parseDocument(body)
	if err != nil {
		return nil, err
	}
	now := clockOrNow(b.Now)

	cards := doc.Find("div.news-card")
	if cards.Length() == 0 {
		cards = doc.Find("div.tile")
	}
	if cards.Length() == 0 {
		cards = doc.Find("article")
	}

	var out []news.RawRecord
	cards.Each(func(_ int, s *goquery.Selection) {
		title, _ := s.Attr("data-title")
		href, _ := s.Attr("data-url")
		if a := firstLink(s, "a.title", "h2 a", "h3 a", "a[href]"); a != nil {
			if href == "" {
				href, _ = a.Attr("href")
			}
			if title == "" {
				title = text(a)
			}
		}
		title = strings.TrimSpace(title)
		u := link(b.Base, href)
		if title == "" || u == "" {
			return
		}

		source, _ := s.Attr("data-author")
		if source == "" {
			source = firstText(s, "[class*=source] a", "[class*=source]", "[class*=author]")
		}
		published := ""
		if t := s.Find("[class*=time], [class*=date]").First(); t.Length() > 0 {
			published = text(t)
			if published == "" {
				published, _ = t.Attr("aria-label")
			}
		}

		out = append(out, news.RawRecord{
			Title:     title,
			URL:       u,
			Source:    strings.TrimSpace(source),
			Published: parsePublished(published, now),
		})
	})
	return out, nil
}

// GoogleNews parses news.google.com/search article cards. Links are
// relative ("./articles/...") and get resolved against Base.
type GoogleNews struct {
	Base string
}

func (g *GoogleNews) Extract(body, _ string) ([]news.RawRecord, error) {
	doc, err := parseDocument(body)
	if err != nil {
		return nil, err
	}

	var out []news.RawRecord
	doc.Find("article").Each(func(_ int, s *goquery.Selection) {
		title := firstText(s, "h3", "h4", "a.JtKRv", "a.gPFEn")
		a := firstLink(s, "h3 a", "h4 a", "a.JtKRv", "a.gPFEn", "a[href^='./articles']", "a[href]")
		if a == nil || title == "" {
			return
		}
		href, _ := a.Attr("href")
		u := link(g.Base, href)
		if u == "" {
			return
		}
		var published time.Time
		if dt, ok := s.Find("time").First().Attr("datetime"); ok {
			published, _ = time.Parse(time.RFC3339, dt)
		}
		out = append(out, news.RawRecord{
			Title:     title,
			URL:       u,
			Source:    firstText(s, "div.vr1PYe", "[data-n-tid]", "div.SVJrMe a"),
			Published: published,
		})
	})
	return out, nil
}

// DuckDuckGo parses the html.duckduckgo.com lite results page.
type DuckDuckGo struct {
	Base string
}

func (d *DuckDuckGo) Extract(body, _ string) ([]news.RawRecord, error) {
	doc, err := parseDocument(body)
	if err != nil {
		return nil, err
	}

	var out []news.RawRecord
	doc.Find(".result, .web-result").Each(func(_ int, s *goquery.Selection) {
		if s.HasClass("result--ad") {
			return
		}
		a := firstLink(s, "a.result__a", ".result__title a", "a.result-link")
		if a == nil {
			return
		}
		href, _ := a.Attr("href")
		title := text(a)
		u := link(d.Base, href)
		if title == "" || u == "" {
			return
		}
		// result__url is a display path, not a publisher name
		out = append(out, news.RawRecord{Title: title, URL: u})
	})
	return out, nil
}

func clockOrNow(now func() time.Time) time.Time {
	if now == nil {
		return time.Now()
	}
	return now()
}
