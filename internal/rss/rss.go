// Package rss extracts candidate records from RSS and Atom search feeds.
package rss

import (
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"
	gorss "github.com/mmcdole/gofeed/rss"

	"github.com/deusflow/sandboxbot/internal/news"
)

// Feed is an extractor for any RSS/Atom search feed.
type Feed struct {
	Base   string
	parser *gofeed.Parser
}

func NewFeed(base string) *Feed {
	return &Feed{Base: base, parser: gofeed.NewParser()}
}

// Extract parses body as a feed. Items without a title or link are skipped.
func (f *Feed) Extract(body, _ string) ([]news.RawRecord, error) {
	feed, err := f.parser.ParseString(body)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	// the universal item drops RSS <source>, so read it from the raw RSS model
	var sources []string
	if feed.FeedType == "rss" {
		sources = rssSources(body)
	}

	out := make([]news.RawRecord, 0, len(feed.Items))
	for i, item := range feed.Items {
		if item == nil {
			continue
		}
		title := news.CleanTitle(item.Title)
		link := news.ResolveURL(f.Base, news.UnwrapRedirect(item.Link))
		if title == "" || link == "" {
			continue
		}
		source := ""
		if i < len(sources) {
			source = sources[i]
		}
		if source == "" {
			source = itemSource(item)
		}
		out = append(out, news.RawRecord{
			Title:     title,
			URL:       link,
			Source:    source,
			Published: itemPublished(item),
		})
	}
	return out, nil
}

func rssSources(body string) []string {
	feed, err := (&gorss.Parser{}).Parse(strings.NewReader(body))
	if err != nil {
		return nil
	}
	out := make([]string, len(feed.Items))
	for i, item := range feed.Items {
		if item != nil && item.Source != nil {
			out[i] = strings.TrimSpace(item.Source.Title)
		}
	}
	return out
}

// itemSource falls back to namespaced source elements (Bing's News:Source), then the author.
func itemSource(item *gofeed.Item) string {
	if s := extensionValue(item.Extensions, "source"); s != "" {
		return s
	}
	if item.Author != nil && item.Author.Name != "" {
		return item.Author.Name
	}
	if len(item.Authors) > 0 && item.Authors[0] != nil {
		return item.Authors[0].Name
	}
	return ""
}

func extensionValue(exts ext.Extensions, name string) string {
	for _, byName := range exts {
		for key, values := range byName {
			if !strings.EqualFold(key, name) {
				continue
			}
			for _, e := range values {
				if v := strings.TrimSpace(e.Value); v != "" {
					return v
				}
			}
		}
	}
	return ""
}

func itemPublished(item *gofeed.Item) time.Time {
	switch {
	case item.PublishedParsed != nil:
		return *item.PublishedParsed
	case item.UpdatedParsed != nil:
		return *item.UpdatedParsed
	default:
		return time.Time{}
	}
}
