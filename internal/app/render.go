package app

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/deusflow/sandboxbot/internal/news"
)

// TelegramMaxMessage is the Bot API text limit in UTF-16 code units.
const TelegramMaxMessage = 4096

var moscow = time.FixedZone("MSK", 3*60*60)

// Render formats records as plain-text messages, each at most limit UTF-16
// code units long. Records are never split across messages unless a single
// one is longer than limit.
func Render(records []news.Record, query string, mode news.Mode, limit int) []string {
	if limit <= 0 || limit > TelegramMaxMessage {
		limit = TelegramMaxMessage
	}

	blocks := []string{header(query, mode)}
	n := 0
	section := news.LanguageTag("")
	for _, r := range records {
		if mode == news.ModeQuick && r.Language != section {
			section = r.Language
			blocks = append(blocks, sectionTitle(section))
		}
		n++
		blocks = append(blocks, formatRecord(n, r))
	}
	blocks = append(blocks, fmt.Sprintf("📊 Найдено статей: %d", len(records)))

	return pack(blocks, limit)
}

func header(query string, mode news.Mode) string {
	switch mode {
	case news.ModeFresh:
		return "⚡ Самые свежие новости:\n"
	case news.ModeInternational:
		return fmt.Sprintf("🌍 Международные источники по запросу '%s':\n", query)
	case news.ModeQuick:
		return fmt.Sprintf("📊 Быстрый поиск по запросу '%s':\n", query)
	default:
		return fmt.Sprintf("🔍 Результаты поиска по '%s':\n", query)
	}
}

func sectionTitle(tag news.LanguageTag) string {
	if tag == news.TagRegional {
		return "🇷🇺 Российские источники:\n"
	}
	return "🌍 Международные источники:\n"
}

func formatRecord(i int, r news.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d. %s\n", i, r.Title)
	fmt.Fprintf(&b, "🔗 %s\n", r.URL)
	fmt.Fprintf(&b, "📰 %s\n", r.Source)
	if !r.Published.IsZero() {
		fmt.Fprintf(&b, "📅 %s\n", r.Published.In(moscow).Format("02.01.2006"))
	}
	return b.String()
}

// pack joins blocks with blank lines into as few messages as fit limit.
func pack(blocks []string, limit int) []string {
	var (
		out []string
		cur strings.Builder
		n   int
	)
	flush := func() {
		if cur.Len() > 0 {
			out = append(out, strings.TrimRight(cur.String(), "\n"))
			cur.Reset()
			n = 0
		}
	}
	for _, block := range blocks {
		size := utf16Len(block) + 1
		if n > 0 && n+size > limit {
			flush()
		}
		for _, part := range hardSplit(block, limit-1) {
			if n > 0 && n+utf16Len(part)+1 > limit {
				flush()
			}
			cur.WriteString(part)
			cur.WriteString("\n")
			n += utf16Len(part) + 1
		}
	}
	flush()
	return out
}

// hardSplit cuts s into pieces of at most limit UTF-16 units on rune boundaries.
func hardSplit(s string, limit int) []string {
	if utf16Len(s) <= limit {
		return []string{s}
	}
	var (
		parts []string
		start int
		n     int
	)
	for i, r := range s {
		w := utf16.RuneLen(r)
		if n+w > limit {
			parts = append(parts, s[start:i])
			start, n = i, 0
		}
		n += w
	}
	return append(parts, s[start:])
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}
