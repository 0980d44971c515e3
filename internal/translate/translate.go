// Package translate prepares user queries for the surfaces of each mode:
// shortening for regional search, spelling fixes and translation for
// international search. Every step is best effort.
package translate

import (
	"context"
	"strings"
	"time"

	"github.com/deusflow/sandboxbot/internal/logger"
	"github.com/deusflow/sandboxbot/internal/metrics"
	"github.com/deusflow/sandboxbot/internal/news"
)

// Strategy is one best-effort transformation. ok=false means "no answer",
// and the caller keeps its input.
type Strategy interface {
	Name() string
	Attempt(ctx context.Context, text string) (out string, ok bool)
}

// Prepared holds the query forms for both surface groups.
type Prepared struct {
	Regional      string
	International string
}

type Options struct {
	MaxWords            int
	Timeout             time.Duration // per strategy attempt
	TopicalTerms        []string      // terms that mark an on-topic query
	RegionalSuffix      string        // appended to off-topic regional queries
	InternationalSuffix string        // appended to translated on-topic queries
}

type Preparer struct {
	opts       Options
	spelling   []Strategy
	translator []Strategy
	metrics    *metrics.Metrics
}

// NewPreparer builds a preparer. spelling runs first on the original text,
// then translator strategies are tried in order until one answers.
func NewPreparer(opts Options, spelling, translator []Strategy) *Preparer {
	if opts.MaxWords <= 0 {
		opts.MaxWords = 8
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	return &Preparer{opts: opts, spelling: spelling, translator: translator, metrics: metrics.Global}
}

// Prepare returns the query to send for mode. It never fails: with every
// strategy down the result is the cleaned, shortened input.
func (p *Preparer) Prepare(ctx context.Context, query string, mode news.Mode) Prepared {
	base := truncateWords(collapse(query), p.opts.MaxWords)
	switch mode {
	case news.ModeInternational:
		return Prepared{International: p.international(ctx, base)}
	case news.ModeQuick:
		return Prepared{Regional: p.regional(base), International: p.international(ctx, base)}
	default:
		return Prepared{Regional: p.regional(base)}
	}
}

// regional narrows a generic query to the topic, e.g. "финтех" -> "финтех ЭПР".
func (p *Preparer) regional(query string) string {
	suffix := p.opts.RegionalSuffix
	if query == "" || suffix == "" || news.ContainsAny(query, p.opts.TopicalTerms) {
		return query
	}
	return query + " " + suffix
}

func (p *Preparer) international(ctx context.Context, query string) string {
	if query == "" {
		return query
	}
	text := query
	for _, s := range p.spelling {
		if out, ok := p.attempt(ctx, s, text); ok {
			text = out
		}
	}
	if !news.IsCyrillic(text) {
		return p.withSuffix(text, query)
	}
	for _, s := range p.translator {
		if out, ok := p.attempt(ctx, s, text); ok {
			return p.withSuffix(truncateWords(collapse(out), p.opts.MaxWords), query)
		}
	}
	logger.Debug("all translators failed, keeping query", "query", query)
	return text
}

func (p *Preparer) attempt(ctx context.Context, s Strategy, text string) (string, bool) {
	ctx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
	defer cancel()

	out, ok := s.Attempt(ctx, text)
	out = strings.TrimSpace(out)
	if !ok || out == "" {
		p.metrics.Translations.WithLabelValues(s.Name(), "miss").Inc()
		return "", false
	}
	p.metrics.Translations.WithLabelValues(s.Name(), "ok").Inc()
	logger.Debug("query step", "strategy", s.Name(), "in", text, "out", out)
	return out, true
}

// withSuffix pins on-topic queries to the region, e.g. "regulatory sandbox Russia".
func (p *Preparer) withSuffix(translated, original string) string {
	suffix := p.opts.InternationalSuffix
	if suffix == "" || !news.ContainsAny(original, p.opts.TopicalTerms) {
		return translated
	}
	if strings.Contains(strings.ToLower(translated), strings.ToLower(suffix)) {
		return translated
	}
	return translated + " " + suffix
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncateWords keeps the leading max words.
func truncateWords(s string, max int) string {
	words := strings.Fields(s)
	if len(words) <= max {
		return s
	}
	return strings.Join(words[:max], " ")
}
