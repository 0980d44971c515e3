// Package search runs one query across the configured surfaces, merges what
// comes back through the news filter and caches the result.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/deusflow/sandboxbot/internal/cache"
	"github.com/deusflow/sandboxbot/internal/config"
	"github.com/deusflow/sandboxbot/internal/logger"
	"github.com/deusflow/sandboxbot/internal/metrics"
	"github.com/deusflow/sandboxbot/internal/news"
	"github.com/deusflow/sandboxbot/internal/scraper"
	"github.com/deusflow/sandboxbot/internal/translate"
)

// Fetcher downloads a page. *fetch.Client satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, url string, headers map[string]string) (string, error)
}

// Preparer turns a user query into per-group surface queries.
type Preparer interface {
	Prepare(ctx context.Context, query string, mode news.Mode) translate.Prepared
}

// Surface is a catalog entry bound to its extractor.
type Surface struct {
	config.Surface
	Extractor scraper.Extractor
}

// SurfaceResult is the outcome of one surface call. Err is set when the
// surface yielded nothing because the fetch or the parse failed.
type SurfaceResult struct {
	Surface string
	Query   string
	Records []news.RawRecord
	Err     error
	Elapsed time.Duration
}

// SurfacesFromCatalog builds the enabled surfaces of cat.
func SurfacesFromCatalog(cat *config.Catalog) ([]Surface, error) {
	var out []Surface
	for _, cs := range cat.Surfaces {
		if cs.Disabled {
			continue
		}
		ex, err := scraper.New(cs.Kind, cs.Base)
		if err != nil {
			return nil, fmt.Errorf("surface %s: %w", cs.Name, err)
		}
		out = append(out, Surface{Surface: cs, Extractor: ex})
	}
	return out, nil
}

type Options struct {
	FreshQueries    []string
	BackupQueries   []string
	FreshMinResults int
}

type Searcher struct {
	fetcher       Fetcher
	regional      []Surface
	international []Surface
	filter        *news.Filter
	preparer      Preparer
	cache         *cache.Cache[[]news.Record]
	opts          Options
	group         singleflight.Group
	metrics       *metrics.Metrics
}

func New(fetcher Fetcher, surfaces []Surface, filter *news.Filter, preparer Preparer, c *cache.Cache[[]news.Record], opts Options) *Searcher {
	if opts.FreshMinResults <= 0 {
		opts.FreshMinResults = 4
	}
	s := &Searcher{
		fetcher:  fetcher,
		filter:   filter,
		preparer: preparer,
		cache:    c,
		opts:     opts,
		metrics:  metrics.Global,
	}
	for _, sf := range surfaces {
		switch sf.Group {
		case "regional":
			s.regional = append(s.regional, sf)
		case "international":
			s.international = append(s.international, sf)
		default:
			logger.Warn("surface has unknown group, skipped", "surface", sf.Name, "group", sf.Group)
		}
	}
	return s
}

// SetMetrics swaps the collectors, for tests.
func (s *Searcher) SetMetrics(m *metrics.Metrics) { s.metrics = m }

// Search returns the ordered, bounded records for query in mode. The error
// is non-nil only when ctx ends before the search does; a search where
// every surface failed returns an empty list.
func (s *Searcher) Search(ctx context.Context, query string, mode news.Mode) ([]news.Record, error) {
	query = strings.Join(strings.Fields(query), " ")
	if query == "" && mode != news.ModeFresh {
		return []news.Record{}, nil
	}
	key := cache.Key(normalizeQuery(query), string(mode))

	if recs, ok := s.cache.Get(ctx, key); ok {
		s.metrics.Searches.WithLabelValues(string(mode), "cached").Inc()
		return recs, nil
	}

	var (
		v   any
		err error
	)
	// A shared flight can die with another caller's context; retry once on our own.
	for attempt := 0; attempt < 2; attempt++ {
		v, err, _ = s.group.Do(key, func() (any, error) {
			return s.run(ctx, key, query, mode)
		})
		if err == nil || ctx.Err() != nil || !errors.Is(err, context.Canceled) {
			break
		}
	}
	if err != nil {
		return nil, err
	}
	return slices.Clone(v.([]news.Record)), nil
}

func (s *Searcher) run(ctx context.Context, key, query string, mode news.Mode) ([]news.Record, error) {
	if recs, ok := s.cache.Get(ctx, key); ok {
		return recs, nil
	}

	start := time.Now()
	log := logger.With("request_id", uuid.NewString(), "mode", mode)
	log.Info("search started", "query", query)

	var (
		records []news.Record
		stats   news.Stats
	)
	if mode == news.ModeFresh {
		records, stats = s.fresh(ctx, query, log)
	} else {
		prepared := s.preparer.Prepare(ctx, query, mode)
		var tasks []task
		if mode != news.ModeInternational {
			tasks = append(tasks, tasksFor(s.regional, prepared.Regional)...)
		}
		if mode != news.ModeRegional {
			tasks = append(tasks, tasksFor(s.international, prepared.International)...)
		}
		raw := s.collect(ctx, tasks, log)
		records, stats = s.filter.ApplyWithStats(raw, query, mode)
	}

	if err := ctx.Err(); err != nil {
		s.metrics.ObserveSearch(mode, "canceled", time.Since(start))
		log.Info("search canceled", "error", err)
		return nil, err
	}

	s.metrics.RecordFilterStats(stats)
	outcome := "ok"
	if len(records) == 0 {
		outcome = "empty"
	}
	s.metrics.ObserveSearch(mode, outcome, time.Since(start))
	log.Info("search finished", "results", len(records), "raw", stats.Input, "elapsed", time.Since(start).Round(time.Millisecond))

	if records == nil {
		records = []news.Record{}
	}
	s.cache.Set(ctx, key, records)
	return records, nil
}

// fresh runs the curated topical queries on regional surfaces and, when too
// few records survive, one backup round on every surface.
func (s *Searcher) fresh(ctx context.Context, query string, log *slog.Logger) ([]news.Record, news.Stats) {
	queries := s.opts.FreshQueries
	if query != "" {
		queries = append([]string{query}, queries...)
	}
	scoring := strings.Join(queries, " ")

	var tasks []task
	for _, q := range queries {
		tasks = append(tasks, tasksFor(s.regional, q)...)
	}
	raw := s.collect(ctx, tasks, log)
	records, stats := s.filter.ApplyWithStats(raw, scoring, news.ModeFresh)
	if len(records) >= s.opts.FreshMinResults || len(s.opts.BackupQueries) == 0 || ctx.Err() != nil {
		return records, stats
	}

	log.Info("fresh round below minimum, running backup queries", "results", len(records), "min", s.opts.FreshMinResults)
	all := append(slices.Clone(s.regional), s.international...)
	tasks = tasks[:0]
	for _, q := range s.opts.BackupQueries {
		tasks = append(tasks, tasksFor(all, q)...)
	}
	raw = append(raw, s.collect(ctx, tasks, log)...)
	return s.filter.ApplyWithStats(raw, scoring+" "+strings.Join(s.opts.BackupQueries, " "), news.ModeFresh)
}

type task struct {
	surface Surface
	query   string
}

func tasksFor(surfaces []Surface, query string) []task {
	if query == "" {
		return nil
	}
	out := make([]task, 0, len(surfaces))
	for _, sf := range surfaces {
		out = append(out, task{surface: sf, query: query})
	}
	return out
}

// collect launches every task at once and concatenates records in task
// order. No task returns an error, so one surface never cancels the others.
func (s *Searcher) collect(ctx context.Context, tasks []task, log *slog.Logger) []news.RawRecord {
	results := make([]SurfaceResult, len(tasks))
	var g errgroup.Group
	for i, t := range tasks {
		g.Go(func() error {
			results[i] = s.callSurface(ctx, t.surface, t.query)
			return nil
		})
	}
	_ = g.Wait()

	var raw []news.RawRecord
	for _, r := range results {
		if r.Err != nil {
			log.Warn("surface failed", "surface", r.Surface, "query", r.Query, "elapsed", r.Elapsed.Round(time.Millisecond), "error", r.Err)
			continue
		}
		log.Debug("surface done", "surface", r.Surface, "count", len(r.Records), "elapsed", r.Elapsed.Round(time.Millisecond))
		raw = append(raw, r.Records...)
	}
	return raw
}

func (s *Searcher) callSurface(ctx context.Context, sf Surface, query string) SurfaceResult {
	start := time.Now()
	res := SurfaceResult{Surface: sf.Name, Query: query}

	var headers map[string]string
	if sf.AcceptLanguage != "" {
		headers = map[string]string{"Accept-Language": sf.AcceptLanguage}
	}
	body, err := s.fetcher.Fetch(ctx, sf.QueryURL(query), headers)
	if err != nil {
		s.metrics.SurfaceFailures.WithLabelValues(sf.Name, "fetch").Inc()
		res.Err = fmt.Errorf("fetch: %w", err)
		res.Elapsed = time.Since(start)
		return res
	}
	recs, err := sf.Extractor.Extract(body, query)
	if err != nil {
		s.metrics.SurfaceFailures.WithLabelValues(sf.Name, "parse").Inc()
		res.Err = fmt.Errorf("parse: %w", err)
		res.Elapsed = time.Since(start)
		return res
	}
	for i := range recs {
		if recs[i].Surface == "" {
			recs[i].Surface = sf.Name
		}
	}
	s.metrics.SurfaceRecords.WithLabelValues(sf.Name).Add(float64(len(recs)))
	res.Records = recs
	res.Elapsed = time.Since(start)
	return res
}

// normalizeQuery is the cache-key form of a query: trimmed, single-spaced, lower-case.
func normalizeQuery(q string) string {
	return strings.ToLower(strings.Join(strings.Fields(q), " "))
}
