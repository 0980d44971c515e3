package app

import (
	"context"
	"fmt"

	"github.com/deusflow/sandboxbot/internal/cache"
	"github.com/deusflow/sandboxbot/internal/config"
	"github.com/deusflow/sandboxbot/internal/fetch"
	"github.com/deusflow/sandboxbot/internal/gemini"
	"github.com/deusflow/sandboxbot/internal/logger"
	"github.com/deusflow/sandboxbot/internal/news"
	"github.com/deusflow/sandboxbot/internal/ratelimit"
	"github.com/deusflow/sandboxbot/internal/search"
	"github.com/deusflow/sandboxbot/internal/translate"
)

// Components is the search stack built from config and catalog.
type Components struct {
	Catalog  *config.Catalog
	Searcher *search.Searcher
	Budget   *ratelimit.DailyBudget
	closers  []func()
}

// Close releases LLM and Redis clients.
func (c *Components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}

// Build wires fetcher, extractors, preparer, filter and cache into a searcher.
func Build(ctx context.Context, cfg *config.Config) (*Components, error) {
	cat, err := config.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	surfaces, err := search.SurfacesFromCatalog(cat)
	if err != nil {
		return nil, err
	}
	comp := &Components{Catalog: cat, Budget: ratelimit.NewDailyBudget(cfg.MaxAIRequests)}

	fetcher := fetch.New(cfg.FetchTimeout,
		fetch.WithLimiter(ratelimit.NewHostLimiter(cfg.SurfaceRPS, 2)),
		fetch.WithUserAgent(cfg.UserAgent),
	)

	var cacheOpts []cache.Option
	if rdb := cache.Connect(ctx, cfg.RedisURL); rdb != nil {
		cacheOpts = append(cacheOpts, cache.WithRedis(rdb))
		comp.closers = append(comp.closers, func() { _ = rdb.Close() })
	}
	results := cache.New[[]news.Record](cfg.CacheTTL, cacheOpts...)

	preparer := translate.NewPreparer(translate.Options{
		MaxWords:            cat.MaxQueryWords(),
		Timeout:             cfg.TranslateTimeout,
		TopicalTerms:        cat.TopicalTerms,
		RegionalSuffix:      cat.RegionalSuffix,
		InternationalSuffix: cat.InternationalSuffix,
	}, comp.spelling(cfg), comp.translators(ctx, cfg, cat))

	comp.Searcher = search.New(fetcher, surfaces, news.NewFilter(cat.Rules()), preparer, results, search.Options{
		FreshQueries:    cat.FreshQueries,
		BackupQueries:   cat.BackupQueries,
		FreshMinResults: cat.FreshMinResults(),
	})
	logger.Info("search stack ready",
		"surfaces", len(surfaces),
		"cache_ttl", cfg.CacheTTL,
		"redis", len(cacheOpts) > 0,
	)
	return comp, nil
}

func (c *Components) spelling(cfg *config.Config) []translate.Strategy {
	if !cfg.SpellerEnabled {
		return nil
	}
	return []translate.Strategy{translate.NewYandexSpeller()}
}

// translators lists the ru->en chain: free endpoint, LLMs when keyed, dictionary.
func (c *Components) translators(ctx context.Context, cfg *config.Config, cat *config.Catalog) []translate.Strategy {
	chain := []translate.Strategy{translate.NewGoogleTranslate("ru", "en")}
	budget := c.Budget

	if cfg.GeminiAPIKey != "" {
		client, err := gemini.NewClient(ctx, cfg.GeminiAPIKey)
		if err != nil {
			logger.Warn("Gemini disabled", "error", err)
		} else {
			c.closers = append(c.closers, client.Close)
			chain = append(chain, translate.NewLLM("gemini", client, budget, "ru", "en"))
		}
	}
	if cfg.OpenAIAPIKey != "" {
		chain = append(chain, translate.NewLLM("openai", translate.NewOpenAI(cfg.OpenAIAPIKey), budget, "ru", "en"))
	}
	if len(cat.Dictionary) > 0 {
		chain = append(chain, translate.NewDictionary(cat.Dictionary))
	}
	names := make([]string, 0, len(chain))
	for _, s := range chain {
		names = append(names, s.Name())
	}
	logger.Info("translation chain", "strategies", names, "ai_budget", cfg.MaxAIRequests)
	return chain
}
