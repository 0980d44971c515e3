package app

import (
	"context"
	"fmt"
	"time"

	"github.com/deusflow/sandboxbot/internal/config"
	"github.com/deusflow/sandboxbot/internal/logger"
	"github.com/deusflow/sandboxbot/internal/metrics"
	"github.com/deusflow/sandboxbot/internal/monitoring"
	"github.com/deusflow/sandboxbot/internal/retry"
	"github.com/deusflow/sandboxbot/internal/telegram"
)

// Serve runs the bot, and the monitoring server when enabled, until ctx ends.
func Serve(ctx context.Context, cfg *config.Config) error {
	comp, err := Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer comp.Close()

	tg := telegram.NewClient(cfg.TelegramToken,
		telegram.WithBaseURL(cfg.TelegramAPIURL),
		telegram.WithRetry(retry.RetryConfig{
			MaxAttempts: cfg.RetryAttempts,
			Delay:       cfg.RetryDelay,
			Backoff:     true,
		}),
	)
	if cfg.EnableHTTP {
		wait := startMonitoring(ctx, cfg.MonitoringPort, comp)
		defer wait()
	}

	me, err := connect(ctx, tg, time.Second)
	if err != nil {
		return err
	}
	logger.Info("Connected to Telegram", "bot", me.Username)
	if cfg.HasExtendedSearch() {
		logger.Info("extended search credentials present, channel search is not part of this build")
	}

	bot := NewBot(tg, comp.Searcher, Options{
		PollTimeout:        cfg.PollTimeout,
		MessageLimit:       cfg.MessageLimit,
		InternationalHints: comp.Catalog.InternationalHints,
	})

	return bot.Run(ctx)
}

// startMonitoring runs the health server beside the bot. Its failure is
// logged and never stops the bot. wait blocks until it has shut down.
func startMonitoring(ctx context.Context, port string, comp *Components) (wait func()) {
	srv := monitoring.New(port, metrics.Global, comp.Budget.GetStats)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := srv.Run(ctx); err != nil {
			logger.Error("monitoring server stopped, bot keeps running", "error", err)
		}
	}()
	return func() { <-done }
}

// starter is the part of the Bot API needed before polling starts.
type starter interface {
	GetMe(ctx context.Context) (*telegram.User, error)
	DeleteWebhook(ctx context.Context, dropPending bool) error
}

// connect checks the token and switches the bot to long polling. Network
// errors and Telegram outages are retried with backoff until ctx ends; only
// a rejected token is fatal.
func connect(ctx context.Context, tg starter, backoff time.Duration) (*telegram.User, error) {
	for {
		me, err := tg.GetMe(ctx)
		if err == nil {
			err = tg.DeleteWebhook(ctx, true)
		}
		if err == nil {
			return me, nil
		}
		if telegram.IsInvalidToken(err) {
			return nil, fmt.Errorf("telegram rejected the bot token: %w", err)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.Warn("Telegram not reachable, retrying", "error", err, "retry_in", backoff)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, time.Minute)
	}
}
