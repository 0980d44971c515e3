// Package app is the chat side of the bot: it turns Telegram messages into
// searches and search results into messages.
package app

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/deusflow/sandboxbot/internal/logger"
	"github.com/deusflow/sandboxbot/internal/metrics"
	"github.com/deusflow/sandboxbot/internal/news"
	"github.com/deusflow/sandboxbot/internal/telegram"
)

// Messenger is the part of the Bot API the bot needs.
type Messenger interface {
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]telegram.Update, error)
	SendMessage(ctx context.Context, chatID int64, text string, opts telegram.SendOptions) error
}

// Searcher runs one search. *search.Searcher satisfies it.
type Searcher interface {
	Search(ctx context.Context, query string, mode news.Mode) ([]news.Record, error)
}

type Options struct {
	PollTimeout        time.Duration
	MessageLimit       int
	InternationalHints []string
	DefaultMode        news.Mode
}

// session is the per-chat state: the selected mode and the running search.
type session struct {
	mode    news.Mode
	modeSet bool
	cancel  context.CancelFunc
	seq     uint64
}

type Bot struct {
	api      Messenger
	searcher Searcher
	opts     Options
	metrics  *metrics.Metrics

	mu       sync.Mutex
	sessions map[int64]*session
	wg       sync.WaitGroup
}

func NewBot(api Messenger, searcher Searcher, opts Options) *Bot {
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = 30 * time.Second
	}
	if opts.MessageLimit <= 0 || opts.MessageLimit > TelegramMaxMessage {
		opts.MessageLimit = 4000
	}
	if opts.DefaultMode == "" {
		opts.DefaultMode = news.ModeQuick
	}
	return &Bot{
		api:      api,
		searcher: searcher,
		opts:     opts,
		metrics:  metrics.Global,
		sessions: make(map[int64]*session),
	}
}

// Run polls for updates until ctx ends, then waits for running handlers.
func (b *Bot) Run(ctx context.Context) error {
	logger.Info("Bot started, polling for updates", "poll_timeout", b.opts.PollTimeout)
	var offset int64
	backoff := time.Second
	for {
		updates, err := b.api.GetUpdates(ctx, offset, b.opts.PollTimeout)
		if ctx.Err() != nil {
			break
		}
		if err != nil {
			logger.Error("Failed to get updates", "error", err, "retry_in", backoff)
			select {
			case <-ctx.Done():
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, time.Minute)
			continue
		}
		backoff = time.Second

		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			if u.Message == nil || strings.TrimSpace(u.Message.Text) == "" {
				continue
			}
			b.wg.Add(1)
			go func(m *telegram.Message) {
				defer b.wg.Done()
				b.Handle(ctx, m)
			}(u.Message)
		}
	}
	logger.Info("Bot stopping, waiting for running searches")
	b.wg.Wait()
	return nil
}

// Handle processes one incoming message. It never panics.
func (b *Bot) Handle(ctx context.Context, m *telegram.Message) {
	chatID := m.Chat.ID
	text := strings.TrimSpace(m.Text)
	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic while handling message", "chat_id", chatID, "panic", r, "stack", string(debug.Stack()))
			b.send(ctx, chatID, searchFailedText)
		}
	}()

	switch {
	case isCommand(text, "/start"):
		b.sendMenu(ctx, chatID, welcomeText)
		return
	case isCommand(text, "/help"):
		b.sendMenu(ctx, chatID, helpText)
		return
	case strings.HasPrefix(text, "/"):
		b.send(ctx, chatID, unknownCommandText)
		return
	}

	if mode, ok := buttons[text]; ok {
		b.setMode(chatID, mode)
		if mode == news.ModeFresh {
			b.send(ctx, chatID, searchingFreshText)
			b.search(ctx, chatID, "", mode)
			return
		}
		b.send(ctx, chatID, prompts[mode])
		return
	}

	mode := b.modeFor(chatID, text)
	b.send(ctx, chatID, fmt.Sprintf(searchingText, text))
	b.search(ctx, chatID, text, mode)
}

func isCommand(text, cmd string) bool {
	first, _, _ := strings.Cut(text, " ")
	first, _, _ = strings.Cut(first, "@")
	return strings.EqualFold(first, cmd)
}

func (b *Bot) session(chatID int64) *session {
	s, ok := b.sessions[chatID]
	if !ok {
		s = &session{mode: b.opts.DefaultMode}
		b.sessions[chatID] = s
	}
	return s
}

func (b *Bot) setMode(chatID int64, mode news.Mode) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.session(chatID)
	s.mode, s.modeSet = mode, true
}

// modeFor picks the mode for free text. Fresh is a one-shot button, so free
// text after it searches in the default mode. Without a chosen mode, a
// query that asks for foreign coverage goes international.
func (b *Bot) modeFor(chatID int64, text string) news.Mode {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.session(chatID)
	if s.modeSet && s.mode != news.ModeFresh {
		return s.mode
	}
	if news.ContainsAny(text, b.opts.InternationalHints) {
		return news.ModeInternational
	}
	return b.opts.DefaultMode
}

// begin starts a search for chatID, cancelling the one still running there.
func (b *Bot) begin(ctx context.Context, chatID int64) (context.Context, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.session(chatID)
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	s.seq++
	seq := s.seq
	s.cancel = cancel
	return ctx, func() {
		b.mu.Lock()
		if s.seq == seq {
			s.cancel = nil
		}
		b.mu.Unlock()
		cancel()
	}
}

func (b *Bot) search(parent context.Context, chatID int64, query string, mode news.Mode) {
	ctx, done := b.begin(parent, chatID)
	defer done()

	start := time.Now()
	records, err := b.searcher.Search(ctx, query, mode)
	if err != nil {
		if errors.Is(err, context.Canceled) && parent.Err() == nil {
			logger.Info("search superseded by a newer query", "chat_id", chatID, "query", query)
			return
		}
		if parent.Err() != nil {
			return
		}
		logger.Error("search failed", "chat_id", chatID, "mode", mode, "query", query, "error", err)
		if mode == news.ModeFresh {
			b.send(parent, chatID, freshFailedText)
		} else {
			b.send(parent, chatID, searchFailedText)
		}
		return
	}
	logger.Info("search answered", "chat_id", chatID, "mode", mode, "results", len(records), "elapsed", time.Since(start).Round(time.Millisecond))

	if len(records) == 0 {
		if mode == news.ModeFresh {
			b.send(parent, chatID, nothingFreshText)
		} else {
			b.send(parent, chatID, fmt.Sprintf(nothingFoundText, query))
		}
		return
	}
	for _, msg := range Render(records, query, mode, b.opts.MessageLimit) {
		if ctx.Err() != nil {
			return
		}
		b.send(parent, chatID, msg)
	}
}

func (b *Bot) sendMenu(ctx context.Context, chatID int64, text string) {
	b.deliver(ctx, chatID, text, telegram.SendOptions{Keyboard: mainKeyboard()})
}

func (b *Bot) send(ctx context.Context, chatID int64, text string) {
	b.deliver(ctx, chatID, text, telegram.SendOptions{})
}

func (b *Bot) deliver(ctx context.Context, chatID int64, text string, opts telegram.SendOptions) {
	if err := b.api.SendMessage(ctx, chatID, text, opts); err != nil {
		b.metrics.MessagesSent.WithLabelValues("error").Inc()
		logger.Error("Error send to Telegram", "chat_id", chatID, "error", err)
		return
	}
	b.metrics.MessagesSent.WithLabelValues("ok").Inc()
}
