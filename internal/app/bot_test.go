package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/deusflow/sandboxbot/internal/metrics"
	"github.com/deusflow/sandboxbot/internal/news"
	"github.com/deusflow/sandboxbot/internal/telegram"
)

type sent struct {
	chatID   int64
	text     string
	keyboard bool
}

type fakeMessenger struct {
	mu      sync.Mutex
	sent    []sent
	updates [][]telegram.Update
	offsets []int64
}

func (f *fakeMessenger) GetUpdates(ctx context.Context, offset int64, _ time.Duration) ([]telegram.Update, error) {
	f.mu.Lock()
	f.offsets = append(f.offsets, offset)
	if len(f.updates) > 0 {
		batch := f.updates[0]
		f.updates = f.updates[1:]
		f.mu.Unlock()
		return batch, nil
	}
	f.mu.Unlock()
	<-ctx.Done()
	return nil, ctx.Err()
}

func (f *fakeMessenger) SendMessage(_ context.Context, chatID int64, text string, opts telegram.SendOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sent{chatID: chatID, text: text, keyboard: opts.Keyboard != nil})
	return nil
}

func (f *fakeMessenger) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sent))
	for _, s := range f.sent {
		out = append(out, s.text)
	}
	return out
}

type searchCall struct {
	query string
	mode  news.Mode
}

type fakeSearcher struct {
	mu      sync.Mutex
	calls   []searchCall
	records []news.Record
	err     error
	panics  bool
	block   chan struct{}
}

func (f *fakeSearcher) Search(ctx context.Context, query string, mode news.Mode) ([]news.Record, error) {
	f.mu.Lock()
	f.calls = append(f.calls, searchCall{query, mode})
	block := f.block
	f.mu.Unlock()
	if f.panics {
		panic("boom")
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.records, f.err
}

func (f *fakeSearcher) lastCall() searchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return searchCall{}
	}
	return f.calls[len(f.calls)-1]
}

func newTestBot(s *fakeSearcher) (*Bot, *fakeMessenger) {
	m := &fakeMessenger{}
	b := NewBot(m, s, Options{InternationalHints: []string{"russia", "international"}})
	b.metrics = metrics.New()
	return b, m
}

func msg(chatID int64, text string) *telegram.Message {
	return &telegram.Message{Chat: telegram.Chat{ID: chatID}, Text: text}
}

func TestHandle_Start(t *testing.T) {
	b, m := newTestBot(&fakeSearcher{})
	b.Handle(context.Background(), msg(1, "/start"))

	if len(m.sent) != 1 || !m.sent[0].keyboard || !strings.Contains(m.sent[0].text, "ЭПР") {
		t.Errorf("sent = %+v", m.sent)
	}
}

func TestHandle_HelpWithBotSuffix(t *testing.T) {
	b, m := newTestBot(&fakeSearcher{})
	b.Handle(context.Background(), msg(1, "/help@sandbox_bot"))
	if len(m.sent) != 1 || m.sent[0].text != helpText {
		t.Errorf("sent = %+v", m.sent)
	}
}

func TestHandle_ButtonSetsModeForNextQuery(t *testing.T) {
	s := &fakeSearcher{records: []news.Record{record(1, news.TagOther)}}
	b, m := newTestBot(s)
	ctx := context.Background()

	b.Handle(ctx, msg(1, buttonInternational))
	if len(s.calls) != 0 {
		t.Fatal("mode button must not search")
	}
	if got := m.texts(); len(got) != 1 || got[0] != prompts[news.ModeInternational] {
		t.Errorf("prompt = %v", got)
	}

	b.Handle(ctx, msg(1, "регуляторная песочница"))
	if c := s.lastCall(); c.mode != news.ModeInternational || c.query != "регуляторная песочница" {
		t.Errorf("search call = %+v", c)
	}

	// other chats keep their own mode
	b.Handle(ctx, msg(2, "регуляторная песочница"))
	if c := s.lastCall(); c.mode != news.ModeQuick {
		t.Errorf("other chat mode = %s, want quick", c.mode)
	}
}

func TestHandle_FreshButtonSearchesImmediately(t *testing.T) {
	s := &fakeSearcher{records: []news.Record{record(1, news.TagRegional)}}
	b, m := newTestBot(s)
	b.Handle(context.Background(), msg(1, buttonFresh))

	if c := s.lastCall(); c.mode != news.ModeFresh || c.query != "" {
		t.Errorf("search call = %+v", c)
	}
	texts := m.texts()
	if len(texts) != 2 || texts[0] != searchingFreshText || !strings.HasPrefix(texts[1], "⚡ Самые свежие новости:") {
		t.Errorf("texts = %q", texts)
	}

	// fresh is one-shot: free text afterwards uses the default mode
	b.Handle(context.Background(), msg(1, "финтех"))
	if c := s.lastCall(); c.mode != news.ModeQuick {
		t.Errorf("mode after fresh = %s", c.mode)
	}
}

func TestHandle_InternationalHintWithoutMode(t *testing.T) {
	s := &fakeSearcher{}
	b, _ := newTestBot(s)
	b.Handle(context.Background(), msg(1, "Russia fintech regulation"))
	if c := s.lastCall(); c.mode != news.ModeInternational {
		t.Errorf("mode = %s, want international", c.mode)
	}

	b.Handle(context.Background(), msg(2, buttonRegional))
	b.Handle(context.Background(), msg(2, "Russia fintech regulation"))
	if c := s.lastCall(); c.mode != news.ModeRegional {
		t.Errorf("explicit mode must win over hints, got %s", c.mode)
	}
}

func TestHandle_NothingFoundAndFailureAreDistinct(t *testing.T) {
	empty := &fakeSearcher{records: []news.Record{}}
	b, m := newTestBot(empty)
	b.Handle(context.Background(), msg(1, "ничего"))
	texts := m.texts()
	if last := texts[len(texts)-1]; !strings.Contains(last, "не найдено новостей") {
		t.Errorf("empty result message = %q", last)
	}

	failing := &fakeSearcher{err: errors.New("parser exploded at <div>")}
	b, m = newTestBot(failing)
	b.Handle(context.Background(), msg(1, "что-то"))
	texts = m.texts()
	last := texts[len(texts)-1]
	if last != searchFailedText {
		t.Errorf("failure message = %q", last)
	}
	for _, txt := range texts {
		if strings.Contains(txt, "exploded") || strings.Contains(txt, "<div>") {
			t.Errorf("raw error leaked to user: %q", txt)
		}
	}
}

func TestHandle_PanicIsRecovered(t *testing.T) {
	b, m := newTestBot(&fakeSearcher{panics: true})
	b.Handle(context.Background(), msg(1, "песочница"))
	texts := m.texts()
	if texts[len(texts)-1] != searchFailedText {
		t.Errorf("texts = %q", texts)
	}
}

func TestHandle_UnknownCommand(t *testing.T) {
	s := &fakeSearcher{}
	b, m := newTestBot(s)
	b.Handle(context.Background(), msg(1, "/settings"))
	if len(s.calls) != 0 || m.texts()[0] != unknownCommandText {
		t.Errorf("calls = %v, texts = %v", s.calls, m.texts())
	}
}

func TestHandle_NewQueryCancelsPrevious(t *testing.T) {
	s := &fakeSearcher{block: make(chan struct{}), records: []news.Record{record(1, news.TagRegional)}}
	b, m := newTestBot(s)
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		b.Handle(ctx, msg(1, "первый запрос"))
		close(done)
	}()
	waitFor(t, func() bool { return len(s.lastCall().query) > 0 })

	s.mu.Lock()
	s.block = nil
	s.mu.Unlock()
	b.Handle(ctx, msg(1, "второй запрос"))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("first search was not cancelled")
	}

	for _, txt := range m.texts() {
		if txt == searchFailedText {
			t.Error("superseded search must not report a failure")
		}
		if strings.Contains(txt, "Результаты поиска по 'первый запрос'") {
			t.Error("superseded search must not answer")
		}
	}
}

func TestRun_PollsAndAdvancesOffset(t *testing.T) {
	s := &fakeSearcher{records: []news.Record{}}
	b, m := newTestBot(s)
	m.updates = [][]telegram.Update{
		{
			{UpdateID: 10, Message: msg(1, "/start")},
			{UpdateID: 11},
		},
		{
			{UpdateID: 12, Message: msg(1, "/help")},
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- b.Run(ctx) }()

	waitFor(t, func() bool { return len(m.texts()) == 2 })
	cancel()
	if err := <-errCh; err != nil {
		t.Fatalf("Run: %v", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.offsets) < 3 || m.offsets[0] != 0 || m.offsets[1] != 12 || m.offsets[2] != 13 {
		t.Errorf("offsets = %v, want 0, 12, 13", m.offsets)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}
