package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/deusflow/sandboxbot/internal/news"
)

func TestRecordFilterStats(t *testing.T) {
	m := New()
	m.RecordFilterStats(news.Stats{Input: 10, SelfRef: 2, Duplicate: 3, Output: 5})
	m.RecordFilterStats(news.Stats{Duplicate: 1})

	if got := testutil.ToFloat64(m.FilterDropped.WithLabelValues("duplicate")); got != 4 {
		t.Errorf("duplicate = %v, want 4", got)
	}
	if got := testutil.ToFloat64(m.FilterDropped.WithLabelValues("self_ref")); got != 2 {
		t.Errorf("self_ref = %v, want 2", got)
	}
	if n := testutil.CollectAndCount(m.FilterDropped); n != 2 {
		t.Errorf("series = %d, zero steps must not create series", n)
	}
}

func TestObserveSearchAndFetch(t *testing.T) {
	m := New()
	m.ObserveSearch(news.ModeFresh, "ok", 120*time.Millisecond)
	m.ObserveSearch(news.ModeFresh, "ok", 80*time.Millisecond)
	m.ObserveFetch("example.ru", "error", time.Second)

	if got := testutil.ToFloat64(m.Searches.WithLabelValues("fresh", "ok")); got != 2 {
		t.Errorf("searches = %v", got)
	}
	if got := testutil.ToFloat64(m.FetchRequests.WithLabelValues("example.ru", "error")); got != 1 {
		t.Errorf("fetches = %v", got)
	}
	if n := testutil.CollectAndCount(m.SearchDuration); n != 1 {
		t.Errorf("duration series = %d", n)
	}
}

func TestNew_SeparateRegistries(t *testing.T) {
	a, b := New(), New()
	a.MessagesSent.WithLabelValues("ok").Inc()
	if got := testutil.ToFloat64(b.MessagesSent.WithLabelValues("ok")); got != 0 {
		t.Errorf("registries share state: %v", got)
	}
}
