package scraper

import (
	"testing"
	"time"
)

var fixedNow = time.Date(2024, 3, 2, 12, 0, 0, 0, time.UTC)

const yandexPage = `<html><body>
<article class="mg-card">
  <a class="mg-card__link" href="https://yandex.ru/news/story/x?cl4url=www.rbc.ru%2Feconomics%2F01%2F03%2F2024%2F65e1">
    <h2 class="mg-card__title">Регуляторная песочница  для ИИ заработала</h2>
  </a>
  <div class="mg-card-source">
    <span class="mg-card-source__source"><a href="#">РБК</a></span>
    <span class="mg-card-source__time">5 мин. назад</span>
  </div>
</article>
<article class="mg-card">
  <h2 class="mg-card__title">Card without link</h2>
</article>
<article class="mg-card">
  <a class="mg-card__link" href="/news/story/relative">Относительная ссылка на сюжет</a>
  <span class="mg-card-source__time">14:05</span>
</article>
</body></html>`

func TestYandexNews(t *testing.T) {
	e := &YandexNews{Base: "https://yandex.ru", Now: func() time.Time { return fixedNow }}
	got, err := e.Extract(yandexPage, "песочница")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d: %+v", len(got), got)
	}
	if got[0].URL != "https://www.rbc.ru/economics/01/03/2024/65e1" {
		t.Errorf("cl4url not unwrapped: %s", got[0].URL)
	}
	if got[0].Title != "Регуляторная песочница для ИИ заработала" || got[0].Source != "РБК" {
		t.Errorf("unexpected record %+v", got[0])
	}
	if !got[0].Published.Equal(fixedNow.Add(-5 * time.Minute)) {
		t.Errorf("published = %v", got[0].Published)
	}
	if got[1].URL != "https://yandex.ru/news/story/relative" || got[1].Source != "" {
		t.Errorf("relative link not resolved: %+v", got[1])
	}
	if got[1].Published.Hour() != 14 || got[1].Published.Minute() != 5 {
		t.Errorf("clock label not parsed: %v", got[1].Published)
	}
}

const bingPage = `<html><body>
<div class="news-card newsitem cardcommon" data-title="Russia widens fintech sandbox" data-url="https://www.reuters.com/markets/2024/03/01/russia-sandbox" data-author="Reuters">
  <a class="title" href="https://www.reuters.com/markets/2024/03/01/russia-sandbox">Russia widens fintech sandbox</a>
  <span tabindex="0" class="news_time" aria-label="2 hours ago">2h</span>
</div>
<div class="news-card newsitem cardcommon">
  <a class="title" href="/news/apiclick.aspx?url=https%3a%2f%2fwww.ft.com%2fcontent%2fabc">Sandbox regimes spread across Europe</a>
  <div class="source"><a href="#">Financial Times</a></div>
</div>
<div class="news-card newsitem cardcommon">
  <span>no link here</span>
</div>
</body></html>`

func TestBingNews(t *testing.T) {
	e := &BingNews{Base: "https://www.bing.com", Now: func() time.Time { return fixedNow }}
	got, err := e.Extract(bingPage, "sandbox")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d: %+v", len(got), got)
	}
	if got[0].Source != "Reuters" || !got[0].Published.Equal(fixedNow.Add(-2*time.Hour)) {
		t.Errorf("unexpected first record %+v", got[0])
	}
	if got[1].URL != "https://www.ft.com/content/abc" || got[1].Source != "Financial Times" {
		t.Errorf("unexpected second record %+v", got[1])
	}
}

func TestBingNewsTileFallback(t *testing.T) {
	page := `<div class="tile"><h3><a href="https://www.rbc.ru/economics/20240301/1">ЭПР продлен</a></h3></div>`
	got, err := (&BingNews{Base: "https://www.bing.com"}).Extract(page, "")
	if err != nil || len(got) != 1 || got[0].Title != "ЭПР продлен" {
		t.Errorf("tile layout not parsed: %+v, %v", got, err)
	}
}

const googlePage = `<html><body>
<article>
  <h3><a href="./articles/CBMiXmh0dHBz?hl=en-US">Russia sandbox rules explained</a></h3>
  <div class="vr1PYe">Bloomberg</div>
  <time datetime="2024-03-01T08:00:00Z">Yesterday</time>
</article>
<article><div>empty card</div></article>
</body></html>`

func TestGoogleNews(t *testing.T) {
	got, err := (&GoogleNews{Base: "https://news.google.com"}).Extract(googlePage, "")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 record, got %d", len(got))
	}
	if got[0].URL != "https://news.google.com/articles/CBMiXmh0dHBz?hl=en-US" || got[0].Source != "Bloomberg" {
		t.Errorf("unexpected record %+v", got[0])
	}
	if got[0].Published.IsZero() {
		t.Error("datetime attribute not parsed")
	}
}

const ddgPage = `<html><body>
<div class="result results_links web-result">
  <h2 class="result__title"><a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fwww.example.com%2Fsandbox%2F2024&amp;rut=abc">Sandbox news in <b>Russia</b></a></h2>
  <a class="result__snippet" href="#">snippet</a>
</div>
<div class="result result--ad">
  <a class="result__a" href="https://ads.example.com/x">Ad</a>
</div>
<div class="result"><a class="result__a" href="">No href</a></div>
</body></html>`

func TestDuckDuckGo(t *testing.T) {
	got, err := (&DuckDuckGo{Base: "https://duckduckgo.com"}).Extract(ddgPage, "")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 record, got %d: %+v", len(got), got)
	}
	if got[0].URL != "https://www.example.com/sandbox/2024" || got[0].Title != "Sandbox news in Russia" {
		t.Errorf("unexpected record %+v", got[0])
	}
}

func TestExtractEmptyDocument(t *testing.T) {
	for _, kind := range []string{KindYandexNews, KindBingNews, KindGoogleNews, KindDuckDuckGo, KindRSS} {
		e, err := New(kind, "https://example.com")
		if err != nil {
			t.Fatalf("New(%s): %v", kind, err)
		}
		if _, err := e.Extract("   ", ""); err == nil {
			t.Errorf("%s: expected error for empty document", kind)
		}
	}
	if _, err := New("altavista", ""); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestParsePublished(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2h", fixedNow.Add(-2 * time.Hour)},
		{"30m", fixedNow.Add(-30 * time.Minute)},
		{"3 дня назад", fixedNow.AddDate(0, 0, -3)},
		{"2 часа назад", fixedNow.Add(-2 * time.Hour)},
		{"вчера в 10:00", fixedNow.AddDate(0, 0, -1)},
		{"2024-03-01", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"oct 7, 2023", time.Date(2023, 10, 7, 0, 0, 0, 0, time.UTC)},
		{"", time.Time{}},
		{"недавно", time.Time{}},
	}
	for _, tt := range tests {
		if got := parsePublished(tt.in, fixedNow); !got.Equal(tt.want) {
			t.Errorf("parsePublished(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
