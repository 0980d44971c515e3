package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/deusflow/sandboxbot/internal/metrics"
	"github.com/deusflow/sandboxbot/internal/ratelimit"
)

func newTestClient(timeout time.Duration) *Client {
	return New(timeout, WithMetrics(metrics.New()), WithLimiter(ratelimit.NewHostLimiter(0, 1)))
}

func TestFetchOK(t *testing.T) {
	var gotUA, gotLang string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotLang = r.Header.Get("Accept-Language")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html>песочница</html>"))
	}))
	defer srv.Close()

	body, err := newTestClient(time.Second).Fetch(context.Background(), srv.URL, map[string]string{"Accept-Language": "en-US"})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if body != "<html>песочница</html>" {
		t.Errorf("body = %q", body)
	}
	if gotUA != UserAgentChrome {
		t.Errorf("User-Agent = %q", gotUA)
	}
	if gotLang != "en-US" {
		t.Errorf("caller header not applied, Accept-Language = %q", gotLang)
	}
}

func TestFetchDecodesWindows1251(t *testing.T) {
	// "ЭПР" in windows-1251
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=windows-1251")
		_, _ = w.Write([]byte{0xDD, 0xCF, 0xD0})
	}))
	defer srv.Close()

	body, err := newTestClient(time.Second).Fetch(context.Background(), srv.URL, nil)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if body != "ЭПР" {
		t.Errorf("body = %q, want ЭПР", body)
	}
}

func TestFetchErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		check   func(error) bool
	}{
		{
			name:    "server error",
			handler: func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusBadGateway) },
			check: func(err error) bool {
				var se *StatusError
				return errors.As(err, &se) && se.StatusCode == http.StatusBadGateway && se.Temporary()
			},
		},
		{
			name:    "forbidden",
			handler: func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusForbidden) },
			check: func(err error) bool {
				var se *StatusError
				return errors.As(err, &se) && !se.Temporary()
			},
		},
		{
			name:    "empty body",
			handler: func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) },
			check:   func(err error) bool { return errors.Is(err, ErrEmptyBody) },
		},
		{
			name: "timeout",
			handler: func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-r.Context().Done():
				case <-time.After(2 * time.Second):
				}
			},
			check: func(err error) bool { return errors.Is(err, context.DeadlineExceeded) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := newTestClient(100*time.Millisecond).Fetch(context.Background(), srv.URL, nil)
			if err == nil || !tt.check(err) {
				t.Errorf("unexpected error %v", err)
			}
		})
	}
}

func TestFetchLimiterWaitCountsAgainstTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>ok</html>"))
	}))
	defer srv.Close()

	// one request per 10s: the second call would wait far past its timeout
	c := New(100*time.Millisecond, WithMetrics(metrics.New()), WithLimiter(ratelimit.NewHostLimiter(0.1, 1)))
	if _, err := c.Fetch(context.Background(), srv.URL, nil); err != nil {
		t.Fatalf("first fetch: %v", err)
	}

	start := time.Now()
	_, err := c.Fetch(context.Background(), srv.URL, nil)
	if err == nil {
		t.Fatal("expected the rate-limited fetch to fail")
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("rate-limited fetch took %v, want it bounded by the 100ms timeout", elapsed)
	}
}
