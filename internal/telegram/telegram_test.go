package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/deusflow/sandboxbot/internal/retry"
)

const testToken = "123:secret"

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(testToken,
		WithBaseURL(srv.URL),
		WithHTTPClient(srv.Client()),
		WithRetry(retry.RetryConfig{MaxAttempts: 3, Delay: time.Millisecond}),
	)
}

func TestGetUpdates(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bot"+testToken+"/getUpdates" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["offset"] != float64(42) || body["timeout"] != float64(1) {
			t.Errorf("payload = %v", body)
		}
		_, _ = w.Write([]byte(`{"ok":true,"result":[{"update_id":42,"message":{"message_id":7,"chat":{"id":99,"type":"private"},"date":1714550400,"text":"⚡ Свежие новости"}}]}`))
	})

	updates, err := c.GetUpdates(context.Background(), 42, time.Second)
	if err != nil {
		t.Fatalf("GetUpdates: %v", err)
	}
	if len(updates) != 1 || updates[0].Message == nil {
		t.Fatalf("updates = %+v", updates)
	}
	m := updates[0].Message
	if m.Chat.ID != 99 || m.Text != "⚡ Свежие новости" {
		t.Errorf("message = %+v", m)
	}
}

func TestSendMessage_Payload(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			ChatID      int64                `json:"chat_id"`
			Text        string               `json:"text"`
			ParseMode   string               `json:"parse_mode"`
			NoPreview   bool                 `json:"disable_web_page_preview"`
			ReplyMarkup *ReplyKeyboardMarkup `json:"reply_markup"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Error(err)
			return
		}
		if body.ChatID != 5 || body.Text != "hi" || body.ParseMode != "HTML" || !body.NoPreview {
			t.Errorf("payload = %+v", body)
		}
		if body.ReplyMarkup == nil || len(body.ReplyMarkup.Keyboard) != 2 || body.ReplyMarkup.Keyboard[1][0].Text != "c" {
			t.Errorf("keyboard = %+v", body.ReplyMarkup)
		}
		_, _ = w.Write([]byte(`{"ok":true,"result":{}}`))
	})

	err := c.SendMessage(context.Background(), 5, "hi", SendOptions{
		ParseMode: "HTML",
		Keyboard:  Keyboard([]string{"a", "b"}, []string{"c"}),
	})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
}

func TestSendMessage_RetriesTemporaryErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"ok":false,"error_code":429,"description":"Too Many Requests: retry after 1","parameters":{"retry_after":1}}`))
			return
		}
		_, _ = w.Write([]byte(`{"ok":true,"result":{}}`))
	})

	if err := c.SendMessage(context.Background(), 1, "x", SendOptions{}); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if n := calls.Load(); n != 3 {
		t.Errorf("calls = %d, want 3", n)
	}
}

func TestSendMessage_NoRetryOnBadRequest(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: message is too long"}`))
	})

	err := c.SendMessage(context.Background(), 1, "x", SendOptions{})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.Code != 400 || apiErr.Temporary() {
		t.Errorf("apiErr = %+v", apiErr)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("calls = %d, want 1", n)
	}
}

func TestDeleteWebhookAndGetMe(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/deleteWebhook"):
			_, _ = w.Write([]byte(`{"ok":true,"result":true}`))
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			_, _ = w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"Sandbox","username":"sandbox_bot"}}`))
		default:
			http.NotFound(w, r)
		}
	})

	if err := c.DeleteWebhook(context.Background(), true); err != nil {
		t.Errorf("DeleteWebhook: %v", err)
	}
	u, err := c.GetMe(context.Background())
	if err != nil {
		t.Fatalf("GetMe: %v", err)
	}
	if u.Username != "sandbox_bot" || !u.IsBot {
		t.Errorf("user = %+v", u)
	}
}

func TestErrorsDoNotLeakToken(t *testing.T) {
	c := NewClient(testToken,
		WithBaseURL("http://127.0.0.1:1"),
		WithRetry(retry.RetryConfig{MaxAttempts: 1}),
	)
	err := c.DeleteWebhook(context.Background(), true)
	if err == nil {
		t.Fatal("expected connection error")
	}
	if strings.Contains(err.Error(), "secret") {
		t.Errorf("error leaks token: %v", err)
	}
}

func TestNonJSONErrorStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>bad gateway</html>"))
	})
	_, err := c.GetMe(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadGateway || !apiErr.Temporary() {
		t.Errorf("err = %v", err)
	}
}

func TestGetMe_RetriesUntilTelegramRecovers(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"username":"sandbox_bot"}}`))
	})

	u, err := c.GetMe(context.Background())
	if err != nil {
		t.Fatalf("GetMe: %v", err)
	}
	if u.Username != "sandbox_bot" || calls.Load() != 2 {
		t.Errorf("user = %+v, calls = %d", u, calls.Load())
	}
}

func TestGetMe_InvalidTokenIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":401,"description":"Unauthorized"}`))
	})

	_, err := c.GetMe(context.Background())
	if !IsInvalidToken(err) {
		t.Errorf("err = %v, want invalid token", err)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("calls = %d, want 1", n)
	}
	if IsInvalidToken(&APIError{StatusCode: http.StatusBadGateway}) {
		t.Error("502 is not a token problem")
	}
}
