package notifications

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"

	"github.com/kjannette/gold-monitor-backend/internal/httputil"
)

var fastRetry = httputil.RetryConfig{MaxAttempts: 3, BaseDelay: 5 * time.Millisecond, MaxDelay: 20 * time.Millisecond}

func quietSender(url, name string) *Sender {
	log, _ := test.NewNullLogger()
	return NewSender(url, name, WithLogger(log), WithRetry(fastRetry))
}

func TestSend_NoWebhook(t *testing.T) {
	s := quietSender("", "TestBot")
	if s.Enabled() {
		t.Fatal("should not be enabled with empty URL")
	}
	if err := s.SendContext(context.Background(), "hello from test"); err != nil {
		t.Fatalf("log-only send should not fail: %v", err)
	}
	t.Log("Send with no webhook: OK (log only)")
}

func TestSend_SlackFormat(t *testing.T) {
	var received map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &received)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := quietSender(srv.URL, "TestBot")
	if !s.Enabled() {
		t.Fatal("should be enabled")
	}

	s.Send("Gold alert: price $2105.00 above $2100.00")

	if received["username"] != "TestBot" {
		t.Fatalf("username: got %s", received["username"])
	}
	if received["text"] != "`[TestBot] Gold alert: price $2105.00 above $2100.00`" {
		t.Fatalf("text: got %q", received["text"])
	}
	t.Logf("Slack payload: %+v", received)
}

func TestSend_DiscordFormat(t *testing.T) {
	var received map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &received)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	// URL containing "discord" triggers Discord format
	s := quietSender(srv.URL+"/discord/webhook", "GoldBot")
	s.Send("price moved 1.20% (threshold: ±1.00%)")

	if received["content"] == "" {
		t.Fatal("content should not be empty for Discord")
	}
	if received["username"] != "GoldBot" {
		t.Fatalf("username: got %s", received["username"])
	}
	if _, hasText := received["text"]; hasText {
		t.Fatal("Discord payload should not have 'text' field")
	}
	t.Logf("Discord payload: %+v", received)
}

func TestSend_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := quietSender(srv.URL, "TestBot")
	if err := s.SendContext(context.Background(), "retry me"); err != nil {
		t.Fatalf("expected success on third attempt, got %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestSend_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	s := quietSender(srv.URL, "TestBot")
	if err := s.SendContext(context.Background(), "nobody home"); err == nil {
		t.Fatal("expected error for 404")
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single attempt, got %d", calls.Load())
	}
}

func TestSend_WebhookError(t *testing.T) {
	s := quietSender("http://localhost:1/bogus", "TestBot")
	// Should not panic, just log the error
	s.Send("this will fail gracefully")
	t.Log("Webhook error handled gracefully")
}

func TestDefaultBotName(t *testing.T) {
	s := NewSender("", "")
	if s.botName != DefaultBotName {
		t.Fatalf("expected default bot name, got %s", s.botName)
	}
}
