package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kjannette/gold-monitor-backend/internal/httputil"
)

const DefaultBotName = "GoldPriceMonitor"

// Sender posts alert text to a Slack or Discord webhook. With no URL it
// only logs.
type Sender struct {
	webhookURL string
	botName    string
	httpClient *http.Client
	retry      httputil.RetryConfig
	log        logrus.FieldLogger
}

type Option func(*Sender)

func WithRetry(cfg httputil.RetryConfig) Option {
	return func(s *Sender) { s.retry = cfg }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Sender) { s.log = l }
}

func NewSender(webhookURL, botName string, opts ...Option) *Sender {
	if botName == "" {
		botName = DefaultBotName
	}
	s := &Sender{
		webhookURL: webhookURL,
		botName:    botName,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		retry: httputil.RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   1 * time.Second,
			MaxDelay:    5 * time.Second,
		},
		log: logrus.StandardLogger(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.retry.Logger == nil {
		s.retry.Logger = s.log
	}
	return s
}

// Send delivers msg in the background of the caller's flow: failures are
// logged, never returned.
func (s *Sender) Send(msg string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.SendContext(ctx, msg); err != nil {
		s.log.WithError(err).Error("Failed to send notification after retries")
	}
}

func (s *Sender) SendContext(ctx context.Context, msg string) error {
	formatted := fmt.Sprintf("[%s] %s", s.botName, msg)
	s.log.WithField("notifier", s.botName).Info(msg)

	if s.webhookURL == "" {
		return nil
	}

	body, err := json.Marshal(s.formatPayload(formatted))
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	resp, err := httputil.Do(ctx, s.httpClient, s.retry, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook rejected notification: HTTP %d", resp.StatusCode)
	}
	return nil
}

func (s *Sender) formatPayload(msg string) map[string]string {
	if strings.Contains(s.webhookURL, "discord") {
		return map[string]string{
			"content":  msg,
			"username": s.botName,
		}
	}
	return map[string]string{
		"text":     fmt.Sprintf("`%s`", msg),
		"username": s.botName,
	}
}

func (s *Sender) Enabled() bool {
	return s.webhookURL != ""
}
