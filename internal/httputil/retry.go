package httputil

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// RetryConfig is the backoff policy shared by outbound HTTP calls and the
// broker reconnect loop. MaxAttempts <= 0 means the caller's default.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Logger      logrus.FieldLogger
}

var DefaultRetry = RetryConfig{
	MaxAttempts: 3,
	BaseDelay:   1 * time.Second,
	MaxDelay:    10 * time.Second,
}

// SingleAttempt performs one request and never sleeps.
var SingleAttempt = RetryConfig{MaxAttempts: 1}

// Delay returns the wait before retry number attempt (1-based): BaseDelay
// doubled per attempt, capped at MaxDelay.
func (c RetryConfig) Delay(attempt int) time.Duration {
	if attempt < 1 || c.BaseDelay <= 0 {
		return c.BaseDelay
	}
	d := c.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if c.MaxDelay > 0 && d >= c.MaxDelay {
			return c.MaxDelay
		}
	}
	if c.MaxDelay > 0 && d > c.MaxDelay {
		return c.MaxDelay
	}
	return d
}

// Do executes an HTTP request with exponential backoff retry on transport
// errors and 5xx responses. buildReq is called per attempt so request
// bodies can be replayed.
func Do(ctx context.Context, client *http.Client, cfg RetryConfig, buildReq func() (*http.Request, error)) (*http.Response, error) {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultRetry.MaxAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		req, err := buildReq()
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}

		resp, err := client.Do(req)
		if err == nil && resp.StatusCode < 500 {
			return resp, nil
		}

		if err != nil {
			lastErr = err
		} else {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			resp.Body.Close()
			lastErr = fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
		}

		if attempt == cfg.MaxAttempts {
			break
		}

		delay := cfg.Delay(attempt)
		if cfg.Logger != nil {
			cfg.Logger.WithFields(logrus.Fields{
				"attempt": attempt,
				"max":     cfg.MaxAttempts,
				"retryIn": delay.String(),
			}).Warnf("request failed: %v", lastErr)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	if cfg.MaxAttempts == 1 {
		return nil, lastErr
	}
	return nil, fmt.Errorf("all %d attempts failed, last error: %w", cfg.MaxAttempts, lastErr)
}
