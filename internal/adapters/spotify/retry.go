package spotify

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
)

const (
	defaultMaxRetries = 3
	defaultBackoff    = 500 * time.Millisecond
)

// RetryConfig controls the transport retry policy.
type RetryConfig struct {
	MaxRetries int           `koanf:"max_retries" validate:"gte=1,lte=10"`
	Backoff    time.Duration `koanf:"backoff"`
}

// DefaultRetryConfig returns 3 attempts with a 500ms exponential base.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxRetries: defaultMaxRetries, Backoff: defaultBackoff}
}

// retryTransport retries 429 and 5xx responses and transport errors,
// honouring Retry-After when the server sends one.
type retryTransport struct {
	base   http.RoundTripper
	cfg    RetryConfig
	logger *zap.Logger
}

func newRetryTransport(base http.RoundTripper, cfg RetryConfig, logger *zap.Logger) *retryTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = defaultBackoff
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &retryTransport{base: base, cfg: cfg, logger: logger}
}

// RoundTrip implements http.RoundTripper.
func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	getBody := req.GetBody
	if req.Body != nil && req.Body != http.NoBody && getBody == nil {
		bodyBytes, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, fmt.Errorf("spotify adapter: read request body: %w", err)
		}
		_ = req.Body.Close()
		getBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(bodyBytes)), nil
		}
	}

	ctx := req.Context()
	maxRetries := t.cfg.MaxRetries
	for attempt := 0; attempt < maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("spotify adapter: request canceled: %w", err)
		}

		r := req.Clone(ctx)
		if getBody != nil {
			body, err := getBody()
			if err != nil {
				return nil, fmt.Errorf("spotify adapter: reset request body: %w", err)
			}
			r.Body = body
		}

		resp, err := t.base.RoundTrip(r)
		retryAfter, retry := shouldRetry(resp, err)
		if !retry {
			return resp, err
		}

		attemptNum := attempt + 1
		if err != nil {
			t.logger.Warn("spotify adapter: retrying after error",
				zap.Int("attempt", attemptNum),
				zap.Int("max", maxRetries),
				zap.Error(err))
		} else {
			t.logger.Warn("spotify adapter: retrying after status",
				zap.Int("attempt", attemptNum),
				zap.Int("max", maxRetries),
				zap.Int("status", resp.StatusCode),
				zap.Duration("retry_after", retryAfter))
		}

		if attempt == maxRetries-1 {
			if err != nil {
				return nil, fmt.Errorf("spotify adapter: request failed after %d attempts: %w", maxRetries, err)
			}
			// Hand the last response to the caller so the client can decode
			// the API error body.
			return resp, nil
		}
		if resp != nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
		}

		backoff := t.cfg.Backoff * time.Duration(1<<attempt)
		if retryAfter > 0 {
			backoff = retryAfter
		}

		if err := sleepWithContext(ctx, backoff); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("spotify adapter: request failed after %d attempts", maxRetries)
}

func shouldRetry(resp *http.Response, err error) (time.Duration, bool) {
	if err != nil {
		return 0, true
	}
	if resp == nil {
		return 0, false
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
		return parseRetryAfter(resp), true
	}

	return 0, false
}

func parseRetryAfter(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}

	retryAfter := resp.Header.Get("Retry-After")
	if retryAfter == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	if when, err := http.ParseTime(retryAfter); err == nil {
		until := time.Until(when)
		if until > 0 {
			return until
		}
	}

	return 0
}
