package googleapi

import (
	"context"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	defaultMaxRetries = 3
	defaultBaseDelay  = 500 * time.Millisecond
	maxRetryDelay     = 30 * time.Second
)

// RetryTransport retries 429 and 5xx responses with exponential backoff,
// honoring Retry-After. Requests whose body cannot be replayed are sent once.
type RetryTransport struct {
	Base       http.RoundTripper
	MaxRetries int
	BaseDelay  time.Duration

	sleep func(ctx context.Context, d time.Duration) error
}

func NewRetryTransport(base http.RoundTripper) *RetryTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &RetryTransport{
		Base:       base,
		MaxRetries: defaultMaxRetries,
		BaseDelay:  defaultBaseDelay,
		sleep:      sleepCtx,
	}
}

func (t *RetryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		if attempt > 0 && req.Body != nil && req.Body != http.NoBody {
			body, err := req.GetBody()
			if err != nil {
				return nil, err
			}
			req = req.Clone(req.Context())
			req.Body = body
		}

		resp, err := t.Base.RoundTrip(req)
		if err != nil {
			return nil, err
		}
		if !retryableStatus(resp.StatusCode) || attempt >= t.MaxRetries || !replayable(req) {
			return resp, nil
		}

		delay := t.delay(attempt, resp.Header.Get("Retry-After"))
		slog.Debug("retrying google api request", "status", resp.StatusCode, "attempt", attempt+1, "delay", delay, "url", req.URL.Redacted())
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		_ = resp.Body.Close()

		sleep := t.sleep
		if sleep == nil {
			sleep = sleepCtx
		}
		if err := sleep(req.Context(), delay); err != nil {
			return nil, err
		}
	}
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

func replayable(req *http.Request) bool {
	return req.Body == nil || req.Body == http.NoBody || req.GetBody != nil
}

func (t *RetryTransport) delay(attempt int, retryAfter string) time.Duration {
	if s := strings.TrimSpace(retryAfter); s != "" {
		if secs, err := strconv.Atoi(s); err == nil && secs >= 0 {
			return min(time.Duration(secs)*time.Second, maxRetryDelay)
		}
		if at, err := http.ParseTime(s); err == nil {
			return min(max(time.Until(at), 0), maxRetryDelay)
		}
	}
	base := t.BaseDelay
	if base <= 0 {
		base = defaultBaseDelay
	}
	d := base << attempt
	d += time.Duration(rand.Int64N(int64(base/2) + 1))
	return min(d, maxRetryDelay)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
