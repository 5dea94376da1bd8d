package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/doc-outline/pkg/utils"
)

// RetryPolicy controls FetchWithRetry backoff
type RetryPolicy struct {
	MaxRetries        int
	InitialRetryDelay time.Duration
	MaxRetryDelay     time.Duration
}

// Fetcher performs HTTP requests with retry, using an underlying http.Client
type Fetcher struct {
	client *http.Client
	policy RetryPolicy
	log    *logrus.Entry
}

// NewFetcher creates a new Fetcher instance
func NewFetcher(client *http.Client, policy RetryPolicy, log *logrus.Entry) *Fetcher {
	return &Fetcher{
		client: client,
		policy: policy,
		log:    log,
	}
}

// FetchWithRetry performs req, retrying network errors, 5xx and 429 with
// exponential backoff and +/-10% jitter. Other 4xx and non-2xx statuses return
// immediately together with the response; the caller must close its body.
func (f *Fetcher) FetchWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	var lastErr error
	reqLog := f.log.WithField("url", req.URL.String())
	maxRetries := f.policy.MaxRetries

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return nil, fmt.Errorf("context done before attempt %d: %w (last error: %w)", attempt, err, lastErr)
			}
			return nil, fmt.Errorf("context cancelled before first attempt: %w", err)
		}

		if attempt > 0 {
			delay := f.backoff(attempt)
			reqLog.WithFields(logrus.Fields{"attempt": attempt, "max_retries": maxRetries, "delay": delay}).Warn("Retrying request...")

			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				if lastErr != nil {
					return nil, fmt.Errorf("context done during retry delay: %w (last error: %w)", ctx.Err(), lastErr)
				}
				return nil, fmt.Errorf("context cancelled during retry delay: %w", ctx.Err())
			}
		}

		resp, err := f.client.Do(req.WithContext(ctx))
		if err != nil {
			if resp != nil {
				drainAndClose(resp)
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			reqLog.WithField("attempt", attempt).Warnf("Network error: %v", err)
			lastErr = err
			continue
		}

		statusCode := resp.StatusCode
		resLog := reqLog.WithFields(logrus.Fields{"status_code": statusCode, "attempt": attempt})

		switch {
		case statusCode >= 200 && statusCode < 300:
			resLog.Debug("Successfully fetched")
			return resp, nil

		case statusCode >= 500:
			resLog.Warn("Server error, retrying...")
			lastErr = fmt.Errorf("%w: status %d %s", utils.ErrServerHTTPError, statusCode, resp.Status)
			drainAndClose(resp)

		case statusCode == http.StatusTooManyRequests:
			resLog.Warn("Received 429 Too Many Requests, retrying...")
			lastErr = fmt.Errorf("%w: status %d %s", utils.ErrClientHTTPError, statusCode, resp.Status)
			drainAndClose(resp)

		case statusCode >= 400:
			resLog.Warn("Client error (4xx), not retrying")
			return resp, fmt.Errorf("%w: status %d %s", utils.ErrClientHTTPError, statusCode, resp.Status)

		default:
			resLog.Warnf("Non-retryable/unexpected status: %d", statusCode)
			return resp, fmt.Errorf("%w: status %d %s", utils.ErrOtherHTTPError, statusCode, resp.Status)
		}
	}

	reqLog.Errorf("All %d fetch attempts failed. Last error: %v", maxRetries+1, lastErr)
	if lastErr == nil {
		return nil, utils.ErrRetryFailed
	}
	return nil, fmt.Errorf("%w: %w", utils.ErrRetryFailed, lastErr)
}

// backoff returns initial * 2^(attempt-1), capped at the max delay, with +/-10% jitter
func (f *Fetcher) backoff(attempt int) time.Duration {
	delay := time.Duration(float64(f.policy.InitialRetryDelay) * math.Pow(2, float64(attempt-1)))
	if delay <= 0 || (f.policy.MaxRetryDelay > 0 && delay > f.policy.MaxRetryDelay) {
		delay = f.policy.MaxRetryDelay
	}
	if delay <= 0 {
		return 0
	}
	return withJitter(delay)
}

// withJitter spreads d by +/-10%
func withJitter(d time.Duration) time.Duration {
	spread := int64(d) / 5
	if spread <= 0 {
		return d
	}
	out := d + time.Duration(rand.Int63n(spread)) - d/10
	if out < 0 {
		return 0
	}
	return out
}

func drainAndClose(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
