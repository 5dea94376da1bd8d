package source

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/temoto/robotstxt"
)

// RobotsChecker fetches, caches and evaluates robots.txt per host
type RobotsChecker struct {
	fetcher   *Fetcher
	limiter   *RateLimiter
	userAgent string
	mu        sync.Mutex
	cache     map[string]*robotstxt.RobotsData // host -> parsed data (nil = allow all)
	log       *logrus.Entry
}

// NewRobotsChecker creates a RobotsChecker. userAgent is sent when fetching robots.txt itself.
func NewRobotsChecker(fetcher *Fetcher, limiter *RateLimiter, userAgent string, log *logrus.Entry) *RobotsChecker {
	return &RobotsChecker{
		fetcher:   fetcher,
		limiter:   limiter,
		userAgent: userAgent,
		cache:     make(map[string]*robotstxt.RobotsData),
		log:       log,
	}
}

// Allowed reports whether userAgent may fetch target. A robots.txt that is
// missing, unreachable or unparsable allows everything.
func (rc *RobotsChecker) Allowed(ctx context.Context, target *url.URL, userAgent string) bool {
	data := rc.robotsData(ctx, target)
	if data == nil {
		return true
	}
	return data.TestAgent(target.RequestURI(), userAgent)
}

func (rc *RobotsChecker) robotsData(ctx context.Context, target *url.URL) *robotstxt.RobotsData {
	host := target.Host

	rc.mu.Lock()
	data, found := rc.cache[host]
	rc.mu.Unlock()
	if found {
		return data
	}

	data = rc.fetch(ctx, target)

	rc.mu.Lock()
	rc.cache[host] = data
	rc.mu.Unlock()
	return data
}

func (rc *RobotsChecker) fetch(ctx context.Context, target *url.URL) *robotstxt.RobotsData {
	robotsURL := (&url.URL{Scheme: target.Scheme, Host: target.Host, Path: "/robots.txt"}).String()
	robotsLog := rc.log.WithField("robots_url", robotsURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		robotsLog.Warnf("Error creating robots.txt request: %v", err)
		return nil
	}
	req.Header.Set("User-Agent", rc.userAgent)

	rc.limiter.ApplyDelay(ctx, target.Hostname(), 0)
	resp, err := rc.fetcher.FetchWithRetry(ctx, req)
	rc.limiter.UpdateLastRequestTime(target.Hostname())
	if err != nil {
		if resp != nil {
			// 4xx: robots.txt absent, everything allowed
			drainAndClose(resp)
		}
		robotsLog.Debugf("robots.txt unavailable, allowing all: %v", err)
		return nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		robotsLog.Warnf("Error reading robots.txt: %v", err)
		return nil
	}

	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		robotsLog.Warnf("Error parsing robots.txt: %v", err)
		return nil
	}
	robotsLog.Debug("Fetched and parsed robots.txt")
	return data
}
