package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/doc-outline/pkg/config"
	"github.com/Sriram-PR/doc-outline/pkg/models"
	"github.com/Sriram-PR/doc-outline/pkg/toc"
	"github.com/Sriram-PR/doc-outline/pkg/utils"
)

// Loader fetches configured sources and turns them into outlined documents
type Loader struct {
	appCfg  *config.AppConfig
	fetcher *Fetcher
	limiter *RateLimiter
	hosts   *HostSemaphorePool
	robots  *RobotsChecker
	log     *logrus.Entry
}

// NewLoader wires a fetcher, rate limiter and robots checker around client
func NewLoader(appCfg *config.AppConfig, client *http.Client, log *logrus.Entry) *Loader {
	fetcher := NewFetcher(client, RetryPolicy{
		MaxRetries:        appCfg.MaxRetries,
		InitialRetryDelay: appCfg.InitialRetryDelay,
		MaxRetryDelay:     appCfg.MaxRetryDelay,
	}, log)
	limiter := NewRateLimiter(appCfg.DefaultDelayPerHost, log)
	ua := config.GetEffectiveUserAgent(config.SourceConfig{}, *appCfg)
	return &Loader{
		appCfg:  appCfg,
		fetcher: fetcher,
		limiter: limiter,
		hosts:   NewHostSemaphorePool(appCfg.MaxFetchesPerHost, log),
		robots:  NewRobotsChecker(fetcher, limiter, ua, log),
		log:     log,
	}
}

// Load fetches the source and extracts its outline.
// srcCfg is expected to have passed SourceConfig.Validate.
func (l *Loader) Load(ctx context.Context, sourceKey string, srcCfg config.SourceConfig) (*models.Document, error) {
	srcLog := l.log.WithFields(logrus.Fields{"source": sourceKey, "url": srcCfg.URL})

	target, err := url.Parse(srcCfg.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: URL parsing failed for '%s': %v", utils.ErrParsing, srcCfg.URL, err)
	}

	userAgent := config.GetEffectiveUserAgent(srcCfg, *l.appCfg)
	if config.GetEffectiveRespectRobots(srcCfg, *l.appCfg) && !l.robots.Allowed(ctx, target, userAgent) {
		return nil, fmt.Errorf("%w: %s", utils.ErrRobotsDisallowed, srcCfg.URL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srcCfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrRequestCreation, err)
	}
	req.Header.Set("User-Agent", userAgent)
	if srcCfg.Format == config.FormatHTML {
		req.Header.Set("Accept", "text/html,application/xhtml+xml")
	} else {
		req.Header.Set("Accept", "text/markdown,text/plain;q=0.9,*/*;q=0.5")
	}
	for k, v := range srcCfg.Headers {
		req.Header.Set(k, v)
	}

	body, err := l.fetch(ctx, req, target.Hostname(), srcCfg)
	if err != nil {
		return nil, err
	}

	doc := &models.Document{
		SourceKey: sourceKey,
		URL:       srcCfg.URL,
		Title:     srcCfg.Title,
		FetchedAt: time.Now().UTC(),
	}

	switch srcCfg.Format {
	case config.FormatHTML:
		markdown, pageTitle, err := htmlToMarkdown(body, target, config.GetEffectiveContentSelector(srcCfg))
		if err != nil {
			return nil, err
		}
		doc.Markdown = markdown
		if doc.Title == "" {
			doc.Title = pageTitle
		}
	default:
		doc.Markdown = string(body)
	}

	doc.ContentHash = utils.CalculateStringSHA256(doc.Markdown)
	doc.Sections = toc.ExtractSections(doc.Markdown)
	if doc.Title == "" {
		doc.Title = topTitle(doc.Sections)
	}

	srcLog.WithFields(logrus.Fields{"bytes": len(body), "sections": len(doc.Sections)}).Info("Loaded document")
	return doc, nil
}

// fetch performs the request under the host's concurrency and politeness limits
// and returns the size-capped body.
func (l *Loader) fetch(ctx context.Context, req *http.Request, host string, srcCfg config.SourceConfig) ([]byte, error) {
	if err := l.hosts.Acquire(ctx, host); err != nil {
		return nil, fmt.Errorf("waiting for host slot: %w", err)
	}
	defer l.hosts.Release(host)

	l.limiter.ApplyDelay(ctx, host, config.GetEffectiveDelayPerHost(srcCfg, *l.appCfg))
	resp, err := l.fetcher.FetchWithRetry(ctx, req)
	l.limiter.UpdateLastRequestTime(host)
	if err != nil {
		if resp != nil {
			drainAndClose(resp)
		}
		return nil, err
	}
	defer resp.Body.Close()

	return readLimited(resp.Body, config.GetEffectiveMaxDocumentBytes(srcCfg, *l.appCfg))
}

// readLimited reads r fully, failing with ErrDocumentTooLarge past limit bytes (0 = unlimited)
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	if limit > 0 {
		r = io.LimitReader(r, limit+1)
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrResponseBodyRead, err)
	}
	if limit > 0 && int64(len(body)) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", utils.ErrDocumentTooLarge, limit)
	}
	return body, nil
}

// htmlToMarkdown selects the content element and converts it to markdown.
// Returns the markdown and the page <title>.
func htmlToMarkdown(body []byte, base *url.URL, selector string) (string, string, error) {
	page, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", "", fmt.Errorf("%w: HTML parsing failed: %v", utils.ErrParsing, err)
	}
	title := strings.TrimSpace(page.Find("title").First().Text())

	content := page.Find(selector).First()
	if content.Length() == 0 {
		return "", title, fmt.Errorf("%w: '%s'", utils.ErrContentSelector, selector)
	}
	content.Find("script, style, noscript").Remove()

	html, err := goquery.OuterHtml(content)
	if err != nil {
		return "", title, fmt.Errorf("%w: HTML serialization failed: %v", utils.ErrParsing, err)
	}

	converter := md.NewConverter(base.Host, true, nil)
	markdown, err := converter.ConvertString(html)
	if err != nil {
		return "", title, fmt.Errorf("%w: %v", utils.ErrMarkdownConversion, err)
	}
	return strings.TrimSpace(markdown) + "\n", title, nil
}

// topTitle returns the title of the first shallowest heading
func topTitle(sections []toc.Section) string {
	minLevel := toc.MinLevel(sections)
	for _, s := range sections {
		if s.Level == minLevel {
			return s.Title
		}
	}
	return ""
}
