// Package headlines reads the Federal Reserve's monetary policy press
// release feed for the dashboard sidebar.
package headlines

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/seenimoa/yieldcharts/internal/config"
	"github.com/seenimoa/yieldcharts/internal/infra"
	"github.com/seenimoa/yieldcharts/internal/logging"
	"github.com/seenimoa/yieldcharts/pkg/models"
)

// cacheTTL bounds how often the feed is fetched.
const cacheTTL = 15 * time.Minute

const maxSummary = 280

// Source fetches and caches the feed.
type Source struct {
	feedURL string
	limit   int
	enabled bool
	parser  *gofeed.Parser
	client  *http.Client
	cache   *infra.Cache[[]models.Headline]
	limiter *infra.RateLimiter
	logger  *slog.Logger
}

// New creates a Source from cfg.
func New(cfg config.HeadlinesConfig, logger *slog.Logger) *Source {
	logger = logging.OrDefault(logger)
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Source{
		feedURL: cfg.FeedURL,
		limit:   cfg.Limit,
		enabled: cfg.Enabled && cfg.FeedURL != "",
		parser:  gofeed.NewParser(),
		client:  &http.Client{Timeout: timeout},
		cache:   infra.NewCache[[]models.Headline](cacheTTL),
		limiter: infra.NewRateLimiter(30),
		logger:  logger,
	}
}

// Enabled reports whether headlines are configured.
func (s *Source) Enabled() bool { return s.enabled }

// Latest returns up to limit headlines, newest first. A non-positive limit
// uses the configured one.
func (s *Source) Latest(ctx context.Context, limit int) ([]models.Headline, error) {
	if !s.enabled {
		return nil, nil
	}
	if limit <= 0 {
		limit = s.limit
	}

	all, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	out := make([]models.Headline, len(all))
	copy(out, all)
	return out, nil
}

// Invalidate drops the cached feed so the next call fetches it again.
func (s *Source) Invalidate() { s.cache.Invalidate(s.feedURL) }

// LatestOrEmpty is Latest with failures logged instead of returned; the
// dashboard renders without headlines rather than failing.
func (s *Source) LatestOrEmpty(ctx context.Context, limit int) []models.Headline {
	items, err := s.Latest(ctx, limit)
	if err != nil {
		s.logger.Warn("headlines unavailable", "feed", s.feedURL, "error", err)
		return nil
	}
	return items
}

func (s *Source) fetch(ctx context.Context) ([]models.Headline, error) {
	return s.cache.Load(ctx, s.feedURL, s.download)
}

func (s *Source) download(ctx context.Context) ([]models.Headline, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, _, err := infra.DoGetWith(ctx, s.client, s.feedURL, map[string]string{
		"Accept": "application/rss+xml, application/atom+xml, application/xml;q=0.9",
	})
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer body.Close()

	feed, err := s.parser.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", s.feedURL, err)
	}

	items := make([]models.Headline, 0, len(feed.Items))
	for _, item := range feed.Items {
		h := models.Headline{
			Title:   strings.TrimSpace(item.Title),
			URL:     item.Link,
			Summary: truncate(cleanHTML(item.Description), maxSummary),
		}
		if item.PublishedParsed != nil {
			h.PublishedAt = item.PublishedParsed.UTC()
		} else if item.UpdatedParsed != nil {
			h.PublishedAt = item.UpdatedParsed.UTC()
		}
		items = append(items, h)
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].PublishedAt.After(items[j].PublishedAt)
	})

	s.logger.Debug("headlines fetched", "feed", s.feedURL, "count", len(items))
	return items, nil
}

// cleanHTML strips HTML tags from a string using goquery.
func cleanHTML(s string) string {
	if s == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<body>" + s + "</body>"))
	if err != nil {
		return s
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n])) + "..."
}
