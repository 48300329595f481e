package parser

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"NewsRelay/internal/domain"
	"NewsRelay/internal/ports"
)

// IndexOptions configures the listing crawl.
type IndexOptions struct {
	BaseURL     string
	Pattern     ArticlePattern
	Pages       int
	PerPageHint int
	UserAgent   string
	Timeout     time.Duration
}

// IndexCollector walks the paginated news index and gathers article links.
type IndexCollector struct {
	opts   IndexOptions
	logger *slog.Logger
}

var _ ports.LinkCollector = (*IndexCollector)(nil)

// NewIndexCollector applies defaults of one page and a 30s timeout.
func NewIndexCollector(opts IndexOptions, log *slog.Logger) *IndexCollector {
	if opts.Pages < 1 {
		opts.Pages = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &IndexCollector{opts: opts, logger: log}
}

// Collect returns unique article links in discovery order. A page that
// cannot be fetched is skipped; only an invalid base URL is an error.
func (c *IndexCollector) Collect(ctx context.Context) ([]domain.CandidateLink, error) {
	limit := c.opts.Pages * c.opts.PerPageHint
	seen := map[string]struct{}{}
	var links []domain.CandidateLink

	for page := 1; page <= c.opts.Pages; page++ {
		if err := ctx.Err(); err != nil {
			return links, err
		}

		pageURL, err := PageURL(c.opts.BaseURL, page)
		if err != nil {
			return nil, err
		}

		found, err := c.scanPage(pageURL)
		if err != nil {
			c.warn("index page failed", "page", page, "url", pageURL, "error", err)
			continue
		}

		added := 0
		for _, link := range found {
			if _, ok := seen[link.URL]; ok {
				continue
			}
			seen[link.URL] = struct{}{}
			links = append(links, link)
			added++
		}
		c.debug("index page scanned", "page", page, "links", len(found), "new", added, "total", len(links))

		if limit > 0 && len(links) >= limit {
			break
		}
	}

	return links, nil
}

func (c *IndexCollector) scanPage(pageURL string) ([]domain.CandidateLink, error) {
	options := []colly.CollectorOption{colly.AllowURLRevisit()}
	if c.opts.UserAgent != "" {
		options = append(options, colly.UserAgent(c.opts.UserAgent))
	}
	collector := colly.NewCollector(options...)
	collector.SetRequestTimeout(c.opts.Timeout)

	var links []domain.CandidateLink
	collector.OnHTML("a[href]", func(e *colly.HTMLElement) {
		link, ok := c.resolveLink(e.Request.URL, e.Attr("href"))
		if !ok {
			return
		}
		links = append(links, domain.CandidateLink{
			URL:        link,
			TitleGuess: strings.Join(strings.Fields(e.Text), " "),
		})
	})

	if err := collector.Visit(pageURL); err != nil {
		return nil, fmt.Errorf("visit %s: %w", pageURL, err)
	}
	return links, nil
}

// resolveLink keeps same-host links whose path has the article shape.
func (c *IndexCollector) resolveLink(page *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", false
	}
	abs, err := page.Parse(href)
	if err != nil {
		return "", false
	}
	if abs.Host != page.Host || !c.opts.Pattern.Match(abs.Path) {
		return "", false
	}
	return NormalizeURL(abs.String()), true
}

func (c *IndexCollector) debug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}

func (c *IndexCollector) warn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}
