package parser

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/samber/lo"

	"NewsRelay/internal/domain"
	"NewsRelay/internal/ports"
)

const maxArticleBytes = 8 << 20

// ArticleFetcher downloads an article page once and runs the extraction chains on it.
type ArticleFetcher struct {
	client    *http.Client
	userAgent string
	logger    *slog.Logger
}

var _ ports.MetaFetcher = (*ArticleFetcher)(nil)

// NewArticleFetcher wires an HTTP client; nil means a client with a 30s timeout.
func NewArticleFetcher(client *http.Client, userAgent string, log *slog.Logger) *ArticleFetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &ArticleFetcher{client: client, userAgent: userAgent, logger: log}
}

// FetchMeta returns transport and HTTP status failures as errors. Fields
// that cannot be extracted are left empty.
func (f *ArticleFetcher) FetchMeta(ctx context.Context, articleURL string) (domain.ArticleMeta, error) {
	doc, err := f.fetchDocument(ctx, articleURL)
	if err != nil {
		return domain.ArticleMeta{}, err
	}

	meta, sources := extractMeta(doc)
	f.debug("article meta extracted",
		"url", articleURL,
		"date_source", sources.date,
		"image_source", sources.image,
		"title_source", sources.title,
	)
	return meta, nil
}

// metaSources names the strategy that produced each field; empty when none did.
type metaSources struct {
	date  string
	image string
	title string
}

// ExtractMeta runs the date, image and title chains over a parsed document.
func ExtractMeta(doc *goquery.Document) domain.ArticleMeta {
	meta, _ := extractMeta(doc)
	return meta
}

func extractMeta(doc *goquery.Document) (domain.ArticleMeta, metaSources) {
	var (
		meta    domain.ArticleMeta
		sources metaSources
	)

	if published, name, ok := DateChain.Extract(doc); ok {
		meta.PublishedAt = lo.ToPtr(published)
		sources.date = name
	}
	meta.ImageURL, sources.image, _ = ImageChain.Extract(doc)
	meta.Title, sources.title, _ = TitleChain.Extract(doc)

	return meta, sources
}

func (f *ArticleFetcher) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request article: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("article %s returned %s", pageURL, resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxArticleBytes))
	if err != nil {
		return nil, fmt.Errorf("parse article: %w", err)
	}

	return doc, nil
}

func (f *ArticleFetcher) debug(msg string, args ...any) {
	if f.logger != nil {
		f.logger.Debug(msg, args...)
	}
}
