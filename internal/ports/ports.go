package ports

import (
	"context"
	"time"

	"NewsRelay/internal/domain"
)

// LinkCollector enumerates candidate article links from the paginated index.
type LinkCollector interface {
	Collect(ctx context.Context) ([]domain.CandidateLink, error)
}

// MetaFetcher loads a single article page and extracts its metadata.
type MetaFetcher interface {
	FetchMeta(ctx context.Context, articleURL string) (domain.ArticleMeta, error)
}

// PostedStore remembers every URL examined to conclusion.
type PostedStore interface {
	Init(ctx context.Context) error
	Contains(ctx context.Context, url string) (bool, error)
	Record(ctx context.Context, url, title, tag string) error
}

// Publisher delivers formatted messages to the channel.
type Publisher interface {
	SendPhoto(ctx context.Context, msg domain.FormattedMessage) error
	SendText(ctx context.Context, msg domain.FormattedMessage) error
}

// Formatter renders an article into a channel-ready message.
type Formatter interface {
	Message(articleURL, title, tag string, publishedAt *time.Time, imageURL string) domain.FormattedMessage
}

// Tagger derives the category tag from an article URL.
type Tagger interface {
	Tag(articleURL string) string
}
