package domain

import "time"

// DefaultTag is used when an article URL does not expose a category segment.
const DefaultTag = "news"

// CandidateLink is an article link discovered on the news index.
type CandidateLink struct {
	URL        string
	TitleGuess string
}

// ArticleMeta holds what could be extracted from a single article page.
// Missing values stay at their zero value.
type ArticleMeta struct {
	PublishedAt *time.Time
	ImageURL    string
	Title       string
}

// FormattedMessage is a channel-ready post. Text is already escaped HTML.
type FormattedMessage struct {
	Text      string
	ImageURL  string
	ActionURL string
}

// HasImage reports whether the message should be sent as a photo.
func (m FormattedMessage) HasImage() bool {
	return m.ImageURL != ""
}

// PostedRecord is persisted once per normalized article URL.
type PostedRecord struct {
	URL      string
	Title    string
	Tag      string
	PostedAt time.Time
}

// Disposition enumerates how a candidate was concluded within a run.
type Disposition string

const (
	DispositionFetchFailed Disposition = "fetch_failed"
	DispositionUndated     Disposition = "undated"
	DispositionStale       Disposition = "stale"
)

// RunReport summarises one pipeline execution.
type RunReport struct {
	Collected int
	Fresh     int
	Examined  int
	Posted    int
	Skipped   map[Disposition]int
}

// Skip counts a permanently skipped candidate.
func (r *RunReport) Skip(d Disposition) {
	if r.Skipped == nil {
		r.Skipped = map[Disposition]int{}
	}
	r.Skipped[d]++
}
