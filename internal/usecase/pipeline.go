package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/lo"

	"NewsRelay/internal/domain"
	"NewsRelay/internal/ports"
)

const fallbackPostTitle = "Новость"

// Policy bounds a single run.
type Policy struct {
	MaxPosts int
	Window   time.Duration
	Delay    time.Duration
}

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Collector ports.LinkCollector
	Fetcher   ports.MetaFetcher
	Store     ports.PostedStore
	Publisher ports.Publisher
	Formatter ports.Formatter
	Tagger    ports.Tagger
	Policy    Policy
	Logger    *slog.Logger

	// Now and Sleep default to the wall clock.
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

// Pipeline implements the collect, filter, fetch, admit, publish and record workflow.
type Pipeline struct {
	collector ports.LinkCollector
	fetcher   ports.MetaFetcher
	store     ports.PostedStore
	publisher ports.Publisher
	formatter ports.Formatter
	tagger    ports.Tagger
	policy    Policy
	logger    *slog.Logger
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	p := &Pipeline{
		collector: deps.Collector,
		fetcher:   deps.Fetcher,
		store:     deps.Store,
		publisher: deps.Publisher,
		formatter: deps.Formatter,
		tagger:    deps.Tagger,
		policy:    deps.Policy,
		logger:    deps.Logger,
		now:       deps.Now,
		sleep:     deps.Sleep,
	}
	if p.now == nil {
		p.now = time.Now
	}
	if p.sleep == nil {
		p.sleep = sleepContext
	}
	return p
}

// Run executes one pass. Store and publish failures abort the run; per-article
// problems are recorded as permanent skips.
func (p *Pipeline) Run(ctx context.Context) (domain.RunReport, error) {
	var report domain.RunReport

	if err := p.store.Init(ctx); err != nil {
		return report, fmt.Errorf("init store: %w", err)
	}

	cutoff := p.now().UTC().Add(-p.policy.Window)

	raw, err := p.collector.Collect(ctx)
	if err != nil {
		return report, fmt.Errorf("collect links: %w", err)
	}
	report.Collected = len(raw)
	if len(raw) == 0 {
		p.info("no links collected")
		return report, nil
	}

	candidates, err := p.fresh(ctx, raw)
	if err != nil {
		return report, err
	}
	report.Fresh = len(candidates)
	if len(candidates) == 0 {
		p.info("nothing new", "collected", len(raw))
		return report, nil
	}

	// The index lists newest first; publish oldest first.
	candidates = lo.Reverse(candidates)

	for i, candidate := range candidates {
		if report.Posted >= p.policy.MaxPosts {
			break
		}
		report.Examined++

		posted, err := p.process(ctx, candidate, cutoff, &report)
		if err != nil {
			return report, err
		}
		if !posted {
			continue
		}

		report.Posted++
		if report.Posted < p.policy.MaxPosts && i < len(candidates)-1 && p.policy.Delay > 0 {
			if err := p.sleep(ctx, p.policy.Delay); err != nil {
				return report, err
			}
		}
	}

	return report, nil
}

func (p *Pipeline) fresh(ctx context.Context, links []domain.CandidateLink) ([]domain.CandidateLink, error) {
	out := make([]domain.CandidateLink, 0, len(links))
	for _, link := range links {
		known, err := p.store.Contains(ctx, link.URL)
		if err != nil {
			return nil, fmt.Errorf("check %s: %w", link.URL, err)
		}
		if !known {
			out = append(out, link)
		}
	}
	return out, nil
}

// process concludes one candidate and reports whether it was published.
func (p *Pipeline) process(ctx context.Context, candidate domain.CandidateLink, cutoff time.Time, report *domain.RunReport) (bool, error) {
	url := candidate.URL
	tag := p.tagger.Tag(url)

	meta, err := p.fetcher.FetchMeta(ctx, url)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, ctxErr
		}
		p.warn("article fetch failed", "url", url, "error", err)
		return false, p.skip(ctx, report, domain.DispositionFetchFailed, url, lo.Ternary(candidate.TitleGuess != "", candidate.TitleGuess, url), tag)
	}

	title := lo.Ternary(meta.Title != "", meta.Title, candidate.TitleGuess)

	if meta.PublishedAt == nil {
		return false, p.skip(ctx, report, domain.DispositionUndated, url, lo.Ternary(title != "", title, url), tag)
	}
	if meta.PublishedAt.Before(cutoff) {
		return false, p.skip(ctx, report, domain.DispositionStale, url, lo.Ternary(title != "", title, url), tag)
	}

	if title == "" {
		title = fallbackPostTitle
	}
	msg := p.formatter.Message(url, title, tag, meta.PublishedAt, meta.ImageURL)

	if msg.HasImage() {
		err = p.publisher.SendPhoto(ctx, msg)
	} else {
		err = p.publisher.SendText(ctx, msg)
	}
	if err != nil {
		return false, fmt.Errorf("publish %s: %w", url, err)
	}

	if err := p.store.Record(ctx, url, title, tag); err != nil {
		return false, fmt.Errorf("record posted %s: %w", url, err)
	}
	p.info("article posted", "url", url, "tag", tag, "photo", msg.HasImage())
	return true, nil
}

func (p *Pipeline) skip(ctx context.Context, report *domain.RunReport, reason domain.Disposition, url, title, tag string) error {
	if err := p.store.Record(ctx, url, title, tag); err != nil {
		return fmt.Errorf("record skipped %s: %w", url, err)
	}
	report.Skip(reason)
	p.debug("article skipped", "url", url, "reason", reason)
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (p *Pipeline) debug(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Debug(msg, args...)
	}
}

func (p *Pipeline) info(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Info(msg, args...)
	}
}

func (p *Pipeline) warn(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Warn(msg, args...)
	}
}
