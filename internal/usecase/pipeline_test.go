package usecase

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"NewsRelay/internal/caption"
	"NewsRelay/internal/domain"
	"NewsRelay/internal/infrastructure/parser"
)

var runTime = time.Date(2025, time.July, 10, 12, 0, 0, 0, time.UTC)

type fakeCollector struct {
	links []domain.CandidateLink
	err   error
}

func (f *fakeCollector) Collect(context.Context) ([]domain.CandidateLink, error) {
	return append([]domain.CandidateLink(nil), f.links...), f.err
}

type fakeFetcher struct {
	metas   map[string]domain.ArticleMeta
	errs    map[string]error
	fetched []string
}

func (f *fakeFetcher) FetchMeta(_ context.Context, url string) (domain.ArticleMeta, error) {
	f.fetched = append(f.fetched, url)
	if err := f.errs[url]; err != nil {
		return domain.ArticleMeta{}, err
	}
	return f.metas[url], nil
}

type memoryStore struct {
	records map[string]domain.PostedRecord
	initErr error
	failOn  string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{records: map[string]domain.PostedRecord{}}
}

func (s *memoryStore) Init(context.Context) error { return s.initErr }

func (s *memoryStore) Contains(_ context.Context, url string) (bool, error) {
	_, ok := s.records[url]
	return ok, nil
}

func (s *memoryStore) Record(_ context.Context, url, title, tag string) error {
	if url == s.failOn {
		return errors.New("disk full")
	}
	if _, ok := s.records[url]; !ok {
		s.records[url] = domain.PostedRecord{URL: url, Title: title, Tag: tag, PostedAt: runTime}
	}
	return nil
}

type sentMessage struct {
	photo bool
	msg   domain.FormattedMessage
}

type fakePublisher struct {
	sent []sentMessage
	err  error
}

func (p *fakePublisher) SendPhoto(_ context.Context, msg domain.FormattedMessage) error {
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, sentMessage{photo: true, msg: msg})
	return nil
}

func (p *fakePublisher) SendText(_ context.Context, msg domain.FormattedMessage) error {
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, sentMessage{photo: false, msg: msg})
	return nil
}

func (p *fakePublisher) urls() []string {
	out := make([]string, 0, len(p.sent))
	for _, s := range p.sent {
		out = append(out, s.msg.ActionURL)
	}
	return out
}

type harness struct {
	collector *fakeCollector
	fetcher   *fakeFetcher
	store     *memoryStore
	publisher *fakePublisher
	sleeps    int
	policy    Policy
}

func newHarness(links ...domain.CandidateLink) *harness {
	return &harness{
		collector: &fakeCollector{links: links},
		fetcher:   &fakeFetcher{metas: map[string]domain.ArticleMeta{}, errs: map[string]error{}},
		store:     newMemoryStore(),
		publisher: &fakePublisher{},
		policy:    Policy{MaxPosts: 2, Window: 48 * time.Hour, Delay: 2 * time.Second},
	}
}

func (h *harness) run(t *testing.T) (domain.RunReport, error) {
	t.Helper()
	h.fetcher.fetched = nil
	p := NewPipeline(PipelineDeps{
		Collector: h.collector,
		Fetcher:   h.fetcher,
		Store:     h.store,
		Publisher: h.publisher,
		Formatter: caption.NewFormatter("Header", time.UTC),
		Tagger:    parser.NewArticlePattern("/ru/news/"),
		Policy:    h.policy,
		Now:       func() time.Time { return runTime },
		Sleep: func(context.Context, time.Duration) error {
			h.sleeps++
			return nil
		},
	})
	return p.Run(context.Background())
}

func (h *harness) dated(url, title string, age time.Duration, image string) {
	published := runTime.Add(-age)
	h.fetcher.metas[url] = domain.ArticleMeta{PublishedAt: &published, Title: title, ImageURL: image}
}

const (
	urlA = "https://worldoftanks.eu/ru/news/updates/a/"
	urlB = "https://worldoftanks.eu/ru/news/specials/b/"
	urlC = "https://worldoftanks.eu/ru/news/general-news/c/"
)

func threeArticles() *harness {
	h := newHarness(
		domain.CandidateLink{URL: urlA, TitleGuess: "A guess"},
		domain.CandidateLink{URL: urlB, TitleGuess: "B guess"},
		domain.CandidateLink{URL: urlC, TitleGuess: "C guess"},
	)
	h.dated(urlA, "A", time.Hour, "")
	h.dated(urlB, "B", 2*time.Hour, "")
	h.dated(urlC, "C", 3*time.Hour, "")
	return h
}

func TestPipelinePublishesOldestFirstUpToCap(t *testing.T) {
	t.Parallel()

	h := threeArticles()
	report, err := h.run(t)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if got := h.publisher.urls(); !reflect.DeepEqual(got, []string{urlC, urlB}) {
		t.Fatalf("published %v, want [C B]", got)
	}
	if !reflect.DeepEqual(h.fetcher.fetched, []string{urlC, urlB}) {
		t.Fatalf("fetched %v, A must be left for the next run", h.fetcher.fetched)
	}
	if _, ok := h.store.records[urlA]; ok {
		t.Fatalf("A must not be recorded")
	}
	if rec := h.store.records[urlB]; rec.Title != "B" || rec.Tag != "specials" {
		t.Fatalf("unexpected record for B: %+v", rec)
	}
	if report.Posted != 2 || report.Collected != 3 || report.Fresh != 3 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if h.sleeps != 1 {
		t.Fatalf("expected a single pause between the two posts, got %d", h.sleeps)
	}
}

func TestPipelineSecondRunPicksRemaining(t *testing.T) {
	t.Parallel()

	h := threeArticles()
	if _, err := h.run(t); err != nil {
		t.Fatalf("first run: %v", err)
	}
	report, err := h.run(t)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if !reflect.DeepEqual(h.fetcher.fetched, []string{urlA}) {
		t.Fatalf("second run fetched %v, want only A", h.fetcher.fetched)
	}
	if got := h.publisher.urls(); !reflect.DeepEqual(got, []string{urlC, urlB, urlA}) {
		t.Fatalf("published %v", got)
	}
	if report.Fresh != 1 || report.Posted != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestPipelineNeverRefetchesStoredURLs(t *testing.T) {
	t.Parallel()

	h := threeArticles()
	h.policy.MaxPosts = 10
	for _, u := range []string{urlA, urlB, urlC} {
		_ = h.store.Record(context.Background(), u, "seen", "news")
	}

	report, err := h.run(t)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if len(h.fetcher.fetched) != 0 || len(h.publisher.sent) != 0 {
		t.Fatalf("stored urls were processed again: fetched=%v sent=%d", h.fetcher.fetched, len(h.publisher.sent))
	}
	if report.Fresh != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestPipelineWindow(t *testing.T) {
	t.Parallel()

	h := threeArticles()
	h.policy.MaxPosts = 10
	h.dated(urlC, "C", 49*time.Hour, "")
	h.dated(urlB, "B", 48*time.Hour, "")

	report, err := h.run(t)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if got := h.publisher.urls(); !reflect.DeepEqual(got, []string{urlB, urlA}) {
		t.Fatalf("published %v, want [B A]", got)
	}
	if rec, ok := h.store.records[urlC]; !ok || rec.Title != "C" {
		t.Fatalf("stale article must be recorded with its title: %+v", rec)
	}
	if report.Skipped[domain.DispositionStale] != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestPipelineUndatedIsSkippedPermanently(t *testing.T) {
	t.Parallel()

	h := newHarness(domain.CandidateLink{URL: urlA, TitleGuess: "A guess"})
	h.fetcher.metas[urlA] = domain.ArticleMeta{ImageURL: "https://img.example.com/a.jpg"}

	report, err := h.run(t)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if len(h.publisher.sent) != 0 {
		t.Fatalf("undated article must not be published")
	}
	if rec := h.store.records[urlA]; rec.Title != "A guess" {
		t.Fatalf("expected record with title guess, got %+v", rec)
	}
	if report.Skipped[domain.DispositionUndated] != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}

	if _, err := h.run(t); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(h.fetcher.fetched) != 0 {
		t.Fatalf("undated article fetched again: %v", h.fetcher.fetched)
	}
}

func TestPipelineFetchFailureIsRecordedAndRunContinues(t *testing.T) {
	t.Parallel()

	h := threeArticles()
	h.fetcher.errs[urlC] = errors.New("connection reset")

	report, err := h.run(t)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if rec, ok := h.store.records[urlC]; !ok || rec.Title != "C guess" || rec.Tag != "general-news" {
		t.Fatalf("failed article must be recorded with its guess: %+v", rec)
	}
	if got := h.publisher.urls(); !reflect.DeepEqual(got, []string{urlB, urlA}) {
		t.Fatalf("published %v, want [B A]", got)
	}
	if report.Skipped[domain.DispositionFetchFailed] != 1 || report.Examined != 3 {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestPipelineFetchFailureWithoutGuessUsesURL(t *testing.T) {
	t.Parallel()

	h := newHarness(domain.CandidateLink{URL: urlA})
	h.fetcher.errs[urlA] = errors.New("timeout")

	if _, err := h.run(t); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if rec := h.store.records[urlA]; rec.Title != urlA {
		t.Fatalf("expected url as title, got %+v", rec)
	}
}

func TestPipelinePublishFailureIsFatal(t *testing.T) {
	t.Parallel()

	h := threeArticles()
	h.publisher.err = errors.New("Unauthorized")

	_, err := h.run(t)
	if err == nil || !strings.Contains(err.Error(), "Unauthorized") {
		t.Fatalf("expected publish error, got %v", err)
	}
	if len(h.store.records) != 0 {
		t.Fatalf("nothing may be recorded when publishing fails: %v", h.store.records)
	}
	if !reflect.DeepEqual(h.fetcher.fetched, []string{urlC}) {
		t.Fatalf("run must stop at the first failure, fetched %v", h.fetcher.fetched)
	}
}

func TestPipelineStoreFailureIsFatal(t *testing.T) {
	t.Parallel()

	h := threeArticles()
	h.store.failOn = urlC

	if _, err := h.run(t); err == nil {
		t.Fatalf("expected store error")
	}
	if len(h.publisher.sent) != 1 {
		t.Fatalf("run must stop after the failed record, sent %d", len(h.publisher.sent))
	}

	h2 := threeArticles()
	h2.store.initErr = errors.New("cannot open")
	if _, err := h2.run(t); err == nil {
		t.Fatalf("expected init error")
	}
	if len(h2.fetcher.fetched) != 0 {
		t.Fatalf("nothing may be fetched when the store is unavailable")
	}
}

func TestPipelinePhotoAndTextMessages(t *testing.T) {
	t.Parallel()

	h := newHarness(
		domain.CandidateLink{URL: urlA, TitleGuess: "with image"},
		domain.CandidateLink{URL: urlB},
	)
	h.dated(urlA, "", time.Hour, "https://img.example.com/a.jpg")
	h.dated(urlB, "", time.Hour, "")

	if _, err := h.run(t); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if len(h.publisher.sent) != 2 {
		t.Fatalf("expected two messages, got %d", len(h.publisher.sent))
	}

	text, photo := h.publisher.sent[0], h.publisher.sent[1]
	if text.photo || !strings.Contains(text.msg.Text, "Открыть") || !strings.Contains(text.msg.Text, "Новость") {
		t.Fatalf("unexpected text message: %+v", text)
	}
	if h.store.records[urlB].Title != "Новость" {
		t.Fatalf("unexpected record title: %+v", h.store.records[urlB])
	}
	if !photo.photo || photo.msg.ImageURL != "https://img.example.com/a.jpg" || !strings.Contains(photo.msg.Text, "with image") {
		t.Fatalf("unexpected photo message: %+v", photo)
	}
}

func TestPipelineNoCandidatesIsNoop(t *testing.T) {
	t.Parallel()

	h := newHarness()
	report, err := h.run(t)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if report.Collected != 0 || len(h.publisher.sent) != 0 {
		t.Fatalf("unexpected activity: %+v", report)
	}
}

func TestPipelineSleepCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := sleepContext(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if err := sleepContext(context.Background(), time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
