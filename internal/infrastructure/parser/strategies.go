package parser

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Strategy tries to produce a value from a parsed article document.
type Strategy[T any] interface {
	Name() string
	Extract(doc *goquery.Document) (T, bool)
}

// Chain applies strategies in order and returns the first success.
type Chain[T any] []Strategy[T]

// Extract returns the first value found and the name of the strategy that produced it.
func (c Chain[T]) Extract(doc *goquery.Document) (T, string, bool) {
	for _, s := range c {
		if v, ok := s.Extract(doc); ok {
			return v, s.Name(), true
		}
	}
	var zero T
	return zero, "", false
}

// attrStrategy reads an attribute from the first element matching a selector.
type attrStrategy struct {
	selector string
	attr     string
}

func (a attrStrategy) Name() string { return a.selector }

func (a attrStrategy) Extract(doc *goquery.Document) (string, bool) {
	v, ok := doc.Find(a.selector).First().Attr(a.attr)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

type textStrategy struct {
	selector string
}

func (t textStrategy) Name() string { return t.selector }

func (t textStrategy) Extract(doc *goquery.Document) (string, bool) {
	v := strings.TrimSpace(doc.Find(t.selector).First().Text())
	return v, v != ""
}

// timeStrategy parses the string produced by an attribute strategy.
type timeStrategy struct {
	source attrStrategy
}

func (t timeStrategy) Name() string { return t.source.Name() }

func (t timeStrategy) Extract(doc *goquery.Document) (time.Time, bool) {
	raw, ok := t.source.Extract(doc)
	if !ok {
		return time.Time{}, false
	}
	return ParseTimestamp(raw)
}

// jsonLDStrategy looks for datePublished/dateCreated in structured data blocks.
type jsonLDStrategy struct{}

func (jsonLDStrategy) Name() string { return "json-ld" }

func (jsonLDStrategy) Extract(doc *goquery.Document) (time.Time, bool) {
	var (
		found  time.Time
		result bool
	)
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		raw := strings.TrimSpace(s.Text())
		if raw == "" {
			return true
		}
		var data any
		if err := json.Unmarshal([]byte(raw), &data); err != nil {
			return true
		}

		objects, ok := data.([]any)
		if !ok {
			objects = []any{data}
		}
		for _, obj := range objects {
			m, ok := obj.(map[string]any)
			if !ok {
				continue
			}
			if t, ok := jsonLDDate(m); ok {
				found, result = t, true
				return false
			}
		}
		return true
	})
	return found, result
}

// jsonLDDate prefers datePublished and falls back to dateCreated only when the
// former is missing or empty.
func jsonLDDate(m map[string]any) (time.Time, bool) {
	raw, _ := m["datePublished"].(string)
	if raw == "" {
		raw, _ = m["dateCreated"].(string)
	}
	if raw == "" {
		return time.Time{}, false
	}
	return ParseTimestamp(raw)
}

var (
	// DateChain lists publish time sources by priority.
	DateChain = Chain[time.Time]{
		timeStrategy{attrStrategy{`meta[property="article:published_time"]`, "content"}},
		// Only the first <time> element is consulted, with or without the attribute.
		timeStrategy{attrStrategy{"time", "datetime"}},
		timeStrategy{attrStrategy{`meta[itemprop="datePublished"]`, "content"}},
		jsonLDStrategy{},
	}

	// ImageChain lists lead image sources by priority.
	ImageChain = Chain[string]{
		attrStrategy{`meta[property="og:image"]`, "content"},
		attrStrategy{`meta[name="twitter:image"]`, "content"},
		attrStrategy{`meta[itemprop="image"]`, "content"},
	}

	// TitleChain lists title sources by priority.
	TitleChain = Chain[string]{
		attrStrategy{`meta[property="og:title"]`, "content"},
		textStrategy{"title"},
	}
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseTimestamp parses ISO 8601 timestamps. A trailing Z means UTC and a
// timestamp without an offset is taken as UTC. The result is always UTC.
func ParseTimestamp(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
