package parser

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"NewsRelay/internal/domain"
)

// ArticlePattern matches article paths of the form <prefix><category>/<slug>/.
type ArticlePattern struct {
	re *regexp.Regexp
}

// NewArticlePattern compiles the matcher for the given path prefix, e.g. "/ru/news/".
func NewArticlePattern(prefix string) ArticlePattern {
	prefix = "/" + strings.Trim(prefix, "/") + "/"
	if prefix == "//" {
		prefix = "/"
	}
	return ArticlePattern{re: regexp.MustCompile(`^` + regexp.QuoteMeta(prefix) + `([^/]+)/([^/]+)/?$`)}
}

// Match reports whether path is an article path.
func (p ArticlePattern) Match(path string) bool {
	return p.re.MatchString(path)
}

// Tag returns the category segment of an article URL or domain.DefaultTag.
func (p ArticlePattern) Tag(articleURL string) string {
	parsed, err := url.Parse(articleURL)
	if err != nil {
		return domain.DefaultTag
	}
	m := p.re.FindStringSubmatch(parsed.Path)
	if m == nil {
		return domain.DefaultTag
	}
	return m[1]
}

// NormalizeURL drops the query string and fragment so tracking variants of
// one article map to the same key.
func NormalizeURL(raw string) string {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return strings.TrimSpace(raw)
	}
	parsed.RawQuery = ""
	parsed.ForceQuery = false
	parsed.Fragment = ""
	parsed.RawFragment = ""
	return parsed.String()
}

// PageURL builds the listing URL for a 1-based page number.
func PageURL(base string, page int) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid index url %s: %w", base, err)
	}
	if page <= 1 {
		return parsed.String(), nil
	}
	ref, err := url.Parse(fmt.Sprintf("p%d/", page))
	if err != nil {
		return "", err
	}
	return parsed.ResolveReference(ref).String(), nil
}
