package caption

import (
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"

	"NewsRelay/internal/domain"
	"NewsRelay/internal/markup"
)

const (
	dateLayout   = "02.01.2006 15:04"
	noDate       = "—"
	untitled     = "Без названия"
	defaultIcon  = "📰"
	openLinkText = "Открыть"
)

var tagIcons = map[string]string{
	"updates":            "🛠️",
	"specials":           "🎁",
	"general-news":       "📢",
	"merchandise":        "🛍️",
	"clan":               "🛡️",
	"tournaments":        "🏆",
	"competitive-gaming": "🏆",
	"community":          "👥",
	"live-streams":       "📺",
	"guides":             "📘",
	"ranked":             "🎖️",
	"frontline":          "🚚",
	"battle-pass":        "🎟️",
	"common-test":        "🧪",
	"test":               "🧪",
}

var tagLabels = map[string]string{
	"updates":      "Обновления",
	"specials":     "Акции",
	"general-news": "Новости",
	"merchandise":  "Мерч",
	"common-test":  "Тест",
	"test":         "Тест",
}

type keywordGroup struct {
	keywords []string
	hashtag  string
}

// Evaluated in order; each group adds its hashtag at most once.
var themeGroups = []keywordGroup{
	{[]string{"патч", "обновлен", "микропатч", "update"}, "#patch"},
	{[]string{"акц", "скид", "распрод", "sale", "%"}, "#sale"},
	{[]string{"ивент", "событ", "event", "мисси", "задач"}, "#event"},
	{[]string{"турнир", "tournament"}, "#tournament"},
	{[]string{"прем", "premium"}, "#premium"},
	{[]string{"тест", "common test", "общем тест"}, "#test"},
	{[]string{"карта", "map"}, "#maps"},
	{[]string{"танк", "ветк", "branch"}, "#tanks"},
}

// Formatter renders articles into Telegram HTML captions.
type Formatter struct {
	header   string
	location *time.Location
}

// NewFormatter builds a formatter; a nil location means UTC.
func NewFormatter(header string, loc *time.Location) *Formatter {
	if loc == nil {
		loc = time.UTC
	}
	return &Formatter{header: header, location: loc}
}

// Caption renders the message body for a single article.
func (f *Formatter) Caption(title, tag string, publishedAt *time.Time) string {
	if title == "" {
		title = untitled
	}

	hashtags := "🏷️ #" + markup.EscapeHTML(tag)
	if extra := ExtraHashtags(title); len(extra) > 0 {
		hashtags += "  " + markup.EscapeHTML(strings.Join(extra, " "))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📰 <b>%s</b>\n", markup.EscapeHTML(f.header))
	fmt.Fprintf(&b, "%s <b>%s</b>\n", Icon(tag), markup.EscapeHTML(title))
	fmt.Fprintf(&b, "📅 Дата: <b>%s</b>\n", markup.EscapeHTML(f.FormatDate(publishedAt)))
	fmt.Fprintf(&b, "📌 Раздел: <b>%s</b>\n", markup.EscapeHTML(Label(tag)))
	b.WriteString(hashtags)
	return b.String()
}

// Message builds the post for an article. Without an image the article link
// is appended to the text so Telegram can render a preview.
func (f *Formatter) Message(articleURL, title, tag string, publishedAt *time.Time, imageURL string) domain.FormattedMessage {
	text := f.Caption(title, tag, publishedAt)
	if imageURL == "" {
		text += fmt.Sprintf("\n\n<a href=\"%s\">%s</a>", markup.EscapeHTML(articleURL), openLinkText)
	}
	return domain.FormattedMessage{
		Text:      text,
		ImageURL:  imageURL,
		ActionURL: articleURL,
	}
}

// FormatDate renders t in the display timezone or a dash when absent.
func (f *Formatter) FormatDate(t *time.Time) string {
	if t == nil {
		return noDate
	}
	return t.In(f.location).Format(dateLayout)
}

// Icon returns the emoji for a category tag.
func Icon(tag string) string {
	if icon, ok := tagIcons[tag]; ok {
		return icon
	}
	return defaultIcon
}

// Label returns the curated category name or the raw tag.
func Label(tag string) string {
	if label, ok := tagLabels[tag]; ok {
		return label
	}
	return tag
}

// ExtraHashtags matches the title against the theme keyword groups.
func ExtraHashtags(title string) []string {
	t := strings.ToLower(title)
	var tags []string
	for _, group := range themeGroups {
		if lo.SomeBy(group.keywords, func(k string) bool { return strings.Contains(t, k) }) {
			tags = append(tags, group.hashtag)
		}
	}
	return lo.Uniq(tags)
}
