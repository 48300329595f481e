package markup

import "strings"

var htmlReplacer = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
)

// EscapeHTML escapes the characters Telegram's HTML parse mode treats as markup.
func EscapeHTML(src string) string {
	return htmlReplacer.Replace(src)
}
