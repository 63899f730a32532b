package telegram

import (
	"fmt"
	"html"
	"regexp"
	"strings"
)

// Engine messages use a small markdown dialect:
//
//	**bold**  __underline__  ~~strike~~  *italic*  `code`  <@user-id>
//
// Telegram's MarkdownV2 needs every reserved character escaped, so messages
// are rendered to Telegram HTML instead.
var (
	codeSpan  = regexp.MustCompile("`([^`]+)`")
	mention   = regexp.MustCompile(`<@(\d+)>`)
	bold      = regexp.MustCompile(`\*\*(.+?)\*\*`)
	underline = regexp.MustCompile(`__(.+?)__`)
	strike    = regexp.MustCompile(`~~(.+?)~~`)
	italic    = regexp.MustCompile(`\*([^*\n]+?)\*`)
)

// NameFunc returns a display name for a user ID, or "" if unknown.
type NameFunc func(userID string) string

// RenderHTML converts a message to Telegram HTML.
func RenderHTML(text string, names NameFunc) string {
	var b strings.Builder
	last := 0
	for _, m := range codeSpan.FindAllStringSubmatchIndex(text, -1) {
		b.WriteString(renderInline(text[last:m[0]], names))
		b.WriteString("<code>")
		b.WriteString(html.EscapeString(text[m[2]:m[3]]))
		b.WriteString("</code>")
		last = m[1]
	}
	b.WriteString(renderInline(text[last:], names))
	return b.String()
}

func renderInline(text string, names NameFunc) string {
	var b strings.Builder
	last := 0
	for _, m := range mention.FindAllStringSubmatchIndex(text, -1) {
		b.WriteString(format(text[last:m[0]]))
		b.WriteString(renderMention(text[m[2]:m[3]], names))
		last = m[1]
	}
	b.WriteString(format(text[last:]))
	return b.String()
}

func format(text string) string {
	s := html.EscapeString(text)
	s = bold.ReplaceAllString(s, "<b>$1</b>")
	s = underline.ReplaceAllString(s, "<u>$1</u>")
	s = strike.ReplaceAllString(s, "<s>$1</s>")
	return italic.ReplaceAllString(s, "<i>$1</i>")
}

func renderMention(userID string, names NameFunc) string {
	name := ""
	if names != nil {
		name = names(userID)
	}
	if name == "" {
		name = userID
	}
	return fmt.Sprintf(`<a href="tg://user?id=%s">%s</a>`, userID, html.EscapeString(name))
}
