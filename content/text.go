package content

import (
	"html"
	"math"
	"strings"

	bm "github.com/microcosm-cc/bluemonday"
	bf "github.com/russross/blackfriday"
)

// wordsPerMinute is the average adult reading speed used for the
// reading-time estimate.
const wordsPerMinute = 228

var stripPolicy = bm.StrictPolicy()

// PlainText renders markdown and strips all tags, leaving readable text
// with collapsed whitespace. Component tokens count as text here, which
// matches how excerpts treated them before extraction existed.
func PlainText(src string) string {
	rendered := bf.Markdown([]byte(src), bf.HtmlRenderer(0, "", ""), 0)
	stripped := stripPolicy.Sanitize(string(rendered))
	return strings.Join(strings.Fields(html.UnescapeString(stripped)), " ")
}

// Excerpt returns the first limit characters of the plain text, with an
// ellipsis when truncated.
func Excerpt(src string, limit int) string {
	text := []rune(PlainText(src))
	if len(text) <= limit {
		return string(text)
	}
	return string(text[:limit-3]) + "..."
}

// ReadingTime estimates minutes to read the content, never less than 1.
func ReadingTime(src string) int {
	words := len(strings.Fields(PlainText(src)))
	minutes := int(math.Round(float64(words) / wordsPerMinute))
	if minutes < 1 {
		return 1
	}
	return minutes
}
