package content

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlainText(t *testing.T) {
	assert := assert.New(t)

	out := PlainText("# Heading\n\nSome **bold** and [a link](http://example.com).")
	assert.NotContains(out, "<")
	assert.Contains(out, "Heading")
	assert.Contains(out, "bold")
	assert.Contains(out, "a link")
}

func TestExcerptShortContent(t *testing.T) {
	assert := assert.New(t)
	assert.Equal("short post", Excerpt("short post", 300))
}

func TestExcerptTruncates(t *testing.T) {
	assert := assert.New(t)

	long := strings.Repeat("word ", 200)
	out := Excerpt(long, 300)
	assert.Len([]rune(out), 300)
	assert.True(strings.HasSuffix(out, "..."))
}

func TestReadingTimeMinimum(t *testing.T) {
	assert := assert.New(t)
	assert.Equal(1, ReadingTime("just a few words"))
}

func TestReadingTimeLongContent(t *testing.T) {
	assert := assert.New(t)

	// ~700 words reads in about 3 minutes at 228 wpm.
	long := strings.Repeat("lorem ipsum dolor sit amet ", 140)
	assert.Equal(3, ReadingTime(long))
}

func TestSlugify(t *testing.T) {
	assert := assert.New(t)
	assert.Equal("hello-world", Slugify("Hello, World!"))
	assert.Equal("my-first-post", Slugify("My First Post"))
}
