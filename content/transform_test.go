package content

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransformNoTokens(t *testing.T) {
	assert := assert.New(t)

	res := Transform("Just some **bold** markdown.\n\n- a\n- b\n", DefaultConfig())
	assert.Empty(res.Components)
	assert.NotContains(res.HTML, "data-component")
	assert.Contains(res.HTML, "<strong>bold</strong>")
}

func TestTransformRoundTrip(t *testing.T) {
	assert := assert.New(t)

	res := Transform("{{gallery:img1,img2}}", DefaultConfig())
	assert.Len(res.Components, 1)
	assert.Equal(Component{ID: "component-0", Type: "gallery", Data: "img1,img2"}, res.Components[0])
	assert.Contains(res.HTML, `<div id="component-0" data-component="gallery" data-params="img1,img2"></div>`)
}

func TestTransformSequentialIDs(t *testing.T) {
	assert := assert.New(t)

	var b strings.Builder
	for i := 0; i < 5; i++ {
		fmt.Fprintf(&b, "{{widget%d:data%d}}\n\n", i, i)
	}

	res := Transform(b.String(), DefaultConfig())
	assert.Len(res.Components, 5)
	for i, c := range res.Components {
		assert.Equal(fmt.Sprintf("component-%d", i), c.ID)
		assert.Equal(fmt.Sprintf("widget%d", i), c.Type)
		assert.Equal(fmt.Sprintf("data%d", i), c.Data)
	}
}

func TestTransformDeterministic(t *testing.T) {
	assert := assert.New(t)

	src := "# Heading\n\n{{youtube:abc}}\n\ntext {{gallery:x,y}} more\n"
	first := Transform(src, DefaultConfig())
	second := Transform(src, DefaultConfig())
	assert.Equal(first, second)
}

func TestTransformMalformedToken(t *testing.T) {
	assert := assert.New(t)

	res := Transform("{{broken:no-closing-braces", DefaultConfig())
	assert.Empty(res.Components)
	assert.Contains(res.HTML, "{{broken:no-closing-braces")
	assert.NotContains(res.HTML, "data-component")
}

func TestTransformMixedContent(t *testing.T) {
	assert := assert.New(t)

	res := Transform("# Title\n\n{{youtube:abc123}}\n\nSome **bold** text.", DefaultConfig())
	assert.Len(res.Components, 1)
	assert.Equal("component-0", res.Components[0].ID)
	assert.Equal("youtube", res.Components[0].Type)
	assert.Equal("abc123", res.Components[0].Data)

	assert.Contains(res.HTML, "<h1")
	assert.Contains(res.HTML, "Title")
	assert.Contains(res.HTML, "<strong>bold</strong>")
	assert.Contains(res.HTML, `<div id="component-0" data-component="youtube" data-params="abc123"></div>`)
}

func TestTransformPreservesDiscoveryOrder(t *testing.T) {
	assert := assert.New(t)

	res := Transform("{{video:one}}\n\nmiddle\n\n{{gallery:two}}\n\n{{embed:three}}", DefaultConfig())
	assert.Len(res.Components, 3)
	assert.Equal("video", res.Components[0].Type)
	assert.Equal("gallery", res.Components[1].Type)
	assert.Equal("embed", res.Components[2].Type)

	first := strings.Index(res.HTML, `id="component-0"`)
	second := strings.Index(res.HTML, `id="component-1"`)
	third := strings.Index(res.HTML, `id="component-2"`)
	assert.True(first >= 0 && second > first && third > second)
}

func TestTransformUnderscoreType(t *testing.T) {
	assert := assert.New(t)

	res := Transform("{{image_grid_2:a.png|b.png}}", DefaultConfig())
	assert.Len(res.Components, 1)
	assert.Equal("image_grid_2", res.Components[0].Type)
	assert.Equal("a.png|b.png", res.Components[0].Data)
}

func TestTransformTables(t *testing.T) {
	assert := assert.New(t)

	res := Transform("a | b\n---|---\n1 | 2\n", DefaultConfig())
	assert.Contains(res.HTML, "<table>")
}
