// Package content turns stored post markdown into renderable HTML plus
// structured component metadata for the frontend.
package content

import (
	"fmt"
	"regexp"

	bf "github.com/russross/blackfriday"
)

// componentPattern matches the {{type:data}} escape syntax embedded in
// markdown. The data part runs greedily up to the first '}', so a token
// missing its closing braces never matches and passes through as text.
var componentPattern = regexp.MustCompile(`\{\{(\w+):([^}]+)\}\}`)

// Component is the metadata extracted from one {{type:data}} token. The
// frontend hydrates the matching placeholder div into a widget.
type Component struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data string `json:"data"`
}

// Result is the output of Transform.
type Result struct {
	HTML       string      `json:"html"`
	Components []Component `json:"components"`
}

// Config selects the markdown extension set. It is passed explicitly so
// the transform stays a pure function of its inputs.
type Config struct {
	Tables         bool
	Footnotes      bool
	FencedCode     bool
	HeadingIDs     bool
	HardLineBreaks bool
	SaneLists      bool
}

// DefaultConfig enables the full extension set used for post rendering.
func DefaultConfig() Config {
	return Config{
		Tables:         true,
		Footnotes:      true,
		FencedCode:     true,
		HeadingIDs:     true,
		HardLineBreaks: true,
		SaneLists:      true,
	}
}

func (c Config) extensions() int {
	ext := bf.EXTENSION_NO_INTRA_EMPHASIS | bf.EXTENSION_STRIKETHROUGH
	if c.Tables {
		ext |= bf.EXTENSION_TABLES
	}
	if c.Footnotes {
		ext |= bf.EXTENSION_FOOTNOTES
	}
	if c.FencedCode {
		ext |= bf.EXTENSION_FENCED_CODE
	}
	if c.HeadingIDs {
		ext |= bf.EXTENSION_HEADER_IDS | bf.EXTENSION_AUTO_HEADER_IDS
	}
	if c.HardLineBreaks {
		ext |= bf.EXTENSION_HARD_LINE_BREAK
	}
	if c.SaneLists {
		ext |= bf.EXTENSION_NO_EMPTY_LINE_BEFORE_BLOCK | bf.EXTENSION_SPACE_HEADERS
	}
	return ext
}

// Transform extracts component tokens from src, replaces each with an
// inert placeholder div, and renders the remaining markdown to HTML.
//
// Placeholder ids are positional (component-0, component-1, ...) in
// left-to-right discovery order, so the same input always produces the
// same result. The data attribute is emitted raw; the frontend owns any
// escaping of component parameters.
func Transform(src string, cfg Config) Result {
	components := []Component{}

	replaced := componentPattern.ReplaceAllStringFunc(src, func(token string) string {
		m := componentPattern.FindStringSubmatch(token)
		id := fmt.Sprintf("component-%d", len(components))
		components = append(components, Component{
			ID:   id,
			Type: m[1],
			Data: m[2],
		})
		return fmt.Sprintf(`<div id="%s" data-component="%s" data-params="%s"></div>`, id, m[1], m[2])
	})

	html := bf.Markdown([]byte(replaced), bf.HtmlRenderer(0, "", ""), cfg.extensions())

	return Result{
		HTML:       string(html),
		Components: components,
	}
}
