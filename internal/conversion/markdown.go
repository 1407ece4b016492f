// Package conversion renders conversation markdown to sanitized HTML for
// transcript export.
package conversion

import (
	"bytes"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
	"go.abhg.dev/goldmark/mermaid"
)

// Converter handles markdown-to-HTML conversion with sanitization.
type Converter struct {
	md        goldmark.Markdown
	sanitizer *bluemonday.Policy
}

// Option configures the Converter.
type Option func(*converterConfig)

type converterConfig struct {
	highlightStyle string
	sanitizer      *bluemonday.Policy
}

// WithHighlighting enables syntax highlighting with the given chroma style.
func WithHighlighting(style string) Option {
	return func(c *converterConfig) {
		c.highlightStyle = style
	}
}

// WithSanitization sets the HTML sanitization policy.
func WithSanitization(policy *bluemonday.Policy) Option {
	return func(c *converterConfig) {
		c.sanitizer = policy
	}
}

// NewConverter creates a Converter with the given options.
func NewConverter(opts ...Option) *Converter {
	var cfg converterConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	extensions := []goldmark.Extender{
		extension.GFM,
		&mermaid.Extender{RenderMode: mermaid.RenderModeClient},
	}
	if cfg.highlightStyle != "" {
		extensions = append(extensions, highlighting.NewHighlighting(
			highlighting.WithStyle(cfg.highlightStyle),
		))
	}

	return &Converter{
		md: goldmark.New(
			goldmark.WithExtensions(extensions...),
			goldmark.WithParserOptions(
				parser.WithAutoHeadingID(),
			),
			goldmark.WithRendererOptions(
				html.WithHardWraps(),
				html.WithXHTML(),
			),
		),
		sanitizer: cfg.sanitizer,
	}
}

// DefaultConverter returns a converter suitable for assistant messages.
func DefaultConverter() *Converter {
	return NewConverter(
		WithHighlighting("monokai"),
		WithSanitization(CreateSanitizer()),
	)
}

// CreateSanitizer builds a bluemonday policy that keeps the markup the
// markdown renderer emits while stripping anything unsafe.
func CreateSanitizer() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()

	// Highlighting and mermaid blocks carry class attributes.
	p.AllowAttrs("class").Matching(bluemonday.SpaceSeparatedTokens).OnElements("code", "pre", "span", "div")
	p.AllowDataAttributes()

	// Heading anchors.
	p.AllowAttrs("id").Matching(bluemonday.Paragraph).OnElements("h1", "h2", "h3", "h4", "h5", "h6")

	return p
}

// Convert converts markdown text to sanitized HTML.
func (c *Converter) Convert(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := c.md.Convert([]byte(markdown), &buf); err != nil {
		return "", err
	}
	result := buf.String()
	if c.sanitizer != nil {
		result = c.sanitizer.Sanitize(result)
	}
	return result, nil
}

// ConvertToSafeHTML converts markdown, falling back to escaped text on
// error so a bad message never breaks the transcript.
func (c *Converter) ConvertToSafeHTML(markdown string) string {
	result, err := c.Convert(markdown)
	if err != nil {
		return "<pre>" + EscapeHTML(markdown) + "</pre>"
	}
	return result
}

// EscapeHTML escapes special HTML characters.
func EscapeHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	s = strings.ReplaceAll(s, "'", "&#39;")
	return s
}
