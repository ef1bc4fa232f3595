package chat

import (
	"bytes"
	"regexp"
	"strings"
	"unicode/utf8"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/yuin/goldmark"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"
	"golang.org/x/net/html"
)

const previewLength = 120

// Raw HTML in markdown input is escaped (WithUnsafe is not set).
var mdRenderer = goldmark.New(
	goldmark.WithRendererOptions(
		goldmarkHTML.WithHardWraps(),
	),
)

// htmlTagPattern detects replies that came back as HTML instead of markdown.
var htmlTagPattern = regexp.MustCompile(`<(p|br|div|span|b|i|strong|em|a|ul|ol|li|h[1-6]|blockquote)[\s>/]`)

// Rendered is a message ready for display.
type Rendered struct {
	Markdown string `json:"markdown"`
	HTML     string `json:"html"`
	Preview  string `json:"preview"`
}

// Render turns a message into safe HTML plus a plain-text preview.
// HTML replies are normalised to markdown first so both shapes render alike.
func Render(text string) Rendered {
	md := normalizeMarkdown(text)

	var buf bytes.Buffer
	if err := mdRenderer.Convert([]byte(md), &buf); err != nil {
		escaped := html.EscapeString(md)
		return Rendered{Markdown: md, HTML: "<p>" + escaped + "</p>", Preview: truncate(md)}
	}
	out := buf.String()
	return Rendered{Markdown: md, HTML: out, Preview: truncate(plainText(out))}
}

func normalizeMarkdown(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || !htmlTagPattern.MatchString(strings.ToLower(s)) {
		return s
	}
	md, err := htmltomarkdown.ConvertString(s)
	if err != nil {
		return s
	}
	return strings.TrimSpace(md)
}

// plainText extracts the text content of an HTML fragment.
func plainText(fragment string) string {
	doc, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return fragment
	}
	var buf strings.Builder
	extractText(doc, &buf)
	return strings.Join(strings.Fields(buf.String()), " ")
}

func extractText(n *html.Node, buf *strings.Builder) {
	if n.Type == html.TextNode {
		buf.WriteString(n.Data)
	}
	if n.Type == html.ElementNode && n.Data == "br" {
		buf.WriteString(" ")
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		extractText(c, buf)
	}
	if n.Type == html.ElementNode {
		switch n.Data {
		case "p", "div", "li", "h1", "h2", "h3", "h4", "h5", "h6":
			buf.WriteString(" ")
		}
	}
}

func truncate(s string) string {
	if utf8.RuneCountInString(s) <= previewLength {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:previewLength])) + "…"
}
