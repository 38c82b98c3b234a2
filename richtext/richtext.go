// Package richtext renders structured text (the rich text format of the
// content repository) as HTML and as plain text.
package richtext

import (
	"bytes"
	"context"
	"html"
	"io"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/a-h/templ"
	"github.com/microcosm-cc/bluemonday"
)

// Block types.
const (
	Paragraph    = "paragraph"
	Preformatted = "preformatted"
	Heading1     = "heading1"
	Heading2     = "heading2"
	Heading3     = "heading3"
	Heading4     = "heading4"
	Heading5     = "heading5"
	Heading6     = "heading6"
	ListItem     = "list-item"
	OListItem    = "o-list-item"
	Image        = "image"
	Embed        = "embed"
)

// Span types.
const (
	Strong    = "strong"
	Em        = "em"
	Hyperlink = "hyperlink"
	Label     = "label"
)

// Block is one block of structured text.
type Block struct {
	Type   string     `json:"type"`
	Text   string     `json:"text,omitempty"`
	Spans  []Span     `json:"spans,omitempty"`
	URL    string     `json:"url,omitempty"`
	Alt    string     `json:"alt,omitempty"`
	OEmbed *EmbedData `json:"oembed,omitempty"`
}

// Span marks a range of a block's text. Start and End count UTF-16 code
// units, the way the API reports them.
type Span struct {
	Start int      `json:"start"`
	End   int      `json:"end"`
	Type  string   `json:"type"`
	Data  SpanData `json:"data,omitempty"`
}

// SpanData carries the link target of hyperlink spans and the class name
// of label spans.
type SpanData struct {
	URL    string `json:"url,omitempty"`
	Target string `json:"target,omitempty"`
	Label  string `json:"label,omitempty"`
}

// EmbedData is the oEmbed payload of an embed block.
type EmbedData struct {
	Type         string `json:"type,omitempty"`
	EmbedURL     string `json:"embed_url,omitempty"`
	ProviderName string `json:"provider_name,omitempty"`
	HTML         string `json:"html,omitempty"`
}

// Blocks is an ordered rich text value.
type Blocks []Block

var policy = newPolicy()

func newPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.RequireNoFollowOnLinks(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.AllowAttrs("class").OnElements("p", "span", "div", "pre")
	p.AllowAttrs("data-oembed", "data-oembed-type", "data-oembed-provider").OnElements("div")
	return p
}

// Component returns a templ.Component that renders blocks as sanitised HTML.
func Component(blocks Blocks) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, HTML(blocks))
		return err
	})
}

// HTML renders blocks to sanitised HTML.
func HTML(blocks Blocks) string {
	var buf bytes.Buffer
	RenderHTML(&buf, blocks)
	return policy.Sanitize(buf.String())
}

// RenderHTML writes the unsanitised HTML representation of blocks to buf.
// Consecutive list items are grouped into a single list.
func RenderHTML(buf *bytes.Buffer, blocks Blocks) {
	list := ""
	flushList := func() {
		if list != "" {
			buf.WriteString("</" + list + ">")
			list = ""
		}
	}

	for _, b := range blocks {
		switch b.Type {
		case ListItem, OListItem:
			want := "ul"
			if b.Type == OListItem {
				want = "ol"
			}
			if list != want {
				flushList()
				buf.WriteString("<" + want + ">")
				list = want
			}
			buf.WriteString("<li>" + FormatSpans(b.Text, b.Spans) + "</li>")
			continue
		}
		flushList()

		switch b.Type {
		case Heading1, Heading2, Heading3, Heading4, Heading5, Heading6:
			tag := "h" + strconv.Itoa(HeadingLevel(b))
			buf.WriteString("<" + tag + ">" + FormatSpans(b.Text, b.Spans) + "</" + tag + ">")
		case Preformatted:
			buf.WriteString("<pre>" + html.EscapeString(b.Text) + "</pre>")
		case Image:
			src := SafeURL(b.URL)
			if src == "" {
				continue
			}
			buf.WriteString(`<p class="block-img"><img src="` + src + `" alt="` + html.EscapeString(b.Alt) + `"></p>`)
		case Embed:
			if b.OEmbed == nil {
				continue
			}
			buf.WriteString(`<div data-oembed="` + html.EscapeString(b.OEmbed.EmbedURL) +
				`" data-oembed-type="` + html.EscapeString(b.OEmbed.Type) +
				`" data-oembed-provider="` + html.EscapeString(b.OEmbed.ProviderName) + `">` +
				b.OEmbed.HTML + "</div>")
		default:
			buf.WriteString("<p>" + FormatSpans(b.Text, b.Spans) + "</p>")
		}
	}
	flushList()
}

// FormatSpans escapes text and wraps the span ranges in their tags. Spans
// that overlap without nesting are closed and reopened so the output stays
// well formed. Newlines become <br />.
func FormatSpans(text string, spans []Span) string {
	units := utf16.Encode([]rune(text))
	n := len(units)

	valid := make([]Span, 0, len(spans))
	for _, s := range spans {
		if s.Start < 0 || s.End > n || s.Start >= s.End {
			continue
		}
		valid = append(valid, s)
	}
	if len(valid) == 0 {
		return escapeText(text)
	}
	// Longest span first at equal starts so it encloses the shorter ones.
	sort.SliceStable(valid, func(i, j int) bool {
		if valid[i].Start != valid[j].Start {
			return valid[i].Start < valid[j].Start
		}
		return valid[i].End > valid[j].End
	})

	bounds := map[int]struct{}{0: {}, n: {}}
	for _, s := range valid {
		bounds[s.Start] = struct{}{}
		bounds[s.End] = struct{}{}
	}
	points := make([]int, 0, len(bounds))
	for p := range bounds {
		points = append(points, p)
	}
	sort.Ints(points)

	var b strings.Builder
	var open []Span
	next := 0
	for i, pos := range points {
		// Close every span ending here, reopening the ones stacked above it.
		lowest := -1
		for k, s := range open {
			if s.End == pos {
				lowest = k
				break
			}
		}
		if lowest >= 0 {
			var reopen []Span
			for k := len(open) - 1; k >= lowest; k-- {
				b.WriteString(closeTag(open[k]))
				if open[k].End != pos {
					reopen = append([]Span{open[k]}, reopen...)
				}
			}
			open = open[:lowest]
			for _, s := range reopen {
				b.WriteString(openTag(s))
				open = append(open, s)
			}
		}
		for next < len(valid) && valid[next].Start == pos {
			b.WriteString(openTag(valid[next]))
			open = append(open, valid[next])
			next++
		}
		if i+1 < len(points) {
			b.WriteString(escapeText(string(utf16.Decode(units[pos:points[i+1]]))))
		}
	}
	for k := len(open) - 1; k >= 0; k-- {
		b.WriteString(closeTag(open[k]))
	}
	return b.String()
}

func openTag(s Span) string {
	switch s.Type {
	case Strong:
		return "<strong>"
	case Em:
		return "<em>"
	case Hyperlink:
		href := SafeURL(s.Data.URL)
		if href == "" {
			return "<span>"
		}
		attrs := `<a href="` + href + `"`
		if s.Data.Target == "_blank" {
			attrs += ` target="_blank" rel="noopener noreferrer"`
		}
		return attrs + ">"
	case Label:
		return `<span class="` + html.EscapeString(s.Data.Label) + `">`
	default:
		return "<span>"
	}
}

func closeTag(s Span) string {
	switch s.Type {
	case Strong:
		return "</strong>"
	case Em:
		return "</em>"
	case Hyperlink:
		if SafeURL(s.Data.URL) == "" {
			return "</span>"
		}
		return "</a>"
	default:
		return "</span>"
	}
}

func escapeText(s string) string {
	return strings.ReplaceAll(html.EscapeString(s), "\n", "<br />")
}

// AsText returns the plain text of blocks, one block per space-separated
// chunk.
func AsText(blocks Blocks) string {
	parts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		if b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, " ")
}

// WordCount counts whitespace-separated words in the plain text of blocks.
func WordCount(blocks Blocks) int {
	return len(strings.Fields(AsText(blocks)))
}

// SafeURL returns raw escaped for an HTML attribute when it is a relative
// link or uses a safe scheme, and "" otherwise.
func SafeURL(raw string) string {
	val := strings.TrimSpace(html.UnescapeString(raw))
	if val == "" {
		return ""
	}
	if strings.HasPrefix(val, "/") || strings.HasPrefix(val, "#") {
		return html.EscapeString(val)
	}
	parsed, err := url.Parse(val)
	if err != nil || parsed.Scheme == "" {
		return ""
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https", "mailto", "tel":
		return html.EscapeString(val)
	default:
		return ""
	}
}

// HeadingLevel returns 1-6 for heading blocks and 0 otherwise.
func HeadingLevel(b Block) int {
	if !strings.HasPrefix(b.Type, "heading") {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimPrefix(b.Type, "heading"))
	if err != nil || n < 1 || n > 6 {
		return 0
	}
	return n
}
