// Package markup converts the bbcode dialect embedded in gallery
// descriptions to Markdown, and strips it to plain text for fields
// that carry no formatting.
//
// Gallery2 only ever emits a small tag set: [b], [i], [u],
// [url]/[url=...], [color=...], [img] with optional width/height
// attributes, and [list] with [*] items. Anything else passes through
// as best-effort plain text.
package markup

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/frustra/bbcode"
)

// Converter compiles bbcode to HTML and renders the HTML as Markdown.
// One converter is safe to reuse across a whole run.
type Converter struct {
	bb bbcode.Compiler
	md *md.Converter
}

func New() *Converter {
	c := &Converter{
		bb: bbcode.NewCompiler(true, true),
		md: md.NewConverter("", true, nil),
	}
	c.bb.SetTag("list", listTag)
	c.bb.SetTag("li", listItemTag)
	c.bb.SetTag("img", imgTag)
	c.md.AddRules(md.Rule{
		Filter:      []string{"img"},
		Replacement: imgReplacement,
	})
	return c
}

// ToMarkdown renders bbcode as Markdown.
func (c *Converter) ToMarkdown(text string) (string, error) {
	if text == "" {
		return "", nil
	}
	html := c.bb.Compile(rewriteLists(text))
	out, err := c.md.ConvertString(html)
	if err != nil {
		return "", fmt.Errorf("convert markup: %w", err)
	}
	return out, nil
}

// Strip removes all markup, returning the text content with runs of
// whitespace around newlines collapsed to single spaces.
func (c *Converter) Strip(text string) string {
	if text == "" {
		return ""
	}
	html := c.bb.Compile(rewriteLists(text))
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return text
	}
	return strings.TrimSpace(newlineRuns.ReplaceAllString(doc.Text(), " "))
}

var newlineRuns = regexp.MustCompile(`\s*\n\s*`)

// The bbcode list syntax uses bare [*] markers with no closing tag;
// rewriteLists converts each [list] block to explicit [li] items the
// compiler can handle.
var listBlocks = regexp.MustCompile(`(?s)\[list\](.*?)\[/list\]`)

func rewriteLists(text string) string {
	return listBlocks.ReplaceAllStringFunc(text, func(block string) string {
		body := listBlocks.FindStringSubmatch(block)[1]
		chunks := strings.Split(body, "[*]")
		var b strings.Builder
		b.WriteString("[list]")
		for _, chunk := range chunks[1:] {
			b.WriteString("[li]")
			b.WriteString(strings.TrimSpace(chunk))
			b.WriteString("[/li]")
		}
		b.WriteString("[/list]")
		return b.String()
	})
}

func listTag(node *bbcode.BBCodeNode) (*bbcode.HTMLTag, bool) {
	out := bbcode.NewHTMLTag("")
	out.Name = "ul"
	return out, true
}

func listItemTag(node *bbcode.BBCodeNode) (*bbcode.HTMLTag, bool) {
	out := bbcode.NewHTMLTag("")
	out.Name = "li"
	return out, true
}

// imgTag keeps the width and height attributes when they are numeric;
// Gallery2 stores them as bbcode tag arguments.
func imgTag(node *bbcode.BBCodeNode) (*bbcode.HTMLTag, bool) {
	out := bbcode.NewHTMLTag("")
	out.Name = "img"
	src := node.GetOpeningTag().Value
	if src == "" {
		src = bbcode.CompileText(node)
	}
	out.Attrs["src"] = src
	out.Attrs["alt"] = ""
	for _, attr := range []string{"width", "height"} {
		if v, ok := node.GetOpeningTag().Args[attr]; ok {
			if _, err := strconv.Atoi(v); err == nil {
				out.Attrs[attr] = v
			}
		}
	}
	return out, false
}

// imgReplacement emits raw HTML when the image carries explicit
// dimensions, since Markdown image syntax cannot express them.
func imgReplacement(content string, selec *goquery.Selection, opt *md.Options) *string {
	src, _ := selec.Attr("src")
	alt, _ := selec.Attr("alt")
	width, hasWidth := selec.Attr("width")
	height, hasHeight := selec.Attr("height")
	if hasWidth || hasHeight {
		var b strings.Builder
		fmt.Fprintf(&b, "<img src=%q", src)
		if hasWidth {
			fmt.Fprintf(&b, " width=%q", width)
		}
		if hasHeight {
			fmt.Fprintf(&b, " height=%q", height)
		}
		fmt.Fprintf(&b, " alt=%q>", alt)
		return md.String(b.String())
	}
	return md.String(fmt.Sprintf("![%s](%s)", alt, src))
}
