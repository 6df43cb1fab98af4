package markup

import (
	"fmt"
	"io"
)

// samples exercise every construct the converter claims to handle.
var samples = []string{
	"[b]bold[/b], [i]italic[/i] and [u]underlined[/u] text",
	"a bare link: [url]http://example.com/[/url]",
	"a labeled link: [url=http://example.com/gallery]the gallery[/url]",
	"[color=green]green text[/color] and [color=#12fe23]hex text[/color]",
	"[img]http://example.com/photo.jpg[/img]",
	"[img width=640 height=480]http://example.com/photo.jpg[/img]",
	"[list]\n[*] first item\n[*] second item\n[/list]",
	"plain text with\nan embedded newline",
}

// WriteTestPage renders each sample as source, Markdown, and stripped
// text, for eyeballing the conversion rules end to end.
func (c *Converter) WriteTestPage(w io.Writer) error {
	for i, sample := range samples {
		rendered, err := c.ToMarkdown(sample)
		if err != nil {
			return fmt.Errorf("sample %d: %w", i, err)
		}
		_, err = fmt.Fprintf(w,
			"Source:\n%s\n\nMarkdown:\n%s\n\nStripped:\n%s\n\n%s\n",
			sample, rendered, c.Strip(sample), delimiter)
		if err != nil {
			return err
		}
	}
	return nil
}

const delimiter = "----------------------------------------"
