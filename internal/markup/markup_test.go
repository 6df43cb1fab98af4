package markup

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToMarkdown(t *testing.T) {
	c := New()
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bold", "[b]bold[/b] text", "**bold**"},
		{"labeled url", "[url=http://example.com/]site[/url]",
			"[site](http://example.com/)"},
		{"list items", "[list]\n[*] one\n[*] two\n[/list]", "- one"},
		{"image without dimensions", "[img]http://e/p.jpg[/img]",
			"![](http://e/p.jpg)"},
		{"image with dimensions",
			"[img width=640 height=480]http://e/p.jpg[/img]",
			`<img src="http://e/p.jpg" width="640" height="480" alt="">`},
		{"color passes through as text", "[color=green]grass[/color]", "grass"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.ToMarkdown(tt.in)
			require.NoError(t, err)
			assert.Contains(t, got, tt.want)
		})
	}
}

func TestToMarkdownEmpty(t *testing.T) {
	got, err := New().ToMarkdown("")
	require.NoError(t, err)
	assert.Equal(t, "", got)
}

func TestStrip(t *testing.T) {
	c := New()
	assert.Equal(t, "Sunset over the bay",
		c.Strip("[b]Sunset[/b] over\nthe bay"))
	assert.Equal(t, "plain", c.Strip("plain"))
}

func TestRewriteLists(t *testing.T) {
	got := rewriteLists("[list]\n[*] one\n[*] two\n[/list]")
	assert.Equal(t, "[list][li]one[/li][li]two[/li][/list]", got)

	// Text outside list blocks is untouched.
	assert.Equal(t, "no lists here", rewriteLists("no lists here"))
}

func TestWriteTestPage(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, New().WriteTestPage(&buf))
	out := buf.String()
	assert.Contains(t, out, "**bold**")
	assert.Contains(t, out, "- first item")
}
