package markdown

import (
	"strings"
	"testing"
)

func TestRender(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "script is literal",
			in:   "<script>alert(1)</script>",
			want: "&lt;script&gt;alert(1)&lt;/script&gt;",
		},
		{
			name: "bold and italic",
			in:   "**bold** and *italic*",
			want: "<strong>bold</strong> and <em>italic</em>",
		},
		{
			name: "triple asterisks nest italic in bold",
			in:   "***x***",
			want: "<strong><em>x</em></strong>",
		},
		{
			name: "italic inside bold",
			in:   "**total *₱245.3M***",
			want: "<strong>total <em>₱245.3M</em></strong>",
		},
		{
			name: "unclosed delimiters are literal",
			in:   "a ** b * c",
			want: "a ** b * c",
		},
		{
			name: "empty spans are literal",
			in:   "****",
			want: "****",
		},
		{
			name: "unmatched bold is not reread as italic",
			in:   "* ** *",
			want: "* ** *",
		},
		{
			name: "lone triple asterisks are literal",
			in:   "***",
			want: "***",
		},
		{
			name: "asterisk-only content is literal",
			in:   "a *** b",
			want: "a *** b",
		},
		{
			name: "line breaks",
			in:   "Found 47 projects\r\nTop contractor: **GED**",
			want: "Found 47 projects<br>Top contractor: <strong>GED</strong>",
		},
		{
			name: "markup inside bold is escaped",
			in:   "**<b>x</b>**",
			want: "<strong>&lt;b&gt;x&lt;/b&gt;</strong>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Render(tt.in); got != tt.want {
				t.Errorf("Render(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRenderRegionCounts(t *testing.T) {
	got := Render("**bold** and *italic*")
	if n := strings.Count(got, "<strong>"); n != 1 {
		t.Errorf("strong regions = %d, want 1", n)
	}
	if n := strings.Count(got, "<em>"); n != 1 {
		t.Errorf("em regions = %d, want 1", n)
	}
}

func TestEscape(t *testing.T) {
	if got := Escape("a *b*\n<i>"); got != "a *b*<br>&lt;i&gt;" {
		t.Errorf("Escape = %q", got)
	}
}
