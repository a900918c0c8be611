// Package markdown renders assistant replies into a small, safe HTML
// subset: **bold**, *italic* and line breaks. Everything else is escaped.
package markdown

import (
	"html"
	"strings"
)

const (
	boldDelim   = "**"
	italicDelim = "*"
)

// Render escapes text and then applies bold, italic and line-break
// formatting in that order. Italic spans never cross a bold boundary, and
// delimiters the bold pass left unmatched are never reread as italic, so
// the output is always well formed.
func Render(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	escaped := html.EscapeString(text)

	var b strings.Builder
	for _, seg := range scan(escaped, boldDelim) {
		switch seg.kind {
		case marked:
			b.WriteString("<strong>")
			writeItalic(&b, seg.text)
			b.WriteString("</strong>")
		case literal:
			b.WriteString(seg.text)
		default:
			writeItalic(&b, seg.text)
		}
	}
	return strings.ReplaceAll(b.String(), "\n", "<br>")
}

// Escape returns text with markup neutralized and line breaks kept.
func Escape(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(html.EscapeString(text), "\n", "<br>")
}

func writeItalic(b *strings.Builder, text string) {
	for _, seg := range scan(text, italicDelim) {
		if seg.kind == marked {
			b.WriteString("<em>")
			b.WriteString(seg.text)
			b.WriteString("</em>")
			continue
		}
		b.WriteString(seg.text)
	}
}

type segmentKind int

const (
	plain segmentKind = iota
	marked
	// literal holds delimiters that failed to match. Later passes copy it
	// through untouched.
	literal
)

type segment struct {
	text string
	kind segmentKind
}

// scan splits s into plain, delimited and literal segments, left to right.
//
// A span needs content that is not made of asterisks alone. The closer is
// the first delimiter after the content starts; when it sits inside a longer
// run of asterisks it moves to the end of the run, so "***x***" is bold
// around "*x*". An opener with no closer becomes a literal segment.
func scan(s, delim string) []segment {
	var (
		out []segment
		buf strings.Builder
	)
	flush := func() {
		if buf.Len() > 0 {
			out = append(out, segment{text: buf.String()})
			buf.Reset()
		}
	}

	i := 0
	for i < len(s) {
		if !strings.HasPrefix(s[i:], delim) {
			buf.WriteByte(s[i])
			i++
			continue
		}
		start := i + len(delim)
		end, ok := closer(s, start, delim)
		if !ok {
			flush()
			out = append(out, segment{text: delim, kind: literal})
			i = start
			continue
		}
		flush()
		out = append(out, segment{text: s[start:end], kind: marked})
		i = end + len(delim)
	}
	flush()
	return out
}

// closer finds the closing delimiter for content starting at start.
func closer(s string, start int, delim string) (int, bool) {
	from := start + 1
	for from <= len(s) {
		rel := strings.Index(s[from:], delim)
		if rel < 0 {
			return 0, false
		}
		end := from + rel
		for end+len(delim) < len(s) && s[end+len(delim)] == '*' {
			end++
		}
		if strings.Trim(s[start:end], "*") != "" {
			return end, true
		}
		from = end + 1
	}
	return 0, false
}
