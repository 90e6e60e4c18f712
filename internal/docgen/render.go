package docgen

import (
	"fmt"
	"html"
	"strings"
)

// RenderHTML produces a standalone HTML page for a document, used by the
// export path and as the input for PDF printing.
func RenderHTML(doc *Document) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\" />\n")
	fmt.Fprintf(&b, "<title>%s — Knowledge Base</title>\n", html.EscapeString(doc.Company))
	b.WriteString(`<style>
body { font-family: Georgia, serif; max-width: 52rem; margin: 2rem auto; color: #222; }
h1 { border-bottom: 2px solid #444; padding-bottom: .3rem; }
h2, h3 { margin-top: 1.6rem; }
.placeholder { color: #888; font-style: italic; }
.meta { color: #666; font-size: .9rem; }
</style>
`)
	b.WriteString("</head>\n<body>\n")
	fmt.Fprintf(&b, "<h1>%s — Knowledge Base</h1>\n", html.EscapeString(doc.Company))
	fmt.Fprintf(&b, "<p class=\"meta\">Generated %s</p>\n", doc.GeneratedAt.Format("2006-01-02 15:04 MST"))
	for _, sec := range doc.Sections {
		writeSection(&b, sec, 2)
	}
	b.WriteString("</body>\n</html>\n")
	return b.String()
}

func writeSection(b *strings.Builder, sec Section, level int) {
	if level > 6 {
		level = 6
	}
	fmt.Fprintf(b, "<h%d>%s</h%d>\n", level, html.EscapeString(sec.Title), level)
	b.WriteString(sec.HTML)
	for _, sub := range sec.Subsections {
		writeSection(b, sub, level+1)
	}
}
