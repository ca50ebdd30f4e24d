package output

import (
	"fmt"
	"html"
	"io"

	"github.com/maxvaer/secprobe/internal/probe"
)

const htmlHead = `<!DOCTYPE html><html><head><meta charset="utf-8"><title>%s</title>` +
	`<style>body{font-family:monospace;padding:20px;} .pass{color:green;} .fail{color:red;} ` +
	`.summary{margin-top:20px;padding:10px;background:#f0f0f0;}</style></head><body>`

// HTMLWriter renders the report as a standalone HTML document for the
// served mode.
type HTMLWriter struct {
	w io.Writer
}

// NewHTMLWriter creates an HTML report writer.
func NewHTMLWriter(w io.Writer) *HTMLWriter {
	return &HTMLWriter{w: w}
}

func (h *HTMLWriter) WriteHeader(meta probe.Meta) error {
	title := html.EscapeString(meta.Title)
	_, err := fmt.Fprintf(h.w, htmlHead+"\n<h1>%s</h1>\n<p>Target: <code>%s</code></p>\n",
		title, title, html.EscapeString(meta.Target))
	return err
}

func (h *HTMLWriter) WriteSection(title string) error {
	_, err := fmt.Fprintf(h.w, "<h2>%s</h2>\n", html.EscapeString(title))
	return err
}

func (h *HTMLWriter) WriteResult(r probe.Result) error {
	class, mark := "pass", "✅"
	if !r.Passed {
		class, mark = "fail", "❌"
	}
	msg := ""
	if r.Message != "" {
		msg = " - " + html.EscapeString(r.Message)
	}
	_, err := fmt.Fprintf(h.w, "<div class='%s'>%s %s%s</div>\n", class, mark, html.EscapeString(r.Name), msg)
	return err
}

func (h *HTMLWriter) WriteFooter(s probe.Summary) error {
	_, err := fmt.Fprintf(h.w, "<div class='summary'>\n<h2>Summary</h2>\n"+
		"<p>Passed: <strong>%d</strong></p>\n<p>Failed: <strong>%d</strong></p>\n"+
		"<p>Total: <strong>%d</strong></p>\n</div>\n</body></html>\n",
		s.Passed, s.Failed, s.Total)
	return err
}

func (h *HTMLWriter) Close() error { return nil }
