package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/maxvaer/secprobe/internal/probe"
)

// ANSI color codes.
const (
	colorReset = "\033[0m"
	colorGreen = "\033[32m"
	colorRed   = "\033[31m"
	colorBold  = "\033[1m"
	colorDim   = "\033[2m"
)

const rule = "========================================"

// TextWriter writes one line per result, for terminals and logs.
type TextWriter struct {
	w       io.Writer
	noColor bool
}

// NewTextWriter creates a text report writer. Colour is only used when w
// is a terminal and noColor is false.
func NewTextWriter(w io.Writer, noColor bool) *TextWriter {
	if !noColor && !isTerminal(w) {
		noColor = true
	}
	return &TextWriter{w: w, noColor: noColor}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (t *TextWriter) paint(color, s string) string {
	if t.noColor {
		return s
	}
	return color + s + colorReset
}

func (t *TextWriter) WriteHeader(meta probe.Meta) error {
	_, err := fmt.Fprintf(t.w, "%s\n%s\n%s\n%s\n",
		rule,
		t.paint(colorBold, meta.Title),
		t.paint(colorDim, "Target: "+meta.Target),
		rule,
	)
	return err
}

func (t *TextWriter) WriteSection(title string) error {
	_, err := fmt.Fprintf(t.w, "\n%s\n", t.paint(colorBold, title))
	return err
}

func (t *TextWriter) WriteResult(r probe.Result) error {
	var line strings.Builder
	if r.Passed {
		line.WriteString(t.paint(colorGreen, "✅ "+r.Name))
	} else {
		line.WriteString(t.paint(colorRed, "❌ "+r.Name))
	}
	if r.Message != "" {
		line.WriteString(" - ")
		line.WriteString(r.Message)
	}
	_, err := fmt.Fprintln(t.w, line.String())
	return err
}

func (t *TextWriter) WriteFooter(s probe.Summary) error {
	_, err := fmt.Fprintf(t.w, "\n%s\nSummary\n%s\nPassed: %d\nFailed: %d\nTotal:  %d\n%s\n",
		rule, rule, s.Passed, s.Failed, s.Total, rule)
	return err
}

func (t *TextWriter) Close() error { return nil }
