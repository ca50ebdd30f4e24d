package output

import (
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/maxvaer/secprobe/internal/probe"
)

// Writer is implemented by each report format.
type Writer interface {
	probe.Reporter
	Close() error
}

// Formats lists the accepted --format values.
var Formats = []string{"text", "html", "json"}

// New creates a writer for format that writes to w.
func New(format string, w io.Writer, noColor bool) (Writer, error) {
	switch format {
	case "", "text":
		return NewTextWriter(w, noColor), nil
	case "html":
		return NewHTMLWriter(w), nil
	case "json":
		return NewJSONWriter(w), nil
	default:
		return nil, errors.Errorf("unknown output format %q", format)
	}
}

// Open creates a writer for format. If outputFile is empty, stdout is
// used; Close releases the file otherwise.
func Open(format, outputFile string, noColor bool) (Writer, error) {
	var w io.Writer = os.Stdout
	var closer io.Closer
	if outputFile != "" {
		f, err := os.Create(outputFile)
		if err != nil {
			return nil, errors.Wrap(err, "creating output file")
		}
		w = f
		closer = f
		noColor = true
	}
	inner, err := New(format, w, noColor)
	if err != nil {
		if closer != nil {
			_ = closer.Close()
		}
		return nil, err
	}
	if closer == nil {
		return inner, nil
	}
	return &fileWriter{Writer: inner, file: closer}, nil
}

type fileWriter struct {
	Writer
	file io.Closer
}

func (f *fileWriter) Close() error {
	err := f.Writer.Close()
	if cerr := f.file.Close(); err == nil {
		err = cerr
	}
	return err
}
