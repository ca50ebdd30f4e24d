package logging

import (
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/maxvaer/secprobe/internal/config"
)

// Setup builds the diagnostic logger for a run. Console output goes to
// stderr so the report on stdout stays clean; when opts.LogFile is set the
// same events are also written as JSON lines to a rotating file.
func Setup(opts *config.Options) (zerolog.Logger, io.Closer, error) {
	level := opts.LogLevel
	if level == "" {
		level = "info"
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), nil, errors.Wrapf(err, "invalid log level %q", level)
	}
	if opts.Quiet && lvl < zerolog.WarnLevel {
		lvl = zerolog.WarnLevel
	}

	console := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		NoColor:    opts.NoColor,
		TimeFormat: time.Kitchen,
	}

	var w io.Writer = console
	var closer io.Closer = nopCloser{}
	if opts.LogFile != "" {
		file := &lumberjack.Logger{
			Filename:   opts.LogFile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		}
		w = zerolog.MultiLevelWriter(console, file)
		closer = file
	}

	logger := zerolog.New(w).Level(lvl).With().Timestamp().Logger()
	return logger, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
