package runner

import (
	"context"
	"io"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/maxvaer/secprobe/internal/client"
	"github.com/maxvaer/secprobe/internal/config"
	"github.com/maxvaer/secprobe/internal/detect"
	"github.com/maxvaer/secprobe/internal/hook"
	"github.com/maxvaer/secprobe/internal/output"
	"github.com/maxvaer/secprobe/internal/probe"
)

// ErrProbesFailed is returned by Run when at least one probe failed. The
// CLI maps it to exit status 1.
var ErrProbesFailed = errors.New("one or more probes failed")

// Run executes the probe suite against opts.URL and writes the report to
// opts.OutputFile, or stdout when empty. Failing probes are reported via
// ErrProbesFailed; any other error means the run could not be set up or
// the report could not be written.
func Run(ctx context.Context, opts *config.Options, log zerolog.Logger) (probe.Report, error) {
	out, err := output.Open(opts.OutputFormat, opts.OutputFile, opts.NoColor)
	if err != nil {
		return probe.Report{}, errors.Wrap(err, "creating output writer")
	}
	report, err := execute(ctx, opts, out, log)
	return report, closeWriter(out, err)
}

// RunTo is like Run but writes the report to w.
func RunTo(ctx context.Context, opts *config.Options, w io.Writer, log zerolog.Logger) (probe.Report, error) {
	out, err := output.New(opts.OutputFormat, w, opts.NoColor)
	if err != nil {
		return probe.Report{}, err
	}
	report, err := execute(ctx, opts, out, log)
	return report, closeWriter(out, err)
}

// closeWriter closes out, letting a close failure replace ErrProbesFailed
// but never a setup or write error.
func closeWriter(out output.Writer, err error) error {
	cerr := out.Close()
	if cerr != nil && (err == nil || errors.Is(err, ErrProbesFailed)) {
		return errors.Wrap(cerr, "closing report")
	}
	return err
}

func execute(ctx context.Context, opts *config.Options, out output.Writer, log zerolog.Logger) (probe.Report, error) {
	req, err := client.NewRequester(opts, log)
	if err != nil {
		return probe.Report{}, errors.Wrap(err, "creating requester")
	}

	suite := probe.NewSuite(req, suiteConfig(opts, log))
	report, err := suite.Run(ctx, out)
	if err != nil {
		return report, errors.Wrap(err, "writing report")
	}
	if opts.OnFailCmd != "" {
		hook.NewRunner(opts.OnFailCmd, log).Notify(ctx, report)
	}
	if !report.Summary.OK() {
		return report, ErrProbesFailed
	}
	return report, nil
}

func suiteConfig(opts *config.Options, log zerolog.Logger) probe.Config {
	cfg := probe.Config{
		Username:          opts.Username,
		Password:          opts.Password,
		RateLimitRequests: opts.RateLimitRequests,
		RateLimitInterval: opts.RateLimitInterval,
		Logger:            log,
	}
	if opts.NoLocal {
		cfg.Tokens, cfg.Detector = detect.Null(), detect.Null()
	} else {
		b := detect.Builtin()
		cfg.Tokens, cfg.Detector = b, b
	}
	return cfg
}
