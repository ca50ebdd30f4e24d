package probe

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	uuid "github.com/satori/go.uuid"

	"github.com/maxvaer/secprobe/internal/client"
	"github.com/maxvaer/secprobe/internal/detect"
)

// Title heads every report.
const Title = "Security feature smoke test"

// Endpoints on the application under test.
const (
	PathConfig  = "/anon/common/config"
	PathLogin   = "/auth/login"
	PathCaptcha = "/auth/captcha"
	PathUser    = "/user/info"
)

// Payloads fed to local detectors.
const (
	XSSPayload = `<script>alert("xss")</script>`
	SQLPayload = "SELECT * FROM users WHERE id = 1 OR 1=1"
)

// Doer sends one request and always returns a response snapshot.
type Doer interface {
	Do(ctx context.Context, req client.Request) *client.Response
	BaseURL() string
}

// Config controls a Suite. Zero values fall back to the defaults used by
// the CLI.
type Config struct {
	Username string
	Password string

	Tokens   detect.TokenSource
	Detector detect.Detector
	// Random supplies the last-resort token. Defaults to detect.RandomToken.
	Random func() (string, error)

	RateLimitRequests int
	RateLimitInterval time.Duration

	Logger zerolog.Logger
}

// Suite runs the fixed sequence of probes against one target.
type Suite struct {
	req Doer
	cfg Config

	rep     Reporter
	repErr  error
	section string
	results []Result
}

// NewSuite creates a suite. A nil Tokens or Detector selects the null
// adapter. A zero RateLimitInterval means unset and selects 100ms.
func NewSuite(req Doer, cfg Config) *Suite {
	if cfg.Username == "" {
		cfg.Username = "test"
	}
	if cfg.Password == "" {
		cfg.Password = "test"
	}
	if cfg.Tokens == nil {
		cfg.Tokens = detect.Null()
	}
	if cfg.Detector == nil {
		cfg.Detector = detect.Null()
	}
	if cfg.Random == nil {
		cfg.Random = detect.RandomToken
	}
	if cfg.RateLimitRequests <= 0 {
		cfg.RateLimitRequests = 5
	}
	if cfg.RateLimitInterval <= 0 {
		cfg.RateLimitInterval = 100 * time.Millisecond
	}
	return &Suite{req: req, cfg: cfg}
}

// Run executes every probe in order, streaming sections and results to
// rep, and returns the finished report. Probe failures never stop the
// run; the returned error is the first reporter write error, if any.
func (s *Suite) Run(ctx context.Context, rep Reporter) (Report, error) {
	s.rep = rep
	s.repErr = nil
	s.results = nil

	report := Report{
		RunID:  uuid.NewV4().String(),
		Target: s.req.BaseURL(),
	}
	s.cfg.Logger.Info().Str("target", report.Target).Str("run_id", report.RunID).Msg("starting probes")

	s.emit(rep.WriteHeader(Meta{Title: Title, Target: report.Target, RunID: report.RunID}))

	token := s.acquireToken(ctx)
	s.csrfWithoutToken(ctx)
	if token != "" {
		s.csrfWithToken(ctx, token)
	}
	s.xssFilter(ctx)
	s.sqlInjection()
	s.rateLimit(ctx)
	s.captcha(ctx)
	s.authEnforcement(ctx)

	report.Results = s.Results()
	report.Summary = Summarize(report.Results)
	s.emit(rep.WriteFooter(report.Summary))

	s.cfg.Logger.Info().
		Int("passed", report.Summary.Passed).
		Int("failed", report.Summary.Failed).
		Msg("probes finished")

	return report, s.repErr
}

// Results returns a copy of the results recorded so far.
func (s *Suite) Results() []Result {
	out := make([]Result, len(s.results))
	copy(out, s.results)
	return out
}

func (s *Suite) begin(title string) {
	s.section = title
	s.emit(s.rep.WriteSection(title))
}

func (s *Suite) record(name string, passed bool, message string) {
	r := Result{Section: s.section, Name: name, Passed: passed, Message: message}
	s.results = append(s.results, r)

	ev := s.cfg.Logger.Debug()
	if !passed {
		ev = s.cfg.Logger.Warn()
	}
	ev.Str("probe", name).Bool("passed", passed).Msg(message)

	s.emit(s.rep.WriteResult(r))
}

func (s *Suite) emit(err error) {
	if err != nil && s.repErr == nil {
		s.repErr = err
	}
}

func (s *Suite) get(ctx context.Context, path string) *client.Response {
	return s.req.Do(ctx, client.Request{Path: path})
}
