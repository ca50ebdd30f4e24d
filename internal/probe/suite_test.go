package probe

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxvaer/secprobe/internal/client"
	"github.com/maxvaer/secprobe/internal/config"
	"github.com/maxvaer/secprobe/internal/detect"
)

// fakeApp is a configurable stand-in for the application under test. The
// zero value is a well-behaved server on which every probe passes.
type fakeApp struct {
	noToken        bool
	configStatus   int
	acceptNoToken  bool
	rejectWithCSRF bool
	noRateHeaders  bool
	captchaImage   *string
	userStatus     int

	configHits atomic.Int32

	mu        sync.Mutex
	loginSeen []map[string]string
	csrfHdr   []string
	hitTimes  []time.Time
}

func (a *fakeApp) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/anon/common/config", func(w http.ResponseWriter, r *http.Request) {
		a.configHits.Add(1)
		a.mu.Lock()
		a.hitTimes = append(a.hitTimes, time.Now())
		a.mu.Unlock()
		if !a.noRateHeaders {
			w.Header().Set("X-RateLimit-Limit", "60")
			w.Header().Set("x-ratelimit-remaining", "59")
		}
		if a.configStatus != 0 {
			w.WriteHeader(a.configStatus)
			return
		}
		token := "abc123def456ghi789jkl012"
		if a.noToken {
			token = ""
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"csrfToken": token}})
	})
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		a.mu.Lock()
		a.loginSeen = append(a.loginSeen, body)
		a.csrfHdr = append(a.csrfHdr, r.Header.Get("X-CSRF-Token"))
		a.mu.Unlock()

		if body["_csrf_token"] == "" && !a.acceptNoToken {
			writeJSON(w, http.StatusForbidden, map[string]any{"success": false, "message": "Missing CSRF Token"})
			return
		}
		if a.rejectWithCSRF {
			writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "invalid csrf token"})
			return
		}
		writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "message": "wrong username or password"})
	})
	mux.HandleFunc("/auth/captcha", func(w http.ResponseWriter, r *http.Request) {
		image := "data:image/png;base64,iVBORw0KGgo="
		if a.captchaImage != nil {
			image = *a.captchaImage
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"image": image}})
	})
	mux.HandleFunc("/user/info", func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusUnauthorized
		if a.userStatus != 0 {
			status = a.userStatus
		}
		writeJSON(w, status, map[string]any{"success": false, "message": "please log in"})
	})
	return mux
}

// logins returns the decoded login bodies and X-CSRF-Token headers seen so far.
func (a *fakeApp) logins() ([]map[string]string, []string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]map[string]string(nil), a.loginSeen...), append([]string(nil), a.csrfHdr...)
}

func (a *fakeApp) configTimes() []time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]time.Time(nil), a.hitTimes...)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// recorder is a Reporter that keeps everything it is given.
type recorder struct {
	meta     Meta
	sections []string
	results  []Result
	summary  *Summary
}

func (r *recorder) WriteHeader(m Meta) error { r.meta = m; return nil }

func (r *recorder) WriteSection(title string) error {
	r.sections = append(r.sections, title)
	return nil
}

func (r *recorder) WriteResult(res Result) error {
	r.results = append(r.results, res)
	return nil
}

func (r *recorder) WriteFooter(s Summary) error { r.summary = &s; return nil }

func runSuite(t *testing.T, app *fakeApp, cfg Config) (Report, *recorder) {
	t.Helper()
	srv := httptest.NewServer(app.handler())
	t.Cleanup(srv.Close)

	opts := config.Defaults()
	opts.URL = srv.URL
	req, err := client.NewRequester(&opts, zerolog.Nop())
	require.NoError(t, err)

	cfg.Logger = zerolog.Nop()
	if cfg.RateLimitInterval == 0 {
		cfg.RateLimitInterval = 10 * time.Millisecond
	}
	rec := &recorder{}
	report, err := NewSuite(req, cfg).Run(context.Background(), rec)
	require.NoError(t, err)
	return report, rec
}

func builtinCfg() Config {
	b := detect.Builtin()
	return Config{Tokens: b, Detector: b}
}

func resultByName(t *testing.T, results []Result, name string) Result {
	t.Helper()
	for _, r := range results {
		if r.Name == name {
			return r
		}
	}
	t.Fatalf("no result named %q in %+v", name, results)
	return Result{}
}

func hasResult(results []Result, name string) bool {
	for _, r := range results {
		if r.Name == name {
			return true
		}
	}
	return false
}

func TestAllProbesPass(t *testing.T) {
	report, rec := runSuite(t, &fakeApp{}, builtinCfg())

	names := make([]string, len(report.Results))
	for i, r := range report.Results {
		names[i] = r.Name
		assert.True(t, r.Passed, "%s: %s", r.Name, r.Message)
	}
	assert.Equal(t, []string{
		NameToken, NameCSRFRejected, NameCSRFAccepted, NameXSSReachable, NameXSSDetection,
		NameSQLDetector, NameSQLDetection, NameRateLimit, NameCaptcha, NameAuthEnforced,
	}, names)

	assert.Equal(t, Summary{Passed: 10, Failed: 0, Total: 10}, report.Summary)
	assert.Equal(t, 0, report.Summary.ExitCode())
	assert.Equal(t, report.Results, rec.results)
	require.NotNil(t, rec.summary)
	assert.Equal(t, report.Summary, *rec.summary)
	assert.Len(t, rec.sections, 8)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, rec.meta.RunID, report.RunID)
}

func TestTokenFromServer(t *testing.T) {
	app := &fakeApp{}
	report, _ := runSuite(t, app, builtinCfg())

	r := resultByName(t, report.Results, NameToken)
	assert.True(t, r.Passed)
	assert.Equal(t, "Token: abc123def456ghi789jk...", r.Message)

	bodies, headers := app.logins()
	require.Len(t, bodies, 2)
	assert.Empty(t, bodies[0]["_csrf_token"])
	assert.Empty(t, headers[0])
	assert.Equal(t, "abc123def456ghi789jkl012", bodies[1]["_csrf_token"])
	assert.Equal(t, "abc123def456ghi789jkl012", headers[1])
	assert.Equal(t, "test", bodies[1]["username"])
}

func TestTokenFallbacks(t *testing.T) {
	t.Run("local generator", func(t *testing.T) {
		report, _ := runSuite(t, &fakeApp{noToken: true}, builtinCfg())
		r := resultByName(t, report.Results, NameToken)
		assert.True(t, r.Passed)
		assert.True(t, strings.HasPrefix(r.Message, "Generated locally: "))
		assert.True(t, hasResult(report.Results, NameCSRFAccepted))
	})

	t.Run("random token records failure", func(t *testing.T) {
		app := &fakeApp{configStatus: http.StatusInternalServerError}
		report, _ := runSuite(t, app, Config{})
		r := resultByName(t, report.Results, NameToken)
		assert.False(t, r.Passed)
		assert.Contains(t, r.Message, "HTTP 500")

		// The random token still reaches the with-token probe.
		bodies, _ := app.logins()
		require.Len(t, bodies, 2)
		assert.Len(t, bodies[1]["_csrf_token"], 64)
	})
}

func TestTokenFailsOnServerError(t *testing.T) {
	app := &fakeApp{configStatus: http.StatusInternalServerError}
	report, _ := runSuite(t, app, builtinCfg())

	r := resultByName(t, report.Results, NameToken)
	assert.False(t, r.Passed, r.Message)
	assert.Contains(t, r.Message, "HTTP 500")
	assert.NotContains(t, r.Message, "Generated locally")
}

func TestTokenFailsWhenConfigUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	opts := config.Defaults()
	opts.URL = url
	req, err := client.NewRequester(&opts, zerolog.Nop())
	require.NoError(t, err)

	cfg := builtinCfg()
	cfg.RateLimitInterval = time.Millisecond
	report, err := NewSuite(req, cfg).Run(context.Background(), &recorder{})
	require.NoError(t, err)

	r := resultByName(t, report.Results, NameToken)
	assert.False(t, r.Passed, r.Message)
	assert.Contains(t, r.Message, "HTTP 0")
}

func TestNoTokenSkipsWithTokenCheck(t *testing.T) {
	app := &fakeApp{configStatus: http.StatusInternalServerError}
	cfg := builtinCfg()
	cfg.Random = func() (string, error) { return "", errors.New("entropy exhausted") }
	report, _ := runSuite(t, app, cfg)

	r := resultByName(t, report.Results, NameToken)
	assert.False(t, r.Passed)
	assert.Contains(t, r.Message, "entropy exhausted")
	assert.False(t, hasResult(report.Results, NameCSRFAccepted))

	bodies, _ := app.logins()
	assert.Len(t, bodies, 1)
}

func TestNewSuiteDefaults(t *testing.T) {
	s := NewSuite(nil, Config{})
	assert.Equal(t, 100*time.Millisecond, s.cfg.RateLimitInterval)
	assert.Equal(t, 5, s.cfg.RateLimitRequests)
	assert.NotNil(t, s.cfg.Random)

	s = NewSuite(nil, Config{RateLimitInterval: time.Millisecond})
	assert.Equal(t, time.Millisecond, s.cfg.RateLimitInterval)
}

func TestCSRFWithoutTokenPredicate(t *testing.T) {
	t.Run("accepted without token fails", func(t *testing.T) {
		report, _ := runSuite(t, &fakeApp{acceptNoToken: true}, builtinCfg())
		r := resultByName(t, report.Results, NameCSRFRejected)
		assert.False(t, r.Passed)
		assert.Contains(t, r.Message, "HTTP 401")
	})

	t.Run("403 passes", func(t *testing.T) {
		report, _ := runSuite(t, &fakeApp{}, builtinCfg())
		r := resultByName(t, report.Results, NameCSRFRejected)
		assert.True(t, r.Passed)
		assert.Equal(t, "HTTP 403, Missing CSRF Token", r.Message)
	})
}

func TestCSRFWithTokenRejected(t *testing.T) {
	report, _ := runSuite(t, &fakeApp{rejectWithCSRF: true}, builtinCfg())
	r := resultByName(t, report.Results, NameCSRFAccepted)
	assert.False(t, r.Passed)
	assert.Equal(t, "HTTP 400, invalid csrf token", r.Message)
	assert.Equal(t, 1, report.Summary.ExitCode())
}

func TestNullCapabilities(t *testing.T) {
	report, _ := runSuite(t, &fakeApp{}, Config{Tokens: detect.Null(), Detector: detect.Null()})

	assert.False(t, hasResult(report.Results, NameXSSDetection))
	assert.False(t, hasResult(report.Results, NameSQLDetection))
	r := resultByName(t, report.Results, NameSQLDetector)
	assert.False(t, r.Passed)
	assert.Equal(t, Summary{Passed: 7, Failed: 1, Total: 8}, report.Summary)
}

// xssOnly is a detector without SQL support.
type xssOnly struct{ verdict bool }

func (xssOnly) Available() bool           { return true }
func (x xssOnly) ContainsXSS(string) bool { return x.verdict }

func TestDetectorWithoutSQLSupport(t *testing.T) {
	report, _ := runSuite(t, &fakeApp{}, Config{Detector: xssOnly{verdict: false}})

	assert.True(t, resultByName(t, report.Results, NameSQLDetector).Passed)
	assert.False(t, hasResult(report.Results, NameSQLDetection))
	r := resultByName(t, report.Results, NameXSSDetection)
	assert.False(t, r.Passed)
}

func TestRateLimitProbe(t *testing.T) {
	t.Run("headers seen", func(t *testing.T) {
		app := &fakeApp{}
		report, _ := runSuite(t, app, Config{RateLimitInterval: 20 * time.Millisecond})
		r := resultByName(t, report.Results, NameRateLimit)
		assert.True(t, r.Passed)
		assert.Equal(t, "Limit: 60, Remaining: 59", r.Message)

		// token + xss + 5 rate-limit requests
		assert.EqualValues(t, 7, app.configHits.Load())

		times := app.configTimes()[2:]
		require.Len(t, times, 5)
		for i := 1; i < len(times); i++ {
			assert.GreaterOrEqual(t, times[i].Sub(times[i-1]), 15*time.Millisecond)
		}
	})

	t.Run("no headers", func(t *testing.T) {
		app := &fakeApp{noRateHeaders: true}
		report, _ := runSuite(t, app, Config{})
		assert.False(t, resultByName(t, report.Results, NameRateLimit).Passed)
		assert.EqualValues(t, 7, app.configHits.Load())
	})
}

func TestCaptchaProbe(t *testing.T) {
	empty := ""
	report, _ := runSuite(t, &fakeApp{captchaImage: &empty}, builtinCfg())
	r := resultByName(t, report.Results, NameCaptcha)
	assert.False(t, r.Passed)
	assert.Contains(t, r.Message, "HTTP 200")

	report, _ = runSuite(t, &fakeApp{}, builtinCfg())
	r = resultByName(t, report.Results, NameCaptcha)
	assert.True(t, r.Passed)
	assert.Equal(t, "captcha image generated, length: 34 characters", r.Message)
}

func TestAuthEnforcement(t *testing.T) {
	tests := []struct {
		status int
		want   bool
	}{
		{http.StatusUnauthorized, true},
		{http.StatusForbidden, true},
		{http.StatusOK, false},
		{http.StatusNotFound, false},
	}
	for _, tt := range tests {
		report, _ := runSuite(t, &fakeApp{userStatus: tt.status}, builtinCfg())
		r := resultByName(t, report.Results, NameAuthEnforced)
		assert.Equal(t, tt.want, r.Passed, "status %d", tt.status)
		if !tt.want {
			assert.Contains(t, r.Message, "expected 401 or 403")
		}
	}
}

func TestUnreachableTarget(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	opts := config.Defaults()
	opts.URL = url
	req, err := client.NewRequester(&opts, zerolog.Nop())
	require.NoError(t, err)

	rec := &recorder{}
	report, err := NewSuite(req, Config{RateLimitInterval: time.Millisecond}).Run(context.Background(), rec)
	require.NoError(t, err)

	s := report.Summary
	assert.Equal(t, s.Total, s.Passed+s.Failed)
	assert.Equal(t, len(report.Results), s.Total)
	assert.Equal(t, 1, s.ExitCode())
	for _, r := range report.Results {
		if r.Name == NameCSRFAccepted {
			// 403 is never returned, and there is no message: accepted.
			continue
		}
		assert.False(t, r.Passed, r.Name)
	}
	assert.Contains(t, resultByName(t, report.Results, NameAuthEnforced).Message, "HTTP 0")
}

func TestIdempotentPattern(t *testing.T) {
	app := &fakeApp{acceptNoToken: true}
	first, _ := runSuite(t, app, builtinCfg())
	second, _ := runSuite(t, app, builtinCfg())

	require.Len(t, second.Results, len(first.Results))
	for i := range first.Results {
		assert.Equal(t, first.Results[i].Name, second.Results[i].Name)
		assert.Equal(t, first.Results[i].Passed, second.Results[i].Passed)
	}
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestSummarize(t *testing.T) {
	tests := []struct {
		name    string
		results []Result
		want    Summary
		exit    int
	}{
		{name: "empty", results: nil, want: Summary{}, exit: 0},
		{name: "all pass", results: []Result{{Passed: true}, {Passed: true}}, want: Summary{Passed: 2, Total: 2}, exit: 0},
		{name: "mixed", results: []Result{{Passed: true}, {Passed: false}, {Passed: false}}, want: Summary{Passed: 1, Failed: 2, Total: 3}, exit: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Summarize(tt.results)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.exit, got.ExitCode())
		})
	}
}
