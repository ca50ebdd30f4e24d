package probe

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"golang.org/x/time/rate"

	"github.com/maxvaer/secprobe/internal/client"
	"github.com/maxvaer/secprobe/internal/detect"
	"github.com/maxvaer/secprobe/internal/match"
	"github.com/maxvaer/secprobe/internal/schema"
)

// Probe names as they appear in reports.
const (
	NameToken          = "Acquire CSRF token"
	NameCSRFRejected   = "CSRF - request without token rejected"
	NameCSRFAccepted   = "CSRF - request with valid token accepted"
	NameXSSReachable   = "XSS filter - endpoint reachable"
	NameXSSDetection   = "XSS detection - dangerous payload flagged"
	NameSQLDetector    = "SQL injection protection - detector present"
	NameSQLDetection   = "SQL injection detection - risky SQL flagged"
	NameRateLimit      = "Rate limiting - headers present"
	NameCaptcha        = "Captcha generation"
	NameAuthEnforced   = "Token verification - anonymous request rejected"
	tokenPreviewLength = 20
)

var csrfWords = []string{"CSRF", "Token"}

var (
	// Rejected without a token: a 403, or an explicit failure that blames
	// the CSRF token.
	csrfRejected = match.Any(
		match.Status(http.StatusForbidden),
		match.All(match.Success(false), match.MessageContains(csrfWords...)),
	)
	// Accepted with a token: anything but a 403 that does not mention the
	// token. Wrong credentials are still an acceptance.
	csrfAccepted = match.All(
		match.Not(match.Status(http.StatusForbidden)),
		match.Not(match.MessageContains(csrfWords...)),
	)
	authRejected = match.Status(http.StatusUnauthorized, http.StatusForbidden)
	statusOK     = match.Status(http.StatusOK)
)

// rateLimitHeaders lists the advisory headers in report order.
var rateLimitHeaders = []struct {
	label string
	re    *regexp.Regexp
}{
	{"Limit", regexp.MustCompile(`(?i)X-RateLimit-Limit:\s*(\d+)`)},
	{"Remaining", regexp.MustCompile(`(?i)X-RateLimit-Remaining:\s*(\d+)`)},
	{"Reset", regexp.MustCompile(`(?i)X-RateLimit-Reset:\s*(\d+)`)},
}

func (s *Suite) credentials() map[string]string {
	return map[string]string{
		"username": s.cfg.Username,
		"password": s.cfg.Password,
	}
}

// acquireToken fetches a CSRF token from the config endpoint. A 200 without
// a token falls back to the local TokenSource; any other status, or no
// local token, ends with a random token recorded as a failure but still
// returned so the with-token probe can run.
func (s *Suite) acquireToken(ctx context.Context) string {
	s.begin("Probe 1: acquire CSRF token")
	resp := s.get(ctx, PathConfig)

	if statusOK.Match(resp) {
		err := schema.Config.Validate(resp.Body)
		if err == nil {
			token := resp.String("data", "csrfToken")
			s.record(NameToken, true, "Token: "+preview(token))
			return token
		}
		s.cfg.Logger.Debug().Err(err).Msg("config response carries no token")

		if token := s.localToken(); token != "" {
			s.record(NameToken, true, "Generated locally: "+preview(token))
			return token
		}
	}

	token, err := s.cfg.Random()
	if err != nil {
		s.record(NameToken, false, fmt.Sprintf("%s, no CSRF token returned and random generation failed: %v", statusText(resp), err))
		return ""
	}
	s.record(NameToken, false, fmt.Sprintf("%s, no CSRF token returned; continuing with a random token", statusText(resp)))
	return token
}

func (s *Suite) localToken() string {
	if !s.cfg.Tokens.Available() {
		return ""
	}
	token, err := s.cfg.Tokens.GenerateToken()
	if err != nil {
		s.cfg.Logger.Debug().Err(err).Msg("local token generation failed")
		return ""
	}
	return token
}

func (s *Suite) csrfWithoutToken(ctx context.Context) {
	s.begin("Probe 2: CSRF - POST without token")
	resp := s.req.Do(ctx, client.Request{
		Method: http.MethodPost,
		Path:   PathLogin,
		JSON:   s.credentials(),
	})

	if csrfRejected.Match(resp) {
		s.record(NameCSRFRejected, true, withMessage(resp))
		return
	}
	s.record(NameCSRFRejected, false, fmt.Sprintf(
		"%s, expected 403 or a CSRF/Token error message (is the CSRF middleware enabled?)", statusText(resp)))
}

func (s *Suite) csrfWithToken(ctx context.Context, token string) {
	s.begin("Probe 3: CSRF - POST with valid token")
	body := s.credentials()
	body["_csrf_token"] = token
	resp := s.req.Do(ctx, client.Request{
		Method:  http.MethodPost,
		Path:    PathLogin,
		JSON:    body,
		Headers: map[string]string{"X-CSRF-Token": token},
	})

	if csrfAccepted.Match(resp) {
		s.record(NameCSRFAccepted, true, fmt.Sprintf("%s, request passed CSRF validation", statusText(resp)))
		return
	}
	s.record(NameCSRFAccepted, false, withMessage(resp))
}

func (s *Suite) xssFilter(ctx context.Context) {
	s.begin("Probe 4: XSS filtering")
	resp := s.get(ctx, PathConfig)

	if statusOK.Match(resp) {
		s.record(NameXSSReachable, true, "endpoint reachable, XSS middleware did not block a benign request")
	} else {
		s.record(NameXSSReachable, false, statusText(resp))
	}

	if !s.cfg.Detector.Available() {
		return
	}
	if s.cfg.Detector.ContainsXSS(XSSPayload) {
		s.record(NameXSSDetection, true, "script payload detected")
	} else {
		s.record(NameXSSDetection, false, "script payload not detected")
	}
}

func (s *Suite) sqlInjection() {
	s.begin("Probe 5: SQL injection protection")

	if !s.cfg.Detector.Available() {
		s.record(NameSQLDetector, false, "no local security detector available")
		return
	}
	s.record(NameSQLDetector, true, "")

	sql, ok := s.cfg.Detector.(detect.SQLDetector)
	if !ok {
		return
	}
	if sql.ContainsSQLInjection(SQLPayload) {
		s.record(NameSQLDetection, true, "SQL injection risk detected")
	} else {
		s.record(NameSQLDetection, false, "SQL injection risk not detected")
	}
}

// rateLimit issues a fixed number of paced requests and passes when
// any advisory rate-limit header was seen. The limiter only spaces the
// requests; it never retries.
func (s *Suite) rateLimit(ctx context.Context) {
	s.begin("Probe 6: rate limiting")
	limiter := rate.NewLimiter(rate.Every(s.cfg.RateLimitInterval), 1)
	seen := make(map[string]string, len(rateLimitHeaders))

	for i := 0; i < s.cfg.RateLimitRequests; i++ {
		if err := limiter.Wait(ctx); err != nil {
			s.cfg.Logger.Debug().Err(err).Msg("rate-limit pacing interrupted")
		}
		raw := s.get(ctx, PathConfig).RawHeaders()
		for _, h := range rateLimitHeaders {
			if m := h.re.FindStringSubmatch(raw); m != nil {
				seen[h.label] = m[1]
			}
		}
	}

	if len(seen) == 0 {
		s.record(NameRateLimit, false, "no rate-limit headers found (is the rate-limit middleware registered?)")
		return
	}
	parts := make([]string, 0, len(seen))
	for _, h := range rateLimitHeaders {
		if v, ok := seen[h.label]; ok {
			parts = append(parts, h.label+": "+v)
		}
	}
	s.record(NameRateLimit, true, strings.Join(parts, ", "))
}

func (s *Suite) captcha(ctx context.Context) {
	s.begin("Probe 7: captcha")
	resp := s.get(ctx, PathCaptcha)

	if !statusOK.Match(resp) {
		s.record(NameCaptcha, false, statusText(resp))
		return
	}
	if err := schema.Captcha.Validate(resp.Body); err != nil {
		s.cfg.Logger.Debug().Err(err).Msg("captcha envelope rejected")
		s.record(NameCaptcha, false, statusText(resp)+", captcha image missing or empty")
		return
	}
	image := resp.String("data", "image")
	s.record(NameCaptcha, true, fmt.Sprintf("captcha image generated, length: %d characters", len(image)))
}

func (s *Suite) authEnforcement(ctx context.Context) {
	s.begin("Probe 8: token verification")
	resp := s.get(ctx, PathUser)

	if authRejected.Match(resp) {
		s.record(NameAuthEnforced, true, withMessage(resp))
		return
	}
	s.record(NameAuthEnforced, false, fmt.Sprintf("%s, expected 401 or 403", statusText(resp)))
}

func statusText(resp *client.Response) string {
	return fmt.Sprintf("HTTP %d", resp.StatusCode)
}

// withMessage appends the server's message, when there is one.
func withMessage(resp *client.Response) string {
	if msg := resp.Message(); msg != "" {
		return statusText(resp) + ", " + msg
	}
	return statusText(resp)
}

func preview(token string) string {
	if len(token) > tokenPreviewLength {
		return token[:tokenPreviewLength] + "..."
	}
	return token + "..."
}
