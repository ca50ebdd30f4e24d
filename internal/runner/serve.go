package runner

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/maxvaer/secprobe/internal/config"
)

// Handler serves reports over HTTP. Each GET runs the suite once; the url
// query parameter overrides the target and format selects html (default)
// or json. The response status is 200 whenever a report was produced,
// whatever the probe outcomes; X-Secprobe-Failed carries the failure count.
func Handler(base config.Options, log zerolog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		opts := base
		opts.OutputFile = ""
		opts.NoColor = true
		// The url query is caller-controlled; never expand it into a shell.
		opts.OnFailCmd = ""
		if u := strings.TrimSpace(r.URL.Query().Get("url")); u != "" {
			if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
				u = "http://" + u
			}
			opts.URL = u
		}
		opts.OutputFormat = "html"
		contentType := "text/html; charset=utf-8"
		if r.URL.Query().Get("format") == "json" {
			opts.OutputFormat = "json"
			contentType = "application/json"
		}

		reqLog := log.With().Str("remote", r.RemoteAddr).Str("target", opts.URL).Logger()

		var buf bytes.Buffer
		report, err := RunTo(r.Context(), &opts, &buf, reqLog)
		if err != nil && !errors.Is(err, ErrProbesFailed) {
			reqLog.Error().Err(err).Msg("run failed")
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", contentType)
		w.Header().Set("X-Secprobe-Failed", strconv.Itoa(report.Summary.Failed))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(buf.Bytes())
	})
}
