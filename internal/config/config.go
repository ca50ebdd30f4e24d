package config

import "time"

// DefaultURL is the target used when no -u flag or url query parameter is given.
const DefaultURL = "http://localhost:98"

// Options holds all configuration for a secprobe run.
type Options struct {
	// Target
	URL      string
	Username string
	Password string

	// HTTP
	Timeout         time.Duration // 0 = no client timeout
	Headers         map[string]string
	UserAgent       string
	Proxy           string
	FollowRedirects bool

	// Checks
	NoLocal           bool // use the null capability adapters
	RateLimitRequests int
	RateLimitInterval time.Duration

	// Output
	OutputFile   string
	OutputFormat string // "text", "html", "json"
	Quiet        bool
	NoColor      bool

	// Hooks
	OnFailCmd string // shell command run once per failed probe

	// Logging
	LogLevel string
	LogFile  string

	// Serve
	Listen string
}

// Defaults returns Options populated with the values used when no flag is set.
func Defaults() Options {
	return Options{
		URL:               DefaultURL,
		Username:          "test",
		Password:          "test",
		FollowRedirects:   true,
		RateLimitRequests: 5,
		RateLimitInterval: 100 * time.Millisecond,
		OutputFormat:      "text",
		LogLevel:          "info",
		Listen:            ":8098",
	}
}
