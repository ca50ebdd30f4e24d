package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/maxvaer/secprobe/internal/config"
	"github.com/maxvaer/secprobe/internal/logging"
	"github.com/maxvaer/secprobe/internal/output"
	"github.com/maxvaer/secprobe/internal/runner"
	"github.com/maxvaer/secprobe/pkg/version"
)

var opts = config.Defaults()

type flagGroup struct {
	title string
	flags []string
}

var helpGroups = []flagGroup{
	{"TARGET", []string{"url", "username", "password"}},
	{"HTTP", []string{"header", "user-agent", "proxy", "timeout", "follow-redirects"}},
	{"CHECKS", []string{"no-local", "rate-limit-requests", "rate-limit-interval"}},
	{"OUTPUT", []string{"output", "format", "quiet", "no-color"}},
	{"HOOKS", []string{"on-fail"}},
	{"LOGGING", []string{"log-level", "log-file"}},
	{"SERVE", []string{"listen"}},
}

var rootCmd = &cobra.Command{
	Use:     "secprobe [-u <url>] [flags]",
	Short:   "Smoke-test the security features of a running web application",
	Version: version.Version,
	Long: `secprobe exercises the security surface of a running web application:
CSRF token issuance and enforcement, XSS and SQL-injection detection,
rate-limit headers, captcha generation and authentication enforcement.
It prints a pass/fail report and exits 1 when any probe failed.`,
	Example: `  secprobe
  secprobe -u https://staging.example.com
  secprobe -u http://localhost:98 --format json -o report.json
  secprobe -u http://localhost:98 --no-local --log-level debug
  secprobe serve --listen :8098`,
	PersistentPreRunE: validateOptions,
	RunE:              runProbes,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

func init() {
	f := rootCmd.PersistentFlags()

	// Target
	f.StringVarP(&opts.URL, "url", "u", opts.URL, "Target base URL")
	f.StringVar(&opts.Username, "username", opts.Username, "Username sent to the login endpoint")
	f.StringVar(&opts.Password, "password", opts.Password, "Password sent to the login endpoint")

	// HTTP
	f.StringSliceP("header", "H", nil, "Custom headers (Key: Value)")
	f.StringVar(&opts.UserAgent, "user-agent", "", "Custom User-Agent string")
	f.StringVar(&opts.Proxy, "proxy", "", "HTTP/SOCKS proxy URL")
	f.DurationVar(&opts.Timeout, "timeout", 0, "HTTP request timeout (0 = none)")
	f.BoolVar(&opts.FollowRedirects, "follow-redirects", opts.FollowRedirects, "Follow HTTP redirects")

	// Checks
	f.BoolVar(&opts.NoLocal, "no-local", false, "Disable the built-in token generator and XSS/SQL detectors")
	f.IntVar(&opts.RateLimitRequests, "rate-limit-requests", opts.RateLimitRequests, "Requests issued by the rate-limit probe")
	f.DurationVar(&opts.RateLimitInterval, "rate-limit-interval", opts.RateLimitInterval, "Pause between rate-limit probe requests")

	// Output
	f.StringVarP(&opts.OutputFile, "output", "o", "", "Output file path")
	f.StringVar(&opts.OutputFormat, "format", opts.OutputFormat, "Output format: "+strings.Join(output.Formats, ", "))
	f.BoolVarP(&opts.Quiet, "quiet", "q", false, "Only log warnings and errors")
	f.BoolVar(&opts.NoColor, "no-color", false, "Disable colored output")

	// Hooks
	f.StringVar(&opts.OnFailCmd, "on-fail", "", "Shell command run per failed probe (JSON on stdin; {name}, {section}, {target}, {run_id} placeholders)")

	// Logging
	f.StringVar(&opts.LogLevel, "log-level", opts.LogLevel, "Log level: debug, info, warn, error")
	f.StringVar(&opts.LogFile, "log-file", "", "Also write JSON logs to this rotating file")

	rootCmd.AddCommand(serveCmd)

	// Custom help: categorized flags.
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		w := os.Stderr
		fmt.Fprint(w, helpBanner(rootCmd.Version))
		fmt.Fprintf(w, "%s\n\nUsage:\n  %s\n", cmd.Long, cmd.UseLine())
		if cmd.Example != "" {
			fmt.Fprintf(w, "\nExamples:\n%s\n", cmd.Example)
		}
		if cmd.HasAvailableSubCommands() {
			fmt.Fprintf(w, "\nCommands:\n")
			for _, sub := range cmd.Commands() {
				if sub.IsAvailableCommand() {
					fmt.Fprintf(w, "   %-12s%s\n", sub.Name(), sub.Short)
				}
			}
		}
		fmt.Fprintf(w, "\nFlags:\n")
		for _, g := range helpGroups {
			var lines []string
			for _, name := range g.flags {
				f := cmd.Flags().Lookup(name)
				if f == nil {
					f = cmd.InheritedFlags().Lookup(name)
				}
				if f != nil {
					lines = append(lines, formatFlag(f))
				}
			}
			if len(lines) == 0 {
				continue
			}
			fmt.Fprintf(w, "\n%s:\n%s\n", g.title, strings.Join(lines, "\n"))
		}
		fmt.Fprintln(w)
	})
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// The report already shows which probes failed.
		if !errors.Is(err, runner.ErrProbesFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func validateOptions(cmd *cobra.Command, args []string) error {
	if opts.URL == "" {
		opts.URL = config.DefaultURL
	}
	if !strings.HasPrefix(opts.URL, "http://") && !strings.HasPrefix(opts.URL, "https://") {
		opts.URL = "http://" + opts.URL
	}
	if !validFormat(opts.OutputFormat) {
		return errors.Errorf("--format must be one of: %s", strings.Join(output.Formats, ", "))
	}
	if opts.RateLimitRequests < 1 {
		return errors.New("--rate-limit-requests must be at least 1")
	}
	if opts.RateLimitInterval <= 0 {
		return errors.New("--rate-limit-interval must be positive")
	}

	headers, _ := cmd.Flags().GetStringSlice("header")
	if len(headers) > 0 {
		opts.Headers = make(map[string]string, len(headers))
		for _, h := range headers {
			parts := strings.SplitN(h, ":", 2)
			if len(parts) != 2 {
				return errors.Errorf("invalid header format %q, expected 'Key: Value'", h)
			}
			opts.Headers[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
	}
	return nil
}

func runProbes(cmd *cobra.Command, args []string) error {
	log, closer, err := logging.Setup(&opts)
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	_, err = runner.Run(ctx, &opts, log)
	return err
}

func validFormat(format string) bool {
	for _, f := range output.Formats {
		if f == format {
			return true
		}
	}
	return false
}

func formatFlag(f *pflag.Flag) string {
	var left string
	if f.Shorthand != "" {
		left = fmt.Sprintf("-%s, --%s", f.Shorthand, f.Name)
	} else {
		left = fmt.Sprintf("    --%s", f.Name)
	}

	typ := f.Value.Type()
	if typ != "bool" {
		left += " " + typ
	}

	// Pad to fixed column width for aligned descriptions.
	const col = 36
	for len(left) < col {
		left += " "
	}

	right := f.Usage
	// Show default for non-zero values.
	def := f.DefValue
	if def != "" && def != "false" && def != "0" && def != "0s" && def != "[]" {
		right += fmt.Sprintf(" (default %s)", def)
	}

	return "   " + left + right
}

func helpBanner(ver string) string {
	if ver != "dev" && ver != "" && !strings.HasPrefix(ver, "v") {
		ver = "v" + ver
	}
	return fmt.Sprintf(`
   ________  _________  _________  ____  ___  ___
  / ___/ _ \/ ___/ __ \/ ___/ __ \/ __ \/ _ \/ _ \
 (__  )  __/ /__/ /_/ / /  / /_/ / /_/ /  __/  __/
/____/\___/\___/ .___/_/   \____/_.___/\___/\___/   %s
              /_/

`, ver)
}
