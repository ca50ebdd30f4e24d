package hook

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/maxvaer/secprobe/internal/probe"
)

// Timeout bounds a single hook invocation.
const Timeout = 30 * time.Second

// payload is the JSON sent to the hook command via stdin.
type payload struct {
	RunID   string `json:"run_id"`
	Target  string `json:"target"`
	Section string `json:"section"`
	Name    string `json:"name"`
	Message string `json:"message"`
}

// Runner executes a shell command for each failed probe.
type Runner struct {
	cmd string
	log zerolog.Logger
}

// NewRunner creates a hook runner. cmd is the shell command to execute.
func NewRunner(cmd string, log zerolog.Logger) *Runner {
	return &Runner{cmd: cmd, log: log}
}

// Notify runs the hook once per failed result in report and returns the
// number of invocations. Hook errors are logged but never fail the run.
func (r *Runner) Notify(ctx context.Context, report probe.Report) int {
	n := 0
	for _, res := range report.Results {
		if res.Passed {
			continue
		}
		n++
		out, err := r.run(ctx, report, res)
		if err != nil {
			r.log.Warn().Err(err).Str("probe", res.Name).Msg("hook failed")
			continue
		}
		if len(out) > 0 {
			r.log.Info().Str("probe", res.Name).Msg(strings.TrimSpace(string(out)))
		}
	}
	return n
}

func (r *Runner) run(ctx context.Context, report probe.Report, res probe.Result) ([]byte, error) {
	data, err := json.Marshal(payload{
		RunID:   report.RunID,
		Target:  report.Target,
		Section: res.Section,
		Name:    res.Name,
		Message: res.Message,
	})
	if err != nil {
		return nil, errors.Wrap(err, "marshal hook payload")
	}

	ctx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()

	expanded := strings.NewReplacer(
		"{target}", report.Target,
		"{section}", res.Section,
		"{name}", res.Name,
		"{run_id}", report.RunID,
	).Replace(r.cmd)

	shell, args := shellCommand()
	cmd := exec.CommandContext(ctx, shell, append(args, expanded)...)
	cmd.Stdin = bytes.NewReader(data)

	out, err := cmd.Output()
	if err != nil {
		return out, errors.Wrapf(err, "running %q", expanded)
	}
	return out, nil
}

func shellCommand() (string, []string) {
	if runtime.GOOS == "windows" {
		return "cmd", []string{"/C"}
	}
	return "sh", []string{"-c"}
}
