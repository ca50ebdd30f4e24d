package probe

// Result is the outcome of one check. Results are appended in execution
// order and never modified afterwards.
type Result struct {
	Section string `json:"section"`
	Name    string `json:"name"`
	Passed  bool   `json:"passed"`
	Message string `json:"message,omitempty"`
}

// Summary is derived from a result list; it is never stored separately.
type Summary struct {
	Passed int `json:"passed"`
	Failed int `json:"failed"`
	Total  int `json:"total"`
}

// Summarize counts passed and failed results.
func Summarize(results []Result) Summary {
	var s Summary
	for _, r := range results {
		if r.Passed {
			s.Passed++
		} else {
			s.Failed++
		}
	}
	s.Total = len(results)
	return s
}

// OK reports whether every result passed.
func (s Summary) OK() bool { return s.Failed == 0 }

// ExitCode returns the process exit status for the run: 0 when all
// probes passed, 1 otherwise.
func (s Summary) ExitCode() int {
	if s.OK() {
		return 0
	}
	return 1
}

// Report is the complete outcome of one run.
type Report struct {
	RunID   string   `json:"run_id"`
	Target  string   `json:"target"`
	Results []Result `json:"results"`
	Summary Summary  `json:"summary"`
}
