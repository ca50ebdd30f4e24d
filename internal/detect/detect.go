// Package detect provides the optional in-process capabilities the probe
// suite can fall back to: a CSRF token generator and XSS / SQL-injection
// detectors. Callers pick an adapter when building the suite; nothing is
// discovered at run time.
package detect

// TokenSource generates CSRF tokens locally.
type TokenSource interface {
	Available() bool
	GenerateToken() (string, error)
}

// Detector flags script-injection payloads.
type Detector interface {
	Available() bool
	ContainsXSS(text string) bool
}

// SQLDetector is implemented by detectors that can also flag SQL-injection
// payloads.
type SQLDetector interface {
	ContainsSQLInjection(text string) bool
}
