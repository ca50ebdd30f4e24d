package detect

import (
	"crypto/rand"
	"encoding/hex"
	"regexp"

	"github.com/pkg/errors"
)

// tokenBytes is the entropy of generated tokens; hex encoding doubles it.
const tokenBytes = 32

var xssPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<\s*script[^>]*>`),
	regexp.MustCompile(`(?i)<\s*/\s*script\s*>`),
	regexp.MustCompile(`(?i)\bon[a-z]+\s*=`),
	regexp.MustCompile(`(?i)javascript\s*:`),
	regexp.MustCompile(`(?i)<\s*(iframe|object|embed|svg)\b`),
	regexp.MustCompile(`(?i)\balert\s*\(`),
}

var sqlPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(SELECT|INSERT|UPDATE|DELETE|DROP|UNION)\b.+\b(FROM|INTO|SET|TABLE|SELECT)\b`),
	regexp.MustCompile(`(?i)\b(OR|AND)\s*['"]?\w+['"]?\s*=\s*['"]?\w+['"]?`),
	regexp.MustCompile(`(?i)(--|#|/\*.*\*/)\s*$`),
	regexp.MustCompile(`(?i);\s*(DROP|DELETE|SHUTDOWN|EXEC)\b`),
	regexp.MustCompile(`(?i)\b(SLEEP|BENCHMARK|WAITFOR\s+DELAY)\b`),
}

// BuiltinCapabilities is the "present" adapter: it always reports itself
// available and implements TokenSource, Detector and SQLDetector.
type BuiltinCapabilities struct{}

// Builtin returns the present adapter.
func Builtin() BuiltinCapabilities { return BuiltinCapabilities{} }

func (BuiltinCapabilities) Available() bool { return true }

// GenerateToken returns a hex-encoded 32-byte random token.
func (BuiltinCapabilities) GenerateToken() (string, error) {
	return RandomToken()
}

func (BuiltinCapabilities) ContainsXSS(text string) bool {
	return matchAny(xssPatterns, text)
}

func (BuiltinCapabilities) ContainsSQLInjection(text string) bool {
	return matchAny(sqlPatterns, text)
}

// RandomToken is the last-resort token used when neither the server nor a
// TokenSource could provide one.
func RandomToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, "reading random bytes")
	}
	return hex.EncodeToString(buf), nil
}

func matchAny(patterns []*regexp.Regexp, text string) bool {
	for _, re := range patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}
