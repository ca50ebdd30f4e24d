package detect

import "github.com/pkg/errors"

// ErrUnavailable is returned by the null adapter's generator.
var ErrUnavailable = errors.New("capability unavailable")

// NullCapabilities reports every capability as unavailable. It does not
// implement SQLDetector.
type NullCapabilities struct{}

// Null returns the absent adapter.
func Null() NullCapabilities { return NullCapabilities{} }

func (NullCapabilities) Available() bool { return false }

func (NullCapabilities) GenerateToken() (string, error) { return "", ErrUnavailable }

func (NullCapabilities) ContainsXSS(string) bool { return false }
