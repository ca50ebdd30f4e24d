package match

import "github.com/maxvaer/secprobe/internal/client"

// StatusMatcher matches responses whose status code is in a fixed set.
type StatusMatcher struct {
	codes map[int]struct{}
}

// Status creates a status code matcher.
func Status(codes ...int) *StatusMatcher {
	m := &StatusMatcher{codes: make(map[int]struct{}, len(codes))}
	for _, code := range codes {
		m.codes[code] = struct{}{}
	}
	return m
}

func (m *StatusMatcher) Name() string { return "status" }

func (m *StatusMatcher) Match(resp *client.Response) bool {
	_, ok := m.codes[resp.StatusCode]
	return ok
}
