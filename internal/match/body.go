package match

import (
	"strings"

	"github.com/maxvaer/secprobe/internal/client"
)

// MessageMatcher matches when the JSON "message" field contains any of the
// given words, ignoring case.
type MessageMatcher struct {
	words []string
}

// MessageContains creates a case-insensitive message matcher.
func MessageContains(words ...string) *MessageMatcher {
	lower := make([]string, len(words))
	for i, w := range words {
		lower[i] = strings.ToLower(w)
	}
	return &MessageMatcher{words: lower}
}

func (m *MessageMatcher) Name() string { return "message" }

func (m *MessageMatcher) Match(resp *client.Response) bool {
	return ContainsFold(resp.Message(), m.words...)
}

// SuccessMatcher matches when the JSON "success" field is present and
// equal to want.
type SuccessMatcher struct {
	want bool
}

// Success creates a matcher on the JSON "success" flag.
func Success(want bool) *SuccessMatcher {
	return &SuccessMatcher{want: want}
}

func (m *SuccessMatcher) Name() string { return "success" }

func (m *SuccessMatcher) Match(resp *client.Response) bool {
	v, ok := resp.Bool("success")
	return ok && v == m.want
}

// ContainsFold reports whether s contains any of words, case-insensitively.
func ContainsFold(s string, words ...string) bool {
	s = strings.ToLower(s)
	for _, w := range words {
		if strings.Contains(s, strings.ToLower(w)) {
			return true
		}
	}
	return false
}
