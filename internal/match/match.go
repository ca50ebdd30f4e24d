package match

import "github.com/maxvaer/secprobe/internal/client"

// Matcher decides whether a response satisfies a probe condition.
type Matcher interface {
	Name() string
	Match(resp *client.Response) bool
}

// Chain combines matchers. An Any chain passes on the first matching
// member; an All chain fails on the first non-matching member.
type Chain struct {
	matchers []Matcher
	all      bool
}

// Any returns a chain that matches when at least one member matches.
func Any(ms ...Matcher) *Chain {
	return &Chain{matchers: ms}
}

// All returns a chain that matches only when every member matches.
func All(ms ...Matcher) *Chain {
	return &Chain{matchers: ms, all: true}
}

func (c *Chain) Name() string {
	if c.all {
		return "all"
	}
	return "any"
}

func (c *Chain) Match(resp *client.Response) bool {
	ok, _ := c.Apply(resp)
	return ok
}

// Apply evaluates the chain and returns the result together with the name
// of the matcher that decided it (the first hit for Any, the first miss
// for All).
func (c *Chain) Apply(resp *client.Response) (bool, string) {
	for _, m := range c.matchers {
		hit := m.Match(resp)
		if c.all && !hit {
			return false, m.Name()
		}
		if !c.all && hit {
			return true, m.Name()
		}
	}
	return c.all, ""
}

// Not inverts a matcher.
func Not(m Matcher) Matcher {
	return notMatcher{inner: m}
}

type notMatcher struct {
	inner Matcher
}

func (n notMatcher) Name() string { return "not-" + n.inner.Name() }

func (n notMatcher) Match(resp *client.Response) bool { return !n.inner.Match(resp) }
