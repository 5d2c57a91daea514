package safety

import (
	"regexp"
	"strings"
)

// globToRegexp converts a branch glob into an anchored expression.
// '*' matches any run of characters including '/', '?' matches exactly one.
func globToRegexp(pattern string) string {
	var b strings.Builder
	b.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return b.String()
}

// MatchesPattern reports whether name matches the glob pattern.
// "dependabot/*" matches "dependabot/npm_and_yarn/lodash-4.17.21".
func MatchesPattern(name, pattern string) bool {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return false
	}
	if pattern == "*" {
		return true
	}
	re, err := regexp.Compile(globToRegexp(pattern))
	if err != nil {
		return false
	}
	return re.MatchString(name)
}

// Matcher is a precompiled set of glob patterns.
type Matcher struct {
	patterns []string
	res      []*regexp.Regexp
}

// NewMatcher compiles patterns. Blank patterns are dropped.
func NewMatcher(patterns []string) *Matcher {
	m := &Matcher{}
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		re, err := regexp.Compile(globToRegexp(p))
		if err != nil {
			continue
		}
		m.patterns = append(m.patterns, p)
		m.res = append(m.res, re)
	}
	return m
}

// Match returns the first pattern that matches name.
func (m *Matcher) Match(name string) (string, bool) {
	if m == nil {
		return "", false
	}
	for i, re := range m.res {
		if re.MatchString(name) {
			return m.patterns[i], true
		}
	}
	return "", false
}

func (m *Matcher) Empty() bool {
	return m == nil || len(m.res) == 0
}

// MatchesAny reports whether name matches at least one pattern.
func MatchesAny(name string, patterns []string) bool {
	_, ok := NewMatcher(patterns).Match(name)
	return ok
}
