package github

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/go-github/v81/github"
)

// StatusCode extracts the HTTP status from a go-github error. It returns 0
// when err carries no response.
func StatusCode(err error) int {
	var er *github.ErrorResponse
	if errors.As(err, &er) && er.Response != nil {
		return er.Response.StatusCode
	}
	var rle *github.RateLimitError
	if errors.As(err, &rle) && rle.Response != nil {
		return rle.Response.StatusCode
	}
	var arle *github.AbuseRateLimitError
	if errors.As(err, &arle) && arle.Response != nil {
		return arle.Response.StatusCode
	}
	return 0
}

func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}

// ErrorMessage renders err for reports and logs without the request URL.
// Field level validation messages are appended since GitHub puts the useful
// part ("Reference already exists") there.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	var er *github.ErrorResponse
	if errors.As(err, &er) {
		parts := make([]string, 0, 1+len(er.Errors))
		if msg := strings.TrimSpace(er.Message); msg != "" {
			parts = append(parts, msg)
		}
		for _, fe := range er.Errors {
			if m := strings.TrimSpace(fe.Message); m != "" {
				parts = append(parts, m)
			}
		}
		msg := strings.Join(parts, ": ")
		if msg == "" {
			msg = "GitHub API request failed"
		}
		if er.Response != nil {
			code := er.Response.StatusCode
			return fmt.Sprintf("%d %s: %s", code, http.StatusText(code), msg)
		}
		return msg
	}

	s := strings.TrimSpace(err.Error())
	if scrubbed := scrubRequestPrefix(s); scrubbed != "" {
		return scrubbed
	}
	return s
}

// scrubRequestPrefix drops the leading "GET https://...: " that go-github
// puts on transport errors.
func scrubRequestPrefix(s string) string {
	for _, m := range []string{"GET ", "POST ", "PUT ", "PATCH ", "DELETE "} {
		if !strings.HasPrefix(s, m) {
			continue
		}
		if i := strings.Index(s, "://"); i >= 0 {
			if j := strings.Index(s[i:], ": "); j >= 0 {
				return strings.TrimSpace(s[i+j+2:])
			}
		}
		if j := strings.Index(s, ": "); j >= 0 {
			return strings.TrimSpace(s[j+2:])
		}
		return ""
	}
	return ""
}

// mentions reports whether the error text, including field errors, contains
// substr (case-insensitive).
func mentions(err error, substr string) bool {
	return strings.Contains(strings.ToLower(ErrorMessage(err)), strings.ToLower(substr))
}

// IsAlreadyExists matches the 422 GitHub returns when creating a ref or tag
// that is already present.
func IsAlreadyExists(err error) bool {
	return StatusCode(err) == http.StatusUnprocessableEntity && mentions(err, "already exists")
}

// MentionsProtection reports whether a rejection names branch protection or
// a ruleset.
func MentionsProtection(err error) bool {
	return mentions(err, "protected") || mentions(err, "rule")
}
