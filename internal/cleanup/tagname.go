package cleanup

import (
	"fmt"
	"strings"
	"time"
)

// TagDateLayout is the date suffix of every backup tag.
const TagDateLayout = "20060102"

// BackupTagName builds <prefix>/<sanitized branch>/<YYYYMMDD>. The date is
// taken in UTC so reruns on the same day produce the same name.
func BackupTagName(prefix, branch string, at time.Time) string {
	return fmt.Sprintf("%s/%s/%s", strings.Trim(prefix, "/"), sanitizeBranch(branch), at.UTC().Format(TagDateLayout))
}

// sanitizeBranch flattens a branch name into a single ref component.
// Separators and characters git rejects in ref names become '-'.
func sanitizeBranch(branch string) string {
	var b strings.Builder
	for _, r := range branch {
		switch {
		case r == '/', r == '\\', r == ' ', r == '~', r == '^', r == ':', r == '?', r == '*', r == '[':
			b.WriteRune('-')
		case r < 0x20, r == 0x7f:
			b.WriteRune('-')
		default:
			b.WriteRune(r)
		}
	}
	s := b.String()
	for strings.Contains(s, "..") {
		s = strings.ReplaceAll(s, "..", ".")
	}
	s = strings.ReplaceAll(s, "@{", "-{")
	s = strings.TrimSuffix(s, ".lock")
	s = strings.Trim(s, ".-")
	if s == "" {
		return "branch"
	}
	return s
}

// ParseTagDate extracts the date suffix from a backup tag created with
// prefix. ok is false for tags that do not follow the naming scheme.
func ParseTagDate(prefix, tag string) (time.Time, bool) {
	prefix = strings.Trim(prefix, "/") + "/"
	if !strings.HasPrefix(tag, prefix) {
		return time.Time{}, false
	}
	rest := strings.TrimPrefix(tag, prefix)
	i := strings.LastIndex(rest, "/")
	if i <= 0 {
		return time.Time{}, false
	}
	t, err := time.Parse(TagDateLayout, rest[i+1:])
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
