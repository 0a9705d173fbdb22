package purge

import (
	"regexp"
	"strings"

	"github.com/git-pkgs/snapshots/internal/core"
)

// PropertyExcludes is the session configuration key holding a comma-separated
// list of groupId[:artifactId] glob rules exempt from purging.
const PropertyExcludes = "purger.excludes"

var ruleSeparator = regexp.MustCompile(`,+`)

// IsExcluded reports whether any rule configured under PropertyExcludes
// matches the artifact. A missing or non-string value excludes nothing.
func IsExcluded(a core.Artifact, config core.Config) bool {
	excludes, ok := config.String(PropertyExcludes)
	if !ok {
		return false
	}
	for _, rule := range ruleSeparator.Split(excludes, -1) {
		rule = strings.TrimSpace(rule)
		if rule == "" {
			continue
		}
		if IsMatched(a, rule) {
			return true
		}
	}
	return false
}

// IsMatched reports whether a single groupId[:artifactId] rule matches the
// artifact. Rules with more than two segments never match.
func IsMatched(a core.Artifact, rule string) bool {
	segments := strings.Split(rule, ":")
	switch len(segments) {
	case 1:
		return IsMatch(a.GroupID, segments[0])
	case 2:
		return IsMatch(a.GroupID, segments[0]) && IsMatch(a.ArtifactID, segments[1])
	default:
		return false
	}
}

// IsMatch reports whether text matches glob as a whole. '*' matches any run
// of characters including none, '?' matches exactly one character and every
// other character matches itself.
func IsMatch(text, glob string) bool {
	return globToRegexp(glob).MatchString(text)
}

func globToRegexp(glob string) *regexp.Regexp {
	var b strings.Builder
	b.WriteString("(?s)^")
	for _, r := range glob {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(quoteLiteral(string(r)))
		}
	}
	b.WriteString("$")
	return regexp.MustCompile(b.String())
}
