package purge

import (
	"regexp"
	"strings"

	"github.com/git-pkgs/snapshots/internal/core"
)

// AuxiliaryExtensions lists the suffixes appended to artifact files for
// checksums, signatures and resolution status markers.
var AuxiliaryExtensions = []string{"md5", "sha1", "sha256", "sha512", "asc", "lastUpdated"}

// revisionGroup matches a snapshot timestamp and build number, e.g. 20110907.162759-1.
const revisionGroup = `([0-9]{8}\.[0-9]{6}-[0-9]+)`

// Pattern matches timestamped revisions of one snapshot artifact file.
type Pattern struct {
	re     *regexp.Regexp
	prefix string
	suffix string
}

// NewPattern derives the revision pattern for fileName, the base name of a
// downloaded artifact resolved to version. It returns nil when the name
// carries no snapshot marker once version is replaced by baseVersion.
func NewPattern(fileName, version, baseVersion string) *Pattern {
	name := fileName
	if version != "" {
		name = strings.ReplaceAll(name, version, baseVersion)
	}

	idx := strings.LastIndex(name, core.SnapshotMarker)
	if idx < 0 {
		return nil
	}

	prefix := name[:idx]
	suffix := name[idx+len(core.SnapshotMarker):]

	expr := "^" + quoteLiteral(prefix) + revisionGroup + quoteLiteral(suffix) +
		`(\.(` + strings.Join(AuxiliaryExtensions, "|") + `))?$`

	return &Pattern{re: regexp.MustCompile(expr), prefix: prefix, suffix: suffix}
}

// Matches reports whether name is a revision of the artifact or one of its
// auxiliary files.
func (p *Pattern) Matches(name string) bool {
	return p.match(name) != nil
}

// Revision returns the timestamped revision captured from name, or "" if
// name does not match.
func (p *Pattern) Revision(name string) string {
	loc := p.match(name)
	if loc == nil {
		return ""
	}
	return name[loc[2]:loc[3]]
}

// match returns the submatch offsets of name. The regexp reads invalid
// UTF-8 as U+FFFD, so the literal parts are compared byte for byte as well.
func (p *Pattern) match(name string) []int {
	loc := p.re.FindStringSubmatchIndex(name)
	if loc == nil {
		return nil
	}
	if name[:loc[2]] != p.prefix || !strings.HasPrefix(name[loc[3]:], p.suffix) {
		return nil
	}
	return loc
}

func (p *Pattern) String() string {
	return p.re.String()
}

// quoteLiteral escapes every ASCII non-alphanumeric character so the result
// matches s literally. RE2 treats other runes as literals already and rejects
// escapes of them.
func quoteLiteral(s string) string {
	var b strings.Builder
	b.Grow(len(s) * 2)
	for _, r := range s {
		if r < 0x80 && !isAlnum(r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isAlnum(r rune) bool {
	return r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z'
}
