package core

import (
	"regexp"
	"strconv"
	"strings"
)

// SnapshotMarker is the literal that ends every snapshot base version.
const SnapshotMarker = "SNAPSHOT"

var timestampedVersion = regexp.MustCompile(`^(.*-)?([0-9]{8}\.[0-9]{6}-[0-9]+)$`)

// IsSnapshot reports whether version is a snapshot, either in base form
// (1.0-SNAPSHOT) or resolved to a timestamped revision (1.0-20110907.162759-1).
func IsSnapshot(version string) bool {
	return strings.HasSuffix(version, SnapshotMarker) || timestampedVersion.MatchString(version)
}

// ToBaseVersion converts a timestamped snapshot version to its base form.
// Any other version is returned unchanged.
func ToBaseVersion(version string) string {
	if strings.HasSuffix(version, SnapshotMarker) {
		return version
	}
	m := timestampedVersion.FindStringSubmatch(version)
	if m == nil {
		return version
	}
	return m[1] + SnapshotMarker
}

// SnapshotVersion builds a resolved snapshot version from a base version,
// a metadata timestamp and a build number.
func SnapshotVersion(baseVersion, timestamp string, buildNumber int) string {
	prefix := strings.TrimSuffix(baseVersion, SnapshotMarker)
	return prefix + timestamp + "-" + strconv.Itoa(buildNumber)
}

// Revision returns the timestamp and build number of a timestamped snapshot
// version, e.g. 20110907.162759-1 for 1.0-20110907.162759-1, or "".
func Revision(version string) string {
	m := timestampedVersion.FindStringSubmatch(version)
	if m == nil {
		return ""
	}
	return m[2]
}

// CompareRevisions orders two revisions by timestamp, then build number.
// It returns -1, 0 or +1.
func CompareRevisions(a, b string) int {
	tsA, buildA, _ := strings.Cut(a, "-")
	tsB, buildB, _ := strings.Cut(b, "-")
	if c := strings.Compare(tsA, tsB); c != 0 {
		return c
	}
	nA, errA := strconv.ParseUint(buildA, 10, 64)
	nB, errB := strconv.ParseUint(buildB, 10, 64)
	switch {
	case errA != nil || errB != nil:
		return strings.Compare(buildA, buildB)
	case nA < nB:
		return -1
	case nA > nB:
		return 1
	}
	return 0
}
