package core

import "strings"

// ParseCoordinates parses groupId:artifactId[:extension[:classifier]]:version.
func ParseCoordinates(coords string) (Artifact, error) {
	parts := strings.Split(strings.TrimSpace(coords), ":")
	for _, p := range parts {
		if p == "" {
			return Artifact{}, &CoordinatesError{Input: coords, Reason: "empty segment"}
		}
	}

	switch len(parts) {
	case 3:
		return NewArtifact(parts[0], parts[1], "", "", parts[2]), nil
	case 4:
		return NewArtifact(parts[0], parts[1], "", parts[2], parts[3]), nil
	case 5:
		return NewArtifact(parts[0], parts[1], parts[3], parts[2], parts[4]), nil
	default:
		return Artifact{}, &CoordinatesError{
			Input:  coords,
			Reason: "expected groupId:artifactId[:extension[:classifier]]:version",
		}
	}
}
