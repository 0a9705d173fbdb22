package core

import (
	"fmt"

	packageurl "github.com/package-url/packageurl-go"
)

const purlType = "maven"

// PURL returns the Package URL for the artifact.
// Classifier and non-jar extensions are carried as qualifiers.
func (a Artifact) PURL() string {
	q := map[string]string{}
	if a.Classifier != "" {
		q["classifier"] = a.Classifier
	}
	if a.Extension != "" && a.Extension != "jar" {
		q["type"] = a.Extension
	}
	return packageurl.NewPackageURL(purlType, a.GroupID, a.ArtifactID, a.Version,
		packageurl.QualifiersFromMap(q), "").ToString()
}

// ArtifactFromPURL parses a maven Package URL into an Artifact.
// The PURL must carry a version.
func ArtifactFromPURL(purl string) (Artifact, error) {
	p, err := packageurl.FromString(purl)
	if err != nil {
		return Artifact{}, err
	}
	if p.Type != purlType {
		return Artifact{}, &CoordinatesError{Input: purl, Reason: fmt.Sprintf("unsupported type %q", p.Type)}
	}
	if p.Namespace == "" || p.Version == "" {
		return Artifact{}, &CoordinatesError{Input: purl, Reason: "namespace and version are required"}
	}

	q := p.Qualifiers.Map()
	return NewArtifact(p.Namespace, p.Name, q["classifier"], q["type"], p.Version), nil
}
