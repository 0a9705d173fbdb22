// Package client builds URLs for remote Maven-layout repositories.
package client

import (
	"path"
	"strings"

	"github.com/git-pkgs/snapshots/internal/core"
	"github.com/git-pkgs/snapshots/localrepo"
)

// MetadataFile is the name of the per-version metadata document.
const MetadataFile = "maven-metadata.xml"

// URLBuilder constructs URLs for a remote repository.
type URLBuilder interface {
	Artifact(a core.Artifact) string
	Metadata(a core.Artifact) string
	PURL(a core.Artifact) string
}

// BaseURLs provides a default URLBuilder for the standard repository layout.
// Each function field overrides the corresponding URL when set.
type BaseURLs struct {
	BaseURL    string
	ArtifactFn func(a core.Artifact) string
	MetadataFn func(a core.Artifact) string
	PURLFn     func(a core.Artifact) string
}

// NewBaseURLs returns a builder for the repository at baseURL.
func NewBaseURLs(baseURL string) *BaseURLs {
	return &BaseURLs{BaseURL: strings.TrimSuffix(baseURL, "/")}
}

func (b *BaseURLs) Artifact(a core.Artifact) string {
	if b.ArtifactFn != nil {
		return b.ArtifactFn(a)
	}
	return b.BaseURL + "/" + localrepo.PathFor(a)
}

// Metadata returns the URL of the version-level metadata, which lists the
// timestamped revisions of a snapshot.
func (b *BaseURLs) Metadata(a core.Artifact) string {
	if b.MetadataFn != nil {
		return b.MetadataFn(a)
	}
	return b.BaseURL + "/" + path.Join(
		strings.ReplaceAll(a.GroupID, ".", "/"),
		a.ArtifactID,
		a.Base(),
		MetadataFile,
	)
}

func (b *BaseURLs) PURL(a core.Artifact) string {
	if b.PURLFn != nil {
		return b.PURLFn(a)
	}
	return a.PURL()
}

// BuildURLs returns a map of all non-empty URLs for an artifact.
// Keys are "artifact", "metadata" and "purl".
func BuildURLs(urls URLBuilder, a core.Artifact) map[string]string {
	result := make(map[string]string)
	if v := urls.Artifact(a); v != "" {
		result["artifact"] = v
	}
	if v := urls.Metadata(a); v != "" {
		result["metadata"] = v
	}
	if v := urls.PURL(a); v != "" {
		result["purl"] = v
	}
	return result
}
