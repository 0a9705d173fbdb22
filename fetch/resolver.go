package fetch

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/git-pkgs/snapshots/client"
	"github.com/git-pkgs/snapshots/internal/core"
)

// ErrNoSnapshotVersion is returned when repository metadata lists no
// timestamped revision for a snapshot.
var ErrNoSnapshotVersion = errors.New("no snapshot version in metadata")

const maxMetadataSize = 1 << 20

// ArtifactInfo contains information about a downloadable artifact.
type ArtifactInfo struct {
	Artifact core.Artifact // Version resolved to a timestamped revision for snapshots
	URL      string
	Filename string
}

// Resolver determines download URLs for artifacts of one remote repository,
// resolving snapshot base versions to their latest deployed revision.
type Resolver struct {
	fetcher FetcherInterface
	urls    client.URLBuilder
}

// NewResolver creates a resolver for the repository described by urls.
func NewResolver(f FetcherInterface, urls client.URLBuilder) *Resolver {
	return &Resolver{fetcher: f, urls: urls}
}

// Resolve returns the download URL for an artifact. Release versions and
// already timestamped snapshots map directly to a URL; a base snapshot
// version is looked up in the version-level maven-metadata.xml first.
func (r *Resolver) Resolve(ctx context.Context, a core.Artifact) (*ArtifactInfo, error) {
	if a.Version == a.Base() && a.IsSnapshot() {
		resolved, err := r.resolveSnapshot(ctx, a)
		if err != nil {
			return nil, err
		}
		a = resolved
	}

	url := r.urls.Artifact(a)
	return &ArtifactInfo{
		Artifact: a,
		URL:      url,
		Filename: path.Base(url),
	}, nil
}

type metadata struct {
	XMLName    xml.Name `xml:"metadata"`
	GroupID    string   `xml:"groupId"`
	ArtifactID string   `xml:"artifactId"`
	Version    string   `xml:"version"`
	Versioning struct {
		Snapshot struct {
			Timestamp   string `xml:"timestamp"`
			BuildNumber int    `xml:"buildNumber"`
			LocalCopy   bool   `xml:"localCopy"`
		} `xml:"snapshot"`
		LastUpdated      string            `xml:"lastUpdated"`
		SnapshotVersions []snapshotVersion `xml:"snapshotVersions>snapshotVersion"`
	} `xml:"versioning"`
}

type snapshotVersion struct {
	Classifier string `xml:"classifier"`
	Extension  string `xml:"extension"`
	Value      string `xml:"value"`
	Updated    string `xml:"updated"`
}

func (r *Resolver) resolveSnapshot(ctx context.Context, a core.Artifact) (core.Artifact, error) {
	url := r.urls.Metadata(a)
	md, err := r.fetchMetadata(ctx, url)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return a, fmt.Errorf("%w: %w", &core.NotFoundError{Repository: url, Artifact: a}, err)
		}
		return a, err
	}

	v := md.Versioning
	for _, sv := range v.SnapshotVersions {
		if sv.Classifier == a.Classifier && sv.Extension == a.Extension && sv.Value != "" {
			return a.WithVersion(sv.Value), nil
		}
	}

	if v.Snapshot.LocalCopy {
		return a, nil
	}
	if v.Snapshot.Timestamp != "" && v.Snapshot.BuildNumber > 0 {
		return a.WithVersion(core.SnapshotVersion(a.Base(), v.Snapshot.Timestamp, v.Snapshot.BuildNumber)), nil
	}

	return a, fmt.Errorf("%s: %w", a, ErrNoSnapshotVersion)
}

func (r *Resolver) fetchMetadata(ctx context.Context, url string) (*metadata, error) {
	art, err := r.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	defer func() { _ = art.Body.Close() }()

	var md metadata
	if err := xml.NewDecoder(io.LimitReader(art.Body, maxMetadataSize)).Decode(&md); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", url, err)
	}
	return &md, nil
}
