// Package snapshots keeps a Maven-layout local repository from filling up
// with stale snapshot revisions.
//
// Whenever a timestamped snapshot artifact is downloaded, older revisions of
// the same artifact (and their checksum, signature and .lastUpdated
// companions) are deleted from the directory the new file landed in.
//
// Basic usage:
//
//	import (
//		"context"
//		"github.com/git-pkgs/snapshots"
//	)
//
//	purger := snapshots.NewPurger(snapshots.WithLogger(logger))
//	a := snapshots.NewArtifact("org.example", "lib", "", "jar", "1.0-20110907.162759-1")
//	purger.Purge(a, "/home/me/.m2/repository/org/example/lib/1.0-SNAPSHOT/lib-1.0-20110907.162759-1.jar", nil)
//
// The purger also implements Listener, so it can be registered with the
// download pipeline of the fetch package:
//
//	dispatcher := fetch.NewDispatcher(nil)
//	dispatcher.Register(snapshots.NewPurger())
package snapshots

import (
	"github.com/git-pkgs/purl"
	"github.com/git-pkgs/snapshots/client"
	"github.com/git-pkgs/snapshots/fetch"
	"github.com/git-pkgs/snapshots/internal/core"
	"github.com/git-pkgs/snapshots/purge"
)

// Re-export types from internal/core
type (
	// Artifact identifies a single file of a Maven-layout repository.
	Artifact = core.Artifact

	// Event is a notification from the download pipeline.
	Event = core.Event

	// EventType identifies a repository lifecycle event.
	EventType = core.EventType

	// Config holds session configuration values keyed by property name.
	Config = core.Config

	// Listener receives repository events.
	Listener = core.Listener

	// ListenerFunc adapts a function to the Listener interface.
	ListenerFunc = core.ListenerFunc

	// Logger is the trace sink used by the purger and the download pipeline.
	Logger = core.Logger
)

// Re-export types from purge and client
type (
	Purger     = purge.Purger
	Result     = purge.Result
	Recorder   = purge.Recorder
	SkipReason = purge.SkipReason
	Option     = purge.Option

	// URLBuilder constructs URLs for a remote repository.
	URLBuilder = client.URLBuilder
)

// Re-export constants
const (
	PropertyExcludes        = purge.PropertyExcludes
	EventArtifactDownloaded = core.EventArtifactDownloaded

	SkipNone        = purge.SkipNone
	SkipNoFile      = purge.SkipNoFile
	SkipNotSnapshot = purge.SkipNotSnapshot
	SkipExcluded    = purge.SkipExcluded
	SkipUnreadable  = purge.SkipUnreadable
)

// Re-export errors
var (
	ErrNotFound           = fetch.ErrNotFound
	ErrInvalidCoordinates = core.ErrInvalidCoordinates
	ErrNoSnapshotVersion  = fetch.ErrNoSnapshotVersion
)

// Error types
type (
	CoordinatesError = core.CoordinatesError
	NotFoundError    = core.NotFoundError
)

// NewPurger creates a purger. Without options it works on the real
// filesystem, discards traces and records nothing.
func NewPurger(opts ...Option) *Purger {
	return purge.New(opts...)
}

// WithFs sets the filesystem the purger scans and deletes from.
var WithFs = purge.WithFs

// WithLogger sets the trace sink.
var WithLogger = purge.WithLogger

// WithRecorder sets the outcome recorder.
var WithRecorder = purge.WithRecorder

// NewArtifact returns an artifact with its base version derived from version.
func NewArtifact(groupID, artifactID, classifier, extension, version string) Artifact {
	return core.NewArtifact(groupID, artifactID, classifier, extension, version)
}

// ParseCoordinates parses "groupId:artifactId[:extension[:classifier]]:version".
func ParseCoordinates(coords string) (Artifact, error) {
	return core.ParseCoordinates(coords)
}

// IsSnapshot reports whether version denotes a snapshot, timestamped or not.
func IsSnapshot(version string) bool {
	return core.IsSnapshot(version)
}

// ToBaseVersion maps a timestamped snapshot version to its -SNAPSHOT form.
// Other versions are returned unchanged.
func ToBaseVersion(version string) string {
	return core.ToBaseVersion(version)
}

// IsExcluded reports whether any exclusion rule in config matches a.
func IsExcluded(a Artifact, config Config) bool {
	return purge.IsExcluded(a, config)
}

// BuildURLs returns a map of all non-empty URLs for an artifact.
// Keys are "artifact", "metadata", and "purl".
func BuildURLs(urls URLBuilder, a Artifact) map[string]string {
	return client.BuildURLs(urls, a)
}

// PURL represents a parsed Package URL.
type PURL = purl.PURL

// ParsePURL parses a Package URL string into its components.
// Supports both package PURLs (pkg:maven/g/a) and version PURLs (pkg:maven/g/a@1.0).
func ParsePURL(purlStr string) (*PURL, error) {
	return purl.Parse(purlStr)
}

// ArtifactFromPURL parses a versioned maven Package URL into an Artifact.
// Other package types are rejected with a *CoordinatesError.
func ArtifactFromPURL(purlStr string) (Artifact, error) {
	return core.ArtifactFromPURL(purlStr)
}
