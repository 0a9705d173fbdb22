// Package core provides shared types for artifacts, download events and listeners.
package core

import (
	"context"
	"strings"
)

// Artifact identifies a single file of a Maven-layout repository.
type Artifact struct {
	GroupID     string
	ArtifactID  string
	Classifier  string
	Extension   string
	Version     string // resolved, e.g. 1.0-20110907.162759-1
	BaseVersion string // unresolved, e.g. 1.0-SNAPSHOT
}

// NewArtifact returns an artifact with BaseVersion derived from version.
// An empty extension defaults to "jar".
func NewArtifact(groupID, artifactID, classifier, extension, version string) Artifact {
	if extension == "" {
		extension = "jar"
	}
	return Artifact{
		GroupID:     groupID,
		ArtifactID:  artifactID,
		Classifier:  classifier,
		Extension:   extension,
		Version:     version,
		BaseVersion: ToBaseVersion(version),
	}
}

// Base returns the base version, deriving it from Version when unset.
func (a Artifact) Base() string {
	if a.BaseVersion != "" {
		return a.BaseVersion
	}
	return ToBaseVersion(a.Version)
}

// IsSnapshot reports whether the artifact is a snapshot revision.
func (a Artifact) IsSnapshot() bool {
	return IsSnapshot(a.Base())
}

// WithVersion returns a copy of a with the resolved version replaced.
// The base version is kept.
func (a Artifact) WithVersion(version string) Artifact {
	a.BaseVersion = a.Base()
	a.Version = version
	return a
}

// String formats the artifact as groupId:artifactId:extension[:classifier]:version.
func (a Artifact) String() string {
	var b strings.Builder
	b.WriteString(a.GroupID)
	b.WriteByte(':')
	b.WriteString(a.ArtifactID)
	b.WriteByte(':')
	b.WriteString(a.Extension)
	if a.Classifier != "" {
		b.WriteByte(':')
		b.WriteString(a.Classifier)
	}
	b.WriteByte(':')
	b.WriteString(a.Version)
	return b.String()
}

// EventType identifies a repository lifecycle event.
type EventType string

// EventArtifactDownloaded is fired once per completed or failed download.
const EventArtifactDownloaded EventType = "artifact-downloaded"

// Event is a notification from the download pipeline.
type Event struct {
	ID       string
	Type     EventType
	Artifact Artifact
	File     string // empty when the download failed
	Err      error
	Config   Config
}

// Config holds session configuration values keyed by property name.
type Config map[string]any

// String returns the value for key if it is a string.
func (c Config) String(key string) (string, bool) {
	if c == nil {
		return "", false
	}
	s, ok := c[key].(string)
	return s, ok
}

// Listener receives repository events.
type Listener interface {
	ArtifactDownloaded(ctx context.Context, event Event)
}

// ListenerFunc adapts a function to the Listener interface.
type ListenerFunc func(ctx context.Context, event Event)

// ArtifactDownloaded calls f(ctx, event).
func (f ListenerFunc) ArtifactDownloaded(ctx context.Context, event Event) {
	f(ctx, event)
}
