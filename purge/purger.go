// Package purge deletes superseded snapshot revisions from a local
// repository after a newer revision of the same artifact was downloaded.
package purge

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/git-pkgs/snapshots/internal/core"
	"github.com/spf13/afero"
)

// SkipReason explains why a purge left the directory untouched.
type SkipReason string

const (
	SkipNone        SkipReason = ""
	SkipNoFile      SkipReason = "no-file"
	SkipNotSnapshot SkipReason = "not-snapshot"
	SkipExcluded    SkipReason = "excluded"
	SkipUnreadable  SkipReason = "unreadable"
)

// Result reports the outcome of a single purge.
type Result struct {
	Skipped SkipReason
	Pattern string
	Purged  []string
	Failed  []string
	Kept    []string // revisions newer than the triggering one, left in place
}

// Recorder observes purge outcomes.
type Recorder interface {
	Purged(a core.Artifact, path string)
	Failed(a core.Artifact, path string)
	Skipped(a core.Artifact, reason SkipReason)
}

type nopRecorder struct{}

func (nopRecorder) Purged(core.Artifact, string)      {}
func (nopRecorder) Failed(core.Artifact, string)      {}
func (nopRecorder) Skipped(core.Artifact, SkipReason) {}

// Purger removes older timestamped revisions of a snapshot artifact, and
// their auxiliary files, from the directory the new revision was stored in.
// It holds no mutable state and is safe for concurrent use.
type Purger struct {
	fs       afero.Fs
	logger   core.Logger
	recorder Recorder
}

// Option configures a Purger.
type Option func(*Purger)

// WithFs sets the filesystem the local repository lives on.
func WithFs(fs afero.Fs) Option {
	return func(p *Purger) {
		if fs != nil {
			p.fs = fs
		}
	}
}

// WithLogger sets the sink for trace messages.
func WithLogger(l core.Logger) Option {
	return func(p *Purger) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithRecorder sets an observer for purge outcomes.
func WithRecorder(r Recorder) Option {
	return func(p *Purger) {
		if r != nil {
			p.recorder = r
		}
	}
}

// New creates a Purger operating on the OS filesystem with logging disabled.
func New(opts ...Option) *Purger {
	p := &Purger{
		fs:       afero.NewOsFs(),
		logger:   core.NopLogger,
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ArtifactDownloaded implements core.Listener. Events of other types are
// ignored; an untyped event counts as a download. Failures never reach the
// caller.
func (p *Purger) ArtifactDownloaded(_ context.Context, event core.Event) {
	if event.Type != "" && event.Type != core.EventArtifactDownloaded {
		return
	}
	p.Purge(event.Artifact, event.File, event.Config)
}

// Purge deletes revisions of a superseded by file, the artifact just
// downloaded. When a is a timestamped revision only strictly older
// revisions are deleted. It never returns an error: every failure is logged
// and reflected in the Result.
func (p *Purger) Purge(a core.Artifact, file string, config core.Config) Result {
	if file == "" {
		return p.skip(a, SkipNoFile)
	}

	pattern := NewPattern(filepath.Base(file), a.Version, a.Base())
	if pattern == nil {
		return p.skip(a, SkipNotSnapshot)
	}

	res := Result{Pattern: pattern.String()}

	if IsExcluded(a, config) {
		p.logger.Debug("skipping purge of excluded snapshot artifact", "artifact", a.String())
		p.recorder.Skipped(a, SkipExcluded)
		res.Skipped = SkipExcluded
		return res
	}

	current := core.Revision(a.Version)
	dir := filepath.Dir(file)
	entries, err := afero.ReadDir(p.fs, dir)
	if err != nil {
		p.logger.Debug("failed to scan for old snapshot artifacts", "dir", dir, "error", err)
		p.recorder.Skipped(a, SkipUnreadable)
		res.Skipped = SkipUnreadable
		return res
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !pattern.Matches(name) {
			continue
		}
		if a.Version != "" && strings.Contains(name, a.Version) {
			continue
		}

		old := filepath.Join(dir, name)
		rev := pattern.Revision(name)
		if current != "" && core.CompareRevisions(rev, current) >= 0 {
			p.logger.Debug("keeping newer snapshot artifact", "file", old, "revision", rev)
			res.Kept = append(res.Kept, old)
			continue
		}

		if err := p.fs.Remove(old); err == nil {
			p.logger.Debug("purged old snapshot artifact", "file", old, "revision", rev)
			p.recorder.Purged(a, old)
			res.Purged = append(res.Purged, old)
			continue
		}

		// Already gone means a concurrent purge got there first.
		if exists, statErr := afero.Exists(p.fs, old); exists || statErr != nil {
			p.logger.Debug("failed to purge old snapshot artifact", "file", old)
			p.recorder.Failed(a, old)
			res.Failed = append(res.Failed, old)
		}
	}

	return res
}

func (p *Purger) skip(a core.Artifact, reason SkipReason) Result {
	p.recorder.Skipped(a, reason)
	return Result{Skipped: reason}
}
