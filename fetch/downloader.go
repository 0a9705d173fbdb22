package fetch

import (
	"context"
	"fmt"

	"github.com/git-pkgs/snapshots/internal/core"
	"github.com/git-pkgs/snapshots/localrepo"
)

// Downloader resolves artifacts against a remote repository, stores them in
// the local repository and announces each completed download.
type Downloader struct {
	fetcher    FetcherInterface
	resolver   *Resolver
	repo       *localrepo.Repository
	dispatcher *Dispatcher
	config     core.Config
	logger     core.Logger
}

// DownloaderOption configures a Downloader.
type DownloaderOption func(*Downloader)

// WithSessionConfig sets the session configuration attached to every event.
func WithSessionConfig(c core.Config) DownloaderOption {
	return func(d *Downloader) {
		d.config = c
	}
}

// WithDownloadLogger sets the sink for download traces.
func WithDownloadLogger(l core.Logger) DownloaderOption {
	return func(d *Downloader) {
		if l != nil {
			d.logger = l
		}
	}
}

// NewDownloader creates a Downloader. If dispatcher is nil, events are
// dispatched to nobody.
func NewDownloader(f FetcherInterface, r *Resolver, repo *localrepo.Repository, dispatcher *Dispatcher, opts ...DownloaderOption) *Downloader {
	if dispatcher == nil {
		dispatcher = NewDispatcher(nil)
	}
	d := &Downloader{
		fetcher:    f,
		resolver:   r,
		repo:       repo,
		dispatcher: dispatcher,
		logger:     core.NopLogger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Download fetches a into the local repository and returns the stored file.
// A revision already stored with the announced size is not fetched again.
// Listeners are notified either way; on failure the event carries no file
// and a .lastUpdated marker records the attempt.
func (d *Downloader) Download(ctx context.Context, a core.Artifact) (string, error) {
	info, err := d.resolver.Resolve(ctx, a)
	if err != nil {
		return "", d.fail(ctx, a, d.resolver.urls.Metadata(a), fmt.Errorf("resolving %s: %w", a, err))
	}

	if file, ok := d.stored(ctx, info); ok {
		event := d.dispatcher.Dispatch(ctx, core.Event{
			Type:     core.EventArtifactDownloaded,
			Artifact: info.Artifact,
			File:     file,
			Config:   d.config,
		})
		d.logger.Debug("artifact already in local repository", "event", event.ID, "artifact", info.Artifact.String(), "file", file)
		return file, nil
	}

	art, err := d.fetcher.Fetch(ctx, info.URL)
	if err != nil {
		return "", d.fail(ctx, info.Artifact, info.URL, fmt.Errorf("downloading %s: %w", info.Artifact, err))
	}
	defer func() { _ = art.Body.Close() }()

	file, err := d.repo.Write(info.Artifact, art.Body)
	if err != nil {
		return "", d.fail(ctx, info.Artifact, info.URL, fmt.Errorf("storing %s: %w", info.Artifact, err))
	}

	event := d.dispatcher.Dispatch(ctx, core.Event{
		Type:     core.EventArtifactDownloaded,
		Artifact: info.Artifact,
		File:     file,
		Config:   d.config,
	})
	d.logger.Debug("downloaded artifact", "event", event.ID, "artifact", info.Artifact.String(), "file", file)

	return file, nil
}

// stored returns the local file of info when it is present and matches the
// size the remote repository announces. Any doubt means download again.
func (d *Downloader) stored(ctx context.Context, info *ArtifactInfo) (string, bool) {
	file := d.repo.File(info.Artifact)
	fi, err := d.repo.Fs().Stat(file)
	if err != nil || fi.IsDir() {
		return "", false
	}

	size, _, err := d.fetcher.Head(ctx, info.URL)
	if err != nil || size < 0 || size != fi.Size() {
		return "", false
	}
	return file, true
}

func (d *Downloader) fail(ctx context.Context, a core.Artifact, url string, err error) error {
	if markErr := d.repo.MarkFailed(a, url, err); markErr != nil {
		d.logger.Debug("failed to record resolution status", "artifact", a.String(), "error", markErr)
	}

	event := d.dispatcher.Dispatch(ctx, core.Event{
		Type:     core.EventArtifactDownloaded,
		Artifact: a,
		Err:      err,
		Config:   d.config,
	})
	d.logger.Debug("artifact download failed", "event", event.ID, "artifact", a.String(), "error", err)

	return err
}
