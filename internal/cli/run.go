// Package cli implements the snapshots command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/git-pkgs/snapshots/client"
	"github.com/git-pkgs/snapshots/config"
	"github.com/git-pkgs/snapshots/fetch"
	"github.com/git-pkgs/snapshots/internal/core"
	"github.com/git-pkgs/snapshots/localrepo"
	"github.com/git-pkgs/snapshots/logging"
	"github.com/git-pkgs/snapshots/metrics"
	"github.com/git-pkgs/snapshots/purge"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// Env carries the process boundary: output streams and the filesystem the
// local repository lives on.
type Env struct {
	Stdout io.Writer
	Stderr io.Writer
	Fs     afero.Fs
}

type app struct {
	env      Env
	settings config.Settings
	log      zerolog.Logger
	repo     *localrepo.Repository
	registry *prometheus.Registry
	purger   *purge.Purger
}

// Execute runs inv and returns the process exit code.
func Execute(ctx context.Context, inv Invocation, env Env) int {
	if env.Fs == nil {
		env.Fs = afero.NewOsFs()
	}

	settings, err := config.Load(inv.ConfigPath)
	if err != nil {
		fmt.Fprintln(env.Stderr, err)
		return ExitConfigError
	}
	inv.apply(&settings)

	a := newApp(env, settings)

	var code int
	switch inv.Command {
	case CommandFetch:
		code = a.fetch(ctx, inv.Coordinates)
	case CommandPurge:
		code = a.purge(inv.Coordinates)
	default:
		fmt.Fprintf(env.Stderr, "unknown command %q\n", inv.Command)
		return ExitInvalidInvocation
	}

	if inv.MetricsFile != "" {
		if err := prometheus.WriteToTextfile(inv.MetricsFile, a.registry); err != nil {
			a.log.Error().Err(err).Str("file", inv.MetricsFile).Msg("failed to write metrics")
			if code == ExitSuccess {
				code = ExitFailure
			}
		}
	}
	return code
}

func (inv Invocation) apply(s *config.Settings) {
	if inv.Repository != "" {
		s.LocalRepository = inv.Repository
	}
	if inv.Remote != "" {
		s.Remote = inv.Remote
	}
	if len(inv.Excludes) > 0 {
		s.Excludes = append(s.Excludes, inv.Excludes...)
	}
	if inv.LogLevel != "" {
		s.Log.Level = inv.LogLevel
	}
	if inv.LogFile != "" {
		s.Log.File = inv.LogFile
	}
	if inv.Pretty {
		s.Log.Pretty = true
	}
}

func newApp(env Env, s config.Settings) *app {
	log := logging.New(logging.Options{
		Level:      s.Log.Level,
		Pretty:     s.Log.Pretty,
		File:       s.Log.File,
		MaxSizeMB:  100,
		MaxBackups: 3,
		MaxAgeDays: 28,
		Out:        env.Stderr,
	})
	registry := prometheus.NewRegistry()

	return &app{
		env:      env,
		settings: s,
		log:      log,
		repo:     localrepo.New(s.LocalRepository, env.Fs),
		registry: registry,
		purger: purge.New(
			purge.WithFs(env.Fs),
			purge.WithLogger(logging.Adapt(logging.Component(log, "purge"))),
			purge.WithRecorder(metrics.NewPurge(registry)),
		),
	}
}

func (a *app) fetch(ctx context.Context, coords []string) int {
	artifacts, code := a.parse(coords)
	if code != ExitSuccess {
		return code
	}

	downloads := metrics.NewDownloads(a.registry)
	dispatcher := fetch.NewDispatcher(logging.Adapt(logging.Component(a.log, "dispatch")))
	dispatcher.Register(a.purger)
	dispatcher.Register(core.ListenerFunc(func(_ context.Context, e core.Event) {
		downloads.Observe(e)
	}))

	fetchLog := logging.Adapt(logging.Component(a.log, "fetch"))
	fetcher := fetch.NewCircuitBreakerFetcher(fetch.NewFetcher(
		fetch.WithMaxRetries(a.settings.MaxRetries),
		fetch.WithTimeout(a.settings.Timeout),
		fetch.WithUserAgent(a.settings.UserAgent),
		fetch.WithAuthFunc(fetch.BasicAuth(a.settings.Remote, a.settings.Username, a.settings.Password)),
		fetch.WithLogger(fetchLog),
	))
	resolver := fetch.NewResolver(fetcher, client.NewBaseURLs(a.settings.Remote))
	downloader := fetch.NewDownloader(fetcher, resolver, a.repo, dispatcher,
		fetch.WithSessionConfig(a.settings.Session()),
		fetch.WithDownloadLogger(fetchLog),
	)

	code = ExitSuccess
	for _, art := range artifacts {
		file, err := downloader.Download(ctx, art)
		if err != nil {
			a.log.Error().Err(err).Str("artifact", art.String()).Msg("download failed")
			code = ExitFailure
			continue
		}
		a.log.Info().Str("artifact", art.String()).Str("file", file).Msg("downloaded")
		fmt.Fprintln(a.env.Stdout, file)
	}

	for repository, state := range fetcher.BreakerState() {
		if state == "open" {
			a.log.Warn().Str("repository", repository).Msg("circuit breaker open, later downloads from this repository failed fast")
		}
	}
	return code
}

func (a *app) purge(coords []string) int {
	artifacts, code := a.parse(coords)
	if code != ExitSuccess {
		return code
	}

	session := a.settings.Session()
	for _, art := range artifacts {
		target, err := a.target(art)
		if err != nil {
			a.log.Error().Err(err).Str("artifact", art.String()).Msg("cannot purge")
			fmt.Fprintln(a.env.Stderr, err)
			code = ExitFailure
			continue
		}

		res := a.purger.Purge(target, a.repo.File(target), session)
		if res.Skipped != purge.SkipNone {
			a.log.Info().Str("artifact", target.String()).Str("reason", string(res.Skipped)).Msg("nothing purged")
		}
		if len(res.Kept) > 0 {
			a.log.Info().Str("artifact", target.String()).Strs("files", res.Kept).Msg("kept newer snapshots")
		}
		for _, f := range res.Purged {
			fmt.Fprintln(a.env.Stdout, f)
		}
		if len(res.Failed) > 0 {
			a.log.Warn().Str("artifact", target.String()).Strs("files", res.Failed).Msg("some old snapshots could not be deleted")
			code = ExitFailure
		}
	}
	return code
}

// target returns the stored revision a purge is anchored on. A base
// snapshot version resolves to the newest revision in the local repository;
// a timestamped one must be present there.
func (a *app) target(art core.Artifact) (core.Artifact, error) {
	if !art.IsSnapshot() {
		return core.Artifact{}, fmt.Errorf("%s: not a snapshot version", art)
	}
	if art.Version == art.Base() {
		latest, ok := a.latestLocal(art)
		if !ok {
			return core.Artifact{}, fmt.Errorf("%s: no revision in local repository", art)
		}
		return latest, nil
	}
	if !a.repo.Exists(art) {
		return core.Artifact{}, fmt.Errorf("%s: not in local repository", art)
	}
	return art, nil
}

func (a *app) latestLocal(art core.Artifact) (core.Artifact, bool) {
	file := a.repo.File(art)
	pattern := purge.NewPattern(filepath.Base(file), art.Version, art.Base())
	if pattern == nil {
		return core.Artifact{}, false
	}
	entries, err := afero.ReadDir(a.env.Fs, filepath.Dir(file))
	if err != nil {
		return core.Artifact{}, false
	}

	prefix := strings.TrimSuffix(art.Base(), core.SnapshotMarker)
	var latest core.Artifact
	found := false
	for _, entry := range entries {
		rev := pattern.Revision(entry.Name())
		if rev == "" || entry.IsDir() {
			continue
		}
		// Checksums and status markers alone do not make a revision.
		candidate := art.WithVersion(prefix + rev)
		if !a.repo.Exists(candidate) {
			continue
		}
		if !found || core.CompareRevisions(rev, core.Revision(latest.Version)) > 0 {
			latest, found = candidate, true
		}
	}
	return latest, found
}

func (a *app) parse(coords []string) ([]core.Artifact, int) {
	artifacts := make([]core.Artifact, 0, len(coords))
	for _, c := range coords {
		art, err := core.ParseCoordinates(c)
		if err != nil {
			fmt.Fprintln(a.env.Stderr, err)
			return nil, ExitInvalidInvocation
		}
		artifacts = append(artifacts, art)
	}
	return artifacts, ExitSuccess
}
