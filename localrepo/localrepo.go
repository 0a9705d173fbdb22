// Package localrepo stores artifacts in a Maven-layout local repository.
package localrepo

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/git-pkgs/snapshots/internal/core"
	"github.com/spf13/afero"
)

const (
	checksumSuffix    = ".sha1"
	lastUpdatedSuffix = ".lastUpdated"
)

// PathFor returns the slash-separated path of an artifact relative to the
// repository root: group/as/dirs/artifactId/baseVersion/artifactId-version[-classifier].ext
func PathFor(a core.Artifact) string {
	return path.Join(
		strings.ReplaceAll(a.GroupID, ".", "/"),
		a.ArtifactID,
		a.Base(),
		FileName(a),
	)
}

// FileName returns the base name of an artifact file.
func FileName(a core.Artifact) string {
	var b strings.Builder
	b.WriteString(a.ArtifactID)
	b.WriteByte('-')
	b.WriteString(a.Version)
	if a.Classifier != "" {
		b.WriteByte('-')
		b.WriteString(a.Classifier)
	}
	if a.Extension != "" {
		b.WriteByte('.')
		b.WriteString(a.Extension)
	}
	return b.String()
}

// Repository is a local artifact repository rooted at a directory.
type Repository struct {
	root string
	fs   afero.Fs
}

// New creates a repository rooted at root. If fs is nil the OS filesystem is used.
func New(root string, fs afero.Fs) *Repository {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Repository{root: root, fs: fs}
}

// Root returns the repository base directory.
func (r *Repository) Root() string {
	return r.root
}

// Fs returns the filesystem backing the repository.
func (r *Repository) Fs() afero.Fs {
	return r.fs
}

// File returns the absolute location of an artifact in the repository.
func (r *Repository) File(a core.Artifact) string {
	return filepath.Join(r.root, filepath.FromSlash(PathFor(a)))
}

// Exists reports whether the artifact file is present.
func (r *Repository) Exists(a core.Artifact) bool {
	ok, err := afero.Exists(r.fs, r.File(a))
	return ok && err == nil
}

// Write stores body as the artifact file and writes a .sha1 checksum next to
// it. The file is written to a temporary name first and renamed into place.
// A stale .lastUpdated marker from an earlier failed attempt is removed.
func (r *Repository) Write(a core.Artifact, body io.Reader) (string, error) {
	dest := r.File(a)
	dir := filepath.Dir(dest)
	if err := r.fs.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating %s: %w", dir, err)
	}

	tmp, err := afero.TempFile(r.fs, dir, "."+filepath.Base(dest)+".*.part")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}

	h := sha1.New()
	_, copyErr := io.Copy(tmp, io.TeeReader(body, h))
	closeErr := tmp.Close()
	if copyErr != nil || closeErr != nil {
		_ = r.fs.Remove(tmp.Name())
		if copyErr != nil {
			return "", fmt.Errorf("writing %s: %w", dest, copyErr)
		}
		return "", fmt.Errorf("closing %s: %w", dest, closeErr)
	}

	if err := r.fs.Rename(tmp.Name(), dest); err != nil {
		_ = r.fs.Remove(tmp.Name())
		return "", fmt.Errorf("moving %s into place: %w", dest, err)
	}

	sum := hex.EncodeToString(h.Sum(nil))
	if err := afero.WriteFile(r.fs, dest+checksumSuffix, []byte(sum), 0o644); err != nil {
		return dest, fmt.Errorf("writing checksum: %w", err)
	}

	if err := r.fs.Remove(dest + lastUpdatedSuffix); err != nil && !os.IsNotExist(err) {
		return dest, fmt.Errorf("removing status marker: %w", err)
	}

	return dest, nil
}

// MarkFailed records a failed resolution attempt from url in a .lastUpdated
// marker next to where the artifact would have been stored.
func (r *Repository) MarkFailed(a core.Artifact, url string, cause error) error {
	dest := r.File(a) + lastUpdatedSuffix
	if err := r.fs.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(dest), err)
	}

	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	content := fmt.Sprintf("%s.lastUpdated=%d\n%s.error=%s\n",
		url, time.Now().UnixMilli(), url, strings.ReplaceAll(msg, "\n", " "))
	return afero.WriteFile(r.fs, dest, []byte(content), 0o644)
}
