package cli

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/spf13/afero"
)

const metadata = `<metadata>
  <versioning>
    <snapshot>
      <timestamp>20110908.002759</timestamp>
      <buildNumber>1234</buildNumber>
    </snapshot>
  </versioning>
</metadata>`

func remote(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/gid/aid/1.0-SNAPSHOT/maven-metadata.xml", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(metadata))
	})
	mux.HandleFunc("/gid/aid/1.0-SNAPSHOT/aid-1.0-20110908.002759-1234.jar", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("jar"))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func seed(t *testing.T, fs afero.Fs, dir string, names ...string) {
	t.Helper()
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range names {
		if err := afero.WriteFile(fs, filepath.Join(dir, name), []byte(name), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func exists(fs afero.Fs, path string) bool {
	ok, _ := afero.Exists(fs, path)
	return ok
}

func TestExecuteFetch(t *testing.T) {
	server := remote(t)
	fs := afero.NewMemMapFs()
	dir := "/m2/gid/aid/1.0-SNAPSHOT"
	seed(t, fs, dir, "aid-1.0-20110907.162759-1.jar", "aid-1.0-20110907.162759-1.jar.sha1")

	metricsFile := filepath.Join(t.TempDir(), "snapshots.prom")
	var stdout, stderr bytes.Buffer
	code := Execute(context.Background(), Invocation{
		Command:     CommandFetch,
		Repository:  "/m2",
		Remote:      server.URL,
		MetricsFile: metricsFile,
		Coordinates: []string{"gid:aid:1.0-SNAPSHOT"},
	}, Env{Stdout: &stdout, Stderr: &stderr, Fs: fs})

	if code != ExitSuccess {
		t.Fatalf("exit code = %d, stderr: %s", code, stderr.String())
	}

	want := filepath.Join(dir, "aid-1.0-20110908.002759-1234.jar")
	if got := strings.TrimSpace(stdout.String()); got != want {
		t.Errorf("stdout = %q, want %q", got, want)
	}
	if !exists(fs, want) {
		t.Errorf("Missing %s", want)
	}
	for _, old := range []string{"aid-1.0-20110907.162759-1.jar", "aid-1.0-20110907.162759-1.jar.sha1"} {
		if exists(fs, filepath.Join(dir, old)) {
			t.Errorf("Existent %s", old)
		}
	}

	data, err := os.ReadFile(metricsFile)
	if err != nil {
		t.Fatalf("metrics file: %v", err)
	}
	for _, line := range []string{
		"snapshots_purged_files_total 2",
		`snapshots_downloads_total{result="success"} 1`,
	} {
		if !strings.Contains(string(data), line) {
			t.Errorf("metrics missing %q:\n%s", line, data)
		}
	}
}

func TestExecuteFetchFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	fs := afero.NewMemMapFs()
	var stdout, stderr bytes.Buffer
	code := Execute(context.Background(), Invocation{
		Command:     CommandFetch,
		Repository:  "/m2",
		Remote:      server.URL,
		Coordinates: []string{"gid:aid:1.0-20110908.002759-1234"},
	}, Env{Stdout: &stdout, Stderr: &stderr, Fs: fs})

	if code != ExitFailure {
		t.Errorf("exit code = %d, want %d", code, ExitFailure)
	}
	if stdout.Len() != 0 {
		t.Errorf("stdout = %q, want empty", stdout.String())
	}
	if !exists(fs, "/m2/gid/aid/1.0-SNAPSHOT/aid-1.0-20110908.002759-1234.jar.lastUpdated") {
		t.Error("missing .lastUpdated marker")
	}
}

func TestExecutePurge(t *testing.T) {
	fs := afero.NewMemMapFs()
	dir := "/m2/gid/aid/1.0-SNAPSHOT"
	seed(t, fs, dir,
		"aid-1.0-20110907.162759-1.jar",
		"aid-1.0-20110907.182759-23.jar",
		"aid-1.0-20110908.002759-1234.jar",
	)

	var stdout, stderr bytes.Buffer
	code := Execute(context.Background(), Invocation{
		Command:     CommandPurge,
		Repository:  "/m2",
		Coordinates: []string{"gid:aid:1.0-20110908.002759-1234"},
	}, Env{Stdout: &stdout, Stderr: &stderr, Fs: fs})

	if code != ExitSuccess {
		t.Fatalf("exit code = %d, stderr: %s", code, stderr.String())
	}
	if lines := strings.Fields(stdout.String()); len(lines) != 2 {
		t.Errorf("purged = %v, want 2 files", lines)
	}
	if !exists(fs, filepath.Join(dir, "aid-1.0-20110908.002759-1234.jar")) {
		t.Error("current snapshot was purged")
	}
}

func TestExecutePurgeExcluded(t *testing.T) {
	fs := afero.NewMemMapFs()
	dir := "/m2/gid/aid/1.0-SNAPSHOT"
	seed(t, fs, dir, "aid-1.0-20110907.162759-1.jar", "aid-1.0-20110908.002759-1234.jar")

	var stdout, stderr bytes.Buffer
	code := Execute(context.Background(), Invocation{
		Command:     CommandPurge,
		Repository:  "/m2",
		Excludes:    []string{"gid:a*"},
		Coordinates: []string{"gid:aid:1.0-20110908.002759-1234"},
	}, Env{Stdout: &stdout, Stderr: &stderr, Fs: fs})

	if code != ExitSuccess {
		t.Fatalf("exit code = %d", code)
	}
	if !exists(fs, filepath.Join(dir, "aid-1.0-20110907.162759-1.jar")) {
		t.Error("excluded snapshot was purged")
	}
}

func TestExecuteInvalidCoordinates(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := Execute(context.Background(), Invocation{
		Command:     CommandPurge,
		Repository:  "/m2",
		Coordinates: []string{"gid"},
	}, Env{Stdout: &stdout, Stderr: &stderr, Fs: afero.NewMemMapFs()})

	if code != ExitInvalidInvocation {
		t.Errorf("exit code = %d, want %d", code, ExitInvalidInvocation)
	}
}

func TestExecuteConfigError(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := Execute(context.Background(), Invocation{
		Command:     CommandPurge,
		ConfigPath:  filepath.Join(t.TempDir(), "missing.yaml"),
		Coordinates: []string{"gid:aid:1.0"},
	}, Env{Stdout: &stdout, Stderr: &stderr, Fs: afero.NewMemMapFs()})

	if code != ExitConfigError {
		t.Errorf("exit code = %d, want %d", code, ExitConfigError)
	}
}

func TestExecutePurgeMissingRevision(t *testing.T) {
	fs := afero.NewMemMapFs()
	dir := "/m2/gid/aid/1.0-SNAPSHOT"
	files := []string{"aid-1.0-20110907.162759-1.jar", "aid-1.0-20110908.002759-2.jar"}
	seed(t, fs, dir, files...)

	var stdout, stderr bytes.Buffer
	code := Execute(context.Background(), Invocation{
		Command:     CommandPurge,
		Repository:  "/m2",
		Coordinates: []string{"gid:aid:1.0-20110908.002759-3"},
	}, Env{Stdout: &stdout, Stderr: &stderr, Fs: fs})

	if code != ExitFailure {
		t.Errorf("exit code = %d, want %d", code, ExitFailure)
	}
	if !strings.Contains(stderr.String(), "not in local repository") {
		t.Errorf("stderr = %q", stderr.String())
	}
	if stdout.Len() != 0 {
		t.Errorf("stdout = %q, want empty", stdout.String())
	}
	for _, name := range files {
		if !exists(fs, filepath.Join(dir, name)) {
			t.Errorf("Missing %s", name)
		}
	}
}

func TestExecutePurgeOlderRevisionKeepsNewer(t *testing.T) {
	fs := afero.NewMemMapFs()
	dir := "/m2/gid/aid/1.0-SNAPSHOT"
	seed(t, fs, dir,
		"aid-1.0-20110906.120000-1.jar",
		"aid-1.0-20110907.162759-2.jar",
		"aid-1.0-20110908.002759-3.jar",
		"aid-1.0-20110908.002759-3.jar.sha1",
	)

	var stdout, stderr bytes.Buffer
	code := Execute(context.Background(), Invocation{
		Command:     CommandPurge,
		Repository:  "/m2",
		Coordinates: []string{"gid:aid:1.0-20110907.162759-2"},
	}, Env{Stdout: &stdout, Stderr: &stderr, Fs: fs})

	if code != ExitSuccess {
		t.Fatalf("exit code = %d, stderr: %s", code, stderr.String())
	}
	for _, name := range []string{"aid-1.0-20110907.162759-2.jar", "aid-1.0-20110908.002759-3.jar", "aid-1.0-20110908.002759-3.jar.sha1"} {
		if !exists(fs, filepath.Join(dir, name)) {
			t.Errorf("Missing %s", name)
		}
	}
	if exists(fs, filepath.Join(dir, "aid-1.0-20110906.120000-1.jar")) {
		t.Error("older revision survived")
	}
}

func TestExecutePurgeBaseVersionUsesNewestLocal(t *testing.T) {
	fs := afero.NewMemMapFs()
	dir := "/m2/gid/aid/1.0-SNAPSHOT"
	seed(t, fs, dir,
		"aid-1.0-20110907.162759-1.jar",
		"aid-1.0-20110907.182759-2.jar",
		// A failed download leaves only a marker; it is not a stored revision.
		"aid-1.0-20110908.002759-3.jar.lastUpdated",
	)

	var stdout, stderr bytes.Buffer
	code := Execute(context.Background(), Invocation{
		Command:     CommandPurge,
		Repository:  "/m2",
		Coordinates: []string{"gid:aid:1.0-SNAPSHOT"},
	}, Env{Stdout: &stdout, Stderr: &stderr, Fs: fs})

	if code != ExitSuccess {
		t.Fatalf("exit code = %d, stderr: %s", code, stderr.String())
	}
	if !exists(fs, filepath.Join(dir, "aid-1.0-20110907.182759-2.jar")) {
		t.Error("newest stored revision was purged")
	}
	if exists(fs, filepath.Join(dir, "aid-1.0-20110907.162759-1.jar")) {
		t.Error("older revision survived")
	}
	if !exists(fs, filepath.Join(dir, "aid-1.0-20110908.002759-3.jar.lastUpdated")) {
		t.Error("marker of a newer revision was purged")
	}
}

func TestExecutePurgeRejectsRelease(t *testing.T) {
	fs := afero.NewMemMapFs()
	seed(t, fs, "/m2/gid/aid/1.0", "aid-1.0.jar")

	var stdout, stderr bytes.Buffer
	code := Execute(context.Background(), Invocation{
		Command:     CommandPurge,
		Repository:  "/m2",
		Coordinates: []string{"gid:aid:1.0"},
	}, Env{Stdout: &stdout, Stderr: &stderr, Fs: fs})

	if code != ExitFailure {
		t.Errorf("exit code = %d, want %d", code, ExitFailure)
	}
	if !strings.Contains(stderr.String(), "not a snapshot") {
		t.Errorf("stderr = %q", stderr.String())
	}
}

func TestExecuteFetchSendsCredentials(t *testing.T) {
	t.Setenv("SNAPSHOTS_USERNAME", "deployer")
	t.Setenv("SNAPSHOTS_PASSWORD", "s3cret")
	t.Setenv("SNAPSHOTS_USER_AGENT", "ci-cache/2.0")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "deployer" || pass != "s3cret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if ua := r.Header.Get("User-Agent"); ua != "ci-cache/2.0" {
			t.Errorf("User-Agent = %q", ua)
		}
		_, _ = w.Write([]byte("jar"))
	}))
	defer server.Close()

	var stdout, stderr bytes.Buffer
	code := Execute(context.Background(), Invocation{
		Command:     CommandFetch,
		Repository:  "/m2",
		Remote:      server.URL,
		Coordinates: []string{"gid:aid:1.0-20110908.002759-1234"},
	}, Env{Stdout: &stdout, Stderr: &stderr, Fs: afero.NewMemMapFs()})

	if code != ExitSuccess {
		t.Fatalf("exit code = %d, stderr: %s", code, stderr.String())
	}
}

func TestExecuteFetchReportsOpenBreaker(t *testing.T) {
	t.Setenv("SNAPSHOTS_MAX_RETRIES", "0")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	coords := make([]string, 7)
	for i := range coords {
		coords[i] = "gid:aid:1.0-20110908.002759-" + strconv.Itoa(i+1)
	}

	var stdout, stderr bytes.Buffer
	code := Execute(context.Background(), Invocation{
		Command:     CommandFetch,
		Repository:  "/m2",
		Remote:      server.URL,
		Coordinates: coords,
	}, Env{Stdout: &stdout, Stderr: &stderr, Fs: afero.NewMemMapFs()})

	if code != ExitFailure {
		t.Errorf("exit code = %d, want %d", code, ExitFailure)
	}
	if !strings.Contains(stderr.String(), "circuit breaker open") {
		t.Errorf("stderr does not report the open breaker: %s", stderr.String())
	}
}
