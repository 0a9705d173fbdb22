package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/git-pkgs/snapshots/client"
	"github.com/git-pkgs/snapshots/internal/core"
)

const snapshotMetadata = `<?xml version="1.0" encoding="UTF-8"?>
<metadata modelVersion="1.1.0">
  <groupId>gid</groupId>
  <artifactId>aid</artifactId>
  <version>1.0-SNAPSHOT</version>
  <versioning>
    <snapshot>
      <timestamp>20110908.002759</timestamp>
      <buildNumber>1234</buildNumber>
    </snapshot>
    <lastUpdated>20110908002759</lastUpdated>
    <snapshotVersions>
      <snapshotVersion>
        <extension>jar</extension>
        <value>1.0-20110908.002759-1234</value>
        <updated>20110908002759</updated>
      </snapshotVersion>
      <snapshotVersion>
        <classifier>sources</classifier>
        <extension>jar</extension>
        <value>1.0-20110907.232759-234</value>
        <updated>20110907232759</updated>
      </snapshotVersion>
    </snapshotVersions>
  </versioning>
</metadata>`

const legacyMetadata = `<metadata>
  <versioning>
    <snapshot>
      <timestamp>20110907.182759</timestamp>
      <buildNumber>23</buildNumber>
    </snapshot>
  </versioning>
</metadata>`

func metadataServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/gid/aid/1.0-SNAPSHOT/maven-metadata.xml", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestResolveRelease(t *testing.T) {
	r := NewResolver(NewFetcher(), client.NewBaseURLs("https://repo1.maven.org/maven2"))

	info, err := r.Resolve(context.Background(), core.NewArtifact("com.google.guava", "guava", "", "jar", "32.1.0-jre"))
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if info.URL != "https://repo1.maven.org/maven2/com/google/guava/guava/32.1.0-jre/guava-32.1.0-jre.jar" {
		t.Errorf("URL = %q", info.URL)
	}
	if info.Filename != "guava-32.1.0-jre.jar" {
		t.Errorf("Filename = %q", info.Filename)
	}
}

func TestResolveTimestampedSnapshot(t *testing.T) {
	// Already resolved versions never hit the metadata endpoint.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s", r.URL.Path)
	}))
	defer server.Close()

	r := NewResolver(NewFetcher(), client.NewBaseURLs(server.URL))
	info, err := r.Resolve(context.Background(), core.NewArtifact("gid", "aid", "", "jar", "1.0-20110907.162759-1"))
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if info.Filename != "aid-1.0-20110907.162759-1.jar" {
		t.Errorf("Filename = %q", info.Filename)
	}
}

func TestResolveSnapshotVersions(t *testing.T) {
	server := metadataServer(t, snapshotMetadata)
	r := NewResolver(NewFetcher(), client.NewBaseURLs(server.URL))

	tests := []struct {
		classifier string
		want       string
	}{
		{"", "1.0-20110908.002759-1234"},
		{"sources", "1.0-20110907.232759-234"},
		{"javadoc", "1.0-20110908.002759-1234"}, // falls back to <snapshot>
	}

	for _, tt := range tests {
		t.Run(tt.classifier, func(t *testing.T) {
			info, err := r.Resolve(context.Background(), core.NewArtifact("gid", "aid", tt.classifier, "jar", "1.0-SNAPSHOT"))
			if err != nil {
				t.Fatalf("Resolve failed: %v", err)
			}
			if info.Artifact.Version != tt.want {
				t.Errorf("Version = %q, want %q", info.Artifact.Version, tt.want)
			}
			if info.Artifact.BaseVersion != "1.0-SNAPSHOT" {
				t.Errorf("BaseVersion = %q, want 1.0-SNAPSHOT", info.Artifact.BaseVersion)
			}
			if want := server.URL + "/gid/aid/1.0-SNAPSHOT/" + info.Filename; info.URL != want {
				t.Errorf("URL = %q, want %q", info.URL, want)
			}
		})
	}
}

func TestResolveLegacySnapshot(t *testing.T) {
	server := metadataServer(t, legacyMetadata)
	r := NewResolver(NewFetcher(), client.NewBaseURLs(server.URL))

	info, err := r.Resolve(context.Background(), core.NewArtifact("gid", "aid", "", "pom", "1.0-SNAPSHOT"))
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if info.Filename != "aid-1.0-20110907.182759-23.pom" {
		t.Errorf("Filename = %q", info.Filename)
	}
}

func TestResolveLocalCopySnapshot(t *testing.T) {
	server := metadataServer(t, `<metadata><versioning><snapshot><localCopy>true</localCopy></snapshot></versioning></metadata>`)
	r := NewResolver(NewFetcher(), client.NewBaseURLs(server.URL))

	info, err := r.Resolve(context.Background(), core.NewArtifact("gid", "aid", "", "jar", "1.0-SNAPSHOT"))
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if info.Filename != "aid-1.0-SNAPSHOT.jar" {
		t.Errorf("Filename = %q", info.Filename)
	}
}

func TestResolveNoSnapshotVersion(t *testing.T) {
	server := metadataServer(t, `<metadata><versioning></versioning></metadata>`)
	r := NewResolver(NewFetcher(), client.NewBaseURLs(server.URL))

	_, err := r.Resolve(context.Background(), core.NewArtifact("gid", "aid", "", "jar", "1.0-SNAPSHOT"))
	if !errors.Is(err, ErrNoSnapshotVersion) {
		t.Errorf("Resolve error = %v, want ErrNoSnapshotVersion", err)
	}
}

func TestResolveMissingMetadata(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	r := NewResolver(NewFetcher(), client.NewBaseURLs(server.URL))
	_, err := r.Resolve(context.Background(), core.NewArtifact("gid", "aid", "", "jar", "1.0-SNAPSHOT"))
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("Resolve error = %v, want core.ErrNotFound", err)
	}
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Resolve error = %v, want fetch.ErrNotFound", err)
	}
}

func TestResolveMalformedMetadata(t *testing.T) {
	server := metadataServer(t, `<metadata><versioning>`)
	r := NewResolver(NewFetcher(), client.NewBaseURLs(server.URL))

	if _, err := r.Resolve(context.Background(), core.NewArtifact("gid", "aid", "", "jar", "1.0-SNAPSHOT")); err == nil {
		t.Error("expected error for truncated metadata")
	}
}
