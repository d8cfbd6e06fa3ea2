// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package jpkg_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/DuckyScr/jpkg"
	"github.com/DuckyScr/jpkg/internal/cache"
	"github.com/DuckyScr/jpkg/internal/coordinate"
	"github.com/DuckyScr/jpkg/internal/installer"
	"github.com/DuckyScr/jpkg/internal/repoclient"
	"github.com/DuckyScr/jpkg/internal/resolver"
)

// e2eEnv bundles a project root, cache root, and a synthetic remote repo
// serving one leaf artifact, standing in for a live Maven Central mirror
// across the end-to-end scenarios below.
type e2eEnv struct {
	cfg jpkg.Config
	srv *httptest.Server
}

func newE2EEnv(t *testing.T) *e2eEnv {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch filepath.Ext(r.URL.Path) {
		case ".pom":
			w.Write([]byte(`<project><dependencies></dependencies></project>`))
		case ".jar":
			w.Write([]byte("leaf-archive-bytes"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)

	cfg := jpkg.Config{
		ProjectRoot: t.TempDir(),
		CacheRoot:   t.TempDir(),
		RemoteBase:  srv.URL,
		SearchBase:  srv.URL + "/search",
		UserAgent:   "jpkg/0.1.0",
		Timeout:     5 * time.Second,
		Parallelism: 2,
	}
	return &e2eEnv{cfg: cfg, srv: srv}
}

func (e *e2eEnv) install(t *testing.T, frozen, offline bool) error {
	t.Helper()

	manifest, err := jpkg.ReadManifest(e.cfg)
	if err != nil {
		return err
	}
	seeds, err := manifest.Coordinates()
	if err != nil {
		return err
	}

	client := repoclient.New(e.cfg.RemoteBase, e.cfg.SearchBase, e.cfg.UserAgent, e.cfg.Timeout)
	c, err := cache.Open(e.cfg.CacheRoot, jpkg.ArchiveExt)
	if err != nil {
		return err
	}
	defer c.Close()

	r := resolver.New(func(ctx context.Context, coord coordinate.Coordinate) (*repoclient.Descriptor, error) {
		return client.FetchDescriptor(ctx, coord, jpkg.DescriptorExt)
	})
	selected, err := r.Resolve(context.Background(), seeds)
	if err != nil {
		return err
	}

	lock, err := jpkg.LoadLockFile(e.cfg)
	if err != nil {
		return err
	}

	in := &installer.Installer{
		Client:       client,
		Cache:        c,
		Lock:         lock,
		Parallelism:  e.cfg.Parallelism,
		Frozen:       frozen,
		Offline:      offline,
		ArchiveExt:   jpkg.ArchiveExt,
		LibDir:       e.cfg.LibDir(),
		Dependencies: r.DependencyLookup(),
	}
	if err := in.Install(context.Background(), selected); err != nil {
		return err
	}
	return lock.Save(e.cfg)
}

// TestE2EEmptyManifest: a manifest with no dependencies installs
// cleanly with an empty selected set and an empty lock file.
func TestE2EEmptyManifest(t *testing.T) {
	e := newE2EEnv(t)
	m := jpkg.NewManifest("empty-project", "1.0.0")
	if err := m.Write(e.cfg); err != nil {
		t.Fatalf("writing manifest: %v", err)
	}

	if err := e.install(t, false, false); err != nil {
		t.Fatalf("install: %v", err)
	}

	lock, err := jpkg.LoadLockFile(e.cfg)
	if err != nil {
		t.Fatalf("LoadLockFile: %v", err)
	}
	if len(lock.Packages) != 0 {
		t.Fatalf("expected an empty lock file, got %v", lock.Packages)
	}
}

// TestE2ESingleLeafOnlineInstall: a manifest with one leaf dependency
// resolves, downloads, caches, and installs it, recording a lock entry.
func TestE2ESingleLeafOnlineInstall(t *testing.T) {
	e := newE2EEnv(t)
	m := jpkg.NewManifest("leaf-project", "1.0.0")
	m.Dependencies["org.json:json"] = "20210307"
	if err := m.Write(e.cfg); err != nil {
		t.Fatalf("writing manifest: %v", err)
	}

	if err := e.install(t, false, false); err != nil {
		t.Fatalf("install: %v", err)
	}

	libPath := filepath.Join(e.cfg.LibDir(), "json-20210307.jar")
	if _, err := os.Stat(libPath); err != nil {
		t.Fatalf("expected installed archive at %s: %v", libPath, err)
	}

	lock, err := jpkg.LoadLockFile(e.cfg)
	if err != nil {
		t.Fatalf("LoadLockFile: %v", err)
	}
	if _, ok := lock.Packages["org.json:json:20210307"]; !ok {
		t.Fatal("expected a lock entry for org.json:json:20210307")
	}
}

// TestE2EOfflineHit: after an online install populates the cache, a
// subsequent offline install against the same cache succeeds with the
// remote repo unreachable: the resolver's descriptor fetches fail and are
// treated as "no transitive dependencies," and no archive is downloaded.
func TestE2EOfflineHit(t *testing.T) {
	e := newE2EEnv(t)
	m := jpkg.NewManifest("leaf-project", "1.0.0")
	m.Dependencies["org.json:json"] = "20210307"
	if err := m.Write(e.cfg); err != nil {
		t.Fatalf("writing manifest: %v", err)
	}

	if err := e.install(t, false, false); err != nil {
		t.Fatalf("initial online install: %v", err)
	}

	e.srv.Close() // network must not be reachable for the offline install

	if err := e.install(t, false, true); err != nil {
		t.Fatalf("offline install against a warm cache: %v", err)
	}
}

// TestE2EOfflineMiss: an offline install with nothing in the cache
// fails with a cache-miss error and installs nothing.
func TestE2EOfflineMiss(t *testing.T) {
	e := newE2EEnv(t)
	m := jpkg.NewManifest("leaf-project", "1.0.0")
	m.Dependencies["org.json:json"] = "20210307"
	if err := m.Write(e.cfg); err != nil {
		t.Fatalf("writing manifest: %v", err)
	}

	if err := e.install(t, false, true); err == nil {
		t.Fatal("expected an error for an offline install against a cold cache")
	}

	if _, err := os.Stat(filepath.Join(e.cfg.LibDir(), "json-20210307.jar")); err == nil {
		t.Fatal("expected no archive to be installed on an offline cache miss")
	}
}

// TestE2ELockRecordsTransitiveDependencies: the real install path (the
// one cmd/jpkg/install.go drives) records each package's direct
// dependencies in the lock file, sourced from the resolver rather than
// left empty.
func TestE2ELockRecordsTransitiveDependencies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case filepath.Ext(r.URL.Path) != ".pom":
			w.Write([]byte("archive-bytes"))
		case strings.Contains(r.URL.Path, "/root/"):
			w.Write([]byte(`<project><dependencies>
				<dependency><groupId>org.child</groupId><artifactId>child</artifactId><version>1.0</version></dependency>
			</dependencies></project>`))
		default:
			w.Write([]byte(`<project><dependencies></dependencies></project>`))
		}
	}))
	t.Cleanup(srv.Close)

	cfg := jpkg.Config{
		ProjectRoot: t.TempDir(),
		CacheRoot:   t.TempDir(),
		RemoteBase:  srv.URL,
		SearchBase:  srv.URL + "/search",
		UserAgent:   "jpkg/0.1.0",
		Timeout:     5 * time.Second,
		Parallelism: 2,
	}

	m := jpkg.NewManifest("tree-project", "1.0.0")
	m.Dependencies["org.root:root"] = "1.0"
	if err := m.Write(cfg); err != nil {
		t.Fatalf("writing manifest: %v", err)
	}

	manifest, err := jpkg.ReadManifest(cfg)
	if err != nil {
		t.Fatalf("ReadManifest: %v", err)
	}
	seeds, err := manifest.Coordinates()
	if err != nil {
		t.Fatalf("Coordinates: %v", err)
	}

	client := repoclient.New(cfg.RemoteBase, cfg.SearchBase, cfg.UserAgent, cfg.Timeout)
	c, err := cache.Open(cfg.CacheRoot, jpkg.ArchiveExt)
	if err != nil {
		t.Fatalf("cache.Open: %v", err)
	}
	defer c.Close()

	r := resolver.New(func(ctx context.Context, coord coordinate.Coordinate) (*repoclient.Descriptor, error) {
		return client.FetchDescriptor(ctx, coord, jpkg.DescriptorExt)
	})
	selected, err := r.Resolve(context.Background(), seeds)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	lock, err := jpkg.LoadLockFile(cfg)
	if err != nil {
		t.Fatalf("LoadLockFile: %v", err)
	}

	in := &installer.Installer{
		Client:       client,
		Cache:        c,
		Lock:         lock,
		Parallelism:  cfg.Parallelism,
		ArchiveExt:   jpkg.ArchiveExt,
		LibDir:       cfg.LibDir(),
		Dependencies: r.DependencyLookup(),
	}
	if err := in.Install(context.Background(), selected); err != nil {
		t.Fatalf("Install: %v", err)
	}

	root, ok := lock.Packages["org.root:root:1.0"]
	if !ok {
		t.Fatal("expected a lock entry for org.root:root:1.0")
	}
	if len(root.Dependencies) != 1 || root.Dependencies[0] != "org.child:child:1.0" {
		t.Fatalf("root.Dependencies = %v, want [org.child:child:1.0]", root.Dependencies)
	}

	child, ok := lock.Packages["org.child:child:1.0"]
	if !ok {
		t.Fatal("expected a lock entry for org.child:child:1.0")
	}
	if len(child.Dependencies) != 0 {
		t.Fatalf("child.Dependencies = %v, want none", child.Dependencies)
	}
}

// TestE2EFrozenTamperedCache: frozen mode detects a cached archive
// that no longer matches its recorded lock-file checksum.
func TestE2EFrozenTamperedCache(t *testing.T) {
	e := newE2EEnv(t)
	m := jpkg.NewManifest("leaf-project", "1.0.0")
	m.Dependencies["org.json:json"] = "20210307"
	if err := m.Write(e.cfg); err != nil {
		t.Fatalf("writing manifest: %v", err)
	}

	if err := e.install(t, false, false); err != nil {
		t.Fatalf("initial online install: %v", err)
	}

	c, err := cache.Open(e.cfg.CacheRoot, jpkg.ArchiveExt)
	if err != nil {
		t.Fatalf("cache.Open: %v", err)
	}
	coord, err := coordinate.Parse("org.json:json:20210307")
	if err != nil {
		t.Fatalf("coordinate.Parse: %v", err)
	}
	cachedPath, ok := c.Lookup(coord)
	if !ok {
		t.Fatal("expected a cache hit before tampering")
	}
	if err := os.WriteFile(cachedPath, []byte("tampered"), 0o644); err != nil {
		t.Fatalf("tampering with cached archive: %v", err)
	}
	c.Close()

	if err := e.install(t, true, false); err == nil {
		t.Fatal("expected frozen install to detect the tampered cache entry")
	}
}
