// Package installer materializes a resolved SelectedSet on disk: verify
// (frozen mode), cache consult, download-or-copy, and lock-file record,
// parallelized across a bounded worker pool.
package installer

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/termie/go-shutil"
	"golang.org/x/sync/errgroup"

	"github.com/DuckyScr/jpkg"
	"github.com/DuckyScr/jpkg/internal/cache"
	"github.com/DuckyScr/jpkg/internal/coordinate"
	"github.com/DuckyScr/jpkg/internal/repoclient"
	"github.com/DuckyScr/jpkg/internal/rlog"
)

// DependencyLookup supplies each coordinate's direct transitive
// dependencies for the informational lock-file field; the resolver is the
// usual source.
type DependencyLookup func(coordinate.Coordinate) []coordinate.Coordinate

// Installer drives one install run over a SelectedSet.
type Installer struct {
	Client      *repoclient.Client
	Cache       *cache.Cache
	Lock        *jpkg.LockFile
	Log         *rlog.Logger
	Parallelism int
	Frozen      bool
	Offline     bool
	// ArchiveExt is the file extension installed archives carry.
	ArchiveExt string
	// LibDir receives a flat copy of every installed archive, forming the
	// project's compile/run classpath.
	LibDir string
	// Dependencies supplies the informational transitive-dependency list
	// recorded alongside each lock entry. May be nil.
	Dependencies DependencyLookup
}

// installError wraps a per-coordinate failure with the coordinate it
// occurred on, so a caller can report which package failed.
type installError struct {
	Coordinate coordinate.Coordinate
	Cause      error
}

func (e *installError) Error() string {
	if e.Coordinate == (coordinate.Coordinate{}) {
		return e.Cause.Error()
	}
	return e.Coordinate.String() + ": " + e.Cause.Error()
}

func (e *installError) Unwrap() error { return e.Cause }

// Install installs every coordinate in selected, parallelized across a
// bounded worker pool (Installer.Parallelism, default 4). The Lock field
// is mutated under a mutex as each worker completes; callers are
// responsible for calling Save on it once Install returns with no error,
// matching the "final single-threaded aggregation pass" the concurrency
// model calls for.
func (in *Installer) Install(ctx context.Context, selected []coordinate.Coordinate) error {
	limit := in.Parallelism
	if limit <= 0 {
		limit = 4
	}

	if err := os.MkdirAll(in.LibDir, 0o755); err != nil {
		return &installError{Cause: &jpkg.IOError{Op: "mkdir", Path: in.LibDir, Reason: err.Error()}}
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	// Deterministic iteration order keeps log output stable across runs
	// even though installation itself is unordered (per the concurrency
	// model: the SelectedSet has no ordering guarantee).
	ordered := make([]coordinate.Coordinate, len(selected))
	copy(ordered, selected)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].String() < ordered[j].String() })

	for _, c := range ordered {
		c := c
		g.Go(func() error {
			archivePath, err := in.installOne(gctx, c)
			if err != nil {
				return &installError{Coordinate: c, Cause: err}
			}

			mu.Lock()
			defer mu.Unlock()

			var deps []coordinate.Coordinate
			if in.Dependencies != nil {
				deps = in.Dependencies(c)
			}
			if err := in.Lock.Record(c, archivePath, deps); err != nil {
				return &installError{Coordinate: c, Cause: err}
			}
			return nil
		})
	}

	return g.Wait()
}

// installOne runs the per-coordinate procedure and returns the cached
// archive path now also copied into LibDir.
func (in *Installer) installOne(ctx context.Context, c coordinate.Coordinate) (string, error) {
	cachedPath, wasHit := in.Cache.Lookup(c)

	if in.Frozen && wasHit {
		ok, err := in.Lock.Verify(c, cachedPath)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", &jpkg.ChecksumMismatchError{Coordinate: c.String()}
		}
	}

	if !wasHit {
		if in.Offline {
			return "", &jpkg.MissingInCacheOfflineError{Coordinate: c.String()}
		}
		if err := in.download(ctx, c); err != nil {
			return "", err
		}
		var hit bool
		cachedPath, hit = in.Cache.Lookup(c)
		if !hit {
			return "", &jpkg.IOError{Op: "insert", Path: cachedPath, Reason: "archive missing from cache after download"}
		}
	}

	// A fresh download already reported its own "downloading" status
	// line (with progress bar) from within download; only a cache hit
	// needs reporting here.
	if in.Log != nil && wasHit {
		if in.Frozen {
			in.Log.Status(c.String(), "verified")
		} else {
			in.Log.Status(c.String(), "cached")
		}
	}

	dest := filepath.Join(in.LibDir, c.Filename(in.ArchiveExt))
	if err := copyIntoLibDir(cachedPath, dest); err != nil {
		return "", &jpkg.IOError{Op: "copy", Path: dest, Reason: err.Error()}
	}
	return cachedPath, nil
}

func (in *Installer) download(ctx context.Context, c coordinate.Coordinate) error {
	tmp, err := os.CreateTemp("", "jpkg-download-*")
	if err != nil {
		return &jpkg.IOError{Op: "create temp file for", Path: c.String(), Reason: err.Error()}
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	var progress io.Writer
	var bar interface{ Close() error }
	if in.Log != nil {
		in.Log.Status(c.String(), "downloading")
		if size, sizeErr := in.Client.ContentLength(ctx, c, in.ArchiveExt); sizeErr == nil && size > 0 {
			b := in.Log.NewDownloadBar(c.String(), size)
			progress = b
			bar = b
		}
	}

	if err := in.Client.DownloadArchiveProgress(ctx, c, in.ArchiveExt, tmpPath, progress); err != nil {
		return &jpkg.NetworkError{URL: c.String(), Reason: err.Error()}
	}
	if bar != nil {
		bar.Close()
	}

	if err := in.Cache.Insert(c, tmpPath); err != nil {
		return &jpkg.IOError{Op: "insert", Path: tmpPath, Reason: err.Error()}
	}
	return nil
}

func copyIntoLibDir(src, dest string) error {
	if _, err := os.Stat(dest); err == nil {
		return nil
	}

	tmp := dest + ".tmp-lib"
	if err := shutil.CopyFile(src, tmp, false); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
