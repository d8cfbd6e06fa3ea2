// Package cache implements the user-global, content-addressed file store
// for downloaded archives, keyed by (group, artifact, version). The
// filesystem is the durable source of truth; a small BoltDB side index
// speeds up enumerate/total_size on large caches without a full walk.
package cache

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/boltdb/bolt"
	"github.com/pkg/errors"
	"github.com/termie/go-shutil"

	"github.com/DuckyScr/jpkg/internal/coordinate"
)

var indexBucket = []byte("entries")

// Cache is rooted at <root>, on-disk layout mirroring the remote repo:
// <root>/<group-path>/<artifact>/<version>/<artifact>-<version>.<ext>.
type Cache struct {
	root string
	ext  string
	db   *bolt.DB
}

// Open returns a Cache rooted at root, for archives with the given file
// extension. The root directory and its bolt index are created if
// missing.
func Open(root, ext string) (*Cache, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrapf(err, "creating cache root %s", root)
	}

	db, err := openIndex(root)
	if err != nil {
		return nil, err
	}

	return &Cache{root: root, ext: ext, db: db}, nil
}

func openIndex(root string) (*bolt.DB, error) {
	path := filepath.Join(root, ".index.bolt")
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "opening cache index %s", path)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(indexBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "initializing cache index")
	}
	return db, nil
}

// Close releases the cache's index handle.
func (c *Cache) Close() error {
	return c.db.Close()
}

func (c *Cache) path(coord coordinate.Coordinate) string {
	return filepath.Join(c.root, coord.GroupPath(), coord.Artifact, coord.Version, coord.Filename(c.ext))
}

// Lookup returns the path to coord's cached archive and whether it exists.
// It does not validate the file's contents.
func (c *Cache) Lookup(coord coordinate.Coordinate) (string, bool) {
	p := c.path(coord)
	if _, err := os.Stat(p); err != nil {
		return "", false
	}
	return p, true
}

// Insert copies sourcePath into the cache for coord, creating any missing
// intermediate directories. If the destination already exists, it is left
// untouched (first-writer-wins); this makes Insert safe to call from
// concurrent installer workers racing on distinct coordinates.
func (c *Cache) Insert(coord coordinate.Coordinate, sourcePath string) error {
	dest := c.path(coord)
	if _, err := os.Stat(dest); err == nil {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return errors.Wrapf(err, "creating cache directory for %s", coord)
	}

	if err := copyFileFirstWriterWins(sourcePath, dest); err != nil {
		return errors.Wrapf(err, "inserting %s into cache", coord)
	}

	size, err := fileSize(dest)
	if err == nil {
		_ = c.indexPut(coord, size)
	}
	return nil
}

// copyFileFirstWriterWins claims tmp exclusively (so concurrent inserts of
// the same coordinate never interleave writes to it), copies src into it
// with shutil.CopyFile, then renames it over dest.
func copyFileFirstWriterWins(src, dest string) error {
	tmp := dest + ".tmp-insert"
	claim, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			// Another worker is writing the same destination concurrently;
			// whichever of us wins the final rename is fine.
			return nil
		}
		return err
	}
	claim.Close()

	if err := shutil.CopyFile(src, tmp, false); err != nil {
		os.Remove(tmp)
		return err
	}

	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		// dest may already exist because a concurrent insert won the race.
		if _, statErr := os.Stat(dest); statErr == nil {
			return nil
		}
		return err
	}
	return nil
}

func fileSize(path string) (int64, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

// cacheEntry is one file discovered by a disk walk: its canonical
// coordinate string and byte size.
type cacheEntry struct {
	coord string
	size  int64
}

// walkEntries recursively walks the cache root and returns one cacheEntry
// per archive file. Directories with fewer than three path components
// below root are skipped silently.
func (c *Cache) walkEntries() ([]cacheEntry, error) {
	var entries []cacheEntry
	err := filepath.WalkDir(c.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Base(path) == ".index.bolt" {
			return nil
		}
		if filepath.Ext(path) != "."+c.ext {
			return nil
		}

		rel, err := filepath.Rel(c.root, path)
		if err != nil {
			return nil
		}
		parts := strings.Split(filepath.ToSlash(rel), "/")
		if len(parts) < 3 {
			return nil
		}

		version := parts[len(parts)-2]
		artifact := parts[len(parts)-3]
		group := strings.Join(parts[:len(parts)-3], ".")
		if group == "" {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			return err
		}

		entries = append(entries, cacheEntry{
			coord: strings.Join([]string{group, artifact, version}, ":"),
			size:  fi.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "walking cache root %s", c.root)
	}
	return entries, nil
}

// Enumerate returns one canonical-coordinate string per cached archive. It
// consults the bolt index first, falling back to (and backfilling) a full
// disk walk only when the index is empty, so a cache populated before the
// index existed still self-heals on first use.
func (c *Cache) Enumerate() ([]string, error) {
	coords, ok, err := c.indexEnumerate()
	if err != nil {
		return nil, err
	}
	if ok {
		sort.Strings(coords)
		return coords, nil
	}

	entries, err := c.walkEntries()
	if err != nil {
		return nil, err
	}
	coords = make([]string, 0, len(entries))
	for _, e := range entries {
		coords = append(coords, e.coord)
		_ = c.indexPutString(e.coord, e.size)
	}
	sort.Strings(coords)
	return coords, nil
}

// TotalSize sums the byte size of every cached archive. It consults the
// bolt index first, falling back to (and backfilling) a full disk walk
// only when the index is empty.
func (c *Cache) TotalSize() (int64, error) {
	total, ok, err := c.indexTotalSize()
	if err != nil {
		return 0, err
	}
	if ok {
		return total, nil
	}

	entries, err := c.walkEntries()
	if err != nil {
		return 0, err
	}
	total = 0
	for _, e := range entries {
		total += e.size
		_ = c.indexPutString(e.coord, e.size)
	}
	return total, nil
}

// Purge removes the cache root and re-creates it empty, along with a
// fresh index.
func (c *Cache) Purge() error {
	if err := c.db.Close(); err != nil {
		return errors.Wrap(err, "closing cache index before purge")
	}
	if err := os.RemoveAll(c.root); err != nil {
		return errors.Wrapf(err, "removing cache root %s", c.root)
	}
	if err := os.MkdirAll(c.root, 0o755); err != nil {
		return errors.Wrapf(err, "recreating cache root %s", c.root)
	}

	db, err := openIndex(c.root)
	if err != nil {
		return err
	}
	c.db = db
	return nil
}

func (c *Cache) indexPut(coord coordinate.Coordinate, size int64) error {
	return c.indexPutString(coord.String(), size)
}

func (c *Cache) indexPutString(coord string, size int64) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(indexBucket)
		return b.Put([]byte(coord), []byte(strconv.FormatInt(size, 10)))
	})
}

// indexEnumerate returns every coordinate string recorded in the bolt
// index, and false if the index has no entries yet.
func (c *Cache) indexEnumerate() ([]string, bool, error) {
	var coords []string
	err := c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(indexBucket)
		return b.ForEach(func(k, _ []byte) error {
			coords = append(coords, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, false, errors.Wrap(err, "reading cache index")
	}
	return coords, len(coords) > 0, nil
}

// indexTotalSize sums every size recorded in the bolt index, and reports
// false if the index has no entries yet.
func (c *Cache) indexTotalSize() (int64, bool, error) {
	var total int64
	var count int
	err := c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(indexBucket)
		return b.ForEach(func(_, v []byte) error {
			size, err := strconv.ParseInt(string(v), 10, 64)
			if err != nil {
				return err
			}
			total += size
			count++
			return nil
		})
	})
	if err != nil {
		return 0, false, errors.Wrap(err, "reading cache index")
	}
	return total, count > 0, nil
}
