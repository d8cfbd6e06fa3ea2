// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package jpkg

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
	"github.com/termie/go-shutil"

	"github.com/DuckyScr/jpkg/internal/coordinate"
)

// LockedPackage is one entry of a LockFile: the version actually installed,
// its content checksum, and the (informational) set of its direct
// dependencies at record time.
type LockedPackage struct {
	Version      string   `json:"version"`
	Checksum     string   `json:"checksum"`
	Dependencies []string `json:"dependencies"`
}

// LockFile is the per-project, content-hash-bearing record of a prior
// successful install: canonical coordinate string -> LockedPackage.
type LockFile struct {
	Version  string
	Packages map[string]LockedPackage
}

type rawLockFile struct {
	Version  string                   `json:"version"`
	Packages map[string]LockedPackage `json:"packages"`
}

// NewLockFile returns an empty lock file at the current schema version.
func NewLockFile() *LockFile {
	return &LockFile{Version: LockSchemaVersion, Packages: make(map[string]LockedPackage)}
}

// LoadLockFile reads the existing lock file at cfg.LockPath, or returns a
// fresh empty one if none exists yet.
func LoadLockFile(cfg Config) (*LockFile, error) {
	f, err := os.Open(cfg.LockPath())
	if err != nil {
		if os.IsNotExist(err) {
			return NewLockFile(), nil
		}
		return nil, errors.Wrap(err, "opening lock file")
	}
	defer f.Close()
	return readLockFile(f)
}

func readLockFile(r io.Reader) (*LockFile, error) {
	var raw rawLockFile
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, errors.Wrap(err, "parsing lock file")
	}
	if raw.Packages == nil {
		raw.Packages = make(map[string]LockedPackage)
	}
	if raw.Version == "" {
		raw.Version = LockSchemaVersion
	}
	return &LockFile{Version: raw.Version, Packages: raw.Packages}, nil
}

// Record computes the SHA-256 of archivePath (if it exists; otherwise an
// empty checksum) and stores a LockedPackage for coord, overwriting any
// prior entry.
func (l *LockFile) Record(coord coordinate.Coordinate, archivePath string, transitive []coordinate.Coordinate) error {
	checksum, err := hashFile(archivePath)
	if err != nil {
		return err
	}

	deps := make([]string, 0, len(transitive))
	for _, d := range transitive {
		deps = append(deps, d.String())
	}
	sort.Strings(deps)

	if l.Packages == nil {
		l.Packages = make(map[string]LockedPackage)
	}
	l.Packages[coord.String()] = LockedPackage{
		Version:      coord.Version,
		Checksum:     checksum,
		Dependencies: deps,
	}
	return nil
}

// Verify reports whether coord's recorded checksum (if any) matches the
// archive on disk. It returns true when coord is absent from the lock
// file, when the stored checksum is empty, or when the archive's SHA-256
// equals the stored checksum; false otherwise.
func (l *LockFile) Verify(coord coordinate.Coordinate, archivePath string) (bool, error) {
	locked, ok := l.Packages[coord.String()]
	if !ok || locked.Checksum == "" {
		return true, nil
	}

	actual, err := hashFile(archivePath)
	if err != nil {
		return false, err
	}
	if actual == "" {
		return false, nil
	}
	return actual == locked.Checksum, nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", &IOError{Op: "read", Path: path, Reason: err.Error()}
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", &IOError{Op: "read", Path: path, Reason: err.Error()}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Save serializes the lock file pretty-printed, key-sorted for
// reproducible output, to cfg.LockPath, writing atomically (write to a
// temp file in the same directory, then rename) so a crash mid-save never
// truncates the prior file.
func (l *LockFile) Save(cfg Config) error {
	b, err := l.marshal()
	if err != nil {
		return errors.Wrap(err, "encoding lock file")
	}
	return writeFileAtomic(cfg.LockPath(), b)
}

func (l *LockFile) marshal() ([]byte, error) {
	keys := make([]string, 0, len(l.Packages))
	for k := range l.Packages {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteString("{\n")
	vb, _ := json.Marshal(l.Version)
	buf.WriteString("  \"version\": ")
	buf.Write(vb)
	buf.WriteString(",\n  \"packages\": {")
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString("\n    ")
		kb, _ := json.Marshal(k)
		buf.Write(kb)
		buf.WriteString(": ")

		pb, err := json.MarshalIndent(l.Packages[k], "    ", "  ")
		if err != nil {
			return nil, err
		}
		buf.Write(pb)
	}
	if len(keys) > 0 {
		buf.WriteString("\n  ")
	}
	buf.WriteString("}\n}\n")
	return buf.Bytes(), nil
}

// writeFileAtomic writes data to path by first writing a temp file in the
// same directory and then renaming it over path, falling back to a plain
// copy+remove when rename fails across devices.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &IOError{Op: "mkdir", Path: dir, Reason: err.Error()}
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return &IOError{Op: "create temp file for", Path: path, Reason: err.Error()}
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return &IOError{Op: "write", Path: tmpPath, Reason: err.Error()}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return &IOError{Op: "sync", Path: tmpPath, Reason: err.Error()}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return &IOError{Op: "close", Path: tmpPath, Reason: err.Error()}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		// Cross-device rename fallback: copy then remove the temp file.
		if copyErr := copyFile(tmpPath, path); copyErr != nil {
			os.Remove(tmpPath)
			return &IOError{Op: "rename", Path: path, Reason: err.Error()}
		}
		os.Remove(tmpPath)
	}
	return nil
}

func copyFile(src, dst string) error {
	tmp := filepath.Join(filepath.Dir(dst), filepath.Base(dst)+".copy-tmp")
	if err := shutil.CopyFile(src, tmp, false); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}
