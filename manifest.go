// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package jpkg

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"sort"

	"github.com/pkg/errors"

	"github.com/DuckyScr/jpkg/internal/coordinate"
)

// PackageInfo is the package identity block of a manifest.
type PackageInfo struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description,omitempty"`
}

// Manifest is the user-authored project descriptor: package identity plus
// a mapping from unversioned "group:artifact" keys to literal version
// strings.
type Manifest struct {
	Package      PackageInfo
	Dependencies map[string]string

	// extra preserves unknown top-level keys so they survive a rewrite,
	// best-effort, per the manifest file's external interface contract.
	extra map[string]json.RawMessage
}

type rawManifest struct {
	Package      PackageInfo       `json:"package"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

// NewManifest returns a starter manifest with no dependencies, as written
// by `jpkg init`.
func NewManifest(name, version string) *Manifest {
	return &Manifest{
		Package:      PackageInfo{Name: name, Version: version},
		Dependencies: make(map[string]string),
	}
}

// ReadManifest reads the manifest file at cfg.ManifestPath.
func ReadManifest(cfg Config) (*Manifest, error) {
	f, err := os.Open(cfg.ManifestPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &ManifestMissingError{Path: cfg.ManifestPath()}
		}
		return nil, errors.Wrap(err, "opening manifest")
	}
	defer f.Close()
	return readManifest(f, cfg.ManifestPath())
}

func readManifest(r io.Reader, path string) (*Manifest, error) {
	var extra map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&extra); err != nil {
		return nil, &ManifestMalformedError{Path: path, Reason: err.Error()}
	}

	rm := rawManifest{Dependencies: make(map[string]string)}
	if raw, ok := extra["package"]; ok {
		if err := json.Unmarshal(raw, &rm.Package); err != nil {
			return nil, &ManifestMalformedError{Path: path, Reason: err.Error()}
		}
	}
	if raw, ok := extra["dependencies"]; ok {
		if err := json.Unmarshal(raw, &rm.Dependencies); err != nil {
			return nil, &ManifestMalformedError{Path: path, Reason: err.Error()}
		}
	}
	delete(extra, "package")
	delete(extra, "dependencies")

	for key := range rm.Dependencies {
		if _, _, err := coordinate.ParseUnversioned(key); err != nil {
			return nil, &ManifestMalformedError{Path: path, Reason: err.Error()}
		}
	}

	return &Manifest{
		Package:      rm.Package,
		Dependencies: rm.Dependencies,
		extra:        extra,
	}, nil
}

// MarshalJSON serializes the manifest key-sorted for stable diffs,
// preserving any unknown top-level keys captured on read.
func (m *Manifest) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(m.extra)+2)
	for k, v := range m.extra {
		out[k] = v
	}

	pkg, err := json.Marshal(m.Package)
	if err != nil {
		return nil, err
	}
	out["package"] = pkg

	sorted := make(map[string]string, len(m.Dependencies))
	keys := make([]string, 0, len(m.Dependencies))
	for k, v := range m.Dependencies {
		sorted[k] = v
		keys = append(keys, k)
	}
	sort.Strings(keys)

	depsBuf := &bytes.Buffer{}
	depsBuf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			depsBuf.WriteByte(',')
		}
		kb, _ := json.Marshal(k)
		vb, _ := json.Marshal(sorted[k])
		depsBuf.Write(kb)
		depsBuf.WriteByte(':')
		depsBuf.Write(vb)
	}
	depsBuf.WriteByte('}')
	out["dependencies"] = json.RawMessage(depsBuf.Bytes())

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)

	// Encode the top level with "package" then "dependencies" first for
	// readability, matching how the starter template reads, followed by
	// any preserved unknown keys in sorted order.
	ordered := orderedTopLevel(out)
	if err := enc.Encode(ordered); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// orderedTopLevel renders top-level keys with "package" and "dependencies"
// first, then any preserved unknown keys in sorted order.
func orderedTopLevel(m map[string]json.RawMessage) json.RawMessage {
	keys := make([]string, 0, len(m))
	for k := range m {
		if k != "package" && k != "dependencies" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteByte('{')
	buf.WriteString(`"package":`)
	buf.Write(m["package"])
	buf.WriteString(`,"dependencies":`)
	buf.Write(m["dependencies"])
	for _, k := range keys {
		buf.WriteByte(',')
		kb, _ := json.Marshal(k)
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(m[k])
	}
	buf.WriteByte('}')
	return buf.Bytes()
}

// Write serializes the manifest to cfg.ManifestPath, overwriting any
// existing file.
func (m *Manifest) Write(cfg Config) error {
	b, err := m.MarshalJSON()
	if err != nil {
		return errors.Wrap(err, "encoding manifest")
	}
	if err := os.WriteFile(cfg.ManifestPath(), b, 0o644); err != nil {
		return errors.Wrap(err, "writing manifest")
	}
	return nil
}

// Coordinates returns the seed coordinates for resolution: one per
// manifest dependency, group:artifact:version.
func (m *Manifest) Coordinates() ([]coordinate.Coordinate, error) {
	coords := make([]coordinate.Coordinate, 0, len(m.Dependencies))
	for key, version := range m.Dependencies {
		group, artifact, err := coordinate.ParseUnversioned(key)
		if err != nil {
			return nil, &CoordinateMalformedError{Input: key, Reason: err.Error()}
		}
		c, err := coordinate.New(group, artifact, version)
		if err != nil {
			return nil, err
		}
		coords = append(coords, c)
	}
	return coords, nil
}
