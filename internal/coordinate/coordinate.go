// Package coordinate defines the (group, artifact, version) triple that
// identifies a single artifact revision, and its canonical textual form.
package coordinate

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Coordinate is a fully-qualified artifact revision. All three fields are
// required to be non-empty; Group must be a dotted identifier.
type Coordinate struct {
	Group    string
	Artifact string
	Version  string
}

// New builds a Coordinate, validating the invariants from the data model:
// non-empty fields and a dotted group.
func New(group, artifact, version string) (Coordinate, error) {
	c := Coordinate{Group: group, Artifact: artifact, Version: version}
	if err := c.validate(); err != nil {
		return Coordinate{}, err
	}
	return c, nil
}

func (c Coordinate) validate() error {
	if c.Group == "" || c.Artifact == "" || c.Version == "" {
		return errors.Errorf("coordinate %q has an empty field", c.rawString())
	}
	for _, seg := range strings.Split(c.Group, ".") {
		if seg == "" {
			return errors.Errorf("coordinate %q has a malformed group", c.rawString())
		}
	}
	return nil
}

func (c Coordinate) rawString() string {
	return fmt.Sprintf("%s:%s:%s", c.Group, c.Artifact, c.Version)
}

// String returns the canonical textual form group:artifact:version.
func (c Coordinate) String() string {
	return c.rawString()
}

// GroupPath replaces every '.' in Group with '/', as used to build remote
// and cache paths.
func (c Coordinate) GroupPath() string {
	return strings.ReplaceAll(c.Group, ".", "/")
}

// Filename returns the canonical archive filename "<artifact>-<version>.<ext>".
func (c Coordinate) Filename(ext string) string {
	return fmt.Sprintf("%s-%s.%s", c.Artifact, c.Version, ext)
}

// Unversioned returns the "group:artifact" key used by manifests.
func (c Coordinate) Unversioned() string {
	return fmt.Sprintf("%s:%s", c.Group, c.Artifact)
}

// Parse parses a canonical "group:artifact:version" string, the inverse of
// String. Parsing Parse(c.String()) always yields back c.
func Parse(s string) (Coordinate, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return Coordinate{}, errors.Errorf("coordinate %q does not parse into 3 colon-separated segments", s)
	}
	return New(parts[0], parts[1], parts[2])
}

// ParseUnversioned parses a "group:artifact" manifest key into its two
// segments, per the Manifest invariant in the data model.
func ParseUnversioned(s string) (group, artifact string, err error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", errors.Errorf("dependency key %q does not parse into 2 non-empty colon-separated segments", s)
	}
	return parts[0], parts[1], nil
}
