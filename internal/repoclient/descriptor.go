package repoclient

import (
	"encoding/xml"
	"strings"

	"github.com/DuckyScr/jpkg/internal/coordinate"
)

// TestScope is the scope value that excludes a dependency from
// resolution entirely.
const TestScope = "test"

// Dependency is one direct dependency listed in a remote Descriptor.
// Version and Scope may both be absent: an absent Version means the
// dependency is skipped during expansion (upstream property interpolation
// is not evaluated), and an absent Scope is treated as non-test.
type Dependency struct {
	Group    string
	Artifact string
	Version  string // may be empty
	Scope    string // may be empty; "test" is special
}

// IsTestScope reports whether this dependency's scope is the special
// "test" scope.
func (d Dependency) IsTestScope() bool {
	return d.Scope == TestScope
}

// HasInterpolation reports whether the dependency's literal version string
// contains the upstream property-interpolation marker "${", which this
// implementation does not evaluate.
func (d Dependency) HasInterpolation() bool {
	return strings.Contains(d.Version, "${")
}

// Descriptor is the parsed form of a remote project descriptor: the
// artifact's own coordinate and its direct dependencies.
type Descriptor struct {
	Coordinate   coordinate.Coordinate
	Dependencies []Dependency
}

// xmlDescriptor mirrors the Maven-style POM shape served by the remote
// repo: <project><groupId/><artifactId/><version/><dependencies>...
type xmlDescriptor struct {
	XMLName      xml.Name `xml:"project"`
	GroupID      string   `xml:"groupId"`
	ArtifactID   string   `xml:"artifactId"`
	Version      string   `xml:"version"`
	Dependencies struct {
		Dependency []xmlDependency `xml:"dependency"`
	} `xml:"dependencies"`
}

type xmlDependency struct {
	GroupID    string `xml:"groupId"`
	ArtifactID string `xml:"artifactId"`
	Version    string `xml:"version"`
	Scope      string `xml:"scope"`
}

// parseDescriptor decodes the XML bytes served for a coordinate's
// descriptor file, tolerating an absent version or scope on any
// transitive dependency, and preserving the original literal version
// string for interpolation detection.
func parseDescriptor(self coordinate.Coordinate, data []byte) (*Descriptor, error) {
	var x xmlDescriptor
	if err := xml.Unmarshal(data, &x); err != nil {
		return nil, err
	}

	deps := make([]Dependency, 0, len(x.Dependencies.Dependency))
	for _, d := range x.Dependencies.Dependency {
		deps = append(deps, Dependency{
			Group:    d.GroupID,
			Artifact: d.ArtifactID,
			Version:  d.Version,
			Scope:    d.Scope,
		})
	}

	return &Descriptor{Coordinate: self, Dependencies: deps}, nil
}
