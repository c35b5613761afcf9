// Package gav models Maven coordinates and the repository layout derived
// from them.
package gav

import (
	"fmt"
	"regexp"
	"strings"
)

// Coordinate is a group/artifact/version triple. Any field may be empty
// when the coordinate was only partially recovered.
type Coordinate struct {
	Group    string `json:"group" toml:"group" bson:"group"`
	Artifact string `json:"artifact" toml:"artifact" bson:"artifact"`
	Version  string `json:"version" toml:"version" bson:"version"`
}

// New returns a Coordinate.
func New(group, artifact, version string) Coordinate {
	return Coordinate{Group: group, Artifact: artifact, Version: version}
}

// Parse reads "group:artifact:version".
func Parse(s string) (Coordinate, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return Coordinate{}, fmt.Errorf("invalid coordinate %q: want group:artifact:version", s)
	}
	c := New(parts[0], parts[1], parts[2])
	if !c.Complete() {
		return Coordinate{}, fmt.Errorf("invalid coordinate %q: empty field", s)
	}
	return c, nil
}

// IsZero reports whether no field is set.
func (c Coordinate) IsZero() bool {
	return c.Group == "" && c.Artifact == "" && c.Version == ""
}

// Complete reports whether all three fields are set.
func (c Coordinate) Complete() bool {
	return c.Group != "" && c.Artifact != "" && c.Version != ""
}

// Key returns "group:artifact", the identity used for conflict detection.
func (c Coordinate) Key() string {
	return c.Group + ":" + c.Artifact
}

// WithGroup returns a copy of c with the group replaced.
func (c Coordinate) WithGroup(group string) Coordinate {
	c.Group = group
	return c
}

func (c Coordinate) String() string {
	return c.Group + ":" + c.Artifact + ":" + c.Version
}

// Dir returns the repository directory for c, e.g. "org/slf4j/slf4j-api/2.0.9/".
func (c Coordinate) Dir() string {
	return strings.ReplaceAll(c.Group, ".", "/") + "/" + c.Artifact + "/" + c.Version + "/"
}

// JarPath returns the path of the binary archive relative to a repository root.
func (c Coordinate) JarPath() string {
	return c.Dir() + c.base() + ".jar"
}

// SHA1Path returns the path of the SHA-1 sidecar of the binary archive.
func (c Coordinate) SHA1Path() string {
	return c.JarPath() + ".sha1"
}

// POMPath returns the path of the build descriptor.
func (c Coordinate) POMPath() string {
	return c.Dir() + c.base() + ".pom"
}

func (c Coordinate) base() string {
	return c.Artifact + "-" + c.Version
}

// URL joins a repository root and a relative path.
func URL(repo, path string) string {
	return strings.TrimRight(repo, "/") + "/" + strings.TrimLeft(path, "/")
}

var versionLike = regexp.MustCompile(`^[0-9].*`)

// SplitFileName derives artifact and version from an archive file name
// such as "foo-bar-1.2.3-SNAPSHOT.jar". The name is split on "-"; when
// exactly one token starts with a digit, the tokens before it form the
// artifact and that token plus everything after form the version.
// ok is false when no such split exists.
func SplitFileName(name string) (artifact, version string, ok bool) {
	name = strings.TrimSuffix(name, ".jar")
	tokens := strings.Split(name, "-")

	idx := -1
	for i, tok := range tokens {
		if versionLike.MatchString(tok) {
			if idx >= 0 {
				return "", "", false
			}
			idx = i
		}
	}
	if idx <= 0 {
		return "", "", false
	}
	return strings.Join(tokens[:idx], "-"), strings.Join(tokens[idx:], "-"), true
}
