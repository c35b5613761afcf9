// Package manifest writes the hand-off document consumed by the build
// descriptor generator.
//
// The document is TOML. It lists the repositories to declare, the
// public and private dependencies with their resolved coordinates, the
// archives that must be installed locally, and any group:artifact that
// was packaged more than once under a published coordinate.
package manifest

import (
	"cmp"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/Masterminds/semver/v3"

	"github.com/matzehuels/jarprobe/pkg/archive"
	"github.com/matzehuels/jarprobe/pkg/dependency"
	"github.com/matzehuels/jarprobe/pkg/errors"
)

// Manifest is the hand-off document.
type Manifest struct {
	RunID           string    `toml:"run_id"`
	Generated       time.Time `toml:"generated"`
	Application     string    `toml:"application,omitempty"`
	BytecodeRelease string    `toml:"bytecode_release,omitempty"`

	Repositories []string     `toml:"repositories"`
	Public       []Dependency `toml:"public"`
	Private      []Dependency `toml:"private"`
	Installed    []Dependency `toml:"installed"`
	Conflicts    []Conflict   `toml:"conflicts,omitempty"`
}

// Dependency is one resolved archive.
type Dependency struct {
	Group      string `toml:"group"`
	Artifact   string `toml:"artifact"`
	Version    string `toml:"version"`
	Repository string `toml:"repository,omitempty"`
	File       string `toml:"file"`
	SHA1       string `toml:"sha1"`
}

// Key returns "group:artifact".
func (d Dependency) Key() string { return d.Group + ":" + d.Artifact }

// Synthetic reports whether d carries a locally synthesized identity
// rather than a published one.
func (d Dependency) Synthetic() bool {
	return d.Repository == "" || d.Group == dependency.SyntheticGroup
}

// Conflict records a group:artifact that several archives resolved to.
// Every archive left out of the dependency lists is in Dropped.
type Conflict struct {
	Key     string       `toml:"key"`
	Kept    Dependency   `toml:"kept"`
	Dropped []Dependency `toml:"dropped"`
}

// DroppedVersions returns the distinct versions in Dropped.
func (c Conflict) DroppedVersions() []string {
	var out []string
	for _, d := range c.Dropped {
		if !slices.Contains(out, d.Version) {
			out = append(out, d.Version)
		}
	}
	return out
}

// Input is what a finished run hands over.
type Input struct {
	RunID        string
	Application  string
	AppBytecode  int
	Repositories []string
	Public       []*dependency.Record
	Private      []*dependency.Record
}

// Build assembles the manifest. Within each list, archives published
// under the same group:artifact are folded to the highest version and
// the others are reported in Conflicts. Archives with a synthesized local
// identity are all kept, since their coordinates say nothing about their
// content. Records that were never verified are skipped.
func Build(in Input) *Manifest {
	m := &Manifest{
		RunID:        in.RunID,
		Generated:    time.Now().UTC().Truncate(time.Second),
		Application:  in.Application,
		Repositories: slices.Clone(in.Repositories),
	}
	if in.AppBytecode > 0 {
		m.BytecodeRelease = archive.Release(in.AppBytecode)
	}
	if m.Repositories == nil {
		m.Repositories = []string{}
	}

	var conflicts []Conflict
	m.Public, conflicts = dedupe(convert(in.Public))
	m.Conflicts = append(m.Conflicts, conflicts...)
	m.Private, conflicts = dedupe(convert(in.Private))
	m.Conflicts = append(m.Conflicts, conflicts...)

	m.Installed = []Dependency{}
	for _, rec := range slices.Concat(in.Public, in.Private) {
		if rec.Installed() {
			if d, ok := toDependency(rec); ok {
				m.Installed = append(m.Installed, d)
			}
		}
	}
	slices.SortFunc(m.Installed, compareDeps)
	return m
}

func convert(recs []*dependency.Record) []Dependency {
	out := make([]Dependency, 0, len(recs))
	for _, rec := range recs {
		if d, ok := toDependency(rec); ok {
			out = append(out, d)
		}
	}
	return out
}

func toDependency(rec *dependency.Record) (Dependency, bool) {
	res, ok := rec.Resolved()
	if !ok {
		return Dependency{}, false
	}
	return Dependency{
		Group:      res.Coordinate.Group,
		Artifact:   res.Coordinate.Artifact,
		Version:    res.Coordinate.Version,
		Repository: res.Repository,
		File:       rec.Name(),
		SHA1:       rec.Hash,
	}, true
}

// dedupe keeps one archive per content hash and the highest version per
// published group:artifact.
func dedupe(deps []Dependency) ([]Dependency, []Conflict) {
	seen := make(map[string]bool)
	byKey := make(map[string][]Dependency)
	var kept []Dependency
	for _, d := range deps {
		if seen[d.SHA1] {
			continue
		}
		seen[d.SHA1] = true
		if d.Synthetic() {
			kept = append(kept, d)
			continue
		}
		byKey[d.Key()] = append(byKey[d.Key()], d)
	}

	var conflicts []Conflict
	for key, group := range byKey {
		slices.SortFunc(group, func(a, b Dependency) int {
			// highest first
			return cmp.Or(-CompareVersions(a.Version, b.Version), strings.Compare(a.File, b.File))
		})
		kept = append(kept, group[0])
		if len(group) > 1 {
			conflicts = append(conflicts, Conflict{Key: key, Kept: group[0], Dropped: slices.Clone(group[1:])})
		}
	}
	if kept == nil {
		kept = []Dependency{}
	}
	slices.SortFunc(kept, compareDeps)
	slices.SortFunc(conflicts, func(a, b Conflict) int { return strings.Compare(a.Key, b.Key) })
	return kept, conflicts
}

func compareDeps(a, b Dependency) int {
	return cmp.Or(
		strings.Compare(a.Group, b.Group),
		strings.Compare(a.Artifact, b.Artifact),
		CompareVersions(a.Version, b.Version),
		strings.Compare(a.File, b.File),
		strings.Compare(a.SHA1, b.SHA1),
	)
}

// CompareVersions orders two version strings by semantic version when
// both parse (leniently), and lexically otherwise.
func CompareVersions(a, b string) int {
	va, errA := semver.NewVersion(a)
	vb, errB := semver.NewVersion(b)
	if errA == nil && errB == nil {
		if c := va.Compare(vb); c != 0 {
			return c
		}
	}
	return strings.Compare(a, b)
}

// Write encodes m as TOML.
func (m *Manifest) Write(w io.Writer) error {
	if err := toml.NewEncoder(w).Encode(m); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "encode manifest")
	}
	return nil
}

// WriteFile writes m to path.
func (m *Manifest) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "create %s", path)
	}
	if err := m.Write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Read decodes a manifest.
func Read(r io.Reader) (*Manifest, error) {
	var m Manifest
	if _, err := toml.NewDecoder(r).Decode(&m); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode manifest")
	}
	return &m, nil
}
