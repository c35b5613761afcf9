package maven

import (
	"encoding/xml"
	"strings"

	"github.com/matzehuels/jarprobe/pkg/gav"
)

// Project is the subset of a POM the resolvability check reads.
type Project struct {
	GroupID      string       `xml:"groupId"`
	ArtifactID   string       `xml:"artifactId"`
	Version      string       `xml:"version"`
	Parent       *Parent      `xml:"parent"`
	Properties   Properties   `xml:"properties"`
	Dependencies []Dependency `xml:"dependencies>dependency"`
}

// Parent is the <parent> reference of a POM.
type Parent struct {
	GroupID    string `xml:"groupId"`
	ArtifactID string `xml:"artifactId"`
	Version    string `xml:"version"`
}

// Dependency is one <dependency> element.
type Dependency struct {
	GroupID    string `xml:"groupId"`
	ArtifactID string `xml:"artifactId"`
	Version    string `xml:"version"`
	Scope      string `xml:"scope"`
	Type       string `xml:"type"`
	Optional   string `xml:"optional"`
}

// Properties holds the free-form <properties> block.
type Properties map[string]string

// UnmarshalXML collects every child element as a name/value pair.
func (p *Properties) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var raw struct {
		Entries []struct {
			XMLName xml.Name
			Value   string `xml:",chardata"`
		} `xml:",any"`
	}
	if err := d.DecodeElement(&raw, &start); err != nil {
		return err
	}
	*p = make(Properties, len(raw.Entries))
	for _, e := range raw.Entries {
		(*p)[e.XMLName.Local] = strings.TrimSpace(e.Value)
	}
	return nil
}

// Coordinate returns the project coordinate with group and version
// inherited from the parent when absent.
func (p *Project) Coordinate() gav.Coordinate {
	c := gav.New(p.GroupID, p.ArtifactID, p.Version)
	if p.Parent != nil {
		if c.Group == "" {
			c.Group = p.Parent.GroupID
		}
		if c.Version == "" {
			c.Version = p.Parent.Version
		}
	}
	return c
}

// ParentCoordinate returns the parent reference, or the zero value.
func (p *Project) ParentCoordinate() gav.Coordinate {
	if p.Parent == nil {
		return gav.Coordinate{}
	}
	return gav.New(strings.TrimSpace(p.Parent.GroupID), strings.TrimSpace(p.Parent.ArtifactID), strings.TrimSpace(p.Parent.Version))
}

// RuntimeDependencies returns the dependencies that a consumer of this
// project needs at runtime and whose coordinates are fully known once
// simple ${...} references are expanded. Managed versions are skipped.
func (p *Project) RuntimeDependencies() []gav.Coordinate {
	var out []gav.Coordinate
	seen := make(map[string]bool)
	for _, d := range p.Dependencies {
		switch strings.TrimSpace(d.Scope) {
		case "", "compile", "runtime":
		default:
			continue
		}
		if strings.TrimSpace(d.Optional) == "true" {
			continue
		}
		if t := strings.TrimSpace(d.Type); t != "" && t != "jar" {
			continue
		}
		c := gav.New(p.expand(d.GroupID), p.expand(d.ArtifactID), p.expand(d.Version))
		if !c.Complete() || strings.Contains(c.String(), "${") {
			continue
		}
		if strings.ContainsAny(c.Version, "[]()") {
			continue
		}
		if !seen[c.String()] {
			seen[c.String()] = true
			out = append(out, c)
		}
	}
	return out
}

// expand replaces ${project.*} references and properties declared in
// this POM. Unknown references are left in place.
func (p *Project) expand(s string) string {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, "${") {
		return s
	}
	self := p.Coordinate()
	known := map[string]string{
		"project.groupId":    self.Group,
		"pom.groupId":        self.Group,
		"groupId":            self.Group,
		"project.artifactId": self.Artifact,
		"project.version":    self.Version,
		"pom.version":        self.Version,
		"version":            self.Version,
	}
	if p.Parent != nil {
		known["project.parent.version"] = p.Parent.Version
		known["project.parent.groupId"] = p.Parent.GroupID
	}
	for k, v := range p.Properties {
		known[k] = v
	}

	var b strings.Builder
	for {
		i := strings.Index(s, "${")
		if i < 0 {
			b.WriteString(s)
			break
		}
		j := strings.IndexByte(s[i:], '}')
		if j < 0 {
			b.WriteString(s)
			break
		}
		b.WriteString(s[:i])
		name := s[i+2 : i+j]
		if v, ok := known[name]; ok && !strings.Contains(v, "${") {
			b.WriteString(v)
		} else {
			b.WriteString(s[i : i+j+1])
		}
		s = s[i+j+1:]
	}
	return b.String()
}
