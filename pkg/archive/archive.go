package archive

import (
	"crypto/sha1"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/magiconair/properties"

	"github.com/matzehuels/jarprobe/pkg/errors"
	"github.com/matzehuels/jarprobe/pkg/gav"
)

const (
	metaInf      = "META-INF/"
	mavenMetaDir = "META-INF/maven/"
	pomProps     = "/pom.properties"
	classSuffix  = ".class"
)

// Info is everything a single pass over a jar yields.
type Info struct {
	// Declared is the coordinate recovered from the file name and the
	// embedded pom.properties. It may be partial.
	Declared gav.Coordinate
	// RepresentativePath is the first class entry, or "" if none.
	RepresentativePath string
	// Entries is the non-metadata entry set used for similarity.
	Entries EntrySet
	// BytecodeMajor is the class file major version of the first class
	// entry, or 0 when unknown.
	BytecodeMajor int
}

// Identify returns the hex SHA-1 of the file at path.
func Identify(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeArchiveUnreadable, err, "open %s", path)
	}
	defer f.Close()
	return hashReader(f, path)
}

// IdentifyBytes returns the hex SHA-1 of data.
func IdentifyBytes(data []byte) string {
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:])
}

func hashReader(r io.Reader, name string) (string, error) {
	h := sha1.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", errors.Wrap(errors.ErrCodeArchiveUnreadable, err, "read %s", name)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Inspect opens the jar at path and collects its [Info].
func Inspect(path string) (*Info, error) {
	rc, err := zip.OpenReader(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeArchiveUnreadable, err, "open %s", path)
	}
	defer rc.Close()

	info, err := inspect(&rc.Reader, filepath.Base(path))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeArchiveUnreadable, err, "inspect %s", path)
	}
	return info, nil
}

func inspect(zr *zip.Reader, fileName string) (*Info, error) {
	info := &Info{Entries: make(EntrySet)}

	artifact, version, named := gav.SplitFileName(fileName)
	if named {
		info.Declared.Artifact = artifact
		info.Declared.Version = version
	}

	propsSeen := false
	for _, f := range zr.File {
		name := f.Name
		if f.FileInfo().IsDir() {
			continue
		}

		if !propsSeen && strings.HasPrefix(name, mavenMetaDir) && strings.HasSuffix(name, pomProps) {
			propsSeen = true
			p, err := readProperties(f)
			if err != nil {
				return nil, err
			}
			info.Declared.Group = p.GetString("groupId", "")
			if !named {
				info.Declared.Artifact = p.GetString("artifactId", "")
				info.Declared.Version = p.GetString("version", "")
			}
		}

		if strings.HasPrefix(name, metaInf) {
			continue
		}
		info.Entries[name] = struct{}{}

		if info.RepresentativePath == "" && strings.HasSuffix(name, classSuffix) {
			info.RepresentativePath = name
			major, err := readClassMajor(f)
			if err != nil {
				return nil, err
			}
			info.BytecodeMajor = major
		}
	}
	return info, nil
}

func readProperties(f *zip.File) (*properties.Properties, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}
	return properties.Load(data, properties.ISO_8859_1)
}

func readClassMajor(f *zip.File) (int, error) {
	rc, err := f.Open()
	if err != nil {
		return 0, err
	}
	defer rc.Close()
	var hdr [8]byte
	if _, err := io.ReadFull(rc, hdr[:]); err != nil {
		// truncated class file: leave the level unknown
		return 0, nil
	}
	return ClassMajor(hdr[:]), nil
}
