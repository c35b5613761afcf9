package archive

import (
	"encoding/xml"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/matzehuels/jarprobe/pkg/errors"
)

// LibraryDir is where Spring Boot application archives keep their
// dependency jars.
const LibraryDir = "BOOT-INF/lib/"

// ExtractLibraries unpacks every LibraryDir/*.jar of appJar into dir and
// returns the written paths in archive order.
func ExtractLibraries(appJar, dir string) ([]string, error) {
	rc, err := zip.OpenReader(appJar)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeArchiveUnreadable, err, "open %s", appJar)
	}
	defer rc.Close()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	var out []string
	for _, f := range rc.File {
		if !strings.HasPrefix(f.Name, LibraryDir) || !strings.HasSuffix(f.Name, ".jar") {
			continue
		}
		base := path.Base(f.Name)
		if err := errors.ValidatePath(base); err != nil {
			return nil, err
		}
		dst := filepath.Join(dir, base)
		if err := extractFile(f, dst); err != nil {
			return nil, errors.Wrap(errors.ErrCodeArchiveUnreadable, err, "extract %s", f.Name)
		}
		out = append(out, dst)
	}
	return out, nil
}

func extractFile(f *zip.File, dst string) error {
	src, err := f.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	w, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, src); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

type embeddedPOM struct {
	Repositories []struct {
		URL string `xml:"url"`
	} `xml:"repositories>repository"`
}

// EmbeddedPOMRepositories returns the repository URLs declared in the
// first META-INF/maven/**/pom.xml of appJar.
func EmbeddedPOMRepositories(appJar string) ([]string, error) {
	rc, err := zip.OpenReader(appJar)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeArchiveUnreadable, err, "open %s", appJar)
	}
	defer rc.Close()

	for _, f := range rc.File {
		if !strings.HasPrefix(f.Name, mavenMetaDir) || !strings.HasSuffix(f.Name, "/pom.xml") {
			continue
		}
		r, err := f.Open()
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeArchiveUnreadable, err, "read %s", f.Name)
		}
		var pom embeddedPOM
		err = xml.NewDecoder(r).Decode(&pom)
		r.Close()
		if err != nil {
			// a malformed descriptor only loses the repository hints
			return nil, nil
		}
		var urls []string
		for _, repo := range pom.Repositories {
			if u := strings.TrimSpace(repo.URL); u != "" {
				urls = append(urls, u)
			}
		}
		return urls, nil
	}
	return nil, nil
}
