package archive

import (
	"bytes"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/matzehuels/jarprobe/pkg/errors"
)

// EntrySet is the set of non-directory entry names outside META-INF/.
type EntrySet map[string]struct{}

// Entries reads the entry set of an in-memory jar.
func Entries(data []byte) (EntrySet, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeArchiveUnreadable, err, "read candidate archive")
	}
	set := make(EntrySet, len(zr.File))
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || strings.HasPrefix(f.Name, metaInf) {
			continue
		}
		set[f.Name] = struct{}{}
	}
	return set, nil
}

// Jaccard returns |a ∩ b| / |a ∪ b|. Two empty sets score 0 so that
// archives with no content never count as identical.
func Jaccard(a, b EntrySet) float64 {
	if len(a) > len(b) {
		a, b = b, a
	}
	inter := 0
	for name := range a {
		if _, ok := b[name]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// Identical reports whether the two sets have a Jaccard score of 1.
func Identical(a, b EntrySet) bool {
	return len(a) > 0 && len(a) == len(b) && Jaccard(a, b) == 1
}
