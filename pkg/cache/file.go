package cache

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/matzehuels/jarprobe/pkg/errors"
)

const schemaFile = "schema.json"

// FileStore keeps one JSON file per hash under dir, sharded by the first
// two hex characters. Entries are published with a hard link, so an
// entry is either absent or complete and the first link wins.
type FileStore struct {
	dir string
}

// NewFileStore opens (creating if needed) a file store rooted at dir.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "file cache directory is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "create cache directory %s", dir)
	}
	s := &FileStore{dir: dir}
	if err := s.checkSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

// Dir returns the root directory.
func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) checkSchema() error {
	path := filepath.Join(s.dir, schemaFile)
	data, err := json.MarshalIndent(ExpectedSchema, "", "  ")
	if err != nil {
		return err
	}
	if _, err := s.publish(path, data); err != nil {
		return err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var found Schema
	if err := json.Unmarshal(raw, &found); err != nil {
		return errors.Wrap(errors.ErrCodeSchemaMismatch, err, "unreadable schema in %s", path)
	}
	if !found.Equal(ExpectedSchema) {
		return schemaMismatch("file", found)
	}
	return nil
}

// Get retrieves the entry for hash.
func (s *FileStore) Get(_ context.Context, hash string) (Entry, bool, error) {
	path, err := s.path(hash)
	if err != nil {
		return Entry{}, false, err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return Entry{}, false, errors.Wrap(errors.ErrCodeInternal, err, "corrupt cache entry %s", path)
	}
	return e, true, nil
}

// Put stores e unless an entry for hash exists.
func (s *FileStore) Put(_ context.Context, hash string, e Entry) (bool, error) {
	if err := e.Validate(); err != nil {
		return false, err
	}
	path, err := s.path(hash)
	if err != nil {
		return false, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, err
	}
	data, err := json.Marshal(e)
	if err != nil {
		return false, err
	}
	return s.publish(path, data)
}

// publish writes data to a temporary file and links it to path. It
// reports false when path already existed.
func (s *FileStore) publish(path string, data []byte) (bool, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".entry-*")
	if err != nil {
		return false, err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return false, err
	}
	if err := tmp.Close(); err != nil {
		return false, err
	}

	if err := os.Link(tmp.Name(), path); err != nil {
		if os.IsExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Close does nothing for the file store.
func (s *FileStore) Close() error {
	return nil
}

// path converts a hash to a file path.
// Uses the first two characters as a subdirectory for distribution.
func (s *FileStore) path(hash string) (string, error) {
	if len(hash) < 3 {
		return "", errors.New(errors.ErrCodeInvalidInput, "hash %q too short", hash)
	}
	for _, r := range hash {
		if !strings.ContainsRune("0123456789abcdef", r) {
			return "", errors.New(errors.ErrCodeInvalidInput, "hash %q is not lowercase hex", hash)
		}
	}
	return filepath.Join(s.dir, hash[:2], hash[2:]+".json"), nil
}

// Ensure FileStore implements Store.
var _ Store = (*FileStore)(nil)
