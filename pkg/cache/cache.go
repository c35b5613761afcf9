// Package cache implements the verification cache: a persistent map from
// archive content hash to the coordinate and repository it was verified
// against, or to a private marker.
//
// Entries are insert-only. The first writer for a hash wins for the life
// of the store; later writers for the same hash get stored=false and no
// error. Correcting an entry is an out-of-band edit of the backing store.
//
// Backends are selected by [Open] from a DSN:
//
//	file:///var/cache/jarprobe  (or a plain path)  FileStore
//	postgres://user@host/db                         PostgresStore
//	redis://host:6379/0                             RedisStore
//	mongodb://host:27017/jarprobe                   MongoStore
//	null:                                           NullStore
//
// Every backend checks its schema on open: a missing schema is created, a
// different one fails with ErrCodeSchemaMismatch.
package cache

import (
	"context"
	"encoding/json"
	"net/url"
	"slices"
	"strings"

	"github.com/matzehuels/jarprobe/pkg/errors"
	"github.com/matzehuels/jarprobe/pkg/gav"
	"github.com/matzehuels/jarprobe/pkg/observability"
)

// Entry is what the cache remembers about one archive.
type Entry struct {
	Coordinate gav.Coordinate `json:"coordinate"`
	Repository string         `json:"repository"`
	// Private marks an archive a human classified as private content.
	Private bool `json:"private"`
}

// PrivateEntry returns the private marker for an archive whose declared
// coordinate was c.
func PrivateEntry(c gav.Coordinate) Entry {
	return Entry{Coordinate: c, Private: true}
}

// Validate rejects entries that would poison the cache: public entries
// need a complete coordinate and a repository.
func (e Entry) Validate() error {
	if e.Private {
		return nil
	}
	if !e.Coordinate.Complete() {
		return errors.New(errors.ErrCodeInvalidInput, "cache entry coordinate %q is incomplete", e.Coordinate)
	}
	if e.Repository == "" {
		return errors.New(errors.ErrCodeInvalidInput, "cache entry for %s has no repository", e.Coordinate)
	}
	return nil
}

// Store is the verification cache contract.
type Store interface {
	// Get returns the entry for hash, if any.
	Get(ctx context.Context, hash string) (Entry, bool, error)
	// Put inserts e for hash unless an entry exists. stored reports
	// whether this call wrote it.
	Put(ctx context.Context, hash string, e Entry) (stored bool, err error)
	// Close releases the backend.
	Close() error
}

// SchemaVersion is bumped whenever the stored layout changes.
const SchemaVersion = 1

// Schema is the persisted description of the entry layout.
type Schema struct {
	Version int      `json:"version" bson:"version"`
	Fields  []string `json:"fields" bson:"fields"`
}

// ExpectedSchema is the layout this build reads and writes.
var ExpectedSchema = Schema{
	Version: SchemaVersion,
	Fields:  []string{"hash", "group_id", "artifact_id", "version", "repository", "private"},
}

// Equal reports whether two schemas describe the same layout.
func (s Schema) Equal(o Schema) bool {
	return s.Version == o.Version && slices.Equal(s.Fields, o.Fields)
}

func schemaMismatch(backend string, found any) error {
	want, _ := json.Marshal(ExpectedSchema)
	got, _ := json.Marshal(found)
	return errors.New(errors.ErrCodeSchemaMismatch,
		"%s cache schema %s does not match expected %s", backend, got, want)
}

// Open connects to the backend named by dsn and checks its schema.
func Open(ctx context.Context, dsn string) (Store, error) {
	if dsn == "" {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "cache DSN is empty")
	}

	scheme := ""
	if u, err := url.Parse(dsn); err == nil {
		scheme = strings.ToLower(u.Scheme)
	}

	var (
		s       Store
		backend string
		err     error
	)
	switch scheme {
	case "null":
		return NewNullStore(), nil
	case "", "file":
		backend = "file"
		s, err = NewFileStore(strings.TrimPrefix(dsn, "file://"))
	case "postgres", "postgresql":
		backend = "postgres"
		s, err = NewPostgresStore(ctx, dsn)
	case "redis", "rediss":
		backend = "redis"
		s, err = NewRedisStore(ctx, dsn)
	case "mongodb", "mongodb+srv":
		backend = "mongo"
		s, err = NewMongoStore(ctx, dsn)
	default:
		return nil, errors.New(errors.ErrCodeInvalidConfig, "unsupported cache scheme %q", scheme)
	}
	if err != nil {
		return nil, err
	}
	return Instrument(s, backend), nil
}

// Instrument reports every lookup and write of s to the cache hooks.
func Instrument(s Store, backend string) Store {
	return &instrumented{Store: s, backend: backend}
}

type instrumented struct {
	Store
	backend string
}

func (i *instrumented) Get(ctx context.Context, hash string) (Entry, bool, error) {
	e, ok, err := i.Store.Get(ctx, hash)
	if err == nil {
		if ok {
			observability.Cache().OnCacheHit(ctx, i.backend)
		} else {
			observability.Cache().OnCacheMiss(ctx, i.backend)
		}
	}
	return e, ok, err
}

func (i *instrumented) Put(ctx context.Context, hash string, e Entry) (bool, error) {
	stored, err := i.Store.Put(ctx, hash, e)
	if err == nil {
		observability.Cache().OnCacheSet(ctx, i.backend, stored)
	}
	return stored, err
}
