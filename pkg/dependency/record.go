// Package dependency models one embedded library archive under
// evaluation and its verification state.
package dependency

import (
	"context"
	"io"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/jarprobe/pkg/archive"
	"github.com/matzehuels/jarprobe/pkg/cache"
	"github.com/matzehuels/jarprobe/pkg/errors"
	"github.com/matzehuels/jarprobe/pkg/gav"
)

// SyntheticGroup is the group given to archives that are kept as local
// content instead of being fetched from a repository.
const SyntheticGroup = "jarprobe.local"

// Checker decides whether a coordinate can be resolved against a
// repository. Any resolution failure is reported as false with a nil
// error; the error return is reserved for cancellation.
type Checker interface {
	Resolvable(ctx context.Context, c gav.Coordinate, repo string) (bool, error)
}

// Installer registers an archive as local installable content.
type Installer interface {
	Install(ctx context.Context, r *Record) error
}

// Options are the collaborators a Record reports to.
type Options struct {
	Checker   Checker
	Installer Installer
	Cache     cache.Store
	Logger    *log.Logger
}

func (o *Options) setDefaults() {
	if o.Cache == nil {
		o.Cache = cache.NewNullStore()
	}
	if o.Installer == nil {
		o.Installer = NewRecordingInstaller()
	}
	if o.Logger == nil {
		o.Logger = log.New(io.Discard)
	}
}

// Resolution is a confirmed coordinate and the repository it was
// confirmed against. An empty Repository marks a synthesized identity.
type Resolution struct {
	Coordinate gav.Coordinate
	Repository string
}

// Synthetic reports whether the resolution was not fetched from any
// repository.
func (r Resolution) Synthetic() bool { return r.Repository == "" }

// Record is one library archive. Hash, Path, Declared, Entries and
// RepresentativePath are fixed at construction; the verification state
// is set at most once.
type Record struct {
	Hash               string
	Path               string
	Declared           gav.Coordinate
	RepresentativePath string
	BytecodeMajor      int
	// Entries is the non-metadata entry set used for similarity checks.
	Entries archive.EntrySet

	opts Options

	mu         sync.Mutex
	verified   bool
	resolution Resolution
	installed  bool
	assigned   bool
	resolved   bool
	resolvable bool
}

// New identifies and inspects the archive at path. Any read failure is
// fatal (ErrCodeArchiveUnreadable).
func New(path string, opts Options) (*Record, error) {
	hash, err := archive.Identify(path)
	if err != nil {
		return nil, err
	}
	info, err := archive.Inspect(path)
	if err != nil {
		return nil, err
	}
	return FromInfo(hash, path, info, opts), nil
}

// FromInfo builds a record from an already inspected archive.
func FromInfo(hash, path string, info *archive.Info, opts Options) *Record {
	opts.setDefaults()
	return &Record{
		Hash:               hash,
		Path:               path,
		Declared:           info.Declared,
		RepresentativePath: info.RepresentativePath,
		BytecodeMajor:      info.BytecodeMajor,
		Entries:            info.Entries,
		opts:               opts,
	}
}

// Name returns the archive file name.
func (r *Record) Name() string { return filepath.Base(r.Path) }

// HasDeclared reports whether a complete declared coordinate exists.
func (r *Record) HasDeclared() bool { return r.Declared.Complete() }

// HasClasses reports whether the archive holds any class entry.
func (r *Record) HasClasses() bool { return r.RepresentativePath != "" }

// Verified reports whether the resolution is frozen.
func (r *Record) Verified() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.verified
}

// Resolved returns the frozen resolution; ok is false before Verify.
func (r *Record) Resolved() (res Resolution, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resolution, r.verified
}

// Installed reports whether the record was registered as local content.
func (r *Record) Installed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.installed
}

// Verify freezes the resolution to (c, repo) unless the record is
// already verified, in which case it does nothing. A resolution that
// cannot be resolved against repo (always the case for repo == "") gets
// the synthetic group, an empty repository and is handed to the
// installer; a resolvable one is written to the verification cache.
func (r *Record) Verify(ctx context.Context, c gav.Coordinate, repo string) error {
	r.mu.Lock()
	if r.verified {
		r.mu.Unlock()
		return nil
	}
	r.verified = true
	r.assigned = true
	r.resolution = Resolution{Coordinate: c, Repository: repo}

	ok, err := r.isResolvableLocked(ctx)
	if err == nil && !ok {
		r.resolution = Resolution{Coordinate: c.WithGroup(SyntheticGroup)}
		r.installed = true
	}
	res := r.resolution
	r.mu.Unlock()

	if err != nil {
		return err
	}
	if !ok {
		r.opts.Logger.Debug("kept as local content", "jar", r.Name(), "coordinate", res.Coordinate)
		return r.opts.Installer.Install(ctx, r)
	}

	stored, err := r.opts.Cache.Put(ctx, r.Hash, cache.Entry{Coordinate: c, Repository: repo})
	if err != nil {
		return err
	}
	r.opts.Logger.Debug("verified", "jar", r.Name(), "coordinate", c, "repo", repo, "cached", stored)
	return nil
}

// VerifyCached freezes the resolution from a cache hit. Resolvability
// was established when the entry was written, so no check, cache write
// or network access happens.
func (r *Record) VerifyCached(e cache.Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.verified {
		return
	}
	r.verified = true
	r.assigned = true
	r.resolution = Resolution{Coordinate: e.Coordinate, Repository: e.Repository}
	r.resolved = true
	r.resolvable = e.Repository != ""
}

// IsResolvable reports whether the frozen resolution can be resolved
// against its repository. The answer is computed once. It fails with
// ErrCodeNoRepository when the record was never verified.
func (r *Record) IsResolvable(ctx context.Context) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.isResolvableLocked(ctx)
}

func (r *Record) isResolvableLocked(ctx context.Context) (bool, error) {
	if r.resolved {
		return r.resolvable, nil
	}
	if !r.assigned {
		return false, errors.New(errors.ErrCodeNoRepository, "%s has no repository assigned", r.Name())
	}
	if r.resolution.Repository == "" || r.opts.Checker == nil {
		r.resolved = true
		r.resolvable = false
		return false, nil
	}
	ok, err := r.opts.Checker.Resolvable(ctx, r.resolution.Coordinate, r.resolution.Repository)
	if err != nil {
		return false, err
	}
	r.resolved = true
	r.resolvable = ok
	return ok, nil
}
