// Package resolve decides, for one library archive, which published
// artifact it is.
//
// [Pipeline.Check] runs an ordered chain of strategies and stops at the
// first that verifies the record:
//
//  1. private prefix match: forced private, no network
//  2. verification cache hit for the content hash
//  3. for each known repository: published SHA-1 sidecar, then a
//     download compared by entry set
//  4. central search by content hash, confirmed by sidecar from the
//     default repository
//  5. central search by artifact and version, confirmed by entry set
//  6. public prefix match: synthesized local identity
//
// A record no strategy settles comes back as [OutcomeUnsettled] and is
// meant for a human. Non-200 answers never leave the strategy that saw
// them; a search index that cannot be reached is fatal.
package resolve

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/matzehuels/jarprobe/pkg/archive"
	"github.com/matzehuels/jarprobe/pkg/cache"
	"github.com/matzehuels/jarprobe/pkg/catalog"
	"github.com/matzehuels/jarprobe/pkg/dependency"
	"github.com/matzehuels/jarprobe/pkg/errors"
	"github.com/matzehuels/jarprobe/pkg/gav"
	"github.com/matzehuels/jarprobe/pkg/maven"
	"github.com/matzehuels/jarprobe/pkg/observability"
)

// Outcome is what one pass of the pipeline decided.
type Outcome int

const (
	// OutcomeUnsettled means no strategy matched.
	OutcomeUnsettled Outcome = iota
	// OutcomeVerified means the record was verified against a
	// repository or from the cache.
	OutcomeVerified
	// OutcomeForcedPrivate means a private prefix matched.
	OutcomeForcedPrivate
	// OutcomeCachedPrivate means the cache holds a private marker.
	OutcomeCachedPrivate
	// OutcomeSynthetic means a public prefix matched and a local
	// identity was synthesized.
	OutcomeSynthetic
)

func (o Outcome) String() string {
	switch o {
	case OutcomeUnsettled:
		return "unsettled"
	case OutcomeVerified:
		return "verified"
	case OutcomeForcedPrivate:
		return "forced-private"
	case OutcomeCachedPrivate:
		return "cached-private"
	case OutcomeSynthetic:
		return "synthetic"
	}
	return "unknown"
}

// Strategy names reported to observability hooks.
const (
	StrategyCache      = "cache"
	StrategySidecar    = "sidecar"
	StrategyDownload   = "download"
	StrategyHashSearch = "hash-search"
	StrategyAVSearch   = "av-search"
)

// Repository fetches checksums and entry sets from repositories.
// [maven.Client] implements it.
type Repository interface {
	Sidecar(ctx context.Context, repo string, c gav.Coordinate) (string, bool, error)
	Entries(ctx context.Context, url string) (archive.EntrySet, bool, error)
}

// Index is the central search index. [maven.Search] implements it.
type Index interface {
	ByHash(ctx context.Context, sha1 string) ([]gav.Coordinate, error)
	ByArtifactVersion(ctx context.Context, artifact, version string) ([]gav.Coordinate, error)
}

// Liveness answers whether a URL is reachable through the egress pool.
type Liveness interface {
	IsLive(ctx context.Context, url string) bool
}

// DefaultCandidateCache is the number of downloaded entry sets kept.
const DefaultCandidateCache = 1024

// Config wires a Pipeline.
type Config struct {
	Repositories    *catalog.Repositories
	PrivatePrefixes *catalog.Prefixes
	PublicPrefixes  *catalog.Prefixes

	// DefaultRepository confirms search index candidates.
	DefaultRepository string

	Repository Repository
	Index      Index
	Liveness   Liveness
	Cache      cache.Store

	// CandidateCache bounds the memo of downloaded entry sets.
	CandidateCache int
	Logger         *log.Logger
}

// Pipeline runs the strategy chain. It is safe for concurrent use.
type Pipeline struct {
	cfg        Config
	candidates *lru.Cache[string, archive.EntrySet]
	logger     *log.Logger
}

// New returns a Pipeline for cfg.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Repositories == nil {
		cfg.Repositories = catalog.NewRepositories()
	}
	if cfg.PrivatePrefixes == nil {
		cfg.PrivatePrefixes = catalog.NewPrefixes()
	}
	if cfg.PublicPrefixes == nil {
		cfg.PublicPrefixes = catalog.NewPrefixes()
	}
	if cfg.DefaultRepository == "" {
		cfg.DefaultRepository = maven.DefaultRepository
	}
	if cfg.Cache == nil {
		cfg.Cache = cache.NewNullStore()
	}
	if cfg.CandidateCache <= 0 {
		cfg.CandidateCache = DefaultCandidateCache
	}
	if cfg.Repository == nil || cfg.Index == nil || cfg.Liveness == nil {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "pipeline needs a repository client, a search index and a liveness checker")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	candidates, err := lru.New[string, archive.EntrySet](cfg.CandidateCache)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "candidate cache")
	}
	return &Pipeline{cfg: cfg, candidates: candidates, logger: logger}, nil
}

// Check runs the strategy chain for rec. The returned error is fatal for
// the run; every soft failure has already been absorbed.
func (p *Pipeline) Check(ctx context.Context, rec *dependency.Record) (Outcome, error) {
	if prefix, ok := p.cfg.PrivatePrefixes.Match(rec.RepresentativePath); ok {
		p.logger.Debug("private prefix", "jar", rec.Name(), "prefix", prefix)
		return OutcomeForcedPrivate, nil
	}

	if rec.HasDeclared() {
		outcome, err := p.fromCache(ctx, rec)
		if err != nil || outcome != OutcomeUnsettled {
			return outcome, err
		}
		if ok, err := p.fromRepositories(ctx, rec); err != nil || ok {
			return OutcomeVerified, err
		}
	}

	if ok, err := p.fromHashSearch(ctx, rec); err != nil || ok {
		return OutcomeVerified, err
	}
	if ok, err := p.fromArtifactSearch(ctx, rec); err != nil || ok {
		return OutcomeVerified, err
	}

	if prefix, ok := p.cfg.PublicPrefixes.Match(rec.RepresentativePath); ok {
		p.logger.Debug("public prefix", "jar", rec.Name(), "prefix", prefix)
		if err := rec.Verify(ctx, rec.Declared.WithGroup(dependency.SyntheticGroup), ""); err != nil {
			return OutcomeUnsettled, err
		}
		return OutcomeSynthetic, nil
	}
	return OutcomeUnsettled, nil
}

func (p *Pipeline) fromCache(ctx context.Context, rec *dependency.Record) (Outcome, error) {
	start := time.Now()
	entry, hit, err := p.cfg.Cache.Get(ctx, rec.Hash)
	observability.Pipeline().OnStrategy(ctx, StrategyCache, hit, time.Since(start))
	if err != nil {
		return OutcomeUnsettled, err
	}
	if !hit {
		return OutcomeUnsettled, nil
	}
	if entry.Private {
		return OutcomeCachedPrivate, nil
	}

	rec.VerifyCached(entry)
	repo := entry.Repository
	if !p.cfg.Repositories.Contains(repo) && p.cfg.Liveness.IsLive(ctx, repo) {
		if p.cfg.Repositories.Add(repo) {
			p.logger.Info("added repository from cache", "repo", repo)
		}
	}
	return OutcomeVerified, nil
}

func (p *Pipeline) fromRepositories(ctx context.Context, rec *dependency.Record) (bool, error) {
	for _, repo := range p.cfg.Repositories.Snapshot() {
		start := time.Now()
		sum, ok, err := p.cfg.Repository.Sidecar(ctx, repo, rec.Declared)
		if err != nil {
			return false, err
		}
		matched := ok && sum == rec.Hash
		observability.Pipeline().OnStrategy(ctx, StrategySidecar, matched, time.Since(start))
		if matched {
			return true, rec.Verify(ctx, rec.Declared, repo)
		}

		start = time.Now()
		matched, err = p.sameEntries(ctx, rec, gav.URL(repo, rec.Declared.JarPath()))
		observability.Pipeline().OnStrategy(ctx, StrategyDownload, matched, time.Since(start))
		if err != nil {
			return false, err
		}
		if matched {
			return true, rec.Verify(ctx, rec.Declared, repo)
		}
	}
	return false, nil
}

func (p *Pipeline) fromHashSearch(ctx context.Context, rec *dependency.Record) (bool, error) {
	start := time.Now()
	candidates, err := p.cfg.Index.ByHash(ctx, rec.Hash)
	if err != nil {
		return false, err
	}
	repo := p.cfg.DefaultRepository
	for _, c := range candidates {
		sum, ok, err := p.cfg.Repository.Sidecar(ctx, repo, c)
		if err != nil {
			return false, err
		}
		if ok && sum == rec.Hash {
			observability.Pipeline().OnStrategy(ctx, StrategyHashSearch, true, time.Since(start))
			return true, rec.Verify(ctx, c, repo)
		}
	}
	observability.Pipeline().OnStrategy(ctx, StrategyHashSearch, false, time.Since(start))
	return false, nil
}

func (p *Pipeline) fromArtifactSearch(ctx context.Context, rec *dependency.Record) (bool, error) {
	if rec.Declared.Artifact == "" || rec.Declared.Version == "" {
		return false, nil
	}
	start := time.Now()
	candidates, err := p.cfg.Index.ByArtifactVersion(ctx, rec.Declared.Artifact, rec.Declared.Version)
	if err != nil {
		return false, err
	}
	repo := p.cfg.DefaultRepository
	for _, c := range candidates {
		matched, err := p.sameEntries(ctx, rec, gav.URL(repo, c.JarPath()))
		if err != nil {
			return false, err
		}
		if matched {
			observability.Pipeline().OnStrategy(ctx, StrategyAVSearch, true, time.Since(start))
			return true, rec.Verify(ctx, c, repo)
		}
	}
	observability.Pipeline().OnStrategy(ctx, StrategyAVSearch, false, time.Since(start))
	return false, nil
}

// sameEntries downloads the candidate at url (once per run) and reports
// whether its entry set is identical to the record's.
func (p *Pipeline) sameEntries(ctx context.Context, rec *dependency.Record, url string) (bool, error) {
	set, hit := p.candidates.Get(url)
	if !hit {
		var ok bool
		var err error
		set, ok, err = p.cfg.Repository.Entries(ctx, url)
		if err != nil {
			return false, err
		}
		if !ok {
			set = nil
		}
		p.candidates.Add(url, set)
	}
	return archive.Identical(rec.Entries, set), nil
}
