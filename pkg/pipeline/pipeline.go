// Package pipeline runs a whole resolution job over a set of library
// archives.
//
// # Architecture
//
// A [Runner] shares one [box.Box] between three kinds of goroutine:
//
//  1. Resolver workers (Options.Workers of them) take queued records and
//     run the resolution chain on each
//  2. One escalation worker takes records nothing could settle and asks
//     a human
//  3. One status worker prints progress while the console is free
//
// All of them run under an errgroup; the first fatal error cancels the
// others and is returned from [Runner.Run].
//
// # Usage
//
//	runner, err := pipeline.NewRunner(pipeline.Options{
//	    Pipeline:  resolver,
//	    Escalator: escalate.New(os.Stdin, os.Stdout),
//	    Liveness:  pool,
//	    Logger:    logger,
//	})
//	if err != nil {
//	    return err
//	}
//	result, err := runner.Run(ctx, records)
//
// # Settlement
//
// Every record ends in exactly one of three sets: public (verified
// against a repository, or kept public by a human or a public prefix),
// private (private prefix, cached private marker, or a human decision),
// and dropped (no class entries at all).
package pipeline

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/jarprobe/pkg/cache"
	"github.com/matzehuels/jarprobe/pkg/catalog"
	"github.com/matzehuels/jarprobe/pkg/dependency"
	"github.com/matzehuels/jarprobe/pkg/errors"
	"github.com/matzehuels/jarprobe/pkg/escalate"
	"github.com/matzehuels/jarprobe/pkg/resolve"
)

// =============================================================================
// Default Values
// =============================================================================

const (
	// DefaultWorkers is the number of resolver workers.
	DefaultWorkers = 16

	// DefaultPollInterval is how long an idle worker sleeps before it
	// looks at the queue again.
	DefaultPollInterval = 100 * time.Millisecond

	// DefaultStatusInterval is the period of the status worker.
	DefaultStatusInterval = time.Second

	// DefaultStatusStep is the progress needed before another status
	// line is printed.
	DefaultStatusStep = 10
)

// Checker runs the resolution chain for one record.
// [resolve.Pipeline] implements it.
type Checker interface {
	Check(ctx context.Context, rec *dependency.Record) (resolve.Outcome, error)
}

// Asker obtains a human decision for one record.
// [escalate.Escalator] implements it.
type Asker interface {
	Ask(ctx context.Context, rec *dependency.Record) (escalate.Command, error)
	Notify(format string, args ...any)
}

// Options configures a [Runner].
type Options struct {
	Pipeline  Checker
	Escalator Asker
	Liveness  resolve.Liveness

	// Repositories and the prefix lists are shared with the resolution
	// chain; human decisions append to them.
	Repositories    *catalog.Repositories
	PrivatePrefixes *catalog.Prefixes
	PublicPrefixes  *catalog.Prefixes

	// Cache receives private markers for records a human classified.
	Cache cache.Store

	Workers        int
	PollInterval   time.Duration
	StatusInterval time.Duration
	StatusStep     int
	// Status receives progress lines. Nil discards them.
	Status io.Writer

	// RunID tags log lines and the result. A random one is used if empty.
	RunID string

	Logger *log.Logger
}

// ValidateAndSetDefaults checks required collaborators and fills in
// zero values.
func (o *Options) ValidateAndSetDefaults() error {
	if o.Pipeline == nil {
		return errors.New(errors.ErrCodeInvalidConfig, "runner needs a resolution pipeline")
	}
	if o.Escalator == nil {
		return errors.New(errors.ErrCodeInvalidConfig, "runner needs an escalator")
	}
	if o.Liveness == nil {
		return errors.New(errors.ErrCodeInvalidConfig, "runner needs a liveness checker")
	}
	if o.Workers < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "workers must be positive, got %d", o.Workers)
	}
	if o.Workers == 0 {
		o.Workers = DefaultWorkers
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.StatusInterval <= 0 {
		o.StatusInterval = DefaultStatusInterval
	}
	if o.StatusStep <= 0 {
		o.StatusStep = DefaultStatusStep
	}
	if o.Status == nil {
		o.Status = io.Discard
	}
	if o.Repositories == nil {
		o.Repositories = catalog.NewRepositories()
	}
	if o.PrivatePrefixes == nil {
		o.PrivatePrefixes = catalog.NewPrefixes()
	}
	if o.PublicPrefixes == nil {
		o.PublicPrefixes = catalog.NewPrefixes()
	}
	if o.Cache == nil {
		o.Cache = cache.NewNullStore()
	}
	if o.Logger == nil {
		o.Logger = log.New(io.Discard)
	}
	if o.RunID == "" {
		o.RunID = uuid.NewString()
	}
	return nil
}

// Result is the outcome of a run.
type Result struct {
	RunID   string
	Public  []*dependency.Record
	Private []*dependency.Record
	Dropped []*dependency.Record

	Stats Stats
}

// Stats holds run counters.
type Stats struct {
	Records     int
	Escalations int
	Duration    time.Duration
}
