package pipeline

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/jarprobe/pkg/box"
	"github.com/matzehuels/jarprobe/pkg/cache"
	"github.com/matzehuels/jarprobe/pkg/dependency"
	"github.com/matzehuels/jarprobe/pkg/escalate"
	"github.com/matzehuels/jarprobe/pkg/observability"
	"github.com/matzehuels/jarprobe/pkg/resolve"
)

// Dispositions reported to observability hooks.
const (
	DispositionPublic  = "public"
	DispositionPrivate = "private"
	DispositionDropped = "dropped"
)

// Runner executes one resolution job. A Runner is single-use: call
// [Runner.Run] once.
type Runner struct {
	opts    Options
	logger  *log.Logger
	console *console

	mu          sync.Mutex
	public      map[string]*dependency.Record
	private     map[string]*dependency.Record
	dropped     map[string]*dependency.Record
	escalated   map[string]struct{}
	escalations int
}

// NewRunner validates opts and returns a Runner.
func NewRunner(opts Options) (*Runner, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	return &Runner{
		opts:      opts,
		logger:    opts.Logger.With("run", opts.RunID),
		console:   newConsole(),
		public:    make(map[string]*dependency.Record),
		private:   make(map[string]*dependency.Record),
		dropped:   make(map[string]*dependency.Record),
		escalated: make(map[string]struct{}),
	}, nil
}

// Run settles every record. Records with the same content hash are one
// dependency. The first fatal error stops all workers and is returned.
func (r *Runner) Run(ctx context.Context, recs []*dependency.Record) (*Result, error) {
	start := time.Now()
	b := box.New(recs...)
	total := b.Stats().Total
	r.logger.Info("resolving", "jars", len(recs), "unique", total, "workers", r.opts.Workers)

	g, gctx := errgroup.WithContext(ctx)
	for range r.opts.Workers {
		g.Go(func() error { return r.resolveWorker(gctx, b) })
	}
	g.Go(func() error { return r.escalationWorker(gctx, b) })
	g.Go(func() error { return r.statusWorker(gctx, b) })

	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := r.result()
	res.Stats.Records = total
	res.Stats.Duration = time.Since(start)
	r.logger.Info("resolved",
		"public", len(res.Public),
		"private", len(res.Private),
		"dropped", len(res.Dropped),
		"escalations", res.Stats.Escalations,
		"duration", res.Stats.Duration.Round(time.Millisecond))
	return res, nil
}

// =============================================================================
// Workers
// =============================================================================

func (r *Runner) resolveWorker(ctx context.Context, b *box.Box) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if b.IsDone() {
			return nil
		}
		rec, ok := b.TakeProcessing()
		if !ok {
			if err := sleep(ctx, r.opts.PollInterval); err != nil {
				return err
			}
			continue
		}
		if err := r.resolveOne(ctx, b, rec); err != nil {
			return err
		}
		if err := b.Settle(rec); err != nil {
			return err
		}
	}
}

func (r *Runner) resolveOne(ctx context.Context, b *box.Box, rec *dependency.Record) error {
	if !rec.HasClasses() {
		r.logger.Debug("no class entries, dropped", "jar", rec.Name())
		r.settle(ctx, DispositionDropped, rec)
		return nil
	}

	// A record that already went through the chain and came back after a
	// prefix answer is classified by the prefix lists alone.
	if r.wasEscalated(rec) {
		if settled, err := r.settleByPrefix(ctx, rec); err != nil || settled {
			return err
		}
	}

	outcome, err := r.opts.Pipeline.Check(ctx, rec)
	if err != nil {
		return fmt.Errorf("%s: %w", rec.Name(), err)
	}
	r.logger.Debug("checked", "jar", rec.Name(), "outcome", outcome)

	switch outcome {
	case resolve.OutcomeVerified, resolve.OutcomeSynthetic:
		r.settle(ctx, DispositionPublic, rec)
	case resolve.OutcomeForcedPrivate, resolve.OutcomeCachedPrivate:
		return r.settlePrivate(ctx, rec)
	default:
		r.mu.Lock()
		r.escalated[rec.Hash] = struct{}{}
		r.mu.Unlock()
		b.EnqueueEscalation(rec)
	}
	return nil
}

func (r *Runner) escalationWorker(ctx context.Context, b *box.Box) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if b.IsDone() {
			return nil
		}
		rec, ok := b.TakeEscalation()
		if !ok {
			if err := sleep(ctx, r.opts.PollInterval); err != nil {
				return err
			}
			continue
		}

		settled, err := r.settleByPrefix(ctx, rec)
		if err != nil {
			return err
		}
		if !settled {
			if err := r.escalate(ctx, b, rec); err != nil {
				return err
			}
		}
		if err := b.Settle(rec); err != nil {
			return err
		}
	}
}

// escalate asks a human about rec and applies the answer. It holds the
// console for the whole exchange.
func (r *Runner) escalate(ctx context.Context, b *box.Box, rec *dependency.Record) error {
	r.console.acquire()
	defer r.console.release()

	cmd, err := r.ask(ctx, rec)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.escalations++
	r.mu.Unlock()
	observability.Pipeline().OnEscalation(ctx, cmd.Action.String())
	r.logger.Debug("escalation", "jar", rec.Name(), "command", cmd.Action, "arg", cmd.Arg)

	switch cmd.Action {
	case escalate.ActionPublic:
		if err := rec.Verify(ctx, rec.Declared.WithGroup(dependency.SyntheticGroup), ""); err != nil {
			return err
		}
		r.settle(ctx, DispositionPublic, rec)

	case escalate.ActionPrivate:
		if err := r.settlePrivate(ctx, rec); err != nil {
			return err
		}
		if _, err := r.opts.Cache.Put(ctx, rec.Hash, cache.PrivateEntry(rec.Declared)); err != nil {
			return err
		}

	case escalate.ActionAddRepository:
		if r.opts.Liveness.IsLive(ctx, cmd.Arg) {
			if r.opts.Repositories.Add(cmd.Arg) {
				r.logger.Info("added repository", "repo", cmd.Arg)
			}
		} else {
			r.opts.Escalator.Notify("%s is not reachable, not added", cmd.Arg)
		}
		r.retry(b, rec)

	case escalate.ActionPrivatePrefix:
		r.opts.PrivatePrefixes.Add(cmd.Arg)
		b.EnqueueEscalation(rec)

	case escalate.ActionPublicPrefix:
		r.opts.PublicPrefixes.Add(cmd.Arg)
		r.retry(b, rec)
	}
	return nil
}

// retry sends rec and every escalated record back through the chain.
func (r *Runner) retry(b *box.Box, rec *dependency.Record) {
	n := b.DrainEscalationIntoProcessing()
	b.EnqueueProcessing(rec)
	r.logger.Debug("retrying escalated jars", "count", n+1)
}

type answer struct {
	cmd escalate.Command
	err error
}

// ask runs the blocking prompt so that a fatal error elsewhere is not
// stuck behind a read from the terminal.
func (r *Runner) ask(ctx context.Context, rec *dependency.Record) (escalate.Command, error) {
	ch := make(chan answer, 1)
	go func() {
		cmd, err := r.opts.Escalator.Ask(ctx, rec)
		ch <- answer{cmd, err}
	}()
	select {
	case <-ctx.Done():
		return escalate.Command{}, ctx.Err()
	case a := <-ch:
		return a.cmd, a.err
	}
}

func (r *Runner) statusWorker(ctx context.Context, b *box.Box) error {
	ticker := time.NewTicker(r.opts.StatusInterval)
	defer ticker.Stop()

	printed := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if b.IsDone() {
			return nil
		}
		st := b.Stats()
		if st.Settled-printed < r.opts.StatusStep || !r.console.tryAcquire() {
			continue
		}
		printed = st.Settled
		fmt.Fprintf(r.opts.Status, "%d/%d\n", st.Settled, st.Total)
		r.console.release()
	}
}

// =============================================================================
// Settlement
// =============================================================================

func (r *Runner) wasEscalated(rec *dependency.Record) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.escalated[rec.Hash]
	return ok
}

// settleByPrefix settles rec from the prefix lists without any network
// access. Private prefixes win over public ones.
func (r *Runner) settleByPrefix(ctx context.Context, rec *dependency.Record) (bool, error) {
	if prefix, ok := r.opts.PrivatePrefixes.Match(rec.RepresentativePath); ok {
		r.logger.Debug("private prefix", "jar", rec.Name(), "prefix", prefix)
		return true, r.settlePrivate(ctx, rec)
	}
	if prefix, ok := r.opts.PublicPrefixes.Match(rec.RepresentativePath); ok {
		r.logger.Debug("public prefix", "jar", rec.Name(), "prefix", prefix)
		if err := rec.Verify(ctx, rec.Declared.WithGroup(dependency.SyntheticGroup), ""); err != nil {
			return true, err
		}
		r.settle(ctx, DispositionPublic, rec)
		return true, nil
	}
	return false, nil
}

func (r *Runner) settlePrivate(ctx context.Context, rec *dependency.Record) error {
	if err := rec.Verify(ctx, rec.Declared.WithGroup(dependency.SyntheticGroup), ""); err != nil {
		return err
	}
	r.settle(ctx, DispositionPrivate, rec)
	return nil
}

func (r *Runner) settle(ctx context.Context, disposition string, rec *dependency.Record) {
	r.mu.Lock()
	switch disposition {
	case DispositionPublic:
		r.public[rec.Hash] = rec
	case DispositionPrivate:
		r.private[rec.Hash] = rec
	case DispositionDropped:
		r.dropped[rec.Hash] = rec
	}
	r.mu.Unlock()
	observability.Pipeline().OnSettle(ctx, disposition)
}

func (r *Runner) result() *Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return &Result{
		RunID:   r.opts.RunID,
		Public:  sorted(r.public),
		Private: sorted(r.private),
		Dropped: sorted(r.dropped),
		Stats:   Stats{Escalations: r.escalations},
	}
}

func sorted(m map[string]*dependency.Record) []*dependency.Record {
	out := make([]*dependency.Record, 0, len(m))
	for _, rec := range m {
		out = append(out, rec)
	}
	slices.SortFunc(out, func(a, b *dependency.Record) int {
		if c := strings.Compare(a.Name(), b.Name()); c != 0 {
			return c
		}
		return strings.Compare(a.Hash, b.Hash)
	})
	return out
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
