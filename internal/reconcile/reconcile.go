// Package reconcile implements the diff-and-apply engine: it compares the
// compiled desired state against a remote Jenkins server, decides per entity
// whether a create/update is needed, and maintains the fingerprint cache so
// unchanged definitions cost zero remote mutations.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/opencontainers/go-digest"

	"github.com/jfroche/jenkins-job-builder/internal/cache"
	"github.com/jfroche/jenkins-job-builder/internal/entity"
)

// Remote is the consumer-side view of the server facade. *jenkins.Server
// implements it; tests substitute fakes.
type Remote interface {
	ListJobs(ctx context.Context, useCache bool) ([]string, error)
	ListViews(ctx context.Context, useCache bool) ([]string, error)
	Exists(ctx context.Context, name string, kind entity.Kind) (bool, error)
	ContentHash(ctx context.Context, name string, kind entity.Kind) (digest.Digest, error)
	Upsert(ctx context.Context, name string, kind entity.Kind, xml []byte) error
	Delete(ctx context.Context, name string, kind entity.Kind) error
	IsManaged(ctx context.Context, name string, kind entity.Kind) bool
}

// Options controls one reconciliation run.
type Options struct {
	// Force uploads every entity regardless of cache state.
	Force bool

	// Sink, when non-nil, turns the run into a pure render: entities are
	// written to the sink in sorted order and no remote calls or cache
	// mutations happen at all.
	Sink Sink
}

// KindSummary counts outcomes for one entity kind.
type KindSummary struct {
	Created int
	Updated int
	Skipped int
}

// Total returns all entities processed for the kind.
func (k KindSummary) Total() int {
	return k.Created + k.Updated + k.Skipped
}

// Summary is the outcome of one reconciliation run.
type Summary struct {
	Jobs     KindSummary
	Views    KindSummary
	Rendered int
	// StoppedEarly is set when a sink consumer stopped reading (broken
	// pipe); remaining entities were skipped, which is not an error.
	StoppedEarly bool
}

func (s *Summary) String() string {
	if s.Rendered > 0 || s.StoppedEarly {
		return fmt.Sprintf("%d entities rendered", s.Rendered)
	}

	return fmt.Sprintf("jobs: %d created, %d updated, %d unchanged; views: %d created, %d updated, %d unchanged",
		s.Jobs.Created, s.Jobs.Updated, s.Jobs.Skipped,
		s.Views.Created, s.Views.Updated, s.Views.Skipped)
}

// Reconciler orchestrates the per-entity decision loop. It issues at most
// one remote call at a time and never parallelizes across entities.
type Reconciler struct {
	remote Remote
	cache  *cache.Cache
	logger *slog.Logger
}

// New creates a Reconciler. remote and fc may be nil for render-only use.
func New(remote Remote, fc *cache.Cache, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}

	return &Reconciler{
		remote: remote,
		cache:  fc,
		logger: logger,
	}
}

// Reconcile processes the desired set: jobs first, then views, each pass in
// name order. With a sink it degrades to a pure render. Any remote-call
// failure aborts immediately and propagates; the cache keeps whatever
// progress was reached so a re-run resumes where this one stopped.
func (r *Reconciler) Reconcile(ctx context.Context, set *entity.Set, opts Options) (*Summary, error) {
	set.Sort()

	if opts.Sink != nil {
		return r.render(set, opts.Sink)
	}

	summary := &Summary{}

	for _, e := range set.Jobs {
		if err := r.reconcileEntity(ctx, e, opts.Force, &summary.Jobs); err != nil {
			return summary, err
		}
	}

	for _, e := range set.Views {
		if err := r.reconcileEntity(ctx, e, opts.Force, &summary.Views); err != nil {
			return summary, err
		}
	}

	r.logger.Info("reconciliation complete",
		slog.Int("jobs", summary.Jobs.Total()),
		slog.Int("views", summary.Views.Total()),
		slog.Int("updated", summary.Jobs.Created+summary.Jobs.Updated+summary.Views.Created+summary.Views.Updated),
	)

	return summary, nil
}

// reconcileEntity runs the decision state machine for one entity:
//
//	exists && cache miss  -> seed cache with the remote content hash
//	changed || force      -> upsert, record new hash
//	otherwise             -> skip, zero remote mutations
func (r *Reconciler) reconcileEntity(ctx context.Context, e entity.Entity, force bool, ks *KindSummary) error {
	exists, err := r.remote.Exists(ctx, e.Name, e.Kind)
	if err != nil {
		return fmt.Errorf("checking %s %q: %w", e.Kind, e.Name, err)
	}

	// First sight of an entity that already lives on the server: trust the
	// live server as the source of prior state so an unchanged definition
	// does not trigger a redundant upload on a fresh cache.
	if exists && !r.cache.IsCached(e.Name) {
		remoteHash, err := r.remote.ContentHash(ctx, e.Name, e.Kind)
		if err != nil {
			return fmt.Errorf("fingerprinting %s %q: %w", e.Kind, e.Name, err)
		}

		r.cache.Set(e.Name, remoteHash.String())
	}

	local := e.Digest.String()

	if !r.cache.HasChanged(e.Name, local) && !force {
		r.logger.Debug("unchanged", slog.String("kind", e.Kind.String()), slog.String("name", e.Name))
		ks.Skipped++

		return nil
	}

	if err := r.remote.Upsert(ctx, e.Name, e.Kind, e.XML); err != nil {
		return fmt.Errorf("updating %s %q: %w", e.Kind, e.Name, err)
	}

	r.cache.Set(e.Name, local)

	if exists {
		ks.Updated++
	} else {
		ks.Created++
	}

	return nil
}

// render writes all entities to the sink, jobs then views, name-sorted.
// A stopped consumer ends the run cleanly.
func (r *Reconciler) render(set *entity.Set, sink Sink) (*Summary, error) {
	summary := &Summary{}

	for _, e := range append(append([]entity.Entity{}, set.Jobs...), set.Views...) {
		r.logger.Info("rendering", slog.String("kind", e.Kind.Label()), slog.String("name", e.Name))

		stop, err := sink.Write(e)
		if err != nil {
			return summary, err
		}

		if stop {
			r.logger.Debug("output consumer stopped reading, ending render")
			summary.StoppedEarly = true

			return summary, nil
		}

		summary.Rendered++
	}

	return summary, nil
}

// DeleteObsolete removes every managed remote entity whose name is not in
// the keep sets, and returns how many were deleted. Listings are force-
// refreshed first: a destructive sweep must see current remote state, not
// the session's frozen listing. Unmanaged entities are never touched.
func (r *Reconciler) DeleteObsolete(ctx context.Context, keepJobs, keepViews map[string]bool) (int, error) {
	deleted := 0

	jobs, err := r.remote.ListJobs(ctx, false)
	if err != nil {
		return deleted, err
	}

	for _, name := range jobs {
		n, err := r.deleteIfObsolete(ctx, name, entity.KindJob, keepJobs)
		if err != nil {
			return deleted, err
		}

		deleted += n
	}

	views, err := r.remote.ListViews(ctx, false)
	if err != nil {
		return deleted, err
	}

	for _, name := range views {
		n, err := r.deleteIfObsolete(ctx, name, entity.KindView, keepViews)
		if err != nil {
			return deleted, err
		}

		deleted += n
	}

	return deleted, nil
}

func (r *Reconciler) deleteIfObsolete(ctx context.Context, name string, kind entity.Kind, keep map[string]bool) (int, error) {
	if keep[name] {
		return 0, nil
	}

	if !r.remote.IsManaged(ctx, name, kind) {
		r.logger.Debug("ignoring unmanaged entity",
			slog.String("kind", kind.String()), slog.String("name", name))

		return 0, nil
	}

	r.logger.Info("removing obsolete entity",
		slog.String("kind", kind.String()), slog.String("name", name))

	if err := r.DeleteEntity(ctx, name, kind); err != nil {
		return 0, err
	}

	return 1, nil
}

// DeleteEntity removes one entity unconditionally (no managed check) and
// invalidates its cache record, so a reappearing name is never mistaken for
// unchanged.
func (r *Reconciler) DeleteEntity(ctx context.Context, name string, kind entity.Kind) error {
	if err := r.remote.Delete(ctx, name, kind); err != nil {
		return fmt.Errorf("deleting %s %q: %w", kind, name, err)
	}

	if r.cache.IsCached(name) {
		r.cache.Set(name, "")
	}

	return nil
}

// DeleteAll removes every remote entity of the given kind through
// DeleteEntity, returning the count removed.
func (r *Reconciler) DeleteAll(ctx context.Context, kind entity.Kind) (int, error) {
	list := r.remote.ListJobs
	if kind == entity.KindView {
		list = r.remote.ListViews
	}

	names, err := list(ctx, false)
	if err != nil {
		return 0, err
	}

	r.logger.Info("deleting all", slog.String("kind", kind.String()), slog.Int("count", len(names)))

	for i, name := range names {
		if err := r.DeleteEntity(ctx, name, kind); err != nil {
			return i, err
		}
	}

	return len(names), nil
}
