// Package reconcile rebuilds approximate counters from store aggregates. An
// external scheduler runs it periodically; increments that land between a
// class's aggregate query and its reset are lost.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/oriys/contentcache/internal/content"
	"github.com/oriys/contentcache/internal/logging"
	"github.com/oriys/contentcache/internal/metrics"
	"github.com/oriys/contentcache/internal/observability"
	"github.com/oriys/contentcache/internal/store"
	"golang.org/x/sync/errgroup"
)

// DefaultWorkers bounds concurrent aggregate queries.
const DefaultWorkers = 4

// ErrUnknownClass is returned when a requested class does not exist.
var ErrUnknownClass = errors.New("reconcile: unknown counter class")

// Result reports one class of a run.
type Result struct {
	Class    string
	Key      string
	Members  int
	Duration time.Duration
	Err      error
}

// Report is the outcome of one run.
type Report struct {
	RunID   string
	Results []Result
}

// Failed lists the classes that did not reconcile.
func (r *Report) Failed() []string {
	var out []string
	for _, res := range r.Results {
		if res.Err != nil {
			out = append(out, res.Class)
		}
	}
	return out
}

// Job reconciles a fixed set of counter classes.
type Job struct {
	store    store.Store
	bindings []content.CounterBinding
	workers  int
	logger   *slog.Logger
}

// New builds a job over every reconcilable counter. workers <= 0 uses
// DefaultWorkers.
func New(st store.Store, counters content.Counters, workers int) *Job {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Job{
		store:    st,
		bindings: counters.Reconcilable(),
		workers:  workers,
		logger:   logging.Op(),
	}
}

// Classes returns the names accepted by Run.
func (j *Job) Classes() []string {
	names := make([]string, len(j.bindings))
	for i, b := range j.bindings {
		names[i] = b.Aggregate.Name
	}
	return names
}

// Run reconciles the named classes, or all of them when none are named.
// A failing class does not stop the others; the returned error joins every
// class failure.
func (j *Job) Run(ctx context.Context, only ...string) (*Report, error) {
	selected, err := j.selectClasses(only)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	ctx, span := observability.StartSpan(ctx, "reconcile.run", observability.AttrRunID.String(runID))
	defer span.End()
	log := j.logger.With("run_id", runID)
	log.Info("reconcile started", "classes", len(selected), "workers", j.workers)

	report := &Report{RunID: runID, Results: make([]Result, len(selected))}
	var g errgroup.Group
	g.SetLimit(j.workers)
	for i, b := range selected {
		g.Go(func() error {
			report.Results[i] = j.reconcile(ctx, runID, b)
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, res := range report.Results {
		if res.Err != nil {
			log.Error("reconcile class failed", "class", res.Class, "key", res.Key, "error", res.Err)
			errs = append(errs, fmt.Errorf("%s: %w", res.Class, res.Err))
			continue
		}
		log.Info("reconcile class done", "class", res.Class, "key", res.Key,
			"members", res.Members, "duration_ms", res.Duration.Milliseconds())
	}
	if err := errors.Join(errs...); err != nil {
		observability.SetSpanError(span, err)
		return report, err
	}
	observability.SetSpanOK(span)
	return report, nil
}

func (j *Job) selectClasses(only []string) ([]content.CounterBinding, error) {
	if len(only) == 0 {
		return j.bindings, nil
	}
	var out []content.CounterBinding
	for _, name := range only {
		i := slices.IndexFunc(j.bindings, func(b content.CounterBinding) bool {
			return b.Aggregate.Name == name
		})
		if i < 0 {
			return nil, fmt.Errorf("%w: %q", ErrUnknownClass, name)
		}
		out = append(out, j.bindings[i])
	}
	return out, nil
}

func (j *Job) reconcile(ctx context.Context, runID string, b content.CounterBinding) Result {
	res := Result{Class: b.Aggregate.Name, Key: b.Counter.Key()}
	ctx, span := observability.StartSpan(ctx, "reconcile.class",
		observability.AttrRunID.String(runID),
		observability.AttrCounter.String(res.Key),
	)
	defer span.End()

	start := time.Now()
	pairs, err := j.store.AggregateGroupCount(ctx, b.Aggregate)
	if err == nil {
		res.Members = len(pairs)
		err = b.Counter.Reset(ctx, pairs)
	}
	res.Duration = time.Since(start)
	res.Err = err
	metrics.RecordReconcile(res.Class, res.Duration, res.Members, err)

	if err != nil {
		observability.SetSpanError(span, err)
	} else {
		span.SetAttributes(observability.AttrCount.Int(res.Members))
	}
	return res
}
