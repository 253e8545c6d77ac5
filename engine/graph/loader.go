package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/formalab/cadgraph/pkg/fn"
	"github.com/formalab/cadgraph/pkg/resilience"
)

// BatchError records one batch that could not be committed. The run keeps
// going; the pipeline reports these at the end.
type BatchError struct {
	Seq     int
	NodeIDs []string
	Err     error
}

func (e BatchError) Error() string {
	return fmt.Sprintf("batch %d (%d nodes): %v", e.Seq, len(e.NodeIDs), e.Err)
}

func (e BatchError) Unwrap() error { return e.Err }

// LoaderOpts configures the batch loader.
type LoaderOpts struct {
	// Retry governs per-batch commit attempts against transient failures.
	Retry fn.RetryOpts
	// CommitTimeout bounds a single commit attempt.
	CommitTimeout time.Duration
	// CommitRate throttles commits; nil means unthrottled.
	CommitRate *rate.Limiter
	// Breaker trips the run when the database stays unreachable.
	Breaker *resilience.Breaker
}

// DefaultLoaderOpts match the batch sizes and patience the pipeline ships with.
var DefaultLoaderOpts = LoaderOpts{
	Retry:         fn.RetryOpts{MaxAttempts: 3, InitialWait: 500 * time.Millisecond, MaxWait: 5 * time.Second, Jitter: true},
	CommitTimeout: 30 * time.Second,
}

// Loader drains batches from a single channel and commits each one as a
// transaction. One loader goroutine serializes all writes, so batches land
// in emission order.
type Loader struct {
	store *GraphStore
	opts  LoaderOpts
	log   *slog.Logger
}

// NewLoader creates a Loader writing through store.
func NewLoader(store *GraphStore, opts LoaderOpts, log *slog.Logger) *Loader {
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry = DefaultLoaderOpts.Retry
	}
	if opts.CommitTimeout <= 0 {
		opts.CommitTimeout = DefaultLoaderOpts.CommitTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &Loader{store: store, opts: opts, log: log}
}

// Run consumes batches until the channel closes or ctx is cancelled. A
// failed batch is retried, then recorded and skipped; the rest of the run
// proceeds. An open circuit breaker aborts the run, since nothing further
// can commit.
func (l *Loader) Run(ctx context.Context, batches <-chan Batch) (LoadResult, []BatchError, error) {
	var (
		result LoadResult
		failed []BatchError
	)
	for {
		select {
		case <-ctx.Done():
			return result, failed, ctx.Err()
		case b, ok := <-batches:
			if !ok {
				return result, failed, nil
			}
			if l.opts.CommitRate != nil {
				if err := l.opts.CommitRate.Wait(ctx); err != nil {
					return result, failed, err
				}
			}
			lr, err := l.commit(ctx, b)
			if err != nil {
				if errors.Is(err, resilience.ErrCircuitOpen) {
					return result, failed, fmt.Errorf("loader: database unreachable at batch %d: %w", b.Seq, err)
				}
				l.log.Error("batch commit failed",
					"seq", b.Seq, "nodes", len(b.Nodes), "rels", len(b.Relationships), "error", err)
				failed = append(failed, BatchError{Seq: b.Seq, NodeIDs: b.NodeIDs(), Err: err})
				continue
			}
			result.add(lr)
			result.Batches++
			l.log.Debug("batch committed",
				"seq", b.Seq,
				"nodes_created", lr.NodesCreated, "nodes_merged", lr.NodesMerged,
				"rels_created", lr.RelationshipsCreated, "rels_merged", lr.RelationshipsMerged)
		}
	}
}

// commit writes one batch with retry and a per-attempt timeout, through the
// breaker when one is configured.
func (l *Loader) commit(ctx context.Context, b Batch) (LoadResult, error) {
	attempt := func(ctx context.Context) fn.Result[LoadResult] {
		attemptCtx, cancel := context.WithTimeout(ctx, l.opts.CommitTimeout)
		defer cancel()

		var lr LoadResult
		apply := func(ctx context.Context) error {
			var err error
			lr, err = l.store.ApplyBatch(ctx, b)
			return err
		}
		var err error
		if l.opts.Breaker != nil {
			err = l.opts.Breaker.Call(attemptCtx, apply)
		} else {
			err = apply(attemptCtx)
		}
		if err != nil {
			return fn.Err[LoadResult](err)
		}
		return fn.Ok(lr)
	}
	return fn.Retry(ctx, l.opts.Retry, attempt).Unwrap()
}
