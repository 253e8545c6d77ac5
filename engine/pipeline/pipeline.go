// Package pipeline runs a document end to end: extract, batch-load, then
// derive relationships in the persisted graph.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"golang.org/x/sync/errgroup"

	"github.com/formalab/cadgraph/engine/cad"
	"github.com/formalab/cadgraph/engine/extract"
	"github.com/formalab/cadgraph/engine/graph"
	"github.com/formalab/cadgraph/engine/identity"
	"github.com/formalab/cadgraph/pkg/fn"
	"github.com/formalab/cadgraph/pkg/metrics"
	"github.com/formalab/cadgraph/pkg/natsutil"
)

// NATS subjects the pipeline emits on when a connection is configured.
const (
	SubjectRunCompleted = "cadgraph.run.completed"
	SubjectBatchFailed  = "cadgraph.batch.failed"
)

// Config tunes one pipeline run.
type Config struct {
	// BatchSize bounds one transactional unit.
	BatchSize int
	// ChannelDepth is how many flushed batches may queue while the loader
	// works; extraction blocks when it fills.
	ChannelDepth int
	// ClearFirst wipes the graph before loading, for full re-extracts.
	ClearFirst bool

	Loader      graph.LoaderOpts
	Transformer graph.TransformerOpts
}

// Summary reports everything a run did, including the parts that failed.
type Summary struct {
	Document      string                  `json:"document"`
	Walk          extract.WalkStats       `json:"walk"`
	Build         graph.BuildStats        `json:"build"`
	Load          graph.LoadResult        `json:"load"`
	Transform     graph.TransformResult   `json:"transform"`
	FailedBatches []FailedBatch           `json:"failed_batches,omitempty"`
	Partial       bool                    `json:"partial"`
	Duration      time.Duration           `json:"duration"`
}

// FailedBatch is the wire form of a batch that exhausted its retries.
type FailedBatch struct {
	Document string   `json:"document"`
	Seq      int      `json:"seq"`
	NodeIDs  []string `json:"node_ids"`
	Error    string   `json:"error"`
}

// Pipeline wires the walker, builder, loader and transformer together.
type Pipeline struct {
	store *graph.GraphStore
	reg   *extract.Registry
	cfg   Config
	log   *slog.Logger
	nc    *nats.Conn

	runsTotal    *metrics.Counter
	runsPartial  *metrics.Counter
	batchesFailed *metrics.Counter
}

// New creates a Pipeline. nc may be nil; run events are then skipped.
// mreg may be nil; run counters are then skipped.
func New(store *graph.GraphStore, cfg Config, log *slog.Logger, nc *nats.Conn, mreg *metrics.Registry) *Pipeline {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = graph.DefaultBatchSize
	}
	if cfg.ChannelDepth <= 0 {
		cfg.ChannelDepth = 4
	}
	if log == nil {
		log = slog.Default()
	}
	p := &Pipeline{store: store, reg: extract.NewRegistry(), cfg: cfg, log: log, nc: nc}
	if mreg != nil {
		p.runsTotal = mreg.Counter("cadgraph_runs_total", "Pipeline runs started")
		p.runsPartial = mreg.Counter("cadgraph_runs_partial_total", "Runs that ended partially complete")
		p.batchesFailed = mreg.Counter("cadgraph_batches_failed_total", "Batches that exhausted retries")
	}
	return p
}

// Run executes the full pipeline for one document. Extraction runs on the
// calling goroutine (the host object model is single-threaded); a loader
// goroutine drains flushed batches concurrently. A host loss mid-extraction
// still loads what was produced and marks the run partial.
func (p *Pipeline) Run(ctx context.Context, doc cad.Document) (Summary, error) {
	start := time.Now()
	summary := Summary{Document: doc.Name()}
	if p.runsTotal != nil {
		p.runsTotal.Inc()
	}

	if err := p.store.EnsureSchema(ctx); err != nil {
		return summary, err
	}
	if p.cfg.ClearFirst {
		if err := p.store.Clear(ctx); err != nil {
			return summary, fmt.Errorf("pipeline: clear: %w", err)
		}
	}

	batches := make(chan graph.Batch, p.cfg.ChannelDepth)
	loader := graph.NewLoader(p.store, p.cfg.Loader, p.log)

	g, gctx := errgroup.WithContext(ctx)

	var (
		loadResult graph.LoadResult
		loadFailed []graph.BatchError
	)
	g.Go(func() error {
		var err error
		loadResult, loadFailed, err = loader.Run(gctx, batches)
		return err
	})

	g.Go(func() error {
		defer close(batches)

		builder := graph.NewBuilder(p.cfg.BatchSize, func(b graph.Batch) error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case batches <- b:
				return nil
			}
		})
		walker := extract.NewWalker(p.reg, identity.NewService(), builder, p.log)

		stats, walkErr := walker.Walk(doc)
		summary.Walk = stats
		if walkErr != nil && !errors.Is(walkErr, cad.ErrHostUnavailable) {
			return walkErr
		}
		if walkErr != nil {
			// Host went away. Flush what we have and finish the run as
			// partial instead of discarding completed work.
			summary.Partial = true
			p.log.Warn("host lost mid-extraction, loading partial model", "document", doc.Name())
		}
		if err := builder.Flush(); err != nil {
			return err
		}
		summary.Build = builder.Stats()
		return nil
	})

	if err := g.Wait(); err != nil {
		return summary, err
	}
	summary.Load = loadResult
	if len(loadFailed) > 0 {
		summary.FailedBatches = fn.Map(loadFailed, func(be graph.BatchError) FailedBatch {
			return FailedBatch{
				Document: doc.Name(),
				Seq:      be.Seq,
				NodeIDs:  be.NodeIDs,
				Error:    be.Err.Error(),
			}
		})
	}
	if p.batchesFailed != nil {
		p.batchesFailed.Add(int64(len(loadFailed)))
	}

	transform := fn.TracedStage("pipeline.transform",
		func(ctx context.Context, s Summary) fn.Result[Summary] {
			tr, err := graph.NewTransformer(p.store, p.cfg.Transformer, p.log).Run(ctx)
			if err != nil {
				return fn.Err[Summary](err)
			}
			s.Transform = tr
			return fn.Ok(s)
		})
	res := transform(ctx, summary)
	summary, err := res.Unwrap()
	if err != nil {
		return summary, fmt.Errorf("pipeline: %w", err)
	}

	summary.Duration = time.Since(start)
	if summary.Partial && p.runsPartial != nil {
		p.runsPartial.Inc()
	}
	p.publishEvents(ctx, summary)
	p.log.Info("run complete",
		"document", summary.Document,
		"visited", summary.Walk.Visited,
		"skipped", summary.Walk.Skipped,
		"nodes_created", summary.Load.NodesCreated,
		"rels_created", summary.Load.RelationshipsCreated,
		"timeline_edges", summary.Transform.TimelineEdges,
		"adjacency_edges", summary.Transform.AdjacencyEdges,
		"failed_batches", len(summary.FailedBatches),
		"partial", summary.Partial,
		"duration", summary.Duration)
	return summary, nil
}

func (p *Pipeline) publishEvents(ctx context.Context, s Summary) {
	if p.nc == nil {
		return
	}
	for _, fb := range s.FailedBatches {
		if err := natsutil.Publish(ctx, p.nc, SubjectBatchFailed, fb); err != nil {
			p.log.Warn("publish batch failure event", "error", err)
		}
	}
	if err := natsutil.Publish(ctx, p.nc, SubjectRunCompleted, s); err != nil {
		p.log.Warn("publish run event", "error", err)
	}
}
