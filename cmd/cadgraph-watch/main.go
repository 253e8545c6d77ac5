// Command cadgraph-watch tails the run events published by cadgraph loads.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"

	"github.com/formalab/cadgraph/engine/pipeline"
	"github.com/formalab/cadgraph/pkg/natsutil"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	godotenv.Load()

	natsURL := flag.String("nats", envOr("NATS_URL", nats.DefaultURL), "NATS URL")
	flag.Parse()

	log := slog.Default()

	nc, err := nats.Connect(*natsURL, nats.Name("cadgraph-watch"))
	if err != nil {
		log.Error("nats connect failed", "url", *natsURL, "error", err)
		os.Exit(1)
	}
	defer nc.Close()

	runs, err := natsutil.Subscribe(nc, pipeline.SubjectRunCompleted,
		func(_ context.Context, s pipeline.Summary) {
			log.Info("run completed",
				"document", s.Document,
				"nodes_created", s.Load.NodesCreated,
				"rels_created", s.Load.RelationshipsCreated,
				"timeline_edges", s.Transform.TimelineEdges,
				"adjacency_edges", s.Transform.AdjacencyEdges,
				"partial", s.Partial,
				"duration", s.Duration,
			)
		})
	if err != nil {
		log.Error("subscribe failed", "subject", pipeline.SubjectRunCompleted, "error", err)
		os.Exit(1)
	}
	defer runs.Unsubscribe()

	failed, err := natsutil.Subscribe(nc, pipeline.SubjectBatchFailed,
		func(_ context.Context, fb pipeline.FailedBatch) {
			log.Warn("batch failed",
				"document", fb.Document,
				"seq", fb.Seq,
				"nodes", len(fb.NodeIDs),
				"error", fb.Error,
			)
		})
	if err != nil {
		log.Error("subscribe failed", "subject", pipeline.SubjectBatchFailed, "error", err)
		os.Exit(1)
	}
	defer failed.Unsubscribe()

	log.Info("watching run events", "url", *natsURL)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	<-ctx.Done()
}
