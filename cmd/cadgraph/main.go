// Command cadgraph loads a CAD design snapshot into Neo4j and derives the
// timeline and adjacency relationships.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"golang.org/x/time/rate"

	"github.com/formalab/cadgraph/engine/cad/snapshot"
	"github.com/formalab/cadgraph/engine/graph"
	"github.com/formalab/cadgraph/engine/pipeline"
	"github.com/formalab/cadgraph/pkg/fn"
	"github.com/formalab/cadgraph/pkg/metrics"
	"github.com/formalab/cadgraph/pkg/resilience"
)

var met = metrics.New()

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	godotenv.Load()

	var (
		snapshotPath = flag.String("snapshot", "", "path to a design snapshot JSON file")
		neo4jURL     = flag.String("neo4j", envOr("NEO4J_URL", "neo4j://localhost:7687"), "Neo4j bolt URL")
		neo4jUser    = flag.String("neo4j-user", envOr("NEO4J_USER", "neo4j"), "Neo4j username")
		neo4jPass    = flag.String("neo4j-pass", envOr("NEO4J_PASS", ""), "Neo4j password")
		natsURL      = flag.String("nats", envOr("NATS_URL", ""), "NATS URL for run events (optional)")
		batchSize    = flag.Int("batch-size", 1000, "records per load transaction")
		commitRate   = flag.Float64("commit-rate", 0, "max batch commits per second (0 = unthrottled)")
		clearFirst   = flag.Bool("clear", false, "wipe the graph before loading")
		metricsPort  = flag.Int("metrics-port", 9092, "prometheus metrics port")
	)
	flag.Parse()

	log := slog.Default()
	if *snapshotPath == "" {
		log.Error("missing -snapshot")
		os.Exit(1)
	}

	met.CollectRuntime("cadgraph", 15*time.Second)
	met.ServeAsync(*metricsPort)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	f, err := os.Open(*snapshotPath)
	if err != nil {
		log.Error("open snapshot failed", "error", err)
		os.Exit(1)
	}
	doc, err := snapshot.Decode(f)
	f.Close()
	if err != nil {
		log.Error("decode snapshot failed", "error", err)
		os.Exit(1)
	}
	log.Info("snapshot loaded", "document", doc.Name())

	driver, err := neo4j.NewDriverWithContext(*neo4jURL, neo4j.BasicAuth(*neo4jUser, *neo4jPass, ""))
	if err != nil {
		log.Error("neo4j connect failed", "error", err)
		os.Exit(1)
	}
	defer driver.Close(ctx)
	if err := driver.VerifyConnectivity(ctx); err != nil {
		log.Error("neo4j verify failed", "error", err)
		os.Exit(1)
	}
	log.Info("connected to Neo4j")

	var nc *nats.Conn
	if *natsURL != "" {
		nc, err = nats.Connect(*natsURL)
		if err != nil {
			log.Error("nats connect failed", "error", err)
			os.Exit(1)
		}
		defer nc.Close()
		log.Info("connected to NATS")
	}

	cfg := pipeline.Config{
		BatchSize:  *batchSize,
		ClearFirst: *clearFirst,
		Loader: graph.LoaderOpts{
			Retry:         fn.RetryOpts{MaxAttempts: 3, InitialWait: 500 * time.Millisecond, MaxWait: 5 * time.Second, Jitter: true},
			CommitTimeout: 30 * time.Second,
			Breaker:       resilience.NewBreaker(resilience.DefaultBreakerOpts),
		},
		Transformer: graph.TransformerOpts{
			Limiter: resilience.NewLimiter(resilience.LimiterOpts{Rate: 20, Burst: 5}),
		},
	}
	if *commitRate > 0 {
		cfg.Loader.CommitRate = rate.NewLimiter(rate.Limit(*commitRate), 1)
	}

	p := pipeline.New(graph.New(driver), cfg, log, nc, met)
	summary, err := p.Run(ctx, doc)
	if err != nil {
		log.Error("run failed", "error", err)
		os.Exit(1)
	}

	gs := graph.New(driver)
	if counts, err := gs.NodeCounts(ctx); err == nil {
		log.Info("graph nodes", "counts", counts)
	}
	if counts, err := gs.RelationshipCounts(ctx); err == nil {
		log.Info("graph relationships", "counts", counts)
	}
	if top, err := gs.TopComponents(ctx, 5); err == nil {
		for _, c := range top {
			log.Info("component", "name", c.Component,
				"features", c.Features, "bodies", c.Bodies, "sketches", c.Sketches)
		}
	}
	if summary.Partial {
		log.Warn("run completed partially", "visited", summary.Walk.Visited)
		os.Exit(2)
	}
}
