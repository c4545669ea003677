// Command genforged is the long-running media-generation worker/server.
// It wires together the queue coordinator, the single-item orchestrator,
// the generation adapter registry, the object cache and a Prometheus
// metrics endpoint, re-spawns coordinators for jobs a previous process
// left unfinished (or, with --legacy-worker-loop, runs the claim-based
// worker loop instead), then blocks until terminated. Structured the way cmd/root.go assembles
// azcopy's own long-lived state in PersistentPreRunE before handing off
// to a subcommand's RunE, but collapsed into one binary's main since
// genforge has no per-invocation subcommand surface of its own — that
// lives in genforgectl.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/yallapapi/genforge/common"
	"github.com/yallapapi/genforge/internal/config"
	"github.com/yallapapi/genforge/internal/db"
	"github.com/yallapapi/genforge/pkg/checkpoint"
	"github.com/yallapapi/genforge/pkg/cooldown"
	"github.com/yallapapi/genforge/pkg/generation"
	"github.com/yallapapi/genforge/pkg/ledger"
	"github.com/yallapapi/genforge/pkg/metrics"
	"github.com/yallapapi/genforge/pkg/objectcache"
	"github.com/yallapapi/genforge/pkg/orchestrator"
	"github.com/yallapapi/genforge/pkg/queue"
	"github.com/yallapapi/genforge/pkg/retry"
	"github.com/yallapapi/genforge/pkg/validate"
)

var (
	metricsAddr  string
	workerID     string
	pollInterval time.Duration
	legacyMode   bool
)

func main() {
	root := &cobra.Command{
		Use:   "genforged",
		Short: "genforge media-generation worker/server",
		RunE:  run,
	}
	root.Flags().StringVar(&metricsAddr, "metrics-addr", ":9090", "address to serve /metrics on")
	root.Flags().StringVar(&workerID, "worker-id", defaultWorkerID(), "identifier for the legacy claim-based worker loop")
	root.Flags().DurationVar(&pollInterval, "poll-interval", 2*time.Second, "legacy worker loop poll interval when no job is claimable")
	root.Flags().BoolVar(&legacyMode, "legacy-worker-loop", false, "run the claim-based worker loop instead of the in-process coordinator")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func defaultWorkerID() string {
	host, err := os.Hostname()
	if err != nil {
		return common.NewJobID().String()
	}
	return host
}

func run(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("genforged: load config: %w", err)
	}

	var logger common.ILogger = common.NopLogger{}

	sqlxDB, err := db.Open(ctx, db.Config{
		Host: cfg.DBHost, Port: cfg.DBPort, User: cfg.DBUser,
		Password: cfg.DBPassword, Database: cfg.DBName, SSLMode: cfg.DBSSLMode,
		MaxOpenConns: 20,
	})
	if err != nil {
		return fmt.Errorf("genforged: connect database: %w", err)
	}
	defer sqlxDB.Close()

	if err := db.Migrate(sqlxDB.DB); err != nil {
		return fmt.Errorf("genforged: migrate: %w", err)
	}

	jobRepo := db.NewJobRepo(sqlxDB)
	userRepo := db.NewUserRepo(sqlxDB)
	cacheRepo := db.NewUploadCacheRepo(sqlxDB)
	led := ledger.New(sqlxDB)

	registry := generation.NewRegistry()
	registry.Register("wan", generation.NewFalAdapter(envOr("GENFORGE_FAL_BASE_URL", "https://fal.run"), os.Getenv("GENFORGE_FAL_API_KEY"), nil))
	registry.Register("wan21", generation.NewFalAdapter(envOr("GENFORGE_FAL_BASE_URL", "https://fal.run"), os.Getenv("GENFORGE_FAL_API_KEY"), nil))
	if url := os.Getenv("GENFORGE_VASTAI_TUNNEL_URL"); url != "" {
		registry.Register("kling", generation.NewVastAIAdapter(url, os.Getenv("GENFORGE_VASTAI_TOKEN"), nil))
	}
	if url := os.Getenv("GENFORGE_SWARMUI_TUNNEL_URL"); url != "" {
		registry.Register("sora-2", generation.NewSwarmUIAdapter(url, os.Getenv("GENFORGE_SWARMUI_TOKEN"), nil))
	}
	if url := os.Getenv("GENFORGE_PINOKIO_TUNNEL_URL"); url != "" {
		registry.Register("veo31", generation.NewPinokioAdapter(url, os.Getenv("GENFORGE_PINOKIO_TOKEN"), nil))
	}

	var cacheBackend objectcache.Backend
	switch cfg.ObjectCacheBackend {
	case "s3":
		minioClient, err := newMinioClient(cfg)
		if err != nil {
			return fmt.Errorf("genforged: init s3 cache backend: %w", err)
		}
		cacheBackend = objectcache.NewS3Backend(minioClient, cfg.S3Bucket, cfg.S3Endpoint)
	default:
		blobClient, err := newAzblobClient(cfg)
		if err != nil {
			return fmt.Errorf("genforged: init azblob cache backend: %w", err)
		}
		cacheBackend = objectcache.NewAzureBlobBackend(blobClient, cfg.AzureBlobContainer)
	}
	cache := objectcache.New(cacheBackend, cacheRepo)

	cooldownMgr := cooldown.New("generation", cfg.DataDir)
	if err := cooldownMgr.Load(); err != nil {
		return fmt.Errorf("genforged: load cooldown state: %w", err)
	}
	checkpointMgr := checkpoint.New("genforged", cfg.DataDir, true)
	if err := checkpointMgr.Load(); err != nil {
		return fmt.Errorf("genforged: load checkpoint state: %w", err)
	}

	orch := &orchestrator.Orchestrator{
		Registry:   registry,
		Cooldowns:  cooldownMgr,
		Checkpoint: checkpointMgr,
		Cache:      cache,
		Validator:  validate.New(),
		RetryCfg:   retry.DefaultConfig(),
		Logger:     logger,
		PollEvery:  3 * time.Second,
		PollFor:    10 * time.Minute,
		FlowLogDir: cfg.DataDir + "/flowlogs",
	}

	reg := prometheus.NewRegistry()
	metrics.MustRegister(reg)
	go serveMetrics(metricsAddr, reg)

	if legacyMode {
		loop := &orchestrator.WorkerLoop{
			WorkerID:     workerID,
			Jobs:         jobRepo,
			Ledger:       led,
			Orchestrator: orch,
			LeaseSeconds: int(cfg.ClaimLeaseSeconds.Seconds()),
			PollInterval: pollInterval,
			Logger:       logger,
		}
		return loop.Run(ctx)
	}

	q := queue.New(jobRepo, userRepo, led, orch, config.TierLimits, logger)
	recovered, err := q.Recover(ctx, func(string) string { return "free" })
	if err != nil {
		return fmt.Errorf("genforged: recover in-flight jobs: %w", err)
	}
	if recovered > 0 && logger != nil {
		logger.Log(common.LogInfo, fmt.Sprintf("genforged: recovered %d in-flight jobs", recovered))
	}

	<-ctx.Done()
	return nil
}

func serveMetrics(addr string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	_ = http.ListenAndServe(addr, mux)
}

func envOr(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}
