package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/your-org/crowdsense/internal/ads"
	"github.com/your-org/crowdsense/internal/api"
	"github.com/your-org/crowdsense/internal/api/handlers"
	"github.com/your-org/crowdsense/internal/api/ws"
	"github.com/your-org/crowdsense/internal/config"
	"github.com/your-org/crowdsense/internal/detect"
	"github.com/your-org/crowdsense/internal/ingest"
	"github.com/your-org/crowdsense/internal/observability"
	"github.com/your-org/crowdsense/internal/pipeline"
	"github.com/your-org/crowdsense/internal/queue"
	"github.com/your-org/crowdsense/internal/storage"
	"github.com/your-org/crowdsense/internal/tracking"
	"github.com/your-org/crowdsense/internal/vision"
	"github.com/your-org/crowdsense/internal/vision/haar"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file (empty for env and defaults only)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting crowdsense",
		"port", cfg.Server.Port,
		"capture", cfg.Capture.Type,
		"database", cfg.Database.Driver,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Inference
	shutdownRuntime, err := vision.InitRuntime()
	if err != nil {
		slog.Error("init onnx runtime", "error", err)
		os.Exit(1)
	}
	defer shutdownRuntime()

	nets, err := vision.Load(cfg.Vision)
	if err != nil {
		slog.Error("load vision models", "error", err)
		os.Exit(1)
	}
	defer nets.Close()

	caps := detect.Capabilities{Persons: nets.Persons}
	if nets.Faces != nil {
		caps.PrimaryFace = nets.Faces
	}
	if nets.Gender != nil {
		caps.Gender = nets.Gender
	}
	if fallback := loadHaar(cfg.Vision); fallback != nil {
		caps.FallbackFace = fallback
		defer fallback.Close()
	}

	cascade, err := detect.NewCascade(caps, detect.Config{
		PersonThreshold: cfg.Vision.PersonThreshold,
		GenderThreshold: cfg.Vision.GenderThreshold,
		FacePadding:     cfg.Vision.FacePadding,
		MinFaceSize:     cfg.Vision.MinFaceSize,
	})
	if err != nil {
		slog.Error("build detection cascade", "error", err)
		os.Exit(1)
	}
	if missing := cascade.Degraded(); len(missing) > 0 {
		slog.Warn("detection running degraded, affected people are labelled Unknown", "missing", missing)
	}

	// Analytics store
	checks := map[string]handlers.CheckFunc{}
	analytics := storage.OpenAnalytics(ctx, cfg.Database)
	defer analytics.Close()
	if analytics.Check != nil {
		checks[analytics.Driver] = analytics.Check
	}
	var store ads.Store
	if analytics.Store != nil {
		store = analytics.Store
	}

	// Inventory
	sources := []ads.Inventory{}
	local, err := ads.LoadLocalInventory(cfg.Ads.Dir)
	if err != nil {
		slog.Warn("load local ad inventory, using demo catalog", "dir", cfg.Ads.Dir, "error", err)
	} else {
		sources = append(sources, local)
	}

	var minioStore *storage.MinIOStore
	if cfg.MinIO.Endpoint != "" {
		minioStore, err = storage.NewMinIOStore(cfg.MinIO)
		if err != nil {
			slog.Error("connect to minio", "error", err)
			os.Exit(1)
		}
		if err := minioStore.EnsureBucket(ctx); err != nil {
			slog.Warn("ensure minio bucket", "error", err)
		}
		remote, err := ads.LoadObjectInventory(ctx, minioStore, cfg.MinIO.AdsPrefix)
		if err != nil {
			slog.Warn("load object ad inventory", "prefix", cfg.MinIO.AdsPrefix, "error", err)
		} else {
			sources = append(sources, remote)
		}
		checks["minio"] = minioStore.Ping
	}
	catalog := ads.NewCatalog(sources...)
	slog.Info("ad catalog ready",
		"male", catalog.Size("male"),
		"female", catalog.Size("female"),
		"neutral", catalog.Size("neutral"),
	)

	trigger := ads.NewTrigger(ads.TriggerConfig{
		DisplayDuration: cfg.Ads.DisplayDuration,
		TriggerDelay:    cfg.Ads.TriggerDelay,
	}, nil)
	selector := ads.NewSelector(catalog, trigger, ads.NewRecorder(store, nil), cfg.Ads.HistorySize, nil)

	// Event fan-out
	hub := ws.NewHub()
	go hub.Run(ctx)

	publishers := []pipeline.Publisher{hub}
	if cfg.NATS.URL != "" {
		producer, err := queue.NewProducer(cfg.NATS.URL)
		if err != nil {
			slog.Error("connect to nats", "error", err)
			os.Exit(1)
		}
		defer producer.Close()

		if err := producer.EnsureStream(ctx); err != nil {
			slog.Warn("ensure nats stream", "error", err)
		}
		publishers = append(publishers, producer)
		checks["nats"] = func(context.Context) error { return producer.Ping() }
	}

	// Capture and processing
	source := ingest.NewFFmpegSource(cfg.Capture)
	source.Start(ctx)
	defer source.Close()

	tracker := tracking.NewTracker(tracking.Config{
		MaxDisappeared: cfg.Tracking.MaxDisappeared,
		MaxDistance:    cfg.Tracking.MaxDistance,
		LabelHistory:   cfg.Tracking.LabelHistory,
	})
	worker := pipeline.NewWorker(source, cascade, tracker, trigger, selector, pipeline.Config{
		DetectEvery:      cfg.Vision.DetectEvery,
		ConfirmHits:      cfg.Tracking.ConfirmHits,
		ScoreThreshold:   cfg.Vision.PersonThreshold,
		OverlapThreshold: cfg.Vision.NMSThreshold,
		ErrorBackoff:     cfg.Pipeline.ErrorBackoff,
		HistorySize:      cfg.Pipeline.DetectionHistory,
	}, publishers...)
	hub.Counts = worker.Counts

	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		worker.Run(ctx)
	}()

	// Setup router
	routerCfg := api.RouterConfig{
		APIKey: cfg.Server.APIKey,
		Crowd:  worker,
		Ads:    selector,
		Hub:    hub,
		Checks: checks,
		AdsDir: cfg.Ads.Dir,
	}
	if minioStore != nil {
		routerCfg.Media = minioStore
	}
	router := api.NewRouter(routerCfg)

	// Start HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("API server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down crowdsense...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}
	select {
	case <-workerDone:
	case <-shutdownCtx.Done():
		slog.Warn("processing worker did not stop in time")
	}

	slog.Info("crowdsense stopped")
}

// loadHaar loads the fallback face locator from the models directory when
// the cascade file is present.
func loadHaar(cfg config.VisionConfig) *haar.Detector {
	path := filepath.Join(cfg.ModelsDir, haar.DefaultCascadeFile)
	if _, err := os.Stat(path); err != nil {
		slog.Info("fallback face detector not installed", "path", path)
		return nil
	}
	d, err := haar.New(path, cfg.MinFaceSize)
	if err != nil {
		slog.Warn("fallback face detector unavailable", "path", path, "error", err)
		return nil
	}
	return d
}
