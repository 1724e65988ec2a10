package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"go-attendance-server/config"
	"go-attendance-server/internal/executor"
	"go-attendance-server/internal/gallery"
	"go-attendance-server/internal/roster"
	"go-attendance-server/internal/server"
	"go-attendance-server/internal/service"
	"go-attendance-server/internal/store"
	"go-attendance-server/internal/vision"
	"go-attendance-server/logger"
)

func main() {
	fmt.Println("================================================================================")
	fmt.Println("🚀 Attendance Vision Server")
	fmt.Println("================================================================================")

	// .env carries DB credentials only; absence is fine
	if err := godotenv.Load(); err == nil {
		log.Println("✅ Environment loaded from .env")
	}

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	log.Printf("✅ Configuration loaded from %s", cfgPath)
	log.Printf("   Workers: %d (queue depth: %d)", cfg.Server.WorkerCount, cfg.Server.QueueSize)
	log.Printf("   Detector: %s", cfg.Models.DetectorPath)
	log.Printf("   Embedder: %s", cfg.Models.EmbedderPath)
	log.Printf("   Gallery dir: %s", cfg.Gallery.Dir)
	log.Printf("   Match threshold: %.2f", cfg.Pipeline.MatchThreshold)

	// Model bundle loads lazily; warm it now so the first request does not
	// pay the load cost. A failed warm-up leaves the server degraded, not dead.
	log.Println("\n📦 Initializing model bundle...")
	bundle := vision.NewBundle(vision.Options{
		LibraryPath:    cfg.ONNX.LibraryPath,
		DetectorPath:   cfg.Models.DetectorPath,
		EmbedderPath:   cfg.Models.EmbedderPath,
		UseGPU:         cfg.ONNX.UseGPU,
		IntraOpThreads: cfg.ONNX.IntraOpThreads,
		InterOpThreads: cfg.ONNX.InterOpThreads,
		DetectionScore: float32(cfg.Pipeline.DetectionScore),
		DetectionIoU:   float32(cfg.Pipeline.DetectionIoU),
		EmbedInputSize: cfg.Pipeline.EmbedInputSize,
	})
	defer bundle.Close()
	if err := bundle.EnsureInitialized(); err != nil {
		log.Printf("⚠️  Models unavailable, starting degraded: %v", err)
		log.Println("   Requests will return full-roster absent predictions until models load")
	} else {
		log.Printf("✅ Model bundle ready on %s", bundle.Device())
	}

	galleries := gallery.NewCache(cfg.Gallery.Dir, cfg.Logging.LogCacheStats)
	log.Printf("✅ Gallery cache initialized (dir: %s)", cfg.Gallery.Dir)

	pool := executor.NewPool(cfg.Server.WorkerCount, cfg.Server.QueueSize)
	defer pool.Stop()
	log.Printf("✅ Worker pool started (%d workers)", cfg.Server.WorkerCount)

	log.Println("\n🗂️  Connecting roster store...")
	var rosterStore roster.Store
	switch cfg.Roster.Driver {
	case "postgres":
		dsn := cfg.Roster.DSN
		if dsn == "" {
			dsn = os.Getenv("ROSTER_DSN")
		}
		pg, err := roster.OpenPostgres(dsn)
		if err != nil {
			log.Fatalf("❌ Failed to connect roster database: %v", err)
		}
		defer pg.Close()
		rosterStore = pg
		log.Println("✅ Roster: postgres")
	case "inmem":
		if cfg.Roster.SeedPath != "" {
			mem, err := roster.LoadInMemoryStore(cfg.Roster.SeedPath)
			if err != nil {
				log.Fatalf("❌ Failed to load roster seed %s: %v", cfg.Roster.SeedPath, err)
			}
			rosterStore = mem
			log.Printf("✅ Roster: in-memory (%d students from %s)", mem.Len(), cfg.Roster.SeedPath)
		} else {
			rosterStore = roster.NewInMemoryStore()
			log.Println("⚠️  Roster: in-memory, empty (set roster.seed_path)")
		}
	default:
		log.Fatalf("❌ Unknown roster driver %q", cfg.Roster.Driver)
	}

	attendanceStore, err := store.New(cfg.Store.Path)
	if err != nil {
		log.Fatalf("❌ Failed to open attendance store: %v", err)
	}
	defer attendanceStore.Close()
	log.Printf("✅ Attendance store ready (%s)", cfg.Store.Path)

	var bufferedLog *logger.BufferedLogger
	if cfg.Logging.BufferedLogging {
		bufferedLog = logger.NewBufferedLogger(cfg.Logging.AutoFlush, cfg.Logging.SampleRate)
		defer bufferedLog.Stop()
		log.Printf("✅ Buffered logging enabled (sample_rate=%d, auto_flush=%v)",
			cfg.Logging.SampleRate, cfg.Logging.AutoFlush)
	}

	svc := service.New(service.Deps{
		Config:    cfg,
		Bundle:    bundle,
		Galleries: galleries,
		Pool:      pool,
		Roster:    rosterStore,
		Store:     attendanceStore,
	})

	srv := server.New(svc, cfg, bufferedLog)

	fmt.Printf("\n🌐 Attendance server listening on %s\n", cfg.Server.Port)
	fmt.Println("   Protocol: HTTP + WebSocket progress stream")
	fmt.Println("   Features:")
	fmt.Println("      • Face detection + gallery matching in single process")
	fmt.Println("      • Full-roster reconciliation per session")
	fmt.Println("      • Bounded worker pool with queue rejection")
	fmt.Println("      • Degraded mode when checkpoints are absent")
	fmt.Println("      • Gallery cache invalidation endpoint")
	fmt.Println("\n✅ Ready to accept connections!")
	fmt.Println("================================================================================")

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Fatalf("❌ Failed to serve: %v", err)
	case sig := <-sigCh:
		log.Printf("\n🛑 Received %s, shutting down...", sig)
		if err := srv.Stop(); err != nil {
			log.Printf("⚠️  Shutdown error: %v", err)
		}
	}
}
