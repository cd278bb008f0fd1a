package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/fridgetrack/internal/cache"
	"github.com/zombor/fridgetrack/internal/detection"
	"github.com/zombor/fridgetrack/internal/expiry"
	"github.com/zombor/fridgetrack/internal/inventory"
	"github.com/zombor/fridgetrack/internal/suggest"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Failed to load .env", "error", err)
	}

	cfg, fs, err := parseConfig(os.Args[1:], os.Getenv)
	if err != nil {
		if errors.Is(err, ff.ErrHelp) {
			fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if cfg.ShowVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}
	slog.Info("Shut down")
}

func run(ctx context.Context, cfg *Config) error {
	slog.Info("Initializing database...", "store", cfg.Store)
	db, err := openDB(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer db.Close()

	slog.Info("Initializing storage...", "storage", cfg.Storage)
	store, err := openStorage(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}

	shelfLifeCache := openCache(cfg)
	defer shelfLifeCache.Close()

	p := resolveProviders(ctx, cfg)
	defer p.Close()

	engine := detection.NewEngine(p.detectors, detection.NewMockGenerator(cfg.MockMinItems, cfg.MockMaxItems))
	if engine.MockMode() {
		slog.Warn("No detection provider configured; running in mock mode")
	} else {
		slog.Info("Detection chain resolved", "primary", engine.Primary(), "providers", engine.Providers())
	}

	pipeline := inventory.Pipeline{
		Detector:  engine,
		Threshold: cfg.DetectThreshold,
		OCR:       expiry.NewExtractor(p.ocr),
		Vision:    expiry.NewVisionDateReader(p.vision),
		Estimator: expiry.NewEstimator(p.text, shelfLifeCache),
		Suggester: suggest.NewGenerator(p.text),
	}

	service := inventory.NewService(db, store, pipeline)
	server := inventory.NewServer(service, version)

	addr := fmt.Sprintf(":%d", cfg.Port)
	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr), "version", version)
	return server.Start(ctx, addr)
}

func openDB(ctx context.Context, cfg *Config) (inventory.DB, error) {
	if cfg.Store == "mongo" {
		return inventory.NewMongoDB(ctx, cfg.MongoURI, cfg.MongoDatabase)
	}
	return inventory.NewBoltDB(cfg.DBPath)
}

func openStorage(ctx context.Context, cfg *Config) (inventory.Storage, error) {
	if cfg.Storage == "s3" {
		return inventory.NewS3Storage(ctx, inventory.S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
	}
	return inventory.NewLocalStorage(cfg.StoragePath)
}

// openCache connects to Redis when asked, falling back to memory if it is unreachable
func openCache(cfg *Config) cache.Cache {
	if cfg.Cache == "redis" {
		redisCache, err := cache.NewRedisCache(cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err == nil {
			slog.Info("Redis cache initialized", "addr", cfg.RedisAddr)
			return redisCache
		}
		slog.Warn("Redis connection failed; using in-memory cache", "error", err)
	}
	return cache.NewMemoryCache()
}
