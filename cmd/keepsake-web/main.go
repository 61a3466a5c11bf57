package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/scrypster/keepsake/internal/config"
	"github.com/scrypster/keepsake/internal/engine"
	"github.com/scrypster/keepsake/internal/imagecheck"
	"github.com/scrypster/keepsake/internal/server"
	"github.com/scrypster/keepsake/internal/storage"
	"github.com/scrypster/keepsake/internal/storage/local"
	"github.com/scrypster/keepsake/internal/storage/supabase"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file (env vars override it)")
	flag.Parse()

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadConfigFromFile(*configPath)
	} else {
		cfg, err = config.LoadConfig()
	}
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	store, objects, mediaRoot, err := buildBackend(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize storage backend: %v", err)
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Provisioning failure is non-fatal: a missing bucket surfaces later
	// as empty lists, not a crash.
	provisionCtx, provisionCancel := context.WithTimeout(ctx, 30*time.Second)
	if err := objects.EnsureBucket(provisionCtx, cfg.Backend.Bucket); err != nil {
		log.Printf("WARNING: bucket provisioning failed, continuing: %v", err)
	}
	provisionCancel()

	checker := imagecheck.New(cfg.ImageCheck.Timeout)
	reconciler := engine.NewReconciler(store, store, objects, cfg.Backend.Bucket, checker)
	slideshow := engine.NewSlideshow(cfg.Slideshow.Interval, cfg.Slideshow.ShareBaseURL, nil)
	uploader := engine.NewUploader(store, store, objects, cfg.Backend.Bucket, cfg.Upload.MaxBytes)
	resolver := engine.NewResolver(store, store, objects, cfg.Backend.Bucket, checker)

	addr, _ := server.Start(ctx, cfg, server.Options{
		Store:      store,
		Reconciler: reconciler,
		Slideshow:  slideshow,
		Uploader:   uploader,
		Resolver:   resolver,
		MediaRoot:  mediaRoot,
	})
	log.Printf("Keepsake running at http://%s (backend: %s)", addr, cfg.Backend.Engine)

	// Warm the first snapshot so the slideshow has slides before the
	// first request arrives.
	go func() {
		slideshow.BeginRefresh()
		snap, err := reconciler.Reconcile(ctx)
		slideshow.CompleteRefresh(snap, err)
		if err != nil {
			log.Printf("WARNING: initial reconciliation failed: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down gracefully...")
	cancel()
	time.Sleep(1 * time.Second) // Give time for connections to close
}

// buildBackend constructs the configured storage backend. The returned
// media root is non-empty only for the local backend, where the object
// store's files must be served by this process.
func buildBackend(cfg *config.Config) (storage.Store, storage.ObjectStore, string, error) {
	switch cfg.Backend.Engine {
	case "supabase":
		store, err := supabase.New(cfg.Backend.SupabaseURL, cfg.Backend.SupabaseKey)
		if err != nil {
			return nil, nil, "", err
		}
		return store, store.Objects(), "", nil

	case "local":
		if err := os.MkdirAll(cfg.Backend.DataPath, 0o755); err != nil {
			return nil, nil, "", err
		}
		store, err := local.NewStore(filepath.Join(cfg.Backend.DataPath, "keepsake.db"))
		if err != nil {
			return nil, nil, "", err
		}
		baseURL := fmt.Sprintf("http://%s:%d", cfg.Server.Host, cfg.Server.Port)
		objects := local.NewObjectStore(filepath.Join(cfg.Backend.DataPath, "media"), baseURL)
		return store, objects, objects.MediaRoot(), nil

	default:
		return nil, nil, "", fmt.Errorf("unknown backend engine %q", cfg.Backend.Engine)
	}
}
