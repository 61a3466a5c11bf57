// Package server provides HTTP server initialization and lifecycle management
// for the Keepsake web API.
package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/scrypster/keepsake/internal/config"
	"github.com/scrypster/keepsake/internal/engine"
	"github.com/scrypster/keepsake/internal/storage"
	"github.com/scrypster/keepsake/web/handlers"
)

// Options carries the wired components the server routes to.
type Options struct {
	Store      storage.Store
	Reconciler *engine.Reconciler
	Slideshow  *engine.Slideshow
	Uploader   *engine.Uploader
	Resolver   *engine.Resolver

	// MediaRoot, when non-empty, mounts the local object store's files
	// under /media/ so their public URLs resolve.
	MediaRoot string
}

// Start initializes and starts the HTTP server. It returns the actual
// address being listened on (useful for testing with port 0) and the
// WebSocket hub for wiring broadcasts. The server shuts down gracefully
// when ctx is cancelled.
func Start(ctx context.Context, cfg *config.Config, opts Options) (string, *handlers.WebSocketHub) {
	mux := http.NewServeMux()

	wsHub := handlers.NewWebSocketHub(cfg.Server.Host, cfg.Server.Port)
	go wsHub.Run()

	// Slideshow state changes and fresh snapshots go out over the hub.
	opts.Reconciler.OnRefresh(wsHub.BroadcastMemories)
	opts.Slideshow.SetOnChange(wsHub.BroadcastSlideshow)

	rateLimiter := handlers.NewRateLimiter(10.0, 20)

	apiHandlers := handlers.NewAPIHandlers(cfg, opts.Store, opts.Reconciler, opts.Slideshow, opts.Uploader, opts.Resolver)
	slideshowHandlers := handlers.NewSlideshowHandlers(opts.Slideshow)

	apiMux := http.NewServeMux()
	apiMux.HandleFunc("/api/memories", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			apiHandlers.ListMemories(w, r)
		case http.MethodPost:
			apiHandlers.CreateMemory(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	apiMux.HandleFunc("/api/memories/{id}", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPatch:
			apiHandlers.UpdateMemory(w, r)
		case http.MethodDelete:
			apiHandlers.DeleteMemory(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	apiMux.HandleFunc("POST /api/memories/{id}/resolve-image", apiHandlers.ResolveImage)
	apiMux.HandleFunc("POST /api/upload", apiHandlers.Upload)
	apiMux.HandleFunc("GET /api/slideshow", slideshowHandlers.GetState)
	apiMux.HandleFunc("GET /api/slideshow/download", slideshowHandlers.Download)
	apiMux.HandleFunc("POST /api/slideshow/{action}", slideshowHandlers.Action)
	apiMux.HandleFunc("/api/notes", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			apiHandlers.ListNotes(w, r)
		case http.MethodPost:
			apiHandlers.CreateNote(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	apiMux.HandleFunc("DELETE /api/notes/{id}", apiHandlers.DeleteNote)
	apiMux.HandleFunc("GET /api/countdown", apiHandlers.Countdown)

	mux.HandleFunc("GET /api/health", apiHandlers.Health)

	// Wrap API routes with auth middleware
	mux.Handle("/api/", handlers.RequireAuth(apiMux, cfg))

	// WebSocket endpoint (no auth required - origin validation handles security)
	mux.Handle("/ws", wsHub)

	// Local backend: serve the object store's files so public URLs resolve.
	if opts.MediaRoot != "" {
		fs := http.FileServer(http.Dir(opts.MediaRoot))
		mux.Handle("/media/", http.StripPrefix("/media/", fs))
	}

	// Wrap entire server with rate limiting, then security headers
	handler := handlers.RateLimitMiddleware(mux, rateLimiter)
	handler = handlers.SecurityHeaders(handler)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		log.Fatalf("Failed to listen on %s: %v", addr, err)
	}

	actualAddr := listener.Addr().String()

	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Printf("Server error: %v", err)
		}
	}()

	// Autoplay ticker runs for the lifetime of the server.
	go opts.Slideshow.Run(ctx)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
		wsHub.Stop()
	}()

	log.Printf("Keepsake web API listening on %s", actualAddr)
	return actualAddr, wsHub
}
