package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"warunglink/terminal/internal/cache"
	"warunglink/terminal/internal/config"
	"warunglink/terminal/internal/httpapi"
	"warunglink/terminal/internal/receipt"
	"warunglink/terminal/internal/session"
	"warunglink/terminal/internal/store"
	"warunglink/terminal/internal/store/memory"
	pgstore "warunglink/terminal/internal/store/postgres"
	"warunglink/terminal/internal/upstream"
)

func main() {
	cfg := config.Load()
	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatalf("invalid security configuration: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("postgres unavailable (%v) and DATABASE_URL is set; refusing to start with in-memory fallback", err)
		}
		repo = pg
		closers = append(closers, pg.Close)
		log.Println("repository: postgres")
	} else {
		repo = memory.NewSeeded()
		log.Println("repository: in-memory")
	}

	catalogCache := cache.CatalogCache(cache.NoopCatalogCache{})
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisCatalogCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			log.Printf("redis unavailable (%v), using noop cache", err)
		} else {
			catalogCache = redisCache
			closers = append(closers, redisCache.Close)
			log.Println("cache: redis")
		}
	} else {
		log.Println("cache: noop")
	}

	client := upstream.NewClient(cfg.UpstreamBaseURL, cfg.UpstreamAPIToken, time.Duration(cfg.UpstreamTimeoutSecs)*time.Second)
	sessions := session.NewManager(cfg.ShopID, client, repo, catalogCache, time.Duration(cfg.CatalogTTLSeconds)*time.Second)

	renderer := receipt.NewRenderer(cfg.CurrencySymbol)
	surfaces := receipt.SpoolFactory(cfg.SpoolDir)
	if cfg.PrintCommand != "" {
		parts := strings.Fields(cfg.PrintCommand)
		surfaces = receipt.PipeFactory(parts[0], parts[1:]...)
		log.Printf("print surface: command %q", cfg.PrintCommand)
	} else {
		log.Printf("print surface: spool dir %s", cfg.SpoolDir)
	}
	printer := receipt.NewPrinter(surfaces)

	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, repo)
	api := httpapi.New(sessions, renderer, printer, auth, cfg.ShopName, cfg.AllowedOrigin)

	// Warm the catalog so the first sale does not pay the fetch latency.
	// Failure is fine; the first catalog request retries.
	if _, err := sessions.RefreshCatalog(ctx); err != nil {
		log.Printf("catalog warmup failed: %v", err)
	}

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("terminal daemon listening on %s (shop %d)", cfg.Address(), cfg.ShopID)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Printf("close error: %v", err)
		}
	}

	log.Println("terminal daemon stopped")
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if cfg.UpstreamBaseURL == "" {
		return fmt.Errorf("UPSTREAM_BASE_URL must be set")
	}
	return nil
}
