// ArquivaDoc Server
//
// Features:
// - Prometheus metrics & structured logging (zap)
// - Document upload pipeline: compression, folder resolution, remote store
// - PostgreSQL document metadata
// - Google Drive remote store with pluggable credentials
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/arquivadoc/arquivadoc/internal/api"
	"github.com/arquivadoc/arquivadoc/internal/compress"
	"github.com/arquivadoc/arquivadoc/internal/config"
	"github.com/arquivadoc/arquivadoc/internal/docs"
	"github.com/arquivadoc/arquivadoc/internal/logging"
	"github.com/arquivadoc/arquivadoc/internal/metrics"
	"github.com/arquivadoc/arquivadoc/internal/remotestore"
	"github.com/arquivadoc/arquivadoc/internal/upload"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Can't use structured logging yet
		panic("configuration error: " + err.Error())
	}

	if err := logging.Init(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	}); err != nil {
		panic("logging init error: " + err.Error())
	}
	defer logging.Sync()

	logging.Info("ArquivaDoc server starting...",
		zap.String("listen", cfg.ListenAddr),
		zap.String("metrics", cfg.MetricsAddr))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// PostgreSQL
	logging.Info("connecting to PostgreSQL...")
	store, err := docs.New(cfg.DatabaseURL)
	if err != nil {
		logging.Fatal("database connection failed", zap.Error(err))
	}
	defer store.Close()

	if dir := findMigrationsDir(); dir != "" {
		logging.Info("running migrations...", zap.String("dir", dir))
		if err := store.Migrate(dir); err != nil {
			logging.Fatal("migration failed", zap.Error(err))
		}
	}

	// Remote store client
	client, err := remotestore.NewDriveClient(ctx, driveCredentials(cfg))
	if err != nil {
		logging.Fatal("drive client init failed", zap.Error(err))
	}
	logging.Info("remote store client initialized")

	// Upload pipeline
	cache := remotestore.NewFolderCache()
	resolver := remotestore.NewResolver(client, cache)
	pipeline := compress.New(compress.Options{
		Threshold:    cfg.CompressThreshold,
		Budget:       cfg.PreviewBudget,
		MaxImageDim:  cfg.MaxImageDim,
		ImageQuality: cfg.ImageQuality,
		TempDir:      cfg.TempDir,
	}, compress.NewGhostscript(cfg.GhostscriptBin, cfg.ToolTimeout))
	orchestrator := upload.New(client, resolver, pipeline)

	// Metrics endpoint on its own listener
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		logging.Info("metrics server listening", zap.String("addr", cfg.MetricsAddr))
		if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil && err != http.ErrServerClosed {
			logging.Error("metrics server failed", zap.Error(err))
		}
	}()

	// Periodic DB metrics
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				store.UpdateConnectionMetrics()
			}
		}
	}()

	server := api.NewServer(store, orchestrator, cfg)
	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logging.Info("HTTP server listening", zap.String("addr", cfg.ListenAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logging.Info("shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logging.Error("shutdown error", zap.Error(err))
	}
	logging.Info("server stopped")
}

// driveCredentials picks the credential strategy from configuration: a
// service-account key file when present, a refresh token otherwise.
func driveCredentials(cfg *config.Config) remotestore.Credentials {
	if cfg.DriveCredentialsFile != "" {
		return remotestore.ServiceAccountCredentials{KeyFile: cfg.DriveCredentialsFile}
	}
	return remotestore.RefreshTokenCredentials{
		ClientID:     cfg.DriveClientID,
		ClientSecret: cfg.DriveClientSecret,
		RefreshToken: cfg.DriveRefreshToken,
	}
}

// findMigrationsDir looks for the migrations directory next to the binary
// and in the working directory.
func findMigrationsDir() string {
	candidates := []string{"migrations"}
	if exe, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(exe), "migrations"))
	}
	for _, dir := range candidates {
		if fi, err := os.Stat(dir); err == nil && fi.IsDir() {
			return dir
		}
	}
	return ""
}
