package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/xiaot623/hookwatch/config"
	"github.com/xiaot623/hookwatch/internal/adapter/kafka"
	"github.com/xiaot623/hookwatch/internal/adapter/translate"
	"github.com/xiaot623/hookwatch/internal/hub"
	"github.com/xiaot623/hookwatch/internal/repository"
	"github.com/xiaot623/hookwatch/internal/service"
	"github.com/xiaot623/hookwatch/internal/settings"
	handler "github.com/xiaot623/hookwatch/internal/transport/http"
	"github.com/xiaot623/hookwatch/internal/transport/rpc"
	"github.com/xiaot623/hookwatch/internal/ws"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	slog.SetDefault(newLogger(cfg))

	slog.Info("Starting hookwatch",
		"http_port", cfg.HTTPPort,
		"rpc_port", cfg.RPCPort,
		"database", cfg.DatabaseURL,
		"settings", cfg.SettingsPath,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize store
	db, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		fatal("Failed to initialize store", err)
	}
	defer db.Close()

	// Load and watch operator settings
	settingsStore, err := settings.NewStore(ctx, cfg.SettingsPath)
	if err != nil {
		fatal("Failed to load settings", err)
	}
	go func() {
		if err := settingsStore.Watch(ctx); err != nil {
			slog.Warn("Settings watcher stopped", "error", err)
		}
	}()

	// Initialize translator (nil when no endpoint is configured)
	translator := translate.NewTranslator(cfg.TranslateURL, cfg.TranslateAPIKey, cfg.TranslateModel, cfg.TranslateTimeout)

	var opts []service.Option
	if len(cfg.KafkaBrokers) > 0 {
		exporter := kafka.NewExporter(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer exporter.Close()
		opts = append(opts, service.WithExporter(exporter))
		slog.Info("Exporting events to Kafka", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	// Initialize viewer hub and service
	h := hub.NewHub(cfg.SendBuffer)
	svc := service.New(db, settingsStore, h, translator, cfg, opts...)

	heartbeat := svc.StartHeartbeat(ctx)
	defer heartbeat.Stop()

	// HTTP server: ingestion, read API and viewer socket
	wsServer := ws.NewServer(cfg, h, svc)
	server := handler.NewServer(svc, h, wsServer)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := server.Start(addr); err != nil && err != http.ErrServerClosed {
			fatal("Failed to start HTTP server", err)
		}
	}()
	slog.Info("HTTP API started", "port", cfg.HTTPPort)

	// Optional JSON-RPC server for hook relays
	var rpcServer *rpc.Server
	if cfg.RPCPort > 0 {
		rpcServer, err = rpc.NewServer(svc)
		if err != nil {
			fatal("Failed to create RPC server", err)
		}
		go func() {
			if err := rpcServer.Start(fmt.Sprintf(":%d", cfg.RPCPort)); err != nil {
				fatal("Failed to start RPC server", err)
			}
		}()
		slog.Info("RPC server started", "port", cfg.RPCPort)
	}

	// Wait for interrupt signal
	<-ctx.Done()
	slog.Info("Shutting down hookwatch...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Failed to shutdown HTTP server gracefully", "error", err)
	}
	if rpcServer != nil {
		if err := rpcServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to shutdown RPC server gracefully", "error", err)
		}
	}

	slog.Info("Hookwatch stopped")
}

// newLogger creates a structured logger from LOG_LEVEL and LOG_FORMAT.
func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func fatal(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}
