package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/yegors/webchat/internal/api"
	"github.com/yegors/webchat/internal/chat"
	"github.com/yegors/webchat/internal/config"
	"github.com/yegors/webchat/internal/leads"
	"github.com/yegors/webchat/internal/session"
	"github.com/yegors/webchat/internal/storage/sqlite"
	"github.com/yegors/webchat/internal/websocket"
	"github.com/yegors/webchat/pkg/logger"
)

var (
	// Version is injected at build time
	Version = "dev"
)

func main() {
	// Load .env before config so env overrides can come from it
	_ = godotenv.Load()

	configPath := flag.String("config", "", "Path to configuration file (optional - will search in configs/ and root directory)")
	resume := flag.Bool("resume", false, "Resume a stored session on startup instead of waiting for the widget")
	flag.Parse()

	cfg, err := config.LoadWithFallback(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting webchat",
		logger.String("version", Version),
		logger.String("socket_url", cfg.Chat.SocketURL),
	)

	// Session persistence
	store, err := sqlite.NewKVStore(cfg.Storage.SQLitePath, log)
	if err != nil {
		log.Error("Failed to create storage", logger.Error(err))
		os.Exit(1)
	}
	defer store.Close()

	// UI event stream
	wsServer := websocket.NewServer(log)
	go wsServer.Run()
	uiBridge := api.NewUIBridge(wsServer)

	// Lead and callback submission (optional)
	var leadSubmitter chat.LeadSubmitter
	var callbackSubmitter chat.CallbackSubmitter
	if cfg.Leads.Enabled {
		client := leads.NewClient(cfg.Leads, log)
		leadSubmitter = client
		callbackSubmitter = client
		log.Info("Lead submission enabled", logger.String("base_url", cfg.Leads.BaseURL))
	}

	// Chat session engine
	state := session.NewState()
	timers := session.NewRegistry()
	transport := chat.NewTransport(state, timers, store, chat.TransportConfig{
		PingInterval:  time.Duration(cfg.Chat.PingIntervalSecs) * time.Second,
		RetryInterval: time.Duration(cfg.Chat.RetryIntervalSecs) * time.Second,
		MaxRetries:    cfg.Chat.MaxRetries,
	}, log)
	orchestrator := chat.NewOrchestrator(state, timers, transport, store,
		leadSubmitter, uiBridge, cfg.Chat, cfg.Notices, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *resume {
		if err := orchestrator.ResumeFromStorage(ctx); err != nil {
			log.Warn("No session to resume", logger.Error(err))
		} else if err := orchestrator.Start(ctx, nil); err != nil {
			log.Error("Failed to reconnect resumed session", logger.Error(err))
		}
	}

	// HTTP surface
	handler := api.NewHandler(orchestrator, state, cfg, wsServer, callbackSubmitter, log)
	router := api.NewRouter(handler, cfg, log)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router.Routes(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSecs) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSecs) * time.Second,
	}

	go func() {
		log.Info("Starting HTTP server", logger.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", logger.Error(err))
		}
	}()

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("Shutting down...")

	// End the chat cleanly so the backend releases the session
	if state.Phase() != session.PhaseIdle && state.Phase() != session.PhaseEnded {
		orchestrator.Quit(context.Background())
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", logger.Error(err))
	}

	log.Info("Server fully stopped")
}
