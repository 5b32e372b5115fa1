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
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"github.com/cid-kageno-dev/Personal-AI/internal/adapter/llm"
	"github.com/cid-kageno-dev/Personal-AI/internal/config"
	"github.com/cid-kageno-dev/Personal-AI/internal/live"
	"github.com/cid-kageno-dev/Personal-AI/internal/metrics"
	"github.com/cid-kageno-dev/Personal-AI/internal/persona"
	"github.com/cid-kageno-dev/Personal-AI/internal/repository"
	"github.com/cid-kageno-dev/Personal-AI/internal/service"
	"github.com/cid-kageno-dev/Personal-AI/internal/state"
	handler "github.com/cid-kageno-dev/Personal-AI/internal/transport/http"
	"github.com/cid-kageno-dev/Personal-AI/internal/transport/ws"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	config.SetupLogging(cfg.Logging)

	logrus.WithFields(logrus.Fields{
		"port":     cfg.HTTPPort,
		"database": cfg.DatabaseURL,
		"provider": cfg.LLM.Provider,
		"model":    cfg.Live.Model,
	}).Info("Starting persona chat")

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Initialize store
	db, err := repository.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		logrus.Fatalf("Failed to initialize store: %v", err)
	}
	defer db.Close()

	// Load personalities
	catalog := persona.NewCatalog(db)
	personalities, err := catalog.Load(ctx)
	if err != nil {
		logrus.Fatalf("Failed to load personalities: %v", err)
	}
	appState := state.New(personalities)
	go appState.Run(ctx)

	// Initialize admission policy
	policy, err := persona.NewPolicy(ctx, readPolicy(cfg.Persona.PolicyFile), persona.Limits{
		MaxInstruction: cfg.Persona.MaxInstruction,
		MaxStarters:    cfg.Persona.MaxStarters,
		MaxCustom:      cfg.Persona.MaxCustom,
	})
	if err != nil {
		logrus.Fatalf("Failed to initialize persona policy: %v", err)
	}

	// Initialize metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(reg)
	m.SetCustomPersonas(len(persona.Custom(personalities)))

	// Initialize LLM client
	llmClient := llm.NewClient(llm.Options{
		Provider: cfg.LLM.Provider,
		BaseURL:  cfg.LLM.BaseURL,
		APIKey:   cfg.LLM.APIKey,
		Model:    cfg.LLM.Model,
		Timeout:  cfg.LLM.Timeout,
	})

	// Initialize service
	manager := live.NewManager()
	dialer := live.NewGeminiDialer(cfg.Live.URL, cfg.LLM.APIKey)
	svc := service.New(appState, llmClient, catalog, persona.NewBuilder(), policy, manager, dialer, m, cfg)

	// Initialize websocket bridge
	connectionHub := ws.NewHub(m)
	go connectionHub.Run(ctx)
	wsServer := ws.NewServer(cfg.WS, connectionHub, svc)
	wsServer.Forward(ctx)

	server := handler.NewServer(svc, reg, wsServer)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := server.Start(addr); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("Failed to start server: %v", err)
		}
	}()

	logrus.Infof("API started on port %d", cfg.HTTPPort)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down persona chat...")

	if manager.Stop() {
		logrus.Info("Live session stopped")
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logrus.Warnf("Failed to shutdown server gracefully: %v", err)
	}
	stop()

	logrus.Info("Persona chat stopped")
}

// readPolicy returns the admission policy source, or "" for the built-in one.
func readPolicy(path string) string {
	if path == "" {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		logrus.Fatalf("Failed to read policy file %s: %v", path, err)
	}
	return string(data)
}
