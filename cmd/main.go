package main

import (
	"bytes"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"

	"leadscraper/internal/config"
	"leadscraper/internal/core/export"
	"leadscraper/internal/core/scrape"
	"leadscraper/internal/core/stream"
	"leadscraper/internal/housekeeping"
	"leadscraper/internal/logger"
	"leadscraper/internal/platform/apify"
	"leadscraper/internal/server"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	log.Printf("[leadscraper] starting at %s (env=%s)\n", cfg.HTTPAddr, cfg.AppEnv)

	// Initialize logger
	logr := logger.New("main")

	// Provider client
	provider := apify.New(cfg)
	if !provider.Configured() {
		logr.LogWarn("APIFY_API_TOKEN not set, scrape submissions will fail upstream")
	}

	// Core services
	store := scrape.NewStore()
	scrapeSvc := scrape.NewService(store, provider, cfg)
	streamSvc := stream.NewService(store, cfg.StreamPollInterval)
	exportSvc := export.NewService(store, cfg.DefaultCountryCode)

	// Expired-job sweeper
	sweeper := housekeeping.NewSweeper(store, cfg.JobRetention)
	if err := sweeper.Start(); err != nil {
		log.Fatalf("failed to start sweeper: %v", err)
	}

	// HTTP server
	app := fiber.New(fiber.Config{
		AppName: "Lead Scraper Engine",
		JSONEncoder: func(v interface{}) ([]byte, error) {
			var buf bytes.Buffer
			encoder := json.NewEncoder(&buf)
			encoder.SetEscapeHTML(false)
			if err := encoder.Encode(v); err != nil {
				return nil, err
			}
			return buf.Bytes(), nil
		},
	})

	// Register routes with health handler
	deps := server.Dependencies{
		Scrape:   scrapeSvc,
		Store:    store,
		Stream:   streamSvc,
		Export:   exportSvc,
		Provider: provider,
	}
	healthHandler := server.RegisterRoutes(app, deps)

	// Mark application as ready after all services are initialized
	go func() {
		time.Sleep(2 * time.Second)
		healthHandler.SetReady()
	}()

	// Graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-shutdown
		logr.LogInfo("Shutting down...")
		sweeper.Stop()
		_ = app.ShutdownWithTimeout(5 * time.Second)
	}()

	if err := app.Listen(cfg.HTTPAddr); err != nil {
		log.Fatalf("server listen: %v", err)
	}
}
