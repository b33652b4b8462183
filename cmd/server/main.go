package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tabular-anonymizer/internal/api"
	"tabular-anonymizer/internal/app"
	"tabular-anonymizer/internal/config"
)

var (
	configFile = flag.String("config", "config.yaml", "Configuration file path")
	host       = flag.String("host", "", "Listen host override")
	port       = flag.Int("port", 0, "Listen port override")
	logLevel   = flag.String("log-level", "", "Log level override (debug, info, warn, error)")
	help       = flag.Bool("help", false, "Show help")
)

func main() {
	flag.Parse()

	if *help {
		showHelp()
		return
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if *host != "" {
		cfg.API.Host = *host
	}
	if *port != 0 {
		cfg.API.Port = *port
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	anonymizer, err := app.New(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize anonymizer: %v", err)
	}
	defer anonymizer.Close()

	server := api.NewServer(anonymizer.GetEngine(), anonymizer.GetMetrics(), cfg.API)

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		if err != nil {
			log.Fatalf("API server error: %v", err)
		}
	case <-sigChan:
		log.Println("Shutdown signal received, stopping API server...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Printf("Error stopping API server: %v", err)
		}
	}

	log.Println("API server stopped")
}

func showHelp() {
	fmt.Println(`Tabular Anonymizer - HTTP Server

USAGE:
    anonymizer-server [OPTIONS]

OPTIONS:
    -config string
        Configuration file path (default: config.yaml)

    -host string
        Listen host override

    -port int
        Listen port override

    -log-level string
        Override log level (debug, info, warn, error)

    -help
        Show this help message

ENDPOINTS:

    POST /api/v1/anonymize       Run the full pipeline on a dataset
    POST /api/v1/validate        Anonymize and return per-column verdicts
    GET  /api/v1/health          Liveness and system metrics
    GET  /api/v1/stats           Engine statistics and counters
    GET  /api/v1/config          Effective engine configuration (no salt)
    PUT  /api/v1/config          Update level, diagnosis permission, token length
    DELETE /api/v1/control/clear Reset engine state and counters

    Requests carry the API key in the X-API-Key header (or as a Bearer
    token) when api.api_key is configured.

CONFIGURATION:

    The pseudonymization salt must be set in the config file or via:

        ANONYMIZER_SALT    - HMAC salt for pseudonymization (required)

EXAMPLES:

    # Start with the default config
    ./anonymizer-server

    # Listen on all interfaces, port 9090, verbose logging
    ./anonymizer-server -host 0.0.0.0 -port 9090 -log-level debug`)
}
