package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"tabular-anonymizer/internal/app"
	"tabular-anonymizer/internal/config"
)

var (
	mode       = flag.String("mode", "batch", "Operation mode: batch, server")
	configFile = flag.String("config", "config.yaml", "Configuration file path")
	level      = flag.String("level", "", "Anonymization level override (low, high)")
	allowDx    = flag.Bool("allow-dx", false, "Permit diagnosis columns to pass through")
	purge      = flag.Bool("purge", false, "After the batch, delete source files whose result is PASS")
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

	if *level != "" {
		cfg.Anonymization.Level = *level
	}
	if *allowDx {
		cfg.Anonymization.DiagnosisAllowed = true
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	switch *mode {
	case "batch":
		runBatchMode(cfg)
	case "server":
		runServerMode()
	default:
		log.Fatalf("Unknown mode: %s. Use 'batch' or 'server'", *mode)
	}
}

func runBatchMode(cfg *config.Config) {
	inputs, err := collectInputs(cfg, flag.Args())
	if err != nil {
		log.Fatalf("Failed to collect inputs: %v", err)
	}
	if len(inputs) == 0 {
		log.Fatalf("No CSV files to process. Pass file paths or set app.data_dir in %s", *configFile)
	}

	anonymizer, err := app.New(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize anonymizer: %v", err)
	}
	defer anonymizer.Close()

	summary, err := anonymizer.RunBatch(inputs)
	if err != nil {
		log.Fatalf("Batch failed: %v", err)
	}

	printSummary(summary)

	if *purge {
		purged, err := anonymizer.PurgeSources(summary.Outcomes)
		if err != nil {
			log.Fatalf("Purge failed: %v", err)
		}
		for _, p := range purged {
			fmt.Printf("purged %s\n", p)
		}
	}

	for _, o := range summary.Outcomes {
		if o.Err != nil {
			os.Exit(1)
		}
	}
}

func runServerMode() {
	fmt.Println("For server mode, please use the dedicated server binary:")
	fmt.Println("")
	fmt.Println("  go run cmd/server/main.go -config config.yaml")
	fmt.Println("")
	fmt.Println("The server exposes the anonymization pipeline over HTTP:")
	fmt.Println("  POST /api/v1/anonymize")
	fmt.Println("  POST /api/v1/validate")
	fmt.Println("  GET  /api/v1/health")
	fmt.Println("  GET  /api/v1/stats")
	fmt.Println("")
	os.Exit(1)
}

// collectInputs returns the CSV files to process: explicit arguments when
// given, otherwise every .csv in the configured data directory.
func collectInputs(cfg *config.Config, args []string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	if cfg.App.DataDir == "" {
		return nil, nil
	}
	return filepath.Glob(filepath.Join(cfg.App.DataDir, "*.csv"))
}

func printSummary(summary *app.BatchSummary) {
	fmt.Printf("\nProcessed %d file(s) in %s\n", len(summary.Outcomes), summary.Duration.Round(1e6))
	for _, o := range summary.Outcomes {
		if o.Err != nil {
			fmt.Printf("  %-40s ERROR  %v\n", filepath.Base(o.Input), o.Err)
			continue
		}
		fmt.Printf("  %-40s %-5s  -> %s\n", filepath.Base(o.Input), o.Label, o.Output)
	}
	fmt.Printf("Report: %s\n", summary.ReportPath)
}

func showHelp() {
	fmt.Println(`Tabular Anonymizer - Policy-Driven Tabular De-identification

USAGE:
    anonymizer [OPTIONS] [FILE...]

OPTIONS:
    -mode string
        Operation mode (default: batch)
        • batch:  Anonymize the given CSV files and write artifacts
        • server: Redirect to the dedicated HTTP server binary

    -config string
        Configuration file path (default: config.yaml)

    -level string
        Override the anonymization level (low or high)

    -allow-dx
        Permit diagnosis columns to pass through unchanged

    -purge
        After the batch, delete source files whose result is PASS

    -help
        Show this help message

BATCH MODE:

    Each input CSV produces, next to it or in app.output_dir:
        <name>_anonymized.csv       the anonymized table
        <name>_anonymized_log.json  per-column decision log
        <name>_anonymized_metrics.csv
        <name>_anonymized_privacy.csv

    One row per file is appended to a cumulative report CSV named
    anonymization_report_<level>_<timestamp>.csv.

    Without file arguments, every .csv under app.data_dir is processed.

CONFIGURATION:

    Settings live in a YAML file; a default one is written on first run.
    The pseudonymization salt must be set there or via the environment:

        ANONYMIZER_SALT    - HMAC salt for pseudonymization (required)

EXAMPLES:

    # Anonymize two files at the configured level
    ./anonymizer patients.csv visits.csv

    # High level, diagnosis allowed
    ./anonymizer -level high -allow-dx patients.csv

    # Process everything under app.data_dir and purge PASS inputs
    ./anonymizer -purge`)
}
