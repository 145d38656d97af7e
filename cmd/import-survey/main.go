package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/roadwatch/pavement/internal/config"
	"github.com/roadwatch/pavement/internal/db"
	"github.com/roadwatch/pavement/internal/ingest"
	"github.com/roadwatch/pavement/internal/report"
	"github.com/roadwatch/pavement/internal/store"
)

func main() {
	_ = godotenv.Load("../../.env")
	_ = godotenv.Overload("../../.env.local")
	cfg := config.Load()

	// Command line flags
	dbPath := flag.String("db", cfg.DatabasePath, "Path to SQLite database")
	csvPath := flag.String("csv", cfg.SurveySource, "Survey CSV file or http(s) URL")
	layoutName := flag.String("layout", cfg.SurveyLayout, "Built-in column layout name")
	layoutFile := flag.String("layout-file", cfg.SurveyLayoutFile, "JSON column layout, overrides -layout")
	retention := flag.Int("retention", cfg.DatasetRetention, "Datasets kept in the database (0 keeps all)")
	printReport := flag.Bool("report", false, "Print the condition report as JSON to stdout")
	flag.Parse()

	cfg.SurveyLayout = *layoutName
	cfg.SurveyLayoutFile = *layoutFile

	limits, err := cfg.Limits()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	layout, err := cfg.Layout()
	if err != nil {
		log.Fatalf("Invalid survey layout: %v", err)
	}

	source := *csvPath
	if abs, err := filepath.Abs(source); err == nil {
		if _, statErr := os.Stat(abs); statErr == nil {
			source = abs
		}
	}

	// Initialize database
	database, err := db.Connect(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer database.Close()
	log.Printf("Connected to database: %s", *dbPath)

	ctx := context.Background()
	if err := database.EnsureSchema(ctx); err != nil {
		log.Fatalf("Failed to ensure schema: %v", err)
	}

	// Parse and classify through the same loader the API uses
	st, writer := store.New()
	loader := ingest.NewLoader(st, writer, ingest.Options{
		Source:  source,
		Layout:  layout,
		Limits:  limits,
		Timeout: cfg.FetchTimeout,
	})
	ds, _, err := loader.Load(ctx)
	if err != nil {
		log.Fatalf("Failed to load survey: %v", err)
	}

	if err := database.SaveDataset(ctx, ds); err != nil {
		log.Fatalf("Failed to save survey: %v", err)
	}
	log.Printf("SUCCESS: imported %d records from %s as dataset %s", len(ds.Records), source, ds.ID)

	if *retention > 0 {
		removed, err := database.PruneDatasets(ctx, *retention)
		if err != nil {
			log.Printf("Warning: failed to prune old datasets: %v", err)
		} else if removed > 0 {
			log.Printf("Pruned %d old datasets", removed)
		}
	}

	if *printReport {
		rep := report.Generate(ds.Records, limits, report.Options{
			TrendSize: cfg.TrendSize,
			Lane:      ds.PrimaryLane,
		})
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rep); err != nil {
			log.Fatalf("Failed to write report: %v", err)
		}
	}
}
