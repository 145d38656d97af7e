package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/roadwatch/pavement/internal/classify"
	"github.com/roadwatch/pavement/internal/survey"
)

// Config holds all configuration for the survey service
type Config struct {
	// HTTP
	Port           string
	AllowedOrigins []string

	// Database
	DatabasePath     string
	PostgresURL      string // optional report archive
	DatasetRetention int    // dataset snapshots kept in SQLite

	// Survey source
	SurveySource     string // http(s) URL or file path
	SurveyLayout     string // built-in layout name
	SurveyLayoutFile string // JSON layout, overrides SurveyLayout
	ReloadInterval   time.Duration
	FetchTimeout     time.Duration

	// Classification
	RoughnessLimit float64
	RuttingLimit   float64
	CrackingLimit  float64
	RavellingLimit float64
	WarningRatio   float64
	UseRowLimit    bool

	// Reporting
	TrendSize int

	// Playback
	MarkerEase         time.Duration
	SessionIdleTimeout time.Duration
}

// Load reads configuration from environment variables with sensible defaults
func Load() *Config {
	return &Config{
		// HTTP
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: getEnvList("ALLOWED_ORIGINS", []string{"http://localhost:5173"}),

		// Database
		DatabasePath:     getEnv("SQLITE_DATABASE", "../../data/survey.db"),
		PostgresURL:      getEnv("DATABASE_URL", ""),
		DatasetRetention: getEnvInt("DATASET_RETENTION", 5),

		// Survey source
		SurveySource:     getEnv("SURVEY_SOURCE", "../../data/survey.csv"),
		SurveyLayout:     getEnv("SURVEY_LAYOUT", survey.LayoutNameL2),
		SurveyLayoutFile: getEnv("SURVEY_LAYOUT_FILE", ""),
		ReloadInterval:   time.Duration(getEnvInt("RELOAD_INTERVAL_MINUTES", 0)) * time.Minute,
		FetchTimeout:     time.Duration(getEnvInt("FETCH_TIMEOUT_SECONDS", 30)) * time.Second,

		// Classification
		RoughnessLimit: getEnvFloat("ROUGHNESS_LIMIT", 2400),
		RuttingLimit:   getEnvFloat("RUTTING_LIMIT", 5),
		CrackingLimit:  getEnvFloat("CRACKING_LIMIT", 1),
		RavellingLimit: getEnvFloat("RAVELLING_LIMIT", 1),
		WarningRatio:   getEnvFloat("WARNING_RATIO", 0.8),
		UseRowLimit:    getEnvBool("USE_ROW_ROUGHNESS_LIMIT", false),

		// Reporting
		TrendSize: getEnvInt("REPORT_TREND_SIZE", 50),

		// Playback
		MarkerEase:         time.Duration(getEnvInt("MARKER_EASE_MS", 500)) * time.Millisecond,
		SessionIdleTimeout: time.Duration(getEnvInt("SESSION_IDLE_MINUTES", 30)) * time.Minute,
	}
}

// Limits returns the classification limits, validated
func (c *Config) Limits() (classify.Limits, error) {
	limits := classify.Limits{
		Roughness:    c.RoughnessLimit,
		Rutting:      c.RuttingLimit,
		Cracking:     c.CrackingLimit,
		Ravelling:    c.RavellingLimit,
		WarningRatio: c.WarningRatio,
		UseRowLimit:  c.UseRowLimit,
	}
	if err := limits.Validate(); err != nil {
		return classify.Limits{}, fmt.Errorf("invalid classification limits: %w", err)
	}
	return limits, nil
}

// Layout resolves the configured column layout. Overlapping cells are
// logged, not rejected, since the roadmap layout has them.
func (c *Config) Layout() (survey.Layout, error) {
	var (
		layout survey.Layout
		err    error
	)
	if c.SurveyLayoutFile != "" {
		layout, err = survey.LoadLayoutFile(c.SurveyLayoutFile)
	} else {
		layout, err = survey.LookupLayout(c.SurveyLayout)
	}
	if err != nil {
		return survey.Layout{}, err
	}

	for _, overlap := range layout.Overlaps() {
		log.Printf("Warning: layout %s v%d reads %s", layout.Name, layout.Version, overlap)
	}
	return layout, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
		log.Printf("Warning: ignoring %s=%q, not an integer", key, value)
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
		log.Printf("Warning: ignoring %s=%q, not a number", key, value)
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
		log.Printf("Warning: ignoring %s=%q, not a boolean", key, value)
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
