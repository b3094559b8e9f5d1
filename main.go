package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"serp-go/internal/app"
	"serp-go/internal/config"
	"serp-go/pkg/serp"
	"serp-go/pkg/tracker"
)

// getEnvOrDefault returns environment variable value or default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvIntOrDefault returns environment variable as int or default
func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvBoolOrDefault returns environment variable as bool or default
func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func main() {
	var (
		configPath = flag.String("config", getEnvOrDefault("SERP_CONFIG", ""), "Configuration file path (env: SERP_CONFIG)")
		keywords   = flag.String("keywords", getEnvOrDefault("SERP_KEYWORDS", ""), "Comma-separated keywords to track (env: SERP_KEYWORDS)")
		domain     = flag.String("domain", getEnvOrDefault("SERP_TARGET_DOMAIN", ""), "Domain whose position is reported (env: SERP_TARGET_DOMAIN)")
		workers    = flag.Int("workers", getEnvIntOrDefault("SERP_WORKERS", 0), "Concurrent SERP requests, 0 keeps the config value (env: SERP_WORKERS)")
		limit      = flag.Int("limit", getEnvIntOrDefault("SERP_HISTORY_LIMIT", 0), "Snapshots used for the volatility report, 0 keeps the config value (env: SERP_HISTORY_LIMIT)")
		timeout    = flag.Duration("timeout", 30*time.Minute, "Overall run timeout")
		debug      = flag.Bool("debug", getEnvBoolOrDefault("DEBUG", false), "Enable debug logging (env: DEBUG)")
		help       = flag.Bool("help", false, "Show help message")
	)
	flag.Parse()

	if *help {
		printUsage()
		return
	}

	keywordList := splitKeywords(*keywords)
	if len(keywordList) == 0 {
		fmt.Println("ERROR: At least one keyword is required.")
		fmt.Println("Use -keywords flag or SERP_KEYWORDS environment variable.")
		fmt.Println("")
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.NewManager().Load(*configPath)
	if err != nil {
		fmt.Printf("ERROR: %v\n", err)
		os.Exit(1)
	}
	if *workers > 0 {
		cfg.Tracker.Workers = *workers
	}
	if *limit > 0 {
		cfg.Tracker.HistoryLimit = *limit
	}

	log := app.NewLogger(cfg.Logger, *debug).WithField("component", "main")

	components, err := app.Build(cfg)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize")
	}
	defer func() {
		if err := components.Close(); err != nil {
			log.WithError(err).Warn("Failed to close storage cleanly")
		}
	}()
	if !components.Tracker.CanFetch() {
		fmt.Println("ERROR: DataForSEO credentials are required to track keywords.")
		fmt.Println("Set SERP_DATAFORSEO_LOGIN and SERP_DATAFORSEO_PASSWORD or use a config file.")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	startTime := time.Now()

	results, err := components.Tracker.TrackAll(ctx, keywordList, *domain)
	if err != nil {
		log.WithError(err).Fatal("Tracking failed")
	}

	fmt.Printf("\n=== SERP Tracking Results ===\n")
	failed := 0
	for _, result := range results {
		if result.Error != "" {
			failed++
			fmt.Printf("FAILED  %s\n   Error: %s\n", result.Keyword, result.Error)
			continue
		}
		printResult(result, *domain)

		report, err := components.Tracker.Volatility(ctx, result.Keyword, cfg.Tracker.HistoryLimit)
		if err != nil {
			fmt.Printf("   Volatility: unavailable (%v)\n", err)
			continue
		}
		printVolatility(report)
	}

	fmt.Printf("\nKeywords: %d, failed: %d, duration: %s\n", len(results), failed, time.Since(startTime).Round(time.Millisecond))
	if failed > 0 {
		_ = components.Close()
		os.Exit(2)
	}
}

func splitKeywords(raw string) []string {
	var keywords []string
	for _, keyword := range strings.Split(raw, ",") {
		if keyword = strings.TrimSpace(keyword); keyword != "" {
			keywords = append(keywords, keyword)
		}
	}
	return keywords
}

func printResult(result tracker.Result, domain string) {
	fmt.Printf("OK      %s (captured %s)\n", result.Keyword, result.CapturedAt.Format(time.RFC3339))

	if domain != "" {
		metrics := result.Metrics
		fmt.Printf("   %s: position %s, CTR %s, traffic %s, visibility %s\n",
			domain,
			formatOption(metrics.Position, "%d"),
			formatOption(metrics.EstimatedCTR, "%.3f"),
			formatOption(metrics.EstimatedTraffic, "%d"),
			formatOption(metrics.VisibilityScore, "%d"))
	}

	comparison := result.Comparison
	if comparison == nil {
		fmt.Printf("   First snapshot, nothing to compare\n")
		return
	}

	moved := comparison.MovedOnly()
	fmt.Printf("   Changes: %d new, %d lost, %d moved, volatility %.2f, avg move %.2f\n",
		len(comparison.NewDomains), len(comparison.LostDomains), len(moved),
		comparison.VolatilityScore, comparison.AveragePositionChange)
	for _, change := range moved[:min(len(moved), 5)] {
		fmt.Printf("     %-6s %s %d -> %d\n", change.Direction, change.Domain, change.OldPosition, change.NewPosition)
	}
}

func printVolatility(report serp.VolatilityReport) {
	if len(report.Comparisons) == 0 {
		return
	}
	fmt.Printf("   Volatility over %d comparisons: avg %.2f, min %.2f, max %.2f, trend %s\n",
		len(report.Comparisons), report.AverageVolatility, report.MinVolatility, report.MaxVolatility, report.Trend)
}

func formatOption[T any](value serp.Option[T], format string) string {
	v, ok := value.Get()
	if !ok {
		return "n/a"
	}
	return fmt.Sprintf(format, v)
}

func printUsage() {
	fmt.Println("serp-go SERP tracker")
	fmt.Println("")
	fmt.Println("USAGE:")
	fmt.Println("    ./serp-go -keywords \"running shoes,trail shoes\" -domain example.com [OPTIONS]")
	fmt.Println("    ./serp-go  # Uses environment variables")
	fmt.Println("")
	fmt.Println("OPTIONS:")
	fmt.Println("    -config string     Configuration file (env: SERP_CONFIG)")
	fmt.Println("    -keywords string   Comma-separated keywords (env: SERP_KEYWORDS)")
	fmt.Println("    -domain string     Domain to report positions for (env: SERP_TARGET_DOMAIN)")
	fmt.Println("    -workers int       Concurrent SERP requests (env: SERP_WORKERS)")
	fmt.Println("    -limit int         Snapshots in the volatility report (env: SERP_HISTORY_LIMIT)")
	fmt.Println("    -timeout duration  Overall run timeout (default 30m)")
	fmt.Println("    -debug             Enable debug logging (env: DEBUG)")
	fmt.Println("    -help              Show this help message")
	fmt.Println("")
	fmt.Println("CREDENTIALS:")
	fmt.Println("    SERP_DATAFORSEO_LOGIN      DataForSEO API login")
	fmt.Println("    SERP_DATAFORSEO_PASSWORD   DataForSEO API password")
	fmt.Println("")
	fmt.Println("STORAGE:")
	fmt.Println("    SERP_STORAGE_DRIVER=file SERP_STORAGE_DATA_DIR=data keeps history between runs.")
	fmt.Println("    SERP_STORAGE_ENCRYPT_DATA=true requires SERP_SECURITY_ENCRYPTION_KEY (16+ characters).")
}
