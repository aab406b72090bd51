package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"allinattendees/internal/enricher"
	"allinattendees/pkg/auth"
	"allinattendees/pkg/checkpoint"
	"allinattendees/pkg/collector"
	"allinattendees/pkg/config"
	"allinattendees/pkg/export"
	"allinattendees/pkg/logger"
	"allinattendees/pkg/retry"
	"allinattendees/pkg/store"
	"allinattendees/pkg/swapcard"
)

var (
	// Scrape command flags
	bearerToken  string
	eventID      string
	viewID       string
	outputDir    string
	maxPages     int
	workers      int
	noCheckpoint bool
	runEnrich    bool
	runSync      bool
)

// scrapeCmd represents the scrape command
var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Collect the attendee directory of the configured event",
	Long: `Walk the event's people listing page by page and collect every
attendee record exactly once.

This command requires a valid bearer token, configured through:
  - Stored credentials (use 'allinattendees auth login' to store)
  - The ALLIN_BEARER_TOKEN environment variable
  - Configuration file

Results are written as timestamped JSON and CSV artifacts under the
output directory. A checkpoint is saved every few pages so a crashed or
aborted run leaves its partial results behind.`,
	Example: `  # Collect using configured event and stored token
  allinattendees scrape

  # Collect into a specific directory with a page cap
  allinattendees scrape --output ./data --max-pages 50

  # Collect, then fetch per-attendee details and sync to the local store
  allinattendees scrape --enrich --sync`,
	Args: cobra.NoArgs,
	Run:  runScrape,
}

func init() {
	rootCmd.AddCommand(scrapeCmd)

	scrapeCmd.Flags().StringVar(&bearerToken, "bearer-token", "", "bearer token for the event platform")
	scrapeCmd.Flags().StringVar(&eventID, "event-id", "", "event id to scrape")
	scrapeCmd.Flags().StringVar(&viewID, "view-id", "", "people list view id")
	scrapeCmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory for artifacts (default: ./data)")
	scrapeCmd.Flags().IntVar(&maxPages, "max-pages", 0, "safety limit on total pages fetched")
	scrapeCmd.Flags().IntVar(&workers, "workers", 0, "enrichment worker count")
	scrapeCmd.Flags().BoolVar(&noCheckpoint, "no-checkpoint", false, "disable periodic checkpoints")
	scrapeCmd.Flags().BoolVar(&runEnrich, "enrich", false, "fetch per-attendee details after collection")
	scrapeCmd.Flags().BoolVar(&runSync, "sync", false, "upsert collected records into the local store")
}

// commandFlags builds the flag override map handed to config.Load.
func commandFlags() map[string]interface{} {
	flags := make(map[string]interface{})
	if bearerToken != "" {
		flags["bearer-token"] = bearerToken
	}
	if eventID != "" {
		flags["event-id"] = eventID
	}
	if viewID != "" {
		flags["view-id"] = viewID
	}
	if outputDir != "" {
		flags["output"] = outputDir
	}
	if maxPages > 0 {
		flags["max-pages"] = maxPages
	}
	if workers > 0 {
		flags["workers"] = workers
	}
	if logLevel != "info" {
		flags["log-level"] = logLevel
	}
	return flags
}

// resolveToken fills in the bearer token from the credential manager
// when neither flags, environment, nor config provided one.
func resolveToken(cfg *config.Config, log logger.Logger) {
	if cfg.Swapcard.BearerToken != "" {
		return
	}

	credManager, err := auth.NewManager()
	if err != nil {
		return
	}

	var cred *auth.Credential
	if cfg.Swapcard.EventSlug != "" {
		cred, _ = credManager.Retrieve(cfg.Swapcard.EventSlug)
	}
	if cred == nil {
		cred, _ = credManager.RetrieveDefault()
	}
	if cred == nil {
		return
	}

	cfg.Swapcard.BearerToken = cred.BearerToken
	if cred.UserAgent != "" {
		cfg.Swapcard.UserAgent = cred.UserAgent
	}
	log.WithField("event", cred.EventSlug).Info("Using stored credentials")
}

func runScrape(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(configFile, commandFlags())
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load configuration:", err)
		os.Exit(1)
	}

	if err := logger.Initialize(logger.Options{Level: cfg.Logging.Level, File: cfg.Logging.File}); err != nil {
		fmt.Fprintln(os.Stderr, "Failed to initialize logger:", err)
		os.Exit(1)
	}
	log := logger.GetLogger()
	log.WithField("version", version).Info("Attendee scraper starting")

	if err := cfg.ValidateUpstream(); err != nil {
		fmt.Fprintln(os.Stderr, "Incomplete event configuration:", err)
		fmt.Fprintln(os.Stderr, "Set --event-id and --view-id, or configure them in the config file.")
		os.Exit(1)
	}

	resolveToken(cfg, log)
	if cfg.Swapcard.BearerToken == "" {
		log.Error("No bearer token found")
		fmt.Fprintln(os.Stderr, "No bearer token found.")
		fmt.Fprintln(os.Stderr, "\nTo store a token securely, run:")
		fmt.Fprintln(os.Stderr, "  allinattendees auth login")
		fmt.Fprintln(os.Stderr, "\nOr set the environment variable:")
		fmt.Fprintln(os.Stderr, "  export ALLIN_BEARER_TOKEN=your_token")
		os.Exit(1)
	}

	ctx := context.Background()

	client := swapcard.NewClient(cfg.Swapcard, cfg.Scrape.RequestTimeout, log)
	client = client.WithRetry(retry.NewPageFetchConfig(ctx, cfg.Retry.MaxAttempts, cfg.Retry.BaseDelay, cfg.Retry.MaxDelay, log))

	var snapshots collector.Snapshotter
	var ckpt *checkpoint.Manager
	if !noCheckpoint {
		slug := cfg.Swapcard.EventSlug
		if slug == "" {
			slug = cfg.Swapcard.EventID
		}
		ckpt, err = checkpoint.NewManager(slug)
		if err != nil {
			log.WithError(err).Warn("Checkpointing disabled")
		} else {
			snapshots = ckpt
		}
	}

	coll := collector.New(client, snapshots, collector.Options{
		MaxPages:           cfg.Scrape.MaxPages,
		EmptyPageTolerance: cfg.Scrape.EmptyPageTolerance,
		CheckpointEvery:    cfg.Scrape.CheckpointEvery,
		PageDelay:          cfg.Scrape.PageDelay,
	}, log)

	result := coll.Run(ctx)

	writer, err := export.NewWriter(cfg.Output.BaseDirectory, cfg.Output.WriteLatest)
	if err != nil {
		log.WithError(err).Fatal("Failed to create output directory")
	}

	jsonPath, csvPath, err := writer.WriteAttendees("attendees", result.Records)
	if err != nil {
		log.WithError(err).Fatal("Failed to write attendee artifacts")
	}

	fmt.Printf("Collected %d attendees in %d pages (%s)\n", len(result.Records), result.Pages, result.Reason)
	if result.ExpectedTotal > 0 {
		fmt.Printf("Upstream reported %d attendees\n", result.ExpectedTotal)
	}
	fmt.Println("JSON:", jsonPath)
	fmt.Println("CSV: ", csvPath)

	// A clean completion makes the crash checkpoint redundant
	if ckpt != nil && result.Reason != collector.ReasonAborted {
		if err := ckpt.Delete(); err != nil {
			log.WithError(err).Warn("Failed to remove checkpoint")
		}
	}

	if runEnrich && len(result.Records) > 0 {
		enrichRecords(ctx, cfg, client, writer, result.Records, log)
	}

	if runSync && len(result.Records) > 0 {
		syncRecords(ctx, cfg, result.Records, string(result.Reason), log)
	}

	if result.Reason == collector.ReasonAborted {
		log.WithError(result.Err).Error("Run ended early, partial results written")
		os.Exit(1)
	}
}

// enrichRecords runs the detail-fetch pool over the collected records
// and writes the enriched artifacts.
func enrichRecords(ctx context.Context, cfg *config.Config, fetcher enricher.DetailFetcher, writer *export.Writer, records []swapcard.Attendee, log logger.Logger) {
	pool := enricher.NewPool(cfg.Enrich.Workers, cfg.Enrich.TaskDelay, fetcher, log)
	outcome := enricher.Process(ctx, pool, records, log)

	jsonPath, csvPath, err := writer.WriteEnriched("attendees_enriched", outcome.Enriched)
	if err != nil {
		log.WithError(err).Error("Failed to write enriched artifacts")
		return
	}

	fmt.Printf("Enriched %d attendees (%d failed)\n", len(outcome.Enriched), len(outcome.FailedIDs))
	fmt.Println("JSON:", jsonPath)
	fmt.Println("CSV: ", csvPath)

	if len(outcome.FailedIDs) > 0 {
		failedPath, err := writer.WriteFailedIDs(outcome.FailedIDs)
		if err != nil {
			log.WithError(err).Error("Failed to write failed id list")
			return
		}
		fmt.Println("Failed ids:", failedPath)
	}
}

// syncRecords upserts the collected records into the local SQLite store.
func syncRecords(ctx context.Context, cfg *config.Config, records []swapcard.Attendee, reason string, log logger.Logger) {
	db, err := store.Open(cfg.Database.Path)
	if err != nil {
		log.WithError(err).Error("Failed to open attendee store")
		return
	}
	defer db.Close()

	runID, err := db.CreateRun(ctx, timeNow(), len(records))
	if err != nil {
		log.WithError(err).Error("Failed to record run")
		return
	}

	stats, err := db.UpsertAttendees(ctx, runID, records)
	if err != nil {
		log.WithError(err).Error("Failed to upsert attendees")
		return
	}

	if err := db.CompleteRun(ctx, runID, reason); err != nil {
		log.WithError(err).Error("Failed to finalize run")
		return
	}

	total, _ := db.CountAttendees(ctx)
	fmt.Printf("Synced to %s: %d new, %d updated, %d total\n", cfg.Database.Path, stats.Inserted, stats.Updated, total)
}
