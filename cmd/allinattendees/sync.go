package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"allinattendees/pkg/config"
	"allinattendees/pkg/export"
	"allinattendees/pkg/logger"
	"allinattendees/pkg/store"
)

var timeNow = time.Now

var (
	syncInput  string
	syncReason string
)

// syncCmd represents the sync command
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Upsert a collected artifact into the local attendee store",
	Long: `Load a previously collected JSON artifact and upsert every record into
the local SQLite store.

Each sync is recorded as a run with insert/update counters, so the store
tracks when each attendee was first and last seen across runs.`,
	Example: `  # Sync the latest collected artifact
  allinattendees sync

  # Sync a specific artifact
  allinattendees sync --input ./data/attendees_20250830_120000.json`,
	Args: cobra.NoArgs,
	Run:  runSyncCmd,
}

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().StringVarP(&syncInput, "input", "i", "", "attendee JSON artifact (default: latest in output directory)")
	syncCmd.Flags().StringVar(&syncReason, "reason", "exhausted", "termination reason to record for this run")
	syncCmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory holding the artifacts (default: ./data)")
}

func runSyncCmd(cmd *cobra.Command, args []string) {
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

	input := syncInput
	if input == "" {
		input = latestArtifact(cfg)
	}

	records, err := export.ReadAttendees(input)
	if err != nil {
		log.WithError(err).WithField("path", input).Error("Failed to read attendee artifact")
		fmt.Fprintln(os.Stderr, "Failed to read attendee artifact:", err)
		fmt.Fprintln(os.Stderr, "Run 'allinattendees scrape' first, or pass --input.")
		os.Exit(1)
	}

	log.InfoWithFields("Syncing attendees", map[string]interface{}{
		"input":   input,
		"records": len(records),
		"db":      cfg.Database.Path,
	})

	syncRecords(context.Background(), cfg, records, syncReason, log)
}

// statsCmd represents the stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show summary counts from the local attendee store",
	Args:  cobra.NoArgs,
	Run:   runStatsCmd,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStatsCmd(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(configFile, commandFlags())
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load configuration:", err)
		os.Exit(1)
	}

	db, err := store.Open(cfg.Database.Path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to open attendee store:", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx := context.Background()
	attendees, err := db.CountAttendees(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to count attendees:", err)
		os.Exit(1)
	}
	orgs, err := db.CountOrganizations(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to count organizations:", err)
		os.Exit(1)
	}

	fmt.Println("Store:        ", cfg.Database.Path)
	fmt.Println("Attendees:    ", attendees)
	fmt.Println("Organizations:", orgs)
}
