package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"allinattendees/pkg/config"
	"allinattendees/pkg/export"
	"allinattendees/pkg/logger"
	"allinattendees/pkg/retry"
	"allinattendees/pkg/swapcard"
)

var enrichInput string

// enrichCmd represents the enrich command
var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Fetch per-attendee details for a collected artifact",
	Long: `Fetch the detail fields (email, website, location, industry) for each
attendee in a previously collected JSON artifact.

Requests run over a bounded worker pool with a fixed per-task delay.
Individual failures are isolated: a failed attendee is recorded in a
failed-id artifact and the rest of the batch continues.`,
	Example: `  # Enrich the latest collected artifact
  allinattendees enrich

  # Enrich a specific artifact with more workers
  allinattendees enrich --input ./data/attendees_20250830_120000.json --workers 8`,
	Args: cobra.NoArgs,
	Run:  runEnrichCmd,
}

func init() {
	rootCmd.AddCommand(enrichCmd)

	enrichCmd.Flags().StringVarP(&enrichInput, "input", "i", "", "attendee JSON artifact (default: latest in output directory)")
	enrichCmd.Flags().StringVar(&bearerToken, "bearer-token", "", "bearer token for the event platform")
	enrichCmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory for artifacts (default: ./data)")
	enrichCmd.Flags().IntVar(&workers, "workers", 0, "enrichment worker count")
}

// latestArtifact returns the default input path for artifact-consuming
// commands.
func latestArtifact(cfg *config.Config) string {
	return filepath.Join(cfg.Output.BaseDirectory, "attendees_latest.json")
}

func runEnrichCmd(cmd *cobra.Command, args []string) {
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

	if err := cfg.ValidateUpstream(); err != nil {
		fmt.Fprintln(os.Stderr, "Incomplete event configuration:", err)
		os.Exit(1)
	}

	resolveToken(cfg, log)
	if cfg.Swapcard.BearerToken == "" {
		fmt.Fprintln(os.Stderr, "No bearer token found. Run 'allinattendees auth login' first.")
		os.Exit(1)
	}

	input := enrichInput
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

	log.InfoWithFields("Enriching attendees", map[string]interface{}{
		"input":   input,
		"records": len(records),
		"workers": cfg.Enrich.Workers,
	})

	ctx := context.Background()

	client := swapcard.NewClient(cfg.Swapcard, cfg.Scrape.RequestTimeout, log)
	client = client.WithRetry(retry.NewPageFetchConfig(ctx, cfg.Retry.MaxAttempts, cfg.Retry.BaseDelay, cfg.Retry.MaxDelay, log))

	writer, err := export.NewWriter(cfg.Output.BaseDirectory, cfg.Output.WriteLatest)
	if err != nil {
		log.WithError(err).Fatal("Failed to create output directory")
	}

	enrichRecords(ctx, cfg, client, writer, records, log)
}
