package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"allinattendees/pkg/config"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage attendee scraper configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (ALLIN_*)
  - Configuration file
  - Default values (lowest priority)`,
}

// initCmd represents the config init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with all available options.

The file will be created in the current directory as 'allinattendees.yaml'
unless a different path is specified with the --config flag.`,
	Run: runConfigInit,
}

// showCmd represents the config show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Show the current configuration including values from all sources.

Sensitive values like the bearer token will be masked.`,
	Run: runConfigShow,
}

// validateCmd represents the config validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate a configuration file for syntax errors and invalid values.

This command checks:
  - YAML syntax
  - Required fields
  - Value types and ranges
  - Path accessibility`,
	Run: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) {
	configPath := configFile
	if configPath == "" {
		configPath = "allinattendees.yaml"
	}

	if _, err := os.Stat(configPath); err == nil {
		fmt.Fprintln(os.Stderr, "Configuration file already exists:", configPath)
		fmt.Println("\nTo overwrite, first remove the existing file:")
		fmt.Printf("  rm %s\n", configPath)
		os.Exit(1)
	}

	exampleConfig := `# Attendee scraper configuration file
#
# This file contains all available configuration options.
# You can also use environment variables prefixed with ALLIN_
# For example: ALLIN_BEARER_TOKEN, ALLIN_EVENT_ID

# Upstream event platform settings
swapcard:
  # Batched GraphQL endpoint
  endpoint: "https://app.swapcard.com/api/graphql"

  # Event identifiers (required for scrape/enrich)
  # The id and slug appear in the event URL and the list requests
  event_id: ""
  event_slug: ""

  # People list view id (required for scrape)
  view_id: ""

  # Bearer token (prefer 'allinattendees auth login' over putting it here)
  bearer_token: ""

  # User agent string (optional, leave empty to use default)
  user_agent: ""

# Pagination loop settings
scrape:
  # Safety limit on total pages fetched
  max_pages: 200

  # Consecutive pages with no new records before the run stops
  empty_page_tolerance: 3

  # Pages between checkpoint snapshots
  checkpoint_every: 10

  # Fixed sleep between page requests
  page_delay: 300ms

  # Per-request timeout
  request_timeout: 30s

# Retry behavior around page fetches
retry:
  max_attempts: 3
  base_delay: 1s
  max_delay: 30s

# Detail enrichment settings
enrich:
  # Concurrent detail-fetch workers
  workers: 5

  # Fixed delay each worker applies before a request
  task_delay: 500ms

# Output artifact settings
output:
  # Directory for JSON/CSV artifacts
  base_directory: "./data"

  # Also write *_latest copies of each artifact
  write_latest: true

# Local attendee store
database:
  path: "./data/attendees.db"

# Logging configuration
logging:
  # Log level: debug, info, warn, error
  level: "info"

  # Log file path (optional, leave empty to log to stderr only)
  file: ""
`

	if err := os.WriteFile(configPath, []byte(exampleConfig), 0644); err != nil {
		fmt.Fprintln(os.Stderr, "Failed to create configuration file:", err)
		os.Exit(1)
	}

	fmt.Println("Configuration file created:", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Edit the file and set event_id, event_slug, and view_id")
	fmt.Println("2. Run 'allinattendees auth login' to store your bearer token")
	fmt.Println("3. Run 'allinattendees config validate' to check the configuration")
	fmt.Println("4. Start collecting with 'allinattendees scrape'")
}

func runConfigShow(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load configuration:", err)
		os.Exit(1)
	}

	// Mask the token for display
	displayCfg := *cfg
	if displayCfg.Swapcard.BearerToken != "" {
		if len(displayCfg.Swapcard.BearerToken) > 8 {
			token := displayCfg.Swapcard.BearerToken
			displayCfg.Swapcard.BearerToken = token[:4] + "..." + token[len(token)-4:]
		} else {
			displayCfg.Swapcard.BearerToken = "***"
		}
	}

	data, err := yaml.Marshal(&displayCfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to format configuration:", err)
		os.Exit(1)
	}

	fmt.Println("Current configuration:")
	fmt.Println()
	fmt.Print(string(data))

	fmt.Println("\nConfiguration sources (in order of priority):")
	fmt.Println("1. Command line flags")
	fmt.Println("2. Environment variables (ALLIN_*)")
	if configFile != "" {
		fmt.Printf("3. Configuration file: %s\n", configFile)
	} else {
		fmt.Println("3. Configuration file: (not specified)")
	}
	fmt.Println("4. Default values")
}

func runConfigValidate(cmd *cobra.Command, args []string) {
	if configFile == "" {
		// Try to find config file in common locations
		possiblePaths := []string{
			"allinattendees.yaml",
			"allinattendees.yml",
			".allinattendees.yaml",
			".allinattendees.yml",
			filepath.Join(os.Getenv("HOME"), ".allinattendees.yaml"),
			filepath.Join(os.Getenv("HOME"), ".config", "allinattendees", "config.yaml"),
		}

		for _, path := range possiblePaths {
			if _, err := os.Stat(path); err == nil {
				configFile = path
				break
			}
		}

		if configFile == "" {
			fmt.Fprintln(os.Stderr, "No configuration file found. Specify one with --config.")
			os.Exit(1)
		}
	}

	fmt.Println("Validating configuration:", configFile)

	cfg, err := config.Load(configFile, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Configuration validation failed:", err)
		os.Exit(1)
	}

	warnings := []string{}
	errors := []string{}

	if err := cfg.ValidateUpstream(); err != nil {
		warnings = append(warnings, err.Error())
	}
	if cfg.Swapcard.BearerToken == "" {
		warnings = append(warnings, "bearer token not configured (run 'allinattendees auth login')")
	}

	if cfg.Output.BaseDirectory != "" {
		if err := os.MkdirAll(cfg.Output.BaseDirectory, 0755); err != nil {
			errors = append(errors, fmt.Sprintf("cannot create output directory: %v", err))
		}
	}

	if cfg.Logging.File != "" {
		dir := filepath.Dir(cfg.Logging.File)
		if err := os.MkdirAll(dir, 0755); err != nil {
			errors = append(errors, fmt.Sprintf("cannot create log directory: %v", err))
		}
	}

	if len(errors) > 0 {
		fmt.Fprintln(os.Stderr, "Configuration has errors:")
		for _, err := range errors {
			fmt.Fprintf(os.Stderr, "  - %s\n", err)
		}
		os.Exit(1)
	}

	if len(warnings) > 0 {
		fmt.Println("Configuration warnings:")
		for _, warn := range warnings {
			fmt.Printf("  - %s\n", warn)
		}
		fmt.Println()
	}

	fmt.Println("Configuration is valid")

	fmt.Println("\nConfiguration summary:")
	fmt.Printf("  Output directory:   %s\n", cfg.Output.BaseDirectory)
	fmt.Printf("  Max pages:          %d\n", cfg.Scrape.MaxPages)
	fmt.Printf("  Page delay:         %s\n", cfg.Scrape.PageDelay)
	fmt.Printf("  Enrichment workers: %d\n", cfg.Enrich.Workers)
	fmt.Printf("  Max retries:        %d\n", cfg.Retry.MaxAttempts)
	fmt.Printf("  Log level:          %s\n", cfg.Logging.Level)
}
