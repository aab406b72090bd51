package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"allinattendees/pkg/auth"
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage event platform credentials",
	Long: `Manage stored bearer tokens securely.

Tokens are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables (read-only fallback)

Never share your token or config files!`,
}

// loginCmd represents the auth login command
var loginCmd = &cobra.Command{
	Use:   "login [event-slug]",
	Short: "Store a bearer token securely",
	Long: `Store an event bearer token securely in the system keychain or an
encrypted file.

You will be prompted for:
  - Event slug (if not provided)
  - Bearer token (from the Authorization request header)
  - User Agent (optional, press Enter for default)

To capture the token:
1. Log into the event in your browser and open the attendee list
2. Open Developer Tools (F12), Network tab, filter 'graphql'
3. Click a request and copy the value after 'Authorization: Bearer '`,
	Example: `  # Interactive login
  allinattendees auth login

  # Login for a specific event
  allinattendees auth login allin2025`,
	Args: cobra.MaximumNArgs(1),
	Run:  runLogin,
}

// logoutCmd represents the auth logout command
var logoutCmd = &cobra.Command{
	Use:   "logout [event-slug]",
	Short: "Remove a stored token",
	Long: `Remove a stored bearer token.

If no event slug is provided, you will be shown a list of stored events
to choose from. You can also remove all tokens at once.`,
	Args: cobra.MaximumNArgs(1),
	Run:  runLogout,
}

// listCmd represents the auth list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all stored tokens",
	Long:  `List all stored event tokens with the token values masked.`,
	Run:   runList,
}

var showGuide bool

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(listCmd)

	loginCmd.Flags().BoolVar(&showGuide, "guide", true, "show the token extraction guide before prompting")
}

func runLogin(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to initialize credential manager:", err)
		os.Exit(1)
	}

	var eventSlug string
	if len(args) > 0 {
		eventSlug = args[0]
	}

	reader := bufio.NewReader(os.Stdin)

	if showGuide {
		auth.ShowTokenExtractionGuide()

		fmt.Print("Ready to enter your token? (Y/n): ")
		ready, _ := reader.ReadString('\n')
		if strings.ToLower(strings.TrimSpace(ready)) == "n" {
			fmt.Println("\nRun 'allinattendees auth login' when you're ready.")
			return
		}
		fmt.Println()
	}

	if eventSlug == "" {
		fmt.Print("Event slug: ")
		input, err := reader.ReadString('\n')
		if err != nil {
			fmt.Fprintln(os.Stderr, "Failed to read event slug:", err)
			os.Exit(1)
		}
		eventSlug = strings.TrimSpace(input)
	}

	if eventSlug == "" {
		fmt.Fprintln(os.Stderr, "Event slug is required")
		os.Exit(1)
	}

	// Check if a token already exists
	if existing, _ := manager.Retrieve(eventSlug); existing != nil {
		fmt.Printf("\nA token for '%s' already exists. Update it? (y/N): ", eventSlug)
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return
		}
	}

	fmt.Println("\nEnter your token (it will be hidden as you type):")
	fmt.Println()

	var token string
	for {
		fmt.Print("Bearer token: ")
		token, err = readPassword()
		if err != nil {
			fmt.Fprintln(os.Stderr, "Failed to read token:", err)
			os.Exit(1)
		}

		token = strings.TrimPrefix(strings.TrimSpace(token), "Bearer ")
		if len(token) < 20 {
			fmt.Println("\nThat doesn't look like a valid bearer token.")
			fmt.Println("It should be a long opaque string from the Authorization header.")
			fmt.Print("\nTry again? (Y/n): ")
			retry, _ := reader.ReadString('\n')
			if strings.ToLower(strings.TrimSpace(retry)) == "n" {
				os.Exit(1)
			}
			continue
		}
		break
	}

	fmt.Print("\nUser Agent (press Enter to use default): ")
	userAgent, _ := reader.ReadString('\n')
	userAgent = strings.TrimSpace(userAgent)

	cred := &auth.Credential{
		EventSlug:    eventSlug,
		BearerToken:  token,
		UserAgent:    userAgent,
		LastModified: time.Now(),
	}

	fmt.Println("\nStoring token securely...")
	if err := manager.Store(cred); err != nil {
		fmt.Fprintln(os.Stderr, "Failed to store token:", err)
		os.Exit(1)
	}

	sanitized := auth.SanitizeCredential(cred)
	fmt.Printf("Token saved for event '%s' (%s)\n", eventSlug, sanitized.BearerToken)
	fmt.Println("\nNext step:")
	fmt.Println("  allinattendees scrape")
}

func runLogout(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to initialize credential manager:", err)
		os.Exit(1)
	}

	if len(args) == 0 {
		creds, err := manager.List()
		if err != nil || len(creds) == 0 {
			fmt.Fprintln(os.Stderr, "No stored tokens found")
			return
		}

		if len(creds) == 1 {
			cred := creds[0]
			reader := bufio.NewReader(os.Stdin)
			fmt.Printf("Remove token for '%s'? (y/N): ", cred.EventSlug)
			input, _ := reader.ReadString('\n')
			if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
				return
			}

			if err := manager.Delete(cred.EventSlug); err != nil {
				fmt.Fprintln(os.Stderr, "Failed to remove token:", err)
				os.Exit(1)
			}
			fmt.Println("Token removed:", cred.EventSlug)
			return
		}

		// Multiple tokens, show menu
		fmt.Println("Select token to remove:")
		for i, cred := range creds {
			fmt.Printf("  %d. %s\n", i+1, cred.EventSlug)
		}
		fmt.Printf("  %d. Remove all tokens\n", len(creds)+1)
		fmt.Printf("  0. Cancel\n\n")

		reader := bufio.NewReader(os.Stdin)
		fmt.Print("Choice: ")
		input, _ := reader.ReadString('\n')

		var choice int
		fmt.Sscanf(strings.TrimSpace(input), "%d", &choice)

		switch {
		case choice == 0:
			return
		case choice == len(creds)+1:
			fmt.Print("Remove ALL tokens? This cannot be undone! (yes/N): ")
			confirm, _ := reader.ReadString('\n')
			if strings.TrimSpace(confirm) != "yes" {
				return
			}

			if err := manager.DeleteAll(); err != nil {
				fmt.Fprintln(os.Stderr, "Failed to remove all tokens:", err)
				os.Exit(1)
			}
			fmt.Println("All tokens removed")
		case choice > 0 && choice <= len(creds):
			cred := creds[choice-1]
			if err := manager.Delete(cred.EventSlug); err != nil {
				fmt.Fprintln(os.Stderr, "Failed to remove token:", err)
				os.Exit(1)
			}
			fmt.Println("Token removed:", cred.EventSlug)
		default:
			fmt.Fprintln(os.Stderr, "Invalid choice")
			os.Exit(1)
		}
		return
	}

	eventSlug := args[0]
	if err := manager.Delete(eventSlug); err != nil {
		fmt.Fprintln(os.Stderr, "Failed to remove token:", err)
		os.Exit(1)
	}
	fmt.Println("Token removed:", eventSlug)
}

func runList(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to initialize credential manager:", err)
		os.Exit(1)
	}

	creds, err := manager.List()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to list tokens:", err)
		os.Exit(1)
	}

	if len(creds) == 0 {
		fmt.Println("No stored tokens. Use 'allinattendees auth login' to add one.")
		return
	}

	fmt.Println("Stored tokens:")
	fmt.Println()

	for i, cred := range creds {
		sanitized := auth.SanitizeCredential(cred)
		fmt.Printf("%d. Event: %s\n", i+1, sanitized.EventSlug)
		fmt.Printf("   Token: %s\n", sanitized.BearerToken)
		if sanitized.UserAgent != "" {
			fmt.Printf("   User Agent: %s\n", sanitized.UserAgent)
		}
		fmt.Printf("   Last Modified: %s\n", sanitized.LastModified.Format("2006-01-02 15:04:05"))
		fmt.Println()
	}
}

// readPassword reads a secret from stdin without echoing
func readPassword() (string, error) {
	if term.IsTerminal(int(syscall.Stdin)) {
		password, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println() // New line after password
		if err == nil {
			return string(password), nil
		}
	}

	// Fallback to regular input
	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
