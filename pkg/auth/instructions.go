package auth

import (
	"fmt"
	"strings"
)

// ShowTokenExtractionGuide displays step-by-step instructions for
// capturing the event platform bearer token from a browser session.
func ShowTokenExtractionGuide() {
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("BEARER TOKEN EXTRACTION GUIDE")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println()

	fmt.Println("This tool needs the bearer token your browser sends to the event")
	fmt.Println("platform's GraphQL endpoint. Follow these steps to capture it:")
	fmt.Println()

	fmt.Println("STEP 1: Open the event in your browser")
	fmt.Println("   - Go to https://app.swapcard.com and log in")
	fmt.Println("   - Navigate to the event and open the attendee list")
	fmt.Println()

	fmt.Println("STEP 2: Open Developer Tools")
	fmt.Println("   - Chrome/Edge/Brave: Press F12 or Ctrl+Shift+I (Cmd+Option+I on Mac)")
	fmt.Println("   - Firefox: Press F12 or Ctrl+Shift+I (Cmd+Option+I on Mac)")
	fmt.Println("   - Safari: Enable Developer menu in Preferences, then Cmd+Option+I")
	fmt.Println()

	fmt.Println("STEP 3: Go to the Network tab")
	fmt.Println("   - Click on the 'Network' tab in Developer Tools")
	fmt.Println("   - Filter by 'graphql'")
	fmt.Println("   - Scroll the attendee list so a request fires")
	fmt.Println()

	fmt.Println("STEP 4: Copy the token")
	fmt.Println("   1. Click any request to 'api/graphql'")
	fmt.Println("   2. Go to the 'Headers' section")
	fmt.Println("   3. Scroll to 'Request Headers'")
	fmt.Println("   4. Find the 'Authorization: Bearer ...' line")
	fmt.Println("   5. Copy everything after 'Bearer '")
	fmt.Println()

	fmt.Println("TIPS:")
	fmt.Println("   - Copy the ENTIRE value, no quotes or trailing whitespace")
	fmt.Println("   - Tokens expire; re-capture one when requests start returning 401")
	fmt.Println()

	fmt.Println("SECURITY WARNING:")
	fmt.Println("   - This token gives access to your event account")
	fmt.Println("   - NEVER share it with anyone")
	fmt.Println("   - Store it securely (this tool encrypts it)")
	fmt.Println()
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println()
}

// ShowQuickExtractGuide shows a condensed version for experienced users
func ShowQuickExtractGuide() {
	fmt.Println("\nQuick guide: F12 -> Network tab -> filter 'graphql' -> scroll the attendee list -> Headers -> Authorization")
	fmt.Println("   Need: the value after 'Bearer '")
	fmt.Println("   Run 'allinattendees auth --help-extract' for detailed instructions")
}
