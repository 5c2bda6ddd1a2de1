// Command client is a terminal seat viewer for the game center server. It logs in, starts a
// booking at one center and follows the seat stream; space toggles the seat under the cursor.
package main

import (
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

const appName = "gamecenter-client"

func printUsage(out *os.File) {
	fmt.Fprintf(out, "Usage: %s [--help]\n\n", appName)
	fmt.Fprintln(out, "Environment:")
	fmt.Fprintln(out, "  GAMECENTER_SERVER  host:port of the server (default localhost:8080)")
	fmt.Fprintln(out, "  GAMECENTER_TOKEN   player token (required)")
	fmt.Fprintln(out, "  GAMECENTER_CENTER  center id to open (required)")
}

func handleArgs(args []string) bool {
	for _, arg := range args {
		switch arg {
		case "-h", "--help", "help":
			printUsage(os.Stdout)
			return false
		default:
			fmt.Fprintf(os.Stderr, "Unknown argument: %s\n", arg)
			printUsage(os.Stderr)
			os.Exit(2)
		}
	}
	return true
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func main() {
	if !handleArgs(os.Args[1:]) {
		return
	}

	token := envOr("GAMECENTER_TOKEN", "")
	centerID := envOr("GAMECENTER_CENTER", "")
	if token == "" || centerID == "" {
		printUsage(os.Stderr)
		os.Exit(2)
	}

	api := newAPIClient(envOr("GAMECENTER_SERVER", "localhost:8080"))
	if err := api.Login(token); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer api.Logout()

	if err := api.Begin(centerID); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := api.DialStream(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer api.CloseStream()

	p := tea.NewProgram(newSeatModel(centerID, api), tea.WithAltScreen())
	go api.ReadLoop(p.Send)

	if _, err := p.Run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
