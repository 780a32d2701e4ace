// Package cli implements the settlectl subcommands. Every command except
// archive talks to a running settled server over its HTTP API.
package cli

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/google/subcommands"
)

var (
	serverURL = flag.String("server", envOr("SETTLE_API_URL", "http://localhost:8080"), "Base URL of the settlement API")
	apiKey    = flag.String("api-key", os.Getenv("SETTLE_API_KEY"), "API key sent as a Bearer token")
	currency  = flag.String("currency", envOr("SETTLE_LEDGER_CURRENCY", "ARS"), "Currency code used to format amounts")
	rawJSON   = flag.Bool("json", false, "Print raw JSON instead of rendered markdown")
)

// stdout and stderr are swapped by tests.
var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// Register adds every settlectl subcommand to c.
func Register(c *subcommands.Commander) {
	c.Register(c.HelpCommand(), "")
	c.Register(c.FlagsCommand(), "")

	c.Register(&submitCmd{}, "orders")
	c.Register(&cancelCmd{}, "orders")
	c.Register(&orderCmd{}, "orders")
	c.Register(&eventsCmd{}, "orders")

	c.Register(&portfolioCmd{}, "portfolio")

	c.Register(&archiveCmd{}, "archive")
}

func apiClient() *Client {
	return NewClient(*serverURL, *apiKey)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// parseIDArg reads a single positive integer argument.
func parseIDArg(f *flag.FlagSet, what string) (int64, bool) {
	if f.NArg() != 1 {
		fmt.Fprintf(stderr, "Expected exactly one %s argument\n", what)
		return 0, false
	}
	id, err := strconv.ParseInt(f.Arg(0), 10, 64)
	if err != nil || id <= 0 {
		fmt.Fprintf(stderr, "Invalid %s %q\n", what, f.Arg(0))
		return 0, false
	}
	return id, true
}

// emit prints v as indented JSON when -json is set, otherwise md rendered for
// the terminal.
func emit(v any, md func() string) subcommands.ExitStatus {
	if *rawJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			fmt.Fprintf(stderr, "Error encoding JSON: %v\n", err)
			return subcommands.ExitFailure
		}
		return subcommands.ExitSuccess
	}
	printMarkdown(stdout, md())
	return subcommands.ExitSuccess
}
