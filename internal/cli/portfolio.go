package cli

import (
	"context"
	"flag"
	"fmt"

	"github.com/google/subcommands"
)

// portfolioCmd shows the valuation of one account.
type portfolioCmd struct{}

func (*portfolioCmd) Name() string     { return "portfolio" }
func (*portfolioCmd) Synopsis() string { return "display cash, positions and returns of an account" }
func (*portfolioCmd) Usage() string {
	return `settlectl portfolio <user-id>

  Displays total account value, available cash and every open position
  valued at the latest close.
`
}

func (*portfolioCmd) SetFlags(*flag.FlagSet) {}

func (*portfolioCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	userID, ok := parseIDArg(f, "user ID")
	if !ok {
		return subcommands.ExitUsageError
	}
	p, err := apiClient().Portfolio(ctx, userID)
	if err != nil {
		fmt.Fprintf(stderr, "Error fetching portfolio: %v\n", err)
		return subcommands.ExitFailure
	}
	return emit(p, func() string { return PortfolioMarkdown(userID, p, *currency) })
}
