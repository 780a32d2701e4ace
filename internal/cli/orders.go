package cli

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/google/subcommands"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/settlement/internal/domain"
)

// submitCmd holds the flags for the 'submit' subcommand.
type submitCmd struct {
	user       int64
	instrument int64
	side       string
	kind       string
	quantity   string
	price      string
}

func (*submitCmd) Name() string     { return "submit" }
func (*submitCmd) Synopsis() string { return "submit a trade or cash order" }
func (*submitCmd) Usage() string {
	return `settlectl submit -user <id> -instrument <id> -side <BUY|SELL|CASH_IN|CASH_OUT> -quantity <n> [-type MARKET|LIMIT] [-price <p>]

  Submits an order and prints it with the status the engine decided.
  Cash orders go against the cash instrument and need no price.
`
}

func (c *submitCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&c.user, "user", 0, "Account holder ID")
	f.Int64Var(&c.instrument, "instrument", 0, "Instrument ID")
	f.StringVar(&c.side, "side", "", "BUY, SELL, CASH_IN or CASH_OUT")
	f.StringVar(&c.kind, "type", string(domain.OrderKindMarket), "MARKET or LIMIT")
	f.StringVar(&c.quantity, "quantity", "", "Number of shares, or cash amount for cash orders")
	f.StringVar(&c.price, "price", "", "Limit price (LIMIT orders only)")
}

func (c *submitCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	req := SubmitOrder{
		UserID:       c.user,
		InstrumentID: c.instrument,
		Side:         domain.OrderSide(strings.ToUpper(c.side)),
		Type:         domain.OrderKind(strings.ToUpper(c.kind)),
	}
	if !req.Side.Valid() {
		fmt.Fprintf(stderr, "Invalid -side %q\n", c.side)
		return subcommands.ExitUsageError
	}
	if !req.Type.Valid() {
		fmt.Fprintf(stderr, "Invalid -type %q\n", c.kind)
		return subcommands.ExitUsageError
	}
	qty, err := decimal.NewFromString(c.quantity)
	if err != nil {
		fmt.Fprintf(stderr, "Invalid -quantity %q: %v\n", c.quantity, err)
		return subcommands.ExitUsageError
	}
	req.Quantity = qty
	if c.price != "" {
		p, err := decimal.NewFromString(c.price)
		if err != nil {
			fmt.Fprintf(stderr, "Invalid -price %q: %v\n", c.price, err)
			return subcommands.ExitUsageError
		}
		req.Price = &p
	}

	view, err := apiClient().Submit(ctx, req)
	if err != nil {
		fmt.Fprintf(stderr, "Error submitting order: %v\n", err)
		return subcommands.ExitFailure
	}
	return emit(view, func() string { return OrderMarkdown(view, *currency) })
}

// cancelCmd cancels a NEW order.
type cancelCmd struct{}

func (*cancelCmd) Name() string     { return "cancel" }
func (*cancelCmd) Synopsis() string { return "cancel an order that is still NEW" }
func (*cancelCmd) Usage() string {
	return `settlectl cancel <order-id>

  Cancels the order. Filled, rejected and already cancelled orders are refused.
`
}

func (*cancelCmd) SetFlags(*flag.FlagSet) {}

func (*cancelCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	id, ok := parseIDArg(f, "order ID")
	if !ok {
		return subcommands.ExitUsageError
	}
	view, err := apiClient().Cancel(ctx, id)
	if err != nil {
		fmt.Fprintf(stderr, "Error cancelling order: %v\n", err)
		return subcommands.ExitFailure
	}
	return emit(view, func() string { return OrderMarkdown(view, *currency) })
}

// orderCmd shows one order.
type orderCmd struct{}

func (*orderCmd) Name() string     { return "order" }
func (*orderCmd) Synopsis() string { return "show one order" }
func (*orderCmd) Usage() string {
	return `settlectl order <order-id>
`
}

func (*orderCmd) SetFlags(*flag.FlagSet) {}

func (*orderCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	id, ok := parseIDArg(f, "order ID")
	if !ok {
		return subcommands.ExitUsageError
	}
	view, err := apiClient().Order(ctx, id)
	if err != nil {
		fmt.Fprintf(stderr, "Error fetching order: %v\n", err)
		return subcommands.ExitFailure
	}
	return emit(view, func() string { return OrderMarkdown(view, *currency) })
}

// eventsCmd pages through the order event stream.
type eventsCmd struct {
	after string
	limit int
}

func (*eventsCmd) Name() string     { return "events" }
func (*eventsCmd) Synopsis() string { return "list order events after a stream position" }
func (*eventsCmd) Usage() string {
	return `settlectl events [-after <stream-id>] [-limit <n>]

  Lists order events recorded after the given stream id. Pass the printed
  resume id back as -after to continue.
`
}

func (c *eventsCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.after, "after", "0", "Stream id to read after")
	f.IntVar(&c.limit, "limit", 100, "Maximum number of events")
}

func (c *eventsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	page, err := apiClient().Events(ctx, c.after, c.limit)
	if err != nil {
		fmt.Fprintf(stderr, "Error reading events: %v\n", err)
		return subcommands.ExitFailure
	}
	return emit(page, func() string { return EventsMarkdown(page) })
}
