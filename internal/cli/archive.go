package cli

import (
	"context"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/google/subcommands"

	s3blob "github.com/alanyoungcy/settlement/internal/blob/s3"
	"github.com/alanyoungcy/settlement/internal/config"
	"github.com/alanyoungcy/settlement/internal/domain"
)

// archiveSource reads back monthly order archives.
type archiveSource interface {
	ReadOrders(ctx context.Context, month time.Time) ([]domain.OrderView, error)
	ListMonths(ctx context.Context) ([]time.Time, error)
}

// openArchive connects to the bucket named in cfg. Replaced by tests.
var openArchive = func(ctx context.Context, cfg *config.Config) (archiveSource, error) {
	client, err := s3blob.New(ctx, s3blob.ClientConfig{
		Endpoint:       cfg.S3.Endpoint,
		Region:         cfg.S3.Region,
		Bucket:         cfg.S3.Bucket,
		AccessKey:      cfg.S3.AccessKey,
		SecretKey:      cfg.S3.SecretKey,
		UseSSL:         cfg.S3.UseSSL,
		ForcePathStyle: cfg.S3.ForcePathStyle,
	})
	if err != nil {
		return nil, err
	}
	// Read-only: no writer, order store or audit log.
	return s3blob.NewArchiver(nil, s3blob.NewReader(client), nil, nil).
		WithFormat(s3blob.Format(cfg.Archive.Format)), nil
}

// archiveCmd holds the flags for the 'archive' subcommand.
type archiveCmd struct {
	configPath string
	month      string
	list       bool
}

func (*archiveCmd) Name() string     { return "archive" }
func (*archiveCmd) Synopsis() string { return "inspect monthly order archives in object storage" }
func (*archiveCmd) Usage() string {
	return `settlectl archive [-config <file>] (-list | -month <YYYY-MM>)

  Reads the archive bucket directly using the server configuration file
  and SETTLE_* environment overrides. No running server is needed.
`
}

func (c *archiveCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.configPath, "config", "", "Path to the server configuration file")
	f.StringVar(&c.month, "month", "", "Archived month to display, as YYYY-MM")
	f.BoolVar(&c.list, "list", false, "List archived months")
}

func (c *archiveCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.list == (c.month != "") {
		fmt.Fprintln(stderr, "Exactly one of -list or -month is required")
		return subcommands.ExitUsageError
	}
	var month time.Time
	if c.month != "" {
		m, err := time.Parse("2006-01", c.month)
		if err != nil {
			fmt.Fprintf(stderr, "Invalid -month %q: want YYYY-MM\n", c.month)
			return subcommands.ExitUsageError
		}
		month = m
	}

	cfg, err := config.Load(c.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading config: %v\n", err)
		return subcommands.ExitFailure
	}
	src, err := openArchive(ctx, cfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error opening archive bucket: %v\n", err)
		return subcommands.ExitFailure
	}

	if c.list {
		months, err := src.ListMonths(ctx)
		if err != nil {
			fmt.Fprintf(stderr, "Error listing archives: %v\n", err)
			return subcommands.ExitFailure
		}
		names := make([]string, len(months))
		for i, m := range months {
			names[i] = m.Format("2006-01")
		}
		return emit(names, func() string { return monthsMarkdown(cfg.S3.Bucket, names) })
	}

	orders, err := src.ReadOrders(ctx, month)
	if err != nil {
		fmt.Fprintf(stderr, "Error reading archive: %v\n", err)
		return subcommands.ExitFailure
	}
	return emit(orders, func() string { return ArchiveMarkdown(month, orders) })
}

func monthsMarkdown(bucket string, months []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Archives in %s\n\n", bucket)
	if len(months) == 0 {
		b.WriteString("_No archived months._\n")
		return b.String()
	}
	for _, m := range months {
		fmt.Fprintf(&b, "- %s\n", m)
	}
	return b.String()
}
