package s3blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/alanyoungcy/settlement/internal/domain"
)

// OrderArchiveStore provides the time-ranged order query the archiver needs.
type OrderArchiveStore interface {
	ListBetween(ctx context.Context, from, to time.Time) ([]domain.Order, error)
}

// Archiver implements domain.Archiver by exporting one calendar month of
// orders as JSONL or Parquet. Rows are copied, never deleted: the ledger
// replays the full FILLED history on every read.
type Archiver struct {
	writer domain.BlobWriter
	reader domain.BlobReader
	orders OrderArchiveStore
	audit  domain.AuditStore
	format Format
	// Objects of at least multipartAt bytes go through the multipart uploader.
	multipartAt int
}

// defaultMultipartAt is the encoded size above which archives are uploaded
// in parts.
const defaultMultipartAt = 64 << 20

var _ domain.Archiver = (*Archiver)(nil)

// NewArchiver creates a new Archiver.
func NewArchiver(writer domain.BlobWriter, reader domain.BlobReader, orders OrderArchiveStore, audit domain.AuditStore) *Archiver {
	return &Archiver{
		writer:      writer,
		reader:      reader,
		orders:      orders,
		audit:       audit,
		format:      FormatJSONL,
		multipartAt: defaultMultipartAt,
	}
}

// WithFormat selects the object encoding. Unknown formats keep JSONL.
func (a *Archiver) WithFormat(f Format) *Archiver {
	if f.Valid() {
		a.format = f
	}
	return a
}

// ArchiveOrders uploads every order of month's calendar month to
// archive/orders/YYYY-MM.<ext> and records the export in the audit log. An
// existing object or an empty month writes nothing and returns 0.
//
// Months are keyed on each order's latest timestamp and objects are never
// rewritten. A LIMIT order archived while NEW and cancelled in a later month
// therefore appears once per month, NEW in the first and CANCELLED in the
// second. Readers take the row from the newest month as current.
func (a *Archiver) ArchiveOrders(ctx context.Context, month time.Time) (int64, error) {
	from := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)
	path := archivePath("orders", from, a.format)

	exists, err := a.reader.Exists(ctx, path)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive orders exists: %w", err)
	}
	if exists {
		return 0, nil
	}

	orders, err := a.orders.ListBetween(ctx, from, to)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive orders query: %w", err)
	}
	if len(orders) == 0 {
		return 0, nil
	}

	buf, err := encodeOrders(a.format, orders)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive orders marshal: %w", err)
	}

	if len(buf) >= a.multipartAt {
		err = a.writer.PutMultipart(ctx, path, bytes.NewReader(buf), 2*minPartSize)
	} else {
		err = a.writer.Put(ctx, path, bytes.NewReader(buf), a.format.ContentType())
	}
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive orders upload: %w", err)
	}

	count := int64(len(orders))
	if err := a.audit.Log(ctx, "archive.orders", map[string]any{
		"path":   path,
		"format": string(a.format),
		"count":  count,
		"from":   from.Format(time.RFC3339),
		"to":     to.Format(time.RFC3339),
	}); err != nil {
		return count, fmt.Errorf("s3blob: archive orders audit log: %w", err)
	}
	return count, nil
}

// ReadOrders downloads and decodes the archive object for month.
func (a *Archiver) ReadOrders(ctx context.Context, month time.Time) ([]domain.OrderView, error) {
	from := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.UTC)
	path := archivePath("orders", from, a.format)

	rc, err := a.reader.Get(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("s3blob: read archive %s: %w", path, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("s3blob: read archive %s: %w", path, err)
	}
	views, err := decodeOrders(a.format, data)
	if err != nil {
		return nil, fmt.Errorf("s3blob: decode archive %s: %w", path, err)
	}
	return views, nil
}

// ListMonths returns the archived months in the configured format, oldest
// first.
func (a *Archiver) ListMonths(ctx context.Context) ([]time.Time, error) {
	const prefix = "archive/orders/"
	infos, err := a.reader.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("s3blob: list archives: %w", err)
	}

	suffix := "." + a.format.Extension()
	var months []time.Time
	for _, info := range infos {
		name, ok := strings.CutSuffix(strings.TrimPrefix(info.Path, prefix), suffix)
		if !ok {
			continue
		}
		m, err := time.Parse("2006-01", name)
		if err != nil {
			continue
		}
		months = append(months, m)
	}
	sort.Slice(months, func(i, j int) bool { return months[i].Before(months[j]) })
	return months, nil
}

// archivePath builds the object key for an archive file.
//
//	archive/orders/2025-01.jsonl
func archivePath(kind string, month time.Time, f Format) string {
	return fmt.Sprintf("archive/%s/%s.%s", kind, month.Format("2006-01"), f.Extension())
}
