package s3blob

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/settlement/internal/domain"
)

// Format is the archive object encoding.
type Format string

const (
	FormatJSONL   Format = "jsonl"
	FormatParquet Format = "parquet"
)

// Valid reports whether f is a supported encoding.
func (f Format) Valid() bool {
	return f == FormatJSONL || f == FormatParquet
}

// Extension is the object key suffix for f.
func (f Format) Extension() string {
	return string(f)
}

// ContentType is the MIME type uploaded with the object.
func (f Format) ContentType() string {
	if f == FormatParquet {
		return "application/vnd.apache.parquet"
	}
	return "application/x-ndjson"
}

// orderRecord is the Parquet schema for archived orders. Decimals are kept as
// strings so no precision is lost.
type orderRecord struct {
	ID           int64  `parquet:"id"`
	UserID       int64  `parquet:"user_id"`
	InstrumentID int64  `parquet:"instrument_id"`
	Side         string `parquet:"side"`
	Type         string `parquet:"type"`
	Quantity     string `parquet:"quantity"`
	Price        string `parquet:"price"`
	Status       string `parquet:"status"`
	Datetime     int64  `parquet:"datetime,timestamp(millisecond)"` // Unix ms
}

func toRecord(v domain.OrderView) orderRecord {
	return orderRecord{
		ID:           v.ID,
		UserID:       v.UserID,
		InstrumentID: v.InstrumentID,
		Side:         string(v.Side),
		Type:         string(v.Type),
		Quantity:     v.Quantity.String(),
		Price:        v.Price.String(),
		Status:       string(v.Status),
		Datetime:     v.Datetime.UnixMilli(),
	}
}

func encodeOrders(f Format, orders []domain.Order) ([]byte, error) {
	views := make([]domain.OrderView, len(orders))
	for i, o := range orders {
		views[i] = o.View()
	}

	switch f {
	case FormatParquet:
		records := make([]orderRecord, len(views))
		for i, v := range views {
			records[i] = toRecord(v)
		}
		var buf bytes.Buffer
		if err := parquet.Write(&buf, records); err != nil {
			return nil, fmt.Errorf("parquet encode: %w", err)
		}
		return buf.Bytes(), nil
	default:
		return marshalJSONL(views)
	}
}

// marshalJSONL serialises records as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

func fromRecord(r orderRecord) (domain.OrderView, error) {
	qty, err := decimal.NewFromString(r.Quantity)
	if err != nil {
		return domain.OrderView{}, fmt.Errorf("quantity: %w", err)
	}
	price, err := decimal.NewFromString(r.Price)
	if err != nil {
		return domain.OrderView{}, fmt.Errorf("price: %w", err)
	}
	return domain.OrderView{
		ID:           r.ID,
		UserID:       r.UserID,
		InstrumentID: r.InstrumentID,
		Side:         domain.OrderSide(r.Side),
		Type:         domain.OrderKind(r.Type),
		Quantity:     qty,
		Price:        price,
		Status:       domain.OrderStatus(r.Status),
		Datetime:     time.UnixMilli(r.Datetime).UTC(),
	}, nil
}

func decodeOrders(f Format, data []byte) ([]domain.OrderView, error) {
	if f == FormatParquet {
		records, err := parquet.Read[orderRecord](bytes.NewReader(data), int64(len(data)))
		if err != nil {
			return nil, fmt.Errorf("parquet decode: %w", err)
		}
		out := make([]domain.OrderView, len(records))
		for i, rec := range records {
			if out[i], err = fromRecord(rec); err != nil {
				return nil, fmt.Errorf("parquet record %d: %w", i, err)
			}
		}
		return out, nil
	}

	var out []domain.OrderView
	dec := json.NewDecoder(bytes.NewReader(data))
	for {
		var v domain.OrderView
		if err := dec.Decode(&v); err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return nil, fmt.Errorf("jsonl decode record %d: %w", len(out), err)
		}
		out = append(out, v)
	}
}
