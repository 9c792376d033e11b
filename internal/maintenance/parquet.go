package maintenance

import (
	"context"
	"fmt"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/aristath/equiscan/internal/warehouse"
)

// metadataSchema is the column layout of the nightly screener metadata
// export (export_screener_metadata, spec §4.9 step 11).
var metadataSchema = arrow.NewSchema([]arrow.Field{
	{Name: "symbol", Type: arrow.BinaryTypes.String},
	{Name: "company_name", Type: arrow.BinaryTypes.String},
	{Name: "sector", Type: arrow.BinaryTypes.String},
	{Name: "market_cap", Type: arrow.PrimitiveTypes.Float64},
	{Name: "shares_outstanding", Type: arrow.PrimitiveTypes.Float64},
	{Name: "avg_volume_30d", Type: arrow.PrimitiveTypes.Float64},
	{Name: "beta", Type: arrow.PrimitiveTypes.Float64},
	{Name: "is_etf", Type: arrow.FixedWidthTypes.Boolean},
	{Name: "is_actively_trading", Type: arrow.FixedWidthTypes.Boolean},
}, nil)

// writeMetadataSnapshot writes one compressed columnar file carrying
// every ticker's reference data, read by the screener sibling service.
func writeMetadataSnapshot(path string, rows []warehouse.TickerUnified) error {
	mem := memory.DefaultAllocator

	symbolB := array.NewStringBuilder(mem)
	nameB := array.NewStringBuilder(mem)
	sectorB := array.NewStringBuilder(mem)
	mcapB := array.NewFloat64Builder(mem)
	sharesB := array.NewFloat64Builder(mem)
	volB := array.NewFloat64Builder(mem)
	betaB := array.NewFloat64Builder(mem)
	etfB := array.NewBooleanBuilder(mem)
	activeB := array.NewBooleanBuilder(mem)
	defer func() {
		symbolB.Release()
		nameB.Release()
		sectorB.Release()
		mcapB.Release()
		sharesB.Release()
		volB.Release()
		betaB.Release()
		etfB.Release()
		activeB.Release()
	}()

	for _, t := range rows {
		symbolB.Append(t.Symbol)
		nameB.Append(t.CompanyName)
		sectorB.Append(t.Sector)
		mcapB.Append(t.MarketCap)
		sharesB.Append(t.SharesOutstanding)
		volB.Append(t.AvgVolume30D)
		betaB.Append(t.Beta)
		etfB.Append(t.IsETF)
		activeB.Append(t.IsActivelyTrading)
	}

	cols := []arrow.Array{
		symbolB.NewArray(), nameB.NewArray(), sectorB.NewArray(), mcapB.NewArray(),
		sharesB.NewArray(), volB.NewArray(), betaB.NewArray(), etfB.NewArray(), activeB.NewArray(),
	}
	defer func() {
		for _, c := range cols {
			c.Release()
		}
	}()

	rec := array.NewRecord(metadataSchema, cols, int64(len(rows)))
	defer rec.Release()

	tbl := array.NewTableFromRecords(metadataSchema, []arrow.Record{rec})
	defer tbl.Release()

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("maintenance: create %s: %w", path, err)
	}
	defer out.Close()

	props := parquet.NewWriterProperties(parquet.WithCompression(compress.Codecs.Snappy))
	return pqarrow.WriteTable(tbl, out, int64(len(rows)), props, pqarrow.DefaultWriterProps())
}

// parquetRow mirrors one row of a day_aggs flat file (spec §6 "Parquet
// flat files"): ticker, open, high, low, close, volume, vwap,
// transactions, window_start.
type parquetRow struct {
	Ticker       string
	Open         float64
	High         float64
	Low          float64
	Close        float64
	Volume       float64
	VWAP         float64
	Transactions int64
	WindowStart  int64 // unix millis, as written by the external loader
}

// readParquetRows loads every row of path into memory along with the
// file's Arrow schema, which writeParquetRows reuses so a rewrite keeps
// the exact column layout the screener sibling service expects.
func readParquetRows(ctx context.Context, path string) ([]parquetRow, *arrow.Schema, error) {
	rdr, err := file.OpenParquetFile(path, false)
	if err != nil {
		return nil, nil, fmt.Errorf("maintenance: open %s: %w", path, err)
	}
	defer rdr.Close()

	fr, err := pqarrow.NewFileReader(rdr, pqarrow.ArrowReadProperties{}, memory.DefaultAllocator)
	if err != nil {
		return nil, nil, fmt.Errorf("maintenance: arrow reader %s: %w", path, err)
	}

	tbl, err := fr.ReadTable(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("maintenance: read table %s: %w", path, err)
	}
	defer tbl.Release()

	schema := tbl.Schema()
	rows := make([]parquetRow, 0, tbl.NumRows())

	tr := array.NewTableReader(tbl, tbl.NumRows())
	defer tr.Release()
	for tr.Next() {
		rec := tr.Record()
		for i := 0; i < int(rec.NumRows()); i++ {
			rows = append(rows, parquetRow{
				Ticker:       rec.Column(0).(*array.String).Value(i),
				Open:         rec.Column(1).(*array.Float64).Value(i),
				High:         rec.Column(2).(*array.Float64).Value(i),
				Low:          rec.Column(3).(*array.Float64).Value(i),
				Close:        rec.Column(4).(*array.Float64).Value(i),
				Volume:       rec.Column(5).(*array.Float64).Value(i),
				VWAP:         rec.Column(6).(*array.Float64).Value(i),
				Transactions: rec.Column(7).(*array.Int64).Value(i),
				WindowStart:  rec.Column(8).(*array.Int64).Value(i),
			})
		}
	}
	return rows, schema, nil
}

// writeParquetRows rewrites path in place with rows, preserving schema.
// Used by reconcile_parquet_splits after applying the reverse-adjustment
// factor to every row that predates a split's execution date.
func writeParquetRows(path string, schema *arrow.Schema, rows []parquetRow) error {
	mem := memory.DefaultAllocator

	tickerB := array.NewStringBuilder(mem)
	openB := array.NewFloat64Builder(mem)
	highB := array.NewFloat64Builder(mem)
	lowB := array.NewFloat64Builder(mem)
	closeB := array.NewFloat64Builder(mem)
	volB := array.NewFloat64Builder(mem)
	vwapB := array.NewFloat64Builder(mem)
	txB := array.NewInt64Builder(mem)
	wsB := array.NewInt64Builder(mem)
	defer func() {
		tickerB.Release()
		openB.Release()
		highB.Release()
		lowB.Release()
		closeB.Release()
		volB.Release()
		vwapB.Release()
		txB.Release()
		wsB.Release()
	}()

	for _, r := range rows {
		tickerB.Append(r.Ticker)
		openB.Append(r.Open)
		highB.Append(r.High)
		lowB.Append(r.Low)
		closeB.Append(r.Close)
		volB.Append(r.Volume)
		vwapB.Append(r.VWAP)
		txB.Append(r.Transactions)
		wsB.Append(r.WindowStart)
	}

	cols := []arrow.Array{
		tickerB.NewArray(), openB.NewArray(), highB.NewArray(), lowB.NewArray(),
		closeB.NewArray(), volB.NewArray(), vwapB.NewArray(), txB.NewArray(), wsB.NewArray(),
	}
	defer func() {
		for _, c := range cols {
			c.Release()
		}
	}()

	rec := array.NewRecord(schema, cols, int64(len(rows)))
	defer rec.Release()

	tbl := array.NewTableFromRecords(schema, []arrow.Record{rec})
	defer tbl.Release()

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("maintenance: create %s: %w", path, err)
	}
	defer out.Close()

	props := parquet.NewWriterProperties(parquet.WithCompression(compress.Codecs.Snappy))
	return pqarrow.WriteTable(tbl, out, int64(len(rows)), props, pqarrow.DefaultWriterProps())
}
