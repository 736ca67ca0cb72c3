// Package parquet exports tables to Parquet files and reads them back.
//
// Columns are encoded exactly as for Arrow IPC files (see arrowipc); the
// Arrow schema, including the tablecore type metadata, is stored in the
// file so ReadTable rebuilds the original column types.
package parquet

import (
	"bytes"
	"context"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	pq "github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"go.uber.org/zap"

	"github.com/ajitpratap0/tablecore/pkg/columnar"
	"github.com/ajitpratap0/tablecore/pkg/compression"
	"github.com/ajitpratap0/tablecore/pkg/errors"
	"github.com/ajitpratap0/tablecore/pkg/formats/arrowipc"
	"github.com/ajitpratap0/tablecore/pkg/logger"
	"github.com/ajitpratap0/tablecore/pkg/observability"
)

// WriterConfig configures Write.
type WriterConfig struct {
	// RowGroupSize is the number of rows per row group
	RowGroupSize int
	Allocator    memory.Allocator
	// Compression is the column chunk codec: none, snappy, gzip, zstd or lz4
	Compression compression.Algorithm
}

// DefaultWriterConfig returns the default writer configuration.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		RowGroupSize: 10000,
		Allocator:    memory.NewGoAllocator(),
		Compression:  compression.Snappy,
	}
}

// Stats describes a finished export.
type Stats struct {
	Rows      int `json:"rows"`
	RowGroups int `json:"row_groups"`
}

func codecFor(alg compression.Algorithm) (compress.Compression, error) {
	switch alg {
	case compression.None, "":
		return compress.Codecs.Uncompressed, nil
	case compression.Snappy:
		return compress.Codecs.Snappy, nil
	case compression.Gzip:
		return compress.Codecs.Gzip, nil
	case compression.Zstd:
		return compress.Codecs.Zstd, nil
	case compression.LZ4:
		return compress.Codecs.Lz4Raw, nil
	default:
		return compress.Codecs.Uncompressed, errors.Newf(errors.ErrorTypeConfig, "parquet files cannot use %s compression", alg)
	}
}

// Write writes every row of table to w as a Parquet file, one row group per
// RowGroupSize rows.
func Write(ctx context.Context, w io.Writer, table *columnar.Table, cfg WriterConfig) (stats Stats, err error) {
	ctx, span := observability.StartSpan(ctx, "export_parquet")
	span.SetAttribute("table", table.Name())
	defer func() {
		span.SetAttribute("rows", stats.Rows)
		span.SetAttribute("row_groups", stats.RowGroups)
		span.Finish(err)
	}()

	if cfg.RowGroupSize <= 0 {
		cfg.RowGroupSize = DefaultWriterConfig().RowGroupSize
	}
	if cfg.Allocator == nil {
		cfg.Allocator = memory.NewGoAllocator()
	}
	codec, err := codecFor(cfg.Compression)
	if err != nil {
		return stats, err
	}
	span.SetAttribute("compression", codec.String())

	enc, err := arrowipc.NewEncoder(table)
	if err != nil {
		return stats, err
	}

	props := pq.NewWriterProperties(
		pq.WithCompression(codec),
		pq.WithAllocator(cfg.Allocator),
		pq.WithMaxRowGroupLength(int64(cfg.RowGroupSize)),
	)
	arrowProps := pqarrow.NewArrowWriterProperties(
		pqarrow.WithAllocator(cfg.Allocator),
		pqarrow.WithStoreSchema(),
	)
	fw, err := pqarrow.NewFileWriter(enc.Schema(), w, props, arrowProps)
	if err != nil {
		return stats, errors.Wrap(err, errors.ErrorTypeFile, "failed to create parquet writer")
	}

	batches, err := enc.Encode(ctx, cfg.Allocator, cfg.RowGroupSize, func(rec arrow.Record) error {
		if err := fw.Write(rec); err != nil {
			return errors.Wrap(err, errors.ErrorTypeFile, "failed to write row group")
		}
		return nil
	})
	stats.Rows = batches.Rows
	stats.RowGroups = batches.Batches
	if err != nil {
		_ = fw.Close()
		return stats, err
	}
	if err := fw.Close(); err != nil {
		return stats, errors.Wrap(err, errors.ErrorTypeFile, "failed to close parquet writer")
	}

	logger.Get().Debug("parquet export finished",
		zap.String("table", table.Name()),
		zap.Int("rows", stats.Rows),
		zap.Int("row_groups", stats.RowGroups),
		zap.String("compression", codec.String()))
	return stats, nil
}

// ReadTable reads a Parquet file written by Write into a new table. The
// table name is taken from the file unless the file has none, in which case
// name is used.
func ReadTable(ctx context.Context, r io.Reader, name string, opts ...columnar.Option) (table *columnar.Table, err error) {
	ctx, span := observability.StartSpan(ctx, "import_parquet")
	defer func() { span.Finish(err) }()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to read parquet data")
	}
	mem := memory.NewGoAllocator()
	pf, err := file.NewParquetReader(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to open parquet file")
	}
	defer pf.Close()

	fr, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{BatchSize: 4096}, mem)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to open parquet file")
	}
	sc, err := fr.Schema()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "invalid parquet schema")
	}
	dec, err := arrowipc.NewDecoder(sc, name, opts...)
	if err != nil {
		return nil, err
	}
	span.SetAttribute("table", dec.Table().Name())
	if pf.NumRowGroups() == 0 {
		return dec.Table(), nil
	}

	rr, err := fr.GetRecordReader(ctx, nil, nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to read parquet row groups")
	}
	defer rr.Release()

	for rr.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := dec.Append(rr.Record()); err != nil {
			return nil, err
		}
	}
	if err := rr.Err(); err != nil && err != io.EOF {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to read parquet row groups")
	}
	span.SetAttribute("rows", dec.Table().RowCount())
	return dec.Table(), nil
}
