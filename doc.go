// Package tablecore provides typed columnar tables and a text codec for the
// values they hold.
//
// A table is a set of equally long columns, one per field of its schema.
// Every column has a data type and stores its values in the most compact
// representation the type allows: numbers start as 8-bit integers and widen
// as values require, falling back to big numbers only for values no machine
// width can hold; booleans are packed into bits; text is interned.
//
// # Architecture
//
// The module is layered bottom-up:
//
//	pkg/datatype     - Closed set of data types and the Visitor used to consume them
//	pkg/value        - Go representation of values, including arbitrary precision numbers
//	pkg/temporal     - Parsing, normalizing and printing of dates, times and timestamps
//	pkg/codec        - Text literals: Parse and Print for every data type
//	pkg/columnar     - Columns, tables, CSV loading and writing
//	pkg/schema       - YAML type specs, the named type registry and schema inference
//	pkg/formats/arrowipc - Arrow IPC export and import
//	pkg/formats/parquet  - Parquet export and import
//	pkg/compression  - Compressed CSV and Arrow streams
//
// Supporting packages follow the same conventions throughout:
//
//	pkg/errors        - Structured errors separating bad input from internal failures
//	pkg/logger        - Structured logging with zap
//	pkg/metrics       - Prometheus counters and latency histograms
//	pkg/observability - OpenTelemetry tracing
//	pkg/config        - YAML configuration with environment overrides
//	pkg/pool          - Bounded interning pools
//
// # Quick Start
//
// Load a CSV file into a table:
//
//	import (
//	    "context"
//	    "github.com/ajitpratap0/tablecore/pkg/columnar"
//	    "github.com/ajitpratap0/tablecore/pkg/schema"
//	)
//
//	spec, _ := schema.LoadTableSpec("sales.yaml")
//	sc, _ := spec.Schema(nil)
//	table, _ := columnar.NewTable(spec.Name, sc)
//
//	report, err := table.LoadCSV(context.Background(), f, columnar.LoadOptions{SkipInvalid: true})
//
// Parse and print literals:
//
//	v, err := codec.Parse(`(at: 2020-01-02, label: "p")`, pointType)
//	text, err := codec.Print(v, pointType)
//
// # Errors
//
// Malformed input is reported as a data error carrying the offending snippet
// and the expected type; errors.IsUserData distinguishes it from internal
// errors, which signal a broken invariant and are never caused by input.
//
// # Command Line
//
// The tablecore command wraps the library:
//
//	tablecore parse --type '{kind: number, min_decimal_places: 2}' 4.5
//	tablecore schema infer sales.csv > sales.yaml
//	tablecore load sales.csv --schema sales.yaml --skip-invalid
//	tablecore export sales.csv --schema sales.yaml --out sales.arrow
//	tablecore export sales.csv --infer --out sales.parquet
//	tablecore config init tablecore.yaml
package tablecore
