// Package columnar stores large sequences of typed values in compact,
// column-oriented form.
//
// # Overview
//
// NewColumn selects a storage for a datatype.Type:
//
//   - Number: NumberColumn, backed by the narrowest of int8, int16, int32 and
//     int64 that holds every row, with side tables for big integers and
//     decimals
//   - Text: TextColumn, with values interned through a bounded pool
//   - Boolean: BoolColumn, bit-packed
//   - Temporal: TemporalColumn
//   - Tagged: TaggedColumn, or NumericTaggedColumn when the only valued tag
//     is a Number (as in {Missing, Number(n)})
//   - Record: RecordColumn, one column per field
//   - Array: ArrayColumn, one nested column per row
//
// Every column accepts typed values (Append) and raw cells from an external
// source (AppendText), and returns values by row (Get) in the representation
// described by package value.
//
// # Numeric Widths
//
// A NumberColumn starts at byte width and widens when a value does not fit:
//
//	col, _ := columnar.NewNumberColumn(datatype.Number{}, 0, -1)
//	_ = col.AddRead("123")     // byte
//	_ = col.AddRead("40,000")  // widened to int, grouping ignored
//	_ = col.AddRead("1e40")    // decimal side table, long width
//
// A column built with N tags reserves the N lowest codes of each width for
// tag indices, so a sum type such as {Missing, NA, Number(n)} is stored
// without boxing.
//
// # Tables
//
// Table groups named columns and loads or saves them as CSV:
//
//	table, err := columnar.NewTable("sales", schema)
//	report, err := table.LoadCSV(ctx, file, columnar.LoadOptions{SkipInvalid: true})
//	err = table.WriteCSV(ctx, out)
//
// # Thread Safety
//
// Each column has a single writer. A column's View may be shared between
// goroutines once appends have finished. Table serializes its writers and
// allows concurrent readers.
//
// # Errors
//
// Malformed input produces errors for which errors.IsUserData is true.
// Appending a Go value of the wrong type, and any corruption of a column's
// internal structure, produce internal errors.
package columnar
