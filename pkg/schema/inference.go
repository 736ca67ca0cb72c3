package schema

import (
	"context"
	"encoding/csv"
	"io"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ajitpratap0/tablecore/pkg/columnar"
	"github.com/ajitpratap0/tablecore/pkg/datatype"
	"github.com/ajitpratap0/tablecore/pkg/errors"
	"github.com/ajitpratap0/tablecore/pkg/temporal"
	"github.com/ajitpratap0/tablecore/pkg/value"
)

// InferenceEngine picks column types for raw CSV text.
type InferenceEngine struct {
	logger *zap.Logger

	// Prefilters; a value only goes to the temporal parser when one matches
	datePattern *regexp.Regexp
	timePattern *regexp.Regexp

	sampleSize          int
	confidenceThreshold float64
}

// InferredType is the result of inferring one column.
type InferredType struct {
	Type          datatype.Type  `json:"-"`
	Kind          string         `json:"type"`
	Confidence    float64        `json:"confidence"`
	Nullable      bool           `json:"nullable"`
	Cardinality   int            `json:"cardinality"`
	Examples      []string       `json:"examples,omitempty"`
	NumericStats  *NumericStats  `json:"numeric_stats,omitempty"`
	StringStats   *StringStats   `json:"string_stats,omitempty"`
	TemporalStats *TemporalStats `json:"temporal_stats,omitempty"`
}

// NumericStats holds statistics for number columns
type NumericStats struct {
	Min      string `json:"min"`
	Max      string `json:"max"`
	Integral bool   `json:"integral"`
	// Scale is the largest number of decimal places seen
	Scale int32 `json:"scale"`
}

// StringStats holds statistics for text columns
type StringStats struct {
	MinLength int     `json:"min_length"`
	MaxLength int     `json:"max_length"`
	AvgLength float64 `json:"avg_length"`
}

// TemporalStats holds statistics for temporal columns
type TemporalStats struct {
	Min time.Time `json:"min"`
	Max time.Time `json:"max"`
}

// DefaultSampleSize is the number of rows InferCSV reads by default.
const DefaultSampleSize = 1000

// temporalOrder is the order granularities are tried in. A text matching
// one granularity does not match a later one.
var temporalOrder = []datatype.Granularity{
	datatype.Date,
	datatype.YearMonth,
	datatype.DateTime,
	datatype.DateTimeZoned,
	datatype.Time,
}

// NewInferenceEngine creates an engine that samples up to sampleSize rows;
// a non-positive size means DefaultSampleSize.
func NewInferenceEngine(logger *zap.Logger, sampleSize int) *InferenceEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sampleSize <= 0 {
		sampleSize = DefaultSampleSize
	}
	return &InferenceEngine{
		logger:              logger,
		datePattern:         regexp.MustCompile(`^\d{4}[-/]\d{2}`),
		timePattern:         regexp.MustCompile(`^\d{1,2}:\d{2}`),
		sampleSize:          sampleSize,
		confidenceThreshold: 0.95,
	}
}

// detected is the reading of a single cell.
type detected struct {
	label string // map key: number, boolean, text or the granularity name
	typ   datatype.Type
	num   decimal.Decimal
	at    time.Time
}

// InferType infers the type of one column from its raw cells. Empty cells
// are nulls and do not vote. When no type covers at least the confidence
// threshold of the non-null cells, the column is Text.
func (e *InferenceEngine) InferType(name string, samples []string) *InferredType {
	counts := make(map[string]int)
	readings := make([]detected, 0, len(samples))
	nulls := 0
	for _, s := range samples {
		if strings.TrimSpace(s) == "" {
			nulls++
			continue
		}
		d := e.detectValue(s)
		counts[d.label]++
		readings = append(readings, d)
	}

	inferred := &InferredType{
		Type:        datatype.Text{},
		Nullable:    nulls > 0,
		Cardinality: cardinality(samples),
		Examples:    examples(samples, 3),
	}
	if len(readings) == 0 {
		inferred.Kind = KindText
		return inferred
	}

	var dominant string
	maxCount := 0
	for label, count := range counts {
		if count > maxCount || (count == maxCount && label < dominant) {
			maxCount = count
			dominant = label
		}
	}
	inferred.Confidence = float64(maxCount) / float64(len(readings))
	if inferred.Confidence < e.confidenceThreshold && len(counts) > 1 {
		dominant = KindText
		inferred.Confidence = 1
	}

	for _, d := range readings {
		if d.label == dominant {
			inferred.Type = d.typ
			break
		}
	}
	if dominant == KindText {
		inferred.Type = datatype.Text{}
	}
	inferred.Kind = datatype.Kind(inferred.Type)
	e.addStatistics(inferred, dominant, readings, samples)

	e.logger.Debug("column type inferred",
		zap.String("column", name),
		zap.String("type", inferred.Type.String()),
		zap.Float64("confidence", inferred.Confidence))
	return inferred
}

// detectValue reads s the way a column of each candidate type would.
func (e *InferenceEngine) detectValue(s string) detected {
	trimmed := strings.TrimSpace(s)
	if strings.EqualFold(trimmed, "true") || strings.EqualFold(trimmed, "false") {
		return detected{label: KindBoolean, typ: datatype.Boolean{}}
	}
	if d, ok := readNumber(trimmed); ok {
		return detected{label: KindNumber, typ: datatype.Number{}, num: d}
	}
	if e.datePattern.MatchString(trimmed) || e.timePattern.MatchString(trimmed) {
		for _, g := range temporalOrder {
			if t, err := temporal.Parse(trimmed, g); err == nil {
				return detected{label: g.String(), typ: datatype.Temporal{Granularity: g}, at: t}
			}
		}
	}
	return detected{label: KindText, typ: datatype.Text{}}
}

// readNumber accepts what a number column reads: thousands separators,
// exact decimals and exponents.
func readNumber(s string) (decimal.Decimal, bool) {
	plain := strings.ReplaceAll(s, ",", "")
	if plain == "" {
		return decimal.Decimal{}, false
	}
	if n, err := value.ParseNumber(plain); err == nil {
		d, err := decimal.NewFromString(n.String())
		return d, err == nil
	}
	d, err := decimal.NewFromString(plain)
	return d, err == nil
}

func (e *InferenceEngine) addStatistics(inferred *InferredType, dominant string, readings []detected, samples []string) {
	switch inferred.Kind {
	case KindNumber:
		var stats *NumericStats
		var lo, hi decimal.Decimal
		for _, d := range readings {
			if d.label != dominant {
				continue
			}
			if stats == nil {
				stats = &NumericStats{Integral: true}
				lo, hi = d.num, d.num
			}
			lo = decimal.Min(lo, d.num)
			hi = decimal.Max(hi, d.num)
			if !d.num.IsInteger() {
				stats.Integral = false
			}
			if scale := -d.num.Exponent(); scale > stats.Scale {
				stats.Scale = scale
			}
		}
		if stats != nil {
			stats.Min, stats.Max = lo.String(), hi.String()
		}
		inferred.NumericStats = stats
	case KindTemporal:
		var stats *TemporalStats
		for _, d := range readings {
			if d.label != dominant {
				continue
			}
			if stats == nil {
				stats = &TemporalStats{Min: d.at, Max: d.at}
			}
			if d.at.Before(stats.Min) {
				stats.Min = d.at
			}
			if d.at.After(stats.Max) {
				stats.Max = d.at
			}
		}
		inferred.TemporalStats = stats
	case KindText:
		stats := &StringStats{MinLength: int(^uint(0) >> 1)}
		total, count := 0, 0
		for _, s := range samples {
			if strings.TrimSpace(s) == "" {
				continue
			}
			stats.MinLength = min(stats.MinLength, len(s))
			stats.MaxLength = max(stats.MaxLength, len(s))
			total += len(s)
			count++
		}
		if count > 0 {
			stats.AvgLength = float64(total) / float64(count)
		}
		inferred.StringStats = stats
	}
}

// InferSchema infers one column per header name from rows of cells.
func (e *InferenceEngine) InferSchema(header []string, rows [][]string) (columnar.Schema, []*InferredType, error) {
	if len(header) == 0 {
		return columnar.Schema{}, nil, errors.New(errors.ErrorTypeData, "no columns to infer")
	}
	fields := make([]columnar.FieldSchema, len(header))
	inferred := make([]*InferredType, len(header))
	column := make([]string, 0, len(rows))
	for i, name := range header {
		column = column[:0]
		for _, row := range rows {
			if i < len(row) {
				column = append(column, row[i])
			} else {
				column = append(column, "")
			}
		}
		inferred[i] = e.InferType(name, column)
		fields[i] = columnar.FieldSchema{Name: name, Type: inferred[i].Type}
	}
	schema := columnar.Schema{Fields: fields}
	if err := schema.Validate(); err != nil {
		return columnar.Schema{}, nil, errors.Wrap(err, errors.ErrorTypeData, "csv header")
	}
	return schema, inferred, nil
}

// InferCSV reads a header and up to the sample size of rows from r and
// infers their schema.
func (e *InferenceEngine) InferCSV(ctx context.Context, r io.Reader) (columnar.Schema, []*InferredType, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return columnar.Schema{}, nil, errors.New(errors.ErrorTypeData, "csv input has no header row")
	}
	if err != nil {
		return columnar.Schema{}, nil, errors.Wrap(err, errors.ErrorTypeData, "cannot read csv header")
	}
	header = slices.Clone(header)

	var rows [][]string
	for len(rows) < e.sampleSize {
		if err := ctx.Err(); err != nil {
			return columnar.Schema{}, nil, err
		}
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return columnar.Schema{}, nil, errors.Wrap(err, errors.ErrorTypeData, "malformed csv")
		}
		rows = append(rows, record)
	}
	return e.InferSchema(header, rows)
}

func cardinality(samples []string) int {
	seen := make(map[string]struct{}, len(samples))
	for _, s := range samples {
		if strings.TrimSpace(s) != "" {
			seen[s] = struct{}{}
		}
	}
	return len(seen)
}

func examples(samples []string, n int) []string {
	var out []string
	seen := make(map[string]struct{}, n)
	for _, s := range samples {
		if len(out) == n {
			break
		}
		if _, dup := seen[s]; dup || strings.TrimSpace(s) == "" {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
