package columnar

import (
	"math"
	"math/big"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ajitpratap0/tablecore/pkg/datatype"
	"github.com/ajitpratap0/tablecore/pkg/errors"
	"github.com/ajitpratap0/tablecore/pkg/metrics"
	"github.com/ajitpratap0/tablecore/pkg/value"
)

// Width is the integer width of a NumberColumn's backing array.
type Width int

const (
	WidthByte Width = iota
	WidthShort
	WidthInt
	WidthLong
)

func (w Width) String() string {
	switch w {
	case WidthByte:
		return "byte"
	case WidthShort:
		return "short"
	case WidthInt:
		return "int"
	case WidthLong:
		return "long"
	}
	return "unknown"
}

// In the long stage the two lowest codes redirect a row to a side table.
const (
	seeBigInt     int64 = math.MinInt64
	seeBigDecimal int64 = math.MinInt64 + 1
)

const (
	initialCapacity = 16
	noNumericTag    = -1
)

// tagBase returns the code of tag 0 at width w. Tag t is stored as
// tagBase+t; numbers start at tagBase+tagCount.
func (w Width) tagBase() int64 {
	switch w {
	case WidthByte:
		return math.MinInt8
	case WidthShort:
		return math.MinInt16
	case WidthInt:
		return math.MinInt32
	default:
		return seeBigDecimal + 1
	}
}

func (w Width) max() int64 {
	switch w {
	case WidthByte:
		return math.MaxInt8
	case WidthShort:
		return math.MaxInt16
	case WidthInt:
		return math.MaxInt32
	default:
		return math.MaxInt64
	}
}

func (w Width) size() int64 {
	return int64(1) << w
}

// backing is one of four fixed-width arrays. len of the active array is the
// capacity; rows past the owner's filled count are unused.
type backing struct {
	width  Width
	bytes  []int8
	shorts []int16
	ints   []int32
	longs  []int64
}

func newBacking(w Width, capacity int) backing {
	b := backing{width: w}
	switch w {
	case WidthByte:
		b.bytes = make([]int8, capacity)
	case WidthShort:
		b.shorts = make([]int16, capacity)
	case WidthInt:
		b.ints = make([]int32, capacity)
	default:
		b.longs = make([]int64, capacity)
	}
	return b
}

func (b backing) capacity() int {
	switch b.width {
	case WidthByte:
		return len(b.bytes)
	case WidthShort:
		return len(b.shorts)
	case WidthInt:
		return len(b.ints)
	default:
		return len(b.longs)
	}
}

func (b backing) raw(i int) int64 {
	switch b.width {
	case WidthByte:
		return int64(b.bytes[i])
	case WidthShort:
		return int64(b.shorts[i])
	case WidthInt:
		return int64(b.ints[i])
	default:
		return b.longs[i]
	}
}

// set stores v, which must fit the width, at row i.
func (b backing) set(i int, v int64) {
	switch b.width {
	case WidthByte:
		b.bytes[i] = int8(v)
	case WidthShort:
		b.shorts[i] = int16(v)
	case WidthInt:
		b.ints[i] = int32(v)
	default:
		b.longs[i] = v
	}
}

// grown returns a copy of the first filled rows of b in an array of twice
// the capacity.
func (b backing) grown(filled int) backing {
	next := newBacking(b.width, max(max(filled, b.capacity())*2, initialCapacity))
	switch b.width {
	case WidthByte:
		copy(next.bytes, b.bytes[:filled])
	case WidthShort:
		copy(next.shorts, b.shorts[:filled])
	case WidthInt:
		copy(next.ints, b.ints[:filled])
	default:
		copy(next.longs, b.longs[:filled])
	}
	return next
}

// widened returns the first filled rows of b re-encoded at width to. Tag
// codes move to the tag range of the new width; numbers keep their value.
func (b backing) widened(to Width, filled, tagCount int) backing {
	next := newBacking(to, max(b.capacity(), initialCapacity))
	fromBase, toBase := b.width.tagBase(), to.tagBase()
	fromBound := fromBase + int64(tagCount)
	for i := 0; i < filled; i++ {
		v := b.raw(i)
		if v < fromBound {
			v = toBase + (v - fromBase)
		}
		next.set(i, v)
	}
	return next
}

// NumberColumn stores numbers, and optionally tag indices, in the narrowest
// integer width that holds every row. The width only grows. Integers outside
// the long range and decimals live in sparse side tables keyed by row, with a
// sentinel code in the long array.
//
// A column created with tagCount N reserves the N lowest codes of every width
// for tag indices 0..N-1. When one of those tags stands for "a number"
// (numericTag), rows of that tag are stored as plain numbers.
type NumberColumn struct {
	typ        datatype.Type
	tagCount   int
	numericTag int
	store      backing
	filled     int
	bigInts    map[int]*big.Int
	decimals   map[int]decimal.Decimal
	logger     *zap.Logger
	appended   prometheus.Counter
	views      viewCache
}

// NewNumberColumn returns an empty column of type t reserving tagCount tag
// codes. numericTag is the tag whose rows hold numbers, or -1 when tags and
// numbers are unrelated.
func NewNumberColumn(t datatype.Type, tagCount, numericTag int, opts ...Option) (*NumberColumn, error) {
	return newNumberColumn(t, tagCount, numericTag, buildOptions(opts), appendCounter(t))
}

func newNumberColumn(t datatype.Type, tagCount, numericTag int, o options, counter prometheus.Counter) (*NumberColumn, error) {
	if tagCount < 0 {
		return nil, errors.Internal("columnar: negative tag count %d", tagCount)
	}
	if numericTag != noNumericTag && (numericTag < 0 || numericTag >= tagCount) {
		return nil, errors.Internal("columnar: numeric tag %d out of range [0, %d)", numericTag, tagCount)
	}
	c := &NumberColumn{
		typ:        t,
		tagCount:   tagCount,
		numericTag: numericTag,
		logger:     o.logger,
		appended:   counter,
	}
	w := WidthByte
	for !c.tagsFit(w) {
		w++
	}
	c.store = newBacking(w, initialCapacity)
	return c, nil
}

// tagsFit reports whether every tag code exists at width w.
func (c *NumberColumn) tagsFit(w Width) bool {
	return c.tagCount == 0 || w == WidthLong || w.tagBase()+int64(c.tagCount)-1 <= w.max()
}

// lowest returns the smallest number storable at width w. When it exceeds
// w.max() the width is saturated by tags and holds no numbers.
func (c *NumberColumn) lowest(w Width) int64 {
	return w.tagBase() + int64(c.tagCount)
}

func (c *NumberColumn) fits(w Width, v int64) bool {
	return v >= c.lowest(w) && v <= w.max()
}

func (c *NumberColumn) Type() datatype.Type { return c.typ }
func (c *NumberColumn) Len() int            { return c.filled }

// Width returns the active width.
func (c *NumberColumn) Width() Width { return c.store.width }

// BigCount returns the number of rows held in side tables.
func (c *NumberColumn) BigCount() int { return len(c.bigInts) + len(c.decimals) }

func (c *NumberColumn) View() *View { return c.views.get(c) }

func (c *NumberColumn) Append(v any) error {
	n, ok := v.(value.Number)
	if !ok {
		return mismatch(c.typ, v)
	}
	c.Add(n)
	return nil
}

// Add appends n as a numeric row.
func (c *NumberColumn) Add(n value.Number) {
	if c.appended != nil {
		c.appended.Inc()
	}
	if n.IsDecimal() {
		c.addSide(seeBigDecimal, n)
		return
	}
	if v, ok := n.Int64(); ok {
		c.addInt64(v)
		return
	}
	c.addSide(seeBigInt, n)
}

func (c *NumberColumn) addInt64(v int64) {
	to := c.store.width
	for !c.fits(to, v) {
		if to == WidthLong {
			// Inside the reserved range of the long stage.
			c.addSide(seeBigInt, value.Int(v))
			return
		}
		to++
	}
	c.promote(to)
	c.ensureCapacity()
	c.store.set(c.filled, v)
	c.filled++
}

// addSide stores n in the side table selected by sentinel.
func (c *NumberColumn) addSide(sentinel int64, n value.Number) {
	c.promote(WidthLong)
	c.ensureCapacity()
	c.store.set(c.filled, sentinel)
	if sentinel == seeBigInt {
		if c.bigInts == nil {
			c.bigInts = make(map[int]*big.Int)
		}
		bi, _ := n.BigInt()
		c.bigInts[c.filled] = bi
		metrics.BigNumberFallbacks.WithLabelValues("bigint").Inc()
	} else {
		if c.decimals == nil {
			c.decimals = make(map[int]decimal.Decimal)
		}
		c.decimals[c.filled] = n.AsDecimal()
		metrics.BigNumberFallbacks.WithLabelValues("decimal").Inc()
	}
	c.filled++
}

// AddTag appends a row holding tag t. Adding the numeric tag does nothing:
// the number that follows is the row.
func (c *NumberColumn) AddTag(t int) error {
	if t == c.numericTag {
		return nil
	}
	if t < 0 || t >= c.tagCount {
		return errors.Internal("columnar: tag %d out of range [0, %d)", t, c.tagCount)
	}
	c.ensureCapacity()
	c.store.set(c.filled, c.store.width.tagBase()+int64(t))
	c.filled++
	return nil
}

// AddRead appends text read from an external source. Grouping separators
// are ignored and the result is stored in the narrowest form that holds it.
func (c *NumberColumn) AddRead(text string) error {
	s := strings.TrimSpace(strings.ReplaceAll(text, ",", ""))
	n, err := value.ParseNumber(s)
	if err != nil {
		// Lenient forms such as exponents still read as decimals.
		d, derr := decimal.NewFromString(s)
		if derr != nil || s == "" {
			metrics.ParseErrors.WithLabelValues("number").Inc()
			return errors.Data("not a number", text, c.typ.String(), text)
		}
		n = value.Decimal(d)
	}
	c.Add(n)
	return nil
}

func (c *NumberColumn) AppendText(raw string) error {
	return c.AddRead(raw)
}

func (c *NumberColumn) ensureCapacity() {
	if c.filled >= c.store.capacity() {
		c.store = c.store.grown(c.filled)
	}
}

// promote widens the backing array to width to. It never narrows.
func (c *NumberColumn) promote(to Width) {
	from := c.store.width
	if to <= from {
		return
	}
	c.store = c.store.widened(to, c.filled, c.tagCount)
	metrics.WidthPromotions.WithLabelValues(to.String()).Inc()
	c.logger.Debug("numeric column widened",
		zap.Stringer("from", from),
		zap.Stringer("to", to),
		zap.Int("rows", c.filled))
}

// isTagCode reports whether raw, read at the active width, is a tag code.
func (c *NumberColumn) isTagCode(raw int64) bool {
	base := c.store.width.tagBase()
	return raw >= base && raw < base+int64(c.tagCount)
}

func (c *NumberColumn) isSentinel(raw int64) bool {
	return c.store.width == WidthLong && (raw == seeBigInt || raw == seeBigDecimal)
}

// GetTag returns the tag of row i; numeric rows report the numeric tag.
func (c *NumberColumn) GetTag(i int) (int, error) {
	if i < 0 || i >= c.filled {
		return 0, outOfRange(i, c.filled)
	}
	raw := c.store.raw(i)
	if !c.isSentinel(raw) && c.isTagCode(raw) {
		return int(raw - c.store.width.tagBase()), nil
	}
	if c.numericTag == noNumericTag {
		return 0, errors.Internal("columnar: row %d holds a number, not a tag", i)
	}
	return c.numericTag, nil
}

// GetNumber returns the number in row i.
func (c *NumberColumn) GetNumber(i int) (value.Number, error) {
	if i < 0 || i >= c.filled {
		return value.Number{}, outOfRange(i, c.filled)
	}
	raw := c.store.raw(i)
	switch {
	case c.isSentinel(raw) && raw == seeBigInt:
		bi, ok := c.bigInts[i]
		if !ok {
			return value.Number{}, errors.Internal("columnar: row %d has no big integer", i)
		}
		return value.BigInt(bi), nil
	case c.isSentinel(raw):
		d, ok := c.decimals[i]
		if !ok {
			return value.Number{}, errors.Internal("columnar: row %d has no decimal", i)
		}
		return value.Decimal(d), nil
	case c.isTagCode(raw):
		return value.Number{}, errors.Internal("columnar: row %d holds tag %d, not a number", i, raw-c.store.width.tagBase())
	}
	return value.Int(raw), nil
}

func (c *NumberColumn) Get(i int) (any, error) {
	n, err := c.GetNumber(i)
	if err != nil {
		return nil, err
	}
	return n, nil
}

func (c *NumberColumn) Truncate(n int) {
	if n < 0 {
		n = 0
	}
	if n >= c.filled {
		return
	}
	for row := range c.bigInts {
		if row >= n {
			delete(c.bigInts, row)
		}
	}
	for row := range c.decimals {
		if row >= n {
			delete(c.decimals, row)
		}
	}
	c.filled = n
}

func (c *NumberColumn) MemoryUsage() int64 {
	total := int64(c.store.capacity()) * c.store.width.size()
	for _, bi := range c.bigInts {
		total += 32 + int64(len(bi.Bits()))*8
	}
	total += int64(len(c.decimals)) * 48
	return total
}
