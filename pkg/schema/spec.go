// Package schema describes table schemas in YAML and infers column types
// from raw CSV samples.
//
// A column type is written as a TypeSpec:
//
//	columns:
//	  - name: price
//	    type: {kind: number, unit: EUR, min_decimal_places: 2}
//	  - name: shipped
//	    type: {kind: temporal, granularity: date}
//	  - name: status
//	    type: {ref: Status}
//	types:
//	  - name: Status
//	    tags:
//	      - name: Pending
//	      - name: Delivered
//	        inner: {kind: temporal, granularity: date}
//
// Named tagged types live in a Registry and are referenced with ref.
package schema

import (
	"strings"

	"github.com/ajitpratap0/tablecore/pkg/datatype"
	"github.com/ajitpratap0/tablecore/pkg/errors"
)

// Kinds accepted in TypeSpec.Kind.
const (
	KindNumber   = "number"
	KindText     = "text"
	KindBoolean  = "boolean"
	KindTemporal = "temporal"
	KindTagged   = "tagged"
	KindRecord   = "record"
	KindArray    = "array"
)

// TypeSpec is the YAML form of a datatype.Type.
type TypeSpec struct {
	Kind string `yaml:"kind,omitempty" json:"kind,omitempty"`
	// Ref names a tagged type held by a Registry. A spec with Ref has no
	// other fields.
	Ref string `yaml:"ref,omitempty" json:"ref,omitempty"`

	// number
	Unit             string `yaml:"unit,omitempty" json:"unit,omitempty"`
	MinDecimalPlaces int    `yaml:"min_decimal_places,omitempty" json:"min_decimal_places,omitempty"`

	// temporal: date, time, year_month, date_time, date_time_zoned
	Granularity string `yaml:"granularity,omitempty" json:"granularity,omitempty"`

	// tagged
	Name string     `yaml:"name,omitempty" json:"name,omitempty"`
	Args []TypeSpec `yaml:"args,omitempty" json:"args,omitempty"`
	Tags []TagSpec  `yaml:"tags,omitempty" json:"tags,omitempty"`

	// record
	Fields []FieldSpec `yaml:"fields,omitempty" json:"fields,omitempty"`

	// array; nil means an unknown element type
	Elem *TypeSpec `yaml:"elem,omitempty" json:"elem,omitempty"`
}

// TagSpec is one tag of a tagged type.
type TagSpec struct {
	Name  string    `yaml:"name" json:"name"`
	Inner *TypeSpec `yaml:"inner,omitempty" json:"inner,omitempty"`
}

// FieldSpec is one field of a record type.
type FieldSpec struct {
	Name string   `yaml:"name" json:"name"`
	Type TypeSpec `yaml:"type" json:"type"`
}

// Build resolves s into a datatype.Type. References are looked up in reg,
// which may be nil when s has none.
func (s TypeSpec) Build(reg *Registry) (datatype.Type, error) {
	if s.Ref != "" {
		if s.Kind != "" {
			return nil, errors.Newf(errors.ErrorTypeValidation, "type ref %q cannot also set kind %q", s.Ref, s.Kind)
		}
		if reg == nil {
			return nil, errors.Newf(errors.ErrorTypeValidation, "type ref %q without a registry", s.Ref)
		}
		entry, err := reg.Latest(s.Ref)
		if err != nil {
			return nil, err
		}
		return entry.Type, nil
	}

	switch strings.ToLower(s.Kind) {
	case KindNumber:
		return datatype.NewNumber(s.Unit, s.MinDecimalPlaces)
	case KindText:
		return datatype.Text{}, nil
	case KindBoolean:
		return datatype.Boolean{}, nil
	case KindTemporal:
		g, err := ParseGranularity(s.Granularity)
		if err != nil {
			return nil, err
		}
		return datatype.NewTemporal(g)
	case KindTagged:
		return s.buildTagged(reg)
	case KindRecord:
		fields := make([]datatype.Field, len(s.Fields))
		for i, f := range s.Fields {
			t, err := f.Type.Build(reg)
			if err != nil {
				return nil, errors.Wrap(err, errors.ErrorTypeValidation, "field "+f.Name)
			}
			fields[i] = datatype.Field{Name: f.Name, Type: t}
		}
		return datatype.NewRecord(fields...)
	case KindArray:
		if s.Elem == nil {
			return datatype.NewArray(nil), nil
		}
		elem, err := s.Elem.Build(reg)
		if err != nil {
			return nil, err
		}
		return datatype.NewArray(elem), nil
	case "":
		return nil, errors.New(errors.ErrorTypeValidation, "type spec has neither kind nor ref")
	default:
		return nil, errors.Newf(errors.ErrorTypeValidation, "unknown type kind %q", s.Kind)
	}
}

func (s TypeSpec) buildTagged(reg *Registry) (datatype.Tagged, error) {
	args := make([]datatype.Type, len(s.Args))
	for i, a := range s.Args {
		t, err := a.Build(reg)
		if err != nil {
			return datatype.Tagged{}, err
		}
		args[i] = t
	}
	tags := make([]datatype.Tag, len(s.Tags))
	for i, tag := range s.Tags {
		tags[i] = datatype.Tag{Name: tag.Name}
		if tag.Inner != nil {
			inner, err := tag.Inner.Build(reg)
			if err != nil {
				return datatype.Tagged{}, errors.Wrap(err, errors.ErrorTypeValidation, "tag "+tag.Name)
			}
			tags[i].Inner = inner
		}
	}
	return datatype.NewTagged(s.Name, args, tags...)
}

// granularityKeys are the YAML spellings of the temporal granularities.
var granularityKeys = map[string]datatype.Granularity{
	"date":            datatype.Date,
	"time":            datatype.Time,
	"year_month":      datatype.YearMonth,
	"date_time":       datatype.DateTime,
	"date_time_zoned": datatype.DateTimeZoned,
}

// ParseGranularity accepts the YAML spellings (date_time) as well as the
// type names (DateTime).
func ParseGranularity(s string) (datatype.Granularity, error) {
	if g, ok := granularityKeys[strings.ToLower(s)]; ok {
		return g, nil
	}
	return datatype.ParseGranularity(s)
}

func granularityKey(g datatype.Granularity) string {
	for k, v := range granularityKeys {
		if v == g {
			return k
		}
	}
	return g.String()
}

// SpecOf returns the spec that builds t. Tagged types are written inline.
func SpecOf(t datatype.Type) (TypeSpec, error) {
	return datatype.Apply[TypeSpec](t, specWriter{})
}

type specWriter struct{}

func (specWriter) Number(t datatype.Number) (TypeSpec, error) {
	return TypeSpec{Kind: KindNumber, Unit: t.Unit, MinDecimalPlaces: t.MinDecimalPlaces}, nil
}

func (specWriter) Text(datatype.Text) (TypeSpec, error) {
	return TypeSpec{Kind: KindText}, nil
}

func (specWriter) Boolean(datatype.Boolean) (TypeSpec, error) {
	return TypeSpec{Kind: KindBoolean}, nil
}

func (specWriter) Temporal(t datatype.Temporal) (TypeSpec, error) {
	return TypeSpec{Kind: KindTemporal, Granularity: granularityKey(t.Granularity)}, nil
}

func (specWriter) Tagged(t datatype.Tagged) (TypeSpec, error) {
	s := TypeSpec{Kind: KindTagged, Name: t.Name}
	for _, a := range t.Args {
		as, err := SpecOf(a)
		if err != nil {
			return TypeSpec{}, err
		}
		s.Args = append(s.Args, as)
	}
	for _, tag := range t.Tags {
		ts := TagSpec{Name: tag.Name}
		if tag.Inner != nil {
			inner, err := SpecOf(tag.Inner)
			if err != nil {
				return TypeSpec{}, err
			}
			ts.Inner = &inner
		}
		s.Tags = append(s.Tags, ts)
	}
	return s, nil
}

func (specWriter) Record(t datatype.Record) (TypeSpec, error) {
	s := TypeSpec{Kind: KindRecord}
	for _, f := range t.Fields {
		fs, err := SpecOf(f.Type)
		if err != nil {
			return TypeSpec{}, err
		}
		s.Fields = append(s.Fields, FieldSpec{Name: f.Name, Type: fs})
	}
	return s, nil
}

func (specWriter) Array(t datatype.Array) (TypeSpec, error) {
	s := TypeSpec{Kind: KindArray}
	if t.Elem != nil {
		elem, err := SpecOf(t.Elem)
		if err != nil {
			return TypeSpec{}, err
		}
		s.Elem = &elem
	}
	return s, nil
}
