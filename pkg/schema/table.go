package schema

import (
	"bytes"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/tablecore/pkg/columnar"
	"github.com/ajitpratap0/tablecore/pkg/errors"
)

// TableSpec is the YAML form of a table schema.
type TableSpec struct {
	Name string `yaml:"name"`
	// Types are named tagged types registered before the columns are built
	Types   []TypeSpec   `yaml:"types,omitempty"`
	Columns []ColumnSpec `yaml:"columns"`
}

// ColumnSpec is one column of a table spec.
type ColumnSpec struct {
	Name string   `yaml:"name"`
	Type TypeSpec `yaml:"type"`
}

// ParseTableSpec decodes a YAML table spec. Unknown keys are rejected.
func ParseTableSpec(data []byte) (*TableSpec, error) {
	var spec TableSpec
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&spec); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, "invalid table spec")
	}
	return &spec, nil
}

// LoadTableSpec reads and decodes the table spec at path.
func LoadTableSpec(path string) (*TableSpec, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is chosen by the operator
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "cannot read table spec").WithDetail("path", path)
	}
	return ParseTableSpec(data)
}

// Marshal encodes the spec as YAML.
func (s *TableSpec) Marshal() ([]byte, error) {
	return yaml.Marshal(s)
}

// Schema registers the spec's named types in reg and builds the table
// schema. reg may be nil, in which case a private registry is used.
func (s *TableSpec) Schema(reg *Registry) (columnar.Schema, error) {
	if reg == nil {
		reg = NewRegistry(nil)
	}
	if err := reg.registerSpecs(s.Types); err != nil {
		return columnar.Schema{}, err
	}

	fields := make([]columnar.FieldSchema, len(s.Columns))
	for i, c := range s.Columns {
		t, err := c.Type.Build(reg)
		if err != nil {
			return columnar.Schema{}, errors.Wrap(err, errors.ErrorTypeValidation, "column "+c.Name)
		}
		fields[i] = columnar.FieldSchema{Name: c.Name, Type: t}
	}
	schema := columnar.Schema{Fields: fields}
	if err := schema.Validate(); err != nil {
		return columnar.Schema{}, err
	}
	return schema, nil
}

// SpecOfSchema returns the table spec describing schema. Tagged column
// types are written inline.
func SpecOfSchema(name string, schema columnar.Schema) (*TableSpec, error) {
	spec := &TableSpec{Name: name, Columns: make([]ColumnSpec, len(schema.Fields))}
	for i, f := range schema.Fields {
		t, err := SpecOf(f.Type)
		if err != nil {
			return nil, err
		}
		spec.Columns[i] = ColumnSpec{Name: f.Name, Type: t}
	}
	return spec, nil
}

func sortSpecs(specs []TypeSpec) {
	slices.SortFunc(specs, func(a, b TypeSpec) int { return strings.Compare(a.Name, b.Name) })
}
