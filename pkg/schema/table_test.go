package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/tablecore/pkg/columnar"
	"github.com/ajitpratap0/tablecore/pkg/datatype"
	"github.com/ajitpratap0/tablecore/pkg/errors"
)

const ordersSpec = `
name: orders
types:
  - name: Status
    tags:
      - name: Pending
      - name: Shipped
        inner: {kind: temporal, granularity: date}
columns:
  - name: id
    type: {kind: number}
  - name: customer
    type: {kind: text}
  - name: status
    type: {ref: Status}
  - name: lines
    type:
      kind: array
      elem:
        kind: record
        fields:
          - {name: sku, type: {kind: text}}
          - {name: qty, type: {kind: number}}
`

func TestTableSpecSchema(t *testing.T) {
	spec, err := ParseTableSpec([]byte(ordersSpec))
	require.NoError(t, err)
	assert.Equal(t, "orders", spec.Name)

	reg := NewRegistry(nil)
	schema, err := spec.Schema(reg)
	require.NoError(t, err)
	require.Len(t, schema.Fields, 4)

	status, err := reg.Latest("Status")
	require.NoError(t, err)
	assert.True(t, datatype.Equal(status.Type, schema.Fields[2].Type))
	assert.Equal(t, "array", datatype.Kind(schema.Fields[3].Type))

	table, err := columnar.NewTable(spec.Name, schema)
	require.NoError(t, err)
	require.NoError(t, table.AppendTextRow([]string{
		"1", "ada", "Shipped(2024-05-01)", `[(qty: 2, sku: "A-1")]`,
	}))
	assert.Equal(t, 1, table.RowCount())
}

func TestTableSpecErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown key", "name: t\ncolumns: []\nindexes: []\n"},
		{"no columns", "name: t\n"},
		{"bad column type", "name: t\ncolumns:\n  - {name: a, type: {kind: money}}\n"},
		{"duplicate column", "name: t\ncolumns:\n  - {name: a, type: {kind: text}}\n  - {name: a, type: {kind: text}}\n"},
		{"untagged named type", "name: t\ntypes:\n  - {kind: text, name: T}\ncolumns:\n  - {name: a, type: {kind: text}}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec, err := ParseTableSpec([]byte(tt.doc))
			if err == nil {
				_, err = spec.Schema(nil)
			}
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeValidation), err.Error())
		})
	}
}

func TestSpecOfSchemaRoundTrip(t *testing.T) {
	spec, err := ParseTableSpec([]byte(ordersSpec))
	require.NoError(t, err)
	schema, err := spec.Schema(nil)
	require.NoError(t, err)

	out, err := SpecOfSchema("orders", schema)
	require.NoError(t, err)
	data, err := out.Marshal()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "orders.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	reloaded, err := LoadTableSpec(path)
	require.NoError(t, err)
	again, err := reloaded.Schema(nil)
	require.NoError(t, err)

	require.Len(t, again.Fields, len(schema.Fields))
	for i := range schema.Fields {
		assert.Equal(t, schema.Fields[i].Name, again.Fields[i].Name)
		assert.True(t, datatype.Equal(schema.Fields[i].Type, again.Fields[i].Type), schema.Fields[i].Name)
	}

	_, err = LoadTableSpec(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, errors.IsType(err, errors.ErrorTypeFile))
}
