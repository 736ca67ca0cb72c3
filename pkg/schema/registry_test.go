package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/tablecore/pkg/datatype"
	"github.com/ajitpratap0/tablecore/pkg/errors"
	"github.com/ajitpratap0/tablecore/pkg/testutil"
)

func statusType(t *testing.T, tags ...datatype.Tag) datatype.Tagged {
	t.Helper()
	typ, err := datatype.NewTagged("Status", nil, tags...)
	require.NoError(t, err)
	return typ
}

func TestRegistryRegisterIsIdempotent(t *testing.T) {
	reg := NewRegistry(testutil.TestLogger(t))
	status := statusType(t, datatype.Tag{Name: "Open"}, datatype.Tag{Name: "Closed"})

	first, err := reg.Register(status)
	require.NoError(t, err)
	second, err := reg.Register(statusType(t, datatype.Tag{Name: "Open"}, datatype.Tag{Name: "Closed"}))
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, first.Version)
	assert.NotEmpty(t, first.Fingerprint)
}

func TestRegistryBackwardCompatibility(t *testing.T) {
	reg := NewRegistry(testutil.TestLogger(t))
	_, err := reg.Register(statusType(t, datatype.Tag{Name: "Open"}, datatype.Tag{Name: "Closed"}))
	require.NoError(t, err)

	// Appending a tag keeps stored indexes valid.
	v2, err := reg.Register(statusType(t,
		datatype.Tag{Name: "Open"}, datatype.Tag{Name: "Closed"}, datatype.Tag{Name: "Archived"}))
	require.NoError(t, err)
	assert.Equal(t, 2, v2.Version)

	tests := []struct {
		name string
		tags []datatype.Tag
	}{
		{"reordered", []datatype.Tag{{Name: "Closed"}, {Name: "Open"}, {Name: "Archived"}}},
		{"dropped", []datatype.Tag{{Name: "Open"}}},
		{"inner changed", []datatype.Tag{{Name: "Open", Inner: datatype.Text{}}, {Name: "Closed"}, {Name: "Archived"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := reg.Register(statusType(t, tt.tags...))
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
		})
	}

	latest, err := reg.Latest("Status")
	require.NoError(t, err)
	assert.Equal(t, 2, latest.Version)
}

func TestRegistryCompatibilityNone(t *testing.T) {
	reg := NewRegistry(nil)
	reg.SetCompatibilityMode("Status", CompatibilityNone)

	_, err := reg.Register(statusType(t, datatype.Tag{Name: "Open"}, datatype.Tag{Name: "Closed"}))
	require.NoError(t, err)
	_, err = reg.Register(statusType(t, datatype.Tag{Name: "Closed"}))
	require.NoError(t, err)

	history, err := reg.History("Status")
	require.NoError(t, err)
	require.Len(t, history, 2)

	v1, err := reg.Get("Status", 1)
	require.NoError(t, err)
	assert.Len(t, v1.Type.Tags, 2)

	_, err = reg.Get("Status", 3)
	assert.Error(t, err)
	_, err = reg.Latest("Other")
	assert.Error(t, err)
}

func TestRegistryRejectsUnnamedType(t *testing.T) {
	reg := NewRegistry(nil)
	_, err := reg.Register(datatype.Tagged{Tags: []datatype.Tag{{Name: "A"}}})
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

func TestRegistryExportImport(t *testing.T) {
	reg := NewRegistry(nil)
	unit := statusType(t, datatype.Tag{Name: "Open"})
	unit.Name = "Unit"
	_, err := reg.Register(unit)
	require.NoError(t, err)
	_, err = reg.Register(statusType(t,
		datatype.Tag{Name: "Open"},
		datatype.Tag{Name: "Closed", Inner: datatype.Temporal{Granularity: datatype.Date}}))
	require.NoError(t, err)

	data, err := reg.Export()
	require.NoError(t, err)

	restored := NewRegistry(nil)
	require.NoError(t, restored.Import(data))
	for _, name := range []string{"Status", "Unit"} {
		want, err := reg.Latest(name)
		require.NoError(t, err)
		got, err := restored.Latest(name)
		require.NoError(t, err)
		assert.True(t, datatype.Equal(want.Type, got.Type), name)
	}

	assert.Error(t, restored.Import([]byte("- {kind: number, name: N}")))
	assert.Error(t, restored.Import([]byte("{not a list")))
}
