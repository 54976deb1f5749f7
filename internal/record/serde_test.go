package record

import (
	"testing"

	"github.com/stretchr/testify/require"

	"learndb/internal/dberr"
)

func fruitsSchema(t *testing.T) Schema {
	t.Helper()
	s, err := NewSchema([]Column{
		{Name: "id", Type: TypeInteger, IsPrimary: true, NotNull: true},
		{Name: "name", Type: TypeText, NotNull: true},
		{Name: "avg_weight", Type: TypeReal},
	})
	require.NoError(t, err)
	return s
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	schema := fruitsSchema(t)
	values := []Value{"apple", float32(4.2)}

	rec, err := EncodeRecord(schema, values, 4096)
	require.NoError(t, err)

	got, err := DecodeRecord(schema, rec)
	require.NoError(t, err)
	require.Equal(t, values, got)
}

func TestEncodeDecodeWithNull(t *testing.T) {
	schema := fruitsSchema(t)
	values := []Value{"pear", nil}

	rec, err := EncodeRecord(schema, values, 4096)
	require.NoError(t, err)

	got, err := DecodeRecord(schema, rec)
	require.NoError(t, err)
	require.Equal(t, values, got)
}

func TestEncodeRejectsNullOnNotNullColumn(t *testing.T) {
	schema := fruitsSchema(t)
	_, err := EncodeRecord(schema, []Value{nil, float32(1)}, 4096)
	require.ErrorIs(t, err, dberr.ErrSchemaMismatch)
}

func TestEncodeRejectsOversizeRecord(t *testing.T) {
	schema := fruitsSchema(t)
	huge := make([]byte, 100)
	for i := range huge {
		huge[i] = 'x'
	}
	_, err := EncodeRecord(schema, []Value{string(huge), float32(1)}, 64)
	require.ErrorIs(t, err, dberr.ErrTooLarge)
}

func TestCellKeyAndSize(t *testing.T) {
	schema := fruitsSchema(t)
	rec, err := EncodeRecord(schema, []Value{"kiwi", float32(0.5)}, 4096)
	require.NoError(t, err)

	cell := EncodeCell(42, rec)
	require.EqualValues(t, 42, CellKey(cell))
	require.Equal(t, CellHeaderSize+len(rec), CellSize(cell))
	require.Equal(t, rec, CellRecord(cell))
}
