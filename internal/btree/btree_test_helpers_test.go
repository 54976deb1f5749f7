package btree

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"learndb/internal/dbconfig"
	"learndb/internal/dblog"
	"learndb/internal/pager"
	"learndb/internal/record"
)

func testSchema(t *testing.T) record.Schema {
	t.Helper()
	s, err := record.NewSchema([]record.Column{
		{Name: "id", Type: record.TypeInteger, IsPrimary: true, NotNull: true},
		{Name: "name", Type: record.TypeText, NotNull: true},
	})
	require.NoError(t, err)
	return s
}

func testMeta(t *testing.T) *Meta {
	t.Helper()
	cfg := dbconfig.Default()
	path := filepath.Join(t.TempDir(), "test.db")
	p, err := pager.Open(path, cfg, dblog.Silent())
	require.NoError(t, err)
	// Reserve page 1 so tree tests can place their root at page 2.
	_, err = p.GetPage(pager.CatalogRootPage)
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return &Meta{
		Pager:               p,
		Schema:              testSchema(t),
		MaxCellSize:         MaxCellSize(cfg.PageSize),
		MinFreeBlock:        cfg.MinFreeBlock,
		CompactionThreshold: cfg.CompactionThreshold,
		Log:                 dblog.Silent(),
	}
}

func testRecord(t *testing.T, m *Meta, name string) []byte {
	t.Helper()
	raw, err := record.EncodeRecord(m.Schema, []record.Value{name}, m.MaxCellSize)
	require.NoError(t, err)
	return raw
}
