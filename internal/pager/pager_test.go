package pager

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"learndb/internal/dbconfig"
	"learndb/internal/dblog"
)

func openTemp(t *testing.T) (*Pager, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	p, err := Open(path, dbconfig.Default(), dblog.Silent())
	require.NoError(t, err)
	return p, path
}

func TestOpenNewFileInitializesHeader(t *testing.T) {
	p, _ := openTemp(t)
	defer p.Close()

	require.Equal(t, uint32(1), p.NumPages())
	require.EqualValues(t, CatalogRootPage, p.CatalogRootPage())
}

func TestGetPageExtendsByOne(t *testing.T) {
	p, _ := openTemp(t)
	defer p.Close()

	page, err := p.GetPage(1)
	require.NoError(t, err)
	require.EqualValues(t, 1, page.PageNum)
	require.EqualValues(t, 2, p.NumPages())

	for _, b := range page.Data {
		require.Zero(t, b)
	}
}

func TestGetPageBeyondEndFails(t *testing.T) {
	p, _ := openTemp(t)
	defer p.Close()

	_, err := p.GetPage(5)
	require.Error(t, err)
}

func TestAllocateAndReturnRecyclesPage(t *testing.T) {
	p, _ := openTemp(t)
	defer p.Close()

	a, err := p.AllocatePage()
	require.NoError(t, err)
	b, err := p.AllocatePage()
	require.NoError(t, err)
	require.NotEqual(t, a, b)

	require.NoError(t, p.ReturnPage(b))

	c, err := p.AllocatePage()
	require.NoError(t, err)
	require.Equal(t, b, c, "allocate should recycle the most recently freed page")
}

func TestFreeListSurvivesReopen(t *testing.T) {
	p, path := openTemp(t)
	a, err := p.AllocatePage()
	require.NoError(t, err)
	require.NoError(t, p.ReturnPage(a))
	require.NoError(t, p.Close())

	p2, err := Open(path, dbconfig.Default(), dblog.Silent())
	require.NoError(t, err)
	defer p2.Close()

	recycled, err := p2.AllocatePage()
	require.NoError(t, err)
	require.Equal(t, a, recycled)
}

func TestCloseFlushesAndPersists(t *testing.T) {
	p, path := openTemp(t)
	page, err := p.GetPage(1)
	require.NoError(t, err)
	page.Data[0] = 0xAB
	page.Dirty = true
	require.NoError(t, p.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	pageSize := dbconfig.Default().PageSize
	require.Equal(t, byte(0xAB), raw[pageSize])
}

func TestTruncateTrailingFreePages(t *testing.T) {
	p, path := openTemp(t)
	// Reserve page 1 (the catalog root) the way the catalog layer does on
	// Open, so AllocatePage below hands out page 2 rather than page 1.
	_, err := p.GetPage(CatalogRootPage)
	require.NoError(t, err)

	a, err := p.AllocatePage()
	require.NoError(t, err)
	require.Equal(t, uint32(2), a)
	before := p.NumPages()
	require.NoError(t, p.ReturnPage(a))
	require.NoError(t, p.Close())

	fi, err := os.Stat(path)
	require.NoError(t, err)
	require.Less(t, uint32(fi.Size()/int64(dbconfig.Default().PageSize)), before)
}
